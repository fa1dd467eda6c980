package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/processkit/trackersync/internal/condense"
	"github.com/processkit/trackersync/internal/config"
	"github.com/processkit/trackersync/internal/store"
	psync "github.com/processkit/trackersync/internal/sync"
	"github.com/processkit/trackersync/internal/tracker"
	"github.com/processkit/trackersync/internal/ui"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	cfg       *config.Config
	logOutput io.Writer = io.Discard

	dbPathFlag string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "psync",
	Short: "Sync process documentation into the tracker",
	Long: `psync keeps locally owned process records consistent with projects in
the tracker: one project per process, one section per stage, one task per
documentation dimension, and one task per improvement journal entry.

Configuration is read from ~/.config/psync/config.toml, then
./.psync/config.toml, then PSYNC_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if dbPathFlag != "" {
			loaded.DB.Path = dbPathFlag
		}
		cfg = loaded
		logOutput = openLogOutput(cfg.Log, verbose)
		return nil
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "local", Title: "Local Data Commands:"},
		&cobra.Group{ID: "advanced", Title: "Advanced Commands:"},
	)
	rootCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "path to the local database (overrides db.path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log component activity to stderr")

	rootCmd.AddCommand(syncCmd, statusCmd, importCmd, watchCmd, serveCmd, auditCmd, configCmd)
}

// openLogOutput picks where component loggers write: a rotated file when
// log.file is set, stderr with --verbose, nowhere otherwise.
func openLogOutput(lc config.LogConfig, verbose bool) io.Writer {
	var writers []io.Writer
	if lc.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   lc.File,
			MaxSize:    lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAge:     lc.MaxAgeDays,
			Compress:   true,
		})
	}
	if verbose {
		writers = append(writers, os.Stderr)
	}
	switch len(writers) {
	case 0:
		return io.Discard
	case 1:
		return writers[0]
	default:
		return io.MultiWriter(writers...)
	}
}

func newLogger(component string) *log.Logger {
	return log.New(logOutput, "["+component+"] ", log.LstdFlags)
}

func openStore() *store.DB {
	db, err := store.Open(cfg.DB.Path, newLogger("store"))
	if err != nil {
		exitf("Error opening database: %v", err)
	}
	return db
}

// newSyncer wires the tracker client, the fitter and the store into a
// Syncer. notifier may be nil.
func newSyncer(db *store.DB, notifier psync.Notifier) psync.Syncer {
	client, err := tracker.New(tracker.Config{
		BaseURL: cfg.Tracker.BaseURL,
		AppURL:  cfg.Tracker.AppURL,
		Token:   cfg.Tracker.Token,
		Timeout: cfg.Tracker.Timeout,
		Logger:  newLogger("tracker"),
	})
	if err != nil {
		exitf("Error: %v (set tracker.token or PSYNC_TRACKER_TOKEN)", err)
	}

	syncConfig := psync.DefaultConfig()
	syncConfig.NotesLimit = cfg.Tracker.NotesLimit
	syncConfig.Stages = cfg.Sync.Stages
	syncConfig.ExcludedSections = cfg.Sync.ExcludedSections
	syncConfig.DefaultWorkspaceID = cfg.Tracker.DefaultWorkspace
	syncConfig.AppBaseURL = cfg.App.BaseURL
	syncConfig.LockTTL = cfg.Sync.LockTTL
	syncConfig.Logger = newLogger("sync")
	syncConfig.Notifier = notifier

	syncer, err := psync.New(db, client, newFitter(), syncConfig)
	if err != nil {
		exitf("Error: %v", err)
	}
	return syncer
}

func newFitter() *condense.Fitter {
	logger := newLogger("condense")
	if !cfg.Condense.Enabled {
		return condense.NewFitter(nil, logger)
	}

	apiKey := cfg.Condense.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		fmt.Fprintf(os.Stderr, "%s condense.enabled is set but no API key is configured; oversized text will be truncated\n", ui.RenderWarn("⚠"))
		return condense.NewFitter(nil, logger)
	}

	return condense.NewFitter(condense.NewAnthropicCondenser(condense.AnthropicConfig{
		APIKey:     apiKey,
		Model:      cfg.Condense.Model,
		MaxTokens:  cfg.Condense.MaxTokens,
		MaxRetries: -1,
	}), logger)
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
