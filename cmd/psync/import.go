package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/processkit/trackersync/internal/daemon"
	"github.com/processkit/trackersync/internal/ui"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:     "import [path...]",
	GroupID: "local",
	Short:   "Import process files into the local database",
	Long: `Import process files (JSON or YAML) into the local database.

Each path may be a file or a directory; with no arguments the configured
watch.dir is imported. Only content fields are written: links to tracker
projects, tasks and journal tasks are kept as they are.`,
	Run: func(cmd *cobra.Command, args []string) {
		paths := args
		if len(paths) == 0 {
			paths = []string{cfg.Watch.Dir}
		}

		db := openStore()
		defer db.Close()

		im := daemon.NewImporter(db, nil, newLogger("daemon"))
		ctx := context.Background()

		total, failed := 0, 0
		for _, path := range paths {
			info, err := os.Stat(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), err)
				failed++
				continue
			}

			if info.IsDir() {
				results, err := im.ImportDir(ctx, path)
				if err != nil {
					fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), err)
					failed++
				}
				for _, res := range results {
					printImport(res)
				}
				total += len(results)
				continue
			}

			res, err := im.ImportFile(ctx, path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), err)
				failed++
				continue
			}
			printImport(res)
			total++
		}

		fmt.Printf("\n%s Imported %d process file(s) into %s\n", ui.RenderPass("✓"), total, cfg.DB.Path)
		if failed > 0 {
			db.Close()
			exitf("%s %d path(s) failed", ui.RenderWarn("⚠"), failed)
		}
	},
}

func printImport(res *daemon.ImportResult) {
	fmt.Printf("   %s  %s (%d journal entries)\n", ui.RenderAccent(res.ProcessID), res.Path, res.Entries)
}

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "local",
	Short:   "Watch the process directory and import changes",
	Long: `Import every process file in watch.dir, then keep watching it and import
files as they change. Changes are debounced by watch.debounce.

The watcher only updates the local database. Run 'psync sync' (or use the
HTTP trigger of 'psync serve') to push changes to the tracker.`,
	Run: func(cmd *cobra.Command, args []string) {
		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = cfg.Watch.Dir
		}

		db := openStore()
		defer db.Close()

		d, err := daemon.New(daemon.NewImporter(db, nil, newLogger("daemon")), dir, &daemon.Config{
			DebounceInterval: cfg.Watch.Debounce,
			Logger:           newLogger("daemon"),
		})
		if err != nil {
			exitf("Error: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("%s Watching %s (Ctrl+C to stop)\n", ui.RenderAccent("👀"), dir)
		if err := d.Start(ctx); err != nil {
			exitf("Error: %v", err)
		}
		fmt.Println("Watcher stopped")
	},
}

func init() {
	watchCmd.Flags().String("dir", "", "directory to watch (default: watch.dir)")
}
