package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	psync "github.com/processkit/trackersync/internal/sync"
	"github.com/processkit/trackersync/internal/ui"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:     "sync <process-id>",
	GroupID: "sync",
	Short:   "Sync one process with its tracker project",
	Long: `Run one reconcile pass for a process:

  1. Verify the linked project still exists (relink if it was deleted)
  2. Create the project, or update its description
  3. Make sure the four stage sections exist
  4. Create or update one task per documentation dimension
  5. Backfill improvement journal entries into the final stage

Non-fatal problems are reported as warnings; the command only fails when
nothing could be done (missing process, no workspace, bad credentials,
another sync in progress).

Examples:
  psync sync proc-1
  psync sync proc-1 --workspace 1200000000000001
  psync sync proc-1 --force-new --yes
  psync sync proc-1 --json`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		processID := args[0]
		workspace, _ := cmd.Flags().GetString("workspace")
		forceNew, _ := cmd.Flags().GetBool("force-new")
		yes, _ := cmd.Flags().GetBool("yes")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		jsonOut, _ := cmd.Flags().GetBool("json")

		db := openStore()
		defer db.Close()

		if forceNew && !yes {
			rec, err := db.GetProcess(context.Background(), processID)
			if err == nil && rec.Linked() {
				ok, err := ui.Confirm(
					fmt.Sprintf("Create a new project for %q?", rec.Name),
					fmt.Sprintf("The link to %s will be dropped. The old project is left untouched.", rec.RemoteProjectURL),
				)
				if errors.Is(err, ui.ErrNotInteractive) {
					exitf("Error: --force-new on a linked process needs --yes when not running in a terminal")
				}
				if err != nil {
					exitf("Error: %v", err)
				}
				if !ok {
					fmt.Println("Aborted.")
					return
				}
			}
		}

		syncer := newSyncer(db, nil)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		res, err := syncer.Sync(ctx, processID, psync.Options{
			TargetWorkspaceID: workspace,
			ForceNew:          forceNew,
		})
		if err != nil {
			if jsonOut {
				_ = json.NewEncoder(os.Stdout).Encode(map[string]string{"error": err.Error()})
			}
			db.Close()
			exitf("%s Sync failed: %v", ui.RenderFail("✗"), err)
		}

		if jsonOut {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				exitf("Error encoding result: %v", err)
			}
			return
		}
		printResult(os.Stdout, res)
	},
}

func printResult(w io.Writer, res *psync.Result) {
	fmt.Fprintf(w, "%s Synced %s: project %s in %v\n",
		ui.RenderPass("✓"), ui.RenderAccent(res.ProcessID), res.Action, res.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "   Project: %s\n", res.RemoteProjectURL)
	fmt.Fprintf(w, "   Docs: %d created, %d updated\n", res.DocsCreated, res.DocsUpdated)
	fmt.Fprintf(w, "   Backfilled: %d journal entries\n", res.BackfillCount)
	if res.Relinked {
		fmt.Fprintf(w, "   %s\n", ui.RenderMuted("previous project was gone; created a replacement"))
	}
	if res.DescriptionCondensed {
		fmt.Fprintf(w, "   %s\n", ui.RenderMuted("description was condensed to fit"))
	}
	if len(res.Warnings) > 0 {
		fmt.Fprintf(w, "\n%s %d warning(s):\n", ui.RenderWarn("⚠"), len(res.Warnings))
		for _, warning := range res.Warnings {
			fmt.Fprintf(w, "   - %s\n", warning)
		}
	}
}

func init() {
	syncCmd.Flags().String("workspace", "", "workspace for a newly created project (overrides the record and tracker.default_workspace)")
	syncCmd.Flags().Bool("force-new", false, "ignore the existing link and create a new project")
	syncCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	syncCmd.Flags().Duration("timeout", 5*time.Minute, "bound the whole sync (0 disables)")
	syncCmd.Flags().Bool("json", false, "print the result as JSON")
}
