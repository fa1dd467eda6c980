package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/processkit/trackersync/internal/schema"
	"github.com/processkit/trackersync/internal/store"
	"github.com/processkit/trackersync/internal/ui"
	"github.com/spf13/cobra"
)

// processStatus is the local view of one process's link. It is built
// without any tracker calls.
type processStatus struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	RemoteProjectID  string            `json:"remoteProjectId,omitempty"`
	RemoteProjectURL string            `json:"remoteProjectUrl,omitempty"`
	WorkspaceID      string            `json:"workspaceId,omitempty"`
	TaskIDs          map[string]string `json:"remoteTaskIds"`
	JournalEntries   int               `json:"journalEntries"`
	UnlinkedEntries  int               `json:"unlinkedEntries"`
	LockHolder       string            `json:"lockHolder,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:     "status [process-id]",
	GroupID: "sync",
	Short:   "Show link status without contacting the tracker",
	Long: `Show the stored link for one process, or a summary of all processes.

For a single process this lists the project, the task id per documentation
dimension, how many journal entries are still waiting to be backfilled, and
whether a sync currently holds the process lock.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")
		ctx := context.Background()

		db := openStore()
		defer db.Close()

		var ids []string
		if len(args) == 1 {
			ids = args
		} else {
			recs, err := db.ListProcesses(ctx)
			if err != nil {
				exitf("Error listing processes: %v", err)
			}
			for _, rec := range recs {
				ids = append(ids, rec.ID)
			}
		}

		statuses := make([]*processStatus, 0, len(ids))
		for _, id := range ids {
			st, err := loadStatus(ctx, db, id)
			if errors.Is(err, store.ErrNotFound) {
				db.Close()
				exitf("Error: process %s not found (run 'psync import' first)", id)
			}
			if err != nil {
				exitf("Error: %v", err)
			}
			statuses = append(statuses, st)
		}

		if jsonOut {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(statuses)
			return
		}

		if len(statuses) == 0 {
			fmt.Printf("\n%s No processes imported yet\n", ui.RenderWarn("⚠"))
			fmt.Printf("   Run 'psync import' to load process files\n\n")
			return
		}
		for _, st := range statuses {
			printStatus(st, len(args) == 1)
		}
	},
}

func loadStatus(ctx context.Context, db *store.DB, id string) (*processStatus, error) {
	rec, err := db.GetProcess(ctx, id)
	if err != nil {
		return nil, err
	}
	all, err := db.ListJournalEntries(ctx, id)
	if err != nil {
		return nil, err
	}
	unlinked, err := db.ListUnlinkedJournalEntries(ctx, id)
	if err != nil {
		return nil, err
	}
	lock, err := db.GetSyncLock(ctx, id)
	if err != nil {
		return nil, err
	}

	st := &processStatus{
		ID:               rec.ID,
		Name:             rec.Name,
		RemoteProjectID:  rec.RemoteProjectID,
		RemoteProjectURL: rec.RemoteProjectURL,
		WorkspaceID:      rec.WorkspaceID,
		TaskIDs:          make(map[string]string),
		JournalEntries:   len(all),
		UnlinkedEntries:  len(unlinked),
	}
	for _, d := range schema.Dimensions {
		if taskID, ok := rec.RemoteTaskIDs.Get(d); ok {
			st.TaskIDs[d.String()] = taskID
		}
	}
	if lock != nil {
		st.LockHolder = lock.Holder
	}
	return st, nil
}

func printStatus(st *processStatus, detailed bool) {
	marker := ui.RenderPass("●")
	link := st.RemoteProjectURL
	if st.RemoteProjectID == "" {
		marker = ui.RenderMuted("○")
		link = ui.RenderMuted("not linked")
	}
	fmt.Printf("%s %s %s  %s\n", marker, ui.RenderAccent(st.ID), st.Name, link)
	if !detailed {
		return
	}

	fmt.Printf("   Workspace: %s\n", valueOr(st.WorkspaceID, "(default)"))
	for _, d := range schema.Dimensions {
		fmt.Printf("   %-12s %s\n", d.Label()+":", valueOr(st.TaskIDs[d.String()], ui.RenderMuted("-")))
	}
	fmt.Printf("   Journal: %d entries, %d waiting to be backfilled\n", st.JournalEntries, st.UnlinkedEntries)
	if st.LockHolder != "" {
		fmt.Printf("   %s sync in progress (holder %s)\n", ui.RenderWarn("⚠"), st.LockHolder)
	}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func init() {
	statusCmd.Flags().Bool("json", false, "print status as JSON")
}
