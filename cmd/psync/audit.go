package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/processkit/trackersync/internal/ui"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:     "audit [process-id]",
	GroupID: "local",
	Short:   "Show the sync audit log",
	Long: `Show audit records written by past syncs, oldest first.

--since accepts a duration (24h), a date (2026-01-31), an RFC 3339 time, or
natural language ("yesterday", "3 days ago", "last monday").`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sinceFlag, _ := cmd.Flags().GetString("since")
		jsonOut, _ := cmd.Flags().GetBool("json")

		since, err := parseSince(sinceFlag, time.Now())
		if err != nil {
			exitf("Error: %v", err)
		}

		processID := ""
		if len(args) == 1 {
			processID = args[0]
		}

		db := openStore()
		defer db.Close()

		records, err := db.ListAuditRecords(context.Background(), processID, since)
		if err != nil {
			db.Close()
			exitf("Error reading audit log: %v", err)
		}

		if jsonOut {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(records)
			return
		}

		if len(records) == 0 {
			fmt.Println(ui.RenderMuted("No audit records."))
			return
		}
		for _, r := range records {
			fmt.Printf("%s  %s  %s\n",
				ui.RenderMuted(r.CreatedAt.Local().Format("2006-01-02 15:04:05")),
				ui.RenderAccent(r.ProcessID),
				r.Message)
		}
	},
}

// parseSince turns a --since value into a lower time bound. An empty value
// means no bound.
func parseSince(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse --since %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not understand --since %q", s)
	}
	return r.Time, nil
}

func init() {
	auditCmd.Flags().String("since", "", "only show records at or after this time")
	auditCmd.Flags().Bool("json", false, "print records as JSON")
}
