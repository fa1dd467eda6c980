package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/processkit/trackersync/internal/condense"
	"github.com/processkit/trackersync/internal/schema"
	"github.com/processkit/trackersync/internal/tracker"
)

// DefaultExcludedSections are journal sections with no remote counterpart.
var DefaultExcludedSections = []string{"workflow"}

// BackfillResult aggregates the backfill pass.
type BackfillResult struct {
	Created  int
	Skipped  int
	Warnings []string
}

// ImprovementBackfiller creates one remote task per unlinked journal entry.
type ImprovementBackfiller struct {
	tracker    Tracker
	store      Store
	fitter     Fitter
	notesLimit int
	appBaseURL string
	excluded   map[string]bool
	logger     *log.Logger
}

// NewImprovementBackfiller creates a backfiller. appBaseURL, when set, is
// used to put a link back to the process in each task body.
func NewImprovementBackfiller(t Tracker, st Store, f Fitter, notesLimit int, appBaseURL string, excluded []string, logger *log.Logger) *ImprovementBackfiller {
	ex := make(map[string]bool, len(excluded))
	for _, s := range excluded {
		ex[strings.ToLower(strings.TrimSpace(s))] = true
	}
	return &ImprovementBackfiller{
		tracker:    t,
		store:      st,
		fitter:     f,
		notesLimit: notesLimit,
		appBaseURL: strings.TrimSuffix(appBaseURL, "/"),
		excluded:   ex,
		logger:     logger,
	}
}

// BackfillName is the remote task name for a journal entry.
func BackfillName(e *schema.JournalEntry) string {
	return fmt.Sprintf("[%s] %s", e.SectionLabel(), e.Title)
}

// Body renders the task body for a journal entry.
func (b *ImprovementBackfiller) Body(processID string, e *schema.JournalEntry) string {
	body := strings.TrimSpace(e.Description)
	if body == "" {
		body = "(No description.)"
	}
	if b.appBaseURL != "" {
		body += fmt.Sprintf("\n\nSource: %s/processes/%s", b.appBaseURL, processID)
	}
	return body
}

// Backfill creates tasks in the final-stage section for the given entries.
// Each created task's permalink is persisted before moving on, so a crash
// mid-batch cannot lead to duplicates on retry. Failures are per entry;
// only credential failures (and cancellation) stop the pass.
func (b *ImprovementBackfiller) Backfill(ctx context.Context, processID string, link Link, sectionID string, entries []*schema.JournalEntry) (*BackfillResult, error) {
	res := &BackfillResult{}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("backfill interrupted: %w", err)
		}
		if e.Backfilled() {
			continue
		}
		if b.excluded[strings.ToLower(strings.TrimSpace(e.SectionAffected))] {
			res.Skipped++
			continue
		}

		o := b.backfillEntry(ctx, processID, link, sectionID, e)
		if o.Value {
			res.Created++
		}
		switch {
		case o.IsFatal():
			return res, o.Err
		case o.IsWarning():
			res.Warnings = append(res.Warnings, fmt.Sprintf("journal entry %q: %v", e.Title, o.Err))
		}
	}

	return res, nil
}

// backfillEntry reports whether a task was created, including when a
// later step failed fatally.
func (b *ImprovementBackfiller) backfillEntry(ctx context.Context, processID string, link Link, sectionID string, e *schema.JournalEntry) Outcome[bool] {
	fitted := b.fitter.Fit(ctx, b.Body(processID, e), b.notesLimit)
	wctx := context.WithoutCancel(ctx)

	task, err := b.tracker.CreateTask(wctx, tracker.CreateTaskRequest{
		Name:        BackfillName(e),
		Notes:       fitted.Text,
		ProjectID:   link.ProjectID,
		SectionID:   sectionID,
		WorkspaceID: link.WorkspaceID,
	})
	if err != nil {
		return fromRemote(false, fmt.Errorf("failed to create task: %w", err))
	}

	if err := b.store.SetJournalEntryRemoteLink(wctx, e.ID, task.PermalinkURL); err != nil {
		// The task exists but the entry is not flagged; the next sync
		// would create it again.
		return Warning(true, fmt.Errorf("created task %s but failed to record it: %w", task.GID, err))
	}
	e.RemoteTaskURL = task.PermalinkURL
	b.logger.Printf("Backfilled journal entry %s as task %s", e.ID, task.GID)

	if err := b.tracker.AddTaskToSection(wctx, sectionID, task.GID); err != nil {
		if tracker.IsFatal(err) {
			return Outcome[bool]{Value: true, Severity: SeverityFatal, Err: err}
		}
		b.logger.Printf("WARNING: failed to move task %s to its section: %v", task.GID, err)
	}
	if msg, truncated := condense.CheckStored("task body", fitted.Text, task.Notes); truncated {
		return Warning(true, errors.New(msg))
	}
	return Ok(true)
}
