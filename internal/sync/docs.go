package sync

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/processkit/trackersync/internal/condense"
	"github.com/processkit/trackersync/internal/schema"
	"github.com/processkit/trackersync/internal/tracker"
)

// DocOp is what happened to a dimension's task.
type DocOp int

const (
	DocSkipped DocOp = iota
	DocCreated
	DocUpdated
)

// DimensionError is a failure confined to one dimension.
type DimensionError struct {
	Dimension schema.Dimension
	Stage     string
	Err       error
}

func (e DimensionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Dimension.Label(), e.Err)
}

func (e DimensionError) Unwrap() error { return e.Err }

// DocResult aggregates the documentation pass.
type DocResult struct {
	TaskIDs schema.TaskIDs
	Created int
	Updated int
	Errors  []DimensionError

	// Notices are warnings for dimensions that still succeeded, such as a
	// failed section move or a body the tracker truncated.
	Notices []string
}

// Warnings returns the messages to surface, leaving out "no target
// section" errors for stages the provisioner already reported.
func (r *DocResult) Warnings(reported map[string]bool) []string {
	var out []string
	for _, e := range r.Errors {
		if errors.Is(e.Err, ErrNoTargetSection) && reported[e.Stage] {
			continue
		}
		out = append(out, e.Error())
	}
	return append(out, r.Notices...)
}

// DocumentationTaskSynchronizer upserts one task per dimension.
type DocumentationTaskSynchronizer struct {
	tracker    Tracker
	fitter     Fitter
	stages     Stages
	notesLimit int
	logger     *log.Logger
}

// NewDocumentationTaskSynchronizer creates the synchronizer.
func NewDocumentationTaskSynchronizer(t Tracker, f Fitter, stages Stages, notesLimit int, logger *log.Logger) *DocumentationTaskSynchronizer {
	return &DocumentationTaskSynchronizer{
		tracker:    t,
		fitter:     f,
		stages:     stages,
		notesLimit: notesLimit,
		logger:     logger,
	}
}

// TaskName is the remote task name for a dimension.
func TaskName(d schema.Dimension, processName string) string {
	return fmt.Sprintf("%s: %s", d.Label(), processName)
}

// PlaceholderBody is the body of a task whose dimension has no content.
func PlaceholderBody(d schema.Dimension) string {
	return fmt.Sprintf("(No %s documentation yet.)", d.Label())
}

// Sync processes all dimensions in order against the project and section
// index. One dimension's failure never blocks the others. A fatal outcome
// stops the pass; the partial result is returned with it so the caller can
// persist the ids learned so far.
func (s *DocumentationTaskSynchronizer) Sync(ctx context.Context, rec *schema.ProcessRecord, link Link, idx *SectionIndex) (*DocResult, error) {
	res := &DocResult{TaskIDs: rec.RemoteTaskIDs}

	for _, d := range schema.Dimensions {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("documentation sync interrupted: %w", err)
		}

		stage := s.stages.For(d)
		sectionID := idx.Lookup(stage)
		if sectionID == "" {
			res.Errors = append(res.Errors, DimensionError{
				Dimension: d,
				Stage:     stage,
				Err:       fmt.Errorf("%w %q", ErrNoTargetSection, stage),
			})
			continue
		}

		o := s.syncDimension(ctx, rec, link, d, sectionID, &res.TaskIDs)
		switch o.Value {
		case DocCreated:
			res.Created++
		case DocUpdated:
			res.Updated++
		}

		switch {
		case o.IsFatal():
			return res, o.Err
		case o.IsWarning() && o.Value == DocSkipped:
			res.Errors = append(res.Errors, DimensionError{Dimension: d, Stage: stage, Err: o.Err})
		case o.IsWarning():
			res.Notices = append(res.Notices, fmt.Sprintf("%s: %v", d.Label(), o.Err))
		}
	}

	return res, nil
}

func (s *DocumentationTaskSynchronizer) syncDimension(ctx context.Context, rec *schema.ProcessRecord, link Link, d schema.Dimension, sectionID string, ids *schema.TaskIDs) Outcome[DocOp] {
	name := TaskName(d, rec.Name)
	body := rec.Documentation.Get(d)
	if body == "" {
		body = PlaceholderBody(d)
	}
	fitted := s.fitter.Fit(ctx, body, s.notesLimit)
	if fitted.Degraded() {
		s.logger.Printf("%s body shortened from %d characters (condensed=%v)", d.Label(), fitted.OriginalLength, fitted.Condensed)
	}

	wctx := context.WithoutCancel(ctx)

	if taskID, ok := ids.Get(d); ok {
		task, err := s.tracker.UpdateTask(wctx, taskID, name, fitted.Text)
		switch {
		case err == nil:
			s.logger.Printf("Updated %s task %s", d.Label(), taskID)
			return s.repair(wctx, DocUpdated, sectionID, taskID, fitted, task.Notes)
		case errors.Is(err, tracker.ErrNotFound):
			s.logger.Printf("%s task %s was deleted remotely, recreating", d.Label(), taskID)
			ids.Clear(d)
		default:
			return fromRemote(DocSkipped, fmt.Errorf("failed to update task %s: %w", taskID, err))
		}
	}

	task, err := s.tracker.CreateTask(wctx, tracker.CreateTaskRequest{
		Name:        name,
		Notes:       fitted.Text,
		ProjectID:   link.ProjectID,
		SectionID:   sectionID,
		WorkspaceID: link.WorkspaceID,
	})
	if err != nil {
		return fromRemote(DocSkipped, fmt.Errorf("failed to create task: %w", err))
	}
	ids.Set(d, task.GID)
	s.logger.Printf("Created %s task %s", d.Label(), task.GID)

	return s.repair(wctx, DocCreated, sectionID, task.GID, fitted, task.Notes)
}

// repair re-asserts section membership after every successful write, since
// membership given at creation is not always honored, then checks that the
// tracker stored the full body.
func (s *DocumentationTaskSynchronizer) repair(ctx context.Context, op DocOp, sectionID, taskID string, fitted condense.Result, stored string) Outcome[DocOp] {
	if err := s.tracker.AddTaskToSection(ctx, sectionID, taskID); err != nil {
		return fromRemote(op, fmt.Errorf("failed to move task %s to its section: %w", taskID, err))
	}
	if msg, truncated := condense.CheckStored("task body", fitted.Text, stored); truncated {
		return Warning(op, errors.New(msg))
	}
	return Ok(op)
}
