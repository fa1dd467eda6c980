package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/processkit/trackersync/internal/condense"
	"github.com/processkit/trackersync/internal/schema"
	"github.com/processkit/trackersync/internal/store"
	"github.com/processkit/trackersync/internal/tracker"
)

// DefaultNotesLimit is the tracker's maximum notes length in characters.
const DefaultNotesLimit = 65000

// Action says whether the sync created the remote project or updated it.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// Result summarizes a sync that did not fail fatally.
type Result struct {
	ProcessID            string        `json:"processId"`
	Action               Action        `json:"action"`
	RemoteProjectID      string        `json:"remoteProjectId"`
	RemoteProjectURL     string        `json:"remoteProjectUrl"`
	DocsCreated          int           `json:"docsCreated"`
	DocsUpdated          int           `json:"docsUpdated"`
	BackfillCount        int           `json:"backfillCount"`
	Warnings             []string      `json:"warnings"`
	DescriptionCondensed bool          `json:"descriptionCondensed"`
	Relinked             bool          `json:"relinked"`
	Duration             time.Duration `json:"-"`
}

// Config holds syncer configuration.
type Config struct {
	// NotesLimit is the maximum length of project and task notes.
	NotesLimit int

	// Stages are the canonical section names, one per dimension.
	Stages []string

	// ExcludedSections are journal sections never backfilled.
	ExcludedSections []string

	// DefaultWorkspaceID is used for new projects when neither the caller
	// nor the record names a workspace.
	DefaultWorkspaceID string

	// AppBaseURL prefixes the back-link in backfilled task bodies.
	AppBaseURL string

	// LockTTL bounds how long a crashed sync can block the next one. The
	// lease is renewed before each stage, so a single stage must finish
	// within it.
	LockTTL time.Duration

	// Logger for sync activity.
	Logger *log.Logger

	// Notifier receives lifecycle events (optional).
	Notifier Notifier
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		NotesLimit:       DefaultNotesLimit,
		Stages:           append([]string(nil), DefaultStages...),
		ExcludedSections: append([]string(nil), DefaultExcludedSections...),
		LockTTL:          10 * time.Minute,
		Logger:           log.New(os.Stderr, "[sync] ", log.LstdFlags),
	}
}

// syncer implements the Syncer interface.
type syncer struct {
	store    Store
	locker   Locker
	tracker  Tracker
	fitter   Fitter
	config   *Config
	logger   *log.Logger
	notifier Notifier

	links    *LinkResolver
	sections *SectionProvisioner
	docs     *DocumentationTaskSynchronizer
	backfill *ImprovementBackfiller
}

// New creates a Syncer.
//
// If st implements Locker, syncs of the same process are serialized with a
// lease. fitter may be nil, in which case oversized text is truncated.
// Zero config fields take their DefaultConfig values.
func New(st Store, t Tracker, fitter Fitter, config *Config) (Syncer, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if t == nil {
		return nil, fmt.Errorf("tracker cannot be nil")
	}

	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	cfg := *config
	if cfg.NotesLimit <= 0 {
		cfg.NotesLimit = defaults.NotesLimit
	}
	if len(cfg.Stages) == 0 {
		cfg.Stages = defaults.Stages
	}
	if cfg.ExcludedSections == nil {
		cfg.ExcludedSections = defaults.ExcludedSections
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaults.LockTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = defaults.Logger
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}

	stages := Stages(cfg.Stages)
	if err := stages.validate(); err != nil {
		return nil, fmt.Errorf("invalid stages: %w", err)
	}
	if fitter == nil {
		fitter = condense.NewFitter(nil, cfg.Logger)
	}

	s := &syncer{
		store:    st,
		tracker:  t,
		fitter:   fitter,
		config:   &cfg,
		logger:   cfg.Logger,
		notifier: cfg.Notifier,
	}
	if l, ok := st.(Locker); ok {
		s.locker = l
	}

	s.links = NewLinkResolver(t, cfg.DefaultWorkspaceID, cfg.Logger)
	s.sections = NewSectionProvisioner(t, stages, cfg.Logger)
	s.docs = NewDocumentationTaskSynchronizer(t, fitter, stages, cfg.NotesLimit, cfg.Logger)
	s.backfill = NewImprovementBackfiller(t, st, fitter, cfg.NotesLimit, cfg.AppBaseURL, cfg.ExcludedSections, cfg.Logger)

	return s, nil
}

// run is the state of one Sync invocation.
type run struct {
	*syncer
	processID string
	holder    string
	state     State
	res       *Result
}

// Sync implements Syncer.Sync.
func (s *syncer) Sync(ctx context.Context, processID string, opts Options) (*Result, error) {
	start := time.Now()
	r := &run{
		syncer:    s,
		processID: processID,
		state:     StateUnlinked,
		res:       &Result{ProcessID: processID, Warnings: []string{}},
	}

	s.logger.Printf("Starting sync of %s", processID)
	s.emit(Event{Type: EventSyncStarted, ProcessID: processID})

	err := r.execute(ctx, opts)
	r.res.Duration = time.Since(start)
	recordRun(r.res, err)

	if err != nil {
		r.transition(StateFatal)
		s.logger.Printf("Sync of %s failed: %v", processID, err)
		if r.res.RemoteProjectID != "" {
			r.audit(fmt.Sprintf("sync aborted after remote changes (project %s, docs created=%d updated=%d, backfilled=%d): %v",
				r.res.RemoteProjectID, r.res.DocsCreated, r.res.DocsUpdated, r.res.BackfillCount, err))
		}
		s.emit(Event{Type: EventSyncFailed, ProcessID: processID, Message: err.Error()})
		return nil, err
	}

	s.logger.Printf("Sync of %s complete: %s, docs created=%d updated=%d, backfilled=%d, warnings=%d (%s)",
		processID, r.res.Action, r.res.DocsCreated, r.res.DocsUpdated, r.res.BackfillCount,
		len(r.res.Warnings), r.res.Duration.Round(time.Millisecond))
	s.emit(Event{Type: EventSyncComplete, ProcessID: processID, Result: r.res})
	return r.res, nil
}

func (r *run) execute(ctx context.Context, opts Options) error {
	if _, err := r.load(ctx); err != nil {
		return err
	}

	if r.locker != nil {
		r.holder = uuid.NewString()
		if err := r.locker.AcquireSyncLock(ctx, r.processID, r.holder, r.config.LockTTL); err != nil {
			if errors.Is(err, store.ErrLockHeld) {
				return fmt.Errorf("%w: %v", ErrSyncInProgress, err)
			}
			return fmt.Errorf("failed to acquire sync lock: %w", err)
		}
		defer func() {
			if err := r.locker.ReleaseSyncLock(context.WithoutCancel(ctx), r.processID, r.holder); err != nil {
				r.logger.Printf("WARNING: %v", err)
			}
		}()
	}

	// A sync that held the lease before us may have linked the record.
	rec, err := r.load(ctx)
	if err != nil {
		return err
	}

	// Linking
	r.transition(StateLinking)
	lo := r.links.Resolve(ctx, rec, opts)
	if lo.IsFatal() {
		return lo.Err
	}
	link := lo.Value
	if link.Healed {
		r.transition(StateErrorRecoverable)
		r.res.Relinked = true
		if err := r.persist(ctx, rec); err != nil {
			return err
		}
	}

	fitted := r.fitter.Fit(ctx, rec.DescriptionSource, r.config.NotesLimit)
	r.res.DescriptionCondensed = fitted.Degraded()

	if link.Linked {
		r.res.Action = ActionUpdated
		rec.RemoteProjectURL = link.ProjectURL
		rec.WorkspaceID = link.WorkspaceID
		o := r.updateDescription(ctx, link.ProjectID, fitted.Text)
		if o.IsFatal() {
			return o.Err
		}
		if o.IsWarning() {
			r.warn(o.Reason())
		}
	} else {
		r.transition(StateUnlinked)
		if link, err = r.createProject(ctx, rec, link, fitted.Text); err != nil {
			return err
		}
		r.res.Action = ActionCreated
	}
	r.res.RemoteProjectID = link.ProjectID
	r.res.RemoteProjectURL = link.ProjectURL

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("sync interrupted: %w", err)
	}

	// Provisioning
	if err := r.renewLease(ctx); err != nil {
		return err
	}
	r.transition(StateProvisioning)
	po := r.sections.Provision(ctx, link.ProjectID)
	if po.IsFatal() {
		return po.Err
	}
	prov := po.Value
	for _, w := range prov.Warnings {
		r.warn(w)
	}

	// SyncingDocs
	if err := r.renewLease(ctx); err != nil {
		return err
	}
	r.transition(StateSyncingDocs)
	docs, docsErr := r.docs.Sync(ctx, rec, link, prov.Index)
	r.res.DocsCreated = docs.Created
	r.res.DocsUpdated = docs.Updated
	rec.RemoteTaskIDs = docs.TaskIDs
	if err := r.persist(ctx, rec); err != nil {
		return err
	}
	if docsErr != nil {
		return docsErr
	}
	for _, w := range docs.Warnings(prov.Failed) {
		r.warn(w)
	}

	// Backfilling
	if finalID := prov.Index.Final(); finalID == "" {
		r.logger.Printf("No %q section, journal entries left for a later sync", Stages(r.config.Stages).Final())
	} else {
		if err := r.renewLease(ctx); err != nil {
			return err
		}
		r.transition(StateBackfilling)
		entries, err := r.store.ListUnlinkedJournalEntries(ctx, r.processID)
		if err != nil {
			r.warn(fmt.Sprintf("failed to list journal entries: %v", err))
		} else if len(entries) > 0 {
			bf, err := r.backfill.Backfill(ctx, r.processID, link, finalID, entries)
			r.res.BackfillCount = bf.Created
			for _, w := range bf.Warnings {
				r.warn(w)
			}
			if err != nil {
				return err
			}
		}
	}

	r.audit(fmt.Sprintf("sync %s project %s: docs created=%d updated=%d, backfilled=%d, description condensed=%v, warnings=%d",
		r.res.Action, link.ProjectID, r.res.DocsCreated, r.res.DocsUpdated, r.res.BackfillCount,
		r.res.DescriptionCondensed, len(r.res.Warnings)))

	r.transition(StateDone)
	return nil
}

// createProject creates the remote project and records the link at once,
// before anything else can fail.
func (r *run) createProject(ctx context.Context, rec *schema.ProcessRecord, link Link, notes string) (Link, error) {
	p, err := r.tracker.CreateProject(context.WithoutCancel(ctx), tracker.CreateProjectRequest{
		Name:        rec.Name,
		Notes:       notes,
		WorkspaceID: link.WorkspaceID,
	})
	if err != nil {
		return link, fmt.Errorf("failed to create project: %w", err)
	}
	r.logger.Printf("Created project %s for %s", p.GID, rec.ID)

	link = Link{
		Linked:      true,
		ProjectID:   p.GID,
		ProjectURL:  p.PermalinkURL,
		WorkspaceID: firstNonEmpty(p.WorkspaceID(), link.WorkspaceID),
		Healed:      link.Healed,
	}
	rec.RemoteProjectID = link.ProjectID
	rec.RemoteProjectURL = link.ProjectURL
	rec.WorkspaceID = link.WorkspaceID
	rec.RemoteTaskIDs.Reset()
	r.res.RemoteProjectID = link.ProjectID

	if err := r.persist(ctx, rec); err != nil {
		return link, fmt.Errorf("created project %s but failed to record it: %w", p.GID, err)
	}

	if msg, truncated := condense.CheckStored("project description", notes, p.Notes); truncated {
		r.warn(msg)
	}
	return link, nil
}

// updateDescription writes the project notes. Only credential failures
// are fatal here.
func (r *run) updateDescription(ctx context.Context, projectID, notes string) Outcome[*tracker.Project] {
	p, err := r.tracker.UpdateProject(context.WithoutCancel(ctx), projectID, notes)
	if err != nil {
		return fromRemote[*tracker.Project](nil, fmt.Errorf("failed to update project description: %w", err))
	}
	if msg, truncated := condense.CheckStored("project description", notes, p.Notes); truncated {
		return Warning(p, errors.New(msg))
	}
	return Ok(p)
}

func (r *run) load(ctx context.Context) (*schema.ProcessRecord, error) {
	rec, err := r.store.GetProcess(ctx, r.processID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, r.processID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load process %s: %w", r.processID, err)
	}
	return rec, nil
}

// renewLease extends the lease so it outlives the next stage. Losing the
// lease to another holder aborts the sync.
func (r *run) renewLease(ctx context.Context) error {
	if r.locker == nil {
		return nil
	}
	err := r.locker.AcquireSyncLock(context.WithoutCancel(ctx), r.processID, r.holder, r.config.LockTTL)
	if errors.Is(err, store.ErrLockHeld) {
		return fmt.Errorf("%w: lease lost: %v", ErrSyncInProgress, err)
	}
	if err != nil {
		return fmt.Errorf("failed to renew sync lock: %w", err)
	}
	return nil
}

// persist writes the record's sync fields. It runs detached from
// cancellation since the ids it records are already live remotely.
func (r *run) persist(ctx context.Context, rec *schema.ProcessRecord) error {
	if err := r.store.UpdateProcessSyncFields(context.WithoutCancel(ctx), rec.ID, rec.SyncFields()); err != nil {
		return fmt.Errorf("failed to persist sync fields: %w", err)
	}
	return nil
}

func (r *run) audit(text string) {
	if err := r.store.AppendAuditRecord(context.Background(), r.processID, text); err != nil {
		r.logger.Printf("WARNING: failed to append audit record: %v", err)
	}
}

func (r *run) warn(msg string) {
	r.logger.Printf("WARNING: %s", msg)
	r.res.Warnings = append(r.res.Warnings, msg)
	r.emit(Event{Type: EventSyncWarning, ProcessID: r.processID, Message: msg})
}

func (r *run) transition(to State) {
	from := r.state
	if !CanTransition(from, to) {
		r.logger.Printf("WARNING: unexpected state transition %s -> %s", from, to)
	}
	r.state = to
	r.logger.Printf("state: %s -> %s", from, to)
	r.emit(Event{Type: EventStateChange, ProcessID: r.processID, From: &from, State: &to})
}

func (s *syncer) emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	s.notifier.Notify(e)
}
