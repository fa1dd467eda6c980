package sync

import (
	"context"
	"time"

	"github.com/processkit/trackersync/internal/condense"
	"github.com/processkit/trackersync/internal/schema"
	"github.com/processkit/trackersync/internal/tracker"
)

// Syncer synchronizes one process with the tracker.
type Syncer interface {
	// Sync runs one reconcile pass for processID.
	//
	// Non-fatal problems are reported in Result.Warnings; the returned error
	// is non-nil only for fatal conditions. Callers should bound the whole
	// call with a context deadline.
	Sync(ctx context.Context, processID string, opts Options) (*Result, error)
}

// Options are per-invocation sync options.
type Options struct {
	// TargetWorkspaceID is used when a new project has to be created.
	TargetWorkspaceID string

	// ForceNew ignores any existing link and creates a new project.
	ForceNew bool
}

// Tracker is the subset of the tracker API the engine uses.
type Tracker interface {
	GetProject(ctx context.Context, projectID string) (*tracker.Project, error)
	UpdateProject(ctx context.Context, projectID, notes string) (*tracker.Project, error)
	CreateProject(ctx context.Context, req tracker.CreateProjectRequest) (*tracker.Project, error)
	ListSections(ctx context.Context, projectID string) ([]tracker.Section, error)
	CreateSection(ctx context.Context, projectID, name string) (*tracker.Section, error)
	CreateTask(ctx context.Context, req tracker.CreateTaskRequest) (*tracker.Task, error)
	UpdateTask(ctx context.Context, taskID, name, notes string) (*tracker.Task, error)
	AddTaskToSection(ctx context.Context, sectionID, taskID string) error
}

// Store is the local store as seen by the engine.
type Store interface {
	GetProcess(ctx context.Context, id string) (*schema.ProcessRecord, error)
	UpdateProcessSyncFields(ctx context.Context, id string, fields schema.SyncFields) error
	ListUnlinkedJournalEntries(ctx context.Context, processID string) ([]*schema.JournalEntry, error)
	SetJournalEntryRemoteLink(ctx context.Context, id, url string) error
	AppendAuditRecord(ctx context.Context, processID, text string) error
}

// Locker is implemented by stores that can lease a process for one sync.
type Locker interface {
	AcquireSyncLock(ctx context.Context, processID, holder string, ttl time.Duration) error
	ReleaseSyncLock(ctx context.Context, processID, holder string) error
}

// Fitter fits outbound text into the tracker's length limit.
type Fitter interface {
	Fit(ctx context.Context, text string, limit int) condense.Result
}

// Notifier receives sync lifecycle events.
type Notifier interface {
	Notify(Event)
}
