// Package sync reconciles a local process record with a project in the
// external tracker.
//
// Overview
//
// The tracker is not transactional with the local store, may be edited by
// people at any time, and has no batch API. A sync is therefore a best-effort
// reconcile, not an atomic write:
//
//	ProcessRecord (store)
//	     │
//	     ▼
//	LinkResolver ──── probe project; deleted? unlink and create again
//	     │
//	     ▼
//	project description (fitted to the notes limit)
//	     │
//	     ▼
//	SectionProvisioner ──── Plan / Execute / Evaluate / Improve
//	     │
//	     ▼
//	DocumentationTaskSynchronizer ──── one task per dimension, upsert by id
//	     │
//	     ▼
//	ImprovementBackfiller ──── one task per unlinked journal entry
//
// Every identifier learned from the tracker is written back to the store as
// soon as it is known, so an interrupted sync resumes without duplicating
// remote objects.
//
// Error Handling
//
// Each unit of work (a section, a dimension, a journal entry) produces an
// Outcome: Ok, Warning or Fatal. Warnings are collected into Result.Warnings
// and the sync carries on. Fatal outcomes abort the sync with an error:
//
//   - the process does not exist (ErrProcessNotFound)
//   - no workspace can be resolved for a new project (ErrNoWorkspace)
//   - another sync holds the process lease (ErrSyncInProgress)
//   - the tracker rejects the credentials (tracker.ErrUnauthorized)
//   - the linked project cannot be probed or created
//
// A deleted remote project is not an error: the link is cleared and the
// project is created again.
//
// Concurrency
//
// A sync runs sequentially. When the store implements Locker, a per-process
// lease serializes concurrent syncs of the same process. Remote mutations
// run with a context detached from cancellation so an interrupted create
// still returns the id to persist; cancellation is honored between units.
package sync
