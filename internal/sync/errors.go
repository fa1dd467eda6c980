package sync

import (
	"errors"

	"github.com/processkit/trackersync/internal/tracker"
)

var (
	// ErrProcessNotFound means the local process record does not exist.
	ErrProcessNotFound = errors.New("process not found")

	// ErrNoWorkspace means a new project is needed but no workspace was
	// given, stored or configured.
	ErrNoWorkspace = errors.New("no workspace to create the project in")

	// ErrSyncInProgress means another sync holds the lease for the process.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrNoTargetSection means the stage section for a dimension does not
	// exist in the remote project.
	ErrNoTargetSection = errors.New("no target section")
)

// IsFatal reports whether err aborts a sync.
func IsFatal(err error) bool {
	return errors.Is(err, ErrProcessNotFound) ||
		errors.Is(err, ErrNoWorkspace) ||
		errors.Is(err, ErrSyncInProgress) ||
		tracker.IsFatal(err)
}
