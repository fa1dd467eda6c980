package sync

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/processkit/trackersync/internal/schema"
	"github.com/processkit/trackersync/internal/tracker"
)

// Link is the resolved local-to-remote project link.
type Link struct {
	Linked      bool
	ProjectID   string
	ProjectURL  string
	WorkspaceID string

	// Healed is set when the stored project no longer exists remotely and
	// the record was unlinked.
	Healed bool
}

// LinkResolver validates the stored project link.
type LinkResolver struct {
	tracker          Tracker
	defaultWorkspace string
	logger           *log.Logger
}

// NewLinkResolver creates a resolver. defaultWorkspace is the last resort
// for new projects.
func NewLinkResolver(t Tracker, defaultWorkspace string, logger *log.Logger) *LinkResolver {
	return &LinkResolver{tracker: t, defaultWorkspace: defaultWorkspace, logger: logger}
}

// Resolve probes the linked project, if any. A project the tracker reports
// as not found is unlinked in rec (in memory only) and treated as never
// synced. Any other probe failure is fatal. For an unlinked record the
// workspace comes from opts, then rec, then the configured default.
func (r *LinkResolver) Resolve(ctx context.Context, rec *schema.ProcessRecord, opts Options) Outcome[Link] {
	var link Link

	switch {
	case opts.ForceNew && rec.Linked():
		r.logger.Printf("Ignoring existing project %s for %s (force new)", rec.RemoteProjectID, rec.ID)
		rec.Unlink()

	case rec.Linked():
		p, err := r.tracker.GetProject(ctx, rec.RemoteProjectID)
		switch {
		case err == nil:
			link = Link{
				Linked:      true,
				ProjectID:   p.GID,
				ProjectURL:  firstNonEmpty(p.PermalinkURL, rec.RemoteProjectURL),
				WorkspaceID: firstNonEmpty(p.WorkspaceID(), rec.WorkspaceID),
			}
			return Ok(link)
		case errors.Is(err, tracker.ErrNotFound):
			r.logger.Printf("Project %s for %s no longer exists, unlinking", rec.RemoteProjectID, rec.ID)
			rec.Unlink()
			link.Healed = true
		default:
			return Fatal[Link](fmt.Errorf("failed to probe project %s: %w", rec.RemoteProjectID, err))
		}
	}

	link.WorkspaceID = firstNonEmpty(opts.TargetWorkspaceID, rec.WorkspaceID, r.defaultWorkspace)
	if link.WorkspaceID == "" {
		return Fatal[Link](ErrNoWorkspace)
	}
	return Ok(link)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
