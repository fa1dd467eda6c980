package dashboard

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	psync "github.com/processkit/trackersync/internal/sync"
)

type errorBody struct {
	Error string `json:"error"`
}

// handleSync runs a sync for the process in the path and returns its Result.
// The sync is bounded by the server's SyncTimeout.
//
//	POST /api/processes/{id}/sync?workspace=<gid>&force_new=<bool>
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{"sync is not configured"})
		return
	}

	id := r.PathValue("id")
	q := r.URL.Query()
	opts := psync.Options{TargetWorkspaceID: q.Get("workspace")}
	if v := q.Get("force_new"); v != "" {
		forceNew, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{"invalid force_new: " + v})
			return
		}
		opts.ForceNew = forceNew
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.syncTimeout)
	defer cancel()

	res, err := s.syncer.Sync(ctx, id, opts)
	if err != nil {
		s.logger.Printf("Sync of %s failed: %v", id, err)
		writeJSON(w, statusFor(err), errorBody{err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, psync.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, psync.ErrProcessNotFound):
		return http.StatusNotFound
	case errors.Is(err, psync.ErrNoWorkspace):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}
