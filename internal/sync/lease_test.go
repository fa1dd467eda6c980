package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/processkit/trackersync/internal/store"
)

// hookedStore runs onAcquire before every AcquireSyncLock call.
type hookedStore struct {
	*store.DB
	acquires  int
	holders   []string
	onAcquire func(n int) error
}

func (h *hookedStore) AcquireSyncLock(ctx context.Context, processID, holder string, ttl time.Duration) error {
	h.acquires++
	h.holders = append(h.holders, holder)
	if h.onAcquire != nil {
		if err := h.onAcquire(h.acquires); err != nil {
			return err
		}
	}
	return h.DB.AcquireSyncLock(ctx, processID, holder, ttl)
}

func (f *fixture) hookedSyncer() (Syncer, *hookedStore) {
	f.t.Helper()
	hooked := &hookedStore{DB: f.db}
	s, err := New(hooked, f.tracker, nil, f.config)
	require.NoError(f.t, err)
	return s, hooked
}

func TestSync_WaitingSyncSeesEarlierLink(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(newProcess(), entry("j-1", "learning", "Shorter onboarding"))

	late, hooked := f.hookedSyncer()
	var early *Result
	hooked.onAcquire = func(n int) error {
		if n == 1 {
			// Another sync runs to completion while this one waits for
			// the lease.
			early = f.mustSync(Options{})
		}
		return nil
	}

	res, err := late.Sync(context.Background(), "proc-1", Options{})
	require.NoError(t, err)
	require.NotNil(t, early)

	assert.Equal(t, ActionCreated, early.Action)
	assert.Equal(t, ActionUpdated, res.Action)
	assert.Equal(t, early.RemoteProjectID, res.RemoteProjectID)
	assert.Equal(t, 0, res.DocsCreated)
	assert.Equal(t, 4, res.DocsUpdated)
	assert.Equal(t, 0, res.BackfillCount)

	assert.Len(t, f.tracker.projects, 1)
	assert.Equal(t, 1, f.tracker.calls["CreateProject"])
	assert.Len(t, f.tracker.tasksIn(early.RemoteProjectID), 5)
}

func TestSync_RenewsLeaseBetweenStages(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(newProcess(), entry("j-1", "learning", "Shorter onboarding"))

	s, hooked := f.hookedSyncer()
	_, err := s.Sync(context.Background(), "proc-1", Options{})
	require.NoError(t, err)

	// Acquire, then renew before provisioning, docs and backfill.
	require.Equal(t, 4, hooked.acquires)
	for _, h := range hooked.holders[1:] {
		assert.Equal(t, hooked.holders[0], h)
	}

	lock, err := f.db.GetSyncLock(context.Background(), "proc-1")
	require.NoError(t, err)
	assert.Nil(t, lock)
}

func TestSync_LostLeaseAborts(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(newProcess())

	s, hooked := f.hookedSyncer()
	hooked.onAcquire = func(n int) error {
		// Renewal before the documentation pass.
		if n == 3 {
			return fmt.Errorf("process proc-1: %w", store.ErrLockHeld)
		}
		return nil
	}

	_, err := s.Sync(context.Background(), "proc-1", Options{})

	require.ErrorIs(t, err, ErrSyncInProgress)
	assert.Contains(t, err.Error(), "lease lost")
	assert.Equal(t, 0, f.tracker.calls["CreateTask"])
	assert.True(t, f.record().Linked(), "the project created before the loss stays recorded")
}
