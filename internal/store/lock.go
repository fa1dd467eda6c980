package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrLockHeld is returned when another holder owns a live sync lease.
var ErrLockHeld = errors.New("sync lock held")

// SyncLock describes a sync lease.
type SyncLock struct {
	ProcessID  string    `json:"process_id"`
	Holder     string    `json:"holder"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// AcquireSyncLock takes the sync lease for a process. The lease is granted
// when no row exists, when the existing lease has expired, or when holder
// already owns it (renewal). Otherwise ErrLockHeld is returned.
func (db *DB) AcquireSyncLock(ctx context.Context, processID, holder string, ttl time.Duration) error {
	now := db.now()
	query := `
	INSERT INTO sync_locks (process_id, holder, acquired_at, expires_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(process_id) DO UPDATE SET
		holder = excluded.holder,
		acquired_at = excluded.acquired_at,
		expires_at = excluded.expires_at
	WHERE sync_locks.expires_at <= excluded.acquired_at
	   OR sync_locks.holder = excluded.holder
	`
	res, err := db.conn.ExecContext(ctx, query, processID, holder, toMillis(now), toMillis(now.Add(ttl)))
	if err != nil {
		return fmt.Errorf("failed to acquire sync lock for %s: %w", processID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to acquire sync lock for %s: %w", processID, err)
	}
	if n == 0 {
		current, gerr := db.GetSyncLock(ctx, processID)
		if gerr != nil || current == nil {
			return fmt.Errorf("process %s: %w", processID, ErrLockHeld)
		}
		return fmt.Errorf("process %s: %w by %s until %s", processID, ErrLockHeld,
			current.Holder, current.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

// ReleaseSyncLock drops the lease if holder still owns it.
func (db *DB) ReleaseSyncLock(ctx context.Context, processID, holder string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM sync_locks WHERE process_id = ? AND holder = ?`, processID, holder)
	if err != nil {
		return fmt.Errorf("failed to release sync lock for %s: %w", processID, err)
	}
	return nil
}

// GetSyncLock returns the live lease for a process, or nil if none.
func (db *DB) GetSyncLock(ctx context.Context, processID string) (*SyncLock, error) {
	var l SyncLock
	var acquired, expires int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT process_id, holder, acquired_at, expires_at FROM sync_locks WHERE process_id = ? AND expires_at > ?`,
		processID, toMillis(db.now())).Scan(&l.ProcessID, &l.Holder, &acquired, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sync lock for %s: %w", processID, err)
	}
	l.AcquiredAt = fromMillis(acquired)
	l.ExpiresAt = fromMillis(expires)
	return &l, nil
}
