package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditRecord is one line of the audit log.
type AuditRecord struct {
	ID        string    `json:"id"`
	ProcessID string    `json:"process_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// AppendAuditRecord appends a line to the audit log of a process.
func (db *DB) AppendAuditRecord(ctx context.Context, processID, text string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO audit_log (id, process_id, message, created_at) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), processID, text, toMillis(db.now()))
	if err != nil {
		return fmt.Errorf("failed to append audit record for %s: %w", processID, err)
	}
	return nil
}

// ListAuditRecords returns audit records created at or after since, oldest
// first. An empty processID lists records for every process; a zero since
// lists everything.
func (db *DB) ListAuditRecords(ctx context.Context, processID string, since time.Time) ([]AuditRecord, error) {
	query := `SELECT id, process_id, message, created_at FROM audit_log WHERE created_at >= ?`
	args := []any{toMillis(since)}
	if since.IsZero() {
		args[0] = int64(0)
	}
	if processID != "" {
		query += ` AND process_id = ?`
		args = append(args, processID)
	}
	query += ` ORDER BY created_at ASC, rowid ASC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var records []AuditRecord
	for rows.Next() {
		var r AuditRecord
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.ProcessID, &r.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		r.CreatedAt = fromMillis(createdAt)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log: %w", err)
	}
	return records, nil
}
