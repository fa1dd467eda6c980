package store

import (
	"context"
	"fmt"

	"github.com/processkit/trackersync/internal/schema"
)

// UpsertJournalEntry inserts an entry or updates its content. An existing
// remote_task_url and created_at are preserved.
func (db *DB) UpsertJournalEntry(ctx context.Context, e *schema.JournalEntry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid journal entry: %w", err)
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = db.now()
	}

	query := `
	INSERT INTO journal_entries (
		id, process_id, section_affected, title, description, created_at
	) VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		section_affected = excluded.section_affected,
		title = excluded.title,
		description = excluded.description
	`
	_, err := db.conn.ExecContext(ctx, query,
		e.ID,
		e.ProcessID,
		e.SectionAffected,
		e.Title,
		e.Description,
		toMillis(created),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert journal entry %s: %w", e.ID, err)
	}
	return nil
}

// ListUnlinkedJournalEntries returns the entries of a process that have no
// remote task yet, oldest first.
func (db *DB) ListUnlinkedJournalEntries(ctx context.Context, processID string) ([]*schema.JournalEntry, error) {
	return db.listJournal(ctx, `WHERE process_id = ? AND remote_task_url = ''`, processID)
}

// ListJournalEntries returns every entry of a process, oldest first.
func (db *DB) ListJournalEntries(ctx context.Context, processID string) ([]*schema.JournalEntry, error) {
	return db.listJournal(ctx, `WHERE process_id = ?`, processID)
}

func (db *DB) listJournal(ctx context.Context, where string, args ...any) ([]*schema.JournalEntry, error) {
	query := `
		SELECT id, process_id, section_affected, title, description,
		       remote_task_url, created_at
		FROM journal_entries ` + where + `
		ORDER BY created_at ASC, id ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal entries: %w", err)
	}
	defer rows.Close()

	var entries []*schema.JournalEntry
	for rows.Next() {
		var e schema.JournalEntry
		var createdAt int64
		if err := rows.Scan(
			&e.ID,
			&e.ProcessID,
			&e.SectionAffected,
			&e.Title,
			&e.Description,
			&e.RemoteTaskURL,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.CreatedAt = fromMillis(createdAt)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal entries: %w", err)
	}
	return entries, nil
}

// SetJournalEntryRemoteLink records the remote task that represents an entry.
func (db *DB) SetJournalEntryRemoteLink(ctx context.Context, id, url string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE journal_entries SET remote_task_url = ? WHERE id = ?`, url, id)
	if err != nil {
		return fmt.Errorf("failed to set remote link for journal entry %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("journal entry %s: %w", id, ErrNotFound)
	}
	return nil
}
