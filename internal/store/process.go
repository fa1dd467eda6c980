package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/processkit/trackersync/internal/schema"
)

const processColumns = `id, name, description_source,
	doc_approach, doc_deployment, doc_learning, doc_integration,
	remote_project_id, remote_project_url, workspace_id, remote_task_ids,
	updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProcess(row rowScanner) (*schema.ProcessRecord, error) {
	var p schema.ProcessRecord
	var docs [4]string
	var taskIDs string
	var updatedAt int64

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.DescriptionSource,
		&docs[0], &docs[1], &docs[2], &docs[3],
		&p.RemoteProjectID,
		&p.RemoteProjectURL,
		&p.WorkspaceID,
		&taskIDs,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	for i, d := range schema.Dimensions {
		p.Documentation.Set(d, docs[i])
	}
	if taskIDs != "" {
		if err := json.Unmarshal([]byte(taskIDs), &p.RemoteTaskIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal remote task ids: %w", err)
		}
	}
	p.UpdatedAt = fromMillis(updatedAt)

	return &p, nil
}

// GetProcess loads a process record. A missing process yields ErrNotFound.
func (db *DB) GetProcess(ctx context.Context, id string) (*schema.ProcessRecord, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+processColumns+` FROM processes WHERE id = ?`, id)
	p, err := scanProcess(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("process %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get process %s: %w", id, err)
	}
	return p, nil
}

// ListProcesses returns every process ordered by name.
func (db *DB) ListProcesses(ctx context.Context) ([]*schema.ProcessRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+processColumns+` FROM processes ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query processes: %w", err)
	}
	defer rows.Close()

	var out []*schema.ProcessRecord
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan process: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating processes: %w", err)
	}
	return out, nil
}

// UpsertProcessContent inserts a process or updates its content fields.
// Sync fields of an existing row are left untouched, except that a stored
// empty workspace is filled from the incoming record.
func (db *DB) UpsertProcessContent(ctx context.Context, p *schema.ProcessRecord) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid process: %w", err)
	}

	now := toMillis(db.now())
	query := `
	INSERT INTO processes (
		id, name, description_source,
		doc_approach, doc_deployment, doc_learning, doc_integration,
		workspace_id, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		description_source = excluded.description_source,
		doc_approach = excluded.doc_approach,
		doc_deployment = excluded.doc_deployment,
		doc_learning = excluded.doc_learning,
		doc_integration = excluded.doc_integration,
		workspace_id = CASE WHEN processes.workspace_id = ''
			THEN excluded.workspace_id ELSE processes.workspace_id END,
		updated_at = excluded.updated_at
	`

	_, err := db.conn.ExecContext(ctx, query,
		p.ID,
		p.Name,
		p.DescriptionSource,
		p.Documentation.Get(schema.Approach),
		p.Documentation.Get(schema.Deployment),
		p.Documentation.Get(schema.Learning),
		p.Documentation.Get(schema.Integration),
		p.WorkspaceID,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert process %s: %w", p.ID, err)
	}
	return nil
}

// UpdateProcessSyncFields persists the identifiers written back by a sync.
func (db *DB) UpdateProcessSyncFields(ctx context.Context, id string, fields schema.SyncFields) error {
	taskIDs, err := json.Marshal(fields.RemoteTaskIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal remote task ids: %w", err)
	}

	query := `
	UPDATE processes SET
		remote_project_id = ?,
		remote_project_url = ?,
		workspace_id = ?,
		remote_task_ids = ?,
		updated_at = ?
	WHERE id = ?
	`
	res, err := db.conn.ExecContext(ctx, query,
		fields.RemoteProjectID,
		fields.RemoteProjectURL,
		fields.WorkspaceID,
		string(taskIDs),
		toMillis(db.now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update sync fields for %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("process %s: %w", id, ErrNotFound)
	}
	return nil
}
