package schema

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// ProcessRecord is a locally owned process with its documentation and the
// identifiers that link it to a project in the tracker.
type ProcessRecord struct {
	// ===== Identification =====
	ID   string `json:"id"`
	Name string `json:"name"`

	// ===== Content =====
	// DescriptionSource is the charter/purpose text used for the remote
	// project description.
	DescriptionSource string        `json:"description_source,omitempty"`
	Documentation     Documentation `json:"-"`

	// ===== Sync fields (written back by the sync engine) =====
	RemoteProjectID  string  `json:"remote_project_id,omitempty"`
	RemoteProjectURL string  `json:"remote_project_url,omitempty"`
	RemoteTaskIDs    TaskIDs `json:"remote_task_ids"`
	WorkspaceID      string  `json:"workspace_id,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Linked reports whether the record carries a remote project id.
func (p *ProcessRecord) Linked() bool {
	return p.RemoteProjectID != ""
}

// Unlink clears every remote identifier. The workspace is kept because it
// still names where a replacement project belongs.
func (p *ProcessRecord) Unlink() {
	p.RemoteProjectID = ""
	p.RemoteProjectURL = ""
	p.RemoteTaskIDs.Reset()
}

// SyncFields returns the subset of the record the sync engine writes back.
func (p *ProcessRecord) SyncFields() SyncFields {
	return SyncFields{
		RemoteProjectID:  p.RemoteProjectID,
		RemoteProjectURL: p.RemoteProjectURL,
		WorkspaceID:      p.WorkspaceID,
		RemoteTaskIDs:    p.RemoteTaskIDs,
	}
}

// Validate checks if the ProcessRecord has valid field values.
func (p *ProcessRecord) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if len(p.Name) > 500 {
		return fmt.Errorf("name must be 500 characters or less (got %d)", len(p.Name))
	}
	return nil
}

// SyncFields are the columns UpdateProcessSyncFields persists.
type SyncFields struct {
	RemoteProjectID  string
	RemoteProjectURL string
	WorkspaceID      string
	RemoteTaskIDs    TaskIDs
}

// Charter is the journal section name used for entries that change the
// process charter rather than one of the documentation dimensions.
const Charter = "charter"

// JournalEntry is one entry of a process's improvement journal.
type JournalEntry struct {
	ID              string    `json:"id" yaml:"id"`
	ProcessID       string    `json:"process_id" yaml:"-"`
	SectionAffected string    `json:"section_affected" yaml:"section_affected"`
	Title           string    `json:"title" yaml:"title"`
	Description     string    `json:"description,omitempty" yaml:"description,omitempty"`
	RemoteTaskURL   string    `json:"remote_task_url,omitempty" yaml:"-"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at,omitempty"`
}

// Backfilled reports whether a remote task already represents this entry.
func (e *JournalEntry) Backfilled() bool {
	return e.RemoteTaskURL != ""
}

// SectionLabel returns the display label for the affected section.
// Unknown sections are title-cased as-is.
func (e *JournalEntry) SectionLabel() string {
	if d, ok := ParseDimension(e.SectionAffected); ok {
		return d.Label()
	}
	s := strings.TrimSpace(e.SectionAffected)
	if s == "" {
		return "General"
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// Validate checks if the JournalEntry has valid field values.
func (e *JournalEntry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if len(e.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(e.Title))
	}
	return nil
}
