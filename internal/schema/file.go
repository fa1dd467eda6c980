package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProcessFile is the on-disk import format for a process and its improvement
// journal. Files are stored as processes/{id}.json, {id}.yaml or {id}.yml.
//
// Sync fields are deliberately absent: they are owned by the local store and
// written back only by the sync engine.
type ProcessFile struct {
	ID            string            `json:"id" yaml:"id"`
	Name          string            `json:"name" yaml:"name"`
	Charter       string            `json:"charter,omitempty" yaml:"charter,omitempty"`
	WorkspaceID   string            `json:"workspace_id,omitempty" yaml:"workspace_id,omitempty"`
	Documentation map[string]string `json:"documentation,omitempty" yaml:"documentation,omitempty"`
	Journal       []JournalEntry    `json:"journal,omitempty" yaml:"journal,omitempty"`
}

// Validate checks the file's process fields, documentation keys and journal.
func (f *ProcessFile) Validate() error {
	rec := f.Record()
	if err := rec.Validate(); err != nil {
		return err
	}
	for key := range f.Documentation {
		if _, ok := ParseDimension(key); !ok {
			return fmt.Errorf("unknown documentation dimension %q", key)
		}
	}
	seen := make(map[string]bool, len(f.Journal))
	for i := range f.Journal {
		e := &f.Journal[i]
		if err := e.Validate(); err != nil {
			return fmt.Errorf("journal entry %d: %w", i, err)
		}
		if seen[e.ID] {
			return fmt.Errorf("journal entry %d: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = true
	}
	return nil
}

// Record converts the file into a ProcessRecord carrying content fields only.
func (f *ProcessFile) Record() *ProcessRecord {
	rec := &ProcessRecord{
		ID:                f.ID,
		Name:              f.Name,
		DescriptionSource: f.Charter,
		WorkspaceID:       f.WorkspaceID,
	}
	for key, content := range f.Documentation {
		if d, ok := ParseDimension(key); ok {
			rec.Documentation.Set(d, content)
		}
	}
	return rec
}

// Entries returns the journal entries with ProcessID and CreatedAt filled in.
func (f *ProcessFile) Entries() []*JournalEntry {
	now := time.Now().UTC()
	out := make([]*JournalEntry, 0, len(f.Journal))
	for i := range f.Journal {
		e := f.Journal[i]
		e.ProcessID = f.ID
		e.RemoteTaskURL = ""
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		out = append(out, &e)
	}
	return out
}

// Filename returns the canonical filename for this process: {id}.json
func (f *ProcessFile) Filename() string {
	return fmt.Sprintf("%s.json", f.ID)
}

// IsProcessFile reports whether path has an extension ReadProcessFile accepts.
func IsProcessFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// ReadProcessFile reads and parses a process file, choosing the decoder from
// the file extension.
func ReadProcessFile(path string) (*ProcessFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read process file %s: %w", path, err)
	}

	var f ProcessFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	case ".json":
		err = json.Unmarshal(data, &f)
	default:
		return nil, fmt.Errorf("unsupported process file extension: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse process file %s: %w", path, err)
	}

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid process file %s: %w", path, err)
	}

	return &f, nil
}

// WriteProcessFile writes a ProcessFile to dir/{id}.json.
func WriteProcessFile(dir string, f *ProcessFile) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("cannot write invalid process file: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create processes directory: %w", err)
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal process %s: %w", f.ID, err)
	}

	path := filepath.Join(dir, f.Filename())
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write process file %s: %w", path, err)
	}

	return nil
}
