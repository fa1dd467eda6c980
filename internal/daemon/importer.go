package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/processkit/trackersync/internal/schema"
	psync "github.com/processkit/trackersync/internal/sync"
)

// Store is the subset of the local store an import writes to.
type Store interface {
	UpsertProcessContent(ctx context.Context, p *schema.ProcessRecord) error
	UpsertJournalEntry(ctx context.Context, e *schema.JournalEntry) error
}

// ImportResult describes one imported file.
type ImportResult struct {
	Path      string `json:"path"`
	ProcessID string `json:"processId"`
	Entries   int    `json:"entries"`
}

// Importer loads process files into a Store.
type Importer struct {
	store    Store
	notifier psync.Notifier
	logger   *log.Logger
}

// NewImporter creates an Importer. notifier and logger may be nil.
func NewImporter(st Store, notifier psync.Notifier, logger *log.Logger) *Importer {
	if logger == nil {
		logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	if notifier == nil {
		notifier = psync.NotifierFunc(func(psync.Event) {})
	}
	return &Importer{store: st, notifier: notifier, logger: logger}
}

// ImportFile reads path and upserts the process and its journal entries.
func (im *Importer) ImportFile(ctx context.Context, path string) (*ImportResult, error) {
	f, err := schema.ReadProcessFile(path)
	if err != nil {
		return nil, err
	}

	if err := im.store.UpsertProcessContent(ctx, f.Record()); err != nil {
		return nil, fmt.Errorf("failed to import process %s: %w", f.ID, err)
	}

	entries := f.Entries()
	for _, e := range entries {
		if err := im.store.UpsertJournalEntry(ctx, e); err != nil {
			return nil, fmt.Errorf("failed to import journal entry %s: %w", e.ID, err)
		}
	}

	im.logger.Printf("Imported %s: process %s, %d journal entries", filepath.Base(path), f.ID, len(entries))
	im.notifier.Notify(psync.Event{
		Type:      psync.EventProcessImported,
		ProcessID: f.ID,
		Message:   fmt.Sprintf("imported %s (%d journal entries)", filepath.Base(path), len(entries)),
		Timestamp: time.Now(),
	})

	return &ImportResult{Path: path, ProcessID: f.ID, Entries: len(entries)}, nil
}

// ImportDir imports every process file in dir. Files that fail are logged
// and skipped; a missing directory imports nothing.
func (im *Importer) ImportDir(ctx context.Context, dir string) ([]*ImportResult, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read processes directory: %w", err)
	}

	var results []*ImportResult
	for _, de := range dirEntries {
		if de.IsDir() || !schema.IsProcessFile(de.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res, err := im.ImportFile(ctx, filepath.Join(dir, de.Name()))
		if err != nil {
			im.logger.Printf("WARNING: skipping %s: %v", de.Name(), err)
			continue
		}
		results = append(results, res)
	}
	return results, nil
}
