package sync

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/processkit/trackersync/internal/schema"
	"github.com/processkit/trackersync/internal/tracker"
)

// DefaultStages are the canonical section names, one per dimension in
// schema.Dimensions order. The last one is the final stage that receives
// backfilled journal entries.
var DefaultStages = []string{"Plan", "Execute", "Evaluate", "Improve"}

// finalStageSynonyms are earlier names of the final stage still found in
// older projects. Compared after normalization.
var finalStageSynonyms = []string{
	"improve",
	"improvement",
	"improvements",
	"improvement log",
	"act",
	"integrate",
	"integration",
	"refine",
}

// normalizeStage lowercases a section name, drops punctuation and collapses
// whitespace, so "Improvement-Log " and "improvement log" compare equal.
func normalizeStage(name string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '/':
			space = true
		}
	}
	return b.String()
}

// Stages is the ordered list of canonical stage names.
type Stages []string

func (s Stages) validate() error {
	if len(s) != len(schema.Dimensions) {
		return fmt.Errorf("expected %d stages, got %d", len(schema.Dimensions), len(s))
	}
	seen := make(map[string]bool, len(s))
	for _, name := range s {
		key := normalizeStage(name)
		if key == "" {
			return fmt.Errorf("stage name %q is empty after normalization", name)
		}
		if seen[key] {
			return fmt.Errorf("duplicate stage name %q", name)
		}
		seen[key] = true
	}
	return nil
}

// For returns the stage a dimension's task is filed under.
func (s Stages) For(d schema.Dimension) string {
	return s[int(d)]
}

// Final returns the stage that receives journal entries.
func (s Stages) Final() string {
	return s[len(s)-1]
}

// SectionIndex maps normalized section names to section ids.
type SectionIndex struct {
	final string
	byKey map[string]string
}

// NewSectionIndex builds the index from the project's sections. Exact
// (normalized) names win; if the final stage has no exact match, the first
// section named by one of its historical synonyms stands in for it.
func NewSectionIndex(stages Stages, sections []tracker.Section) *SectionIndex {
	idx := &SectionIndex{
		final: normalizeStage(stages.Final()),
		byKey: make(map[string]string, len(sections)),
	}
	for _, sec := range sections {
		key := normalizeStage(sec.Name)
		if _, ok := idx.byKey[key]; !ok && key != "" {
			idx.byKey[key] = sec.GID
		}
	}
	if _, ok := idx.byKey[idx.final]; !ok {
		for _, sec := range sections {
			if isFinalSynonym(normalizeStage(sec.Name)) {
				idx.byKey[idx.final] = sec.GID
				break
			}
		}
	}
	return idx
}

func isFinalSynonym(key string) bool {
	for _, s := range finalStageSynonyms {
		if key == s {
			return true
		}
	}
	return false
}

// Lookup returns the section id for a stage name, or "".
func (idx *SectionIndex) Lookup(stage string) string {
	return idx.byKey[normalizeStage(stage)]
}

// Add records a section created during this sync.
func (idx *SectionIndex) Add(stage, gid string) {
	idx.byKey[normalizeStage(stage)] = gid
}

// Final returns the section id of the final stage, or "".
func (idx *SectionIndex) Final() string {
	return idx.byKey[idx.final]
}
