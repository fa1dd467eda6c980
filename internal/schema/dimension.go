// Package schema provides data structures for process records, improvement
// journal entries, and the process files they are imported from.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Dimension is one of the four fixed documentation categories of a process.
type Dimension int

const (
	Approach Dimension = iota
	Deployment
	Learning
	Integration

	numDimensions = 4
)

// Dimensions lists every dimension in sync order.
var Dimensions = [numDimensions]Dimension{Approach, Deployment, Learning, Integration}

var dimensionNames = [numDimensions]string{"approach", "deployment", "learning", "integration"}

var dimensionLabels = [numDimensions]string{"Approach", "Deployment", "Learning", "Integration"}

// String returns the lowercase key used in storage and files.
func (d Dimension) String() string {
	if !d.Valid() {
		return fmt.Sprintf("dimension(%d)", int(d))
	}
	return dimensionNames[d]
}

// Label returns the human-readable name.
func (d Dimension) Label() string {
	if !d.Valid() {
		return d.String()
	}
	return dimensionLabels[d]
}

// Valid reports whether d is one of the four known dimensions.
func (d Dimension) Valid() bool {
	return d >= 0 && d < numDimensions
}

// ParseDimension maps a case-insensitive name to a Dimension.
func ParseDimension(s string) (Dimension, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range dimensionNames {
		if name == s {
			return Dimension(i), true
		}
	}
	return 0, false
}

// TaskIDs holds the remote task identifier for each dimension.
// An empty slot means the dimension has not been synced yet; it never means
// the remote task was deleted.
type TaskIDs [numDimensions]string

// Get returns the remote id for d and whether one is recorded.
func (t TaskIDs) Get(d Dimension) (string, bool) {
	if !d.Valid() || t[d] == "" {
		return "", false
	}
	return t[d], true
}

// Set records id for d.
func (t *TaskIDs) Set(d Dimension, id string) {
	if d.Valid() {
		t[d] = id
	}
}

// Clear forgets the id for d.
func (t *TaskIDs) Clear(d Dimension) {
	if d.Valid() {
		t[d] = ""
	}
}

// Reset forgets every id.
func (t *TaskIDs) Reset() {
	*t = TaskIDs{}
}

// Len returns the number of recorded ids.
func (t TaskIDs) Len() int {
	n := 0
	for _, id := range t {
		if id != "" {
			n++
		}
	}
	return n
}

// MarshalJSON encodes the recorded ids as an object keyed by dimension name.
// Absent dimensions are omitted.
func (t TaskIDs) MarshalJSON() ([]byte, error) {
	m := make(map[string]string, numDimensions)
	for _, d := range Dimensions {
		if id, ok := t.Get(d); ok {
			m[d.String()] = id
		}
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes an object keyed by dimension name.
// Unknown keys are rejected so a corrupt column is noticed early.
func (t *TaskIDs) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("failed to parse task ids: %w", err)
	}
	var out TaskIDs
	for k, v := range m {
		d, ok := ParseDimension(k)
		if !ok {
			return fmt.Errorf("unknown dimension %q in task ids", k)
		}
		out[d] = v
	}
	*t = out
	return nil
}

// Documentation holds the free-text content for each dimension.
type Documentation [numDimensions]string

// Get returns the content for d.
func (doc Documentation) Get(d Dimension) string {
	if !d.Valid() {
		return ""
	}
	return doc[d]
}

// Set stores content for d.
func (doc *Documentation) Set(d Dimension, content string) {
	if d.Valid() {
		doc[d] = content
	}
}
