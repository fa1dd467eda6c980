package schema

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestParseDimension(t *testing.T) {
	tests := []struct {
		in   string
		want Dimension
		ok   bool
	}{
		{"approach", Approach, true},
		{"Deployment", Deployment, true},
		{"  LEARNING ", Learning, true},
		{"integration", Integration, true},
		{"charter", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseDimension(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("ParseDimension(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestTaskIDs_AbsentMeansUnsynced(t *testing.T) {
	var ids TaskIDs
	if _, ok := ids.Get(Learning); ok {
		t.Fatal("zero TaskIDs reported a recorded id")
	}

	ids.Set(Learning, "123")
	if id, ok := ids.Get(Learning); !ok || id != "123" {
		t.Errorf("Get(Learning) = %q, %v; want 123, true", id, ok)
	}
	if ids.Len() != 1 {
		t.Errorf("Len() = %d, want 1", ids.Len())
	}

	ids.Clear(Learning)
	if ids.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", ids.Len())
	}

	// Out-of-range dimensions are ignored rather than panicking.
	ids.Set(Dimension(9), "x")
	if _, ok := ids.Get(Dimension(9)); ok {
		t.Error("invalid dimension accepted")
	}
}

func TestTaskIDs_JSON(t *testing.T) {
	var ids TaskIDs
	ids.Set(Approach, "a1")
	ids.Set(Integration, "i1")

	data, err := json.Marshal(ids)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"approach":"a1","integration":"i1"}` {
		t.Errorf("Marshal = %s", data)
	}

	var back TaskIDs
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back != ids {
		t.Errorf("round trip = %v, want %v", back, ids)
	}

	if err := json.Unmarshal([]byte(`{"workflow":"w"}`), &back); err == nil {
		t.Error("expected error for unknown dimension key")
	}
}

func TestProcessRecord_Unlink(t *testing.T) {
	rec := &ProcessRecord{
		ID:               "p1",
		Name:             "Onboarding",
		RemoteProjectID:  "proj",
		RemoteProjectURL: "https://tracker/proj",
		WorkspaceID:      "ws",
	}
	rec.RemoteTaskIDs.Set(Approach, "t1")

	rec.Unlink()

	if rec.Linked() || rec.RemoteProjectURL != "" || rec.RemoteTaskIDs.Len() != 0 {
		t.Errorf("Unlink left remote state: %+v", rec)
	}
	if rec.WorkspaceID != "ws" {
		t.Errorf("Unlink cleared workspace")
	}
}

func TestJournalEntry_SectionLabel(t *testing.T) {
	tests := map[string]string{
		"learning": "Learning",
		"charter":  "Charter",
		"":         "General",
		"ÉTAPE":    "Étape",
	}
	for in, want := range tests {
		e := &JournalEntry{SectionAffected: in}
		if got := e.SectionLabel(); got != want {
			t.Errorf("SectionLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReadProcessFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p1.yaml")
	content := `id: p1
name: Onboarding
charter: Get new hires productive.
documentation:
  approach: Buddy system
  learning: Quarterly survey
journal:
  - id: j1
    section_affected: approach
    title: Added checklist
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	f, err := ReadProcessFile(path)
	if err != nil {
		t.Fatalf("ReadProcessFile failed: %v", err)
	}

	rec := f.Record()
	if rec.DescriptionSource != "Get new hires productive." {
		t.Errorf("charter = %q", rec.DescriptionSource)
	}
	if rec.Documentation.Get(Approach) != "Buddy system" {
		t.Errorf("approach = %q", rec.Documentation.Get(Approach))
	}
	if rec.Documentation.Get(Deployment) != "" {
		t.Errorf("deployment should be empty")
	}

	entries := f.Entries()
	if len(entries) != 1 || entries[0].ProcessID != "p1" || entries[0].CreatedAt.IsZero() {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestReadProcessFile_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"missing name", "a.json", `{"id":"a"}`},
		{"bad dimension", "b.json", `{"id":"b","name":"B","documentation":{"workflow":"x"}}`},
		{"duplicate journal id", "c.json", `{"id":"c","name":"C","journal":[{"id":"j","title":"x"},{"id":"j","title":"y"}]}`},
		{"bad extension", "d.txt", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write file: %v", err)
			}
			if _, err := ReadProcessFile(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestWriteProcessFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	f := &ProcessFile{ID: "p1", Name: "Process p1", Documentation: map[string]string{"learning": "Retro notes"}}
	if err := WriteProcessFile(dir, f); err != nil {
		t.Fatalf("WriteProcessFile failed: %v", err)
	}

	got, err := ReadProcessFile(filepath.Join(dir, "p1.json"))
	if err != nil {
		t.Fatalf("ReadProcessFile failed: %v", err)
	}
	if got.Record().Documentation.Get(Learning) != "Retro notes" {
		t.Errorf("documentation lost: %+v", got.Documentation)
	}

	if err := WriteProcessFile(dir, &ProcessFile{ID: "p2"}); err == nil {
		t.Error("expected error writing a file without a name")
	}
}
