package sync

import (
	"context"
	"fmt"
	"net/http"

	"github.com/processkit/trackersync/internal/tracker"
)

// fakeTracker is an in-memory tracker with fault injection.
type fakeTracker struct {
	projects map[string]*tracker.Project
	sections map[string][]tracker.Section // project id -> sections
	tasks    map[string]*fakeTask

	nextID int
	calls  map[string]int

	// errs fails every call of a method.
	errs map[string]error
	// sectionErrs fails CreateSection for a section name.
	sectionErrs map[string]error
	// taskErrs fails CreateTask for a task name.
	taskErrs map[string]error
	// moveErrs fails AddTaskToSection for a task name.
	moveErrs map[string]error
	// dropSections makes CreateTask ignore the requested section, leaving
	// placement to AddTaskToSection.
	dropSections bool
	// storeLimit makes the tracker silently cut notes to this length.
	storeLimit int
}

type fakeTask struct {
	tracker.Task
	ProjectID string
	SectionID string
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		projects:    make(map[string]*tracker.Project),
		sections:    make(map[string][]tracker.Section),
		tasks:       make(map[string]*fakeTask),
		calls:       make(map[string]int),
		errs:        make(map[string]error),
		sectionErrs: make(map[string]error),
		taskErrs:    make(map[string]error),
		moveErrs:    make(map[string]error),
	}
}

func trackerErr(kind tracker.Kind, status int) error {
	return &tracker.Error{Kind: kind, StatusCode: status, Message: http.StatusText(status)}
}

func (f *fakeTracker) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%d", prefix, f.nextID)
}

func (f *fakeTracker) enter(method string) error {
	f.calls[method]++
	return f.errs[method]
}

func (f *fakeTracker) stored(notes string) string {
	if f.storeLimit > 0 {
		r := []rune(notes)
		if len(r) > f.storeLimit {
			return string(r[:f.storeLimit])
		}
	}
	return notes
}

// mutations counts calls that change remote state.
func (f *fakeTracker) mutations() int {
	return f.calls["UpdateProject"] + f.calls["CreateProject"] + f.calls["CreateSection"] +
		f.calls["CreateTask"] + f.calls["UpdateTask"] + f.calls["AddTaskToSection"]
}

// deleteProject simulates a person deleting the project and its tasks.
func (f *fakeTracker) deleteProject(id string) {
	delete(f.projects, id)
	delete(f.sections, id)
	for tid, t := range f.tasks {
		if t.ProjectID == id {
			delete(f.tasks, tid)
		}
	}
}

func (f *fakeTracker) tasksIn(projectID string) []*fakeTask {
	var out []*fakeTask
	for _, t := range f.tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out
}

func (f *fakeTracker) taskNamed(name string) *fakeTask {
	for _, t := range f.tasks {
		if t.Name == name {
			return t
		}
	}
	return nil
}

func (f *fakeTracker) GetProject(_ context.Context, projectID string) (*tracker.Project, error) {
	if err := f.enter("GetProject"); err != nil {
		return nil, err
	}
	p, ok := f.projects[projectID]
	if !ok {
		return nil, trackerErr(tracker.KindNotFound, http.StatusNotFound)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeTracker) UpdateProject(_ context.Context, projectID, notes string) (*tracker.Project, error) {
	if err := f.enter("UpdateProject"); err != nil {
		return nil, err
	}
	p, ok := f.projects[projectID]
	if !ok {
		return nil, trackerErr(tracker.KindNotFound, http.StatusNotFound)
	}
	p.Notes = f.stored(notes)
	cp := *p
	return &cp, nil
}

func (f *fakeTracker) CreateProject(_ context.Context, req tracker.CreateProjectRequest) (*tracker.Project, error) {
	if err := f.enter("CreateProject"); err != nil {
		return nil, err
	}
	gid := f.id("p")
	p := &tracker.Project{
		GID:          gid,
		Name:         req.Name,
		Notes:        f.stored(req.Notes),
		PermalinkURL: "https://tracker.test/0/" + gid,
		Workspace:    &tracker.Ref{GID: req.WorkspaceID},
	}
	f.projects[gid] = p
	cp := *p
	return &cp, nil
}

func (f *fakeTracker) ListSections(_ context.Context, projectID string) ([]tracker.Section, error) {
	if err := f.enter("ListSections"); err != nil {
		return nil, err
	}
	if _, ok := f.projects[projectID]; !ok {
		return nil, trackerErr(tracker.KindNotFound, http.StatusNotFound)
	}
	return append([]tracker.Section(nil), f.sections[projectID]...), nil
}

func (f *fakeTracker) CreateSection(_ context.Context, projectID, name string) (*tracker.Section, error) {
	if err := f.enter("CreateSection"); err != nil {
		return nil, err
	}
	if err := f.sectionErrs[name]; err != nil {
		return nil, err
	}
	sec := tracker.Section{GID: f.id("s"), Name: name}
	f.sections[projectID] = append(f.sections[projectID], sec)
	return &sec, nil
}

func (f *fakeTracker) CreateTask(_ context.Context, req tracker.CreateTaskRequest) (*tracker.Task, error) {
	if err := f.enter("CreateTask"); err != nil {
		return nil, err
	}
	if err := f.taskErrs[req.Name]; err != nil {
		return nil, err
	}
	gid := f.id("t")
	t := &fakeTask{
		Task: tracker.Task{
			GID:          gid,
			Name:         req.Name,
			Notes:        f.stored(req.Notes),
			PermalinkURL: "https://tracker.test/0/" + req.ProjectID + "/" + gid,
		},
		ProjectID: req.ProjectID,
		SectionID: req.SectionID,
	}
	if f.dropSections {
		t.SectionID = ""
	}
	f.tasks[gid] = t
	cp := t.Task
	return &cp, nil
}

func (f *fakeTracker) UpdateTask(_ context.Context, taskID, name, notes string) (*tracker.Task, error) {
	if err := f.enter("UpdateTask"); err != nil {
		return nil, err
	}
	t, ok := f.tasks[taskID]
	if !ok {
		return nil, trackerErr(tracker.KindNotFound, http.StatusNotFound)
	}
	t.Name = name
	t.Notes = f.stored(notes)
	cp := t.Task
	return &cp, nil
}

func (f *fakeTracker) AddTaskToSection(_ context.Context, sectionID, taskID string) error {
	if err := f.enter("AddTaskToSection"); err != nil {
		return err
	}
	t, ok := f.tasks[taskID]
	if !ok {
		return trackerErr(tracker.KindNotFound, http.StatusNotFound)
	}
	if err := f.moveErrs[t.Name]; err != nil {
		return err
	}
	t.SectionID = sectionID
	return nil
}
