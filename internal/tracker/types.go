package tracker

// Ref is a compact reference to a remote object.
type Ref struct {
	GID  string `json:"gid"`
	Name string `json:"name,omitempty"`
}

// Project is a remote project.
type Project struct {
	GID          string `json:"gid"`
	Name         string `json:"name"`
	Notes        string `json:"notes"`
	PermalinkURL string `json:"permalink_url,omitempty"`
	Workspace    *Ref   `json:"workspace,omitempty"`
}

// WorkspaceID returns the project's workspace gid, if the tracker sent one.
func (p *Project) WorkspaceID() string {
	if p == nil || p.Workspace == nil {
		return ""
	}
	return p.Workspace.GID
}

// Section is a named column/stage inside a project.
type Section struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

// Task is a remote task.
type Task struct {
	GID          string `json:"gid"`
	Name         string `json:"name"`
	Notes        string `json:"notes"`
	PermalinkURL string `json:"permalink_url,omitempty"`
}

// CreateProjectRequest describes a project to create.
type CreateProjectRequest struct {
	Name        string
	Notes       string
	WorkspaceID string
}

// CreateTaskRequest describes a task to create in a project section.
type CreateTaskRequest struct {
	Name        string
	Notes       string
	ProjectID   string
	SectionID   string
	WorkspaceID string // optional; some tracker configurations require it
}

type membership struct {
	Project string `json:"project"`
	Section string `json:"section,omitempty"`
}

type createProjectBody struct {
	Name      string `json:"name"`
	Notes     string `json:"notes"`
	Workspace string `json:"workspace"`
}

type createTaskBody struct {
	Name        string       `json:"name"`
	Notes       string       `json:"notes"`
	Projects    []string     `json:"projects"`
	Memberships []membership `json:"memberships,omitempty"`
	Workspace   string       `json:"workspace,omitempty"`
}

type updateTaskBody struct {
	Name  string `json:"name"`
	Notes string `json:"notes"`
}

type notesBody struct {
	Notes string `json:"notes"`
}

type nameBody struct {
	Name string `json:"name"`
}

type addTaskBody struct {
	Task string `json:"task"`
}
