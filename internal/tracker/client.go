// Package tracker is a thin request layer over the external project
// tracker's object API (projects, sections, tasks).
//
// Every call is a single authenticated HTTP request. The client never retries:
// failures come back as *Error values classified into a small set of kinds
// (see errors.go) and the caller decides what to do with them.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the tracker REST root.
	DefaultBaseURL = "https://app.asana.com/api/1.0"

	// DefaultAppURL is the web UI root used to build permalinks when the
	// tracker omits them.
	DefaultAppURL = "https://app.asana.com"

	// maxResponseSize limits the response body to prevent memory exhaustion.
	maxResponseSize = 10 * 1024 * 1024

	// sectionPageSize is the page size used when listing sections.
	sectionPageSize = 100
)

const (
	projectFields = "name,notes,permalink_url,workspace.name"
	taskFields    = "name,notes,permalink_url"
)

// Config holds client configuration.
type Config struct {
	// BaseURL is the REST root (default: DefaultBaseURL).
	BaseURL string

	// AppURL is the web UI root for synthesized permalinks (default: DefaultAppURL).
	AppURL string

	// Token is the personal access token sent as a bearer credential.
	Token string

	// Timeout bounds each request when HTTPClient is nil (default: 30s).
	Timeout time.Duration

	// HTTPClient overrides the transport (optional).
	HTTPClient *http.Client

	// Logger for failed calls (default: stderr logger).
	Logger *log.Logger
}

// Client makes authenticated calls against the tracker. It holds no state
// beyond its configuration and is safe for concurrent use.
type Client struct {
	baseURL    string
	appURL     string
	token      string
	httpClient *http.Client
	logger     *log.Logger
}

// New creates a Client. A missing token is reported as ErrUnauthorized so the
// caller can fail before any remote write.
func New(config Config) (*Client, error) {
	if strings.TrimSpace(config.Token) == "" {
		return nil, &Error{Kind: KindUnauthorized, Message: "no tracker token configured"}
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.AppURL == "" {
		config.AppURL = DefaultAppURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: config.Timeout}
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[tracker] ", log.LstdFlags)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		appURL:     strings.TrimSuffix(config.AppURL, "/"),
		token:      config.Token,
		httpClient: config.HTTPClient,
		logger:     config.Logger,
	}, nil
}

type envelope struct {
	Data     json.RawMessage `json:"data"`
	NextPage *struct {
		Offset string `json:"offset"`
	} `json:"next_page,omitempty"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

// Call performs one request and returns the "data" member of the response.
// body, when non-nil, is wrapped as {"data": body}.
func (c *Client) Call(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	env, err := c.do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*envelope, error) {
	start := time.Now()
	env, err := c.roundTrip(ctx, method, path, body)
	requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
		c.logger.Printf("WARNING: %v", err)
	}
	requestsTotal.WithLabelValues(method, outcome).Inc()

	return env, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any) (*envelope, error) {
	fail := func(kind Kind, status int, msg string, cause error) *Error {
		return &Error{Kind: kind, StatusCode: status, Message: msg, Method: method, Path: stripQuery(path), Err: cause}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(map[string]any{"data": body})
		if err != nil {
			return nil, fail(KindOther, 0, "failed to marshal request body", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fail(KindOther, 0, "failed to create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fail(KindTransport, 0, "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fail(KindTransport, resp.StatusCode, "failed to read response body", err)
	}

	var env envelope
	if len(data) > 0 {
		if jerr := json.Unmarshal(data, &env); jerr != nil && resp.StatusCode < 300 {
			return nil, fail(KindOther, resp.StatusCode, "failed to parse response", jerr)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		te := fail(classifyStatus(resp.StatusCode), resp.StatusCode, errorMessage(&env, data), nil)
		if te.Kind == KindRateLimited {
			if secs, perr := strconv.Atoi(resp.Header.Get("Retry-After")); perr == nil {
				te.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, te
	}

	return &env, nil
}

func errorMessage(env *envelope, raw []byte) string {
	if len(env.Errors) > 0 {
		msgs := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			msgs = append(msgs, e.Message)
		}
		return strings.Join(msgs, "; ")
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	if msg == "" {
		msg = "empty error response"
	}
	return msg
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

func decode[T any](data json.RawMessage, method, path string) (*T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &Error{Kind: KindOther, Message: "failed to decode response data", Method: method, Path: stripQuery(path), Err: err}
	}
	return &out, nil
}

func withFields(path, fields string) string {
	return path + "?opt_fields=" + url.QueryEscape(fields)
}

// GetProject reads a project. A deleted project yields ErrNotFound.
func (c *Client) GetProject(ctx context.Context, projectID string) (*Project, error) {
	path := withFields("/projects/"+url.PathEscape(projectID), projectFields)
	data, err := c.Call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	p, err := decode[Project](data, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	c.fillProjectURL(p)
	return p, nil
}

// UpdateProject replaces the project notes and returns the stored project.
func (c *Client) UpdateProject(ctx context.Context, projectID, notes string) (*Project, error) {
	path := withFields("/projects/"+url.PathEscape(projectID), projectFields)
	data, err := c.Call(ctx, http.MethodPut, path, notesBody{Notes: notes})
	if err != nil {
		return nil, err
	}
	p, err := decode[Project](data, http.MethodPut, path)
	if err != nil {
		return nil, err
	}
	c.fillProjectURL(p)
	return p, nil
}

// CreateProject creates a project in a workspace.
func (c *Client) CreateProject(ctx context.Context, req CreateProjectRequest) (*Project, error) {
	path := withFields("/projects", projectFields)
	data, err := c.Call(ctx, http.MethodPost, path, createProjectBody{
		Name:      req.Name,
		Notes:     req.Notes,
		Workspace: req.WorkspaceID,
	})
	if err != nil {
		return nil, err
	}
	p, err := decode[Project](data, http.MethodPost, path)
	if err != nil {
		return nil, err
	}
	if p.Workspace == nil && req.WorkspaceID != "" {
		p.Workspace = &Ref{GID: req.WorkspaceID}
	}
	c.fillProjectURL(p)
	return p, nil
}

// ListSections returns every section of a project, following pagination.
func (c *Client) ListSections(ctx context.Context, projectID string) ([]Section, error) {
	var sections []Section
	offset := ""
	for {
		q := url.Values{}
		q.Set("opt_fields", "name")
		q.Set("limit", strconv.Itoa(sectionPageSize))
		if offset != "" {
			q.Set("offset", offset)
		}
		path := "/projects/" + url.PathEscape(projectID) + "/sections?" + q.Encode()

		env, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		page, err := decode[[]Section](env.Data, http.MethodGet, path)
		if err != nil {
			return nil, err
		}
		sections = append(sections, *page...)

		if env.NextPage == nil || env.NextPage.Offset == "" {
			return sections, nil
		}
		offset = env.NextPage.Offset
	}
}

// CreateSection adds a named section to a project.
func (c *Client) CreateSection(ctx context.Context, projectID, name string) (*Section, error) {
	path := "/projects/" + url.PathEscape(projectID) + "/sections"
	data, err := c.Call(ctx, http.MethodPost, path, nameBody{Name: name})
	if err != nil {
		return nil, err
	}
	return decode[Section](data, http.MethodPost, path)
}

// CreateTask creates a task in a project, requesting section membership.
func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (*Task, error) {
	body := createTaskBody{
		Name:      req.Name,
		Notes:     req.Notes,
		Projects:  []string{req.ProjectID},
		Workspace: req.WorkspaceID,
	}
	if req.SectionID != "" {
		body.Memberships = []membership{{Project: req.ProjectID, Section: req.SectionID}}
	}

	path := withFields("/tasks", taskFields)
	data, err := c.Call(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	t, err := decode[Task](data, http.MethodPost, path)
	if err != nil {
		return nil, err
	}
	if t.PermalinkURL == "" {
		t.PermalinkURL = fmt.Sprintf("%s/0/%s/%s", c.appURL, req.ProjectID, t.GID)
	}
	return t, nil
}

// UpdateTask renames a task and replaces its notes.
func (c *Client) UpdateTask(ctx context.Context, taskID, name, notes string) (*Task, error) {
	path := withFields("/tasks/"+url.PathEscape(taskID), taskFields)
	data, err := c.Call(ctx, http.MethodPut, path, updateTaskBody{Name: name, Notes: notes})
	if err != nil {
		return nil, err
	}
	return decode[Task](data, http.MethodPut, path)
}

// AddTaskToSection moves a task into a section.
func (c *Client) AddTaskToSection(ctx context.Context, sectionID, taskID string) error {
	path := "/sections/" + url.PathEscape(sectionID) + "/addTask"
	_, err := c.Call(ctx, http.MethodPost, path, addTaskBody{Task: taskID})
	return err
}

func (c *Client) fillProjectURL(p *Project) {
	if p.PermalinkURL == "" && p.GID != "" {
		p.PermalinkURL = fmt.Sprintf("%s/0/%s", c.appURL, p.GID)
	}
}
