package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	psync "github.com/processkit/trackersync/internal/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncer struct {
	mu          sync.Mutex
	gotID       string
	gotOpts     psync.Options
	gotDeadline bool
	res         *psync.Result
	err         error
	// block makes Sync wait for its context to end.
	block bool
}

func (f *fakeSyncer) Sync(ctx context.Context, processID string, opts psync.Options) (*psync.Result, error) {
	if f.block {
		<-ctx.Done()
		return nil, fmt.Errorf("sync interrupted: %w", ctx.Err())
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotID = processID
	f.gotOpts = opts
	_, f.gotDeadline = ctx.Deadline()
	return f.res, f.err
}

func startServer(t *testing.T, syncer psync.Syncer) *Server {
	t.Helper()

	server := NewServer(&Config{
		Host:   "127.0.0.1",
		Port:   0,
		Syncer: syncer,
		Logger: log.New(io.Discard, "", 0),
	})
	require.NoError(t, server.Start())
	t.Cleanup(func() { server.Stop() })
	return server
}

// dial connects a client and consumes the hello message.
func dial(t *testing.T, ctx context.Context, server *Server) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	msg := readMessage(t, ctx, conn)
	require.Equal(t, MessageTypeHello, msg.Type)
	return conn
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(&Config{Host: "127.0.0.1", Port: 0, Logger: log.New(io.Discard, "", 0)})
	require.NoError(t, server.Start())

	assert.NotEmpty(t, server.GetAddr())
	assert.NoError(t, server.Stop())
}

func TestMultipleClients(t *testing.T) {
	server := startServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 3; i++ {
		dial(t, ctx, server)
	}
	assert.Equal(t, 3, server.ClientCount())
}

func TestEventBroadcast(t *testing.T) {
	server := startServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, server)

	state := psync.StateProvisioning
	server.Handler().Notify(psync.Event{
		Type:      psync.EventStateChange,
		ProcessID: "proc-1",
		State:     &state,
	})

	msg := readMessage(t, ctx, conn)
	assert.Equal(t, MessageType(psync.EventStateChange), msg.Type)

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "proc-1", got["process_id"])
	assert.Equal(t, "Provisioning", got["state"])
}

func TestTerminalEventsBroadcastStats(t *testing.T) {
	server := startServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, server)

	h := server.Handler()
	h.Notify(psync.Event{Type: psync.EventSyncStarted, ProcessID: "p"})
	h.Notify(psync.Event{Type: psync.EventSyncWarning, ProcessID: "p", Message: "section missing"})
	h.Notify(psync.Event{Type: psync.EventSyncComplete, ProcessID: "p", Result: &psync.Result{ProcessID: "p"}})

	var types []MessageType
	for i := 0; i < 4; i++ {
		types = append(types, readMessage(t, ctx, conn).Type)
	}
	assert.Equal(t, []MessageType{"sync_started", "sync_warning", "sync_complete", MessageTypeStats}, types)

	stats := h.GetStats()
	assert.Equal(t, 1, stats.Runs)
	assert.Equal(t, 1, stats.Warnings)
	assert.Equal(t, 1, stats.Completed)
	assert.NotNil(t, stats.LastEvent)
}

func TestHealthAndMetrics(t *testing.T) {
	server := startServer(t, nil)
	base := "http://" + server.GetAddr()

	resp, err := http.Get(base + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])

	resp2, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	defer resp2.Body.Close()
	body, _ := io.ReadAll(resp2.Body)
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestSyncTrigger(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		err        error
		wantStatus int
	}{
		{"ok", "?workspace=ws-9&force_new=true", nil, http.StatusOK},
		{"lock held", "", fmt.Errorf("proc-1: %w", psync.ErrSyncInProgress), http.StatusConflict},
		{"missing process", "", fmt.Errorf("proc-1: %w", psync.ErrProcessNotFound), http.StatusNotFound},
		{"no workspace", "", psync.ErrNoWorkspace, http.StatusUnprocessableEntity},
		{"other fatal", "", fmt.Errorf("failed to create project: boom"), http.StatusBadGateway},
		{"bad force_new", "?force_new=maybe", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncer := &fakeSyncer{
				res: &psync.Result{ProcessID: "proc-1", Action: psync.ActionCreated, Warnings: []string{}},
				err: tt.err,
			}
			if tt.err != nil {
				syncer.res = nil
			}
			server := startServer(t, syncer)

			url := "http://" + server.GetAddr() + "/api/processes/proc-1/sync" + tt.query
			resp, err := http.Post(url, "application/json", strings.NewReader(""))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "proc-1", body["processId"])
				syncer.mu.Lock()
				defer syncer.mu.Unlock()
				assert.Equal(t, "proc-1", syncer.gotID)
				assert.Equal(t, "ws-9", syncer.gotOpts.TargetWorkspaceID)
				assert.True(t, syncer.gotOpts.ForceNew)
				assert.True(t, syncer.gotDeadline, "triggered syncs must be bounded")
			} else {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestSyncTrigger_NotConfigured(t *testing.T) {
	server := startServer(t, nil)

	resp, err := http.Post("http://"+server.GetAddr()+"/api/processes/p/sync", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSyncTrigger_Timeout(t *testing.T) {
	server := NewServer(&Config{
		Host:        "127.0.0.1",
		Port:        0,
		Syncer:      &fakeSyncer{block: true},
		SyncTimeout: 50 * time.Millisecond,
		Logger:      log.New(io.Discard, "", 0),
	})
	require.NoError(t, server.Start())
	t.Cleanup(func() { server.Stop() })

	start := time.Now()
	resp, err := http.Post("http://"+server.GetAddr()+"/api/processes/p/sync", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Less(t, time.Since(start), 5*time.Second)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "deadline exceeded")
}
