package dashboard

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	psync "github.com/processkit/trackersync/internal/sync"
)

// StatsData contains running totals since the server started.
type StatsData struct {
	Runs      int        `json:"runs"`
	Completed int        `json:"completed"`
	Failed    int        `json:"failed"`
	Warnings  int        `json:"warnings"`
	Imports   int        `json:"imports"`
	LastEvent *time.Time `json:"last_event,omitempty"`
}

// Handler turns sync lifecycle events into dashboard messages. It
// implements the sync Notifier interface.
type Handler struct {
	server *Server
	logger *log.Logger

	mu    sync.Mutex
	stats StatsData
}

// NewHandler creates a new event handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{server: server, logger: logger}
}

// Notify broadcasts e to every client. Terminal events are followed by a
// stats message.
func (h *Handler) Notify(e psync.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Printf("Failed to marshal %s event: %v", e.Type, err)
		return
	}

	h.server.Broadcast(Message{
		Type:      MessageType(e.Type),
		Timestamp: e.Timestamp,
		Data:      data,
	})

	if h.record(e) {
		h.broadcastStats()
	}
}

// record updates the running totals and reports whether they changed in a
// way worth broadcasting.
func (h *Handler) record(e psync.Event) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	ts := e.Timestamp
	h.stats.LastEvent = &ts

	switch e.Type {
	case psync.EventSyncStarted:
		h.stats.Runs++
	case psync.EventSyncWarning:
		h.stats.Warnings++
	case psync.EventSyncComplete:
		h.stats.Completed++
		return true
	case psync.EventSyncFailed:
		h.stats.Failed++
		return true
	case psync.EventProcessImported:
		h.stats.Imports++
		return true
	}
	return false
}

func (h *Handler) broadcastStats() {
	data, err := json.Marshal(h.GetStats())
	if err != nil {
		h.logger.Printf("Failed to marshal stats: %v", err)
		return
	}
	h.server.Broadcast(Message{
		Type:      MessageTypeStats,
		Timestamp: time.Now(),
		Data:      data,
	})
}

// GetStats returns a copy of the current statistics
func (h *Handler) GetStats() StatsData {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}
