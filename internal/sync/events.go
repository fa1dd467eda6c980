package sync

import "time"

// State is a step of the sync state machine.
type State int

const (
	StateUnlinked State = iota
	StateLinking
	StateErrorRecoverable
	StateProvisioning
	StateSyncingDocs
	StateBackfilling
	StateDone
	StateFatal
)

var stateNames = map[State]string{
	StateUnlinked:         "Unlinked",
	StateLinking:          "Linking",
	StateErrorRecoverable: "ErrorRecoverable",
	StateProvisioning:     "Provisioning",
	StateSyncingDocs:      "SyncingDocs",
	StateBackfilling:      "Backfilling",
	StateDone:             "Done",
	StateFatal:            "Fatal",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// transitions lists the allowed next states. Fatal is reachable from every
// non-terminal state.
var transitions = map[State][]State{
	StateUnlinked:         {StateLinking, StateProvisioning},
	StateLinking:          {StateUnlinked, StateErrorRecoverable, StateProvisioning},
	StateErrorRecoverable: {StateUnlinked},
	StateProvisioning:     {StateSyncingDocs},
	StateSyncingDocs:      {StateBackfilling, StateDone},
	StateBackfilling:      {StateDone},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to State) bool {
	if from == StateDone || from == StateFatal {
		return false
	}
	if to == StateFatal {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// EventType names a lifecycle event.
type EventType string

const (
	EventSyncStarted     EventType = "sync_started"
	EventStateChange     EventType = "state_change"
	EventSyncWarning     EventType = "sync_warning"
	EventSyncComplete    EventType = "sync_complete"
	EventSyncFailed      EventType = "sync_failed"
	EventProcessImported EventType = "process_imported"
)

// Event is a sync lifecycle notification.
type Event struct {
	Type      EventType `json:"type"`
	ProcessID string    `json:"process_id"`
	From      *State    `json:"from,omitempty"`
	State     *State    `json:"state,omitempty"`
	Message   string    `json:"message,omitempty"`
	Result    *Result   `json:"result,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

// Notify calls f(e).
func (f NotifierFunc) Notify(e Event) { f(e) }
