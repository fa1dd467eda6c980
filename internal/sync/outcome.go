package sync

import "github.com/processkit/trackersync/internal/tracker"

// Severity classifies an Outcome.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarning
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "ok"
	case SeverityWarning:
		return "warning"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is the result of one unit of work. A warning may still carry a
// value (e.g. a task that was updated but could not be moved).
type Outcome[T any] struct {
	Value    T
	Severity Severity
	Err      error
}

// Ok wraps a successful value.
func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Warning records a non-fatal problem.
func Warning[T any](v T, err error) Outcome[T] {
	return Outcome[T]{Value: v, Severity: SeverityWarning, Err: err}
}

// Fatal records an error that aborts the sync.
func Fatal[T any](err error) Outcome[T] {
	return Outcome[T]{Severity: SeverityFatal, Err: err}
}

// fromRemote turns a failed tracker call into an Outcome: credential
// failures are fatal, everything else is a warning.
func fromRemote[T any](v T, err error) Outcome[T] {
	if tracker.IsFatal(err) {
		return Fatal[T](err)
	}
	return Warning(v, err)
}

func (o Outcome[T]) IsOK() bool      { return o.Severity == SeverityOK }
func (o Outcome[T]) IsWarning() bool { return o.Severity == SeverityWarning }
func (o Outcome[T]) IsFatal() bool   { return o.Severity == SeverityFatal }

// Reason returns the error text, or "" for Ok.
func (o Outcome[T]) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
