// Package metrics is the process-wide metrics facade. Callers record through
// the package functions; the backend (nop by default) is chosen once at start
// up by the CLI.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Metric names. Backends key on these.
const (
	StepTotal           = "prefill_step_total"
	StepDurationSeconds = "prefill_step_duration_seconds"
	CombinationsTotal   = "prefill_combinations_total"
	ArtifactsTotal      = "prefill_artifacts_total"

	HTTPRequestsTotal          = "prefill_http_requests_total"
	HTTPErrorsTotal            = "prefill_http_errors_total"
	HTTPRequestDurationSeconds = "prefill_http_request_duration_seconds"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric observations. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer.
type Flusher interface {
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend replaces the process backend. nil restores the nop backend.
func SetBackend(b Backend) {
	if b == nil {
		b = nopBackend{}
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush flushes the current backend if it buffers.
func Flush() error {
	if f, ok := current().(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// RecordStep counts one pipeline step and observes its duration. status is
// "ok" or "error" depending on err.
func RecordStep(step string, err error, d time.Duration) {
	l := Labels{"step": step, "status": statusOf(err)}
	b := current()
	b.IncCounter(StepTotal, 1, l)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}

// RecordCombinations counts generated combinations for a mode (link or letter).
func RecordCombinations(mode string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(CombinationsTotal, float64(n), Labels{"mode": mode})
}

// RecordArtifacts counts emitted artifacts by kind (link, letter, stored,
// submitted).
func RecordArtifacts(kind string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(ArtifactsTotal, float64(n), Labels{"kind": kind})
}

// RecordHTTP records one outbound HTTP attempt. status 0 means no response
// was received.
func RecordHTTP(status int, err error, d time.Duration) {
	st := "none"
	if status > 0 {
		st = strconv.Itoa(status)
	}
	l := Labels{"status": st}
	b := current()
	b.IncCounter(HTTPRequestsTotal, 1, l)
	if err != nil || status >= 400 {
		b.IncCounter(HTTPErrorsTotal, 1, l)
	}
	b.ObserveHistogram(HTTPRequestDurationSeconds, d.Seconds(), l)
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
