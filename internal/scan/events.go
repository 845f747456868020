package scan

import (
	"sync"
	"time"

	"github.com/kozaktomas/face-finder/internal/facematch"
)

// EventType identifies a progress event.
type EventType string

// Progress events, in the order a scan emits them.
const (
	EventInitializing  EventType = "initializing"
	EventBatchStarting EventType = "batch_starting"
	EventProcessing    EventType = "processing"
	EventMatchFound    EventType = "match_found"
	EventError         EventType = "error"
	EventCompleted     EventType = "completed"
	EventCancelled     EventType = "cancelled"
	EventFailed        EventType = "failed"
)

// Terminal reports whether no further events follow t.
func (t EventType) Terminal() bool {
	return t == EventCompleted || t == EventCancelled || t == EventFailed
}

// Event is a single progress notification.
type Event struct {
	Type      EventType              `json:"type"`
	OwnerID   string                 `json:"owner_id"`
	Batch     int                    `json:"batch,omitempty"` // 1-based
	Batches   int                    `json:"batches,omitempty"`
	BatchSize int                    `json:"batch_size,omitempty"`
	Processed int                    `json:"processed"`
	Total     int                    `json:"total"`
	PhotoID   string                 `json:"photo_id,omitempty"`
	Match     *facematch.MatchResult `json:"match,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Summary   *Summary               `json:"summary,omitempty"`
}

// Summary accompanies terminal events.
type Summary struct {
	Matches   int           `json:"matches"`
	Errors    int           `json:"errors"`
	Processed int           `json:"processed"`
	Total     int           `json:"total"`
	FromCache bool          `json:"from_cache"`
	Signature string        `json:"signature"`
	Duration  time.Duration `json:"duration_ns"`
}

// Reporter receives progress events. Calls for one scan are never concurrent.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

func (f ReporterFunc) Report(e Event) { f(e) }

type nopReporter struct{}

func (nopReporter) Report(Event) {}

// CancellationToken requests cooperative cancellation of a scan. Comparisons already in
// flight finish; no further ones start.
type CancellationToken struct {
	once sync.Once
	done chan struct{}
}

func NewCancellationToken() *CancellationToken {
	return &CancellationToken{done: make(chan struct{})}
}

// Cancel requests cancellation. It is safe to call more than once.
func (t *CancellationToken) Cancel() {
	t.once.Do(func() { close(t.done) })
}

// Cancelled reports whether Cancel was called. A nil token is never cancelled.
func (t *CancellationToken) Cancelled() bool {
	if t == nil {
		return false
	}
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed on cancellation.
func (t *CancellationToken) Done() <-chan struct{} {
	if t == nil {
		return nil
	}
	return t.done
}
