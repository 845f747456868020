// Package progress provides scan.Reporter implementations: SSE fan-out, a CLI progress
// bar and a structured log sink.
package progress

import (
	"sync"

	"github.com/kozaktomas/face-finder/internal/constants"
	"github.com/kozaktomas/face-finder/internal/scan"
)

// Broadcaster fans scan events out to listener channels. Slow listeners miss events
// rather than block the scan. All listeners are closed after the terminal event.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners []chan scan.Event
	last      *scan.Event
	closed    bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// AddListener adds an event listener. After the scan finished it returns a closed channel.
func (b *Broadcaster) AddListener() chan scan.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan scan.Event, constants.EventChannelBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *Broadcaster) RemoveListener(ch chan scan.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Report sends an event to all listeners.
func (b *Broadcaster) Report(event scan.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.last = &event
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
	if event.Type.Terminal() {
		b.closeLocked()
	}
}

// Close closes all listeners, e.g. when a scan ends before reporting anything.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
}

func (b *Broadcaster) closeLocked() {
	if b.closed {
		return
	}
	b.closed = true
	for _, listener := range b.listeners {
		close(listener)
	}
	b.listeners = nil
}

// Last returns the most recent event, if any.
func (b *Broadcaster) Last() (scan.Event, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.last == nil {
		return scan.Event{}, false
	}
	return *b.last, true
}
