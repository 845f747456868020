package progress

import (
	"bytes"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kozaktomas/face-finder/internal/facematch"
	"github.com/kozaktomas/face-finder/internal/scan"
)

func scanEvents() []scan.Event {
	return []scan.Event{
		{Type: scan.EventInitializing, OwnerID: "alice", Total: 3, Batches: 2},
		{Type: scan.EventBatchStarting, OwnerID: "alice", Batch: 1, Batches: 2, BatchSize: 2, Total: 3},
		{Type: scan.EventProcessing, OwnerID: "alice", PhotoID: "p1", Processed: 1, Total: 3},
		{Type: scan.EventMatchFound, OwnerID: "alice", PhotoID: "p1", Processed: 1, Total: 3,
			Match: &facematch.MatchResult{PhotoID: "p1", Confidence: 0.8, MatchType: facematch.MatchStrong}},
		{Type: scan.EventProcessing, OwnerID: "alice", PhotoID: "p2", Processed: 2, Total: 3},
		{Type: scan.EventError, OwnerID: "alice", PhotoID: "p2", Processed: 2, Total: 3, Error: "no face detected"},
		{Type: scan.EventBatchStarting, OwnerID: "alice", Batch: 2, Batches: 2, BatchSize: 1, Total: 3},
		{Type: scan.EventProcessing, OwnerID: "alice", PhotoID: "p3", Processed: 3, Total: 3},
		{Type: scan.EventCompleted, OwnerID: "alice", Processed: 3, Total: 3,
			Summary: &scan.Summary{Matches: 1, Errors: 1, Processed: 3, Total: 3}},
	}
}

func TestBroadcaster(t *testing.T) {
	b := NewBroadcaster()
	ch1 := b.AddListener()
	ch2 := b.AddListener()
	b.RemoveListener(ch2)

	if _, ok := <-ch2; ok {
		t.Error("removed listener should be closed")
	}

	for _, e := range scanEvents() {
		b.Report(e)
	}

	var got []scan.EventType
	for e := range ch1 {
		got = append(got, e.Type)
	}
	if len(got) != len(scanEvents()) {
		t.Errorf("expected %d events, got %v", len(scanEvents()), got)
	}
	if got[len(got)-1] != scan.EventCompleted {
		t.Errorf("expected completed last, got %s", got[len(got)-1])
	}

	last, ok := b.Last()
	if !ok || last.Type != scan.EventCompleted {
		t.Errorf("unexpected last event %+v", last)
	}

	// late listeners get a closed channel, removing it is a no-op
	late := b.AddListener()
	if _, ok := <-late; ok {
		t.Error("expected closed channel after terminal event")
	}
	b.RemoveListener(late)
	b.Report(scan.Event{Type: scan.EventProcessing})
	b.Close()
}

func TestBroadcaster_SlowListenerDoesNotBlock(t *testing.T) {
	b := NewBroadcaster()
	ch := b.AddListener()

	for range 500 {
		b.Report(scan.Event{Type: scan.EventProcessing})
	}
	if len(ch) != cap(ch) {
		t.Errorf("expected full buffer, got %d/%d", len(ch), cap(ch))
	}
	b.Close()
}

func TestBroadcaster_LastBeforeEvents(t *testing.T) {
	if _, ok := NewBroadcaster().Last(); ok {
		t.Error("expected no last event")
	}
}

func TestBar(t *testing.T) {
	var buf bytes.Buffer
	bar := NewBar(&buf)
	for _, e := range scanEvents() {
		bar.Report(e)
	}
	if !bar.Finished() {
		t.Error("expected bar to be finished")
	}
	if buf.Len() == 0 {
		t.Error("expected progress output")
	}
}

func TestBar_FromCache(t *testing.T) {
	var buf bytes.Buffer
	bar := NewBar(&buf)
	bar.Report(scan.Event{Type: scan.EventInitializing, Total: 40})
	bar.Report(scan.Event{Type: scan.EventCompleted, Total: 40, Summary: &scan.Summary{FromCache: true}})
	if !bar.Finished() {
		t.Error("expected bar to be finished")
	}
}

func TestBar_IgnoresEventsBeforeInitializing(t *testing.T) {
	bar := NewBar(&bytes.Buffer{})
	bar.Report(scan.Event{Type: scan.EventProcessing})
	bar.Report(scan.Event{Type: scan.EventCancelled})
	if bar.Finished() {
		t.Error("bar without initializing cannot be finished")
	}
}

func TestLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewLog(zap.New(core))
	for _, e := range scanEvents() {
		l.Report(e)
	}

	if n := logs.FilterMessage("batch starting").Len(); n != 2 {
		t.Errorf("expected 2 batch logs, got %d", n)
	}
	if n := logs.FilterMessage("photo processed").Len(); n != 3 {
		t.Errorf("expected 3 processed logs, got %d", n)
	}
	warns := logs.FilterLevelExact(zapcore.WarnLevel).All()
	if len(warns) != 1 || warns[0].ContextMap()["photo_id"] != "p2" {
		t.Errorf("expected one warning for p2, got %+v", warns)
	}
	finished := logs.FilterMessage("scan finished").All()
	if len(finished) != 1 {
		t.Fatalf("expected one finish log, got %d", len(finished))
	}
	fields := finished[0].ContextMap()
	if fields["matches"] != int64(1) || fields["owner_id"] != "alice" {
		t.Errorf("unexpected finish fields %v", fields)
	}
}

func TestMulti(t *testing.T) {
	var a, b []scan.EventType
	m := Multi{
		scan.ReporterFunc(func(e scan.Event) { a = append(a, e.Type) }),
		nil,
		scan.ReporterFunc(func(e scan.Event) { b = append(b, e.Type) }),
	}
	for _, e := range scanEvents() {
		m.Report(e)
	}
	if len(a) != len(scanEvents()) || len(b) != len(a) {
		t.Errorf("expected both reporters to see all events, got %d and %d", len(a), len(b))
	}
}
