package logging

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Write(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Close(context.Context) error { return nil }

func (s *recordingSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func TestForwardStampsMatchIDFromDefaultConfig(t *testing.T) {
	sink := &recordingSink{}
	cfg := DefaultConfig("match-123")
	router, err := NewRouter(nil, cfg, []NamedSink{{Name: "rec", Sink: sink}})
	if err != nil {
		t.Fatalf("failed to construct router: %v", err)
	}
	defer router.Close(context.Background())

	router.Publish(context.Background(), Event{Type: "test.event", Severity: SeverityInfo})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(sink.snapshot()) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	events := sink.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected exactly one forwarded event, got %d", len(events))
	}
	if got := events[0].Extra["matchId"]; got != "match-123" {
		t.Fatalf("expected matchId %q stamped onto the event, got %v", "match-123", got)
	}
}

type failNSink struct {
	mu     sync.Mutex
	fail   int
	writes int
}

func (s *failNSink) Write(Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.writes <= s.fail {
		return errTransient
	}
	return nil
}

func (s *failNSink) Close(context.Context) error { return nil }

func (s *failNSink) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

type transientError struct{}

func (transientError) Error() string { return "transient sink failure" }

var errTransient = transientError{}

func TestSinkBackoffCapBoundsRetryDelay(t *testing.T) {
	sink := &failNSink{fail: 2}
	cfg := DefaultConfig("")
	cfg.SinkBackoffCap = 20 * time.Millisecond
	router, err := NewRouter(nil, cfg, []NamedSink{{Name: "flaky", Sink: sink}})
	if err != nil {
		t.Fatalf("failed to construct router: %v", err)
	}
	defer router.Close(context.Background())

	// A failed write is not repeated; the backoff delays the worker's next
	// write, so three events are needed to see two failures and a recovery.
	for i := 0; i < 3; i++ {
		router.Publish(context.Background(), Event{Type: "test.event", Severity: SeverityInfo})
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sink.writeCount() >= 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if sink.writeCount() < 3 {
		t.Fatalf("expected the sink to recover within a backoff cap of 20ms, got %d writes", sink.writeCount())
	}
}
