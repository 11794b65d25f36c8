package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"duelmatch/server/logging"
)

// JSON emits newline-delimited structured events, one match per writer.
// Unlike the teacher's long-running hub, a match process only ever logs
// events for the one match it is running, so the match id the router
// stamped into Extra is promoted to a top-level "matchId" field instead
// of staying nested — a log-aggregation query filtering by match id
// shouldn't need to know it was stashed inside an "extra" bag.
type JSON struct {
	mu        sync.Mutex
	writer    *bufio.Writer
	encoder   *json.Encoder
	autoFlush bool
}

// NewJSON constructs a JSON sink writing to the provided io.Writer.
func NewJSON(w io.Writer, flushInterval time.Duration) *JSON {
	if w == nil {
		w = io.Discard
	}
	buf := bufio.NewWriter(w)
	sink := &JSON{writer: buf, encoder: json.NewEncoder(buf), autoFlush: flushInterval <= 0}
	if flushInterval > 0 {
		go sink.periodicFlush(flushInterval)
	}
	return sink
}

// Write satisfies logging.Sink.
func (s *JSON) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	matchID, extra := splitMatchID(event.Extra)
	wire := map[string]any{
		"type":      event.Type,
		"tick":      event.Tick,
		"time":      event.Time.Format(time.RFC3339Nano),
		"severity":  event.Severity,
		"category":  event.Category,
		"actor":     event.Actor,
		"targets":   event.Targets,
		"payload":   event.Payload,
		"extra":     extra,
		"traceId":   event.TraceID,
		"commandId": event.CommandID,
	}
	if matchID != "" {
		wire["matchId"] = matchID
	}
	if err := s.encoder.Encode(wire); err != nil {
		return err
	}
	if s.autoFlush {
		return s.writer.Flush()
	}
	return nil
}

// splitMatchID pulls "matchId" out of extra so it can be promoted to a
// top-level field, leaving the rest of extra untouched.
func splitMatchID(extra map[string]any) (string, map[string]any) {
	if extra == nil {
		return "", nil
	}
	matchID, ok := extra["matchId"].(string)
	if !ok || matchID == "" {
		return "", extra
	}
	rest := make(map[string]any, len(extra)-1)
	for k, v := range extra {
		if k == "matchId" {
			continue
		}
		rest[k] = v
	}
	return matchID, rest
}

// Close flushes buffers.
func (s *JSON) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Flush()
}

func (s *JSON) periodicFlush(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		s.writer.Flush()
		s.mu.Unlock()
	}
}
