package logging

import "time"

// Config governs one match's event router: which sinks are active, how
// aggressively a stalled sink is retried, and what match-scoped context
// every event should carry.
type Config struct {
	EnabledSinks     []string
	BufferSize       int
	MinimumSeverity  Severity
	Fields           map[string]any
	JSON             JSONConfig
	Console          ConsoleConfig
	DropWarnInterval time.Duration

	// SinkBackoffCap bounds how long a failing sink worker waits before
	// retrying. A match is one short-lived process, not the teacher's
	// long-running hub: letting a backoff climb past a few seconds risks
	// silently losing most of a short match's events to a sink that
	// never gets a chance to recover before the process exits.
	SinkBackoffCap time.Duration
}

type JSONConfig struct {
	FilePath      string
	MaxBatch      int
	FlushInterval time.Duration
}

type ConsoleConfig struct {
	UseColor bool
}

// DefaultConfig returns the baseline router configuration for one match.
// matchID, when non-empty, is stamped onto every event the router
// forwards (see Router.forward), so every sink — console, JSON, memory —
// can tell which match an event belongs to without each call site
// remembering to attach it.
func DefaultConfig(matchID string) Config {
	cfg := Config{
		EnabledSinks:     []string{"console"},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		SinkBackoffCap:   4 * time.Second,
		JSON: JSONConfig{
			MaxBatch:      32,
			FlushInterval: 2 * time.Second,
		},
	}
	if matchID != "" {
		cfg.Fields = map[string]any{"matchId": matchID}
	}
	return cfg
}

func (c Config) HasSink(name string) bool {
	for _, s := range c.EnabledSinks {
		if s == name {
			return true
		}
	}
	return false
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}
