package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"duelmatch/server/logging"
)

// ConsoleSink writes one line per event to an io.Writer. A match is a
// single short-lived process, so every line is prefixed with the match
// id the router stamped into Extra (see logging.DefaultConfig) — useful
// when several match processes' stdout ends up interleaved in the same
// place (a supervisor log, a test runner's -v output) and a reader needs
// to tell which match a line came from without cross-referencing a pid.
type ConsoleSink struct {
	logger *log.Logger
}

func NewConsoleSink(w io.Writer, cfg logging.ConsoleConfig) *ConsoleSink {
	prefix := ""
	flags := log.LstdFlags
	return &ConsoleSink{logger: log.New(w, prefix, flags)}
}

func (s *ConsoleSink) Write(event logging.Event) error {
	if s.logger == nil {
		return nil
	}
	payload := formatPayload(event.Payload)
	targets := formatTargets(event.Targets)
	s.logger.Printf("%s[%s] tick=%d actor=%s severity=%s%s%s", formatMatchPrefix(event.Extra), event.Type, event.Tick, formatEntity(event.Actor), formatSeverity(event.Severity), targets, payload)
	return nil
}

func (s *ConsoleSink) Close(context.Context) error {
	return nil
}

// formatMatchPrefix surfaces the match id a router stamps onto every
// event, so a line reads "<timestamp> match=a1b2c3d4 [lifecycle.match_started] ..." instead of
// requiring the reader to already know which process emitted it.
func formatMatchPrefix(extra map[string]any) string {
	if extra == nil {
		return ""
	}
	matchID, ok := extra["matchId"].(string)
	if !ok || matchID == "" {
		return ""
	}
	return fmt.Sprintf("match=%s ", matchID)
}

func formatSeverity(sev logging.Severity) string {
	switch sev {
	case logging.SeverityDebug:
		return "debug"
	case logging.SeverityInfo:
		return "info"
	case logging.SeverityWarn:
		return "warn"
	case logging.SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

func formatEntity(ref logging.EntityRef) string {
	if ref.ID == "" {
		return string(ref.Kind)
	}
	if ref.Kind == "" {
		return ref.ID
	}
	return fmt.Sprintf("%s:%s", ref.Kind, ref.ID)
}

func formatTargets(targets []logging.EntityRef) string {
	if len(targets) == 0 {
		return ""
	}
	parts := make([]string, 0, len(targets))
	for _, target := range targets {
		parts = append(parts, formatEntity(target))
	}
	return fmt.Sprintf(" targets=%s", strings.Join(parts, ","))
}

func formatPayload(payload any) string {
	if payload == nil {
		return ""
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(" payload=%v", payload)
	}
	return fmt.Sprintf(" payload=%s", data)
}
