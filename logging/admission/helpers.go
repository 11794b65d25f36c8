// Package admission defines the typed log events the applied-input
// pipeline publishes for every per-message admission outcome.
package admission

import (
	"context"
	"strconv"

	"duelmatch/server/logging"
)

const (
	// EventDropped is published whenever a message is dropped during validation.
	EventDropped logging.EventType = "admission.dropped"
	// EventMagnitudeAdjusted is published when a message's move_dir is renormalized.
	EventMagnitudeAdjusted logging.EventType = "admission.magnitude_adjusted"
	// EventSequenceViolation is published when input_seq is not strictly increasing.
	EventSequenceViolation logging.EventType = "admission.sequence_violation"
	// EventTieFallback is published when a slot's tied selection is discarded at consumption time.
	EventTieFallback logging.EventType = "admission.tie_fallback"
)

// Reason identifies which validation step rejected a message.
type Reason string

const (
	ReasonBeforeHandshake Reason = "before_handshake"
	ReasonShape           Reason = "shape"
	ReasonFloor           Reason = "floor"
	ReasonMonotonic       Reason = "monotonic"
	ReasonWindow          Reason = "window"
	ReasonRateLimit       Reason = "rate_limit"
	ReasonStaleSeq        Reason = "stale_seq"
)

// DroppedPayload captures why and where an inbound message was dropped.
type DroppedPayload struct {
	PlayerID int    `json:"playerId"`
	Tick     uint64 `json:"tick"`
	InputSeq uint64 `json:"inputSeq"`
	Reason   Reason `json:"reason"`
}

// MagnitudeAdjustedPayload captures the original magnitude of a renormalized move_dir.
type MagnitudeAdjustedPayload struct {
	PlayerID  int     `json:"playerId"`
	Tick      uint64  `json:"tick"`
	Magnitude float64 `json:"magnitude"`
}

// SequenceViolationPayload captures a non-monotonic input_seq observation.
type SequenceViolationPayload struct {
	PlayerID    int    `json:"playerId"`
	Tick        uint64 `json:"tick"`
	InputSeq    uint64 `json:"inputSeq"`
	PreviousSeq uint64 `json:"previousSeq"`
}

// TieFallbackPayload captures a slot whose tie forced a last-known-intent fallback.
type TieFallbackPayload struct {
	PlayerID int    `json:"playerId"`
	Tick     uint64 `json:"tick"`
}

// Dropped publishes a message-dropped event.
func Dropped(ctx context.Context, pub logging.Publisher, payload DroppedPayload) {
	publish(ctx, pub, EventDropped, payload.Tick, payload.PlayerID, logging.SeverityInfo, payload)
}

// MagnitudeAdjusted publishes a magnitude-renormalized event.
func MagnitudeAdjusted(ctx context.Context, pub logging.Publisher, payload MagnitudeAdjustedPayload) {
	publish(ctx, pub, EventMagnitudeAdjusted, payload.Tick, payload.PlayerID, logging.SeverityInfo, payload)
}

// SequenceViolation publishes a non-fatal sequence-discipline violation.
func SequenceViolation(ctx context.Context, pub logging.Publisher, payload SequenceViolationPayload) {
	publish(ctx, pub, EventSequenceViolation, payload.Tick, payload.PlayerID, logging.SeverityWarn, payload)
}

// TieFallback publishes a tolerated tied-selection fallback.
func TieFallback(ctx context.Context, pub logging.Publisher, payload TieFallbackPayload) {
	publish(ctx, pub, EventTieFallback, payload.Tick, payload.PlayerID, logging.SeverityWarn, payload)
}

func publish(ctx context.Context, pub logging.Publisher, typ logging.EventType, tick uint64, playerID int, severity logging.Severity, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     typ,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindPlayer, ID: strconv.Itoa(playerID)},
		Severity: severity,
		Category: logging.CategorySystem,
		Payload:  payload,
	})
}
