// Package replay defines the typed log events the recorder and verifier
// publish for artifact persistence and verification outcomes.
package replay

import (
	"context"

	"duelmatch/server/logging"
)

const (
	// EventArtifactWritten is published once a match's replay artifact has been persisted.
	EventArtifactWritten logging.EventType = "replay.artifact_written"
	// EventArtifactCollision is published when a match id's artifact path already exists.
	EventArtifactCollision logging.EventType = "replay.artifact_collision"
	// EventVerificationFailed is published when any verifier step fails.
	EventVerificationFailed logging.EventType = "replay.verification_failed"
	// EventFingerprintMismatch is published when the build fingerprint check fails or warns.
	EventFingerprintMismatch logging.EventType = "replay.fingerprint_mismatch"
)

// ArtifactWrittenPayload captures where a match's artifact was persisted.
type ArtifactWrittenPayload struct {
	MatchID string `json:"matchId"`
	Path    string `json:"path"`
}

// ArtifactCollisionPayload captures a rejected overwrite attempt.
type ArtifactCollisionPayload struct {
	MatchID string `json:"matchId"`
	Path    string `json:"path"`
}

// VerificationFailedPayload captures which verifier step failed and why.
type VerificationFailedPayload struct {
	Step   string `json:"step"`
	Reason string `json:"reason"`
}

// FingerprintMismatchPayload captures the expected and observed build fingerprints.
type FingerprintMismatchPayload struct {
	Strict   bool   `json:"strict"`
	Expected string `json:"expected"`
	Observed string `json:"observed"`
}

// ArtifactWritten publishes an artifact-written event.
func ArtifactWritten(ctx context.Context, pub logging.Publisher, payload ArtifactWrittenPayload) {
	publish(ctx, pub, EventArtifactWritten, logging.SeverityInfo, payload)
}

// ArtifactCollision publishes an artifact-collision event.
func ArtifactCollision(ctx context.Context, pub logging.Publisher, payload ArtifactCollisionPayload) {
	publish(ctx, pub, EventArtifactCollision, logging.SeverityError, payload)
}

// VerificationFailed publishes a verification-failed event.
func VerificationFailed(ctx context.Context, pub logging.Publisher, payload VerificationFailedPayload) {
	publish(ctx, pub, EventVerificationFailed, logging.SeverityError, payload)
}

// FingerprintMismatch publishes a fingerprint-mismatch event; severity tracks strict mode.
func FingerprintMismatch(ctx context.Context, pub logging.Publisher, payload FingerprintMismatchPayload) {
	severity := logging.SeverityWarn
	if payload.Strict {
		severity = logging.SeverityError
	}
	publish(ctx, pub, EventFingerprintMismatch, severity, payload)
}

func publish(ctx context.Context, pub logging.Publisher, typ logging.EventType, severity logging.Severity, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     typ,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: severity,
		Category: logging.CategorySystem,
		Payload:  payload,
	})
}
