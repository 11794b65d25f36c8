package lifecycle

import (
	"context"

	"duelmatch/server/logging"
)

const (
	// EventSessionBound is emitted when a transport peer is assigned a player id.
	EventSessionBound logging.EventType = "lifecycle.session_bound"
	// EventMatchStarted is emitted once the second session binds and the world is allocated.
	EventMatchStarted logging.EventType = "lifecycle.match_started"
	// EventConnectTimeout is the stable log token for a pre-match connection timeout abort.
	EventConnectTimeout logging.EventType = "lifecycle.connect_timeout"
	// EventPreMatchDisconnect is the stable log token for a pre-match disconnect abort.
	EventPreMatchDisconnect logging.EventType = "lifecycle.pre_match_disconnect"
	// EventInMatchDisconnect is emitted when a bound session disconnects during the match.
	EventInMatchDisconnect logging.EventType = "lifecycle.in_match_disconnect"
	// EventMatchEnded is emitted once the match's artifact has been persisted.
	EventMatchEnded logging.EventType = "lifecycle.match_ended"
)

// SessionBoundPayload captures the identifiers assigned to a newly bound session.
type SessionBoundPayload struct {
	PlayerID int    `json:"playerId"`
	EntityID uint64 `json:"entityId"`
}

// MatchStartedPayload captures the parameters the match was constructed with.
type MatchStartedPayload struct {
	MatchID     string `json:"matchId"`
	Seed        string `json:"seed"`
	TickRateHz  int    `json:"tickRateHz"`
	SpawnOrder  []int  `json:"spawnOrder"`
}

// InMatchDisconnectPayload captures which player dropped and at which tick.
type InMatchDisconnectPayload struct {
	PlayerID int    `json:"playerId"`
	Tick     uint64 `json:"tick"`
}

// MatchEndedPayload captures the terminal state of a match.
type MatchEndedPayload struct {
	MatchID       string `json:"matchId"`
	EndReason     string `json:"endReason"`
	CheckpointTick uint64 `json:"checkpointTick"`
}

// SessionBound publishes a session-bound event.
func SessionBound(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload SessionBoundPayload) {
	publish(ctx, pub, EventSessionBound, 0, actor, logging.SeverityInfo, payload)
}

// MatchStarted publishes a match-started event.
func MatchStarted(ctx context.Context, pub logging.Publisher, payload MatchStartedPayload) {
	publish(ctx, pub, EventMatchStarted, 0, logging.EntityRef{Kind: logging.EntityKindWorld}, logging.SeverityInfo, payload)
}

// ConnectTimeout publishes the stable connect-timeout abort token.
func ConnectTimeout(ctx context.Context, pub logging.Publisher, boundSessions int) {
	publish(ctx, pub, EventConnectTimeout, 0, logging.EntityRef{Kind: logging.EntityKindWorld}, logging.SeverityError, map[string]any{"boundSessions": boundSessions})
}

// PreMatchDisconnect publishes the stable pre-match-disconnect abort token.
func PreMatchDisconnect(ctx context.Context, pub logging.Publisher, playerID int) {
	publish(ctx, pub, EventPreMatchDisconnect, 0, logging.EntityRef{Kind: logging.EntityKindWorld}, logging.SeverityError, map[string]any{"playerId": playerID})
}

// InMatchDisconnect publishes an in-match disconnect event.
func InMatchDisconnect(ctx context.Context, pub logging.Publisher, payload InMatchDisconnectPayload) {
	actor := logging.EntityRef{Kind: logging.EntityKindPlayer}
	publish(ctx, pub, EventInMatchDisconnect, payload.Tick, actor, logging.SeverityWarn, payload)
}

// MatchEnded publishes a match-ended event once the artifact has been written.
func MatchEnded(ctx context.Context, pub logging.Publisher, payload MatchEndedPayload) {
	publish(ctx, pub, EventMatchEnded, payload.CheckpointTick, logging.EntityRef{Kind: logging.EntityKindWorld}, logging.SeverityInfo, payload)
}

func publish(ctx context.Context, pub logging.Publisher, typ logging.EventType, tick uint64, actor logging.EntityRef, severity logging.Severity, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     typ,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: "lifecycle",
		Payload:  payload,
	})
}
