package pipeline

import (
	"context"
	"math"
	"sort"

	"duelmatch/server/internal/kernel"
	"duelmatch/server/logging"
	"duelmatch/server/logging/admission"
)

// Config carries the tunables that govern admission: the upper edge of the
// future-only acceptance window, and the per-session rate limit expressed
// as messages per (session, tick) once converted from a per-second rate.
type Config struct {
	MaxFutureTicks        uint64
	InputRateLimitPerTick int
}

// RateLimitPerTick converts a per-second input rate limit into a
// per-(session, tick) budget using ceiling division, as spec.md §4.2
// requires.
func RateLimitPerTick(inputRateLimitPerSec, tickRateHz int) int {
	if tickRateHz <= 0 {
		return inputRateLimitPerSec
	}
	return int(math.Ceil(float64(inputRateLimitPerSec) / float64(tickRateHz)))
}

// Pipeline is the applied-input pipeline (P): it validates inbound
// messages, buffers exactly one admission slot per (player, tick) within
// the future-tick window, and produces exactly one applied input per
// player per processed tick.
type Pipeline struct {
	cfg      Config
	pub      logging.Publisher
	sessions map[int]*sessionState
	order    []int // player ids, kept sorted ascending
}

// New constructs a Pipeline. pub may be nil, in which case admission
// outcomes are not published anywhere (tests commonly pass nil).
func New(cfg Config, pub logging.Publisher) *Pipeline {
	if pub == nil {
		pub = logging.NopPublisher()
	}
	return &Pipeline{
		cfg:      cfg,
		pub:      pub,
		sessions: make(map[int]*sessionState),
	}
}

// RegisterSession admits a bound session into the pipeline starting with
// initialFloor as its first target-tick floor. Messages for a player that
// has not been registered are never processed (the before-handshake check
// in Admit covers unregistered players the same way it covers messages
// that arrive before the handshake completes).
func (p *Pipeline) RegisterSession(playerID int, initialFloor uint64) {
	if _, exists := p.sessions[playerID]; exists {
		return
	}
	p.sessions[playerID] = newSessionState(playerID, initialFloor)
	p.sessions[playerID].handshakeComplete = true
	p.order = append(p.order, playerID)
	sort.Ints(p.order)
}

// Admit validates one inbound message against the order in spec.md §4.2
// and, if it passes, merges it into the (player, tick) admission slot.
// currentTick is the world's current tick (T) at receive time.
func (p *Pipeline) Admit(ctx context.Context, playerID int, currentTick uint64, msg InputMessage) (bool, admission.Reason) {
	session, ok := p.sessions[playerID]
	if !ok || !session.handshakeComplete {
		p.drop(ctx, playerID, msg, admission.ReasonBeforeHandshake)
		return false, admission.ReasonBeforeHandshake
	}

	moveDir := msg.MoveDir
	if !moveDir.IsFinite() {
		p.drop(ctx, playerID, msg, admission.ReasonShape)
		return false, admission.ReasonShape
	}

	if length := moveDir.Len(); length > 1 {
		moveDir = moveDir.Normalized()
		admission.MagnitudeAdjusted(ctx, p.pub, admission.MagnitudeAdjustedPayload{
			PlayerID:  playerID,
			Tick:      msg.Tick,
			Magnitude: length,
		})
	}

	if msg.Tick < session.lastEmittedFloor {
		p.drop(ctx, playerID, msg, admission.ReasonFloor)
		return false, admission.ReasonFloor
	}

	if session.hasValidCmdTick && msg.Tick < session.lastValidCmdTick {
		p.drop(ctx, playerID, msg, admission.ReasonMonotonic)
		return false, admission.ReasonMonotonic
	}

	if msg.Tick < currentTick || msg.Tick > currentTick+p.cfg.MaxFutureTicks {
		p.drop(ctx, playerID, msg, admission.ReasonWindow)
		return false, admission.ReasonWindow
	}

	sl := session.slotFor(msg.Tick)
	if sl.receivedCount >= p.cfg.InputRateLimitPerTick {
		p.drop(ctx, playerID, msg, admission.ReasonRateLimit)
		return false, admission.ReasonRateLimit
	}
	sl.receivedCount++

	if session.hasLastSeq && msg.InputSeq <= session.lastSeq {
		admission.SequenceViolation(ctx, p.pub, admission.SequenceViolationPayload{
			PlayerID:    playerID,
			Tick:        msg.Tick,
			InputSeq:    msg.InputSeq,
			PreviousSeq: session.lastSeq,
		})
	}
	session.hasLastSeq = true
	session.lastSeq = msg.InputSeq

	sl.merge(msg.InputSeq, moveDir)

	if !session.hasValidCmdTick || msg.Tick > session.lastValidCmdTick {
		session.lastValidCmdTick = msg.Tick
	}
	session.hasValidCmdTick = true

	return true, ""
}

func (p *Pipeline) drop(ctx context.Context, playerID int, msg InputMessage, reason admission.Reason) {
	admission.Dropped(ctx, p.pub, admission.DroppedPayload{
		PlayerID: playerID,
		Tick:     msg.Tick,
		InputSeq: msg.InputSeq,
		Reason:   reason,
	})
}

// ConsumeTick produces exactly one AppliedInput per registered player for
// tick T, sorted by player id ascending, and evicts the consumed slots.
func (p *Pipeline) ConsumeTick(ctx context.Context, tick uint64) []AppliedInput {
	applied := make([]AppliedInput, 0, len(p.order))
	for _, playerID := range p.order {
		session := p.sessions[playerID]
		applied = append(applied, p.consumeSession(ctx, session, tick))
	}
	return applied
}

func (p *Pipeline) consumeSession(ctx context.Context, session *sessionState, tick uint64) AppliedInput {
	sl, exists := session.slots[tick]
	defer delete(session.slots, tick)

	if exists && sl.hasValue && !sl.tied {
		session.lastKnownIntent = sl.moveDir
		return AppliedInput{Tick: tick, PlayerID: session.playerID, MoveDir: sl.moveDir, IsFallback: false}
	}

	if exists && sl.hasValue && sl.tied {
		admission.TieFallback(ctx, p.pub, admission.TieFallbackPayload{PlayerID: session.playerID, Tick: tick})
	}

	return AppliedInput{Tick: tick, PlayerID: session.playerID, MoveDir: session.lastKnownIntent, IsFallback: true}
}

// UpdateFloor records the most recently emitted target-tick floor for a
// session. Floors are monotonically non-decreasing; a lower value is
// ignored rather than rolling the watermark backwards.
func (p *Pipeline) UpdateFloor(playerID int, floor uint64) {
	session, ok := p.sessions[playerID]
	if !ok {
		return
	}
	if floor > session.lastEmittedFloor {
		session.lastEmittedFloor = floor
	}
}

// StepInputs converts a sorted slice of AppliedInput into the kernel's
// StepInput view, preserving order.
func StepInputs(applied []AppliedInput) []kernel.StepInput {
	out := make([]kernel.StepInput, len(applied))
	for i, a := range applied {
		out[i] = a.StepInput()
	}
	return out
}
