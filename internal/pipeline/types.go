// Package pipeline turns an unreliable, untrusted stream of client intents
// into exactly one applied input per player per processed tick.
package pipeline

import "duelmatch/server/internal/kernel"

// InputMessage is the validated, identity-stripped shape of an inbound
// client intent: the server always binds identity from the session, never
// from a client-declared player id.
type InputMessage struct {
	Tick     uint64
	InputSeq uint64
	MoveDir  kernel.Vec2
}

// AppliedInput is the single, server-chosen, per-(player, tick) intent
// actually passed to the kernel; it is what the replay recorder captures.
type AppliedInput struct {
	Tick       uint64
	PlayerID   int
	MoveDir    kernel.Vec2
	IsFallback bool
}

// StepInput converts an AppliedInput into the kernel's narrower view.
func (a AppliedInput) StepInput() kernel.StepInput {
	return kernel.StepInput{PlayerID: a.PlayerID, MoveDir: a.MoveDir}
}
