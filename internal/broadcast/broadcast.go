// Package broadcast implements the Broadcast and Floor component (B): it
// serializes one post-step snapshot per tick exactly once and hands the
// identical byte payload to every bound session, tracking the per-session
// floor watermark the pipeline needs for admission.
package broadcast

import (
	"context"
	"fmt"

	"duelmatch/server/internal/kernel"
	"duelmatch/server/internal/pipeline"
	"duelmatch/server/internal/transport"
	"duelmatch/server/internal/wire"
)

// Broadcaster owns the mapping from player id to transport peer id and
// performs the single-serialization-then-fan-out delivery spec.md §4.4
// requires.
type Broadcaster struct {
	tr            transport.Transport
	pipe          *pipeline.Pipeline
	inputLeadTicks uint64
	peerOf        map[int]string
}

// New constructs a Broadcaster. inputLeadTicks is the fixed floor lead
// (spec.md: fixed at 1 initially).
func New(tr transport.Transport, pipe *pipeline.Pipeline, inputLeadTicks uint64) *Broadcaster {
	return &Broadcaster{
		tr:             tr,
		pipe:           pipe,
		inputLeadTicks: inputLeadTicks,
		peerOf:         make(map[int]string),
	}
}

// BindPeer associates a player id with the transport peer id it should
// receive broadcasts on.
func (b *Broadcaster) BindPeer(playerID int, peerID string) {
	b.peerOf[playerID] = peerID
}

// Floor computes the target-tick floor for a given post-step tick:
// floor = current_tick + input_lead_ticks.
func (b *Broadcaster) Floor(postStepTick uint64) uint64 {
	return postStepTick + b.inputLeadTicks
}

// Publish serializes snap exactly once and sends the identical byte
// payload to every bound session on the realtime channel, then advances
// each session's floor watermark in the pipeline.
func (b *Broadcaster) Publish(ctx context.Context, snap kernel.Snapshot) error {
	floor := b.Floor(snap.Tick)

	payload := wire.Snapshot{
		Tick:            snap.Tick,
		Entities:        wire.EntityRecordsFrom(snap.Entities),
		Digest:          snap.Digest,
		TargetTickFloor: floor,
	}
	data, err := wire.Encode(payload)
	if err != nil {
		return fmt.Errorf("broadcast: encode snapshot: %w", err)
	}

	for playerID, peerID := range b.peerOf {
		if err := b.tr.Send(peerID, transport.ChannelRealtime, data); err != nil {
			return fmt.Errorf("broadcast: send to player %d: %w", playerID, err)
		}
		b.pipe.UpdateFloor(playerID, floor)
	}
	return nil
}

// SendWelcome sends ServerWelcome and JoinBaseline to a single session on
// the control channel, as required on the second bind.
func (b *Broadcaster) SendWelcome(ctx context.Context, playerID int, entityID uint64, tickRateHz int, baseline kernel.Baseline) error {
	peerID, ok := b.peerOf[playerID]
	if !ok {
		return fmt.Errorf("broadcast: no bound peer for player %d", playerID)
	}

	welcome := wire.ServerWelcome{
		PlayerID:        playerID,
		EntityID:        entityID,
		TickRateHz:      tickRateHz,
		TargetTickFloor: b.Floor(baseline.Tick),
	}
	welcomeData, err := wire.Encode(welcome)
	if err != nil {
		return fmt.Errorf("broadcast: encode welcome: %w", err)
	}
	if err := b.tr.Send(peerID, transport.ChannelControl, welcomeData); err != nil {
		return fmt.Errorf("broadcast: send welcome to player %d: %w", playerID, err)
	}

	join := wire.JoinBaseline{
		Tick:     baseline.Tick,
		Entities: wire.EntityRecordsFrom(baseline.Entities),
		Digest:   baseline.Digest,
	}
	joinData, err := wire.Encode(join)
	if err != nil {
		return fmt.Errorf("broadcast: encode baseline: %w", err)
	}
	return b.tr.Send(peerID, transport.ChannelControl, joinData)
}
