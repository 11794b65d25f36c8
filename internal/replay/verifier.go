package replay

import (
	"context"
	"fmt"
	"sort"

	"duelmatch/server/internal/kernel"
	"duelmatch/server/logging"
	"duelmatch/server/logging/replay"
)

// VerifyError identifies which of the seven ordered steps failed.
type VerifyError struct {
	Step   string
	Reason string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("replay verify: step %q failed: %s", e.Step, e.Reason)
}

// Verify runs the strict-order procedure from spec.md §4.6 against a
// freshly constructed kernel. strict controls step 1's severity: under
// strict mode a build-fingerprint mismatch aborts; under development
// mode it only warns and verification continues.
func Verify(ctx context.Context, pub logging.Publisher, artifact Artifact, strict bool) error {
	if pub == nil {
		pub = logging.NopPublisher()
	}

	// Step 1: binary identity.
	current, err := CurrentFingerprint()
	if err == nil && !FingerprintsEqual(current, artifact.BuildFingerprint) {
		replay.FingerprintMismatch(ctx, pub, replay.FingerprintMismatchPayload{
			Strict:   strict,
			Expected: fmt.Sprintf("%+v", artifact.BuildFingerprint),
			Observed: fmt.Sprintf("%+v", current),
		})
		if strict {
			return fail(ctx, pub, "binary_identity", "build fingerprint mismatch")
		}
	}

	// Step 2: applied-input integrity.
	if err := verifyAppliedInputIntegrity(artifact); err != nil {
		return fail(ctx, pub, "applied_input_integrity", err.Error())
	}

	// Step 3: kernel construction.
	world, err := kernel.Construct(artifact.Seed, artifact.TickRateHz)
	if err != nil {
		return fail(ctx, pub, "kernel_construction", err.Error())
	}

	// Step 4: spawn reconstruction.
	entityByPlayer := make(map[int]uint64, len(artifact.PlayerEntities))
	for _, pe := range artifact.PlayerEntities {
		entityByPlayer[pe.PlayerID] = pe.EntityID
	}
	for _, playerID := range artifact.SpawnOrder {
		entityID := world.SpawnCharacter(playerID)
		want, ok := entityByPlayer[playerID]
		if !ok {
			return fail(ctx, pub, "spawn_reconstruction", fmt.Sprintf("player %d missing from player-entity map", playerID))
		}
		if entityID != want {
			return fail(ctx, pub, "spawn_reconstruction", fmt.Sprintf("player %d: expected entity %d, got %d", playerID, want, entityID))
		}
	}

	// Step 5: initialization anchor.
	if got := world.StateDigest(); got != artifact.InitialBaseline.Digest {
		return fail(ctx, pub, "initialization_anchor", fmt.Sprintf("expected digest %d, got %d", artifact.InitialBaseline.Digest, got))
	}

	// Step 6: replay. Canonicalize defensively even if the stored
	// stream claims to already be in order.
	byTick := make(map[uint64][]AppliedInputRecord)
	for _, a := range canonicalAppliedInputs(artifact.AppliedInputs) {
		byTick[a.Tick] = append(byTick[a.Tick], a)
	}

	for t := artifact.InitialBaseline.Tick; t < artifact.CheckpointTick; t++ {
		records := byTick[t]
		sort.Slice(records, func(i, j int) bool { return records[i].PlayerID < records[j].PlayerID })

		stepInputs := make([]kernel.StepInput, len(records))
		for i, r := range records {
			stepInputs[i] = kernel.StepInput{PlayerID: r.PlayerID, MoveDir: r.MoveDir}
		}
		world.Advance(t, stepInputs)
	}

	// Step 7: final anchor.
	if world.CurrentTick() != artifact.CheckpointTick {
		return fail(ctx, pub, "final_anchor", fmt.Sprintf("expected tick %d, got %d", artifact.CheckpointTick, world.CurrentTick()))
	}
	if got := world.StateDigest(); got != artifact.FinalDigest {
		return fail(ctx, pub, "final_anchor", fmt.Sprintf("expected digest %d, got %d", artifact.FinalDigest, got))
	}

	return nil
}

func fail(ctx context.Context, pub logging.Publisher, step, reason string) error {
	replay.VerificationFailed(ctx, pub, replay.VerificationFailedPayload{Step: step, Reason: reason})
	return &VerifyError{Step: step, Reason: reason}
}

// verifyAppliedInputIntegrity requires exactly one applied-input entry
// per (player id, tick) for every player in the player-entity map and
// every tick in [initial_baseline.tick, checkpoint_tick), with no
// duplicates, no extras, and no references to unknown players or ticks.
func verifyAppliedInputIntegrity(artifact Artifact) error {
	knownPlayers := make(map[int]bool, len(artifact.PlayerEntities))
	for _, pe := range artifact.PlayerEntities {
		knownPlayers[pe.PlayerID] = true
	}

	seen := make(map[[2]uint64]bool, len(artifact.AppliedInputs))
	for _, a := range artifact.AppliedInputs {
		if !knownPlayers[a.PlayerID] {
			return fmt.Errorf("applied input references unknown player %d", a.PlayerID)
		}
		if a.Tick < artifact.InitialBaseline.Tick || a.Tick >= artifact.CheckpointTick {
			return fmt.Errorf("applied input at tick %d is outside [%d, %d)", a.Tick, artifact.InitialBaseline.Tick, artifact.CheckpointTick)
		}
		key := [2]uint64{a.Tick, uint64(a.PlayerID)}
		if seen[key] {
			return fmt.Errorf("duplicate applied input for player %d at tick %d", a.PlayerID, a.Tick)
		}
		seen[key] = true
	}

	for player := range knownPlayers {
		for t := artifact.InitialBaseline.Tick; t < artifact.CheckpointTick; t++ {
			if !seen[[2]uint64{t, uint64(player)}] {
				return fmt.Errorf("missing applied input for player %d at tick %d", player, t)
			}
		}
	}
	return nil
}
