package kernel

import "sort"

// StepInput is the kernel's view of an applied input: no protocol
// metadata, just the player id it targets and the movement direction to
// apply for one tick.
type StepInput struct {
	PlayerID int
	MoveDir  Vec2
}

// SortStepInputs sorts inputs by player id ascending in place. Advance
// requires callers to pass inputs already in this order; this helper lets
// callers that build inputs from a map restore the order cheaply.
func SortStepInputs(inputs []StepInput) {
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].PlayerID < inputs[j].PlayerID })
}

// Advance steps the simulation by exactly one tick. The precondition is
// tick == w.CurrentTick() and stepInputs sorted by player id ascending;
// violating either is a precondition violation, not a recoverable error.
// The postcondition is w.CurrentTick() == tick+1 and the returned
// snapshot's Tick equals tick+1.
func (w *World) Advance(tick uint64, stepInputs []StepInput) Snapshot {
	if tick != w.tick {
		mustf("kernel: advance called with tick %d, want %d", tick, w.tick)
	}
	if !sort.SliceIsSorted(stepInputs, func(i, j int) bool { return stepInputs[i].PlayerID < stepInputs[j].PlayerID }) {
		mustf("kernel: advance called with unsorted step inputs at tick %d", tick)
	}

	byPlayer := make(map[int]Vec2, len(stepInputs))
	for _, in := range stepInputs {
		byPlayer[in.PlayerID] = in.MoveDir
	}

	// Characters are already in ascending entity-id order (see SpawnCharacter);
	// iterate in that order so any future cross-character interaction stays
	// deterministic.
	for _, c := range w.characters {
		dir, ok := byPlayer[c.PlayerID]
		if !ok {
			dir = Vec2{}
		}
		c.Velocity = dir.Scale(MoveSpeed)
		c.Position = c.Position.Add(c.Velocity.Scale(w.dt))
	}

	w.tick = tick + 1

	entities := w.entityRecords()
	return Snapshot{
		Tick:     w.tick,
		Entities: entities,
		Digest:   stateDigest(w.tick, entities),
	}
}
