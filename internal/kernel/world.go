package kernel

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// MoveSpeed is the v0 movement law's constant speed, in units/second.
const MoveSpeed = 5.0

// Character is a single player-controlled entity in the world.
type Character struct {
	EntityID uint64
	PlayerID int
	Position Vec2
	Velocity Vec2
}

// World holds a match's authoritative simulation state. It depends on
// nothing outside itself except its own seeded PRNG: no filesystem,
// sockets, wall-clock time, thread sleeping, environment variables, or
// ambient randomness. Identical constructions with identical applied-input
// streams always produce identical digest sequences.
type World struct {
	tick       uint64
	tickRateHz int
	dt         float64
	seed       string
	rng        *rand.Rand

	characters   []*Character
	byPlayer     map[int]*Character
	nextEntityID uint64
}

// deterministicSeed derives an int64 PRNG seed from a string seed and a
// label, using the standard library's FNV-1a-64 implementation so the
// derivation is as reproducible as the digest itself.
func deterministicSeed(seed, label string) int64 {
	h := fnv.New64a()
	h.Write([]byte(seed))
	h.Write([]byte{0})
	h.Write([]byte(label))
	sum := h.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

// Construct returns a new World at tick 0 with a seeded PRNG and a fixed
// dt = 1 / tickRateHz precomputed once. It fails only when tickRateHz is 0.
func Construct(seed string, tickRateHz int) (*World, error) {
	if tickRateHz == 0 {
		return nil, fmt.Errorf("kernel: tick_rate_hz must be non-zero")
	}
	return &World{
		tickRateHz: tickRateHz,
		dt:         1.0 / float64(tickRateHz),
		seed:       seed,
		rng:        rand.New(rand.NewSource(deterministicSeed(seed, "world"))),
		characters: make([]*Character, 0, 2),
		byPlayer:   make(map[int]*Character),
	}, nil
}

// CurrentTick returns the world's current tick.
func (w *World) CurrentTick() uint64 {
	return w.tick
}

// TickRateHz returns the fixed tick rate the world was constructed with.
func (w *World) TickRateHz() int {
	return w.tickRateHz
}

// DT returns the fixed per-tick duration derived at construction.
func (w *World) DT() float64 {
	return w.dt
}

// Seed returns the seed the world's PRNG was constructed from.
func (w *World) Seed() string {
	return w.seed
}

// SpawnCharacter appends a character owned by playerID at a deterministic
// initial position and zero velocity, returning a newly minted entity id
// strictly greater than any prior id. Spawning the same player id twice is
// a precondition violation: v0 allows exactly one character per player.
func (w *World) SpawnCharacter(playerID int) uint64 {
	if _, exists := w.byPlayer[playerID]; exists {
		mustf("kernel: duplicate spawn for player %d", playerID)
	}
	entityID := w.nextEntityID
	w.nextEntityID++

	c := &Character{
		EntityID: entityID,
		PlayerID: playerID,
		Position: Vec2{X: 0, Y: 0},
		Velocity: Vec2{X: 0, Y: 0},
	}
	w.characters = append(w.characters, c)
	w.byPlayer[playerID] = c
	return entityID
}

// entityRecords renders the current character table in ascending
// entity-id order. Characters are appended in spawn order and entity ids
// are monotonically increasing, so the append order is already ascending.
func (w *World) entityRecords() []EntityRecord {
	records := make([]EntityRecord, len(w.characters))
	for i, c := range w.characters {
		records[i] = EntityRecord{EntityID: c.EntityID, Position: c.Position, Velocity: c.Velocity}
	}
	return records
}

// Baseline returns the pre-step serialization of the current tick's state.
func (w *World) Baseline() Baseline {
	entities := w.entityRecords()
	return Baseline{
		Tick:     w.tick,
		Entities: entities,
		Digest:   stateDigest(w.tick, entities),
	}
}

// StateDigest returns the canonical digest of the current world state.
func (w *World) StateDigest() uint64 {
	return stateDigest(w.tick, w.entityRecords())
}
