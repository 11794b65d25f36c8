package kernel

import (
	"encoding/binary"
	"hash/fnv"
	"math"
)

// DigestAlgorithm identifies the canonical digest algorithm implemented by
// this package. Any change to included fields, ordering, encoding, or hash
// constants must mint a new identifier here.
const DigestAlgorithm = "fnv1a64-v1"

// quietNaN is the canonical bit pattern substituted for any NaN payload
// before hashing, so that distinct NaN encodings never produce distinct
// digests.
const quietNaN uint64 = 0x7FF8000000000000

// EntityRecord is the canonical, per-entity serialization used by both
// Baseline and Snapshot and by the digest itself.
type EntityRecord struct {
	EntityID uint64
	Position Vec2
	Velocity Vec2
}

// Baseline is the pre-step serialization of the world at a tick.
type Baseline struct {
	Tick     uint64
	Entities []EntityRecord
	Digest   uint64
}

// Snapshot is the post-step serialization of the world, carrying the tick
// produced by advance(T, ...): T+1.
type Snapshot struct {
	Tick     uint64
	Entities []EntityRecord
	Digest   uint64
}

// canonicalFloatBits converts f to its canonical IEEE-754 bit pattern:
// -0.0 becomes +0.0 and any NaN becomes the quiet-NaN bit pattern.
func canonicalFloatBits(f float64) uint64 {
	if math.IsNaN(f) {
		return quietNaN
	}
	if f == 0 {
		f = 0 // normalizes -0.0 to +0.0
	}
	return math.Float64bits(f)
}

// stateDigest computes the canonical FNV-1a-64 digest over tick followed by
// each entity record in ascending entity-id order. entities must already be
// sorted ascending by EntityID; callers own that invariant.
func stateDigest(tick uint64, entities []EntityRecord) uint64 {
	h := fnv.New64a()
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], tick)
	h.Write(buf[:])

	for _, e := range entities {
		binary.LittleEndian.PutUint64(buf[:], e.EntityID)
		h.Write(buf[:])

		binary.LittleEndian.PutUint64(buf[:], canonicalFloatBits(e.Position.X))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], canonicalFloatBits(e.Position.Y))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], canonicalFloatBits(e.Velocity.X))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], canonicalFloatBits(e.Velocity.Y))
		h.Write(buf[:])
	}

	return h.Sum64()
}
