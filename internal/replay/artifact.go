// Package replay implements the Replay Recorder (R) and Replay Verifier
// (V): a self-describing artifact sufficient to bit-reproduce a match's
// authoritative outcome, and the strict-order procedure that checks a
// fresh kernel run against it.
package replay

import "duelmatch/server/internal/kernel"

// SchemaVersion is the logical artifact schema version, tracked
// independently of whatever container format (currently JSON) carries
// it on disk.
const SchemaVersion = 1

// EndReason records why the match stopped.
type EndReason string

const (
	EndReasonComplete   EndReason = "complete"
	EndReasonDisconnect EndReason = "disconnect"
)

// BuildFingerprint identifies the exact binary that produced an
// artifact, for the Verifier's binary-identity check.
type BuildFingerprint struct {
	BinaryHash   string `json:"binaryHash"`
	TargetTriple string `json:"targetTriple"`
	BuildProfile string `json:"buildProfile"`
	SourceRev    string `json:"sourceRev"`
}

// TuningParam is one key/value tunable, part of a list kept sorted by
// key ascending in the artifact.
type TuningParam struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// PlayerEntity is one entry of the sorted player id to entity id map.
type PlayerEntity struct {
	PlayerID int    `json:"playerId"`
	EntityID uint64 `json:"entityId"`
}

// BaselineRecord is the artifact's copy of kernel.Baseline: tick, sorted
// entity records, and a canonical digest.
type BaselineRecord struct {
	Tick     uint64                `json:"tick"`
	Entities []kernel.EntityRecord `json:"entities"`
	Digest   uint64                `json:"digest"`
}

// AppliedInputRecord is one recorded applied input, part of a stream
// kept in canonical order (tick ascending, then player id ascending).
type AppliedInputRecord struct {
	Tick       uint64        `json:"tick"`
	PlayerID   int           `json:"playerId"`
	MoveDir    kernel.Vec2   `json:"moveDir"`
	IsFallback bool          `json:"isFallback"`
}

// Artifact is the complete, self-describing replay record for one
// match.
type Artifact struct {
	SchemaVersion    int                   `json:"schemaVersion"`
	FormatVersion    int                   `json:"formatVersion"`
	DigestAlgorithm  string                `json:"digestAlgorithm"`
	PRNGAlgorithm    string                `json:"prngAlgorithm"`
	TickRateHz       int                   `json:"tickRateHz"`
	Seed             string                `json:"seed"`
	SpawnOrder       []int                 `json:"spawnOrder"`
	PlayerEntities   []PlayerEntity        `json:"playerEntities"`
	TuningParams     []TuningParam         `json:"tuningParams"`
	InitialBaseline  BaselineRecord        `json:"initialBaseline"`
	AppliedInputs    []AppliedInputRecord  `json:"appliedInputs"`
	BuildFingerprint BuildFingerprint      `json:"buildFingerprint"`
	FinalDigest      uint64                `json:"finalDigest"`
	CheckpointTick   uint64                `json:"checkpointTick"`
	EndReason        EndReason             `json:"endReason"`
	TestMode         bool                  `json:"testMode,omitempty"`
	TestPlayerIDs    []int                 `json:"testPlayerIds,omitempty"`
}

// FormatVersion is the container-format revision this package writes.
const FormatVersion = 1

// PRNGAlgorithm names the deterministic seed-derivation scheme the
// kernel uses.
const PRNGAlgorithm = "fnv1a64-seed-derivation-v1"

// MoveSpeedTuningParam is the v0 tuning parameter spec.md §4.5 requires
// every artifact to carry.
const MoveSpeedTuningParam = "move_speed"
