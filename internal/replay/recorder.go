package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"duelmatch/server/internal/kernel"
	"duelmatch/server/internal/pipeline"
	"duelmatch/server/logging"
	"duelmatch/server/logging/replay"
)

// matchIDPattern enforces spec.md §6's match id shape: filesystem- and
// URL-safe, 16-64 characters, drawn from [A-Za-z0-9_-].
var matchIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{16,64}$`)

// ValidMatchID reports whether id satisfies the artifact addressing
// constraint.
func ValidMatchID(id string) bool {
	return matchIDPattern.MatchString(id)
}

// Recorder observes initialization and every applied input emitted by
// the pipeline, and writes the final artifact at match end.
type Recorder struct {
	pub    logging.Publisher
	matchID string
	dir    string

	seed       string
	tickRateHz int
	spawnOrder []int
	players    []PlayerEntity
	baseline   BaselineRecord
	applied    []AppliedInputRecord
	testMode   bool
	testIDs    []int
}

// New constructs a Recorder for one match, rooted at dir for artifact
// writes.
func New(pub logging.Publisher, dir, matchID string) *Recorder {
	if pub == nil {
		pub = logging.NopPublisher()
	}
	return &Recorder{pub: pub, matchID: matchID, dir: dir}
}

// Init records the match's initialization parameters: called once, on
// the second session bind.
func (r *Recorder) Init(seed string, tickRateHz int, spawnOrder []int, players []PlayerEntity, baseline kernel.Baseline, testMode bool, testIDs []int) {
	r.seed = seed
	r.tickRateHz = tickRateHz
	r.spawnOrder = append([]int(nil), spawnOrder...)

	sortedPlayers := append([]PlayerEntity(nil), players...)
	sort.Slice(sortedPlayers, func(i, j int) bool { return sortedPlayers[i].PlayerID < sortedPlayers[j].PlayerID })
	r.players = sortedPlayers

	r.baseline = BaselineRecord{
		Tick:     baseline.Tick,
		Entities: append([]kernel.EntityRecord(nil), baseline.Entities...),
		Digest:   baseline.Digest,
	}
	r.testMode = testMode
	r.testIDs = append([]int(nil), testIDs...)
}

// Observe appends one tick's applied inputs to the recorded stream.
func (r *Recorder) Observe(applied []pipeline.AppliedInput) {
	for _, a := range applied {
		r.applied = append(r.applied, AppliedInputRecord{
			Tick:       a.Tick,
			PlayerID:   a.PlayerID,
			MoveDir:    a.MoveDir,
			IsFallback: a.IsFallback,
		})
	}
}

// tuningParams returns the sorted tuning-parameter list this artifact
// format carries. v0 carries exactly move_speed.
func tuningParams() []TuningParam {
	return []TuningParam{{Key: MoveSpeedTuningParam, Value: kernel.MoveSpeed}}
}

// canonicalAppliedInputs sorts the recorded stream by tick ascending,
// then player id ascending, as spec.md §4.5 requires of the stored
// artifact.
func canonicalAppliedInputs(in []AppliedInputRecord) []AppliedInputRecord {
	out := append([]AppliedInputRecord(nil), in...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tick != out[j].Tick {
			return out[i].Tick < out[j].Tick
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out
}

// Finish assembles and writes the final artifact. finalDigest and
// checkpointTick come from the kernel's state after the last processed
// tick; endReason records why the match stopped.
func (r *Recorder) Finish(ctx context.Context, fp BuildFingerprint, finalDigest uint64, checkpointTick uint64, endReason EndReason) (Artifact, error) {
	artifact := Artifact{
		SchemaVersion:    SchemaVersion,
		FormatVersion:    FormatVersion,
		DigestAlgorithm:  kernel.DigestAlgorithm,
		PRNGAlgorithm:    PRNGAlgorithm,
		TickRateHz:       r.tickRateHz,
		Seed:             r.seed,
		SpawnOrder:       r.spawnOrder,
		PlayerEntities:   r.players,
		TuningParams:     tuningParams(),
		InitialBaseline:  r.baseline,
		AppliedInputs:    canonicalAppliedInputs(r.applied),
		BuildFingerprint: fp,
		FinalDigest:      finalDigest,
		CheckpointTick:   checkpointTick,
		EndReason:        endReason,
		TestMode:         r.testMode,
		TestPlayerIDs:    r.testIDs,
	}

	path, err := r.write(ctx, artifact)
	if err != nil {
		replay.VerificationFailed(ctx, r.pub, replay.VerificationFailedPayload{Step: "write", Reason: err.Error()})
		return artifact, err
	}
	replay.ArtifactWritten(ctx, r.pub, replay.ArtifactWrittenPayload{MatchID: r.matchID, Path: path})
	return artifact, nil
}

func (r *Recorder) write(ctx context.Context, artifact Artifact) (string, error) {
	if !ValidMatchID(r.matchID) {
		return "", fmt.Errorf("replay: invalid match id %q", r.matchID)
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return "", fmt.Errorf("replay: marshal artifact: %w", err)
	}

	path := filepath.Join(r.dir, r.matchID+".json")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			replay.ArtifactCollision(ctx, r.pub, replay.ArtifactCollisionPayload{MatchID: r.matchID, Path: path})
		}
		return "", fmt.Errorf("replay: open artifact path: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return "", fmt.Errorf("replay: write artifact: %w", err)
	}
	return path, nil
}
