package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"duelmatch/server/internal/config"
	"duelmatch/server/internal/replay"
	"duelmatch/server/internal/transport/memtransport"
	"duelmatch/server/logging"
	"duelmatch/server/logging/lifecycle"
	"duelmatch/server/logging/sinks"
)

func TestRunCompletesAShortMatchAndWritesAnArtifact(t *testing.T) {
	tr := memtransport.New()
	cfg := config.Default()
	cfg.TestMode = true
	cfg.MatchDurationTicks = 5
	cfg.ConnectTimeout = time.Second
	cfg.ArtifactDir = t.TempDir()

	matchID := "0123456789abcdef"

	tr.ConnectPeer("peer-a")
	tr.ConnectPeer("peer-b")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := Run(ctx, cfg, Deps{Transport: tr, Seed: "fixed-seed", MatchID: matchID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cfg.ArtifactDir, matchID+".json"))
	if err != nil {
		t.Fatalf("expected an artifact to be written: %v", err)
	}
	var artifact replay.Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		t.Fatalf("failed to parse artifact: %v", err)
	}
	if artifact.CheckpointTick != cfg.MatchDurationTicks {
		t.Fatalf("expected checkpoint tick %d, got %d", cfg.MatchDurationTicks, artifact.CheckpointTick)
	}
	if artifact.EndReason != replay.EndReasonComplete {
		t.Fatalf("expected a complete match, got end reason %q", artifact.EndReason)
	}

	if err := replay.Verify(context.Background(), nil, artifact, false); err != nil {
		t.Fatalf("expected the recorded artifact to verify cleanly, got %v", err)
	}
}

func TestRunPublishesLifecycleEventsToRouter(t *testing.T) {
	tr := memtransport.New()
	cfg := config.Default()
	cfg.TestMode = true
	cfg.MatchDurationTicks = 3
	cfg.ConnectTimeout = time.Second
	cfg.ArtifactDir = t.TempDir()

	mem := sinks.NewMemorySink()
	router, err := logging.NewRouter(nil, logging.DefaultConfig("fedcba9876543210"), []logging.NamedSink{
		{Name: "memory", Sink: mem},
	})
	if err != nil {
		t.Fatalf("failed to construct router: %v", err)
	}
	defer router.Close(context.Background())

	tr.ConnectPeer("peer-a")
	tr.ConnectPeer("peer-b")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := Run(ctx, cfg, Deps{Transport: tr, Publisher: router, Seed: "fixed-seed", MatchID: "fedcba9876543210"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	var seenStarted, seenEnded bool
	for time.Now().Before(deadline) {
		for _, event := range mem.Events() {
			switch event.Type {
			case lifecycle.EventMatchStarted:
				seenStarted = true
			case lifecycle.EventMatchEnded:
				seenEnded = true
			}
		}
		if seenStarted && seenEnded {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !seenStarted {
		t.Fatalf("expected a match_started event to reach the memory sink")
	}
	if !seenEnded {
		t.Fatalf("expected a match_ended event to reach the memory sink")
	}
}

func TestRunWritesJSONLogWhenConfigured(t *testing.T) {
	tr := memtransport.New()
	cfg := config.Default()
	cfg.TestMode = true
	cfg.MatchDurationTicks = 2
	cfg.ConnectTimeout = time.Second
	cfg.ArtifactDir = t.TempDir()
	cfg.LogJSONPath = filepath.Join(t.TempDir(), "events.jsonl")

	tr.ConnectPeer("peer-a")
	tr.ConnectPeer("peer-b")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := Run(ctx, cfg, Deps{Transport: tr, Seed: "fixed-seed", MatchID: "abcdef0123456789"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(cfg.LogJSONPath)
	if err != nil {
		t.Fatalf("expected a json log file to be written: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected the json log to contain at least one event")
	}
	var decoded map[string]any
	firstLine := data[:bytesIndexOrAll(data, '\n')]
	if err := json.Unmarshal(firstLine, &decoded); err != nil {
		t.Fatalf("expected the first json log line to parse: %v", err)
	}
}

func bytesIndexOrAll(data []byte, sep byte) int {
	for i, b := range data {
		if b == sep {
			return i
		}
	}
	return len(data)
}
