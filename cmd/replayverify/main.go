// Command replayverify independently verifies a persisted replay
// artifact by reconstructing the kernel and recomputing both digest
// anchors, per spec.md §4.6.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"duelmatch/server/internal/replay"
)

func main() {
	strict := flag.Bool("strict", true, "abort on build-fingerprint mismatch (default)")
	dev := flag.Bool("dev", false, "development mode: warn and continue past a fingerprint mismatch")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: replayverify [-strict|-dev] <artifact.json>")
		os.Exit(2)
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "replayverify: read artifact: %v\n", err)
		os.Exit(1)
	}

	var artifact replay.Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		fmt.Fprintf(os.Stderr, "replayverify: parse artifact: %v\n", err)
		os.Exit(1)
	}

	useStrict := *strict && !*dev
	if !useStrict {
		if current, err := replay.CurrentFingerprint(); err == nil && !replay.FingerprintsEqual(current, artifact.BuildFingerprint) {
			fmt.Fprintln(os.Stderr, "replayverify: warning: build fingerprint mismatch, continuing in development mode")
		}
	}
	if err := replay.Verify(context.Background(), nil, artifact, useStrict); err != nil {
		fmt.Fprintf(os.Stderr, "replayverify: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("replayverify: ok (checkpoint_tick=%d, final_digest=%d)\n", artifact.CheckpointTick, artifact.FinalDigest)
}
