package app

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// randomMatchID produces a fresh match id satisfying replay.ValidMatchID:
// a UUIDv4 with its hyphens stripped is 32 characters of [0-9a-f], well
// within the 16-64 character bound.
func randomMatchID() string {
	id := uuid.New()
	return hexNoHyphens(id)
}

func hexNoHyphens(id uuid.UUID) string {
	buf := id[:]
	return hex.EncodeToString(buf)
}

// randomSeed produces a fresh world seed. The seed itself need not be
// secret; it only needs to differ across matches so independent matches
// don't share a PRNG stream.
func randomSeed() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read on this platform failing is not a condition
		// worth inventing a fallback for; surface it as a fixed, clearly
		// non-random seed instead of panicking mid-match.
		return "fallback-seed"
	}
	return hex.EncodeToString(buf)
}
