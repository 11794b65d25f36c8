// Package config centralizes the tunables that govern the pipeline and
// broadcast behavior. Configuration is loaded once at process start and
// never read by the kernel itself at step time.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"duelmatch/server/internal/pipeline"
)

// Config carries every tunable named in spec.md §6's parameters table,
// plus the test-mode and player-id-override knobs §4.3/§8 require.
type Config struct {
	TickRateHz            int
	SnapshotRateHz        int
	MaxFutureTicks        uint64
	InputLeadTicks        uint64
	InputRateLimitPerSec  int
	MatchDurationTicks    uint64
	ConnectTimeout        time.Duration

	// ListenAddr is the HTTP/WebSocket listen address. Not part of
	// spec.md's parameter table (that table is domain-only); it is
	// ambient process wiring.
	ListenAddr string

	// ArtifactDir is the directory replay artifacts are written to.
	ArtifactDir string

	// LogJSONPath, when non-empty, additionally writes newline-delimited
	// structured events to this file alongside the console sink.
	LogJSONPath string

	// TestMode selects the synchronous "manual step" match loop (no
	// ticker, no pacing calls — see internal/app.runManualStep) and lets
	// the session binder substitute a non-default id assignment via
	// TestPlayerIDs (spec.md §4.3, §5, §8 property 11).
	TestMode      bool
	TestPlayerIDs [2]int
}

// Default returns the baseline configuration. snapshot_rate_hz always
// equals tick_rate_hz in this phase, as spec.md §6 requires.
func Default() Config {
	return Config{
		TickRateHz:           60,
		SnapshotRateHz:       60,
		MaxFutureTicks:       5,
		InputLeadTicks:       1,
		InputRateLimitPerSec: 30,
		MatchDurationTicks:   3600,
		ConnectTimeout:       10 * time.Second,
		ListenAddr:           ":8080",
		ArtifactDir:          "replays",
		TestPlayerIDs:        [2]int{0, 1},
	}
}

// FromEnv starts from Default and overrides any field whose environment
// variable is set, mirroring the teacher's KEYFRAME_INTERVAL_TICKS /
// ENABLE_PPROF_TRACE override pattern: invalid values are reported but
// do not prevent startup with the prior value.
func FromEnv(warn func(format string, args ...any)) Config {
	if warn == nil {
		warn = func(string, ...any) {}
	}
	cfg := Default()

	overrideInt(&cfg.TickRateHz, "TICK_RATE_HZ", warn)
	cfg.SnapshotRateHz = cfg.TickRateHz
	overrideUint64(&cfg.MaxFutureTicks, "MAX_FUTURE_TICKS", warn)
	overrideUint64(&cfg.InputLeadTicks, "INPUT_LEAD_TICKS", warn)
	overrideInt(&cfg.InputRateLimitPerSec, "INPUT_RATE_LIMIT_PER_SEC", warn)
	overrideUint64(&cfg.MatchDurationTicks, "MATCH_DURATION_TICKS", warn)
	overrideDurationMS(&cfg.ConnectTimeout, "CONNECT_TIMEOUT_MS", warn)
	overrideString(&cfg.ListenAddr, "LISTEN_ADDR", warn)
	overrideString(&cfg.ArtifactDir, "ARTIFACT_DIR", warn)
	overrideString(&cfg.LogJSONPath, "LOG_JSON_PATH", warn)
	overrideBool(&cfg.TestMode, "TEST_MODE", warn)

	if raw := os.Getenv("TEST_PLAYER_IDS"); raw != "" {
		var a, b int
		if _, err := fmt.Sscanf(raw, "%d,%d", &a, &b); err == nil {
			cfg.TestPlayerIDs = [2]int{a, b}
		} else {
			warn("invalid TEST_PLAYER_IDS=%q: %v", raw, err)
		}
	}

	return cfg
}

func overrideInt(dst *int, key string, warn func(string, ...any)) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		warn("invalid %s=%q: %v", key, raw, err)
		return
	}
	*dst = value
}

func overrideUint64(dst *uint64, key string, warn func(string, ...any)) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		warn("invalid %s=%q: %v", key, raw, err)
		return
	}
	*dst = value
}

func overrideDurationMS(dst *time.Duration, key string, warn func(string, ...any)) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		warn("invalid %s=%q: %v", key, raw, err)
		return
	}
	*dst = time.Duration(value) * time.Millisecond
}

func overrideString(dst *string, key string, warn func(string, ...any)) {
	if raw := os.Getenv(key); raw != "" {
		*dst = raw
	}
}

func overrideBool(dst *bool, key string, warn func(string, ...any)) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		warn("invalid %s=%q: %v", key, raw, err)
		return
	}
	*dst = value
}

// InputRateLimitPerTick converts the per-second rate limit into the
// per-(session, tick) budget the pipeline enforces.
func (c Config) InputRateLimitPerTick() int {
	return pipeline.RateLimitPerTick(c.InputRateLimitPerSec, c.TickRateHz)
}
