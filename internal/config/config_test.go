package config

import (
	"testing"
)

func TestFromEnvOverridesTickRate(t *testing.T) {
	t.Setenv("TICK_RATE_HZ", "30")
	cfg := FromEnv(nil)
	if cfg.TickRateHz != 30 || cfg.SnapshotRateHz != 30 {
		t.Fatalf("expected tick rate and snapshot rate both overridden to 30, got %+v", cfg)
	}
}

func TestFromEnvIgnoresInvalidValue(t *testing.T) {
	t.Setenv("TICK_RATE_HZ", "not-a-number")
	var warned bool
	cfg := FromEnv(func(string, ...any) { warned = true })
	if cfg.TickRateHz != Default().TickRateHz {
		t.Fatalf("expected default to survive an invalid override, got %d", cfg.TickRateHz)
	}
	if !warned {
		t.Fatal("expected a warning for the invalid value")
	}
}

func TestFromEnvOverridesLogJSONPath(t *testing.T) {
	t.Setenv("LOG_JSON_PATH", "/tmp/duelmatch-events.jsonl")
	cfg := FromEnv(nil)
	if cfg.LogJSONPath != "/tmp/duelmatch-events.jsonl" {
		t.Fatalf("expected LogJSONPath override, got %q", cfg.LogJSONPath)
	}
}

func TestInputRateLimitPerTickCeilingDivides(t *testing.T) {
	cfg := Default()
	cfg.TickRateHz = 60
	cfg.InputRateLimitPerSec = 30
	if got := cfg.InputRateLimitPerTick(); got != 1 {
		t.Fatalf("expected 30/60 to ceiling-divide to 1, got %d", got)
	}
	cfg.InputRateLimitPerSec = 90
	if got := cfg.InputRateLimitPerTick(); got != 2 {
		t.Fatalf("expected 90/60 to ceiling-divide to 2, got %d", got)
	}
}

