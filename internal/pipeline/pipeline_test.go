package pipeline

import (
	"context"
	"testing"

	"duelmatch/server/internal/kernel"
	"duelmatch/server/logging/admission"
)

func newTestPipeline(maxFuture uint64, rateLimit int) *Pipeline {
	p := New(Config{MaxFutureTicks: maxFuture, InputRateLimitPerTick: rateLimit}, nil)
	p.RegisterSession(0, 1)
	p.RegisterSession(1, 1)
	return p
}

func TestAdmitBeforeHandshakeDropped(t *testing.T) {
	p := New(Config{MaxFutureTicks: 5, InputRateLimitPerTick: 10}, nil)
	ok, reason := p.Admit(context.Background(), 0, 0, InputMessage{Tick: 0})
	if ok || reason != admission.ReasonBeforeHandshake {
		t.Fatalf("expected before-handshake drop, got ok=%v reason=%v", ok, reason)
	}
}

func TestAdmitDropsNonFiniteShape(t *testing.T) {
	p := newTestPipeline(5, 10)
	ok, reason := p.Admit(context.Background(), 0, 0, InputMessage{Tick: 1, MoveDir: kernel.Vec2{X: kernelNaN()}})
	if ok || reason != admission.ReasonShape {
		t.Fatalf("expected shape drop, got ok=%v reason=%v", ok, reason)
	}
}

func TestAdmitNormalizesOversizedMagnitude(t *testing.T) {
	p := newTestPipeline(5, 10)
	ok, _ := p.Admit(context.Background(), 0, 0, InputMessage{Tick: 1, InputSeq: 1, MoveDir: kernel.Vec2{X: 3, Y: 4}})
	if !ok {
		t.Fatal("expected oversized magnitude to be accepted after normalization")
	}
	applied := p.ConsumeTick(context.Background(), 1)
	for _, a := range applied {
		if a.PlayerID == 0 {
			if got := a.MoveDir.Len(); got > 1.0000001 {
				t.Fatalf("expected normalized move_dir length <= 1, got %v", got)
			}
		}
	}
}

func TestAdmitDropsBelowFloor(t *testing.T) {
	p := newTestPipeline(5, 10)
	p.UpdateFloor(0, 10)
	ok, reason := p.Admit(context.Background(), 0, 5, InputMessage{Tick: 9, InputSeq: 1})
	if ok || reason != admission.ReasonFloor {
		t.Fatalf("expected floor drop, got ok=%v reason=%v", ok, reason)
	}
}

func TestAdmitDropsOutsideFutureWindow(t *testing.T) {
	p := newTestPipeline(3, 10)
	ok, reason := p.Admit(context.Background(), 0, 0, InputMessage{Tick: 4, InputSeq: 1})
	if ok || reason != admission.ReasonWindow {
		t.Fatalf("expected window drop, got ok=%v reason=%v", ok, reason)
	}
}

func TestAdmitEnforcesRateLimit(t *testing.T) {
	p := newTestPipeline(5, 1)
	ok1, _ := p.Admit(context.Background(), 0, 0, InputMessage{Tick: 1, InputSeq: 1})
	ok2, reason2 := p.Admit(context.Background(), 0, 0, InputMessage{Tick: 1, InputSeq: 2})
	if !ok1 {
		t.Fatal("expected first message within the tick's rate budget to be admitted")
	}
	if ok2 || reason2 != admission.ReasonRateLimit {
		t.Fatalf("expected second message to be rate-limited, got ok=%v reason=%v", ok2, reason2)
	}
}

func TestConsumeTickFallsBackToLastKnownIntent(t *testing.T) {
	p := newTestPipeline(5, 10)
	applied := p.ConsumeTick(context.Background(), 0)
	for _, a := range applied {
		if !a.IsFallback {
			t.Fatalf("expected fallback applied input with no prior admission, got %+v", a)
		}
		if a.MoveDir != (kernel.Vec2{}) {
			t.Fatalf("expected zero-vector fallback before any intent arrives, got %+v", a.MoveDir)
		}
	}
}

func TestConsumeTickTiedSlotFallsBack(t *testing.T) {
	p := newTestPipeline(5, 10)
	p.Admit(context.Background(), 0, 3, InputMessage{Tick: 3, InputSeq: 7, MoveDir: kernel.Vec2{X: 1}})
	p.Admit(context.Background(), 0, 3, InputMessage{Tick: 3, InputSeq: 7, MoveDir: kernel.Vec2{X: -1}})

	applied := p.ConsumeTick(context.Background(), 3)
	var got AppliedInput
	for _, a := range applied {
		if a.PlayerID == 0 {
			got = a
		}
	}
	if !got.IsFallback {
		t.Fatalf("expected tied slot to fall back to last-known intent, got %+v", got)
	}
	if got.MoveDir != (kernel.Vec2{}) {
		t.Fatalf("expected fallback to the zero last-known intent, got %+v", got.MoveDir)
	}
}

func TestConsumeTickLatestSeqWins(t *testing.T) {
	p := newTestPipeline(5, 10)
	p.Admit(context.Background(), 0, 3, InputMessage{Tick: 3, InputSeq: 5, MoveDir: kernel.Vec2{X: 1}})
	p.Admit(context.Background(), 0, 3, InputMessage{Tick: 3, InputSeq: 9, MoveDir: kernel.Vec2{X: 0, Y: 1}})
	p.Admit(context.Background(), 0, 3, InputMessage{Tick: 3, InputSeq: 7, MoveDir: kernel.Vec2{X: -1}})

	applied := p.ConsumeTick(context.Background(), 3)
	var got AppliedInput
	for _, a := range applied {
		if a.PlayerID == 0 {
			got = a
		}
	}
	if got.IsFallback {
		t.Fatal("expected a definitive (non-fallback) selection")
	}
	if got.MoveDir != (kernel.Vec2{X: 0, Y: 1}) {
		t.Fatalf("expected the highest-seq move_dir to win, got %+v", got.MoveDir)
	}
}

func TestFutureMessageDoesNotAffectEarlierTicks(t *testing.T) {
	p := newTestPipeline(10, 10)
	// A valid future message for tick 5 is admitted before tick 0 is consumed.
	ok, _ := p.Admit(context.Background(), 0, 0, InputMessage{Tick: 5, InputSeq: 1, MoveDir: kernel.Vec2{Y: 1}})
	if !ok {
		t.Fatal("expected future message within the window to be admitted")
	}

	applied := p.ConsumeTick(context.Background(), 0)
	for _, a := range applied {
		if a.PlayerID == 0 && !a.IsFallback {
			t.Fatalf("expected tick 0 to be unaffected by a message targeting tick 5, got %+v", a)
		}
	}
}

func TestConsumeTickSortedByPlayerID(t *testing.T) {
	p := New(Config{MaxFutureTicks: 5, InputRateLimitPerTick: 10}, nil)
	p.RegisterSession(99, 1)
	p.RegisterSession(17, 1)

	applied := p.ConsumeTick(context.Background(), 0)
	if len(applied) != 2 || applied[0].PlayerID != 17 || applied[1].PlayerID != 99 {
		t.Fatalf("expected applied inputs sorted by player id ascending, got %+v", applied)
	}
}

func kernelNaN() float64 {
	var zero float64
	return zero / zero
}
