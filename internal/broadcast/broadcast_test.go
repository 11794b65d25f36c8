package broadcast

import (
	"bytes"
	"context"
	"testing"

	"duelmatch/server/internal/kernel"
	"duelmatch/server/internal/pipeline"
	"duelmatch/server/internal/transport"
	"duelmatch/server/internal/transport/memtransport"
)

func TestPublishDeliversByteIdenticalSnapshots(t *testing.T) {
	tr := memtransport.New()
	pipe := pipeline.New(pipeline.Config{MaxFutureTicks: 5, InputRateLimitPerTick: 10}, nil)
	pipe.RegisterSession(0, 1)
	pipe.RegisterSession(1, 1)

	b := New(tr, pipe, 1)
	b.BindPeer(0, "peer-a")
	b.BindPeer(1, "peer-b")

	snap := kernel.Snapshot{
		Tick: 5,
		Entities: []kernel.EntityRecord{
			{EntityID: 1, Position: kernel.Vec2{X: 1, Y: 2}},
			{EntityID: 2, Position: kernel.Vec2{X: 3, Y: 4}},
		},
		Digest: 0xdeadbeef,
	}
	if err := b.Publish(context.Background(), snap); err != nil {
		t.Fatalf("unexpected publish error: %v", err)
	}

	a := tr.SentTo("peer-a", transport.ChannelRealtime)
	c := tr.SentTo("peer-b", transport.ChannelRealtime)
	if len(a) != 1 || len(c) != 1 {
		t.Fatalf("expected exactly one realtime send per peer, got %d and %d", len(a), len(c))
	}
	if !bytes.Equal(a[0], c[0]) {
		t.Fatalf("expected byte-identical snapshots, got %s vs %s", a[0], c[0])
	}
}

func TestPublishAdvancesFloorMonotonically(t *testing.T) {
	tr := memtransport.New()
	pipe := pipeline.New(pipeline.Config{MaxFutureTicks: 5, InputRateLimitPerTick: 10}, nil)
	pipe.RegisterSession(0, 1)

	b := New(tr, pipe, 1)
	b.BindPeer(0, "peer-a")

	if got := b.Floor(4); got != 5 {
		t.Fatalf("expected floor = tick + input_lead_ticks = 5, got %d", got)
	}

	if err := b.Publish(context.Background(), kernel.Snapshot{Tick: 4}); err != nil {
		t.Fatalf("unexpected publish error: %v", err)
	}
	ok, reason := pipe.Admit(context.Background(), 0, 4, pipeline.InputMessage{Tick: 4, InputSeq: 1})
	if ok {
		t.Fatalf("expected a message below the newly advanced floor to be dropped, got reason=%v", reason)
	}
}

func TestSendWelcomeEncodesBaselineOnControlChannel(t *testing.T) {
	tr := memtransport.New()
	pipe := pipeline.New(pipeline.Config{MaxFutureTicks: 5, InputRateLimitPerTick: 10}, nil)
	b := New(tr, pipe, 1)
	b.BindPeer(0, "peer-a")

	baseline := kernel.Baseline{
		Tick:     0,
		Entities: []kernel.EntityRecord{{EntityID: 1}},
		Digest:   42,
	}
	if err := b.SendWelcome(context.Background(), 0, 1, 60, baseline); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := tr.SentTo("peer-a", transport.ChannelControl)
	if len(sent) != 2 {
		t.Fatalf("expected ServerWelcome then JoinBaseline, got %d messages", len(sent))
	}
}
