package wire

import (
	"testing"

	"duelmatch/server/internal/kernel"
)

func TestEncodeDecodeInputCmd(t *testing.T) {
	want := InputCmd{Tick: 7, InputSeq: 3, MoveDirX: 1, MoveDirY: 0}
	data, err := Encode(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(InputCmd)
	if !ok {
		t.Fatalf("expected InputCmd, got %T", decoded)
	}
	if got.Tick != want.Tick || got.InputSeq != want.InputSeq || got.MoveDir() != (kernel.Vec2{X: 1, Y: 0}) {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
	if got.Ver != Version || got.Type != TypeInputCmd {
		t.Fatalf("expected envelope fields to be filled in, got ver=%d type=%s", got.Ver, got.Type)
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	if _, err := Decode([]byte(`{"ver":1,"type":"bogus"}`)); err == nil {
		t.Fatal("expected an error for an unrecognized message type")
	}
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	if _, err := Decode([]byte(`{"ver":99,"type":"inputCmd"}`)); err == nil {
		t.Fatal("expected an error for a protocol version mismatch")
	}
}

func TestEntityRecordsFromPreservesOrder(t *testing.T) {
	in := []kernel.EntityRecord{
		{EntityID: 1, Position: kernel.Vec2{X: 1, Y: 2}, Velocity: kernel.Vec2{X: 0, Y: 0}},
		{EntityID: 2, Position: kernel.Vec2{X: 3, Y: 4}, Velocity: kernel.Vec2{X: 0, Y: 0}},
	}
	out := EntityRecordsFrom(in)
	if len(out) != 2 || out[0].EntityID != 1 || out[1].EntityID != 2 {
		t.Fatalf("expected order preserved, got %+v", out)
	}
	if out[0].PosX != 1 || out[0].PosY != 2 {
		t.Fatalf("expected position fields copied, got %+v", out[0])
	}
}
