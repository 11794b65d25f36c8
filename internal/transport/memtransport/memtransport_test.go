package memtransport

import (
	"testing"

	"duelmatch/server/internal/transport"
)

func TestConnectAndDeliver(t *testing.T) {
	tr := New()
	tr.ConnectPeer("peer-a")

	select {
	case got := <-tr.Accept():
		if got != "peer-a" {
			t.Fatalf("expected peer-a, got %s", got)
		}
	default:
		t.Fatal("expected an accept event")
	}

	tr.Deliver("peer-a", transport.ChannelControl, []byte(`{"hello":true}`))
	inbound := tr.Drain()
	if len(inbound) != 1 || inbound[0].PeerID != "peer-a" {
		t.Fatalf("expected one inbound message from peer-a, got %+v", inbound)
	}
	if len(tr.Drain()) != 0 {
		t.Fatal("expected drain to clear the queue")
	}
}

func TestSendAfterCloseFails(t *testing.T) {
	tr := New()
	tr.ConnectPeer("peer-a")
	<-tr.Accept()

	if err := tr.Close("peer-a"); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if !tr.IsClosed("peer-a") {
		t.Fatal("expected peer to be marked closed")
	}
	if err := tr.Send("peer-a", transport.ChannelRealtime, []byte("x")); err == nil {
		t.Fatal("expected send to a closed peer to fail")
	}
}

func TestSentToRecordsByChannel(t *testing.T) {
	tr := New()
	tr.ConnectPeer("peer-a")
	<-tr.Accept()

	if err := tr.Send("peer-a", transport.ChannelRealtime, []byte("snap-1")); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if err := tr.Send("peer-a", transport.ChannelControl, []byte("hello")); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}

	realtime := tr.SentTo("peer-a", transport.ChannelRealtime)
	if len(realtime) != 1 || string(realtime[0]) != "snap-1" {
		t.Fatalf("expected one realtime message, got %+v", realtime)
	}
}
