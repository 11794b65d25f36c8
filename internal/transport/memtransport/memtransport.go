// Package memtransport is an in-memory transport.Transport used by tests
// for the session binder, broadcast, and process wiring. It has no
// network I/O: peers are simulated directly by the test driving it.
package memtransport

import (
	"fmt"
	"sync"

	"duelmatch/server/internal/transport"
)

// Transport is a transport.Transport backed by plain Go maps and
// channels, safe for concurrent use.
type Transport struct {
	mu          sync.Mutex
	accept      chan string
	disconnect  chan string
	inbound     []transport.Inbound
	sent        map[string][]sentMessage
	closed      map[string]bool
}

type sentMessage struct {
	Channel transport.Channel
	Payload []byte
}

// New constructs an empty Transport.
func New() *Transport {
	return &Transport{
		accept:     make(chan string, 64),
		disconnect: make(chan string, 64),
		sent:       make(map[string][]sentMessage),
		closed:     make(map[string]bool),
	}
}

func (t *Transport) Accept() <-chan string       { return t.accept }
func (t *Transport) Disconnected() <-chan string { return t.disconnect }

func (t *Transport) Send(peerID string, ch transport.Channel, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed[peerID] {
		return fmt.Errorf("memtransport: peer %s is closed", peerID)
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	t.sent[peerID] = append(t.sent[peerID], sentMessage{Channel: ch, Payload: cp})
	return nil
}

func (t *Transport) Drain() []transport.Inbound {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.inbound
	t.inbound = nil
	return out
}

func (t *Transport) Close(peerID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed[peerID] = true
	return nil
}

// ConnectPeer simulates a new inbound connection, as if a client had just
// dialed in. It is the test-side counterpart of Accept.
func (t *Transport) ConnectPeer(peerID string) {
	t.accept <- peerID
}

// DisconnectPeer simulates a lost connection.
func (t *Transport) DisconnectPeer(peerID string) {
	t.disconnect <- peerID
}

// Deliver injects an inbound message as if it had just arrived over the
// wire, to be picked up by the next Drain call.
func (t *Transport) Deliver(peerID string, ch transport.Channel, payload []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inbound = append(t.inbound, transport.Inbound{PeerID: peerID, Channel: ch, Payload: payload})
}

// SentTo returns every payload sent to peerID on ch, in send order, for
// assertions in tests.
func (t *Transport) SentTo(peerID string, ch transport.Channel) [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out [][]byte
	for _, m := range t.sent[peerID] {
		if m.Channel == ch {
			out = append(out, m.Payload)
		}
	}
	return out
}

// IsClosed reports whether Close has been called for peerID.
func (t *Transport) IsClosed(peerID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed[peerID]
}
