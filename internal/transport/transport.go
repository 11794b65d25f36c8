// Package transport defines the narrow seam between the match core and
// whatever network fabric actually moves bytes: send on a named channel to
// a peer, drain received messages tagged by peer. Everything upstream of
// this interface (session binding, admission, broadcast) is written
// against Transport, never against a concrete socket library, so the core
// can run identically against the production WebSocket implementation in
// ws/ and the in-memory fake in memtransport/.
package transport

// Channel identifies one of the two logical delivery semantics the core
// relies on. Both are carried over a single physical connection per peer
// in the production implementation; the distinction is purely logical.
type Channel int

const (
	// ChannelRealtime is unreliable + sequenced: newer payloads supersede
	// older ones for the same logical slot. Used for snapshots and input
	// commands.
	ChannelRealtime Channel = iota
	// ChannelControl is reliable + ordered. Used for the handshake
	// messages (ClientHello, ServerWelcome, JoinBaseline).
	ChannelControl
)

func (c Channel) String() string {
	switch c {
	case ChannelRealtime:
		return "realtime"
	case ChannelControl:
		return "control"
	default:
		return "unknown"
	}
}

// Inbound is one received message, tagged with the peer it arrived from
// and the channel it was declared on.
type Inbound struct {
	PeerID  string
	Channel Channel
	Payload []byte
}

// Transport is the one capability the match core needs from the network:
// the ability to send bytes to a specific peer on a named channel, and the
// ability to synchronously drain whatever has arrived since the last
// drain. Accept and Disconnected surface peer lifecycle events so the
// Session Binder can gate pre-handshake traffic without Transport needing
// to know anything about players, matches, or the wire protocol.
type Transport interface {
	// Accept returns peer ids as new connections arrive. Neither
	// implementation in this repository (ws, memtransport) ever closes it.
	Accept() <-chan string
	// Disconnected returns peer ids as connections are lost.
	Disconnected() <-chan string
	// Send delivers payload to peerID on channel ch.
	Send(peerID string, ch Channel, payload []byte) error
	// Drain returns every message received since the last Drain call,
	// in arrival order, and clears the internal queue. It never blocks.
	Drain() []Inbound
	// Close tears down a single peer's connection.
	Close(peerID string) error
}
