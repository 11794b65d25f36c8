// Package session implements the Session Binder: it accepts transport
// peer events until exactly two sessions are bound, assigning player ids
// in bind order, then hands off to the match loop. Before the second bind
// completes there is no simulation, no ServerWelcome, and every inbound
// message is discarded.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"duelmatch/server/internal/transport"
	"duelmatch/server/logging"
	"duelmatch/server/logging/lifecycle"
)

// ErrConnectTimeout is returned by Bind when the connection timeout
// elapses before two sessions have bound.
var ErrConnectTimeout = errors.New("session: connect timeout waiting for second peer")

// ErrPreMatchDisconnect is returned by Bind when a bound peer disconnects
// before the match can start.
var ErrPreMatchDisconnect = errors.New("session: peer disconnected before match start")

// Session is one bound peer: a player id assigned in bind order and the
// peer id the transport uses to address it.
type Session struct {
	PlayerID int
	PeerID   string
}

// IDAssigner produces the player id for the Nth bind (0-indexed). The
// default assigns contiguous ids starting at 0; tests may substitute an
// override to prove player id is treated as a pure indexing key rather
// than assumed to be 0 or 1.
type IDAssigner func(bindIndex int) int

// DefaultIDAssigner assigns player id 0 to the first bind and 1 to the
// second.
func DefaultIDAssigner(bindIndex int) int { return bindIndex }

// Binder accepts peer events from a transport.Transport and produces
// exactly two bound Sessions, or an error explaining why it could not.
type Binder struct {
	tr           transport.Transport
	pub          logging.Publisher
	connTimeout  time.Duration
	assignID     IDAssigner
}

// Config carries the Binder's tunables.
type Config struct {
	ConnectTimeout time.Duration
	IDAssigner     IDAssigner
}

// New constructs a Binder. A nil IDAssigner defaults to
// DefaultIDAssigner.
func New(tr transport.Transport, pub logging.Publisher, cfg Config) *Binder {
	if pub == nil {
		pub = logging.NopPublisher()
	}
	assign := cfg.IDAssigner
	if assign == nil {
		assign = DefaultIDAssigner
	}
	return &Binder{
		tr:          tr,
		pub:         pub,
		connTimeout: cfg.ConnectTimeout,
		assignID:    assign,
	}
}

// Bind blocks until two peers have connected, one of the bound peers
// disconnects, or the connect timeout elapses. On success it returns the
// two sessions in bind order (session[0] was accepted first). Every
// inbound message arriving on the transport before the second bind is
// silently discarded; Bind does not call Drain on behalf of the caller
// for any other purpose.
func (b *Binder) Bind(ctx context.Context) ([2]Session, error) {
	var bound [2]Session

	var timeoutC <-chan time.Time
	if b.connTimeout > 0 {
		timer := time.NewTimer(b.connTimeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	boundPeers := make(map[string]bool)
	departedPeers := make(map[string]bool)
	count := 0

	for count < 2 {
		select {
		case <-ctx.Done():
			return bound, ctx.Err()

		case <-timeoutC:
			lifecycle.ConnectTimeout(ctx, b.pub, count)
			return bound, ErrConnectTimeout

		case peerID, ok := <-b.tr.Disconnected():
			if !ok {
				return bound, fmt.Errorf("session: transport closed before match start")
			}
			if boundPeers[peerID] {
				lifecycle.PreMatchDisconnect(ctx, b.pub, bound[indexOf(bound, peerID)].PlayerID)
				return bound, ErrPreMatchDisconnect
			}
			// Accept and Disconnected are separate channels, so this peer's
			// accept event may still be queued; remember the departure so
			// that accept is treated as a pre-match disconnect.
			departedPeers[peerID] = true

		case peerID, ok := <-b.tr.Accept():
			if !ok {
				return bound, fmt.Errorf("session: transport closed before match start")
			}
			if boundPeers[peerID] {
				continue
			}
			playerID := b.assignID(count)
			if departedPeers[peerID] {
				lifecycle.PreMatchDisconnect(ctx, b.pub, playerID)
				return bound, ErrPreMatchDisconnect
			}
			sess := Session{PlayerID: playerID, PeerID: peerID}
			bound[count] = sess
			boundPeers[peerID] = true
			count++

			lifecycle.SessionBound(ctx, b.pub, logging.EntityRef{
				Kind: logging.EntityKindSession,
				ID:   peerID,
			}, lifecycle.SessionBoundPayload{PlayerID: playerID})
		}

		// Discard any traffic that arrived on the realtime channel while
		// still below the two-session threshold: before the handshake
		// completes nothing downstream is listening for it.
		b.tr.Drain()
	}

	return bound, nil
}

func indexOf(bound [2]Session, peerID string) int {
	for i, s := range bound {
		if s.PeerID == peerID {
			return i
		}
	}
	return -1
}
