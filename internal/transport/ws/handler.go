// Package ws is the production transport.Transport: one WebSocket
// connection per peer, upgraded from an ordinary HTTP handler and then
// driven by a read pump per connection. Every logical channel the core
// cares about (transport.ChannelRealtime, transport.ChannelControl) is
// multiplexed over the single physical connection using an envelope.
package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"duelmatch/server/internal/transport"
)

// envelope is the wire-level wrapper that carries a logical channel tag
// alongside the payload the caller asked to send. It is internal to this
// package; nothing above transport.Transport ever sees it.
type envelope struct {
	Channel string          `json:"channel"`
	Body    json.RawMessage `json:"body"`
}

func channelName(ch transport.Channel) string {
	return ch.String()
}

func parseChannel(name string) transport.Channel {
	if name == transport.ChannelControl.String() {
		return transport.ChannelControl
	}
	return transport.ChannelRealtime
}

// Transport is a transport.Transport backed by gorilla/websocket. Peers
// are identified by the caller-supplied peer id passed to Upgrade; the
// handler itself does not assign ids.
type Transport struct {
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	peers   map[string]*peer
	inbound []transport.Inbound

	accept     chan string
	disconnect chan string
}

type peer struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

// Config carries the knobs the teacher's handler exposed directly on the
// http.Upgrader.
type Config struct {
	Logger          *log.Logger
	ReadBufferSize  int
	WriteBufferSize int
}

// New constructs a ws.Transport. CheckOrigin always accepts: this server
// is meant to sit behind a trusted matchmaker, not to be reached directly
// by arbitrary browser origins.
func New(cfg Config) *Transport {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	readBuf := cfg.ReadBufferSize
	if readBuf == 0 {
		readBuf = 1024
	}
	writeBuf := cfg.WriteBufferSize
	if writeBuf == 0 {
		writeBuf = 1024
	}
	return &Transport{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBuf,
			WriteBufferSize: writeBuf,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		peers:      make(map[string]*peer),
		accept:     make(chan string, 64),
		disconnect: make(chan string, 64),
	}
}

// Upgrade upgrades an HTTP request to a WebSocket connection for peerID
// and starts its read pump. It is the entry point wired into the HTTP
// mux by internal/app.Run.
func (t *Transport) Upgrade(w http.ResponseWriter, r *http.Request, peerID string) error {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("ws: upgrade failed for %s: %w", peerID, err)
	}

	p := &peer{conn: conn}
	t.mu.Lock()
	t.peers[peerID] = p
	t.mu.Unlock()

	t.accept <- peerID
	go t.readPump(peerID, p)
	return nil
}

func (t *Transport) readPump(peerID string, p *peer) {
	defer t.removePeer(peerID)
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.logger.Printf("ws: discarding malformed frame from %s: %v", peerID, err)
			continue
		}

		t.mu.Lock()
		t.inbound = append(t.inbound, transport.Inbound{
			PeerID:  peerID,
			Channel: parseChannel(env.Channel),
			Payload: []byte(env.Body),
		})
		t.mu.Unlock()
	}
}

func (t *Transport) removePeer(peerID string) {
	t.mu.Lock()
	p, ok := t.peers[peerID]
	if ok {
		delete(t.peers, peerID)
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	p.conn.Close()
	t.disconnect <- peerID
}

func (t *Transport) Accept() <-chan string       { return t.accept }
func (t *Transport) Disconnected() <-chan string { return t.disconnect }

func (t *Transport) Send(peerID string, ch transport.Channel, payload []byte) error {
	t.mu.Lock()
	p, ok := t.peers[peerID]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("ws: unknown peer %s", peerID)
	}

	env := envelope{Channel: channelName(ch), Body: json.RawMessage(payload)}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("ws: marshal envelope: %w", err)
	}

	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.conn.WriteMessage(websocket.TextMessage, data)
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
	p, ok := t.peers[peerID]
	if ok {
		delete(t.peers, peerID)
	}
	t.mu.Unlock()
	if !ok {
		return nil
	}
	err := p.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	p.conn.Close()
	t.disconnect <- peerID
	return err
}
