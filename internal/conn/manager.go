// internal/conn/manager.go
package conn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/jmattson/presidents-client/internal/auth"
	"github.com/jmattson/presidents-client/internal/chat"
	"github.com/jmattson/presidents-client/internal/identity"
	"github.com/jmattson/presidents-client/internal/lobby"
	"github.com/jmattson/presidents-client/internal/protocol"
	"github.com/jmattson/presidents-client/internal/state"
)

// State is the connection lifecycle phase.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
	maxBackoff   = 30 * time.Second
)

// Manager owns the one persistent duplex connection of this client
// process. It dials, retries on any drop, and on every transition into
// Connected emits exactly one command: a room rejoin when an identity
// with a room code is held, a lobby directory request otherwise. All
// push traffic is dispatched from here into the reconciler, the lobby
// directory, and the chat relay.
type Manager struct {
	logger *logrus.Logger
	url    string
	tokens *auth.TokenProvider
	ids    *identity.Store
	store  *state.Store
	dir    *lobby.Directory
	chat   *chat.Relay

	// OnNavigateHome fires when the client's own room is deleted
	// server-side: the one case where the core asks the UI to navigate
	// instead of merely updating state.
	OnNavigateHome func(reason string)

	// OnStateChange, when set, observes lifecycle transitions.
	OnStateChange func(State)

	mu    sync.Mutex
	st    State
	wsc   *websocket.Conn
	close context.CancelFunc
}

// NewManager wires the manager to its collaborators. Run must be called
// to start connecting.
func NewManager(logger *logrus.Logger, url string, tokens *auth.TokenProvider, ids *identity.Store, store *state.Store, dir *lobby.Directory, relay *chat.Relay) *Manager {
	return &Manager{
		logger: logger,
		url:    url,
		tokens: tokens,
		ids:    ids,
		store:  store,
		dir:    dir,
		chat:   relay,
	}
}

// State returns the current lifecycle phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st
}

// Run connects and keeps reconnecting with capped exponential backoff
// until ctx is cancelled. It blocks; run it on its own goroutine.
func (m *Manager) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.close = cancel
	m.mu.Unlock()

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			m.setState(Disconnected)
			return
		}

		m.setState(Connecting)
		c, err := m.dial(ctx)
		if err != nil {
			m.logger.Warnf("conn: dial %s failed: %v", m.url, err)
			m.setState(Disconnected)
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = time.Second

		m.mu.Lock()
		m.wsc = c
		m.mu.Unlock()
		m.setState(Connected)

		if err := m.onConnected(ctx); err != nil {
			m.logger.Warnf("conn: post-connect command failed: %v", err)
		}

		pingCtx, stopPing := context.WithCancel(ctx)
		go m.pingLoop(pingCtx, c)

		m.readLoop(ctx, c)

		stopPing()
		m.mu.Lock()
		m.wsc = nil
		m.mu.Unlock()
		c.Close(websocket.StatusGoingAway, "reconnecting")
		m.setState(Disconnected)
	}
}

// Close tears the connection down and stops reconnecting.
func (m *Manager) Close() {
	m.mu.Lock()
	cancel := m.close
	c := m.wsc
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if c != nil {
		c.Close(websocket.StatusNormalClosure, "client shutting down")
	}
}

// Send writes a raw frame to the connection. Used for the opaque chat
// passthrough; room state never flows out through here.
func (m *Manager) Send(ctx context.Context, data []byte) error {
	m.mu.Lock()
	c := m.wsc
	m.mu.Unlock()
	if c == nil {
		return fmt.Errorf("not connected")
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.Write(writeCtx, websocket.MessageText, data)
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	hdr := http.Header{}
	if v := m.tokens.AuthorizationHeader(); v != "" {
		hdr.Set("Authorization", v)
	}
	c, _, err := websocket.Dial(dialCtx, m.url, &websocket.DialOptions{
		Subprotocols: []string{"room"},
		HTTPHeader:   hdr,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// onConnected performs the single per-connection bootstrap command. A
// client reconnecting mid-game needs its room replayed; a client still
// browsing needs the directory instead.
func (m *Manager) onConnected(ctx context.Context) error {
	id := m.ids.Current()
	if id.InRoom() {
		m.logger.Infof("conn: connected, rejoining room %s as %s", id.RoomCode, id.PlayerID)
		return m.sendJSON(ctx, protocol.RejoinCommand{
			Type:     protocol.CmdRejoinRoom,
			RoomCode: id.RoomCode,
			PlayerID: id.PlayerID,
		})
	}
	m.logger.Info("conn: connected, no room held, requesting lobby directory")
	return m.sendJSON(ctx, protocol.ListRoomsCommand{Type: protocol.CmdListRooms})
}

func (m *Manager) sendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	return m.Send(ctx, data)
}

// readLoop consumes push frames until the connection drops or ctx ends.
func (m *Manager) readLoop(ctx context.Context, c *websocket.Conn) {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				m.logger.Info("conn: connection closed normally")
			} else if strings.Contains(err.Error(), "context canceled") {
				m.logger.Info("conn: read loop cancelled")
			} else {
				m.logger.Warnf("conn: read error: %v (status %d)", err, status)
			}
			return
		}
		if typ != websocket.MessageText {
			m.logger.Warnf("conn: ignoring non-text message type %d", typ)
			continue
		}
		m.handleFrame(data)
	}
}

// handleFrame dispatches one push frame. Split out from the read loop so
// the routing can be exercised without a live connection.
func (m *Manager) handleFrame(data []byte) {
	env, err := protocol.DecodeEnvelope(data)
	if err != nil {
		m.logger.Warnf("conn: invalid push frame: %v", err)
		return
	}

	switch env.Type {
	case protocol.PushSnapshotUpdate:
		if env.Snapshot == nil {
			m.logger.Warn("conn: snapshot_update without snapshot payload")
			return
		}
		m.store.Apply(env.Snapshot)

	case protocol.PushLobbyUpdate:
		m.dir.ReplaceAll(env.Entries)

	case protocol.PushChatMessage:
		m.chat.Deliver(env.Raw)

	case protocol.PushRoomDeleted:
		m.handleRoomDeleted(env)

	default:
		m.logger.Warnf("conn: unknown push type %q", env.Type)
	}
}

// handleRoomDeleted resets the session only when the notice names the
// room this client is actually in. Notices for other rooms carry no
// state change and no navigation.
func (m *Manager) handleRoomDeleted(env *protocol.Envelope) {
	id := m.ids.Current()
	if !id.InRoom() || env.RoomCode != id.RoomCode {
		m.logger.Debugf("conn: ignoring room_deleted for %q (current room %q)", env.RoomCode, id.RoomCode)
		return
	}
	m.logger.Infof("conn: room %s deleted server-side: %s", env.RoomCode, env.Reason)
	m.store.Reset()
	if m.OnNavigateHome != nil {
		m.OnNavigateHome(env.Reason)
	}
}

// pingLoop keeps the connection alive. A failed ping closes the
// connection so the read loop notices and the dial loop takes over.
func (m *Manager) pingLoop(ctx context.Context, c *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				m.logger.Warnf("conn: ping failed, assuming disconnect: %v", err)
				c.Close(websocket.StatusGoingAway, "ping failed")
				return
			}
		}
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	changed := m.st != s
	m.st = s
	cb := m.OnStateChange
	m.mu.Unlock()
	if changed {
		m.logger.Debugf("conn: state -> %s", s)
		if cb != nil {
			cb(s)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
