package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"lectern/pkg/interfaces"
	"lectern/pkg/types"
)

// envelope is the wire framing for channel events in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outEnvelope carries a typed payload outward; serialization happens here,
// at the boundary, and nowhere else.
type outEnvelope struct {
	Event string      `json:"event"`
	Data  types.Event `json:"data"`
}

// joinSessionPayload is the inbound join_session payload.
type joinSessionPayload struct {
	SessionID string `json:"session_id"`
}

// Connection wraps a WebSocket connection behind the Endpoint interface.
// All writes go through a single writer goroutine so concurrent broadcasts
// never interleave frames, and delivery per endpoint stays FIFO.
type Connection struct {
	id           string
	conn         *websocket.Conn
	writeCh      chan []byte
	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once
	torndown     atomic.Bool

	mu            sync.RWMutex
	accountID     string
	name          string
	role          types.Role
	authenticated bool
	joined        map[string]bool // session IDs this endpoint has joined
}

var _ interfaces.Endpoint = (*Connection)(nil)

// NewConnection wraps an upgraded WebSocket connection and starts its
// writer goroutine.
func NewConnection(conn *websocket.Conn, sendBuffer int, writeTimeout time.Duration) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:           uuid.New().String(),
		conn:         conn,
		writeCh:      make(chan []byte, sendBuffer),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
		joined:       make(map[string]bool),
	}

	go c.writeLoop()

	return c
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// ID returns the connection identifier, unique per connection.
func (c *Connection) ID() string { return c.id }

// Send queues an event for delivery. Non-blocking: a full buffer returns
// ErrWriteBufferFull rather than stalling the broadcasting flow.
func (c *Connection) Send(ev types.Event) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(outEnvelope{Event: ev.EventName(), Data: ev})
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		return ErrWriteBufferFull
	}
}

// Close tears the connection down. Idempotent.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// beginTeardown reports true exactly once, making disconnect processing
// idempotent across the read loop and explicit close paths.
func (c *Connection) beginTeardown() bool {
	return c.torndown.CompareAndSwap(false, true)
}

// setIdentity records the authenticated account context.
func (c *Connection) setIdentity(accountID, name string, role types.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.accountID = accountID
	c.name = name
	c.role = role
	c.authenticated = true
}

// AccountID returns the authenticated account, or "" when unauthenticated.
func (c *Connection) AccountID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accountID
}

// Name returns the authenticated display name.
func (c *Connection) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// Role returns the authenticated role.
func (c *Connection) Role() types.Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

// IsAuthenticated reports whether the connect carried valid account context.
func (c *Connection) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

// markJoined records that the endpoint joined a session.
func (c *Connection) markJoined(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joined[sessionID] = true
}

// joinedSessions returns the sessions this endpoint has joined.
func (c *Connection) joinedSessions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sessions := make([]string, 0, len(c.joined))
	for id := range c.joined {
		sessions = append(sessions, id)
	}
	return sessions
}
