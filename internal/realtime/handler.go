package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"lectern/internal/live"
	"lectern/internal/presence"
	"lectern/internal/rooms"
	"lectern/pkg/interfaces"
	"lectern/pkg/types"
)

// Options tunes the channel transport.
type Options struct {
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
}

// DefaultOptions returns transport settings suitable for classroom-scale
// deployments.
func DefaultOptions() Options {
	return Options{
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		SendBuffer:   100,
	}
}

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is delegated to the surrounding web layer's
		// CORS configuration.
		return true
	},
}

// Handler is the protocol state machine for channel endpoints. It validates
// inbound events against the presence and live-session registries, mutates
// registry state, and fans results out through the room router.
type Handler struct {
	rooms    *rooms.Router
	presence *presence.Registry
	live     *live.Registry
	store    interfaces.Store
	opts     Options

	// Per-session ordering locks: join/leave registry mutations and their
	// matching broadcasts happen under one lock per session, so the order
	// of user_joined/user_left events in a room always matches the order
	// the roster mutations were applied.
	sessionMu sync.Mutex
	sessions  map[string]*sync.Mutex
}

// NewHandler creates the protocol handler.
func NewHandler(roomRouter *rooms.Router, presenceReg *presence.Registry, liveReg *live.Registry, store interfaces.Store, opts Options) *Handler {
	if opts.SendBuffer <= 0 {
		opts = DefaultOptions()
	}
	return &Handler{
		rooms:    roomRouter,
		presence: presenceReg,
		live:     liveReg,
		store:    store,
		opts:     opts,
		sessions: make(map[string]*sync.Mutex),
	}
}

// HandleWebSocket upgrades the request and runs the endpoint's event loop.
// Identity comes from the surrounding session context (account_id); an
// upgrade without valid account context yields a silently inert connection:
// no subscriptions, no events, reads drained until the peer goes away.
func (h *Handler) HandleWebSocket(c echo.Context) error {
	wsConn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("realtime: upgrade failed", "error", err)
		return nil
	}

	conn := NewConnection(wsConn, h.opts.SendBuffer, h.opts.WriteTimeout)

	accountID := c.QueryParam("account_id")
	if types.IsValidAccountID(accountID) {
		account, err := h.store.GetAccountByID(c.Request().Context(), accountID)
		if err == nil {
			h.handleConnect(conn, account)
		} else {
			slog.Info("realtime: connect without valid account context", "account_id", accountID, "error", err)
		}
	}

	go h.readLoop(conn)
	return nil
}

// handleConnect moves an endpoint to the authenticated state: role-room
// subscription, presence entry, and a connected acknowledgment to the
// endpoint itself.
func (h *Handler) handleConnect(conn *Connection, account *types.Account) {
	conn.setIdentity(account.ID, account.Name, account.Role)

	h.rooms.Subscribe(types.RoleRoom(account.Role), conn)
	h.presence.RecordLogin(account.ID, account.Name, account.Role, conn.ID())
	h.rooms.SendTo(conn, types.ConnectedEvent{
		Message: "connected",
		UserID:  account.ID,
	})

	slog.Info("realtime: endpoint connected", "account_id", account.ID, "role", account.Role)
}

// readLoop pumps inbound frames, keeps the heartbeat alive, and triggers
// disconnect processing when the transport drops.
func (h *Handler) readLoop(conn *Connection) {
	defer h.handleDisconnect(conn)

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
	})

	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(h.opts.WriteTimeout)
				if err := conn.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Warn("realtime: read error", "endpoint", conn.ID(), "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		h.dispatch(conn, data)
	}
}

// dispatch routes one inbound envelope to its transition. Channel-level
// failures surface as a single error event; the channel stays open.
func (h *Handler) dispatch(conn *Connection, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.rooms.SendTo(conn, types.ErrorEvent{Message: msgBadPayload})
		return
	}

	switch env.Event {
	case types.EventJoinSession:
		var payload joinSessionPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil || payload.SessionID == "" {
			h.rooms.SendTo(conn, types.ErrorEvent{Message: msgBadPayload})
			return
		}
		h.handleJoinSession(conn, payload.SessionID)
	default:
		h.rooms.SendTo(conn, types.ErrorEvent{Message: msgUnknownEvent})
	}
}

// handleJoinSession attaches an authenticated endpoint to a live session.
// The ordering is a hard contract: the room learns about the join via
// user_joined before the joiner receives the session_info snapshot that
// already includes itself.
func (h *Handler) handleJoinSession(conn *Connection, sessionID string) {
	if !conn.IsAuthenticated() {
		h.rooms.SendTo(conn, types.ErrorEvent{Message: msgAuthRequired})
		return
	}

	session, err := h.live.Get(sessionID)
	if err != nil {
		h.rooms.SendTo(conn, types.ErrorEvent{Message: msgSessionNotFound})
		return
	}
	if session.Status != types.SessionActive {
		h.rooms.SendTo(conn, types.ErrorEvent{Message: msgSessionEnded})
		return
	}

	mu := h.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	// Recheck under the ordering lock: the session may have ended while we
	// raced for it, and ended sessions must never gain participants.
	session, err = h.live.Get(sessionID)
	if err != nil {
		h.rooms.SendTo(conn, types.ErrorEvent{Message: msgSessionNotFound})
		return
	}
	if session.Status != types.SessionActive {
		h.rooms.SendTo(conn, types.ErrorEvent{Message: msgSessionEnded})
		return
	}

	room := types.SessionRoom(sessionID)
	h.rooms.Subscribe(room, conn)

	count, err := h.live.AddParticipant(sessionID, conn.AccountID(), conn.Role(), conn.Name(), conn)
	if err != nil {
		h.rooms.Unsubscribe(room, conn)
		h.rooms.SendTo(conn, types.ErrorEvent{Message: msgSessionNotFound})
		return
	}
	conn.markJoined(sessionID)

	h.rooms.Broadcast(room, types.UserJoinedEvent{
		UserID:            conn.AccountID(),
		UserName:          conn.Name(),
		UserType:          conn.Role(),
		ParticipantsCount: count,
	}, conn.ID())

	participants, err := h.live.ListParticipants(sessionID)
	if err != nil {
		participants = nil
	}
	h.rooms.SendTo(conn, types.SessionInfoEvent{
		SessionID:         sessionID,
		Participants:      participants,
		ParticipantsCount: len(participants),
	})

	slog.Info("realtime: participant joined", "session_id", sessionID, "account_id", conn.AccountID(), "roster", count)
}

// handleDisconnect tears an endpoint down: every room membership cleared in
// one step, every joined session roster cleaned up with a user_left
// broadcast to whoever remains, and the presence entry removed. Idempotent.
// Roster and presence removals are conditional on the disconnecting endpoint
// still owning them: after a rejoin on a fresh connection, the stale
// endpoint's teardown must not evict the live entry or announce a departure
// that never happened.
func (h *Handler) handleDisconnect(conn *Connection) {
	if !conn.beginTeardown() {
		return
	}
	defer func() { _ = conn.Close() }()

	if !conn.IsAuthenticated() {
		return
	}

	for _, sessionID := range conn.joinedSessions() {
		mu := h.sessionLock(sessionID)
		mu.Lock()

		if h.live.RemoveParticipantIf(sessionID, conn.AccountID(), conn.ID()) {
			remaining := h.live.RosterSize(sessionID)
			h.rooms.Broadcast(types.SessionRoom(sessionID), types.UserLeftEvent{
				UserID:            conn.AccountID(),
				UserName:          conn.Name(),
				UserType:          conn.Role(),
				ParticipantsCount: remaining,
			}, conn.ID())
		}

		mu.Unlock()
		h.pruneSessionLock(sessionID)
	}

	h.rooms.UnsubscribeAll(conn)
	h.presence.RecordLogout(conn.AccountID(), conn.ID())

	slog.Info("realtime: endpoint disconnected", "account_id", conn.AccountID())
}

func (h *Handler) sessionLock(sessionID string) *sync.Mutex {
	h.sessionMu.Lock()
	defer h.sessionMu.Unlock()

	mu, ok := h.sessions[sessionID]
	if !ok {
		mu = &sync.Mutex{}
		h.sessions[sessionID] = mu
	}
	return mu
}

// pruneSessionLock drops the ordering lock for a session that can no longer
// need it: ended (so joins are rejected under the lock) with an empty
// roster (so no departures remain to order).
func (h *Handler) pruneSessionLock(sessionID string) {
	session, err := h.live.Get(sessionID)
	if err == nil && session.Status != types.SessionEnded {
		return
	}
	if h.live.RosterSize(sessionID) > 0 {
		return
	}

	h.sessionMu.Lock()
	delete(h.sessions, sessionID)
	h.sessionMu.Unlock()
}
