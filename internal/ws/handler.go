// Package ws pushes live status to dashboard clients and accepts commands
// over a websocket.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/saker-ai/robodog-server/internal/command"
	"github.com/saker-ai/robodog-server/internal/protocol"
)

const (
	outboxSize   = 16
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
	readLimit    = 64 << 10
)

// Dispatcher runs a text command.
type Dispatcher interface {
	Dispatch(ctx context.Context, text string) command.Result
}

// StatusFunc returns the current server status.
type StatusFunc func() protocol.Status

// Handler owns every open status session.
type Handler struct {
	logger     *zap.Logger
	upgrader   websocket.Upgrader
	status     StatusFunc
	dispatcher Dispatcher

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	id      string
	conn    *websocket.Conn
	logger  *zap.Logger
	handler *Handler
	out     chan []byte
	done    chan struct{}
	once    sync.Once
}

// NewHandler executes the newHandler function.
func NewHandler(logger *zap.Logger, status StatusFunc, dispatcher Dispatcher) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		logger:     logger,
		status:     status,
		dispatcher: dispatcher,
		sessions:   make(map[string]*session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handle upgrades the request and serves the session until it closes.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := &session{
		id:      uuid.NewString(),
		conn:    conn,
		logger:  h.logger,
		handler: h,
		out:     make(chan []byte, outboxSize),
		done:    make(chan struct{}),
	}
	sess.logger.Info("ws session opened",
		zap.String("session_id", sess.id),
		zap.String("remote_addr", r.RemoteAddr),
	)

	h.registerSession(sess)
	defer h.unregisterSession(sess)

	go sess.writePump()
	defer sess.close()

	sess.sendStatus()
	sess.readLoop(ctx)
}

// Count returns the number of open sessions.
func (h *Handler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// BroadcastStatus pushes the current status to every session.
func (h *Handler) BroadcastStatus() {
	if h.status == nil {
		return
	}
	status := h.status()
	h.broadcast(protocol.ServerMessage{Type: protocol.TypeStatus, Status: &status})
}

// BroadcastCommand pushes a dispatched command to every session.
func (h *Handler) BroadcastCommand(res command.Result) {
	h.broadcast(protocol.ServerMessage{Type: protocol.TypeCommand, Command: &res})
}

func (h *Handler) broadcast(msg protocol.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("ws marshal failed", zap.Error(err))
		return
	}
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()
	for _, s := range sessions {
		s.enqueue(payload)
	}
}

func (h *Handler) registerSession(s *session) {
	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()
}

func (h *Handler) unregisterSession(s *session) {
	h.mu.Lock()
	delete(h.sessions, s.id)
	h.mu.Unlock()
	s.logger.Info("ws session closed", zap.String("session_id", s.id))
}

func (s *session) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(readLimit)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("ws read ended", zap.String("session_id", s.id), zap.Error(err))
			}
			return
		}
		var msg protocol.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendJSON(protocol.ServerMessage{Type: protocol.TypeError, Message: "invalid message"})
			continue
		}
		s.dispatchIncoming(ctx, msg)
	}
}

// writePump is the only writer of conn apart from the upgrade handshake.
func (s *session) writePump() {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-s.done:
			return
		case payload := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Debug("ws write failed", zap.String("session_id", s.id), zap.Error(err))
				_ = s.conn.Close()
				return
			}
		case <-ping.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				_ = s.conn.Close()
				return
			}
		}
	}
}

func (s *session) sendJSON(msg protocol.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Warn("ws marshal failed", zap.Error(err))
		return
	}
	s.enqueue(payload)
}

// enqueue drops the message when the client is not keeping up.
func (s *session) enqueue(payload []byte) {
	select {
	case <-s.done:
	case s.out <- payload:
	default:
		s.logger.Debug("ws outbox full; dropping message", zap.String("session_id", s.id))
	}
}

func (s *session) sendStatus() {
	if s.handler.status == nil {
		return
	}
	status := s.handler.status()
	s.sendJSON(protocol.ServerMessage{Type: protocol.TypeStatus, Status: &status})
}

func (s *session) close() {
	s.once.Do(func() { close(s.done) })
}
