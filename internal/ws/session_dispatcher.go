package ws

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/saker-ai/robodog-server/internal/protocol"
)

type incomingHandler func(context.Context, protocol.ClientMessage)

func (s *session) dispatchIncoming(ctx context.Context, msg protocol.ClientMessage) {
	handlers := map[string]incomingHandler{
		protocol.TypeCommand:   s.onCommand,
		protocol.TypeStatus:    s.onStatus,
		protocol.TypeHeartbeat: s.onHeartbeat,
	}

	if handler, ok := handlers[msg.Type]; ok {
		handler(ctx, msg)
		return
	}
	s.logger.Debug("ws unknown message type",
		zap.String("session_id", s.id),
		zap.String("type", msg.Type),
	)
}

func (s *session) onCommand(ctx context.Context, msg protocol.ClientMessage) {
	if strings.TrimSpace(msg.Text) == "" {
		s.sendJSON(protocol.ServerMessage{Type: protocol.TypeError, Message: "empty command"})
		return
	}
	if s.handler.dispatcher == nil {
		s.sendJSON(protocol.ServerMessage{Type: protocol.TypeError, Message: "commands unavailable"})
		return
	}
	res := s.handler.dispatcher.Dispatch(ctx, msg.Text)
	if !res.Matched() {
		s.sendJSON(protocol.ServerMessage{Type: protocol.TypeCommand, Command: &res})
	}
}

func (s *session) onStatus(_ context.Context, _ protocol.ClientMessage) {
	s.sendStatus()
}

func (s *session) onHeartbeat(_ context.Context, _ protocol.ClientMessage) {
	s.sendJSON(protocol.ServerMessage{Type: protocol.TypeHeartbeat})
}
