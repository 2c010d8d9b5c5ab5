package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/saker-ai/robodog-server/internal/command"
	"github.com/saker-ai/robodog-server/internal/protocol"
)

type fakeDispatcher struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeDispatcher) Dispatch(_ context.Context, text string) command.Result {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	return command.Result{Text: text}
}

func dial(t *testing.T, h *Handler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(httpHandler(h))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) protocol.ServerMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg protocol.ServerMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON error: %v", err)
	}
	return msg
}

func TestSessionReceivesInitialStatus(t *testing.T) {
	h := NewHandler(nil, func() protocol.Status {
		return protocol.Status{Viewers: 3, FrameSeq: 42}
	}, nil)
	conn := dial(t, h)

	msg := readMessage(t, conn)
	if msg.Type != protocol.TypeStatus || msg.Status == nil {
		t.Fatalf("msg=%+v, want status", msg)
	}
	if msg.Status.Viewers != 3 || msg.Status.FrameSeq != 42 {
		t.Fatalf("status=%+v, want viewers 3 seq 42", msg.Status)
	}
}

func TestSessionCommandIsDispatched(t *testing.T) {
	d := &fakeDispatcher{}
	h := NewHandler(nil, nil, d)
	conn := dial(t, h)

	if err := conn.WriteJSON(protocol.ClientMessage{Type: protocol.TypeCommand, Text: "do a barrel roll"}); err != nil {
		t.Fatalf("WriteJSON error: %v", err)
	}
	msg := readMessage(t, conn)
	if msg.Type != protocol.TypeCommand || msg.Command == nil || msg.Command.Text != "do a barrel roll" {
		t.Fatalf("msg=%+v, want unmatched command echo", msg)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.texts) != 1 {
		t.Fatalf("dispatched=%v, want one", d.texts)
	}
}

func TestSessionRejectsEmptyCommand(t *testing.T) {
	h := NewHandler(nil, nil, &fakeDispatcher{})
	conn := dial(t, h)

	if err := conn.WriteJSON(protocol.ClientMessage{Type: protocol.TypeCommand, Text: "  "}); err != nil {
		t.Fatalf("WriteJSON error: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != protocol.TypeError {
		t.Fatalf("type=%q, want error", msg.Type)
	}
}

func TestBroadcastReachesSessions(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	conn := dial(t, h)

	deadline := time.Now().Add(2 * time.Second)
	for h.Count() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("session never registered")
		}
		time.Sleep(time.Millisecond)
	}

	h.BroadcastCommand(command.Result{Text: "sit", Intents: []string{"sit"}})
	msg := readMessage(t, conn)
	if msg.Type != protocol.TypeCommand || msg.Command.Intents[0] != "sit" {
		t.Fatalf("msg=%+v, want sit command", msg)
	}
}

func httpHandler(h *Handler) http.Handler {
	return http.HandlerFunc(h.Handle)
}
