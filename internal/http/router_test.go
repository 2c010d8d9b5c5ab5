package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"

	"github.com/saker-ai/robodog-server/internal/actuator/actuatortest"
	"github.com/saker-ai/robodog-server/internal/command"
	"github.com/saker-ai/robodog-server/internal/motion"
	"github.com/saker-ai/robodog-server/internal/protocol"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStreamer struct{}

func (fakeStreamer) Serve(_ context.Context, w http.ResponseWriter, _ string) error {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=FRAME")
	_, err := w.Write([]byte("--FRAME\r\n"))
	return err
}

func newTestEngine(t *testing.T) (*gin.Engine, *actuatortest.Recorder) {
	t.Helper()
	rec := actuatortest.New()
	m := motion.New(rec, motion.Options{WalkInterval: time.Hour}, nil)
	t.Cleanup(m.Close)
	router := command.NewRouter(rec, m, command.Options{}, nil)
	engine := NewRouter(Deps{
		Dispatcher: router,
		Streamer:   fakeStreamer{},
		Status: func() protocol.Status {
			return protocol.Status{Motion: m.Snapshot(), Viewers: 2}
		},
	}, nil)
	return engine, rec
}

func do(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRootRedirectsToIndex(t *testing.T) {
	engine, _ := newTestEngine(t)
	w := do(engine, http.MethodGet, "/", "")
	if w.Code != http.StatusMovedPermanently {
		t.Fatalf("status=%d, want 301", w.Code)
	}
	if got := w.Header().Get("Location"); got != "/index.html" {
		t.Fatalf("Location=%q, want /index.html", got)
	}
}

func TestIndexServesPanel(t *testing.T) {
	engine, _ := newTestEngine(t)
	w := do(engine, http.MethodGet, "/index.html", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("Content-Type=%q, want text/html", w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Body.String(), "stream.mjpg") {
		t.Fatal("panel does not embed the stream")
	}
}

func TestUnknownPathIs404(t *testing.T) {
	engine, _ := newTestEngine(t)
	for _, path := range []string{"/nope", "/index.htm", "/stream.mjpeg"} {
		if w := do(engine, http.MethodGet, path, ""); w.Code != http.StatusNotFound {
			t.Fatalf("%s status=%d, want 404", path, w.Code)
		}
	}
}

func TestProcessCommandDispatches(t *testing.T) {
	engine, rec := newTestEngine(t)

	w := do(engine, http.MethodPost, "/process_command", `{"text":"Sit and bark"}`)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status=%d, want 204", w.Code)
	}
	want := []string{"action sit@50", "preset bark_action", "preset bark"}
	if diff := cmp.Diff(want, rec.Strings()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestZoomIsCommandAlias(t *testing.T) {
	engine, rec := newTestEngine(t)

	if w := do(engine, http.MethodPost, "/zoom", `{"text":"howl"}`); w.Code != http.StatusNoContent {
		t.Fatalf("status=%d, want 204", w.Code)
	}
	if diff := cmp.Diff([]string{"preset howling"}, rec.Strings()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessCommandRejectsBadBodies(t *testing.T) {
	engine, rec := newTestEngine(t)
	bodies := map[string]string{
		"malformed":    `{"text":`,
		"missing text": `{"words":"sit"}`,
		"wrong type":   `{"text":5}`,
		"empty":        ``,
	}
	for name, body := range bodies {
		w := do(engine, http.MethodPost, "/process_command", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d, want 400", name, w.Code)
		}
	}
	if n := len(rec.Calls()); n != 0 {
		t.Fatalf("actuator calls=%d, want 0", n)
	}
}

func TestProcessCommandUnmatchedIsNoContent(t *testing.T) {
	engine, rec := newTestEngine(t)
	for _, body := range []string{`{"text":""}`, `{"text":"hello there"}`} {
		if w := do(engine, http.MethodPost, "/process_command", body); w.Code != http.StatusNoContent {
			t.Fatalf("%s status=%d, want 204", body, w.Code)
		}
	}
	if n := len(rec.Calls()); n != 0 {
		t.Fatalf("actuator calls=%d, want 0", n)
	}
}

func TestStatusReportsMotion(t *testing.T) {
	engine, _ := newTestEngine(t)
	do(engine, http.MethodPost, "/process_command", `{"text":"sit"}`)

	w := do(engine, http.MethodGet, "/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"viewers":2`) {
		t.Fatalf("body=%s, want viewers 2", body)
	}
}

func TestCommandsListsEveryIntent(t *testing.T) {
	engine, _ := newTestEngine(t)
	w := do(engine, http.MethodGet, "/commands", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", w.Code)
	}
	var body struct {
		Commands []command.Command `json:"commands"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if diff := cmp.Diff(command.Commands(), body.Commands); diff != "" {
		t.Fatalf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestPanelLoadsCommandList(t *testing.T) {
	engine, _ := newTestEngine(t)
	body := do(engine, http.MethodGet, "/index.html", "").Body.String()
	if !strings.Contains(body, `fetch("commands")`) {
		t.Fatal("panel does not load the command list from the server")
	}
	if n := strings.Count(body, "setInterval("); n != 1 {
		t.Fatalf("setInterval calls=%d, want 1", n)
	}
}

func TestStreamRoute(t *testing.T) {
	engine, _ := newTestEngine(t)
	w := do(engine, http.MethodGet, "/stream.mjpg", "")
	if got := w.Header().Get("Content-Type"); got != "multipart/x-mixed-replace; boundary=FRAME" {
		t.Fatalf("Content-Type=%q", got)
	}
}

func TestHealth(t *testing.T) {
	engine, _ := newTestEngine(t)
	if w := do(engine, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", w.Code)
	}
}
