package runtime

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/saker-ai/robodog-server/internal/actuator"
	"github.com/saker-ai/robodog-server/internal/motion"
)

const testConfig = `http_addr: 127.0.0.1:0
mock: true
tls_disable: true
camera:
  source: synthetic
  width: 64
  height: 48
  fps: 50
speech:
  engine: none
log:
  level: error
  stdout: true
  file:
    enabled: false
`

// lingeringCamera keeps running briefly after ctx ends, like a capture
// loop stuck in a blocking read.
type lingeringCamera struct {
	mu          sync.Mutex
	returned    bool
	closedEarly bool
	closed      bool
}

func (c *lingeringCamera) Run(ctx context.Context, sink io.Writer) error {
	if _, err := sink.Write([]byte{0xFF, 0xD8, 0xFF, 0xD9}); err != nil {
		return err
	}
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
	c.mu.Lock()
	c.returned = true
	c.mu.Unlock()
	return nil
}

func (c *lingeringCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closedEarly = !c.returned
	return nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.yaml")
	if err := os.WriteFile(path, []byte(testConfig), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	s, err := New(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return s
}

func runUntilFrame(t *testing.T, s *Server) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for s.frames.Seq() == 0 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("no frame published")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cancel, done
}

func waitRun(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunReleasesHardwareAfterCameraReturns(t *testing.T) {
	s := newTestServer(t)
	cam := &lingeringCamera{}
	s.camera = cam
	s.closers = append(s.closers, cam)

	cancel, done := runUntilFrame(t, s)
	cancel()
	waitRun(t, done)

	cam.mu.Lock()
	defer cam.mu.Unlock()
	if !cam.closed {
		t.Fatal("camera closed=false, want true")
	}
	if cam.closedEarly {
		t.Fatal("camera closed while Run was still reading")
	}
}

func TestWalkerStaysStoppedAfterShutdown(t *testing.T) {
	s := newTestServer(t)
	cancel, done := runUntilFrame(t, s)

	if !s.motion.StartWalking(motion.Forward) {
		t.Fatal("StartWalking=false before shutdown, want true")
	}
	cancel()
	waitRun(t, done)

	if s.motion.StartWalking(motion.Backward) {
		t.Fatal("StartWalking=true after shutdown, want false")
	}
	if s.motion.Walking() {
		t.Fatal("Walking=true after shutdown, want false")
	}
	if err := s.actuator.DoAction(context.Background(), "sit", 0); !errors.Is(err, actuator.ErrClosed) {
		t.Fatalf("DoAction error=%v, want %v", err, actuator.ErrClosed)
	}
}
