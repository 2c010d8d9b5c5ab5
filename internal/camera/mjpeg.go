package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/saker-ai/robodog-server/internal/transport/mjpeg"
)

// MJPEG relays frames from an upstream multipart MJPEG endpoint, such as a
// camera daemon on the robot.
type MJPEG struct {
	URL          string
	Client       *http.Client
	ReconnectMax time.Duration
	logger       *zap.Logger
}

// NewMJPEG executes the newMJPEG function.
func NewMJPEG(url string, logger *zap.Logger) *MJPEG {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MJPEG{
		URL:          url,
		Client:       &http.Client{},
		ReconnectMax: 30 * time.Second,
		logger:       logger,
	}
}

// Run fails if the first connection fails. Later disconnects are retried
// with backoff.
func (m *MJPEG) Run(ctx context.Context, sink io.Writer) error {
	connected := false
	var delay time.Duration
	for {
		got, err := m.relay(ctx, sink, func() { connected = true })
		if ctx.Err() != nil {
			return nil
		}
		if !connected {
			return fmt.Errorf("mjpeg upstream %s: %w", m.URL, err)
		}
		delay = nextDelay(delay, got > 0, m.ReconnectMax)
		m.logger.Warn("mjpeg upstream lost", zap.String("url", m.URL), zap.Error(err), zap.Duration("retry_in", delay))
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// nextDelay is the wait before the next reconnect. A session that relayed
// frames starts over at one second; each fruitless attempt doubles up to limit.
func nextDelay(prev time.Duration, productive bool, limit time.Duration) time.Duration {
	const base = time.Second
	if productive || prev <= 0 {
		return min(base, limit)
	}
	return min(prev*2, limit)
}

// relay copies parts until the stream breaks and returns how many it copied.
func (m *MJPEG) relay(ctx context.Context, sink io.Writer, onConnect func()) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := m.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %s", resp.Status)
	}
	boundary, err := mjpeg.BoundaryFromContentType(resp.Header.Get("Content-Type"))
	if err != nil {
		return 0, err
	}
	onConnect()
	m.logger.Info("mjpeg upstream connected", zap.String("url", m.URL))

	parts := mjpeg.NewPartReader(resp.Body, boundary)
	count := 0
	for {
		data, err := parts.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return count, io.ErrUnexpectedEOF
			}
			return count, err
		}
		if len(data) == 0 {
			continue
		}
		if _, err := sink.Write(data); err != nil {
			return count, err
		}
		count++
	}
}
