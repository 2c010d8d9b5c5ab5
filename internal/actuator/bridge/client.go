// Package bridge drives the robot through a websocket bridge daemon that runs
// next to the servo SDK.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/saker-ai/robodog-server/internal/actuator"
)

// ErrNotConnected is returned while the bridge connection is down.
var ErrNotConnected = errors.New("bridge connection not ready")

// Config represents a config.
type Config struct {
	URL            string
	RequestTimeout time.Duration
	ReconnectMax   time.Duration
}

// Client implements actuator.Actuator over a websocket. One request is in
// flight at a time; each blocks until the daemon replies with the same id.
type Client struct {
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	writeMu sync.Mutex
	callMu  sync.Mutex

	waitMu  sync.Mutex
	waiters map[string]chan reply
}

// NewClient executes the newClient function.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		logger:  logger,
		waiters: make(map[string]chan reply),
	}
}

// Connect starts the reconnect loop in the background.
func (c *Client) Connect(ctx context.Context) {
	go c.run(ctx)
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close executes the close method.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	c.failWaiters(actuator.ErrClosed)
	return nil
}

// DoAction runs a named body action at speed and waits for the bridge to ack.
func (c *Client) DoAction(ctx context.Context, name string, speed int) error {
	_, err := c.call(ctx, request{Op: opAction, Name: name, Speed: speed})
	return err
}

// RunPreset runs a stored action group by name.
func (c *Client) RunPreset(ctx context.Context, name string) error {
	_, err := c.call(ctx, request{Op: opPreset, Name: name})
	return err
}

// HeadMove sends the absolute head pose as yaw, roll, pitch.
func (c *Client) HeadMove(ctx context.Context, pose actuator.HeadPose, speed int) error {
	angles := pose.Angles()
	_, err := c.call(ctx, request{Op: opHead, Angles: angles[:], Speed: speed})
	return err
}

// ReadDistance returns the ultrasonic reading in centimetres.
func (c *Client) ReadDistance(ctx context.Context) (float64, error) {
	rep, err := c.call(ctx, request{Op: opDistance})
	if err != nil {
		return 0, err
	}
	if rep.Distance == nil {
		return 0, errors.New("bridge reply missing distance")
	}
	return *rep.Distance, nil
}

// BodyStop halts any running gait.
func (c *Client) BodyStop(ctx context.Context) error {
	_, err := c.call(ctx, request{Op: opStop})
	return err
}

func (c *Client) call(ctx context.Context, req request) (reply, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	if c.isClosed() {
		return reply{}, actuator.ErrClosed
	}
	req.ID = uuid.NewString()
	waiter := make(chan reply, 1)
	c.waitMu.Lock()
	c.waiters[req.ID] = waiter
	c.waitMu.Unlock()
	defer func() {
		c.waitMu.Lock()
		delete(c.waiters, req.ID)
		c.waitMu.Unlock()
	}()

	if err := c.sendJSON(ctx, req); err != nil {
		return reply{}, err
	}

	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()
	select {
	case rep := <-waiter:
		if rep.err != nil {
			return reply{}, rep.err
		}
		if !rep.OK {
			msg := rep.Error
			if msg == "" {
				msg = "unknown error"
			}
			return rep, fmt.Errorf("bridge %s %s: %s", req.Op, req.Name, msg)
		}
		return rep, nil
	case <-timer.C:
		return reply{}, fmt.Errorf("bridge %s %s: timed out after %s", req.Op, req.Name, c.cfg.RequestTimeout)
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

func (c *Client) sendJSON(ctx context.Context, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(payload)
}

func (c *Client) run(ctx context.Context) {
	delay := time.Second
	for {
		if ctx.Err() != nil || c.isClosed() {
			return
		}
		c.logger.Info("bridge connecting", zap.String("url", c.cfg.URL))
		if err := c.connectOnce(ctx); err != nil {
			c.logger.Warn("bridge connect failed", zap.Error(err))
			if !sleepCtx(ctx, delay) {
				return
			}
			delay = nextBackoff(delay, c.cfg.ReconnectMax)
			continue
		}
		c.logger.Info("bridge connected", zap.String("url", c.cfg.URL))
		delay = time.Second
		if err := c.readLoop(); err != nil && !c.isClosed() {
			c.logger.Warn("bridge connection lost", zap.Error(err))
			c.failWaiters(fmt.Errorf("bridge connection lost: %w", err))
			if !sleepCtx(ctx, delay) {
				return
			}
			delay = nextBackoff(delay, c.cfg.ReconnectMax)
		}
	}
}

func (c *Client) connectOnce(ctx context.Context) error {
	if c.cfg.URL == "" {
		return errors.New("bridge url is empty")
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return err
	}
	conn.SetPingHandler(func(appData string) error {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return actuator.ErrClosed
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = conn
	c.mu.Unlock()
	return nil
}

func (c *Client) readLoop() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.conn == conn {
				_ = c.conn.Close()
				c.conn = nil
			}
			c.mu.Unlock()
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		c.handleTextMessage(data)
	}
}

func (c *Client) handleTextMessage(data []byte) {
	var rep reply
	if err := json.Unmarshal(data, &rep); err != nil {
		c.logger.Warn("bridge invalid message", zap.Error(err))
		return
	}
	switch rep.Type {
	case "", typeReply:
	case typeEvent:
		c.logger.Debug("bridge event", zap.ByteString("payload", data))
		return
	default:
		c.logger.Debug("bridge unknown message type", zap.String("type", rep.Type))
		return
	}

	c.waitMu.Lock()
	waiter, ok := c.waiters[rep.ID]
	c.waitMu.Unlock()
	if !ok {
		c.logger.Debug("bridge reply without waiter", zap.String("id", rep.ID))
		return
	}
	select {
	case waiter <- rep:
	default:
	}
}

func (c *Client) failWaiters(err error) {
	c.waitMu.Lock()
	defer c.waitMu.Unlock()
	for id, waiter := range c.waiters {
		select {
		case waiter <- reply{ID: id, err: err}:
		default:
		}
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	return closed
}

func nextBackoff(delay, max time.Duration) time.Duration {
	if delay*2 >= max {
		return max
	}
	return delay * 2
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

var _ actuator.Actuator = (*Client)(nil)
