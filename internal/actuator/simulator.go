package actuator

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"
)

var actionDurations = map[string]time.Duration{
	"sit":        2 * time.Second,
	"lie":        2500 * time.Millisecond,
	"stand":      1500 * time.Millisecond,
	"forward":    time.Second,
	"backward":   time.Second,
	"turn_left":  1500 * time.Millisecond,
	"turn_right": 1500 * time.Millisecond,
	"wag_tail":   2 * time.Second,
	"doze_off":   3 * time.Second,
	"push_up":    2500 * time.Millisecond,
	"half_sit":   1500 * time.Millisecond,
}

const defaultActionDuration = time.Second

// Simulator stands in for the servo driver. It logs every call and sleeps for
// the action's nominal duration scaled by TimeScale.
type Simulator struct {
	logger    *zap.Logger
	timeScale float64

	mu     sync.Mutex
	closed bool
}

// NewSimulator returns a simulator. A timeScale of 0 skips the sleeps.
func NewSimulator(logger *zap.Logger, timeScale float64) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeScale < 0 {
		timeScale = 0
	}
	return &Simulator{logger: logger, timeScale: timeScale}
}

// ActionDuration returns the nominal duration of name.
func ActionDuration(name string) time.Duration {
	if d, ok := actionDurations[name]; ok {
		return d
	}
	return defaultActionDuration
}

// DoAction logs the action and sleeps for its nominal duration.
func (s *Simulator) DoAction(ctx context.Context, name string, speed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.logger.Info("sim action", zap.String("action", name), zap.Int("speed", speed))
	return s.sleep(ctx, ActionDuration(name))
}

// RunPreset logs the preset and sleeps for its nominal duration.
func (s *Simulator) RunPreset(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.logger.Info("sim preset", zap.String("preset", name))
	return s.sleep(ctx, ActionDuration(name))
}

// HeadMove logs the pose and sleeps for half a second.
func (s *Simulator) HeadMove(ctx context.Context, pose HeadPose, speed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.logger.Info("sim head move",
		zap.Float64("yaw", pose.Yaw),
		zap.Float64("roll", pose.Roll),
		zap.Float64("pitch", pose.Pitch),
		zap.Int("speed", speed),
	)
	return s.sleep(ctx, 500*time.Millisecond)
}

// ReadDistance returns a random distance between 10 and 100 cm.
func (s *Simulator) ReadDistance(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return 10 + rand.Float64()*90, nil
}

// BodyStop logs the stop. It does not sleep.
func (s *Simulator) BodyStop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.logger.Info("sim body stop")
	return ctx.Err()
}

// Close makes further calls fail with ErrClosed.
func (s *Simulator) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *Simulator) sleep(ctx context.Context, d time.Duration) error {
	d = time.Duration(float64(d) * s.timeScale)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
