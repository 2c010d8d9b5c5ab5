package motion

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type walkTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartWalking sets the direction and, if no walk task is scheduled, schedules
// one whose first step runs after the walk interval. It reports whether a new
// task was started; when already walking only the direction changes. After
// Close it does nothing and returns false.
func (m *Machine) StartWalking(dir Direction) bool {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.logger.Debug("walker closed; start ignored", zap.String("direction", string(dir)))
		return false
	}
	m.state.Direction = dir
	if m.walk != nil {
		m.mu.Unlock()
		m.notify()
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	task := &walkTask{cancel: cancel, done: make(chan struct{})}
	m.walk = task
	m.state.Walking = true
	m.mu.Unlock()

	m.logger.Info("walker started", zap.String("direction", string(dir)), zap.Duration("interval", m.interval))
	go m.runWalk(ctx, task)
	m.notify()
	return true
}

// StopWalking cancels the walk task and waits for it to exit. A step already
// in progress completes first; no step runs after StopWalking returns. It
// reports whether a task was running.
func (m *Machine) StopWalking() bool {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	m.mu.Lock()
	task := m.walk
	m.mu.Unlock()
	if task == nil {
		return false
	}

	task.cancel()
	<-task.done

	m.mu.Lock()
	m.walk = nil
	m.state.Walking = false
	m.mu.Unlock()

	m.logger.Info("walker stopped")
	m.notify()
	return true
}

func (m *Machine) runWalk(ctx context.Context, task *walkTask) {
	defer close(task.done)

	timer := time.NewTimer(m.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}
		m.tick(context.WithoutCancel(ctx))
		timer.Reset(m.interval)
	}
}

// tick reads the distance sensor and takes one step in the current direction.
// Failures are logged and the walker keeps going.
func (m *Machine) tick(ctx context.Context) {
	if dist, err := m.act.ReadDistance(ctx); err != nil {
		m.warn.Warn("walker distance read failed", zap.Error(err))
	} else {
		m.mu.Lock()
		m.state.LastDistance = dist
		m.mu.Unlock()
		m.logger.Debug("walker distance", zap.Float64("cm", dist))
	}

	dir := m.Direction()
	if err := m.act.DoAction(ctx, dir.Action(), m.speed); err != nil {
		m.warn.Warn("walker step failed", zap.String("direction", string(dir)), zap.Error(err))
	}

	m.update(func(s *State) { s.Ticks++ })
}
