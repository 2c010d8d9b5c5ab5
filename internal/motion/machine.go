// Package motion owns the robot's shared motion state and the background
// walker that repeats steps while walking.
package motion

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/saker-ai/robodog-server/internal/actuator"
	"github.com/saker-ai/robodog-server/internal/logger"
)

// Direction is the current walking direction.
type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
	Left     Direction = "left"
	Right    Direction = "right"
)

// Action returns the actuator action that performs one step in d.
func (d Direction) Action() string {
	switch d {
	case Backward:
		return "backward"
	case Left:
		return "turn_left"
	case Right:
		return "turn_right"
	default:
		return "forward"
	}
}

// State is a snapshot of the motion state.
type State struct {
	Direction    Direction         `json:"direction"`
	Sitting      bool              `json:"sitting"`
	PawsOut      bool              `json:"paws_out"`
	Walking      bool              `json:"walking"`
	Head         actuator.HeadPose `json:"head"`
	LastDistance float64           `json:"last_distance"`
	Ticks        uint64            `json:"ticks"`
}

// Options configures a Machine.
type Options struct {
	WalkInterval time.Duration
	WalkSpeed    int
}

// Machine guards State with one mutex. Walking is true exactly while a walk
// task is scheduled; StartWalking and StopWalking are serialized so a
// start/stop pair can never leave two tasks behind.
type Machine struct {
	act      actuator.Actuator
	logger   *zap.Logger
	warn     *logger.Throttled
	interval time.Duration
	speed    int

	runMu sync.Mutex

	mu        sync.Mutex
	state     State
	walk      *walkTask
	closed    bool
	observers []func(State)
}

// New creates a machine facing forward, standing, head centred.
func New(act actuator.Actuator, opts Options, log *zap.Logger) *Machine {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.WalkInterval <= 0 {
		opts.WalkInterval = time.Second
	}
	if opts.WalkSpeed <= 0 {
		opts.WalkSpeed = 98
	}
	return &Machine{
		act:      act,
		logger:   log,
		warn:     logger.NewThrottled(log, 10*time.Second),
		interval: opts.WalkInterval,
		speed:    opts.WalkSpeed,
		state:    State{Direction: Forward},
	}
}

// OnChange registers fn to receive a snapshot after every change.
func (m *Machine) OnChange(fn func(State)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Direction returns the current walking direction.
func (m *Machine) Direction() Direction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Direction
}

// Walking reports whether a walk task is scheduled.
func (m *Machine) Walking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Walking
}

// SetSitting records the posture.
func (m *Machine) SetSitting(sitting bool) {
	m.update(func(s *State) { s.Sitting = sitting })
}

// TogglePawsOut flips the paws-out flag and returns its previous value.
func (m *Machine) TogglePawsOut() bool {
	var prev bool
	m.update(func(s *State) {
		prev = s.PawsOut
		s.PawsOut = !prev
	})
	return prev
}

// UpdateHead applies fn to the head set-point and returns the result. Axes
// that fn leaves alone keep their last value.
func (m *Machine) UpdateHead(fn func(p *actuator.HeadPose)) actuator.HeadPose {
	var pose actuator.HeadPose
	m.update(func(s *State) {
		fn(&s.Head)
		pose = s.Head
	})
	return pose
}

// ResetHead zeroes all three head axes.
func (m *Machine) ResetHead() actuator.HeadPose {
	return m.UpdateHead(func(p *actuator.HeadPose) { *p = actuator.HeadPose{} })
}

// Close stops the walker for good. StartWalking does nothing afterwards.
func (m *Machine) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.StopWalking()
}

func (m *Machine) update(fn func(s *State)) {
	m.mu.Lock()
	fn(&m.state)
	snapshot := m.state
	observers := m.observers
	m.mu.Unlock()
	notify(observers, snapshot)
}

func (m *Machine) notify() {
	m.mu.Lock()
	snapshot := m.state
	observers := m.observers
	m.mu.Unlock()
	notify(observers, snapshot)
}

func notify(observers []func(State), snapshot State) {
	for _, fn := range observers {
		fn(snapshot)
	}
}
