// Package actuatortest provides an in-memory Actuator that records calls.
package actuatortest

import (
	"context"
	"fmt"
	"sync"

	"github.com/saker-ai/robodog-server/internal/actuator"
)

// Call is one recorded actuator invocation.
type Call struct {
	Op    string
	Name  string
	Speed int
	Pose  actuator.HeadPose
}

func (c Call) String() string {
	switch c.Op {
	case "action":
		return fmt.Sprintf("action %s@%d", c.Name, c.Speed)
	case "preset":
		return "preset " + c.Name
	case "head":
		return fmt.Sprintf("head [%g %g %g]@%d", c.Pose.Yaw, c.Pose.Roll, c.Pose.Pitch, c.Speed)
	default:
		return c.Op
	}
}

// Recorder records every call. Fail, when set, is consulted before each call
// and its error returned.
type Recorder struct {
	mu       sync.Mutex
	calls    []Call
	Distance float64
	Fail     func(Call) error
	// OnCall runs after a call is recorded, outside the lock.
	OnCall func(Call)
}

// New returns an empty recorder reporting a 50cm distance.
func New() *Recorder {
	return &Recorder{Distance: 50}
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	fail := r.Fail
	onCall := r.OnCall
	r.mu.Unlock()
	if onCall != nil {
		onCall(c)
	}
	if fail != nil {
		return fail(c)
	}
	return nil
}

func (r *Recorder) DoAction(ctx context.Context, name string, speed int) error {
	return r.record(Call{Op: "action", Name: name, Speed: speed})
}

func (r *Recorder) RunPreset(ctx context.Context, name string) error {
	return r.record(Call{Op: "preset", Name: name})
}

func (r *Recorder) HeadMove(ctx context.Context, pose actuator.HeadPose, speed int) error {
	return r.record(Call{Op: "head", Pose: pose, Speed: speed})
}

func (r *Recorder) ReadDistance(ctx context.Context) (float64, error) {
	if err := r.record(Call{Op: "distance"}); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Distance, nil
}

func (r *Recorder) BodyStop(ctx context.Context) error {
	return r.record(Call{Op: "stop"})
}

func (r *Recorder) Close() error { return nil }

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Strings returns the recorded calls in their String form.
func (r *Recorder) Strings() []string {
	calls := r.Calls()
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.String())
	}
	return out
}

// Count returns how many calls matched op.
func (r *Recorder) Count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Reset clears recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

var _ actuator.Actuator = (*Recorder)(nil)
