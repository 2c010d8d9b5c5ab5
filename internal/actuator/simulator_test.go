package actuator

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSimulatorDistanceRange(t *testing.T) {
	s := NewSimulator(nil, 0)
	for i := 0; i < 100; i++ {
		d, err := s.ReadDistance(context.Background())
		if err != nil {
			t.Fatalf("ReadDistance error: %v", err)
		}
		if d < 10 || d > 100 {
			t.Fatalf("distance=%v, want within [10,100]", d)
		}
	}
}

func TestSimulatorHonoursContext(t *testing.T) {
	s := NewSimulator(nil, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := s.DoAction(ctx, "doze_off", 95)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("DoAction error=%v, want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("DoAction ignored context deadline")
	}
}

func TestSimulatorClosed(t *testing.T) {
	s := NewSimulator(nil, 0)
	_ = s.Close()
	if err := s.RunPreset(context.Background(), "bark"); !errors.Is(err, ErrClosed) {
		t.Fatalf("RunPreset error=%v, want ErrClosed", err)
	}
}

func TestActionDuration(t *testing.T) {
	if got := ActionDuration("lie"); got != 2500*time.Millisecond {
		t.Fatalf("ActionDuration(lie)=%s, want 2.5s", got)
	}
	if got := ActionDuration("unknown"); got != time.Second {
		t.Fatalf("ActionDuration(unknown)=%s, want 1s", got)
	}
}

func TestHeadPoseAngles(t *testing.T) {
	got := HeadPose{Yaw: 15, Roll: 0, Pitch: 10}.Angles()
	if got != [3]float64{15, 0, 10} {
		t.Fatalf("Angles=%v, want [15 0 10]", got)
	}
}
