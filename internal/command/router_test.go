package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/saker-ai/robodog-server/internal/actuator/actuatortest"
	"github.com/saker-ai/robodog-server/internal/motion"
)

func newTestRouter(t *testing.T) (*Router, *motion.Machine, *actuatortest.Recorder) {
	t.Helper()
	rec := actuatortest.New()
	m := motion.New(rec, motion.Options{WalkInterval: time.Hour}, nil)
	t.Cleanup(m.Close)
	r := NewRouter(rec, m, Options{}, nil)
	return r, m, rec
}

func TestDispatchOrderedMultiIntent(t *testing.T) {
	r, _, rec := newTestRouter(t)

	res := r.Dispatch(context.Background(), "Sit and BARK")

	if diff := cmp.Diff([]string{"sit", "bark"}, res.Intents); diff != "" {
		t.Fatalf("intents mismatch (-want +got):\n%s", diff)
	}
	want := []string{"action sit@50", "preset bark_action", "preset bark"}
	if diff := cmp.Diff(want, rec.Strings()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchHeadPoseComposes(t *testing.T) {
	r, m, rec := newTestRouter(t)

	r.Dispatch(context.Background(), "look left")
	r.Dispatch(context.Background(), "look up")

	want := []string{"head [15 0 0]@80", "head [15 0 10]@80"}
	if diff := cmp.Diff(want, rec.Strings()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	if head := m.Snapshot().Head; head.Yaw != 15 || head.Pitch != 10 {
		t.Fatalf("head=%+v, want yaw 15 pitch 10", head)
	}
}

func TestDispatchUnmatchedIsNoop(t *testing.T) {
	r, m, rec := newTestRouter(t)
	before := m.Snapshot()

	res := r.Dispatch(context.Background(), "hello there")

	if res.Matched() {
		t.Fatalf("intents=%v, want none", res.Intents)
	}
	if n := len(rec.Calls()); n != 0 {
		t.Fatalf("actuator calls=%d, want 0", n)
	}
	if diff := cmp.Diff(before, m.Snapshot()); diff != "" {
		t.Fatalf("state changed (-before +after):\n%s", diff)
	}
	if r.Last().Matched() {
		t.Fatal("Last recorded an unmatched dispatch")
	}
}

func TestDispatchForwardTwiceStartsOneWalker(t *testing.T) {
	r, m, _ := newTestRouter(t)

	r.Dispatch(context.Background(), "forward")
	r.Dispatch(context.Background(), "turn left")

	s := m.Snapshot()
	if !s.Walking {
		t.Fatal("Walking=false, want true")
	}
	if s.Direction != motion.Left {
		t.Fatalf("direction=%s, want %s", s.Direction, motion.Left)
	}
	if m.StartWalking(motion.Left) {
		t.Fatal("walker was not already running")
	}
}

func TestDispatchStopResetsEverything(t *testing.T) {
	r, m, rec := newTestRouter(t)
	var slept time.Duration
	r.settleDelay = time.Second
	r.sleep = func(_ context.Context, d time.Duration) error {
		slept = d
		return nil
	}

	r.Dispatch(context.Background(), "look right")
	r.Dispatch(context.Background(), "backward")
	rec.Reset()

	res := r.Dispatch(context.Background(), "reset")

	if diff := cmp.Diff([]string{"stop"}, res.Intents); diff != "" {
		t.Fatalf("intents mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"head [0 0 0]@80", "stop"}, rec.Strings()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	if m.Walking() {
		t.Fatal("Walking=true after reset")
	}
	if slept != time.Second {
		t.Fatalf("settle delay=%s, want 1s", slept)
	}
}

func TestDispatchLieToggles(t *testing.T) {
	r, m, rec := newTestRouter(t)

	r.Dispatch(context.Background(), "lie down")
	r.Dispatch(context.Background(), "lay")

	want := []string{"action lie_with_hands_out@60", "action lie@60"}
	if diff := cmp.Diff(want, rec.Strings()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	if s := m.Snapshot(); s.PawsOut || !s.Sitting {
		t.Fatalf("state=%+v, want paws in and lying", s)
	}
}

func TestDispatchHighFiveDigit(t *testing.T) {
	r, _, rec := newTestRouter(t)

	r.Dispatch(context.Background(), "5")

	want := []string{"action sit@50", "preset high_five"}
	if diff := cmp.Diff(want, rec.Strings()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchContinuesAfterFailure(t *testing.T) {
	r, _, rec := newTestRouter(t)
	rec.Fail = func(c actuatortest.Call) error {
		if c.Name == "sit" {
			return errors.New("servo stalled")
		}
		return nil
	}

	res := r.Dispatch(context.Background(), "sit and howl")

	if diff := cmp.Diff([]string{"sit"}, res.Failed); diff != "" {
		t.Fatalf("failed mismatch (-want +got):\n%s", diff)
	}
	want := []string{"action sit@50", "preset howling"}
	if diff := cmp.Diff(want, rec.Strings()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestOnDispatchObserver(t *testing.T) {
	r, _, _ := newTestRouter(t)
	var got []Result
	r.OnDispatch(func(res Result) { got = append(got, res) })

	r.Dispatch(context.Background(), "wag tail")
	r.Dispatch(context.Background(), "hello there")

	if len(got) != 1 || got[0].Intents[0] != "wag_tail" {
		t.Fatalf("observed=%+v, want one wag_tail", got)
	}
	if r.Last().Text != "wag tail" {
		t.Fatalf("Last.Text=%q, want wag tail", r.Last().Text)
	}
}

func TestCommandsCoverTable(t *testing.T) {
	cmds := Commands()
	if len(cmds) != 31 {
		t.Fatalf("commands=%d, want 31", len(cmds))
	}
	if cmds[0].Intent != "sit" || cmds[len(cmds)-1].Intent != "stop" {
		t.Fatalf("commands order=%v", cmds)
	}
	if cmds[7] != (Command{Intent: "high_five", Phrase: "high five"}) {
		t.Fatalf("commands[7]=%+v, want high_five/high five", cmds[7])
	}
}

func TestEveryCommandPhraseFiresItsIntent(t *testing.T) {
	r, _, _ := newTestRouter(t)
	for _, c := range Commands() {
		res := r.Dispatch(context.Background(), c.Phrase)
		found := false
		for _, intent := range res.Intents {
			if intent == c.Intent {
				found = true
			}
		}
		if !found {
			t.Fatalf("Dispatch(%q) intents=%v, want %q", c.Phrase, res.Intents, c.Intent)
		}
	}
}
