package command

import (
	"context"
	"strings"

	"github.com/saker-ai/robodog-server/internal/actuator"
	"github.com/saker-ai/robodog-server/internal/motion"
)

type step func(ctx context.Context, r *Router) error

// rule fires its steps when any keyword is a substring of the lowercased text.
type rule struct {
	intent   string
	keywords []string
	steps    []step
}

// rules are evaluated in order and are not mutually exclusive.
var rules = []rule{
	{"sit", kw("sit"), steps(action("sit", 50), sitting(true))},
	{"stand", kw("stand"), steps(preset("sit_2_stand"), sitting(false))},
	{"lie", kw("lay", "lie"), steps(lieToggle, sitting(true))},
	{"speak", kw("speak"), steps(preset("bark_action"), preset("bark"))},
	{"bark", kw("bark"), steps(preset("bark_action"), preset("bark"))},
	{"howl", kw("howl"), steps(preset("howling"))},
	{"shake", kw("shake"), steps(action("sit", 50), sitting(true), preset("hand_shake"))},
	{"high_five", kw("five", "5"), steps(action("sit", 50), sitting(true), preset("high_five"))},
	{"scratch", kw("scratch"), steps(action("lie", 60), preset("scratch"))},
	{"pant", kw("pant"), steps(preset("pant"))},
	{"sleep", kw("sleep"), steps(action("lie", 40), action("doze_off", 95))},
	{"twist", kw("twist"), steps(action("lie", 60), preset("body_twisting"))},
	{"push_up", kw("pushup", "push", "push up"), steps(preset("push_up"))},
	{"surprise", kw("surprise"), steps(preset("surprise"))},
	{"alert", kw("alert"), steps(preset("alert"))},
	{"wag_tail", kw("wag tail"), steps(action("wag_tail", 95))},
	{"no", kw("no"), steps(preset("shake_head_smooth"))},
	{"yes", kw("yes"), steps(preset("nod"))},
	{"attack", kw("attack"), steps(preset("attack_posture"))},
	{"lick", kw("lick"), steps(preset("lick_hand"))},
	{"think", kw("think"), steps(preset("think"))},
	{"recall", kw("recall"), steps(preset("recall"))},
	{"look_left", kw("look left"), steps(look(func(p *actuator.HeadPose) { p.Yaw = 15 }))},
	{"look_right", kw("look right"), steps(look(func(p *actuator.HeadPose) { p.Yaw = -15 }))},
	{"look_up", kw("look up"), steps(look(func(p *actuator.HeadPose) { p.Pitch = 10 }))},
	{"look_down", kw("look down"), steps(look(func(p *actuator.HeadPose) { p.Pitch = -25 }))},
	{"forward", kw("forward"), steps(walk(motion.Forward))},
	{"backward", kw("backward"), steps(walk(motion.Backward))},
	{"turn_left", kw("turn left"), steps(walk(motion.Left))},
	{"turn_right", kw("turn right"), steps(walk(motion.Right))},
	{"stop", kw("stop", "reset"), steps(stopAll)},
}

// Command pairs an intent with a phrase that triggers it.
type Command struct {
	Intent string `json:"intent"`
	Phrase string `json:"phrase"`
}

// Commands lists every intent in evaluation order with a trigger phrase.
func Commands() []Command {
	out := make([]Command, 0, len(rules))
	for _, r := range rules {
		out = append(out, Command{Intent: r.intent, Phrase: strings.ReplaceAll(r.intent, "_", " ")})
	}
	return out
}

func kw(words ...string) []string { return words }

func steps(s ...step) []step { return s }

func action(name string, speed int) step {
	return func(ctx context.Context, r *Router) error {
		return r.act.DoAction(ctx, name, speed)
	}
}

func preset(name string) step {
	return func(ctx context.Context, r *Router) error {
		return r.act.RunPreset(ctx, name)
	}
}

func sitting(v bool) step {
	return func(_ context.Context, r *Router) error {
		r.motion.SetSitting(v)
		return nil
	}
}

func look(set func(p *actuator.HeadPose)) step {
	return func(ctx context.Context, r *Router) error {
		pose := r.motion.UpdateHead(set)
		return r.act.HeadMove(ctx, pose, r.headSpeed)
	}
}

func walk(dir motion.Direction) step {
	return func(_ context.Context, r *Router) error {
		r.motion.StartWalking(dir)
		return nil
	}
}

// lieToggle alternates between lying with paws out and plain lying.
func lieToggle(ctx context.Context, r *Router) error {
	if r.motion.TogglePawsOut() {
		return r.act.DoAction(ctx, "lie", 60)
	}
	return r.act.DoAction(ctx, "lie_with_hands_out", 60)
}

func stopAll(ctx context.Context, r *Router) error {
	pose := r.motion.ResetHead()
	headErr := r.act.HeadMove(ctx, pose, r.headSpeed)
	r.motion.StopWalking()
	if err := r.sleep(ctx, r.settleDelay); err != nil {
		return err
	}
	if err := r.act.BodyStop(ctx); err != nil {
		return err
	}
	return headErr
}
