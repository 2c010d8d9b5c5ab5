// Package command turns free-text commands into actuator calls and motion
// state changes.
package command

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/saker-ai/robodog-server/internal/actuator"
	"github.com/saker-ai/robodog-server/internal/motion"
)

// Options configures a Router.
type Options struct {
	HeadSpeed   int
	SettleDelay time.Duration
}

// Result reports what one dispatch did.
type Result struct {
	Text    string    `json:"text"`
	Intents []string  `json:"intents"`
	Failed  []string  `json:"failed,omitempty"`
	At      time.Time `json:"at"`
}

// Matched reports whether any intent fired.
func (r Result) Matched() bool {
	return len(r.Intents) > 0
}

// Router dispatches text against the rule table.
type Router struct {
	act         actuator.Actuator
	motion      *motion.Machine
	logger      *zap.Logger
	headSpeed   int
	settleDelay time.Duration
	sleep       func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	last      Result
	observers []func(Result)
}

// NewRouter executes the newRouter function.
func NewRouter(act actuator.Actuator, m *motion.Machine, opts Options, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HeadSpeed <= 0 {
		opts.HeadSpeed = 80
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	return &Router{
		act:         act,
		motion:      m,
		logger:      logger,
		headSpeed:   opts.HeadSpeed,
		settleDelay: opts.SettleDelay,
		sleep:       sleepCtx,
	}
}

// OnDispatch registers fn to receive every matched Result.
func (r *Router) OnDispatch(fn func(Result)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.observers = append(r.observers, fn)
	r.mu.Unlock()
}

// Last returns the most recent matched dispatch.
func (r *Router) Last() Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Dispatch lowercases text and fires every matching rule in table order, on
// the calling goroutine. Unmatched text does nothing. A failing actuator call
// ends that intent; the remaining intents still run.
func (r *Router) Dispatch(ctx context.Context, text string) Result {
	lower := strings.ToLower(text)
	res := Result{Text: text, At: time.Now()}

	for _, rl := range rules {
		if !matches(lower, rl.keywords) {
			continue
		}
		res.Intents = append(res.Intents, rl.intent)
		r.logger.Info("command intent", zap.String("intent", rl.intent), zap.String("text", text))
		for _, s := range rl.steps {
			if err := s(ctx, r); err != nil {
				r.logger.Warn("command intent failed", zap.String("intent", rl.intent), zap.Error(err))
				res.Failed = append(res.Failed, rl.intent)
				break
			}
		}
	}

	if !res.Matched() {
		r.logger.Debug("command unmatched", zap.String("text", text))
		return res
	}

	r.mu.Lock()
	r.last = res
	observers := r.observers
	r.mu.Unlock()
	for _, fn := range observers {
		fn(res)
	}
	return res
}

func matches(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
