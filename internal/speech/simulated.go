package speech

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Simulated pretends someone speaks a random known phrase every so often.
type Simulated struct {
	phrases []string
	min     time.Duration
	max     time.Duration
	logger  *zap.Logger

	pick func(n int) int
	wait func(min, max time.Duration) time.Duration
}

// NewSimulated executes the newSimulated function.
func NewSimulated(phrases []string, min, max time.Duration, logger *zap.Logger) *Simulated {
	if min <= 0 {
		min = 10 * time.Second
	}
	if max < min {
		max = min
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulated{
		phrases: phrases,
		min:     min,
		max:     max,
		logger:  logger,
		pick:    rand.IntN,
		wait:    randomBetween,
	}
}

// Listen emits phrases until ctx is done, then returns nil.
func (s *Simulated) Listen(ctx context.Context, fn func(text string)) error {
	if len(s.phrases) == 0 {
		s.logger.Warn("simulated speech has no phrases")
		<-ctx.Done()
		return nil
	}
	timer := time.NewTimer(s.wait(s.min, s.max))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
		text := s.phrases[s.pick(len(s.phrases))]
		s.logger.Info("simulated speech heard", zap.String("text", text))
		fn(text)
		timer.Reset(s.wait(s.min, s.max))
	}
}

func randomBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min+1)
}
