// Package speech turns a microphone (or a simulation of one) into a stream of
// command transcripts.
package speech

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/saker-ai/robodog-server/internal/config"
)

// ErrCaptureEnded is returned when the audio source runs dry.
var ErrCaptureEnded = errors.New("audio capture ended")

// Listener hands every final transcript to fn until ctx is done.
type Listener interface {
	Listen(ctx context.Context, fn func(text string)) error
}

const (
	EngineNone      = "none"
	EngineSimulated = "simulated"
	EngineGoogle    = "google"
	EngineVosk      = "vosk"
)

// New builds the listener cfg.Engine names. EngineNone yields a nil Listener.
func New(ctx context.Context, cfg config.SpeechConfig, phrases []config.Phrase, logger *zap.Logger) (Listener, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Engine {
	case EngineNone, "":
		return nil, nil
	case EngineSimulated:
		return NewSimulated(config.PhraseValues(phrases), cfg.MinInterval, cfg.MaxInterval, logger), nil
	case EngineGoogle:
		return NewGoogle(ctx, GoogleConfig{
			ProjectID:    cfg.ProjectID,
			LanguageCode: cfg.LanguageCode,
			SampleRate:   cfg.RecognizerRate,
			CaptureRate:  cfg.SampleRate,
			StreamLimit:  cfg.StreamLimit,
			Phrases:      phrases,
		}, NewCommandSource(cfg.AudioCommand), logger)
	case EngineVosk:
		return NewVosk(VoskConfig{
			ModelPath:   cfg.VoskModelPath,
			SampleRate:  cfg.RecognizerRate,
			CaptureRate: cfg.SampleRate,
			Phrases:     config.PhraseValues(phrases),
		}, NewCommandSource(cfg.AudioCommand), logger)
	default:
		return nil, fmt.Errorf("unknown speech engine %q", cfg.Engine)
	}
}
