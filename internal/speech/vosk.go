package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	vosk "github.com/alphacep/vosk-api/go"
	"go.uber.org/zap"
)

// voskRecognizer is the part of *vosk.VoskRecognizer used here.
type voskRecognizer interface {
	AcceptWaveform([]byte) int
	Result() string
	FinalResult() string
}

// VoskConfig configures the offline recognizer.
type VoskConfig struct {
	ModelPath   string
	SampleRate  int
	CaptureRate int
	Phrases     []string
}

// Vosk recognizes speech offline, restricted to a grammar built from the
// phrase list.
type Vosk struct {
	cfg    VoskConfig
	audio  AudioSource
	logger *zap.Logger
	rec    voskRecognizer
	free   func()
}

// NewVosk loads the model at cfg.ModelPath.
func NewVosk(cfg VoskConfig, src AudioSource, logger *zap.Logger) (*Vosk, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("vosk model path must be specified")
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	model, err := vosk.NewModel(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load vosk model: %w", err)
	}
	grammar, err := grammarJSON(cfg.Phrases)
	if err != nil {
		model.Free()
		return nil, err
	}
	rec, err := vosk.NewRecognizerGrm(model, float64(cfg.SampleRate), grammar)
	if err != nil {
		model.Free()
		return nil, fmt.Errorf("create vosk recognizer: %w", err)
	}
	v := newVosk(cfg, src, rec, logger)
	v.free = func() {
		rec.Free()
		model.Free()
	}
	return v, nil
}

func newVosk(cfg VoskConfig, src AudioSource, rec voskRecognizer, logger *zap.Logger) *Vosk {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.CaptureRate <= 0 {
		cfg.CaptureRate = cfg.SampleRate
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Vosk{cfg: cfg, audio: src, logger: logger, rec: rec}
}

// Close frees the recognizer and model.
func (v *Vosk) Close() error {
	if v.free != nil {
		v.free()
		v.free = nil
	}
	return nil
}

// Listen feeds captured audio to the recognizer until ctx is done or the
// capture ends.
func (v *Vosk) Listen(ctx context.Context, fn func(text string)) error {
	rc, err := v.audio.Open(ctx)
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	defer rc.Close()

	err = pump(ctx, rc, v.cfg.CaptureRate, v.cfg.SampleRate, func(chunk []byte) error {
		if v.rec.AcceptWaveform(chunk) == 0 {
			return nil
		}
		return v.deliver(v.rec.Result(), fn)
	})
	if errors.Is(err, ErrCaptureEnded) {
		if ferr := v.deliver(v.rec.FinalResult(), fn); ferr != nil {
			return ferr
		}
		return err
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (v *Vosk) deliver(raw string, fn func(string)) error {
	text, err := parseResult(raw)
	if err != nil {
		return fmt.Errorf("failed to parse result: %w", err)
	}
	// [unk] marks speech outside the grammar
	text = strings.TrimSpace(strings.ReplaceAll(text, "[unk]", ""))
	if text == "" {
		return nil
	}
	v.logger.Info("speech heard", zap.String("text", text))
	fn(text)
	return nil
}

func parseResult(data string) (string, error) {
	var kv map[string]any
	if err := json.Unmarshal([]byte(data), &kv); err != nil {
		return "", err
	}
	text, _ := kv["text"].(string)
	return text, nil
}

func grammarJSON(phrases []string) (string, error) {
	words := make([]string, 0, len(phrases)+1)
	for _, p := range phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			words = append(words, p)
		}
	}
	words = append(words, "[unk]")
	data, err := json.Marshal(words)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
