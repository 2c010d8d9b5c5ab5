package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv2"
	"cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saker-ai/robodog-server/internal/config"
)

// StreamingClient is the part of the Speech-to-Text client used here.
type StreamingClient interface {
	StreamingRecognize(ctx context.Context, opts ...gax.CallOption) (speechpb.Speech_StreamingRecognizeClient, error)
	Close() error
}

type recognizeStream interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

// GoogleConfig configures the streaming recognizer.
type GoogleConfig struct {
	ProjectID    string
	LanguageCode string
	SampleRate   int
	CaptureRate  int
	StreamLimit  time.Duration
	Phrases      []config.Phrase
}

// Google recognizes speech with Cloud Speech-to-Text streaming. Each stream
// is closed and replaced before the service's stream duration limit.
type Google struct {
	cfg    GoogleConfig
	audio  AudioSource
	logger *zap.Logger
	client StreamingClient
	open   func(ctx context.Context) (recognizeStream, error)
	retry  time.Duration
}

// NewGoogle dials the Speech-to-Text API with application default credentials.
func NewGoogle(ctx context.Context, cfg GoogleConfig, src AudioSource, logger *zap.Logger) (*Google, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("speech project id must be specified")
	}
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return newGoogle(cfg, src, client, logger), nil
}

func newGoogle(cfg GoogleConfig, src AudioSource, client StreamingClient, logger *zap.Logger) *Google {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.CaptureRate <= 0 {
		cfg.CaptureRate = cfg.SampleRate
	}
	if cfg.StreamLimit <= 0 {
		cfg.StreamLimit = 4 * time.Minute
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Google{cfg: cfg, audio: src, logger: logger, client: client, retry: time.Second}
	g.open = func(ctx context.Context) (recognizeStream, error) {
		return client.StreamingRecognize(ctx)
	}
	return g
}

// Close releases the API client.
func (g *Google) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// Listen streams captured audio and hands every final transcript to fn.
func (g *Google) Listen(ctx context.Context, fn func(text string)) error {
	rc, err := g.audio.Open(ctx)
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	defer rc.Close()

	eg, ctx := errgroup.WithContext(ctx)
	chunks := make(chan []byte, 32)

	// The capture ending is reported after the last stream has drained.
	var captureErr error
	eg.Go(func() error {
		defer close(chunks)
		err := pump(ctx, rc, g.cfg.CaptureRate, g.cfg.SampleRate, func(chunk []byte) error {
			select {
			case chunks <- chunk:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if errors.Is(err, ErrCaptureEnded) {
			captureErr = err
			return nil
		}
		return err
	})

	eg.Go(func() error {
		for {
			more, err := g.session(ctx, chunks, fn)
			if ctx.Err() != nil {
				return nil
			}
			if !more {
				return nil
			}
			if err != nil {
				g.logger.Warn("speech stream failed", zap.Error(err))
				if !sleepCtx(ctx, g.retry) {
					return nil
				}
			}
		}
	})

	err = eg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err == nil {
		return captureErr
	}
	return err
}

// session runs one stream until the limit, the capture end, or an error.
// more is false once the capture has ended.
func (g *Google) session(ctx context.Context, chunks <-chan []byte, fn func(string)) (more bool, err error) {
	eg, sctx := errgroup.WithContext(ctx)
	stream, err := g.open(sctx)
	if err != nil {
		return true, fmt.Errorf("failed to create stream: %w", err)
	}
	if err := stream.Send(g.configRequest()); err != nil {
		return true, fmt.Errorf("failed to send initial request: %w", err)
	}
	g.logger.Debug("speech stream opened")

	more = true
	eg.Go(func() error {
		limit := time.NewTimer(g.cfg.StreamLimit)
		defer limit.Stop()
		for {
			select {
			case <-sctx.Done():
				return nil
			case <-limit.C:
				return stream.CloseSend()
			case chunk, ok := <-chunks:
				if !ok {
					more = false
					return stream.CloseSend()
				}
				err := stream.Send(&speechpb.StreamingRecognizeRequest{
					StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{Audio: chunk},
				})
				if err != nil {
					return fmt.Errorf("failed to send audio data: %w", err)
				}
			}
		}
	})

	eg.Go(func() error {
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to receive response: %w", err)
			}
			for _, text := range finalTranscripts(resp) {
				g.logger.Info("speech heard", zap.String("text", text))
				fn(text)
			}
		}
	})

	err = eg.Wait()
	return more, err
}

func (g *Google) configRequest() *speechpb.StreamingRecognizeRequest {
	phrases := make([]*speechpb.PhraseSet_Phrase, 0, len(g.cfg.Phrases))
	for _, p := range g.cfg.Phrases {
		phrases = append(phrases, &speechpb.PhraseSet_Phrase{Value: p.Value, Boost: p.Boost})
	}
	recConfig := &speechpb.RecognitionConfig{
		DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
			ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
				Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
				SampleRateHertz:   int32(g.cfg.SampleRate),
				AudioChannelCount: 1,
			},
		},
		LanguageCodes: []string{g.cfg.LanguageCode},
	}
	if len(phrases) > 0 {
		recConfig.Adaptation = &speechpb.SpeechAdaptation{
			PhraseSets: []*speechpb.SpeechAdaptation_AdaptationPhraseSet{{
				Value: &speechpb.SpeechAdaptation_AdaptationPhraseSet_InlinePhraseSet{
					InlinePhraseSet: &speechpb.PhraseSet{Phrases: phrases},
				},
			}},
		}
	}
	return &speechpb.StreamingRecognizeRequest{
		Recognizer: fmt.Sprintf("projects/%s/locations/global/recognizers/_", g.cfg.ProjectID),
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: recConfig,
				StreamingFeatures: &speechpb.StreamingRecognitionFeatures{
					InterimResults: false,
				},
			},
		},
	}
}

func finalTranscripts(resp *speechpb.StreamingRecognizeResponse) []string {
	var out []string
	for _, result := range resp.GetResults() {
		if !result.GetIsFinal() || len(result.GetAlternatives()) == 0 {
			continue
		}
		text := strings.TrimSpace(result.GetAlternatives()[0].GetTranscript())
		if text != "" {
			out = append(out, text)
		}
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
