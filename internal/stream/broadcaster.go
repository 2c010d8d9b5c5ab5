// Package stream serves the live frame buffer to HTTP viewers as MJPEG.
package stream

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saker-ai/robodog-server/internal/frame"
	"github.com/saker-ai/robodog-server/internal/transport/mjpeg"
)

// Broadcaster copies frames from a Buffer to any number of viewers.
type Broadcaster struct {
	frames   *frame.Buffer
	registry *Registry
	logger   *zap.Logger
}

// NewBroadcaster serves frames from buf and records viewers in registry.
func NewBroadcaster(buf *frame.Buffer, registry *Registry, logger *zap.Logger) *Broadcaster {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{frames: buf, registry: registry, logger: logger}
}

// Registry returns the viewer registry.
func (b *Broadcaster) Registry() *Registry {
	return b.registry
}

// Serve writes the stream headers and then one part per new frame until ctx
// ends or a write fails. Write failures mean the viewer went away; they are
// logged and returned, never propagated to other viewers or the producer.
func (b *Broadcaster) Serve(ctx context.Context, w http.ResponseWriter, remoteAddr string) error {
	id := uuid.NewString()
	b.registry.Register(id, remoteAddr)
	defer func() {
		remaining := b.registry.Remove(id)
		b.logger.Info("stream viewer detached",
			zap.String("viewer_id", id),
			zap.String("remote_addr", remoteAddr),
			zap.Int("viewers", remaining),
		)
	}()
	b.logger.Info("stream viewer attached",
		zap.String("viewer_id", id),
		zap.String("remote_addr", remoteAddr),
		zap.Int("viewers", b.registry.Count()),
	)

	header := w.Header()
	header.Set("Age", "0")
	header.Set("Cache-Control", "no-cache, private")
	header.Set("Pragma", "no-cache")
	header.Set("Content-Type", mjpeg.ContentType(mjpeg.Boundary))
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	reader := b.frames.NewReader()
	for {
		f, err := reader.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if err := mjpeg.WritePart(w, mjpeg.Boundary, mjpeg.JPEG, f.Data); err != nil {
			b.logger.Warn("stream write failed",
				zap.String("viewer_id", id),
				zap.String("remote_addr", remoteAddr),
				zap.Uint64("seq", f.Seq),
				zap.Error(err),
			)
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		b.registry.MarkFrame(id)
	}
}
