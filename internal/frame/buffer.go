// Package frame holds the latest encoded camera frame and wakes readers when
// it changes.
package frame

import (
	"context"
	"sync"
)

// Frame is one encoded image and the sequence number it was published under.
type Frame struct {
	Data []byte
	Seq  uint64
}

// Buffer keeps only the newest frame. Publish never waits on readers; a slow
// reader skips intermediate frames instead of queueing them.
type Buffer struct {
	mu    sync.Mutex
	data  []byte
	seq   uint64
	ready chan struct{}
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{ready: make(chan struct{})}
}

// Publish replaces the current frame with a copy of data and wakes every
// waiting reader.
func (b *Buffer) Publish(data []byte) uint64 {
	frame := make([]byte, len(data))
	copy(frame, data)

	b.mu.Lock()
	b.data = frame
	b.seq++
	seq := b.seq
	close(b.ready)
	b.ready = make(chan struct{})
	b.mu.Unlock()
	return seq
}

// Write publishes p as a whole frame so encoders can target the buffer as an
// io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.Publish(p)
	return len(p), nil
}

// Latest returns the current frame, if any was published.
func (b *Buffer) Latest() (Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.seq == 0 {
		return Frame{}, false
	}
	return Frame{Data: b.data, Seq: b.seq}, true
}

// Seq returns the sequence number of the current frame; zero means none yet.
func (b *Buffer) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// NewReader returns a reader positioned before the next frame. A frame that
// is already present is delivered by the first Next call.
func (b *Buffer) NewReader() *Reader {
	return &Reader{buf: b}
}

// Reader tracks the last sequence number it delivered. A Reader is owned by a
// single goroutine.
type Reader struct {
	buf    *Buffer
	cursor uint64
}

// Next blocks until a frame newer than the last one returned exists, then
// returns the newest frame. It returns ctx.Err() when ctx ends first.
func (r *Reader) Next(ctx context.Context) (Frame, error) {
	for {
		r.buf.mu.Lock()
		if r.buf.seq > r.cursor {
			f := Frame{Data: r.buf.data, Seq: r.buf.seq}
			r.buf.mu.Unlock()
			r.cursor = f.Seq
			return f, nil
		}
		wait := r.buf.ready
		r.buf.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		}
	}
}

// Cursor returns the sequence number of the last delivered frame.
func (r *Reader) Cursor() uint64 {
	return r.cursor
}
