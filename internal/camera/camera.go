// Package camera produces JPEG frames for the live stream.
package camera

import (
	"context"
	"io"
)

// Source writes one complete JPEG per Write to sink until ctx is done.
type Source interface {
	Run(ctx context.Context, sink io.Writer) error
}

const (
	SourceSynthetic = "synthetic"
	SourceDevice    = "device"
	SourceMJPEG     = "mjpeg"
)
