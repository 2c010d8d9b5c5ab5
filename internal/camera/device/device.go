// Package device captures frames from a local video device with OpenCV.
package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Device reads a V4L2/USB camera and encodes each frame as JPEG.
type Device struct {
	cap     *gocv.VideoCapture
	quality int
	fps     int
	logger  *zap.Logger
}

// Open opens device id and applies the requested size and rate.
func Open(id, width, height, fps, quality int, logger *zap.Logger) (*Device, error) {
	cap, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", id, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("open camera %d: device not available", id)
	}
	if width > 0 && height > 0 {
		cap.Set(gocv.VideoCaptureFrameWidth, float64(width))
		cap.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	if fps <= 0 {
		fps = 30
	}
	cap.Set(gocv.VideoCaptureFPS, float64(fps))
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Device{cap: cap, quality: quality, fps: fps, logger: logger}, nil
}

// Close releases the device.
func (d *Device) Close() error {
	return d.cap.Close()
}

// Run reads frames until ctx is done. Empty reads are skipped; a closed
// device ends the run with an error.
func (d *Device) Run(ctx context.Context, sink io.Writer) error {
	img := gocv.NewMat()
	defer img.Close()

	params := []int{gocv.IMWriteJpegQuality, d.quality}
	misses := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		if ok := d.cap.Read(&img); !ok {
			misses++
			if misses > 5*d.fps {
				return errors.New("camera stopped delivering frames")
			}
			time.Sleep(time.Second / time.Duration(d.fps))
			continue
		}
		if img.Empty() {
			continue
		}
		misses = 0
		buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, params)
		if err != nil {
			d.logger.Warn("jpeg encode failed", zap.Error(err))
			continue
		}
		_, err = sink.Write(buf.GetBytes())
		buf.Close()
		if err != nil {
			return err
		}
	}
}
