package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/saker-ai/robodog-server/pkg/audio"
)

// frameMillis is the size of each chunk handed to a recognizer.
const frameMillis = 100

// AudioSource yields mono little-endian PCM16 at the capture rate.
type AudioSource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// CommandSource reads audio from the stdout of an external recorder such as
// arecord.
type CommandSource struct {
	Args []string
}

// NewCommandSource executes the newCommandSource function.
func NewCommandSource(args []string) *CommandSource {
	return &CommandSource{Args: args}
}

// Open starts the recorder. Closing the reader stops it.
func (s *CommandSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if len(s.Args) == 0 {
		return nil, errors.New("audio command is empty")
	}
	cmd := exec.CommandContext(ctx, s.Args[0], s.Args[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", s.Args[0], err)
	}
	return &commandReader{ReadCloser: stdout, cmd: cmd}, nil
}

type commandReader struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (r *commandReader) Close() error {
	_ = r.ReadCloser.Close()
	if r.cmd.Process != nil {
		_ = r.cmd.Process.Kill()
	}
	_ = r.cmd.Wait()
	return nil
}

// pump reads r, resamples it, and calls fn with frameMillis chunks. It
// returns ErrCaptureEnded when r is exhausted.
func pump(ctx context.Context, r io.Reader, captureRate, outRate int, fn func([]byte) error) error {
	res, err := audio.NewStreamResampler(captureRate, outRate)
	if err != nil {
		return err
	}
	defer res.Close()

	frameSamples := audio.FrameSamples(outRate, frameMillis)
	buf := make([]byte, audio.FrameSamples(captureRate, frameMillis)*2)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, err := res.Write(buf[:n]); err != nil {
				return fmt.Errorf("resample audio: %w", err)
			}
			for {
				chunk, ok := res.ReadFrame(frameSamples)
				if !ok {
					break
				}
				if err := fn(chunk); err != nil {
					return err
				}
			}
		}
		if readErr == nil {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("read audio: %w", readErr)
		}
		if err := res.Flush(); err == nil {
			if tail := res.ReadRemainder(); len(tail) > 0 {
				if err := fn(tail); err != nil {
					return err
				}
			}
		}
		return ErrCaptureEnded
	}
}
