// Package audio converts captured PCM16 audio to the rate a recognizer wants.
package audio

import "fmt"

// StreamResampler keeps resampling state across capture reads. Input and
// output are mono little-endian PCM16.
type StreamResampler struct {
	inRate  int
	outRate int

	resampler *soxrStreamResampler
	carry     []byte
	outBuf    []float32
}

// NewStreamResampler creates a streaming resampler for continuous audio.
// Equal rates pass samples through without touching soxr.
func NewStreamResampler(inRate, outRate int) (*StreamResampler, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates %d -> %d", inRate, outRate)
	}
	s := &StreamResampler{inRate: inRate, outRate: outRate}
	if inRate == outRate {
		return s, nil
	}
	r, err := newSoxrStreamResampler(inRate, outRate)
	if err != nil {
		return nil, err
	}
	s.resampler = r
	return s, nil
}

// OutRate returns the output sample rate.
func (s *StreamResampler) OutRate() int {
	return s.outRate
}

// Close releases underlying resampler.
func (s *StreamResampler) Close() {
	if s == nil {
		return
	}
	if s.resampler != nil {
		s.resampler.Close()
		s.resampler = nil
	}
	s.outBuf = nil
	s.carry = nil
}

// Write appends raw PCM16 bytes. A trailing odd byte is held until the next
// call.
func (s *StreamResampler) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	data := p
	if len(s.carry) > 0 {
		data = append(s.carry, p...)
		s.carry = nil
	}
	if len(data)%2 == 1 {
		s.carry = append(s.carry[:0], data[len(data)-1])
		data = data[:len(data)-1]
	}
	pcm := AcquireInt16(len(data) / 2)
	pcm = BytesToInt16SliceInto(pcm, data)
	err := s.AppendPCM(pcm)
	ReleaseInt16(pcm)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// AppendPCM appends PCM16 samples for resampling.
func (s *StreamResampler) AppendPCM(pcm []int16) error {
	if s == nil || len(pcm) == 0 {
		return nil
	}
	tmp := AcquireFloat32(len(pcm))
	tmp = Int16SliceToFloat32Into(tmp, pcm)
	defer ReleaseFloat32(tmp)
	if s.resampler == nil {
		s.outBuf = append(s.outBuf, tmp...)
		return nil
	}
	out, err := s.resampler.Process(tmp)
	if err != nil {
		return err
	}
	s.outBuf = append(s.outBuf, out...)
	return nil
}

// Flush flushes any remaining buffered samples.
func (s *StreamResampler) Flush() error {
	if s == nil || s.resampler == nil {
		return nil
	}
	out, err := s.resampler.Flush()
	if err != nil {
		return err
	}
	s.outBuf = append(s.outBuf, out...)
	return nil
}

// Buffered returns the number of output samples waiting to be read.
func (s *StreamResampler) Buffered() int {
	return len(s.outBuf)
}

// ReadFrame returns frameSize output samples as PCM16 bytes if available.
func (s *StreamResampler) ReadFrame(frameSize int) ([]byte, bool) {
	if s == nil || frameSize <= 0 || len(s.outBuf) < frameSize {
		return nil, false
	}
	return s.take(frameSize), true
}

// ReadRemainder returns whatever output is left, unpadded.
func (s *StreamResampler) ReadRemainder() []byte {
	if s == nil || len(s.outBuf) == 0 {
		return nil
	}
	return s.take(len(s.outBuf))
}

func (s *StreamResampler) take(n int) []byte {
	frame := AcquireInt16(n)
	frame = Float32SliceToInt16SliceInto(frame, s.outBuf[:n])
	s.outBuf = s.outBuf[n:]
	if len(s.outBuf) == 0 {
		s.outBuf = s.outBuf[:0:0]
	}
	out := Int16SliceToBytesInto(nil, frame)
	ReleaseInt16(frame)
	return out
}
