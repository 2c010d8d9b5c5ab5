package audio

import (
	"errors"
	"sync"

	resampler "github.com/godeps/go-audio-soxr"
)

// maxIdleEngines bounds idle engines per rate pair. The recognizer reopens
// its stream every few minutes at the same rates, so one spare is reused.
const maxIdleEngines = 2

type rateKey struct {
	in  int
	out int
}

// enginePool keeps reset engines around for the next stream at the same
// rate pair.
type enginePool[E any] struct {
	newEngine func(in, out int) (E, error)
	reset     func(E)
	maxIdle   int

	mu   sync.Mutex
	idle map[rateKey][]E
}

func (p *enginePool[E]) get(key rateKey) (E, error) {
	p.mu.Lock()
	if list := p.idle[key]; len(list) > 0 {
		e := list[len(list)-1]
		p.idle[key] = list[:len(list)-1]
		p.mu.Unlock()
		return e, nil
	}
	p.mu.Unlock()
	return p.newEngine(key.in, key.out)
}

// put resets e and keeps it unless the rate pair already has enough idle.
func (p *enginePool[E]) put(key rateKey, e E) {
	p.reset(e)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.idle == nil {
		p.idle = make(map[rateKey][]E)
	}
	if len(p.idle[key]) >= p.maxIdle {
		return
	}
	p.idle[key] = append(p.idle[key], e)
}

func (p *enginePool[E]) idleCount(key rateKey) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle[key])
}

var soxrEngines = &enginePool[*resampler.SimpleResamplerFloat32]{
	newEngine: func(in, out int) (*resampler.SimpleResamplerFloat32, error) {
		return resampler.NewEngineFloat32(float64(in), float64(out), resampler.QualityHigh)
	},
	reset:   func(r *resampler.SimpleResamplerFloat32) { r.Reset() },
	maxIdle: maxIdleEngines,
}

var errResamplerClosed = errors.New("resampler closed")

// soxrStreamResampler borrows one engine from soxrEngines until Close.
type soxrStreamResampler struct {
	key rateKey
	r   *resampler.SimpleResamplerFloat32
}

func newSoxrStreamResampler(inRate, outRate int) (*soxrStreamResampler, error) {
	key := rateKey{in: inRate, out: outRate}
	r, err := soxrEngines.get(key)
	if err != nil {
		return nil, err
	}
	return &soxrStreamResampler{key: key, r: r}, nil
}

func (s *soxrStreamResampler) Process(input []float32) ([]float32, error) {
	if s == nil || s.r == nil {
		return nil, errResamplerClosed
	}
	return s.r.Process(input)
}

func (s *soxrStreamResampler) Flush() ([]float32, error) {
	if s == nil || s.r == nil {
		return nil, errResamplerClosed
	}
	return s.r.Flush()
}

// Close returns the engine. Calling it twice is harmless.
func (s *soxrStreamResampler) Close() {
	if s == nil || s.r == nil {
		return
	}
	soxrEngines.put(s.key, s.r)
	s.r = nil
}
