package audio

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/mjibson/go-dsp/fft"

	"github.com/lyrehero/lyrehero-engine/pkg/verbose"
)

// ErrCaptureUnavailable is returned by Start when the capture device cannot
// be opened (permission denied or device error). After this the front-end
// is left in the stopped state.
var ErrCaptureUnavailable = errors.New("audio: capture unavailable")

const (
	// WindowSize is the fixed time-domain analysis window length.
	WindowSize = 8192
	// SpectrumSize is half of WindowSize: the magnitude spectrum length.
	SpectrumSize = WindowSize / 2

	highPassCutoff = 150.0
	lowPassCutoff  = 1200.0

	minGain = 0.5
	maxGain = 5.0
)

// Config configures a FrontEnd's capture session.
type Config struct {
	SampleRate int
	Gain       float64
	// Unavailable forces Start to fail with ErrCaptureUnavailable, used by
	// tests and by hosts without a usable capture device.
	Unavailable bool
}

// FrontEnd is the audio front-end: band-pass filtering, gain staging, and
// fixed-size time/spectrum snapshot reads.
// Safe for concurrent Start/Stop/SetGain and ReadTimeWindow/
// ReadMagnitudeSpectrum calls; the capture worker runs on its own goroutine.
type FrontEnd struct {
	mu sync.RWMutex

	sampleRate  int
	gain        float64
	unavailable bool
	running     bool
	stopCh      chan struct{}
	wg          sync.WaitGroup

	highPass *biquad
	lowPass  *biquad

	window   []float64 // latest WindowSize samples, oldest first
	spectrum []float64 // latest magnitude spectrum in dB
	hann     []float64

	pool   *framePool
	source Source
}

// Source abstracts the raw sample producer behind the front-end. Capture
// implementations push successive blocks of mono float64 samples in
// [-1, 1]; the default NewFrontEnd uses a quiet-noise mock source until a
// platform capture backend is wired in.
type Source interface {
	// Start begins producing samples on the returned channel. Stop (via
	// context-free Close) must make the worker exit promptly.
	Start() (<-chan []float64, error)
	Close()
}

// NewFrontEnd builds a FrontEnd with the given configuration, defaulting
// gain to 1.5 and sample rate to 48000 when unset.
func NewFrontEnd(cfg Config) *FrontEnd {
	sr := cfg.SampleRate
	if sr <= 0 {
		sr = 48000
	}
	gain := cfg.Gain
	if gain <= 0 {
		gain = 1.5
	}

	fe := &FrontEnd{
		sampleRate:  sr,
		gain:        clampGain(gain),
		unavailable: cfg.Unavailable,
		window:      make([]float64, WindowSize),
		spectrum:    make([]float64, SpectrumSize),
		hann:        makeHannWindow(WindowSize),
		pool:        newFramePool(WindowSize),
		highPass:    newHighPass(highPassCutoff, filterQ, float64(sr)),
		lowPass:     newLowPass(lowPassCutoff, filterQ, float64(sr)),
	}
	return fe
}

func clampGain(g float64) float64 {
	if g < minGain {
		return minGain
	}
	if g > maxGain {
		return maxGain
	}
	return g
}

func makeHannWindow(size int) []float64 {
	w := make([]float64, size)
	for i := 0; i < size; i++ {
		w[i] = 0.5 * (1.0 - math.Cos(2.0*math.Pi*float64(i)/float64(size-1)))
	}
	return w
}

// SetSource overrides the capture source Start will use instead of the
// default mock source. Must be called before Start; used by bench tooling
// to replay a recorded signal through the same filter/FFT pipeline a live
// capture would run through.
func (fe *FrontEnd) SetSource(s Source) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	fe.source = s
}

// Start opens the capture source and begins filling the time window.
// Idempotent: calling Start while already running is a no-op. Returns
// ErrCaptureUnavailable if the device cannot be opened.
func (fe *FrontEnd) Start() error {
	fe.mu.Lock()
	if fe.running {
		fe.mu.Unlock()
		return nil
	}
	if fe.unavailable {
		fe.mu.Unlock()
		return fmt.Errorf("start capture: %w", ErrCaptureUnavailable)
	}

	if fe.source == nil {
		fe.source = newMockSource(fe.sampleRate)
	}
	samples, err := fe.source.Start()
	if err != nil {
		fe.mu.Unlock()
		return fmt.Errorf("start capture: %w", ErrCaptureUnavailable)
	}

	fe.highPass.reset()
	fe.lowPass.reset()
	fe.stopCh = make(chan struct{})
	fe.running = true
	stopCh := fe.stopCh
	fe.mu.Unlock()

	fe.wg.Add(1)
	go fe.captureLoop(samples, stopCh)

	log.Printf("audio: capture started at %d Hz", fe.sampleRate)
	verbose.Printf("audio: source=%T gain=%.2f", fe.source, fe.Gain())
	return nil
}

// Stop tears down the capture worker and source. Idempotent.
func (fe *FrontEnd) Stop() {
	fe.mu.Lock()
	if !fe.running {
		fe.mu.Unlock()
		return
	}
	fe.running = false
	close(fe.stopCh)
	source := fe.source
	fe.mu.Unlock()

	fe.wg.Wait()
	if source != nil {
		source.Close()
	}
	log.Printf("audio: capture stopped")
	verbose.Printf("audio: capture loop exited, source closed")
}

// IsRunning reports whether a capture session is active.
func (fe *FrontEnd) IsRunning() bool {
	fe.mu.RLock()
	defer fe.mu.RUnlock()
	return fe.running
}

// SetGain clamps and applies a new gain stage multiplier.
func (fe *FrontEnd) SetGain(g float64) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	fe.gain = clampGain(g)
}

// Gain returns the current gain stage multiplier.
func (fe *FrontEnd) Gain() float64 {
	fe.mu.RLock()
	defer fe.mu.RUnlock()
	return fe.gain
}

// SampleRate returns the fixed sample rate for this capture session.
func (fe *FrontEnd) SampleRate() int {
	return fe.sampleRate
}

// ReadTimeWindow returns a copy of the latest WindowSize filtered, gained
// samples.
func (fe *FrontEnd) ReadTimeWindow() []float64 {
	fe.mu.RLock()
	defer fe.mu.RUnlock()
	out := make([]float64, WindowSize)
	copy(out, fe.window)
	return out
}

// ReadMagnitudeSpectrum returns a copy of the latest SpectrumSize magnitude
// spectrum in decibels, computed over a Hann-windowed copy of the time
// window.
func (fe *FrontEnd) ReadMagnitudeSpectrum() []float64 {
	fe.mu.RLock()
	defer fe.mu.RUnlock()
	out := make([]float64, SpectrumSize)
	copy(out, fe.spectrum)
	return out
}

// BinWidth returns the Hz-per-bin of ReadMagnitudeSpectrum's output.
func (fe *FrontEnd) BinWidth() float64 {
	return float64(fe.sampleRate) / float64(2*SpectrumSize)
}

func (fe *FrontEnd) captureLoop(samples <-chan []float64, stopCh chan struct{}) {
	defer fe.wg.Done()

	for {
		select {
		case <-stopCh:
			return
		case block, ok := <-samples:
			if !ok {
				return
			}
			fe.ingest(block)
		}
	}
}

func (fe *FrontEnd) ingest(block []float64) {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	gain := fe.gain
	for _, raw := range block {
		s := fe.highPass.process(raw)
		s = fe.lowPass.process(s)
		s *= gain

		fe.window = append(fe.window, s)
	}
	if len(fe.window) > WindowSize {
		fe.window = fe.window[len(fe.window)-WindowSize:]
	}

	if len(fe.window) == WindowSize {
		fe.computeSpectrum()
	}
}

func (fe *FrontEnd) computeSpectrum() {
	frame := fe.pool.Get()
	defer frame.Release()

	buf := make([]complex128, WindowSize)
	for i, s := range fe.window {
		buf[i] = complex(s*fe.hann[i], 0)
	}

	result := fft.FFT(buf)
	for i := 0; i < SpectrumSize; i++ {
		mag := math.Sqrt(real(result[i])*real(result[i]) + imag(result[i])*imag(result[i]))
		if mag > 0 {
			fe.spectrum[i] = 20.0 * math.Log10(mag)
		} else {
			fe.spectrum[i] = -100.0
		}
	}
}

// mockSource produces quiet uniform pseudo-random noise until a platform capture
// backend replaces it; it exists so the rest of the pipeline (and its
// tests) can run without a real microphone.
type mockSource struct {
	sampleRate int
	samples    chan []float64
	stop       chan struct{}
}

func newMockSource(sampleRate int) *mockSource {
	return &mockSource{sampleRate: sampleRate}
}

func (m *mockSource) Start() (<-chan []float64, error) {
	m.samples = make(chan []float64, 4)
	m.stop = make(chan struct{})
	go m.run()
	return m.samples, nil
}

func (m *mockSource) run() {
	const blockSize = 512
	interval := time.Duration(blockSize*1000/m.sampleRate) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(m.samples)

	seed := uint64(1)
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			block := make([]float64, blockSize)
			for i := range block {
				seed = seed*6364136223846793005 + 1442695040888963407
				n := float64(int32(seed>>32)) / float64(1<<31)
				block[i] = n * 1e-5
			}
			select {
			case m.samples <- block:
			default:
			}
		}
	}
}

func (m *mockSource) Close() {
	if m.stop != nil {
		close(m.stop)
	}
}
