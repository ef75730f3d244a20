package audio

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// LevelData is a point-in-time loudness measurement, pushed to the web host
// for the input-level meter shown alongside the tutor.
type LevelData struct {
	Timestamp int64   `json:"timestamp"`
	RMSLevel  float32 `json:"rms"`  // dBFS
	PeakLevel float32 `json:"peak"` // dBFS
	Clipping  bool    `json:"clipping"`
}

// LevelMonitor samples a FrontEnd's time window at a fixed rate and derives
// dBFS level data for display, independent of the pitch-detection path
// (which reads the same window directly). It holds no DSP state of its
// own; the FrontEnd already owns filtering, gain, and the FFT.
type LevelMonitor struct {
	front *FrontEnd

	mu           sync.RWMutex
	currentRMS   float32
	currentPeak  float32
	peakHold     float32
	peakHoldTime time.Time
	clipping     bool

	sampleCount int64
	clipCount   int64

	running int32
	stopCh  chan struct{}
}

// NewLevelMonitor builds a LevelMonitor reading from front.
func NewLevelMonitor(front *FrontEnd) *LevelMonitor {
	return &LevelMonitor{front: front}
}

// Start begins polling the front-end's time window at updateRate until
// Stop is called. Idempotent.
func (m *LevelMonitor) Start(updateRate time.Duration) {
	if !atomic.CompareAndSwapInt32(&m.running, 0, 1) {
		return
	}
	m.stopCh = make(chan struct{})
	go m.poll(updateRate)
}

// Stop halts polling. Idempotent.
func (m *LevelMonitor) Stop() {
	if !atomic.CompareAndSwapInt32(&m.running, 1, 0) {
		return
	}
	close(m.stopCh)
}

func (m *LevelMonitor) poll(updateRate time.Duration) {
	ticker := time.NewTicker(updateRate)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			if !m.front.IsRunning() {
				continue
			}
			m.sample(m.front.ReadTimeWindow())
		}
	}
}

func (m *LevelMonitor) sample(window []float64) {
	if len(window) == 0 {
		return
	}

	var sumSquares float64
	var peak float64
	clipping := false

	for _, s := range window {
		abs := math.Abs(s)
		if abs > peak {
			peak = abs
		}
		if abs >= 0.98 {
			clipping = true
			atomic.AddInt64(&m.clipCount, 1)
		}
		sumSquares += s * s
	}
	atomic.AddInt64(&m.sampleCount, int64(len(window)))

	rms := math.Sqrt(sumSquares / float64(len(window)))

	m.mu.Lock()
	defer m.mu.Unlock()

	if rms > 0 {
		m.currentRMS = float32(20.0 * math.Log10(rms))
	} else {
		m.currentRMS = -100.0
	}

	if peak > 0 {
		peakDB := float32(20.0 * math.Log10(peak))
		m.currentPeak = peakDB
		now := time.Now()
		if peakDB > m.peakHold || now.Sub(m.peakHoldTime) > 2*time.Second {
			m.peakHold = peakDB
			m.peakHoldTime = now
		}
	} else {
		m.currentPeak = -100.0
	}
	m.clipping = clipping
}

// Current returns the latest level measurement.
func (m *LevelMonitor) Current() LevelData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return LevelData{
		Timestamp: time.Now().UnixMilli(),
		RMSLevel:  m.currentRMS,
		PeakLevel: m.currentPeak,
		Clipping:  m.clipping,
	}
}

// ClipRatePercent returns the percentage (0-100) of samples seen so far that
// clipped.
func (m *LevelMonitor) ClipRatePercent() float64 {
	total := atomic.LoadInt64(&m.sampleCount)
	if total == 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&m.clipCount)) / float64(total) * 100.0
}
