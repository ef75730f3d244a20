package calibration

import (
	"errors"

	"github.com/lyrehero/lyrehero-engine/pkg/config"
)

// ErrNoNote is the sentinel for a note calibration phase that ended
// without a stable, sufficiently clear note being observed. Non-fatal per
// the engine's error handling design: the caller surfaces a message and
// leaves thresholds unchanged.
var ErrNoNote = errors.New("calibration: no note detected")

// Phase identifies which of the two wizard phases is in progress.
type Phase string

const (
	PhaseNoise Phase = "noise"
	PhaseNote  Phase = "note"
)

const (
	noiseRMSFloor      = 3e-4
	noiseRMSMultiplier = 2.5

	noteRMSThreshold     = 1e-4
	noteClarityThreshold = 5e-3

	clarityFloor   = 5e-3
	clarityCeiling = 0.3
	clarityScale   = 0.5

	minClarityForAcceptance = 0.01
)

// NoiseCalibration accumulates instantaneous RMS samples while the phase
// runs.
type NoiseCalibration struct {
	sum   float64
	count int
}

// NewNoiseCalibration starts a fresh noise-calibration accumulator.
func NewNoiseCalibration() *NoiseCalibration {
	return &NoiseCalibration{}
}

// Sample records one frame's RMS reading.
func (n *NoiseCalibration) Sample(rms float64) {
	n.sum += rms
	n.count++
}

// Finish computes the new RMS threshold from the accumulated samples:
// max(3e-4, mean_rms * 2.5). If no samples were collected, it falls back
// to the documented floor.
func (n *NoiseCalibration) Finish() float64 {
	if n.count == 0 {
		return noiseRMSFloor
	}
	mean := n.sum / float64(n.count)
	threshold := mean * noiseRMSMultiplier
	if threshold < noiseRMSFloor {
		return noiseRMSFloor
	}
	return threshold
}

// NoteCalibration tracks the clearest stable note observed during the
// note-calibration phase, under the temporarily relaxed thresholds
// (rmsThreshold = 1e-4, clarityThreshold = 5e-3).
type NoteCalibration struct {
	bestClarity float64
	sawNote     bool
}

// NewNoteCalibration starts a fresh note-calibration tracker.
func NewNoteCalibration() *NoteCalibration {
	return &NoteCalibration{}
}

// RelaxedThresholds returns the thresholds the engine should gate with
// while this phase is active.
func RelaxedThresholds() (rmsThreshold, clarityThreshold float64) {
	return noteRMSThreshold, noteClarityThreshold
}

// Sample records one frame's stable-note clarity, if a note was detected.
func (n *NoteCalibration) Sample(stableNote string, clarity float64) {
	if stableNote == "" {
		return
	}
	n.sawNote = true
	if clarity > n.bestClarity {
		n.bestClarity = clarity
	}
}

// Finish computes the new clarity threshold from the best observed
// clarity: clamp(0.5*clarity, 5e-3, 0.3). Returns ErrNoNote if no stable
// note with clarity > 0.01 was ever observed.
func (n *NoteCalibration) Finish() (float64, error) {
	if !n.sawNote || n.bestClarity <= minClarityForAcceptance {
		return 0, ErrNoNote
	}

	threshold := n.bestClarity * clarityScale
	if threshold < clarityFloor {
		threshold = clarityFloor
	}
	if threshold > clarityCeiling {
		threshold = clarityCeiling
	}
	return threshold, nil
}

// Apply writes a computed threshold back into the live engine config. The
// noise phase sets RMSThreshold; the note phase sets ClarityThreshold.
// Restoring the thresholds on wizard exit is just calling Apply with the
// phase's own result, or leaving cfg untouched on ErrNoNote.
func Apply(cfg *config.Config, phase Phase, value float64) {
	switch phase {
	case PhaseNoise:
		cfg.Engine.RMSThreshold = value
	case PhaseNote:
		cfg.Engine.ClarityThreshold = value
	}
}
