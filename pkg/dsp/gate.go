package dsp

import "github.com/lyrehero/lyrehero-engine/pkg/notetable"

// Thresholds bundles the tunable gate parameters read from EngineConfig.
type Thresholds struct {
	RMSThreshold     float64
	ClarityThreshold float64
}

// RawFrame is the per-frame inputs the gate fuses into a classification
// decision.
type RawFrame struct {
	Frequency        float64
	Clarity          float64
	RMS              float64
	ZCR              float64
	SpectralFlatness float64
	HarmonicPresent  bool
}

// Gate reports whether a frame passes every corroborating check: effective
// RMS gate, clarity, ZCR ceiling, lyre-band membership, and the
// flatness-or-harmonic disjunction.
func Gate(frame RawFrame, effectiveThreshold, clarityThreshold float64) bool {
	if frame.RMS <= effectiveThreshold {
		return false
	}
	if frame.Clarity <= clarityThreshold {
		return false
	}
	if frame.ZCR > 0.3 {
		return false
	}
	if frame.Frequency < FMinLyre || frame.Frequency > FMaxLyre {
		return false
	}
	if !(frame.SpectralFlatness < 0.3 || frame.HarmonicPresent) {
		return false
	}
	return true
}

// Classify runs the gate and, if it passes, maps the frequency to the
// nearest lyre note within tolerance. It returns "" when the frame is
// gated out or the nearest note exceeds CentsTolerance.
func Classify(frame RawFrame, effectiveThreshold, clarityThreshold float64) string {
	if !Gate(frame, effectiveThreshold, clarityThreshold) {
		return ""
	}
	note, ok := notetable.ClassifyLyre(frame.Frequency)
	if !ok {
		return ""
	}
	return note
}
