// Package dsp implements the pitch-detection and noise-rejection pipeline:
// an NSDF fundamental-frequency estimator, a per-frame feature cascade, an
// adaptive noise floor, and the gate/classifier/temporal-smoother chain
// that turns a raw estimate into a stable lyre note.
package dsp

import "github.com/lyrehero/lyrehero-engine/pkg/notetable"

// Frequency bounds the pitch estimator searches within.
const (
	FMin = 100.0
	FMax = 1200.0
)

// PeakThreshold is the minimum NSDF value a local maximum must clear to be
// considered a candidate period.
const PeakThreshold = 0.2

// PitchEstimate is the result of one NSDF analysis pass.
type PitchEstimate struct {
	Frequency float64 // Hz, 0 if no usable peak was found
	Clarity   float64 // refined NSDF peak value, clamped to [0,1]
}

// nsdfPeak is a local maximum of the NSDF curve together with its
// parabola-refined period and value.
type nsdfPeak struct {
	period float64
	value  float64
}

// EstimatePitch runs normalized-square-difference autocorrelation over the
// time-domain window x (sample rate sr) and returns the fundamental
// frequency estimate with a clarity score, computed as follows:
// restrict the search to [minTau, maxTau], cap the analysis/compare
// lengths, collect parabola-refined peaks above PeakThreshold, and apply
// the octave-safety rule (prefer the lowest-period peak within 80% of the
// strongest peak).
func EstimatePitch(x []float64, sr float64) PitchEstimate {
	n := len(x)
	if n == 0 || sr <= 0 {
		return PitchEstimate{}
	}

	minTau := int(sr / FMax)
	if minTau < 1 {
		minTau = 1
	}
	maxTau := int(sr / FMin)

	analysisLen := n
	if analysisLen > 2048 {
		analysisLen = 2048
	}

	if maxTau >= analysisLen {
		maxTau = analysisLen - 1
	}
	if maxTau <= minTau {
		return PitchEstimate{}
	}

	nsdf := make([]float64, maxTau+1)
	for tau := minTau; tau <= maxTau; tau++ {
		compareLen := analysisLen - tau
		if compareLen > 512 {
			compareLen = 512
		}
		if compareLen <= 0 {
			nsdf[tau] = 0
			continue
		}

		var cross, energy float64
		for i := 0; i < compareLen; i++ {
			a := x[i]
			b := x[i+tau]
			cross += a * b
			energy += a*a + b*b
		}

		if energy <= 1e-7 {
			nsdf[tau] = 0
			continue
		}
		nsdf[tau] = 2 * cross / energy
	}

	peaks := findRefinedPeaks(nsdf, minTau, maxTau)
	if len(peaks) == 0 {
		return PitchEstimate{}
	}

	maxValue := peaks[0].value
	for _, p := range peaks {
		if p.value > maxValue {
			maxValue = p.value
		}
	}

	chosen := peaks[0]
	for _, p := range peaks {
		if p.value >= 0.8*maxValue {
			chosen = p
			break
		}
	}

	freq := sr / chosen.period
	if freq < FMin {
		freq = FMin
	} else if freq > FMax {
		freq = FMax
	}

	clarity := chosen.value
	if clarity < 0 {
		clarity = 0
	} else if clarity > 1 {
		clarity = 1
	}

	return PitchEstimate{Frequency: freq, Clarity: clarity}
}

// findRefinedPeaks walks the NSDF curve in ascending tau order, collecting
// local maxima above PeakThreshold and parabola-interpolating each one.
// Preserving ascending-tau order here is load-bearing: the octave-safety
// rule in EstimatePitch depends on iterating from the lowest period up.
func findRefinedPeaks(nsdf []float64, minTau, maxTau int) []nsdfPeak {
	var peaks []nsdfPeak

	for tau := minTau + 1; tau < maxTau; tau++ {
		v := nsdf[tau]
		if v <= PeakThreshold {
			continue
		}
		if v <= nsdf[tau-1] || v <= nsdf[tau+1] {
			continue
		}

		prev, cur, next := nsdf[tau-1], v, nsdf[tau+1]
		denom := prev - 2*cur + next

		var offset, refinedValue float64
		if denom != 0 {
			offset = 0.5 * (prev - next) / denom
			refinedValue = cur - 0.25*(prev-next)*offset
		} else {
			refinedValue = cur
		}

		peaks = append(peaks, nsdfPeak{
			period: float64(tau) + offset,
			value:  refinedValue,
		})
	}

	return peaks
}

// NearestLyreNote is a thin convenience wrapper kept next to the estimator
// so callers that only need "what string is this" don't have to import
// notetable directly.
func NearestLyreNote(freq float64) (string, bool) {
	return notetable.ClassifyLyre(freq)
}
