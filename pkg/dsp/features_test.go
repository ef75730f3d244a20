package dsp

import "testing"

func TestZeroCrossingRateSilence(t *testing.T) {
	x := make([]float64, 4096)
	if zcr := ZeroCrossingRate(x); zcr != 0 {
		t.Errorf("expected 0 ZCR for silence, got %f", zcr)
	}
}

func TestZeroCrossingRateAlternating(t *testing.T) {
	x := make([]float64, 2048)
	for i := range x {
		if i%2 == 0 {
			x[i] = 1
		} else {
			x[i] = -1
		}
	}
	zcr := ZeroCrossingRate(x)
	if zcr < 0.9 {
		t.Errorf("expected near-1.0 ZCR for strict alternation, got %f", zcr)
	}
}

func TestSpectralFlatnessEmptyBandIsNoise(t *testing.T) {
	// All power far outside the lyre band.
	spectrum := make([]float64, 100)
	for i := range spectrum {
		spectrum[i] = -100
	}
	// 100 bins at 1 Hz/bin end below the lyre band [165,1100].
	flat := SpectralFlatness(spectrum, 1.0)
	if flat != 1.0 {
		t.Errorf("expected 1.0 flatness for empty in-band power, got %f", flat)
	}
}

func TestSpectralFlatnessTonalIsLow(t *testing.T) {
	// A single strong in-band bin amid a low noise floor: very peaky -> low
	// flatness (the one spike raises the arithmetic mean far more than the
	// geometric mean, driving flatness toward 0, the tonal extreme).
	binWidth := 1000.0 / 4096.0 // ~0.244 Hz/bin, covers the lyre band densely
	spectrum := make([]float64, 4096)
	for i := range spectrum {
		spectrum[i] = -80
	}
	peakBin := int(440.0 / binWidth)
	spectrum[peakBin] = 0

	flat := SpectralFlatness(spectrum, binWidth)
	if flat > 0.3 {
		t.Errorf("expected low flatness for a single dominant tone, got %f", flat)
	}
}

func TestHarmonicPresenceDetectsSecondHarmonic(t *testing.T) {
	binWidth := 1.0
	spectrum := make([]float64, 2048)
	for i := range spectrum {
		spectrum[i] = -100
	}
	f := 220.0
	spectrum[int(f)] = 0
	spectrum[int(2*f)] = -5 // within 25dB of fundamental

	if !HarmonicPresence(spectrum, binWidth, f) {
		t.Error("expected harmonic presence to be detected")
	}
}

func TestHarmonicPresenceAbsent(t *testing.T) {
	binWidth := 1.0
	spectrum := make([]float64, 2048)
	for i := range spectrum {
		spectrum[i] = -100
	}
	f := 220.0
	spectrum[int(f)] = 0
	// harmonics left at the -100 noise floor: -100 - 0 = -100 dB below
	// fundamental, far beyond the 25dB window.

	if HarmonicPresence(spectrum, binWidth, f) {
		t.Error("expected no harmonic presence")
	}
}
