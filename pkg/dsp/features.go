package dsp

import "math"

// Lyre band used by the spectral-flatness and harmonic-presence features.
const (
	FMinLyre = 165.0
	FMaxLyre = 1100.0
)

// Features holds the per-frame corroborating signals the gate fuses with
// the raw pitch estimate before accepting a note.
type Features struct {
	RMS              float64
	ZCR              float64
	SpectralFlatness float64
	HarmonicPresent  bool
}

// RMS computes the root-mean-square level of the full window.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

// ZeroCrossingRate counts sign changes over the first 2048 samples of x
// (or all of x if shorter) and divides by the scanned length.
func ZeroCrossingRate(x []float64) float64 {
	n := len(x)
	if n > 2048 {
		n = 2048
	}
	if n < 2 {
		return 0
	}

	crossings := 0
	for i := 1; i < n; i++ {
		if (x[i-1] >= 0) != (x[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(n)
}

// SpectralFlatness computes the Wiener entropy (geometric mean / arithmetic
// mean of linear power) over the spectrum bins that fall inside
// [FMinLyre, FMaxLyre], given spectrumDB (magnitude spectrum in dB) and
// binWidth in Hz. Returns 1.0 (treated as noise) when the in-band power
// list is empty or its arithmetic mean is non-positive.
func SpectralFlatness(spectrumDB []float64, binWidth float64) float64 {
	if binWidth <= 0 {
		return 1.0
	}

	var logSum, sum float64
	count := 0

	for i, db := range spectrumDB {
		freq := float64(i) * binWidth
		if freq < FMinLyre || freq > FMaxLyre {
			continue
		}
		power := math.Pow(10, db/10.0)
		sum += power
		logSum += math.Log(power + 1e-10)
		count++
	}

	if count == 0 {
		return 1.0
	}

	arithMean := sum / float64(count)
	if arithMean <= 0 {
		return 1.0
	}

	geoMean := math.Exp(logSum / float64(count))
	flatness := geoMean / arithMean

	if flatness < 0 {
		return 0
	}
	if flatness > 1 {
		return 1
	}
	return flatness
}

// HarmonicPresence checks the 2nd and 3rd harmonics of fundamental f
// against the magnitude spectrum (dB) and reports true if at least one of
// them peaks within 25 dB of the fundamental's own magnitude.
func HarmonicPresence(spectrumDB []float64, binWidth, f float64) bool {
	if binWidth <= 0 || f <= 0 || len(spectrumDB) == 0 {
		return false
	}

	fundamentalBin := clampBin(int(math.Round(f/binWidth)), len(spectrumDB))
	fundamentalMag := spectrumDB[fundamentalBin]

	present := 0
	for _, k := range []int{2, 3} {
		harmonicFreq := float64(k) * f
		centerBin := int(math.Round(harmonicFreq / binWidth))

		searchWidth := int(math.Round(harmonicFreq * 0.08 / binWidth))
		if searchWidth < 1 {
			searchWidth = 1
		}

		peakMag := math.Inf(-1)
		for b := centerBin - searchWidth; b <= centerBin+searchWidth; b++ {
			if b < 0 || b >= len(spectrumDB) {
				continue
			}
			if spectrumDB[b] > peakMag {
				peakMag = spectrumDB[b]
			}
		}

		if math.IsInf(peakMag, -1) {
			continue
		}
		if fundamentalMag-peakMag <= 25 {
			present++
		}
	}

	return present >= 1
}

func clampBin(b, length int) int {
	if b < 0 {
		return 0
	}
	if b >= length {
		return length - 1
	}
	return b
}

// Extract computes the full per-frame feature set for a time-domain window
// and its companion magnitude spectrum, given the estimated fundamental
// (0 if none was found).
func Extract(window []float64, spectrumDB []float64, binWidth, fundamental float64) Features {
	f := Features{
		RMS: RMS(window),
		ZCR: ZeroCrossingRate(window),
	}
	f.SpectralFlatness = SpectralFlatness(spectrumDB, binWidth)
	if fundamental > 0 {
		f.HarmonicPresent = HarmonicPresence(spectrumDB, binWidth, fundamental)
	}
	return f
}
