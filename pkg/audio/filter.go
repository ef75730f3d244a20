package audio

import "math"

// biquad is a single RBJ-cookbook second-order IIR section in Direct Form I.
// Both the front-end's high-pass and low-pass stages are instances of this
// same structure, parameterized only by their coefficients.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64

	x1, x2 float64 // input history
	y1, y2 float64 // output history
}

// newHighPass builds an RBJ high-pass biquad for the given cutoff (Hz), Q,
// and sample rate.
func newHighPass(cutoff, q, sampleRate float64) *biquad {
	w0 := 2 * math.Pi * cutoff / sampleRate
	cosW0 := math.Cos(w0)
	sinW0 := math.Sin(w0)
	alpha := sinW0 / (2 * q)

	b0 := (1 + cosW0) / 2
	b1 := -(1 + cosW0)
	b2 := (1 + cosW0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosW0
	a2 := 1 - alpha

	return &biquad{
		b0: b0 / a0, b1: b1 / a0, b2: b2 / a0,
		a1: a1 / a0, a2: a2 / a0,
	}
}

// newLowPass builds an RBJ low-pass biquad for the given cutoff (Hz), Q,
// and sample rate.
func newLowPass(cutoff, q, sampleRate float64) *biquad {
	w0 := 2 * math.Pi * cutoff / sampleRate
	cosW0 := math.Cos(w0)
	sinW0 := math.Sin(w0)
	alpha := sinW0 / (2 * q)

	b0 := (1 - cosW0) / 2
	b1 := 1 - cosW0
	b2 := (1 - cosW0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosW0
	a2 := 1 - alpha

	return &biquad{
		b0: b0 / a0, b1: b1 / a0, b2: b2 / a0,
		a1: a1 / a0, a2: a2 / a0,
	}
}

// process filters a single sample, updating internal history.
func (bq *biquad) process(x float64) float64 {
	y := bq.b0*x + bq.b1*bq.x1 + bq.b2*bq.x2 - bq.a1*bq.y1 - bq.a2*bq.y2
	bq.x2, bq.x1 = bq.x1, x
	bq.y2, bq.y1 = bq.y1, y
	return y
}

// processBlock filters every sample of x in place.
func (bq *biquad) processBlock(x []float64) {
	for i, v := range x {
		x[i] = bq.process(v)
	}
}

// reset clears the filter's history, used when a capture session restarts
// to avoid carrying a click from the previous session's tail.
func (bq *biquad) reset() {
	bq.x1, bq.x2, bq.y1, bq.y2 = 0, 0, 0, 0
}

// filterQ is the Q factor used for both front-end biquad stages.
const filterQ = 0.7
