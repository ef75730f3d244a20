package audio

import "sync"

// frameBuffer is a reusable fixed-size float64 buffer sized for one time
// window (WindowSize samples).
type frameBuffer struct {
	Data []float64
	pool *framePool
}

// Reset zeroes the buffer so a released frame never leaks samples from the
// note it was captured during into the next user of the pool.
func (fb *frameBuffer) Reset() {
	for i := range fb.Data {
		fb.Data[i] = 0
	}
}

// Release returns the buffer to its pool for reuse.
func (fb *frameBuffer) Release() {
	if fb.pool != nil {
		fb.pool.Put(fb)
	}
}

// framePool manages reusable WindowSize float64 buffers. FrontEnd's
// computeSpectrum checks one out and releases it on every spectrum
// computation; the complex FFT input buffer there is allocated per call.
type framePool struct {
	pool *sync.Pool
	size int
}

// newFramePool builds a framePool whose buffers are exactly size samples.
func newFramePool(size int) *framePool {
	fp := &framePool{size: size}
	fp.pool = &sync.Pool{
		New: func() interface{} {
			return &frameBuffer{Data: make([]float64, size)}
		},
	}
	return fp
}

// Get retrieves a zeroed buffer of the pool's configured size.
func (fp *framePool) Get() *frameBuffer {
	fb := fp.pool.Get().(*frameBuffer)
	fb.pool = fp
	return fb
}

// Put returns a buffer to the pool after clearing it.
func (fp *framePool) Put(fb *frameBuffer) {
	if fb == nil || len(fb.Data) != fp.size {
		return
	}
	fb.Reset()
	fp.pool.Put(fb)
}
