package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"
)

// readWavPCM16 reads a little-endian 16-bit PCM WAV file and returns its
// samples as mono float64s in [-1, 1] plus its declared sample rate. Only
// the fields lyrehero-calibrate needs are parsed; nothing in the example
// corpus carries a WAV decoding library, so this is a deliberately minimal
// stdlib reader rather than a general-purpose one.
func readWavPCM16(path string) ([]float64, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read wav: %w", err)
	}
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("read wav: not a RIFF/WAVE file")
	}

	var sampleRate int
	var numChannels int
	var bitsPerSample int
	var samples []float64

	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8

		switch chunkID {
		case "fmt ":
			if body+16 > len(data) {
				return nil, 0, fmt.Errorf("read wav: truncated fmt chunk")
			}
			numChannels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))

		case "data":
			if bitsPerSample != 16 {
				return nil, 0, fmt.Errorf("read wav: only 16-bit PCM is supported, got %d-bit", bitsPerSample)
			}
			if numChannels == 0 {
				numChannels = 1
			}
			end := body + chunkSize
			if end > len(data) {
				end = len(data)
			}
			frameSize := 2 * numChannels
			for p := body; p+frameSize <= end; p += frameSize {
				var sum int32
				for ch := 0; ch < numChannels; ch++ {
					s := int16(binary.LittleEndian.Uint16(data[p+2*ch : p+2*ch+2]))
					sum += int32(s)
				}
				mono := float64(sum) / float64(numChannels) / 32768.0
				samples = append(samples, mono)
			}
		}

		pos = body + chunkSize
		if chunkSize%2 == 1 {
			pos++ // chunks are word-aligned
		}
	}

	if sampleRate == 0 {
		return nil, 0, fmt.Errorf("read wav: missing fmt chunk")
	}
	if samples == nil {
		return nil, 0, fmt.Errorf("read wav: missing data chunk")
	}

	return samples, sampleRate, nil
}

// wavSource replays a decoded WAV's samples through the front-end's Source
// interface at the same block cadence a live capture device would deliver
// them, so calibration sees the identical filter/FFT pipeline a real
// session would.
type wavSource struct {
	samples    []float64
	sampleRate int
	out        chan []float64
	stop       chan struct{}
}

func newWavSource(samples []float64, sampleRate int) *wavSource {
	return &wavSource{samples: samples, sampleRate: sampleRate}
}

func (w *wavSource) Start() (<-chan []float64, error) {
	w.out = make(chan []float64, 4)
	w.stop = make(chan struct{})
	go w.run()
	return w.out, nil
}

func (w *wavSource) run() {
	const blockSize = 512
	interval := time.Duration(blockSize*1000/w.sampleRate) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(w.out)

	pos := 0
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			if pos >= len(w.samples) {
				return
			}
			end := pos + blockSize
			if end > len(w.samples) {
				end = len(w.samples)
			}
			block := make([]float64, end-pos)
			copy(block, w.samples[pos:end])
			pos = end

			select {
			case w.out <- block:
			default:
			}
		}
	}
}

func (w *wavSource) Close() {
	if w.stop != nil {
		close(w.stop)
	}
}
