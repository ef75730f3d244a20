package main

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// writeTestWav builds a minimal mono 16-bit PCM WAV file from the given
// samples (already in [-1,1]) at sampleRate.
func writeTestWav(t *testing.T, samples []float64, sampleRate int) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.wav")

	dataSize := len(samples) * 2
	buf := make([]byte, 0, 44+dataSize)

	buf = append(buf, []byte("RIFF")...)
	buf = appendUint32(buf, uint32(36+dataSize))
	buf = append(buf, []byte("WAVE")...)

	buf = append(buf, []byte("fmt ")...)
	buf = appendUint32(buf, 16)
	buf = appendUint16(buf, 1) // PCM
	buf = appendUint16(buf, 1) // mono
	buf = appendUint32(buf, uint32(sampleRate))
	byteRate := sampleRate * 2
	buf = appendUint32(buf, uint32(byteRate))
	buf = appendUint16(buf, 2)  // block align
	buf = appendUint16(buf, 16) // bits per sample

	buf = append(buf, []byte("data")...)
	buf = appendUint32(buf, uint32(dataSize))
	for _, s := range samples {
		v := int16(s * 32767)
		buf = appendUint16(buf, uint16(v))
	}

	if err := os.WriteFile(path, buf, 0644); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path
}

func appendUint32(buf []byte, v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return append(buf, b...)
}

func appendUint16(buf []byte, v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return append(buf, b...)
}

func TestReadWavPCM16RoundTrip(t *testing.T) {
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * float64(i) / 20)
	}
	path := writeTestWav(t, samples, 48000)

	got, sampleRate, err := readWavPCM16(path)
	if err != nil {
		t.Fatalf("readWavPCM16: %v", err)
	}
	if sampleRate != 48000 {
		t.Errorf("expected sample rate 48000, got %d", sampleRate)
	}
	if len(got) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(got))
	}
	for i := range samples {
		if math.Abs(got[i]-samples[i]) > 1e-3 {
			t.Errorf("sample %d: expected %.4f, got %.4f", i, samples[i], got[i])
		}
	}
}

func TestReadWavPCM16RejectsNonRiff(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bogus.wav")
	if err := os.WriteFile(path, []byte("not a wav file at all"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, _, err := readWavPCM16(path); err == nil {
		t.Error("expected error for non-RIFF file")
	}
}

func TestReadWavPCM16RejectsMissingFile(t *testing.T) {
	if _, _, err := readWavPCM16("/nonexistent/path.wav"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWavSourceDeliversBlocks(t *testing.T) {
	samples := make([]float64, 2048)
	for i := range samples {
		samples[i] = 0.5
	}
	src := newWavSource(samples, 48000)

	ch, err := src.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Close()

	block := <-ch
	if len(block) == 0 {
		t.Error("expected a non-empty first block")
	}
	for _, s := range block {
		if s != 0.5 {
			t.Errorf("expected sample 0.5, got %f", s)
		}
	}
}
