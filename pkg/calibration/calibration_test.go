package calibration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyrehero/lyrehero-engine/pkg/config"
)

func TestNoiseCalibrationFinish(t *testing.T) {
	n := NewNoiseCalibration()
	for i := 0; i < 10; i++ {
		n.Sample(0.0002)
	}
	assert.InDelta(t, 0.0002*noiseRMSMultiplier, n.Finish(), 1e-15)
}

func TestNoiseCalibrationFloor(t *testing.T) {
	n := NewNoiseCalibration()
	n.Sample(1e-6) // extremely quiet room, 2.5x still below the floor
	assert.Equal(t, noiseRMSFloor, n.Finish())
}

func TestNoiseCalibrationNoSamples(t *testing.T) {
	n := NewNoiseCalibration()
	assert.Equal(t, noiseRMSFloor, n.Finish())
}

func TestNoteCalibrationFinish(t *testing.T) {
	n := NewNoteCalibration()
	n.Sample("", 0) // ignored, no note
	n.Sample("A4", 0.2)
	n.Sample("A4", 0.4) // best observed clarity
	n.Sample("A4", 0.1)

	got, err := n.Finish()
	require.NoError(t, err)
	assert.Equal(t, 0.2, got) // 0.5*0.4
}

func TestNoteCalibrationAboveFloorIsNotClamped(t *testing.T) {
	n := NewNoteCalibration()
	n.Sample("A4", 0.02) // 0.5*0.02=0.01, above the 5e-3 floor
	got, err := n.Finish()
	require.NoError(t, err)
	assert.Equal(t, 0.01, got)
}

func TestNoteCalibrationClampsToCeiling(t *testing.T) {
	n := NewNoteCalibration()
	n.Sample("A4", 0.9) // 0.5*0.9=0.45, above the 0.3 ceiling
	got, err := n.Finish()
	require.NoError(t, err)
	assert.Equal(t, clarityCeiling, got)
}

func TestNoteCalibrationNoNote(t *testing.T) {
	n := NewNoteCalibration()
	_, err := n.Finish()
	assert.ErrorIs(t, err, ErrNoNote)
}

func TestNoteCalibrationWeakClarityIsNoNote(t *testing.T) {
	n := NewNoteCalibration()
	n.Sample("A4", 0.005) // below the 0.01 acceptance floor
	_, err := n.Finish()
	assert.ErrorIs(t, err, ErrNoNote)
}

func TestApply(t *testing.T) {
	cfg := config.Default()
	Apply(cfg, PhaseNoise, 0.001)
	assert.Equal(t, 0.001, cfg.Engine.RMSThreshold)

	Apply(cfg, PhaseNote, 0.05)
	assert.Equal(t, 0.05, cfg.Engine.ClarityThreshold)
}

func TestRelaxedThresholds(t *testing.T) {
	rms, clarity := RelaxedThresholds()
	assert.Equal(t, noteRMSThreshold, rms)
	assert.Equal(t, noteClarityThreshold, clarity)
}
