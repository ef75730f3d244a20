package audio

import (
	"testing"
	"time"
)

func TestLevelMonitorReportsZeroValueBeforeCapture(t *testing.T) {
	fe := NewFrontEnd(Config{SampleRate: 48000})
	lm := NewLevelMonitor(fe)

	level := lm.Current()
	if level.RMSLevel != 0 {
		t.Errorf("expected zero-value RMS before any sample, got %f", level.RMSLevel)
	}
}

func TestLevelMonitorStartStopIdempotent(t *testing.T) {
	fe := NewFrontEnd(Config{SampleRate: 48000})
	if err := fe.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer fe.Stop()

	lm := NewLevelMonitor(fe)
	lm.Start(10 * time.Millisecond)
	lm.Start(10 * time.Millisecond) // no-op, must not panic or double-start

	time.Sleep(50 * time.Millisecond)
	lm.Stop()
	lm.Stop() // idempotent

	if lm.ClipRatePercent() < 0 {
		t.Error("clip rate should never be negative")
	}
}
