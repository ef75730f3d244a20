package engine

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lyrehero/lyrehero-engine/pkg/config"
	"github.com/lyrehero/lyrehero-engine/pkg/protocol"
)

// newTestEngine builds an Engine against a temp song directory, temp
// sqlite path, and temp socket path, with a single valid song preloaded.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	dir, err := os.MkdirTemp("", "lyrehero-engine-test")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	songsDir := filepath.Join(dir, "songs")
	if err := os.Mkdir(songsDir, 0755); err != nil {
		t.Fatalf("mkdir songs: %v", err)
	}

	song := map[string]interface{}{
		"id":         "twinkle",
		"title":      "Twinkle Twinkle",
		"difficulty": "Easy",
		"notes": []map[string]string{
			{"note": "C4"},
			{"note": "C4"},
			{"note": "G4"},
		},
	}
	data, err := json.Marshal(song)
	if err != nil {
		t.Fatalf("marshal song: %v", err)
	}
	if err := os.WriteFile(filepath.Join(songsDir, "twinkle.json"), data, 0644); err != nil {
		t.Fatalf("write song: %v", err)
	}

	cfg := config.Default()
	cfg.Songs.Directory = songsDir
	cfg.Storage.DatabasePath = filepath.Join(dir, "lyrehero.db")

	e, err := New(cfg, filepath.Join(dir, "engine.sock"), filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Stop() })
	return e
}

func TestNewLoadsSongLibrary(t *testing.T) {
	e := newTestEngine(t)
	if len(e.songSummary) != 1 {
		t.Fatalf("expected 1 song, got %d", len(e.songSummary))
	}
	if _, ok := e.songs["twinkle"]; !ok {
		t.Error("expected twinkle song to be indexed by ID")
	}
}

func TestHandleSongs(t *testing.T) {
	e := newTestEngine(t)
	resp := e.handleCommand(&protocol.Command{Type: protocol.CmdSongs})
	if !resp.Success {
		t.Fatalf("SONGS failed: %s", resp.Error)
	}
	count, _ := resp.Data["count"].(int)
	if count != 1 {
		t.Errorf("expected count 1, got %v", resp.Data["count"])
	}
}

func TestHandleLoadUnknownSong(t *testing.T) {
	e := newTestEngine(t)
	resp := e.handleCommand(&protocol.Command{Type: protocol.CmdLoad, Args: map[string]interface{}{"song_id": "nope"}})
	if resp.Success {
		t.Error("expected failure loading unknown song")
	}
}

func TestHandleLoadStartsTutor(t *testing.T) {
	e := newTestEngine(t)
	resp := e.handleCommand(&protocol.Command{Type: protocol.CmdLoad, Args: map[string]interface{}{"song_id": "twinkle"}})
	if !resp.Success {
		t.Fatalf("LOAD failed: %s", resp.Error)
	}
	snap := e.tutor.Snapshot()
	if snap.State != "listening" {
		t.Errorf("expected listening state after load, got %s", snap.State)
	}
	if snap.TargetNote != "C4" {
		t.Errorf("expected target note C4, got %s", snap.TargetNote)
	}
	e.front.Stop()
}

func TestHandleStatusDoesNotPerturbTutor(t *testing.T) {
	e := newTestEngine(t)
	e.handleCommand(&protocol.Command{Type: protocol.CmdLoad, Args: map[string]interface{}{"song_id": "twinkle"}})

	// Simulate an in-progress hold, then confirm STATUS leaves it alone.
	e.tutor.Tick(time.Now(), "C4")
	before := e.tutor.Snapshot()

	e.handleCommand(&protocol.Command{Type: protocol.CmdStatus})

	after := e.tutor.Snapshot()
	if after.Progress == 0 && before.Progress != 0 {
		t.Error("STATUS reset in-progress hold state")
	}
	if after != before {
		t.Errorf("STATUS mutated tutor snapshot: before=%+v after=%+v", before, after)
	}
	e.front.Stop()
}

func TestHandleSetGain(t *testing.T) {
	e := newTestEngine(t)
	resp := e.handleCommand(&protocol.Command{Type: protocol.CmdSetGain, Args: map[string]interface{}{"gain": "2.0"}})
	if !resp.Success {
		t.Fatalf("SETGAIN failed: %s", resp.Error)
	}
	if e.front.Gain() != 2.0 {
		t.Errorf("expected gain 2.0, got %f", e.front.Gain())
	}
	if e.config.Engine.Gain != 2.0 {
		t.Errorf("expected config gain synced to 2.0, got %f", e.config.Engine.Gain)
	}
}

func TestHandleSetGainRejectsGarbage(t *testing.T) {
	e := newTestEngine(t)
	resp := e.handleCommand(&protocol.Command{Type: protocol.CmdSetGain, Args: map[string]interface{}{"gain": "not-a-number"}})
	if resp.Success {
		t.Error("expected failure for non-numeric gain")
	}
}

func TestHandlePing(t *testing.T) {
	e := newTestEngine(t)
	resp := e.handleCommand(&protocol.Command{Type: protocol.CmdPing})
	if !resp.Success {
		t.Fatalf("PING failed: %s", resp.Error)
	}
}

func TestHandleUnknownCommand(t *testing.T) {
	e := newTestEngine(t)
	resp := e.handleCommand(&protocol.Command{Type: "BOGUS"})
	if resp.Success {
		t.Error("expected failure for unknown command")
	}
}

func TestHandleConfigGetAndSet(t *testing.T) {
	e := newTestEngine(t)

	resp := e.handleCommand(&protocol.Command{Type: protocol.CmdConfig, Args: map[string]interface{}{"action": "get", "key": "hold_duration_ms"}})
	if !resp.Success {
		t.Fatalf("CONFIG get failed: %s", resp.Error)
	}

	resp = e.handleCommand(&protocol.Command{Type: protocol.CmdConfig, Args: map[string]interface{}{"action": "set", "key": "hold_duration_ms", "value": "250"}})
	if !resp.Success {
		t.Fatalf("CONFIG set failed: %s", resp.Error)
	}
	if e.config.Engine.HoldDurationMs != 250 {
		t.Errorf("expected hold_duration_ms 250, got %d", e.config.Engine.HoldDurationMs)
	}
	if e.tutor.HoldDurationMs() != 250 {
		t.Errorf("expected tutor hold duration synced to 250, got %d", e.tutor.HoldDurationMs())
	}
}

func TestHandleConfigUnknownKey(t *testing.T) {
	e := newTestEngine(t)
	resp := e.handleCommand(&protocol.Command{Type: protocol.CmdConfig, Args: map[string]interface{}{"action": "get", "key": "nonsense"}})
	if resp.Success {
		t.Error("expected failure for unknown config key")
	}
}

func TestCalibrateNoiseRoundTrip(t *testing.T) {
	e := newTestEngine(t)

	resp := e.handleCommand(&protocol.Command{Type: protocol.CmdCalibrate, Args: map[string]interface{}{"phase": "noise", "action": "start"}})
	if !resp.Success {
		t.Fatalf("CALIBRATE noise start failed: %s", resp.Error)
	}

	e.recordCalibrationSample(1e-3, "", 0)
	e.recordCalibrationSample(2e-3, "", 0)

	resp = e.handleCommand(&protocol.Command{Type: protocol.CmdCalibrate, Args: map[string]interface{}{"phase": "noise", "action": "stop"}})
	if !resp.Success {
		t.Fatalf("CALIBRATE noise stop failed: %s", resp.Error)
	}
	value, _ := resp.Data["value"].(float64)
	if value <= 0 {
		t.Errorf("expected positive computed threshold, got %f", value)
	}
	if e.config.Engine.RMSThreshold != value {
		t.Errorf("expected RMSThreshold applied to config, got %f want %f", e.config.Engine.RMSThreshold, value)
	}
}

func TestCalibrateNoteWithNoSamplesFails(t *testing.T) {
	e := newTestEngine(t)

	resp := e.handleCommand(&protocol.Command{Type: protocol.CmdCalibrate, Args: map[string]interface{}{"phase": "note", "action": "start"}})
	if !resp.Success {
		t.Fatalf("CALIBRATE note start failed: %s", resp.Error)
	}

	resp = e.handleCommand(&protocol.Command{Type: protocol.CmdCalibrate, Args: map[string]interface{}{"phase": "note", "action": "stop"}})
	if resp.Success {
		t.Error("expected failure stopping note calibration with no samples observed")
	}
}

func TestCalibrateStopWithoutStartFails(t *testing.T) {
	e := newTestEngine(t)
	resp := e.handleCommand(&protocol.Command{Type: protocol.CmdCalibrate, Args: map[string]interface{}{"phase": "noise", "action": "stop"}})
	if resp.Success {
		t.Error("expected failure stopping calibration that was never started")
	}
}

func TestCalibrateUnknownPhase(t *testing.T) {
	e := newTestEngine(t)
	resp := e.handleCommand(&protocol.Command{Type: protocol.CmdCalibrate, Args: map[string]interface{}{"phase": "bogus", "action": "start"}})
	if resp.Success {
		t.Error("expected failure for unknown calibration phase")
	}
}

func TestGateThresholdsUsesRelaxedDuringNoteCalibration(t *testing.T) {
	e := newTestEngine(t)

	rms, clarity := e.gateThresholds()
	if rms != e.config.Engine.RMSThreshold || clarity != e.config.Engine.ClarityThreshold {
		t.Errorf("expected configured thresholds when idle, got rms=%f clarity=%f", rms, clarity)
	}

	e.handleCommand(&protocol.Command{Type: protocol.CmdCalibrate, Args: map[string]interface{}{"phase": "note", "action": "start"}})
	rms, clarity = e.gateThresholds()
	wantRMS, wantClarity := 1e-4, 5e-3
	if rms != wantRMS || clarity != wantClarity {
		t.Errorf("expected relaxed thresholds during note calibration, got rms=%f clarity=%f", rms, clarity)
	}
}

func TestHandleStopReleasesCapture(t *testing.T) {
	e := newTestEngine(t)
	resp := e.handleCommand(&protocol.Command{Type: protocol.CmdLoad, Args: map[string]interface{}{"song_id": "twinkle"}})
	if !resp.Success {
		t.Fatalf("LOAD failed: %s", resp.Error)
	}
	if !e.front.IsRunning() {
		t.Fatal("expected front-end running after LOAD")
	}

	resp = e.handleCommand(&protocol.Command{Type: protocol.CmdStop})
	if !resp.Success {
		t.Fatalf("STOP failed: %s", resp.Error)
	}
	if e.front.IsRunning() {
		t.Error("expected front-end stopped after STOP")
	}

	// detectOnce must become a no-op once capture is released, not keep
	// polling a stopped mic.
	e.detectOnce()
	if snap := e.detectionSnapshot(); snap.Note != "" {
		t.Errorf("expected no detection after STOP, got %+v", snap)
	}

	// STOP then STOP is idempotent.
	resp = e.handleCommand(&protocol.Command{Type: protocol.CmdStop})
	if !resp.Success {
		t.Fatalf("second STOP failed: %s", resp.Error)
	}
	if e.front.IsRunning() {
		t.Error("expected front-end still stopped after second STOP")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !e.isRunning() {
		t.Error("expected engine running after Start")
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if e.isRunning() {
		t.Error("expected engine stopped after Stop")
	}
}

func TestDetectOnceSkipsWhenFrontEndNotRunning(t *testing.T) {
	e := newTestEngine(t)
	// front-end was never started; detectOnce must be a no-op, not a panic.
	e.detectOnce()
	snap := e.detectionSnapshot()
	if snap.Note != "" {
		t.Errorf("expected empty detection snapshot, got %+v", snap)
	}
}

func TestHandleConnectionRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	client, err := net.DialTimeout("unix", e.socketPath, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	if _, err := client.Write([]byte("PING\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	buf := make([]byte, 4096)
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var resp protocol.Response
	if err := json.Unmarshal(buf[:n-1], &resp); err != nil {
		t.Fatalf("unmarshal response %q: %v", buf[:n], err)
	}
	if !resp.Success {
		t.Errorf("expected successful PING response, got %+v", resp)
	}
}
