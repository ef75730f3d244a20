// Package engine wires the audio front-end, pitch-detection pipeline, and
// tutor state machine together behind a Unix-socket text protocol, the same
// daemon-behind-a-socket shape the JS8 core engine used for its TX/RX loop.
package engine

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/lyrehero/lyrehero-engine/pkg/audio"
	"github.com/lyrehero/lyrehero-engine/pkg/calibration"
	"github.com/lyrehero/lyrehero-engine/pkg/config"
	"github.com/lyrehero/lyrehero-engine/pkg/dsp"
	"github.com/lyrehero/lyrehero-engine/pkg/logging"
	"github.com/lyrehero/lyrehero-engine/pkg/protocol"
	"github.com/lyrehero/lyrehero-engine/pkg/song"
	"github.com/lyrehero/lyrehero-engine/pkg/storage"
	"github.com/lyrehero/lyrehero-engine/pkg/tutor"
	"github.com/lyrehero/lyrehero-engine/pkg/verbose"
)

// pollInterval is how often the detection loop reads a fresh window from
// the front-end, matching the display rate the tutor polls at.
const pollInterval = 50 * time.Millisecond

// levelUpdateRate is how often the input-level meter resamples the
// front-end's time window; faster than pollInterval since a meter reads
// as laggy at the detection loop's rate.
const levelUpdateRate = 30 * time.Millisecond

// Engine is the core pitch-tutor engine: it owns the audio front-end, the
// full detection pipeline (pitch estimator, feature extractor, gate,
// smoother, noise floor), the tutor state machine, and the Unix socket
// command server that exposes all of it to clients.
type Engine struct {
	config     *config.Config
	configPath string
	socketPath string

	listener  net.Listener
	running   bool
	mu        sync.RWMutex
	startTime time.Time

	front      *audio.FrontEnd
	levels     *audio.LevelMonitor
	noiseFloor *dsp.NoiseFloor
	smoother   *dsp.Smoother
	tutor      *tutor.Tutor

	store *storage.Store

	songs       map[string]*song.Song
	songSummary []song.SongSummary

	detMu         sync.RWMutex
	lastDetection protocol.DetectionFrame

	pollStop chan struct{}
	pollWg   sync.WaitGroup

	calMu       sync.Mutex
	calPhase    calibration.Phase
	calActive   bool
	calNoise    *calibration.NoiseCalibration
	calNote     *calibration.NoteCalibration
}

// New builds an Engine from a loaded config. It loads the song library from
// disk, opens the sqlite-backed store, and restores a persisted engine
// config if one was saved by a prior run.
func New(cfg *config.Config, socketPath, configPath string) (*Engine, error) {
	store, err := storage.NewStore(cfg.Storage.DatabasePath)
	if err != nil {
		logging.Warn(logging.ComponentEngine, "storage unavailable, continuing without persistence", map[string]interface{}{"error": err.Error()})
		store = nil
	}

	songs, loadErrs := song.LoadDirectory(cfg.Songs.Directory)
	for _, e := range loadErrs {
		logging.Warn(logging.ComponentEngine, "song library load error", map[string]interface{}{"error": e.Error()})
	}

	songsByID := make(map[string]*song.Song, len(songs))
	summaries := make([]song.SongSummary, 0, len(songs))
	for _, s := range songs {
		songsByID[s.ID] = s
		summaries = append(summaries, s.Summary())
	}
	if store != nil {
		if err := store.CacheSongs(songs); err != nil {
			logging.Warn(logging.ComponentEngine, "failed to cache song library", map[string]interface{}{"error": err.Error()})
		}
	}

	if store != nil {
		if saved, err := store.LoadEngineConfig(); err == nil {
			cfg.Engine.SampleRate = saved.SampleRate
			cfg.Engine.Gain = saved.Gain
			cfg.Engine.RMSThreshold = saved.RMSThreshold
			cfg.Engine.ClarityThreshold = saved.ClarityThreshold
			cfg.Engine.HoldDurationMs = saved.HoldDurationMs
			logging.Info(logging.ComponentEngine, "restored persisted engine config", nil)
		}
	}

	front := audio.NewFrontEnd(audio.Config{
		SampleRate: cfg.Engine.SampleRate,
		Gain:       cfg.Engine.Gain,
	})

	return &Engine{
		config:      cfg,
		configPath:  configPath,
		socketPath:  socketPath,
		front:       front,
		levels:      audio.NewLevelMonitor(front),
		noiseFloor:  dsp.NewNoiseFloor(),
		smoother:    dsp.NewSmoother(),
		tutor:       tutor.NewTutor(cfg.Engine.HoldDurationMs),
		store:       store,
		songs:       songsByID,
		songSummary: summaries,
	}, nil
}

// Start starts audio capture, the detection loop, and the Unix socket
// server.
func (e *Engine) Start() error {
	e.mu.Lock()
	e.running = true
	e.startTime = time.Now()
	e.mu.Unlock()

	if err := e.front.Start(); err != nil {
		logging.Error(logging.ComponentEngine, "audio capture unavailable", map[string]interface{}{"error": err.Error()})
		e.tutor.SetCaptureError()
	}

	os.Remove(e.socketPath)
	listener, err := net.Listen("unix", e.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create unix socket: %w", err)
	}
	e.listener = listener
	if err := os.Chmod(e.socketPath, 0660); err != nil {
		logging.Warn(logging.ComponentEngine, "failed to set socket permissions", map[string]interface{}{"error": err.Error()})
	}

	e.levels.Start(levelUpdateRate)

	e.pollStop = make(chan struct{})
	e.pollWg.Add(1)
	go e.detectLoop()

	go e.acceptConnections()

	logging.Info(logging.ComponentEngine, "listening", map[string]interface{}{"socket": e.socketPath})
	return nil
}

// Stop tears down the detection loop, audio capture, socket server, and
// storage, in that order.
func (e *Engine) Stop() error {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()

	if e.pollStop != nil {
		close(e.pollStop)
		e.pollWg.Wait()
	}

	e.levels.Stop()
	e.front.Stop()

	if e.listener != nil {
		if err := e.listener.Close(); err != nil {
			logging.Warn(logging.ComponentEngine, "error closing listener", map[string]interface{}{"error": err.Error()})
		}
	}

	if e.store != nil {
		if err := e.store.Close(); err != nil {
			logging.Warn(logging.ComponentEngine, "error closing store", map[string]interface{}{"error": err.Error()})
		}
	}

	logging.Info(logging.ComponentEngine, "stopped", nil)
	return nil
}

func (e *Engine) isRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// detectLoop is the single goroutine that owns the pitch estimator, feature
// extractor, gate, smoother, noise floor, and tutor tick: every component
// downstream of the front-end is driven from here, never from a
// command-handling goroutine, so none of it needs its own lock.
func (e *Engine) detectLoop() {
	defer e.pollWg.Done()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.pollStop:
			return
		case <-ticker.C:
			e.detectOnce()
		}
	}
}

func (e *Engine) detectOnce() {
	if !e.front.IsRunning() {
		return
	}

	window := e.front.ReadTimeWindow()
	spectrum := e.front.ReadMagnitudeSpectrum()
	binWidth := e.front.BinWidth()

	estimate := dsp.EstimatePitch(window, float64(e.front.SampleRate()))
	features := dsp.Extract(window, spectrum, binWidth, estimate.Frequency)
	e.noiseFloor.Update(features.RMS)

	rmsThreshold, clarityThreshold := e.gateThresholds()

	frame := dsp.RawFrame{
		Frequency:        estimate.Frequency,
		Clarity:          estimate.Clarity,
		RMS:              features.RMS,
		ZCR:              features.ZCR,
		SpectralFlatness: features.SpectralFlatness,
		HarmonicPresent:  features.HarmonicPresent,
	}
	effective := e.noiseFloor.EffectiveThreshold(rmsThreshold)
	rawNote := dsp.Classify(frame, effective, clarityThreshold)

	e.smoother.Push(rawNote, estimate.Frequency)
	stableNote := e.smoother.StableNote()
	stableFreq := e.smoother.StableFrequency()

	if stableNote != rawNote {
		verbose.Printf("detect: raw=%s stable=%s freq=%.2f clarity=%.4f rms=%.6f", rawNote, stableNote, estimate.Frequency, estimate.Clarity, features.RMS)
	}

	e.recordCalibrationSample(features.RMS, stableNote, estimate.Clarity)

	e.detMu.Lock()
	e.lastDetection = protocol.DetectionFrame{
		Note:      stableNote,
		Frequency: stableFreq,
		Clarity:   estimate.Clarity,
		Volume:    features.RMS,
	}
	e.detMu.Unlock()

	e.tutor.Tick(time.Now(), stableNote)
}

// gateThresholds returns the thresholds the classifier should gate with:
// the calibration wizard's relaxed thresholds while a note-calibration
// phase is active, otherwise the configured thresholds.
func (e *Engine) gateThresholds() (rms, clarity float64) {
	e.calMu.Lock()
	active, phase := e.calActive, e.calPhase
	e.calMu.Unlock()

	if active && phase == calibration.PhaseNote {
		return calibration.RelaxedThresholds()
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config.Engine.RMSThreshold, e.config.Engine.ClarityThreshold
}

func (e *Engine) recordCalibrationSample(rms float64, stableNote string, clarity float64) {
	e.calMu.Lock()
	defer e.calMu.Unlock()
	if !e.calActive {
		return
	}
	switch e.calPhase {
	case calibration.PhaseNoise:
		e.calNoise.Sample(rms)
	case calibration.PhaseNote:
		e.calNote.Sample(stableNote, clarity)
	}
}

func (e *Engine) detectionSnapshot() protocol.DetectionFrame {
	e.detMu.RLock()
	defer e.detMu.RUnlock()
	return e.lastDetection
}

// acceptConnections accepts and dispatches socket connections.
func (e *Engine) acceptConnections() {
	for e.isRunning() {
		conn, err := e.listener.Accept()
		if err != nil {
			if e.isRunning() {
				logging.Warn(logging.ComponentEngine, "socket accept error", map[string]interface{}{"error": err.Error()})
			}
			continue
		}
		go e.handleConnection(conn)
	}
}

func (e *Engine) handleConnection(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		cmd, err := protocol.ParseCommand(line)
		if err != nil {
			resp := protocol.NewErrorResponse(fmt.Sprintf("parse error: %v", err))
			conn.Write([]byte(resp.String() + "\n"))
			continue
		}

		resp := e.handleCommand(cmd)
		conn.Write([]byte(resp.String() + "\n"))

		if cmd.Type == protocol.CmdQuit {
			break
		}
	}
}

func (e *Engine) handleCommand(cmd *protocol.Command) *protocol.Response {
	switch cmd.Type {
	case protocol.CmdStatus:
		return e.handleStatus()
	case protocol.CmdStart:
		return e.handleStart()
	case protocol.CmdStop:
		return e.handleStop()
	case protocol.CmdSongs:
		return e.handleSongs()
	case protocol.CmdLoad:
		return e.handleLoad(cmd)
	case protocol.CmdSetGain:
		return e.handleSetGain(cmd)
	case protocol.CmdCalibrate:
		return e.handleCalibrate(cmd)
	case protocol.CmdConfig:
		return e.handleConfig(cmd)
	case protocol.CmdPing:
		return protocol.NewSuccessResponse(map[string]interface{}{"pong": time.Now().Unix()})
	case protocol.CmdQuit:
		return protocol.NewSuccessResponse(map[string]interface{}{"message": "goodbye"})
	default:
		return protocol.NewErrorResponse(fmt.Sprintf("unknown command: %s", cmd.Type))
	}
}

func (e *Engine) handleStatus() *protocol.Response {
	detection := e.detectionSnapshot()
	snap := e.tutor.Snapshot()

	tutorSnapshot := protocol.TutorSnapshot{
		State:             string(snap.State),
		CurrentIndex:      snap.CurrentIndex,
		TargetNote:        snap.TargetNote,
		Progress:          snap.Progress,
		LastCompletedNote: snap.LastCompletedNote,
		SongTitle:         snap.SongTitle,
	}

	return protocol.NewSuccessResponse(map[string]interface{}{
		"running":   e.isRunning(),
		"detection": detection,
		"tutor":     tutorSnapshot,
		"levels":    e.levels.Current(),
	})
}

func (e *Engine) handleStart() *protocol.Response {
	if err := e.front.Start(); err != nil {
		return protocol.NewErrorResponse(fmt.Sprintf("capture unavailable: %v", err))
	}
	return protocol.NewSuccessResponse(map[string]interface{}{"status": "started"})
}

func (e *Engine) handleStop() *protocol.Response {
	e.front.Stop()
	e.tutor.Stop()
	e.smoother.Reset()
	e.noiseFloor.Reset()
	return protocol.NewSuccessResponse(map[string]interface{}{"status": "stopped"})
}

func (e *Engine) handleSongs() *protocol.Response {
	return protocol.NewSuccessResponse(map[string]interface{}{
		"songs": e.songSummary,
		"count": len(e.songSummary),
	})
}

func (e *Engine) handleLoad(cmd *protocol.Command) *protocol.Response {
	songID, _ := cmd.Args["song_id"].(string)
	s, ok := e.songs[songID]
	if !ok {
		return protocol.NewErrorResponse(fmt.Sprintf("song not found: %s", songID))
	}

	if err := e.front.Start(); err != nil {
		e.tutor.SetCaptureError()
		return protocol.NewErrorResponse(fmt.Sprintf("capture unavailable: %v", err))
	}

	e.smoother.Reset()
	if err := e.tutor.Start(s); err != nil {
		return protocol.NewErrorResponse(err.Error())
	}

	return protocol.NewSuccessResponse(map[string]interface{}{
		"status": "loaded",
		"song":   s.Summary(),
	})
}

func (e *Engine) handleSetGain(cmd *protocol.Command) *protocol.Response {
	gainStr, _ := cmd.Args["gain"].(string)
	gain, err := strconv.ParseFloat(gainStr, 64)
	if err != nil {
		return protocol.NewErrorResponse("invalid gain value")
	}

	e.front.SetGain(gain)

	e.mu.Lock()
	e.config.Engine.Gain = e.front.Gain()
	e.mu.Unlock()

	return protocol.NewSuccessResponse(map[string]interface{}{"gain": e.front.Gain()})
}

func (e *Engine) handleCalibrate(cmd *protocol.Command) *protocol.Response {
	phaseStr, _ := cmd.Args["phase"].(string)
	action, _ := cmd.Args["action"].(string)
	phase := calibration.Phase(phaseStr)
	if phase != calibration.PhaseNoise && phase != calibration.PhaseNote {
		return protocol.NewErrorResponse(fmt.Sprintf("unknown calibration phase: %s", phaseStr))
	}

	switch action {
	case "start":
		return e.startCalibration(phase)
	case "stop":
		return e.stopCalibration(phase)
	default:
		return protocol.NewErrorResponse(fmt.Sprintf("unknown calibration action: %s", action))
	}
}

func (e *Engine) startCalibration(phase calibration.Phase) *protocol.Response {
	if err := e.front.Start(); err != nil {
		return protocol.NewErrorResponse(fmt.Sprintf("capture unavailable: %v", err))
	}

	e.calMu.Lock()
	e.calPhase = phase
	e.calActive = true
	switch phase {
	case calibration.PhaseNoise:
		e.calNoise = calibration.NewNoiseCalibration()
	case calibration.PhaseNote:
		e.calNote = calibration.NewNoteCalibration()
	}
	e.calMu.Unlock()

	return protocol.NewSuccessResponse(map[string]interface{}{"status": "calibrating", "phase": string(phase)})
}

func (e *Engine) stopCalibration(phase calibration.Phase) *protocol.Response {
	e.calMu.Lock()
	if !e.calActive || e.calPhase != phase {
		e.calMu.Unlock()
		return protocol.NewErrorResponse(fmt.Sprintf("calibration phase %s is not active", phase))
	}

	var value float64
	var err error
	switch phase {
	case calibration.PhaseNoise:
		value = e.calNoise.Finish()
	case calibration.PhaseNote:
		value, err = e.calNote.Finish()
	}
	e.calActive = false
	e.calMu.Unlock()

	if err != nil {
		if errors.Is(err, calibration.ErrNoNote) {
			return protocol.NewErrorResponse("no note detected during calibration")
		}
		return protocol.NewErrorResponse(err.Error())
	}

	e.mu.Lock()
	calibration.Apply(e.config, phase, value)
	cfgSnapshot := e.config.Engine
	e.mu.Unlock()

	if e.store != nil {
		if err := e.store.SaveEngineConfig(storage.EngineConfigRow{
			SampleRate:       cfgSnapshot.SampleRate,
			Gain:             cfgSnapshot.Gain,
			RMSThreshold:     cfgSnapshot.RMSThreshold,
			ClarityThreshold: cfgSnapshot.ClarityThreshold,
			HoldDurationMs:   cfgSnapshot.HoldDurationMs,
		}); err != nil {
			logging.Warn(logging.ComponentEngine, "failed to persist engine config", map[string]interface{}{"error": err.Error()})
		}
		if err := e.store.RecordCalibration(string(phase), value); err != nil {
			logging.Warn(logging.ComponentEngine, "failed to record calibration history", map[string]interface{}{"error": err.Error()})
		}
	}

	return protocol.NewSuccessResponse(map[string]interface{}{"status": "applied", "value": value})
}

func (e *Engine) handleConfig(cmd *protocol.Command) *protocol.Response {
	action, _ := cmd.Args["action"].(string)
	key, _ := cmd.Args["key"].(string)

	switch action {
	case "get":
		value, ok := e.configValue(key)
		if !ok {
			return protocol.NewErrorResponse(fmt.Sprintf("unknown config key: %s", key))
		}
		return protocol.NewSuccessResponse(map[string]interface{}{"key": key, "value": value})
	case "set":
		value, _ := cmd.Args["value"].(string)
		if err := e.setConfigValue(key, value); err != nil {
			return protocol.NewErrorResponse(err.Error())
		}
		return protocol.NewSuccessResponse(map[string]interface{}{"key": key, "value": value})
	default:
		return protocol.NewErrorResponse(fmt.Sprintf("unknown config action: %s", action))
	}
}

func (e *Engine) configValue(key string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	switch key {
	case "gain":
		return strconv.FormatFloat(e.config.Engine.Gain, 'f', -1, 64), true
	case "rms_threshold":
		return strconv.FormatFloat(e.config.Engine.RMSThreshold, 'f', -1, 64), true
	case "clarity_threshold":
		return strconv.FormatFloat(e.config.Engine.ClarityThreshold, 'f', -1, 64), true
	case "hold_duration_ms":
		return strconv.Itoa(e.config.Engine.HoldDurationMs), true
	case "sample_rate":
		return strconv.Itoa(e.config.Engine.SampleRate), true
	default:
		return "", false
	}
}

func (e *Engine) setConfigValue(key, value string) error {
	switch key {
	case "gain":
		g, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid gain value")
		}
		e.front.SetGain(g)
		e.mu.Lock()
		e.config.Engine.Gain = e.front.Gain()
		e.mu.Unlock()
	case "rms_threshold":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid rms_threshold value")
		}
		e.mu.Lock()
		e.config.Engine.RMSThreshold = v
		e.mu.Unlock()
	case "clarity_threshold":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid clarity_threshold value")
		}
		e.mu.Lock()
		e.config.Engine.ClarityThreshold = v
		e.mu.Unlock()
	case "hold_duration_ms":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid hold_duration_ms value")
		}
		e.mu.Lock()
		e.config.Engine.HoldDurationMs = v
		e.mu.Unlock()
		e.tutor.SetHoldDurationMs(v)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
