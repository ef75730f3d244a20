package tutor

import (
	"fmt"
	"sync"
	"time"

	"github.com/lyrehero/lyrehero-engine/pkg/song"
)

// State is one of the tutor's four lifecycle states.
type State string

const (
	Idle                    State = "idle"
	Listening               State = "listening"
	Finished                State = "finished"
	ErrorCaptureUnavailable State = "error_capture_unavailable"
)

// advanceDebounce is the minimum interval between successive advance()
// calls.
const advanceDebounce = 500 * time.Millisecond

// Snapshot is the externally visible tutor state for one Tick call.
type Snapshot struct {
	State             State
	CurrentIndex      int
	TargetNote        string
	Progress          float64
	LastCompletedNote string
	SongTitle         string
}

// Tutor drives a song's note sequence against the smoother's per-frame
// output. Exported methods hold an internal mutex, since the
// engine's detection loop calls Tick concurrently with Snapshot/Start/Stop
// calls made from command-handling goroutines.
type Tutor struct {
	mu sync.Mutex

	state    State
	song     *song.Song
	index    int
	holdMs   int
	holdAt   time.Time
	holding  bool
	progress float64

	requireSilence    bool
	lastCompletedNote string
	lastAdvance       time.Time
}

// NewTutor returns an idle Tutor with the given hold duration.
func NewTutor(holdDurationMs int) *Tutor {
	return &Tutor{state: Idle, holdMs: holdDurationMs}
}

// Start loads a song and transitions any state to Listening, resetting
// progress to index 0.
func (t *Tutor) Start(s *song.Song) error {
	if s == nil || len(s.Notes) == 0 {
		return fmt.Errorf("tutor: song must have at least one note")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.song = s
	t.index = 0
	t.holding = false
	t.progress = 0
	t.requireSilence = false
	t.lastCompletedNote = ""
	t.lastAdvance = time.Time{}
	t.state = Listening
	return nil
}

// Stop transitions Listening back to Idle. A no-op from any other state.
func (t *Tutor) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Listening {
		t.state = Idle
	}
}

// SetCaptureError transitions to ErrorCaptureUnavailable from any state,
// per the front-end start failure path.
func (t *Tutor) SetCaptureError() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = ErrorCaptureUnavailable
}

// State returns the current lifecycle state.
func (t *Tutor) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// HoldDurationMs returns the configured hold duration.
func (t *Tutor) HoldDurationMs() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.holdMs
}

// SetHoldDurationMs updates the configured hold duration.
func (t *Tutor) SetHoldDurationMs(ms int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.holdMs = ms
}

// Snapshot returns the current externally visible state without advancing
// anything, for callers (e.g. a status query) that must not perturb the
// hold/progress state a concurrent Tick call is building up.
func (t *Tutor) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

// Tick runs one frame of the Listening logic given the smoother's stable
// detection for this frame, and returns the resulting
// snapshot. Outside the Listening state it is a no-op that just returns
// the current snapshot.
func (t *Tutor) Tick(now time.Time, detectedNote string) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Listening {
		return t.snapshot()
	}

	target := t.song.Notes[t.index].Note

	switch {
	case detectedNote == target && !t.requireSilence:
		if !t.holding {
			t.holding = true
			t.holdAt = now
		}
		elapsed := now.Sub(t.holdAt)
		t.progress = clamp01(float64(elapsed) / float64(time.Duration(t.holdMs)*time.Millisecond))
		if elapsed >= time.Duration(t.holdMs)*time.Millisecond {
			t.advance(now)
		}

	case detectedNote == target && t.requireSilence:
		t.holding = false
		t.progress = 0

	case detectedNote == "":
		t.holding = false
		t.progress = 0
		t.requireSilence = false

	default:
		t.holding = false
		t.progress = 0
	}

	return t.snapshot()
}

// advance completes the current target note and moves to the next,
// subject to the 500ms debounce.
func (t *Tutor) advance(now time.Time) {
	if !t.lastAdvance.IsZero() && now.Sub(t.lastAdvance) < advanceDebounce {
		return
	}
	t.lastAdvance = now

	completed := t.song.Notes[t.index].Note
	t.lastCompletedNote = completed
	t.holding = false
	t.progress = 0

	if t.index+1 < len(t.song.Notes) {
		t.requireSilence = t.song.Notes[t.index+1].Note == completed
		t.index++
		return
	}

	t.state = Finished
}

func (t *Tutor) snapshot() Snapshot {
	s := Snapshot{
		State:             t.state,
		CurrentIndex:      t.index,
		Progress:          t.progress,
		LastCompletedNote: t.lastCompletedNote,
	}
	if t.song != nil {
		s.SongTitle = t.song.Title
		if t.index < len(t.song.Notes) {
			s.TargetNote = t.song.Notes[t.index].Note
		}
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
