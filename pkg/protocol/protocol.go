package protocol

import (
	"encoding/json"
	"strings"

	"github.com/lyrehero/lyrehero-engine/pkg/audio"
	"github.com/lyrehero/lyrehero-engine/pkg/song"
)

// Command represents a command sent to the core engine over the Unix
// socket.
type Command struct {
	Type string                 `json:"type"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// Response represents a response from the core engine.
type Response struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// DetectionFrame is the per-frame pitch-detection result, pushed to the
// web host once per display tick while a session is running.
type DetectionFrame struct {
	Note      string  `json:"note"`
	Frequency float64 `json:"frequency"`
	Clarity   float64 `json:"clarity"`
	Volume    float64 `json:"volume"`
}

// TutorSnapshot is the tutor state machine's externally visible state,
// pushed alongside each DetectionFrame.
type TutorSnapshot struct {
	State             string  `json:"state"` // idle, listening, finished, error_capture_unavailable
	CurrentIndex      int     `json:"current_index"`
	TargetNote        string  `json:"target_note"`
	Progress          float64 `json:"progress"` // [0,1]
	LastCompletedNote string  `json:"last_completed_note,omitempty"`
	SongTitle         string  `json:"song_title,omitempty"`
}

// SongSummary is the listing entry returned by the SONGS command; full
// note data is fetched only once a song is loaded. Aliased to song.SongSummary
// so the engine can hand the wire layer its domain type directly.
type SongSummary = song.SongSummary

// LevelSnapshot is the input-level meter data pushed alongside STATUS.
// Aliased to audio.LevelData for the same reason SongSummary is aliased.
type LevelSnapshot = audio.LevelData

// ParseCommand parses a text command into a Command struct. The grammar is
// `TYPE` or `TYPE:args`, with type-specific argument splitting below.
func ParseCommand(text string) (*Command, error) {
	text = strings.TrimSpace(text)
	parts := strings.SplitN(text, ":", 2)

	cmd := &Command{
		Type: strings.ToUpper(parts[0]),
		Args: make(map[string]interface{}),
	}

	if len(parts) > 1 {
		args := parts[1]

		switch cmd.Type {
		case CmdLoad:
			// LOAD:twinkle-twinkle
			cmd.Args["song_id"] = args

		case CmdSetGain:
			// SETGAIN:2.0
			cmd.Args["gain"] = args

		case CmdCalibrate:
			// CALIBRATE:noise:start, CALIBRATE:noise:stop,
			// CALIBRATE:note:start, CALIBRATE:note:stop
			calParts := strings.SplitN(args, ":", 2)
			if len(calParts) >= 1 {
				cmd.Args["phase"] = strings.ToLower(calParts[0])
			}
			if len(calParts) >= 2 {
				cmd.Args["action"] = strings.ToLower(calParts[1])
			}

		case CmdConfig:
			// CONFIG:set:key:value or CONFIG:get:key
			configParts := strings.SplitN(args, ":", 3)
			if len(configParts) >= 1 {
				cmd.Args["action"] = configParts[0]
			}
			if len(configParts) >= 2 {
				cmd.Args["key"] = configParts[1]
			}
			if len(configParts) >= 3 {
				cmd.Args["value"] = configParts[2]
			}
		}
	}

	return cmd, nil
}

// String converts a Response to its JSON wire form.
func (r *Response) String() string {
	data, _ := json.Marshal(r)
	return string(data)
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(data map[string]interface{}) *Response {
	return &Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(err string) *Response {
	return &Response{
		Success: false,
		Error:   err,
	}
}

// Protocol commands.
const (
	CmdStatus    = "STATUS"
	CmdStart     = "START"
	CmdStop      = "STOP"
	CmdSongs     = "SONGS"
	CmdLoad      = "LOAD"
	CmdSetGain   = "SETGAIN"
	CmdCalibrate = "CALIBRATE"
	CmdConfig    = "CONFIG"
	CmdQuit      = "QUIT"
	CmdPing      = "PING"
)
