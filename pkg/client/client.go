package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/lyrehero/lyrehero-engine/pkg/protocol"
)

// SocketClient is a client connection to the engine daemon's Unix socket.
type SocketClient struct {
	socketPath string
	timeout    time.Duration
}

// NewSocketClient creates a new socket client.
func NewSocketClient(socketPath string) *SocketClient {
	return &SocketClient{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// SendCommand sends a raw text command and returns the parsed response.
func (c *SocketClient) SendCommand(cmd string) (*protocol.Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		return nil, fmt.Errorf("send error: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return nil, fmt.Errorf("no response received")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}

	var response protocol.Response
	if err := json.Unmarshal(scanner.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return &response, nil
}

// decodeInto re-marshals a response's Data field to extract a single typed
// value, since map[string]interface{} can't be scanned directly.
func decodeInto(data interface{}, out interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// StatusSnapshot is the combined status the engine reports for STATUS.
type StatusSnapshot struct {
	Running   bool                    `json:"running"`
	Detection protocol.DetectionFrame `json:"detection"`
	Tutor     protocol.TutorSnapshot  `json:"tutor"`
	Levels    protocol.LevelSnapshot  `json:"levels"`
}

// Status fetches the engine's current detection + tutor state.
func (c *SocketClient) Status() (*StatusSnapshot, error) {
	resp, err := c.SendCommand(protocol.CmdStatus)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("status error: %s", resp.Error)
	}

	var status StatusSnapshot
	if err := decodeInto(resp.Data, &status); err != nil {
		return nil, fmt.Errorf("failed to parse status: %w", err)
	}
	return &status, nil
}

// Songs lists the available songs.
func (c *SocketClient) Songs() ([]protocol.SongSummary, error) {
	resp, err := c.SendCommand(protocol.CmdSongs)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("songs error: %s", resp.Error)
	}

	songsData, ok := resp.Data["songs"]
	if !ok {
		return []protocol.SongSummary{}, nil
	}

	var songs []protocol.SongSummary
	if err := decodeInto(songsData, &songs); err != nil {
		return nil, fmt.Errorf("failed to parse songs: %w", err)
	}
	return songs, nil
}

// Load selects a song by ID and starts the tutor session.
func (c *SocketClient) Load(songID string) error {
	resp, err := c.SendCommand(fmt.Sprintf("%s:%s", protocol.CmdLoad, songID))
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("load error: %s", resp.Error)
	}
	return nil
}

// Start begins audio capture without loading a song (e.g. for calibration
// or metering).
func (c *SocketClient) Start() error {
	resp, err := c.SendCommand(protocol.CmdStart)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("start error: %s", resp.Error)
	}
	return nil
}

// Stop ends the current session and returns the tutor to idle.
func (c *SocketClient) Stop() error {
	resp, err := c.SendCommand(protocol.CmdStop)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("stop error: %s", resp.Error)
	}
	return nil
}

// SetGain adjusts the front-end's input gain.
func (c *SocketClient) SetGain(gain float64) error {
	cmd := fmt.Sprintf("%s:%s", protocol.CmdSetGain, strconv.FormatFloat(gain, 'f', -1, 64))
	resp, err := c.SendCommand(cmd)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("setgain error: %s", resp.Error)
	}
	return nil
}

// CalibrateStart begins a calibration wizard phase ("noise" or "note").
func (c *SocketClient) CalibrateStart(phase string) error {
	return c.calibrate(phase, "start")
}

// CalibrateStop ends a calibration wizard phase and applies its result.
func (c *SocketClient) CalibrateStop(phase string) (float64, error) {
	resp, err := c.SendCommand(fmt.Sprintf("%s:%s:stop", protocol.CmdCalibrate, phase))
	if err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, fmt.Errorf("calibrate error: %s", resp.Error)
	}

	var value float64
	if v, ok := resp.Data["value"]; ok {
		if err := decodeInto(v, &value); err != nil {
			return 0, fmt.Errorf("failed to parse calibration value: %w", err)
		}
	}
	return value, nil
}

func (c *SocketClient) calibrate(phase, action string) error {
	resp, err := c.SendCommand(fmt.Sprintf("%s:%s:%s", protocol.CmdCalibrate, phase, action))
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("calibrate error: %s", resp.Error)
	}
	return nil
}

// ConfigGet fetches one config key's current value.
func (c *SocketClient) ConfigGet(key string) (string, error) {
	resp, err := c.SendCommand(fmt.Sprintf("%s:get:%s", protocol.CmdConfig, key))
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("config error: %s", resp.Error)
	}

	value, _ := resp.Data["value"].(string)
	return value, nil
}

// ConfigSet sets one config key's value.
func (c *SocketClient) ConfigSet(key, value string) error {
	resp, err := c.SendCommand(fmt.Sprintf("%s:set:%s:%s", protocol.CmdConfig, key, value))
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("config error: %s", resp.Error)
	}
	return nil
}

// Ping tests the connection.
func (c *SocketClient) Ping() error {
	resp, err := c.SendCommand(protocol.CmdPing)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("ping error: %s", resp.Error)
	}
	return nil
}

// IsConnected tests if the daemon is reachable.
func (c *SocketClient) IsConnected() bool {
	return c.Ping() == nil
}

// Quit ends this session: the daemon replies and closes the connection, and
// keeps running.
func (c *SocketClient) Quit() error {
	resp, err := c.SendCommand(protocol.CmdQuit)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("quit error: %s", resp.Error)
	}
	return nil
}
