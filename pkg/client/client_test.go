package client

import (
	"bufio"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/lyrehero/lyrehero-engine/pkg/protocol"
)

// fakeServer accepts a single connection, hands the first line to handle,
// and writes back whatever Response handle returns.
func fakeServer(t *testing.T, handle func(line string) *protocol.Response) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "lyrehero-client-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	sockPath := filepath.Join(dir, "test.sock")
	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		scanner := bufio.NewScanner(conn)
		if !scanner.Scan() {
			return
		}
		resp := handle(scanner.Text())
		conn.Write([]byte(resp.String() + "\n"))
	}()

	return sockPath
}

func TestStatus(t *testing.T) {
	sock := fakeServer(t, func(line string) *protocol.Response {
		if line != protocol.CmdStatus {
			t.Errorf("expected STATUS command, got %q", line)
		}
		return protocol.NewSuccessResponse(map[string]interface{}{
			"running": true,
			"detection": protocol.DetectionFrame{Note: "A4", Frequency: 440, Clarity: 0.9, Volume: 0.5},
			"tutor":     protocol.TutorSnapshot{State: "listening", TargetNote: "A4"},
		})
	})

	c := NewSocketClient(sock)
	status, err := c.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.Detection.Note != "A4" || status.Tutor.TargetNote != "A4" {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestSongs(t *testing.T) {
	sock := fakeServer(t, func(line string) *protocol.Response {
		return protocol.NewSuccessResponse(map[string]interface{}{
			"songs": []protocol.SongSummary{
				{ID: "twinkle", Title: "Twinkle", Difficulty: "Easy", NoteCount: 12},
			},
		})
	})

	c := NewSocketClient(sock)
	songs, err := c.Songs()
	if err != nil {
		t.Fatalf("Songs: %v", err)
	}
	if len(songs) != 1 || songs[0].ID != "twinkle" {
		t.Errorf("unexpected songs: %+v", songs)
	}
}

func TestLoadSendsSongID(t *testing.T) {
	sock := fakeServer(t, func(line string) *protocol.Response {
		if line != "LOAD:twinkle" {
			t.Errorf("expected LOAD:twinkle, got %q", line)
		}
		return protocol.NewSuccessResponse(nil)
	})

	if err := NewSocketClient(sock).Load("twinkle"); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestSetGainFormatsFloat(t *testing.T) {
	sock := fakeServer(t, func(line string) *protocol.Response {
		if line != "SETGAIN:2.5" {
			t.Errorf("expected SETGAIN:2.5, got %q", line)
		}
		return protocol.NewSuccessResponse(nil)
	})

	if err := NewSocketClient(sock).SetGain(2.5); err != nil {
		t.Fatalf("SetGain: %v", err)
	}
}

func TestCalibrateStartAndStop(t *testing.T) {
	var seen []string
	sock := fakeServer(t, func(line string) *protocol.Response {
		seen = append(seen, line)
		return protocol.NewSuccessResponse(map[string]interface{}{"value": 0.02})
	})

	c := NewSocketClient(sock)
	if err := c.CalibrateStart("note"); err != nil {
		t.Fatalf("CalibrateStart: %v", err)
	}

	sock2 := fakeServer(t, func(line string) *protocol.Response {
		if line != "CALIBRATE:note:stop" {
			t.Errorf("expected CALIBRATE:note:stop, got %q", line)
		}
		return protocol.NewSuccessResponse(map[string]interface{}{"value": 0.02})
	})
	value, err := NewSocketClient(sock2).CalibrateStop("note")
	if err != nil {
		t.Fatalf("CalibrateStop: %v", err)
	}
	if value != 0.02 {
		t.Errorf("expected value 0.02, got %f", value)
	}
}

func TestConfigGet(t *testing.T) {
	sock := fakeServer(t, func(line string) *protocol.Response {
		if line != "CONFIG:get:gain" {
			t.Errorf("expected CONFIG:get:gain, got %q", line)
		}
		return protocol.NewSuccessResponse(map[string]interface{}{"value": "1.5"})
	})
	v, err := NewSocketClient(sock).ConfigGet("gain")
	if err != nil {
		t.Fatalf("ConfigGet: %v", err)
	}
	if v != "1.5" {
		t.Errorf("expected value 1.5, got %q", v)
	}
}

func TestPingAndIsConnected(t *testing.T) {
	sock := fakeServer(t, func(line string) *protocol.Response {
		return protocol.NewSuccessResponse(nil)
	})
	c := NewSocketClient(sock)
	if err := c.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if !c.IsConnected() {
		t.Error("expected IsConnected true after successful ping")
	}
}

func TestSendCommandErrorResponse(t *testing.T) {
	sock := fakeServer(t, func(line string) *protocol.Response {
		return protocol.NewErrorResponse("song not found")
	})
	if err := NewSocketClient(sock).Load("nope"); err == nil {
		t.Error("expected error from a failed Load")
	}
}

func TestDecodeIntoRejectsBadShape(t *testing.T) {
	var out int
	if err := decodeInto(map[string]interface{}{"x": 1}, &out); err == nil {
		t.Error("expected decode error for mismatched shape")
	}
}
