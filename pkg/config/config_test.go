package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "lyrehero-config-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	t.Run("Valid Config", func(t *testing.T) {
		configContent := `
engine:
  sample_rate: 48000
  gain: 2.0
  rms_threshold: 0.001
  clarity_threshold: 0.05
  hold_duration_ms: 150

songs:
  directory: "/opt/lyrehero/songs"

storage:
  database_path: "/tmp/lyrehero.db"

web:
  port: 9090
  bind_address: "127.0.0.1"

api:
  unix_socket: "/tmp/lyrehero-test.sock"

logging:
  level: "debug"
  file: "/var/log/lyrehero.log"
  console: true
`
		configPath := filepath.Join(tempDir, "valid.yaml")
		if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
			t.Fatalf("Failed to write config file: %v", err)
		}

		cfg, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if cfg.Engine.SampleRate != 48000 {
			t.Errorf("Expected sample rate 48000, got %d", cfg.Engine.SampleRate)
		}
		if cfg.Engine.Gain != 2.0 {
			t.Errorf("Expected gain 2.0, got %f", cfg.Engine.Gain)
		}
		if cfg.Engine.ClarityThreshold != 0.05 {
			t.Errorf("Expected clarity threshold 0.05, got %f", cfg.Engine.ClarityThreshold)
		}
		if cfg.Songs.Directory != "/opt/lyrehero/songs" {
			t.Errorf("Expected songs directory override, got %s", cfg.Songs.Directory)
		}
		if cfg.Web.Port != 9090 {
			t.Errorf("Expected web port 9090, got %d", cfg.Web.Port)
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("Expected log level debug, got %s", cfg.Logging.Level)
		}
	})

	t.Run("Missing File", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(tempDir, "does-not-exist.yaml"))
		if err == nil {
			t.Fatal("Expected error for missing config file")
		}
		if !errors.Is(err, ErrConfigLoadFailed) {
			t.Errorf("Expected ErrConfigLoadFailed, got %v", err)
		}
	})

	t.Run("Malformed YAML", func(t *testing.T) {
		configPath := filepath.Join(tempDir, "bad.yaml")
		if err := os.WriteFile(configPath, []byte("engine: [this is not a map"), 0644); err != nil {
			t.Fatalf("Failed to write config file: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrConfigLoadFailed) {
			t.Errorf("Expected ErrConfigLoadFailed, got %v", err)
		}
	})
}

func TestLoadConfigDefaults(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "lyrehero-config-defaults-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configPath := filepath.Join(tempDir, "minimal.yaml")
	if err := os.WriteFile(configPath, []byte("engine:\n  sample_rate: 44100\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Engine.SampleRate != 44100 {
		t.Errorf("Expected explicit sample rate 44100, got %d", cfg.Engine.SampleRate)
	}
	if cfg.Engine.Gain != 1.5 {
		t.Errorf("Expected default gain 1.5, got %f", cfg.Engine.Gain)
	}
	if cfg.Engine.RMSThreshold != 5e-4 {
		t.Errorf("Expected default RMS threshold 5e-4, got %f", cfg.Engine.RMSThreshold)
	}
	if cfg.Engine.ClarityThreshold != 0.01 {
		t.Errorf("Expected default clarity threshold 0.01, got %f", cfg.Engine.ClarityThreshold)
	}
	if cfg.Engine.HoldDurationMs != 100 {
		t.Errorf("Expected default hold duration 100ms, got %d", cfg.Engine.HoldDurationMs)
	}
	if cfg.Songs.Directory != "songs" {
		t.Errorf("Expected default songs directory, got %s", cfg.Songs.Directory)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("Expected default web port 8080, got %d", cfg.Web.Port)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate cleanly, got: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Run("Rejects Out Of Range Gain", func(t *testing.T) {
		cfg := Default()
		cfg.Engine.Gain = 10
		if err := cfg.Validate(); err == nil {
			t.Error("Expected error for out-of-range gain")
		}
	})

	t.Run("Rejects Empty Songs Directory", func(t *testing.T) {
		cfg := Default()
		cfg.Songs.Directory = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Expected error for empty songs directory")
		}
	})

	t.Run("Rejects Zero Sample Rate", func(t *testing.T) {
		cfg := Default()
		cfg.Engine.SampleRate = 0
		if err := cfg.Validate(); err == nil {
			t.Error("Expected error for zero sample rate")
		}
	})
}
