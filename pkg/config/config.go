package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// ErrConfigLoadFailed is the sentinel wrapped when a config file cannot be
// read or parsed. Per the engine's error handling design this is
// non-fatal: callers log it and proceed with defaults.
var ErrConfigLoadFailed = errors.New("config: load failed")

// Config is the lyrehero-engined configuration file.
type Config struct {
	Engine struct {
		SampleRate       int     `yaml:"sample_rate"`
		Gain             float64 `yaml:"gain"`
		RMSThreshold     float64 `yaml:"rms_threshold"`
		ClarityThreshold float64 `yaml:"clarity_threshold"`
		HoldDurationMs   int     `yaml:"hold_duration_ms"`
		InputDevice      string  `yaml:"input_device"`
	} `yaml:"engine"`

	Songs struct {
		Directory string `yaml:"directory"`
	} `yaml:"songs"`

	Storage struct {
		DatabasePath string `yaml:"database_path"`
	} `yaml:"storage"`

	Web struct {
		Port        int    `yaml:"port"`
		BindAddress string `yaml:"bind_address"`
	} `yaml:"web"`

	API struct {
		WebSocketPort int    `yaml:"websocket_port"`
		UnixSocket    string `yaml:"unix_socket"`
	} `yaml:"api"`

	Logging struct {
		Level      string `yaml:"level"` // debug, info, warn, error
		File       string `yaml:"file"`
		MaxSize    int    `yaml:"max_size"`    // MB
		MaxBackups int    `yaml:"max_backups"` // count
		MaxAge     int    `yaml:"max_age"`      // days
		Compress   bool   `yaml:"compress"`
		Console    bool   `yaml:"console"`
		Structured bool   `yaml:"structured"`
	} `yaml:"logging"`
}

// ClarityProfileStrict is an alternative, less permissive clarity threshold
// a host can offer alongside the default: the permissive 0.01 default stays
// authoritative, this is an opt-in preset rather than a replacement.
const ClarityProfileStrict = 0.3

// LoadConfig loads configuration from a YAML file and fills in defaults for
// anything left unset.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigLoadFailed, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigLoadFailed, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a Config populated entirely with documented defaults, for
// hosts that proceed without a config file after ErrConfigLoadFailed.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Engine.SampleRate == 0 {
		cfg.Engine.SampleRate = 48000
	}
	if cfg.Engine.Gain == 0 {
		cfg.Engine.Gain = 1.5
	}
	if cfg.Engine.RMSThreshold == 0 {
		cfg.Engine.RMSThreshold = 5e-4
	}
	if cfg.Engine.ClarityThreshold == 0 {
		cfg.Engine.ClarityThreshold = 0.01
	}
	if cfg.Engine.HoldDurationMs == 0 {
		cfg.Engine.HoldDurationMs = 100
	}
	if cfg.Engine.InputDevice == "" {
		cfg.Engine.InputDevice = "default"
	}
	if cfg.Songs.Directory == "" {
		cfg.Songs.Directory = "songs"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "lyrehero.db"
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Web.BindAddress == "" {
		cfg.Web.BindAddress = "0.0.0.0"
	}
	if cfg.API.UnixSocket == "" {
		cfg.API.UnixSocket = "/tmp/lyrehero.sock"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.MaxSize == 0 {
		cfg.Logging.MaxSize = 100
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 5
	}
	if cfg.Logging.MaxAge == 0 {
		cfg.Logging.MaxAge = 30
	}
}

// Validate checks that the loaded configuration is usable, rejecting
// out-of-range values; it does not clamp them.
func (c *Config) Validate() error {
	if c.Engine.SampleRate <= 0 {
		return fmt.Errorf("engine sample rate must be positive")
	}
	if c.Engine.Gain < 0.5 || c.Engine.Gain > 5.0 {
		return fmt.Errorf("engine gain must be in [0.5, 5.0]")
	}
	if c.Engine.HoldDurationMs <= 0 {
		return fmt.Errorf("engine hold duration must be positive")
	}
	if c.Songs.Directory == "" {
		return fmt.Errorf("songs directory is required")
	}
	return nil
}
