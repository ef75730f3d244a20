package main

import (
	"fmt"
	"log"
	"time"

	"github.com/lyrehero/lyrehero-engine/pkg/client"
	"github.com/lyrehero/lyrehero-engine/pkg/config"
	"github.com/lyrehero/lyrehero-engine/pkg/engine"
)

// LyreheroDaemon owns the core engine and confirms its socket is reachable
// before reporting itself started; the web host (cmd/lyrehero-web) and any
// CLI tooling connect to the same socket as independent processes.
type LyreheroDaemon struct {
	config     *config.Config
	configPath string

	coreEngine   *engine.Engine
	socketClient *client.SocketClient
	socketPath   string
}

// NewLyreheroDaemon creates a new daemon instance with config path for
// reloading.
func NewLyreheroDaemon(cfg *config.Config, configPath string) (*LyreheroDaemon, error) {
	socketPath := cfg.API.UnixSocket
	if socketPath == "" {
		socketPath = "/tmp/lyrehero.sock"
	}

	coreEngine, err := engine.New(cfg, socketPath, configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create core engine: %w", err)
	}

	return &LyreheroDaemon{
		config:       cfg,
		configPath:   configPath,
		coreEngine:   coreEngine,
		socketClient: client.NewSocketClient(socketPath),
		socketPath:   socketPath,
	}, nil
}

// Start starts the core engine and confirms the command socket is live.
func (d *LyreheroDaemon) Start() error {
	log.Printf("Starting lyrehero-engined...")

	if err := d.coreEngine.Start(); err != nil {
		return fmt.Errorf("failed to start core engine: %w", err)
	}

	time.Sleep(100 * time.Millisecond)

	if !d.socketClient.IsConnected() {
		return fmt.Errorf("failed to connect to core engine socket")
	}

	return nil
}

// Stop stops the core engine gracefully.
func (d *LyreheroDaemon) Stop() error {
	log.Printf("Stopping lyrehero-engined...")

	if d.coreEngine != nil {
		if err := d.coreEngine.Stop(); err != nil {
			log.Printf("Core engine shutdown error: %v", err)
		}
	}

	log.Printf("lyrehero-engined stopped")
	return nil
}
