package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lyrehero/lyrehero-engine/pkg/config"
	"github.com/lyrehero/lyrehero-engine/pkg/logging"
)

var (
	configPath = flag.String("config", "config.yaml", "Configuration file path")
	version    = flag.Bool("version", false, "Show version information")
)

const (
	Version = "0.1.0-dev"
	Build   = "development"
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("lyrehero-web version %s (%s)\n", Version, Build)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Printf("Failed to load configuration, using defaults: %v", err)
		cfg = config.Default()
	}

	if err := logging.InitGlobalLogger(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.CloseGlobalLogger()

	host, err := NewWebHost(cfg)
	if err != nil {
		logging.Errorf(logging.ComponentWeb, "failed to create web host: %v", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := host.Start(); err != nil {
		logging.Errorf(logging.ComponentWeb, "failed to start web host: %v", err)
		os.Exit(1)
	}

	logging.Infof(logging.ComponentWeb, "lyrehero-web listening on %s:%d", cfg.Web.BindAddress, cfg.Web.Port)

	<-sigChan
	logging.Info(logging.ComponentWeb, "shutting down...")

	if err := host.Stop(); err != nil {
		logging.Errorf(logging.ComponentWeb, "error during shutdown: %v", err)
	}
}
