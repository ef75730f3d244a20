package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lyrehero/lyrehero-engine/pkg/client"
	"github.com/lyrehero/lyrehero-engine/pkg/config"
)

// pushInterval is how often the tutor websocket sends a fresh status frame
// to the browser, matching the engine's own detection-loop poll rate.
const pushInterval = 50 * time.Millisecond

// WebHost is a thin pkg/client consumer: it owns no audio or tutor state
// itself, only a REST + WebSocket surface over the engine daemon's Unix
// socket.
type WebHost struct {
	config *config.Config
	client *client.SocketClient

	server *http.Server
	wg     sync.WaitGroup
}

// NewWebHost builds a WebHost wired to the engine socket named in cfg.
func NewWebHost(cfg *config.Config) (*WebHost, error) {
	socketPath := cfg.API.UnixSocket
	if socketPath == "" {
		socketPath = "/tmp/lyrehero.sock"
	}

	h := &WebHost{
		config: cfg,
		client: client.NewSocketClient(socketPath),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	api := router.Group("/api/v1")
	{
		api.GET("/status", h.handleStatus)
		api.GET("/songs", h.handleSongs)
		api.POST("/songs/:id/load", h.handleLoad)
		api.POST("/start", h.handleStart)
		api.POST("/stop", h.handleStop)
		api.POST("/gain", h.handleSetGain)
		api.POST("/calibrate/:phase/start", h.handleCalibrateStart)
		api.POST("/calibrate/:phase/stop", h.handleCalibrateStop)
		api.GET("/config/:key", h.handleConfigGet)
		api.POST("/config", h.handleConfigSet)
	}

	router.GET("/ws/tutor", h.handleTutorWebSocket)

	addr := fmt.Sprintf("%s:%d", cfg.Web.BindAddress, cfg.Web.Port)
	h.server = &http.Server{
		Addr:    addr,
		Handler: router,
	}

	return h, nil
}

// Start begins serving HTTP in the background.
func (h *WebHost) Start() error {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("web server error: %v", err)
		}
	}()
	return nil
}

// Stop shuts down the HTTP server gracefully.
func (h *WebHost) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		log.Printf("web server shutdown error: %v", err)
	}
	h.wg.Wait()
	return nil
}
