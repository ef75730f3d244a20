package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// tutorPushMessage is one frame of the live push stream: the same
// detection + tutor shape the socket protocol's STATUS command returns,
// so the browser client can reuse one decoder for polling and pushes.
type tutorPushMessage struct {
	Running   bool        `json:"running"`
	Detection interface{} `json:"detection"`
	Tutor     interface{} `json:"tutor"`
	Levels    interface{} `json:"levels,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// handleTutorWebSocket upgrades the connection and pushes a status frame
// every pushInterval until the client disconnects, polling the engine
// socket itself rather than the engine pushing to us (pkg/client has no
// subscribe call, just request/response).
func (h *WebHost) handleTutorWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()

	for range ticker.C {
		status, err := h.client.Status()
		if err != nil {
			msg := tutorPushMessage{Error: err.Error()}
			if writeErr := conn.WriteJSON(msg); writeErr != nil {
				return
			}
			continue
		}

		msg := tutorPushMessage{
			Running:   status.Running,
			Detection: status.Detection,
			Tutor:     status.Tutor,
			Levels:    status.Levels,
		}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
