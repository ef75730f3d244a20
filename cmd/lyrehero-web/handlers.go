package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleStatus returns the engine's current detection + tutor state.
func (h *WebHost) handleStatus(c *gin.Context) {
	status, err := h.client.Status()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

// handleSongs lists the songs the engine found in its song library.
func (h *WebHost) handleSongs(c *gin.Context) {
	songs, err := h.client.Songs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"songs": songs,
		"count": len(songs),
	})
}

// handleLoad selects a song by ID and starts a tutor session.
func (h *WebHost) handleLoad(c *gin.Context) {
	id := c.Param("id")
	if err := h.client.Load(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "loaded", "song_id": id})
}

// handleStart begins audio capture without loading a song, for metering or
// calibration preview.
func (h *WebHost) handleStart(c *gin.Context) {
	if err := h.client.Start(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

// handleStop ends the current session and returns the tutor to idle.
func (h *WebHost) handleStop(c *gin.Context) {
	if err := h.client.Stop(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

// handleSetGain adjusts the front-end's input gain.
func (h *WebHost) handleSetGain(c *gin.Context) {
	var req struct {
		Gain float64 `json:"gain" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.client.SetGain(req.Gain); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "gain": req.Gain})
}

// handleCalibrateStart begins a calibration wizard phase ("noise" or
// "note").
func (h *WebHost) handleCalibrateStart(c *gin.Context) {
	phase := c.Param("phase")
	if err := h.client.CalibrateStart(phase); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "calibrating", "phase": phase})
}

// handleCalibrateStop ends a calibration wizard phase and reports the
// value it applied.
func (h *WebHost) handleCalibrateStop(c *gin.Context) {
	phase := c.Param("phase")
	value, err := h.client.CalibrateStop(phase)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "applied", "phase": phase, "value": value})
}

// handleConfigGet fetches one config key's current value.
func (h *WebHost) handleConfigGet(c *gin.Context) {
	key := c.Param("key")
	value, err := h.client.ConfigGet(key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

// handleConfigSet sets one config key's value.
func (h *WebHost) handleConfigSet(c *gin.Context) {
	var req struct {
		Key   string `json:"key" binding:"required"`
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.client.ConfigSet(req.Key, req.Value); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": req.Key, "value": req.Value})
}
