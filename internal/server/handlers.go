package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/srg/beathard/internal/detection"
	"github.com/srg/beathard/internal/device"
)

type viewRequest struct {
	View string `json:"view" binding:"required"`
	Data any    `json:"data"`
}

// statusFor maps session errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, device.ErrAlreadyConnected):
		return http.StatusConflict
	case errors.Is(err, device.ErrNotConnected), errors.Is(err, device.ErrDeviceNotFound):
		return http.StatusNotFound
	case errors.Is(err, device.ErrAdapterUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, device.ErrScanTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, device.ErrConnectFailed),
		errors.Is(err, device.ErrNoNotifyChannel),
		errors.Is(err, device.ErrSubscribeFailed),
		errors.Is(err, device.ErrScanFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.WithField("path", c.FullPath()).WithError(err).Warn("Request failed")
	}
	c.JSON(code, gin.H{"success": false, "error": err.Error()})
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.manager.Status())
}

func (s *Server) listDevices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"devices": s.manager.ListConnected()})
}

func (s *Server) scan(c *gin.Context) {
	results, err := s.manager.Scan(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": results})
}

// connect accepts an optional competitor body. Without one the sensor is
// connected without event detection.
func (s *Server) connect(c *gin.Context) {
	id := c.Param("id")

	var competitor *detection.Competitor
	var body detection.Competitor
	if err := c.ShouldBindJSON(&body); err != nil {
		if !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid competitor: " + err.Error()})
			return
		}
	} else {
		competitor = &body
	}

	if err := s.manager.Connect(c.Request.Context(), id, competitor); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "device_id": id})
}

func (s *Server) disconnect(c *gin.Context) {
	id := c.Param("id")
	if err := s.manager.Disconnect(id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "device_id": id})
}

func (s *Server) disconnectAll(c *gin.Context) {
	if err := s.manager.DisconnectAll(); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) allStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stats": s.manager.AllStats()})
}

func (s *Server) fighterStats(c *gin.Context) {
	rec, ok := s.manager.MaxStats(c.Param("fighter"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "no stats for " + c.Param("fighter")})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) resetStats(c *gin.Context) {
	s.manager.ResetStats(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) battleConfig(c *gin.Context) {
	var data map[string]any
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid battle config: " + err.Error()})
		return
	}
	if err := s.manager.BroadcastBattleConfig(c.Request.Context(), data); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) viewChange(c *gin.Context) {
	var req viewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid view change: " + err.Error()})
		return
	}
	if err := s.manager.BroadcastViewChange(c.Request.Context(), req.View, req.Data); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) cleanup(c *gin.Context) {
	if err := s.manager.Cleanup(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) recentEvents(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "limit must be a positive integer"})
		return
	}
	entries, err := s.events.Recent(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": entries})
}
