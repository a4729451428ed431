// Package server exposes the manager over HTTP and serves the dashboard
// WebSocket.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/srg/beathard/internal/detection"
	"github.com/srg/beathard/internal/journal"
	"github.com/srg/beathard/internal/registry"
	"github.com/srg/beathard/internal/stats"
	"github.com/srg/beathard/internal/supervisor"
)

// Manager is the device and stats surface the API drives.
type Manager interface {
	Status() supervisor.Status
	Scan(ctx context.Context) ([]supervisor.ScanResult, error)
	ListConnected() []registry.Connected
	Connect(ctx context.Context, id string, competitor *detection.Competitor) error
	Disconnect(id string) error
	DisconnectAll() error
	AllStats() []stats.Record
	MaxStats(fighterID string) (stats.Record, bool)
	ResetStats(ctx context.Context)
	BroadcastBattleConfig(ctx context.Context, data any) error
	BroadcastViewChange(ctx context.Context, view string, data any) error
	Cleanup(ctx context.Context) error
}

// EventLog returns recently journaled messages.
type EventLog interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

type Options struct {
	Addr      string
	StaticDir string
}

type Server struct {
	opts    Options
	manager Manager
	hub     http.Handler
	events  EventLog
	logger  *logrus.Logger
	router  *gin.Engine
}

// New builds the router. hub and events are optional.
func New(manager Manager, hub http.Handler, events EventLog, opts Options, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Server{
		opts:    opts,
		manager: manager,
		hub:     hub,
		events:  events,
		logger:  logger,
		router:  gin.New(),
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	if s.hub != nil {
		s.router.GET("/ws", gin.WrapH(s.hub))
	}

	api := s.router.Group("/api")
	api.GET("/status", s.status)
	api.GET("/devices", s.listDevices)
	api.GET("/devices/scan", s.scan)
	api.POST("/devices/disconnect-all", s.disconnectAll)
	api.POST("/devices/:id/connect", s.connect)
	api.POST("/devices/:id/disconnect", s.disconnect)
	api.GET("/stats", s.allStats)
	api.GET("/stats/:fighter", s.fighterStats)
	api.POST("/stats/reset", s.resetStats)
	api.POST("/battle-config", s.battleConfig)
	api.POST("/view", s.viewChange)
	api.POST("/cleanup", s.cleanup)
	if s.events != nil {
		api.GET("/events", s.recentEvents)
	}

	if s.opts.StaticDir != "" {
		s.router.NoRoute(gin.WrapH(http.FileServer(http.Dir(s.opts.StaticDir))))
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("HTTP request")
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.opts.Addr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
