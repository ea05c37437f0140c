// Package httpapi is the read-only HTTP surface of the bot: health, metrics,
// report history, GeoJSON export, leaderboard and the live websocket feed.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fardannozami/amchegoa/internal/app/usecase"
	"github.com/fardannozami/amchegoa/internal/metrics"
)

type Server struct {
	engine      *gin.Engine
	history     *usecase.HistoryUsecase
	leaderboard *usecase.GetLeaderboardUsecase
	hub         *Hub
	log         *zap.Logger
}

func NewServer(history *usecase.HistoryUsecase, leaderboard *usecase.GetLeaderboardUsecase, hub *Hub, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		engine:      gin.New(),
		history:     history,
		leaderboard: leaderboard,
		hub:         hub,
		log:         log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.engine
	r.Use(s.recovery(), s.requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"timestamp":    time.Now().UTC(),
			"feed_clients": s.hub.Clients(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", gin.WrapF(s.hub.ServeWS))

	api := r.Group("/api")
	{
		api.GET("/leaderboard", s.getLeaderboard)
		api.GET("/reports/:namespace", s.getReports)
		api.GET("/reports/:namespace/geojson", s.getReportsGeoJSON)
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting http server", zap.String("addr", addr))
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("http server stopped")
	return nil
}

func (s *Server) getLeaderboard(c *gin.Context) {
	entries, err := s.leaderboard.Entries(c.Request.Context())
	if err != nil {
		s.log.Error("leaderboard failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if entries == nil {
		entries = []usecase.LeaderboardEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) getReports(c *gin.Context) {
	reports, err := s.history.Execute(c.Request.Context(), c.Param("namespace"))
	if err != nil {
		s.log.Error("load reports failed", zap.String("namespace", c.Param("namespace")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

func (s *Server) getReportsGeoJSON(c *gin.Context) {
	reports, err := s.history.Execute(c.Request.Context(), c.Param("namespace"))
	if err != nil {
		s.log.Error("load reports failed", zap.String("namespace", c.Param("namespace")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	body, err := ReportsFeatureCollection(reports).MarshalJSON()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.Data(http.StatusOK, "application/geo+json", body)
}

func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("panic recovered", zap.Any("panic", r))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
				c.Abort()
			}
		}()
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		status := c.Writer.Status()
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		s.log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Float64("duration", time.Since(start).Seconds()),
		)
	}
}
