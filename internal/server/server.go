// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/raine/auto-inspect-bot/internal/config"
	"github.com/raine/auto-inspect-bot/internal/fetch"
	"github.com/raine/auto-inspect-bot/internal/inspect"
	"github.com/raine/auto-inspect-bot/internal/listing"
	"github.com/rs/zerolog/log"
)

const (
	maxSimilarLimit = 20
	shutdownTimeout = 10 * time.Second
)

// Inspector is the part of the analysis service the API serves.
type Inspector interface {
	AnalyzeURL(ctx context.Context, url string) (*listing.AnalysisReport, error)
	Listing(ctx context.Context, id string) (*listing.AdRecord, error)
	Similar(ctx context.Context, id string, limit int) (*listing.AdRecord, listing.ComparableSet, error)
}

// Server represents an HTTP server with lifecycle management.
type Server struct {
	router    *gin.Engine
	server    *http.Server
	inspector Inspector
	now       func() time.Time
}

type analyzeRequest struct {
	URL string `json:"url" binding:"required"`
}

type similarResponse struct {
	Target listing.AdRecord   `json:"target"`
	Window listing.Window     `json:"window"`
	Ads    []listing.AdRecord `json:"ads"`
	Count  int                `json:"count"`
}

// New creates the HTTP server listening on port.
func New(port string, inspector Inspector) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:    gin.New(),
		inspector: inspector,
		now:       time.Now,
	}
	s.router.Use(gin.Recovery(), requestLogger())
	s.routes()

	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // an analysis fetches the page and several photos
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Router returns the underlying Gin engine.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) routes() {
	s.router.GET("/", s.health)

	v1 := s.router.Group("/api/v1")
	v1.POST("/analyze", s.analyze)
	v1.GET("/ads/:id", s.getAd)
	v1.GET("/ads/:id/similar", s.similar)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.server.Addr).Msg("starting http server")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("http server stopped")
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   config.AppName,
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if u, err := url.Parse(req.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url must be an absolute http(s) link"})
		return
	}

	report, err := s.inspector.AnalyzeURL(c.Request.Context(), req.URL)
	switch {
	case errors.Is(err, fetch.ErrGone):
		c.JSON(http.StatusGone, gin.H{"error": "Listing is no longer available"})
		return
	case errors.Is(err, listing.ErrInputUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Listing page could not be retrieved", "details": err.Error()})
		return
	case err != nil:
		log.Error().Err(err).Str("url", req.URL).Msg("analysis failed")
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Analysis failed"})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (s *Server) getAd(c *gin.Context) {
	id := c.Param("id")

	rec, err := s.inspector.Listing(c.Request.Context(), id)
	if err != nil {
		s.lookupError(c, id, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (s *Server) similar(c *gin.Context) {
	id := c.Param("id")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxSimilarLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 20"})
			return
		}
		limit = n
	}

	rec, set, err := s.inspector.Similar(c.Request.Context(), id, limit)
	if err != nil {
		s.lookupError(c, id, err)
		return
	}

	ads := set.Records
	if ads == nil {
		ads = []listing.AdRecord{}
	}
	c.JSON(http.StatusOK, similarResponse{
		Target: *rec,
		Window: set.Window,
		Ads:    ads,
		Count:  len(ads),
	})
}

func (s *Server) lookupError(c *gin.Context, id string, err error) {
	switch {
	case errors.Is(err, inspect.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Ad not found"})
	case errors.Is(err, listing.ErrStoreUnavailable):
		log.Error().Err(err).Str("id", id).Msg("store unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store unavailable"})
	default:
		log.Error().Err(err).Str("id", id).Msg("lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lookup failed"})
	}
}

// requestLogger logs one line per request through the global zerolog logger.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		evt := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			evt = log.Warn()
		}
		if len(c.Errors) > 0 {
			evt = evt.Str("errors", c.Errors.String())
		}
		evt.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("clientIp", c.ClientIP()).
			Msg("http request")
	}
}
