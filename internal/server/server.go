// Package server hosts the portal HTTP API: the authenticated proxy to the
// HR API, the S3 upload routes, and the optional guarded web shell.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/laskarbuah/freelance-portal/internal/config"
	"github.com/laskarbuah/freelance-portal/internal/objectstore"
	"github.com/laskarbuah/freelance-portal/internal/proxy"
	"github.com/laskarbuah/freelance-portal/internal/upload"
)

// Server represents the HTTP server
type Server struct {
	router  *gin.Engine
	config  *config.Config
	logger  zerolog.Logger
	proxy   *proxy.Proxy
	uploads *upload.Gateway
	version string
}

// Option customizes server dependencies
type Option func(*options)

type options struct {
	store     upload.Putter
	transport http.RoundTripper
}

// WithObjectStore replaces the S3-backed store
func WithObjectStore(store upload.Putter) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithUpstreamTransport replaces the round tripper used to reach the HR API
func WithUpstreamTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

// New creates a new server instance
func New(ctx context.Context, cfg *config.Config, zlog zerolog.Logger, version string, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	p, err := proxy.New(proxy.Options{
		BaseURL:     cfg.Upstream.BaseURL,
		HeaderKey:   cfg.Upstream.HeaderKey,
		HeaderValue: cfg.Upstream.APIKey,
		UserAgent:   cfg.Upstream.UserAgent,
		Prefix:      proxy.DefaultPrefix,
		Timeout:     cfg.Upstream.Timeout,
		Transport:   o.transport,
	}, zlog)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy: %w", err)
	}

	store := o.store
	if store == nil {
		s3, err := objectstore.New(ctx, objectstore.Config{
			Bucket:         cfg.Storage.Bucket,
			Region:         cfg.Storage.Region,
			AccessKeyID:    cfg.Storage.AccessKeyID,
			SecretKey:      cfg.Storage.SecretAccessKey,
			Endpoint:       cfg.Storage.Endpoint,
			ForcePathStyle: cfg.Storage.ForcePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create object store: %w", err)
		}
		store = s3
	}

	server := &Server{
		config:  cfg,
		logger:  zlog,
		proxy:   p,
		uploads: upload.NewGateway(store, zlog),
		version: version,
	}

	server.setupRouter()

	return server, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	s.router = gin.New()

	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())

	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s.router.GET("/health", s.healthCheck)

	// Everything under the prefix is relayed as-is, status and body included
	s.router.Any(proxy.DefaultPrefix+"/*path", gin.WrapH(s.proxy))

	s.router.POST("/api/upload-s3", s.uploadAttendancePhoto)
	s.router.POST("/api/upload-profile-s3", s.uploadProfilePhoto)

	if s.config.Web.Root != "" {
		s.router.NoRoute(s.webShellHandler(s.config.Web.Root))
	}
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "freelance-portal",
		"version":   s.version,
	})
}

// Start runs the HTTP server until SIGINT or SIGTERM
func (s *Server) Start() error {
	addr := ":" + s.config.Server.Port

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
		// Uploads are bounded by size, not by time; keep the generous timeouts
		ReadTimeout:       180 * time.Second,
		WriteTimeout:      180 * time.Second,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       300 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		s.logger.Error().Err(err).Msg("HTTP server error")
		return err
	case <-sigChan:
		s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}
