package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/laskarbuah/freelance-portal/internal/guard"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"

	// authCookie is set by the web shell after login (24h max-age)
	authCookie = "auth_token"
)

// requestIDMiddleware tags each request with a ULID, reusing a valid inbound one
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := ulid.ParseStrict(id); err != nil {
			id = ulid.Make().String()
		}

		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog.
// Only the path is logged; headers and bodies may carry tokens.
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		ev := s.logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = s.logger.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(requestIDKey)).
			Msg("HTTP request")
	}
}

func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message string) {
	log.Warn().Err(err).Str("request_id", c.GetString(requestIDKey)).Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
	c.Abort()
}

// webShellHandler serves the static shell from root behind the route guard.
// Unknown paths fall back to index.html so client-side routes resolve.
func (s *Server) webShellHandler(root string) gin.HandlerFunc {
	fileServer := http.FileServer(http.Dir(root))

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}

		urlPath := path.Clean("/" + c.Request.URL.Path)

		token, _ := c.Cookie(authCookie)
		if d := guard.Decide(token != "", urlPath); !d.Allowed() {
			c.Redirect(http.StatusFound, d.Redirect)
			return
		}

		if info, err := os.Stat(filepath.Join(root, filepath.FromSlash(urlPath))); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(c.Writer, c.Request)
			return
		}

		c.File(filepath.Join(root, "index.html"))
	}
}
