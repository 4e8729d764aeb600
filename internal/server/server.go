// Package server exposes the webhook, published summaries and a health
// check over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edgard/scribrbot/internal/config"
	"github.com/edgard/scribrbot/internal/logger"
	"github.com/edgard/scribrbot/internal/scribe"
)

// SecretTokenHeader carries the secret set when the webhook was registered.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookProcessor handles one raw update and returns its terminal status.
type WebhookProcessor interface {
	Handle(ctx context.Context, raw []byte) (string, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the HTTP routes.
type Deps struct {
	Logger  *slog.Logger
	Config  config.ServerConfig
	Secret  string
	Webhook WebhookProcessor
	// Documents serves published summaries by their full request path.
	Documents http.Handler
	Health    Pinger
}

// Server is the HTTP front end of the bot.
type Server struct {
	httpServer *http.Server
	cfg        config.ServerConfig
	logger     *slog.Logger
}

// New builds the router and the http.Server around it.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:         deps.Config.Addr,
			Handler:      NewRouter(deps),
			ReadTimeout:  deps.Config.ReadTimeout,
			WriteTimeout: deps.Config.WriteTimeout,
		},
		cfg:    deps.Config,
		logger: deps.Logger.With("component", "http_server"),
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.cfg.Addr, "webhook_path", s.cfg.WebhookPath)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutdown signal received, stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped.")
	return nil
}

// NewRouter registers the routes on a gin engine in release mode.
func NewRouter(deps Deps) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	log := deps.Logger
	if log == nil {
		log = logger.Discard()
	}

	r := gin.New()
	r.Use(gin.Recovery(), logger.Middleware(log))

	r.GET("/health", healthHandler(deps.Health))
	r.POST(deps.Config.WebhookPath, webhookHandler(deps, log.With("component", "webhook_http")))
	if deps.Documents != nil {
		r.GET("/summaries/*path", documentsHandler(deps.Documents))
	}
	return r
}

func healthHandler(p Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p != nil {
			if err := p.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func webhookHandler(deps Deps, log *slog.Logger) gin.HandlerFunc {
	secret := []byte(deps.Secret)
	maxBody := deps.Config.MaxBodyBytes

	return func(c *gin.Context) {
		if len(secret) > 0 && subtle.ConstantTimeCompare([]byte(c.GetHeader(SecretTokenHeader)), secret) != 1 {
			log.Warn("Rejected webhook with bad secret token", "client_ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid secret token"})
			return
		}

		body := c.Request.Body
		if maxBody > 0 {
			body = http.MaxBytesReader(c.Writer, body, maxBody)
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}

		status, err := deps.Webhook.Handle(c.Request.Context(), raw)
		if err != nil {
			// 4xx: Telegram does not redeliver.
			if errors.Is(err, scribe.ErrMalformedEvent) || errors.Is(err, scribe.ErrEntityOutOfRange) {
				log.Warn("Rejected malformed update", "error", err)
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			log.Error("Webhook handler failed", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": status})
	}
}

// documentsHandler serves files but never directory listings.
func documentsHandler(docs http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasSuffix(c.Request.URL.Path, "/") {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		docs.ServeHTTP(c.Writer, c.Request)
	}
}
