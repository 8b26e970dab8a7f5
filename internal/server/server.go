package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jira-jenkins-integ/internal/config"
	"github.com/jira-jenkins-integ/internal/descriptor"
)

const shutdownTimeout = 30 * time.Second

// Server exposes the descriptor endpoints and the step endpoint.
type Server struct {
	desc       *descriptor.Descriptor
	adminToken string
	server     *http.Server
	log        *slog.Logger
}

// New builds the server. stepHandler serves step invocations; adminToken guards the
// admin-only endpoints and, when empty, nobody is an administrator.
func New(cfg config.ServerConfig, desc *descriptor.Descriptor, stepHandler http.Handler, adminToken string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		desc:       desc,
		adminToken: adminToken,
		log:        logger,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), loggingMiddleware(logger))

	router.GET("/healthz", s.handleHealth)

	site := router.Group("/descriptor/site")
	site.GET("/checkSite", s.handleCheckSite)
	site.GET("/checkWebhookUrl", s.handleCheckWebhookURL)
	site.GET("/fillCredentialsIdItems", s.handleFillCredentials)
	site.POST("/testConnection", s.handleTestConnection)

	router.GET("/descriptor/step/fillSiteItems", s.handleFillSiteItems)
	router.POST("/steps/jiraSendBuildInfo", gin.WrapH(stepHandler))

	s.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout.Duration,
		ReadHeaderTimeout: cfg.ReadTimeout.Duration,
		WriteTimeout:      cfg.WriteTimeout.Duration,
		IdleTimeout:       cfg.IdleTimeout.Duration,
	}
	return s
}

// Handler returns the HTTP handler with all routes.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting http server", slog.String("address", s.server.Addr))
		if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) handleCheckSite(c *gin.Context) {
	c.JSON(http.StatusOK, s.desc.CheckSite(c.Query("value")))
}

func (s *Server) handleCheckWebhookURL(c *gin.Context) {
	c.JSON(http.StatusOK, s.desc.CheckWebhookURL(c.Query("value")))
}

func (s *Server) handleFillCredentials(c *gin.Context) {
	items, err := s.desc.CredentialItems(c.Request.Context(), s.isAdmin(c), c.Query("credentialsId"))
	if err != nil {
		s.log.Error("list credentials", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list credentials"})
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) handleTestConnection(c *gin.Context) {
	v, err := s.desc.TestConnection(c.Request.Context(), s.isAdmin(c),
		c.PostForm("site"), c.PostForm("webhookUrl"), c.PostForm("credentialsId"))
	if err != nil {
		if errors.Is(err, descriptor.ErrForbidden) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		s.log.Error("test connection", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "connection test failed"})
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) handleFillSiteItems(c *gin.Context) {
	c.JSON(http.StatusOK, s.desc.SiteItems())
}

func (s *Server) isAdmin(c *gin.Context) bool {
	if s.adminToken == "" {
		return false
	}
	auth := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.adminToken)) == 1
}

func loggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
