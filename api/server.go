// Package api exposes the HTTP surface of the document assistant:
// upload and file management, the sync and streaming chat endpoints,
// and session lifecycle.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/docaihq/docai/api/handlers"
	"github.com/docaihq/docai/api/middleware"
	"github.com/docaihq/docai/pkg/domain"
)

// Config contains server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigins []string
	LogLevel    string
	LogJSON     bool

	// MaxUploadBytes caps the multipart body read by the upload handler.
	MaxUploadBytes int64
}

// Deps are the wired application components the handlers serve.
type Deps struct {
	Ingestor handlers.Ingestor
	Pipeline handlers.Asker
	Sessions domain.SessionStore
}

// Server is the HTTP API server.
type Server struct {
	config Config
	deps   Deps
	router *gin.Engine
	server *http.Server
	logger zerolog.Logger
}

// NewServer creates a configured server. Start must be called to begin
// serving.
func NewServer(config Config, deps Deps) *Server {
	zerolog.SetGlobalLevel(parseLogLevel(config.LogLevel))
	if !config.LogJSON {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	logger := log.With().Str("component", "api-server").Logger()

	s := &Server{
		config: config,
		deps:   deps,
		logger: logger,
	}
	s.setupRouter()

	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: SSE responses stay open for the life of a
		// generation stream.
		IdleTimeout: 120 * time.Second,
	}
	return s
}

func (s *Server) setupRouter() {
	if s.config.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Recovery(s.logger))

	origins := s.config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s.setupRoutes()
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	files := handlers.NewFilesHandler(s.deps.Ingestor, s.config.MaxUploadBytes)
	chat := handlers.NewChatHandler(s.deps.Pipeline)
	sessions := handlers.NewSessionsHandler(s.deps.Sessions)

	v1 := s.router.Group("/v1")
	{
		v1.POST("/upload", files.Upload)
		v1.GET("/files", files.List)
		v1.DELETE("/files/:file_id", files.Delete)

		v1.POST("/chat", chat.Chat)
		v1.POST("/chat/stream", chat.ChatStream)

		v1.DELETE("/sessions/:session_id", sessions.Delete)
	}
}

// Start runs the server until it is stopped or fails. SIGINT and
// SIGTERM trigger a graceful shutdown.
func (s *Server) Start() error {
	go s.handleShutdown()

	s.logger.Info().
		Str("host", s.config.Host).
		Int("port", s.config.Port).
		Msg("Starting API server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Shutting down API server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info().Msg("API server stopped")
	return nil
}

func (s *Server) handleShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := s.Stop(); err != nil {
		s.logger.Error().Err(err).Msg("Error during shutdown")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
