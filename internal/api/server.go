package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scc-project/scc/internal/config"
	"github.com/scc-project/scc/internal/db"
	"github.com/scc-project/scc/internal/events"
	"github.com/scc-project/scc/internal/game"
	"github.com/scc-project/scc/internal/health"
	intnet "github.com/scc-project/scc/internal/network"
)

// GameServer is the view of the running game server the API reports on.
type GameServer interface {
	Status() events.ServerStatusPayload
	Sessions() []intnet.SessionInfo
	Registry() *game.Registry
}

// HandHistory is the read side of the hand history store.
type HandHistory interface {
	RecentHands(ctx context.Context, q db.HandQuery) ([]db.HandRecord, error)
	Leaderboard(ctx context.Context, limit int) ([]db.LeaderboardEntry, error)
}

// HealthReporter exposes the latest health check results.
type HealthReporter interface {
	Report() []health.CheckResult
	Healthy() bool
}

// Server is the read-only REST API of the game server.
type Server struct {
	cfg     *config.Config
	game    GameServer
	history HandHistory
	health  HealthReporter
	logger  zerolog.Logger

	mu         sync.Mutex
	httpServer *http.Server
	router     *gin.Engine
}

// NewServer creates a new API server. history may be nil when the hand
// history is disabled.
func NewServer(cfg *config.Config, gs GameServer, history HandHistory) *Server {
	// Set Gin mode based on log level
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{
		cfg:     cfg,
		game:    gs,
		history: history,
		logger:  log.With().Str("component", "api").Logger(),
	}
}

// SetHealth injects the health check manager (called after all components
// are initialized).
func (s *Server) SetHealth(h HealthReporter) {
	s.health = h
}

// Start serves the API until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.API.ListenAddr()

	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	// SO_REUSEADDR for immediate rebinding after restart
	lc := intnet.ReuseAddrListenConfig()
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start API server on %s: %w", addr, err)
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("REST API server starting")

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server error: %w", err)
	}

	return nil
}

// Handler returns the router, building it on first use.
func (s *Server) Handler() http.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.router == nil {
		s.router = s.buildRouter()
	}
	return s.router
}

// buildRouter creates the Gin router with all routes and middleware.
func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(SecurityHeaders())

	allowedOrigins := s.cfg.API.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Must be false when AllowOrigins is "*"
		MaxAge:           12 * time.Hour,
	}))

	router.Use(NewRateLimiter(s.cfg.API.RateLimitRPS).Middleware())

	api := router.Group("/api")
	{
		api.GET("/ping", s.handlePing)
		api.GET("/status", s.handleStatus)
		api.GET("/health", s.handleHealth)
		api.GET("/sessions", s.handleSessions)
		api.GET("/players", s.handlePlayers)
		api.GET("/hands", s.handleHands)
		api.GET("/leaderboard", s.handleLeaderboard)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	return router
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()

	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	}
	return nil
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}
