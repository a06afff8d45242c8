package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	cache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/rconsole-project/rconsole/internal/config"
	"github.com/rconsole-project/rconsole/internal/history"
	"github.com/rconsole-project/rconsole/internal/rcon"
)

const statusCacheKey = "session_status"

// Executor is the session surface the gateway drives.
type Executor interface {
	Execute(ctx context.Context, command string) (string, error)
	IsConnected() bool
	IsAuthenticated() bool
	Address() string
}

// HistoryReader is the audit log surface the gateway reads.
type HistoryReader interface {
	Recent(limit int) ([]history.Entry, error)
	Search(term string, limit int) ([]history.Entry, error)
	Count() (int64, error)
}

// Server is the HTTP gateway in front of one RCON session.
type Server struct {
	cfg     config.GatewayConfig
	session Executor
	history HistoryReader
	metrics http.Handler

	statusCache *cache.Cache

	httpServer *http.Server
	router     *gin.Engine
}

// NewServer creates the gateway. history and metrics may be nil when the
// corresponding feature is disabled.
func NewServer(cfg config.GatewayConfig, session Executor, hist HistoryReader, metrics http.Handler) *Server {
	gin.SetMode(gin.ReleaseMode)

	ttl := time.Duration(cfg.StatusCacheSec) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	s := &Server{
		cfg:         cfg,
		session:     session,
		history:     hist,
		metrics:     metrics,
		statusCache: cache.New(ttl, 2*ttl),
	}
	s.router = s.buildRouter()
	return s
}

// Start runs the gateway until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("gateway starting")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway error: %w", err)
	}
	return nil
}

// Stop gracefully stops the gateway.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// buildRouter creates the Gin router with all routes and middleware.
func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(SecurityHeaders())

	allowedOrigins := s.cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Must be false when AllowOrigins is "*"
		MaxAge:           12 * time.Hour,
	}))

	rateLimiter := NewRateLimiter(s.cfg.RateLimitRPS)
	router.Use(rateLimiter.Middleware())

	// ---- Public endpoints (no auth required) ----
	public := router.Group("/api/public")
	{
		public.GET("/ping", s.handlePing)
	}

	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics))
	}

	// ---- Protected endpoints ----
	protected := router.Group("/api")
	protected.Use(TokenAuth(s.cfg.APIToken))
	{
		protected.POST("/command", s.handleCommand)
		protected.GET("/status", s.handleStatus)
		protected.GET("/history", s.handleHistory)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	return router
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "rconsole",
	})
}

type commandRequest struct {
	Command string `json:"command" binding:"required"`
}

// handleCommand executes one command on the session and returns its reply.
func (s *Server) handleCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command is required"})
		return
	}

	start := time.Now()
	reply, err := s.session.Execute(c.Request.Context(), req.Command)
	if err != nil {
		c.JSON(commandErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"command":     req.Command,
		"reply":       reply,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// commandErrorStatus maps session errors to HTTP status codes.
func commandErrorStatus(err error) int {
	switch {
	case errors.Is(err, rcon.ErrNotConnected),
		errors.Is(err, rcon.ErrNotAuthorized),
		errors.Is(err, rcon.ErrSendUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, rcon.ErrRequestPending):
		return http.StatusConflict
	case errors.Is(err, rcon.ErrPacketTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, rcon.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// handleStatus reports the session state. The answer is cached briefly
// so dashboard polling does not hammer the session.
func (s *Server) handleStatus(c *gin.Context) {
	if cached, ok := s.statusCache.Get(statusCacheKey); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	status := gin.H{
		"server":        s.session.Address(),
		"connected":     s.session.IsConnected(),
		"authenticated": s.session.IsAuthenticated(),
	}
	if s.history != nil {
		if n, err := s.history.Count(); err == nil {
			status["commands_recorded"] = n
		}
	}

	s.statusCache.SetDefault(statusCacheKey, status)
	c.JSON(http.StatusOK, status)
}

// handleHistory returns recent audit log entries, optionally filtered by
// a ?q= substring, newest first.
func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is disabled"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	var (
		entries []history.Entry
		err     error
	)
	if term := c.Query("q"); term != "" {
		entries, err = s.history.Search(term, limit)
	} else {
		entries, err = s.history.Recent(limit)
	}
	if err != nil {
		log.Error().Err(err).Msg("history query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history query failed"})
		return
	}

	if entries == nil {
		entries = []history.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
