// Package api exposes the ledger over HTTP: transaction CRUD (create and
// non-financial patch only), adjustments, period close/reopen, summaries
// and exports.
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

	"rental-ledger/internal/auth"
	"rental-ledger/internal/cache"
	"rental-ledger/internal/database"
	"rental-ledger/internal/export"
	"rental-ledger/internal/ledger"
	"rental-ledger/internal/logging"
)

// RateLimiter provides simple in-memory rate limiting per client+endpoint
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	AllowedOrigins  string
	RateLimitPerMin int
	ProductionMode  bool
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	config      ServerConfig
	repo        *database.Repository
	ledger      *ledger.Service
	exporter    *export.Exporter
	authService *auth.Service // nil when auth is disabled
	authEnabled bool
	labels      *cache.LabelCache
	rateLimiter *RateLimiter
	log         *logging.Logger
}

// NewServer creates the API server.
func NewServer(
	cfg ServerConfig,
	repo *database.Repository,
	ledgerSvc *ledger.Service,
	exporter *export.Exporter,
	authService *auth.Service, // can be nil if auth is disabled
	labels *cache.LabelCache,
	log *logging.Logger,
) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "" || cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	limit := cfg.RateLimitPerMin
	if limit <= 0 {
		limit = 300
	}

	server := &Server{
		router:      router,
		config:      cfg,
		repo:        repo,
		ledger:      ledgerSvc,
		exporter:    exporter,
		authService: authService,
		authEnabled: authService != nil,
		labels:      labels,
		rateLimiter: NewRateLimiter(limit, time.Minute),
		log:         log.WithComponent("api"),
	}
	router.Use(server.requestLogger())
	server.setupRoutes()
	return server
}

// rateLimitMiddleware limits requests per client IP and endpoint.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP() + ":" + c.FullPath()
		if !s.rateLimiter.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "RATE_LIMITED",
				"message": "too many requests, please try again later",
			})
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	// Auth routes (public, no authentication required)
	if s.authEnabled {
		s.router.POST("/api/auth/login", s.handleLogin)
	}
	s.router.GET("/api/auth/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"auth_enabled": s.authEnabled})
	})

	api := s.router.Group("/api")
	api.Use(s.rateLimitMiddleware())
	if s.authEnabled {
		api.Use(auth.Middleware(s.authService.JWTManager()))
	}

	{
		// Transaction endpoints. There is no DELETE and no financial
		// PUT: corrections are adjustments.
		api.POST("/transactions", s.handleCreateTransaction)
		api.GET("/transactions", s.handleListTransactions)
		api.GET("/transactions/:id", s.handleGetTransaction)
		api.PATCH("/transactions/:id", s.handlePatchTransaction)
		api.POST("/transactions/:id/adjust", s.handleAdjustTransaction)
		api.POST("/transactions/:id/void", s.handleVoidTransaction)

		// Period endpoints; close/reopen are admin-only.
		api.GET("/periods", s.handleListPeriods)
		api.GET("/periods/:year/:month", s.handleGetPeriod)
		closeGroup := api.Group("")
		if s.authEnabled {
			closeGroup.Use(auth.RequireAdmin())
		}
		closeGroup.POST("/periods/:year/:month/close", s.handleClosePeriod)
		closeGroup.POST("/periods/:year/:month/reopen", s.handleReopenPeriod)

		// Reporting
		api.GET("/summary/:year/:month", s.handleGetSummary)
		api.GET("/export/csv", s.handleExportCSV)
		api.GET("/export/report/:year/:month", s.handleExportReport)

		// Apartment registry
		api.POST("/apartments", s.handleCreateApartment)
		api.GET("/apartments", s.handleListApartments)
		api.PUT("/apartments/:id/title", s.handleRenameApartment)

		// Booking ingestion
		api.POST("/bookings", s.handleCreateBooking)
		api.POST("/bookings/:id/transactions", s.handleRecordBooking)
		api.POST("/bookings/:id/cancel", s.handleCancelBooking)
	}
}

// Start runs the HTTP server until shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info().Str("addr", addr).Msg("starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Router exposes the gin engine; used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	if err := s.repo.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "time": time.Now().UTC()})
}
