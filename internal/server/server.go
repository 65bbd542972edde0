// Package server wires the WalletGuard services into one HTTP server
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver
	"golang.org/x/sync/errgroup"

	"github.com/mbd888/walletguard/internal/advisory"
	"github.com/mbd888/walletguard/internal/alerts"
	"github.com/mbd888/walletguard/internal/circuitbreaker"
	"github.com/mbd888/walletguard/internal/config"
	"github.com/mbd888/walletguard/internal/contract"
	"github.com/mbd888/walletguard/internal/health"
	"github.com/mbd888/walletguard/internal/idgen"
	"github.com/mbd888/walletguard/internal/logging"
	"github.com/mbd888/walletguard/internal/metrics"
	"github.com/mbd888/walletguard/internal/patterns"
	"github.com/mbd888/walletguard/internal/phishing"
	"github.com/mbd888/walletguard/internal/publisher"
	"github.com/mbd888/walletguard/internal/ratelimit"
	"github.com/mbd888/walletguard/internal/realtime"
	"github.com/mbd888/walletguard/internal/security"
	"github.com/mbd888/walletguard/internal/traces"
	"github.com/mbd888/walletguard/internal/transactions"
	"github.com/mbd888/walletguard/internal/validation"
	"github.com/mbd888/walletguard/internal/webhooks"
	"github.com/mbd888/walletguard/migrations"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg     *config.Config
	version string

	transactions *transactions.Service
	alerts       *alerts.Service
	phishing     *phishing.Handler
	hub          *realtime.Hub
	kafka        *publisher.Kafka   // nil unless KAFKA_BROKERS is set
	notifier     *webhooks.Notifier // nil unless ALERT_WEBHOOK_URL is set
	advisor      advisory.Advisor   // advisory.Disabled{} without an API key
	breaker      *circuitbreaker.Breaker
	rateLimiter  *ratelimit.Limiter
	health       *health.Registry
	tracing      func(context.Context) error

	db      *sql.DB // nil if using in-memory
	router  *gin.Engine
	httpSrv *http.Server
	logger  *slog.Logger
	now     func() time.Time

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion sets the version reported by /health and tracing.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithAdvisor replaces the advisory client built from config.
func WithAdvisor(a advisory.Advisor) Option {
	return func(s *Server) {
		s.advisor = a
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		version: "dev",
		breaker: circuitbreaker.New(5, 30*time.Second),
		health:  health.NewRegistry(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.New(cfg.LogLevel, cfg.LogFormat)
	}

	ctx := context.Background()

	shutdownTracing, err := traces.Init(ctx, cfg.OTLPEndpoint, s.version, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}
	s.tracing = shutdownTracing

	catalog, err := patterns.Load(cfg.PatternCatalogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load pattern catalog: %w", err)
	}
	if cfg.PatternCatalogFile != "" {
		s.logger.Info("pattern catalog extended", "file", cfg.PatternCatalogFile)
	}

	txStore, alertStore, err := s.openStores(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.SeedFixtures {
		if err := s.seed(ctx, txStore, alertStore); err != nil {
			return nil, err
		}
	}

	// Outbound events: websocket always, Kafka and the alert webhook when configured.
	s.hub = realtime.NewHub(s.logger, cfg.CORSOrigins...)
	sinks := publisher.Fanout{s.hub}
	if cfg.KafkaBrokers != "" {
		k, err := publisher.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, s.logger)
		if err != nil {
			return nil, err
		}
		s.kafka = k
		sinks = append(sinks, k)
		s.logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic)
	}
	if cfg.AlertWebhookURL != "" {
		n, err := webhooks.New(webhooks.Config{
			URL:    cfg.AlertWebhookURL,
			Secret: cfg.AlertWebhookSecret,
		}, s.breaker, s.logger)
		if err != nil {
			return nil, fmt.Errorf("alert webhook: %w", err)
		}
		s.notifier = n
		sinks = append(sinks, n)
		s.logger.Info("alert webhook enabled")
	}

	if s.advisor == nil {
		s.advisor = s.buildAdvisor()
	}

	s.alerts = alerts.NewService(alertStore, sinks)
	s.transactions = transactions.NewService(txStore, contract.NewAnalyzer(catalog),
		transactions.WithAdvisor(s.advisor),
		transactions.WithAlerter(s.alerts),
		transactions.WithEvents(sinks),
		transactions.WithDefaultNetworkID(cfg.DefaultNetworkID),
	)
	s.phishing = phishing.NewHandler(phishing.NewChecker(catalog), s.alerts)

	if s.db != nil {
		s.health.Register("database", health.PingChecker("database", s.db))
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)
	return s, nil
}

func (s *Server) buildAdvisor() advisory.Advisor {
	if !s.cfg.AdvisoryEnabled() {
		s.logger.Info("advisory scoring disabled, using deterministic scorer")
		return advisory.Disabled{}
	}
	s.logger.Info("advisory scoring enabled", "model", s.cfg.AdvisoryModel, "base_url", s.cfg.AdvisoryBaseURL)
	return advisory.New(advisory.Config{
		BaseURL: s.cfg.AdvisoryBaseURL,
		APIKey:  s.cfg.AdvisoryAPIKey,
		Model:   s.cfg.AdvisoryModel,
		Timeout: s.cfg.AdvisoryTimeout,
	}, advisory.WithBreaker(s.breaker), advisory.WithLogger(s.logger))
}

// openStores returns Postgres stores when DATABASE_URL is set, otherwise in-memory.
func (s *Server) openStores(ctx context.Context) (transactions.Store, alerts.Store, error) {
	if s.cfg.DatabaseURL == "" {
		s.logger.Info("using in-memory storage")
		return transactions.NewMemoryStore(), alerts.NewMemoryStore(), nil
	}

	db, err := sql.Open("postgres", s.cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s.db = db
	s.logger.Info("connected to postgres", "dsn", maskDSN(s.cfg.DatabaseURL))
	return transactions.NewPostgresStore(db), alerts.NewPostgresStore(db), nil
}

// seed loads the demo fixtures into empty stores.
func (s *Server) seed(ctx context.Context, txStore transactions.Store, alertStore alerts.Store) error {
	now := s.now()

	stats, err := txStore.Stats(ctx)
	if err != nil {
		return fmt.Errorf("seed transactions: %w", err)
	}
	if stats.TotalTransactionsScanned == 0 {
		if err := transactions.Seed(ctx, txStore, now); err != nil {
			return fmt.Errorf("seed transactions: %w", err)
		}
	}

	existing, err := alertStore.List(ctx)
	if err != nil {
		return fmt.Errorf("seed alerts: %w", err)
	}
	if len(existing) == 0 {
		if err := alerts.Seed(ctx, alertStore, now); err != nil {
			return fmt.Errorf("seed alerts: %w", err)
		}
	}

	s.logger.Info("fixture data seeded")
	return nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}))
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(metrics.Middleware())
	s.router.Use(security.HeadersMiddleware())
	s.router.Use(security.CORSMiddleware(s.cfg.CORSOrigins))
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" || len(requestID) > 128 {
			requestID = idgen.New()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
		}
		logger := logging.L(c.Request.Context())

		switch {
		case status >= 500:
			logger.Error("request completed", append(attrs, "client_ip", c.ClientIP())...)
		case status >= 400:
			logger.Warn("request completed", attrs...)
		default:
			logger.Info("request completed", attrs...)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())
	s.router.GET("/ws", gin.WrapF(s.hub.HandleWebSocket))

	s.rateLimiter = ratelimit.New(ratelimit.Config{
		RequestsPerMinute: s.cfg.RateLimitRPM,
		BurstSize:         burstFor(s.cfg.RateLimitRPM),
	})

	api := s.router.Group("/api")
	api.Use(s.rateLimiter.Middleware())
	transactions.NewHandler(s.transactions).RegisterRoutes(api)
	alerts.NewHandler(s.alerts).RegisterRoutes(api)
	s.phishing.RegisterRoutes(api)

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
}

// burstFor allows a sixth of the per-minute rate at once, at least one.
func burstFor(rpm int) int {
	if b := rpm / 6; b > 0 {
		return b
	}
	return 1
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for the /health endpoint
type HealthResponse struct {
	Status    string                    `json:"status"`
	Version   string                    `json:"version"`
	Storage   string                    `json:"storage"`
	Advisory  bool                      `json:"advisory"`
	Checks    []health.Status           `json:"checks"`
	Circuits  []circuitbreaker.KeyState `json:"circuits"`
	Realtime  map[string]interface{}    `json:"realtime"`
	Timestamp string                    `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, checks := s.health.CheckAll(c.Request.Context())

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	storage := "memory"
	if s.db != nil {
		storage = "postgres"
	}
	_, disabled := s.advisor.(advisory.Disabled)

	c.JSON(code, HealthResponse{
		Status:    status,
		Version:   s.version,
		Storage:   storage,
		Advisory:  !disabled,
		Checks:    checks,
		Circuits:  s.breaker.Snapshot(),
		Realtime:  s.hub.Stats(),
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	if healthy, _ := s.health.CheckAll(c.Request.Context()); !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run serves HTTP and the background workers until ctx is cancelled or
// SIGINT/SIGTERM arrives, then shuts everything down.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Workers outlive the HTTP server so in-flight requests can still publish.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.hub.Run(workerCtx)
		return nil
	})
	if s.kafka != nil {
		g.Go(func() error { return s.kafka.Run(workerCtx) })
	}
	if s.db != nil {
		g.Go(func() error {
			metrics.StartDBStatsCollector(workerCtx, s.db, 15*time.Second)
			return nil
		})
	}

	g.Go(func() error {
		s.logger.Info("starting server", "port", s.cfg.Port, "version", s.version)
		s.ready.Store(true)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.ready.Store(false)
		s.logger.Info("starting graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := s.httpSrv.Shutdown(shutdownCtx)
		stopWorkers()
		if err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	s.close()
	return err
}

// close releases resources after the workers have stopped.
func (s *Server) close() {
	s.rateLimiter.Stop()

	if s.notifier != nil {
		s.notifier.Close()
		s.logger.Info("pending webhook deliveries finished")
	}
	if s.kafka != nil {
		if err := s.kafka.Close(); err != nil {
			s.logger.Error("kafka close error", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.tracing(ctx); err != nil {
		s.logger.Error("tracing shutdown error", "error", err)
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}
