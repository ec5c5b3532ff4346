package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/athleticlabs/fuelgate/internal/api"
	"github.com/athleticlabs/fuelgate/internal/audit"
	"github.com/athleticlabs/fuelgate/internal/authcache"
	"github.com/athleticlabs/fuelgate/internal/config"
	"github.com/athleticlabs/fuelgate/internal/cors"
	"github.com/athleticlabs/fuelgate/internal/db"
	"github.com/athleticlabs/fuelgate/internal/health"
	"github.com/athleticlabs/fuelgate/internal/middleware"
	"github.com/athleticlabs/fuelgate/internal/pipeline"
	"github.com/athleticlabs/fuelgate/internal/policy"
	"github.com/athleticlabs/fuelgate/internal/session"
	"github.com/athleticlabs/fuelgate/internal/store"
)

const serviceName = "fuelgate"

// janitorInterval is how often expired authorization cache entries are swept.
const janitorInterval = time.Minute

// app is the wired gateway.
type app struct {
	handler    http.Handler
	cache      *authcache.Cache
	dispatcher *audit.Dispatcher
	closers    []func() error
	logger     *slog.Logger
}

// newApp builds every component from cfg. On error, anything already opened
// is closed.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			a.closeResources()
		}
	}()

	var (
		profiles     store.ProfileStore
		permissions  store.PermissionStore
		auditRepo    audit.Repository
		dbChecker    api.HealthChecker
		redisChecker api.HealthChecker
		redisClient  *redis.Client
	)

	if cfg.DatabaseURL != "" {
		sqlDB, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultPoolConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.closers = append(a.closers, sqlDB.Close)

		pg := store.NewPostgres(sqlDB)
		profiles, permissions = pg, pg
		auditRepo = audit.NewPostgresRepository(sqlDB)
		dbChecker = health.NewDBChecker(sqlDB)
	} else {
		logger.Warn("no database configured, using in-memory profile store")
		mem := store.NewMemory()
		profiles, permissions = mem, mem
		auditRepo = audit.NewInMemoryRepository(audit.DefaultMemoryCapacity)
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		a.closers = append(a.closers, redisClient.Close)
		redisChecker = health.NewRedisChecker(redisClient)
	}

	var sessions session.Store
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		if redisClient == nil {
			return nil, errors.New("redis session backend requires a redis url")
		}
		sessions = session.NewRedisStore(redisClient, cfg.SessionCookieName)
	default:
		tokens := session.NewTokenService(cfg.SessionSecret, cfg.SessionPreviousSecret)
		sessions = session.NewJWTStore(tokens, cfg.SessionCookieName)
	}

	corsEngine, err := newCORSEngine(cfg, logger)
	if err != nil {
		return nil, err
	}

	resolver, err := loadPolicy(cfg.RoutePolicyFile)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics()
	if err := metrics.Register(registry); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	if cfg.AuditEnabled {
		a.dispatcher = audit.NewDispatcher(auditRepo,
			audit.WithLogger(logger),
			audit.WithMaxInFlight(cfg.AuditMaxInFlight),
			audit.WithOutcomeHook(metrics.IncAuditOutcome),
		)
	}

	a.cache = authcache.New(cfg.AuthzCacheTTL())
	logger.Info("authorization cache configured", slog.Duration("ttl", a.cache.TTL()))

	gate, err := pipeline.New(pipeline.Config{
		CollaboratorTimeout: cfg.CollaboratorTimeout(),
		ThreatScanMaxBytes:  int64(cfg.ThreatScanMaxBytes),
	}, pipeline.Deps{
		CORS:        corsEngine,
		Sessions:    sessions,
		Profiles:    profiles,
		Permissions: permissions,
		Cache:       a.cache,
		Policy:      resolver,
		Audit:       a.dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	upstream, err := newUpstream(cfg.UpstreamURL, logger)
	if err != nil {
		return nil, err
	}

	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:      dbChecker,
		RedisChecker:   redisChecker,
		MetricsEnabled: true,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandlers.Health)
	mux.HandleFunc("GET /ready", healthHandlers.Ready)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	// The sanitize preview accepts markup by nature, so it sits outside the
	// threat scan.
	mux.Handle("/api/public/sanitize", corsEngine.Middleware(http.HandlerFunc(api.Sanitize)))
	mux.Handle("/api/health", gate.Handler(http.HandlerFunc(healthHandlers.Health)))
	mux.Handle("GET /api/v1/admin/audit", gate.Handler(http.HandlerFunc(api.NewAuditHandlers(auditRepo).ListByUser)))
	mux.Handle("/", gate.Handler(upstream))

	// Apply middleware: RequestID -> Tracing -> Logging -> HTTPMetrics
	a.handler = middleware.RequestID(
		middleware.Tracing(serviceName)(
			middleware.Logging(logger)(
				middleware.HTTPMetrics(metrics)(mux),
			),
		),
	)
	return a, nil
}

// newCORSEngine builds the CORS profiles and refuses unsafe configurations.
func newCORSEngine(cfg *config.Config, logger *slog.Logger) (*cors.Engine, error) {
	engine := cors.NewEngine(cors.BuildProfiles(cors.Settings{
		Production:          cfg.IsProduction(),
		AllowedOrigins:      cfg.CORSAllowedOrigins,
		AdminOrigins:        cfg.CORSAdminOrigins,
		PreviewSuffix:       cfg.CORSPreviewSuffix,
		MaxAgePublic:        cfg.CORSMaxAgePublic,
		MaxAgeAuthenticated: cfg.CORSMaxAgeAuthenticated,
		MaxAgeAdmin:         cfg.CORSMaxAgeAdmin,
	}))

	report := cors.Validate(cfg.IsProduction(), engine.Profiles())
	for _, w := range report.Warnings {
		logger.Warn("cors configuration warning", "warning", w)
	}
	if err := report.Err(); err != nil {
		return nil, err
	}
	return engine, nil
}

// loadPolicy returns the built-in route table unless a policy file is set.
func loadPolicy(path string) (*policy.Resolver, error) {
	if path == "" {
		return policy.NewResolver(policy.DefaultTable())
	}
	table, err := policy.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return policy.NewResolver(table)
}

// newUpstream returns the handler that receives authorized traffic. Without
// an upstream the gateway answers 404 for everything it does not own.
func newUpstream(rawURL string, logger *slog.Logger) (http.Handler, error) {
	if rawURL == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			api.WriteError(w, r.Context(), http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
		}), nil
	}

	target, err := url.Parse(rawURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid upstream url %q", rawURL)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.ErrorContext(r.Context(), "upstream request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		api.WriteError(w, r.Context(), http.StatusBadGateway, api.ErrCodeUpstreamUnavailable, "The application is temporarily unavailable")
	}
	return proxy, nil
}

// runJanitor sweeps the authorization cache until ctx is done.
func (a *app) runJanitor(ctx context.Context) {
	a.cache.RunJanitor(ctx, janitorInterval)
}

// shutdown drains pending audit writes, bounded by ctx, then releases
// backing connections.
func (a *app) shutdown(ctx context.Context) error {
	var errs []error
	if a.dispatcher != nil {
		if err := a.dispatcher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("audit drain: %w", err))
		}
	}
	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *app) closeResources() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
