package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-fold/internal/auth"
	"github.com/noah-isme/backend-fold/internal/common"
	"github.com/noah-isme/backend-fold/internal/config"
	"github.com/noah-isme/backend-fold/internal/health"
	"github.com/noah-isme/backend-fold/internal/ledger"
	"github.com/noah-isme/backend-fold/internal/obs"
	"github.com/noah-isme/backend-fold/internal/payment"
	"github.com/noah-isme/backend-fold/internal/ratelimit"
	"github.com/noah-isme/backend-fold/internal/security"
)

type routerDeps struct {
	cfg         *config.Config
	logger      zerolog.Logger
	store       ledger.Store
	pool        *pgxpool.Pool
	redis       *redis.Client
	gateway     payment.Gateway
	httpMetrics *obs.HTTPMetrics
	tracing     bool
	pprof       http.Handler
}

func newRouter(d routerDeps) http.Handler {
	cfg := d.cfg
	ledgerSvc := ledger.NewService(d.store, d.logger.With().Str("component", "ledger").Logger())

	authMiddleware := auth.Middleware{
		Verifier: auth.Verifier{
			Secret:   []byte(cfg.SupabaseJWTSecret),
			Issuer:   cfg.SupabaseJWTIssuer,
			Audience: cfg.SupabaseJWTAudience,
			Skew:     30 * time.Second,
		},
		Logger: d.logger,
	}
	if !authMiddleware.Verifier.Enabled() {
		d.logger.Warn().Msg("SUPABASE_JWT_SECRET not set; bearer tokens are ignored and /credits/me is unavailable")
	}

	paymentLogger := d.logger.With().Str("component", "payment").Logger()
	routes := payment.Routes{
		Handler: &payment.Handler{
			Gateway:         d.gateway,
			Ledger:          ledgerSvc,
			KeySecret:       cfg.RazorpayKeySecret,
			DefaultCurrency: cfg.DefaultCurrency,
			Validate:        common.NewValidator(),
			Logger:          paymentLogger,
		},
		Webhook: payment.Webhook{
			Secret:    cfg.RazorpayWebhookSecret,
			Ledger:    ledgerSvc,
			Replay:    d.redis,
			ReplayTTL: cfg.WebhookReplayTTL,
			Logger:    paymentLogger,
		},
		Idempotency:    common.Idem{R: d.redis, TTL: cfg.IdempotencyTTL}.Middleware,
		Identity:       authMiddleware.Authenticate,
		WebhookMaxBody: cfg.WebhookMaxBodyBytes,
	}
	if d.redis != nil {
		limiter := ratelimit.Handler{
			Limiter: ratelimit.Limiter{Client: d.redis},
			Config:  ratelimit.Config{Key: ratelimit.ByClientIP, Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax},
			OnError: func(err error) { d.logger.Warn().Err(err).Msg("rate limiter unavailable") },
		}
		routes.Guard = append(routes.Guard, limiter.Middleware)
	}
	credits := ledger.CreditsHandler{Store: d.store, Logger: d.logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	if d.tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: len(cfg.CORSAllowedOrigins) > 0,
		MaxAge:           300,
	}))
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.IsProduction()}.Middleware)

	if d.httpMetrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if d.pprof != nil {
		r.Mount("/debug/pprof", http.StripPrefix("/debug/pprof", d.pprof))
	}

	healthHandler := health.Handler{
		Probes:  readinessProbes(d.pool, d.redis),
		Timeout: envDurationMillis("HEALTH_READY_TIMEOUT_MS", 500),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		routes.Mount(v, "/payments")
		v.With(authMiddleware.RequireAuth).Get("/credits/me", credits.Me)
	})
	routes.Mount(r, "")

	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func readinessProbes(pool *pgxpool.Pool, rdb *redis.Client) map[string]health.Probe {
	probes := map[string]health.Probe{}
	if pool != nil {
		probes["database"] = func(ctx context.Context) error { return pool.Ping(ctx) }
	}
	if rdb != nil {
		probes["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	if len(probes) == 0 {
		probes["ledger"] = func(context.Context) error { return nil }
	}
	return probes
}
