package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"golang.org/x/crypto/bcrypt"

	"gatehouse/internal/auth/service"
	"gatehouse/internal/auth/store/credentials"
	"gatehouse/internal/credential"
	"gatehouse/internal/guard"
	"gatehouse/internal/platform/config"
	"gatehouse/internal/platform/httpserver"
	"gatehouse/internal/platform/logger"
	"gatehouse/internal/platform/metrics"
	platformRedis "gatehouse/internal/platform/redis"
	"gatehouse/internal/quota"
	quotaStore "gatehouse/internal/quota/store"
	"gatehouse/internal/ratelimit"
	"gatehouse/internal/ratelimit/store/burst"
	"gatehouse/internal/ratelimit/store/window"
	"gatehouse/internal/session"
	sessionStore "gatehouse/internal/session/store"
	"gatehouse/internal/token"
	"gatehouse/internal/token/store/revocation"
	httptransport "gatehouse/internal/transport/http"
	"gatehouse/internal/workers/cleanup"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	m := metrics.New()

	log.Info("initializing gatehouse", "addr", cfg.Addr)

	redisClient, err := platformRedis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err.Error())
		os.Exit(1)
	}

	// Stores: redis-backed when configured, in-memory otherwise.
	var (
		sessions sessionStore.Store
		revoked  revocation.List
		windows  window.Store
		buckets  burst.Store
		quotas   quotaStore.Store
	)
	if redisClient != nil {
		log.Info("using redis-backed counter stores")
		sessions = sessionStore.NewRedisStore(redisClient.Client)
		revoked = revocation.NewRedisList(redisClient.Client)
		windows = window.NewRedisStore(redisClient.Client)
		buckets = burst.NewRedisStore(redisClient.Client)
		quotas = quotaStore.NewRedisStore(redisClient.Client)
	} else {
		log.Info("using in-memory counter stores")
		memRevoked := revocation.NewInMemoryList()
		defer memRevoked.Stop()
		sessions = sessionStore.NewInMemoryStore()
		revoked = memRevoked
		windows = window.NewInMemoryStore()
		buckets = burst.NewInMemoryStore()
		quotas = quotaStore.NewInMemoryStore()
	}

	hasher := credential.New(credential.Config{
		Cost:     bcrypt.DefaultCost,
		MinScore: cfg.MinPasswordScore,
		Workers:  cfg.HashWorkers,
	}, credential.WithLogger(log), credential.WithMetrics(m))
	source := credentials.NewInMemorySource(hasher)

	tokens, err := token.New(token.Config{
		Keys:         cfg.SigningKeys,
		CurrentKeyID: cfg.CurrentKeyID,
		AccessTTL:    cfg.AccessTokenTTL,
		RefreshTTL:   cfg.RefreshTokenTTL,
		ClockSkew:    cfg.ClockSkew,
	})
	if err != nil {
		log.Error("token service init failed", "error", err.Error())
		os.Exit(1)
	}

	registry := session.NewRegistry(sessions, revoked, session.Config{
		SessionTTL:      cfg.RefreshTokenTTL,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	}, session.WithLogger(log), session.WithMetrics(m))

	authService := service.NewService(source, hasher, tokens, registry, revoked,
		service.WithLogger(log), service.WithMetrics(m))

	var perEndpoint map[string]ratelimit.Rule
	if len(cfg.EndpointRules) > 0 {
		perEndpoint = make(map[string]ratelimit.Rule, len(cfg.EndpointRules))
		for path, rule := range cfg.EndpointRules {
			perEndpoint[path] = ratelimit.Rule{Limit: rule.Limit, Window: rule.Window}
		}
	}

	limiter := ratelimit.New(windows, buckets, ratelimit.Config{
		Global:        ratelimit.Rule{Limit: cfg.GlobalLimit, Window: cfg.GlobalWindow},
		PerIP:         ratelimit.Rule{Limit: cfg.PerIPLimit, Window: cfg.PerIPWindow},
		PerPrincipal:  ratelimit.Rule{Limit: cfg.PerPrincipalLimit, Window: cfg.PerPrincipalWindow},
		PerEndpoint:   perEndpoint,
		BurstCapacity: cfg.BurstCapacity,
		BurstRefill:   cfg.BurstRefill,
	}, ratelimit.WithLogger(log), ratelimit.WithMetrics(m))

	tracker := quota.New(quotas, quota.Config{
		PerWindow: cfg.QuotaPerWindow,
		Window:    cfg.QuotaWindow,
	}, quota.WithLogger(log), quota.WithMetrics(m))

	g := guard.New(guard.Config{CheckTimeout: cfg.CheckTimeout}, []guard.Check{
		guard.NewRateLimitCheck(limiter),
		guard.NewTokenCheck(authService),
		guard.NewPrincipalRateLimitCheck(limiter),
		guard.NewSessionCheck(registry),
	}, guard.WithLogger(log), guard.WithMetrics(m))

	handlerOpts := []httptransport.HandlerOption{}
	if redisClient != nil {
		handlerOpts = append(handlerOpts, httptransport.WithHealthChecker(redisClient))
	}
	handler := httptransport.NewHandler(authService, source, tracker, log, handlerOpts...)
	router := httptransport.NewRouter(handler, g, limiter, log)

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pruner, err := cleanup.New(registry,
		cleanup.WithInterval(cfg.CleanupInterval),
		cleanup.WithLogger(log),
		cleanup.WithMetrics(m))
	if err != nil {
		log.Error("cleanup worker init failed", "error", err.Error())
		os.Exit(1)
	}
	go pruner.Start(ctx) //nolint:errcheck // exits with ctx on shutdown

	if redisClient != nil {
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					redisClient.RecordPoolStats()
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err.Error())
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	log.Info("shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
		os.Exit(1)
	}

	log.Info("server stopped")
}
