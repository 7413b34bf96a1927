package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/modvault/session-security/internal/config"
	"github.com/modvault/session-security/internal/geo"
	"github.com/modvault/session-security/internal/http/handler"
	"github.com/modvault/session-security/internal/http/router"
	"github.com/modvault/session-security/internal/observability"
	"github.com/modvault/session-security/internal/repository"
	"github.com/modvault/session-security/internal/security"
	"github.com/modvault/session-security/internal/service"
)

// Bootstrap assembles the full service graph from configuration.
func Bootstrap(ctx context.Context) (*App, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	logger, logProvider, err := observability.InitLogging(ctx, cfg)
	if err != nil {
		return nil, err
	}
	runtime, err := observability.InitRuntime(ctx, cfg, logger, logProvider)
	if err != nil {
		return nil, err
	}

	db, err := repository.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	users := repository.NewUserRepository(db)
	sessions := repository.NewSessionRepository(db)
	history := repository.NewLoginHistoryRepository(db)

	var geoLookup geo.Lookup
	var geoCloser func() error
	if cfg.GeoIPDatabasePath != "" {
		maxmind, err := geo.NewMaxMindLookup(cfg.GeoIPDatabasePath)
		if err != nil {
			return nil, fmt.Errorf("init geoip: %w", err)
		}
		geoLookup = maxmind
		geoCloser = maxmind.Close
		logger.Info("geoip lookup enabled", "path", cfg.GeoIPDatabasePath)
	} else {
		logger.Info("geoip lookup disabled, locations degrade to Unknown")
	}
	geoResolver := geo.NewResolver(geoLookup, logger)

	jwtMgr := security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSecret)
	throttle := service.NewLoginThrottle(users, cfg.LockoutThreshold, cfg.LockoutDuration)
	risk := service.NewRiskAnalyzer(history, logger)
	lifecycle := service.NewSessionLifecycle(users, sessions, history, throttle, risk, geoResolver, jwtMgr, cfg.SessionTTL, logger)
	accounts := service.NewAccountService(users)
	sweeper := service.NewSweeper(sessions, cfg.SweepInterval, logger)

	loginLimiter := service.NewNoopLoginLimiter()
	var redisCloser func() error
	if cfg.LoginLimitEnabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		loginLimiter = service.NewRedisLoginLimiter(client, "login_limiter", cfg.LoginLimitMax, cfg.LoginLimitWindow)
		redisCloser = client.Close
		logger.Info("login attempt limiter enabled", "addr", cfg.RedisAddr)
	}

	h := router.NewRouter(router.Dependencies{
		AuthHandler:    handler.NewAuthHandler(accounts, lifecycle),
		SessionHandler: handler.NewSessionHandler(lifecycle),
		AdminHandler:   handler.NewAdminHandler(lifecycle, history),
		JWTManager:     jwtMgr,
		Lifecycle:      lifecycle,
		LoginLimiter:   loginLimiter,
		EnableOTelHTTP: cfg.OTELTracesEnabled,
	})
	server := &http.Server{Addr: cfg.HTTPAddr, Handler: h}

	a := New(cfg, logger, server, runtime, sweeper)
	if geoCloser != nil {
		a.OnClose(geoCloser)
	}
	if redisCloser != nil {
		a.OnClose(redisCloser)
	}
	return a, nil
}

// BootstrapSweeper builds only what a one-shot sweep needs.
func BootstrapSweeper(ctx context.Context) (*service.Sweeper, *config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	logger, _, err := observability.InitLogging(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	db, err := repository.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, nil, err
	}
	sessions := repository.NewSessionRepository(db)
	return service.NewSweeper(sessions, cfg.SweepInterval, logger), cfg, nil
}
