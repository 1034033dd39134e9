package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	_ "modelnormalizer/docs" // swagger docs

	"modelnormalizer/internal/auth"
	"modelnormalizer/internal/cache"
	"modelnormalizer/internal/config"
	"modelnormalizer/internal/db"
	"modelnormalizer/internal/handler"
	"modelnormalizer/internal/metrics"
	"modelnormalizer/internal/model"
	"modelnormalizer/internal/normalizer"
	"modelnormalizer/internal/repository"
	"modelnormalizer/internal/router"
	"modelnormalizer/internal/service"
)

// @title Model Normalizer API
// @version 1.0
// @description Serves ledger records as normalized representations and builds records back from them.
// @host localhost:5000
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	bootLogger := zap.Must(zap.NewProduction())
	if err := config.LoadDotEnv(); err != nil {
		bootLogger.Fatal("load .env", zap.Error(err))
	}
	cfg, err := config.Load()
	if err != nil {
		bootLogger.Fatal("load config", zap.Error(err))
	}

	logger, err := newLogger(cfg)
	if err != nil {
		bootLogger.Fatal("logger init", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	registry := model.NewDefaultRegistry()
	if err := cfg.ApplyVisibility(registry); err != nil {
		logger.Fatal("apply visibility", zap.Error(err))
	}

	gormDB, err := db.NewMySQL(cfg.MySQLDSN, cfg.DBLogLevel)
	if err != nil {
		logger.Fatal("database init", zap.Error(err))
	}

	// Drop tables if RESET_DB environment variable is set
	if os.Getenv("RESET_DB") == "true" {
		logger.Warn("RESET_DB=true detected, dropping all tables")
		if err := db.Reset(gormDB); err != nil {
			logger.Warn("failed to drop tables", zap.Error(err))
		}
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.Fatal("auto-migrate", zap.Error(err))
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB,
		cache.WithPrefix(cfg.CachePrefix),
		cache.WithLogger(logger.Named("cache")),
	)
	defer func() { _ = cacheClient.Close() }()

	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := cacheClient.Ping(pingCtx); err != nil {
		logger.Warn("redis unavailable, continuing without cache", zap.Error(err))
	}
	cancel()

	chain, err := normalizer.NewSerializer(
		normalizer.WithMaxDepth(cfg.MaxDepth),
		normalizer.WithLogger(logger.Named("normalizer")),
	)
	if err != nil {
		logger.Fatal("serializer init", zap.Error(err))
	}

	// Initialize auth components
	clients := auth.NewClients()
	switch {
	case cfg.ClientSecretHash != "":
		err = clients.AddHashed(cfg.ClientID, cfg.ClientSecretHash)
	case cfg.ClientSecret != "":
		err = clients.Add(cfg.ClientID, cfg.ClientSecret)
	default:
		logger.Warn("no API client configured, write endpoints are unreachable")
	}
	if err != nil {
		logger.Fatal("client init", zap.Error(err))
	}
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	recordRepo := repository.NewRecordRepository(gormDB)
	recordService := service.NewRecordService(registry, recordRepo, chain, cacheClient, cfg.CacheTTL, logger.Named("records"))
	authService := service.NewAuthService(clients, jwtService, tokenStore)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(promRegistry)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())

	// Register routes
	router.Register(e, cfg, logger.Named("http"), promRegistry, jwtService, authService, router.Handlers{
		Auth:   handler.NewAuthHandler(authService),
		Record: handler.NewRecordHandler(recordService),
		Seed:   handler.NewSeedHandler(recordService, &http.Client{Timeout: 30 * time.Second}),
	})

	logger.Info("swagger documentation available", zap.String("url", swaggerURL(cfg.SwaggerHost)))

	go func() {
		addr := ":" + cfg.ServerPort
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server start", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zapCfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = level
	return zapCfg.Build()
}

func swaggerURL(host string) string {
	switch {
	case host == "":
		// For docker-compose: container listens on 8080, mapped to 5000 externally
		return "http://localhost:5000/swagger/index.html"
	case strings.HasPrefix(host, "http://"), strings.HasPrefix(host, "https://"):
		return host + "/swagger/index.html"
	default:
		return "http://" + host + "/swagger/index.html"
	}
}
