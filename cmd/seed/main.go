package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"go.uber.org/zap"

	"modelnormalizer/internal/config"
	"modelnormalizer/internal/db"
	"modelnormalizer/internal/model"
	"modelnormalizer/internal/normalizer"
	"modelnormalizer/internal/repository"
	"modelnormalizer/internal/seed"
	"modelnormalizer/internal/service"
)

func main() {
	resource := flag.String("resource", "accounts", "resource to seed")
	source := flag.String("source", "", "JSON array of representations, a file path or an http(s) URL")
	migrate := flag.Bool("migrate", true, "run migrations before seeding")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: seed -resource <name> -source <file|url>\n\nresources: %s\n\n",
			strings.Join(model.NewDefaultRegistry().Resources(), ", "))
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := zap.Must(zap.NewDevelopment())
	defer func() { _ = logger.Sync() }()

	if *source == "" {
		flag.Usage()
		os.Exit(2)
	}

	logger.Info("starting seed script", zap.String("resource", *resource), zap.String("source", *source))

	// Load configuration
	if err := config.LoadDotEnv(); err != nil {
		logger.Fatal("failed to load .env", zap.Error(err))
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	registry := model.NewDefaultRegistry()
	if err := cfg.ApplyVisibility(registry); err != nil {
		logger.Fatal("failed to apply visibility", zap.Error(err))
	}

	// Connect to database
	gormDB, err := db.NewMySQL(cfg.MySQLDSN, cfg.DBLogLevel)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	logger.Info("connected to database")

	if *migrate {
		if err := db.Migrate(gormDB); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		logger.Info("database migrations completed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	items, err := seed.Load(ctx, *source)
	if err != nil {
		logger.Fatal("failed to read seed data", zap.Error(err))
	}
	logger.Info("fetched seed data", zap.Int("count", len(items)))

	chain, err := normalizer.NewSerializer(
		normalizer.WithMaxDepth(cfg.MaxDepth),
		normalizer.WithLogger(logger.Named("normalizer")),
	)
	if err != nil {
		logger.Fatal("failed to build serializer", zap.Error(err))
	}

	records := service.NewRecordService(registry, repository.NewRecordRepository(gormDB), chain, nil, 0, logger)
	count, err := records.Import(ctx, *resource, items)
	if err != nil {
		logger.Fatal("failed to seed records", zap.Error(err))
	}
	logger.Info("seed completed", zap.String("resource", *resource), zap.Int("count", count))
}
