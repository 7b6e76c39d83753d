package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"FileCatalog/internal/auth"
	"FileCatalog/internal/catalog"
	"FileCatalog/internal/config"
	"FileCatalog/pkg/kit"
)

const (
	service       = "catalog"
	schemaTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatal("open store failed", zap.Error(err), zap.String("store", cfg.Store))
	}
	defer closeStore()

	ids, err := catalog.ParseIDStrategy(cfg.IDStrategy)
	if err != nil {
		log.Fatal("bad id strategy", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	repo := catalog.NewRepository(store,
		catalog.WithLogger(log.Named("repository")),
		catalog.WithIDStrategy(ids),
		catalog.WithStrictWrites(cfg.StrictWrites),
		catalog.WithMetrics(catalog.NewRepoMetrics(reg)),
	)

	s := &catalog.Server{Repo: repo, Log: log}
	if cfg.WritesEnabled() {
		s.Tokens = auth.NewTokenMaker(cfg.JWTSecret)
		s.WriteLimiter = kit.NewIPRateLimiter(cfg.WriteRateLimit, cfg.WriteRateWindow)
	} else {
		log.Info("JWT_SECRET not set, write routes disabled")
	}

	h := catalog.NewHandler(s, catalog.HTTPDeps{
		Log:              log,
		Service:          service,
		Registry:         reg,
		MetricsEnabled:   cfg.MetricsEnabled,
		MetricsTokenHash: cfg.MetricsTokenHash,
	})

	log.Info("catalog configured",
		zap.String("store", cfg.Store),
		zap.String("id_strategy", cfg.IDStrategy),
		zap.Bool("strict_writes", cfg.StrictWrites),
		zap.Bool("writes_enabled", cfg.WritesEnabled()),
	)

	if err := kit.RunHTTPServer(cfg.Addr(), h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

func openStore(cfg config.Config) (catalog.DocStore, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
		defer cancel()

		ps := catalog.NewPostgresStore(db, cfg.DocumentName)
		if err := ps.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return ps, func() { _ = db.Close() }, nil

	case config.StoreMemory:
		return catalog.NewMemStore(nil), func() {}, nil

	default:
		return catalog.NewFileStore(cfg.FilePath), func() {}, nil
	}
}
