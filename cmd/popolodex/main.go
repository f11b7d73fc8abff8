package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/popolodex/internal/config"
	dbMongo "github.com/kailas-cloud/popolodex/internal/db/mongo"
	dbRedis "github.com/kailas-cloud/popolodex/internal/db/redis"
	"github.com/kailas-cloud/popolodex/internal/domain/paging"
	logpkg "github.com/kailas-cloud/popolodex/internal/logger"
	"github.com/kailas-cloud/popolodex/internal/metrics"
	documentrepo "github.com/kailas-cloud/popolodex/internal/repository/document"
	"github.com/kailas-cloud/popolodex/internal/repository/filestore"
	chiTransport "github.com/kailas-cloud/popolodex/internal/transport/chi"
	entityuc "github.com/kailas-cloud/popolodex/internal/usecase/entity"
	healthuc "github.com/kailas-cloud/popolodex/internal/usecase/health"
	"github.com/kailas-cloud/popolodex/internal/usecase/indexer"
	"github.com/kailas-cloud/popolodex/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting popolodex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("database", cfg.Database.Name),
		zap.String("search_driver", cfg.Search.Driver),
		zap.Strings("search_addrs", cfg.Search.Addrs),
	)

	registry, err := cfg.Registry()
	if err != nil {
		logger.Fatal("Invalid collections config", zap.Error(err))
	}

	ctx := context.Background()

	// Document store
	docStore, disconnect, err := dbMongo.Connect(ctx, cfg.Database.URI, cfg.Database.Name)
	if err != nil {
		logger.Fatal("Failed to connect to document store", zap.Error(err))
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := disconnect(dctx); err != nil {
			logger.Warn("Document store disconnect failed", zap.Error(err))
		}
	}()
	if err := docStore.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Document store not ready", zap.Error(err))
	}
	logger.Info("Connected to document store")

	// Search engine. Valkey with the search and JSON modules speaks the same protocol.
	engine, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Search.Addrs,
		Username: cfg.Search.Username,
		Password: cfg.Search.Password,
		DB:       cfg.Search.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create search engine client", zap.Error(err))
	}
	defer engine.Close()
	if err := engine.WaitForReady(ctx, time.Duration(cfg.Search.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Search engine not ready", zap.Error(err))
	}
	logger.Info("Connected to search engine")

	for _, name := range registry.Names() {
		col, _ := registry.Get(name)
		index, typ := col.Identity(cfg.Index.Name)
		if err := engine.EnsureIndex(ctx, index, typ); err != nil {
			logger.Fatal("Failed to ensure search index",
				zap.String("collection", name), zap.Error(err))
		}
	}

	files, err := filestore.New(cfg.Images.Dir)
	if err != nil {
		logger.Fatal("Failed to open image store", zap.Error(err))
	}

	metrics.Register()

	pager := paging.NewPolicy(cfg.Index.DefaultPageSize, cfg.Index.MaxPageSize)

	docRepo := documentrepo.New(docStore)

	indexSvc := indexer.New(docRepo, engine, registry, cfg.Index.Name, logger).
		WithBaseURLs(cfg.API.APIBaseURL, cfg.API.BaseURL).
		WithPaging(pager).
		WithReindex(cfg.Index.BatchSize, cfg.Index.ReindexConcurrency).
		WithRetry(cfg.Index.RetryMaxTries, config.Duration(cfg.Index.RetryIntervalMs)).
		WithTimeouts(
			config.Duration(cfg.Timeouts.IndexHookMs),
			config.Duration(cfg.Timeouts.StoreMs),
			config.Duration(cfg.Timeouts.SearchMs),
		)
	entitySvc := entityuc.New(docRepo, indexSvc, files, registry)
	healthSvc := healthuc.New(docStore, engine)

	server := chiTransport.NewServer(entitySvc, indexSvc, healthSvc, registry, logger).
		WithBaseURLs(cfg.API.APIBaseURL, cfg.API.BaseURL).
		WithInstanceName(cfg.API.InstanceName).
		WithPaging(pager).
		WithMaxUpload(int64(cfg.HTTP.MaxUploadMB) << 20)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	// Drain pending index hooks before the clients close.
	indexSvc.Close()

	logger.Info("Server stopped gracefully")
}
