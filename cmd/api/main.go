package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"digipet-api/internal/cache"
	"digipet-api/internal/config"
	"digipet-api/internal/handler"
	"digipet-api/internal/ledger"
	"digipet-api/internal/logging"
	"digipet-api/internal/mint"
	"digipet-api/internal/repository"
	"digipet-api/internal/router"
	"digipet-api/internal/scheduler"
	"digipet-api/internal/service"
	"digipet-api/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting", "app", cfg.App.Name, "version", cfg.App.Version, "env", cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	store, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	cacheStore, err := openCache(cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer cacheStore.Close()
	petCache := cache.NewPetCache(cacheStore, cache.Expiration{
		Absolute: cfg.Cache.AbsoluteTTL,
		Sliding:  cfg.Cache.SlidingTTL,
	}, logger)

	mintLedger, err := openLedger(cfg.Ledger, logger)
	if err != nil {
		return err
	}
	pipeline := mint.NewPipeline(store, petCache, mintLedger, mint.Config{
		PollInterval: cfg.Ledger.PollInterval,
		MaxAttempts:  cfg.Ledger.MaxAttempts,
	}, logger)

	loc, err := cfg.App.Location()
	if err != nil {
		return err
	}
	pets := service.NewPetService(store, petCache, pipeline,
		service.WithLocation(loc),
		service.WithLogger(logger),
	)

	var jobs *scheduler.Scheduler
	if cfg.Workers.Enabled {
		decay := service.NewDecay(store, petCache, logger).Job(cfg.Workers.DecayInterval)
		feeding := service.NewFeeding(store, petCache, logger).Job(cfg.Workers.FeedingInterval)
		decay.Timeout = cfg.Workers.JobTimeout
		feeding.Timeout = cfg.Workers.JobTimeout
		feeding.RunOnStart = true

		jobs, err = scheduler.New(logger, decay, feeding)
		if err != nil {
			return err
		}
		if err := jobs.Start(ctx); err != nil {
			return err
		}
		defer jobs.Stop()
	} else {
		logger.Info("background workers disabled")
	}

	var jobRunner handler.JobRunner
	if jobs != nil {
		jobRunner = jobs
	}

	r := router.New(router.Config{
		Handler: handler.New(cfg.App.Name, cfg.App.Version, map[string]handler.Pinger{
			"store": store,
			"cache": petCache,
		}),
		PetHandler:   handler.NewPetHandler(pets, logger),
		AdminHandler: handler.NewAdminHandler(pets, jobRunner, cfg.Store.Type, cfg.Cache.Type, logger),
		APIKeys:      cfg.App.APIKeys,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           r,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (repository.Store, error) {
	switch cfg.Type {
	case "mysql":
		s, err := repository.NewMySQLStore(ctx, cfg.MySQL())
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		s := repository.NewMemoryStore()
		if err := repository.Seed(ctx, s); err != nil {
			return nil, err
		}
		logger.Warn("using in-memory store, data is lost on restart")
		return s, nil
	default:
		s, err := repository.NewSQLiteStore(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func openCache(cfg config.CacheConfig, logger *slog.Logger) (cache.Store, error) {
	if cfg.Type != "redis" {
		logger.Info("memory cache initialized")
		return cache.NewMemoryStore(), nil
	}

	s, err := cache.NewRedisStore(cache.RedisConfig{
		Addr:      cfg.RedisAddress(),
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: cfg.RedisPrefix,
	})
	if err != nil {
		// The cache is optional: degrade to the in-process store.
		logger.Warn("redis unavailable, falling back to memory cache", "addr", cfg.RedisAddress(), "error", err)
		return cache.NewMemoryStore(), nil
	}
	logger.Info("redis cache initialized", "addr", cfg.RedisAddress())
	return s, nil
}

func openLedger(cfg config.LedgerConfig, logger *slog.Logger) (mint.Ledger, error) {
	if cfg.Type != "rpc" {
		logger.Warn("using simulated ledger", "confirm_after", cfg.SimulatedConfirmAfter)
		return ledger.NewSimulated(cfg.SimulatedConfirmAfter), nil
	}

	c, err := ledger.NewRPCClient(ledger.RPCConfig{
		BaseURL:         cfg.RPCURL,
		ContractAddress: cfg.ContractAddress,
		SourceAddress:   cfg.SourceAddress,
		SigningKey:      cfg.SigningKey,
		Fee:             cfg.Fee,
		GasLimit:        cfg.GasLimit,
		StorageLimit:    cfg.StorageLimit,
		Timeout:         cfg.RequestTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("ledger rpc client initialized", "url", cfg.RPCURL, "contract", cfg.ContractAddress,
		"public_key", hex.EncodeToString(c.PublicKey()))
	return c, nil
}
