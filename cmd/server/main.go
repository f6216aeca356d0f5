package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"yardtrack/config"
	"yardtrack/db"
	"yardtrack/db/mongo"
	"yardtrack/db/postgres"
	redisdb "yardtrack/db/redis"
	"yardtrack/handlers"
	"yardtrack/logger"
	"yardtrack/middleware"
	"yardtrack/repository"
	"yardtrack/routes"
	"yardtrack/services"
	"yardtrack/utils"

	"go.uber.org/zap"
)

func main() {
	// Load config from .env and environment
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if !cfg.EnvFileLoaded {
		log.Info("no .env file found, using environment only")
	}

	store, conn, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	if conn != nil {
		defer conn.Disconnect()
	}

	var locker services.Locker
	if cfg.RedisAddr != "" {
		rdb, err := redisdb.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.DBTimeout)
		if err != nil {
			return err
		}
		defer rdb.Close()
		locker = services.NewRedisLocker(rdb, cfg.LockTTL)
		log.Info("using redis truck locks", zap.String("addr", cfg.RedisAddr))
	}

	deps := services.NewDeps(store, locker, log)
	settings := services.NewSettings(deps)
	approvals := services.NewApprovals(deps)
	life := services.NewLifecycle(deps, settings, approvals)

	var blob handlers.BlobStore
	if cfg.R2.Enabled() {
		up, err := utils.NewUploader(context.Background(), cfg.R2)
		if err != nil {
			return err
		}
		blob = up
	} else {
		log.Info("R2 not configured, uploads by reference only and slips returned inline")
	}

	slips, err := utils.NewSlipRenderer(cfg.SlipTemplate)
	if err != nil {
		return err
	}

	jwtm := middleware.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	router := routes.New(routes.Handlers{
		Users:       &handlers.UserHandler{Repo: repository.NewUserRepo(store), JWT: jwtm, Log: log},
		Trucks:      &handlers.TruckHandler{Life: life, Log: log},
		Processing:  &handlers.ProcessingHandler{Life: life, Blob: blob, Log: log},
		Weighbridge: &handlers.WeighbridgeHandler{Life: life, Slips: slips, Blob: blob, Log: log},
		Approvals:   &handlers.ApprovalHandler{Approvals: approvals, Log: log},
		Settings:    &handlers.SettingsHandler{Settings: settings, Log: log},
	}, jwtm, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server running", zap.String("port", cfg.Port), zap.String("db", cfg.DBType))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore connects the configured database. conn is nil for the memory store.
func openStore(cfg *config.Config, log *zap.Logger) (repository.DocumentStore, db.DB, error) {
	switch db.DBType(cfg.DBType) {
	case db.Postgres:
		if err := db.RunMigrations(cfg.PostgresURL, cfg.MigrationsPath, log); err != nil {
			return nil, nil, err
		}
		pg := postgres.NewPostgresDB(cfg.PostgresURL, cfg.DBTimeout)
		if err := pg.Connect(); err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return repository.NewPostgresStore(pg.Conn), pg, nil

	case db.Mongo:
		mg := mongo.NewMongoDB(cfg.MongoURL, cfg.MongoDatabase, cfg.DBTimeout)
		if err := mg.Connect(); err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		store := repository.NewMongoStore(mg.Client, cfg.MongoDatabase)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.DBTimeout)
		defer cancel()
		if err := store.EnsureIndexes(ctx); err != nil {
			mg.Disconnect()
			return nil, nil, fmt.Errorf("ensure indexes: %w", err)
		}
		return store, mg, nil

	case db.Memory:
		log.Warn("using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), nil, nil

	default:
		return nil, nil, fmt.Errorf("DB_TYPE %q not supported", cfg.DBType)
	}
}
