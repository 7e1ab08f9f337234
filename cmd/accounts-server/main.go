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

	"github.com/gin-gonic/gin"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/eion/accounts/internal/api"
	"github.com/eion/accounts/internal/config"
	"github.com/eion/accounts/internal/health"
	"github.com/eion/accounts/internal/logger"
	"github.com/eion/accounts/internal/metrics"
	"github.com/eion/accounts/internal/users"
)

// AppState holds all application services
type AppState struct {
	Store       users.UserStore
	UserService users.UserManager
	Health      *health.Manager
	Logger      *zap.Logger
	Config      *config.Config
}

func main() {
	// Load configuration
	if err := config.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger with config
	log := initLogger()
	defer func() { _ = log.Sync() }()
	log.Info("Configuration loaded", zap.String("store_driver", config.Store().Driver))

	ctx := context.Background()

	// Initialize application state
	as, err := newAppState(ctx, log)
	if err != nil {
		log.Fatal("Failed to initialize application state", zap.Error(err))
	}

	if err := as.Health.StartupHealthCheck(ctx); err != nil {
		log.Fatal("Startup health check failed", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.RouterConfig{
		Users:          as.UserService,
		Health:         as.Health,
		Logger:         log,
		MaxRequestSize: config.Http().MaxRequestSize,
	})

	// Server configuration from config
	addr := fmt.Sprintf("%s:%d", config.Http().Host, config.Http().Port)

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Setup graceful shutdown
	done := setupSignalHandler(as, server, log)

	log.Info("Starting accounts server",
		zap.String("address", addr),
		zap.String("backend", as.Store.Backend()))

	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("Failed to start server", zap.Error(err))
	}

	<-done
	log.Info("Server shutdown complete")
}

// newAppState opens the configured store and builds the services on top of it
func newAppState(ctx context.Context, log *zap.Logger) (*AppState, error) {
	store, err := openStore(ctx, log)
	if err != nil {
		return nil, err
	}

	instrumented := metrics.InstrumentStore(store)

	healthManager := health.NewManager(log)
	healthManager.AddChecker(health.NewStoreHealthChecker(instrumented))

	return &AppState{
		Store:       instrumented,
		UserService: users.NewService(instrumented, log),
		Health:      healthManager,
		Logger:      log,
		Config:      config.Get(),
	}, nil
}

func openStore(ctx context.Context, log *zap.Logger) (users.UserStore, error) {
	switch driver := config.Store().Driver; driver {
	case config.DriverFirestore:
		fsConfig := config.Firestore()
		log.Info("Firestore configuration",
			zap.String("project_id", fsConfig.ProjectID),
			zap.String("collection", fsConfig.Collection),
			zap.String("emulator_host", fsConfig.EmulatorHost))

		return users.NewFirestoreStore(ctx, users.FirestoreConfig{
			ProjectID:       fsConfig.ProjectID,
			DatabaseID:      fsConfig.DatabaseID,
			Collection:      fsConfig.Collection,
			CredentialsFile: fsConfig.CredentialsFile,
			EmulatorHost:    fsConfig.EmulatorHost,
		}, log)

	case config.DriverPostgres:
		pgConfig := config.Postgres()
		log.Info("Database configuration",
			zap.String("host", pgConfig.Host),
			zap.Int("port", pgConfig.Port),
			zap.String("database", pgConfig.Database),
			zap.String("user", pgConfig.User))

		db, err := users.OpenPostgres(ctx, pgConfig.DSN(), pgConfig.MaxOpenConnections)
		if err != nil {
			return nil, err
		}
		return newSQLStore(ctx, db, log)

	case config.DriverSQLite:
		path := config.SQLite().Path
		log.Info("SQLite configuration", zap.String("path", path))

		db, err := users.OpenSQLite(ctx, path)
		if err != nil {
			return nil, err
		}
		return newSQLStore(ctx, db, log)

	case config.DriverNeo4j:
		neo4jConfig := config.Neo4j()
		log.Info("Neo4j configuration",
			zap.String("uri", neo4jConfig.URI),
			zap.String("database", neo4jConfig.Database))

		return users.NewNeo4jStore(ctx, users.Neo4jConfig{
			URI:      neo4jConfig.URI,
			Username: neo4jConfig.Username,
			Password: neo4jConfig.Password,
			Database: neo4jConfig.Database,
		}, log)

	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
}

func newSQLStore(ctx context.Context, db *bun.DB, log *zap.Logger) (users.UserStore, error) {
	store := users.NewSQLStore(db)
	if !config.Store().EnableMigrations {
		return store, nil
	}

	if err := users.CreateSchema(ctx, db); err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	log.Info("Database schema ready", zap.String("backend", store.Backend()))
	return store, nil
}

func initLogger() *zap.Logger {
	logConfig := config.Logger()

	log, err := logger.New(logger.Config{
		Level:      logConfig.Level,
		Format:     logConfig.Format,
		File:       logConfig.File,
		MaxSizeMB:  logConfig.MaxSizeMB,
		MaxBackups: logConfig.MaxBackups,
		MaxAgeDays: logConfig.MaxAgeDays,
		Compress:   logConfig.Compress,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	return log
}

func setupSignalHandler(as *AppState, server *http.Server, log *zap.Logger) chan struct{} {
	done := make(chan struct{}, 1)

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signalCh

		log.Info("Shutting down server...")

		// Create context with timeout for graceful shutdown
		timeout := time.Duration(config.Http().ShutdownTimeout) * time.Second
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		// Shutdown server
		if err := server.Shutdown(ctx); err != nil {
			log.Error("Error during server shutdown", zap.Error(err))
		}

		// Close the user store
		if err := as.Store.Close(ctx); err != nil {
			log.Error("Error closing user store", zap.Error(err))
		}

		done <- struct{}{}
	}()

	return done
}
