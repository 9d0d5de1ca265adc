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

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"wordclash-backend/internal/api"
	"wordclash-backend/internal/config"
	"wordclash-backend/internal/game"
	"wordclash-backend/internal/lobby"
	"wordclash-backend/internal/logging"
	"wordclash-backend/internal/room"
	"wordclash-backend/internal/store"
	"wordclash-backend/internal/ws"
)

type Application struct {
	config *config.Config
	logger *logging.Logger
	server *http.Server

	dictionary *game.Dictionary
	lobby      *lobby.Registry
	manager    *room.Manager
	cleanup    *room.CleanupService
	security   *ws.SecurityMiddleware
	hub        *ws.Hub
	apiMW      *api.APIMiddleware

	db          *store.Postgres
	writer      *store.Writer
	forcedWords *store.ForcedWordLog
}

func main() {
	app := &Application{}

	if err := app.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		app.logger.Error("server exited", "error", err)
		logging.FlushSentry(2 * time.Second)
		os.Exit(1)
	}
}

func (app *Application) Initialize() error {
	// A missing .env is fine; the platform may set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	app.config = cfg

	if err := app.initializeLogging(); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	if err := app.initializeStore(); err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	app.initializeComponents()
	app.setupServer()

	app.logger.Info("application initialized",
		"address", app.server.Addr,
		"testMode", cfg.Dev.TestMode,
		"persistence", app.db != nil)
	return nil
}

func (app *Application) initializeLogging() error {
	if app.config.Sentry.DSN != "" {
		err := logging.InitSentry(logging.SentryConfig{
			DSN:              app.config.Sentry.DSN,
			Environment:      app.config.Sentry.Environment,
			Release:          app.config.Sentry.Release,
			TracesSampleRate: app.config.Sentry.TracesSampleRate,
			Debug:            app.config.Sentry.Debug,
		})
		if err != nil {
			return err
		}
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:       app.config.Logging.Level,
		Environment: app.config.Logging.Environment,
		Service:     app.config.Logging.Service,
		AddSource:   app.config.Logging.AddSource,
	})
	if err != nil {
		return err
	}
	logging.SetGlobalLogger(logger)
	app.logger = logging.CreateLogger("main")
	return nil
}

// initializeStore connects persistence when DATABASE_URL is set. Without it
// the server runs memory-only: games work, results are not recorded and
// daily challenges are disabled.
func (app *Application) initializeStore() error {
	ctx := context.Background()

	if url := app.config.Store.DatabaseURL; url != "" {
		if err := store.RunMigrations(ctx, url); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		db, err := store.NewPostgres(ctx, app.config.Store)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		app.db = db
		app.writer = store.NewWriter(db, app.config.Store.WriteQueueSize, app.config.Store.WriteWorkers)
		app.logger.Info("store connected",
			"workers", app.config.Store.WriteWorkers,
			"queueSize", app.config.Store.WriteQueueSize)
	} else {
		app.logger.Warn("DATABASE_URL not set, running without persistence")
	}

	if path := app.config.Store.ForcedWordLog; path != "" {
		forcedWords, err := store.OpenForcedWordLog(path)
		if err != nil {
			// Auditing is best-effort; the game must not depend on it.
			app.logger.Warn("forced word log unavailable", "path", path, "error", err)
		} else {
			app.forcedWords = forcedWords
		}
	}
	return nil
}

func (app *Application) initializeComponents() {
	app.dictionary = game.NewDictionary()
	app.logger.Info("dictionary loaded",
		"answers", app.dictionary.AnswerCount(),
		"validWords", app.dictionary.ValidWordCount())

	app.lobby = lobby.NewRegistry()

	// Typed nils must not reach the interface fields.
	var persistence room.Persistence
	if app.writer != nil {
		persistence = app.writer
	}
	var forcedWords room.ForcedWordSink
	if app.forcedWords != nil {
		forcedWords = app.forcedWords
	}
	app.manager = room.NewManager(app.config, app.dictionary, app.lobby, persistence, forcedWords)
	app.cleanup = room.NewCleanupService(app.manager, app.config.Room)

	app.security = ws.NewSecurityMiddleware(app.config.Security, app.config.Rate, app.config.CORS.AllowedOrigins)
	app.hub = ws.NewHub(app.manager, app.lobby, app.security, app.config.Security)
}

func (app *Application) setupServer() {
	router := mux.NewRouter()
	if app.config.Sentry.DSN != "" {
		router.Use(logging.SentryHTTPMiddleware())
	}

	// The WebSocket endpoint sits outside the REST middleware chain: it has
	// its own security layer, and the upgrade needs the raw ResponseWriter.
	wsHandler := ws.NewHandler(app.hub, app.security)
	router.HandleFunc("/ws", wsHandler.HandleWebSocket)

	app.apiMW = api.NewAPIMiddleware(app.config.CORS, app.config.Rate)

	apiRouter := mux.NewRouter()
	api.NewRoomHandler(app.manager, app.lobby).RegisterRoutes(apiRouter)
	var pinger api.Pinger
	if app.db != nil {
		pinger = app.db
	}
	api.NewHealthHandler(app.manager, app.dictionary, pinger).RegisterRoutes(apiRouter)

	rest := app.apiMW.Apply(apiRouter)
	router.PathPrefix("/api").Handler(rest)
	router.PathPrefix("/health").Handler(rest)

	app.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", app.config.Server.Host, app.config.Server.Port),
		Handler:      router,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}
}

func (app *Application) Run() error {
	go app.hub.Run()
	app.cleanup.Start()

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("server listening", "address", app.server.Addr)
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		app.logger.Info("shutdown signal received", "signal", sig.String())
		return app.gracefulShutdown()
	}
}

// gracefulShutdown drains in dependency order: stop HTTP intake, close the
// rooms while their players can still hear the close notice, drop the
// transports, then flush storage.
func (app *Application) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()

	var firstErr error

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("http shutdown failed", "error", err)
		firstErr = err
	}

	app.cleanup.Stop()
	app.manager.Shutdown()
	app.hub.Shutdown()
	app.apiMW.Stop()

	if app.writer != nil {
		if err := app.writer.Close(ctx); err != nil {
			app.logger.Error("store writer close failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if app.db != nil {
		app.db.Close()
	}
	if app.forcedWords != nil {
		if err := app.forcedWords.Close(); err != nil {
			app.logger.Warn("forced word log close failed", "error", err)
		}
	}

	app.logger.Info("shutdown complete")
	logging.FlushSentry(2 * time.Second)
	return firstErr
}
