// Package app wires C1 through C10 into one running process. Component
// construction follows a fixed dependency order: store (C3/C4) → cipher
// (C1) → token verifier (C2) → cache (C5) → gateway (C6) → registry (C7)
// → offline queue (C8) → room coordinator (C9) → WebSocket handler →
// admission API (C10) → HTTP server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"roomcoordinator/internal/api"
	"roomcoordinator/internal/auth"
	"roomcoordinator/internal/cache"
	"roomcoordinator/internal/config"
	"roomcoordinator/internal/crypto"
	"roomcoordinator/internal/gateway"
	"roomcoordinator/internal/offlinequeue"
	"roomcoordinator/internal/registry"
	"roomcoordinator/internal/room"
	"roomcoordinator/internal/store"
	"roomcoordinator/internal/websocket"
	pkgdatabase "roomcoordinator/pkg/database"
)

// Application coordinates every component's lifetime. Only the pieces
// Stop() needs to release live as fields; most of the graph is reachable
// only through the coordinator and the HTTP mux that were built from it.
type Application struct {
	config      *config.Config
	logger      *zap.Logger
	store       *store.Manager
	cache       *cache.RedisCache
	coordinator *room.Coordinator
	httpServer  *http.Server
}

// NewApplication constructs every component. Nothing starts running until
// Start is called — construction failures (bad config, unreachable
// database) are reported here rather than surfacing mid-request.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	appLogger := newZapLogger(logger)

	// STEP 1: open the database and bring its schema up to date.
	dbConfig := &pkgdatabase.Config{
		DatabasePath:    cfg.Database.Path,
		MaxConnections:  10,
		ConnMaxLifetime: cfg.Database.Timeout,
		ConnMaxIdleTime: cfg.Database.Timeout / 3,
		MigrationsPath:  "migrations",
	}
	db, err := pkgdatabase.Open(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	migrationManager := pkgdatabase.NewMigrationManager(db, dbConfig.MigrationsPath)
	if err := migrationManager.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	logger.Info("database migrations applied")

	// STEP 2: cipher (C1) and store (C3/C4) — the store owns key
	// generation at room-creation time, so cipher only needs to be wired
	// once, here.
	cipher := crypto.NewAESCipher()
	roomStore := store.NewManager(db, cipher)

	// STEP 3: token verifier (C2).
	verifier := auth.NewJWTVerifier(cfg.Auth.TokenSecret)

	// STEP 4: artifact cache (C5).
	artifactCache := cache.NewRedisCache(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB)

	// STEP 5: provider gateway (C6). An empty ProviderBaseURL means no
	// translation/STT/TTS backend is configured; the adapters are wired
	// regardless since Gateway degrades gracefully on provider failure.
	translator := gateway.NewHTTPTranslator(cfg.Providers.BaseURL, cfg.Providers.APIKey, cfg.Providers.Timeout)
	transcriber := gateway.NewHTTPTranscriber(cfg.Providers.BaseURL, cfg.Providers.APIKey, cfg.Providers.Timeout)
	synthesizer := gateway.NewHTTPSynthesizer(cfg.Providers.BaseURL, cfg.Providers.APIKey, cfg.Providers.Timeout)
	gw := gateway.New(translator, transcriber, synthesizer, artifactCache, appLogger)

	// STEP 6/7: session registry (C7) and offline queue (C8).
	sessionRegistry := registry.New()
	queue := offlinequeue.New()

	// STEP 8: the room coordinator (C9), the actor graph everything else
	// feeds into.
	coordinator := room.New(roomStore, roomStore, verifier, gw, sessionRegistry, queue, appLogger)

	// STEP 9: WebSocket handler.
	wsHandler := websocket.NewHandler(coordinator)

	// STEP 10: admission HTTP surface (C10).
	apiServer := api.NewServer(roomStore, roomStore, verifier, artifactCache, sessionRegistry)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:      cfg,
		logger:      logger,
		store:       roomStore,
		cache:       artifactCache,
		coordinator: coordinator,
		httpServer:  httpServer,
	}, nil
}

// Start runs the HTTP server in the background and returns once it has
// had a moment to bind, or reports an immediate bind failure.
func (app *Application) Start(ctx context.Context) error {
	app.logger.Info("starting room coordinator", zap.String("addr", app.httpServer.Addr))

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		return err
	case <-time.After(100 * time.Millisecond):
		app.logger.Info("room coordinator started")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts the HTTP server down first so no new socket is admitted,
// then releases the store and cache connections and flushes the logger.
func (app *Application) Stop(ctx context.Context) error {
	app.logger.Info("shutting down room coordinator")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		app.logger.Warn("HTTP server shutdown error", zap.Error(err))
	}
	if err := app.store.Close(); err != nil {
		app.logger.Warn("store shutdown error", zap.Error(err))
	}
	if err := app.cache.Close(); err != nil {
		app.logger.Warn("cache shutdown error", zap.Error(err))
	}

	app.logger.Info("room coordinator shutdown complete")
	_ = app.logger.Sync()
	return nil
}

// GetAddr returns the server's bound address for tests and tooling.
func (app *Application) GetAddr() string {
	return app.httpServer.Addr
}
