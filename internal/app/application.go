package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"lectern/internal/api"
	"lectern/internal/config"
	"lectern/internal/live"
	"lectern/internal/presence"
	"lectern/internal/realtime"
	"lectern/internal/rooms"
	"lectern/internal/store"
	"lectern/pkg/database"
)

// Application wires all components. Initialization follows dependency
// order: store -> registries -> router -> protocol handler -> API -> HTTP.
type Application struct {
	config   *config.Config
	store    *store.Store
	presence *presence.Registry
	live     *live.Registry
	rooms    *rooms.Router
	realtime *realtime.Handler
	server   *api.Server
	http     *http.Server
}

// New builds the application from a validated configuration.
func New(cfg *config.Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbCfg := database.DefaultConfig()
	dbCfg.Path = cfg.Database.Path
	dbCfg.BusyTimeout = cfg.Database.BusyTimeout
	dbCfg.MaxConnections = cfg.Database.MaxConnections

	st, err := store.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	presenceReg := presence.NewRegistry()
	liveReg := live.NewRegistry()
	roomRouter := rooms.NewRouter()

	rt := realtime.NewHandler(roomRouter, presenceReg, liveReg, st, realtime.Options{
		PingInterval: cfg.WebSocket.PingInterval,
		ReadTimeout:  cfg.WebSocket.ReadTimeout,
		WriteTimeout: cfg.WebSocket.WriteTimeout,
		SendBuffer:   cfg.WebSocket.SendBuffer,
	})

	server := api.NewServer(st, liveReg, presenceReg, roomRouter, rt)

	return &Application{
		config:   cfg,
		store:    st,
		presence: presenceReg,
		live:     liveReg,
		rooms:    roomRouter,
		realtime: rt,
		server:   server,
		http: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      server,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		},
	}, nil
}

// Start runs the HTTP server until it is shut down.
func (a *Application) Start() error {
	slog.Info("app: listening", "addr", a.http.Addr)
	if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server: %w", err)
	}
	return nil
}

// Stop shuts the HTTP server down gracefully and closes the store. The
// in-memory registries need no teardown beyond process exit.
func (a *Application) Stop(ctx context.Context) error {
	slog.Info("app: shutting down")

	if err := a.http.Shutdown(ctx); err != nil {
		slog.Warn("app: HTTP shutdown", "error", err)
	}
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}
