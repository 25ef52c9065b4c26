package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/logger/pkg/logger"
	"github.com/cwrk-planet/poker-service/config"
	"github.com/cwrk-planet/poker-service/internal/memory"
	"github.com/cwrk-planet/poker-service/internal/postgres"
	"github.com/cwrk-planet/poker-service/internal/presence"
	"github.com/cwrk-planet/poker-service/internal/service"
	"github.com/cwrk-planet/poker-service/internal/store"
	httpx "github.com/cwrk-planet/poker-service/internal/transport/http"
	"github.com/cwrk-planet/poker-service/internal/transport/ws"
	"github.com/cwrk-planet/poker-service/internal/vault"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting poker-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	ctx := context.Background()

	// --- room store: postgres или память процесса ---
	var roomStore store.RoomStore
	if cfg.Postgres.DSN != "" {
		pool, err := postgres.NewPool(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			ApplicationName: cfg.Logging.Service,
		})
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()

		pgStore := postgres.NewRoomStore(pool)
		if err := pgStore.Migrate(ctx); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		roomStore = pgStore
	} else {
		slog.Warn("postgres.dsn empty, rooms live in process memory")
		roomStore = memory.NewRoomStore()
	}

	// --- crypto vault ---
	v, err := vault.New(cfg.Vault.Secret)
	if err != nil {
		log.Fatalf("vault: %v", err)
	}

	// --- engine & transports ---
	hub := ws.NewHub()
	engine := service.NewEngine(roomStore, v, hub, presence.NewTracker())
	wsServer := ws.NewServer(engine, cfg.WS.AllowedOrigins)

	roomSvc := service.NewRoomService(roomStore)
	handler := httpx.NewHandler(roomSvc)
	router := httpx.NewRouter(handler, wsServer)

	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}
