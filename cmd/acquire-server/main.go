package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"acquire/internal/api"
	"acquire/internal/config"
	"acquire/internal/lobby"
	"acquire/internal/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadServerFromEnv()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	hub := ws.NewHub(logger, cfg.AllowedOrigins)
	manager := lobby.NewManager(lobby.Caps{
		MaxLobbies:            cfg.MaxLobbies,
		MaxActiveGames:        cfg.MaxActiveGames,
		LobbyIdleTimeout:      cfg.LobbyIdleTimeout,
		GameIdleTimeout:       cfg.GameIdleTimeout,
		FinishedGameRetention: cfg.FinishedGameRetention,
		CleanupInterval:       cfg.CleanupInterval,
	}, time.Now, logger, hub)

	go manager.Run(ctx)

	server := api.New(cfg, logger, manager)
	mux := http.NewServeMux()
	mux.Handle("/ws/lobby", hub.Handler(ws.NamespaceLobby))
	mux.Handle("/ws/game", hub.Handler(ws.NamespaceGame))
	mux.Handle("/ws/voice", hub.Handler(ws.NamespaceVoice))
	mux.Handle("/", server.Handler())

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("acquire server listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
