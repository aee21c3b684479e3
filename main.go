package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/0reilly/modern-note-app/auth"
	"github.com/0reilly/modern-note-app/config"
	"github.com/0reilly/modern-note-app/gateway"
	"github.com/0reilly/modern-note-app/hub"
	"github.com/0reilly/modern-note-app/protocol"
	ws "github.com/0reilly/modern-note-app/websocket"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	flagSet := pflag.NewFlagSet("notes-collab", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to YAML config file (optional)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return err
	}
	if err := setupLogger(cfg.Log); err != nil {
		return err
	}

	rooms := hub.New()
	handler := protocol.NewHandler(protocol.NewRouter(rooms))
	gw := gateway.New(auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer), rooms, handler)

	mux := http.NewServeMux()
	mux.Handle("/ws", ws.NewServer(gw, ws.ServerConfig{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		AllowedOrigins:  cfg.WebSocket.AllowedOrigins,
		Conn: ws.Options{
			WriteWait:      cfg.WebSocket.WriteWait,
			PongWait:       cfg.WebSocket.PongWait,
			MaxMessageSize: cfg.WebSocket.MaxMessageSize,
			SendBuffer:     cfg.WebSocket.SendBuffer,
		},
	}))
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/stats", statsHandler(rooms))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: mux,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	return nil
}

func setupLogger(cfg config.LogConfig) error {
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, opts)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, opts)))
	}
	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func statsHandler(rooms *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomCount, clients := rooms.Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"rooms": roomCount, "clients": clients})
	}
}
