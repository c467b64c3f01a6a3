package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flitsinc/go-transcript/internal/api"
	"github.com/flitsinc/go-transcript/internal/config"
	"github.com/flitsinc/go-transcript/internal/engine"
	"github.com/flitsinc/go-transcript/internal/history"
	"github.com/flitsinc/go-transcript/internal/state"
	"github.com/flitsinc/go-transcript/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("create data dir", "error", err)
		os.Exit(1)
	}

	db, err := state.Open(cfg.DBPath)
	if err != nil {
		logger.Error("open db", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	runs := state.NewStore(db)
	hist := history.NewStore(db)
	sink := telemetry.NewPromSink()

	assembler := &history.Assembler{
		Store:               hist,
		MemoryEnabled:       cfg.MemoryEnabled,
		Truncation:          cfg.Truncation,
		ToolTruncation:      cfg.ToolTruncation,
		NoFinalResponseText: cfg.NoFinalResponseText,
		Logger:              logger,
	}
	manager := engine.NewManager(runs, assembler, sink, logger)

	apiServer := &api.Server{
		Manager:   manager,
		Runs:      runs,
		History:   hist,
		StartedAt: time.Now(),
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer.Handler())
	mux.Handle("/metrics", sink.Handler())

	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		logger.Error("listen", "addr", cfg.HTTPAddr, "error", err)
		os.Exit(1)
	}

	serverCtx, serverCancel := context.WithCancel(context.Background())
	httpServer := &http.Server{
		Handler:           loggingMiddleware(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return serverCtx
		},
	}

	go func() {
		logger.Info("transcriptd listening", "addr", listener.Addr().String())
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	serverCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	_ = httpServer.Close()
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String())
	})
}
