// Package main provides the standalone sample backend for askdata.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/askdata/askdata/internal/config"
	"github.com/askdata/askdata/internal/server"
)

func main() {
	addr := flag.String("addr", "", "listen address (default from ASKDATA_SERVER_ADDR)")
	flag.Parse()

	cfg := config.Load()
	if *addr == "" {
		*addr = cfg.ServerAddr
	}

	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	opts := server.Options{}
	if cfg.ServerLLM {
		synth, err := server.NewSynthesizer(cfg.OllamaHost, cfg.LLMModel)
		if err != nil {
			slog.Error("failed to initialize synthesizer", "error", err)
			os.Exit(1)
		}
		opts.Synthesizer = synth
		slog.Info("LLM summaries enabled", "model", synth.Model())
	}

	srv := server.New(logger, opts)

	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second, // Long for LLM responses
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("sample backend listening", "addr", *addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
