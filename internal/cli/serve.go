package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/askdata/askdata/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sample backend",
	Long: `Run a self-contained backend that serves the built-in sample data over
the same HTTP and websocket API a production backend exposes. Useful for
trying the client end to end without any infrastructure.

With ASKDATA_SERVER_LLM=1 and a reachable Ollama host, answer summaries
are rewritten by the model instead of the deterministic templates.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (default from ASKDATA_SERVER_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := serveAddr
	if addr == "" {
		addr = cfg.ServerAddr
	}

	opts := server.Options{}
	if cfg.ServerLLM {
		synth, err := server.NewSynthesizer(cfg.OllamaHost, cfg.LLMModel)
		if err != nil {
			return fmt.Errorf("initialize synthesizer: %w", err)
		}
		opts.Synthesizer = synth
		logger.Info("LLM summaries enabled", "model", synth.Model())
	}

	srv := server.New(logger, opts)

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     srv.Handler(),
		ReadTimeout: 5 * time.Second,
		// Long write timeout: chat turns may wait on the LLM.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("sample backend listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-quit:
	}

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
