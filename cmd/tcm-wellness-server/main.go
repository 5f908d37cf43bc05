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

	"github.com/spf13/cobra"

	"tcm-wellness-backend/internal/config"
	"tcm-wellness-backend/internal/llm"
	"tcm-wellness-backend/internal/logger"
	"tcm-wellness-backend/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tcm-wellness-server",
		Short:         "TCM wellness intake assistant backed by DeepSeek",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd)
		},
	}
	config.BindFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(&cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if cfg.SecretsFile != "" {
		log.Info("loaded secrets from", cfg.SecretsFile)
	}
	if !cfg.HasServerKey() {
		log.Warn("no DeepSeek key configured, clients must send", server.APIKeyHeader)
	}

	chat := llm.NewClient(llm.Settings{
		APIKey:      cfg.DeepSeekAPIKey,
		BaseURL:     cfg.DeepSeekBaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
	})
	s, err := server.NewServer(cfg, log, chat)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	s.StartJanitor(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("TCM wellness server listening on", srv.Addr, "model", cfg.Model)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
		close(serverErrors)
	}()

	select {
	case err := <-serverErrors:
		if err != nil {
			_ = s.Close()
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed:", err)
	}
	if err := s.Close(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
