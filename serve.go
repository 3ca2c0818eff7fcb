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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"smartsdlc/internal/api"
	"smartsdlc/internal/feedback"
	"smartsdlc/internal/gateway"
	"smartsdlc/internal/ingest"
	"smartsdlc/internal/logging"
	"smartsdlc/internal/service/ai"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, logCloser, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	provider, err := ai.NewProvider(ctx, cfg.Provider, logger)
	if err != nil {
		return fmt.Errorf("init provider: %w", err)
	}
	gw := gateway.New(provider, cfg.ProviderTimeout(), logger)

	uploads, err := ingest.NewFSStore(cfg.Upload.Dir)
	if err != nil {
		return err
	}
	ingestor := ingest.New(uploads, ingest.Options{
		MaxBytes:      cfg.Upload.MaxBytes,
		MaxConcurrent: cfg.Upload.MaxConcurrent,
		AcceptedTypes: cfg.Upload.AcceptedTypes,
	}, logger)
	ingest.StartCleaner(ctx, uploads, cfg.UploadTTL(), cfg.UploadCleanInterval(), logger)

	store, storeCloser, err := feedback.NewStore(cfg)
	if err != nil {
		return fmt.Errorf("init feedback store: %w", err)
	}
	defer storeCloser.Close()
	collector := feedback.NewCollector(store, logger)

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.NewHandler(gw, ingestor, collector, logger))
	srv := &http.Server{
		Addr:              cfg.BasicConfig.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", srv.Addr, "provider", cfg.Provider.Name, "feedback", cfg.Feedback.Backend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
