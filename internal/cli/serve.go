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
	"go.uber.org/zap"

	"passage/internal/adapter/cache"
	"passage/internal/metrics"
	"passage/internal/transport/httpapi"
	"passage/internal/usecase"
)

var (
	servePort     int
	serveStrategy string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose search and document maintenance over HTTP",
	Long: `Start the HTTP API: POST /search ranks passages with the configured
strategy, POST /documents appends to the remote index, and /healthz and
/metrics expose liveness and Prometheus metrics.

Examples:
  passage serve
  passage serve --port 9090 --strategy annoy`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config)")
	serveCmd.Flags().StringVar(&serveStrategy, "strategy", "", "ranking strategy: sparse, annoy or elastic (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	strategy := cfg.Retrieve.Strategy
	if serveStrategy != "" {
		strategy = serveStrategy
	}
	port := cfg.Serve.Port
	if servePort > 0 {
		port = servePort
	}

	docStore := newDocStore(log)

	rt, docs, cleanup, err := buildRetriever(strategy, docStore, log)
	if err != nil {
		return err
	}
	defer cleanup()

	metrics.RegisterSearchMetrics()
	if docs > 0 {
		metrics.CorpusDocuments.Set(float64(docs))
	}

	qcache := cache.NewQueryCache(cfg.Serve.CacheSize,
		time.Duration(cfg.Serve.CacheTTLSec)*time.Second)
	retrieveUC := usecase.NewRetrieveUseCase(cache.NewCachedRetriever(rt, qcache), log)
	ingestUC := usecase.NewIngestUseCase(docStore, log)

	server := httpapi.NewServer(
		retrieveUC,
		ingestUC,
		docStore,
		cfg.Elastic.Index,
		strategy,
		cfg.Retrieve.TopK,
		qcache,
		log,
	)

	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Routes(),
		ReadTimeout:  time.Duration(cfg.Serve.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Serve.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server",
			zap.String("addr", addr),
			zap.String("strategy", strategy))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-quit:
		log.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Serve.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}

	log.Info("server stopped gracefully")
	return nil
}
