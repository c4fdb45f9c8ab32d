package cmd

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
	"golang.org/x/sync/errgroup"

	"summary_review_workflow/metrics"
	"summary_review_workflow/publisher"
	"summary_review_workflow/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API. Runs are started with POST /api/runs, observed with
GET /api/runs/{id} or the /api/runs/{id}/events WebSocket, and cancelled with DELETE.
Prometheus metrics are exposed on /metrics.`,
	Args: cobra.NoArgs,
	RunE: serve,
}

func init() {
	f := serveCmd.Flags()
	f.String("addr", "", "http listen address (default :8080)")
	f.String("webhook", "", "POST every completed run to this URL")
	_ = v.BindPFlag("server.addr", f.Lookup("addr"))
	_ = v.BindPFlag("publish.webhook_url", f.Lookup("webhook"))

	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	recorder := metrics.NewPrometheusRecorder()
	llm, err := buildLLM(cfg, recorder)
	if err != nil {
		return err
	}
	engine, err := buildEngine(cfg, llm, recorder, nil)
	if err != nil {
		return err
	}
	creds, err := cfg.Server.Credentials()
	if err != nil {
		return err
	}
	var pub *publisher.Publisher
	if cfg.Publish.WebhookURL != "" {
		pub, err = publisher.New(cfg.Publish.WebhookURL, nil, cfg.Verbose, logger)
		if err != nil {
			return err
		}
	}

	srv, err := server.New(engine, server.Options{
		LLM:         llm,
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		Metrics:     recorder.Handler(),
		Credentials: creds,
		Publisher:   pub,
		RunTTL:      cfg.Server.RunTTL,
		MaxRuns:     cfg.Server.MaxRuns,
		Logger:      logger,
		Verbose:     cfg.Verbose,
	})
	if err != nil {
		return err
	}
	if len(creds) == 0 {
		logger.Printf("[WARN] no credentials configured; authentication is disabled")
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Printf("Starting web server on %s (provider=%s model=%s)", cfg.Server.Addr, cfg.LLM.Provider, cfg.LLM.Model)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Printf("Shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := httpSrv.Shutdown(shutdownCtx)
		srv.Close()
		return err
	})
	return g.Wait()
}
