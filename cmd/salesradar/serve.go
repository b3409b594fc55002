package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spinola103/sales-radar/internal/server"
	"github.com/spinola103/sales-radar/pkg/logger"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run Sales Radar as an HTTP service. POST /api/v1/scrape with a JSON
body {"query": "...", "max_posts": 50} launches a scrape and returns the
collected posts. GET /healthz reports liveness.`,
	Example: `  salesradar serve --addr :8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe() error {
	flags := map[string]interface{}{}
	if serveAddr != "" {
		flags["addr"] = serveAddr
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	s, err := buildScraper(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize scraper: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg.Server, s, logger.GetLogger())
	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	logger.GetLogger().Info("server stopped")
	return nil
}
