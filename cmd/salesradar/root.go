package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/spinola103/sales-radar/pkg/browser"
	"github.com/spinola103/sales-radar/pkg/config"
	"github.com/spinola103/sales-radar/pkg/cookies"
	"github.com/spinola103/sales-radar/pkg/logger"
	"github.com/spinola103/sales-radar/pkg/storage"
	"github.com/spinola103/sales-radar/pkg/timeline"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "salesradar",
	Short: "Collect posts matching a search query from the X live timeline",
	Long: `Sales Radar drives a headless browser through an X search timeline and
collects the posts that match a query as structured JSON.

A valid session is required: export session cookies from a logged-in
browser profile and provide them via the SALESRADAR_COOKIES environment
variable, a cookies.json file, or the system keychain ('salesradar
cookies store').`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.salesradar.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`Sales Radar {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig merges the config file, environment and command flags, then
// initializes logging.
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	logger.Initialize(&cfg.Logging)
	return cfg, nil
}

// buildScraper assembles the scraper and its collaborators from config.
func buildScraper(cfg *config.Config) (*timeline.Scraper, error) {
	log := logger.GetLogger()

	store, err := storage.NewManager(cfg.Output, log)
	if err != nil {
		return nil, err
	}

	return timeline.NewScraper(
		cfg,
		browser.NewLauncher(cfg.Browser, log),
		cookies.FromConfig(&cfg.Cookies, log),
		store,
		store,
		log,
	), nil
}
