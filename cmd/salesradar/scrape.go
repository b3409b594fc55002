package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	errs "github.com/spinola103/sales-radar/pkg/errors"
	"github.com/spinola103/sales-radar/pkg/logger"
)

var (
	// Scrape command flags
	maxPosts    int
	outputDir   string
	cookiesFile string
	headless    bool
	browserPath string
	printJSON   bool
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape <query>...",
	Short: "Run one search scrape and save the results",
	Long: `Run a single scrape: validate the session, open the live search
timeline for the query, and collect matching posts until the requested
count is reached or the timeline stops growing.

Multiple arguments are joined into one query string, so quoting the
whole query is optional.`,
	Example: `  # Collect up to 50 posts (the default) for a query
  salesradar scrape looking for a CRM recommendation

  # Collect 200 posts and print them to stdout as JSON
  salesradar scrape "payroll software" --max 200 --json

  # Use a specific cookie file and a visible browser window
  salesradar scrape "hiring SDRs" --cookies ./cookies.json --headless=false`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runScrape(strings.Join(args, " "))
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().IntVarP(&maxPosts, "max", "m", 0, "maximum posts to collect (default from config)")
	scrapeCmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory for result files")
	scrapeCmd.Flags().StringVar(&cookiesFile, "cookies", "", "path to a JSON cookie file")
	scrapeCmd.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
	scrapeCmd.Flags().StringVar(&browserPath, "browser-path", "", "path to a Chromium binary")
	scrapeCmd.Flags().BoolVar(&printJSON, "json", false, "print collected posts to stdout as JSON")
}

func runScrape(query string) error {
	flags := map[string]interface{}{}
	if maxPosts > 0 {
		flags["max-posts"] = maxPosts
	}
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if cookiesFile != "" {
		flags["cookies"] = cookiesFile
	}
	if !headless {
		flags["headless"] = false
	}
	if browserPath != "" {
		flags["browser-path"] = browserPath
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

	res, err := s.Run(ctx, query, maxPosts)
	if err != nil {
		if errs.IsLoginRequired(err) {
			logger.GetLogger().WithError(err).Error("session rejected")
			fmt.Fprintln(os.Stderr, "Session is not authenticated. Export fresh cookies from a logged-in browser and retry.")
			var serr *errs.Error
			if errors.As(err, &serr) && serr.DiagnosticScreenshot != "" {
				fmt.Fprintf(os.Stderr, "Diagnostics: %s %s\n", serr.DiagnosticScreenshot, serr.DiagnosticSnapshot)
			}
			os.Exit(2)
		}
		return err
	}

	if printJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Posts); err != nil {
			return err
		}
	}

	fmt.Fprintf(os.Stderr, "Collected %d posts for %q (run %s)\n", res.Count, res.Query, res.RunID)
	return nil
}
