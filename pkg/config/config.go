package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the sales-radar scraper.
type Config struct {
	// Search behaviour: how much to collect and how to paginate
	Search SearchConfig `yaml:"search" json:"search"`

	// Browser automation settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Cookie source settings
	Cookies CookiesConfig `yaml:"cookies" json:"cookies"`

	// Output and diagnostics locations
	Output OutputConfig `yaml:"output" json:"output"`

	// HTTP server settings
	Server ServerConfig `yaml:"server" json:"server"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SearchConfig controls the collection loop.
type SearchConfig struct {
	// MaxPostsDefault is used when a request does not specify a maximum.
	MaxPostsDefault int `yaml:"max_posts_default" json:"max_posts_default"`
	// ScrollDelay is the pause after each programmatic scroll, giving lazy
	// content time to render.
	ScrollDelay time.Duration `yaml:"scroll_delay" json:"scroll_delay"`
	// ScrollBudget is the number of consecutive no-growth scrolls tolerated
	// before the loop gives up.
	ScrollBudget int `yaml:"scroll_budget" json:"scroll_budget"`
}

// BrowserConfig holds browser launch and navigation settings.
type BrowserConfig struct {
	Headless  bool   `yaml:"headless" json:"headless"`
	BinPath   string `yaml:"bin_path" json:"bin_path"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`

	NavTimeout     time.Duration `yaml:"nav_timeout" json:"nav_timeout"`
	SearchTimeout  time.Duration `yaml:"search_timeout" json:"search_timeout"`
	ElementTimeout time.Duration `yaml:"element_timeout" json:"element_timeout"`
}

// CookiesConfig tells the cookie source where to look. All backends are
// optional; an empty result is not an error.
type CookiesConfig struct {
	// EnvVar names an environment variable holding a JSON cookie array.
	EnvVar string `yaml:"env_var" json:"env_var"`
	// File is a path to a JSON cookie file.
	File string `yaml:"file" json:"file"`
	// KeyringService/KeyringAccount locate a JSON cookie array in the
	// system keychain.
	KeyringService string `yaml:"keyring_service" json:"keyring_service"`
	KeyringAccount string `yaml:"keyring_account" json:"keyring_account"`
}

// OutputConfig holds result and diagnostic artifact locations.
type OutputConfig struct {
	ResultsDir     string `yaml:"results_dir" json:"results_dir"`
	DiagnosticsDir string `yaml:"diagnostics_dir" json:"diagnostics_dir"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string        `yaml:"addr" json:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	// RequestsPerMinute limits scrape requests; 0 disables the limiter.
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// DefaultConfig returns a Config instance with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			MaxPostsDefault: 50,
			ScrollDelay:     1000 * time.Millisecond,
			ScrollBudget:    12,
		},
		Browser: BrowserConfig{
			Headless:       true,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			NavTimeout:     30 * time.Second,
			SearchTimeout:  60 * time.Second,
			ElementTimeout: 15 * time.Second,
		},
		Cookies: CookiesConfig{
			EnvVar: "SALESRADAR_COOKIES",
			File:   "cookies.json",
		},
		Output: OutputConfig{
			ResultsDir:     "./results",
			DiagnosticsDir: "./diagnostics",
		},
		Server: ServerConfig{
			Addr:              ":8080",
			RequestTimeout:    5 * time.Minute,
			RequestsPerMinute: 0,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   false,
		},
	}
}

// LoadFromEnv overrides configuration from SALESRADAR_* environment
// variables.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("SALESRADAR_HEADLESS"); v != "" {
		c.Browser.Headless = strings.ToLower(v) != "false"
	}
	if v := os.Getenv("SALESRADAR_BROWSER_PATH"); v != "" {
		c.Browser.BinPath = v
	}
	if v := os.Getenv("SALESRADAR_USER_AGENT"); v != "" {
		c.Browser.UserAgent = v
	}
	if v := os.Getenv("SALESRADAR_MAX_POSTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxPostsDefault = n
		}
	}
	if v := os.Getenv("SALESRADAR_SCROLL_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.ScrollDelay = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("SALESRADAR_SCROLL_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.ScrollBudget = n
		}
	}
	if v := os.Getenv("SALESRADAR_COOKIES_FILE"); v != "" {
		c.Cookies.File = v
	}
	if v := os.Getenv("SALESRADAR_RESULTS_DIR"); v != "" {
		c.Output.ResultsDir = v
	}
	if v := os.Getenv("SALESRADAR_DIAGNOSTICS_DIR"); v != "" {
		c.Output.DiagnosticsDir = v
	}
	if v := os.Getenv("SALESRADAR_LISTEN_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SALESRADAR_REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Server.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("SALESRADAR_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SALESRADAR_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file. An empty path falls
// back to the standard locations; a missing file is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for a config file in standard locations.
func (c *Config) findConfigFile() string {
	locations := []string{
		".salesradar.yaml",
		".salesradar.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "salesradar", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "salesradar", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".salesradar.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.Search.MaxPostsDefault <= 0 {
		errs = append(errs, errors.New("default max posts must be positive"))
	}
	if c.Search.ScrollDelay <= 0 {
		errs = append(errs, errors.New("scroll delay must be positive"))
	}
	if c.Search.ScrollBudget <= 0 {
		errs = append(errs, errors.New("scroll budget must be positive"))
	}

	if c.Browser.NavTimeout <= 0 {
		errs = append(errs, errors.New("navigation timeout must be positive"))
	}
	if c.Browser.SearchTimeout <= 0 {
		errs = append(errs, errors.New("search timeout must be positive"))
	}
	if c.Browser.ElementTimeout <= 0 {
		errs = append(errs, errors.New("element timeout must be positive"))
	}

	if c.Output.ResultsDir == "" {
		errs = append(errs, errors.New("results directory is required"))
	}
	if c.Output.DiagnosticsDir == "" {
		errs = append(errs, errors.New("diagnostics directory is required"))
	}

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server listen address is required"))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("server request timeout must be positive"))
	}
	if c.Server.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if maxPosts, ok := flags["max-posts"].(int); ok && maxPosts > 0 {
		c.Search.MaxPostsDefault = maxPosts
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = headless
	}
	if binPath, ok := flags["browser-path"].(string); ok && binPath != "" {
		c.Browser.BinPath = binPath
	}
	if cookiesFile, ok := flags["cookies"].(string); ok && cookiesFile != "" {
		c.Cookies.File = cookiesFile
	}
	if resultsDir, ok := flags["output"].(string); ok && resultsDir != "" {
		c.Output.ResultsDir = resultsDir
	}
	if addr, ok := flags["addr"].(string); ok && addr != "" {
		c.Server.Addr = addr
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: Command line flags > Environment variables > .env file >
// Config file > Defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".salesradar.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
