// Package cookies loads session cookies for a scrape run. Cookies come from
// an environment variable, a JSON file on disk, or the system keychain;
// malformed or empty input is treated as "no cookies", never as an error.
package cookies

import (
	"encoding/json"
	"os"

	"github.com/spinola103/sales-radar/pkg/config"
	"github.com/spinola103/sales-radar/pkg/logger"
	"github.com/spinola103/sales-radar/pkg/models"
)

// DefaultDomain is applied to cookies that arrive without a domain.
const DefaultDomain = ".x.com"

// Source supplies the session cookies for one run.
type Source interface {
	Load() []models.Cookie
}

// Parse decodes a JSON cookie array and normalizes domain and path
// defaults. A decode failure yields nil.
func Parse(data []byte) []models.Cookie {
	var cookies []models.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil
	}
	for i := range cookies {
		if cookies[i].Domain == "" {
			cookies[i].Domain = DefaultDomain
		}
		if cookies[i].Path == "" {
			cookies[i].Path = "/"
		}
	}
	return cookies
}

// EnvSource reads a JSON cookie array from an environment variable.
type EnvSource struct {
	Var string
	Log logger.Logger
}

func (s *EnvSource) Load() []models.Cookie {
	raw := os.Getenv(s.Var)
	if raw == "" {
		return nil
	}
	cookies := Parse([]byte(raw))
	if cookies == nil {
		s.Log.WarnWithFields("ignoring malformed cookie JSON in environment", map[string]interface{}{
			"var": s.Var,
		})
	}
	return cookies
}

// FileSource reads a JSON cookie array from a file on disk.
type FileSource struct {
	Path string
	Log  logger.Logger
}

func (s *FileSource) Load() []models.Cookie {
	if s.Path == "" {
		return nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.Log.WithError(err).WithField("path", s.Path).Warn("failed to read cookie file")
		}
		return nil
	}
	cookies := Parse(data)
	if cookies == nil {
		s.Log.WarnWithFields("ignoring malformed cookie file", map[string]interface{}{
			"path": s.Path,
		})
	}
	return cookies
}

// Chain tries each source in order and returns the first non-empty result.
type Chain []Source

func (c Chain) Load() []models.Cookie {
	for _, s := range c {
		if cookies := s.Load(); len(cookies) > 0 {
			return cookies
		}
	}
	return nil
}

// FromConfig builds the standard source chain: environment variable, then
// cookie file, then system keychain.
func FromConfig(cfg *config.CookiesConfig, log logger.Logger) Source {
	var chain Chain
	if cfg.EnvVar != "" {
		chain = append(chain, &EnvSource{Var: cfg.EnvVar, Log: log})
	}
	if cfg.File != "" {
		chain = append(chain, &FileSource{Path: cfg.File, Log: log})
	}
	if cfg.KeyringService != "" && cfg.KeyringAccount != "" {
		chain = append(chain, &KeyringSource{
			Service: cfg.KeyringService,
			Account: cfg.KeyringAccount,
			Log:     log,
		})
	}
	return chain
}
