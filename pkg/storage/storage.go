// Package storage persists run results and diagnostic evidence to disk.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spinola103/sales-radar/pkg/config"
	errs "github.com/spinola103/sales-radar/pkg/errors"
	"github.com/spinola103/sales-radar/pkg/logger"
	"github.com/spinola103/sales-radar/pkg/models"
)

const timestampFormat = "20060102T150405Z"

// Manager owns the results and diagnostics directories.
type Manager struct {
	resultsDir     string
	diagnosticsDir string
	log            logger.Logger
}

// NewManager creates the output directories if needed.
func NewManager(cfg config.OutputConfig, log logger.Logger) (*Manager, error) {
	for _, dir := range []string{cfg.ResultsDir, cfg.DiagnosticsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	return &Manager{
		resultsDir:     cfg.ResultsDir,
		diagnosticsDir: cfg.DiagnosticsDir,
		log:            log,
	}, nil
}

type resultMetadata struct {
	RunID        string    `json:"run_id"`
	Query        string    `json:"query"`
	RequestedMax int       `json:"requested_max"`
	Count        int       `json:"count"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

type resultEnvelope struct {
	Metadata resultMetadata `json:"metadata"`
	Items    []models.Post  `json:"items"`
}

// SaveResult writes one run as a JSON file and returns its path. The write
// goes through a temp file and rename so a crash never leaves a truncated
// result behind.
func (m *Manager) SaveResult(res *models.RunResult) (string, error) {
	envelope := resultEnvelope{
		Metadata: resultMetadata{
			RunID:        res.RunID,
			Query:        res.Query,
			RequestedMax: res.RequestedMax,
			Count:        res.Count,
			StartedAt:    res.StartedAt,
			FinishedAt:   res.FinishedAt,
		},
		Items: res.Posts,
	}
	if envelope.Items == nil {
		envelope.Items = []models.Post{}
	}

	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode run result: %w", err)
	}

	short := res.RunID
	if len(short) > 8 {
		short = short[:8]
	}
	name := fmt.Sprintf("run_%s_%s.json", res.FinishedAt.UTC().Format(timestampFormat), short)
	path := filepath.Join(m.resultsDir, name)

	tmp, err := os.CreateTemp(m.resultsDir, ".run-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp result file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write run result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close temp result file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to finalize run result: %w", err)
	}

	m.log.InfoWithFields("run result written", map[string]interface{}{
		"path":  path,
		"count": res.Count,
	})
	return path, nil
}

// WriteDiagnostics saves a screenshot and document snapshot pair for a
// failed session validation. Either input may be empty; only non-empty
// artifacts are written.
func (m *Manager) WriteDiagnostics(screenshot []byte, html string) (string, string, error) {
	stamp := time.Now().UTC().Format(timestampFormat)

	var screenshotPath, snapshotPath string

	if len(screenshot) > 0 {
		screenshotPath = filepath.Join(m.diagnosticsDir, fmt.Sprintf("auth_fail_%s.png", stamp))
		if err := os.WriteFile(screenshotPath, screenshot, 0o644); err != nil {
			return "", "", errs.Wrap(errs.ErrorTypeDiagnostic, "failed to write diagnostic screenshot", err)
		}
	}
	if html != "" {
		snapshotPath = filepath.Join(m.diagnosticsDir, fmt.Sprintf("auth_fail_%s.html", stamp))
		if err := os.WriteFile(snapshotPath, []byte(html), 0o644); err != nil {
			return screenshotPath, "", errs.Wrap(errs.ErrorTypeDiagnostic, "failed to write diagnostic snapshot", err)
		}
	}

	m.log.WarnWithFields("diagnostics captured", map[string]interface{}{
		"screenshot": screenshotPath,
		"snapshot":   snapshotPath,
	})
	return screenshotPath, snapshotPath, nil
}
