package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spinola103/sales-radar/pkg/config"
	"github.com/spinola103/sales-radar/pkg/logger"
	"github.com/spinola103/sales-radar/pkg/models"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	m, err := NewManager(config.OutputConfig{
		ResultsDir:     filepath.Join(dir, "results"),
		DiagnosticsDir: filepath.Join(dir, "diagnostics"),
	}, logger.GetLogger())
	require.NoError(t, err)
	return m
}

func TestNewManagerCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	resultsDir := filepath.Join(dir, "a", "results")
	diagDir := filepath.Join(dir, "b", "diagnostics")

	_, err := NewManager(config.OutputConfig{ResultsDir: resultsDir, DiagnosticsDir: diagDir}, logger.GetLogger())
	require.NoError(t, err)

	assert.DirExists(t, resultsDir)
	assert.DirExists(t, diagDir)
}

func TestSaveResultWritesEnvelope(t *testing.T) {
	m := testManager(t)

	started := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	res := &models.RunResult{
		RunID:        "0f8fad5b-d9cb-469f-a165-70867728950e",
		Query:        "crm",
		RequestedMax: 50,
		Count:        1,
		StartedAt:    started,
		FinishedAt:   started.Add(30 * time.Second),
		Posts: []models.Post{
			{Permalink: "https://x.com/a/status/1", Author: "A", Handle: "a", Text: "hello"},
		},
	}

	path, err := m.SaveResult(res)
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(path), "run_20260825T100030Z_0f8fad5b")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var envelope struct {
		Metadata struct {
			RunID string `json:"run_id"`
			Query string `json:"query"`
			Count int    `json:"count"`
		} `json:"metadata"`
		Items []models.Post `json:"items"`
	}
	require.NoError(t, json.Unmarshal(data, &envelope))

	assert.Equal(t, res.RunID, envelope.Metadata.RunID)
	assert.Equal(t, "crm", envelope.Metadata.Query)
	assert.Equal(t, 1, envelope.Metadata.Count)
	require.Len(t, envelope.Items, 1)
	assert.Equal(t, "https://x.com/a/status/1", envelope.Items[0].Permalink)
}

func TestSaveResultEmptyRunHasItemsArray(t *testing.T) {
	m := testManager(t)

	res := &models.RunResult{
		RunID:      "11111111-2222-3333-4444-555555555555",
		Query:      "nothing",
		FinishedAt: time.Now().UTC(),
	}

	path, err := m.SaveResult(res)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"items": []`)
}

func TestWriteDiagnosticsPair(t *testing.T) {
	m := testManager(t)

	shotPath, snapPath, err := m.WriteDiagnostics([]byte("fake png"), "<html><body>gate</body></html>")
	require.NoError(t, err)

	require.NotEmpty(t, shotPath)
	require.NotEmpty(t, snapPath)
	assert.FileExists(t, shotPath)
	assert.FileExists(t, snapPath)

	snap, err := os.ReadFile(snapPath)
	require.NoError(t, err)
	assert.Contains(t, string(snap), "gate")
}

func TestWriteDiagnosticsSkipsEmptyArtifacts(t *testing.T) {
	m := testManager(t)

	shotPath, snapPath, err := m.WriteDiagnostics(nil, "")
	require.NoError(t, err)
	assert.Empty(t, shotPath)
	assert.Empty(t, snapPath)
}
