package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/vidnotes/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Pipeline.Workers)
	assert.Equal(t, 16, cfg.Pipeline.QueueSize)
	assert.Equal(t, 10*time.Second, cfg.Pipeline.ProgressInterval)
	assert.Equal(t, "bart-large-cnn", cfg.Models.Summarizer)
	assert.Equal(t, "t5-small", cfg.Models.LazySummarizer)
	assert.Equal(t, filepath.Join("data", "transcripts"), cfg.Paths.Transcripts)
	assert.Equal(t, filepath.Join("data", "config.json"), cfg.Paths.SettingsFile)
	assert.Equal(t, "2022-06-28", cfg.Notion.Version)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paths:\n  data_dir: /srv/vidnotes\n  notes: /elsewhere/notes\n"), 0o644))

	t.Setenv("NOTION_API_KEY", "secret_abc")
	t.Setenv("PIPELINE_WORKERS", "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret_abc", cfg.Notion.Token)
	assert.Equal(t, 5, cfg.Pipeline.Workers)
	assert.Equal(t, "/srv/vidnotes/downloads", cfg.Paths.Downloads)
	assert.Equal(t, "/elsewhere/notes", cfg.Paths.Notes)
	assert.Equal(t, "/srv/vidnotes/.vidnotes.lock", cfg.Paths.LockFile())
}

func TestDatabaseDSN(t *testing.T) {
	sqlite := DatabaseConfig{Driver: "sqlite", Path: "./data/x.db", URL: "ignored"}
	assert.Equal(t, "./data/x.db", sqlite.DSN())

	pg := DatabaseConfig{Driver: "postgres", Path: "ignored", URL: "postgres://u@h/db"}
	assert.Equal(t, "postgres://u@h/db", pg.DSN())
}

func TestSettingsStoreDefaultsWhenMissing(t *testing.T) {
	store := NewSettingsStore(filepath.Join(t.TempDir(), "config.json"))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), got)
}

func TestSettingsStoreRoundTrip(t *testing.T) {
	store := NewSettingsStore(filepath.Join(t.TempDir(), "nested", "config.json"))
	ctx := context.Background()

	saved, err := store.Save(ctx, domain.Settings{ModelType: domain.ModelFamilyFasterWhisper, ModelSize: "small"})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTheme, saved.Theme)

	got, err := store.Update(ctx, func(s *domain.Settings) { s.Theme = "dark" })
	require.NoError(t, err)
	assert.Equal(t, "dark", got.Theme)
	assert.Equal(t, domain.ModelFamilyFasterWhisper, got.ModelType)
	assert.Equal(t, "small", got.ModelSize)

	reloaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, got, reloaded)
}

func TestSettingsStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))

	_, err := NewSettingsStore(path).Load(context.Background())
	assert.ErrorContains(t, err, "parse settings")
}
