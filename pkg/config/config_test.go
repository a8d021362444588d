package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"title", "body"}, cfg.Search.Fields)
	assert.Equal(t, 10, cfg.Rewrite.MaxSlop)
	assert.Equal(t, "context", cfg.Marking.TermMode)
	assert.Equal(t, 160, cfg.Marking.MaxContextChars)
	assert.Empty(t, cfg.Analysis.StopWords)
	assert.Empty(t, cfg.Indexer.DataDir, "index is in memory by default")
	assert.Equal(t, "document-ingest", cfg.Kafka.Topics.DocumentIngest)
	assert.Equal(t, "analytics-events", cfg.Kafka.Topics.AnalyticsEvents)
	assert.True(t, cfg.Analytics.Enabled)
	assert.Equal(t, time.Minute, cfg.Analytics.SnapshotInterval)
	assert.Equal(t, 1440, cfg.Analytics.KeepSnapshots)
	assert.Equal(t, 1024, cfg.Rewrite.CacheSize)
	assert.Equal(t, 50.0, cfg.Server.RateLimit)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  readTimeout: 2s
analysis:
  stopWords: [the, of]
marking:
  maxContextChars: 80
  termMode: all
  maxSnippets: 1
search:
  maxResults: 50
  defaultLimit: 5
  fields: [body]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"the", "of"}, cfg.Analysis.StopWords)
	assert.Equal(t, "all", cfg.Marking.TermMode)
	assert.Equal(t, []string{"body"}, cfg.Search.Fields)
	assert.Equal(t, 10, cfg.Rewrite.MaxSlop, "unset sections keep defaults")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SP_SERVER_PORT", "7070")
	t.Setenv("SP_REWRITE_MAX_SLOP", "3")
	t.Setenv("SP_ANALYSIS_STOP_WORDS", "a,an,the")
	t.Setenv("SP_MARKING_TERM_MODE", "span")
	t.Setenv("SP_ANALYTICS_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Rewrite.MaxSlop)
	assert.Equal(t, []string{"a", "an", "the"}, cfg.Analysis.StopWords)
	assert.Equal(t, "span", cfg.Marking.TermMode)
	assert.False(t, cfg.Analytics.Enabled)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"term mode", "marking:\n  termMode: loud\n"},
		{"negative slop", "rewrite:\n  maxSlop: -1\n"},
		{"negative rewrite cache", "rewrite:\n  cacheSize: -1\n"},
		{"negative rate", "server:\n  rateLimit: -2\n"},
		{"no fields", "search:\n  fields: []\n"},
		{"limit above max", "search:\n  maxResults: 5\n  defaultLimit: 10\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	t.Parallel()

	dsn := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "disable"}.DSN()
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=d sslmode=disable", dsn)
}
