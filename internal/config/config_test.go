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
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, "hash", cfg.Embedding.Provider)
	assert.Equal(t, 5*time.Second, cfg.Worker.PollInterval())
	assert.Equal(t, 24*time.Hour, cfg.Worker.MetricsRetention())
	assert.Equal(t, 30*time.Second, cfg.Worker.Heartbeat())
	assert.Equal(t, 2*time.Minute, cfg.Worker.StaleAfter())
	assert.False(t, cfg.LLM.Enabled())
	assert.Equal(t, time.Minute, cfg.LLM.Timeout())
	assert.Equal(t, 2, cfg.LLM.MaxRetries)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
[app]
name = "docrag-test"
port = 9090

[database]
driver = "mysql"

[database.mysql]
host = "db"
port = 3307
user = "rag"
password = "pw"
db = "rag"
params = "parseTime=true"

[chunking]
size = 500
overlap = 50

[search]
threshold = 0.5
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("APP_PORT", "7070")
	t.Setenv("SEARCH_THRESHOLD", "0.25")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("WORKER_STALE_AFTER_MINUTES", "15")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "docrag-test", cfg.App.Name)
	assert.Equal(t, 7070, cfg.App.Port)
	assert.Equal(t, 500, cfg.Chunking.Size)
	assert.InDelta(t, 0.25, cfg.Search.Threshold, 1e-9)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Worker.StaleAfter())
	assert.Equal(t, "rag:pw@tcp(db:3307)/rag?parseTime=true", cfg.MySQLDSN())
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"overlap not below size": "[chunking]\nsize = 100\noverlap = 100\n",
		"unknown driver":         "[database]\ndriver = \"postgres\"\n",
		"unknown provider":       "[embedding]\nprovider = \"word2vec\"\n",
		"openai without model":   "[embedding]\nprovider = \"openai\"\n",
		"threshold out of range": "[search]\nthreshold = 1.5\n",
		"bad log level":          "[log]\nlevel = \"loud\"\n",
		"stale within heartbeats": "[worker]\nheartbeat_seconds = 90\nstale_after_minutes = 2\n",
		"no stale window":         "[worker]\nstale_after_minutes = 0\n",
		"llm retries too high":    "[llm]\nmax_retries = 50\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", writeConfig(t, body))
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_BrokenToml(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, "[app\nname="))
	_, err := Load()
	assert.Error(t, err)
}

func TestGetEnvHelpers_FallBackOnGarbage(t *testing.T) {
	t.Setenv("X_INT", "ten")
	t.Setenv("X_FLOAT", "")
	t.Setenv("X_BOOL", "maybe")
	assert.Equal(t, 3, getEnvAsInt("X_INT", 3))
	assert.InDelta(t, 0.5, getEnvAsFloat("X_FLOAT", 0.5), 1e-9)
	assert.True(t, getEnvAsBool("X_BOOL", true))
}
