package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/app"
	"docrag/internal/config"
	"docrag/internal/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "docrag.db"))
	t.Setenv("UPLOAD_DIR", t.TempDir())
	t.Setenv("WORKER_POLL_INTERVAL_SECONDS", "1")
	t.Setenv("LOG_LEVEL", "error")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestApp_IngestsThroughBackgroundWorker(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	assert.Nil(t, a.Redis)
	assert.Nil(t, a.MQConn)
	assert.Equal(t, "hash-v1-256-64", a.Embedder.Name())

	require.NoError(t, a.StartBackground(ctx))
	assert.True(t, a.Supervisor.IsRunning())

	doc, job, err := a.Ingest.CreateDocument(ctx, app.CreateDocumentInput{
		Title:   "gout",
		Content: "Gout is an inflammatory arthritis. Urate crystals deposit in the joint.",
	})
	require.NoError(t, err)
	a.Supervisor.Nudge()

	require.Eventually(t, func() bool {
		st, err := a.Ingest.GetStatus(ctx, job.ID)
		return err == nil && st.Status == model.JobCompleted
	}, 5*time.Second, 20*time.Millisecond)

	hits, err := a.Search.SearchHits(ctx, "urate crystals in the joint", 3, 0.1)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, doc.Ref(), hits[0].Source)
}

func TestNewEmbedder_OpenAIRequiresCredentials(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.Model = "text-embedding-3-small"
	cfg.LLM.APIKey = ""
	_, err := newEmbedder(cfg)
	assert.Error(t, err)

	cfg.LLM.APIKey = "sk-test"
	e, err := newEmbedder(cfg)
	require.NoError(t, err)
	assert.Contains(t, e.Name(), "text-embedding-3-small")
}
