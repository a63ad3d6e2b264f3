package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"docrag/internal/app"
	"docrag/internal/model"
	"docrag/internal/rag"
	"docrag/internal/repository"
	"docrag/internal/testutil"
)

type env struct {
	docs      *repository.DocumentRepository
	pages     *repository.WebpageRepository
	chunks    *repository.ChunkRepository
	embs      *repository.EmbeddingRepository
	jobs      *repository.JobRepository
	users     *repository.UserRepository
	colls     *repository.CollectionRepository
	history   *repository.QueryHistoryRepository
	metrics   *repository.MetricRepository
	extractor *testutil.FakeExtractor
	embedder  rag.Embedder
	notifier  *recordingNotifier
	pipeline  *app.Pipeline
	ingest    *app.IngestService
	search    *app.SearchService
	uploadDir string
}

type envOption func(*envConfig)

type envConfig struct {
	lookup   app.MetadataLookup
	embedder rag.Embedder
	answers  app.AnswerGenerator
	cache    app.SearchCache
	history  app.HistoryCache
}

func withLookup(l app.MetadataLookup) envOption   { return func(c *envConfig) { c.lookup = l } }
func withEmbedder(e rag.Embedder) envOption       { return func(c *envConfig) { c.embedder = e } }
func withAnswers(a app.AnswerGenerator) envOption { return func(c *envConfig) { c.answers = a } }
func withCache(sc app.SearchCache) envOption      { return func(c *envConfig) { c.cache = sc } }
func withHistory(h app.HistoryCache) envOption    { return func(c *envConfig) { c.history = h } }

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()
	cfg := envConfig{}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.embedder == nil {
		hash, err := rag.NewHashEmbedder(0, 0)
		require.NoError(t, err)
		cfg.embedder = hash
	}

	db := testutil.NewDB(t)
	e := &env{
		docs:      repository.NewDocumentRepository(db),
		pages:     repository.NewWebpageRepository(db),
		chunks:    repository.NewChunkRepository(db),
		embs:      repository.NewEmbeddingRepository(db),
		jobs:      repository.NewJobRepository(db),
		users:     repository.NewUserRepository(db),
		colls:     repository.NewCollectionRepository(db),
		history:   repository.NewQueryHistoryRepository(db),
		metrics:   repository.NewMetricRepository(db),
		extractor: testutil.NewFakeExtractor(),
		embedder:  cfg.embedder,
		notifier:  &recordingNotifier{},
		uploadDir: t.TempDir(),
	}
	e.pipeline = app.NewPipeline(e.docs, e.pages, e.chunks, e.embs, e.extractor, cfg.lookup, e.embedder,
		app.PipelineOptions{ChunkSize: 1000, ChunkOverlap: 200})
	e.ingest = app.NewIngestService(e.docs, e.pages, e.jobs, e.chunks, e.embs, e.colls, e.notifier, cfg.cache, e.uploadDir)
	e.search = app.NewSearchService(e.chunks, e.embs, e.history, e.embedder, cfg.cache, cfg.history, cfg.answers)
	return e
}

// addDocument creates a document with inline text, registers the text with
// the fake extractor and enqueues it.
func (e *env) addDocument(t *testing.T, title, text string) (*model.Document, *model.JobRecord) {
	t.Helper()
	doc, job, err := e.ingest.CreateDocument(context.Background(), app.CreateDocumentInput{Title: title, Content: text})
	require.NoError(t, err)
	e.extractor.Set(doc.Ref(), text)
	return doc, job
}

// runNext claims the oldest pending job, runs it and records the outcome the
// way the worker does.
func (e *env) runNext(t *testing.T) (*model.JobRecord, app.Result) {
	t.Helper()
	ctx := context.Background()
	job, ok, err := e.jobs.ClaimNext(ctx, "test-worker", time.Now().UTC())
	require.NoError(t, err)
	require.True(t, ok, "expected a pending job")

	res := e.pipeline.Run(ctx, job)
	if res.OK() {
		require.NoError(t, e.jobs.MarkCompleted(ctx, job, time.Now().UTC()))
	} else {
		require.NoError(t, e.jobs.MarkFailed(ctx, job, time.Now().UTC(), res.Failure.Kind, res.Failure.Message))
	}
	return job, res
}

type recordingNotifier struct {
	mu   sync.Mutex
	jobs []uint
}

func (n *recordingNotifier) NotifyQueued(_ context.Context, job *model.JobRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, job.ID)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.jobs)
}

type fakeLookup struct {
	byDOI map[string]*model.PaperMetadata
	err   error
	calls []string
}

func (f *fakeLookup) LookupMetadata(_ context.Context, doi string) (*model.PaperMetadata, error) {
	f.calls = append(f.calls, doi)
	if f.err != nil {
		return nil, f.err
	}
	return f.byDOI[doi], nil
}

// flakyEmbedder fails on the call numbered failOn (1-based).
type flakyEmbedder struct {
	rag.Embedder
	mu     sync.Mutex
	calls  int
	failOn int
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if n == f.failOn {
		return nil, errors.New("model backend unavailable")
	}
	return f.Embedder.Embed(ctx, text)
}

type fakeAnswers struct {
	got     []model.Chunk
	history []model.QueryHistory
}

func (f *fakeAnswers) GenerateAnswer(_ context.Context, query string, history []model.QueryHistory, chunks []model.Chunk) (string, error) {
	f.got = chunks
	f.history = history
	return "  answer to " + query + " ", nil
}
