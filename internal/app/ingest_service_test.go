package app_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/app"
	"docrag/internal/model"
	"docrag/internal/testutil"
)

func TestEnqueue_Validation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.ingest.Enqueue(ctx, model.SourceKind("pdf"), 1)
	assert.ErrorIs(t, err, app.ErrInvalidInput)

	_, err = e.ingest.Enqueue(ctx, model.SourceDocument, 0)
	assert.ErrorIs(t, err, app.ErrInvalidInput)

	_, err = e.ingest.Enqueue(ctx, model.SourceWebpage, 42)
	assert.ErrorIs(t, err, app.ErrNotFound)
}

func TestEnqueue_OneRecordPerSource(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	doc, job := e.addDocument(t, "doc", "Some text here.")
	assert.Equal(t, model.JobPending, job.Status)
	assert.Equal(t, 1, e.notifier.count())

	again, err := e.ingest.Enqueue(ctx, model.SourceDocument, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, again.ID)
	assert.Equal(t, 1, e.notifier.count())

	_, res := e.runNext(t)
	require.True(t, res.OK())

	done, err := e.ingest.Enqueue(ctx, model.SourceDocument, doc.ID)
	assert.ErrorIs(t, err, app.ErrJobExists)
	require.NotNil(t, done)
	assert.Equal(t, model.JobCompleted, done.Status)

	jobs, err := e.ingest.ListJobs(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestReprocess(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	doc, job := e.addDocument(t, "doc", "placeholder")
	e.extractor.Fail(doc.Ref(), assert.AnError)

	assert.ErrorIs(t, e.ingest.Reprocess(ctx, job.ID), app.ErrJobActive)
	assert.ErrorIs(t, e.ingest.Reprocess(ctx, 999), app.ErrNotFound)
	assert.ErrorIs(t, e.ingest.Reprocess(ctx, 0), app.ErrInvalidInput)

	_, res := e.runNext(t)
	require.False(t, res.OK())

	// no automatic retry: the job stays failed
	_, ok, err := e.jobs.ClaimNext(ctx, "w", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, e.ingest.Reprocess(ctx, job.ID))
	status, err := e.ingest.GetStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, status.Status)
	assert.Empty(t, status.ErrorMessage)
	assert.Nil(t, status.StartedAt)
	assert.Nil(t, status.CompletedAt)
	assert.Equal(t, 2, e.notifier.count())

	delete(e.extractor.Errs, doc.Ref())
	e.extractor.Set(doc.Ref(), "Recovered text. It works now.")
	_, res = e.runNext(t)
	require.True(t, res.OK())

	status, err = e.ingest.GetStatusBySource(ctx, doc.Ref())
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, status.Status)
	assert.Equal(t, 2, status.Attempts)
}

func TestGetStatus_Unknown(t *testing.T) {
	e := newEnv(t)
	_, err := e.ingest.GetStatus(context.Background(), 12)
	assert.ErrorIs(t, err, app.ErrNotFound)
}

func TestListJobs_FilterByStatus(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addDocument(t, "a", "Alpha text.")
	e.addDocument(t, "b", "Beta text.")
	_, res := e.runNext(t)
	require.True(t, res.OK())

	pending, err := e.ingest.ListJobs(ctx, "pending", 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	completed, err := e.ingest.ListJobs(ctx, "completed", 10)
	require.NoError(t, err)
	assert.Len(t, completed, 1)

	_, err = e.ingest.ListJobs(ctx, "stuck", 10)
	assert.ErrorIs(t, err, app.ErrInvalidInput)
}

func TestCreateDocument_RequiresContent(t *testing.T) {
	e := newEnv(t)
	_, _, err := e.ingest.CreateDocument(context.Background(), app.CreateDocumentInput{Title: "x", Content: "   "})
	assert.ErrorIs(t, err, app.ErrInvalidInput)
}

func TestCrawlWebpage(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	for _, bad := range []string{"", "ftp://example.org/x", "example.org/page", "https://"} {
		_, _, err := e.ingest.CrawlWebpage(ctx, bad, 0)
		assert.ErrorIs(t, err, app.ErrInvalidInput, bad)
	}

	page, job, err := e.ingest.CrawlWebpage(ctx, "https://example.org/ild", 0)
	require.NoError(t, err)
	assert.Equal(t, model.SourceWebpage, job.SourceKind)
	assert.Equal(t, page.ID, job.SourceID)

	_, _, err = e.ingest.CrawlWebpage(ctx, "https://example.org/ild", 0)
	assert.ErrorIs(t, err, app.ErrIntegrityConflict)
}

func TestUploadPDF(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, _, err := e.ingest.UploadPDF(ctx, "notes.docx", strings.NewReader("x"), 0)
	assert.ErrorIs(t, err, app.ErrInvalidInput)

	doc, job, err := e.ingest.UploadPDF(ctx, "EULAR 2023.PDF", strings.NewReader("%PDF-1.4 fake"), 0)
	require.NoError(t, err)
	assert.Equal(t, "EULAR 2023", doc.Title)
	assert.Equal(t, model.JobPending, job.Status)

	data, err := os.ReadFile(filepath.Join(e.uploadDir, doc.Filename))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(data))
}

func TestImportFile(t *testing.T) {
	e := newEnv(t)
	src := filepath.Join(t.TempDir(), "ssc.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.7"), 0o644))

	doc, job, err := e.ingest.ImportFile(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "ssc", doc.Title)
	assert.Equal(t, doc.ID, job.SourceID)
}

func TestCollections(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	colls := app.NewCollectionService(e.colls)

	_, err := colls.Create(ctx, app.CreateCollectionInput{Name: "  "})
	assert.ErrorIs(t, err, app.ErrInvalidInput)
	_, err = colls.Create(ctx, app.CreateCollectionInput{Name: strings.Repeat("n", 101)})
	assert.ErrorIs(t, err, app.ErrInvalidInput)
	_, err = colls.Create(ctx, app.CreateCollectionInput{Name: "Orphan", ParentID: 42})
	assert.ErrorIs(t, err, app.ErrNotFound)

	rheum, err := colls.Create(ctx, app.CreateCollectionInput{Name: "Rheumatology", Description: "guidelines"})
	require.NoError(t, err)
	gout, err := colls.Create(ctx, app.CreateCollectionInput{Name: "Gout", ParentID: rheum.ID})
	require.NoError(t, err)
	require.NotNil(t, gout.ParentID)

	views, err := colls.List(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "Rheumatology", views[0].FullPath)
	assert.Equal(t, "Rheumatology / Gout", views[1].FullPath)

	doc, _, err := e.ingest.CreateDocument(ctx, app.CreateDocumentInput{Title: "flares", Content: "Gout flares.", CollectionID: gout.ID})
	require.NoError(t, err)
	require.NotNil(t, doc.CollectionID)
	assert.Equal(t, gout.ID, *doc.CollectionID)
	_, _, err = e.ingest.CreateDocument(ctx, app.CreateDocumentInput{Title: "loose", Content: "No collection."})
	require.NoError(t, err)
	page, _, err := e.ingest.CrawlWebpage(ctx, "https://example.org/gout", gout.ID)
	require.NoError(t, err)
	assert.Equal(t, gout.ID, *page.CollectionID)
	pdf, _, err := e.ingest.UploadPDF(ctx, "acr.pdf", strings.NewReader("%PDF-1.4"), rheum.ID)
	require.NoError(t, err)
	assert.Equal(t, rheum.ID, *pdf.CollectionID)

	_, _, err = e.ingest.CreateDocument(ctx, app.CreateDocumentInput{Title: "x", Content: "y", CollectionID: 99})
	assert.ErrorIs(t, err, app.ErrNotFound)
	_, _, err = e.ingest.CrawlWebpage(ctx, "https://example.org/other", 99)
	assert.ErrorIs(t, err, app.ErrNotFound)

	inGout, err := e.ingest.ListDocuments(ctx, gout.ID, 10)
	require.NoError(t, err)
	require.Len(t, inGout, 1)
	assert.Equal(t, doc.ID, inGout[0].ID)
	all, err := e.ingest.ListDocuments(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	pages, err := e.ingest.ListWebpages(ctx, rheum.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, pages)
	_, err = e.ingest.ListWebpages(ctx, 99, 10)
	assert.ErrorIs(t, err, app.ErrNotFound)
}

func TestListTags(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	for _, tags := range []string{"gout,urate", "Gout, flares", "", "urate,gout,gout"} {
		require.NoError(t, e.docs.Create(ctx, &model.Document{Filename: "t.txt", Title: "t", Tags: tags}))
	}

	got, err := e.ingest.ListTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []app.TagCount{
		{Tag: "gout", Count: 3},
		{Tag: "urate", Count: 2},
		{Tag: "flares", Count: 1},
	}, got)
}

func TestDeleteSource(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	doc, _ := e.addDocument(t, "to delete", testutil.ShortSentences(1500))
	keep, _ := e.addDocument(t, "to keep", "Keep this one. It matters.")
	_, res := e.runNext(t)
	require.True(t, res.OK())
	_, res = e.runNext(t)
	require.True(t, res.OK())

	require.NoError(t, e.ingest.DeleteSource(ctx, doc.Ref()))

	gone, err := e.docs.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	chunks, err := e.chunks.ListBySource(ctx, doc.Ref())
	require.NoError(t, err)
	assert.Empty(t, chunks)
	job, err := e.jobs.GetBySource(ctx, doc.Ref())
	require.NoError(t, err)
	assert.Nil(t, job)

	kept, err := e.chunks.ListBySource(ctx, keep.Ref())
	require.NoError(t, err)
	require.Len(t, kept, 1)
	n, err := e.embs.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.ErrorIs(t, e.ingest.DeleteSource(ctx, doc.Ref()), app.ErrNotFound)
}

func TestDeleteSource_RefusesProcessingJob(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	doc, _ := e.addDocument(t, "busy", "Busy text.")
	_, ok, err := e.jobs.ClaimNext(ctx, "w", time.Now().UTC())
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, e.ingest.DeleteSource(ctx, doc.Ref()), app.ErrJobActive)
}
