package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"docrag/internal/model"
	"docrag/internal/repository"
)

const defaultJobListLimit = 100

// IngestService is the write side: it creates source items and their jobs.
// It never runs the pipeline itself.
type IngestService struct {
	docRepo   *repository.DocumentRepository
	pageRepo  *repository.WebpageRepository
	jobRepo   *repository.JobRepository
	chunkRepo *repository.ChunkRepository
	embRepo   *repository.EmbeddingRepository
	collRepo  *repository.CollectionRepository
	notifier  JobNotifier
	cache     SearchCache
	uploadDir string
}

type JobStatusView struct {
	JobID        uint              `json:"job_id"`
	Source       model.SourceRef   `json:"source"`
	Status       model.JobStatus   `json:"status"`
	ErrorKind    model.FailureKind `json:"error_kind,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	QueuedAt     time.Time         `json:"queued_at"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	Attempts     int               `json:"attempts"`
}

type CreateDocumentInput struct {
	Title        string
	Content      string
	CollectionID uint
}

func NewIngestService(
	docRepo *repository.DocumentRepository,
	pageRepo *repository.WebpageRepository,
	jobRepo *repository.JobRepository,
	chunkRepo *repository.ChunkRepository,
	embRepo *repository.EmbeddingRepository,
	collRepo *repository.CollectionRepository,
	notifier JobNotifier,
	cache SearchCache,
	uploadDir string,
) *IngestService {
	return &IngestService{
		docRepo:   docRepo,
		pageRepo:  pageRepo,
		jobRepo:   jobRepo,
		chunkRepo: chunkRepo,
		embRepo:   embRepo,
		collRepo:  collRepo,
		notifier:  notifier,
		cache:     cache,
		uploadDir: uploadDir,
	}
}

// Enqueue creates the pending job for a source. Enqueueing a source whose
// job is still pending or processing returns that job. A finished job is
// returned together with ErrJobExists; use Reprocess for it.
func (s *IngestService) Enqueue(ctx context.Context, kind model.SourceKind, id uint) (*model.JobRecord, error) {
	if !kind.Valid() || id == 0 {
		return nil, ErrInvalidInput
	}
	ref := model.SourceRef{Kind: kind, ID: id}
	exists, err := s.sourceExists(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: source %s", ErrNotFound, ref)
	}

	existing, err := s.jobRepo.GetBySource(ctx, ref)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Status.Terminal() {
			return existing, ErrJobExists
		}
		return existing, nil
	}

	job := &model.JobRecord{
		SourceKind: kind,
		SourceID:   id,
		Status:     model.JobPending,
		QueuedAt:   time.Now().UTC(),
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// lost a race with a concurrent enqueue of the same source
			return s.jobRepo.GetBySource(ctx, ref)
		}
		return nil, err
	}
	s.notify(ctx, job)
	return job, nil
}

func (s *IngestService) GetStatus(ctx context.Context, jobID uint) (*JobStatusView, error) {
	if jobID == 0 {
		return nil, ErrInvalidInput
	}
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: job %d", ErrNotFound, jobID)
	}
	return statusView(job), nil
}

func (s *IngestService) GetStatusBySource(ctx context.Context, ref model.SourceRef) (*JobStatusView, error) {
	if !ref.Kind.Valid() || ref.ID == 0 {
		return nil, ErrInvalidInput
	}
	job, err := s.jobRepo.GetBySource(ctx, ref)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: no job for %s", ErrNotFound, ref)
	}
	return statusView(job), nil
}

// Reprocess resets a completed or failed job to pending. It is the only way
// out of failed.
func (s *IngestService) Reprocess(ctx context.Context, jobID uint) error {
	if jobID == 0 {
		return ErrInvalidInput
	}
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: job %d", ErrNotFound, jobID)
	}
	if err := s.jobRepo.Reset(ctx, job, time.Now().UTC()); err != nil {
		if errors.Is(err, model.ErrIllegalTransition) {
			return ErrJobActive
		}
		return err
	}
	slog.Info("job reset for reprocessing", "job_id", jobID, "source", job.Source().String())
	s.notify(ctx, job)
	return nil
}

// ListJobs lists jobs newest first; status may be empty.
func (s *IngestService) ListJobs(ctx context.Context, status string, limit int) ([]JobStatusView, error) {
	st := model.JobStatus(status)
	switch st {
	case "", model.JobPending, model.JobProcessing, model.JobCompleted, model.JobFailed:
	default:
		return nil, ErrInvalidInput
	}
	if limit <= 0 || limit > 1000 {
		limit = defaultJobListLimit
	}
	jobs, err := s.jobRepo.List(ctx, st, limit)
	if err != nil {
		return nil, err
	}
	out := make([]JobStatusView, 0, len(jobs))
	for i := range jobs {
		out = append(out, *statusView(&jobs[i]))
	}
	return out, nil
}

// CreateDocument stores a document with inline text and enqueues it.
func (s *IngestService) CreateDocument(ctx context.Context, input CreateDocumentInput) (*model.Document, *model.JobRecord, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, nil, ErrInvalidInput
	}
	collectionID, err := s.collection(ctx, input.CollectionID)
	if err != nil {
		return nil, nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "Untitled"
	}
	doc := &model.Document{
		Filename:     title + ".txt",
		Title:        title,
		FullText:     content,
		CollectionID: collectionID,
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		return nil, nil, err
	}
	job, err := s.Enqueue(ctx, model.SourceDocument, doc.ID)
	if err != nil {
		return nil, nil, err
	}
	return doc, job, nil
}

// UploadPDF saves a PDF under the upload dir, creates its document and
// enqueues it. Text extraction happens in the worker. A zero collectionID
// leaves the document outside any collection.
func (s *IngestService) UploadPDF(ctx context.Context, filename string, r io.Reader, collectionID uint) (*model.Document, *model.JobRecord, error) {
	base := filepath.Base(strings.TrimSpace(filename))
	if !strings.EqualFold(filepath.Ext(base), ".pdf") {
		return nil, nil, fmt.Errorf("%w: only PDF files are allowed", ErrInvalidInput)
	}
	collection, err := s.collection(ctx, collectionID)
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create upload dir failed: %w", err)
	}
	stored := uuid.NewString() + ".pdf"
	dst, err := os.Create(filepath.Join(s.uploadDir, stored))
	if err != nil {
		return nil, nil, fmt.Errorf("create upload file failed: %w", err)
	}
	if _, err := io.Copy(dst, r); err != nil {
		_ = dst.Close()
		return nil, nil, fmt.Errorf("write upload file failed: %w", err)
	}
	if err := dst.Close(); err != nil {
		return nil, nil, fmt.Errorf("close upload file failed: %w", err)
	}

	title := strings.TrimSuffix(base, filepath.Ext(base))
	if title == "" {
		title = "Untitled"
	}
	doc := &model.Document{Filename: stored, Title: title, CollectionID: collection}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		return nil, nil, err
	}
	job, err := s.Enqueue(ctx, model.SourceDocument, doc.ID)
	if err != nil {
		return nil, nil, err
	}
	return doc, job, nil
}

// ImportFile uploads a PDF that already exists on local disk.
func (s *IngestService) ImportFile(ctx context.Context, path string) (*model.Document, *model.JobRecord, error) {
	return s.ImportFileInto(ctx, path, 0)
}

func (s *IngestService) ImportFileInto(ctx context.Context, path string, collectionID uint) (*model.Document, *model.JobRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open import file failed: %w", err)
	}
	defer f.Close()
	return s.UploadPDF(ctx, filepath.Base(path), f, collectionID)
}

// CrawlWebpage registers a URL and enqueues it. The page is fetched by the
// worker. A URL that is already known is an integrity conflict.
func (s *IngestService) CrawlWebpage(ctx context.Context, rawURL string, collectionID uint) (*model.Webpage, *model.JobRecord, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, nil, fmt.Errorf("%w: url must be absolute http(s)", ErrInvalidInput)
	}
	normalized := u.String()
	collection, err := s.collection(ctx, collectionID)
	if err != nil {
		return nil, nil, err
	}

	existing, err := s.pageRepo.GetByURL(ctx, normalized)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, fmt.Errorf("%w: url already crawled as webpage %d", ErrIntegrityConflict, existing.ID)
	}

	page := &model.Webpage{URL: normalized, CrawledAt: time.Now().UTC(), CollectionID: collection}
	if err := s.pageRepo.Create(ctx, page); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil, fmt.Errorf("%w: url already crawled", ErrIntegrityConflict)
		}
		return nil, nil, err
	}
	job, err := s.Enqueue(ctx, model.SourceWebpage, page.ID)
	if err != nil {
		return nil, nil, err
	}
	return page, job, nil
}

// ListDocuments lists documents newest first, optionally only those of one
// collection.
func (s *IngestService) ListDocuments(ctx context.Context, collectionID uint, limit int) ([]model.Document, error) {
	if _, err := s.collection(ctx, collectionID); err != nil {
		return nil, err
	}
	return s.docRepo.List(ctx, collectionID, limit)
}

func (s *IngestService) ListWebpages(ctx context.Context, collectionID uint, limit int) ([]model.Webpage, error) {
	if _, err := s.collection(ctx, collectionID); err != nil {
		return nil, err
	}
	return s.pageRepo.List(ctx, collectionID, limit)
}

// ListTags counts how many documents carry each tag.
func (s *IngestService) ListTags(ctx context.Context) ([]TagCount, error) {
	columns, err := s.docRepo.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	return CountTags(columns), nil
}

// collection resolves an optional collection id. Zero means none.
func (s *IngestService) collection(ctx context.Context, id uint) (*uint, error) {
	if id == 0 {
		return nil, nil
	}
	c, err := s.collRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: collection %d", ErrNotFound, id)
	}
	return &c.ID, nil
}

// DeleteSource removes a source with its chunks, embeddings and job record.
// Sources that are being processed cannot be deleted.
func (s *IngestService) DeleteSource(ctx context.Context, ref model.SourceRef) error {
	if !ref.Kind.Valid() || ref.ID == 0 {
		return ErrInvalidInput
	}

	var uploaded string
	switch ref.Kind {
	case model.SourceDocument:
		doc, err := s.docRepo.GetByID(ctx, ref.ID)
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("%w: source %s", ErrNotFound, ref)
		}
		if strings.EqualFold(filepath.Ext(doc.Filename), ".pdf") {
			uploaded = doc.Filename
		}
	case model.SourceWebpage:
		page, err := s.pageRepo.GetByID(ctx, ref.ID)
		if err != nil {
			return err
		}
		if page == nil {
			return fmt.Errorf("%w: source %s", ErrNotFound, ref)
		}
	}

	job, err := s.jobRepo.GetBySource(ctx, ref)
	if err != nil {
		return err
	}
	if job != nil && job.Status == model.JobProcessing {
		return ErrJobActive
	}

	ids, err := s.chunkRepo.SourceChunkIDs(ctx, ref)
	if err != nil {
		return err
	}
	if err := s.embRepo.DeleteByChunkIDs(ctx, ids); err != nil {
		return err
	}
	if _, err := s.chunkRepo.DeleteBySource(ctx, ref); err != nil {
		return err
	}
	if err := s.jobRepo.DeleteBySource(ctx, ref); err != nil {
		return err
	}
	if ref.Kind == model.SourceDocument {
		if err := s.docRepo.Delete(ctx, ref.ID); err != nil {
			return err
		}
	} else if err := s.pageRepo.Delete(ctx, ref.ID); err != nil {
		return err
	}

	if uploaded != "" && s.uploadDir != "" {
		if err := os.Remove(filepath.Join(s.uploadDir, filepath.Base(uploaded))); err != nil && !os.IsNotExist(err) {
			slog.Warn("remove uploaded file failed", "file", uploaded, "error", err)
		}
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			slog.Warn("invalidate search cache failed", "error", err)
		}
	}
	slog.Info("source deleted", "source", ref.String(), "chunks", len(ids))
	return nil
}

func (s *IngestService) sourceExists(ctx context.Context, ref model.SourceRef) (bool, error) {
	switch ref.Kind {
	case model.SourceDocument:
		doc, err := s.docRepo.GetByID(ctx, ref.ID)
		return doc != nil, err
	case model.SourceWebpage:
		page, err := s.pageRepo.GetByID(ctx, ref.ID)
		return page != nil, err
	}
	return false, nil
}

// notify is best effort: a missed notification is picked up by polling.
func (s *IngestService) notify(ctx context.Context, job *model.JobRecord) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyQueued(ctx, job); err != nil {
		slog.Warn("notify queued job failed", "job_id", job.ID, "error", err)
	}
}

func statusView(job *model.JobRecord) *JobStatusView {
	return &JobStatusView{
		JobID:        job.ID,
		Source:       job.Source(),
		Status:       job.Status,
		ErrorKind:    job.ErrorKind,
		ErrorMessage: job.ErrorMessage,
		QueuedAt:     job.QueuedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		Attempts:     job.Attempts,
	}
}
