package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"docrag/internal/metadata"
	"docrag/internal/model"
	"docrag/internal/rag"
	"docrag/internal/repository"
)

const defaultTagLimit = 5

// Failure is a job-fatal pipeline outcome.
type Failure struct {
	Kind    model.FailureKind
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failure: %s", f.Kind, f.Message)
}

// Unwrap maps the kind onto its sentinel so callers can use errors.Is.
func (f *Failure) Unwrap() error {
	switch f.Kind {
	case model.FailureExtraction:
		return ErrExtraction
	case model.FailureIntegrity:
		return ErrIntegrityConflict
	default:
		return ErrPersistence
	}
}

// Stats summarizes a successful run.
type Stats struct {
	Characters int `json:"characters"`
	Chunks     int `json:"chunks"`
	Embeddings int `json:"embeddings"`
}

// Result is either Stats (Failure == nil) or a Failure.
type Result struct {
	Stats   Stats
	Failure *Failure
}

func (r Result) OK() bool { return r.Failure == nil }

func succeeded(stats Stats) Result { return Result{Stats: stats} }

func failed(kind model.FailureKind, format string, args ...any) Result {
	return Result{Failure: &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}}
}

type PipelineOptions struct {
	ChunkSize    int
	ChunkOverlap int
	TagLimit     int
}

// Pipeline runs one job: extract, enrich, chunk, embed, persist.
// Rows written before a failing step are kept.
type Pipeline struct {
	docRepo   *repository.DocumentRepository
	pageRepo  *repository.WebpageRepository
	chunkRepo *repository.ChunkRepository
	embRepo   *repository.EmbeddingRepository
	extractor TextExtractor
	lookup    MetadataLookup
	embedder  rag.Embedder
	opts      PipelineOptions
}

func NewPipeline(
	docRepo *repository.DocumentRepository,
	pageRepo *repository.WebpageRepository,
	chunkRepo *repository.ChunkRepository,
	embRepo *repository.EmbeddingRepository,
	extractor TextExtractor,
	lookup MetadataLookup,
	embedder rag.Embedder,
	opts PipelineOptions,
) *Pipeline {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = rag.DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = rag.DefaultChunkOverlap
	}
	if opts.TagLimit <= 0 {
		opts.TagLimit = defaultTagLimit
	}
	return &Pipeline{
		docRepo:   docRepo,
		pageRepo:  pageRepo,
		chunkRepo: chunkRepo,
		embRepo:   embRepo,
		extractor: extractor,
		lookup:    lookup,
		embedder:  embedder,
		opts:      opts,
	}
}

func (p *Pipeline) Embedder() rag.Embedder { return p.embedder }

// Run processes the source behind job. It never returns an error; every
// job-fatal condition is reported as a Failure.
func (p *Pipeline) Run(ctx context.Context, job *model.JobRecord) Result {
	ref := job.Source()
	log := slog.With("job_id", job.ID, "source", ref.String())

	text, err := p.extractor.ExtractText(ctx, ref.Kind, ref.ID)
	if err != nil {
		return failed(model.FailureExtraction, "extract text: %v", err)
	}
	text = rag.NormalizeWhitespace(text)
	if text == "" {
		return failed(model.FailureExtraction, "source %s has no extractable text", ref)
	}

	if ref.Kind == model.SourceDocument {
		if res, ok := p.enrichDocument(ctx, ref.ID, text, log); !ok {
			return res
		}
	}

	if res, ok := p.clearPrevious(ctx, ref); !ok {
		return res
	}

	pieces := rag.Chunk(text, p.opts.ChunkSize, p.opts.ChunkOverlap)
	chunks := make([]model.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = model.Chunk{SourceKind: ref.Kind, SourceID: ref.ID, ChunkIndex: i, Text: piece}
	}
	if err := p.chunkRepo.CreateBatch(ctx, chunks); err != nil {
		return storeFailure("persist chunks", err)
	}

	stats := Stats{Characters: len([]rune(text)), Chunks: len(chunks)}
	for i := range chunks {
		vec, err := p.embedder.Embed(ctx, chunks[i].Text)
		if err != nil {
			return failed(model.FailurePersistence, "embed chunk %d: %v", chunks[i].ChunkIndex, err)
		}
		emb := &model.Embedding{ChunkID: chunks[i].ID, Model: p.embedder.Name()}
		if err := emb.SetValues(vec); err != nil {
			return failed(model.FailurePersistence, "encode chunk %d: %v", chunks[i].ChunkIndex, err)
		}
		if err := p.embRepo.Create(ctx, emb); err != nil {
			return storeFailure(fmt.Sprintf("persist embedding of chunk %d", chunks[i].ChunkIndex), err)
		}
		stats.Embeddings++
	}

	if err := p.markProcessed(ctx, ref); err != nil {
		return storeFailure("mark source processed", err)
	}
	log.Info("source ingested", "chunks", stats.Chunks, "characters", stats.Characters)
	return succeeded(stats)
}

// enrichDocument fills DOI, bibliographic metadata and tags. Metadata lookup
// errors are logged and ignored.
func (p *Pipeline) enrichDocument(ctx context.Context, id uint, text string, log *slog.Logger) (Result, bool) {
	doc, err := p.docRepo.GetByID(ctx, id)
	if err != nil {
		return storeFailure("load document", err), false
	}
	if doc == nil {
		return failed(model.FailureExtraction, "document %d not found", id), false
	}

	doi := ""
	if doc.DOI != nil {
		doi = *doc.DOI
	} else {
		doi = metadata.FindDOI(text)
	}

	if doi != "" && p.lookup != nil {
		meta, err := p.lookup.LookupMetadata(ctx, doi)
		if err != nil {
			log.Warn("metadata lookup failed", "doi", doi, "error", err)
		} else if meta != nil {
			meta.ApplyTo(doc)
		}
	}
	if doi != "" && doc.DOI == nil {
		doc.DOI = &doi
	}

	if doc.DOI != nil {
		owner, err := p.docRepo.GetByDOI(ctx, *doc.DOI)
		if err != nil {
			return storeFailure("check doi", err), false
		}
		if owner != nil && owner.ID != doc.ID {
			return failed(model.FailureIntegrity, "doi %s already belongs to document %d", *doc.DOI, owner.ID), false
		}
	}

	if strings.TrimSpace(doc.Tags) == "" {
		doc.Tags = strings.Join(GenerateTags(text, p.opts.TagLimit), ",")
	}
	if doc.FullText == "" {
		doc.FullText = text
	}
	if err := p.docRepo.Save(ctx, doc); err != nil {
		return storeFailure("save document metadata", err), false
	}
	return Result{}, true
}

func (p *Pipeline) clearPrevious(ctx context.Context, ref model.SourceRef) (Result, bool) {
	ids, err := p.chunkRepo.SourceChunkIDs(ctx, ref)
	if err != nil {
		return storeFailure("list previous chunks", err), false
	}
	if len(ids) == 0 {
		return Result{}, true
	}
	if err := p.embRepo.DeleteByChunkIDs(ctx, ids); err != nil {
		return storeFailure("delete previous embeddings", err), false
	}
	if _, err := p.chunkRepo.DeleteBySource(ctx, ref); err != nil {
		return storeFailure("delete previous chunks", err), false
	}
	return Result{}, true
}

func (p *Pipeline) markProcessed(ctx context.Context, ref model.SourceRef) error {
	if ref.Kind == model.SourceWebpage {
		return p.pageRepo.MarkProcessed(ctx, ref.ID)
	}
	return p.docRepo.MarkProcessed(ctx, ref.ID)
}

// storeFailure classifies a store error: unique violations are integrity
// conflicts, everything else is a persistence failure.
func storeFailure(step string, err error) Result {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return failed(model.FailureIntegrity, "%s: %v", step, err)
	}
	return failed(model.FailurePersistence, "%s: %v", step, err)
}
