package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"docrag/internal/model"
	"docrag/internal/pkg/pdfextract"
	"docrag/internal/repository"
)

var ErrNoText = errors.New("no extractable text")

// Extractor produces the raw text of documents and webpages. Text pulled from
// a PDF or a fetched page is stored on the source row so reprocessing does not
// extract it again.
type Extractor struct {
	docRepo   *repository.DocumentRepository
	pageRepo  *repository.WebpageRepository
	fetcher   *PageFetcher
	uploadDir string
}

func NewExtractor(docRepo *repository.DocumentRepository, pageRepo *repository.WebpageRepository, fetcher *PageFetcher, uploadDir string) *Extractor {
	if fetcher == nil {
		fetcher = NewPageFetcher(0)
	}
	return &Extractor{
		docRepo:   docRepo,
		pageRepo:  pageRepo,
		fetcher:   fetcher,
		uploadDir: uploadDir,
	}
}

func (e *Extractor) ExtractText(ctx context.Context, kind model.SourceKind, id uint) (string, error) {
	switch kind {
	case model.SourceDocument:
		return e.documentText(ctx, id)
	case model.SourceWebpage:
		return e.webpageText(ctx, id)
	}
	return "", fmt.Errorf("unknown source kind %q", kind)
}

func (e *Extractor) documentText(ctx context.Context, id uint) (string, error) {
	doc, err := e.docRepo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if doc == nil {
		return "", fmt.Errorf("document %d not found", id)
	}
	if doc.FullText != "" {
		return CleanText(doc.FullText), nil
	}

	raw, err := pdfextract.ExtractFile(filepath.Join(e.uploadDir, filepath.Base(doc.Filename)))
	if err != nil {
		return "", err
	}
	text := CleanText(raw)
	if text == "" {
		return "", fmt.Errorf("%w in %s", ErrNoText, doc.Filename)
	}
	if err := e.docRepo.SetFullText(ctx, id, text); err != nil {
		slog.Warn("store extracted text failed", "document_id", id, "error", err)
	}
	return text, nil
}

func (e *Extractor) webpageText(ctx context.Context, id uint) (string, error) {
	page, err := e.pageRepo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if page == nil {
		return "", fmt.Errorf("webpage %d not found", id)
	}
	if page.Content != "" {
		return CleanText(page.Content), nil
	}

	fetched, err := e.fetcher.Fetch(ctx, page.URL)
	if err != nil {
		return "", err
	}
	text := CleanText(fetched.Text)
	if text == "" {
		return "", fmt.Errorf("%w at %s", ErrNoText, page.URL)
	}
	title := fetched.Title
	if title == "" {
		title = page.URL
	}
	if err := e.pageRepo.SetContent(ctx, id, title, text); err != nil {
		slog.Warn("store fetched page failed", "webpage_id", id, "error", err)
	}
	return text, nil
}
