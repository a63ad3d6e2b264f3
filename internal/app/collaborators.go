package app

import (
	"context"

	"docrag/internal/cache"
	"docrag/internal/model"
	"docrag/internal/rag"
)

// TextExtractor produces the raw text of a source item.
type TextExtractor interface {
	ExtractText(ctx context.Context, kind model.SourceKind, id uint) (string, error)
}

// MetadataLookup resolves bibliographic data for a DOI. It returns nil, nil
// when the identifier is unknown.
type MetadataLookup interface {
	LookupMetadata(ctx context.Context, doi string) (*model.PaperMetadata, error)
}

// AnswerGenerator synthesizes an answer from retrieved chunks. history holds
// the earlier turns of the conversation, oldest first.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, query string, history []model.QueryHistory, chunks []model.Chunk) (string, error)
}

// JobNotifier tells idle workers that a job became pending.
type JobNotifier interface {
	NotifyQueued(ctx context.Context, job *model.JobRecord) error
}

type SearchCache interface {
	Generation(ctx context.Context) (int64, error)
	GetMatches(ctx context.Context, key cache.SearchKey) ([]rag.Match, bool, error)
	SetMatches(ctx context.Context, key cache.SearchKey, matches []rag.Match) error
	Invalidate(ctx context.Context) error
}

// HistoryCache holds recent conversation turns.
type HistoryCache interface {
	GetHistory(ctx context.Context, conversationID string) ([]model.QueryHistory, bool, error)
	SetHistory(ctx context.Context, conversationID string, entries []model.QueryHistory) error
	DeleteHistory(ctx context.Context, conversationID string) error
}

// WorkerPauser stops the in-process ingestion worker for the duration of a
// maintenance task. Pause reports whether the worker was running.
type WorkerPauser interface {
	Pause() bool
	Resume() error
}
