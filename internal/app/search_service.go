package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"docrag/internal/cache"
	"docrag/internal/model"
	"docrag/internal/rag"
	"docrag/internal/repository"
)

const (
	reembedPageSize = 200

	maxConversationID   = 50
	conversationLimit   = 100
	citationSnippetRune = 200
)

// SearchService is the read side: similarity search over stored vectors,
// re-embedding and answer generation with per-conversation history.
type SearchService struct {
	chunkRepo   *repository.ChunkRepository
	embRepo     *repository.EmbeddingRepository
	historyRepo *repository.QueryHistoryRepository
	embedder    rag.Embedder
	cache       SearchCache
	history     HistoryCache
	answers     AnswerGenerator
	worker      WorkerPauser
}

// SearchHit is a Match joined with its chunk.
type SearchHit struct {
	ChunkID    uint            `json:"chunk_id"`
	Score      float64         `json:"score"`
	Source     model.SourceRef `json:"source"`
	ChunkIndex int             `json:"chunk_index"`
	Text       string          `json:"text"`
}

type ReembedStats struct {
	Deleted     int64 `json:"deleted"`
	TotalChunks int64 `json:"total_chunks"`
	Succeeded   int64 `json:"succeeded"`
	Failed      int64 `json:"failed"`
}

type AskInput struct {
	// ConversationID continues an earlier conversation. Empty starts a new one.
	ConversationID string
	Query          string
	TopK           int
	Threshold      float64
}

type AskResult struct {
	ConversationID string      `json:"conversation_id"`
	Answer         string      `json:"answer"`
	Hits           []SearchHit `json:"hits"`
}

// ConversationTurn is one stored question with its answer and citations.
type ConversationTurn struct {
	ID        uint             `json:"id"`
	Query     string           `json:"query"`
	Answer    string           `json:"answer"`
	Citations []model.Citation `json:"citations"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewSearchService wires the read side. cache, history and answers may be nil.
func NewSearchService(
	chunkRepo *repository.ChunkRepository,
	embRepo *repository.EmbeddingRepository,
	historyRepo *repository.QueryHistoryRepository,
	embedder rag.Embedder,
	cache SearchCache,
	history HistoryCache,
	answers AnswerGenerator,
) *SearchService {
	return &SearchService{
		chunkRepo:   chunkRepo,
		embRepo:     embRepo,
		historyRepo: historyRepo,
		embedder:    embedder,
		cache:       cache,
		history:     history,
		answers:     answers,
	}
}

// SetWorker registers the in-process worker that ReembedAll pauses. The
// worker is built after the search service, so it cannot be a constructor
// argument.
func (s *SearchService) SetWorker(w WorkerPauser) {
	s.worker = w
}

// Search embeds query and scans every vector produced by the same embedder.
// At most topK matches scoring at least threshold are returned, best first.
func (s *SearchService) Search(ctx context.Context, query string, topK int, threshold float64) ([]rag.Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrInvalidInput
	}
	if topK <= 0 {
		return []rag.Match{}, nil
	}

	// the generation is read once so the result is stored under the index
	// state it was computed from
	key := cache.SearchKey{Model: s.embedder.Name(), Query: query, TopK: topK, Threshold: threshold}
	useCache := s.cache != nil
	if useCache {
		gen, err := s.cache.Generation(ctx)
		if err != nil {
			slog.Warn("search cache generation read failed", "error", err)
			useCache = false
		} else {
			key.Generation = gen
			matches, ok, err := s.cache.GetMatches(ctx, key)
			if err != nil {
				slog.Warn("search cache read failed", "error", err)
			} else if ok {
				return matches, nil
			}
		}
	}

	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}

	stored, err := s.embRepo.ListByModel(ctx, s.embedder.Name())
	if err != nil {
		return nil, err
	}
	candidates := make([]rag.Candidate, 0, len(stored))
	for i := range stored {
		vec, err := stored[i].Values()
		if err != nil {
			slog.Warn("skip undecodable embedding", "chunk_id", stored[i].ChunkID, "error", err)
			continue
		}
		candidates = append(candidates, rag.Candidate{ChunkID: stored[i].ChunkID, Vector: vec})
	}
	if foreign, err := s.embRepo.CountOtherModels(ctx, s.embedder.Name()); err == nil && foreign > 0 {
		slog.Warn("embeddings from another embedder are ignored, run reembed", "count", foreign, "embedder", s.embedder.Name())
	}

	matches := rag.Rank(qvec, candidates, topK, threshold)
	if useCache {
		if err := s.cache.SetMatches(ctx, key, matches); err != nil {
			slog.Warn("search cache write failed", "error", err)
		}
	}
	return matches, nil
}

// SearchHits runs Search and loads the matched chunks.
func (s *SearchService) SearchHits(ctx context.Context, query string, topK int, threshold float64) ([]SearchHit, error) {
	matches, err := s.Search(ctx, query, topK, threshold)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, len(matches))
	for i, m := range matches {
		ids[i] = m.ChunkID
	}
	chunks, err := s.chunkRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(matches))
	for _, m := range matches {
		c, ok := chunks[m.ChunkID]
		if !ok {
			// deleted since the result was cached
			continue
		}
		hits = append(hits, SearchHit{
			ChunkID:    m.ChunkID,
			Score:      m.Score,
			Source:     c.Source(),
			ChunkIndex: c.ChunkIndex,
			Text:       c.Text,
		})
	}
	return hits, nil
}

// ReembedAll drops every stored vector and embeds all chunks again with the
// current embedder. A chunk that fails is logged and counted, not fatal.
// The in-process worker is paused for the duration. A chunk that already
// has a vector when it is reached was embedded concurrently by a worker in
// another process and counts as succeeded.
func (s *SearchService) ReembedAll(ctx context.Context) (ReembedStats, error) {
	var stats ReembedStats

	if s.worker != nil && s.worker.Pause() {
		slog.Info("ingestion worker paused for reembed")
		defer func() {
			if err := s.worker.Resume(); err != nil {
				slog.Error("resume ingestion worker failed", "error", err)
			}
		}()
	}

	deleted, err := s.embRepo.DeleteAll(ctx)
	if err != nil {
		return stats, err
	}
	stats.Deleted = deleted

	var after uint
	for {
		page, err := s.chunkRepo.ListPage(ctx, after, reembedPageSize)
		if err != nil {
			return stats, err
		}
		if len(page) == 0 {
			break
		}
		for i := range page {
			stats.TotalChunks++
			err := s.embedChunk(ctx, &page[i])
			switch {
			case err == nil, errors.Is(err, gorm.ErrDuplicatedKey):
				stats.Succeeded++
			default:
				stats.Failed++
				slog.Error("reembed chunk failed", "chunk_id", page[i].ID, "error", err)
			}
		}
		after = page[len(page)-1].ID
	}

	s.InvalidateCache(ctx)
	slog.Info("reembed finished",
		"deleted", stats.Deleted, "total_chunks", stats.TotalChunks,
		"succeeded", stats.Succeeded, "failed", stats.Failed, "embedder", s.embedder.Name())
	return stats, nil
}

// Ask retrieves the best chunks for the query and has the answer generator
// synthesize a reply from them and the earlier turns of the conversation.
// The turn is stored under the conversation, which is created when the
// input names none.
func (s *SearchService) Ask(ctx context.Context, in AskInput) (*AskResult, error) {
	if s.answers == nil {
		return nil, ErrAnswerUnavailable
	}
	query := strings.TrimSpace(in.Query)
	convID := strings.TrimSpace(in.ConversationID)
	if utf8.RuneCountInString(convID) > maxConversationID {
		return nil, fmt.Errorf("%w: conversation id longer than %d", ErrInvalidInput, maxConversationID)
	}

	var history []model.QueryHistory
	if convID == "" {
		convID = newConversationID()
	} else {
		var err error
		if history, err = s.conversation(ctx, convID); err != nil {
			return nil, err
		}
	}

	hits, err := s.SearchHits(ctx, query, in.TopK, in.Threshold)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, fmt.Errorf("%w: no chunk scored above %.2f", ErrNotFound, in.Threshold)
	}

	chunks := make([]model.Chunk, len(hits))
	for i, h := range hits {
		chunks[i] = model.Chunk{ID: h.ChunkID, SourceKind: h.Source.Kind, SourceID: h.Source.ID, ChunkIndex: h.ChunkIndex, Text: h.Text}
	}
	answer, err := s.answers.GenerateAnswer(ctx, query, history, chunks)
	if err != nil {
		return nil, fmt.Errorf("generate answer failed: %w", err)
	}
	answer = strings.TrimSpace(answer)

	s.remember(ctx, convID, query, answer, hits)
	return &AskResult{ConversationID: convID, Answer: answer, Hits: hits}, nil
}

// GetConversation returns the stored turns of a conversation, oldest first.
func (s *SearchService) GetConversation(ctx context.Context, conversationID string) ([]ConversationTurn, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" || utf8.RuneCountInString(conversationID) > maxConversationID {
		return nil, ErrInvalidInput
	}
	entries, err := s.conversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
	}

	turns := make([]ConversationTurn, 0, len(entries))
	for i := range entries {
		cites, err := entries[i].GetCitations()
		if err != nil {
			return nil, err
		}
		turns = append(turns, ConversationTurn{
			ID:        entries[i].ID,
			Query:     entries[i].Query,
			Answer:    entries[i].Answer,
			Citations: cites,
			CreatedAt: entries[i].CreatedAt,
		})
	}
	return turns, nil
}

// conversation loads the recent turns, from the cache when it has them.
func (s *SearchService) conversation(ctx context.Context, conversationID string) ([]model.QueryHistory, error) {
	if s.history != nil {
		cached, ok, err := s.history.GetHistory(ctx, conversationID)
		if err != nil {
			slog.Warn("history cache read failed", "conversation_id", conversationID, "error", err)
		} else if ok {
			return cached, nil
		}
	}

	entries, err := s.historyRepo.ListByConversation(ctx, conversationID, conversationLimit)
	if err != nil {
		return nil, err
	}
	if s.history != nil && len(entries) > 0 {
		if err := s.history.SetHistory(ctx, conversationID, entries); err != nil {
			slog.Warn("history cache write failed", "conversation_id", conversationID, "error", err)
		}
	}
	return entries, nil
}

// remember stores a finished turn. The answer was already produced, so a
// failure here is logged rather than returned.
func (s *SearchService) remember(ctx context.Context, conversationID, query, answer string, hits []SearchHit) {
	cites := make([]model.Citation, len(hits))
	for i, h := range hits {
		cites[i] = model.Citation{ChunkID: h.ChunkID, Source: h.Source, Score: h.Score, Snippet: snippet(h.Text, citationSnippetRune)}
	}
	entry := &model.QueryHistory{
		ConversationID: conversationID,
		Query:          query,
		Answer:         answer,
		CreatedAt:      time.Now().UTC(),
	}
	if err := entry.SetCitations(cites); err != nil {
		slog.Error("encode citations failed", "conversation_id", conversationID, "error", err)
		return
	}
	if err := s.historyRepo.Create(ctx, entry); err != nil {
		slog.Error("store query history failed", "conversation_id", conversationID, "error", err)
		return
	}
	if s.history != nil {
		if err := s.history.DeleteHistory(ctx, conversationID); err != nil {
			slog.Warn("history cache delete failed", "conversation_id", conversationID, "error", err)
		}
	}
}

func newConversationID() string {
	return "conv_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func snippet(text string, n int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n]) + "..."
}

// InvalidateCache drops cached search results after the index changed.
func (s *SearchService) InvalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		slog.Warn("invalidate search cache failed", "error", err)
	}
}

func (s *SearchService) embedChunk(ctx context.Context, chunk *model.Chunk) error {
	vec, err := s.embedder.Embed(ctx, chunk.Text)
	if err != nil {
		return err
	}
	emb := &model.Embedding{ChunkID: chunk.ID, Model: s.embedder.Name()}
	if err := emb.SetValues(vec); err != nil {
		return err
	}
	return s.embRepo.Create(ctx, emb)
}
