package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/model"
	"docrag/internal/repository"
	"docrag/internal/testutil"
)

func TestQueryHistoryRepository_ListByConversation(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewQueryHistoryRepository(testutil.NewDB(t))
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	for i, q := range []string{"first", "second", "third"} {
		h := &model.QueryHistory{ConversationID: "conv_a", Query: q, Answer: "a " + q, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, h.SetCitations([]model.Citation{{ChunkID: uint(i + 1), Score: 0.5}}))
		require.NoError(t, repo.Create(ctx, h))
	}
	require.NoError(t, repo.Create(ctx, &model.QueryHistory{ConversationID: "conv_b", Query: "other", CreatedAt: base}))

	all, err := repo.ListByConversation(ctx, "conv_a", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "first", all[0].Query)
	assert.Equal(t, "third", all[2].Query)
	cites, err := all[1].GetCitations()
	require.NoError(t, err)
	assert.Equal(t, []model.Citation{{ChunkID: 2, Score: 0.5}}, cites)

	// the limit keeps the newest entries
	recent, err := repo.ListByConversation(ctx, "conv_a", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].Query)
	assert.Equal(t, "third", recent[1].Query)

	none, err := repo.ListByConversation(ctx, "conv_missing", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSourceListsFilterByCollection(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	collections := repository.NewCollectionRepository(db)
	docs := repository.NewDocumentRepository(db)
	pages := repository.NewWebpageRepository(db)

	rheum := &model.Collection{Name: "Rheumatology"}
	require.NoError(t, collections.Create(ctx, rheum))
	child := &model.Collection{Name: "Gout", ParentID: &rheum.ID}
	require.NoError(t, collections.Create(ctx, child))

	require.NoError(t, docs.Create(ctx, &model.Document{Filename: "a.txt", Title: "a", CollectionID: &rheum.ID, Tags: "gout, urate"}))
	require.NoError(t, docs.Create(ctx, &model.Document{Filename: "b.txt", Title: "b"}))
	require.NoError(t, pages.Create(ctx, &model.Webpage{URL: "https://example.org/g", CollectionID: &child.ID, CrawledAt: time.Now().UTC()}))

	inRheum, err := docs.List(ctx, rheum.ID, 10)
	require.NoError(t, err)
	require.Len(t, inRheum, 1)
	assert.Equal(t, "a", inRheum[0].Title)

	allDocs, err := docs.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, allDocs, 2)

	inChild, err := pages.List(ctx, child.ID, 10)
	require.NoError(t, err)
	assert.Len(t, inChild, 1)
	inRheumPages, err := pages.List(ctx, rheum.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, inRheumPages)

	listed, err := collections.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "Gout", listed[0].Name)

	missing, err := collections.GetByID(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)

	tags, err := docs.ListTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gout, urate"}, tags)
}

func TestMetricRepository_ListSince(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMetricRepository(testutil.NewDB(t))
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	for _, ago := range []time.Duration{3 * time.Hour, time.Hour, 10 * time.Minute} {
		require.NoError(t, repo.Create(ctx, &model.SystemMetric{RecordedAt: now.Add(-ago)}))
	}

	got, err := repo.ListSince(ctx, now.Add(-2*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].RecordedAt.Before(got[1].RecordedAt))
}
