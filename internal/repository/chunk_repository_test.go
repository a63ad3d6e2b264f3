package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/model"
	"docrag/internal/repository"
	"docrag/internal/testutil"
)

func TestChunkAndEmbeddingRepositories(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	chunks := repository.NewChunkRepository(db)
	embeddings := repository.NewEmbeddingRepository(db)
	ref := model.SourceRef{Kind: model.SourceWebpage, ID: 3}

	batch := []model.Chunk{
		{SourceKind: ref.Kind, SourceID: ref.ID, ChunkIndex: 1, Text: "second"},
		{SourceKind: ref.Kind, SourceID: ref.ID, ChunkIndex: 0, Text: "first"},
	}
	require.NoError(t, chunks.CreateBatch(ctx, batch))

	dup := model.Chunk{SourceKind: ref.Kind, SourceID: ref.ID, ChunkIndex: 0, Text: "again"}
	assert.Error(t, chunks.Create(ctx, &dup), "chunk index is unique per source")

	listed, err := chunks.ListBySource(ctx, ref)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "first", listed[0].Text)
	assert.Equal(t, "second", listed[1].Text)

	for _, c := range listed {
		emb := &model.Embedding{ChunkID: c.ID, Model: "hash-test"}
		require.NoError(t, emb.SetValues([]float32{0.6, 0.8}))
		require.NoError(t, embeddings.Create(ctx, emb))
	}
	again := &model.Embedding{ChunkID: listed[0].ID, Model: "hash-test"}
	require.NoError(t, again.SetValues([]float32{1, 0}))
	assert.Error(t, embeddings.Create(ctx, again), "at most one embedding per chunk")

	stored, err := embeddings.ListByModel(ctx, "hash-test")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	vec, err := stored[0].Values()
	require.NoError(t, err)
	assert.Equal(t, []float32{0.6, 0.8}, vec)
	assert.Equal(t, 2, stored[0].Dimension)

	foreign, err := embeddings.CountOtherModels(ctx, "hash-other")
	require.NoError(t, err)
	assert.Equal(t, int64(2), foreign)

	page, err := chunks.ListPage(ctx, listed[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, listed[1].ID, page[0].ID)

	byID, err := chunks.ListByIDs(ctx, []uint{listed[1].ID})
	require.NoError(t, err)
	assert.Equal(t, "second", byID[listed[1].ID].Text)

	ids, err := chunks.SourceChunkIDs(ctx, ref)
	require.NoError(t, err)
	require.NoError(t, embeddings.DeleteByChunkIDs(ctx, ids))
	deleted, err := chunks.DeleteBySource(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	n, err := embeddings.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEmbeddingRepository_DeleteAll(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	embeddings := repository.NewEmbeddingRepository(db)
	for i := uint(1); i <= 3; i++ {
		emb := &model.Embedding{ChunkID: i, Model: "m"}
		require.NoError(t, emb.SetValues([]float32{1}))
		require.NoError(t, embeddings.Create(ctx, emb))
	}
	n, err := embeddings.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = embeddings.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
