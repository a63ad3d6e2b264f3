package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/model"
)

func TestRemoteEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "text-embedding-3-small", body["model"])
		assert.Equal(t, "gout", body["input"])
		assert.EqualValues(t, 3, body["dimensions"])

		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	emb := NewRemoteEmbedder(NewOpenAICompatibleClient(ClientOptions{}), EmbeddingConfig{
		BaseURL: srv.URL + "/v1", APIKey: "key", Model: "text-embedding-3-small", Dimension: 3,
	})
	assert.Equal(t, "remote-text-embedding-3-small-3", emb.Name())
	assert.Equal(t, 3, emb.Dimension())

	vec, err := emb.Embed(context.Background(), "  gout ")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestRemoteEmbedder_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2]}]}`))
	}))
	defer srv.Close()

	emb := NewRemoteEmbedder(NewOpenAICompatibleClient(ClientOptions{}), EmbeddingConfig{BaseURL: srv.URL, Model: "m", Dimension: 3})
	_, err := emb.Embed(context.Background(), "gout")
	assert.ErrorContains(t, err, "want 3")
}

func TestAnswerGenerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []ChatMessage `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Messages, 2)
		assert.Contains(t, body.Messages[1].Content, "[1] (document:3, part 1)")
		assert.Contains(t, body.Messages[1].Content, "Question: what treats gout?")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Colchicine [1]."}}]}`))
	}))
	defer srv.Close()

	gen := NewAnswerGenerator(NewOpenAICompatibleClient(ClientOptions{}), ChatConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	answer, err := gen.GenerateAnswer(context.Background(), "what treats gout?", nil, []model.Chunk{
		{ID: 9, SourceKind: model.SourceDocument, SourceID: 3, ChunkIndex: 0, Text: "Colchicine is first line."},
	})
	require.NoError(t, err)
	assert.Equal(t, "Colchicine [1].", answer)
}

func TestComplete_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewOpenAICompatibleClient(ClientOptions{}).Complete(context.Background(), ChatConfig{BaseURL: srv.URL}, nil)
	assert.ErrorContains(t, err, "status 429")
}

func TestComplete_RetriesRateLimitAndServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.Header().Set("Retry-After", "0")
			http.Error(w, "slow down", http.StatusTooManyRequests)
		case 2:
			http.Error(w, "upstream", http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
		}
	}))
	defer srv.Close()

	client := NewOpenAICompatibleClient(ClientOptions{MaxRetries: 2, Backoff: time.Millisecond})
	out, err := client.Complete(context.Background(), ChatConfig{BaseURL: srv.URL}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestComplete_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewOpenAICompatibleClient(ClientOptions{MaxRetries: 2, Backoff: time.Millisecond})
	_, err := client.Complete(context.Background(), ChatConfig{BaseURL: srv.URL}, nil)
	assert.ErrorContains(t, err, "status 503")
	assert.Equal(t, int32(3), calls.Load())
}

func TestComplete_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewOpenAICompatibleClient(ClientOptions{MaxRetries: 3, Backoff: time.Millisecond})
	_, err := client.Embed(context.Background(), EmbeddingConfig{BaseURL: srv.URL, Model: "m"}, "gout")
	assert.ErrorContains(t, err, "status 401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestComplete_AttemptTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewOpenAICompatibleClient(ClientOptions{Timeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := client.Complete(context.Background(), ChatConfig{BaseURL: srv.URL}, nil)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 2*time.Second, retryAfter("2"))
	assert.Equal(t, maxRetryAfter, retryAfter("3600"))
	assert.Zero(t, retryAfter(""))
	assert.Zero(t, retryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
}

func TestBuildAnswerMessages_ReplaysRecentTurns(t *testing.T) {
	var history []model.QueryHistory
	for i := 0; i < maxHistoryTurns+2; i++ {
		history = append(history, model.QueryHistory{Query: fmt.Sprintf("q%d", i), Answer: fmt.Sprintf("a%d", i)})
	}
	msgs := BuildAnswerMessages("next?", history, nil)

	require.Len(t, msgs, 2+2*maxHistoryTurns)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, ChatMessage{Role: "user", Content: "q2"}, msgs[1])
	assert.Equal(t, ChatMessage{Role: "assistant", Content: "a2"}, msgs[2])
	last := msgs[len(msgs)-1]
	assert.Equal(t, "user", last.Role)
	assert.Contains(t, last.Content, "Question: next?")
}
