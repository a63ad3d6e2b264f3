package ai

import (
	"context"
	"fmt"
	"strings"

	"docrag/internal/model"
)

const answerSystemPrompt = "You are a clinical literature assistant. Answer the question using only the numbered passages. " +
	"Cite passages as [n]. If the passages do not contain the answer, say so. Do not make up facts."

// maxHistoryTurns bounds how many earlier questions of a conversation are
// replayed to the model.
const maxHistoryTurns = 6

// AnswerGenerator asks a chat model to answer from retrieved chunks.
type AnswerGenerator struct {
	client *OpenAICompatibleClient
	cfg    ChatConfig
}

func NewAnswerGenerator(client *OpenAICompatibleClient, cfg ChatConfig) *AnswerGenerator {
	return &AnswerGenerator{client: client, cfg: cfg}
}

// GenerateAnswer replays the earlier turns of the conversation, oldest
// first, before the question and its passages.
func (g *AnswerGenerator) GenerateAnswer(ctx context.Context, query string, history []model.QueryHistory, chunks []model.Chunk) (string, error) {
	return g.client.Complete(ctx, g.cfg, BuildAnswerMessages(query, history, chunks))
}

func BuildAnswerMessages(query string, history []model.QueryHistory, chunks []model.Chunk) []ChatMessage {
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	messages := make([]ChatMessage, 0, 2+2*len(history))
	messages = append(messages, ChatMessage{Role: "system", Content: answerSystemPrompt})
	for _, h := range history {
		messages = append(messages,
			ChatMessage{Role: "user", Content: h.Query},
			ChatMessage{Role: "assistant", Content: h.Answer},
		)
	}
	return append(messages, ChatMessage{Role: "user", Content: BuildAnswerPrompt(query, chunks)})
}

// BuildAnswerPrompt numbers the passages in retrieval order.
func BuildAnswerPrompt(query string, chunks []model.Chunk) string {
	var sb strings.Builder
	sb.WriteString("Passages:\n")
	for i, c := range chunks {
		fmt.Fprintf(&sb, "[%d] (%s, part %d)\n%s\n\n", i+1, c.Source(), c.ChunkIndex+1, strings.TrimSpace(c.Text))
	}
	sb.WriteString("Question: ")
	sb.WriteString(strings.TrimSpace(query))
	sb.WriteString("\n\nAnswer:")
	return sb.String()
}
