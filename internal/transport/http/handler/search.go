package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docrag/internal/app"
	"docrag/internal/transport/http/response"
)

type SearchHandler struct {
	search           *app.SearchService
	defaultTopK      int
	defaultThreshold float64
}

type AskRequest struct {
	Question       string   `json:"question" binding:"required"`
	ConversationID string   `json:"conversation_id" binding:"max=50"`
	TopK           int      `json:"top_k" binding:"min=0,max=50"`
	Threshold      *float64 `json:"threshold" binding:"omitempty,gte=-1,lte=1"`
}

func NewSearchHandler(search *app.SearchService, defaultTopK int, defaultThreshold float64) *SearchHandler {
	return &SearchHandler{search: search, defaultTopK: defaultTopK, defaultThreshold: defaultThreshold}
}

// Search handles GET ?q=...&top_k=...&threshold=...
func (h *SearchHandler) Search(c *gin.Context) {
	topK := queryInt(c, "top_k", h.defaultTopK)
	threshold := h.defaultThreshold
	if raw := c.Query("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid threshold")
			return
		}
		threshold = parsed
	}

	hits, err := h.search.SearchHits(c.Request.Context(), c.Query("q"), topK, threshold)
	if err != nil {
		writeServiceError(c, err, "search")
		return
	}
	response.OK(c, hits)
}

func (h *SearchHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	topK := req.TopK
	if topK == 0 {
		topK = h.defaultTopK
	}
	threshold := h.defaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	result, err := h.search.Ask(c.Request.Context(), app.AskInput{
		ConversationID: req.ConversationID,
		Query:          req.Question,
		TopK:           topK,
		Threshold:      threshold,
	})
	if err != nil {
		writeServiceError(c, err, "ask")
		return
	}
	response.OK(c, result)
}

func (h *SearchHandler) Conversation(c *gin.Context) {
	turns, err := h.search.GetConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err, "get conversation")
		return
	}
	response.OK(c, gin.H{"conversation_id": c.Param("id"), "turns": turns})
}

func (h *SearchHandler) Reembed(c *gin.Context) {
	stats, err := h.search.ReembedAll(c.Request.Context())
	if err != nil {
		writeServiceError(c, err, "reembed")
		return
	}
	response.OK(c, stats)
}
