package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docrag/internal/app"
	"docrag/internal/transport/http/response"
)

type CollectionsHandler struct {
	collections *app.CollectionService
}

type CreateCollectionRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=2000"`
	ParentID    uint   `json:"parent_id"`
}

func NewCollectionsHandler(collections *app.CollectionService) *CollectionsHandler {
	return &CollectionsHandler{collections: collections}
}

func (h *CollectionsHandler) Create(c *gin.Context) {
	var req CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	coll, err := h.collections.Create(c.Request.Context(), app.CreateCollectionInput{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
	})
	if err != nil {
		writeServiceError(c, err, "create collection")
		return
	}
	response.OK(c, coll)
}

func (h *CollectionsHandler) List(c *gin.Context) {
	list, err := h.collections.List(c.Request.Context())
	if err != nil {
		writeServiceError(c, err, "list collections")
		return
	}
	response.OK(c, list)
}
