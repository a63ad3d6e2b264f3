package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docrag/internal/app"
	"docrag/internal/transport/http/response"
)

// SourcesHandler registers documents and webpages. Processing happens in the
// worker; every create call answers with the pending job.
type SourcesHandler struct {
	ingest         *app.IngestService
	maxUploadBytes int64
}

type CreateDocumentRequest struct {
	Title        string `json:"title" binding:"max=255"`
	Content      string `json:"content" binding:"required"`
	CollectionID uint   `json:"collection_id"`
}

type CrawlWebpageRequest struct {
	URL          string `json:"url" binding:"required,url,max=2048"`
	CollectionID uint   `json:"collection_id"`
}

func NewSourcesHandler(ingest *app.IngestService, maxUploadBytes int64) *SourcesHandler {
	return &SourcesHandler{ingest: ingest, maxUploadBytes: maxUploadBytes}
}

func (h *SourcesHandler) CreateDocument(c *gin.Context) {
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	doc, job, err := h.ingest.CreateDocument(c.Request.Context(), app.CreateDocumentInput{
		Title:        req.Title,
		Content:      req.Content,
		CollectionID: req.CollectionID,
	})
	if err != nil {
		writeServiceError(c, err, "create document")
		return
	}
	response.Accepted(c, gin.H{"document": doc, "job": job})
}

// UploadPDF accepts a multipart form with a "file" field and an optional
// "collection_id".
func (h *SourcesHandler) UploadPDF(c *gin.Context) {
	collectionID, ok := optionalID(c, c.PostForm("collection_id"), "collection_id")
	if !ok {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file too large")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	doc, job, err := h.ingest.UploadPDF(c.Request.Context(), file.Filename, f, collectionID)
	if err != nil {
		writeServiceError(c, err, "upload document")
		return
	}
	response.Accepted(c, gin.H{"document": doc, "job": job})
}

func (h *SourcesHandler) CrawlWebpage(c *gin.Context) {
	var req CrawlWebpageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	page, job, err := h.ingest.CrawlWebpage(c.Request.Context(), req.URL, req.CollectionID)
	if err != nil {
		writeServiceError(c, err, "crawl webpage")
		return
	}
	response.Accepted(c, gin.H{"webpage": page, "job": job})
}

// ListDocuments handles GET ?collection_id=...&limit=...
func (h *SourcesHandler) ListDocuments(c *gin.Context) {
	collectionID, ok := optionalID(c, c.Query("collection_id"), "collection_id")
	if !ok {
		return
	}
	docs, err := h.ingest.ListDocuments(c.Request.Context(), collectionID, queryInt(c, "limit", 100))
	if err != nil {
		writeServiceError(c, err, "list documents")
		return
	}
	response.OK(c, docs)
}

func (h *SourcesHandler) ListWebpages(c *gin.Context) {
	collectionID, ok := optionalID(c, c.Query("collection_id"), "collection_id")
	if !ok {
		return
	}
	pages, err := h.ingest.ListWebpages(c.Request.Context(), collectionID, queryInt(c, "limit", 100))
	if err != nil {
		writeServiceError(c, err, "list webpages")
		return
	}
	response.OK(c, pages)
}

func (h *SourcesHandler) ListTags(c *gin.Context) {
	tags, err := h.ingest.ListTags(c.Request.Context())
	if err != nil {
		writeServiceError(c, err, "list tags")
		return
	}
	response.OK(c, tags)
}

// Enqueue creates the job for an existing source.
func (h *SourcesHandler) Enqueue(c *gin.Context) {
	ref, ok := parseSourceRef(c)
	if !ok {
		return
	}
	job, err := h.ingest.Enqueue(c.Request.Context(), ref.Kind, ref.ID)
	if err != nil {
		writeServiceError(c, err, "enqueue source")
		return
	}
	response.Accepted(c, job)
}

func (h *SourcesHandler) DeleteSource(c *gin.Context) {
	ref, ok := parseSourceRef(c)
	if !ok {
		return
	}
	if err := h.ingest.DeleteSource(c.Request.Context(), ref); err != nil {
		writeServiceError(c, err, "delete source")
		return
	}
	response.OK(c, gin.H{"deleted": ref})
}
