package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docrag/internal/app"
	"docrag/internal/transport/http/response"
)

type JobsHandler struct {
	ingest *app.IngestService
}

func NewJobsHandler(ingest *app.IngestService) *JobsHandler {
	return &JobsHandler{ingest: ingest}
}

func (h *JobsHandler) Get(c *gin.Context) {
	jobID, err := parseUintParam(c, "id")
	if err != nil || jobID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid job id")
		return
	}
	status, err := h.ingest.GetStatus(c.Request.Context(), jobID)
	if err != nil {
		writeServiceError(c, err, "get job")
		return
	}
	response.OK(c, status)
}

func (h *JobsHandler) BySource(c *gin.Context) {
	ref, ok := parseSourceRef(c)
	if !ok {
		return
	}
	status, err := h.ingest.GetStatusBySource(c.Request.Context(), ref)
	if err != nil {
		writeServiceError(c, err, "get job")
		return
	}
	response.OK(c, status)
}

// List accepts optional status and limit query parameters.
func (h *JobsHandler) List(c *gin.Context) {
	jobs, err := h.ingest.ListJobs(c.Request.Context(), c.Query("status"), queryInt(c, "limit", 0))
	if err != nil {
		writeServiceError(c, err, "list jobs")
		return
	}
	response.OK(c, jobs)
}

func (h *JobsHandler) Reprocess(c *gin.Context) {
	jobID, err := parseUintParam(c, "id")
	if err != nil || jobID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid job id")
		return
	}
	if err := h.ingest.Reprocess(c.Request.Context(), jobID); err != nil {
		writeServiceError(c, err, "reprocess job")
		return
	}
	response.Accepted(c, gin.H{"job_id": jobID})
}
