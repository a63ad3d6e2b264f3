package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"docrag/internal/app"
	"docrag/internal/transport/http/response"
)

type MonitorHandler struct {
	monitor *app.MonitorService
}

func NewMonitorHandler(monitor *app.MonitorService) *MonitorHandler {
	return &MonitorHandler{monitor: monitor}
}

// Metrics handles GET ?since=...&limit=... where since is an RFC 3339 time
// or a duration like "6h".
func (h *MonitorHandler) Metrics(c *gin.Context) {
	since, err := app.ParseSince(c.Query("since"), time.Now().UTC())
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid since")
		return
	}
	list, err := h.monitor.History(c.Request.Context(), since, queryInt(c, "limit", 1000))
	if err != nil {
		writeServiceError(c, err, "list metrics")
		return
	}
	response.OK(c, gin.H{"since": since, "metrics": list})
}

func (h *MonitorHandler) Queue(c *gin.Context) {
	stats, err := h.monitor.Queue(c.Request.Context())
	if err != nil {
		writeServiceError(c, err, "queue stats")
		return
	}
	response.OK(c, stats)
}
