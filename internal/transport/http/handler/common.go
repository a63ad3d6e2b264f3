package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docrag/internal/app"
	"docrag/internal/model"
	"docrag/internal/transport/http/middleware"
	"docrag/internal/transport/http/response"
)

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	return userID, ok
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	u, err := strconv.ParseUint(c.Param(key), 10, 64)
	return uint(u), err
}

func parseSourceRef(c *gin.Context) (model.SourceRef, bool) {
	kind, err := model.ParseSourceKind(c.Param("kind"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return model.SourceRef{}, false
	}
	id, err := parseUintParam(c, "id")
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid source id")
		return model.SourceRef{}, false
	}
	return model.SourceRef{Kind: kind, ID: id}, true
}

// optionalID parses an optional positive id. Empty is zero; anything else
// that is not a positive integer writes a 400 and reports false.
func optionalID(c *gin.Context, raw, name string) (uint, bool) {
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if raw := c.Query(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			return parsed
		}
	}
	return fallback
}

// writeServiceError maps service sentinels onto API codes. Unknown errors are
// logged and reported as "<action> failed".
func writeServiceError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	case errors.Is(err, app.ErrIntegrityConflict):
		response.Error(c, http.StatusConflict, response.CodeConflict, err.Error())
	case errors.Is(err, app.ErrJobExists):
		response.Error(c, http.StatusConflict, response.CodeJobExists, err.Error())
	case errors.Is(err, app.ErrJobActive):
		response.Error(c, http.StatusConflict, response.CodeJobActive, err.Error())
	case errors.Is(err, app.ErrAnswerUnavailable):
		response.Error(c, http.StatusServiceUnavailable, response.CodeUnavailable, err.Error())
	default:
		slog.Error(action+" failed", "path", c.FullPath(), "error", err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, action+" failed")
	}
}
