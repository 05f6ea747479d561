package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/vidnotes/internal/jobs"
	"github.com/timmy/vidnotes/internal/logger"
	"github.com/timmy/vidnotes/internal/models"
	"github.com/timmy/vidnotes/internal/repository"
	"github.com/timmy/vidnotes/internal/service"
	"github.com/timmy/vidnotes/internal/source"
	"github.com/timmy/vidnotes/internal/worker"
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, source.ErrInvalidURL),
		errors.Is(err, models.ErrUnknownFamily),
		errors.Is(err, models.ErrUnknownSize),
		errors.Is(err, models.ErrUnknownSummarizer),
		errors.Is(err, repository.ErrInvalidJobID),
		errors.Is(err, service.ErrExportNotConfigured),
		errors.Is(err, service.ErrExportContent):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrJobNotFound),
		errors.Is(err, repository.ErrArtifactNotFound):
		return http.StatusNotFound
	case errors.Is(err, worker.ErrPoolFull),
		errors.Is(err, worker.ErrPoolClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrNotionAPI):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with the mapped status. Server-side failures are
// logged; client errors are not.
func respondError(c *gin.Context, err error, prefix string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.CtxError(c.Request.Context(), "%s: %v", prefix, err)
	}
	c.JSON(status, gin.H{"error": prefix + ": " + err.Error()})
}
