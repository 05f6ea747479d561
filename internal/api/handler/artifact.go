package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/vidnotes/internal/domain"
	"github.com/timmy/vidnotes/internal/jobs"
	"github.com/timmy/vidnotes/internal/logger"
	"github.com/timmy/vidnotes/internal/repository"
	"github.com/timmy/vidnotes/internal/service"
)

// ArtifactHandler serves transcripts and notes and regenerates notes.
type ArtifactHandler struct {
	jobs      *jobs.Store
	artifacts *repository.ArtifactRepository
	notes     *service.NotesService
}

// NewArtifactHandler creates a new artifact handler.
func NewArtifactHandler(store *jobs.Store, artifacts *repository.ArtifactRepository, notes *service.NotesService) *ArtifactHandler {
	return &ArtifactHandler{jobs: store, artifacts: artifacts, notes: notes}
}

// RegenerateRequest is the optional body of POST /api/notes/:job_id/regenerate.
type RegenerateRequest struct {
	ModelName string `json:"model_name"`
}

// GetTranscript handles GET /api/transcript/:job_id.
func (h *ArtifactHandler) GetTranscript(c *gin.Context) {
	id := c.Param("job_id")
	if h.incomplete(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transcript not available"})
		return
	}
	transcript, err := h.artifacts.LoadTranscript(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Transcript not available")
		return
	}
	c.JSON(http.StatusOK, transcript)
}

// GetNotes handles GET /api/notes/:job_id.
func (h *ArtifactHandler) GetNotes(c *gin.Context) {
	id := c.Param("job_id")
	if h.incomplete(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notes not available"})
		return
	}
	notes, err := h.artifacts.LoadNotes(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Notes not available")
		return
	}
	c.JSON(http.StatusOK, notes)
}

// RegenerateNotes handles POST /api/notes/:job_id/regenerate. The body is
// optional; model_name selects a summarizer from the catalog.
func (h *ArtifactHandler) RegenerateNotes(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("job_id")

	var req RegenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if h.incomplete(id) {
		c.JSON(http.StatusConflict, gin.H{"error": "Job has not completed"})
		return
	}

	ctx = logger.SetJobID(ctx, id)
	notes, err := h.notes.Regenerate(ctx, id, req.ModelName)
	if err != nil {
		respondError(c, err, "Failed to regenerate notes")
		return
	}
	logger.With(logger.Fields{}).WithCount(len(notes.KeyPoints)).Info(ctx, "Notes regenerated")
	c.JSON(http.StatusOK, notes)
}

// incomplete reports whether id is a live job that has not completed.
// Artifacts of such jobs are not served.
func (h *ArtifactHandler) incomplete(id string) bool {
	if !h.jobs.Live(id) {
		return false
	}
	job, ok := h.jobs.Get(id)
	return ok && job.Status != domain.JobStatusComplete
}
