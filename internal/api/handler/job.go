package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/vidnotes/internal/domain"
	"github.com/timmy/vidnotes/internal/jobs"
	"github.com/timmy/vidnotes/internal/logger"
	"github.com/timmy/vidnotes/internal/service"
)

// JobHandler handles submission and job polling endpoints.
type JobHandler struct {
	pipeline *service.PipelineService
	jobs     *jobs.Store
}

// NewJobHandler creates a new job handler.
// Parameters:
//   - pipeline: pipeline service accepting submissions.
//   - store: job store queried by the polling endpoints.
// Returns:
//   - *JobHandler: initialized handler.
func NewJobHandler(pipeline *service.PipelineService, store *jobs.Store) *JobHandler {
	return &JobHandler{pipeline: pipeline, jobs: store}
}

// TranscribeRequest is the body of POST /api/transcribe.
type TranscribeRequest struct {
	YouTubeURL string             `json:"youtube_url" binding:"required,mediaurl"`
	ModelType  domain.ModelFamily `json:"model_type" binding:"omitempty,modelfamily"`
	ModelSize  string             `json:"model_size" binding:"omitempty,modelsize"`
	Language   string             `json:"language"`
}

// Transcribe handles POST /api/transcribe.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) Transcribe(c *gin.Context) {
	ctx := c.Request.Context()

	var req TranscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.CtxWarn(ctx, "Invalid transcribe request: client_ip=%s, error=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	job, err := h.pipeline.Submit(ctx, service.SubmitRequest{
		URL:       req.YouTubeURL,
		ModelType: req.ModelType,
		ModelSize: req.ModelSize,
		Language:  req.Language,
	})
	if err != nil {
		respondError(c, err, "Failed to submit job")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id": job.ID,
		"status": job.Status,
	})
}

// GetJob handles GET /api/job/:job_id.
func (h *JobHandler) GetJob(c *gin.Context) {
	job, ok := h.jobs.Get(c.Param("job_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// GetLogs handles GET /api/logs/:job_id. Unknown jobs have an empty log.
func (h *JobHandler) GetLogs(c *gin.Context) {
	logs := h.jobs.Logs(c.Param("job_id"))
	if logs == nil {
		logs = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// ListJobs handles GET /api/jobs.
func (h *JobHandler) ListJobs(c *gin.Context) {
	list, err := h.jobs.List()
	if err != nil {
		logger.CtxWarn(c.Request.Context(), "Job listing is incomplete: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"jobs": list})
}
