package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/vidnotes/internal/logger"
	"github.com/timmy/vidnotes/internal/service"
)

// ExportHandler handles Notion export endpoints.
type ExportHandler struct {
	export *service.ExportService
}

// NewExportHandler creates a new export handler.
func NewExportHandler(export *service.ExportService) *ExportHandler {
	return &ExportHandler{export: export}
}

// NotionExportRequest is the body of POST /api/export/notion. Either
// content or jobId must be given; credentials fall back to configuration.
type NotionExportRequest struct {
	Content      *service.ExportContent `json:"content"`
	NotionToken  string                 `json:"notionToken"`
	NotionPageID string                 `json:"notionPageId"`
	JobID        string                 `json:"jobId"`
}

// ExportNotion handles POST /api/export/notion.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ExportHandler) ExportNotion(c *gin.Context) {
	ctx := c.Request.Context()

	var req NotionExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	result, err := h.export.Export(ctx, service.ExportRequest{
		JobID:        req.JobID,
		Content:      req.Content,
		Token:        req.NotionToken,
		ParentPageID: req.NotionPageID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExportNotConfigured), errors.Is(err, service.ErrExportContent):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Missing required parameters. Please provide Notion token and page ID or set them in environment variables.",
			})
		case errors.Is(err, service.ErrNotionAPI):
			logger.CtxError(ctx, "Notion export failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			respondError(c, err, "Export failed")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Successfully exported to Notion",
		"pageId":     result.PageID,
		"pageUrl":    result.PageURL,
		"blockCount": result.BlockCount,
	})
}

// ExportHistory handles GET /api/export/notion/:job_id.
func (h *ExportHandler) ExportHistory(c *gin.Context) {
	records, err := h.export.History(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		respondError(c, err, "Failed to list exports")
		return
	}
	c.JSON(http.StatusOK, gin.H{"exports": records})
}
