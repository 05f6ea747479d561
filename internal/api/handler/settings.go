package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/vidnotes/internal/config"
	"github.com/timmy/vidnotes/internal/domain"
	"github.com/timmy/vidnotes/internal/logger"
	"github.com/timmy/vidnotes/internal/models"
)

// SettingsHandler handles model configuration and UI preferences.
type SettingsHandler struct {
	settings *config.SettingsStore
	models   *models.Manager
	notion   func() bool
}

// NewSettingsHandler creates a new settings handler.
// Parameters:
//   - settings: persisted settings document.
//   - manager: model manager that loads the selected models.
//   - notionConfigured: reports whether server-side Notion credentials exist; may be nil.
// Returns:
//   - *SettingsHandler: initialized handler.
func NewSettingsHandler(settings *config.SettingsStore, manager *models.Manager, notionConfigured func() bool) *SettingsHandler {
	if notionConfigured == nil {
		notionConfigured = func() bool { return false }
	}
	return &SettingsHandler{settings: settings, models: manager, notion: notionConfigured}
}

// LoadModelRequest is the body of POST /api/load_model.
type LoadModelRequest struct {
	ModelType       domain.ModelFamily `json:"model_type" binding:"omitempty,modelfamily"`
	ModelSize       string             `json:"model_size" binding:"omitempty,modelsize"`
	SummarizerModel string             `json:"summarizer_model"`
}

// ThemeRequest is the body of POST /api/save_theme.
type ThemeRequest struct {
	Theme string `json:"theme" binding:"omitempty,oneof=light dark"`
}

// GetConfig handles GET /api/config: the saved selection merged with the
// live model status and the summarizer catalog.
func (h *SettingsHandler) GetConfig(c *gin.Context) {
	ctx := c.Request.Context()

	settings, err := h.settings.Load(ctx)
	if err != nil {
		logger.CtxWarn(ctx, "Failed to read settings, using defaults: %v", err)
		settings = domain.DefaultSettings()
	}

	status := h.models.Status()
	summarizer := settings.SummarizerModel
	if status.Summarization.State == models.StateReady {
		summarizer = status.Summarization.Name
	}

	c.JSON(http.StatusOK, gin.H{
		"model_type":            settings.ModelType,
		"model_size":            settings.ModelSize,
		"theme":                 settings.Theme,
		"summarizer_model":      summarizer,
		"model_status":          readiness(status.Transcription, "no model loaded"),
		"summarizer_status":     readiness(status.Summarization, "no summarizer loaded"),
		"available_summarizers": domain.SummarizerCatalog,
		"models":                status,
		"notion_configured":     h.notion(),
	})
}

// LoadModel handles POST /api/load_model. The selection is saved before any
// model is loaded so it survives a failed load.
func (h *SettingsHandler) LoadModel(c *gin.Context) {
	ctx := logger.SetComponent(c.Request.Context(), "models")
	start := time.Now()

	var req LoadModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if req.SummarizerModel != "" {
		if _, ok := domain.SummarizerCatalog[req.SummarizerModel]; !ok {
			respondError(c, fmt.Errorf("%w: %s", models.ErrUnknownSummarizer, req.SummarizerModel), "Invalid request")
			return
		}
	}

	settings, err := h.settings.Update(ctx, func(s *domain.Settings) {
		s.ModelType = domain.ModelFamilyWhisper
		s.ModelSize = domain.DefaultModelSize
		if req.ModelType != "" {
			s.ModelType = req.ModelType
		}
		if req.ModelSize != "" {
			s.ModelSize = req.ModelSize
		}
		if req.SummarizerModel != "" {
			s.SummarizerModel = req.SummarizerModel
		}
	})
	if err != nil {
		respondError(c, err, "Failed to save settings")
		return
	}

	summarizerLoaded := h.models.LoadSummarization(ctx, settings.SummarizerModel)

	if settings.ModelType.SelfLoading() {
		err = h.models.VerifyTranscription(ctx, settings.ModelType)
	} else {
		err = h.models.LoadTranscription(ctx, settings.ModelType, settings.ModelSize)
	}
	if err != nil {
		respondError(c, err, "Failed to load model")
		return
	}

	logger.With(logger.Fields{}).WithDuration(start).Info(ctx, "Models configured: %s %s, summarizer %s (loaded=%v)",
		settings.ModelType, settings.ModelSize, settings.SummarizerModel, summarizerLoaded)

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("%s model %s loaded with %s summarizer",
			capitalize(string(settings.ModelType)), settings.ModelSize, settings.SummarizerModel),
		"summarizer_loaded": summarizerLoaded,
		"models":            h.models.Status(),
	})
}

// SaveTheme handles POST /api/save_theme. Only the theme is changed.
func (h *SettingsHandler) SaveTheme(c *gin.Context) {
	var req ThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	theme := req.Theme
	if theme == "" {
		theme = domain.DefaultTheme
	}

	if _, err := h.settings.Update(c.Request.Context(), func(s *domain.Settings) {
		s.Theme = theme
	}); err != nil {
		respondError(c, err, "Failed to save theme")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Theme set to " + theme})
}

func readiness(s models.SlotStatus, missing string) string {
	if s.State == models.StateReady {
		return "loaded"
	}
	return missing
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
