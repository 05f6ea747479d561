package api

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/timmy/vidnotes/internal/api/handler"
	"github.com/timmy/vidnotes/internal/api/middleware"
	"github.com/timmy/vidnotes/internal/config"
	"github.com/timmy/vidnotes/internal/jobs"
	"github.com/timmy/vidnotes/internal/logger"
	"github.com/timmy/vidnotes/internal/models"
	"github.com/timmy/vidnotes/internal/repository"
	"github.com/timmy/vidnotes/internal/service"
	"github.com/timmy/vidnotes/internal/source"
	"github.com/timmy/vidnotes/internal/worker"
)

// Services bundles everything the HTTP layer calls into.
type Services struct {
	Pipeline  *service.PipelineService
	Notes     *service.NotesService
	Export    *service.ExportService
	Jobs      *jobs.Store
	Artifacts *repository.ArtifactRepository
	Models    *models.Manager
	Pool      *worker.Pool
	Settings  *config.SettingsStore
	Sources   *source.Registry
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(svc *Services, mode string, cors middleware.CORSConfig) *gin.Engine {
	// Set Gin mode
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := handler.RegisterValidations(v, svc.Sources); err != nil {
			logger.Error("Failed to register request validators: %v", err)
		}
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cors))

	// Create handlers
	healthHandler := handler.NewHealthHandler(svc.Models, svc.Pool)
	jobHandler := handler.NewJobHandler(svc.Pipeline, svc.Jobs)
	artifactHandler := handler.NewArtifactHandler(svc.Jobs, svc.Artifacts, svc.Notes)
	settingsHandler := handler.NewSettingsHandler(svc.Settings, svc.Models, svc.Export.Configured)
	exportHandler := handler.NewExportHandler(svc.Export)

	// Health check
	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")
	{
		// Jobs
		api.POST("/transcribe", jobHandler.Transcribe)
		api.GET("/job/:job_id", jobHandler.GetJob)
		api.GET("/logs/:job_id", jobHandler.GetLogs)
		api.GET("/jobs", jobHandler.ListJobs)

		// Artifacts
		api.GET("/transcript/:job_id", artifactHandler.GetTranscript)
		api.GET("/notes/:job_id", artifactHandler.GetNotes)
		api.POST("/notes/:job_id/regenerate", artifactHandler.RegenerateNotes)

		// Models and preferences
		api.POST("/load_model", settingsHandler.LoadModel)
		api.GET("/config", settingsHandler.GetConfig)
		api.POST("/save_theme", settingsHandler.SaveTheme)

		// Export
		api.POST("/export/notion", exportHandler.ExportNotion)
		api.GET("/export/notion/:job_id", exportHandler.ExportHistory)
	}

	return r
}
