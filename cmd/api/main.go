package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/timmy/vidnotes/internal/api"
	"github.com/timmy/vidnotes/internal/api/middleware"
	"github.com/timmy/vidnotes/internal/config"
	"github.com/timmy/vidnotes/internal/domain"
	"github.com/timmy/vidnotes/internal/engine"
	"github.com/timmy/vidnotes/internal/jobs"
	"github.com/timmy/vidnotes/internal/logger"
	"github.com/timmy/vidnotes/internal/models"
	"github.com/timmy/vidnotes/internal/repository"
	"github.com/timmy/vidnotes/internal/service"
	"github.com/timmy/vidnotes/internal/source"
	"github.com/timmy/vidnotes/internal/source/youtube"
	"github.com/timmy/vidnotes/internal/storage"
	"github.com/timmy/vidnotes/internal/worker"
)

func main() {
	logger.SetDefaultLogger(logger.NewDefault())
	defer logger.Sync()

	ctx := logger.SetComponent(context.Background(), "main")

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	// One server per data directory
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		logger.Fatal("Failed to create data dir: %v", err)
	}
	lock := flock.New(cfg.Paths.LockFile())
	locked, err := lock.TryLock()
	if err != nil {
		logger.Fatal("Failed to lock data dir: %v", err)
	}
	if !locked {
		logger.Fatal("Another server is already using %s", cfg.Paths.DataDir)
	}
	defer lock.Unlock()

	// Initialize artifact storage, optionally mirrored to S3-compatible storage
	var artifactOpts []repository.ArtifactOption
	if cfg.Storage.Enabled {
		objectStorage, err := storage.NewStorage(ctx, &storage.S3Config{
			Type:      storage.StorageType(cfg.Storage.Type),
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
		})
		if err != nil {
			logger.Fatal("Failed to initialize storage: %v", err)
		}
		if err := objectStorage.EnsureBucket(ctx); err != nil {
			logger.Fatal("Failed to ensure bucket: %v", err)
		}
		artifactOpts = append(artifactOpts, repository.WithMirror(objectStorage, cfg.Storage.Prefix))
		logger.CtxInfo(ctx, "Mirroring artifacts to bucket %s", cfg.Storage.Bucket)
	}
	artifacts, err := repository.NewArtifactRepository(cfg.Paths.Transcripts, cfg.Paths.Notes, artifactOpts...)
	if err != nil {
		logger.Fatal("Failed to initialize artifact repository: %v", err)
	}

	// Export history is optional
	var history *repository.ExportRepository
	if cfg.Database.Enabled {
		db, err := repository.InitDB(&cfg.Database)
		if err != nil {
			logger.Fatal("Failed to initialize database: %v", err)
		}
		history = repository.NewExportRepository(db)
	}

	// Initialize engines and the model manager
	runner := engine.ExecRunner{}
	manager := models.NewManager(
		&engine.CLILoader{
			WhisperBinary:       cfg.Tools.Whisper,
			FasterWhisperBinary: cfg.Tools.FasterWhisper,
			ModelDir:            cfg.Paths.Models,
			Runner:              runner,
		},
		engine.NewHTTPLoader(engine.HTTPSummarizerConfig{
			BaseURL: cfg.Summarizer.BaseURL,
			APIKey:  cfg.Summarizer.APIKey,
			Timeout: cfg.Summarizer.Timeout,
		}),
		engine.NewDeviceDetector(cfg.Tools.NvidiaSMI, cfg.Models.Device, runner),
	)
	defer manager.Close()

	// Initialize job state and the worker pool
	store := jobs.NewStore(
		jobs.WithArtifactIndex(artifacts),
		jobs.WithLogLines(cfg.Pipeline.LogLines),
	)
	pool := worker.NewPool(worker.Config{
		Workers:   cfg.Pipeline.Workers,
		QueueSize: cfg.Pipeline.QueueSize,
	})
	pool.Start()

	// Initialize services
	sources := source.NewRegistry(false, youtube.NewAdapter())
	notes := service.NewNotesService(manager, artifacts, &service.NotesConfig{
		LazyModel: cfg.Models.LazySummarizer,
	})
	pipeline := service.NewPipelineService(
		store,
		pool,
		manager,
		sources,
		engine.NewDownloader(cfg.Tools.YTDLP, cfg.Paths.Downloads, runner),
		engine.NewProber(cfg.Tools.FFprobe, runner),
		artifacts,
		notes,
		&service.PipelineConfig{
			DefaultFamily:    domain.ModelFamily(cfg.Models.Family),
			DefaultSize:      cfg.Models.Size,
			ProgressInterval: cfg.Pipeline.ProgressInterval,
		},
	)
	export := service.NewExportService(&service.NotionConfig{
		BaseURL:      cfg.Notion.BaseURL,
		Version:      cfg.Notion.Version,
		Token:        cfg.Notion.Token,
		ParentPageID: cfg.Notion.ParentPageID,
		Timeout:      cfg.Notion.Timeout,
	}, artifacts, history)
	settings := config.NewSettingsStore(cfg.Paths.SettingsFile)

	if cfg.Models.Preload {
		go preload(ctx, settings, manager)
	}

	// Setup router
	router := api.SetupRouter(&api.Services{
		Pipeline:  pipeline,
		Notes:     notes,
		Export:    export,
		Jobs:      store,
		Artifacts: artifacts,
		Models:    manager,
		Pool:      pool,
		Settings:  settings,
		Sources:   sources,
	}, cfg.Server.Mode, middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.With(logger.Fields{
			"port":    cfg.Server.Port,
			"mode":    cfg.Server.Mode,
			"workers": pool.Capacity(),
		}).Info(ctx, "Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.CtxInfo(ctx, "Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.CtxError(ctx, "Server forced to shutdown: %v", err)
	}

	// Running jobs finish; there is no cancellation
	pool.Stop()

	logger.CtxInfo(ctx, "Server exited")
}

// preload loads the saved model selection in the background.
func preload(ctx context.Context, settings *config.SettingsStore, manager *models.Manager) {
	ctx = logger.SetComponent(ctx, "preload")

	s, err := settings.Load(ctx)
	if err != nil {
		logger.CtxWarn(ctx, "Skipping model preload: %v", err)
		return
	}
	manager.LoadSummarization(ctx, s.SummarizerModel)
	if s.ModelType.SelfLoading() {
		return
	}
	if err := manager.LoadTranscription(ctx, s.ModelType, s.ModelSize); err != nil {
		logger.CtxWarn(ctx, "Transcription model preload failed: %v", err)
	}
}
