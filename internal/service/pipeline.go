package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/timmy/vidnotes/internal/domain"
	"github.com/timmy/vidnotes/internal/engine"
	"github.com/timmy/vidnotes/internal/jobs"
	"github.com/timmy/vidnotes/internal/logger"
	"github.com/timmy/vidnotes/internal/models"
	"github.com/timmy/vidnotes/internal/repository"
	"github.com/timmy/vidnotes/internal/source"
	"github.com/timmy/vidnotes/internal/worker"
	"golang.org/x/time/rate"
)

// AudioSource downloads audio and reads metadata for a URL.
type AudioSource interface {
	Download(ctx context.Context, url, jobID string) (string, error)
	FetchMetadata(ctx context.Context, url string) (domain.SourceMetadata, error)
}

// DurationProber reads the length of an audio file in seconds.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// PipelineConfig holds configuration for the pipeline service
type PipelineConfig struct {
	DefaultFamily    domain.ModelFamily
	DefaultSize      string
	ProgressInterval time.Duration
}

// SubmitRequest is one transcription submission.
type SubmitRequest struct {
	URL       string
	ModelType domain.ModelFamily
	ModelSize string
	Language  string
}

// PipelineService admits jobs and runs download, transcribe, metadata,
// summarize and persist for each on the worker pool.
type PipelineService struct {
	jobs      *jobs.Store
	pool      *worker.Pool
	models    *models.Manager
	sources   *source.Registry
	audio     AudioSource
	prober    DurationProber
	artifacts *repository.ArtifactRepository
	notes     *NotesService
	cfg       PipelineConfig
}

// NewPipelineService creates a new pipeline service.
// Parameters:
//   - store: job store receiving state transitions and log lines.
//   - pool: worker pool providing bounded concurrency.
//   - manager: model manager lending transcription engines.
//   - sources: URL registry used to validate submissions.
//   - audio: downloader for audio and metadata.
//   - prober: audio duration reader for progress estimates.
//   - artifacts: transcript and notes persistence.
//   - notes: notes generator.
//   - cfg: defaults and progress cadence.
// Returns:
//   - *PipelineService: service ready to accept submissions.
func NewPipelineService(
	store *jobs.Store,
	pool *worker.Pool,
	manager *models.Manager,
	sources *source.Registry,
	audio AudioSource,
	prober DurationProber,
	artifacts *repository.ArtifactRepository,
	notes *NotesService,
	cfg *PipelineConfig,
) *PipelineService {
	c := PipelineConfig{
		DefaultFamily:    domain.ModelFamilyWhisper,
		DefaultSize:      domain.DefaultModelSize,
		ProgressInterval: 10 * time.Second,
	}
	if cfg != nil {
		if cfg.DefaultFamily != "" {
			c.DefaultFamily = cfg.DefaultFamily
		}
		if cfg.DefaultSize != "" {
			c.DefaultSize = cfg.DefaultSize
		}
		if cfg.ProgressInterval > 0 {
			c.ProgressInterval = cfg.ProgressInterval
		}
	}
	return &PipelineService{
		jobs:      store,
		pool:      pool,
		models:    manager,
		sources:   sources,
		audio:     audio,
		prober:    prober,
		artifacts: artifacts,
		notes:     notes,
		cfg:       c,
	}
}

// Submit validates req, reserves a worker slot and creates the job. Invalid
// input and a full pool are rejected before any job record exists.
func (s *PipelineService) Submit(ctx context.Context, req SubmitRequest) (domain.Job, error) {
	ref, err := s.sources.Resolve(req.URL)
	if err != nil {
		return domain.Job{}, err
	}

	family := req.ModelType
	if family == "" {
		family = s.cfg.DefaultFamily
	}
	if !family.Valid() {
		return domain.Job{}, fmt.Errorf("%w: %s", models.ErrUnknownFamily, family)
	}
	size := req.ModelSize
	if size == "" {
		size = s.cfg.DefaultSize
	}
	if !domain.ValidSize(size) {
		return domain.Job{}, fmt.Errorf("%w: %s", models.ErrUnknownSize, size)
	}

	ticket, err := s.pool.Reserve()
	if err != nil {
		return domain.Job{}, err
	}

	job, err := s.jobs.Create(domain.Job{
		ID:        uuid.NewString(),
		URL:       ref.URL,
		ModelType: family,
		ModelSize: size,
		Language:  domain.NormalizeLanguage(req.Language),
	})
	if err != nil {
		ticket.Release()
		return domain.Job{}, err
	}

	ctx = logger.SetJobID(ctx, job.ID)
	s.logf(ctx, job.ID, "Job created for %s using %s (%s)", job.URL, family, size)

	if err := ticket.Submit(func(workerCtx context.Context) {
		s.Run(workerCtx, job.ID)
	}); err != nil {
		s.fail(ctx, job.ID, err)
		return domain.Job{}, err
	}
	return job, nil
}

// Run executes every stage for jobID. Failures are recorded on the job and
// never returned.
func (s *PipelineService) Run(ctx context.Context, jobID string) {
	ctx = logger.SetJobID(ctx, jobID)
	start := time.Now()

	job, ok := s.jobs.Get(jobID)
	if !ok {
		logger.CtxError(ctx, "Job disappeared before it started")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			stage := StageDownload
			if current, ok := s.jobs.Get(jobID); ok {
				stage = stageForStatus(current.Status)
			}
			s.fail(ctx, jobID, stageErr(stage, fmt.Errorf("panic: %v", r)))
		}
	}()

	if err := s.run(ctx, job); err != nil {
		s.fail(ctx, jobID, err)
		return
	}
	logger.With(logger.Fields{}).WithDuration(start).Info(ctx, "Job complete")
}

func (s *PipelineService) run(ctx context.Context, job domain.Job) error {
	id := job.ID

	// download
	if err := s.advance(id, domain.JobStatusDownloading, domain.JobUpdate{}); err != nil {
		return err
	}
	s.logf(ctx, id, "Downloading audio...")
	audioPath, err := s.audio.Download(logger.SetStage(ctx, string(StageDownload)), job.URL, id)
	if err != nil {
		return stageErr(StageDownload, err)
	}
	if info, statErr := os.Stat(audioPath); statErr == nil {
		s.logf(ctx, id, "Audio downloaded (%s)", humanize.Bytes(uint64(info.Size())))
	}

	// transcribe
	if err := s.advance(id, domain.JobStatusTranscribing, domain.JobUpdate{AudioPath: &audioPath}); err != nil {
		return err
	}
	result, err := s.transcribe(logger.SetStage(ctx, string(StageTranscribe)), job, audioPath)
	if err != nil {
		return stageErr(StageTranscribe, err)
	}

	// metadata
	meta, err := s.audio.FetchMetadata(logger.SetStage(ctx, string(StageMetadata)), job.URL)
	if err != nil {
		logger.CtxWarn(ctx, "Metadata fetch failed, using placeholders: %v", err)
		s.logf(ctx, id, "Warning: could not fetch video metadata: %v", err)
		meta = domain.PlaceholderMetadata()
	}

	language := job.Language
	if language == "" {
		language = result.Language
	}
	transcript := &domain.Transcript{
		Text:     result.Text,
		Segments: result.Segments,
		Title:    meta.Title,
		Channel:  meta.Channel,
		URL:      job.URL,
		Language: language,
	}
	transcriptPath, err := s.artifacts.SaveTranscript(logger.SetStage(ctx, string(StagePersist)), id, transcript)
	if err != nil {
		return stageErr(StagePersist, err)
	}
	s.logf(ctx, id, "Transcript saved")

	// summarize
	if err := s.advance(id, domain.JobStatusGeneratingNotes, domain.JobUpdate{
		TranscriptPath: &transcriptPath,
		Title:          &meta.Title,
		Channel:        &meta.Channel,
		Thumbnail:      &meta.Thumbnail,
		Language:       &language,
	}); err != nil {
		return err
	}
	s.logf(ctx, id, "Generating notes...")
	notes := s.notes.Generate(ctx, result.Text)
	notes.Title = meta.Title
	notes.Language = language

	notesPath, err := s.artifacts.SaveNotes(logger.SetStage(ctx, string(StagePersist)), id, notes)
	if err != nil {
		return stageErr(StagePersist, err)
	}

	if err := s.advance(id, domain.JobStatusComplete, domain.JobUpdate{NotesPath: &notesPath}); err != nil {
		return err
	}
	s.logf(ctx, id, "Processing complete: %d segments, %d key points", len(transcript.Segments), len(notes.KeyPoints))
	return nil
}

// transcribe borrows an engine and streams segments into the job log,
// reporting coarse progress at most once per ProgressInterval.
func (s *PipelineService) transcribe(ctx context.Context, job domain.Job, audioPath string) (engine.TranscriptionResult, error) {
	lease, err := s.models.AcquireTranscriber(ctx, job.ModelType, job.ModelSize)
	if err != nil {
		return engine.TranscriptionResult{}, err
	}
	defer lease.Release()
	ctx = logger.SetModel(ctx, string(lease.Family))

	duration := 0.0
	if s.prober != nil {
		if d, err := s.prober.Duration(ctx, audioPath); err != nil {
			logger.CtxWarn(ctx, "Could not read audio duration: %v", err)
		} else {
			duration = d
		}
	}
	s.logf(ctx, job.ID, "Transcribing with %s (%s) on %s, duration %s",
		lease.Family, lease.Size, lease.Device, FormatClock(duration))

	progress := rate.Sometimes{Interval: s.cfg.ProgressInterval}
	onSegment := func(seg domain.Segment) {
		s.jobs.Logf(job.ID, "%s - %s", FormatClock(seg.Start), seg.Text)
		progress.Do(func() {
			s.jobs.Logf(job.ID, "Transcription progress: %.1f%%", progressPercent(seg.End, duration))
		})
	}

	result, err := lease.Transcribe(ctx, engine.TranscribeRequest{
		AudioPath: audioPath,
		Language:  job.Language,
	}, onSegment)
	if err != nil {
		return engine.TranscriptionResult{}, err
	}

	sort.SliceStable(result.Segments, func(i, j int) bool {
		return result.Segments[i].Start < result.Segments[j].Start
	})
	s.jobs.Logf(job.ID, "Transcription progress: 100.0%%")
	return result, nil
}

// advance moves the job forward and applies update in the same step.
func (s *PipelineService) advance(id string, status domain.JobStatus, update domain.JobUpdate) error {
	update.Status = &status
	if _, err := s.jobs.Update(id, update); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

func (s *PipelineService) fail(ctx context.Context, id string, err error) {
	msg := err.Error()
	logger.CtxError(ctx, "Job failed: %s", msg)
	s.jobs.Logf(id, "Error: %s", msg)
	if _, uerr := s.jobs.Update(id, domain.JobUpdate{
		Status: domain.Ptr(domain.JobStatusError),
		Error:  &msg,
	}); uerr != nil {
		logger.CtxError(ctx, "Failed to record job error: %v", uerr)
	}
}

// logf writes a line to both the job log buffer and the process log.
func (s *PipelineService) logf(ctx context.Context, id, format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	s.jobs.AppendLog(id, line)
	logger.CtxInfo(ctx, "%s", line)
}

// stageForStatus names the stage a job in status is running.
func stageForStatus(status domain.JobStatus) Stage {
	switch status {
	case domain.JobStatusTranscribing:
		return StageTranscribe
	case domain.JobStatusGeneratingNotes:
		return StageSummarize
	default:
		return StageDownload
	}
}

// progressPercent estimates completion from media time, clamped to [0, 100].
func progressPercent(elapsed, duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	pct := elapsed / duration * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// FormatClock renders seconds as m:ss, the timestamp format of job logs and exports.
func FormatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
