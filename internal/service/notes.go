package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/timmy/vidnotes/internal/domain"
	"github.com/timmy/vidnotes/internal/engine"
	"github.com/timmy/vidnotes/internal/logger"
	"github.com/timmy/vidnotes/internal/models"
	"github.com/timmy/vidnotes/internal/repository"
)

// Chunking and batching limits for summarization.
const (
	maxChunkChars     = 900
	minChunkChars     = 50
	summaryBatchSize  = 2
	retryChunkCount   = 3
	fallbackSummaryAt = 1000
)

// Degraded-mode messages.
const (
	msgSummarizerUnavailable = "No key points could be generated. Summarizer model could not be loaded."
	msgTranscriptTooShort    = "Transcript too short for key point extraction."
	msgSummaryFailed         = "Failed to generate a summary. Please try a different model or try again later."
	msgKeyPointsFailed       = "Failed to extract key points from the transcript."
)

// NotesConfig holds configuration for the notes service
type NotesConfig struct {
	// LazyModel is loaded once when no summarizer is resident. Empty disables it.
	LazyModel string
}

// NotesService turns transcripts into summary notes.
type NotesService struct {
	models    *models.Manager
	artifacts *repository.ArtifactRepository
	lazyModel string
}

// NewNotesService creates a notes service.
// Parameters:
//   - manager: model manager holding the resident summarizer.
//   - artifacts: repository used by Regenerate to read transcripts and write notes.
//   - cfg: lazy-load configuration.
// Returns:
//   - *NotesService: service ready to generate notes.
func NewNotesService(manager *models.Manager, artifacts *repository.ArtifactRepository, cfg *NotesConfig) *NotesService {
	s := &NotesService{models: manager, artifacts: artifacts}
	if cfg != nil {
		s.lazyModel = cfg.LazyModel
	}
	return s
}

// Generate summarizes transcript. It never fails: when summarization is
// unavailable or every attempt fails a fallback Notes is returned.
func (s *NotesService) Generate(ctx context.Context, transcript string) *domain.Notes {
	ctx = logger.SetStage(ctx, string(StageSummarize))
	start := time.Now()

	if !s.models.IsReady(models.KindSummarization) {
		logger.CtxWarn(ctx, "Summarizer not available, attempting to load %s", s.lazyModel)
		if s.lazyModel == "" || !s.models.EnsureSummarization(ctx, s.lazyModel) {
			return fallbackNotes(transcript, msgSummarizerUnavailable)
		}
	}

	lease, err := s.models.AcquireSummarizer()
	if err != nil {
		logger.CtxWarn(ctx, "Summarizer went away before use: %v", err)
		return fallbackNotes(transcript, msgSummarizerUnavailable)
	}
	defer lease.Release()
	ctx = logger.SetModel(ctx, lease.Name())

	chunks := chunkTranscript(transcript)
	logger.With(logger.Fields{logger.FieldCount: len(chunks)}).Info(ctx, "Processing chunks for summarization")
	if len(chunks) == 0 {
		return fallbackNotes(transcript, msgTranscriptTooShort)
	}

	summaries := summarizeBatches(ctx, lease, chunks, engine.DefaultParams(lease.Arch()))
	if len(summaries) == 0 {
		logger.CtxWarn(ctx, "Every batch failed, retrying the first chunks one at a time")
		summaries = summarizeSingly(ctx, lease, chunks)
	}
	if len(summaries) == 0 {
		logger.CtxError(ctx, "No summaries were generated successfully")
		return &domain.Notes{
			Summary:            msgSummaryFailed,
			KeyPoints:          []string{msgKeyPointsFailed},
			OriginalTranscript: transcript,
		}
	}

	notes := &domain.Notes{
		Summary:            strings.Join(summaries, " "),
		KeyPoints:          ExtractKeyPoints(summaries, transcript),
		OriginalTranscript: transcript,
	}
	logger.With(logger.Fields{logger.FieldCount: len(notes.KeyPoints)}).
		WithDuration(start).
		Info(ctx, "Notes generation complete")
	return notes
}

// Regenerate rebuilds the notes of a completed job from its persisted
// transcript and overwrites the notes artifact. A non-empty model makes
// that summarizer resident first.
func (s *NotesService) Regenerate(ctx context.Context, jobID, model string) (*domain.Notes, error) {
	ctx = logger.SetJobID(ctx, jobID)

	if model != "" {
		if _, ok := domain.SummarizerCatalog[model]; !ok {
			return nil, fmt.Errorf("%w: %s", models.ErrUnknownSummarizer, model)
		}
		status := s.models.Status().Summarization
		if status.State != models.StateReady || status.Name != model {
			s.models.LoadSummarization(ctx, model)
		}
	}

	transcript, err := s.artifacts.LoadTranscript(ctx, jobID)
	if err != nil {
		return nil, err
	}

	notes := s.Generate(ctx, transcript.Text)
	notes.Title = transcript.Title
	notes.Language = transcript.Language

	if _, err := s.artifacts.SaveNotes(ctx, jobID, notes); err != nil {
		return nil, err
	}
	logger.CtxInfo(ctx, "Notes regenerated")
	return notes, nil
}

func summarizeBatches(ctx context.Context, s engine.Summarizer, chunks []string, params engine.GenerationParams) []string {
	batches := (len(chunks) + summaryBatchSize - 1) / summaryBatchSize
	var summaries []string
	for i := 0; i < len(chunks); i += summaryBatchSize {
		end := i + summaryBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		n := i/summaryBatchSize + 1
		out, err := s.Summarize(ctx, chunks[i:end], params)
		if err != nil {
			logger.CtxError(ctx, "Batch %d/%d failed: %v", n, batches, err)
			continue
		}
		logger.CtxDebug(ctx, "Batch %d/%d summarized", n, batches)
		summaries = append(summaries, out...)
	}
	return summaries
}

func summarizeSingly(ctx context.Context, s engine.Summarizer, chunks []string) []string {
	params := engine.GenerationParams{MaxLength: 100, MinLength: 20, Truncation: true}
	if len(chunks) > retryChunkCount {
		chunks = chunks[:retryChunkCount]
	}
	var summaries []string
	for _, chunk := range chunks {
		out, err := s.Summarize(ctx, []string{chunk}, params)
		if err != nil || len(out) == 0 {
			continue
		}
		summaries = append(summaries, out[0])
	}
	return summaries
}

// chunkTranscript packs sentences into chunks shorter than maxChunkChars
// and drops chunks shorter than minChunkChars.
func chunkTranscript(transcript string) []string {
	var chunks []string
	current := ""
	for _, sentence := range splitSentences(transcript) {
		if utf8.RuneCountInString(current)+utf8.RuneCountInString(sentence) < maxChunkChars {
			current += " " + sentence
			continue
		}
		if current != "" {
			chunks = append(chunks, strings.TrimSpace(current))
		}
		current = sentence
	}
	if current != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}

	valid := chunks[:0]
	for _, c := range chunks {
		if utf8.RuneCountInString(c) >= minChunkChars {
			valid = append(valid, c)
		}
	}
	return valid
}

// fallbackNotes builds the truncation-based notes used in degraded mode.
func fallbackNotes(transcript, keyPoint string) *domain.Notes {
	return &domain.Notes{
		Summary:            truncateRunes(transcript, fallbackSummaryAt) + "...",
		KeyPoints:          []string{keyPoint},
		OriginalTranscript: transcript,
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
