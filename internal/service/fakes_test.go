package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/timmy/vidnotes/internal/domain"
	"github.com/timmy/vidnotes/internal/engine"
	"github.com/timmy/vidnotes/internal/models"
	"github.com/timmy/vidnotes/internal/repository"
)

type scriptedSummarizer struct {
	name string
	arch domain.SummarizerArch
	fn   func(chunks []string, params engine.GenerationParams) ([]string, error)

	mu    sync.Mutex
	calls []engine.GenerationParams
}

func (s *scriptedSummarizer) Summarize(ctx context.Context, chunks []string, params engine.GenerationParams) ([]string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, params)
	s.mu.Unlock()
	if s.fn != nil {
		return s.fn(chunks, params)
	}
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = "Summary: " + c
	}
	return out, nil
}

func (s *scriptedSummarizer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *scriptedSummarizer) Name() string                { return s.name }
func (s *scriptedSummarizer) Arch() domain.SummarizerArch { return s.arch }
func (s *scriptedSummarizer) Close() error                { return nil }

type summarizerLoader struct {
	mu       sync.Mutex
	fail     bool
	fn       func(chunks []string, params engine.GenerationParams) ([]string, error)
	attempts []string
	last     *scriptedSummarizer
}

func (l *summarizerLoader) LoadSummarizer(ctx context.Context, spec engine.SummarizerSpec) (engine.Summarizer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = append(l.attempts, spec.Name)
	if l.fail {
		return nil, errors.New("cannot allocate memory")
	}
	l.last = &scriptedSummarizer{name: spec.Name, arch: spec.Model.Arch, fn: l.fn}
	return l.last, nil
}

type segmentTranscriber struct {
	segments []domain.Segment
	err      error
	panicky  bool
}

func (t *segmentTranscriber) Transcribe(ctx context.Context, req engine.TranscribeRequest, onSegment engine.SegmentFunc) (engine.TranscriptionResult, error) {
	if t.panicky {
		var none []domain.Segment
		onSegment(none[3])
	}
	if t.err != nil {
		return engine.TranscriptionResult{}, t.err
	}
	text := ""
	for _, seg := range t.segments {
		onSegment(seg)
		text += seg.Text + " "
	}
	lang := req.Language
	if lang == "" {
		lang = "en"
	}
	return engine.TranscriptionResult{Text: text, Segments: append([]domain.Segment(nil), t.segments...), Language: lang}, nil
}

func (t *segmentTranscriber) Close() error { return nil }

type transcriberLoader struct {
	transcriber *segmentTranscriber
}

func (l *transcriberLoader) LoadTranscriber(ctx context.Context, spec engine.TranscriberSpec) (engine.Transcriber, error) {
	return l.transcriber, nil
}

func (l *transcriberLoader) Check(ctx context.Context, family domain.ModelFamily) error { return nil }

type cpuOnly struct{}

func (cpuOnly) Detect(ctx context.Context) domain.Device { return domain.DeviceCPU }

type fakeAudio struct {
	dir         string
	downloadErr error
	metaErr     error
	meta        domain.SourceMetadata
}

func (a *fakeAudio) Download(ctx context.Context, url, jobID string) (string, error) {
	if a.downloadErr != nil {
		return "", a.downloadErr
	}
	path := filepath.Join(a.dir, jobID+".mp3")
	if err := os.WriteFile(path, []byte("ID3 fake audio"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (a *fakeAudio) FetchMetadata(ctx context.Context, url string) (domain.SourceMetadata, error) {
	if a.metaErr != nil {
		return domain.SourceMetadata{}, a.metaErr
	}
	return a.meta, nil
}

type fixedDuration float64

func (d fixedDuration) Duration(ctx context.Context, path string) (float64, error) {
	return float64(d), nil
}

func newArtifacts(t *testing.T) *repository.ArtifactRepository {
	t.Helper()
	root := t.TempDir()
	repo, err := repository.NewArtifactRepository(filepath.Join(root, "transcripts"), filepath.Join(root, "notes"))
	require.NoError(t, err)
	return repo
}

func newManager(sl *summarizerLoader, tl *transcriberLoader) *models.Manager {
	if tl == nil {
		tl = &transcriberLoader{transcriber: &segmentTranscriber{}}
	}
	return models.NewManager(tl, sl, cpuOnly{})
}

// longTranscript returns n distinct sentences of roughly 70 characters.
func longTranscript(n int) string {
	text := ""
	for i := 0; i < n; i++ {
		text += fmt.Sprintf("Sentence number %d describes a separate subject in moderate detail. ", i)
	}
	return text
}
