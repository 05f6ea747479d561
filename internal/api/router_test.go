package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/vidnotes/internal/api/middleware"
	"github.com/timmy/vidnotes/internal/config"
	"github.com/timmy/vidnotes/internal/domain"
	"github.com/timmy/vidnotes/internal/engine"
	"github.com/timmy/vidnotes/internal/jobs"
	"github.com/timmy/vidnotes/internal/models"
	"github.com/timmy/vidnotes/internal/repository"
	"github.com/timmy/vidnotes/internal/service"
	"github.com/timmy/vidnotes/internal/source"
	"github.com/timmy/vidnotes/internal/source/youtube"
	"github.com/timmy/vidnotes/internal/worker"
)

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(ctx context.Context, req engine.TranscribeRequest, onSegment engine.SegmentFunc) (engine.TranscriptionResult, error) {
	segments := []domain.Segment{
		{Start: 30, End: 40, Text: "and then we wrap up"},
		{Start: 0, End: 10, Text: "welcome to the talk"},
	}
	for _, s := range segments {
		onSegment(s)
	}
	return engine.TranscriptionResult{
		Text:     "welcome to the talk and then we wrap up",
		Segments: segments,
		Language: "en",
	}, nil
}

func (stubTranscriber) Close() error { return nil }

type stubSummarizer struct {
	name string
	arch domain.SummarizerArch
}

func (s stubSummarizer) Summarize(ctx context.Context, chunks []string, params engine.GenerationParams) ([]string, error) {
	out := make([]string, len(chunks))
	for i := range chunks {
		out[i] = "The speaker explains how the talk is organized and what comes next."
	}
	return out, nil
}

func (s stubSummarizer) Name() string                { return s.name }
func (s stubSummarizer) Arch() domain.SummarizerArch { return s.arch }
func (s stubSummarizer) Close() error                { return nil }

type stubLoader struct{}

func (stubLoader) LoadTranscriber(ctx context.Context, spec engine.TranscriberSpec) (engine.Transcriber, error) {
	return stubTranscriber{}, nil
}

func (stubLoader) Check(ctx context.Context, family domain.ModelFamily) error { return nil }

func (stubLoader) LoadSummarizer(ctx context.Context, spec engine.SummarizerSpec) (engine.Summarizer, error) {
	return stubSummarizer{name: spec.Name, arch: spec.Model.Arch}, nil
}

type stubDevice struct{}

func (stubDevice) Detect(ctx context.Context) domain.Device { return domain.DeviceCPU }

type stubAudio struct{ dir string }

func (a stubAudio) Download(ctx context.Context, url, jobID string) (string, error) {
	path := filepath.Join(a.dir, jobID+".mp3")
	return path, os.WriteFile(path, []byte("audio"), 0o644)
}

func (a stubAudio) FetchMetadata(ctx context.Context, url string) (domain.SourceMetadata, error) {
	return domain.SourceMetadata{Title: "Talk", Channel: "Channel"}, nil
}

type stubProber struct{}

func (stubProber) Duration(ctx context.Context, path string) (float64, error) { return 40, nil }

type testServer struct {
	router http.Handler
	svc    *Services
}

func newTestServer(t *testing.T, poolCfg worker.Config, start bool) *testServer {
	t.Helper()
	root := t.TempDir()

	artifacts, err := repository.NewArtifactRepository(filepath.Join(root, "transcripts"), filepath.Join(root, "notes"))
	require.NoError(t, err)
	store := jobs.NewStore(jobs.WithArtifactIndex(artifacts))

	pool := worker.NewPool(poolCfg)
	if start {
		pool.Start()
	}
	t.Cleanup(pool.Stop)

	manager := models.NewManager(stubLoader{}, stubLoader{}, stubDevice{})
	sources := source.NewRegistry(false, youtube.NewAdapter())
	notes := service.NewNotesService(manager, artifacts, &service.NotesConfig{LazyModel: domain.LightweightSummarizer})
	pipeline := service.NewPipelineService(store, pool, manager, sources, stubAudio{dir: root}, stubProber{}, artifacts, notes, nil)
	export := service.NewExportService(&service.NotionConfig{BaseURL: "http://127.0.0.1:1"}, artifacts, nil)

	svc := &Services{
		Pipeline:  pipeline,
		Notes:     notes,
		Export:    export,
		Jobs:      store,
		Artifacts: artifacts,
		Models:    manager,
		Pool:      pool,
		Settings:  config.NewSettingsStore(filepath.Join(root, "config.json")),
		Sources:   sources,
	}
	router := SetupRouter(svc, "test", middleware.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}})
	return &testServer{router: router, svc: svc}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	}
	return w, decoded
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, worker.Config{Workers: 1, QueueSize: 1}, false)
	w, body := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 2, body["capacity"])
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestTranscribeFlow(t *testing.T) {
	s := newTestServer(t, worker.Config{Workers: 1, QueueSize: 2}, true)

	w, body := s.do(t, http.MethodPost, "/api/transcribe", payload{
		"youtube_url": "https://youtu.be/abc123",
		"model_type":  "faster-whisper",
		"model_size":  "small",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id, _ := body["job_id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "queued", body["status"])

	require.Eventually(t, func() bool {
		_, job := s.do(t, http.MethodGet, "/api/job/"+id, nil)
		return job["status"] == "complete" || job["status"] == "error"
	}, 5*time.Second, 10*time.Millisecond)

	_, job := s.do(t, http.MethodGet, "/api/job/"+id, nil)
	require.Equal(t, "complete", job["status"], job["error"])
	assert.Equal(t, "Talk", job["title"])

	w, _ = s.do(t, http.MethodGet, "/api/transcript/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var transcript domain.Transcript
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &transcript))
	assert.NotEmpty(t, transcript.Text)
	require.Len(t, transcript.Segments, 2)
	assert.LessOrEqual(t, transcript.Segments[0].Start, transcript.Segments[1].Start)

	w, _ = s.do(t, http.MethodGet, "/api/notes/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var notes domain.Notes
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &notes))
	assert.NotEmpty(t, notes.Summary)
	assert.NotEmpty(t, notes.KeyPoints)

	_, logs := s.do(t, http.MethodGet, "/api/logs/"+id, nil)
	assert.NotEmpty(t, logs["logs"])

	_, list := s.do(t, http.MethodGet, "/api/jobs", nil)
	jobsList, _ := list["jobs"].([]interface{})
	require.Len(t, jobsList, 1)

	w, regenerated := s.do(t, http.MethodPost, "/api/notes/"+id+"/regenerate", payload{"model_name": "t5-small"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, regenerated["summary"])
	assert.Equal(t, transcript.Text, regenerated["original_transcript"])
}

func TestTranscribeRejectsInvalidInput(t *testing.T) {
	s := newTestServer(t, worker.Config{Workers: 1, QueueSize: 1}, false)

	for _, body := range []payload{
		{},
		{"youtube_url": "not-a-url"},
		{"youtube_url": "https://example.com/video"},
		{"youtube_url": "https://youtu.be/abc123", "model_type": "vosk"},
		{"youtube_url": "https://youtu.be/abc123", "model_size": "gigantic"},
	} {
		w, resp := s.do(t, http.MethodPost, "/api/transcribe", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "%v", body)
		assert.NotEmpty(t, resp["error"])
	}

	_, list := s.do(t, http.MethodGet, "/api/jobs", nil)
	assert.Empty(t, list["jobs"])
}

func TestTranscribeRejectsWhenBusy(t *testing.T) {
	s := newTestServer(t, worker.Config{Workers: 1, QueueSize: -1}, false)

	w, _ := s.do(t, http.MethodPost, "/api/transcribe", payload{"youtube_url": "https://youtu.be/abc123"})
	require.Equal(t, http.StatusOK, w.Code)

	w, body := s.do(t, http.MethodPost, "/api/transcribe", payload{"youtube_url": "https://youtu.be/def456"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, body["error"], worker.ErrPoolFull.Error())
}

func TestUnknownJob(t *testing.T) {
	s := newTestServer(t, worker.Config{Workers: 1, QueueSize: 1}, false)

	w, body := s.do(t, http.MethodGet, "/api/job/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Job not found", body["error"])

	w, _ = s.do(t, http.MethodGet, "/api/transcript/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/notes/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/notes/nope/regenerate", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = s.do(t, http.MethodGet, "/api/logs/nope", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{}, body["logs"])
}

func TestRegenerateRejectsUnknownModel(t *testing.T) {
	s := newTestServer(t, worker.Config{Workers: 1, QueueSize: 1}, false)
	_, err := s.svc.Artifacts.SaveTranscript(context.Background(), "job", &domain.Transcript{Text: "hello"})
	require.NoError(t, err)

	w, _ := s.do(t, http.MethodPost, "/api/notes/job/regenerate", payload{"model_name": "gpt-9"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConfigAndTheme(t *testing.T) {
	s := newTestServer(t, worker.Config{Workers: 1, QueueSize: 1}, false)

	w, cfg := s.do(t, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "whisper", cfg["model_type"])
	assert.Equal(t, "light", cfg["theme"])
	assert.Equal(t, "no model loaded", cfg["model_status"])
	assert.Equal(t, "no summarizer loaded", cfg["summarizer_status"])
	assert.Contains(t, cfg["available_summarizers"], "bart-large-cnn")
	assert.Equal(t, false, cfg["notion_configured"])

	w, body := s.do(t, http.MethodPost, "/api/save_theme", payload{"theme": "dark"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Theme set to dark", body["message"])

	w, _ = s.do(t, http.MethodPost, "/api/save_theme", payload{"theme": "purple"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, cfg = s.do(t, http.MethodGet, "/api/config", nil)
	assert.Equal(t, "dark", cfg["theme"])
}

func TestLoadModel(t *testing.T) {
	s := newTestServer(t, worker.Config{Workers: 1, QueueSize: 1}, false)

	w, body := s.do(t, http.MethodPost, "/api/load_model", payload{
		"model_type":       "whisper",
		"model_size":       "small",
		"summarizer_model": "distilbart-xsum",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Whisper model small loaded with distilbart-xsum summarizer", body["message"])
	assert.Equal(t, true, body["summarizer_loaded"])

	_, cfg := s.do(t, http.MethodGet, "/api/config", nil)
	assert.Equal(t, "loaded", cfg["model_status"])
	assert.Equal(t, "loaded", cfg["summarizer_status"])
	assert.Equal(t, "small", cfg["model_size"])
	assert.Equal(t, "distilbart-xsum", cfg["summarizer_model"])

	w, _ = s.do(t, http.MethodPost, "/api/load_model", payload{"model_type": "vosk"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/load_model", payload{"summarizer_model": "gpt-9"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportWithoutCredentials(t *testing.T) {
	s := newTestServer(t, worker.Config{Workers: 1, QueueSize: 1}, false)

	w, body := s.do(t, http.MethodPost, "/api/export/notion", payload{"content": payload{"title": "x"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "Missing required parameters")

	w, body = s.do(t, http.MethodGet, "/api/export/notion/job", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{}, body["exports"])
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, worker.Config{Workers: 1, QueueSize: 1}, false)

	req := httptest.NewRequest(http.MethodOptions, "/api/transcribe", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set(middleware.RequestIDHeader, "req-1")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "req-1", w.Header().Get(middleware.RequestIDHeader))
}

type payload = map[string]interface{}
