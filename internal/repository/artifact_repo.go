package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/timmy/vidnotes/internal/domain"
	"github.com/timmy/vidnotes/internal/logger"
	"github.com/timmy/vidnotes/internal/storage"
)

// ErrArtifactNotFound is returned when a transcript or notes file does not exist.
var ErrArtifactNotFound = errors.New("artifact not found")

// ErrInvalidJobID is returned for ids that cannot name an artifact file.
var ErrInvalidJobID = errors.New("invalid job id")

const (
	transcriptKind = "transcripts"
	notesKind      = "notes"
)

// ArtifactRepository persists transcript and notes JSON under two
// directories, one file per job, and optionally mirrors them to object storage.
type ArtifactRepository struct {
	transcriptsDir string
	notesDir       string
	mirror         storage.ObjectStorage
	prefix         string
}

// ArtifactOption customizes an ArtifactRepository.
type ArtifactOption func(*ArtifactRepository)

// WithMirror uploads every written artifact to store under prefix and reads
// missing local artifacts back from it.
func WithMirror(store storage.ObjectStorage, prefix string) ArtifactOption {
	return func(r *ArtifactRepository) {
		r.mirror = store
		r.prefix = prefix
	}
}

// NewArtifactRepository creates the repository, creating both directories.
// Parameters:
//   - transcriptsDir: directory holding <job_id>.json transcripts.
//   - notesDir: directory holding <job_id>.json notes.
// Returns:
//   - *ArtifactRepository: repository bound to the directories.
//   - error: non-nil if a directory cannot be created.
func NewArtifactRepository(transcriptsDir, notesDir string, opts ...ArtifactOption) (*ArtifactRepository, error) {
	for _, dir := range []string{transcriptsDir, notesDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create artifact directory %s: %w", dir, err)
		}
	}
	r := &ArtifactRepository{transcriptsDir: transcriptsDir, notesDir: notesDir}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// TranscriptPath returns the transcript file path for jobID.
func (r *ArtifactRepository) TranscriptPath(jobID string) string {
	return filepath.Join(r.transcriptsDir, jobID+".json")
}

// NotesPath returns the notes file path for jobID.
func (r *ArtifactRepository) NotesPath(jobID string) string {
	return filepath.Join(r.notesDir, jobID+".json")
}

// SaveTranscript writes the transcript artifact and returns its path.
func (r *ArtifactRepository) SaveTranscript(ctx context.Context, jobID string, transcript *domain.Transcript) (string, error) {
	if err := validateJobID(jobID); err != nil {
		return "", err
	}
	path := r.TranscriptPath(jobID)
	if err := r.save(ctx, transcriptKind, jobID, path, transcript); err != nil {
		return "", err
	}
	return path, nil
}

// SaveNotes writes the notes artifact, replacing any previous version.
func (r *ArtifactRepository) SaveNotes(ctx context.Context, jobID string, notes *domain.Notes) (string, error) {
	if err := validateJobID(jobID); err != nil {
		return "", err
	}
	path := r.NotesPath(jobID)
	if err := r.save(ctx, notesKind, jobID, path, notes); err != nil {
		return "", err
	}
	return path, nil
}

// LoadTranscript reads the transcript for jobID.
func (r *ArtifactRepository) LoadTranscript(ctx context.Context, jobID string) (*domain.Transcript, error) {
	if err := validateJobID(jobID); err != nil {
		return nil, err
	}
	var transcript domain.Transcript
	if err := r.load(ctx, transcriptKind, jobID, r.TranscriptPath(jobID), &transcript); err != nil {
		return nil, err
	}
	return &transcript, nil
}

// LoadNotes reads the notes for jobID.
func (r *ArtifactRepository) LoadNotes(ctx context.Context, jobID string) (*domain.Notes, error) {
	if err := validateJobID(jobID); err != nil {
		return nil, err
	}
	var notes domain.Notes
	if err := r.load(ctx, notesKind, jobID, r.NotesPath(jobID), &notes); err != nil {
		return nil, err
	}
	return &notes, nil
}

// ReconstructJob builds a job from the artifacts on disk. Title and channel
// come from the transcript, created_at from its mtime. The job is complete
// only when the notes file exists too; a transcript alone yields an error job
// that regeneration can repair.
func (r *ArtifactRepository) ReconstructJob(id string) (domain.Job, bool) {
	if validateJobID(id) != nil {
		return domain.Job{}, false
	}
	path := r.TranscriptPath(id)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return domain.Job{}, false
	}

	job := domain.Job{
		ID:             id,
		Status:         domain.JobStatusComplete,
		CreatedAt:      info.ModTime().UTC(),
		TranscriptPath: path,
		Title:          domain.UnknownTitle,
		Channel:        domain.UnknownChannel,
	}

	var transcript domain.Transcript
	if err := readJSON(path, &transcript); err != nil {
		logger.With(logger.Fields{
			logger.FieldJobID: id,
			"path":            path,
		}).Warn(context.Background(), "Unreadable transcript, using placeholders: %v", err)
	} else {
		if transcript.Title != "" {
			job.Title = transcript.Title
		}
		if transcript.Channel != "" {
			job.Channel = transcript.Channel
		}
		job.URL = transcript.URL
		job.Language = transcript.Language
	}

	if notesPath := r.NotesPath(id); fileExists(notesPath) {
		job.NotesPath = notesPath
	} else {
		job.Status = domain.JobStatusError
		job.Error = domain.MissingNotesError
	}
	return job, true
}

// CompletedJobs reconstructs a job for every transcript file on disk,
// including transcript-only jobs reported with status error.
// Files that cannot be parsed are listed with placeholder metadata.
func (r *ArtifactRepository) CompletedJobs() ([]domain.Job, error) {
	entries, err := os.ReadDir(r.transcriptsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read transcripts directory: %w", err)
	}

	jobs := make([]domain.Job, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		if job, ok := r.ReconstructJob(strings.TrimSuffix(name, ".json")); ok {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (r *ArtifactRepository) save(ctx context.Context, kind, jobID, path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("write %s: %w", kind, err)
	}
	r.upload(ctx, kind, jobID, data)
	return nil
}

// upload mirrors data to object storage. Failures are logged only.
func (r *ArtifactRepository) upload(ctx context.Context, kind, jobID string, data []byte) {
	if r.mirror == nil {
		return
	}
	key := storage.Key(r.prefix, kind, jobID+".json")
	if err := r.mirror.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		logger.With(logger.Fields{
			logger.FieldJobID: jobID,
			"key":             key,
		}).Warn(ctx, "Artifact mirror upload failed: %v", err)
		return
	}
	logger.With(logger.Fields{logger.FieldJobID: jobID, "key": key}).
		WithSize(int64(len(data))).
		Debug(ctx, "Artifact mirrored")
}

func (r *ArtifactRepository) load(ctx context.Context, kind, jobID, path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		data, err = r.fetch(ctx, kind, jobID, path)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s %s: %w", kind, jobID, err)
	}
	return nil
}

// fetch restores a missing local artifact from the mirror.
func (r *ArtifactRepository) fetch(ctx context.Context, kind, jobID, path string) ([]byte, error) {
	if r.mirror == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrArtifactNotFound, kind, jobID)
	}
	key := storage.Key(r.prefix, kind, jobID+".json")
	body, err := r.mirror.Download(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s %s", ErrArtifactNotFound, kind, jobID)
		}
		return nil, fmt.Errorf("fetch %s %s: %w", kind, jobID, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", kind, jobID, err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		logger.With(logger.Fields{logger.FieldJobID: jobID}).
			Warn(ctx, "Failed to cache mirrored %s locally: %v", kind, err)
	}
	return data, nil
}

func validateJobID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidJobID, id)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// writeFileAtomic writes through a temp file in the same directory.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
