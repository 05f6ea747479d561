package service

import (
	"errors"
	"fmt"
)

// Stage names one pipeline phase.
type Stage string

const (
	StageDownload   Stage = "download"
	StageTranscribe Stage = "transcribe"
	StageMetadata   Stage = "metadata"
	StageSummarize  Stage = "summarize"
	StagePersist    Stage = "persist"
)

// StageError records which stage a job failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// ErrExportNotConfigured is returned when no Notion token or parent page is available.
var ErrExportNotConfigured = errors.New("notion export is not configured")

// ErrExportContent is returned when an export request carries nothing to export.
var ErrExportContent = errors.New("no content to export")
