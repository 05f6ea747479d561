package engine

import (
	"context"

	"github.com/timmy/vidnotes/internal/domain"
)

// TranscribeRequest is one speech-to-text invocation.
type TranscribeRequest struct {
	AudioPath string
	// Language is a normalized hint; empty means auto-detect.
	Language string
}

// TranscriptionResult is the full output of a transcription run.
type TranscriptionResult struct {
	Text     string
	Segments []domain.Segment
	// Language is the requested language or the one the engine detected.
	Language string
}

// SegmentFunc observes segments as they are produced.
type SegmentFunc func(seg domain.Segment)

// Transcriber turns an audio file into text and timed segments.
type Transcriber interface {
	Transcribe(ctx context.Context, req TranscribeRequest, onSegment SegmentFunc) (TranscriptionResult, error)
	// Close releases resources held by the loaded model.
	Close() error
}

// TranscriberSpec identifies a transcription model to load.
type TranscriberSpec struct {
	Family domain.ModelFamily
	Size   string
	Device domain.Device
}

// GenerationParams are the decoding parameters sent with a summarization batch.
type GenerationParams struct {
	MaxLength     int     `json:"max_length"`
	MinLength     int     `json:"min_length"`
	DoSample      bool    `json:"do_sample"`
	NumBeams      int     `json:"num_beams,omitempty"`
	Temperature   float64 `json:"temperature,omitempty"`
	Truncation    bool    `json:"truncation"`
	EarlyStopping bool    `json:"early_stopping,omitempty"`
}

// DefaultParams returns the per-architecture decoding defaults.
// T5 models decode greedily; BART models use sampled beam search.
func DefaultParams(arch domain.SummarizerArch) GenerationParams {
	if arch == domain.SummarizerArchT5 {
		return GenerationParams{
			MaxLength:  150,
			MinLength:  30,
			DoSample:   false,
			Truncation: true,
		}
	}
	return GenerationParams{
		MaxLength:     150,
		MinLength:     30,
		DoSample:      true,
		NumBeams:      4,
		Temperature:   1.0,
		Truncation:    true,
		EarlyStopping: true,
	}
}

// Summarizer turns a batch of text chunks into one summary per chunk.
type Summarizer interface {
	Summarize(ctx context.Context, chunks []string, params GenerationParams) ([]string, error)
	// Name is the catalog name of the loaded model.
	Name() string
	Arch() domain.SummarizerArch
	Close() error
}

// SummarizerSpec identifies a summarization model to load.
type SummarizerSpec struct {
	Name   string
	Model  domain.SummarizerModel
	Device domain.Device
	FP16   bool
}
