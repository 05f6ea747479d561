package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/timmy/vidnotes/internal/domain"
)

// WhisperCLI runs the reference openai-whisper command line.
// It writes a JSON result which is parsed after the process exits.
type WhisperCLI struct {
	binary   string
	modelDir string
	size     string
	device   domain.Device
	runner   CommandRunner
	tempDir  func(dir, pattern string) (string, error)
	readFile func(name string) ([]byte, error)
}

type whisperOutput struct {
	Text     string           `json:"text"`
	Segments []domain.Segment `json:"segments"`
	Language string           `json:"language"`
}

// Transcribe runs whisper with beam search (beam 5, best of 5).
func (w *WhisperCLI) Transcribe(ctx context.Context, req TranscribeRequest, onSegment SegmentFunc) (TranscriptionResult, error) {
	outDir, err := w.tempDir("", "vidnotes-whisper-*")
	if err != nil {
		return TranscriptionResult{}, fmt.Errorf("create whisper output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	args := buildWhisperArgs(req, w.size, w.modelDir, w.device, outDir)
	if _, err := w.runner.Run(ctx, w.binary, args...); err != nil {
		return TranscriptionResult{}, fmt.Errorf("whisper: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(req.AudioPath), filepath.Ext(req.AudioPath))
	data, err := w.readFile(filepath.Join(outDir, base+".json"))
	if err != nil {
		return TranscriptionResult{}, fmt.Errorf("read whisper output: %w", err)
	}

	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return TranscriptionResult{}, fmt.Errorf("parse whisper output: %w", err)
	}

	result := TranscriptionResult{
		Text:     strings.TrimSpace(out.Text),
		Segments: make([]domain.Segment, 0, len(out.Segments)),
		Language: req.Language,
	}
	if result.Language == "" {
		result.Language = out.Language
	}
	for _, seg := range out.Segments {
		seg.Text = strings.TrimSpace(seg.Text)
		result.Segments = append(result.Segments, seg)
		if onSegment != nil {
			onSegment(seg)
		}
	}
	return result, nil
}

// Close is a no-op; the CLI holds no resident state between runs.
func (w *WhisperCLI) Close() error {
	return nil
}

func buildWhisperArgs(req TranscribeRequest, size, modelDir string, device domain.Device, outDir string) []string {
	args := []string{
		req.AudioPath,
		"--model", size,
		"--device", string(device),
		"--output_format", "json",
		"--output_dir", outDir,
		"--beam_size", "5",
		"--best_of", "5",
		"--verbose", "False",
	}
	if modelDir != "" {
		args = append(args, "--model_dir", modelDir)
	}
	if device == domain.DeviceCPU {
		args = append(args, "--fp16", "False")
	}
	if req.Language != "" {
		args = append(args, "--language", req.Language)
	}
	return args
}

// FasterWhisperCLI runs whisper-ctranslate2 and streams segments from stdout
// as they are decoded.
type FasterWhisperCLI struct {
	binary   string
	modelDir string
	size     string
	device   domain.Device
	runner   CommandRunner
	tempDir  func(dir, pattern string) (string, error)
}

var (
	segmentLine  = regexp.MustCompile(`^\[((?:\d+:)?\d+:\d+(?:\.\d+)?)\s*-->\s*((?:\d+:)?\d+:\d+(?:\.\d+)?)\]\s*(.*)$`)
	languageLine = regexp.MustCompile(`Detected language '([^']+)'`)
)

// Transcribe runs with VAD filtering and beam 5.
func (f *FasterWhisperCLI) Transcribe(ctx context.Context, req TranscribeRequest, onSegment SegmentFunc) (TranscriptionResult, error) {
	result := TranscriptionResult{Language: req.Language}
	var texts []string

	onLine := func(line string) {
		line = strings.TrimSpace(line)
		if m := languageLine.FindStringSubmatch(line); m != nil {
			if result.Language == "" {
				result.Language = m[1]
			}
			return
		}
		seg, ok := parseSegmentLine(line)
		if !ok {
			return
		}
		result.Segments = append(result.Segments, seg)
		texts = append(texts, seg.Text)
		if onSegment != nil {
			onSegment(seg)
		}
	}

	mkdirTemp := f.tempDir
	if mkdirTemp == nil {
		mkdirTemp = os.MkdirTemp
	}
	outDir, err := mkdirTemp("", "vidnotes-faster-whisper-*")
	if err != nil {
		return TranscriptionResult{}, fmt.Errorf("create faster-whisper output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	args := buildFasterWhisperArgs(req, f.size, f.modelDir, f.device, outDir)
	if err := f.runner.Stream(ctx, onLine, f.binary, args...); err != nil {
		return TranscriptionResult{}, fmt.Errorf("faster-whisper: %w", err)
	}

	result.Text = strings.Join(texts, " ")
	return result, nil
}

// Close is a no-op; see WhisperCLI.Close.
func (f *FasterWhisperCLI) Close() error {
	return nil
}

func buildFasterWhisperArgs(req TranscribeRequest, size, modelDir string, device domain.Device, outDir string) []string {
	computeType := "int8"
	if device == domain.DeviceCUDA {
		computeType = "float16"
	}
	args := []string{
		req.AudioPath,
		"--model", size,
		"--device", string(device),
		"--compute_type", computeType,
		"--vad_filter", "True",
		"--beam_size", "5",
		"--output_format", "txt",
		"--output_dir", outDir,
		"--verbose", "True",
	}
	if modelDir != "" {
		args = append(args, "--model_directory", modelDir)
	}
	if req.Language != "" {
		args = append(args, "--language", req.Language)
	}
	return args
}

func parseSegmentLine(line string) (domain.Segment, bool) {
	m := segmentLine.FindStringSubmatch(line)
	if m == nil {
		return domain.Segment{}, false
	}
	start, err := parseClock(m[1])
	if err != nil {
		return domain.Segment{}, false
	}
	end, err := parseClock(m[2])
	if err != nil {
		return domain.Segment{}, false
	}
	return domain.Segment{Start: start, End: end, Text: strings.TrimSpace(m[3])}, true
}

// parseClock converts [hh:]mm:ss[.fff] to seconds.
func parseClock(raw string) (float64, error) {
	parts := strings.Split(raw, ":")
	var total float64
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, fmt.Errorf("parse timestamp %q: %w", raw, err)
		}
		total = total*60 + v
	}
	return total, nil
}

// CLILoader creates transcribers backed by locally installed binaries.
type CLILoader struct {
	WhisperBinary       string
	FasterWhisperBinary string
	ModelDir            string
	Runner              CommandRunner
}

func (l *CLILoader) runner() CommandRunner {
	if l.Runner == nil {
		return ExecRunner{}
	}
	return l.Runner
}

func (l *CLILoader) binary(family domain.ModelFamily) (string, error) {
	switch family {
	case domain.ModelFamilyWhisper:
		if l.WhisperBinary == "" {
			return "whisper", nil
		}
		return l.WhisperBinary, nil
	case domain.ModelFamilyFasterWhisper:
		if l.FasterWhisperBinary == "" {
			return "whisper-ctranslate2", nil
		}
		return l.FasterWhisperBinary, nil
	default:
		return "", fmt.Errorf("unknown model family %q", family)
	}
}

// Check verifies that the engine for family is installed.
func (l *CLILoader) Check(ctx context.Context, family domain.ModelFamily) error {
	bin, err := l.binary(family)
	if err != nil {
		return err
	}
	if _, err := l.runner().LookPath(bin); err != nil {
		return fmt.Errorf("%s engine not available: %w", family, err)
	}
	return nil
}

// LoadTranscriber returns a transcriber for spec once its binary is found.
func (l *CLILoader) LoadTranscriber(ctx context.Context, spec TranscriberSpec) (Transcriber, error) {
	if err := l.Check(ctx, spec.Family); err != nil {
		return nil, err
	}
	bin, _ := l.binary(spec.Family)

	if spec.Family == domain.ModelFamilyFasterWhisper {
		return &FasterWhisperCLI{
			binary:   bin,
			modelDir: l.ModelDir,
			size:     spec.Size,
			device:   spec.Device,
			runner:   l.runner(),
			tempDir:  os.MkdirTemp,
		}, nil
	}
	return &WhisperCLI{
		binary:   bin,
		modelDir: l.ModelDir,
		size:     spec.Size,
		device:   spec.Device,
		runner:   l.runner(),
		tempDir:  os.MkdirTemp,
		readFile: os.ReadFile,
	}, nil
}
