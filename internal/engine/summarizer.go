package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/vidnotes/internal/domain"
)

// HTTPSummarizerConfig configures the inference server client.
type HTTPSummarizerConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPLoader loads summarization models on a Hugging Face style inference
// server. Loading asks the server to make the model resident on a device.
type HTTPLoader struct {
	client  *resty.Client
	baseURL string
}

// NewHTTPLoader creates the inference server client.
func NewHTTPLoader(cfg HTTPSummarizerConfig) *HTTPLoader {
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	client.SetTimeout(timeout)

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}
	return &HTTPLoader{client: client, baseURL: baseURL}
}

type inferenceError struct {
	Error string `json:"error"`
}

// LoadSummarizer makes spec.Model resident and returns a client bound to it.
func (l *HTTPLoader) LoadSummarizer(ctx context.Context, spec SummarizerSpec) (Summarizer, error) {
	var apiErr inferenceError
	resp, err := l.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"device": string(spec.Device),
			"fp16":   strconv.FormatBool(spec.FP16),
		}).
		SetError(&apiErr).
		Post(l.modelURL(spec.Model.Repo) + "/load")
	if err != nil {
		return nil, fmt.Errorf("load summarizer %s: %w", spec.Name, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("load summarizer %s: %s", spec.Name, describeError(resp, apiErr))
	}

	return &HTTPSummarizer{
		client:   l.client,
		endpoint: l.modelURL(spec.Model.Repo),
		name:     spec.Name,
		arch:     spec.Model.Arch,
		device:   spec.Device,
	}, nil
}

func (l *HTTPLoader) modelURL(repo string) string {
	return l.baseURL + "/models/" + repo
}

// HTTPSummarizer runs summarization batches against one resident model.
type HTTPSummarizer struct {
	client   *resty.Client
	endpoint string
	name     string
	arch     domain.SummarizerArch
	device   domain.Device
}

type summarizeRequest struct {
	Inputs     []string         `json:"inputs"`
	Parameters GenerationParams `json:"parameters"`
}

type summaryText struct {
	SummaryText string `json:"summary_text"`
}

// Summarize sends one batch and returns one summary per input, in order.
func (s *HTTPSummarizer) Summarize(ctx context.Context, chunks []string, params GenerationParams) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	var result []summaryText
	var apiErr inferenceError
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(summarizeRequest{Inputs: chunks, Parameters: params}).
		SetResult(&result).
		SetError(&apiErr).
		Post(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to call summarizer: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("summarizer returned error: %s", describeError(resp, apiErr))
	}
	if len(result) != len(chunks) {
		return nil, fmt.Errorf("summarizer returned %d summaries for %d inputs", len(result), len(chunks))
	}

	out := make([]string, len(result))
	for i, r := range result {
		out[i] = strings.TrimSpace(r.SummaryText)
	}
	return out, nil
}

// Name returns the catalog name.
func (s *HTTPSummarizer) Name() string { return s.name }

// Arch returns the model architecture.
func (s *HTTPSummarizer) Arch() domain.SummarizerArch { return s.arch }

// Device returns the device the model was loaded on.
func (s *HTTPSummarizer) Device() domain.Device { return s.device }

// Close asks the server to evict the model. Failures are ignored; the
// server evicts idle models on its own.
func (s *HTTPSummarizer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := s.client.R().SetContext(ctx).Post(s.endpoint + "/unload")
	return err
}

func describeError(resp *resty.Response, apiErr inferenceError) string {
	if apiErr.Error != "" {
		return fmt.Sprintf("HTTP %d: %s", resp.StatusCode(), apiErr.Error)
	}
	return fmt.Sprintf("HTTP %d: %s", resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
}
