package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/timmy/vidnotes/internal/domain"
	"github.com/timmy/vidnotes/internal/logger"
	"github.com/timmy/vidnotes/internal/repository"
)

// Notion request limits.
const (
	notionMaxTextLength = 2000
	notionMaxBlocks     = 100
	defaultExportTitle  = "YouTube Video Transcript"
)

// ErrNotionAPI wraps every failure returned by the Notion API or its transport.
var ErrNotionAPI = errors.New("notion api error")

// NotionConfig holds configuration for the Notion export service
type NotionConfig struct {
	BaseURL      string
	Version      string
	Token        string
	ParentPageID string
	Timeout      time.Duration
}

// ExportSegment is one timestamped transcript line of an export.
type ExportSegment struct {
	Time string `json:"time"`
	Text string `json:"text"`
}

// ExportContent is the document sent to Notion.
type ExportContent struct {
	Title      string          `json:"title"`
	Channel    string          `json:"channel"`
	URL        string          `json:"url"`
	Summary    string          `json:"summary"`
	KeyPoints  []string        `json:"keyPoints"`
	Transcript []ExportSegment `json:"transcript"`
}

// ExportRequest selects what to export and where. Content wins over JobID;
// Token and ParentPageID fall back to configuration.
type ExportRequest struct {
	JobID        string
	Content      *ExportContent
	Token        string
	ParentPageID string
}

// ExportResult references the created page.
type ExportResult struct {
	PageID     string `json:"pageId"`
	PageURL    string `json:"pageUrl"`
	BlockCount int    `json:"blockCount"`
}

// ExportService publishes notes to Notion and records the export history.
type ExportService struct {
	client    *resty.Client
	cfg       NotionConfig
	artifacts *repository.ArtifactRepository
	history   *repository.ExportRepository
}

// NewExportService creates a Notion exporter. history may be nil.
// Parameters:
//   - cfg: Notion endpoint, API version and default credentials.
//   - artifacts: repository used to build content from a job id.
//   - history: optional export history repository.
// Returns:
//   - *ExportService: configured exporter.
func NewExportService(cfg *NotionConfig, artifacts *repository.ArtifactRepository, history *repository.ExportRepository) *ExportService {
	c := *cfg
	if c.BaseURL == "" {
		c.BaseURL = "https://api.notion.com/v1"
	}
	if c.Version == "" {
		c.Version = "2022-06-28"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(c.BaseURL, "/")).
		SetTimeout(c.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Notion-Version", c.Version)

	return &ExportService{client: client, cfg: c, artifacts: artifacts, history: history}
}

// Configured reports whether default credentials are present.
func (s *ExportService) Configured() bool {
	return s.cfg.Token != "" && s.cfg.ParentPageID != ""
}

// Export creates a page under the parent page and appends the content
// blocks in batches of at most 100.
func (s *ExportService) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	token := firstNonEmpty(req.Token, s.cfg.Token)
	parent := firstNonEmpty(req.ParentPageID, s.cfg.ParentPageID)
	if token == "" || parent == "" {
		return nil, ErrExportNotConfigured
	}

	content := req.Content
	if content == nil {
		if req.JobID == "" {
			return nil, ErrExportContent
		}
		var err error
		if content, err = s.contentForJob(ctx, req.JobID); err != nil {
			return nil, err
		}
	}
	if req.JobID != "" {
		ctx = logger.SetJobID(ctx, req.JobID)
	}
	ctx = logger.SetComponent(ctx, "notion")

	title := firstNonEmpty(content.Title, defaultExportTitle)
	pageID, err := s.createPage(ctx, token, parent, title)
	if err != nil {
		return nil, err
	}

	blocks := buildBlocks(content)
	for start := 0; start < len(blocks); start += notionMaxBlocks {
		end := start + notionMaxBlocks
		if end > len(blocks) {
			end = len(blocks)
		}
		if err := s.appendBlocks(ctx, token, pageID, blocks[start:end]); err != nil {
			return nil, err
		}
	}

	result := &ExportResult{
		PageID:     pageID,
		PageURL:    "https://notion.so/" + strings.ReplaceAll(pageID, "-", ""),
		BlockCount: len(blocks),
	}
	logger.With(logger.Fields{"page_id": pageID}).WithCount(len(blocks)).Info(ctx, "Exported to Notion")

	if s.history != nil && req.JobID != "" {
		record := &domain.ExportRecord{
			ID:          uuid.NewString(),
			JobID:       req.JobID,
			Destination: "notion",
			PageID:      pageID,
			PageURL:     result.PageURL,
			Title:       title,
			BlockCount:  len(blocks),
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.history.Create(ctx, record); err != nil {
			logger.CtxWarn(ctx, "Failed to record export: %v", err)
		}
	}
	return result, nil
}

// History lists recorded exports of jobID, newest first. It is empty when
// no database is configured.
func (s *ExportService) History(ctx context.Context, jobID string) ([]domain.ExportRecord, error) {
	if s.history == nil {
		return []domain.ExportRecord{}, nil
	}
	return s.history.ListByJob(ctx, jobID)
}

// contentForJob builds export content from persisted artifacts. Notes are optional.
func (s *ExportService) contentForJob(ctx context.Context, jobID string) (*ExportContent, error) {
	transcript, err := s.artifacts.LoadTranscript(ctx, jobID)
	if err != nil {
		return nil, err
	}
	content := &ExportContent{
		Title:   transcript.Title,
		Channel: transcript.Channel,
		URL:     transcript.URL,
	}
	for _, seg := range transcript.Segments {
		content.Transcript = append(content.Transcript, ExportSegment{Time: FormatClock(seg.Start), Text: strings.TrimSpace(seg.Text)})
	}

	notes, err := s.artifacts.LoadNotes(ctx, jobID)
	switch {
	case err == nil:
		content.Summary = notes.Summary
		content.KeyPoints = notes.KeyPoints
	case errors.Is(err, repository.ErrArtifactNotFound):
	default:
		return nil, err
	}
	return content, nil
}

type notionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type notionPage struct {
	ID string `json:"id"`
}

func (s *ExportService) createPage(ctx context.Context, token, parent, title string) (string, error) {
	body := map[string]interface{}{
		"parent": map[string]string{"page_id": parent},
		"properties": map[string]interface{}{
			"title": map[string]interface{}{
				"title": []richText{plainText(title)},
			},
		},
	}

	var page notionPage
	var apiErr notionError
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(body).
		SetResult(&page).
		SetError(&apiErr).
		Post("/pages")
	if err != nil {
		return "", fmt.Errorf("%w: create page: %v", ErrNotionAPI, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: create page: HTTP %d: %s", ErrNotionAPI, resp.StatusCode(), describeNotionError(resp, apiErr))
	}
	if page.ID == "" {
		return "", fmt.Errorf("%w: create page: response has no id", ErrNotionAPI)
	}
	return page.ID, nil
}

func (s *ExportService) appendBlocks(ctx context.Context, token, pageID string, blocks []block) error {
	var apiErr notionError
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(map[string]interface{}{"children": blocks}).
		SetError(&apiErr).
		Patch("/blocks/" + pageID + "/children")
	if err != nil {
		return fmt.Errorf("%w: append blocks: %v", ErrNotionAPI, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: append blocks: HTTP %d: %s", ErrNotionAPI, resp.StatusCode(), describeNotionError(resp, apiErr))
	}
	return nil
}

func describeNotionError(resp *resty.Response, apiErr notionError) string {
	if apiErr.Message != "" {
		return apiErr.Message
	}
	return strings.TrimSpace(string(resp.Body()))
}

type richText struct {
	Type        string       `json:"type"`
	Text        textContent  `json:"text"`
	Annotations *annotations `json:"annotations,omitempty"`
}

type textContent struct {
	Content string `json:"content"`
	Link    *link  `json:"link,omitempty"`
}

type link struct {
	URL string `json:"url"`
}

type annotations struct {
	Bold      bool `json:"bold,omitempty"`
	Underline bool `json:"underline,omitempty"`
}

type richTextBlock struct {
	RichText []richText `json:"rich_text"`
}

type block struct {
	Object           string         `json:"object"`
	Type             string         `json:"type"`
	Paragraph        *richTextBlock `json:"paragraph,omitempty"`
	Heading2         *richTextBlock `json:"heading_2,omitempty"`
	BulletedListItem *richTextBlock `json:"bulleted_list_item,omitempty"`
	Divider          *struct{}      `json:"divider,omitempty"`
}

// buildBlocks lays out channel, URL, summary, key points and transcript.
func buildBlocks(c *ExportContent) []block {
	channel := firstNonEmpty(c.Channel, domain.UnknownChannel)
	blocks := []block{paragraph(append([]richText{plainText("Channel: ")}, styledText(channel, &annotations{Bold: true}, "")...)...)}

	if c.URL != "" {
		blocks = append(blocks, paragraph(append([]richText{plainText("URL: ")}, styledText(c.URL, &annotations{Underline: true}, c.URL)...)...))
	}
	blocks = append(blocks, divider())

	if c.Summary != "" {
		blocks = append(blocks, heading("Summary"), paragraph(styledText(c.Summary, nil, "")...), divider())
	}

	if len(c.KeyPoints) > 0 {
		blocks = append(blocks, heading("Key Points"))
		for _, point := range c.KeyPoints {
			blocks = append(blocks, block{
				Object:           "block",
				Type:             "bulleted_list_item",
				BulletedListItem: &richTextBlock{RichText: styledText(point, nil, "")},
			})
		}
		blocks = append(blocks, divider())
	}

	if len(c.Transcript) > 0 {
		blocks = append(blocks, heading("Transcript"))
		for _, seg := range c.Transcript {
			runs := []richText{{Type: "text", Text: textContent{Content: "[" + seg.Time + "] "}, Annotations: &annotations{Bold: true}}}
			blocks = append(blocks, paragraph(append(runs, styledText(seg.Text, nil, "")...)...))
		}
	}
	return blocks
}

func paragraph(runs ...richText) block {
	return block{Object: "block", Type: "paragraph", Paragraph: &richTextBlock{RichText: runs}}
}

func heading(text string) block {
	return block{Object: "block", Type: "heading_2", Heading2: &richTextBlock{RichText: []richText{plainText(text)}}}
}

func divider() block {
	return block{Object: "block", Type: "divider", Divider: &struct{}{}}
}

func plainText(s string) richText {
	return richText{Type: "text", Text: textContent{Content: s}}
}

// styledText splits s into runs no longer than the Notion text limit.
func styledText(s string, ann *annotations, href string) []richText {
	parts := splitText(s, notionMaxTextLength)
	runs := make([]richText, 0, len(parts))
	for _, part := range parts {
		run := richText{Type: "text", Text: textContent{Content: part}, Annotations: ann}
		if href != "" {
			run.Text.Link = &link{URL: href}
		}
		runs = append(runs, run)
	}
	return runs
}

// splitText cuts s into pieces of at most limit runes. An empty string
// yields one empty piece.
func splitText(s string, limit int) []string {
	if utf8.RuneCountInString(s) <= limit {
		return []string{s}
	}
	runes := []rune(s)
	var parts []string
	for len(runes) > 0 {
		n := limit
		if n > len(runes) {
			n = len(runes)
		}
		parts = append(parts, string(runes[:n]))
		runes = runes[n:]
	}
	return parts
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
