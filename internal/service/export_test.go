package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/vidnotes/internal/config"
	"github.com/timmy/vidnotes/internal/domain"
	"github.com/timmy/vidnotes/internal/repository"
)

type fakeNotion struct {
	mu       sync.Mutex
	batches  []int
	title    string
	parent   string
	auth     []string
	versions []string
	failWith int
}

func (n *fakeNotion) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/pages", func(w http.ResponseWriter, r *http.Request) {
		n.record(r)
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if n.failWith != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(n.failWith)
			fmt.Fprint(w, `{"object":"error","code":"validation_error","message":"parent page not shared"}`)
			return
		}
		var body struct {
			Parent     map[string]string `json:"parent"`
			Properties struct {
				Title struct {
					Title []struct {
						Text struct {
							Content string `json:"content"`
						} `json:"text"`
					} `json:"title"`
				} `json:"title"`
			} `json:"properties"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		n.mu.Lock()
		n.parent = body.Parent["page_id"]
		if len(body.Properties.Title.Title) > 0 {
			n.title = body.Properties.Title.Title[0].Text.Content
		}
		n.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"page","id":"abcd-1234"}`)
	})
	mux.HandleFunc("/blocks/abcd-1234/children", func(w http.ResponseWriter, r *http.Request) {
		n.record(r)
		if r.Method != http.MethodPatch {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			Children []json.RawMessage `json:"children"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		n.mu.Lock()
		n.batches = append(n.batches, len(body.Children))
		n.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","results":[]}`)
	})
	return mux
}

func (n *fakeNotion) record(r *http.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.auth = append(n.auth, r.Header.Get("Authorization"))
	n.versions = append(n.versions, r.Header.Get("Notion-Version"))
}

func newExportFixture(t *testing.T, cfg NotionConfig, history *repository.ExportRepository) (*ExportService, *fakeNotion, *repository.ArtifactRepository) {
	t.Helper()
	notion := &fakeNotion{}
	srv := httptest.NewServer(notion.handler(t))
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL
	artifacts := newArtifacts(t)
	return NewExportService(&cfg, artifacts, history), notion, artifacts
}

func TestExportSendsBlocksInBatches(t *testing.T) {
	svc, notion, _ := newExportFixture(t, NotionConfig{}, nil)

	content := &ExportContent{
		Title:     "Go Concurrency",
		Channel:   "GopherCon",
		URL:       "https://youtu.be/abc123",
		Summary:   "Channels and goroutines.",
		KeyPoints: []string{"Share memory by communicating."},
	}
	for i := 0; i < 150; i++ {
		content.Transcript = append(content.Transcript, ExportSegment{Time: FormatClock(float64(i * 5)), Text: fmt.Sprintf("line %d", i)})
	}

	result, err := svc.Export(context.Background(), ExportRequest{
		Content:      content,
		Token:        "secret_token",
		ParentPageID: "parent-page",
	})
	require.NoError(t, err)

	assert.Equal(t, "abcd-1234", result.PageID)
	assert.Equal(t, "https://notion.so/abcd1234", result.PageURL)
	assert.Equal(t, len(buildBlocks(content)), result.BlockCount)

	notion.mu.Lock()
	defer notion.mu.Unlock()
	assert.Equal(t, "Go Concurrency", notion.title)
	assert.Equal(t, "parent-page", notion.parent)
	total := 0
	for _, n := range notion.batches {
		assert.LessOrEqual(t, n, notionMaxBlocks)
		total += n
	}
	assert.Equal(t, result.BlockCount, total)
	assert.Len(t, notion.batches, 2)
	for i := range notion.auth {
		assert.Equal(t, "Bearer secret_token", notion.auth[i])
		assert.Equal(t, "2022-06-28", notion.versions[i])
	}
}

func TestExportRequiresCredentials(t *testing.T) {
	svc, _, _ := newExportFixture(t, NotionConfig{}, nil)

	_, err := svc.Export(context.Background(), ExportRequest{Content: &ExportContent{Title: "x"}})
	assert.ErrorIs(t, err, ErrExportNotConfigured)
	assert.False(t, svc.Configured())

	_, err = svc.Export(context.Background(), ExportRequest{Token: "t", ParentPageID: "p"})
	assert.ErrorIs(t, err, ErrExportContent)
}

func TestExportUsesConfiguredDefaults(t *testing.T) {
	svc, notion, _ := newExportFixture(t, NotionConfig{Token: "cfg_token", ParentPageID: "cfg-parent"}, nil)
	assert.True(t, svc.Configured())

	_, err := svc.Export(context.Background(), ExportRequest{Content: &ExportContent{}})
	require.NoError(t, err)

	notion.mu.Lock()
	defer notion.mu.Unlock()
	assert.Equal(t, defaultExportTitle, notion.title)
	assert.Equal(t, "cfg-parent", notion.parent)
	assert.Equal(t, "Bearer cfg_token", notion.auth[0])
}

func TestExportReportsNotionErrors(t *testing.T) {
	svc, notion, _ := newExportFixture(t, NotionConfig{Token: "t", ParentPageID: "p"}, nil)
	notion.failWith = http.StatusBadRequest

	_, err := svc.Export(context.Background(), ExportRequest{Content: &ExportContent{Title: "x"}})
	require.ErrorIs(t, err, ErrNotionAPI)
	assert.Contains(t, err.Error(), "HTTP 400")
	assert.Contains(t, err.Error(), "parent page not shared")
}

func TestExportFromJobRecordsHistory(t *testing.T) {
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "exports.db"),
		AutoMigrate: true,
	})
	require.NoError(t, err)
	history := repository.NewExportRepository(db)

	svc, _, artifacts := newExportFixture(t, NotionConfig{Token: "t", ParentPageID: "p"}, history)
	ctx := context.Background()

	_, err = svc.Export(ctx, ExportRequest{JobID: "missing"})
	assert.ErrorIs(t, err, repository.ErrArtifactNotFound)

	_, err = artifacts.SaveTranscript(ctx, "job", &domain.Transcript{
		Text:     "hello world",
		Title:    "Talk",
		Channel:  "Chan",
		URL:      "https://youtu.be/abc123",
		Segments: []domain.Segment{{Start: 0, End: 2, Text: " hello world "}},
	})
	require.NoError(t, err)

	result, err := svc.Export(ctx, ExportRequest{JobID: "job"})
	require.NoError(t, err)

	records, err := svc.History(ctx, "job")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, result.PageID, records[0].PageID)
	assert.Equal(t, "Talk", records[0].Title)
	assert.Equal(t, "notion", records[0].Destination)

	records, err = svc.History(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHistoryWithoutDatabase(t *testing.T) {
	svc, _, _ := newExportFixture(t, NotionConfig{}, nil)
	records, err := svc.History(context.Background(), "job")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestContentForJob(t *testing.T) {
	svc, _, artifacts := newExportFixture(t, NotionConfig{}, nil)
	ctx := context.Background()

	_, err := artifacts.SaveTranscript(ctx, "job", &domain.Transcript{
		Title:    "Talk",
		Channel:  "Chan",
		URL:      "https://youtu.be/abc123",
		Segments: []domain.Segment{{Start: 75, Text: " later "}},
	})
	require.NoError(t, err)

	content, err := svc.contentForJob(ctx, "job")
	require.NoError(t, err)
	assert.Empty(t, content.Summary)
	assert.Equal(t, []ExportSegment{{Time: "1:15", Text: "later"}}, content.Transcript)

	_, err = artifacts.SaveNotes(ctx, "job", &domain.Notes{Summary: "s", KeyPoints: []string{"k"}})
	require.NoError(t, err)
	content, err = svc.contentForJob(ctx, "job")
	require.NoError(t, err)
	assert.Equal(t, "s", content.Summary)
	assert.Equal(t, []string{"k"}, content.KeyPoints)
}

func TestBuildBlocksLayout(t *testing.T) {
	blocks := buildBlocks(&ExportContent{
		URL:        "https://youtu.be/abc123",
		Summary:    "summary",
		KeyPoints:  []string{"a", "b"},
		Transcript: []ExportSegment{{Time: "0:00", Text: "hi"}},
	})

	var types []string
	for _, b := range blocks {
		types = append(types, b.Type)
	}
	assert.Equal(t, []string{
		"paragraph", "paragraph", "divider",
		"heading_2", "paragraph", "divider",
		"heading_2", "bulleted_list_item", "bulleted_list_item", "divider",
		"heading_2", "paragraph",
	}, types)

	channel := blocks[0].Paragraph.RichText
	assert.Equal(t, domain.UnknownChannel, channel[1].Text.Content)
	assert.True(t, channel[1].Annotations.Bold)

	url := blocks[1].Paragraph.RichText[1]
	require.NotNil(t, url.Text.Link)
	assert.Equal(t, "https://youtu.be/abc123", url.Text.Link.URL)

	seg := blocks[len(blocks)-1].Paragraph.RichText
	assert.Equal(t, "[0:00] ", seg[0].Text.Content)
	assert.True(t, seg[0].Annotations.Bold)
	assert.Equal(t, "hi", seg[1].Text.Content)
}

func TestBuildBlocksSplitsLongText(t *testing.T) {
	blocks := buildBlocks(&ExportContent{Summary: strings.Repeat("é", 4500)})
	runs := blocks[3].Paragraph.RichText
	require.Len(t, runs, 3)
	for _, r := range runs {
		assert.LessOrEqual(t, len([]rune(r.Text.Content)), notionMaxTextLength)
	}
}

func TestSplitText(t *testing.T) {
	assert.Equal(t, []string{""}, splitText("", 10))
	assert.Equal(t, []string{"abc"}, splitText("abc", 3))
	assert.Equal(t, []string{"ab", "cd", "e"}, splitText("abcde", 2))
	assert.Equal(t, []string{"日本", "語"}, splitText("日本語", 2))
}
