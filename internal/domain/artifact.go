package domain

// Placeholders used when source metadata is unavailable.
const (
	UnknownTitle   = "Unknown Video"
	UnknownChannel = "Unknown"
)

// MissingNotesError marks a persisted job whose transcript exists without notes.
const MissingNotesError = "notes were not generated; regenerate them to complete the job"

// MaxKeyPoints bounds the key-point list of a notes artifact.
const MaxKeyPoints = 10

// Segment is a time-bounded span of transcribed speech, offsets in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the persisted transcription artifact.
// It is written once per completed job and never modified.
type Transcript struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
	Title    string    `json:"title"`
	Channel  string    `json:"channel"`
	URL      string    `json:"youtube_url"`
	Language string    `json:"language,omitempty"`
}

// Notes is the persisted summary artifact. Regeneration overwrites it.
type Notes struct {
	Summary            string   `json:"summary"`
	KeyPoints          []string `json:"key_points"`
	OriginalTranscript string   `json:"original_transcript"`
	Title              string   `json:"title,omitempty"`
	Language           string   `json:"language,omitempty"`
}

// SourceMetadata describes the video behind a URL.
type SourceMetadata struct {
	Title     string  `json:"title"`
	Channel   string  `json:"channel"`
	Thumbnail string  `json:"thumbnail"`
	Duration  float64 `json:"duration,omitempty"`
}

// PlaceholderMetadata is used when the metadata fetch fails.
func PlaceholderMetadata() SourceMetadata {
	return SourceMetadata{Title: UnknownTitle, Channel: UnknownChannel}
}
