package domain

import "strings"

// ModelFamily selects one of the interchangeable transcription engines.
type ModelFamily string

const (
	// ModelFamilyWhisper is the reference engine. It must be loaded explicitly.
	ModelFamilyWhisper ModelFamily = "whisper"
	// ModelFamilyFasterWhisper is the optimized engine. It loads itself on demand.
	ModelFamilyFasterWhisper ModelFamily = "faster-whisper"
)

// Valid reports whether f names a known family.
func (f ModelFamily) Valid() bool {
	return f == ModelFamilyWhisper || f == ModelFamilyFasterWhisper
}

// SelfLoading reports whether the family loads its model on first use.
func (f ModelFamily) SelfLoading() bool {
	return f == ModelFamilyFasterWhisper
}

// TranscriptionSizes lists the model sizes accepted by both families.
var TranscriptionSizes = []string{
	"tiny", "base", "small", "medium", "large", "large-v2", "large-v3",
}

// ValidSize reports whether size is in TranscriptionSizes.
func ValidSize(size string) bool {
	for _, s := range TranscriptionSizes {
		if s == size {
			return true
		}
	}
	return false
}

// SummarizerArch groups summarizers that share generation defaults.
type SummarizerArch string

const (
	SummarizerArchBART SummarizerArch = "bart"
	SummarizerArchT5   SummarizerArch = "t5"
)

// SummarizerModel is one entry of the summarizer catalog.
type SummarizerModel struct {
	Repo        string         `json:"name"`
	Size        string         `json:"size"`
	Description string         `json:"description"`
	Arch        SummarizerArch `json:"arch"`
}

// SummarizerCatalog is the fixed set of named summarization models.
var SummarizerCatalog = map[string]SummarizerModel{
	"bart-large-cnn": {
		Repo:        "facebook/bart-large-cnn",
		Size:        "1.6GB",
		Description: "High quality but requires more memory",
		Arch:        SummarizerArchBART,
	},
	"bart-base-cnn": {
		Repo:        "sshleifer/distilbart-cnn-6-6",
		Size:        "680MB",
		Description: "Good balance of quality and speed",
		Arch:        SummarizerArchBART,
	},
	"t5-small": {
		Repo:        "t5-small",
		Size:        "300MB",
		Description: "Fast but less detailed summaries",
		Arch:        SummarizerArchT5,
	},
	"flan-t5-small": {
		Repo:        "google/flan-t5-small",
		Size:        "300MB",
		Description: "Improved small model with instruction tuning",
		Arch:        SummarizerArchT5,
	},
	"distilbart-xsum": {
		Repo:        "sshleifer/distilbart-xsum-12-1",
		Size:        "400MB",
		Description: "Efficient model focused on extreme summarization",
		Arch:        SummarizerArchBART,
	},
}

// Catalog defaults.
const (
	DefaultSummarizer     = "bart-large-cnn"
	LightweightSummarizer = "t5-small"
	DefaultModelSize      = "medium"
	DefaultTheme          = "light"
)

// SummarizerFallbacks is tried in order, by decreasing resource needs, when
// the requested summarizer fails to load.
var SummarizerFallbacks = []string{"bart-base-cnn", "t5-small", "flan-t5-small", "distilbart-xsum"}

// Device is the processing device a model is loaded onto.
type Device string

const (
	DeviceCUDA Device = "cuda"
	DeviceCPU  Device = "cpu"
)

// NormalizeLanguage maps empty and "auto" to "" (auto-detect).
// Every other value is passed through trimmed.
func NormalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}
