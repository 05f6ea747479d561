package domain

// Settings is the persisted user selection: last-used models and UI theme.
type Settings struct {
	ModelType       ModelFamily `json:"model_type"`
	ModelSize       string      `json:"model_size"`
	SummarizerModel string      `json:"summarizer_model"`
	Theme           string      `json:"theme"`
}

// DefaultSettings returns the first-launch selection.
func DefaultSettings() Settings {
	return Settings{
		ModelType:       ModelFamilyWhisper,
		ModelSize:       DefaultModelSize,
		SummarizerModel: DefaultSummarizer,
		Theme:           DefaultTheme,
	}
}

// WithDefaults fills empty fields from DefaultSettings.
func (s Settings) WithDefaults() Settings {
	d := DefaultSettings()
	if s.ModelType == "" {
		s.ModelType = d.ModelType
	}
	if s.ModelSize == "" {
		s.ModelSize = d.ModelSize
	}
	if s.SummarizerModel == "" {
		s.SummarizerModel = d.SummarizerModel
	}
	if s.Theme == "" {
		s.Theme = d.Theme
	}
	return s
}
