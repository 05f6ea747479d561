package source_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/vidnotes/internal/source"
	"github.com/timmy/vidnotes/internal/source/youtube"
)

func TestRegistryResolve(t *testing.T) {
	strict := source.NewRegistry(false, youtube.NewAdapter())
	loose := source.NewRegistry(true, youtube.NewAdapter())

	testCases := []struct {
		name     string
		registry *source.Registry
		raw      string
		wantErr  bool
		wantID   string
		wantSrc  string
	}{
		{name: "short link", registry: strict, raw: "https://youtu.be/abc123", wantID: "abc123", wantSrc: "youtube"},
		{name: "watch link", registry: strict, raw: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10", wantID: "dQw4w9WgXcQ", wantSrc: "youtube"},
		{name: "mobile shorts", registry: strict, raw: "https://m.youtube.com/shorts/xyz_987", wantID: "xyz_987", wantSrc: "youtube"},
		{name: "embed", registry: strict, raw: "http://youtube.com/embed/abc-def", wantID: "abc-def", wantSrc: "youtube"},
		{name: "not a url", registry: loose, raw: "not-a-url", wantErr: true},
		{name: "empty", registry: loose, raw: "   ", wantErr: true},
		{name: "ftp scheme", registry: loose, raw: "ftp://youtu.be/abc123", wantErr: true},
		{name: "youtube without id", registry: loose, raw: "https://www.youtube.com/feed/trending", wantErr: true},
		{name: "other host strict", registry: strict, raw: "https://vimeo.com/1234", wantErr: true},
		{name: "other host loose", registry: loose, raw: "https://vimeo.com/1234", wantSrc: "generic"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ref, err := tc.registry.Resolve(tc.raw)
			if tc.wantErr {
				assert.ErrorIs(t, err, source.ErrInvalidURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantID, ref.VideoID)
			assert.Equal(t, tc.wantSrc, ref.SourceID)
			assert.Equal(t, tc.raw, ref.URL)
		})
	}
}

func TestMediaURLValidation(t *testing.T) {
	v := validator.New()
	require.NoError(t, source.RegisterValidation(v, source.NewRegistry(false, youtube.NewAdapter())))

	type request struct {
		URL string `validate:"required,mediaurl"`
	}
	assert.NoError(t, v.Struct(request{URL: "https://youtu.be/abc123"}))
	assert.Error(t, v.Struct(request{URL: "not-a-url"}))
}
