package source

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidURL is returned for missing, malformed or unsupported URLs.
var ErrInvalidURL = errors.New("invalid url")

// Ref is a validated reference to one video.
type Ref struct {
	SourceID string // adapter that accepted the URL
	VideoID  string // adapter-specific id, may be empty
	URL      string // URL handed to the downloader
}

// Source recognizes URLs of one video platform.
type Source interface {
	// GetSourceID returns the unique identifier for this source.
	GetSourceID() string

	// GetDisplayName returns a human-readable name for this source.
	GetDisplayName() string

	// Match parses u and reports whether this source handles it.
	// Parameters:
	//   - u: absolute http(s) URL.
	// Returns:
	//   - Ref: reference with the video id filled in.
	//   - bool: false when the URL belongs to another source.
	//   - error: non-nil when the URL is this source's but malformed.
	Match(u *url.URL) (Ref, bool, error)
}

// Registry resolves URLs against an ordered list of sources.
type Registry struct {
	sources       []Source
	allowFallback bool
}

// NewRegistry creates a registry. With allowFallback, any absolute http(s)
// URL not claimed by a source is accepted as-is for the downloader to try.
func NewRegistry(allowFallback bool, sources ...Source) *Registry {
	return &Registry{sources: sources, allowFallback: allowFallback}
}

// Resolve validates raw and returns the matching reference.
func (r *Registry) Resolve(raw string) (Ref, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Ref{}, fmt.Errorf("%w: url is required", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Ref{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return Ref{}, fmt.Errorf("%w: %q is not an http(s) url", ErrInvalidURL, raw)
	}

	for _, src := range r.sources {
		ref, ok, err := src.Match(u)
		if err != nil {
			return Ref{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
		}
		if ok {
			ref.SourceID = src.GetSourceID()
			if ref.URL == "" {
				ref.URL = raw
			}
			return ref, nil
		}
	}

	if !r.allowFallback {
		return Ref{}, fmt.Errorf("%w: unsupported host %s", ErrInvalidURL, u.Hostname())
	}
	return Ref{SourceID: "generic", URL: raw}, nil
}

// Valid reports whether raw resolves.
func (r *Registry) Valid(raw string) bool {
	_, err := r.Resolve(raw)
	return err == nil
}
