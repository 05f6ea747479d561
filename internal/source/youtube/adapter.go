package youtube

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/timmy/vidnotes/internal/source"
)

const sourceID = "youtube"

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

// Adapter recognizes youtube.com and youtu.be links.
type Adapter struct{}

// NewAdapter creates a YouTube source adapter.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// GetSourceID returns the source identifier.
func (a *Adapter) GetSourceID() string {
	return sourceID
}

// GetDisplayName returns the display name.
func (a *Adapter) GetDisplayName() string {
	return "YouTube"
}

// Match extracts the video id from watch, short, embed, live and youtu.be URLs.
func (a *Adapter) Match(u *url.URL) (source.Ref, bool, error) {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	var id string
	switch host {
	case "youtu.be":
		id = firstSegment(u.Path)
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtube-nocookie.com":
		id = idFromPath(u)
	default:
		return source.Ref{}, false, nil
	}

	if !videoIDPattern.MatchString(id) {
		return source.Ref{}, true, fmt.Errorf("no video id in %s", u.String())
	}
	return source.Ref{VideoID: id}, true, nil
}

func idFromPath(u *url.URL) string {
	path := strings.Trim(u.Path, "/")
	if path == "watch" {
		return u.Query().Get("v")
	}
	for _, prefix := range []string{"shorts/", "embed/", "live/", "v/"} {
		if strings.HasPrefix(path, prefix) {
			return firstSegment(strings.TrimPrefix(path, prefix))
		}
	}
	return ""
}

func firstSegment(path string) string {
	path = strings.Trim(path, "/")
	if i := strings.Index(path, "/"); i >= 0 {
		path = path[:i]
	}
	return path
}
