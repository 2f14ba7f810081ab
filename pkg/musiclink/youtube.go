package musiclink

import (
	"net/url"
	"regexp"

	"trackbridge/internal/core"
)

var (
	// youtubeLinkRegex matches watch links on every YouTube host, youtu.be
	// links and live/shorts links.
	youtubeLinkRegex = regexp.MustCompile(
		`https?://(?:www\.|m\.|music\.)?youtube\.com/watch\?([A-Za-z0-9%=&_.\-]+)` +
			`|https?://youtu\.be/([A-Za-z0-9_-]{11})` +
			`|https?://(?:www\.|m\.)?youtube\.com/(?:live|shorts)/([A-Za-z0-9_-]{11})`)

	videoIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

type YouTubeExtractor struct{}

func NewYouTubeExtractor() *YouTubeExtractor {
	return &YouTubeExtractor{}
}

func (e *YouTubeExtractor) Service() core.Service {
	return core.ServiceYouTube
}

func (e *YouTubeExtractor) Scan(text string) []Link {
	return scanMatches(youtubeLinkRegex, text, func(g []string) (Link, bool) {
		id := firstNonEmpty(g[2], g[3])
		if g[1] != "" {
			id = watchVideoID(g[1])
		}
		return refLink(core.ServiceYouTube, core.KindVideo, id)
	})
}

// watchVideoID reads the v parameter of a watch link query string.
func watchVideoID(rawQuery string) string {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return ""
	}
	id := values.Get("v")
	if !videoIDRegex.MatchString(id) {
		return ""
	}
	return id
}
