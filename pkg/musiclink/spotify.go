package musiclink

import (
	"regexp"

	"trackbridge/internal/core"
)

const (
	// SpotifyShortLinkDomain is the Spotify link shortener.
	SpotifyShortLinkDomain = "spotify.link"
	// SpotifyAppLinkDomain serves the app-link interstitial pages behind spotify.link.
	SpotifyAppLinkDomain = "spotify.app.link"
)

// spotifyLinkRegex matches web links (with an optional locale segment),
// spotify: URIs and shortlinks.
var spotifyLinkRegex = regexp.MustCompile(
	`https?://open\.spotify\.com/(?:intl-[a-zA-Z-]+/)?(track|album)/([a-zA-Z0-9]+)` +
		`|spotify:(track|album):([a-zA-Z0-9]+)` +
		`|(https?://(?:spotify\.link|spotify\.app\.link)/[a-zA-Z0-9_-]+)`)

type SpotifyExtractor struct{}

func NewSpotifyExtractor() *SpotifyExtractor {
	return &SpotifyExtractor{}
}

func (e *SpotifyExtractor) Service() core.Service {
	return core.ServiceSpotify
}

func (e *SpotifyExtractor) Scan(text string) []Link {
	return scanMatches(spotifyLinkRegex, text, func(g []string) (Link, bool) {
		if g[5] != "" {
			return Link{ShortURL: g[5]}, true
		}
		kind := firstNonEmpty(g[1], g[3])
		return refLink(core.ServiceSpotify, core.Kind(kind), firstNonEmpty(g[2], g[4]))
	})
}
