package musiclink

import (
	"regexp"

	"trackbridge/internal/core"
)

// tidalLinkRegex matches tidal.com and listen.tidal.com links, including
// tracks addressed through their album, and tidal:// URIs.
var tidalLinkRegex = regexp.MustCompile(
	`https?://(?:www\.|listen\.)?tidal\.com/(?:browse/)?(?:album/\d+/)?(track|album)/(\d+)` +
		`|tidal://(track|album)/(\d+)`)

type TidalExtractor struct{}

func NewTidalExtractor() *TidalExtractor {
	return &TidalExtractor{}
}

func (e *TidalExtractor) Service() core.Service {
	return core.ServiceTidal
}

func (e *TidalExtractor) Scan(text string) []Link {
	return scanMatches(tidalLinkRegex, text, func(g []string) (Link, bool) {
		kind := firstNonEmpty(g[1], g[3])
		return refLink(core.ServiceTidal, core.Kind(kind), firstNonEmpty(g[2], g[4]))
	})
}
