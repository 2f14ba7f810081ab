package musiclink

import (
	"net/url"

	"trackbridge/internal/core"
)

// CanonicalURL returns the web link for ref, or "" for an unknown catalog.
func CanonicalURL(ref core.ResourceRef) string {
	id := url.PathEscape(ref.ID)
	switch ref.Service {
	case core.ServiceSpotify:
		return "https://open.spotify.com/" + string(ref.Kind) + "/" + id
	case core.ServiceTidal:
		return "https://tidal.com/browse/" + string(ref.Kind) + "/" + id
	case core.ServiceYouTube:
		return "https://www.youtube.com/watch?v=" + url.QueryEscape(ref.ID)
	default:
		return ""
	}
}
