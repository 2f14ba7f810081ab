package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Service identifies a streaming catalog.
type Service string

const (
	// ServiceSpotify is the Spotify Web API catalog.
	ServiceSpotify Service = "spotify"
	// ServiceTidal is the Tidal catalog.
	ServiceTidal Service = "tidal"
	// ServiceYouTube is the YouTube Data API catalog.
	ServiceYouTube Service = "youtube"
)

// Services lists every supported catalog in a stable order.
var Services = []Service{ServiceSpotify, ServiceTidal, ServiceYouTube}

// Kind is the type of a resource within a catalog.
type Kind string

const (
	// KindTrack is a single recording.
	KindTrack Kind = "track"
	// KindAlbum is a release containing tracks.
	KindAlbum Kind = "album"
	// KindVideo is a YouTube video, matched like a track.
	KindVideo Kind = "video"
)

// Identifier kinds found in Resource.ExternalIDs.
const (
	ExternalIDISRC = "isrc"
	ExternalIDUPC  = "upc"
	ExternalIDEAN  = "ean"
)

// ResourceRef identifies a resource in one catalog without any metadata.
type ResourceRef struct {
	Service Service `json:"service"`
	Kind    Kind    `json:"kind"`
	ID      string  `json:"id"`
}

// NewResourceRef builds a ResourceRef, rejecting empty ids.
func NewResourceRef(service Service, kind Kind, id string) (ResourceRef, error) {
	if id == "" {
		return ResourceRef{}, fmt.Errorf("%w: empty %s %s id", ErrExtraction, service, kind)
	}
	return ResourceRef{Service: service, Kind: kind, ID: id}, nil
}

func (r ResourceRef) String() string {
	return string(r.Service) + ":" + string(r.Kind) + ":" + r.ID
}

// Resource is a hydrated catalog entry. Search results use the same type and
// carry their position in the response in Rank.
type Resource struct {
	ResourceRef

	Title       string
	Artist      string
	Duration    time.Duration
	ExternalIDs map[string]string
	// Album is the parent release of a track, when the catalog reports one.
	Album *Resource
	Rank  int
}

// ExternalID returns the identifier of the given kind, or "".
func (r *Resource) ExternalID(kind string) string {
	if r == nil || r.ExternalIDs == nil {
		return ""
	}
	return strings.TrimSpace(r.ExternalIDs[kind])
}

// ISRC returns the recording code in upper case.
func (r *Resource) ISRC() string {
	return strings.ToUpper(r.ExternalID(ExternalIDISRC))
}

// Barcodes returns the non-empty UPC and EAN values.
func (r *Resource) Barcodes() []string {
	var out []string
	for _, kind := range []string{ExternalIDUPC, ExternalIDEAN} {
		if v := r.ExternalID(kind); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// AlbumTitle returns the parent album title of a track, or the title of an album.
func (r *Resource) AlbumTitle() string {
	if r.Kind == KindAlbum {
		return r.Title
	}
	if r.Album != nil {
		return r.Album.Title
	}
	return ""
}

// Cursor is an opaque continuation token. The empty cursor starts a listing
// when passed in and ends it when returned.
type Cursor string

// NoCursor is both the first-page request and the end-of-listing marker.
const NoCursor Cursor = ""

// Page is one response from a paged listing endpoint.
type Page struct {
	Items []Resource
	Next  Cursor
}

// Catalog is the capability set every service adapter provides.
type Catalog interface {
	Service() Service
	SearchAlbums(ctx context.Context, query string) ([]Resource, error)
	SearchTracks(ctx context.Context, query string) ([]Resource, error)
	GetAlbum(ctx context.Context, id string) (*Resource, error)
	GetTrack(ctx context.Context, id string) (*Resource, error)
	ListAlbumItems(ctx context.Context, albumID string, cursor Cursor) (*Page, error)
}

// LinkExtractor turns message text into resource refs, resolving shortlinks.
type LinkExtractor interface {
	Extract(ctx context.Context, text string) []ResourceRef
}

// TitleExtractor splits a free-form title (a video name) into song title and artist.
type TitleExtractor interface {
	ExtractSong(ctx context.Context, rawTitle, uploader string) (title, artist string, err error)
}

// Recorder receives resolution events for metrics.
type Recorder interface {
	RecordMatch(source, target Service, strategy Strategy)
	RecordNoMatch(source, target Service)
	RecordError(component, kind string)
	RecordPage(service Service)
	RecordResolution(resources int, duration time.Duration)
}

// NopRecorder discards all events.
type NopRecorder struct{}

func (NopRecorder) RecordMatch(Service, Service, Strategy) {}
func (NopRecorder) RecordNoMatch(Service, Service) {}
func (NopRecorder) RecordError(string, string) {}
func (NopRecorder) RecordPage(Service) {}
func (NopRecorder) RecordResolution(int, time.Duration) {}
