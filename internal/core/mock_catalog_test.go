package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

var errInjected = errors.New("injected failure")

// mockCatalog is an in-memory Catalog. Search results are looked up by exact
// query, with "*" as a catch-all.
type mockCatalog struct {
	service Service

	mu           sync.Mutex
	albums       map[string]*Resource
	tracks       map[string]*Resource
	albumSearch  map[string][]Resource
	trackSearch  map[string][]Resource
	pages        map[string][]Page
	searchErr    error
	albumQueries []string
	trackQueries []string
	pageCalls    int

	// failPage maps an album id to the page index that returns an error.
	failPage map[string]int
}

func newMockCatalog(service Service) *mockCatalog {
	return &mockCatalog{
		service:     service,
		albums:      make(map[string]*Resource),
		tracks:      make(map[string]*Resource),
		albumSearch: make(map[string][]Resource),
		trackSearch: make(map[string][]Resource),
		pages:       make(map[string][]Page),
		failPage:    make(map[string]int),
	}
}

func (m *mockCatalog) Service() Service {
	return m.service
}

func (m *mockCatalog) SearchAlbums(_ context.Context, query string) ([]Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.albumQueries = append(m.albumQueries, query)
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if results, ok := m.albumSearch[query]; ok {
		return results, nil
	}
	return m.albumSearch["*"], nil
}

func (m *mockCatalog) SearchTracks(_ context.Context, query string) ([]Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.trackQueries = append(m.trackQueries, query)
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if results, ok := m.trackSearch[query]; ok {
		return results, nil
	}
	return m.trackSearch["*"], nil
}

func (m *mockCatalog) GetAlbum(_ context.Context, id string) (*Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if album, ok := m.albums[id]; ok {
		return album, nil
	}
	return nil, &NotFoundError{Ref: ResourceRef{Service: m.service, Kind: KindAlbum, ID: id}}
}

func (m *mockCatalog) GetTrack(_ context.Context, id string) (*Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if track, ok := m.tracks[id]; ok {
		return track, nil
	}
	return nil, &NotFoundError{Ref: ResourceRef{Service: m.service, Kind: KindTrack, ID: id}}
}

func (m *mockCatalog) ListAlbumItems(_ context.Context, albumID string, cursor Cursor) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pageCalls++

	index := 0
	if cursor != NoCursor {
		n, err := strconv.Atoi(strings.TrimPrefix(string(cursor), "page-"))
		if err != nil {
			return nil, fmt.Errorf("bad cursor %q", cursor)
		}
		index = n
	}

	if fail, ok := m.failPage[albumID]; ok && fail == index {
		return nil, &TransportError{Service: m.service, Op: "list album items", Err: errInjected}
	}

	pages, ok := m.pages[albumID]
	if !ok || index >= len(pages) {
		return nil, &NotFoundError{Ref: ResourceRef{Service: m.service, Kind: KindAlbum, ID: albumID}}
	}

	page := pages[index]
	return &page, nil
}

// setAlbumItems splits items over k pages linked by "page-N" cursors.
func (m *mockCatalog) setAlbumItems(albumID string, items []Resource, k int) {
	pages := make([]Page, k)
	for i := range pages {
		start, end := i*len(items)/k, (i+1)*len(items)/k
		pages[i].Items = items[start:end]
		if i+1 < k {
			pages[i].Next = Cursor(fmt.Sprintf("page-%d", i+1))
		}
	}
	m.pages[albumID] = pages
}

func track(service Service, id, title, artist string, duration time.Duration, isrc string) Resource {
	r := Resource{
		ResourceRef: ResourceRef{Service: service, Kind: KindTrack, ID: id},
		Title:       title,
		Artist:      artist,
		Duration:    duration,
	}
	if isrc != "" {
		r.ExternalIDs = map[string]string{ExternalIDISRC: isrc}
	}
	return r
}

func album(service Service, id, title, artist, upc string) Resource {
	r := Resource{
		ResourceRef: ResourceRef{Service: service, Kind: KindAlbum, ID: id},
		Title:       title,
		Artist:      artist,
	}
	if upc != "" {
		r.ExternalIDs = map[string]string{ExternalIDUPC: upc}
	}
	return r
}

func numberedTracks(service Service, n int) []Resource {
	items := make([]Resource, n)
	for i := range items {
		items[i] = track(service, fmt.Sprintf("t%d", i), fmt.Sprintf("Track %d", i), "Artist", time.Minute, "")
	}
	return items
}

var spotifyTrackLink = regexp.MustCompile(`https://open\.spotify\.com/(track|album)/([A-Za-z0-9]+)`)

// mockExtractor recognizes plain Spotify web links.
type mockExtractor struct{}

func (mockExtractor) Extract(_ context.Context, text string) []ResourceRef {
	var refs []ResourceRef
	for _, m := range spotifyTrackLink.FindAllStringSubmatch(text, -1) {
		refs = append(refs, ResourceRef{Service: ServiceSpotify, Kind: Kind(m[1]), ID: m[2]})
	}
	return refs
}

type mockRecorder struct {
	mu         sync.Mutex
	matches    map[Strategy]int
	noMatches  int
	errors     map[string]int
	pages      int
	resolution int
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{
		matches: make(map[Strategy]int),
		errors:  make(map[string]int),
	}
}

func (r *mockRecorder) RecordMatch(_, _ Service, strategy Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches[strategy]++
}

func (r *mockRecorder) RecordNoMatch(_, _ Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.noMatches++
}

func (r *mockRecorder) RecordError(component, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[component+"/"+kind]++
}

func (r *mockRecorder) RecordPage(Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages++
}

func (r *mockRecorder) RecordResolution(resources int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolution += resources
}
