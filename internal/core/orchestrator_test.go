package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestOrchestrator(recorder Recorder, catalogs ...Catalog) *Orchestrator {
	paginator := NewPaginator(0, DefaultMaxPages, recorder, zap.NewNop())
	matcher := NewMatcher(paginator, DefaultDurationTolerance, DefaultMaxAlbumExpansions, zap.NewNop())
	return NewOrchestrator(mockExtractor{}, catalogs, matcher, paginator, DefaultWorkers, recorder, zap.NewNop())
}

func TestOrchestrator_MatchesViaISRC(t *testing.T) {
	spotify := newMockCatalog(ServiceSpotify)
	source := track(ServiceSpotify, "abc123", "Song - Live", "Artist", 200000*time.Millisecond, "US123")
	spotify.tracks["abc123"] = &source

	tidal := newMockCatalog(ServiceTidal)
	tidal.trackSearch["*"] = []Resource{
		track(ServiceTidal, "999", "Song (Live)", "Artist", 201200*time.Millisecond, "US123"),
	}

	recorder := newMockRecorder()
	orchestrator := newTestOrchestrator(recorder, spotify, tidal)

	result, err := orchestrator.Resolve(context.Background(), "check this out https://open.spotify.com/track/abc123")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if result.ID == "" {
		t.Error("Resolve() result has no id")
	}
	if len(result.Items) != 1 {
		t.Fatalf("Resolve() items = %d, want 1", len(result.Items))
	}

	item := result.Items[0]
	if item.Err != nil {
		t.Errorf("item error = %v", item.Err)
	}
	if got := item.Equivalents[ServiceTidal]; got.ID != "999" || got.Kind != KindTrack {
		t.Errorf("tidal equivalent = %+v, want track 999", got)
	}
	if got := item.Equivalents[ServiceSpotify]; got.ID != "abc123" {
		t.Errorf("source equivalent = %+v, want abc123", got)
	}
	if recorder.matches[StrategyDirectTrack] != 1 {
		t.Errorf("recorded matches = %v", recorder.matches)
	}
}

func TestOrchestrator_NoMatchContinuesWithRemainingLinks(t *testing.T) {
	spotify := newMockCatalog(ServiceSpotify)
	first := track(ServiceSpotify, "abc123", "Song - Live", "Artist", 200000*time.Millisecond, "")
	second := track(ServiceSpotify, "def456", "Other", "Band", 150*time.Second, "GB1")
	spotify.tracks["abc123"] = &first
	spotify.tracks["def456"] = &second

	tidal := newMockCatalog(ServiceTidal)
	tidal.trackSearch["Song - Live Artist"] = []Resource{
		track(ServiceTidal, "999", "Song (Live)", "Artist", 203500*time.Millisecond, ""),
	}
	tidal.trackSearch["Other Band"] = []Resource{
		track(ServiceTidal, "555", "Other", "Band", 150*time.Second, "GB1"),
	}

	recorder := newMockRecorder()
	orchestrator := newTestOrchestrator(recorder, spotify, tidal)

	text := "https://open.spotify.com/track/abc123 and https://open.spotify.com/track/def456"
	result, err := orchestrator.Resolve(context.Background(), text)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("Resolve() items = %d, want 2", len(result.Items))
	}

	if _, ok := result.Items[0].Equivalents[ServiceTidal]; ok {
		t.Error("first link should have no tidal match")
	}
	if result.Items[0].Err != nil {
		t.Errorf("no match must not be an error, got %v", result.Items[0].Err)
	}
	if got := result.Items[1].Equivalents[ServiceTidal]; got.ID != "555" {
		t.Errorf("second link tidal equivalent = %+v, want 555", got)
	}
	if recorder.noMatches != 1 {
		t.Errorf("recorded no-matches = %d, want 1", recorder.noMatches)
	}
}

func TestOrchestrator_FailureIsolatedPerResource(t *testing.T) {
	spotify := newMockCatalog(ServiceSpotify)
	ok := track(ServiceSpotify, "good", "Song", "Artist", 200*time.Second, "ISRC")
	spotify.tracks["good"] = &ok

	tidal := newMockCatalog(ServiceTidal)
	tidal.trackSearch["*"] = []Resource{track(ServiceTidal, "t", "Song", "Artist", 200*time.Second, "ISRC")}

	recorder := newMockRecorder()
	orchestrator := newTestOrchestrator(recorder, spotify, tidal)

	text := "https://open.spotify.com/track/missing https://open.spotify.com/track/good " +
		"https://open.spotify.com/track/missing2 https://open.spotify.com/track/good"
	result, err := orchestrator.Resolve(context.Background(), text)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(result.Items) != 4 {
		t.Fatalf("Resolve() items = %d, want 4 (duplicates kept)", len(result.Items))
	}

	for i, wantErr := range []bool{true, false, true, false} {
		item := result.Items[i]
		if (item.Err != nil) != wantErr {
			t.Errorf("item %d error = %v, want error %v", i, item.Err, wantErr)
		}
		if wantErr && !errors.Is(item.Err, ErrNotFound) {
			t.Errorf("item %d error = %v, want not found", i, item.Err)
		}
		if !wantErr && item.Equivalents[ServiceTidal].ID != "t" {
			t.Errorf("item %d tidal equivalent = %+v", i, item.Equivalents[ServiceTidal])
		}
	}

	playable := orchestrator.Playable(context.Background(), result)
	if len(playable[ServiceTidal]) != 2 {
		t.Errorf("playable tidal refs = %v, want 2", playable[ServiceTidal])
	}
	if len(playable[ServiceSpotify]) != 4 {
		t.Errorf("playable spotify refs = %v, want 4", playable[ServiceSpotify])
	}
	if recorder.errors["hydrate/not_found"] != 2 {
		t.Errorf("recorded errors = %v", recorder.errors)
	}
}

func TestOrchestrator_TransportErrorOnTargetKeepsOtherTargets(t *testing.T) {
	spotify := newMockCatalog(ServiceSpotify)
	source := track(ServiceSpotify, "abc", "Song", "Artist", 200*time.Second, "ISRC")
	spotify.tracks["abc"] = &source

	tidal := newMockCatalog(ServiceTidal)
	tidal.searchErr = &TransportError{Service: ServiceTidal, Op: "search", Err: errInjected}

	youtube := newMockCatalog(ServiceYouTube)
	video := track(ServiceYouTube, "dQw4w9WgXcQ", "Song", "Artist", 201*time.Second, "")
	video.Kind = KindVideo
	youtube.trackSearch["*"] = []Resource{video}

	orchestrator := newTestOrchestrator(nil, spotify, tidal, youtube)

	result, err := orchestrator.Resolve(context.Background(), "https://open.spotify.com/track/abc")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	item := result.Items[0]
	if !errors.Is(item.Err, ErrTransport) {
		t.Errorf("item error = %v, want transport error", item.Err)
	}
	if got := item.Equivalents[ServiceYouTube]; got.ID != "dQw4w9WgXcQ" || got.Kind != KindVideo {
		t.Errorf("youtube equivalent = %+v", got)
	}
}

func TestOrchestrator_PlayableExpandsAlbums(t *testing.T) {
	spotify := newMockCatalog(ServiceSpotify)
	source := album(ServiceSpotify, "alb", "Record", "Band", "123456789012")
	spotify.albums["alb"] = &source
	spotify.setAlbumItems("alb", numberedTracks(ServiceSpotify, 5), 2)

	tidal := newMockCatalog(ServiceTidal)
	tidal.albumSearch["*"] = []Resource{album(ServiceTidal, "talb", "Record (Deluxe)", "Band", "0123456789012")}
	tidal.setAlbumItems("talb", numberedTracks(ServiceTidal, 3), 1)
	tidal.failPage["talb"] = 0

	orchestrator := newTestOrchestrator(nil, spotify, tidal)

	result, err := orchestrator.Resolve(context.Background(), "https://open.spotify.com/album/alb")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := result.Items[0].Equivalents[ServiceTidal]; got.ID != "talb" || got.Kind != KindAlbum {
		t.Fatalf("tidal equivalent = %+v, want album talb", got)
	}

	playable := orchestrator.Playable(context.Background(), result)

	if len(playable[ServiceSpotify]) != 5 {
		t.Errorf("spotify playable = %v, want 5 tracks", playable[ServiceSpotify])
	}
	for _, ref := range playable[ServiceSpotify] {
		if ref.Kind != KindTrack {
			t.Errorf("spotify playable ref %v is not a track", ref)
		}
	}

	tidalRefs := playable[ServiceTidal]
	if len(tidalRefs) != 1 || tidalRefs[0].ID != "talb" || tidalRefs[0].Kind != KindAlbum {
		t.Errorf("tidal playable = %v, want the album kept as one item", tidalRefs)
	}
}

func TestOrchestrator_UnconfiguredSourceCatalog(t *testing.T) {
	tidal := newMockCatalog(ServiceTidal)
	orchestrator := newTestOrchestrator(nil, tidal)

	result, err := orchestrator.Resolve(context.Background(), "https://open.spotify.com/track/abc")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !errors.Is(result.Items[0].Err, ErrUnsupported) {
		t.Errorf("item error = %v, want unsupported", result.Items[0].Err)
	}
}

func TestOrchestrator_Services(t *testing.T) {
	orchestrator := newTestOrchestrator(nil, newMockCatalog(ServiceYouTube), newMockCatalog(ServiceSpotify))

	got := orchestrator.Services()
	want := []Service{ServiceSpotify, ServiceYouTube}
	if len(got) != len(want) {
		t.Fatalf("Services() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Services()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestResult_ByService(t *testing.T) {
	result := &Result{Items: []ItemResult{
		{Equivalents: map[Service]ResourceRef{
			ServiceSpotify: {Service: ServiceSpotify, Kind: KindTrack, ID: "a"},
			ServiceTidal:   {Service: ServiceTidal, Kind: KindTrack, ID: "1"},
		}},
		{Equivalents: map[Service]ResourceRef{
			ServiceSpotify: {Service: ServiceSpotify, Kind: KindTrack, ID: "b"},
		}},
	}}

	grouped := result.ByService()
	if len(grouped[ServiceSpotify]) != 2 || grouped[ServiceSpotify][1].ID != "b" {
		t.Errorf("spotify group = %v", grouped[ServiceSpotify])
	}
	if len(grouped[ServiceTidal]) != 1 {
		t.Errorf("tidal group = %v", grouped[ServiceTidal])
	}
	if _, ok := grouped[ServiceYouTube]; ok {
		t.Error("youtube group should be absent")
	}
}

func TestItemResult_MarshalJSON(t *testing.T) {
	ref := ResourceRef{Service: ServiceSpotify, Kind: KindTrack, ID: "abc"}
	item := ItemResult{
		Source:      ref,
		Title:       "Song",
		Equivalents: map[Service]ResourceRef{ServiceSpotify: ref},
		Err:         &NotFoundError{Ref: ref},
	}

	data, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got["error_kind"] != "not_found" {
		t.Errorf("error_kind = %v, want not_found", got["error_kind"])
	}
	if got["title"] != "Song" {
		t.Errorf("title = %v", got["title"])
	}
	if _, ok := got["artist"]; ok {
		t.Error("empty artist should be omitted")
	}
}
