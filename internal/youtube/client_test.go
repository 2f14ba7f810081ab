package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"trackbridge/internal/core"
)

type mockTitleExtractor struct {
	title  string
	artist string
	err    error
}

func (m mockTitleExtractor) ExtractSong(_ context.Context, _, _ string) (string, string, error) {
	return m.title, m.artist, m.err
}

func newTestClient(t *testing.T, titles core.TitleExtractor, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), &core.YouTubeConfig{APIKey: "key"}, 5, titles, zap.NewNop(),
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func videosHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/youtube/v3/search":
			if r.URL.Query().Get("videoCategoryId") != MusicCategoryID {
				t.Errorf("videoCategoryId = %q", r.URL.Query().Get("videoCategoryId"))
			}
			writeJSON(w, `{"items": [
				{"id": {"kind": "youtube#video", "videoId": "bbbbbbbbbbb"}},
				{"id": {"kind": "youtube#video", "videoId": "aaaaaaaaaaa"}}
			]}`)
		case "/youtube/v3/videos":
			ids := strings.Join(r.URL.Query()["id"], ",")
			var items []string
			if strings.Contains(ids, "aaaaaaaaaaa") {
				items = append(items, `{"id": "aaaaaaaaaaa",
					"snippet": {"title": "Band - Song (Official Video)", "channelTitle": "BandVEVO"},
					"contentDetails": {"duration": "PT3M20S"}}`)
			}
			if strings.Contains(ids, "bbbbbbbbbbb") {
				items = append(items, `{"id": "bbbbbbbbbbb",
					"snippet": {"title": "Song", "channelTitle": "Band - Topic"},
					"contentDetails": {"duration": "PT3M21S"}}`)
			}
			writeJSON(w, `{"items": [`+strings.Join(items, ",")+`]}`)
		default:
			http.NotFound(w, r)
		}
	}
}

func TestClient_SearchTracks(t *testing.T) {
	client := newTestClient(t, nil, videosHandler(t))

	videos, err := client.SearchTracks(context.Background(), "Song Band")
	if err != nil {
		t.Fatalf("SearchTracks() error = %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("SearchTracks() = %d videos, want 2", len(videos))
	}

	if videos[0].ID != "bbbbbbbbbbb" || videos[0].Rank != 0 {
		t.Errorf("videos[0] = %+v, want search order kept", videos[0])
	}
	if videos[1].Title != "Song" || videos[1].Artist != "Band" {
		t.Errorf("videos[1] title/artist = %q/%q", videos[1].Title, videos[1].Artist)
	}
	if videos[1].Duration != 200*time.Second {
		t.Errorf("videos[1] duration = %v", videos[1].Duration)
	}
	if videos[1].Kind != core.KindVideo {
		t.Errorf("videos[1] kind = %q", videos[1].Kind)
	}
}

func TestClient_GetTrack(t *testing.T) {
	client := newTestClient(t, nil, videosHandler(t))

	video, err := client.GetTrack(context.Background(), "aaaaaaaaaaa")
	if err != nil {
		t.Fatalf("GetTrack() error = %v", err)
	}
	if video.Title != "Song" || video.Artist != "Band" {
		t.Errorf("GetTrack() title/artist = %q/%q", video.Title, video.Artist)
	}
	if video.Album != nil {
		t.Error("videos have no album")
	}
}

func TestClient_GetTrackWithTitleExtractor(t *testing.T) {
	titles := mockTitleExtractor{title: "Song", artist: "The Band"}
	client := newTestClient(t, titles, videosHandler(t))

	video, err := client.GetTrack(context.Background(), "aaaaaaaaaaa")
	if err != nil {
		t.Fatalf("GetTrack() error = %v", err)
	}
	if video.Artist != "The Band" {
		t.Errorf("GetTrack() artist = %q, want extractor result", video.Artist)
	}
}

func TestClient_GetTrackExtractorFailureKeepsHeuristic(t *testing.T) {
	titles := mockTitleExtractor{err: errors.New("rate limited")}
	client := newTestClient(t, titles, videosHandler(t))

	video, err := client.GetTrack(context.Background(), "aaaaaaaaaaa")
	if err != nil {
		t.Fatalf("GetTrack() error = %v", err)
	}
	if video.Title != "Song" || video.Artist != "Band" {
		t.Errorf("GetTrack() title/artist = %q/%q", video.Title, video.Artist)
	}
}

func TestClient_GetTrackNotFound(t *testing.T) {
	client := newTestClient(t, nil, videosHandler(t))

	_, err := client.GetTrack(context.Background(), "zzzzzzzzzzz")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetTrack() error = %v, want not found", err)
	}
}

func TestClient_AlbumsUnsupported(t *testing.T) {
	client := newTestClient(t, nil, videosHandler(t))

	albums, err := client.SearchAlbums(context.Background(), "anything")
	if err != nil || albums != nil {
		t.Errorf("SearchAlbums() = %v, %v; want no results", albums, err)
	}
	if _, err := client.GetAlbum(context.Background(), "x"); !errors.Is(err, core.ErrUnsupported) {
		t.Errorf("GetAlbum() error = %v, want unsupported", err)
	}
	if _, err := client.ListAlbumItems(context.Background(), "x", core.NoCursor); !errors.Is(err, core.ErrUnsupported) {
		t.Errorf("ListAlbumItems() error = %v, want unsupported", err)
	}
}

func TestClient_ServerErrorIsTransport(t *testing.T) {
	client := newTestClient(t, nil, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		writeJSON(w, `{"error": {"code": 403, "message": "quota exceeded"}}`)
	})

	_, err := client.SearchTracks(context.Background(), "Song")
	if !errors.Is(err, core.ErrTransport) {
		t.Errorf("SearchTracks() error = %v, want transport error", err)
	}
}
