// Package youtube adapts the YouTube Data API to the core.Catalog interface.
// Videos are matched like tracks; YouTube has no albums.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"trackbridge/internal/core"
	"trackbridge/pkg/iso8601"
)

const (
	// MusicCategoryID is the YouTube video category for music.
	MusicCategoryID = "10"
	// MaxVideosPerRequest is the id limit of the videos endpoint.
	MaxVideosPerRequest = 50
)

type Client struct {
	service     *yt.Service
	searchLimit int
	titles      core.TitleExtractor
	logger      *zap.Logger
}

// NewClient builds a client authenticated with an API key. titles may be nil,
// in which case video titles are split heuristically.
func NewClient(
	ctx context.Context,
	config *core.YouTubeConfig,
	searchLimit int,
	titles core.TitleExtractor,
	logger *zap.Logger,
	opts ...option.ClientOption,
) (*Client, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(config.APIKey)}, opts...)
	service, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	if searchLimit < 1 {
		searchLimit = core.DefaultSearchLimit
	}
	return &Client{
		service:     service,
		searchLimit: searchLimit,
		titles:      titles,
		logger:      logger,
	}, nil
}

func (c *Client) Service() core.Service {
	return core.ServiceYouTube
}

// SearchAlbums always returns no results so album-scoped strategies fall
// through to the video search.
func (c *Client) SearchAlbums(_ context.Context, _ string) ([]core.Resource, error) {
	return nil, nil
}

func (c *Client) SearchTracks(ctx context.Context, query string) ([]core.Resource, error) {
	resp, err := c.service.Search.List([]string{"id"}).
		Q(query).
		Type("video").
		VideoCategoryId(MusicCategoryID).
		MaxResults(int64(c.searchLimit)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, core.NewTransportError(core.ServiceYouTube, "search videos", err)
	}

	ids := lo.FilterMap(resp.Items, func(item *yt.SearchResult, _ int) (string, bool) {
		if item == nil || item.Id == nil || item.Id.VideoId == "" {
			return "", false
		}
		return item.Id.VideoId, true
	})
	if len(ids) == 0 {
		return nil, nil
	}

	// Search results carry no durations; the videos endpoint does.
	videos, err := c.videos(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]core.Resource, 0, len(videos))
	for _, video := range videos {
		resource := c.toResource(video)
		resource.Rank = len(out)
		out = append(out, resource)
	}
	return out, nil
}

func (c *Client) GetAlbum(_ context.Context, id string) (*core.Resource, error) {
	return nil, fmt.Errorf("%w: youtube has no album %s", core.ErrUnsupported, id)
}

func (c *Client) GetTrack(ctx context.Context, id string) (*core.Resource, error) {
	videos, err := c.videos(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, &core.NotFoundError{Ref: core.ResourceRef{Service: core.ServiceYouTube, Kind: core.KindVideo, ID: id}}
	}

	resource := c.toResource(videos[0])

	if c.titles != nil {
		title, artist, err := c.titles.ExtractSong(ctx, videos[0].Snippet.Title, videos[0].Snippet.ChannelTitle)
		switch {
		case err != nil:
			c.logger.Debug("Title extraction failed, keeping heuristic split", zap.String("videoID", id), zap.Error(err))
		case title != "":
			resource.Title = title
			if artist != "" {
				resource.Artist = artist
			}
		}
	}
	return &resource, nil
}

func (c *Client) ListAlbumItems(_ context.Context, albumID string, _ core.Cursor) (*core.Page, error) {
	return nil, fmt.Errorf("%w: youtube has no album %s", core.ErrUnsupported, albumID)
}

// videos fetches video details in request order, skipping unknown ids.
func (c *Client) videos(ctx context.Context, ids []string) ([]*yt.Video, error) {
	byID := make(map[string]*yt.Video, len(ids))
	for _, chunk := range lo.Chunk(ids, MaxVideosPerRequest) {
		resp, err := c.service.Videos.List([]string{"snippet", "contentDetails"}).
			Id(chunk...).
			Context(ctx).
			Do()
		if err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
				return nil, nil
			}
			return nil, core.NewTransportError(core.ServiceYouTube, "list videos", err)
		}
		for _, video := range resp.Items {
			if video != nil && video.Snippet != nil {
				byID[video.Id] = video
			}
		}
	}

	return lo.FilterMap(ids, func(id string, _ int) (*yt.Video, bool) {
		video, ok := byID[id]
		return video, ok
	}), nil
}

func (c *Client) toResource(video *yt.Video) core.Resource {
	title, artist := ParseTitle(video.Snippet.Title, video.Snippet.ChannelTitle)

	resource := core.Resource{
		ResourceRef: core.ResourceRef{Service: core.ServiceYouTube, Kind: core.KindVideo, ID: video.Id},
		Title:       title,
		Artist:      artist,
	}

	if video.ContentDetails != nil && video.ContentDetails.Duration != "" {
		d, err := iso8601.ParseDuration(video.ContentDetails.Duration)
		if err != nil {
			c.logger.Debug("Ignoring unparsable duration",
				zap.String("videoID", video.Id),
				zap.String("duration", video.ContentDetails.Duration))
		} else {
			resource.Duration = d
		}
	}
	return resource
}
