// Package spotify adapts the Spotify Web API to the core.Catalog interface.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"trackbridge/internal/core"
)

const (
	// AlbumTracksPageSize is the page size requested from the album tracks endpoint.
	AlbumTracksPageSize = 50
	// MaxTracksPerRequest is the id limit of the several-tracks endpoint.
	MaxTracksPerRequest = 50
	// MaxAlbumsPerRequest is the id limit of the several-albums endpoint.
	MaxAlbumsPerRequest = 20
)

type Client struct {
	config      *core.SpotifyConfig
	searchLimit int
	logger      *zap.Logger
	client      *spotify.Client
}

// NewClient builds a catalog client authenticated with the client credentials
// flow. Tokens are fetched and renewed by the oauth2 transport.
func NewClient(
	ctx context.Context,
	config *core.SpotifyConfig,
	searchLimit int,
	timeout time.Duration,
	logger *zap.Logger,
) *Client {
	credentials := &clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	httpClient := credentials.Client(ctx)
	httpClient.Timeout = timeout

	return newClient(config, searchLimit, logger, httpClient, spotify.WithRetry(true))
}

// NewUserClient builds a catalog client acting for a stored user token, so
// results follow the user's market. source is usually auth.StoredToken.TokenSource.
func NewUserClient(
	ctx context.Context,
	config *core.SpotifyConfig,
	source oauth2.TokenSource,
	searchLimit int,
	timeout time.Duration,
	logger *zap.Logger,
) *Client {
	httpClient := oauth2.NewClient(ctx, source)
	httpClient.Timeout = timeout

	return newClient(config, searchLimit, logger, httpClient, spotify.WithRetry(true))
}

// OAuthConfig returns the authorization code configuration used to renew
// stored user tokens.
func OAuthConfig(config *core.SpotifyConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: spotifyauth.TokenURL,
		},
	}
}

func newClient(
	config *core.SpotifyConfig,
	searchLimit int,
	logger *zap.Logger,
	httpClient *http.Client,
	opts ...spotify.ClientOption,
) *Client {
	if searchLimit < 1 {
		searchLimit = core.DefaultSearchLimit
	}
	return &Client{
		config:      config,
		searchLimit: searchLimit,
		logger:      logger,
		client:      spotify.New(httpClient, opts...),
	}
}

func (c *Client) Service() core.Service {
	return core.ServiceSpotify
}

func (c *Client) marketOptions() []spotify.RequestOption {
	if c.config.Market == "" {
		return nil
	}
	return []spotify.RequestOption{spotify.Market(c.config.Market)}
}

func (c *Client) SearchAlbums(ctx context.Context, query string) ([]core.Resource, error) {
	opts := append([]spotify.RequestOption{spotify.Limit(c.searchLimit)}, c.marketOptions()...)
	results, err := c.client.Search(ctx, query, spotify.SearchTypeAlbum, opts...)
	if err != nil {
		return nil, c.wrapError("search albums", err)
	}
	if results.Albums == nil {
		return nil, nil
	}

	albums := make([]core.Resource, 0, len(results.Albums.Albums))
	for i := range results.Albums.Albums {
		albums = append(albums, albumResource(&results.Albums.Albums[i], i))
	}

	// Search results carry no barcodes; fetch them so the barcode predicate can apply.
	c.enrichAlbums(ctx, albums)
	return albums, nil
}

func (c *Client) enrichAlbums(ctx context.Context, albums []core.Resource) {
	ids := lo.Map(albums, func(a core.Resource, _ int) spotify.ID { return spotify.ID(a.ID) })
	byID := make(map[string]map[string]string)

	for _, chunk := range lo.Chunk(ids, MaxAlbumsPerRequest) {
		full, err := c.client.GetAlbums(ctx, chunk, c.marketOptions()...)
		if err != nil {
			c.logger.Debug("Failed to fetch album barcodes", zap.Error(err))
			return
		}
		for _, album := range full {
			if album != nil {
				byID[string(album.ID)] = album.ExternalIDs
			}
		}
	}

	for i := range albums {
		if ids, ok := byID[albums[i].ID]; ok {
			albums[i].ExternalIDs = ids
		}
	}
}

func (c *Client) SearchTracks(ctx context.Context, query string) ([]core.Resource, error) {
	opts := append([]spotify.RequestOption{spotify.Limit(c.searchLimit)}, c.marketOptions()...)
	results, err := c.client.Search(ctx, query, spotify.SearchTypeTrack, opts...)
	if err != nil {
		return nil, c.wrapError("search tracks", err)
	}
	if results.Tracks == nil {
		return nil, nil
	}

	tracks := make([]core.Resource, 0, len(results.Tracks.Tracks))
	for i := range results.Tracks.Tracks {
		tracks = append(tracks, trackResource(&results.Tracks.Tracks[i], i))
	}
	return tracks, nil
}

func (c *Client) GetAlbum(ctx context.Context, id string) (*core.Resource, error) {
	album, err := c.client.GetAlbum(ctx, spotify.ID(id), c.marketOptions()...)
	if err != nil {
		return nil, c.wrapNotFound("get album", core.KindAlbum, id, err)
	}

	resource := albumResource(&album.SimpleAlbum, 0)
	resource.ExternalIDs = album.ExternalIDs
	return &resource, nil
}

func (c *Client) GetTrack(ctx context.Context, id string) (*core.Resource, error) {
	track, err := c.client.GetTrack(ctx, spotify.ID(id), c.marketOptions()...)
	if err != nil {
		return nil, c.wrapNotFound("get track", core.KindTrack, id, err)
	}

	resource := trackResource(track, 0)

	if resource.Album != nil {
		if album, err := c.GetAlbum(ctx, resource.Album.ID); err == nil {
			resource.Album = album
		} else {
			c.logger.Debug("Failed to fetch parent album", zap.String("albumID", resource.Album.ID), zap.Error(err))
		}
	}
	return &resource, nil
}

// ListAlbumItems pages through an album's tracks. The cursor is the offset
// of the next page.
func (c *Client) ListAlbumItems(ctx context.Context, albumID string, cursor core.Cursor) (*core.Page, error) {
	offset := 0
	if cursor != core.NoCursor {
		n, err := strconv.Atoi(string(cursor))
		if err != nil {
			return nil, fmt.Errorf("invalid spotify cursor %q: %w", cursor, err)
		}
		offset = n
	}

	opts := append([]spotify.RequestOption{
		spotify.Limit(AlbumTracksPageSize),
		spotify.Offset(offset),
	}, c.marketOptions()...)

	page, err := c.client.GetAlbumTracks(ctx, spotify.ID(albumID), opts...)
	if err != nil {
		return nil, c.wrapNotFound("list album tracks", core.KindAlbum, albumID, err)
	}

	items := c.fullTracks(ctx, page.Tracks)

	next := core.NoCursor
	if page.Next != "" && len(page.Tracks) > 0 {
		next = core.Cursor(strconv.Itoa(offset + len(page.Tracks)))
	}
	return &core.Page{Items: items, Next: next}, nil
}

// fullTracks looks up ISRCs for listed tracks, falling back to the listing
// data when the lookup fails.
func (c *Client) fullTracks(ctx context.Context, simple []spotify.SimpleTrack) []core.Resource {
	ids := lo.Map(simple, func(t spotify.SimpleTrack, _ int) spotify.ID { return t.ID })

	var full []*spotify.FullTrack
	for _, chunk := range lo.Chunk(ids, MaxTracksPerRequest) {
		tracks, err := c.client.GetTracks(ctx, chunk, c.marketOptions()...)
		if err != nil {
			c.logger.Debug("Failed to fetch full tracks for album listing", zap.Error(err))
			full = nil
			break
		}
		full = append(full, tracks...)
	}

	items := make([]core.Resource, len(simple))
	for i := range simple {
		if i < len(full) && full[i] != nil && full[i].ID == simple[i].ID {
			items[i] = trackResource(full[i], i)
			continue
		}
		items[i] = simpleTrackResource(&simple[i], i)
	}
	return items
}

func (c *Client) wrapError(op string, err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return core.NewTransportError(core.ServiceSpotify, op, err)
}

func (c *Client) wrapNotFound(op string, kind core.Kind, id string, err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) &&
		(apiErr.Status == http.StatusNotFound || apiErr.Status == http.StatusBadRequest) {
		return &core.NotFoundError{Ref: core.ResourceRef{Service: core.ServiceSpotify, Kind: kind, ID: id}}
	}
	return core.NewTransportError(core.ServiceSpotify, op, err)
}

func primaryArtist(artists []spotify.SimpleArtist) string {
	if len(artists) == 0 {
		return ""
	}
	return artists[0].Name
}

func albumResource(album *spotify.SimpleAlbum, rank int) core.Resource {
	return core.Resource{
		ResourceRef: core.ResourceRef{Service: core.ServiceSpotify, Kind: core.KindAlbum, ID: string(album.ID)},
		Title:       album.Name,
		Artist:      primaryArtist(album.Artists),
		Rank:        rank,
	}
}

func trackResource(track *spotify.FullTrack, rank int) core.Resource {
	resource := simpleTrackResource(&track.SimpleTrack, rank)
	resource.ExternalIDs = track.ExternalIDs

	if track.Album.ID != "" {
		album := albumResource(&track.Album, 0)
		resource.Album = &album
	}
	return resource
}

func simpleTrackResource(track *spotify.SimpleTrack, rank int) core.Resource {
	return core.Resource{
		ResourceRef: core.ResourceRef{Service: core.ServiceSpotify, Kind: core.KindTrack, ID: string(track.ID)},
		Title:       track.Name,
		Artist:      primaryArtist(track.Artists),
		Duration:    time.Duration(track.Duration) * time.Millisecond,
		Rank:        rank,
	}
}
