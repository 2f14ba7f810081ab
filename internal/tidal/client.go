// Package tidal adapts the Tidal v2 JSON:API catalog to the core.Catalog interface.
package tidal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"trackbridge/internal/core"
	"trackbridge/pkg/iso8601"
)

const (
	// DefaultBaseURL is the Tidal v2 catalog API.
	DefaultBaseURL = "https://openapi.tidal.com/v2"
	// DefaultTokenURL issues client credentials tokens.
	DefaultTokenURL = "https://auth.tidal.com/v1/oauth2/token"

	mediaType = "application/vnd.api+json"

	typeAlbums  = "albums"
	typeTracks  = "tracks"
	typeArtists = "artists"
)

type Client struct {
	config      *core.TidalConfig
	baseURL     string
	searchLimit int
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewClient builds a catalog client authenticated with the client credentials flow.
func NewClient(
	ctx context.Context,
	config *core.TidalConfig,
	searchLimit int,
	timeout time.Duration,
	logger *zap.Logger,
) *Client {
	tokenURL := config.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	credentials := &clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     tokenURL,
	}

	httpClient := credentials.Client(ctx)
	httpClient.Timeout = timeout

	return newClient(config, searchLimit, httpClient, logger)
}

func newClient(config *core.TidalConfig, searchLimit int, httpClient *http.Client, logger *zap.Logger) *Client {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if searchLimit < 1 {
		searchLimit = core.DefaultSearchLimit
	}
	return &Client{
		config:      config,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		searchLimit: searchLimit,
		httpClient:  httpClient,
		logger:      logger,
	}
}

func (c *Client) Service() core.Service {
	return core.ServiceTidal
}

func (c *Client) SearchAlbums(ctx context.Context, query string) ([]core.Resource, error) {
	return c.search(ctx, query, typeAlbums, core.KindAlbum)
}

func (c *Client) SearchTracks(ctx context.Context, query string) ([]core.Resource, error) {
	return c.search(ctx, query, typeTracks, core.KindTrack)
}

func (c *Client) search(ctx context.Context, query, relationship string, kind core.Kind) ([]core.Resource, error) {
	path := "/searchResults/" + url.PathEscape(query) + "/relationships/" + relationship
	params := url.Values{"include": {relationship}}

	var doc document
	if err := c.get(ctx, "search "+relationship, path, params, &doc); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	ids, err := doc.primaryIdentifiers()
	if err != nil {
		return nil, core.NewTransportError(core.ServiceTidal, "search "+relationship, err)
	}

	included := doc.index()
	var out []core.Resource
	for _, id := range ids {
		if len(out) >= c.searchLimit {
			break
		}
		obj, ok := included[id.key()]
		if !ok {
			continue
		}
		resource := c.toResource(obj, kind, included)
		resource.Rank = len(out)
		out = append(out, resource)
	}
	return out, nil
}

func (c *Client) GetAlbum(ctx context.Context, id string) (*core.Resource, error) {
	var doc document
	params := url.Values{"include": {typeArtists}}
	if err := c.get(ctx, "get album", "/albums/"+url.PathEscape(id), params, &doc); err != nil {
		return nil, c.notFound(err, core.KindAlbum, id)
	}

	obj, err := doc.primaryObject()
	if err != nil {
		return nil, core.NewTransportError(core.ServiceTidal, "get album", err)
	}

	resource := c.toResource(obj, core.KindAlbum, doc.index())
	return &resource, nil
}

func (c *Client) GetTrack(ctx context.Context, id string) (*core.Resource, error) {
	var doc document
	params := url.Values{"include": {typeArtists + "," + typeAlbums}}
	if err := c.get(ctx, "get track", "/tracks/"+url.PathEscape(id), params, &doc); err != nil {
		return nil, c.notFound(err, core.KindTrack, id)
	}

	obj, err := doc.primaryObject()
	if err != nil {
		return nil, core.NewTransportError(core.ServiceTidal, "get track", err)
	}

	included := doc.index()
	resource := c.toResource(obj, core.KindTrack, included)

	if albums := obj.related(typeAlbums); len(albums) > 0 {
		if albumObj, ok := included[albums[0].key()]; ok {
			album := c.toResource(albumObj, core.KindAlbum, included)
			resource.Album = &album
		}
	}
	return &resource, nil
}

// ListAlbumItems returns one page of an album's tracks. The cursor is the
// opaque page[cursor] value from the previous response.
func (c *Client) ListAlbumItems(ctx context.Context, albumID string, cursor core.Cursor) (*core.Page, error) {
	params := url.Values{"include": {"items"}}
	if cursor != core.NoCursor {
		params.Set("page[cursor]", string(cursor))
	}

	var doc document
	path := "/albums/" + url.PathEscape(albumID) + "/relationships/items"
	if err := c.get(ctx, "list album items", path, params, &doc); err != nil {
		return nil, c.notFound(err, core.KindAlbum, albumID)
	}

	ids, err := doc.primaryIdentifiers()
	if err != nil {
		return nil, core.NewTransportError(core.ServiceTidal, "list album items", err)
	}

	included := doc.index()
	page := &core.Page{Next: core.Cursor(doc.Links.Meta.NextCursor)}
	for i, id := range ids {
		if id.Type != typeTracks {
			continue
		}
		obj, ok := included[id.key()]
		if !ok {
			c.logger.Debug("Album item missing from included resources", zap.String("trackID", id.ID))
			obj = resourceObject{ID: id.ID, Type: id.Type}
		}
		resource := c.toResource(obj, core.KindTrack, included)
		resource.Rank = i
		page.Items = append(page.Items, resource)
	}
	return page, nil
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, out *document) error {
	if params == nil {
		params = url.Values{}
	}
	if c.config.CountryCode != "" {
		params.Set("countryCode", c.config.CountryCode)
	}

	reqURL := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return core.NewTransportError(core.ServiceTidal, op, err)
	}
	req.Header.Set("Accept", mediaType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.NewTransportError(core.ServiceTidal, op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return core.NewTransportError(core.ServiceTidal, op, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return core.NewTransportError(core.ServiceTidal, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) notFound(err error, kind core.Kind, id string) error {
	if errors.Is(err, core.ErrNotFound) {
		return &core.NotFoundError{Ref: core.ResourceRef{Service: core.ServiceTidal, Kind: kind, ID: id}}
	}
	return err
}

// toResource converts a JSON:API resource object. The first related artist,
// when included, is the primary artist.
func (c *Client) toResource(obj resourceObject, kind core.Kind, included map[string]resourceObject) core.Resource {
	resource := core.Resource{
		ResourceRef: core.ResourceRef{Service: core.ServiceTidal, Kind: kind, ID: obj.ID},
		Title:       obj.Attributes.Title,
	}

	if v := strings.TrimSpace(obj.Attributes.Version); v != "" && !strings.Contains(resource.Title, v) {
		resource.Title = fmt.Sprintf("%s (%s)", resource.Title, v)
	}

	if artists := obj.related(typeArtists); len(artists) > 0 {
		if artist, ok := included[artists[0].key()]; ok {
			resource.Artist = artist.Attributes.Name
		}
	}

	if obj.Attributes.Duration != "" {
		d, err := iso8601.ParseDuration(obj.Attributes.Duration)
		if err != nil {
			c.logger.Debug("Ignoring unparsable duration",
				zap.String("id", obj.ID),
				zap.String("duration", obj.Attributes.Duration))
		} else {
			resource.Duration = d
		}
	}

	ids := map[string]string{}
	if obj.Attributes.ISRC != "" {
		ids[core.ExternalIDISRC] = obj.Attributes.ISRC
	}
	if obj.Attributes.BarcodeID != "" {
		ids[barcodeKind(obj.Attributes.BarcodeID)] = obj.Attributes.BarcodeID
	}
	if len(ids) > 0 {
		resource.ExternalIDs = ids
	}
	return resource
}

// barcodeKind tells UPC-A (12 digits) from EAN-13.
func barcodeKind(barcode string) string {
	if len(barcode) == 13 {
		return core.ExternalIDEAN
	}
	return core.ExternalIDUPC
}
