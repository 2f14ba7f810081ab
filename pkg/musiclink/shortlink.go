package musiclink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"trackbridge/internal/core"
)

// DefaultMaxHops bounds a shortlink redirect chain.
const DefaultMaxHops = 5

// ErrNoLocation is returned when a shortening host answers without a redirect target.
var ErrNoLocation = errors.New("response has no usable redirect")

// canonicalLinkRegex finds a catalog link inside an interstitial page.
var canonicalLinkRegex = regexp.MustCompile(
	`https://(?:open\.spotify\.com|(?:www\.|listen\.)?tidal\.com|(?:www\.|music\.)?youtube\.com)/[^\s"'<>\\]+`)

// ShortlinkResolver expands shortened links one observed hop at a time.
type ShortlinkResolver struct {
	client     *http.Client
	maxHops    int
	shortHosts map[string]bool
}

// ShortlinkOption configures a ShortlinkResolver.
type ShortlinkOption func(*ShortlinkResolver)

// WithHTTPClient replaces the outbound client. Redirect following is
// disabled on it regardless of its configuration.
func WithHTTPClient(client *http.Client) ShortlinkOption {
	return func(r *ShortlinkResolver) {
		c := *client
		c.CheckRedirect = func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		}
		r.client = &c
	}
}

// WithShortHosts adds hostnames treated as shortening domains.
func WithShortHosts(hosts ...string) ShortlinkOption {
	return func(r *ShortlinkResolver) {
		for _, h := range hosts {
			r.shortHosts[strings.ToLower(h)] = true
		}
	}
}

func NewShortlinkResolver(timeout time.Duration, maxHops int, opts ...ShortlinkOption) *ShortlinkResolver {
	if maxHops < 1 {
		maxHops = DefaultMaxHops
	}

	r := &ShortlinkResolver{
		client:  newHTTPClient(timeout),
		maxHops: maxHops,
		shortHosts: map[string]bool{
			SpotifyShortLinkDomain: true,
			SpotifyAppLinkDomain:   true,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsShortlink reports whether rawURL points at a shortening domain.
func (r *ShortlinkResolver) IsShortlink(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return r.shortHosts[strings.ToLower(u.Hostname())]
}

// Resolve follows shortURL until it leaves the shortening domains. When the
// hop bound is reached the last observed URL is returned without error.
func (r *ShortlinkResolver) Resolve(ctx context.Context, shortURL string) (string, error) {
	return r.resolve(ctx, shortURL, 0)
}

func (r *ShortlinkResolver) resolve(ctx context.Context, link string, depth int) (string, error) {
	if depth >= r.maxHops {
		return link, nil
	}

	next, err := r.hop(ctx, link)
	if err != nil {
		return "", err
	}

	if next != link && r.IsShortlink(next) {
		return r.resolve(ctx, next, depth+1)
	}
	return next, nil
}

// hop issues one GET and returns the URL it points to: the redirect target,
// a catalog link found in the page body, or link itself.
func (r *ShortlinkResolver) hop(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrTransport, err)
	}
	req.Header.Set("User-Agent", resolverUserAgent)
	req.Header.Set("Accept", commonAcceptHeader)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: get %s: %w", core.ErrTransport, link, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= http.StatusMultipleChoices && resp.StatusCode < http.StatusBadRequest:
		location, err := resp.Location()
		if err != nil {
			return "", fmt.Errorf("%w: %w: %s returned %d", core.ErrTransport, ErrNoLocation, link, resp.StatusCode)
		}
		return location.String(), nil

	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		if !r.IsShortlink(link) {
			return link, nil
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyReadSize))
		if err != nil {
			return "", fmt.Errorf("%w: read %s: %w", core.ErrTransport, link, err)
		}
		if found := canonicalLinkRegex.Find(body); found != nil {
			return strings.ReplaceAll(string(found), "&amp;", "&"), nil
		}
		return link, nil

	default:
		return "", fmt.Errorf("%w: %w: %s returned %d", core.ErrTransport, ErrNoLocation, link, resp.StatusCode)
	}
}
