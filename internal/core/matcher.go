package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"trackbridge/pkg/fuzzy"
)

// Strategy names the search that produced a match.
type Strategy string

const (
	// StrategyAlbumSearch matched an album via an "{album} {artist}" search.
	StrategyAlbumSearch Strategy = "album_search"
	// StrategyAlbumSearchTitleOnly matched an album via an album-title-only search.
	StrategyAlbumSearchTitleOnly Strategy = "album_search_title_only"
	// StrategyAlbumScoped matched a track inside an album found by "{album} {artist}".
	StrategyAlbumScoped Strategy = "album_scoped"
	// StrategyAlbumScopedTitleOnly matched a track inside an album found by title only.
	StrategyAlbumScopedTitleOnly Strategy = "album_scoped_title_only"
	// StrategyDirectTrack matched a track via a "{title} {artist}" search.
	StrategyDirectTrack Strategy = "direct_track"
)

// Match is the outcome of a successful search in a target catalog.
type Match struct {
	Ref      ResourceRef
	Strategy Strategy
}

type albumQuery struct {
	query    string
	strategy Strategy
	scoped   Strategy
}

type Matcher struct {
	normalizer    *fuzzy.Normalizer
	paginator     *Paginator
	tolerance     time.Duration
	maxExpansions int
	logger        *zap.Logger
}

func NewMatcher(paginator *Paginator, tolerance time.Duration, maxExpansions int, logger *zap.Logger) *Matcher {
	if maxExpansions < 1 {
		maxExpansions = DefaultMaxAlbumExpansions
	}
	return &Matcher{
		normalizer:    fuzzy.NewNormalizer(),
		paginator:     paginator,
		tolerance:     tolerance,
		maxExpansions: maxExpansions,
		logger:        logger,
	}
}

// AlbumsEqual holds when any barcode of a equals any barcode of b, or the
// normalized titles are equal.
func (m *Matcher) AlbumsEqual(a, b *Resource) bool {
	for _, ca := range a.Barcodes() {
		for _, cb := range b.Barcodes() {
			if fuzzy.BarcodesEqual(ca, cb) {
				return true
			}
		}
	}
	return m.normalizer.TitlesEqual(a.Title, b.Title)
}

// TracksEqual holds when both ISRCs are known and equal, or the durations are
// within tolerance and the normalized titles are equal.
func (m *Matcher) TracksEqual(a, b *Resource) bool {
	if ia, ib := a.ISRC(), b.ISRC(); ia != "" && ia == ib {
		return true
	}
	return fuzzy.WithinTolerance(a.Duration, b.Duration, m.tolerance) &&
		m.normalizer.TitlesEqual(a.Title, b.Title)
}

// Match searches target for the equivalent of source. It returns nil and no
// error when every strategy came back empty.
func (m *Matcher) Match(ctx context.Context, source *Resource, target Catalog) (*Match, error) {
	if source.Kind == KindAlbum {
		return m.matchAlbum(ctx, source, target)
	}
	return m.matchTrack(ctx, source, target)
}

func (m *Matcher) albumQueries(album, artist string) []albumQuery {
	album = m.normalizer.SearchTerm(album)
	if album == "" {
		return nil
	}

	var queries []albumQuery
	if artist != "" {
		queries = append(queries, albumQuery{
			query:    joinQuery(album, artist),
			strategy: StrategyAlbumSearch,
			scoped:   StrategyAlbumScoped,
		})
	}
	return append(queries, albumQuery{
		query:    album,
		strategy: StrategyAlbumSearchTitleOnly,
		scoped:   StrategyAlbumScopedTitleOnly,
	})
}

func (m *Matcher) matchAlbum(ctx context.Context, source *Resource, target Catalog) (*Match, error) {
	var lastErr error
	for _, q := range m.albumQueries(source.Title, source.Artist) {
		candidates, err := target.SearchAlbums(ctx, q.query)
		if err != nil {
			m.logger.Debug("Album search failed",
				zap.String("target", string(target.Service())),
				zap.String("query", q.query),
				zap.Error(err))
			lastErr = err
			continue
		}

		if found := m.pick(source, candidates, m.AlbumsEqual); found != nil {
			return &Match{Ref: found.ResourceRef, Strategy: q.strategy}, nil
		}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, lastErr
}

func (m *Matcher) matchTrack(ctx context.Context, source *Resource, target Catalog) (*Match, error) {
	if album := source.AlbumTitle(); album != "" {
		albumSource := &Resource{
			ResourceRef: ResourceRef{Service: source.Service, Kind: KindAlbum},
			Title:       album,
			Artist:      source.Artist,
		}
		if source.Album != nil {
			albumSource.ExternalIDs = source.Album.ExternalIDs
		}

		for _, q := range m.albumQueries(album, source.Artist) {
			match := m.matchWithinAlbums(ctx, source, albumSource, target, q)
			if match != nil {
				return match, nil
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
	}

	query := joinQuery(m.normalizer.SearchTerm(source.Title), source.Artist)
	if query == "" {
		return nil, nil
	}

	candidates, err := target.SearchTracks(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("track search %q: %w", query, err)
	}

	if found := m.pick(source, candidates, m.TracksEqual); found != nil {
		return &Match{Ref: found.ResourceRef, Strategy: StrategyDirectTrack}, nil
	}
	return nil, nil
}

// matchWithinAlbums lists the items of the first few albums that pass the
// album predicate and returns the first item passing the track predicate.
// Failures are logged and treated as no match so the next strategy runs.
func (m *Matcher) matchWithinAlbums(
	ctx context.Context,
	source, albumSource *Resource,
	target Catalog,
	q albumQuery,
) *Match {
	logger := m.logger.With(
		zap.String("target", string(target.Service())),
		zap.String("query", q.query),
	)

	candidates, err := target.SearchAlbums(ctx, q.query)
	if err != nil {
		logger.Debug("Album search failed", zap.Error(err))
		return nil
	}

	expanded := 0
	for i := range candidates {
		if expanded >= m.maxExpansions {
			break
		}
		if !m.AlbumsEqual(albumSource, &candidates[i]) {
			continue
		}
		expanded++

		items, err := m.paginator.CollectItems(ctx, target, candidates[i].ID)
		if err != nil {
			logger.Debug("Album listing failed",
				zap.String("albumID", candidates[i].ID),
				zap.Error(err))
			continue
		}

		if found := m.pick(source, items, m.TracksEqual); found != nil {
			return &Match{Ref: found.ResourceRef, Strategy: q.scoped}
		}
	}
	return nil
}

// pick returns the first candidate passing equal. A passing candidate credited
// to the same artist as source wins over earlier ones that are not.
func (m *Matcher) pick(source *Resource, candidates []Resource, equal func(a, b *Resource) bool) *Resource {
	artist := m.normalizer.NormalizeArtist(source.Artist)

	var first *Resource
	for i := range candidates {
		if !equal(source, &candidates[i]) {
			continue
		}
		if artist != "" && m.normalizer.NormalizeArtist(candidates[i].Artist) == artist {
			return &candidates[i]
		}
		if first == nil {
			first = &candidates[i]
		}
	}
	return first
}

func joinQuery(parts ...string) string {
	trimmed := lo.Map(parts, func(p string, _ int) string { return strings.TrimSpace(p) })
	return strings.Join(lo.Compact(trimmed), " ")
}
