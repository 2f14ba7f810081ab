package musiclink

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"trackbridge/internal/core"
)

// extractors holds one extractor per catalog. The patterns compile at
// package init, so a bad pattern fails the process at startup.
var extractors = map[core.Service]Extractor{
	core.ServiceSpotify: NewSpotifyExtractor(),
	core.ServiceTidal:   NewTidalExtractor(),
	core.ServiceYouTube: NewYouTubeExtractor(),
}

// Extract returns the resource refs of one catalog found in text, in order of
// appearance and without deduplication. Shortlinks are not followed.
func Extract(service core.Service, text string) ([]core.ResourceRef, error) {
	extractor, ok := extractors[service]
	if !ok {
		return nil, fmt.Errorf("%w: no extractor for %q", core.ErrExtraction, service)
	}

	var refs []core.ResourceRef
	for _, link := range extractor.Scan(text) {
		if !link.IsShort() {
			refs = append(refs, link.Ref)
		}
	}
	return refs, nil
}

// Scan returns the links of every catalog in text, ordered by position.
func Scan(text string) []Link {
	var links []Link
	for _, service := range core.Services {
		links = append(links, extractors[service].Scan(text)...)
	}
	sort.SliceStable(links, func(i, j int) bool {
		return links[i].Offset < links[j].Offset
	})
	return links
}

// Manager extracts links from messages and expands shortlinks on the way.
type Manager struct {
	shortlinks *ShortlinkResolver
	logger     *zap.Logger
}

func NewManager(shortlinks *ShortlinkResolver, logger *zap.Logger) *Manager {
	return &Manager{
		shortlinks: shortlinks,
		logger:     logger,
	}
}

// Extract implements core.LinkExtractor. A shortlink that cannot be resolved,
// or resolves to something that is not a catalog link, is dropped.
func (m *Manager) Extract(ctx context.Context, text string) []core.ResourceRef {
	var refs []core.ResourceRef
	for _, link := range Scan(text) {
		if !link.IsShort() {
			refs = append(refs, link.Ref)
			continue
		}

		resolved, err := m.shortlinks.Resolve(ctx, link.ShortURL)
		if err != nil {
			m.logger.Warn("Failed to resolve shortlink, dropping it",
				zap.String("url", link.ShortURL),
				zap.Error(err))
			continue
		}

		found := false
		for _, expanded := range Scan(resolved) {
			if expanded.IsShort() {
				continue
			}
			refs = append(refs, expanded.Ref)
			found = true
			break
		}
		if !found {
			m.logger.Warn("Shortlink did not resolve to a catalog link",
				zap.String("url", link.ShortURL),
				zap.String("resolved", resolved))
		}
	}
	return refs
}
