package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Paginator walks a catalog's album listing page by page. Only one listing
// per catalog is in flight at a time, and consecutive page requests are
// separated by a fixed delay.
type Paginator struct {
	delay    time.Duration
	maxPages int
	recorder Recorder
	logger   *zap.Logger

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	slots map[Service]*semaphore.Weighted
}

func NewPaginator(delay time.Duration, maxPages int, recorder Recorder, logger *zap.Logger) *Paginator {
	if maxPages < 1 {
		maxPages = DefaultMaxPages
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Paginator{
		delay:    delay,
		maxPages: maxPages,
		recorder: recorder,
		logger:   logger,
		sleep:    sleepContext,
		slots:    make(map[Service]*semaphore.Weighted),
	}
}

// CollectAll returns the ids of every item of an album in listing order.
func (p *Paginator) CollectAll(ctx context.Context, catalog Catalog, albumID string) ([]string, error) {
	items, err := p.CollectItems(ctx, catalog, albumID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	return ids, nil
}

// CollectItems returns every item of an album in listing order. A failure on
// any page fails the whole call and nothing collected so far is returned.
func (p *Paginator) CollectItems(ctx context.Context, catalog Catalog, albumID string) ([]Resource, error) {
	slot := p.slot(catalog.Service())
	if err := slot.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer slot.Release(1)

	logger := p.logger.With(
		zap.String("service", string(catalog.Service())),
		zap.String("albumID", albumID),
	)

	var (
		items  []Resource
		cursor = NoCursor
	)
	for page := 0; ; page++ {
		if page >= p.maxPages {
			return nil, fmt.Errorf("%w: album %s exceeds %d pages", ErrTooManyPages, albumID, p.maxPages)
		}

		if page > 0 {
			logger.Debug("Waiting before next page", zap.Int("page", page), zap.Duration("delay", p.delay))
			if err := p.sleep(ctx, p.delay); err != nil {
				return nil, err
			}
		}

		result, err := catalog.ListAlbumItems(ctx, albumID, cursor)
		if err != nil {
			return nil, fmt.Errorf("list album %s page %d: %w", albumID, page, err)
		}
		p.recorder.RecordPage(catalog.Service())

		items = append(items, result.Items...)
		if result.Next == NoCursor {
			break
		}
		cursor = result.Next
	}

	logger.Debug("Collected album items", zap.Int("items", len(items)))
	return items, nil
}

func (p *Paginator) slot(service Service) *semaphore.Weighted {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.slots[service]
	if !ok {
		s = semaphore.NewWeighted(1)
		p.slots[service] = s
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
