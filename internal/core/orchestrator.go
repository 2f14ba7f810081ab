package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ItemResult is the resolution of one link found in a message.
type ItemResult struct {
	Source ResourceRef
	Title  string
	Artist string
	// Equivalents holds the matched ref per catalog, including the source itself.
	Equivalents map[Service]ResourceRef
	// Err aggregates hydration and matching failures. An item with an error
	// may still carry partial equivalents.
	Err error
}

// MarshalJSON renders Err as its message and kind.
func (i ItemResult) MarshalJSON() ([]byte, error) {
	out := struct {
		Source      ResourceRef             `json:"source"`
		Title       string                  `json:"title,omitempty"`
		Artist      string                  `json:"artist,omitempty"`
		Equivalents map[Service]ResourceRef `json:"equivalents"`
		Error       string                  `json:"error,omitempty"`
		ErrorKind   string                  `json:"error_kind,omitempty"`
	}{
		Source:      i.Source,
		Title:       i.Title,
		Artist:      i.Artist,
		Equivalents: i.Equivalents,
	}
	if i.Err != nil {
		out.Error = i.Err.Error()
		out.ErrorKind = ErrorKind(i.Err)
	}
	return json.Marshal(out)
}

// Result is the outcome of resolving a whole message.
type Result struct {
	ID    string       `json:"id"`
	Items []ItemResult `json:"items"`
}

// ByService groups every known ref by catalog, preserving message order.
func (r *Result) ByService() map[Service][]ResourceRef {
	out := make(map[Service][]ResourceRef)
	for _, item := range r.Items {
		for _, service := range Services {
			if ref, ok := item.Equivalents[service]; ok {
				out[service] = append(out[service], ref)
			}
		}
	}
	return out
}

type Orchestrator struct {
	extractor LinkExtractor
	catalogs  map[Service]Catalog
	matcher   *Matcher
	paginator *Paginator
	workers   int
	recorder  Recorder
	logger    *zap.Logger
}

func NewOrchestrator(
	extractor LinkExtractor,
	catalogs []Catalog,
	matcher *Matcher,
	paginator *Paginator,
	workers int,
	recorder Recorder,
	logger *zap.Logger,
) *Orchestrator {
	if workers < 1 {
		workers = DefaultWorkers
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Orchestrator{
		extractor: extractor,
		catalogs:  lo.KeyBy(catalogs, func(c Catalog) Service { return c.Service() }),
		matcher:   matcher,
		paginator: paginator,
		workers:   workers,
		recorder:  recorder,
		logger:    logger,
	}
}

// Services returns the configured catalogs in stable order.
func (o *Orchestrator) Services() []Service {
	return lo.Filter(Services, func(s Service, _ int) bool {
		_, ok := o.catalogs[s]
		return ok
	})
}

// Resolve extracts every link from text and resolves each one against all
// other configured catalogs. Failures are isolated per link and reported in
// the item; the returned error is only set when ctx ends early.
func (o *Orchestrator) Resolve(ctx context.Context, text string) (*Result, error) {
	start := time.Now()
	refs := o.extractor.Extract(ctx, text)

	result := &Result{
		ID:    uuid.NewString(),
		Items: make([]ItemResult, len(refs)),
	}

	o.logger.Debug("Resolving message",
		zap.String("resolutionID", result.ID),
		zap.Int("links", len(refs)),
	)

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, ref := range refs {
		g.Go(func() error {
			result.Items[i] = o.ResolveRef(ctx, ref)
			return nil
		})
	}
	_ = g.Wait()

	o.recorder.RecordResolution(len(refs), time.Since(start))

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// ResolveRef hydrates ref in its own catalog and matches it in every other one.
func (o *Orchestrator) ResolveRef(ctx context.Context, ref ResourceRef) ItemResult {
	item := ItemResult{
		Source:      ref,
		Equivalents: map[Service]ResourceRef{ref.Service: ref},
	}

	logger := o.logger.With(
		zap.String("service", string(ref.Service)),
		zap.String("kind", string(ref.Kind)),
		zap.String("id", ref.ID),
	)

	source, ok := o.catalogs[ref.Service]
	if !ok {
		item.Err = fmt.Errorf("%w: %s is not configured", ErrUnsupported, ref.Service)
		logger.Warn("Skipping link for unconfigured catalog")
		o.recorder.RecordError("hydrate", ErrorKind(item.Err))
		return item
	}

	hydrated, err := o.hydrate(ctx, source, ref)
	if err != nil {
		item.Err = err
		logger.Warn("Failed to hydrate resource", zap.Error(err))
		o.recorder.RecordError("hydrate", ErrorKind(err))
		return item
	}
	item.Title = hydrated.Title
	item.Artist = hydrated.Artist

	var errs []error
	for _, service := range o.Services() {
		if service == ref.Service {
			continue
		}

		match, err := o.matcher.Match(ctx, hydrated, o.catalogs[service])
		if err != nil {
			errs = append(errs, fmt.Errorf("match on %s: %w", service, err))
			logger.Warn("Failed to match resource",
				zap.String("target", string(service)),
				zap.Error(err))
			o.recorder.RecordError("match", ErrorKind(err))
			continue
		}

		if match == nil {
			logger.Info("No match found",
				zap.String("target", string(service)),
				zap.String("title", hydrated.Title),
				zap.String("artist", hydrated.Artist))
			o.recorder.RecordNoMatch(ref.Service, service)
			continue
		}

		logger.Debug("Matched resource",
			zap.String("target", string(service)),
			zap.String("match", match.Ref.String()),
			zap.String("strategy", string(match.Strategy)))
		o.recorder.RecordMatch(ref.Service, service, match.Strategy)
		item.Equivalents[service] = match.Ref
	}

	item.Err = errors.Join(errs...)
	return item
}

func (o *Orchestrator) hydrate(ctx context.Context, catalog Catalog, ref ResourceRef) (*Resource, error) {
	var (
		resource *Resource
		err      error
	)
	if ref.Kind == KindAlbum {
		resource, err = catalog.GetAlbum(ctx, ref.ID)
	} else {
		resource, err = catalog.GetTrack(ctx, ref.ID)
	}
	if err != nil {
		return nil, err
	}
	if resource == nil {
		return nil, &NotFoundError{Ref: ref}
	}
	return resource, nil
}

// Playable returns, per catalog, the track-like refs an action should be
// applied to. Albums are expanded into their tracks. An album whose listing
// fails is kept as a single opaque ref.
func (o *Orchestrator) Playable(ctx context.Context, result *Result) map[Service][]ResourceRef {
	out := make(map[Service][]ResourceRef)
	for service, refs := range result.ByService() {
		for _, ref := range refs {
			if ref.Kind != KindAlbum {
				out[service] = append(out[service], ref)
				continue
			}
			out[service] = append(out[service], o.expandAlbum(ctx, ref)...)
		}
	}
	return out
}

func (o *Orchestrator) expandAlbum(ctx context.Context, ref ResourceRef) []ResourceRef {
	catalog, ok := o.catalogs[ref.Service]
	if !ok {
		return []ResourceRef{ref}
	}

	items, err := o.paginator.CollectItems(ctx, catalog, ref.ID)
	if err != nil {
		o.logger.Warn("Failed to expand album, keeping it as a single item",
			zap.String("service", string(ref.Service)),
			zap.String("id", ref.ID),
			zap.Error(err))
		o.recorder.RecordError("paginate", ErrorKind(err))
		return []ResourceRef{ref}
	}

	return lo.Map(items, func(r Resource, _ int) ResourceRef { return r.ResourceRef })
}
