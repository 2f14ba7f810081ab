package main

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"trackbridge/internal/auth"
	"trackbridge/internal/core"
	"trackbridge/internal/llm"
	"trackbridge/internal/spotify"
	"trackbridge/internal/tidal"
	"trackbridge/internal/youtube"
	"trackbridge/pkg/musiclink"
)

// buildOrchestrator wires every configured catalog into one resolver.
func buildOrchestrator(ctx context.Context, cfg *core.Config, recorder core.Recorder) (*core.Orchestrator, error) {
	catalogs, err := buildCatalogs(ctx, cfg)
	if err != nil {
		return nil, err
	}

	shortlinks := musiclink.NewShortlinkResolver(cfg.Resolver.HTTPTimeout, cfg.Resolver.MaxShortlinkHops)
	extractor := musiclink.NewManager(shortlinks, logger.Named("musiclink"))

	paginator := core.NewPaginator(cfg.Resolver.PageDelay, cfg.Resolver.MaxPages, recorder, logger.Named("paginator"))
	matcher := core.NewMatcher(paginator, cfg.Resolver.DurationTolerance, cfg.Resolver.MaxAlbumExpansions,
		logger.Named("matcher"))

	orchestrator := core.NewOrchestrator(extractor, catalogs, matcher, paginator, cfg.Resolver.Workers, recorder,
		logger.Named("orchestrator"))

	logger.Info("Resolver ready",
		zap.Strings("services", lo.Map(orchestrator.Services(), func(s core.Service, _ int) string { return string(s) })),
		zap.Int("workers", cfg.Resolver.Workers))
	return orchestrator, nil
}

func buildCatalogs(ctx context.Context, cfg *core.Config) ([]core.Catalog, error) {
	var catalogs []core.Catalog
	limit := cfg.Resolver.SearchLimit
	timeout := cfg.Resolver.HTTPTimeout

	if cfg.Spotify.Enabled() {
		client, err := buildSpotifyClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		catalogs = append(catalogs, client)
	}

	if cfg.Tidal.Enabled() {
		catalogs = append(catalogs, tidal.NewClient(ctx, &cfg.Tidal, limit, timeout, logger.Named("tidal")))
	}

	if cfg.YouTube.Enabled() {
		titles, err := createTitleExtractor(cfg)
		if err != nil {
			return nil, err
		}
		client, err := youtube.NewClient(ctx, &cfg.YouTube, limit, titles, logger.Named("youtube"))
		if err != nil {
			return nil, err
		}
		catalogs = append(catalogs, client)
	}

	return catalogs, nil
}

// buildSpotifyClient acts for a stored user token when a user is configured,
// otherwise it uses the client credentials flow.
func buildSpotifyClient(ctx context.Context, cfg *core.Config) (*spotify.Client, error) {
	limit := cfg.Resolver.SearchLimit
	timeout := cfg.Resolver.HTTPTimeout

	if cfg.Spotify.UserID == "" {
		return spotify.NewClient(ctx, &cfg.Spotify, limit, timeout, logger.Named("spotify")), nil
	}

	tokens := auth.NewFileStore(cfg.Auth.TokenDir)
	token, err := tokens.Load(ctx, cfg.Spotify.UserID, core.ServiceSpotify)
	if err != nil {
		return nil, fmt.Errorf("failed to load Spotify token: %w", err)
	}
	if !token.Refreshable() {
		logger.Warn("Stored Spotify token cannot be refreshed",
			zap.String("userID", token.UserID),
			zap.Time("expiry", token.Expiry))
	}

	source := token.TokenSource(ctx, spotify.OAuthConfig(&cfg.Spotify), func(renewed *auth.StoredToken) {
		if err := tokens.Save(context.WithoutCancel(ctx), renewed); err != nil {
			logger.Error("Failed to store renewed Spotify token", zap.Error(err))
		}
	})
	return spotify.NewUserClient(ctx, &cfg.Spotify, source, limit, timeout, logger.Named("spotify")), nil
}

// createTitleExtractor returns nil when no LLM is configured so video
// titles are split heuristically.
func createTitleExtractor(cfg *core.Config) (core.TitleExtractor, error) {
	provider, err := llm.NewProvider(&cfg.LLM, logger.Named("llm"))
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}
	if !provider.Enabled() {
		return nil, nil
	}
	return provider, nil
}
