// Package llm splits free-form video titles into song title and artist with
// a hosted language model.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"trackbridge/internal/core"
)

// ErrNotConfigured is returned by the noop provider.
var ErrNotConfigured = errors.New("LLM provider not configured")

// ErrNoSong is returned when the model could not find a song in the title.
var ErrNoSong = errors.New("no song information found")

// Completer sends one system/user prompt pair and returns the raw reply.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Provider implements core.TitleExtractor on top of a Completer.
type Provider struct {
	config *core.LLMConfig
	logger *zap.Logger
	client Completer
}

type songExtractResponse struct {
	Found  bool   `json:"found"`
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func NewProvider(config *core.LLMConfig, logger *zap.Logger) (*Provider, error) {
	var client Completer
	var err error

	switch config.Provider {
	case "openai":
		client, err = NewOpenAIClient(config, logger)
	case "anthropic":
		client, err = NewAnthropicClient(config, logger)
	case "none", "":
		return &Provider{
			config: config,
			logger: logger,
			client: &NoOpClient{},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", config.Provider, err)
	}

	return &Provider{
		config: config,
		logger: logger,
		client: client,
	}, nil
}

// Enabled reports whether a real model backs the provider.
func (p *Provider) Enabled() bool {
	_, noop := p.client.(*NoOpClient)
	return !noop
}

// ExtractSong implements core.TitleExtractor.
func (p *Provider) ExtractSong(ctx context.Context, rawTitle, uploader string) (string, string, error) {
	if strings.TrimSpace(rawTitle) == "" {
		return "", "", fmt.Errorf("empty title provided")
	}

	content, err := p.client.Complete(ctx, extractSongPrompt, buildUserPrompt(rawTitle, uploader))
	if err != nil {
		return "", "", err
	}

	title, artist, err := parseSongResponse(content)
	if err != nil {
		p.logger.Debug("Failed to extract song from title",
			zap.String("rawTitle", rawTitle),
			zap.String("content", content),
			zap.Error(err))
		return "", "", err
	}

	p.logger.Debug("Song extracted from title",
		zap.String("rawTitle", rawTitle),
		zap.String("title", title),
		zap.String("artist", artist))
	return title, artist, nil
}

func buildUserPrompt(rawTitle, uploader string) string {
	if uploader == "" {
		return fmt.Sprintf("Video title: %q", rawTitle)
	}
	return fmt.Sprintf("Video title: %q\nChannel: %q", rawTitle, uploader)
}

// parseSongResponse decodes the model reply. Models sometimes wrap JSON in a
// markdown code fence, which is stripped first.
func parseSongResponse(content string) (string, string, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var response songExtractResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &response); err != nil {
		return "", "", fmt.Errorf("failed to parse LLM response: %w", err)
	}
	if !response.Found || strings.TrimSpace(response.Title) == "" {
		return "", "", fmt.Errorf("%w: %s", ErrNoSong, response.Reason)
	}
	return strings.TrimSpace(response.Title), strings.TrimSpace(response.Artist), nil
}

type NoOpClient struct{}

func (n *NoOpClient) Complete(_ context.Context, _, _ string) (string, error) {
	return "", ErrNotConfigured
}

const extractSongPrompt = `You are a music expert helping to identify songs from video titles.

Your task is to split a video title into the song title and the performing artist. The channel name may help identify the artist.

Respond with a JSON object in this exact format:
{
  "found": true/false,
  "title": "Song Title",
  "artist": "Artist Name",
  "reason": "Explanation of why song was/wasn't found"
}

Rules:
1. Set "found" to true only if the video is a specific song
2. Drop decorations like "Official Video", "Lyrics", "HD" or "4K"
3. Keep version markers that change the recording, like "Live" or "Remix"
4. Do not invent information that is not in the title or channel name

Examples of when to set found=true:
- "Queen - Bohemian Rhapsody (Official Video Remastered)"
- "Daft Punk - Get Lucky (Official Audio) ft. Pharrell Williams"

Examples of when to set found=false:
- "Top 50 songs of 2023"
- "How to play guitar, lesson 1"`
