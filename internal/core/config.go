package core

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// DefaultMaxShortlinkHops bounds shortlink redirect chains.
	DefaultMaxShortlinkHops = 5
	// DefaultPageDelay is the pause between two page requests of one listing.
	DefaultPageDelay = 200 * time.Millisecond
	// DefaultDurationTolerance is the largest duration difference two tracks may have.
	DefaultDurationTolerance = 2 * time.Second
	// DefaultWorkers is the number of resources resolved concurrently per message.
	DefaultWorkers = 3
	// DefaultMaxPages bounds a single album listing.
	DefaultMaxPages = 200
	// DefaultSearchLimit is the number of search results requested per query.
	DefaultSearchLimit = 10
	// DefaultHTTPTimeout is the outbound request timeout for every catalog client.
	DefaultHTTPTimeout = 10 * time.Second
	// DefaultMaxAlbumExpansions bounds how many matching albums are listed per query.
	DefaultMaxAlbumExpansions = 2
)

type Config struct {
	Spotify  SpotifyConfig
	Tidal    TidalConfig
	YouTube  YouTubeConfig
	LLM      LLMConfig
	Server   ServerConfig
	Log      LogConfig
	Resolver ResolverConfig
	Auth     AuthConfig
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string `validate:"required_with=ClientID"`
	Market       string `validate:"omitempty,len=2"`
	// UserID selects a stored user token; when empty the client credentials flow is used.
	UserID string
}

// Enabled reports whether credentials were supplied.
func (c SpotifyConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type TidalConfig struct {
	ClientID     string
	ClientSecret string `validate:"required_with=ClientID"`
	CountryCode  string `validate:"omitempty,len=2"`
	BaseURL      string `validate:"omitempty,url"`
	TokenURL     string `validate:"omitempty,url"`
}

// Enabled reports whether credentials were supplied.
func (c TidalConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type YouTubeConfig struct {
	APIKey string
}

// Enabled reports whether an API key was supplied.
func (c YouTubeConfig) Enabled() bool {
	return c.APIKey != ""
}

type LLMConfig struct {
	Provider string `validate:"omitempty,oneof=openai anthropic none"`
	Model    string
	APIKey   string `validate:"required_if=Provider openai,required_if=Provider anthropic"`
	BaseURL  string `validate:"omitempty,url"`
}

type ServerConfig struct {
	Host         string
	Port         int           `validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `validate:"min=0"`
	WriteTimeout time.Duration `validate:"min=0"`
	// RequestsPerMinute limits resolve calls per caller; 0 disables the limit.
	RequestsPerMinute int `validate:"min=0"`
	// DedupCapacity is the number of message ids remembered for redelivery suppression.
	DedupCapacity int `validate:"min=1"`
}

type AuthConfig struct {
	// TokenDir holds stored user tokens, one JSON file per user and service.
	TokenDir string
}

type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string
}

type ResolverConfig struct {
	MaxShortlinkHops   int           `validate:"min=1"`
	PageDelay          time.Duration `validate:"min=0"`
	DurationTolerance  time.Duration `validate:"min=0"`
	Workers            int           `validate:"min=1"`
	MaxPages           int           `validate:"min=1"`
	SearchLimit        int           `validate:"min=1,max=50"`
	HTTPTimeout        time.Duration `validate:"min=0"`
	MaxAlbumExpansions int           `validate:"min=1"`
}

func DefaultConfig() *Config {
	return &Config{
		Spotify: SpotifyConfig{
			Market: "US",
		},
		Tidal: TidalConfig{
			CountryCode: "US",
		},
		LLM: LLMConfig{
			Provider: "none",
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      60 * time.Second,
			RequestsPerMinute: 30,
			DedupCapacity:     10000,
		},
		Auth: AuthConfig{
			TokenDir: "tokens",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Resolver: ResolverConfig{
			MaxShortlinkHops:   DefaultMaxShortlinkHops,
			PageDelay:          DefaultPageDelay,
			DurationTolerance:  DefaultDurationTolerance,
			Workers:            DefaultWorkers,
			MaxPages:           DefaultMaxPages,
			SearchLimit:        DefaultSearchLimit,
			HTTPTimeout:        DefaultHTTPTimeout,
			MaxAlbumExpansions: DefaultMaxAlbumExpansions,
		},
	}
}

// Validate checks field constraints and that at least one catalog is configured.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if len(c.EnabledServices()) == 0 {
		return fmt.Errorf("invalid configuration: no catalog credentials configured")
	}

	if c.Spotify.UserID != "" && c.Auth.TokenDir == "" {
		return fmt.Errorf("invalid configuration: spotify user %q needs a token directory", c.Spotify.UserID)
	}

	return nil
}

// EnabledServices returns the catalogs with credentials, in Services order.
func (c *Config) EnabledServices() []Service {
	var out []Service
	if c.Spotify.Enabled() {
		out = append(out, ServiceSpotify)
	}
	if c.Tidal.Enabled() {
		out = append(out, ServiceTidal)
	}
	if c.YouTube.Enabled() {
		out = append(out, ServiceYouTube)
	}
	return out
}
