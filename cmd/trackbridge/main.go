// Package main provides the trackbridge CLI: an HTTP service and a one-shot
// command that resolve catalog links into their equivalents elsewhere.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"trackbridge/internal/core"
)

const envPrefix = "TRACKBRIDGE"

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "trackbridge",
	Short: "trackbridge - cross-catalog music link resolver",
	Long: `trackbridge finds Spotify, Tidal and YouTube links in free text and resolves
each one to the same track or album in every other configured catalog.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if err := config.Validate(); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		return nil
	},
	RunE: runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := core.DefaultConfig()
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&cfgFile, "config", "", "config file (default is .env)")
	flags.String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	flags.String("log-format", defaults.Log.Format, "log format (json, console)")

	flags.String("spotify-client-id", "", "Spotify client ID")
	flags.String("spotify-client-secret", "", "Spotify client secret")
	flags.String("spotify-market", defaults.Spotify.Market, "Spotify market (ISO 3166-1 alpha-2)")
	flags.String("spotify-user-id", "", "Act for the stored Spotify token of this user")

	flags.String("tidal-client-id", "", "Tidal client ID")
	flags.String("tidal-client-secret", "", "Tidal client secret")
	flags.String("tidal-country-code", defaults.Tidal.CountryCode, "Tidal country code (ISO 3166-1 alpha-2)")
	flags.String("tidal-base-url", "", "Tidal API base URL override")
	flags.String("tidal-token-url", "", "Tidal token endpoint override")

	flags.String("youtube-api-key", "", "YouTube Data API key")

	flags.String("llm-provider", defaults.LLM.Provider, "LLM provider for video titles (openai, anthropic, none)")
	flags.String("llm-model", "", "LLM model name")
	flags.String("llm-api-key", "", "LLM API key")
	flags.String("llm-base-url", "", "LLM API base URL override")

	flags.String("server-host", defaults.Server.Host, "HTTP server host")
	flags.Int("server-port", defaults.Server.Port, "HTTP server port")
	flags.Duration("server-read-timeout", defaults.Server.ReadTimeout, "HTTP read timeout")
	flags.Duration("server-write-timeout", defaults.Server.WriteTimeout, "HTTP write timeout")
	flags.Int("server-requests-per-minute", defaults.Server.RequestsPerMinute, "Resolve calls per caller per minute (0 disables)")
	flags.Int("server-dedup-capacity", defaults.Server.DedupCapacity, "Message ids remembered for redelivery")

	flags.Int("resolver-max-shortlink-hops", defaults.Resolver.MaxShortlinkHops, "Maximum shortlink redirects followed")
	flags.Duration("resolver-page-delay", defaults.Resolver.PageDelay, "Pause between two listing pages")
	flags.Duration("resolver-duration-tolerance", defaults.Resolver.DurationTolerance, "Largest duration difference of equal tracks")
	flags.Int("resolver-workers", defaults.Resolver.Workers, "Links resolved concurrently per message")
	flags.Int("resolver-max-pages", defaults.Resolver.MaxPages, "Maximum pages of one listing")
	flags.Int("resolver-search-limit", defaults.Resolver.SearchLimit, "Search results requested per query")
	flags.Duration("resolver-http-timeout", defaults.Resolver.HTTPTimeout, "Outbound request timeout")
	flags.Int("resolver-max-album-expansions", defaults.Resolver.MaxAlbumExpansions, "Matching albums listed per query")

	flags.String("auth-token-dir", defaults.Auth.TokenDir, "Directory of stored user tokens")

	if err := viper.BindPFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(serveCmd, resolveCmd, envExampleCmd)
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(config.Log.Level, config.Log.Format)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")
	cfg.Spotify.Market = viper.GetString("spotify-market")
	cfg.Spotify.UserID = viper.GetString("spotify-user-id")

	cfg.Tidal.ClientID = viper.GetString("tidal-client-id")
	cfg.Tidal.ClientSecret = viper.GetString("tidal-client-secret")
	cfg.Tidal.CountryCode = viper.GetString("tidal-country-code")
	cfg.Tidal.BaseURL = viper.GetString("tidal-base-url")
	cfg.Tidal.TokenURL = viper.GetString("tidal-token-url")

	cfg.YouTube.APIKey = viper.GetString("youtube-api-key")

	cfg.LLM.Provider = viper.GetString("llm-provider")
	cfg.LLM.Model = viper.GetString("llm-model")
	cfg.LLM.APIKey = viper.GetString("llm-api-key")
	cfg.LLM.BaseURL = viper.GetString("llm-base-url")

	cfg.Server.Host = viper.GetString("server-host")
	cfg.Server.Port = viper.GetInt("server-port")
	cfg.Server.ReadTimeout = viper.GetDuration("server-read-timeout")
	cfg.Server.WriteTimeout = viper.GetDuration("server-write-timeout")
	cfg.Server.RequestsPerMinute = viper.GetInt("server-requests-per-minute")
	cfg.Server.DedupCapacity = viper.GetInt("server-dedup-capacity")

	cfg.Resolver.MaxShortlinkHops = viper.GetInt("resolver-max-shortlink-hops")
	cfg.Resolver.PageDelay = viper.GetDuration("resolver-page-delay")
	cfg.Resolver.DurationTolerance = viper.GetDuration("resolver-duration-tolerance")
	cfg.Resolver.Workers = viper.GetInt("resolver-workers")
	cfg.Resolver.MaxPages = viper.GetInt("resolver-max-pages")
	cfg.Resolver.SearchLimit = viper.GetInt("resolver-search-limit")
	cfg.Resolver.HTTPTimeout = viper.GetDuration("resolver-http-timeout")
	cfg.Resolver.MaxAlbumExpansions = viper.GetInt("resolver-max-album-expansions")

	cfg.Auth.TokenDir = viper.GetString("auth-token-dir")

	cfg.Log.Level = viper.GetString("log-level")
	cfg.Log.Format = viper.GetString("log-format")

	return cfg
}

func buildLogger(level, format string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}
