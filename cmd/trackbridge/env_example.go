package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// envSections groups flags by prefix in the generated file.
var envSections = []struct {
	prefix string
	title  string
}{
	{"spotify-", "Spotify Configuration (client credentials from https://developer.spotify.com/dashboard)"},
	{"tidal-", "Tidal Configuration (client credentials from https://developer.tidal.com/dashboard)"},
	{"youtube-", "YouTube Configuration (API key from https://console.cloud.google.com/apis/credentials)"},
	{"llm-", "LLM Configuration (optional, improves video title parsing)"},
	{"resolver-", "Resolver Tuning"},
	{"server-", "HTTP Server Configuration"},
	{"auth-", "Stored User Tokens"},
	{"log-", "Logging Configuration"},
}

var envExampleCmd = &cobra.Command{
	Use:   "env-example",
	Short: "Write a .env.example file listing every setting",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		content := generateEnvExampleContent(cmd.Root().PersistentFlags())
		if err := os.WriteFile(".env.example", []byte(content), 0o600); err != nil {
			return fmt.Errorf("failed to write .env.example: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Successfully generated .env.example file")
		return nil
	},
}

func generateEnvExampleContent(flags *pflag.FlagSet) string {
	var content strings.Builder

	content.WriteString("# =============================================================================\n")
	content.WriteString("# trackbridge Configuration\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("#\n")
	content.WriteString("# Copy this file to .env and update with your values\n")
	content.WriteString("# All environment variables have CLI flag equivalents (use --help to see them)\n")
	content.WriteString("# At least one catalog (Spotify, Tidal or YouTube) must be configured.\n")
	content.WriteString("#\n\n")

	for _, section := range envSections {
		content.WriteString("# -----------------------------------------------------------------------------\n")
		fmt.Fprintf(&content, "# %s\n", section.title)
		content.WriteString("# -----------------------------------------------------------------------------\n")
		flags.VisitAll(func(f *pflag.Flag) {
			if !strings.HasPrefix(f.Name, section.prefix) {
				return
			}
			fmt.Fprintf(&content, "# %s (--%s)\n", f.Usage, f.Name)
			fmt.Fprintf(&content, "%s=%s\n", flagToEnvVar(f.Name), f.DefValue)
		})
		content.WriteString("\n")
	}

	return content.String()
}

func flagToEnvVar(flagName string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}
