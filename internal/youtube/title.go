package youtube

import (
	"regexp"
	"strings"
)

// titleSplitParts is the expected number of parts when splitting "Artist - Title".
const titleSplitParts = 2

var (
	// noiseRegex matches video-specific decorations in parentheses or brackets.
	noiseRegex = regexp.MustCompile(`(?i)\s*[\(\[](?:official\s+)?(?:music\s+|lyrics?\s+|hd\s+|4k\s+)?` +
		`(?:video|audio|visualizer|lyrics?|hd|4k|hq|mv)(?:\s+video)?[\)\]]`)
	camelCaseRegex = regexp.MustCompile(`([a-z])([A-Z])`)
)

// ParseTitle splits a video title into song title and artist. Auto-generated
// "X - Topic" uploads carry the bare song title; "XVEVO" channel names are
// preferred over a title prefix.
func ParseTitle(rawTitle, channel string) (title, artist string) {
	title = strings.TrimSpace(noiseRegex.ReplaceAllString(rawTitle, ""))

	if name, ok := strings.CutSuffix(channel, " - Topic"); ok {
		return title, strings.TrimSpace(name)
	}

	if parts := strings.SplitN(title, " - ", titleSplitParts); len(parts) == titleSplitParts {
		artist = strings.TrimSpace(parts[0])
		title = strings.TrimSpace(parts[1])
	}

	if name, ok := strings.CutSuffix(channel, "VEVO"); ok && name != "" {
		artist = camelCaseRegex.ReplaceAllString(name, "$1 $2")
	} else if artist == "" {
		artist = strings.TrimSpace(channel)
	}

	return title, artist
}
