package musiclink

import (
	"net/http"
	"regexp"
	"time"

	"trackbridge/internal/core"
)

const (
	// resolverUserAgent is sent on shortlink requests. Shortening services
	// answer non-browser agents with a plain redirect instead of an app page.
	resolverUserAgent = "trackbridge/1.0 (+link resolver)"
	// commonAcceptHeader is the accept header used for all HTTP requests.
	commonAcceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	// defaultHTTPTimeout is the default timeout for HTTP requests.
	defaultHTTPTimeout = 10 * time.Second
	// maxBodyReadSize bounds how much of an interstitial page is scanned.
	maxBodyReadSize = 256 * 1024
)

// newHTTPClient creates a client that never follows redirects so each hop
// is observed by the caller.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// scanMatches runs re over text and hands the capture groups of every match,
// unmatched groups as "", to build. Matches for which build returns false
// are skipped.
func scanMatches(re *regexp.Regexp, text string, build func(groups []string) (Link, bool)) []Link {
	var links []Link
	for _, idx := range re.FindAllStringSubmatchIndex(text, -1) {
		groups := make([]string, len(idx)/2)
		for i := range groups {
			if idx[2*i] >= 0 {
				groups[i] = text[idx[2*i]:idx[2*i+1]]
			}
		}

		link, ok := build(groups)
		if !ok {
			continue
		}
		link.Offset = idx[0]
		links = append(links, link)
	}
	return links
}

// firstNonEmpty returns the first non-empty value, or "".
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func refLink(service core.Service, kind core.Kind, id string) (Link, bool) {
	ref, err := core.NewResourceRef(service, kind, id)
	if err != nil {
		return Link{}, false
	}
	return Link{Ref: ref}, true
}
