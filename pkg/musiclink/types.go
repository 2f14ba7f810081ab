// Package musiclink recognizes streaming catalog links in free text and
// resolves shortened links to their canonical form.
package musiclink

import (
	"trackbridge/internal/core"
)

// Link is one link occurrence found in a message. Exactly one of Ref and
// ShortURL is set.
type Link struct {
	Ref      core.ResourceRef
	ShortURL string
	// Offset is the byte position of the link in the scanned text.
	Offset int
}

// IsShort reports whether the link still needs shortlink resolution.
func (l Link) IsShort() bool {
	return l.ShortURL != ""
}

// Extractor recognizes the link shapes of one catalog.
type Extractor interface {
	Service() core.Service
	// Scan returns every link of this catalog in text, in order of appearance.
	Scan(text string) []Link
}
