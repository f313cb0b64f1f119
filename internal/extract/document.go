// Package extract pulls listing facts out of classified-ad pages using ordered,
// per-site lists of lookup strategies.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/raine/auto-inspect-bot/internal/listing"
)

// RawDocument is a parsed listing page together with its original text.
// Some facts are only recoverable from the raw text, so both are kept.
type RawDocument struct {
	SourceURL string
	Doc       *goquery.Document
	Text      string

	base *url.URL
}

// NewRawDocument parses raw page bytes. Empty or unparseable input yields
// listing.ErrInputUnavailable.
func NewRawDocument(sourceURL string, raw []byte) (*RawDocument, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("empty document: %w", listing.ErrInputUnavailable)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %v: %w", err, listing.ErrInputUnavailable)
	}

	rd := &RawDocument{
		SourceURL: sourceURL,
		Doc:       doc,
		Text:      string(raw),
	}
	if u, err := url.Parse(strings.TrimSpace(sourceURL)); err == nil && u.Host != "" {
		rd.base = u
	}

	return rd, nil
}

// ResolveURL turns an image reference into an absolute URL. Scheme-relative
// references become https; relative paths are resolved against the source URL.
// Returns false when the reference cannot be made absolute.
func (d *RawDocument) ResolveURL(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") || strings.HasPrefix(ref, "javascript:") {
		return "", false
	}

	if strings.HasPrefix(ref, "//") {
		ref = "https:" + ref
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}

	if !u.IsAbs() {
		if d.base == nil {
			return "", false
		}
		u = d.base.ResolveReference(u)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}

	return u.String(), true
}
