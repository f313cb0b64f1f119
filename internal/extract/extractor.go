package extract

import (
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/raine/auto-inspect-bot/internal/listing"
	"github.com/raine/auto-inspect-bot/internal/normalize"
	"github.com/rs/zerolog/log"
)

// Extract runs the rule table of dialect against doc. Fields that no strategy
// can satisfy are left empty; the normalizer applies the defaults.
func Extract(doc *RawDocument, dialect listing.SiteDialect) listing.RawFacts {
	rules := RulesFor(dialect)
	facts := listing.RawFacts{Sources: make(map[string]string)}
	if doc == nil || doc.Doc == nil {
		return facts
	}

	now := time.Now()
	field := func(name string, check Check, strategies []Strategy) string {
		value, source, ok := FirstOf(doc, check, strategies...)
		if !ok {
			log.Debug().Str("field", name).Str("dialect", dialect.String()).Msg("no strategy matched")
			return ""
		}
		facts.Sources[name] = source
		return value
	}

	facts.Title = field(listing.FieldTitle, hasLetter, rules.Title)
	facts.Price = field(listing.FieldPrice, hasDigit, rules.Price)
	facts.Year = field(listing.FieldYear, func(v string) bool {
		_, ok := normalize.ParseYear(v, now)
		return ok
	}, rules.Year)
	facts.Mileage = field(listing.FieldMileage, hasDigit, rules.Mileage)
	facts.Region = field(listing.FieldRegion, hasLetter, rules.Region)

	facts.ImageURLs = collectImages(doc, rules.Images)
	if len(facts.ImageURLs) > 0 {
		facts.Sources[listing.FieldImages] = "images"
	}

	return facts
}

// collectImages applies image rules in order, resolving and de-duplicating
// URLs until MaxImageCandidates are found.
func collectImages(doc *RawDocument, rules []ImageRule) []string {
	seen := make(map[string]struct{})
	var urls []string

	for _, rule := range rules {
		if len(urls) >= listing.MaxImageCandidates {
			break
		}
		doc.Doc.Find(rule.Selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			ref := firstAttr(s, rule.Attrs)
			if ref == "" {
				return true
			}
			resolved, ok := doc.ResolveURL(ref)
			if !ok {
				return true
			}
			if _, dup := seen[resolved]; dup {
				return true
			}
			seen[resolved] = struct{}{}
			urls = append(urls, resolved)
			return len(urls) < listing.MaxImageCandidates
		})
	}

	return urls
}

func firstAttr(s *goquery.Selection, attrs []string) string {
	for _, attr := range attrs {
		v, ok := s.Attr(attr)
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if attr == "srcset" {
			v = firstSrcsetCandidate(v)
		}
		if v != "" {
			return v
		}
	}
	return ""
}

// firstSrcsetCandidate returns the URL of the first "url descriptor" entry.
func firstSrcsetCandidate(srcset string) string {
	first, _, _ := strings.Cut(srcset, ",")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}
