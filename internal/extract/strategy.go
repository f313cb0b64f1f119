package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

// Strategy is a single lookup for one field. It reports absence with ok=false
// and never fails otherwise.
type Strategy struct {
	Name   string
	lookup func(doc *RawDocument) (string, bool)

	// textSearch marks pattern searches over raw text, which are ordered last.
	textSearch bool
}

// Apply runs the strategy. A panic inside a lookup is treated as absence so a
// broken rule cannot take down the rest of the cascade.
func (s Strategy) Apply(doc *RawDocument) (value string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Debug().Str("strategy", s.Name).Interface("panic", r).Msg("strategy panicked")
			value, ok = "", false
		}
	}()

	if doc == nil || doc.Doc == nil {
		return "", false
	}

	value, ok = s.lookup(doc)
	value = cleanText(value)
	if value == "" {
		return "", false
	}
	return value, ok
}

// Check validates a candidate value before the cascade accepts it.
type Check func(value string) bool

// FirstOf returns the first value produced by strategies that passes check,
// along with the name of the strategy that produced it.
func FirstOf(doc *RawDocument, check Check, strategies ...Strategy) (string, string, bool) {
	for _, s := range strategies {
		value, ok := s.Apply(doc)
		if !ok {
			log.Debug().Str("strategy", s.Name).Msg("strategy found nothing")
			continue
		}
		if check != nil && !check(value) {
			log.Debug().Str("strategy", s.Name).Str("value", truncate(value, 40)).Msg("strategy value rejected")
			continue
		}
		return value, s.Name, true
	}
	return "", "", false
}

// Text takes the text content of the first element matching selector.
func Text(selector string) Strategy {
	return Strategy{
		Name: "text:" + selector,
		lookup: func(doc *RawDocument) (string, bool) {
			sel := doc.Doc.Find(selector).First()
			if sel.Length() == 0 {
				return "", false
			}
			return sel.Text(), true
		},
	}
}

// Attr takes an attribute of the first element matching selector that has it.
func Attr(selector, attr string) Strategy {
	return Strategy{
		Name: "attr:" + selector + "@" + attr,
		lookup: func(doc *RawDocument) (string, bool) {
			var value string
			doc.Doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				if v, exists := s.Attr(attr); exists && strings.TrimSpace(v) != "" {
					value = v
					return false
				}
				return true
			})
			return value, value != ""
		},
	}
}

// Meta reads the content of a meta tag addressed by property, name or itemprop.
func Meta(key string) Strategy {
	return Strategy{
		Name: "meta:" + key,
		lookup: func(doc *RawDocument) (string, bool) {
			for _, sel := range []string{
				fmt.Sprintf("meta[property=%q]", key),
				fmt.Sprintf("meta[name=%q]", key),
				fmt.Sprintf("meta[itemprop=%q]", key),
				fmt.Sprintf("[itemprop=%q][content]", key),
			} {
				if v, exists := doc.Doc.Find(sel).First().Attr("content"); exists && strings.TrimSpace(v) != "" {
					return v, true
				}
			}
			return "", false
		},
	}
}

// Labeled finds the first element matching selector whose text contains label
// and returns the text that follows the label.
func Labeled(selector, label string) Strategy {
	lowerLabel := strings.ToLower(label)
	return Strategy{
		Name: "labeled:" + selector + "~" + label,
		lookup: func(doc *RawDocument) (string, bool) {
			var value string
			doc.Doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				text := cleanText(s.Text())
				lower := strings.ToLower(text)
				idx := strings.Index(lower, lowerLabel)
				if idx < 0 {
					return true
				}
				if len(lower) != len(text) {
					text = lower
				}
				rest := strings.TrimLeft(text[idx+len(lowerLabel):], " :")
				if rest == "" {
					// Label and value live in sibling elements.
					rest = cleanText(s.Next().Text())
				}
				if rest != "" {
					value = rest
					return false
				}
				return true
			})
			return value, value != ""
		},
	}
}

// JSONLD looks up a dotted path inside application/ld+json blocks. Arrays are
// searched element by element.
func JSONLD(path ...string) Strategy {
	return Strategy{
		Name: "jsonld:" + strings.Join(path, "."),
		lookup: func(doc *RawDocument) (string, bool) {
			var value string
			doc.Doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				var data any
				if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &data); err != nil {
					return true
				}
				if v, ok := lookupPath(data, path); ok {
					value = v
					return false
				}
				return true
			})
			return value, value != ""
		},
	}
}

// Pattern returns the first capture group of re over the raw document text.
// It is the least precise strategy and always goes last.
func Pattern(re *regexp.Regexp) Strategy {
	return Strategy{
		Name: "pattern:" + re.String(),
		lookup: func(doc *RawDocument) (string, bool) {
			return firstGroup(re, doc.Text)
		},
		textSearch: true,
	}
}

// TextPattern is like Pattern but searches the visible text of the page, which
// keeps markup from splitting a label and its value.
func TextPattern(re *regexp.Regexp) Strategy {
	return Strategy{
		Name: "textpattern:" + re.String(),
		lookup: func(doc *RawDocument) (string, bool) {
			return firstGroup(re, cleanText(doc.Doc.Find("body").Text()))
		},
		textSearch: true,
	}
}

func firstGroup(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	if len(m) > 1 {
		return m[1], true
	}
	return m[0], true
}

func lookupPath(data any, path []string) (string, bool) {
	if len(path) == 0 {
		switch v := data.(type) {
		case string:
			return v, v != ""
		case float64:
			return strings.TrimSuffix(fmt.Sprintf("%.2f", v), ".00"), true
		case map[string]any:
			// schema.org often wraps values in {"@type": ..., "value": ...}
			if inner, ok := v["value"]; ok {
				return lookupPath(inner, nil)
			}
			if inner, ok := v["name"]; ok {
				return lookupPath(inner, nil)
			}
		}
		return "", false
	}

	switch v := data.(type) {
	case map[string]any:
		if graph, ok := v["@graph"]; ok {
			if s, ok := lookupPath(graph, path); ok {
				return s, true
			}
		}
		next, ok := v[path[0]]
		if !ok {
			return "", false
		}
		return lookupPath(next, path[1:])
	case []any:
		for _, item := range v {
			if s, ok := lookupPath(item, path); ok {
				return s, true
			}
		}
	}
	return "", false
}

// cleanText collapses whitespace, including non-breaking spaces.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
