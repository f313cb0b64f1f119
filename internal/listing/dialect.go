package listing

import (
	"encoding/hex"
	"net/url"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// SiteDialect selects the extraction rule table for a source site.
type SiteDialect int

const (
	DialectGeneric SiteDialect = iota
	DialectAvito
	DialectAutoRu
	DialectDrom
)

func (d SiteDialect) String() string {
	switch d {
	case DialectAvito:
		return "avito"
	case DialectAutoRu:
		return "autoru"
	case DialectDrom:
		return "drom"
	default:
		return "generic"
	}
}

// Platform is the source platform identifier stored with each record.
func (d SiteDialect) Platform() string {
	return d.String()
}

// DetectDialect picks the dialect from the host of a listing URL.
func DetectDialect(rawURL string) SiteDialect {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return DialectGeneric
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	switch {
	case host == "avito.ru" || strings.HasSuffix(host, ".avito.ru"):
		return DialectAvito
	case host == "auto.ru" || strings.HasSuffix(host, ".auto.ru"):
		return DialectAutoRu
	case host == "drom.ru" || strings.HasSuffix(host, ".drom.ru"):
		return DialectDrom
	default:
		return DialectGeneric
	}
}

// CanonicalURL drops the query string and fragment and lower-cases the host,
// so tracking parameters do not produce distinct listings.
func CanonicalURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(rawURL)
	}
	u.Host = strings.ToLower(u.Host)
	u.Scheme = strings.ToLower(u.Scheme)
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// StableID derives the record identifier from the listing URL.
func StableID(rawURL string) string {
	canonical := CanonicalURL(rawURL)
	hash := blake2b.Sum256([]byte(canonical))
	return DetectDialect(canonical).Platform() + "_" + hex.EncodeToString(hash[:])[:16]
}
