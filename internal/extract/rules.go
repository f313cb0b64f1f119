package extract

import (
	"regexp"

	"github.com/raine/auto-inspect-bot/internal/listing"
)

// ImageRule collects image references from every element matching Selector,
// reading the first non-empty attribute of Attrs.
type ImageRule struct {
	Selector string
	Attrs    []string
}

// Rules is the ordered strategy table of one site dialect.
type Rules struct {
	Title   []Strategy
	Price   []Strategy
	Year    []Strategy
	Mileage []Strategy
	Region  []Strategy
	Images  []ImageRule
}

var (
	priceRe      = regexp.MustCompile(`(\d{1,3}(?:[ \x{00A0}\x{202F},.]\d{3})+|\d{4,})[\s\x{00A0}\x{202F}]*(?:₽|руб)`)
	yearLabelRe  = regexp.MustCompile(`(?i)год выпуска\D{0,30}?((?:19|20)\d{2})`)
	mileageRe    = regexp.MustCompile(`(?i)пробег\D{0,30}?(\d[\d \x{00A0}\x{202F}]*)[\s\x{00A0}\x{202F}]*км`)
	regionRe     = regexp.MustCompile(`(?i)(?:город|регион|местоположение)\s*:\s*([^\d,;<>\n]{2,40})`)
	dromYearRe   = regexp.MustCompile(`((?:19|20)\d{2})\s*год`)
	dromRegionRe = regexp.MustCompile(`в\s+(?:г\.\s*)?([А-ЯЁ][а-яё\-]+(?:\s+[А-ЯЁ][а-яё\-]+)?)`)
)

// genericRules work on any page with common markup conventions (Open Graph,
// schema.org microdata, JSON-LD). Every site table falls back to them.
var genericRules = Rules{
	Title: []Strategy{
		Text("h1"),
		Meta("og:title"),
		JSONLD("name"),
		Text("title"),
	},
	Price: []Strategy{
		Attr(`[itemprop="price"]`, "content"),
		Text(`[itemprop="price"]`),
		Meta("product:price:amount"),
		Meta("og:price:amount"),
		Meta("price"),
		JSONLD("offers", "price"),
		Pattern(priceRe),
	},
	Year: []Strategy{
		JSONLD("vehicleModelDate"),
		JSONLD("productionDate"),
		Meta("vehicleModelDate"),
		Meta("productionDate"),
		Text("h1"),
		Meta("og:title"),
		Text("title"),
		TextPattern(yearLabelRe),
		Pattern(yearLabelRe),
	},
	Mileage: []Strategy{
		JSONLD("mileageFromOdometer", "value"),
		JSONLD("mileageFromOdometer"),
		Meta("mileageFromOdometer"),
		TextPattern(mileageRe),
		Pattern(mileageRe),
	},
	Region: []Strategy{
		Text(`[itemprop="addressLocality"]`),
		Text(`[itemprop="address"]`),
		Meta("geo.placename"),
		JSONLD("offers", "availableAtOrFrom", "address", "addressLocality"),
		JSONLD("address", "addressLocality"),
		TextPattern(regionRe),
	},
	Images: []ImageRule{
		{Selector: `meta[property="og:image"]`, Attrs: []string{"content"}},
		{Selector: `[itemprop="image"]`, Attrs: []string{"content", "src", "href"}},
		{Selector: `[class*="gallery"] img`, Attrs: []string{"data-src", "src", "srcset"}},
	},
}

var siteRules = map[listing.SiteDialect]Rules{
	listing.DialectAvito: {
		Title: []Strategy{
			Text(`h1[data-marker="item-view/title-info"]`),
			Text(`[data-marker="item-view/title-info"]`),
		},
		Price: []Strategy{
			Attr(`[data-marker="item-view/item-price"]`, "content"),
			Text(`[data-marker="item-view/item-price"]`),
			Attr(`span[itemprop="price"]`, "content"),
		},
		Year: []Strategy{
			Labeled(`[data-marker="item-view/item-params"] li`, "Год выпуска"),
			Labeled(`[class*="params-paramsList"] li`, "Год выпуска"),
		},
		Mileage: []Strategy{
			Labeled(`[data-marker="item-view/item-params"] li`, "Пробег"),
			Labeled(`[class*="params-paramsList"] li`, "Пробег"),
		},
		Region: []Strategy{
			Text(`[itemprop="address"] span`),
			Text(`[data-marker="item-view/item-address"]`),
			Text(`[class*="style-item-address__string"]`),
		},
		Images: []ImageRule{
			{Selector: `[data-marker="image-frame/image-wrapper"]`, Attrs: []string{"data-url"}},
			{Selector: `[data-marker="image-frame/image-wrapper"] img`, Attrs: []string{"src", "data-src"}},
			{Selector: `[data-marker^="image-preview"] img`, Attrs: []string{"srcset", "src"}},
		},
	},
	listing.DialectAutoRu: {
		Title: []Strategy{
			Text(`h1.CardHead__title`),
			Text(`.CardHead__title`),
		},
		Price: []Strategy{
			Text(`.OfferPriceCaption__price`),
			Attr(`meta[itemprop="price"]`, "content"),
		},
		Year: []Strategy{
			Text(`.CardInfoRow_year .CardInfoRow__cell:last-child`),
			Text(`.CardInfoRow_year a`),
			Labeled(`.CardInfoRow`, "Год выпуска"),
		},
		Mileage: []Strategy{
			Text(`.CardInfoRow_kmAge .CardInfoRow__cell:last-child`),
			Labeled(`.CardInfoRow`, "Пробег"),
		},
		Region: []Strategy{
			Text(`.CardSellerNamePlace__place`),
			Text(`.MetroListPlace__regionName`),
		},
		Images: []ImageRule{
			{Selector: `img.ImageGalleryDesktop__image`, Attrs: []string{"src", "srcset"}},
			{Selector: `.ImageGalleryDesktop__thumb img`, Attrs: []string{"src", "srcset"}},
		},
	},
	listing.DialectDrom: {
		Title: []Strategy{
			Text(`h1[data-ftid="bull_title"] span`),
			Text(`h1[data-ftid="bull_title"]`),
		},
		Price: []Strategy{
			Text(`[data-ftid="bull_price"]`),
			Attr(`meta[itemprop="price"]`, "content"),
		},
		Year: []Strategy{
			TextPattern(dromYearRe),
		},
		Mileage: []Strategy{
			Labeled(`table tr`, "Пробег"),
			Labeled(`[data-ftid="specification-mileage"]`, "Пробег"),
		},
		Region: []Strategy{
			Text(`[data-ftid="bull_location"]`),
			Labeled(`[data-ftid="city"]`, "Город"),
			Pattern(dromRegionRe),
		},
		Images: []ImageRule{
			{Selector: `a[data-fancybox="gallery"]`, Attrs: []string{"href"}},
			{Selector: `[data-ftid="bull-page_bull-gallery_thumbnails"] img`, Attrs: []string{"srcset", "src"}},
		},
	},
}

// RulesFor returns the strategy table of a dialect with the generic rules
// merged in as fallback. Raw-text patterns of both tables go after every
// structural and meta lookup.
func RulesFor(dialect listing.SiteDialect) Rules {
	site, ok := siteRules[dialect]
	if !ok {
		return genericRules
	}
	return Rules{
		Title:   merge(site.Title, genericRules.Title),
		Price:   merge(site.Price, genericRules.Price),
		Year:    merge(site.Year, genericRules.Year),
		Mileage: merge(site.Mileage, genericRules.Mileage),
		Region:  merge(site.Region, genericRules.Region),
		Images:  append(append([]ImageRule{}, site.Images...), genericRules.Images...),
	}
}

func merge(site, generic []Strategy) []Strategy {
	out := make([]Strategy, 0, len(site)+len(generic))
	for _, pass := range []bool{false, true} {
		for _, list := range [][]Strategy{site, generic} {
			for _, s := range list {
				if s.textSearch == pass {
					out = append(out, s)
				}
			}
		}
	}
	return out
}
