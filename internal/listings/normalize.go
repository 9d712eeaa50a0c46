package listings

import (
	"encoding/json"
	"strconv"
	"strings"

	"marrfa-assistant/internal/model"
)

const maxImages = 12

// Normalizer maps raw Listings API items onto model.PropertyListing
type Normalizer struct {
	listingURLPrefix string
	placeholderImage string
}

// NewNormalizer creates a normalizer; listingURLPrefix is joined with the listing id
func NewNormalizer(listingURLPrefix, placeholderImage string) *Normalizer {
	return &Normalizer{
		listingURLPrefix: listingURLPrefix,
		placeholderImage: placeholderImage,
	}
}

// Page normalizes a decoded response body. Items keep API order.
func (n *Normalizer) Page(payload map[string]any) ([]model.PropertyListing, int) {
	items := asSlice(payload["items"])
	if len(items) == 0 {
		items = asSlice(payload["data"])
	}

	listings := make([]model.PropertyListing, 0, len(items))
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		listings = append(listings, n.Listing(item))
	}

	return listings, pageTotal(payload, len(listings))
}

// Listing normalizes one API item
func (n *Normalizer) Listing(item map[string]any) model.PropertyListing {
	listing := model.PropertyListing{
		ID:       stringValue(item["id"]),
		Title:    firstString(item, "name", "title"),
		Currency: firstString(item, "price_currency", "currency"),
	}
	if listing.Title == "" {
		listing.Title = "Untitled property"
	}
	if listing.Currency == "" {
		listing.Currency = "AED"
	}

	listing.Location = optional(firstString(item, "area", "location"))
	listing.PriceFrom = firstPrice(item, "min_price_aed", "min_price")
	listing.PriceTo = firstPrice(item, "max_price_aed", "max_price")
	listing.Bedrooms = optional(joinValue(firstPresent(item, "unit_bedrooms", "bedrooms")))
	listing.PropertyType = optional(joinValue(firstPresent(item, "unit_types", "property_type", "type")))
	listing.Description = optional(firstString(item, "description", "overview"))

	if completion := firstString(item, "completion_datetime", "completion_date"); len(completion) >= 4 {
		year := completion[:4]
		listing.CompletionYear = &year
	}

	for _, key := range []string{"cover_image", "cover_image_url", "thumbnail", "thumbnail_url", "images"} {
		if u := ExtractImageURL(item[key]); u != "" {
			listing.CoverImage = u
			break
		}
	}
	if listing.CoverImage == "" {
		listing.CoverImage = n.placeholderImage
	}

	if images := asSlice(item["images"]); len(images) > 0 {
		if len(images) > maxImages {
			images = images[:maxImages]
		}
		for _, img := range images {
			if u := ExtractImageURL(img); u != "" {
				listing.Images = append(listing.Images, u)
			}
		}
	}

	if listing.ID != "" {
		u := n.listingURLPrefix + listing.ID
		listing.ListingURL = &u
	}

	return listing
}

// ExtractImageURL accepts a URL string, a JSON object string, an object with
// url/image/src, or a list whose first element is one of those.
func ExtractImageURL(x any) string {
	switch v := x.(type) {
	case string:
		s := strings.TrimSpace(v)
		if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
			var obj map[string]any
			if err := json.Unmarshal([]byte(s), &obj); err != nil {
				return ""
			}
			return ExtractImageURL(obj)
		}
		if isHTTPURL(s) {
			return s
		}
	case map[string]any:
		for _, key := range []string{"url", "image", "src"} {
			if s, ok := v[key].(string); ok && s != "" {
				if isHTTPURL(s) {
					return s
				}
				return ""
			}
		}
	case []any:
		if len(v) > 0 {
			return ExtractImageURL(v[0])
		}
	}
	return ""
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func pageTotal(payload map[string]any, fallback int) int {
	candidates := []any{payload["total"]}
	for _, key := range []string{"meta", "pagination"} {
		if nested, ok := payload[key].(map[string]any); ok {
			candidates = append(candidates, nested["total"])
		}
	}
	for _, c := range candidates {
		if f, ok := toFloat(c); ok && f >= float64(fallback) {
			return int(f)
		}
	}
	return fallback
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func firstPresent(item map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := item[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(item map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := strings.TrimSpace(stringValue(item[key])); s != "" {
			return s
		}
	}
	return ""
}

func firstPrice(item map[string]any, keys ...string) *float64 {
	for _, key := range keys {
		if f, ok := toFloat(item[key]); ok && f != 0 {
			return &f
		}
	}
	return nil
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// joinValue renders scalars and lists of scalars as a comma-separated string
func joinValue(v any) string {
	if list, ok := v.([]any); ok {
		parts := make([]string, 0, len(list))
		for _, it := range list {
			if s := strings.TrimSpace(stringValue(it)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return strings.TrimSpace(stringValue(v))
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(t), ",", ""), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

