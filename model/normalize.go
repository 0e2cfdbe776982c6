package model

import "strings"

// NormalizedItem is the wire shape the embedding backend accepts. Optional
// fields are pointers so absent values serialize as null rather than "".
type NormalizedItem struct {
	URL          *string `json:"url"`
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	Image        *string `json:"image"`
	IsScreenshot bool    `json:"is_screenshot"`
	IsDocCard    bool    `json:"is_doc_card"`
	TabID        int     `json:"tab_id"`
}

// Normalize coerces a collection result into the canonical shape expected by
// the embedding backend: text fields trimmed to string-or-null, the image
// reduced to a single string or null.
func Normalize(r CollectionResult) NormalizedItem {
	return NormalizedItem{
		URL:          trimmed(r.URL),
		Title:        trimmed(r.Title),
		Description:  trimmed(r.Description),
		Image:        coerceImage(r.Image),
		IsScreenshot: r.IsScreenshot,
		IsDocCard:    r.IsDocCard,
		TabID:        r.TabID,
	}
}

// NormalizeAll maps Normalize over a batch, preserving order.
func NormalizeAll(results []CollectionResult) []NormalizedItem {
	items := make([]NormalizedItem, 0, len(results))
	for _, r := range results {
		items = append(items, Normalize(r))
	}
	return items
}

func trimmed(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// CoerceImageValue reduces a loosely typed image value, as found in sessions
// persisted by older builds, to a single string. Lists collapse to their
// first usable element.
func CoerceImageValue(v interface{}) string {
	switch img := v.(type) {
	case string:
		return strings.TrimSpace(img)
	case []string:
		if len(img) > 0 {
			return strings.TrimSpace(img[0])
		}
	case []interface{}:
		for _, e := range img {
			if s, ok := e.(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func coerceImage(s string) *string {
	return trimmed(CoerceImageValue(s))
}
