package collect

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/previewbasket/tabharvest/model"
)

// internalPrefixes are URL schemes and host-administrative pages that can
// never yield preview content.
var internalPrefixes = []string{
	"chrome://",
	"chrome-extension://",
	"devtools://",
	"edge://",
	"about:",
	"view-source:",
}

// storePrefixes are extension marketplaces; their pages are storefronts, not
// content.
var storePrefixes = []string{
	"https://chrome.google.com/webstore",
	"https://chromewebstore.google.com",
	"https://microsoftedge.microsoft.com/addons",
	"https://addons.mozilla.org",
}

// FilterTabs returns the candidate tabs for a collection run: internal and
// marketplace pages removed, exact-URL duplicates dropped keeping the first
// occurrence, original order preserved. Pure; no side effects.
func FilterTabs(tabs []model.TabDescriptor) []model.TabDescriptor {
	seen := make(map[string]bool, len(tabs))
	out := make([]model.TabDescriptor, 0, len(tabs))

	for _, tab := range tabs {
		if isInternalURL(tab.URL) {
			log.Debug().Str("url", tab.URL).Msg("Skipping internal tab")
			continue
		}
		if seen[tab.URL] {
			log.Debug().Str("url", tab.URL).Msg("Skipping duplicate tab URL")
			continue
		}
		seen[tab.URL] = true
		out = append(out, tab)
	}

	return out
}

func isInternalURL(url string) bool {
	if url == "" {
		return true
	}
	for _, p := range internalPrefixes {
		if strings.HasPrefix(url, p) {
			return true
		}
	}
	for _, p := range storePrefixes {
		if strings.HasPrefix(url, p) {
			return true
		}
	}
	return false
}
