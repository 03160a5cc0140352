package kindle

import (
	"fmt"
	"strings"
)

// Region holds the Amazon endpoints for one marketplace. The notebook URL
// is the Kindle highlights SPA; the signin URL is only used to recognize
// redirects to the login flow.
type Region struct {
	Code        string
	NotebookURL string
	SigninURL   string
}

var regions = map[string]Region{
	"us": {"us", "https://read.amazon.com/notebook", "https://www.amazon.com/ap/signin"},
	"uk": {"uk", "https://read.amazon.co.uk/notebook", "https://www.amazon.co.uk/ap/signin"},
	"de": {"de", "https://read.amazon.de/notebook", "https://www.amazon.de/ap/signin"},
	"fr": {"fr", "https://read.amazon.fr/notebook", "https://www.amazon.fr/ap/signin"},
	"es": {"es", "https://read.amazon.es/notebook", "https://www.amazon.es/ap/signin"},
	"it": {"it", "https://read.amazon.it/notebook", "https://www.amazon.it/ap/signin"},
	"jp": {"jp", "https://read.amazon.co.jp/notebook", "https://www.amazon.co.jp/ap/signin"},
	"ca": {"ca", "https://read.amazon.ca/notebook", "https://www.amazon.ca/ap/signin"},
	"au": {"au", "https://read.amazon.com.au/notebook", "https://www.amazon.com.au/ap/signin"},
	"in": {"in", "https://read.amazon.in/notebook", "https://www.amazon.in/ap/signin"},
}

// RegionFromCode resolves a marketplace code ("us", "uk", ...). "gb" is
// accepted as an alias for "uk".
func RegionFromCode(code string) (Region, error) {
	normalized := strings.ToLower(strings.TrimSpace(code))
	if normalized == "gb" {
		normalized = "uk"
	}

	region, ok := regions[normalized]
	if !ok {
		return Region{}, fmt.Errorf("invalid Amazon region: %q", code)
	}
	return region, nil
}
