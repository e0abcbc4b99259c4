package matching

import (
	"fmt"
	"strings"

	"github.com/rl1809/procurematch/internal/core/domain"
)

// RegionMatcher decides whether an inventory row's delivery regions cover a
// requested delivery location.
type RegionMatcher interface {
	Covers(regions, location string) bool
}

type RegionMatchFunc func(regions, location string) bool

func (f RegionMatchFunc) Covers(regions, location string) bool {
	return f(regions, location)
}

// SubstringRegions treats the regions text as one string and looks for the
// location inside it. An empty location matches everything.
// "Region 1" is found inside "Region 10" under this rule.
var SubstringRegions = RegionMatchFunc(func(regions, location string) bool {
	loc := domain.Normalize(location)
	return loc == "" || strings.Contains(domain.Normalize(regions), loc)
})

// TokenRegions splits the regions text on commas and requires one token to
// equal the location. An empty location matches everything.
var TokenRegions = RegionMatchFunc(func(regions, location string) bool {
	loc := domain.Normalize(location)
	if loc == "" {
		return true
	}
	for _, tok := range strings.Split(regions, ",") {
		if domain.Normalize(tok) == loc {
			return true
		}
	}
	return false
})

func RegionMatcherByName(name string) (RegionMatcher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "substring":
		return SubstringRegions, nil
	case "token":
		return TokenRegions, nil
	default:
		return nil, fmt.Errorf("unknown region matching mode %q", name)
	}
}
