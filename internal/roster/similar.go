package roster

import (
	"slices"
	"strings"

	"github.com/antzucaro/matchr"
)

// DefaultSimilarity is the Jaro-Winkler score above which two names are
// likely the same person spelled differently.
const DefaultSimilarity = 0.92

type NameMatch struct {
	Roster     string
	Historical string
	Score      float64
}

// SimilarNames finds roster names that are new to the log but look like a
// name the log already has. Names key the series, so such a pair usually
// means a rename split one official's history in two.
func SimilarNames(entities []Entity, historical []string, threshold float64) []NameMatch {
	inRoster := map[string]struct{}{}
	for _, e := range entities {
		inRoster[e.Name] = struct{}{}
	}
	inLog := map[string]struct{}{}
	for _, name := range historical {
		inLog[name] = struct{}{}
	}

	var matches []NameMatch
	for _, e := range entities {
		if _, known := inLog[e.Name]; known {
			continue
		}
		best := NameMatch{Roster: e.Name}
		for _, name := range historical {
			if _, stillTracked := inRoster[name]; stillTracked {
				continue
			}
			score := matchr.JaroWinkler(strings.ToLower(e.Name), strings.ToLower(name), false)
			if score > best.Score {
				best.Historical = name
				best.Score = score
			}
		}
		if best.Historical != "" && best.Score >= threshold {
			matches = append(matches, best)
		}
	}

	slices.SortFunc(matches, func(a, b NameMatch) int {
		return strings.Compare(a.Roster, b.Roster)
	})
	return matches
}
