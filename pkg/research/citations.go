package research

import (
	"regexp"

	"github.com/quarryhq/quarry/pkg/retrieval"
)

var citationPattern = regexp.MustCompile(`\[citation:([^\]]*)\]`)

// ValidateCitations extracts every [citation:<id>] token from text and
// reports which ids aren't present in groups' source ids. It never rewrites
// text — the prompt is what enforces correct citation format; this only
// validates and reports so a caller can log a warning.
func ValidateCitations(text string, groups []retrieval.Group) (invalid []string) {
	known := make(map[string]struct{})
	for _, g := range groups {
		for _, id := range g.SourceIDs {
			known[id] = struct{}{}
		}
	}

	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		id := m[1]
		if _, ok := known[id]; !ok {
			invalid = append(invalid, id)
		}
	}
	return invalid
}
