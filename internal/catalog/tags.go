package catalog

import (
	"sort"
	"strings"
)

// tagGroups is the canonical ordered tag-group vocabulary of the
// feature schema. "other" collects raw tags without a mapping.
var tagGroups = []string{
	"constructive",
	"dp",
	"ds",
	"games",
	"geometry",
	"graphs",
	"greedy",
	"implementation",
	"math",
	"search",
	"strings",
	"trees",
	"other",
}

// tagGroupMap maps raw Codeforces tags to one or more groups,
// comma-separated.
var tagGroupMap = map[string]string{
	"math":                      "math",
	"number theory":             "math",
	"combinatorics":             "math",
	"probabilities":             "math",
	"matrices":                  "math",
	"fft":                       "math",
	"chinese remainder theorem": "math",
	"implementation":            "implementation",
	"brute force":               "implementation,search",
	"constructive algorithms":   "constructive",
	"greedy":                    "greedy",
	"sortings":                  "greedy",
	"dp":                        "dp",
	"bitmasks":                  "dp",
	"divide and conquer":        "dp",
	"meet-in-the-middle":        "search",
	"binary search":             "search",
	"ternary search":            "search",
	"two pointers":              "search",
	"graphs":                    "graphs",
	"dfs and similar":           "graphs",
	"shortest paths":            "graphs",
	"flows":                     "graphs",
	"graph matchings":           "graphs",
	"2-sat":                     "graphs",
	"trees":                     "trees",
	"dsu":                       "ds",
	"data structures":           "ds",
	"strings":                   "strings",
	"hashing":                   "strings",
	"string suffix structures":  "strings",
	"expression parsing":        "strings",
	"geometry":                  "geometry",
	"games":                     "games",
}

// TagGroups returns the canonical ordered tag-group list.
func TagGroups() []string {
	groups := make([]string, len(tagGroups))
	copy(groups, tagGroups)
	return groups
}

// NormalizeTags maps raw tags through the tag-group map, deduplicates,
// and returns the groups sorted. Unknown tags map to "other".
func NormalizeTags(raw []string) []string {
	seen := make(map[string]bool)
	for _, t := range raw {
		groups, ok := tagGroupMap[t]
		if !ok {
			seen["other"] = true
			continue
		}
		for _, g := range strings.Split(groups, ",") {
			seen[g] = true
		}
	}
	normalized := make([]string, 0, len(seen))
	for g := range seen {
		normalized = append(normalized, g)
	}
	sort.Strings(normalized)
	return normalized
}
