package catalog

import "strings"

// Division tiers derived from the contest name. Combined and special
// rounds share the div. 1 + div. 2 tier.
const (
	DivCombined = 5
)

// DivisionType classifies a contest name into a division tier.
func DivisionType(name string) int {
	title := strings.ToLower(name)
	if strings.Contains(title, "hello") ||
		strings.Contains(title, "good bye") ||
		strings.Contains(title, "goodbye") {
		return DivCombined
	}
	if strings.Contains(title, "div. 1 + div. 2") || strings.Contains(title, "global") {
		return DivCombined
	}
	if strings.Contains(title, "div. 1") {
		return 1
	}
	if strings.Contains(title, "div. 2") || strings.Contains(title, "educational") {
		return 2
	}
	if strings.Contains(title, "div. 3") {
		return 3
	}
	if strings.Contains(title, "div. 4") {
		return 4
	}
	return DivCombined // specially named rounds run as div. 1 + div. 2
}
