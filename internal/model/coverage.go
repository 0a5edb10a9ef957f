package model

import "fmt"

// CoverageKind distinguishes the three namespaces an entitlement can unlock.
// Keeping the kind explicit avoids silent collisions between a category and a
// bundle plan that happen to share a name.
type CoverageKind string

const (
	CoverageCategory    CoverageKind = "category"
	CoverageSubcategory CoverageKind = "subcategory"
	CoverageBundle      CoverageKind = "bundle"
)

// Coverage identifies what an entitlement unlocks.
type Coverage struct {
	Kind CoverageKind `json:"kind"`
	Name string       `json:"name"`
}

// ParseCoverageKind validates a kind coming in over the API.
func ParseCoverageKind(s string) (CoverageKind, error) {
	switch CoverageKind(s) {
	case CoverageCategory, CoverageSubcategory, CoverageBundle:
		return CoverageKind(s), nil
	}
	return "", fmt.Errorf("unknown coverage kind: %q", s)
}

// Covers reports whether this coverage unlocks the given capability.
// bundlePlanNames is the set of bundle plans that explicitly include the
// capability.
func (c Coverage) Covers(cap *Capability, bundlePlanNames []string) bool {
	switch c.Kind {
	case CoverageCategory:
		return c.Name == cap.Category
	case CoverageSubcategory:
		return cap.Subcategory != "" && c.Name == cap.Subcategory
	case CoverageBundle:
		for _, name := range bundlePlanNames {
			if c.Name == name {
				return true
			}
		}
	}
	return false
}
