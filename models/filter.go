package models

import "strings"

// FilterAll is the wildcard value accepted by the status and category
// filters.
const FilterAll = "All"

// ReportFilter is the dashboard's client-local filter. Every field is
// optional; zero values match everything. The predicate is pure, so
// applying it twice, or applying the fields in any order, yields the same
// subset.
type ReportFilter struct {
	Status   string `json:"status,omitempty"`
	Category string `json:"category,omitempty"`
	Search   string `json:"search,omitempty"`
}

// Matches reports whether a report passes all filter fields. Status and
// category are exact matches, search is a case-insensitive substring match
// over the report id and city.
func (f ReportFilter) Matches(r Report) bool {
	if f.Status != "" && f.Status != FilterAll && r.Status != f.Status {
		return false
	}
	if f.Category != "" && f.Category != FilterAll && r.Category != f.Category {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(r.ID), q) &&
			!strings.Contains(strings.ToLower(r.City), q) {
			return false
		}
	}
	return true
}

// Apply returns the reports that pass the filter, preserving order. The
// input slice is never modified.
func (f ReportFilter) Apply(reports []Report) []Report {
	filtered := make([]Report, 0, len(reports))
	for _, r := range reports {
		if f.Matches(r) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// Categories returns the distinct categories present in reports, in
// first-seen order, prefixed with the "All" wildcard.
func Categories(reports []Report) []string {
	categories := []string{FilterAll}
	seen := make(map[string]bool)
	for _, r := range reports {
		if !seen[r.Category] {
			seen[r.Category] = true
			categories = append(categories, r.Category)
		}
	}
	return categories
}
