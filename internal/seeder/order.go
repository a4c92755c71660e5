package seeder

import "sort"

// InsertionOrder puts the priority collections first, in the order given and
// only when present, followed by every other collection alphabetically.
func InsertionOrder(names []string, first []string) []string {
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}

	order := make([]string, 0, len(names))
	placed := make(map[string]bool, len(names))
	for _, n := range first {
		if present[n] && !placed[n] {
			order = append(order, n)
			placed[n] = true
		}
	}

	var rest []string
	for _, n := range names {
		if !placed[n] {
			rest = append(rest, n)
			placed[n] = true
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}
