package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Summary returns a human-readable summary of the registry.
func (r *Registry) Summary() string {
	var totalCols, totalFKs, totalIdx int
	categories := make(map[string]int)

	for _, t := range r.Tables() {
		totalCols += len(t.Columns)
		totalFKs += len(t.ForeignKeys)
		totalIdx += len(t.Indexes)
		cat := t.Category
		if cat == "" {
			cat = "uncategorized"
		}
		categories[cat]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d tables, %d columns, %d foreign keys, %d indexes",
		r.Len(), totalCols, totalFKs, totalIdx)

	if len(categories) > 0 {
		cats := make([]string, 0, len(categories))
		for c := range categories {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		parts := make([]string, len(cats))
		for i, c := range cats {
			parts[i] = fmt.Sprintf("%s: %d", c, categories[c])
		}
		b.WriteString("\nCategories: ")
		b.WriteString(strings.Join(parts, ", "))
	}
	return b.String()
}
