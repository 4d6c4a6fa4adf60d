package relation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTable is returned when the target table is not in the registry.
var ErrUnknownTable = errors.New("unknown table")

const (
	DefaultMaxDepth   = 2
	DefaultMaxRelated = 8
)

// Options bounds a Related query. Zero values select the defaults.
type Options struct {
	MaxDepth   int // 0..2, default 2; negative means 0
	MaxRelated int // cap on hop-2 members; zero or negative means the default 8
	Priority   func(table string) bool
}

// Result is the related-entity neighbourhood of a target table.
// Depths[0] is the target, Depths[1] the directly connected tables and Depths[2]
// the tables reached only through a hop-1 table. The three sets are disjoint.
type Result struct {
	Target    string
	Depths    map[int][]string
	Edges     []Edge // FK edges whose both ends are members, self references included
	Truncated int    // hop-2 candidates dropped by the cap
}

// Members returns every table in the result: target first, then hop 1, then hop 2.
func (r *Result) Members() []string {
	out := append([]string(nil), r.Depths[0]...)
	out = append(out, r.Depths[1]...)
	return append(out, r.Depths[2]...)
}

// Empty reports whether the target has no related tables.
func (r *Result) Empty() bool {
	return len(r.Depths[1]) == 0 && len(r.Depths[2]) == 0
}

// Depth returns the hop depth of table, or -1 when it is not a member.
func (r *Result) Depth(table string) int {
	for d := 0; d <= 2; d++ {
		for _, t := range r.Depths[d] {
			if t == table {
				return d
			}
		}
	}
	return -1
}

// Related computes the bounded neighbourhood of target.
func (g *Graph) Related(target string, opts Options) (*Result, error) {
	if !g.reg.Has(target) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, target)
	}
	opts = opts.withDefaults()

	res := &Result{
		Target: target,
		Depths: map[int][]string{0: {target}, 1: {}, 2: {}},
	}
	if opts.MaxDepth >= 1 {
		res.Depths[1] = g.Neighbours(target)
	}
	if opts.MaxDepth >= 2 {
		g.secondHop(res, opts)
	}
	res.Edges = g.edgesWithin(res.Members())
	return res, nil
}

func (g *Graph) secondHop(res *Result, opts Options) {
	hop1 := res.Depths[1]
	seen := map[string]bool{res.Target: true}
	for _, t := range hop1 {
		seen[t] = true
	}
	candidates := make(map[string]bool)
	for _, t := range hop1 {
		for _, n := range g.Neighbours(t) {
			if !seen[n] {
				candidates[n] = true
			}
		}
	}

	hop2 := setToSorted(candidates)
	if len(hop2) > opts.MaxRelated {
		var priority, other []string
		for _, t := range hop2 {
			if opts.Priority != nil && opts.Priority(t) {
				priority = append(priority, t)
			} else {
				other = append(other, t)
			}
		}
		kept := append(priority, other...)[:opts.MaxRelated]
		res.Truncated = len(hop2) - len(kept)
		hop2 = setToSorted(toSet(kept))
	}
	res.Depths[2] = hop2
}

func (o Options) withDefaults() Options {
	if o.MaxDepth == 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.MaxDepth < 0 {
		o.MaxDepth = 0
	}
	if o.MaxDepth > 2 {
		o.MaxDepth = 2
	}
	if o.MaxRelated <= 0 {
		o.MaxRelated = DefaultMaxRelated
	}
	return o
}

func toSet(list []string) map[string]bool {
	m := make(map[string]bool, len(list))
	for _, s := range list {
		m[s] = true
	}
	return m
}

func (g *Graph) edgesWithin(members []string) []Edge {
	member := toSet(members)
	var out []Edge
	for _, e := range g.edges {
		if member[e.ChildTable] && member[e.ParentTable] {
			out = append(out, e)
		}
	}
	return out
}

// PriorityFromConfig builds a priority predicate that matches any of the name
// prefixes or any table in the important set.
func PriorityFromConfig(prefixes, important []string) func(string) bool {
	imp := toSet(important)
	pre := append([]string(nil), prefixes...)
	return func(table string) bool {
		if imp[table] {
			return true
		}
		for _, p := range pre {
			if p != "" && strings.HasPrefix(table, p) {
				return true
			}
		}
		return false
	}
}
