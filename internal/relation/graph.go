// Package relation builds the foreign-key graph of a table registry and resolves the
// bounded related-entity neighbourhood of a table.
package relation

import (
	"sort"

	"github.com/reloquent/tabledoc/internal/schema"
)

// Edge is a foreign key between two registered tables.
type Edge struct {
	ChildTable    string
	ChildColumns  []string
	ParentTable   string
	ParentColumns []string
	FKName        string
	OnDelete      schema.FKAction
	Nullable      bool // at least one child column is nullable
}

// Graph holds forward (child -> parent) and reverse (parent -> child) adjacency.
// Foreign keys that point at tables missing from the registry are not part of it.
type Graph struct {
	reg     *schema.Registry
	edges   []Edge
	forward map[string][]string
	reverse map[string][]string
}

// NewGraph scans every table's foreign keys once.
func NewGraph(reg *schema.Registry) *Graph {
	g := &Graph{
		reg:     reg,
		forward: make(map[string][]string),
		reverse: make(map[string][]string),
	}

	for _, t := range reg.Tables() {
		for _, fk := range t.ForeignKeys {
			if !reg.Has(fk.ReferenceTable) {
				continue
			}
			edge := Edge{
				ChildTable:    t.Name,
				ChildColumns:  fk.Columns,
				ParentTable:   fk.ReferenceTable,
				ParentColumns: fk.ReferenceColumns,
				FKName:        fk.Name,
				OnDelete:      fk.OnDelete,
				Nullable:      anyNullable(t, fk.Columns),
			}
			g.edges = append(g.edges, edge)
			if edge.ChildTable == edge.ParentTable {
				continue
			}
			g.forward[t.Name] = appendUnique(g.forward[t.Name], fk.ReferenceTable)
			g.reverse[fk.ReferenceTable] = appendUnique(g.reverse[fk.ReferenceTable], t.Name)
		}
	}
	return g
}

func anyNullable(t *schema.Table, cols []string) bool {
	for _, name := range cols {
		if c := t.Column(name); c != nil && c.Nullable {
			return true
		}
	}
	return false
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// Edges returns all FK edges in the graph.
func (g *Graph) Edges() []Edge {
	return g.edges
}

// References returns the tables the given table references, sorted.
func (g *Graph) References(table string) []string {
	return sorted(g.forward[table])
}

// ReferencedBy returns the tables that reference the given table, sorted.
func (g *Graph) ReferencedBy(table string) []string {
	return sorted(g.reverse[table])
}

// Neighbours returns tables directly connected in either direction, excluding the table itself.
func (g *Graph) Neighbours(table string) []string {
	set := make(map[string]bool)
	for _, t := range g.forward[table] {
		set[t] = true
	}
	for _, t := range g.reverse[table] {
		set[t] = true
	}
	delete(set, table)
	return setToSorted(set)
}

// SelfReferences returns all FK edges where a table references itself.
func (g *Graph) SelfReferences() []Edge {
	var result []Edge
	for _, e := range g.edges {
		if e.ChildTable == e.ParentTable {
			result = append(result, e)
		}
	}
	return result
}

// DetectCycles finds cycles in the FK direction (child -> parent) using DFS.
// Self references are not reported. Each cycle is a list of table names.
func (g *Graph) DetectCycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	inStack := make(map[string]bool)

	var path []string
	var dfs func(node string)
	dfs = func(node string) {
		visited[node] = true
		inStack[node] = true
		path = append(path, node)

		for _, neighbor := range g.References(node) {
			if !visited[neighbor] {
				dfs(neighbor)
			} else if inStack[neighbor] {
				start := -1
				for i, n := range path {
					if n == neighbor {
						start = i
						break
					}
				}
				if start >= 0 {
					cycle := make([]string, len(path)-start)
					copy(cycle, path[start:])
					cycles = append(cycles, cycle)
				}
			}
		}

		path = path[:len(path)-1]
		inStack[node] = false
	}

	for _, name := range g.reg.Names() {
		if !visited[name] {
			dfs(name)
		}
	}
	return cycles
}

func sorted(list []string) []string {
	out := append([]string(nil), list...)
	sort.Strings(out)
	return out
}

func setToSorted(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
