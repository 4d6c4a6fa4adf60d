package relation

import "github.com/reloquent/tabledoc/internal/schema"

// Kind labels a relationship for diagrams. It is inferred from the ON DELETE action
// and carries no semantic weight elsewhere.
type Kind string

const (
	Composition Kind = "composition"
	Aggregation Kind = "aggregation"
	Association Kind = "association"
)

// Classify infers the relationship kind from the foreign key's delete action.
func Classify(onDelete schema.FKAction) Kind {
	switch onDelete {
	case schema.Cascade:
		return Composition
	case schema.SetNull:
		return Aggregation
	default:
		return Association
	}
}

// Cardinality returns the Mermaid relationship symbol for an edge drawn parent to child:
// a nullable reference is zero-or-one on the parent side.
func Cardinality(e Edge) string {
	if e.Nullable {
		return "|o--o{"
	}
	return "||--o{"
}
