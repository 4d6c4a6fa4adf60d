package schema

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/reloquent/tabledoc/internal/typemap"
)

// Table is one table definition. Columns keep declaration order.
type Table struct {
	Name        string
	LogicalName string
	Category    string
	Comment     string
	Columns     []Column
	Indexes     []Index
	ForeignKeys []ForeignKey

	// Metadata holds sections that are carried through but not validated
	// (notes, rules, revision_history, sample_data and unknown keys).
	Metadata map[string]*yaml.Node

	// Source is the file the table was parsed from, if any.
	Source string
}

// Column represents a table column.
type Column struct {
	Name        string
	LogicalName string
	Type        string // canonical uppercase base type, e.g. VARCHAR
	Length      *int   // length or precision
	Scale       *int
	Nullable    bool
	PrimaryKey  bool
	Unique      bool
	Default     *string
	Comment     string
}

// FullType renders the column type with its arguments, e.g. VARCHAR(50) or DECIMAL(10,2).
func (c Column) FullType() string {
	base, array := strings.CutSuffix(c.Type, "[]")
	s := typemap.Format(base, c.Length, c.Scale)
	if array {
		s += "[]"
	}
	return s
}

// FKAction is a referential action for ON UPDATE / ON DELETE.
type FKAction string

const (
	Cascade  FKAction = "CASCADE"
	Restrict FKAction = "RESTRICT"
	SetNull  FKAction = "SET NULL"
	NoAction FKAction = "NO ACTION"
)

// ParseFKAction parses an action keyword. An empty string yields RESTRICT.
func ParseFKAction(s string) (FKAction, error) {
	switch strings.Join(strings.Fields(strings.ToUpper(s)), " ") {
	case "":
		return Restrict, nil
	case "CASCADE":
		return Cascade, nil
	case "RESTRICT":
		return Restrict, nil
	case "SET NULL":
		return SetNull, nil
	case "NO ACTION":
		return NoAction, nil
	}
	return "", fmt.Errorf("unknown referential action %q", s)
}

// ForeignKey represents a foreign key relationship.
type ForeignKey struct {
	Name             string
	Columns          []string
	ReferenceTable   string
	ReferenceColumns []string
	OnUpdate         FKAction
	OnDelete         FKAction
}

// Key identifies a foreign key independent of its name and actions.
func (fk ForeignKey) Key() string {
	return strings.Join(fk.Columns, ",") + "->" + fk.ReferenceTable + "(" + strings.Join(fk.ReferenceColumns, ",") + ")"
}

// Index represents an index.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// PrimaryKeyColumns returns the primary key column names in declaration order.
func (t *Table) PrimaryKeyColumns() []string {
	var cols []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// IsForeignKeyColumn reports whether the column takes part in any foreign key.
func (t *Table) IsForeignKeyColumn(name string) bool {
	for _, fk := range t.ForeignKeys {
		for _, c := range fk.Columns {
			if c == name {
				return true
			}
		}
	}
	return false
}

// DisplayName returns the logical name when set, otherwise the physical name.
func (t *Table) DisplayName() string {
	if t.LogicalName != "" {
		return t.LogicalName
	}
	return t.Name
}
