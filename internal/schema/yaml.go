package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/reloquent/tabledoc/internal/typemap"
)

// Top-level keys decoded into Table fields. Everything else lands in Metadata.
var documentKeys = map[string]bool{
	"table_name":   true,
	"logical_name": true,
	"category":     true,
	"comment":      true,
	"primary_key":  true,
	"columns":      true,
	"indexes":      true,
	"foreign_keys": true,
}

// Metadata sections with a fixed rendering order in generated documents.
var MetadataSections = []string{"notes", "rules", "revision_history", "sample_data"}

type document struct {
	TableName   string          `yaml:"table_name"`
	LogicalName string          `yaml:"logical_name,omitempty"`
	Category    string          `yaml:"category,omitempty"`
	Comment     string          `yaml:"comment,omitempty"`
	PrimaryKey  stringList      `yaml:"primary_key,omitempty"`
	Columns     []columnDoc     `yaml:"columns"`
	Indexes     []indexDoc      `yaml:"indexes,omitempty"`
	ForeignKeys []foreignKeyDoc `yaml:"foreign_keys,omitempty"`
}

type columnDoc struct {
	Name        string  `yaml:"name"`
	LogicalName string  `yaml:"logical_name,omitempty"`
	Type        string  `yaml:"type"`
	Length      *int    `yaml:"length,omitempty"`
	Scale       *int    `yaml:"scale,omitempty"`
	Nullable    *bool   `yaml:"nullable,omitempty"`
	PrimaryKey  bool    `yaml:"primary_key,omitempty"`
	Unique      bool    `yaml:"unique,omitempty"`
	Default     *string `yaml:"default,omitempty"`
	Comment     string  `yaml:"comment,omitempty"`
}

type indexDoc struct {
	Name    string     `yaml:"name,omitempty"`
	Columns stringList `yaml:"columns"`
	Unique  bool       `yaml:"unique,omitempty"`
}

type foreignKeyDoc struct {
	Name             string     `yaml:"name,omitempty"`
	Column           stringList `yaml:"column,omitempty"`
	Columns          stringList `yaml:"columns,omitempty"`
	ReferenceTable   string     `yaml:"reference_table"`
	ReferenceColumn  stringList `yaml:"reference_column,omitempty"`
	ReferenceColumns stringList `yaml:"reference_columns,omitempty"`
	OnUpdate         string     `yaml:"on_update,omitempty"`
	OnDelete         string     `yaml:"on_delete,omitempty"`
}

// stringList accepts either a scalar or a sequence of scalars.
type stringList []string

func (s *stringList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" || n.Value == "" {
			*s = nil
			return nil
		}
		*s = stringList{n.Value}
		return nil
	case yaml.SequenceNode:
		var v []string
		if err := n.Decode(&v); err != nil {
			return err
		}
		*s = v
		return nil
	}
	return fmt.Errorf("line %d: expected a name or a list of names", n.Line)
}

// ParseYAMLFile reads and parses a per-table YAML definition.
func ParseYAMLFile(path string, types *typemap.TypeMap) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading table definition: %w", err)
	}
	t, err := ParseYAML(data, types)
	if err != nil {
		return nil, WithPath(err, path)
	}
	t.Source = path
	return t, nil
}

// ParseYAML parses a per-table YAML definition. A nil type map uses the built-in one.
func ParseYAML(data []byte, types *typemap.TypeMap) (*Table, error) {
	if types == nil {
		types = typemap.Default()
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ParseError{Kind: MalformedSyntax, Message: "invalid YAML", Cause: err}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, NewParseError(MissingRequiredField, "table_name", "empty document")
	}
	body := root.Content[0]
	if body.Kind != yaml.MappingNode {
		return nil, NewParseError(MalformedSyntax, "", "top level must be a mapping")
	}

	var doc document
	if err := body.Decode(&doc); err != nil {
		return nil, &ParseError{Kind: MalformedSyntax, Message: "decoding table definition", Cause: err}
	}

	t, err := doc.toTable(types)
	if err != nil {
		return nil, err
	}

	for i := 0; i+1 < len(body.Content); i += 2 {
		key := body.Content[i].Value
		if documentKeys[key] {
			continue
		}
		if t.Metadata == nil {
			t.Metadata = make(map[string]*yaml.Node)
		}
		t.Metadata[key] = body.Content[i+1]
	}
	return t, nil
}

// toTable validates the decoded document and applies defaults.
func (d *document) toTable(types *typemap.TypeMap) (*Table, error) {
	name := strings.TrimSpace(d.TableName)
	if name == "" {
		return nil, NewParseError(MissingRequiredField, "table_name", "")
	}
	if len(d.Columns) == 0 {
		return nil, NewParseError(MissingRequiredField, "columns", "at least one column is required")
	}

	t := &Table{
		Name:        name,
		LogicalName: d.LogicalName,
		Category:    d.Category,
		Comment:     d.Comment,
	}

	seen := make(map[string]bool, len(d.Columns))
	for i, cd := range d.Columns {
		col, err := cd.toColumn(i, types)
		if err != nil {
			return nil, err
		}
		if seen[col.Name] {
			return nil, NewParseError(MalformedSyntax, col.Name, "duplicate column name")
		}
		seen[col.Name] = true
		t.Columns = append(t.Columns, col)
	}

	if err := applyPrimaryKey(t, d.PrimaryKey); err != nil {
		return nil, err
	}

	for i, id := range d.Indexes {
		if len(id.Columns) == 0 {
			return nil, NewParseError(MissingRequiredField, fmt.Sprintf("indexes[%d].columns", i), "")
		}
		idx := Index{Name: id.Name, Columns: []string(id.Columns), Unique: id.Unique}
		if idx.Name == "" {
			idx.Name = "idx_" + strings.ToLower(t.Name) + "_" + strings.Join(idx.Columns, "_")
		}
		t.Indexes = append(t.Indexes, idx)
	}

	for i, fd := range d.ForeignKeys {
		fk, err := fd.toForeignKey(i, t.Name)
		if err != nil {
			return nil, err
		}
		t.ForeignKeys = append(t.ForeignKeys, fk)
	}
	return t, nil
}

func (cd columnDoc) toColumn(i int, types *typemap.TypeMap) (Column, error) {
	name := strings.TrimSpace(cd.Name)
	if name == "" {
		return Column{}, NewParseError(MissingRequiredField, fmt.Sprintf("columns[%d].name", i), "")
	}
	if strings.TrimSpace(cd.Type) == "" {
		return Column{}, NewParseError(MissingRequiredField, name+".type", "")
	}

	spec, err := types.Parse(cd.Type)
	if err != nil {
		return Column{}, &ParseError{Kind: UnsupportedDataType, Field: name, Message: fmt.Sprintf("type %q", cd.Type), Cause: err}
	}
	if !types.Supported(spec.Base) {
		return Column{}, NewParseError(UnsupportedDataType, name, fmt.Sprintf("type %q", spec.Base))
	}

	col := Column{
		Name:        name,
		LogicalName: cd.LogicalName,
		Type:        spec.Base,
		Length:      spec.Length,
		Scale:       spec.Scale,
		Nullable:    true,
		PrimaryKey:  cd.PrimaryKey,
		Unique:      cd.Unique,
		Default:     cd.Default,
		Comment:     cd.Comment,
	}
	if spec.Array {
		col.Type += "[]"
	}

	if cd.Length != nil {
		if col.Length != nil && *col.Length != *cd.Length {
			return Column{}, NewParseError(MalformedSyntax, name, fmt.Sprintf("length %d conflicts with type %q", *cd.Length, cd.Type))
		}
		col.Length = cd.Length
	}
	if cd.Scale != nil {
		if col.Length == nil {
			return Column{}, NewParseError(MalformedSyntax, name, "scale given without length")
		}
		if col.Scale != nil && *col.Scale != *cd.Scale {
			return Column{}, NewParseError(MalformedSyntax, name, fmt.Sprintf("scale %d conflicts with type %q", *cd.Scale, cd.Type))
		}
		col.Scale = cd.Scale
	}
	if col.Length != nil && *col.Length <= 0 {
		return Column{}, NewParseError(MalformedSyntax, name, "length must be positive")
	}

	if cd.Nullable != nil {
		col.Nullable = *cd.Nullable
	}
	return col, nil
}

// applyPrimaryKey reconciles column-level primary_key flags with an optional
// table-level primary_key list. Primary key columns are never nullable.
func applyPrimaryKey(t *Table, composite []string) error {
	flagged := t.PrimaryKeyColumns()

	if len(composite) == 0 {
		if len(flagged) > 1 {
			return NewParseError(MalformedSyntax, strings.Join(flagged, ","),
				"more than one column flagged primary; declare a table-level primary_key list for a composite key")
		}
	} else {
		inList := make(map[string]bool, len(composite))
		for _, name := range composite {
			c := t.Column(name)
			if c == nil {
				return NewParseError(MalformedSyntax, name, "primary_key names an unknown column")
			}
			inList[name] = true
			c.PrimaryKey = true
		}
		for _, name := range flagged {
			if !inList[name] {
				return NewParseError(MalformedSyntax, name, "column flagged primary but missing from primary_key list")
			}
		}
	}

	for i := range t.Columns {
		if t.Columns[i].PrimaryKey {
			t.Columns[i].Nullable = false
		}
	}
	return nil
}

func (fd foreignKeyDoc) toForeignKey(i int, table string) (ForeignKey, error) {
	field := fmt.Sprintf("foreign_keys[%d]", i)
	cols := append([]string(fd.Column), fd.Columns...)
	refCols := append([]string(fd.ReferenceColumn), fd.ReferenceColumns...)

	if len(cols) == 0 {
		return ForeignKey{}, NewParseError(MissingRequiredField, field+".columns", "")
	}
	if strings.TrimSpace(fd.ReferenceTable) == "" {
		return ForeignKey{}, NewParseError(MissingRequiredField, field+".reference_table", "")
	}
	if len(refCols) == 0 {
		return ForeignKey{}, NewParseError(MissingRequiredField, field+".reference_columns", "")
	}
	if len(cols) != len(refCols) {
		return ForeignKey{}, NewParseError(MalformedSyntax, field,
			fmt.Sprintf("%d columns but %d reference columns", len(cols), len(refCols)))
	}

	onUpdate, err := ParseFKAction(fd.OnUpdate)
	if err != nil {
		return ForeignKey{}, &ParseError{Kind: MalformedSyntax, Field: field + ".on_update", Cause: err}
	}
	onDelete, err := ParseFKAction(fd.OnDelete)
	if err != nil {
		return ForeignKey{}, &ParseError{Kind: MalformedSyntax, Field: field + ".on_delete", Cause: err}
	}

	fk := ForeignKey{
		Name:             fd.Name,
		Columns:          cols,
		ReferenceTable:   strings.TrimSpace(fd.ReferenceTable),
		ReferenceColumns: refCols,
		OnUpdate:         onUpdate,
		OnDelete:         onDelete,
	}
	if fk.Name == "" {
		fk.Name = "fk_" + strings.ToLower(table) + "_" + strings.Join(cols, "_")
	}
	return fk, nil
}

// MarshalYAML renders the table back into the per-table YAML layout.
func (t *Table) MarshalYAML() (any, error) {
	doc := document{
		TableName:   t.Name,
		LogicalName: t.LogicalName,
		Category:    t.Category,
		Comment:     t.Comment,
	}
	pk := t.PrimaryKeyColumns()
	if len(pk) > 1 {
		doc.PrimaryKey = pk
	}
	for _, c := range t.Columns {
		nullable := c.Nullable
		cd := columnDoc{
			Name:        c.Name,
			LogicalName: c.LogicalName,
			Type:        c.FullType(),
			PrimaryKey:  c.PrimaryKey && len(pk) == 1,
			Unique:      c.Unique,
			Default:     c.Default,
			Comment:     c.Comment,
		}
		if !c.PrimaryKey {
			cd.Nullable = &nullable
		}
		doc.Columns = append(doc.Columns, cd)
	}
	for _, idx := range t.Indexes {
		doc.Indexes = append(doc.Indexes, indexDoc{Name: idx.Name, Columns: idx.Columns, Unique: idx.Unique})
	}
	for _, fk := range t.ForeignKeys {
		fd := foreignKeyDoc{
			Name:             fk.Name,
			Columns:          fk.Columns,
			ReferenceTable:   fk.ReferenceTable,
			ReferenceColumns: fk.ReferenceColumns,
		}
		if fk.OnUpdate != "" && fk.OnUpdate != Restrict {
			fd.OnUpdate = string(fk.OnUpdate)
		}
		if fk.OnDelete != "" && fk.OnDelete != Restrict {
			fd.OnDelete = string(fk.OnDelete)
		}
		doc.ForeignKeys = append(doc.ForeignKeys, fd)
	}

	var node yaml.Node
	if err := node.Encode(doc); err != nil {
		return nil, err
	}
	for _, key := range metadataKeys(t.Metadata) {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			t.Metadata[key])
	}
	return &node, nil
}

// WriteYAML writes the table definition to path, creating parent directories.
func (t *Table) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshaling table %s: %w", t.Name, err)
	}
	return os.WriteFile(path, data, 0o644)
}

// MetadataKeys returns the metadata keys: known sections first, then the rest sorted.
func (t *Table) MetadataKeys() []string {
	return metadataKeys(t.Metadata)
}

func metadataKeys(m map[string]*yaml.Node) []string {
	var keys []string
	for _, k := range MetadataSections {
		if _, ok := m[k]; ok {
			keys = append(keys, k)
		}
	}
	var rest []string
	for k := range m {
		if !isMetadataSection(k) {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func isMetadataSection(k string) bool {
	for _, s := range MetadataSections {
		if s == k {
			return true
		}
	}
	return false
}

// SampleRows decodes the sample_data section as a list of column/value maps.
func (t *Table) SampleRows() ([]map[string]any, error) {
	node, ok := t.Metadata["sample_data"]
	if !ok || node == nil {
		return nil, nil
	}
	var rows []map[string]any
	if err := node.Decode(&rows); err != nil {
		return nil, fmt.Errorf("sample_data of %s must be a list of mappings: %w", t.Name, err)
	}
	return rows, nil
}
