// Package ddl reads and writes the narrow SQL subset used for per-table DDL files:
// one CREATE TABLE plus trailing CREATE INDEX, ALTER TABLE ... ADD CONSTRAINT and
// COMMENT ON statements.
package ddl

import (
	"fmt"
	"os"
	"strings"

	"github.com/reloquent/tabledoc/internal/schema"
	"github.com/reloquent/tabledoc/internal/typemap"
)

// ParseFile reads and parses a DDL file.
func ParseFile(path string, types *typemap.TypeMap) (*schema.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading DDL file: %w", err)
	}
	t, err := Parse(string(data), types)
	if err != nil {
		return nil, schema.WithPath(err, path)
	}
	t.Source = path
	return t, nil
}

// Parse extracts the table defined by the first CREATE TABLE statement in text.
// Statements that target other tables are ignored.
func Parse(text string, types *typemap.TypeMap) (*schema.Table, error) {
	if types == nil {
		types = typemap.Default()
	}
	clean := stripComments(text)
	if !balanced(clean) {
		return nil, schema.NewParseError(schema.MalformedSyntax, "", "unbalanced parentheses or quotes")
	}

	p := &parser{types: types}
	stmts := splitTopLevel(clean, ';')

	created := -1
	for i, stmt := range stmts {
		if isCreateTable(tokenize(stmt)) {
			created = i
			break
		}
	}
	if created < 0 {
		return nil, schema.NewParseError(schema.MalformedSyntax, "", "no CREATE TABLE statement")
	}
	if err := p.createTable(tokenize(stmts[created])); err != nil {
		return nil, err
	}

	for i, stmt := range stmts {
		if i == created {
			continue
		}
		toks := tokenize(stmt)
		if len(toks) < 2 {
			continue
		}
		var err error
		switch {
		case upper(toks[0]) == "CREATE" && isCreateIndex(toks):
			err = p.createIndex(toks)
		case upper(toks[0]) == "ALTER" && upper(toks[1]) == "TABLE":
			err = p.alterTable(toks)
		case upper(toks[0]) == "COMMENT" && upper(toks[1]) == "ON":
			err = p.commentOn(toks)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := p.finish(); err != nil {
		return nil, err
	}
	return p.table, nil
}

type parser struct {
	types *typemap.TypeMap
	table *schema.Table
	pk    []string // from a table-level PRIMARY KEY constraint
}

func isCreateTable(toks []string) bool {
	i := 0
	if i >= len(toks) || upper(toks[i]) != "CREATE" {
		return false
	}
	i++
	if i+1 < len(toks) && upper(toks[i]) == "OR" && upper(toks[i+1]) == "REPLACE" {
		i += 2
	}
	for i < len(toks) {
		switch upper(toks[i]) {
		case "TEMP", "TEMPORARY", "UNLOGGED", "GLOBAL", "LOCAL":
			i++
			continue
		}
		break
	}
	return i < len(toks) && upper(toks[i]) == "TABLE"
}

func isCreateIndex(toks []string) bool {
	for i := 1; i < len(toks) && i < 3; i++ {
		if upper(toks[i]) == "INDEX" {
			return true
		}
	}
	return false
}

func (p *parser) createTable(toks []string) error {
	i := 0
	for i < len(toks) && upper(toks[i]) != "TABLE" {
		i++
	}
	i++
	if i+2 < len(toks) && upper(toks[i]) == "IF" && upper(toks[i+1]) == "NOT" && upper(toks[i+2]) == "EXISTS" {
		i += 3
	}
	if i >= len(toks) || isGroup(toks[i]) {
		return schema.NewParseError(schema.MalformedSyntax, "", "CREATE TABLE without a table name")
	}
	p.table = &schema.Table{Name: unquoteIdent(toks[i])}
	i++
	if i >= len(toks) || !isGroup(toks[i]) {
		return schema.NewParseError(schema.MalformedSyntax, p.table.Name, "CREATE TABLE without a column list")
	}
	body := toks[i]
	i++

	for _, item := range groupItems(body) {
		itoks := tokenize(item)
		if len(itoks) == 0 {
			continue
		}
		if p.isTableConstraint(itoks) {
			if err := p.tableConstraint(itoks); err != nil {
				return err
			}
			continue
		}
		if err := p.column(itoks); err != nil {
			return err
		}
	}
	if len(p.table.Columns) == 0 {
		return schema.NewParseError(schema.MalformedSyntax, p.table.Name, "empty column list")
	}

	// MySQL table options, e.g. ENGINE=InnoDB COMMENT='...'
	for ; i < len(toks); i++ {
		kw := upper(toks[i])
		switch {
		case strings.HasPrefix(kw, "COMMENT="):
			p.table.Comment = unquoteString(toks[i][len("COMMENT="):])
		case kw == "COMMENT" && i+1 < len(toks):
			i++
			if toks[i] == "=" && i+1 < len(toks) {
				i++
			}
			p.table.Comment = unquoteString(toks[i])
		}
	}
	return nil
}

// isTableConstraint tells table constraints apart from columns whose names happen to
// be keywords, e.g. "key VARCHAR(50)".
func (p *parser) isTableConstraint(toks []string) bool {
	next := func(i int) string {
		if i < len(toks) {
			return upper(toks[i])
		}
		return ""
	}
	group := func(i int) bool {
		return i < len(toks) && isGroup(toks[i])
	}

	switch upper(toks[0]) {
	case "CONSTRAINT":
		return true
	case "PRIMARY", "FOREIGN":
		return next(1) == "KEY"
	case "CHECK":
		return group(1)
	case "EXCLUDE":
		return group(1) || next(1) == "USING"
	case "UNIQUE":
		return group(1) || next(1) == "KEY" || next(1) == "INDEX"
	case "KEY", "INDEX", "FULLTEXT", "SPATIAL":
		if group(1) {
			return true
		}
		return group(2) && !p.types.Supported(next(1))
	}
	return false
}

var columnKeywords = map[string]bool{
	"NOT": true, "NULL": true, "DEFAULT": true, "PRIMARY": true, "UNIQUE": true,
	"REFERENCES": true, "CHECK": true, "CONSTRAINT": true, "COMMENT": true,
	"COLLATE": true, "GENERATED": true, "AUTO_INCREMENT": true, "AUTOINCREMENT": true,
	"IDENTITY": true, "ON": true, "CHARSET": true,
}

var typeModifiers = map[string]bool{"UNSIGNED": true, "SIGNED": true, "ZEROFILL": true}

func isColumnKeyword(toks []string, i int) bool {
	kw := upper(toks[i])
	if kw == "CHARACTER" && i+1 < len(toks) && upper(toks[i+1]) == "SET" {
		return true
	}
	return columnKeywords[kw]
}

func (p *parser) column(toks []string) error {
	name := unquoteIdent(toks[0])
	if p.table.Column(name) != nil {
		return schema.NewParseError(schema.MalformedSyntax, name, "duplicate column")
	}

	i := 1
	var typeParts []string
	for i < len(toks) && !isColumnKeyword(toks, i) {
		if !typeModifiers[upper(toks[i])] {
			typeParts = append(typeParts, toks[i])
		}
		i++
	}
	if len(typeParts) == 0 {
		return schema.NewParseError(schema.MalformedSyntax, name, "column without a type")
	}
	rawType := strings.Join(typeParts, " ")
	spec, err := p.types.Parse(rawType)
	if err != nil {
		return &schema.ParseError{Kind: schema.UnsupportedDataType, Field: name, Message: fmt.Sprintf("type %q", rawType), Cause: err}
	}
	if !p.types.Supported(spec.Base) {
		return schema.NewParseError(schema.UnsupportedDataType, name, fmt.Sprintf("type %q", spec.Base))
	}

	col := schema.Column{
		Name:     name,
		Type:     spec.Base,
		Length:   spec.Length,
		Scale:    spec.Scale,
		Nullable: true,
	}
	if spec.Array {
		col.Type += "[]"
	}

	for i < len(toks) {
		switch upper(toks[i]) {
		case "NOT":
			if i+1 < len(toks) && upper(toks[i+1]) == "NULL" {
				col.Nullable = false
				i += 2
				continue
			}
			i++
		case "NULL":
			col.Nullable = true
			i++
		case "DEFAULT":
			i++
			start := i
			if i < len(toks) {
				i++
			}
			for i < len(toks) && !isColumnKeyword(toks, i) {
				i++
			}
			v := strings.Join(toks[start:i], " ")
			col.Default = &v
		case "PRIMARY":
			col.PrimaryKey = true
			col.Nullable = false
			i++
			if i < len(toks) && upper(toks[i]) == "KEY" {
				i++
			}
		case "UNIQUE":
			col.Unique = true
			i++
			if i < len(toks) && upper(toks[i]) == "KEY" {
				i++
			}
		case "REFERENCES":
			fk, next, err := p.references(toks, i+1, []string{name}, "")
			if err != nil {
				return err
			}
			p.table.ForeignKeys = append(p.table.ForeignKeys, fk)
			i = next
		case "COMMENT":
			i++
			if i < len(toks) && toks[i] == "=" {
				i++
			}
			if i < len(toks) {
				col.Comment = unquoteString(toks[i])
				i++
			}
		case "CHECK", "COLLATE", "CONSTRAINT":
			i += 2
		case "ON":
			// MySQL ON UPDATE CURRENT_TIMESTAMP
			i += 3
		default:
			i++
		}
	}

	p.table.Columns = append(p.table.Columns, col)
	return nil
}

// references parses "t (cols) [ON DELETE a] [ON UPDATE a]" starting at toks[i].
func (p *parser) references(toks []string, i int, cols []string, name string) (schema.ForeignKey, int, error) {
	if i >= len(toks) {
		return schema.ForeignKey{}, i, schema.NewParseError(schema.MalformedSyntax, strings.Join(cols, ","), "REFERENCES without a table")
	}
	fk := schema.ForeignKey{
		Name:           name,
		Columns:        cols,
		ReferenceTable: unquoteIdent(toks[i]),
		OnUpdate:       schema.Restrict,
		OnDelete:       schema.Restrict,
	}
	i++
	if i < len(toks) && isGroup(toks[i]) {
		fk.ReferenceColumns = identList(toks[i])
		i++
	}
	if len(fk.ReferenceColumns) != len(fk.Columns) {
		return fk, i, schema.NewParseError(schema.MalformedSyntax, strings.Join(cols, ","),
			fmt.Sprintf("%d columns reference %d columns of %s", len(fk.Columns), len(fk.ReferenceColumns), fk.ReferenceTable))
	}

	for i < len(toks) {
		switch upper(toks[i]) {
		case "ON":
			if i+2 >= len(toks) {
				return fk, i, schema.NewParseError(schema.MalformedSyntax, fk.ReferenceTable, "incomplete ON clause")
			}
			which := upper(toks[i+1])
			words := 1
			if w := upper(toks[i+2]); (w == "SET" || w == "NO") && i+3 < len(toks) {
				words = 2
			}
			action, err := schema.ParseFKAction(strings.Join(toks[i+2:i+2+words], " "))
			if err != nil {
				return fk, i, &schema.ParseError{Kind: schema.MalformedSyntax, Field: fk.ReferenceTable, Cause: err}
			}
			switch which {
			case "DELETE":
				fk.OnDelete = action
			case "UPDATE":
				fk.OnUpdate = action
			}
			i += 2 + words
		case "MATCH":
			i += 2
		case "DEFERRABLE", "INITIALLY", "DEFERRED", "IMMEDIATE":
			i++
		default:
			if fk.Name == "" {
				fk.Name = defaultFKName(p.table.Name, cols)
			}
			return fk, i, nil
		}
	}
	if fk.Name == "" {
		fk.Name = defaultFKName(p.table.Name, cols)
	}
	return fk, i, nil
}

func defaultFKName(table string, cols []string) string {
	return "fk_" + strings.ToLower(table) + "_" + strings.Join(cols, "_")
}

// tableConstraint handles [CONSTRAINT n] PRIMARY KEY | UNIQUE | FOREIGN KEY | CHECK and
// MySQL inline KEY / INDEX definitions.
func (p *parser) tableConstraint(toks []string) error {
	i := 0
	var name string
	if upper(toks[0]) == "CONSTRAINT" {
		if len(toks) < 3 {
			return schema.NewParseError(schema.MalformedSyntax, p.table.Name, "incomplete CONSTRAINT clause")
		}
		name = unquoteIdent(toks[1])
		i = 2
	}

	switch upper(toks[i]) {
	case "PRIMARY":
		cols := firstGroup(toks[i:])
		if len(cols) == 0 {
			return schema.NewParseError(schema.MalformedSyntax, p.table.Name, "PRIMARY KEY without columns")
		}
		p.pk = cols
	case "UNIQUE":
		i++
		for i < len(toks) && (upper(toks[i]) == "KEY" || upper(toks[i]) == "INDEX") {
			i++
		}
		if i < len(toks) && !isGroup(toks[i]) {
			name = unquoteIdent(toks[i])
		}
		cols := firstGroup(toks[i:])
		if len(cols) == 0 {
			return schema.NewParseError(schema.MalformedSyntax, p.table.Name, "UNIQUE without columns")
		}
		p.addUnique(name, cols)
	case "KEY", "INDEX":
		i++
		if i < len(toks) && !isGroup(toks[i]) {
			name = unquoteIdent(toks[i])
		}
		cols := firstGroup(toks[i:])
		if len(cols) > 0 {
			p.table.Indexes = append(p.table.Indexes, schema.Index{Name: name, Columns: cols})
		}
	case "FOREIGN":
		i++
		if i < len(toks) && upper(toks[i]) == "KEY" {
			i++
		}
		if i >= len(toks) || !isGroup(toks[i]) {
			return schema.NewParseError(schema.MalformedSyntax, p.table.Name, "FOREIGN KEY without columns")
		}
		cols := identList(toks[i])
		i++
		if i >= len(toks) || upper(toks[i]) != "REFERENCES" {
			return schema.NewParseError(schema.MalformedSyntax, p.table.Name, "FOREIGN KEY without REFERENCES")
		}
		fk, _, err := p.references(toks, i+1, cols, name)
		if err != nil {
			return err
		}
		p.table.ForeignKeys = append(p.table.ForeignKeys, fk)
	}
	return nil
}

// addUnique records a single-column unique constraint on the column and a
// multi-column one as a unique index.
func (p *parser) addUnique(name string, cols []string) {
	if len(cols) == 1 {
		if c := p.table.Column(cols[0]); c != nil {
			c.Unique = true
			return
		}
	}
	if name == "" {
		name = "uq_" + strings.ToLower(p.table.Name) + "_" + strings.Join(cols, "_")
	}
	p.table.Indexes = append(p.table.Indexes, schema.Index{Name: name, Columns: cols, Unique: true})
}

func firstGroup(toks []string) []string {
	for _, t := range toks {
		if isGroup(t) {
			return identList(t)
		}
	}
	return nil
}

func (p *parser) targets(tok string) bool {
	return strings.EqualFold(unquoteIdent(tok), p.table.Name)
}

// createIndex handles CREATE [UNIQUE] INDEX [CONCURRENTLY] [IF NOT EXISTS] n ON [ONLY] t [USING m] (cols).
func (p *parser) createIndex(toks []string) error {
	i := 1
	unique := false
	if upper(toks[i]) == "UNIQUE" {
		unique = true
		i++
	}
	i++ // INDEX
	if i < len(toks) && upper(toks[i]) == "CONCURRENTLY" {
		i++
	}
	if i+2 < len(toks) && upper(toks[i]) == "IF" && upper(toks[i+1]) == "NOT" && upper(toks[i+2]) == "EXISTS" {
		i += 3
	}
	var name string
	if i < len(toks) && upper(toks[i]) != "ON" {
		name = unquoteIdent(toks[i])
		i++
	}
	if i >= len(toks) || upper(toks[i]) != "ON" {
		return schema.NewParseError(schema.MalformedSyntax, name, "CREATE INDEX without ON")
	}
	i++
	if i < len(toks) && upper(toks[i]) == "ONLY" {
		i++
	}
	if i >= len(toks) || !p.targets(toks[i]) {
		return nil
	}
	cols := firstGroup(toks[i+1:])
	if len(cols) == 0 {
		return schema.NewParseError(schema.MalformedSyntax, name, "CREATE INDEX without columns")
	}
	p.table.Indexes = append(p.table.Indexes, schema.Index{Name: name, Columns: cols, Unique: unique})
	return nil
}

// alterTable handles ALTER TABLE [ONLY] [IF EXISTS] t ADD [CONSTRAINT n] ..., ADD ...
func (p *parser) alterTable(toks []string) error {
	i := 2
	for i < len(toks) {
		kw := upper(toks[i])
		if kw == "ONLY" || kw == "IF" || kw == "EXISTS" {
			i++
			continue
		}
		break
	}
	if i >= len(toks) || !p.targets(toks[i]) {
		return nil
	}
	i++

	var action []string
	flush := func() error {
		defer func() { action = action[:0] }()
		if len(action) < 2 || upper(action[0]) != "ADD" {
			return nil
		}
		rest := action[1:]
		if upper(rest[0]) == "COLUMN" {
			return nil
		}
		if p.isTableConstraint(rest) {
			return p.tableConstraint(rest)
		}
		return nil
	}
	for ; i < len(toks); i++ {
		if toks[i] == "," {
			if err := flush(); err != nil {
				return err
			}
			continue
		}
		action = append(action, toks[i])
	}
	return flush()
}

// commentOn handles COMMENT ON TABLE t IS '...' and COMMENT ON COLUMN t.c IS '...'.
func (p *parser) commentOn(toks []string) error {
	if len(toks) < 6 || upper(toks[4]) != "IS" {
		return nil
	}
	text := unquoteString(toks[5])
	switch upper(toks[2]) {
	case "TABLE":
		if p.targets(toks[3]) {
			p.table.Comment = text
		}
	case "COLUMN":
		parts := qualifiedParts(toks[3])
		if len(parts) < 2 || !strings.EqualFold(parts[len(parts)-2], p.table.Name) {
			return nil
		}
		if c := p.table.Column(parts[len(parts)-1]); c != nil {
			c.Comment = text
		}
	}
	return nil
}

func (p *parser) finish() error {
	if len(p.pk) > 0 {
		for _, c := range p.table.Columns {
			if c.PrimaryKey && !contains(p.pk, c.Name) {
				return schema.NewParseError(schema.MalformedSyntax, c.Name, "primary key declared both inline and as a table constraint")
			}
		}
		for _, name := range p.pk {
			c := p.table.Column(name)
			if c == nil {
				return schema.NewParseError(schema.MalformedSyntax, name, "PRIMARY KEY names an unknown column")
			}
			c.PrimaryKey = true
			c.Nullable = false
		}
	} else if pk := p.table.PrimaryKeyColumns(); len(pk) > 1 {
		return schema.NewParseError(schema.MalformedSyntax, strings.Join(pk, ","), "more than one inline PRIMARY KEY")
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
