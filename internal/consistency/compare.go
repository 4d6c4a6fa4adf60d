package consistency

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/reloquent/tabledoc/internal/schema"
	"github.com/reloquent/tabledoc/internal/typemap"
)

// comparer diffs the YAML table against the source table.
type comparer struct {
	fs      *findings
	side    string // source label used inside messages, e.g. "DDL"
	types   *typemap.TypeMap
	lenient bool // live databases report serial columns as integers with a sequence default
}

func (c *comparer) columns(y, d *schema.Table) {
	for _, yc := range y.Columns {
		if d.Column(yc.Name) == nil {
			c.fs.errorf(CategoryColumn, yc.Name, "column %s exists in YAML but not in %s", yc.Name, c.side)
		}
	}
	for _, dc := range d.Columns {
		if y.Column(dc.Name) == nil {
			c.fs.errorf(CategoryColumn, dc.Name, "column %s exists in %s but not in YAML", dc.Name, c.side)
		}
	}

	for _, yc := range y.Columns {
		dc := d.Column(yc.Name)
		if dc == nil {
			continue
		}
		yt, dt := yc.FullType(), dc.FullType()
		if yt != dt && !(c.lenient && c.types.ReferenceCompatible(yt, dt)) {
			c.fs.errorf(CategoryColumnType, yc.Name, "type mismatch for column %s: YAML %q vs %s %q", yc.Name, yt, c.side, dt)
		}
		if yc.Nullable != dc.Nullable {
			c.fs.errorf(CategoryNullability, yc.Name, "nullability mismatch for column %s: YAML %s vs %s %s",
				yc.Name, nullText(yc.Nullable), c.side, nullText(dc.Nullable))
		}
		if yc.PrimaryKey != dc.PrimaryKey {
			c.fs.errorf(CategoryConstraint, yc.Name, "primary key mismatch for column %s: YAML %t vs %s %t",
				yc.Name, yc.PrimaryKey, c.side, dc.PrimaryKey)
		}
		if !yc.PrimaryKey && !dc.PrimaryKey && yc.Unique != dc.Unique {
			c.fs.errorf(CategoryConstraint, yc.Name, "unique mismatch for column %s: YAML %t vs %s %t",
				yc.Name, yc.Unique, c.side, dc.Unique)
		}
		if c.lenient && isSerial(yc.Type) {
			continue
		}
		if yd, dd := NormalizeDefault(yc.Default), NormalizeDefault(dc.Default); yd != dd {
			c.fs.errorf(CategoryConstraint, yc.Name, "default mismatch for column %s: YAML %s vs %s %s",
				yc.Name, defaultText(yd), c.side, defaultText(dd))
		}
	}
}

func (c *comparer) indexes(y, d *schema.Table) {
	yk, dk := indexKeys(y.Indexes), indexKeys(d.Indexes)
	for _, k := range sortedKeys(yk) {
		if _, ok := dk[k]; !ok {
			idx := yk[k]
			c.fs.errorf(CategoryIndex, "", "index %s %s exists in YAML but not in %s", idx.Name, describeIndex(idx), c.side)
		}
	}
	for _, k := range sortedKeys(dk) {
		if _, ok := yk[k]; !ok {
			idx := dk[k]
			c.fs.errorf(CategoryIndex, "", "index %s %s exists in %s but not in YAML", idx.Name, describeIndex(idx), c.side)
		}
	}
}

func indexKeys(list []schema.Index) map[string]schema.Index {
	m := make(map[string]schema.Index, len(list))
	for _, idx := range list {
		cols := append([]string(nil), idx.Columns...)
		sort.Strings(cols)
		m[fmt.Sprintf("%s|%t", strings.Join(cols, ","), idx.Unique)] = idx
	}
	return m
}

func describeIndex(idx schema.Index) string {
	s := "(" + strings.Join(idx.Columns, ", ") + ")"
	if idx.Unique {
		s = "UNIQUE " + s
	}
	return s
}

func (c *comparer) foreignKeys(y, d *schema.Table) {
	yk, dk := fkKeys(y.ForeignKeys), fkKeys(d.ForeignKeys)
	for _, k := range sortedKeys(yk) {
		yf := yk[k]
		df, ok := dk[k]
		if !ok {
			c.fs.errorf(CategoryForeignKey, strings.Join(yf.Columns, ","), "foreign key %s %s exists in YAML but not in %s", yf.Name, k, c.side)
			continue
		}
		c.action(yf, "ON UPDATE", yf.OnUpdate, df.OnUpdate)
		c.action(yf, "ON DELETE", yf.OnDelete, df.OnDelete)
	}
	for _, k := range sortedKeys(dk) {
		if _, ok := yk[k]; !ok {
			df := dk[k]
			c.fs.errorf(CategoryForeignKey, strings.Join(df.Columns, ","), "foreign key %s %s exists in %s but not in YAML", df.Name, k, c.side)
		}
	}
}

func (c *comparer) action(fk schema.ForeignKey, clause string, y, d schema.FKAction) {
	y, d = actionOrDefault(y), actionOrDefault(d)
	if y == d {
		return
	}
	// catalogs report an unspecified action as NO ACTION, which behaves like RESTRICT
	if c.lenient && restrictLike(y) && restrictLike(d) {
		return
	}
	c.fs.warnf(CategoryForeignKey, strings.Join(fk.Columns, ","),
		"%s mismatch for foreign key %s: YAML %s vs %s %s; recommended: %s", clause, fk.Name, y, c.side, d, y)
}

func fkKeys(list []schema.ForeignKey) map[string]schema.ForeignKey {
	m := make(map[string]schema.ForeignKey, len(list))
	for _, fk := range list {
		m[fk.Key()] = fk
	}
	return m
}

func restrictLike(a schema.FKAction) bool {
	return a == schema.Restrict || a == schema.NoAction
}

func actionOrDefault(a schema.FKAction) schema.FKAction {
	if a == "" {
		return schema.Restrict
	}
	return a
}

// foreignKeyTargets validates every YAML foreign key against the registry.
func foreignKeyTargets(fs *findings, reg *schema.Registry, types *typemap.TypeMap, t *schema.Table) {
	for _, fk := range t.ForeignKeys {
		cols := strings.Join(fk.Columns, ",")
		target, ok := reg.Get(fk.ReferenceTable)
		if !ok {
			fs.errorf(CategoryForeignKey, cols, "foreign key %s: referenced table %s does not exist", fk.Name, fk.ReferenceTable)
			continue
		}
		for i, local := range fk.Columns {
			if i >= len(fk.ReferenceColumns) {
				break
			}
			ref := fk.ReferenceColumns[i]
			lc := t.Column(local)
			if lc == nil {
				fs.errorf(CategoryForeignKey, local, "foreign key %s: column %s does not exist in %s", fk.Name, local, t.Name)
			}
			rc := target.Column(ref)
			if rc == nil {
				fs.errorf(CategoryForeignKey, local, "foreign key %s: referenced column %s.%s does not exist", fk.Name, fk.ReferenceTable, ref)
			}
			if lc == nil || rc == nil {
				continue
			}
			if !types.ReferenceCompatible(lc.FullType(), rc.FullType()) {
				fs.errorf(CategoryForeignKey, local, "foreign key %s: column %s %q does not match referenced column %s.%s %q",
					fk.Name, local, lc.FullType(), fk.ReferenceTable, ref, rc.FullType())
			}
		}
	}
}

var (
	castSuffix    = regexp.MustCompile(`::[A-Za-z_][A-Za-z0-9_ ]*(\[\])?(\([0-9, ]*\))?$`)
	spaceBeforeOp = regexp.MustCompile(`\s+\(`)
	functionCall  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*\(.*\)$`)
)

var defaultKeywords = map[string]bool{
	"TRUE": true, "FALSE": true, "CURRENT_DATE": true, "CURRENT_TIME": true,
	"CURRENT_TIMESTAMP": true, "LOCALTIME": true, "LOCALTIMESTAMP": true, "CURRENT_USER": true,
}

// NormalizeDefault reduces a default expression to a comparable form: trimmed, casts removed,
// one level of quotes removed and keywords or function calls upper-cased. NULL and absent
// compare equal.
func NormalizeDefault(v *string) string {
	if v == nil {
		return ""
	}
	s := strings.TrimSpace(*v)
	for {
		stripped := strings.TrimSpace(castSuffix.ReplaceAllString(s, ""))
		if stripped == s {
			break
		}
		s = stripped
	}
	if len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' && !strings.Contains(s[1:len(s)-1], "(") {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	s = spaceBeforeOp.ReplaceAllString(s, "(")
	if strings.EqualFold(s, "NULL") {
		return ""
	}
	if defaultKeywords[strings.ToUpper(s)] || functionCall.MatchString(s) {
		return strings.ToUpper(s)
	}
	return s
}

func defaultText(s string) string {
	if s == "" {
		return "(none)"
	}
	return fmt.Sprintf("%q", s)
}

func nullText(nullable bool) string {
	if nullable {
		return "NULL"
	}
	return "NOT NULL"
}

func isSerial(typ string) bool {
	switch typ {
	case "SERIAL", "BIGSERIAL", "SMALLSERIAL":
		return true
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// markdownCoverage warns about YAML columns never mentioned in the Markdown document.
func markdownCoverage(fs *findings, t *schema.Table, doc string) {
	for _, c := range t.Columns {
		re := regexp.MustCompile(`(^|[^A-Za-z0-9_])` + regexp.QuoteMeta(c.Name) + `($|[^A-Za-z0-9_])`)
		if !re.MatchString(doc) {
			fs.warnf(CategoryMarkdown, c.Name, "column %s is not documented in the Markdown file", c.Name)
		}
	}
}
