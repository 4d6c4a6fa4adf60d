package ddl

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/reloquent/tabledoc/internal/schema"
)

// ReservedWords is the default set of SQL keywords that must not be used as bare identifiers.
var ReservedWords = []string{
	"ALL", "ALTER", "AND", "ANY", "AS", "ASC", "BETWEEN", "BY", "CASE", "CAST", "CHECK",
	"COLUMN", "CONSTRAINT", "CREATE", "CROSS", "CURRENT_DATE", "CURRENT_TIME",
	"CURRENT_TIMESTAMP", "CURRENT_USER", "DEFAULT", "DELETE", "DESC", "DISTINCT", "DROP",
	"ELSE", "END", "EXCEPT", "EXISTS", "FALSE", "FETCH", "FOR", "FOREIGN", "FROM", "FULL",
	"GRANT", "GROUP", "HAVING", "IN", "INDEX", "INNER", "INSERT", "INTERSECT", "INTO", "IS",
	"JOIN", "KEY", "LEFT", "LIKE", "LIMIT", "NATURAL", "NOT", "NULL", "OFFSET", "ON", "OR",
	"ORDER", "OUTER", "PRIMARY", "REFERENCES", "RIGHT", "SELECT", "SESSION_USER", "SET",
	"SOME", "TABLE", "THEN", "TO", "TRUE", "UNION", "UNIQUE", "UPDATE", "USER", "USING",
	"VALUES", "WHEN", "WHERE", "WINDOW", "WITH",
}

var reserved = func() map[string]bool {
	m := make(map[string]bool, len(ReservedWords))
	for _, w := range ReservedWords {
		m[w] = true
	}
	return m
}()

var bareIdent = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// QuoteIdent returns name bare when it is a plain lower-case identifier, otherwise double-quoted.
func QuoteIdent(name string) string {
	if bareIdent.MatchString(name) && !reserved[strings.ToUpper(name)] {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteString renders s as a SQL string literal.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Generate renders CREATE TABLE, CREATE INDEX, ALTER TABLE ... FOREIGN KEY and COMMENT ON
// statements for the table. Parse(Generate(t)) yields an equivalent table.
func Generate(t *schema.Table) string {
	var b strings.Builder
	name := QuoteIdent(t.Name)

	fmt.Fprintf(&b, "-- %s", t.Name)
	if t.LogicalName != "" && t.LogicalName != t.Name {
		fmt.Fprintf(&b, " (%s)", t.LogicalName)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "CREATE TABLE %s (\n", name)
	lines := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		lines = append(lines, "    "+columnDefinition(c))
	}
	if pk := t.PrimaryKeyColumns(); len(pk) > 0 {
		lines = append(lines, "    PRIMARY KEY ("+identJoin(pk)+")")
	}
	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n);\n")

	for _, idx := range t.Indexes {
		b.WriteString("\n")
		kw := "INDEX"
		if idx.Unique {
			kw = "UNIQUE INDEX"
		}
		fmt.Fprintf(&b, "CREATE %s %s ON %s (%s);\n", kw, QuoteIdent(idx.Name), name, identJoin(idx.Columns))
	}

	for _, fk := range t.ForeignKeys {
		b.WriteString("\n")
		fmt.Fprintf(&b, "ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s) ON UPDATE %s ON DELETE %s;\n",
			name, QuoteIdent(fk.Name), identJoin(fk.Columns),
			QuoteIdent(fk.ReferenceTable), identJoin(fk.ReferenceColumns),
			actionOrDefault(fk.OnUpdate), actionOrDefault(fk.OnDelete))
	}

	var comments []string
	if c := firstNonEmpty(t.Comment, t.LogicalName); c != "" {
		comments = append(comments, fmt.Sprintf("COMMENT ON TABLE %s IS %s;", name, QuoteString(c)))
	}
	for _, col := range t.Columns {
		if c := firstNonEmpty(col.Comment, col.LogicalName); c != "" {
			comments = append(comments, fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s;", name, QuoteIdent(col.Name), QuoteString(c)))
		}
	}
	if len(comments) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(comments, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

func columnDefinition(c schema.Column) string {
	parts := []string{QuoteIdent(c.Name), c.FullType()}
	if !c.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if c.Default != nil {
		parts = append(parts, "DEFAULT", FormatDefault(c))
	}
	if c.Unique {
		parts = append(parts, "UNIQUE")
	}
	return strings.Join(parts, " ")
}

var defaultKeywords = map[string]bool{
	"NULL": true, "TRUE": true, "FALSE": true, "CURRENT_DATE": true, "CURRENT_TIME": true,
	"CURRENT_TIMESTAMP": true, "LOCALTIME": true, "LOCALTIMESTAMP": true, "CURRENT_USER": true,
}

var numericLiteral = regexp.MustCompile(`^[-+]?(\d+(\.\d*)?|\.\d+)([eE][-+]?\d+)?$`)

// FormatDefault renders a column default as SQL. Keywords, function calls, numbers on
// numeric columns and already-quoted literals are emitted as is; anything else is quoted.
func FormatDefault(c schema.Column) string {
	if c.Default == nil {
		return ""
	}
	v := strings.TrimSpace(*c.Default)
	switch {
	case v == "":
		return "''"
	case strings.HasPrefix(v, "'"):
		return v
	case defaultKeywords[strings.ToUpper(v)]:
		return strings.ToUpper(v)
	case strings.Contains(v, "(") && strings.HasSuffix(v, ")"):
		return v
	case numericLiteral.MatchString(v) && !isTextual(c.Type):
		return v
	}
	return QuoteString(v)
}

func isTextual(typ string) bool {
	switch strings.TrimSuffix(typ, "[]") {
	case "CHAR", "VARCHAR", "NCHAR", "NVARCHAR", "VARCHAR2", "TEXT", "TINYTEXT",
		"MEDIUMTEXT", "LONGTEXT", "CLOB", "UUID", "JSON", "JSONB", "XML",
		"DATE", "TIME", "TIME WITH TIME ZONE", "TIMESTAMP", "TIMESTAMP WITH TIME ZONE",
		"DATETIME", "INTERVAL", "INET", "CIDR", "MACADDR":
		return true
	}
	return false
}

func actionOrDefault(a schema.FKAction) schema.FKAction {
	if a == "" {
		return schema.Restrict
	}
	return a
}

func identJoin(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// GenerateInserts renders INSERT statements for the table's sample_data rows.
// Row keys that are not columns of the table are an error.
func GenerateInserts(t *schema.Table) (string, error) {
	rows, err := t.SampleRows()
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "-- Sample data for %s\n", t.Name)
	name := QuoteIdent(t.Name)
	for i, row := range rows {
		var unknown []string
		for k := range row {
			if t.Column(k) == nil {
				unknown = append(unknown, k)
			}
		}
		if len(unknown) > 0 {
			sort.Strings(unknown)
			return "", fmt.Errorf("sample_data row %d of %s: unknown columns %s", i+1, t.Name, strings.Join(unknown, ", "))
		}

		var cols, vals []string
		for _, c := range t.Columns {
			v, ok := row[c.Name]
			if !ok {
				continue
			}
			cols = append(cols, QuoteIdent(c.Name))
			vals = append(vals, literal(c, v))
		}
		fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s);\n", name, strings.Join(cols, ", "), strings.Join(vals, ", "))
	}
	return b.String(), nil
}

func literal(c schema.Column, v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return QuoteString(x.Format("2006-01-02"))
		}
		return QuoteString(x.Format("2006-01-02 15:04:05"))
	case string:
		if numericLiteral.MatchString(x) && !isTextual(c.Type) {
			return x
		}
		return QuoteString(x)
	}
	return QuoteString(fmt.Sprint(v))
}
