package typemap

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Spec is a parsed column type: canonical base type plus optional length/precision and scale.
type Spec struct {
	Base   string
	Length *int
	Scale  *int
	Array  bool
}

// String renders the type in canonical form, e.g. VARCHAR(50) or DECIMAL(10,2).
func (s Spec) String() string {
	out := Format(s.Base, s.Length, s.Scale)
	if s.Array {
		out += "[]"
	}
	return out
}

// zoneSuffixes are the trailing words that follow the precision, as in TIMESTAMP(6) WITH TIME ZONE.
var zoneSuffixes = []string{" WITH TIME ZONE", " WITHOUT TIME ZONE"}

// Format renders a base type with its length or precision and scale. The arguments go
// before a time zone suffix so the result is valid PostgreSQL.
func Format(base string, length, scale *int) string {
	if length == nil {
		return base
	}
	args := "(" + strconv.Itoa(*length)
	if scale != nil {
		args += "," + strconv.Itoa(*scale)
	}
	args += ")"
	for _, suffix := range zoneSuffixes {
		if head, ok := strings.CutSuffix(base, suffix); ok {
			return head + args + suffix
		}
	}
	return base + args
}

// TypeMap holds the alias table and the set of supported base types.
type TypeMap struct {
	aliases   map[string]string
	supported map[string]bool
}

var defaultAliases = map[string]string{
	"INT":                         "INTEGER",
	"INT4":                        "INTEGER",
	"INT2":                        "SMALLINT",
	"INT8":                        "BIGINT",
	"SERIAL4":                     "SERIAL",
	"SERIAL8":                     "BIGSERIAL",
	"SERIAL2":                     "SMALLSERIAL",
	"BOOL":                        "BOOLEAN",
	"CHARACTER VARYING":           "VARCHAR",
	"CHARACTER":                   "CHAR",
	"NUMERIC":                     "DECIMAL",
	"DEC":                         "DECIMAL",
	"FLOAT4":                      "REAL",
	"FLOAT8":                      "DOUBLE PRECISION",
	"DOUBLE":                      "DOUBLE PRECISION",
	"TIMESTAMPTZ":                 "TIMESTAMP WITH TIME ZONE",
	"TIMESTAMP WITHOUT TIME ZONE": "TIMESTAMP",
	"TIMETZ":                      "TIME WITH TIME ZONE",
	"TIME WITHOUT TIME ZONE":      "TIME",
	"VARBIT":                      "BIT VARYING",
}

var defaultSupported = []string{
	"SMALLINT", "INTEGER", "BIGINT", "TINYINT", "MEDIUMINT",
	"SMALLSERIAL", "SERIAL", "BIGSERIAL",
	"DECIMAL", "REAL", "DOUBLE PRECISION", "FLOAT", "MONEY", "NUMBER",
	"CHAR", "VARCHAR", "NCHAR", "NVARCHAR", "VARCHAR2", "TEXT",
	"TINYTEXT", "MEDIUMTEXT", "LONGTEXT", "CLOB",
	"BOOLEAN", "BIT", "BIT VARYING",
	"DATE", "TIME", "TIME WITH TIME ZONE", "TIMESTAMP", "TIMESTAMP WITH TIME ZONE",
	"DATETIME", "INTERVAL", "YEAR",
	"UUID", "JSON", "JSONB", "XML",
	"BYTEA", "BLOB", "BINARY", "VARBINARY",
	"INET", "CIDR", "MACADDR",
}

// Default returns the built-in type map.
func Default() *TypeMap {
	tm := &TypeMap{
		aliases:   make(map[string]string, len(defaultAliases)),
		supported: make(map[string]bool, len(defaultSupported)),
	}
	for k, v := range defaultAliases {
		tm.aliases[k] = v
	}
	for _, t := range defaultSupported {
		tm.supported[t] = true
	}
	return tm
}

// WithExtra returns a copy of the type map that additionally accepts the given base types.
func (tm *TypeMap) WithExtra(types ...string) *TypeMap {
	out := Default()
	for k, v := range tm.aliases {
		out.aliases[k] = v
	}
	for k := range tm.supported {
		out.supported[k] = true
	}
	for _, t := range types {
		base := collapse(strings.ToUpper(t))
		if base != "" {
			out.supported[out.canonicalBase(base)] = true
		}
	}
	return out
}

// Supported reports whether the canonical base type is known.
func (tm *TypeMap) Supported(base string) bool {
	return tm.supported[tm.canonicalBase(collapse(strings.ToUpper(base)))]
}

// SupportedTypes returns the supported base types sorted alphabetically.
func (tm *TypeMap) SupportedTypes() []string {
	types := make([]string, 0, len(tm.supported))
	for k := range tm.supported {
		types = append(types, k)
	}
	sort.Strings(types)
	return types
}

// Normalize reduces a type string to its canonical form. Unparseable input is returned
// upper-cased with whitespace collapsed, so Normalize is idempotent for any input.
func (tm *TypeMap) Normalize(raw string) string {
	spec, err := tm.Parse(raw)
	if err != nil {
		return tidy(raw)
	}
	return spec.String()
}

// Parse splits a type string into its canonical base type and numeric arguments.
func (tm *TypeMap) Parse(raw string) (Spec, error) {
	s := tidy(raw)
	if s == "" {
		return Spec{}, fmt.Errorf("empty type")
	}

	var spec Spec
	for strings.HasSuffix(s, "[]") {
		spec.Array = true
		s = strings.TrimSpace(strings.TrimSuffix(s, "[]"))
	}

	base := s
	var args string
	if open := strings.Index(s, "("); open >= 0 {
		closeIdx := strings.LastIndex(s, ")")
		if closeIdx < open {
			return Spec{}, fmt.Errorf("unbalanced parentheses in type %q", raw)
		}
		args = s[open+1 : closeIdx]
		// TIMESTAMP(6) WITH TIME ZONE keeps its trailing words on the base type.
		base = collapse(s[:open] + " " + s[closeIdx+1:])
	}
	if base == "" {
		return Spec{}, fmt.Errorf("missing base type in %q", raw)
	}
	spec.Base = tm.canonicalBase(base)

	// MySQL integer display widths, e.g. INT(11), carry no type information.
	if integerTypes[spec.Base] {
		args = ""
	}

	if args != "" {
		parts := strings.Split(args, ",")
		if len(parts) > 2 {
			return Spec{}, fmt.Errorf("too many type arguments in %q", raw)
		}
		nums := make([]int, len(parts))
		for i, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil || n < 0 {
				return Spec{}, fmt.Errorf("non-numeric type argument %q in %q", p, raw)
			}
			nums[i] = n
		}
		spec.Length = &nums[0]
		if len(nums) == 2 {
			spec.Scale = &nums[1]
		}
	}
	return spec, nil
}

// ReferenceCompatible reports whether a foreign key column of type a can reference a column
// of type b. Serial types compare equal to their underlying integer type.
func (tm *TypeMap) ReferenceCompatible(a, b string) bool {
	return tm.referenceForm(a) == tm.referenceForm(b)
}

func (tm *TypeMap) referenceForm(raw string) string {
	spec, err := tm.Parse(raw)
	if err != nil {
		return tidy(raw)
	}
	switch spec.Base {
	case "SERIAL":
		spec.Base = "INTEGER"
	case "BIGSERIAL":
		spec.Base = "BIGINT"
	case "SMALLSERIAL":
		spec.Base = "SMALLINT"
	}
	return spec.String()
}

// FromInformationSchema builds a canonical type string from information_schema column
// attributes. Length applies to character types; precision and scale to DECIMAL.
func (tm *TypeMap) FromInformationSchema(dataType string, charLen, precision, scale *int) string {
	spec, err := tm.Parse(dataType)
	if err != nil {
		return tidy(dataType)
	}
	switch spec.Base {
	case "VARCHAR", "VARCHAR2", "CHAR", "NCHAR", "NVARCHAR", "BIT", "BIT VARYING":
		if charLen != nil && spec.Length == nil {
			spec.Length = charLen
		}
	case "DECIMAL", "NUMBER":
		if precision != nil && spec.Length == nil {
			spec.Length = precision
			if scale != nil && *scale > 0 {
				spec.Scale = scale
			}
		}
	}
	return spec.String()
}

func (tm *TypeMap) canonicalBase(base string) string {
	if alias, ok := tm.aliases[base]; ok {
		return alias
	}
	return base
}

// tidy upper-cases and strips non-semantic whitespace.
func tidy(raw string) string {
	s := collapse(strings.ToUpper(raw))
	for _, r := range []struct{ old, new string }{
		{" (", "("}, {"( ", "("}, {" )", ")"}, {" ,", ","}, {", ", ","}, {" [", "["},
	} {
		for strings.Contains(s, r.old) {
			s = strings.ReplaceAll(s, r.old, r.new)
		}
	}
	return s
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var integerTypes = map[string]bool{
	"TINYINT": true, "SMALLINT": true, "MEDIUMINT": true, "INTEGER": true, "BIGINT": true,
}

var defaultMap = Default()

// Normalize reduces a type string to its canonical form using the built-in type map.
func Normalize(raw string) string {
	return defaultMap.Normalize(raw)
}
