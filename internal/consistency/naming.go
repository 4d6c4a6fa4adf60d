package consistency

import (
	"regexp"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/reloquent/tabledoc/internal/ddl"
)

// DefaultTablePrefixes are the recognised table name prefixes.
var DefaultTablePrefixes = []string{"MST_", "TRN_", "HIS_", "SYS_", "WRK_", "IF_"}

// DefaultMaxTableNameLength is the PostgreSQL identifier limit.
const DefaultMaxTableNameLength = 63

var columnPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Naming holds the naming-convention rules.
type Naming struct {
	TablePrefixes  []string
	MaxTableLength int
	ReservedWords  []string
}

// DefaultNaming returns the built-in rules; extra reserved words are added to the SQL keyword list.
func DefaultNaming(extraReserved ...string) Naming {
	words := append([]string(nil), ddl.ReservedWords...)
	words = append(words, extraReserved...)
	return Naming{
		TablePrefixes:  DefaultTablePrefixes,
		MaxTableLength: DefaultMaxTableNameLength,
		ReservedWords:  words,
	}
}

func (n Naming) withDefaults() Naming {
	if n.TablePrefixes == nil {
		n.TablePrefixes = DefaultTablePrefixes
	}
	if n.MaxTableLength <= 0 {
		n.MaxTableLength = DefaultMaxTableNameLength
	}
	if n.ReservedWords == nil {
		n.ReservedWords = ddl.ReservedWords
	}
	return n
}

func (n Naming) isReserved(name string) bool {
	up := strings.ToUpper(name)
	for _, w := range n.ReservedWords {
		if strings.ToUpper(w) == up {
			return true
		}
	}
	return false
}

func (n Naming) checkTable(fs *findings, name string) {
	if len(name) > n.MaxTableLength {
		fs.errorf(CategoryNaming, "", "table name %s is %d characters long, over the %d character limit",
			name, len(name), n.MaxTableLength)
	}
	if len(n.TablePrefixes) == 0 {
		return
	}
	for _, p := range n.TablePrefixes {
		if name == p {
			fs.warnf(CategoryNaming, "", "table name %s is only a prefix; expected a name after %s", name, p)
			return
		}
		if strings.HasPrefix(name, p) {
			return
		}
	}
	fs.warnf(CategoryNaming, "", "table name %s has no recognized prefix (expected one of %s)",
		name, strings.Join(n.TablePrefixes, ", "))
}

func (n Naming) checkColumn(fs *findings, name string) {
	if !columnPattern.MatchString(name) {
		msg := "column name " + name + " does not match " + columnPattern.String()
		if s := snakeCase(name); s != name && columnPattern.MatchString(s) {
			msg += "; suggested: " + s
		}
		fs.warnf(CategoryNaming, name, "%s", msg)
	}
	if n.isReserved(name) {
		fs.errorf(CategoryNaming, name, "column name %s is a reserved word", name)
	}
}

func snakeCase(name string) string {
	s := inflect.Underscore(name)
	s = strings.Trim(strings.ReplaceAll(s, "-", "_"), "_")
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.ToLower(s)
}
