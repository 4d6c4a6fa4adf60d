package schema

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/reloquent/tabledoc/internal/typemap"
)

// Registry maps table names to parsed definitions. It is built once and only read afterwards,
// so concurrent readers need no locking.
type Registry struct {
	Dir    string
	tables map[string]*Table
	names  []string
	list   *TableList
}

// LoadOptions configures LoadRegistry.
type LoadOptions struct {
	Types     *typemap.TypeMap
	TableList string // optional path to the master table list
	Logger    *slog.Logger
}

// LoadError records a definition file that could not be loaded.
type LoadError struct {
	Path  string
	Table string // file stem, used as the table name for reporting
	Err   error
}

func (e LoadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// LoadRegistry parses every *.yaml / *.yml file in dir. Files that fail to parse are returned
// as LoadErrors and skipped; only an unreadable directory (or table list) is fatal.
func LoadRegistry(dir string, opts LoadOptions) (*Registry, []LoadError, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	files, err := DefinitionFiles(dir)
	if err != nil {
		return nil, nil, err
	}

	var listAbs string
	if opts.TableList != "" {
		listAbs, _ = filepath.Abs(opts.TableList)
	}

	reg := &Registry{Dir: dir, tables: make(map[string]*Table, len(files))}
	var loadErrs []LoadError
	for _, path := range files {
		if abs, _ := filepath.Abs(path); abs == listAbs {
			continue
		}
		stem := Stem(path)
		t, err := ParseYAMLFile(path, opts.Types)
		if err != nil {
			logger.Warn("skipping table definition", "path", path, "error", err)
			loadErrs = append(loadErrs, LoadError{Path: path, Table: stem, Err: err})
			continue
		}
		if prev, dup := reg.tables[t.Name]; dup {
			loadErrs = append(loadErrs, LoadError{
				Path:  path,
				Table: stem,
				Err:   fmt.Errorf("table %s already defined in %s", t.Name, prev.Source),
			})
			continue
		}
		reg.tables[t.Name] = t
		reg.names = append(reg.names, t.Name)
	}
	sort.Strings(reg.names)

	if opts.TableList != "" {
		list, err := LoadTableList(opts.TableList)
		if err != nil {
			return nil, nil, err
		}
		reg.applyTableList(list)
	}

	logger.Debug("loaded table definitions", "dir", dir, "tables", len(reg.names), "errors", len(loadErrs))
	return reg, loadErrs, nil
}

// NewRegistry builds a registry from already-parsed tables. Later duplicates are ignored.
func NewRegistry(tables ...*Table) *Registry {
	reg := &Registry{tables: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		if _, dup := reg.tables[t.Name]; dup {
			continue
		}
		reg.tables[t.Name] = t
		reg.names = append(reg.names, t.Name)
	}
	sort.Strings(reg.names)
	return reg
}

// Get returns the named table.
func (r *Registry) Get(name string) (*Table, bool) {
	t, ok := r.tables[name]
	return t, ok
}

// Has reports whether the registry defines the table.
func (r *Registry) Has(name string) bool {
	_, ok := r.tables[name]
	return ok
}

// Names returns all table names sorted.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Tables returns all tables sorted by name.
func (r *Registry) Tables() []*Table {
	out := make([]*Table, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.tables[n])
	}
	return out
}

// Len returns the number of tables.
func (r *Registry) Len() int {
	return len(r.names)
}

// TableList returns the master table list, or nil when none was loaded.
func (r *Registry) TableList() *TableList {
	return r.list
}

// Filter returns the sorted table names matching any of the glob patterns
// (e.g. "MST_*"). Names listed only in the table list are included.
func (r *Registry) Filter(patterns ...string) []string {
	candidates := r.KnownNames()
	if len(patterns) == 0 {
		return candidates
	}
	var matched []string
	for _, name := range candidates {
		for _, p := range patterns {
			if matchGlob(name, p) {
				matched = append(matched, name)
				break
			}
		}
	}
	return matched
}

// KnownNames returns the union of defined tables and table-list entries, sorted.
func (r *Registry) KnownNames() []string {
	seen := make(map[string]bool, len(r.names))
	out := append([]string(nil), r.names...)
	for _, n := range r.names {
		seen[n] = true
	}
	if r.list != nil {
		for _, e := range r.list.Tables {
			if e.Name != "" && !seen[e.Name] {
				seen[e.Name] = true
				out = append(out, e.Name)
			}
		}
	}
	sort.Strings(out)
	return out
}

func (r *Registry) applyTableList(list *TableList) {
	r.list = list
	for _, e := range list.Tables {
		t, ok := r.tables[e.Name]
		if !ok {
			continue
		}
		if t.LogicalName == "" {
			t.LogicalName = e.LogicalName
		}
		if t.Category == "" {
			t.Category = e.Category
		}
	}
}

// TableList is the master list of tables with display metadata.
type TableList struct {
	Tables []TableListEntry `yaml:"tables"`
}

// TableListEntry labels a single table.
type TableListEntry struct {
	Name        string `yaml:"name"`
	LogicalName string `yaml:"logical_name,omitempty"`
	Category    string `yaml:"category,omitempty"`
}

// LoadTableList reads the master table list.
func LoadTableList(path string) (*TableList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading table list: %w", err)
	}
	list := &TableList{}
	if err := yaml.Unmarshal(data, list); err != nil {
		return nil, fmt.Errorf("parsing table list %s: %w", path, err)
	}
	return list, nil
}

// DefinitionFiles lists the YAML files in dir, sorted.
func DefinitionFiles(dir string) ([]string, error) {
	return ListFiles(dir, ".yaml", ".yml")
}

// ListFiles lists regular files in dir with any of the given extensions, sorted.
// A missing directory is an error naming the path.
func ListFiles(dir string, exts ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("directory not found: %s", dir)
		}
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range exts {
			if ext == want {
				files = append(files, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// Stem returns the file name without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func matchGlob(name, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	}
	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(name, pattern[1:])
	}
	return name == pattern
}
