package consistency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/reloquent/tabledoc/internal/schema"
	"github.com/reloquent/tabledoc/internal/typemap"
)

// Checker runs the consistency checks. The registry is shared read-only between workers.
type Checker struct {
	Registry    *schema.Registry
	LoadErrors  []schema.LoadError // YAML files that failed to load
	MarkdownDir string             // empty skips Markdown checks
	Source      TableSource        // nil skips the DDL comparison
	Naming      Naming
	Types       *typemap.TypeMap
	Workers     int
	Logger      *slog.Logger

	// Progress is called from worker goroutines after each table is checked.
	Progress func(table string, errors int)
}

// Check runs every check for the named tables. With no names it checks every table known to
// the registry or named by a failed YAML file, and scans all artifact sets for orphans.
// Only an unreadable artifact directory is returned as an error.
func (c *Checker) Check(ctx context.Context, names []string) (*Result, error) {
	if c.Registry == nil {
		return nil, errors.New("consistency checker needs a table registry")
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if c.Types == nil {
		c.Types = typemap.Default()
	}
	c.Naming = c.Naming.withDefaults()

	sets, err := c.artifactSets(ctx)
	if err != nil {
		return nil, err
	}

	explicit := len(names) > 0
	if !explicit {
		names = c.defaultNames()
	}

	result := &Result{
		RunID:     uuid.NewString(),
		Tables:    names,
		StartedAt: time.Now(),
	}
	if c.Source != nil {
		result.Source = c.Source.Kind()
	}
	logger.Info("starting consistency check", "run_id", result.RunID, "tables", len(names))

	perTable := make([][]Finding, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers())
	for i, name := range names {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			perTable[i] = c.checkTable(gctx, name)
			errs := 0
			for _, f := range perTable[i] {
				if f.Severity == SeverityError {
					errs++
				}
			}
			logger.Debug("checked table", "table", name, "findings", len(perTable[i]), "errors", errs)
			if c.Progress != nil {
				c.Progress(name, errs)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("checking tables: %w", err)
	}

	for _, list := range perTable {
		result.Findings = append(result.Findings, list...)
	}
	scope := names
	if !explicit {
		scope = nil
	}
	result.Findings = append(result.Findings, orphans(sets, scope)...)
	result.CompletedAt = time.Now()

	counts := result.Counts()
	logger.Info("consistency check finished", "run_id", result.RunID,
		"errors", counts[SeverityError], "warnings", counts[SeverityWarning], "valid", result.IsValid())
	return result, nil
}

func (c *Checker) workers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// defaultNames is every registry or table-list name plus the stems of YAML files that failed to load.
func (c *Checker) defaultNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, n := range c.Registry.KnownNames() {
		seen[n] = true
		names = append(names, n)
	}
	for _, le := range c.LoadErrors {
		if !seen[le.Table] {
			seen[le.Table] = true
			names = append(names, le.Table)
		}
	}
	sort.Strings(names)
	return names
}

func (c *Checker) checkTable(ctx context.Context, name string) []Finding {
	fs := &findings{table: name}

	y := c.yamlSide(fs, name)
	var d *schema.Table
	if c.Source != nil {
		d = c.sourceSide(ctx, fs, name)
	}
	doc, haveDoc := c.markdownSide(fs, name)

	if y != nil && d != nil {
		cmp := &comparer{fs: fs, side: sideLabel(c.Source), types: c.Types}
		_, cmp.lenient = c.Source.(*LiveSource)
		cmp.columns(y, d)
		cmp.indexes(y, d)
		cmp.foreignKeys(y, d)
	}
	if y != nil {
		foreignKeyTargets(fs, c.Registry, c.Types, y)
	}

	c.Naming.checkTable(fs, name)
	if cols := firstTable(y, d); cols != nil {
		for _, col := range cols.Columns {
			c.Naming.checkColumn(fs, col.Name)
		}
	}

	if y != nil && haveDoc {
		markdownCoverage(fs, y, doc)
	}
	return fs.list
}

func firstTable(ts ...*schema.Table) *schema.Table {
	for _, t := range ts {
		if t != nil {
			return t
		}
	}
	return nil
}

// yamlSide reports every load error filed under name, including a later file that
// redeclares a table already in the registry, and returns the registry table if any.
func (c *Checker) yamlSide(fs *findings, name string) *schema.Table {
	t, ok := c.Registry.Get(name)
	failed := false
	for _, le := range c.LoadErrors {
		if le.Table != name {
			continue
		}
		failed = true
		var perr *schema.ParseError
		switch {
		case errors.As(le.Err, &perr):
			fs.errorf(CategoryParse, "", "YAML file %s could not be parsed: %v", le.Path, le.Err)
		case errors.Is(le.Err, os.ErrNotExist):
			fs.errorf(CategoryFileExistence, "", "YAML file does not exist")
		default:
			fs.errorf(CategoryParse, "", "YAML file %s could not be loaded: %v", le.Path, le.Err)
		}
	}
	if ok {
		return t
	}
	if !failed {
		fs.errorf(CategoryFileExistence, "", "YAML file does not exist")
	}
	return nil
}

func (c *Checker) sourceSide(ctx context.Context, fs *findings, name string) *schema.Table {
	t, err := c.Source.Load(ctx, name)
	if err == nil {
		return t
	}
	var perr *schema.ParseError
	switch {
	case errors.Is(err, ErrNotFound):
		fs.errorf(CategoryFileExistence, "", "%s does not exist", c.Source.Kind())
	case errors.As(err, &perr):
		fs.errorf(CategoryParse, "", "%s could not be parsed: %v", c.Source.Kind(), err)
	default:
		fs.errorf(CategoryFileExistence, "", "%s could not be read: %v", c.Source.Kind(), err)
	}
	return nil
}

func (c *Checker) markdownSide(fs *findings, name string) (string, bool) {
	if c.MarkdownDir == "" {
		return "", false
	}
	data, err := os.ReadFile(filepath.Join(c.MarkdownDir, name+".md"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fs.errorf(CategoryFileExistence, "", "Markdown file does not exist")
		} else {
			fs.errorf(CategoryFileExistence, "", "Markdown file could not be read: %v", err)
		}
		return "", false
	}
	return string(data), true
}

func sideLabel(src TableSource) string {
	if _, live := src.(*LiveSource); live {
		return "database"
	}
	return "DDL"
}

// artifactSet is the set of table names one artifact kind provides.
type artifactSet struct {
	label string // e.g. "YAML file"
	names map[string]bool
}

func (c *Checker) artifactSets(ctx context.Context) ([]artifactSet, error) {
	yamlSet := artifactSet{label: "YAML file", names: make(map[string]bool)}
	for _, n := range c.Registry.Names() {
		yamlSet.names[n] = true
	}
	for _, le := range c.LoadErrors {
		yamlSet.names[le.Table] = true
	}
	sets := []artifactSet{yamlSet}

	if c.Source != nil {
		names, err := c.Source.Names(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing %s names: %w", c.Source.Kind(), err)
		}
		sets = append(sets, artifactSet{label: c.Source.Kind(), names: toSet(names)})
	}
	if c.MarkdownDir != "" {
		files, err := schema.ListFiles(c.MarkdownDir, ".md")
		if err != nil {
			return nil, err
		}
		md := artifactSet{label: "Markdown file", names: make(map[string]bool, len(files))}
		for _, f := range files {
			md.names[schema.Stem(f)] = true
		}
		sets = append(sets, md)
	}
	return sets, nil
}

// orphans reports names present in exactly one artifact set, one WARNING per missing
// counterpart. A non-nil scope limits the report to those names.
func orphans(sets []artifactSet, scope []string) []Finding {
	if len(sets) < 2 {
		return nil
	}
	all := make(map[string]bool)
	for _, s := range sets {
		for n := range s.names {
			all[n] = true
		}
	}
	if scope != nil {
		all = make(map[string]bool)
		for _, n := range scope {
			all[n] = true
		}
	}

	var out []Finding
	for _, name := range sortedKeys(all) {
		var present []artifactSet
		for _, s := range sets {
			if s.names[name] {
				present = append(present, s)
			}
		}
		if len(present) != 1 {
			continue
		}
		for _, s := range sets {
			if s.label == present[0].label {
				continue
			}
			out = append(out, Finding{
				Severity: SeverityWarning,
				Table:    name,
				Category: CategoryOrphanedFile,
				Message:  fmt.Sprintf("orphaned %s: %s (no %s)", present[0].label, name, s.label),
			})
		}
	}
	return out
}

func toSet(list []string) map[string]bool {
	m := make(map[string]bool, len(list))
	for _, s := range list {
		m[s] = true
	}
	return m
}

// Summary is a one-line pass/fail count.
func (r *Result) Summary() string {
	counts := r.Counts()
	status := "PASS"
	if !r.IsValid() {
		status = "FAIL"
	}
	return fmt.Sprintf("%s: %d tables checked, %d errors, %d warnings, %d info",
		status, len(r.Tables), counts[SeverityError], counts[SeverityWarning], counts[SeverityInfo])
}
