package consistency

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/reloquent/tabledoc/internal/ddl"
	"github.com/reloquent/tabledoc/internal/introspect"
	"github.com/reloquent/tabledoc/internal/schema"
	"github.com/reloquent/tabledoc/internal/typemap"
)

// ErrNotFound is returned by a TableSource when it has no definition for a table.
var ErrNotFound = errors.New("table not found")

// TableSource supplies the physical side of the comparison.
type TableSource interface {
	// Kind names what the source holds, e.g. "DDL file", for messages.
	Kind() string
	// Names lists every table the source defines.
	Names(ctx context.Context) ([]string, error)
	// Load returns the named table, or an error wrapping ErrNotFound.
	Load(ctx context.Context, name string) (*schema.Table, error)
}

// DDLDir reads <Dir>/<table>.sql files.
type DDLDir struct {
	Dir   string
	Types *typemap.TypeMap
}

func (d *DDLDir) Kind() string { return "DDL file" }

// Path returns the DDL file path for a table.
func (d *DDLDir) Path(name string) string {
	return filepath.Join(d.Dir, name+".sql")
}

func (d *DDLDir) Names(_ context.Context) ([]string, error) {
	files, err := schema.ListFiles(d.Dir, ".sql")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, schema.Stem(f))
	}
	return names, nil
}

func (d *DDLDir) Load(_ context.Context, name string) (*schema.Table, error) {
	path := d.Path(name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, err
	}
	return ddl.ParseFile(path, d.Types)
}

// Catalog is a live database that can describe its tables.
type Catalog interface {
	TableNames(ctx context.Context) ([]string, error)
	Table(ctx context.Context, name string) (*schema.Table, error)
}

// LiveSource compares against tables introspected from a database.
type LiveSource struct {
	Catalog Catalog
}

func (l *LiveSource) Kind() string { return "database table" }

func (l *LiveSource) Names(ctx context.Context) ([]string, error) {
	return l.Catalog.TableNames(ctx)
}

func (l *LiveSource) Load(ctx context.Context, name string) (*schema.Table, error) {
	t, err := l.Catalog.Table(ctx, name)
	if errors.Is(err, introspect.ErrTableNotFound) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return t, err
}
