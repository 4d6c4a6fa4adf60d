// Package introspect reads table definitions from a live database catalog and maps them
// onto the schema model, so the consistency checker can compare YAML against a running
// database instead of DDL files.
package introspect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/sijms/go-ora/v2"

	"github.com/reloquent/tabledoc/internal/schema"
	"github.com/reloquent/tabledoc/internal/typemap"
)

// ErrTableNotFound is returned by Table when the catalog has no such table.
var ErrTableNotFound = errors.New("table not found in database")

// UnsupportedDriverError is returned for an unknown driver name.
type UnsupportedDriverError struct {
	Driver string
}

func (e *UnsupportedDriverError) Error() string {
	return "unsupported database driver: " + e.Driver
}

// Introspector reads table definitions through database/sql. It is safe for concurrent use.
type Introspector struct {
	db     *sql.DB
	d      dialect
	schema string
	types  *typemap.TypeMap
	logger *slog.Logger
}

// Options configures an Introspector.
type Options struct {
	Schema string // schema / database / owner; empty means the connection's current schema
	Types  *typemap.TypeMap
	Logger *slog.Logger
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, driver, dsn string, opts Options) (*Introspector, error) {
	d, ok := lookupDialect(driver)
	if !ok {
		return nil, &UnsupportedDriverError{Driver: driver}
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s connection: %w", d.name, err)
	}
	db.SetMaxOpenConns(4)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s: %w", d.name, err)
	}

	in, err := New(db, driver, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	if in.schema == "" {
		if err := db.QueryRowContext(ctx, d.currentSchema).Scan(&in.schema); err != nil {
			db.Close()
			return nil, fmt.Errorf("resolving current schema: %w", err)
		}
	}
	in.logger.Debug("connected for introspection", "driver", d.name, "schema", in.schema)
	return in, nil
}

// New wraps an existing connection.
func New(db *sql.DB, driver string, opts Options) (*Introspector, error) {
	d, ok := lookupDialect(driver)
	if !ok {
		return nil, &UnsupportedDriverError{Driver: driver}
	}
	types := opts.Types
	if types == nil {
		types = typemap.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Introspector{db: db, d: d, schema: opts.Schema, types: types, logger: logger}, nil
}

// Schema returns the schema being introspected.
func (in *Introspector) Schema() string { return in.schema }

// Close closes the connection.
func (in *Introspector) Close() error {
	if in.db == nil {
		return nil
	}
	return in.db.Close()
}

// TableNames lists the base tables of the schema, sorted.
func (in *Introspector) TableNames(ctx context.Context) ([]string, error) {
	rows, err := in.db.QueryContext(ctx, in.d.tables, in.schema)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Table reads one table: columns, primary key, indexes and foreign keys.
func (in *Introspector) Table(ctx context.Context, name string) (*schema.Table, error) {
	t := &schema.Table{Name: name, Source: in.d.name + ":" + in.schema}

	if err := in.columns(ctx, t); err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", name, err)
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("%s.%s: %w", in.schema, name, ErrTableNotFound)
	}
	if err := in.primaryKey(ctx, t); err != nil {
		return nil, fmt.Errorf("reading primary key of %s: %w", name, err)
	}
	if err := in.indexes(ctx, t); err != nil {
		return nil, fmt.Errorf("reading indexes of %s: %w", name, err)
	}
	if err := in.foreignKeys(ctx, t); err != nil {
		return nil, fmt.Errorf("reading foreign keys of %s: %w", name, err)
	}
	return t, nil
}

// Discover reads every table of the schema.
func (in *Introspector) Discover(ctx context.Context) ([]*schema.Table, error) {
	names, err := in.TableNames(ctx)
	if err != nil {
		return nil, err
	}
	tables := make([]*schema.Table, 0, len(names))
	for _, n := range names {
		t, err := in.Table(ctx, n)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	in.logger.Info("introspected schema", "schema", in.schema, "tables", len(tables))
	return tables, nil
}

func (in *Introspector) columns(ctx context.Context, t *schema.Table) error {
	rows, err := in.db.QueryContext(ctx, in.d.columns, in.schema, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			colName, dataType, nullable string
			defaultVal, comment         sql.NullString
			maxLen, precision, scale    sql.NullInt64
		)
		if err := rows.Scan(&colName, &dataType, &nullable, &defaultVal, &maxLen, &precision, &scale, &comment); err != nil {
			return err
		}

		full := in.types.FromInformationSchema(dataType, intPtr(maxLen), intPtr(precision), intPtr(scale))
		spec, err := in.types.Parse(full)
		if err != nil {
			spec = typemap.Spec{Base: full}
		}
		col := schema.Column{
			Name:     colName,
			Type:     spec.Base,
			Length:   spec.Length,
			Scale:    spec.Scale,
			Nullable: strings.EqualFold(nullable, "YES"),
			Comment:  comment.String,
		}
		if spec.Array {
			col.Type += "[]"
		}
		if defaultVal.Valid {
			v := strings.TrimSpace(defaultVal.String)
			col.Default = &v
		}
		t.Columns = append(t.Columns, col)
	}
	return rows.Err()
}

func (in *Introspector) primaryKey(ctx context.Context, t *schema.Table) error {
	rows, err := in.db.QueryContext(ctx, in.d.primaryKey, in.schema, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var colName string
		if err := rows.Scan(&colName); err != nil {
			return err
		}
		if c := t.Column(colName); c != nil {
			c.PrimaryKey = true
			c.Nullable = false
		}
	}
	return rows.Err()
}

// indexes groups index rows by name. A single-column index backing a UNIQUE constraint
// becomes the column's unique flag, matching how the DDL and YAML forms express it.
func (in *Introspector) indexes(ctx context.Context, t *schema.Table) error {
	args := []any{in.schema, t.Name}
	if in.d.repeatArgs {
		args = append(args, in.schema, t.Name)
	}
	rows, err := in.db.QueryContext(ctx, in.d.indexes, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	type indexRow struct {
		cols       []string
		unique     bool
		constraint bool
	}
	grouped := make(map[string]*indexRow)
	var order []string
	for rows.Next() {
		var (
			idxName, colName   string
			unique, constraint bool
		)
		if err := rows.Scan(&idxName, &colName, &unique, &constraint); err != nil {
			return err
		}
		r, ok := grouped[idxName]
		if !ok {
			r = &indexRow{unique: unique, constraint: constraint}
			grouped[idxName] = r
			order = append(order, idxName)
		}
		r.cols = append(r.cols, colName)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, name := range order {
		r := grouped[name]
		if r.constraint && r.unique && len(r.cols) == 1 {
			if c := t.Column(r.cols[0]); c != nil {
				c.Unique = true
				continue
			}
		}
		t.Indexes = append(t.Indexes, schema.Index{Name: name, Columns: r.cols, Unique: r.unique})
	}
	return nil
}

func (in *Introspector) foreignKeys(ctx context.Context, t *schema.Table) error {
	rows, err := in.db.QueryContext(ctx, in.d.foreignKeys, in.schema, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	grouped := make(map[string]*schema.ForeignKey)
	var order []string
	for rows.Next() {
		var name, col, refTable, refCol, onUpdate, onDelete string
		if err := rows.Scan(&name, &col, &refTable, &refCol, &onUpdate, &onDelete); err != nil {
			return err
		}
		fk, ok := grouped[name]
		if !ok {
			fk = &schema.ForeignKey{
				Name:           name,
				ReferenceTable: refTable,
				OnUpdate:       ruleAction(onUpdate),
				OnDelete:       ruleAction(onDelete),
			}
			grouped[name] = fk
			order = append(order, name)
		}
		fk.Columns = append(fk.Columns, col)
		fk.ReferenceColumns = append(fk.ReferenceColumns, refCol)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, name := range order {
		t.ForeignKeys = append(t.ForeignKeys, *grouped[name])
	}
	return nil
}

// ruleAction maps a catalog referential rule onto the model. SET DEFAULT has no
// counterpart and reads as NO ACTION.
func ruleAction(rule string) schema.FKAction {
	a, err := schema.ParseFKAction(rule)
	if err != nil {
		return schema.NoAction
	}
	return a
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
