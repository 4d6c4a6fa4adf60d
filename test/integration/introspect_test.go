//go:build integration

package integration

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/reloquent/tabledoc/internal/consistency"
	"github.com/reloquent/tabledoc/internal/introspect"
	"github.com/reloquent/tabledoc/internal/schema"
)

const fixtureDDL = `
DROP TABLE IF EXISTS it_order;
DROP TABLE IF EXISTS it_customer;
CREATE TABLE it_customer (
    id SERIAL PRIMARY KEY,
    email VARCHAR(255) NOT NULL UNIQUE,
    note TEXT
);
CREATE TABLE it_order (
    id SERIAL PRIMARY KEY,
    customer_id INTEGER NOT NULL,
    total NUMERIC(10,2) DEFAULT 0,
    CONSTRAINT fk_it_order_customer_id FOREIGN KEY (customer_id)
        REFERENCES it_customer (id) ON DELETE CASCADE
);
CREATE INDEX idx_it_order_customer ON it_order (customer_id);
`

const customerYAML = `table_name: it_customer
columns:
  - name: id
    type: SERIAL
    primary_key: true
  - name: email
    type: VARCHAR
    length: 255
    nullable: false
    unique: true
  - name: note
    type: TEXT
`

const orderYAML = `table_name: it_order
columns:
  - name: id
    type: SERIAL
    primary_key: true
  - name: customer_id
    type: INTEGER
    nullable: false
  - name: total
    type: DECIMAL
    length: 10
    scale: 2
    default: "0"
indexes:
  - name: idx_it_order_customer
    columns: [customer_id]
foreign_keys:
  - column: customer_id
    reference_table: it_customer
    reference_column: id
    on_delete: CASCADE
`

func loadFixture(t *testing.T) {
	t.Helper()
	db, err := sql.Open("pgx", pgConnString(t))
	if err != nil {
		t.Fatalf("opening postgres: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(fixtureDDL); err != nil {
		t.Fatalf("loading fixture: %v", err)
	}
	t.Cleanup(func() {
		db, err := sql.Open("pgx", pgConnString(t))
		if err != nil {
			return
		}
		defer db.Close()
		db.Exec("DROP TABLE IF EXISTS it_order; DROP TABLE IF EXISTS it_customer;")
	})
}

func TestIntrospectPostgres(t *testing.T) {
	skipIfNoPostgres(t)
	loadFixture(t)
	ctx := context.Background()

	in, err := introspect.Open(ctx, "postgres", pgConnString(t), introspect.Options{})
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer in.Close()

	order, err := in.Table(ctx, "it_order")
	if err != nil {
		t.Fatalf("introspecting it_order: %v", err)
	}
	if len(order.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(order.Columns))
	}
	if pk := order.PrimaryKeyColumns(); len(pk) != 1 || pk[0] != "id" {
		t.Errorf("primary key = %v", pk)
	}
	if len(order.ForeignKeys) != 1 || order.ForeignKeys[0].OnDelete != schema.Cascade {
		t.Errorf("foreign keys = %+v", order.ForeignKeys)
	}

	if _, err := in.Table(ctx, "it_missing"); err == nil {
		t.Error("expected an error for a missing table")
	}
}

func TestLiveCheckMatchesYAML(t *testing.T) {
	skipIfNoPostgres(t)
	loadFixture(t)
	ctx := context.Background()

	var tables []*schema.Table
	for _, body := range []string{customerYAML, orderYAML} {
		tbl, err := schema.ParseYAML([]byte(body), nil)
		if err != nil {
			t.Fatalf("parsing fixture YAML: %v", err)
		}
		tables = append(tables, tbl)
	}

	in, err := introspect.Open(ctx, "postgres", pgConnString(t), introspect.Options{})
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer in.Close()

	checker := &consistency.Checker{
		Registry: schema.NewRegistry(tables...),
		Source:   &consistency.LiveSource{Catalog: in},
		Naming:   consistency.Naming{TablePrefixes: []string{"it_"}},
	}
	res, err := checker.Check(ctx, []string{"it_customer", "it_order"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	for _, f := range res.Findings {
		if f.Severity == consistency.SeverityError {
			t.Errorf("unexpected error finding: %s: %s", f.Table, f.Message)
		}
	}
}
