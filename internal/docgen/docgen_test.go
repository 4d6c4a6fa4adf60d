package docgen

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reloquent/tabledoc/internal/ddl"
	"github.com/reloquent/tabledoc/internal/diagram"
	"github.com/reloquent/tabledoc/internal/lock"
	"github.com/reloquent/tabledoc/internal/relation"
	"github.com/reloquent/tabledoc/internal/schema"
)

const customerYAML = `
table_name: MST_Customer
logical_name: Customer
category: master
comment: People who place orders
columns:
  - name: id
    type: SERIAL
    primary_key: true
  - name: name
    logical_name: Customer name
    type: VARCHAR
    length: 100
    nullable: false
    comment: "Full name | legal"
  - name: status
    type: VARCHAR
    length: 10
    default: active
notes:
  - Kept for seven years
  - Soft deleted only
rules:
  retention: 7y
  owner: sales
revision_history:
  - date: 2026-01-10
    author: kim
    change: created
  - date: 2026-03-02
    author: lee
    change: added status
data_steward: Sales Operations
sample_data:
  - id: 1
    name: Ada
    status: active
`

const orderYAML = `
table_name: TRN_Order
columns:
  - name: id
    type: SERIAL
    primary_key: true
  - name: customer_id
    type: INTEGER
    nullable: false
indexes:
  - name: idx_order_customer
    columns: [customer_id]
foreign_keys:
  - column: customer_id
    reference_table: MST_Customer
    reference_column: id
    on_delete: CASCADE
`

func parse(t *testing.T, body string) *schema.Table {
	t.Helper()
	tbl, err := schema.ParseYAML([]byte(body), nil)
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	return tbl
}

func registry(t *testing.T) *schema.Registry {
	t.Helper()
	return schema.NewRegistry(parse(t, customerYAML), parse(t, orderYAML))
}

func TestMarkdownSections(t *testing.T) {
	reg := registry(t)
	doc, err := Document(reg, relation.NewGraph(reg), "MST_Customer", relation.Options{})
	if err != nil {
		t.Fatalf("Document: %v", err)
	}

	want := []string{
		"# Customer (MST_Customer)",
		"| Physical name | `MST_Customer` |",
		"| Category | master |",
		"| 2 | `name` | Customer name | VARCHAR(100) |  |  |  |  | Full name \\| legal |",
		"| 3 | `status` |  | VARCHAR(10) | ✓ |  |  | active |  |",
		"## Indexes\n\n" + None,
		"## Foreign Keys\n\n" + None,
		"```mermaid\nerDiagram",
		"## Notes\n\n- Kept for seven years\n- Soft deleted only",
		"## Rules\n\n- **retention**: 7y\n- **owner**: sales",
		"## Revision History\n\n| date | author | change |\n|---|---|---|\n| 2026-01-10 | kim | created |",
		"## Data Steward\n\nSales Operations",
	}
	for _, w := range want {
		if !strings.Contains(doc, w) {
			t.Errorf("document missing %q\n%s", w, doc)
		}
	}
	if strings.Contains(doc, "Sample Data") {
		t.Error("sample_data belongs in the INSERT script, not the document")
	}

	// known sections come before the rest
	if strings.Index(doc, "## Revision History") > strings.Index(doc, "## Data Steward") {
		t.Error("expected revision history before opaque metadata sections")
	}
}

func TestMarkdownForeignKeysAndIndexes(t *testing.T) {
	reg := registry(t)
	doc, err := Document(reg, relation.NewGraph(reg), "TRN_Order", relation.Options{})
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	for _, w := range []string{
		"# TRN_Order\n",
		"| idx_order_customer | customer_id |  |",
		"| customer_id | MST_Customer(id) | RESTRICT | CASCADE |",
		`MST_Customer ||--o{ TRN_Order : "composition"`,
	} {
		if !strings.Contains(doc, w) {
			t.Errorf("document missing %q\n%s", w, doc)
		}
	}
}

func TestMarkdownWithoutRelations(t *testing.T) {
	tbl := parse(t, `
table_name: SYS_Setting
columns:
  - name: key
    type: VARCHAR
    length: 50
    primary_key: true
`)
	reg := schema.NewRegistry(tbl)
	doc, err := Document(reg, relation.NewGraph(reg), "SYS_Setting", relation.Options{})
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if !strings.Contains(doc, "## ER Diagram\n\n"+diagram.NoRelated) {
		t.Errorf("expected no-related line under the diagram heading\n%s", doc)
	}
	if strings.Contains(doc, "erDiagram") {
		t.Error("expected no diagram block for an isolated table")
	}
}

func TestDocumentUnknownTable(t *testing.T) {
	reg := registry(t)
	_, err := Document(reg, relation.NewGraph(reg), "MST_Nope", relation.Options{})
	if !errors.Is(err, relation.ErrUnknownTable) {
		t.Fatalf("expected ErrUnknownTable, got %v", err)
	}
}

func TestWriterGenerate(t *testing.T) {
	reg := registry(t)
	out := t.TempDir()
	w := &Writer{OutputDir: out, Workers: 2}

	outputs, err := w.Generate(context.Background(), reg, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(outputs))
	}
	if failed := Failed(outputs); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}

	for _, p := range []string{
		filepath.Join(out, MarkdownDir, "MST_Customer.md"),
		filepath.Join(out, MarkdownDir, "TRN_Order.md"),
		filepath.Join(out, DDLDir, "MST_Customer.sql"),
		filepath.Join(out, DDLDir, "TRN_Order.sql"),
		filepath.Join(out, DataDir, "MST_Customer_sample.sql"),
	} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s: %v", p, err)
		}
	}
	if _, err := os.Stat(filepath.Join(out, DataDir, "TRN_Order_sample.sql")); !os.IsNotExist(err) {
		t.Error("table without sample_data should not get a data file")
	}

	// the generated DDL reads back to the YAML definition
	parsed, err := ddl.ParseFile(filepath.Join(out, DDLDir, "TRN_Order.sql"), nil)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(parsed.ForeignKeys) != 1 || parsed.ForeignKeys[0].OnDelete != schema.Cascade {
		t.Errorf("round-tripped foreign keys = %+v", parsed.ForeignKeys)
	}

	data, err := os.ReadFile(filepath.Join(out, DataDir, "MST_Customer_sample.sql"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "INSERT INTO") {
		t.Errorf("sample script has no INSERT: %s", data)
	}

	if held, _, _ := lock.IsHeld(lock.PathFor(out)); held {
		t.Error("output lock should be released after Generate")
	}
}

func TestWriterGeneratePerTableFailure(t *testing.T) {
	bad := parse(t, `
table_name: WRK_Import
columns:
  - name: id
    type: INTEGER
    primary_key: true
sample_data:
  - id: 1
    ghost: x
`)
	reg := schema.NewRegistry(bad, parse(t, customerYAML))
	out := t.TempDir()

	outputs, err := (&Writer{OutputDir: out}).Generate(context.Background(), reg, []string{"WRK_Import", "MST_Customer", "MST_Missing"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	failed := Failed(outputs)
	if len(failed) != 2 {
		t.Fatalf("expected 2 failures, got %+v", failed)
	}
	if failed[0].Table != "WRK_Import" || !strings.Contains(failed[0].Err.Error(), "ghost") {
		t.Errorf("unexpected first failure: %+v", failed[0])
	}
	if !errors.Is(failed[1].Err, relation.ErrUnknownTable) {
		t.Errorf("expected unknown table failure, got %v", failed[1].Err)
	}
	if _, err := os.Stat(filepath.Join(out, MarkdownDir, "MST_Customer.md")); err != nil {
		t.Errorf("healthy table should still be generated: %v", err)
	}
}

func TestWriterRequiresOutputDir(t *testing.T) {
	if _, err := (&Writer{}).Generate(context.Background(), registry(t), nil); err == nil {
		t.Fatal("expected error without an output directory")
	}
}
