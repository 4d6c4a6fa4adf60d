package diagram

import (
	"strings"
	"testing"

	"github.com/reloquent/tabledoc/internal/relation"
	"github.com/reloquent/tabledoc/internal/schema"
)

func ptr(n int) *int { return &n }

func testRegistry() *schema.Registry {
	customer := &schema.Table{
		Name:        "MST_Customer",
		LogicalName: "Customer",
		Columns: []schema.Column{
			{Name: "customer_id", Type: "INTEGER", PrimaryKey: true},
			{Name: "name", Type: "VARCHAR", Length: ptr(100)},
		},
	}
	order := &schema.Table{
		Name:        "TRN_Order",
		LogicalName: "Order",
		Columns: []schema.Column{
			{Name: "order_id", Type: "INTEGER", PrimaryKey: true},
			{Name: "customer_id", Type: "INTEGER", LogicalName: "Customer"},
			{Name: "total", Type: "DECIMAL", Length: ptr(12), Scale: ptr(2), Nullable: true},
			{Name: "placed_at", Type: "TIMESTAMP WITH TIME ZONE"},
		},
		ForeignKeys: []schema.ForeignKey{{
			Name: "fk_order_customer", Columns: []string{"customer_id"},
			ReferenceTable: "MST_Customer", ReferenceColumns: []string{"customer_id"},
			OnDelete: schema.Restrict,
		}},
	}
	line := &schema.Table{
		Name: "TRN_OrderLine",
		Columns: []schema.Column{
			{Name: "line_id", Type: "INTEGER", PrimaryKey: true},
			{Name: "order_id", Type: "INTEGER"},
			{Name: "note", Type: "TEXT", Nullable: true},
		},
		ForeignKeys: []schema.ForeignKey{{
			Name: "fk_line_order", Columns: []string{"order_id"},
			ReferenceTable: "TRN_Order", ReferenceColumns: []string{"order_id"},
			OnDelete: schema.Cascade,
		}},
	}
	lonely := &schema.Table{
		Name:    "SYS_Setting",
		Columns: []schema.Column{{Name: "key_name", Type: "VARCHAR", Length: ptr(50), PrimaryKey: true}},
	}
	return schema.NewRegistry(customer, order, line, lonely)
}

func TestRender(t *testing.T) {
	reg := testRegistry()
	res, err := relation.NewGraph(reg).Related("TRN_Order", relation.Options{})
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	out := Render(reg, res)

	if !strings.HasPrefix(out, "erDiagram\n") {
		t.Fatalf("missing erDiagram header:\n%s", out)
	}
	wants := []string{
		"%% TRN_Order: Order",
		"TRN_Order {",
		"INTEGER order_id PK",
		`INTEGER customer_id FK "Customer"`,
		"DECIMAL(12_2) total",
		"TIMESTAMP_WITH_TIME_ZONE placed_at",
		"MST_Customer {",
		"INTEGER customer_id PK",
		"TRN_OrderLine {",
		"INTEGER order_id FK",
		`MST_Customer ||--o{ TRN_Order : "association"`,
		`TRN_Order ||--o{ TRN_OrderLine : "composition"`,
	}
	for _, w := range wants {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
	// related tables carry key columns only
	if strings.Contains(out, "VARCHAR(100) name") {
		t.Errorf("related entity should not list non-key columns:\n%s", out)
	}
	if strings.Contains(out, "TEXT note") {
		t.Errorf("related entity should not list non-key columns:\n%s", out)
	}
}

func TestRender_NullableCardinality(t *testing.T) {
	reg := testRegistry()
	order, _ := reg.Get("TRN_Order")
	order.Columns[1].Nullable = true
	res, err := relation.NewGraph(reg).Related("MST_Customer", relation.Options{MaxDepth: 1})
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	out := Render(reg, res)
	if !strings.Contains(out, `MST_Customer |o--o{ TRN_Order : "association"`) {
		t.Errorf("expected optional cardinality:\n%s", out)
	}
}

func TestRender_Empty(t *testing.T) {
	reg := testRegistry()
	res, err := relation.NewGraph(reg).Related("SYS_Setting", relation.Options{})
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	if got := Render(reg, res); got != NoRelated {
		t.Errorf("Render = %q, want %q", got, NoRelated)
	}
	if got := Markdown(reg, res); got != NoRelated {
		t.Errorf("Markdown = %q, want %q", got, NoRelated)
	}
	if got := Render(reg, nil); got != NoRelated {
		t.Errorf("Render(nil) = %q", got)
	}
}

func TestMarkdown_Fenced(t *testing.T) {
	reg := testRegistry()
	res, err := relation.NewGraph(reg).Related("TRN_Order", relation.Options{})
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	out := Markdown(reg, res)
	if !strings.HasPrefix(out, "```mermaid\nerDiagram\n") || !strings.HasSuffix(out, "\n```") {
		t.Errorf("unexpected fence:\n%s", out)
	}
}

func TestEntityName(t *testing.T) {
	tests := map[string]string{
		"MST_User":   "MST_User",
		"order-line": "order-line",
		"my table":   `"my table"`,
	}
	for in, want := range tests {
		if got := entityName(in); got != want {
			t.Errorf("entityName(%q) = %q, want %q", in, got, want)
		}
	}
}
