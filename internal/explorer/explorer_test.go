package explorer

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/reloquent/tabledoc/internal/consistency"
	"github.com/reloquent/tabledoc/internal/relation"
	"github.com/reloquent/tabledoc/internal/schema"
)

func testRegistry() *schema.Registry {
	customer := &schema.Table{Name: "MST_Customer", LogicalName: "Customer", Columns: []schema.Column{
		{Name: "id", Type: "SERIAL", PrimaryKey: true},
	}}
	order := &schema.Table{Name: "TRN_Order", Columns: []schema.Column{
		{Name: "id", Type: "SERIAL", PrimaryKey: true},
		{Name: "customer_id", Type: "INTEGER"},
	}, ForeignKeys: []schema.ForeignKey{{
		Name: "fk_order_customer", Columns: []string{"customer_id"},
		ReferenceTable: "MST_Customer", ReferenceColumns: []string{"id"}, OnDelete: schema.Cascade,
	}}}
	setting := &schema.Table{Name: "SYS_Setting", Columns: []schema.Column{
		{Name: "key", Type: "VARCHAR", PrimaryKey: true},
	}}
	return schema.NewRegistry(customer, order, setting)
}

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func update(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestNavigation(t *testing.T) {
	m := New(testRegistry(), relation.Options{}, nil)
	if m.Selected() != "MST_Customer" {
		t.Fatalf("initial selection = %q", m.Selected())
	}

	m = update(t, m, key('j'), key('j'), key('j'))
	if m.Selected() != "TRN_Order" {
		t.Errorf("cursor should stop at the last table, got %q", m.Selected())
	}
	m = update(t, m, key('k'))
	if m.Selected() != "SYS_Setting" {
		t.Errorf("after up: %q", m.Selected())
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyHome})
	if m.Selected() != "MST_Customer" {
		t.Errorf("after home: %q", m.Selected())
	}
}

func TestFilter(t *testing.T) {
	m := New(testRegistry(), relation.Options{}, nil)
	m = update(t, m, key('/'), key('o'), key('r'), key('d'))
	if !m.filtering {
		t.Fatal("expected filter mode")
	}
	if len(m.visibleIdxs) != 1 || m.Selected() != "TRN_Order" {
		t.Errorf("filter 'ord' should leave TRN_Order, got %q (%d visible)", m.Selected(), len(m.visibleIdxs))
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.filtering {
		t.Error("enter should leave filter mode")
	}
	if len(m.visibleIdxs) != 1 {
		t.Error("enter should keep the filter applied")
	}

	m = update(t, m, key('/'), tea.KeyMsg{Type: tea.KeyEsc})
	if len(m.visibleIdxs) != 3 {
		t.Errorf("esc should clear the filter, %d visible", len(m.visibleIdxs))
	}
}

func TestFilterByLogicalName(t *testing.T) {
	m := New(testRegistry(), relation.Options{}, nil)
	m = update(t, m, key('/'), key('c'), key('u'), key('s'), key('t'))
	if m.Selected() != "MST_Customer" || len(m.visibleIdxs) != 1 {
		t.Errorf("expected MST_Customer only, got %q", m.Selected())
	}

	m = update(t, m, key('z'))
	if m.Selected() != "" {
		t.Errorf("no table should match, got %q", m.Selected())
	}
	if !strings.Contains(m.View(), "No tables match the filter") {
		t.Error("expected empty-filter message")
	}
}

func TestRelatedPane(t *testing.T) {
	m := New(testRegistry(), relation.Options{}, nil)
	view := m.View()
	if !strings.Contains(view, "MST_Customer (Customer)") {
		t.Errorf("missing detail header:\n%s", view)
	}
	if !strings.Contains(view, "hop 1: TRN_Order") {
		t.Errorf("missing hop 1:\n%s", view)
	}
	if !strings.Contains(view, "composition") {
		t.Errorf("missing relationship kind:\n%s", view)
	}

	m = update(t, m, key('j'))
	if !strings.Contains(m.View(), "No related entities") {
		t.Error("SYS_Setting should have no related entities")
	}
}

func TestPanes(t *testing.T) {
	findings := &consistency.Result{Findings: []consistency.Finding{
		{Severity: consistency.SeverityError, Table: "TRN_Order", Category: consistency.CategoryColumn, Message: "column email exists in YAML but not in DDL"},
		{Severity: consistency.SeverityWarning, Table: "SYS_Setting", Category: consistency.CategoryNaming, Message: "reserved word"},
	}}
	m := New(testRegistry(), relation.Options{}, findings)

	view := m.View()
	for _, want := range []string{"1 errors", "1 warnings", "ok"} {
		if !strings.Contains(view, want) {
			t.Errorf("list missing badge %q", want)
		}
	}

	m = update(t, m, key('j'), key('j'), tea.KeyMsg{Type: tea.KeyTab})
	if m.pane != PaneColumns {
		t.Fatalf("pane = %d", m.pane)
	}
	if !strings.Contains(m.View(), "customer_id") {
		t.Error("columns pane should list customer_id")
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if !strings.Contains(m.View(), "column email exists in YAML but not in DDL") {
		t.Error("findings pane should list the table's findings")
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.pane != PaneRelated {
		t.Error("tab should wrap back to the related pane")
	}
}

func TestQuit(t *testing.T) {
	m := New(testRegistry(), relation.Options{}, nil)
	next, cmd := m.Update(key('q'))
	if !next.(Model).Done() {
		t.Error("expected done after q")
	}
	if cmd == nil {
		t.Error("expected quit command")
	}
}
