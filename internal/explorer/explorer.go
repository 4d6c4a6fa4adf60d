// Package explorer is the interactive table browser behind `tabledoc explore`.
package explorer

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/reloquent/tabledoc/internal/consistency"
	"github.com/reloquent/tabledoc/internal/relation"
	"github.com/reloquent/tabledoc/internal/schema"
)

// Pane selects what the detail area shows.
type Pane int

const (
	PaneRelated Pane = iota
	PaneColumns
	PaneFindings
	paneCount
)

var paneLabels = []string{"related", "columns", "findings"}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).BorderStyle(lipgloss.DoubleBorder()).BorderBottom(true).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	okStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	headingStyle   = lipgloss.NewStyle().Bold(true)
)

// Model is the bubbletea model for browsing tables, their related entities and findings.
type Model struct {
	reg      *schema.Registry
	graph    *relation.Graph
	opts     relation.Options
	findings *consistency.Result // may be nil

	names       []string
	visibleIdxs []int
	cursor      int

	filter    textinput.Model
	filtering bool
	pane      Pane

	done   bool
	width  int
	height int
}

// New creates the explorer over every registry table. findings may be nil when no
// check has been run.
func New(reg *schema.Registry, opts relation.Options, findings *consistency.Result) Model {
	ti := textinput.New()
	ti.Placeholder = "table name"
	ti.CharLimit = 64
	ti.Prompt = "Filter: "

	m := Model{
		reg:      reg,
		graph:    relation.NewGraph(reg),
		opts:     opts,
		findings: findings,
		names:    reg.Names(),
		filter:   ti,
		width:    100,
		height:   30,
	}
	m.applyFilter()
	return m
}

// Run starts the explorer full screen.
func Run(m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running explorer: %w", err)
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		return m.updateNormal(msg)
	}
	return m, nil
}

func (m Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.done = true
		return m, tea.Quit

	case "up", "k":
		m.moveCursor(-1)

	case "down", "j":
		m.moveCursor(1)

	case "home":
		m.cursor = 0

	case "end":
		if len(m.visibleIdxs) > 0 {
			m.cursor = len(m.visibleIdxs) - 1
		}

	case "tab":
		m.pane = (m.pane + 1) % paneCount

	case "shift+tab":
		m.pane = (m.pane + paneCount - 1) % paneCount

	case "/":
		m.filtering = true
		return m, m.filter.Focus()
	}
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.applyFilter()
		return m, nil

	case "enter":
		m.filtering = false
		m.filter.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m *Model) moveCursor(delta int) {
	if len(m.visibleIdxs) == 0 {
		return
	}
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.visibleIdxs) {
		m.cursor = len(m.visibleIdxs) - 1
	}
}

// applyFilter keeps the tables whose physical or logical name contains the filter text,
// case-insensitively.
func (m *Model) applyFilter() {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	var idxs []int
	for i, name := range m.names {
		if q == "" || strings.Contains(strings.ToLower(name), q) {
			idxs = append(idxs, i)
			continue
		}
		if t, ok := m.reg.Get(name); ok && strings.Contains(strings.ToLower(t.LogicalName), q) {
			idxs = append(idxs, i)
		}
	}
	m.visibleIdxs = idxs
	if m.cursor >= len(m.visibleIdxs) {
		m.cursor = max(len(m.visibleIdxs)-1, 0)
	}
}

// Selected returns the table under the cursor, or "" when nothing is visible.
func (m Model) Selected() string {
	if len(m.visibleIdxs) == 0 {
		return ""
	}
	return m.names[m.visibleIdxs[m.cursor]]
}

// Done reports whether the user quit.
func (m Model) Done() bool { return m.done }

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("tabledoc explorer: %d tables", len(m.names))) + "\n\n")

	if m.filtering {
		b.WriteString("  " + m.filter.View() + "\n\n")
	} else if v := m.filter.Value(); v != "" {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  Filter: %s (/ to change, esc in filter to clear)", v)) + "\n\n")
	}

	listHeight := max(m.height/2-4, 5)
	start := 0
	if m.cursor >= listHeight {
		start = m.cursor - listHeight + 1
	}
	end := min(start+listHeight, len(m.visibleIdxs))

	if len(m.visibleIdxs) == 0 {
		b.WriteString(dimStyle.Render("  No tables match the filter") + "\n")
	}
	for vi := start; vi < end; vi++ {
		name := m.names[m.visibleIdxs[vi]]
		cursor := "  "
		label := name
		if vi == m.cursor {
			cursor = highlightStyle.Render("> ")
			label = headingStyle.Render(name)
		}
		b.WriteString(fmt.Sprintf("%s%-40s %s\n", cursor, label, m.statusBadge(name)))
	}
	if len(m.visibleIdxs) > listHeight {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  Showing %d-%d of %d", start+1, end, len(m.visibleIdxs))) + "\n")
	}

	b.WriteString("\n")
	if sel := m.Selected(); sel != "" {
		b.WriteString(m.detail(sel))
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("  pane: %s • tab switch pane • / filter • j/k move • q quit", paneLabels[m.pane])) + "\n")
	return b.String()
}

func (m Model) statusBadge(table string) string {
	if m.findings == nil {
		return ""
	}
	var errs, warns int
	for _, f := range m.findings.ForTable(table) {
		switch f.Severity {
		case consistency.SeverityError:
			errs++
		case consistency.SeverityWarning:
			warns++
		}
	}
	switch {
	case errs > 0:
		return errStyle.Render(fmt.Sprintf("%d errors", errs))
	case warns > 0:
		return warnStyle.Render(fmt.Sprintf("%d warnings", warns))
	}
	return okStyle.Render("ok")
}

func (m Model) detail(name string) string {
	t, _ := m.reg.Get(name)
	var b strings.Builder
	header := name
	if t != nil && t.LogicalName != "" {
		header += " (" + t.LogicalName + ")"
	}
	b.WriteString(headingStyle.Render("  "+header) + "\n")

	switch m.pane {
	case PaneRelated:
		res, err := m.graph.Related(name, m.opts)
		if err != nil {
			b.WriteString(errStyle.Render("  "+err.Error()) + "\n")
			break
		}
		if res.Empty() {
			b.WriteString(dimStyle.Render("  No related entities") + "\n")
			break
		}
		b.WriteString(fmt.Sprintf("  hop 1: %s\n", strings.Join(res.Depths[1], ", ")))
		hop2 := strings.Join(res.Depths[2], ", ")
		if hop2 == "" {
			hop2 = "-"
		}
		b.WriteString(fmt.Sprintf("  hop 2: %s\n", hop2))
		if res.Truncated > 0 {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  (%d more hop-2 tables not shown)", res.Truncated)) + "\n")
		}
		for _, e := range res.Edges {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  %s.%s -> %s.%s (%s)",
				e.ChildTable, strings.Join(e.ChildColumns, ","), e.ParentTable,
				strings.Join(e.ParentColumns, ","), relation.Classify(e.OnDelete))) + "\n")
		}

	case PaneColumns:
		if t == nil {
			break
		}
		for _, c := range t.Columns {
			flags := ""
			if c.PrimaryKey {
				flags += " PK"
			}
			if t.IsForeignKeyColumn(c.Name) {
				flags += " FK"
			}
			if !c.Nullable {
				flags += " NOT NULL"
			}
			b.WriteString(fmt.Sprintf("  %-30s %-16s%s\n", c.Name, c.FullType(), flags))
		}

	case PaneFindings:
		if m.findings == nil {
			b.WriteString(dimStyle.Render("  No check results loaded (run `tabledoc explore --check`)") + "\n")
			break
		}
		list := m.findings.ForTable(name)
		if len(list) == 0 {
			b.WriteString(okStyle.Render("  No findings") + "\n")
		}
		for _, f := range list {
			style := dimStyle
			switch f.Severity {
			case consistency.SeverityError:
				style = errStyle
			case consistency.SeverityWarning:
				style = warnStyle
			}
			b.WriteString(style.Render(fmt.Sprintf("  %-7s [%s] %s", f.Severity, f.Category, f.Message)) + "\n")
		}
	}
	return b.String()
}
