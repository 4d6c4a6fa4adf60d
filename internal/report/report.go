package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/reloquent/tabledoc/internal/consistency"
)

// Format selects the report rendering.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat validates a --format value. Empty selects text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown report format %q (want text, markdown or json)", s)
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	tableStyle   = lipgloss.NewStyle().Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	passStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("82"))
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

// Render writes the result in the given format.
func Render(w io.Writer, r *consistency.Result, format Format, color bool) error {
	var out string
	switch format {
	case FormatMarkdown:
		out = FormatMarkdownReport(r)
	case FormatJSON:
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}
		out = string(data) + "\n"
	default:
		out = FormatTextReport(r, color)
	}
	_, err := io.WriteString(w, out)
	return err
}

// WriteFile renders the result into path, creating parent directories.
func WriteFile(path string, r *consistency.Result, format Format) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := Render(f, r, format, false); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadJSON reads a result from a JSON report file.
func ReadJSON(path string) (*consistency.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	r := &consistency.Result{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return r, nil
}

// FormatTextReport renders the result for a terminal: findings grouped by table in check
// order, then the summary line.
func FormatTextReport(r *consistency.Result, color bool) string {
	style := func(s lipgloss.Style, text string) string {
		if !color {
			return text
		}
		return s.Render(text)
	}

	var b strings.Builder
	b.WriteString(style(titleStyle, "=== Consistency Report ===") + "\n")
	if r.Source != "" {
		b.WriteString(fmt.Sprintf("Compared against: %s\n", r.Source))
	}
	if !r.CompletedAt.IsZero() {
		b.WriteString(fmt.Sprintf("Completed: %s (%s)\n", r.CompletedAt.Format(time.RFC3339),
			r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond)))
	}
	b.WriteString("\n")

	for _, table := range tablesWithFindings(r) {
		b.WriteString(style(tableStyle, table) + "\n")
		for _, f := range r.ForTable(table) {
			label := fmt.Sprintf("%-7s", f.Severity)
			switch f.Severity {
			case consistency.SeverityError:
				label = style(errorStyle, label)
			case consistency.SeverityWarning:
				label = style(warningStyle, label)
			default:
				label = style(infoStyle, label)
			}
			b.WriteString(fmt.Sprintf("  %s [%s] %s\n", label, f.Category, f.Message))
		}
		b.WriteString("\n")
	}

	summary := r.Summary()
	if r.IsValid() {
		summary = style(passStyle, summary)
	} else {
		summary = style(failStyle, summary)
	}
	b.WriteString(summary + "\n")
	return b.String()
}

// FormatMarkdownReport renders the result as a Markdown document.
func FormatMarkdownReport(r *consistency.Result) string {
	var b strings.Builder
	counts := r.Counts()

	b.WriteString("# Consistency Report\n\n")
	status := "PASS"
	if !r.IsValid() {
		status = "FAIL"
	}
	b.WriteString("| Item | Value |\n|---|---|\n")
	b.WriteString(fmt.Sprintf("| Status | **%s** |\n", status))
	if r.RunID != "" {
		b.WriteString(fmt.Sprintf("| Run | `%s` |\n", r.RunID))
	}
	if r.Source != "" {
		b.WriteString(fmt.Sprintf("| Compared against | %s |\n", r.Source))
	}
	b.WriteString(fmt.Sprintf("| Tables | %d |\n", len(r.Tables)))
	b.WriteString(fmt.Sprintf("| Errors | %d |\n", counts[consistency.SeverityError]))
	b.WriteString(fmt.Sprintf("| Warnings | %d |\n", counts[consistency.SeverityWarning]))
	b.WriteString(fmt.Sprintf("| Info | %d |\n", counts[consistency.SeverityInfo]))

	tables := tablesWithFindings(r)
	if len(tables) == 0 {
		b.WriteString("\nNo findings.\n")
		return b.String()
	}
	for _, table := range tables {
		b.WriteString(fmt.Sprintf("\n## %s\n\n", table))
		b.WriteString("| Severity | Category | Column | Message |\n|---|---|---|---|\n")
		for _, f := range r.ForTable(table) {
			b.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", f.Severity, f.Category,
				escape(f.Column), escape(f.Message)))
		}
	}
	return b.String()
}

// tablesWithFindings lists tables in the order their first finding appears.
func tablesWithFindings(r *consistency.Result) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range r.Findings {
		if !seen[f.Table] {
			seen[f.Table] = true
			out = append(out, f.Table)
		}
	}
	return out
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
