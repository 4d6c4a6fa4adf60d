// Package consistency compares YAML table definitions with their DDL (or a live database)
// and Markdown artifacts, and reports every discrepancy as a Finding.
package consistency

import (
	"fmt"
	"time"
)

// Severity of a finding. Only ERROR findings make a result invalid.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Category tags what a finding is about.
type Category string

const (
	CategoryFileExistence Category = "file-existence"
	CategoryParse         Category = "parse"
	CategoryColumn        Category = "column"
	CategoryColumnType    Category = "column-type"
	CategoryNullability   Category = "nullability"
	CategoryConstraint    Category = "constraint"
	CategoryIndex         Category = "index"
	CategoryForeignKey    Category = "foreign-key"
	CategoryNaming        Category = "naming"
	CategoryOrphanedFile  Category = "orphaned-file"
	CategoryMarkdown      Category = "markdown"
)

// Finding is one discrepancy or observation.
type Finding struct {
	Severity Severity `json:"severity" bson:"severity"`
	Table    string   `json:"table" bson:"table"`
	Category Category `json:"category" bson:"category"`
	Message  string   `json:"message" bson:"message"`
	Column   string   `json:"column,omitempty" bson:"column,omitempty"`
}

// Result holds the outcome of one check run.
type Result struct {
	RunID       string    `json:"run_id" bson:"run_id"`
	Source      string    `json:"source" bson:"source"`
	Tables      []string  `json:"tables" bson:"tables"`
	Findings    []Finding `json:"findings" bson:"findings"`
	StartedAt   time.Time `json:"started_at" bson:"started_at"`
	CompletedAt time.Time `json:"completed_at" bson:"completed_at"`
}

// IsValid reports whether the run produced no ERROR findings.
func (r *Result) IsValid() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Counts returns the number of findings per severity.
func (r *Result) Counts() map[Severity]int {
	counts := map[Severity]int{SeverityError: 0, SeverityWarning: 0, SeverityInfo: 0}
	for _, f := range r.Findings {
		counts[f.Severity]++
	}
	return counts
}

// ForTable returns the findings for one table, in report order.
func (r *Result) ForTable(table string) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Table == table {
			out = append(out, f)
		}
	}
	return out
}

// Filter returns the findings matching severity and category. Empty values match anything.
func (r *Result) Filter(sev Severity, cat Category) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if sev != "" && f.Severity != sev {
			continue
		}
		if cat != "" && f.Category != cat {
			continue
		}
		out = append(out, f)
	}
	return out
}

type findings struct {
	table string
	list  []Finding
}

func (fs *findings) add(sev Severity, cat Category, column, format string, args ...any) {
	fs.list = append(fs.list, Finding{
		Severity: sev,
		Table:    fs.table,
		Category: cat,
		Column:   column,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (fs *findings) errorf(cat Category, column, format string, args ...any) {
	fs.add(SeverityError, cat, column, format, args...)
}

func (fs *findings) warnf(cat Category, column, format string, args ...any) {
	fs.add(SeverityWarning, cat, column, format, args...)
}
