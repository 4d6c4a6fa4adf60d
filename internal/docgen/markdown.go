// Package docgen writes the per-table documentation set: the Markdown definition document,
// the DDL script and the sample INSERT script.
package docgen

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/reloquent/tabledoc/internal/schema"
)

// None is written in place of an empty section.
const None = "_None._"

var markdownTemplate = template.Must(template.New("table").Funcs(template.FuncMap{
	"cell":  cell,
	"inc":   func(i int) int { return i + 1 },
	"mark":  mark,
	"join":  strings.Join,
	"deref": func(s *string) string { return *s },
	"action": func(a schema.FKAction) string {
		if a == "" {
			return string(schema.Restrict)
		}
		return string(a)
	},
}).Parse(`# {{ .Table.DisplayName }}{{ if ne .Table.DisplayName .Table.Name }} ({{ .Table.Name }}){{ end }}

## Overview

| Item | Value |
|---|---|
| Physical name | ` + "`{{ .Table.Name }}`" + ` |
| Logical name | {{ cell .Table.LogicalName }} |
| Category | {{ cell .Table.Category }} |
| Description | {{ cell .Table.Comment }} |

## Columns

| # | Column | Logical name | Type | Nullable | PK | Unique | Default | Description |
|---|---|---|---|---|---|---|---|---|
{{ range $i, $c := .Table.Columns -}}
| {{ inc $i }} | ` + "`{{ $c.Name }}`" + ` | {{ cell $c.LogicalName }} | {{ $c.FullType }} | {{ mark $c.Nullable }} | {{ mark $c.PrimaryKey }} | {{ mark $c.Unique }} | {{ if $c.Default }}{{ cell (deref $c.Default) }}{{ end }} | {{ cell $c.Comment }} |
{{ end }}
## Indexes

{{ if .Table.Indexes -}}
| Name | Columns | Unique |
|---|---|---|
{{ range .Table.Indexes -}}
| {{ cell .Name }} | {{ cell (join .Columns ", ") }} | {{ mark .Unique }} |
{{ end }}{{ else }}` + None + `
{{ end }}
## Foreign Keys

{{ if .Table.ForeignKeys -}}
| Name | Columns | References | ON UPDATE | ON DELETE |
|---|---|---|---|---|
{{ range .Table.ForeignKeys -}}
| {{ cell .Name }} | {{ cell (join .Columns ", ") }} | {{ .ReferenceTable }}({{ join .ReferenceColumns ", " }}) | {{ action .OnUpdate }} | {{ action .OnDelete }} |
{{ end }}{{ else }}` + None + `
{{ end }}
## ER Diagram

{{ .Diagram }}
{{ range .Sections }}
## {{ .Heading }}

{{ .Body }}
{{ end }}`))

type section struct {
	Heading string
	Body    string
}

type templateData struct {
	Table    *schema.Table
	Diagram  string
	Sections []section
}

// Markdown renders the definition document of t. diagram is embedded verbatim under the
// ER Diagram heading; metadata sections follow in MetadataKeys order with title-cased headings.
func Markdown(t *schema.Table, diagram string) (string, error) {
	if diagram == "" {
		diagram = None
	}
	data := templateData{Table: t, Diagram: diagram}

	title := cases.Title(language.English)
	for _, key := range t.MetadataKeys() {
		if key == "sample_data" {
			continue
		}
		body := renderNode(t.Metadata[key])
		if body == "" {
			body = None
		}
		data.Sections = append(data.Sections, section{
			Heading: title.String(strings.ReplaceAll(key, "_", " ")),
			Body:    body,
		})
	}

	var buf bytes.Buffer
	if err := markdownTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering markdown for %s: %w", t.Name, err)
	}
	return buf.String(), nil
}

// renderNode renders an opaque metadata node: scalars as text, lists of mappings as a
// table, other lists as bullets and mappings as a bold key list.
func renderNode(n *yaml.Node) string {
	if n == nil {
		return ""
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return ""
		}
		return renderNode(n.Content[0])
	case yaml.AliasNode:
		return renderNode(n.Alias)
	case yaml.ScalarNode:
		return strings.TrimSpace(n.Value)
	case yaml.SequenceNode:
		if len(n.Content) > 0 && allMappings(n.Content) {
			return mappingTable(n.Content)
		}
		var lines []string
		for _, item := range n.Content {
			lines = append(lines, "- "+inline(item))
		}
		return strings.Join(lines, "\n")
	case yaml.MappingNode:
		var lines []string
		for i := 0; i+1 < len(n.Content); i += 2 {
			lines = append(lines, fmt.Sprintf("- **%s**: %s", n.Content[i].Value, inline(n.Content[i+1])))
		}
		return strings.Join(lines, "\n")
	}
	return ""
}

func allMappings(nodes []*yaml.Node) bool {
	for _, n := range nodes {
		if n.Kind != yaml.MappingNode {
			return false
		}
	}
	return true
}

// mappingTable renders a list of mappings with the union of their keys as columns,
// in first-seen order.
func mappingTable(rows []*yaml.Node) string {
	var keys []string
	seen := make(map[string]bool)
	for _, r := range rows {
		for i := 0; i+1 < len(r.Content); i += 2 {
			k := r.Content[i].Value
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}

	var b strings.Builder
	b.WriteString("| " + strings.Join(keys, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat("---|", len(keys)) + "\n")
	for _, r := range rows {
		vals := make(map[string]string)
		for i := 0; i+1 < len(r.Content); i += 2 {
			vals[r.Content[i].Value] = inline(r.Content[i+1])
		}
		cells := make([]string, len(keys))
		for i, k := range keys {
			cells[i] = cell(vals[k])
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func inline(n *yaml.Node) string {
	switch n.Kind {
	case yaml.AliasNode:
		return inline(n.Alias)
	case yaml.ScalarNode:
		return strings.TrimSpace(n.Value)
	case yaml.SequenceNode:
		parts := make([]string, len(n.Content))
		for i, c := range n.Content {
			parts[i] = inline(c)
		}
		return strings.Join(parts, ", ")
	case yaml.MappingNode:
		var parts []string
		for i := 0; i+1 < len(n.Content); i += 2 {
			parts = append(parts, n.Content[i].Value+": "+inline(n.Content[i+1]))
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// cell escapes a value for a Markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", "<br>")
}

func mark(b bool) string {
	if b {
		return "✓"
	}
	return ""
}
