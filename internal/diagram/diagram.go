// Package diagram renders related-entity results as Mermaid erDiagram blocks.
package diagram

import (
	"fmt"
	"strings"

	"github.com/reloquent/tabledoc/internal/relation"
	"github.com/reloquent/tabledoc/internal/schema"
)

// NoRelated is rendered instead of a diagram when the target has no related tables.
const NoRelated = "_No related entities._"

// Render returns the erDiagram source for the result. The target entity lists all columns;
// related entities list only their key columns. Members missing from the registry are skipped.
func Render(reg *schema.Registry, res *relation.Result) string {
	if res == nil || res.Empty() {
		return NoRelated
	}

	var b strings.Builder
	b.WriteString("erDiagram\n")
	for _, name := range res.Members() {
		t, ok := reg.Get(name)
		if !ok {
			continue
		}
		writeEntity(&b, t, name == res.Target)
	}
	for _, e := range res.Edges {
		fmt.Fprintf(&b, "    %s %s %s : %q\n",
			entityName(e.ParentTable), relation.Cardinality(e), entityName(e.ChildTable),
			string(relation.Classify(e.OnDelete)))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Markdown wraps Render in a fenced mermaid code block. An empty result yields the plain
// NoRelated line.
func Markdown(reg *schema.Registry, res *relation.Result) string {
	out := Render(reg, res)
	if out == NoRelated {
		return out
	}
	return "```mermaid\n" + out + "\n```"
}

func writeEntity(b *strings.Builder, t *schema.Table, full bool) {
	if t.LogicalName != "" && t.LogicalName != t.Name {
		fmt.Fprintf(b, "    %%%% %s: %s\n", t.Name, t.LogicalName)
	}
	var attrs []string
	for _, c := range t.Columns {
		fk := t.IsForeignKeyColumn(c.Name)
		if !full && !c.PrimaryKey && !fk {
			continue
		}
		attrs = append(attrs, attribute(c, fk))
	}
	if len(attrs) == 0 {
		fmt.Fprintf(b, "    %s {\n    }\n", entityName(t.Name))
		return
	}
	fmt.Fprintf(b, "    %s {\n", entityName(t.Name))
	for _, a := range attrs {
		fmt.Fprintf(b, "        %s\n", a)
	}
	b.WriteString("    }\n")
}

func attribute(c schema.Column, fk bool) string {
	line := attrType(c.FullType()) + " " + c.Name
	var keys []string
	if c.PrimaryKey {
		keys = append(keys, "PK")
	}
	if fk {
		keys = append(keys, "FK")
	}
	if c.Unique && !c.PrimaryKey {
		keys = append(keys, "UK")
	}
	if len(keys) > 0 {
		line += " " + strings.Join(keys, ", ")
	}
	if label := firstNonEmpty(c.LogicalName, c.Comment); label != "" {
		line += " " + fmt.Sprintf("%q", strings.ReplaceAll(label, `"`, "'"))
	}
	return line
}

// attrType makes a column type acceptable as a Mermaid attribute type token.
func attrType(t string) string {
	t = strings.ReplaceAll(t, " ", "_")
	return strings.ReplaceAll(t, ",", "_")
}

func entityName(name string) string {
	for _, r := range name {
		if !(r == '_' || r == '-' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return fmt.Sprintf("%q", name)
		}
	}
	return name
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
