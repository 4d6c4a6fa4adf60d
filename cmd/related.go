package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reloquent/tabledoc/internal/diagram"
	"github.com/reloquent/tabledoc/internal/relation"
	"github.com/reloquent/tabledoc/internal/schema"
)

var (
	relatedDepth   int
	relatedMax     int
	relatedMermaid bool
	relatedCycles  bool
)

var relatedCmd = &cobra.Command{
	Use:   "related <table>",
	Short: "Show the tables related to a table over foreign keys",
	Long: `Resolve the tables within two foreign-key hops of the target. Hop-2 tables are
capped at relations.max_related (or --max); tables matching the priority prefixes or
listed as important are kept first.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if relatedCycles {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if relatedDepth < 0 || relatedDepth > 2 {
			return fmt.Errorf("--depth must be between 0 and 2, got %d", relatedDepth)
		}
		if relatedMax <= 0 {
			return fmt.Errorf("--max must be positive, got %d", relatedMax)
		}

		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()

		reg, _, err := s.registry()
		if err != nil {
			return err
		}
		graph := relation.NewGraph(reg)

		if relatedCycles {
			cycles := graph.DetectCycles()
			if len(cycles) == 0 {
				fmt.Println("No foreign key cycles.")
				return nil
			}
			for _, c := range cycles {
				fmt.Println(strings.Join(append(c, c[0]), " -> "))
			}
			return nil
		}

		opts := s.relatedOptions()
		if cmd.Flags().Changed("depth") {
			opts.MaxDepth = depthOption(relatedDepth)
		}
		if cmd.Flags().Changed("max") {
			opts.MaxRelated = relatedMax
		}

		res, err := graph.Related(args[0], opts)
		if err != nil {
			return err
		}

		if relatedMermaid {
			fmt.Println(diagram.Render(reg, res))
			return nil
		}

		t, _ := reg.Get(res.Target)
		if t.LogicalName != "" {
			fmt.Printf("%s (%s)\n", t.Name, t.LogicalName)
		} else {
			fmt.Println(t.Name)
		}
		if res.Empty() {
			fmt.Println("  No related entities.")
			return nil
		}
		fmt.Printf("  hop 1: %s\n", joinOrDash(res.Depths[1]))
		fmt.Printf("  hop 2: %s\n", joinOrDash(res.Depths[2]))
		if res.Truncated > 0 {
			fmt.Printf("  (%d more hop-2 tables over the limit)\n", res.Truncated)
		}
		fmt.Println()
		fmt.Println("Relationships:")
		for _, e := range res.Edges {
			fmt.Printf("  %s.%s -> %s.%s  %s, on delete %s\n",
				e.ChildTable, strings.Join(e.ChildColumns, ","),
				e.ParentTable, strings.Join(e.ParentColumns, ","),
				relation.Classify(e.OnDelete), actionLabel(e.OnDelete))
		}
		return nil
	},
}

func joinOrDash(list []string) string {
	if len(list) == 0 {
		return "-"
	}
	return strings.Join(list, ", ")
}

func actionLabel(a schema.FKAction) string {
	if a == "" {
		return "RESTRICT"
	}
	return string(a)
}

func init() {
	relatedCmd.Flags().IntVar(&relatedDepth, "depth", 2, "hops to follow, 0-2; overrides relations.max_depth")
	relatedCmd.Flags().IntVar(&relatedMax, "max", 8, "maximum number of hop-2 tables, at least 1; overrides relations.max_related")
	relatedCmd.Flags().BoolVar(&relatedMermaid, "mermaid", false, "print a Mermaid erDiagram instead of the listing")
	relatedCmd.Flags().BoolVar(&relatedCycles, "cycles", false, "list foreign key cycles across all tables")
	rootCmd.AddCommand(relatedCmd)
}
