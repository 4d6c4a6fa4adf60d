package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reloquent/tabledoc/internal/docgen"
)

var generateOutput string

var generateCmd = &cobra.Command{
	Use:   "generate [tables...]",
	Short: "Generate Markdown, DDL and sample INSERTs from YAML definitions",
	Long: `Generate <output>/markdown/<T>.md (with a related-entity ER diagram),
<output>/ddl/<T>.sql and, for tables with sample_data, <output>/data/<T>_sample.sql.

Table arguments may be globs such as 'TRN_*'. With no arguments every defined table
is generated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()

		reg, _, err := s.registry()
		if err != nil {
			return err
		}

		out := s.cfg.Paths.OutputDir
		if generateOutput != "" {
			out = generateOutput
		}
		w := &docgen.Writer{
			OutputDir: out,
			Related:   s.relatedOptions(),
			Workers:   s.cfg.Generate.Workers,
			Logger:    s.logger,
		}

		outputs, err := w.Generate(cmd.Context(), reg, expandNames(reg, args))
		if err != nil {
			return fmt.Errorf("generating documents: %w", err)
		}

		var files int
		for _, o := range outputs {
			files += len(o.Files)
		}
		fmt.Printf("Generated %d files for %d tables in %s\n", files, len(outputs), out)

		failed := docgen.Failed(outputs)
		for _, o := range failed {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", o.Table, o.Err)
		}
		if len(failed) > 0 {
			return fmt.Errorf("%d of %d tables failed", len(failed), len(outputs))
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "output directory (default: paths.output_dir)")
	rootCmd.AddCommand(generateCmd)
}
