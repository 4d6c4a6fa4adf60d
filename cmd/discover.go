package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/reloquent/tabledoc/internal/schema"
)

var (
	discoverOutput    string
	discoverOverwrite bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover [tables...]",
	Short: "Write YAML definitions for tables in the live database",
	Long: `Connect to the configured live database and write one YAML definition per table
(columns, primary key, indexes and foreign keys). Existing files are kept unless
--overwrite is given, so logical names and notes added by hand are not lost.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		in, err := openLive(ctx, s)
		if err != nil {
			return err
		}
		defer in.Close()

		fmt.Printf("Discovering schema %s...\n", in.Schema())
		var tables []*schema.Table
		if len(args) == 0 {
			tables, err = in.Discover(ctx)
			if err != nil {
				return fmt.Errorf("discovering schema: %w", err)
			}
		} else {
			for _, name := range args {
				t, err := in.Table(ctx, name)
				if err != nil {
					return err
				}
				tables = append(tables, t)
			}
		}

		outDir := s.cfg.Paths.YAMLDir
		if discoverOutput != "" {
			outDir = discoverOutput
		}

		var written, skipped int
		for _, t := range tables {
			path := filepath.Join(outDir, t.Name+".yaml")
			if _, err := os.Stat(path); err == nil && !discoverOverwrite {
				s.logger.Debug("keeping existing definition", "path", path)
				skipped++
				continue
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("checking %s: %w", path, err)
			}
			if err := t.WriteYAML(path); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			written++
		}

		fmt.Println(schema.NewRegistry(tables...).Summary())
		fmt.Printf("\nWrote %d definitions to %s", written, outDir)
		if skipped > 0 {
			fmt.Printf(" (%d existing kept)", skipped)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	discoverCmd.Flags().StringVarP(&discoverOutput, "output", "o", "", "output directory (default: paths.yaml_dir)")
	discoverCmd.Flags().BoolVar(&discoverOverwrite, "overwrite", false, "replace existing YAML definitions")
	rootCmd.AddCommand(discoverCmd)
}
