package cmd

import (
	"github.com/spf13/cobra"

	"github.com/reloquent/tabledoc/internal/consistency"
	"github.com/reloquent/tabledoc/internal/explorer"
)

var (
	exploreCheck bool
	exploreLive  bool
)

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Browse tables, related entities and findings interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()

		reg, loadErrs, err := s.registry()
		if err != nil {
			return err
		}

		var findings *consistency.Result
		if exploreCheck {
			findings, err = runCheck(cmd.Context(), s, reg, loadErrs, nil, exploreLive)
			if err != nil {
				return err
			}
		}
		return explorer.Run(explorer.New(reg, s.relatedOptions(), findings))
	},
}

func init() {
	exploreCmd.Flags().BoolVar(&exploreCheck, "check", false, "run the consistency check first and show findings per table")
	exploreCmd.Flags().BoolVar(&exploreLive, "live", false, "with --check, compare against the live database")
	rootCmd.AddCommand(exploreCmd)
}
