package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reloquent/tabledoc/internal/sink"
)

var historyRuns int

var historyCmd = &cobra.Command{
	Use:   "history <table>",
	Short: "Show a table's findings across published check runs (MongoDB sink)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()

		if s.cfg.Sink.MongoURI == "" {
			return fmt.Errorf("history needs sink.mongodb_uri")
		}
		ctx := cmd.Context()
		m, err := sink.NewMongo(ctx, s.cfg.Sink.MongoURI, s.cfg.Sink.Database, s.cfg.Sink.Collection)
		if err != nil {
			return err
		}
		defer m.Close(ctx)

		runs, err := m.TableHistory(ctx, args[0], historyRuns)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Printf("No recorded findings for %s.\n", args[0])
			return nil
		}
		for _, r := range runs {
			fmt.Printf("%s  run %s\n", r.StartedAt.Format("2006-01-02 15:04:05"), shortID(r.RunID))
			for _, f := range r.Findings {
				fmt.Printf("  %-7s [%s] %s\n", f.Severity, f.Category, f.Message)
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyRuns, "runs", "n", 10, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}
