package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reloquent/tabledoc/internal/consistency"
	"github.com/reloquent/tabledoc/internal/lock"
)

var statusRuns int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize the table definitions and recent check runs",
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
		fmt.Println(reg.Summary())
		if len(loadErrs) > 0 {
			fmt.Printf("Unreadable definitions: %d\n", len(loadErrs))
			for _, le := range loadErrs {
				fmt.Printf("  %v\n", le)
			}
		}

		held, pid, err := lock.IsHeld(lock.PathFor(s.cfg.Paths.OutputDir))
		switch {
		case err != nil:
			fmt.Printf("Generation: unknown (%v)\n", err)
		case held:
			fmt.Printf("Generation: in progress (pid %d)\n", pid)
		default:
			fmt.Println("Generation: idle")
		}

		if s.cfg.Sink.JSONPath == "" && s.cfg.Sink.MongoURI == "" {
			return nil
		}
		pub, err := openPublisher(cmd.Context(), s)
		if err != nil {
			return err
		}
		defer pub.Close(cmd.Context())

		runs, err := pub.Recent(cmd.Context(), statusRuns)
		if err != nil {
			return fmt.Errorf("reading check history: %w", err)
		}
		fmt.Println()
		if len(runs) == 0 {
			fmt.Println("No published check runs.")
			return nil
		}
		fmt.Println("Recent check runs:")
		for _, r := range runs {
			counts := r.Counts()
			status := "PASS"
			if !r.IsValid() {
				status = "FAIL"
			}
			fmt.Printf("  %s  %s  %-4s  %d tables, %d errors, %d warnings\n",
				r.StartedAt.Format("2006-01-02 15:04:05"), shortID(r.RunID), status, len(r.Tables),
				counts[consistency.SeverityError], counts[consistency.SeverityWarning])
		}
		return nil
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	statusCmd.Flags().IntVarP(&statusRuns, "runs", "n", 5, "number of recent check runs to list")
	rootCmd.AddCommand(statusCmd)
}
