package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reloquent/tabledoc/internal/consistency"
	"github.com/reloquent/tabledoc/internal/introspect"
	"github.com/reloquent/tabledoc/internal/report"
	"github.com/reloquent/tabledoc/internal/schema"
	"github.com/reloquent/tabledoc/internal/sink"
)

var (
	checkLive    bool
	checkFormat  string
	checkOutput  string
	checkPublish bool
)

var checkCmd = &cobra.Command{
	Use:   "check [tables...]",
	Short: "Check YAML definitions against DDL files and Markdown documents",
	Long: `Compare each table's YAML definition with its DDL file (or, with --live, the table
in the configured database), check naming conventions and Markdown coverage, and report
artifacts that exist for only some tables.

Table arguments may be globs such as 'MST_*'. With no arguments every known table is
checked. The command exits 1 when any ERROR finding is reported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := report.ParseFormat(checkFormat)
		if err != nil {
			return err
		}

		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		reg, loadErrs, err := s.registry()
		if err != nil {
			return err
		}

		res, err := runCheck(ctx, s, reg, loadErrs, expandNames(reg, args), checkLive)
		if err != nil {
			return err
		}

		if err := report.Render(os.Stdout, res, format, isTerminal(os.Stdout)); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		if checkOutput != "" {
			if err := report.WriteFile(checkOutput, res, format); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Report written to %s\n", checkOutput)
		}

		if checkPublish {
			if err := publish(ctx, s, res); err != nil {
				return err
			}
		}

		if !res.IsValid() {
			return errChecksFailed
		}
		return nil
	},
}

// runCheck runs the checker with the DDL directory, or the live database when live is set.
func runCheck(ctx context.Context, s *session, reg *schema.Registry, loadErrs []schema.LoadError, names []string, live bool) (*consistency.Result, error) {
	checker := &consistency.Checker{
		Registry:   reg,
		LoadErrors: loadErrs,
		Naming:     s.naming(),
		Types:      s.types,
		Workers:    s.cfg.Check.Workers,
		Logger:     s.logger,
	}
	if s.cfg.Check.Markdown {
		checker.MarkdownDir = s.cfg.Paths.MarkdownDir
	}

	if live {
		in, err := openLive(ctx, s)
		if err != nil {
			return nil, err
		}
		defer in.Close()
		checker.Source = &consistency.LiveSource{Catalog: in}
	} else {
		checker.Source = &consistency.DDLDir{Dir: s.cfg.Paths.DDLDir, Types: s.types}
	}

	return checker.Check(ctx, names)
}

func openLive(ctx context.Context, s *session) (*introspect.Introspector, error) {
	if s.cfg.Live.DSN == "" {
		return nil, fmt.Errorf("live.dsn is not configured")
	}
	in, err := introspect.Open(ctx, s.cfg.Live.Driver, s.cfg.Live.DSN, introspect.Options{
		Schema: s.cfg.Live.Schema,
		Types:  s.types,
		Logger: s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", s.cfg.Live.Driver, err)
	}
	return in, nil
}

// openPublisher builds the configured sinks: the JSON history file, MongoDB, or both.
func openPublisher(ctx context.Context, s *session) (sink.Publisher, error) {
	var pubs sink.Multi
	if s.cfg.Sink.JSONPath != "" {
		pubs = append(pubs, &sink.JSONFile{Path: s.cfg.Sink.JSONPath})
	}
	if s.cfg.Sink.MongoURI != "" {
		m, err := sink.NewMongo(ctx, s.cfg.Sink.MongoURI, s.cfg.Sink.Database, s.cfg.Sink.Collection)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, m)
	}
	if len(pubs) == 0 {
		return nil, fmt.Errorf("no sink configured (set sink.json_path or sink.mongodb_uri)")
	}
	return pubs, nil
}

func publish(ctx context.Context, s *session, res *consistency.Result) error {
	pub, err := openPublisher(ctx, s)
	if err != nil {
		return err
	}
	defer pub.Close(context.Background())
	if err := pub.Publish(ctx, res); err != nil {
		return fmt.Errorf("publishing run %s: %w", res.RunID, err)
	}
	s.logger.Info("published check run", "run_id", res.RunID)
	return nil
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func init() {
	checkCmd.Flags().BoolVar(&checkLive, "live", false, "compare against the configured live database instead of DDL files")
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "text", "report format (text, markdown, json)")
	checkCmd.Flags().StringVarP(&checkOutput, "output", "o", "", "also write the report to this file")
	checkCmd.Flags().BoolVar(&checkPublish, "publish", false, "publish the run to the configured sink")
	rootCmd.AddCommand(checkCmd)
}
