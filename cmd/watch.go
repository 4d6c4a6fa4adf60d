package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/reloquent/tabledoc/internal/docgen"
	"github.com/reloquent/tabledoc/internal/report"
	"github.com/reloquent/tabledoc/internal/watch"
)

var (
	watchDebounce time.Duration
	watchGenerate bool
	watchPublish  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-check tables whenever their YAML, DDL or Markdown files change",
	Long: `Watch the YAML, DDL and Markdown directories. After a burst of changes settles,
the changed tables are checked again (and, with --generate, regenerated first).
Stop with Ctrl-C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		dirs := []string{s.cfg.Paths.YAMLDir, s.cfg.Paths.DDLDir}
		if s.cfg.Check.Markdown {
			dirs = append(dirs, s.cfg.Paths.MarkdownDir)
		}
		w, err := watch.New(watchDebounce, s.logger, dirs...)
		if err != nil {
			return err
		}

		// Initial full pass so the first report reflects the current state.
		if err := recheck(ctx, s, nil); err != nil {
			s.logger.Error("initial check", "error", err)
		}
		fmt.Fprintf(os.Stderr, "Watching %d directories, press Ctrl-C to stop\n", len(w.Dirs()))

		return w.Run(ctx, func(ctx context.Context, paths []string) error {
			tables := watch.Tables(paths)
			s.logger.Info("artifacts changed", "files", len(paths), "tables", tables)
			return recheck(ctx, s, tables)
		})
	},
}

// recheck reloads the registry and checks the given tables, or all tables when nil.
func recheck(ctx context.Context, s *session, tables []string) error {
	reg, loadErrs, err := s.registry()
	if err != nil {
		return err
	}

	if watchGenerate {
		var names []string
		for _, t := range tables {
			if reg.Has(t) {
				names = append(names, t)
			}
		}
		if tables == nil || len(names) > 0 {
			w := &docgen.Writer{
				OutputDir: s.cfg.Paths.OutputDir,
				Related:   s.relatedOptions(),
				Workers:   s.cfg.Generate.Workers,
				Logger:    s.logger,
			}
			outputs, err := w.Generate(ctx, reg, names)
			if err != nil {
				return fmt.Errorf("generating documents: %w", err)
			}
			for _, o := range docgen.Failed(outputs) {
				s.logger.Warn("generation failed", "table", o.Table, "error", o.Err)
			}
		}
	}

	res, err := runCheck(ctx, s, reg, loadErrs, tables, false)
	if err != nil {
		return err
	}
	if err := report.Render(os.Stdout, res, report.FormatText, isTerminal(os.Stdout)); err != nil {
		return err
	}
	if watchPublish {
		return publish(ctx, s, res)
	}
	return nil
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "quiet period before re-checking")
	watchCmd.Flags().BoolVar(&watchGenerate, "generate", false, "regenerate changed tables before checking")
	watchCmd.Flags().BoolVar(&watchPublish, "publish", false, "publish every run to the configured sink")
	rootCmd.AddCommand(watchCmd)
}
