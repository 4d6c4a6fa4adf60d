package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/reloquent/tabledoc/internal/config"
	"github.com/reloquent/tabledoc/internal/consistency"
	"github.com/reloquent/tabledoc/internal/logging"
	"github.com/reloquent/tabledoc/internal/relation"
	"github.com/reloquent/tabledoc/internal/schema"
	"github.com/reloquent/tabledoc/internal/typemap"
)

var (
	cfgFile  string
	logLevel string
	version  = "dev"
	commit   = "none"
	date     = "unknown"
)

// errChecksFailed makes the process exit 1 without printing a second error line.
var errChecksFailed = errors.New("consistency check found errors")

var rootCmd = &cobra.Command{
	Use:   "tabledoc",
	Short: "Table definition documentation toolkit",
	Long: `tabledoc keeps YAML table definitions, DDL files and Markdown documents in step.

It resolves related entities over foreign keys, generates Markdown, DDL, sample
INSERTs and ER diagrams from YAML, and checks the artifacts (or a live database)
against each other.`,
	SilenceUsage: true,
}

func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errChecksFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./tabledoc.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides logging.level")
}

// session is what every command needs: configuration, a logger and the type map.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	types    *typemap.TypeMap
	closeLog func() error
}

func newSession() (*session, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	logger, closeLog, err := logging.Setup(level, cfg.Logging.Directory)
	if err != nil {
		return nil, err
	}
	return &session{
		cfg:      cfg,
		logger:   logger,
		types:    typemap.Default().WithExtra(cfg.Types.Extra...),
		closeLog: closeLog,
	}, nil
}

func (s *session) Close() {
	if err := s.closeLog(); err != nil {
		fmt.Fprintf(os.Stderr, "closing log file: %v\n", err)
	}
}

// registry loads the YAML definitions. Files that fail to parse are logged and returned
// so the checker can report them.
func (s *session) registry() (*schema.Registry, []schema.LoadError, error) {
	reg, loadErrs, err := schema.LoadRegistry(s.cfg.Paths.YAMLDir, schema.LoadOptions{
		Types:     s.types,
		TableList: s.cfg.Paths.TableList,
		Logger:    s.logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("loading table definitions: %w", err)
	}
	for _, le := range loadErrs {
		s.logger.Warn("skipping table definition", "path", le.Path, "error", le.Err)
	}
	return reg, loadErrs, nil
}

func (s *session) relatedOptions() relation.Options {
	r := s.cfg.Relations
	return relation.Options{
		MaxDepth:   depthOption(r.Depth()),
		MaxRelated: r.Related(),
		Priority:   relation.PriorityFromConfig(r.PriorityPrefixes, r.ImportantTables),
	}
}

// depthOption maps a configured depth onto relation.Options, where zero means the default.
func depthOption(depth int) int {
	if depth == 0 {
		return -1
	}
	return depth
}

func (s *session) naming() consistency.Naming {
	n := consistency.DefaultNaming(s.cfg.Naming.ReservedWords...)
	if len(s.cfg.Naming.TablePrefixes) > 0 {
		n.TablePrefixes = s.cfg.Naming.TablePrefixes
	}
	if s.cfg.Naming.MaxTableNameLength > 0 {
		n.MaxTableLength = s.cfg.Naming.MaxTableNameLength
	}
	return n
}

// expandNames resolves glob arguments such as MST_* against the registry. Plain names
// are kept even when unknown so the checker can report them.
func expandNames(reg *schema.Registry, args []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, a := range args {
		matches := []string{a}
		if isGlob(a) {
			matches = reg.Filter(a)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

func isGlob(s string) bool {
	for _, r := range s {
		switch r {
		case '*', '?', '[':
			return true
		}
	}
	return false
}
