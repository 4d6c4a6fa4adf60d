package docgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/reloquent/tabledoc/internal/ddl"
	"github.com/reloquent/tabledoc/internal/diagram"
	"github.com/reloquent/tabledoc/internal/lock"
	"github.com/reloquent/tabledoc/internal/relation"
	"github.com/reloquent/tabledoc/internal/schema"
)

// Output subdirectories below the writer's root.
const (
	MarkdownDir = "markdown"
	DDLDir      = "ddl"
	DataDir     = "data"
)

// Writer generates the documentation set for registry tables.
type Writer struct {
	OutputDir string
	Related   relation.Options
	Workers   int
	Logger    *slog.Logger
}

// Output is the result of generating one table.
type Output struct {
	Table string
	Files []string
	Err   error
}

// Generate writes <out>/markdown/<T>.md, <out>/ddl/<T>.sql and, when the table has
// sample_data, <out>/data/<T>_sample.sql for every named table (all registry tables when
// names is empty). A table that fails is reported in its Output and does not stop the
// others. The returned error covers setup failures and cancellation only.
func (w *Writer) Generate(ctx context.Context, reg *schema.Registry, names []string) ([]Output, error) {
	logger := w.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if w.OutputDir == "" {
		return nil, errors.New("output directory is not configured")
	}
	for _, dir := range []string{MarkdownDir, DDLDir, DataDir} {
		if err := os.MkdirAll(filepath.Join(w.OutputDir, dir), 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}

	lockPath := lock.PathFor(w.OutputDir)
	if err := lock.Acquire(lockPath); err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(lockPath); err != nil {
			logger.Warn("releasing output lock", "path", lockPath, "error", err)
		}
	}()

	if len(names) == 0 {
		names = reg.Names()
	}
	graph := relation.NewGraph(reg)

	outputs := make([]Output, len(names))
	workers := w.Workers
	if workers <= 0 {
		workers = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range names {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			files, err := w.table(reg, graph, name)
			outputs[i] = Output{Table: name, Files: files, Err: err}
			if err != nil {
				logger.Warn("generation failed", "table", name, "error", err)
			} else {
				logger.Debug("generated table", "table", name, "files", len(files))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outputs, fmt.Errorf("generating documents: %w", err)
	}
	logger.Info("generation finished", "tables", len(names), "dir", w.OutputDir)
	return outputs, nil
}

// Document renders the Markdown document of one registry table, including its diagram.
func Document(reg *schema.Registry, graph *relation.Graph, name string, opts relation.Options) (string, error) {
	t, ok := reg.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", relation.ErrUnknownTable, name)
	}
	res, err := graph.Related(name, opts)
	if err != nil {
		return "", err
	}
	return Markdown(t, diagram.Markdown(reg, res))
}

// table writes the files of one table. Each table owns distinct file names, so workers
// never write the same path.
func (w *Writer) table(reg *schema.Registry, graph *relation.Graph, name string) ([]string, error) {
	t, ok := reg.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", relation.ErrUnknownTable, name)
	}

	doc, err := Document(reg, graph, name, w.Related)
	if err != nil {
		return nil, err
	}
	var files []string
	write := func(dir, file, content string) error {
		path := filepath.Join(w.OutputDir, dir, file)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		files = append(files, path)
		return nil
	}

	if err := write(MarkdownDir, name+".md", doc); err != nil {
		return files, err
	}
	if err := write(DDLDir, name+".sql", ddl.Generate(t)); err != nil {
		return files, err
	}

	inserts, err := ddl.GenerateInserts(t)
	if err != nil {
		return files, err
	}
	if inserts != "" {
		if err := write(DataDir, name+"_sample.sql", inserts); err != nil {
			return files, err
		}
	}
	return files, nil
}

// Failed returns the outputs that carry an error.
func Failed(outputs []Output) []Output {
	var out []Output
	for _, o := range outputs {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}
