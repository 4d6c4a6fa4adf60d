package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tabledoc.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `version: 1
paths:
  yaml_dir: defs/yaml
  ddl_dir: /srv/ddl
relations:
  max_related: 5
  important_tables: [SYS_Setting]
check:
  workers: 2
live:
  driver: mysql
  dsn: "user:pass@tcp(db:3306)/shop"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := filepath.Dir(path)
	if cfg.Paths.YAMLDir != filepath.Join(base, "defs/yaml") {
		t.Errorf("yaml_dir should resolve against the config directory, got %s", cfg.Paths.YAMLDir)
	}
	if cfg.Paths.DDLDir != "/srv/ddl" {
		t.Errorf("absolute ddl_dir should be kept, got %s", cfg.Paths.DDLDir)
	}
	if cfg.Paths.MarkdownDir != filepath.Join(base, "docs/markdown") {
		t.Errorf("expected default markdown_dir, got %s", cfg.Paths.MarkdownDir)
	}
	if cfg.Relations.Depth() != 2 || cfg.Relations.Related() != 5 {
		t.Errorf("relations = %+v", cfg.Relations)
	}
	if len(cfg.Relations.PriorityPrefixes) != 2 {
		t.Errorf("expected default priority prefixes, got %v", cfg.Relations.PriorityPrefixes)
	}
	if cfg.Check.Workers != 2 || cfg.Generate.Workers != 4 {
		t.Errorf("workers = %d / %d", cfg.Check.Workers, cfg.Generate.Workers)
	}
	if !cfg.Check.Markdown {
		t.Error("markdown checks should default to on")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
	if cfg.Sink.Collection != "consistency_runs" {
		t.Errorf("expected default collection, got %s", cfg.Sink.Collection)
	}
}

func TestLoadInvalidVersion(t *testing.T) {
	path := writeConfig(t, "version: 99\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid version")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}

func TestLoadDefaultWhenAbsent(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Paths.YAMLDir != "docs/yaml" || cfg.Relations.Related() != 8 {
		t.Errorf("unexpected defaults: %+v", cfg.Paths)
	}
}

func TestLoadDotEnvSecret(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("TABLEDOC_TEST_DSN", "")
	os.Unsetenv("TABLEDOC_TEST_DSN")

	if err := os.WriteFile(".env", []byte("TABLEDOC_TEST_DSN=postgres://docs@localhost/catalog\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(DefaultPath, []byte("version: 1\nlive:\n  dsn: ${ENV:TABLEDOC_TEST_DSN}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Live.DSN != "postgres://docs@localhost/catalog" {
		t.Errorf("dsn = %q", cfg.Live.DSN)
	}
	if cfg.Redacted().Live.DSN != "********" {
		t.Error("Redacted should mask the dsn")
	}
	if cfg.Live.DSN == "********" {
		t.Error("Redacted must not modify the original")
	}
}

func TestResolveEnvSecret(t *testing.T) {
	t.Setenv("TEST_SECRET", "mysecret")
	val, err := ResolveValue("${ENV:TEST_SECRET}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "mysecret" {
		t.Errorf("expected mysecret, got %s", val)
	}
}

func TestResolveMissingEnvSecret(t *testing.T) {
	t.Setenv("TABLEDOC_UNSET", "")
	if _, err := ResolveValue("${ENV:TABLEDOC_UNSET}"); err == nil {
		t.Error("expected error for unset variable")
	}
}

func TestResolvePlainValue(t *testing.T) {
	val, err := ResolveValue("plaintext")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "plaintext" {
		t.Errorf("expected plaintext, got %s", val)
	}
}

func TestMaxDepthCapped(t *testing.T) {
	cfg, err := Load(writeConfig(t, "version: 1\nrelations:\n  max_depth: 5\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Relations.Depth() != 2 {
		t.Errorf("expected max_depth capped at 2, got %d", cfg.Relations.Depth())
	}
}

func TestMaxDepthZeroKept(t *testing.T) {
	cfg, err := Load(writeConfig(t, "version: 1\nrelations:\n  max_depth: 0\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Relations.Depth() != 0 {
		t.Errorf("expected max_depth 0 to be kept, got %d", cfg.Relations.Depth())
	}
}

func TestInvalidRelationBoundsRejected(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"zero max_related", "version: 1\nrelations:\n  max_related: 0\n", "relations.max_related must be positive"},
		{"negative max_related", "version: 1\nrelations:\n  max_related: -3\n", "relations.max_related must be positive"},
		{"negative max_depth", "version: 1\nrelations:\n  max_depth: -1\n", "relations.max_depth must be between 0 and 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	yamlDir := filepath.Join(dir, "yaml")
	if err := os.Mkdir(yamlDir, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := Default()
	cfg.Paths.YAMLDir = yamlDir
	cfg.Paths.DDLDir = filepath.Join(dir, "ddl")
	cfg.Live.Driver = "sqlite"
	cfg.Naming.TablePrefixes = []string{"MST_", "TRN"}

	problems := cfg.Validate()
	want := []string{"live.driver \"sqlite\"", "\"TRN\" should end with '_'", "paths.ddl_dir: directory not found"}
	if len(problems) != len(want) {
		t.Fatalf("expected %d problems, got %v", len(want), problems)
	}
	for i, w := range want {
		if !strings.Contains(problems[i], w) {
			t.Errorf("problem %d = %q, want it to contain %q", i, problems[i], w)
		}
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tabledoc.yaml")
	cfg := Default()
	cfg.Relations.ImportantTables = []string{"SYS_Setting"}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Relations.ImportantTables) != 1 || loaded.Relations.ImportantTables[0] != "SYS_Setting" {
		t.Errorf("important tables = %v", loaded.Relations.ImportantTables)
	}
}
