package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	CurrentVersion = 1
	DefaultPath    = "tabledoc.yaml"
)

// Config is the top-level configuration.
type Config struct {
	Version   int             `yaml:"version"`
	Paths     PathsConfig     `yaml:"paths"`
	Naming    NamingConfig    `yaml:"naming,omitempty"`
	Relations RelationsConfig `yaml:"relations,omitempty"`
	Check     CheckConfig     `yaml:"check,omitempty"`
	Generate  GenerateConfig  `yaml:"generate,omitempty"`
	Types     TypesConfig     `yaml:"types,omitempty"`
	Live      LiveConfig      `yaml:"live,omitempty"`
	Sink      SinkConfig      `yaml:"sink,omitempty"`
	Logging   LogConfig       `yaml:"logging,omitempty"`
}

// PathsConfig locates the artifact directories.
type PathsConfig struct {
	YAMLDir     string `yaml:"yaml_dir"`
	DDLDir      string `yaml:"ddl_dir"`
	MarkdownDir string `yaml:"markdown_dir"`
	TableList   string `yaml:"table_list,omitempty"`
	OutputDir   string `yaml:"output_dir"`
}

// NamingConfig overrides the naming-convention rules.
type NamingConfig struct {
	TablePrefixes      []string `yaml:"table_prefixes,omitempty"`
	MaxTableNameLength int      `yaml:"max_table_name_length,omitempty"` // default 63
	ReservedWords      []string `yaml:"reserved_words,omitempty"`        // added to the SQL keywords
}

// RelationsConfig bounds related-entity resolution.
type RelationsConfig struct {
	MaxDepth         *int     `yaml:"max_depth,omitempty"`   // default 2, at most 2; 0 keeps only the target
	MaxRelated       *int     `yaml:"max_related,omitempty"` // default 8, must be positive
	PriorityPrefixes []string `yaml:"priority_prefixes,omitempty"`
	ImportantTables  []string `yaml:"important_tables,omitempty"`
}

// Relation bounds used when the config leaves them unset.
const (
	DefaultMaxDepth   = 2
	DefaultMaxRelated = 8
)

// Depth returns max_depth, or the default when unset.
func (r RelationsConfig) Depth() int {
	if r.MaxDepth == nil {
		return DefaultMaxDepth
	}
	return *r.MaxDepth
}

// Related returns max_related, or the default when unset.
func (r RelationsConfig) Related() int {
	if r.MaxRelated == nil {
		return DefaultMaxRelated
	}
	return *r.MaxRelated
}

// check rejects explicit values that resolution would otherwise have to rewrite.
func (r RelationsConfig) check() error {
	if r.MaxDepth != nil && *r.MaxDepth < 0 {
		return fmt.Errorf("relations.max_depth must be between 0 and 2, got %d", *r.MaxDepth)
	}
	if r.MaxRelated != nil && *r.MaxRelated <= 0 {
		return fmt.Errorf("relations.max_related must be positive, got %d", *r.MaxRelated)
	}
	return nil
}

func intPtr(n int) *int { return &n }

// CheckConfig tunes the consistency checker.
type CheckConfig struct {
	Workers  int  `yaml:"workers,omitempty"` // default 4
	Markdown bool `yaml:"markdown"`          // check Markdown artifacts, default true
}

// GenerateConfig tunes the document writer.
type GenerateConfig struct {
	Workers int `yaml:"workers,omitempty"` // default 4
}

// TypesConfig extends the supported type set.
type TypesConfig struct {
	Extra []string `yaml:"extra,omitempty"`
}

// LiveConfig defines the live database used by check --live and discover.
type LiveConfig struct {
	Driver string `yaml:"driver,omitempty"` // postgres, mysql or oracle
	DSN    string `yaml:"dsn,omitempty"`
	Schema string `yaml:"schema,omitempty"`
}

// SinkConfig defines where check runs are published.
type SinkConfig struct {
	JSONPath   string `yaml:"json_path,omitempty"`
	MongoURI   string `yaml:"mongodb_uri,omitempty"`
	Database   string `yaml:"database,omitempty"`
	Collection string `yaml:"collection,omitempty"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level     string `yaml:"level,omitempty"`     // debug, info, warn, error
	Directory string `yaml:"directory,omitempty"` // empty logs to stderr only
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{Version: CurrentVersion, Check: CheckConfig{Markdown: true}}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the config file. An empty path reads DefaultPath and falls back to
// Default when that file does not exist; an explicit path must exist. A .env file in the
// working directory is loaded first so secret references can use it.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	path = ExpandHome(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{Check: CheckConfig{Markdown: true}}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentVersion)
	}

	if err := cfg.resolveSecrets(); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}
	if err := cfg.Relations.check(); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// Save writes the config to the given path.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

func (c *Config) applyDefaults() {
	if c.Paths.YAMLDir == "" {
		c.Paths.YAMLDir = "docs/yaml"
	}
	if c.Paths.DDLDir == "" {
		c.Paths.DDLDir = "docs/ddl"
	}
	if c.Paths.MarkdownDir == "" {
		c.Paths.MarkdownDir = "docs/markdown"
	}
	if c.Paths.OutputDir == "" {
		c.Paths.OutputDir = "docs"
	}
	if c.Naming.MaxTableNameLength == 0 {
		c.Naming.MaxTableNameLength = 63
	}
	if c.Relations.MaxDepth == nil || *c.Relations.MaxDepth > DefaultMaxDepth {
		c.Relations.MaxDepth = intPtr(DefaultMaxDepth)
	}
	if c.Relations.MaxRelated == nil {
		c.Relations.MaxRelated = intPtr(DefaultMaxRelated)
	}
	if c.Relations.PriorityPrefixes == nil {
		c.Relations.PriorityPrefixes = []string{"MST_", "TRN_"}
	}
	if c.Check.Workers == 0 {
		c.Check.Workers = 4
	}
	if c.Generate.Workers == 0 {
		c.Generate.Workers = 4
	}
	if c.Live.Driver == "" {
		c.Live.Driver = "postgres"
	}
	if c.Sink.Collection == "" {
		c.Sink.Collection = "consistency_runs"
	}
	if c.Sink.Database == "" {
		c.Sink.Database = "tabledoc"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// resolvePaths makes relative artifact paths relative to the config file's directory.
func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{&c.Paths.YAMLDir, &c.Paths.DDLDir, &c.Paths.MarkdownDir,
		&c.Paths.TableList, &c.Paths.OutputDir, &c.Sink.JSONPath, &c.Logging.Directory} {
		if *p == "" {
			continue
		}
		*p = ExpandHome(*p)
		if !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

// Validate reports configuration problems that Load does not reject.
func (c *Config) Validate() []string {
	var problems []string
	if err := c.Relations.check(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Naming.MaxTableNameLength < 0 {
		problems = append(problems, "naming.max_table_name_length must be positive")
	}
	if c.Check.Workers < 0 || c.Generate.Workers < 0 {
		problems = append(problems, "workers must be positive")
	}
	switch strings.ToLower(c.Live.Driver) {
	case "postgres", "postgresql", "pgx", "mysql", "mariadb", "oracle":
	default:
		problems = append(problems, fmt.Sprintf("live.driver %q is not supported (postgres, mysql, oracle)", c.Live.Driver))
	}
	for _, p := range c.Naming.TablePrefixes {
		if !strings.HasSuffix(p, "_") {
			problems = append(problems, fmt.Sprintf("naming.table_prefixes entry %q should end with '_'", p))
		}
	}
	for _, dir := range []struct{ key, path string }{
		{"paths.yaml_dir", c.Paths.YAMLDir},
		{"paths.ddl_dir", c.Paths.DDLDir},
	} {
		if info, err := os.Stat(dir.path); err != nil || !info.IsDir() {
			problems = append(problems, fmt.Sprintf("%s: directory not found: %s", dir.key, dir.path))
		}
	}
	if c.Paths.TableList != "" {
		if _, err := os.Stat(c.Paths.TableList); err != nil {
			problems = append(problems, fmt.Sprintf("paths.table_list: file not found: %s", c.Paths.TableList))
		}
	}
	return problems
}

var secretPattern = regexp.MustCompile(`\$\{(ENV|VAULT|AWS_SM):([^}]+)\}`)

func (c *Config) resolveSecrets() error {
	var err error
	c.Live.DSN, err = ResolveValue(c.Live.DSN)
	if err != nil {
		return fmt.Errorf("live dsn: %w", err)
	}
	c.Sink.MongoURI, err = ResolveValue(c.Sink.MongoURI)
	if err != nil {
		return fmt.Errorf("sink mongodb uri: %w", err)
	}
	return nil
}

// ResolveValue resolves secret references in a string value.
func ResolveValue(val string) (string, error) {
	matches := secretPattern.FindStringSubmatch(val)
	if matches == nil {
		return val, nil
	}

	provider := matches[1]
	ref := matches[2]

	switch provider {
	case "ENV":
		v := os.Getenv(ref)
		if v == "" {
			return "", fmt.Errorf("environment variable %s not set", ref)
		}
		return v, nil
	case "VAULT":
		return resolveVault(ref)
	case "AWS_SM":
		return resolveAWSSecretsManager(ref)
	default:
		return "", fmt.Errorf("unknown secrets provider: %s", provider)
	}
}

// Redacted returns a copy safe to print: secret-bearing values are masked.
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.Live.DSN != "" {
		cp.Live.DSN = "********"
	}
	if cp.Sink.MongoURI != "" {
		cp.Sink.MongoURI = "********"
	}
	return &cp
}

// ExpandHome expands ~ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
