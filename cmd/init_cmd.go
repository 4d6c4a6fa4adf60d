package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reloquent/tabledoc/internal/config"
)

var (
	initDefaults bool
	initForce    bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a tabledoc.yaml config file",
	Long: `Walk through prompts to create a tabledoc configuration file in the current
directory (or at --config). Use --defaults to skip the prompts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath := config.DefaultPath
		if cfgFile != "" {
			cfgPath = config.ExpandHome(cfgFile)
		}
		if _, err := os.Stat(cfgPath); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("checking %s: %w", cfgPath, err)
		}

		cfg := config.Default()
		if !initDefaults {
			reader := bufio.NewReader(os.Stdin)

			fmt.Println("tabledoc Configuration Setup")
			fmt.Println("============================")
			fmt.Println()

			fmt.Println("Artifacts")
			fmt.Println("---------")
			cfg.Paths.YAMLDir = prompt(reader, "YAML definitions directory", cfg.Paths.YAMLDir)
			cfg.Paths.DDLDir = prompt(reader, "DDL directory", cfg.Paths.DDLDir)
			cfg.Paths.MarkdownDir = prompt(reader, "Markdown directory", cfg.Paths.MarkdownDir)
			cfg.Paths.OutputDir = prompt(reader, "Generated output directory", cfg.Paths.OutputDir)
			fmt.Println()

			fmt.Println("Live database (optional)")
			fmt.Println("------------------------")
			cfg.Live.Driver = prompt(reader, "Driver (postgres/mysql/oracle)", cfg.Live.Driver)
			cfg.Live.DSN = prompt(reader, "DSN, or ${ENV:NAME} / ${VAULT:path#key} reference", "")
			fmt.Println()
		}

		if err := cfg.Save(cfgPath); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}

		fmt.Printf("Config written to %s\n", cfgPath)
		fmt.Println()
		fmt.Println("Next steps:")
		fmt.Println("  tabledoc config validate   — Check that the configured directories exist")
		fmt.Println("  tabledoc discover          — Write YAML definitions from the live database")
		fmt.Println("  tabledoc check             — Compare YAML, DDL and Markdown")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initDefaults, "defaults", false, "write the defaults without prompting")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(initCmd)
}

func prompt(reader *bufio.Reader, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("  %s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("  %s: ", label)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}
