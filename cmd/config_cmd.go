package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/reloquent/tabledoc/internal/config"
	"github.com/reloquent/tabledoc/internal/typemap"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View, validate and create the tabledoc configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective config (secrets masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		data, err := yaml.Marshal(cfg.Redacted())
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		fmt.Print(string(data))
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}

		problems := cfg.Validate()
		types := typemap.Default()
		for _, t := range cfg.Types.Extra {
			if _, err := types.WithExtra(t).Parse(t); err != nil {
				problems = append(problems, fmt.Sprintf("types.extra %q: %v", t, err))
			}
		}

		if len(problems) > 0 {
			fmt.Println("Validation errors:")
			for _, p := range problems {
				fmt.Printf("  - %s\n", p)
			}
			return fmt.Errorf("%d validation error(s)", len(problems))
		}

		fmt.Println("Configuration is valid.")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
