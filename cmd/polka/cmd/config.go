package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or initialize polka's configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the fully resolved configuration as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			lastExitCode = ExitError
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		if err := enc.Encode(cfg); err != nil {
			lastExitCode = ExitError
			return fmt.Errorf("encoding config: %w", err)
		}
		lastExitCode = ExitClean
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the resolved configuration to .polka/config.yaml",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			lastExitCode = ExitError
			return err
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			lastExitCode = ExitError
			return fmt.Errorf("encoding config: %w", err)
		}

		path := cfgFile
		if path == "" {
			path = filepath.Join(".polka", "config.yaml")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			lastExitCode = ExitError
			return fmt.Errorf("creating config directory: %w", err)
		}
		if err := renameio.WriteFile(path, data, 0o640); err != nil {
			lastExitCode = ExitError
			return fmt.Errorf("writing %s: %w", path, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		lastExitCode = ExitClean
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configInitCmd)
}
