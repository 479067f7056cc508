package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"promptassist/internal/config"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create and inspect the configuration file",
	}
	cmd.AddCommand(a.configInitCmd(), a.configShowCmd(), a.configPathCmd())
	return cmd
}

func (a *app) configInitCmd() *cobra.Command {
	var (
		force      bool
		legacyPath string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write a default configuration file.

Settings from an older settings.json (excluded applications and the
clear-clipboard option) are imported when the file is found in the data
directory or named with --import.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.resolveConfigPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg := config.DefaultConfig()
			out := cmd.OutOrStdout()

			if legacyPath == "" {
				legacyPath = filepath.Join(config.AppDir(), config.LegacyFileName)
			}
			changes, err := config.ImportLegacySettings(cfg, legacyPath)
			if err != nil {
				return err
			}
			for _, c := range changes {
				fmt.Fprintf(out, "Imported %s\n", c)
			}

			if err := config.Fatal(cfg.Validate()); err != nil {
				return err
			}
			if err := config.SaveConfig(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	cmd.Flags().StringVar(&legacyPath, "import", "", "legacy settings.json to import")
	return cmd
}

func (a *app) configShowCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			cfg = cfg.Redacted()
			out := cmd.OutOrStdout()

			switch format {
			case "toml":
				return toml.NewEncoder(out).Encode(cfg)
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			case "yaml", "yml":
				enc := yaml.NewEncoder(out)
				defer enc.Close()
				return enc.Encode(cfg)
			default:
				return fmt.Errorf("unknown format %q (valid: toml, json, yaml)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "toml", "output format: toml, json or yaml")
	return cmd
}

func (a *app) configPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), a.resolveConfigPath())
		},
	}
}
