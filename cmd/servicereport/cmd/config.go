package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/servicereport/internal/config"
	srerrors "github.com/Aman-CERP/servicereport/internal/errors"
)

func newConfigCmd(o *options, d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
		Long: `Manage the servicereport configuration file.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. Config file (/etc/servicereport/config.yaml)
  3. Environment file (/etc/default/servicereport)
  4. Environment variables (SERVICEREPORT_*)
  5. Command line flags`,
		Example: `  # Write a config file with the defaults
  servicereport config init

  # Show the effective configuration
  servicereport config show --json`,
	}

	cmd.AddCommand(newConfigInitCmd(o))
	cmd.AddCommand(newConfigShowCmd(o, d))
	cmd.AddCommand(newConfigPathCmd(o))

	return cmd
}

func configPath(o *options) string {
	if o.configPath != "" {
		return o.configPath
	}
	return config.DefaultPath
}

func newConfigInitCmd(o *options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the configuration file",
		Long: `Write the default configuration to the config file. An existing file
is kept unless --force is given; overwritten files are backed up first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configPath(o)
			if _, err := os.Stat(path); err == nil && !force {
				return srerrors.New(srerrors.ErrCodeConfigWrite, "configuration file already exists", nil).
					WithDetail("path", path).
					WithSuggestion("use --force to overwrite it")
			}
			if err := config.NewConfig().WriteYAML(path); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func newConfigShowCmd(o *options, d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(o, d)
			if err != nil {
				return err
			}
			if o.jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer func() { _ = enc.Close() }()
			return enc.Encode(cfg)
		},
	}
}

func newConfigPathCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), configPath(o))
			return err
		},
	}
}
