package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/openwtv/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing openwtv configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration",
	Long: `Dump the effective configuration in YAML format.

Defaults, the config file, OPENWTV_ environment variables and flags are all
applied. The server password is never printed. Redirect the output to a file
to create a configuration template:

  openwtv config dump > ~/.openwtv.yaml

Environment variables use the OPENWTV_ prefix and underscores for nesting.
Example: server.port -> OPENWTV_SERVER_PORT`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return dumpConfig(cmd.OutOrStdout(), appConfig)
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check a configuration file",
	Long: `Load a configuration file on its own, with defaults and OPENWTV_
environment variables applied but no command-line overrides, and report
whether it is valid. Without an argument the --config file is checked, or
the first .openwtv.yaml found in $HOME, the working directory and
/etc/openwtv.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if len(args) == 1 {
		path = args[0]
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration is valid.")
	if cfg.Server.Address != "" {
		fmt.Fprintf(out, "Server: %s:%d\n", cfg.Server.Address, cfg.Server.Port)
	}
	return nil
}

// dumpConfig writes cfg as YAML with a short header.
func dumpConfig(w io.Writer, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Fprintln(w, "# openwtv configuration")
	fmt.Fprintln(w, "#")
	fmt.Fprintln(w, "# Duration format: 500ms, 30s, 5m")
	fmt.Fprintln(w, "# The password is not shown; set it with --password,")
	fmt.Fprintln(w, "# OPENWTV_SERVER_PASSWORD or server.password in this file.")
	fmt.Fprintln(w, "")
	_, err = w.Write(data)
	return err
}
