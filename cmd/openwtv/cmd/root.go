// Package cmd implements the CLI commands for openwtv.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jmylchreest/openwtv/internal/config"
	"github.com/jmylchreest/openwtv/internal/observability"
	"github.com/jmylchreest/openwtv/internal/version"
	"github.com/jmylchreest/openwtv/pkg/extend"
)

// cfgFile holds the config file path from CLI flag.
var cfgFile string

// runtime state prepared by PersistentPreRunE.
var (
	appConfig *config.Config
	appLogger *slog.Logger
	closeLog  = func() error { return nil }

	// configErr is a config file error from initConfig, reported by setup.
	configErr error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "openwtv",
	Short:   "Client for Extend media servers",
	Version: version.Short(),
	Long: `openwtv talks to an Extend media server: it logs in, lists channels,
asks the server to transcode a channel and prints the playback URL once the
stream is ready.

The server is selected with --address and --port (default 7799), the
OPENWTV_SERVER_* environment variables or the server section of the config
file. The password is never written to disk by openwtv.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	// PersistentPreRunE is set in init() to avoid initialization cycle
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	defer func() { _ = closeLog() }()

	if err := rootCmd.Execute(); err != nil {
		if appLogger != nil {
			observability.WithError(appLogger, err).Debug("command failed")
		}
		if !reported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return setup(cmd)
	}

	// log-level and log-format are not bound to viper; they only override
	// env/config values when explicitly set.
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.openwtv.yaml)")
	flags.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.String("address", "", "Extend server address (host name or IP)")
	flags.Int("port", extend.DefaultPort, "Extend server port")
	flags.String("password", "", "Extend server password")

	mustBindPFlag("server.address", flags.Lookup("address"))
	mustBindPFlag("server.port", flags.Lookup("port"))
	mustBindPFlag("server.password", flags.Lookup("password"))
}

// initConfig reads in config file and ENV variables if set.
// A config file passed with --config must exist and parse; a missing file
// in the default search paths is ignored.
func initConfig() {
	v := viper.GetViper()
	config.Prepare(v, cfgFile)

	used, err := config.ReadFile(v)
	configErr = err
	if used != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", used)
	}
}

// setup decodes the configuration and installs the redacting logger.
//
// Logging priority (highest to lowest):
//  1. CLI flags (--log-level, --log-format), only if explicitly provided
//  2. Environment variables (OPENWTV_LOGGING_LEVEL, OPENWTV_LOGGING_FORMAT)
//  3. Config file values
//  4. Built-in defaults (info, text)
func setup(cmd *cobra.Command) error {
	if configErr != nil {
		return configErr
	}

	flags := rootCmd.PersistentFlags()
	if flags.Changed("log-level") {
		level, _ := flags.GetString("log-level")
		if strings.EqualFold(level, "warning") {
			level = "warn"
		}
		viper.Set("logging.level", strings.ToLower(level))
	}
	if flags.Changed("log-format") {
		format, _ := flags.GetString("log-format")
		viper.Set("logging.format", strings.ToLower(format))
	}

	cfg, err := config.Decode(viper.GetViper())
	if err != nil {
		return err
	}

	logger, closer, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}

	logger = observability.WithCorrelationID(logger, uuid.NewString())
	observability.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = observability.ContextWithLogger(ctx, logger)
	cmd.SetContext(ctx)

	appConfig = cfg
	appLogger = logger
	closeLog = closer

	logger.Debug("configuration loaded",
		slog.String("command", cmd.CommandPath()),
		slog.Any("server", cfg.Server))
	return nil
}

// commandLogger returns the logger stored in the command context by setup,
// tagged with the command name.
func commandLogger(cmd *cobra.Command) *slog.Logger {
	return observability.WithOperation(observability.LoggerFromContext(cmd.Context()), cmd.Name())
}

// mustBindPFlag binds a viper key to a cobra flag and panics if binding fails.
func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q to key %q: %v", flag.Name, key, err))
	}
}
