// Ship-Captain-Crew dice game server and client.
//
// The server accepts TCP connections speaking the binary SCC protocol and
// runs either solo sessions against a built-in opponent or two-player
// sessions. Hands are recorded to a local history database, exposed over a
// read-only REST API and published as MQTT telemetry.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/scc-project/scc/internal/config"
	"github.com/scc-project/scc/internal/util"
)

const (
	AppName    = "scc"
	AppVersion = "1.0.0"
	Banner     = `
  ____   ____ ____
 / ___| / ___/ ___|
 \___ \| |  | |
  ___) | |__| |___
 |____/ \____\____|  v%s
 Ship, Captain and Crew
`
)

var configDir string

var rootCmd = &cobra.Command{
	Use:           AppName,
	Short:         "Ship-Captain-Crew dice game server and client",
	Version:       AppVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", config.DefaultConfigDir, "configuration directory")

	rootCmd.AddCommand(
		newServerCmd(),
		newClientCmd(),
		newHistoryCmd(),
		newLeaderboardCmd(),
		newSetupCmd(),
	)
}

// loadConfig loads the configuration, applies command-line overrides,
// reconfigures the logger and validates the result.
func loadConfig(overrides ...func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	for _, override := range overrides {
		override(cfg)
	}

	logCfg := util.LogConfig{
		Level:      cfg.Logging.Level,
		Directory:  cfg.Logging.Directory,
		MaxBackups: cfg.Logging.MaxBackups,
		Console:    true,
	}
	if err := util.InitLogger(logCfg); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		return nil, fmt.Errorf("configuration validation failed, run '%s setup' or fix the errors above", AppName)
	}
	return cfg, nil
}

func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactively edit the server configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configDir)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return config.RunSetupWizard(cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func main() {
	// Defaults until a command loads its configuration.
	if err := util.InitLogger(util.LogConfig{Level: "info", Console: true}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
