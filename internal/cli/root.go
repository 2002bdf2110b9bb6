// Package cli implements the snattach command tree.
package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aberwag/snattach/internal/config"
	"github.com/aberwag/snattach/internal/servicenow"
)

// connectionEnvVar carries an automation connection as JSON, the way
// orchestration platforms hand credential bundles to child processes.
const connectionEnvVar = "SNATTACH_CONNECTION"

var (
	cfgFile  string
	flagHost string
	flagUser string
	flagPass string
)

var rootCmd = &cobra.Command{
	Use:           "snattach",
	Short:         "Upload file attachments to ServiceNow records",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree. Errors are logged here so main stays thin.
func Execute() error {
	// A local .env makes development against a dev instance painless.
	// Missing files are fine.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagHost, "host", "", "ServiceNow instance host, e.g. dev12345.service-now.com")
	rootCmd.PersistentFlags().StringVar(&flagUser, "username", "", "basic auth username")
	rootCmd.PersistentFlags().StringVar(&flagPass, "password", "", "basic auth password")
}

// loadConfig reads the --config file when given, otherwise returns defaults.
// Flag values override file values.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if flagHost != "" {
		cfg.ServiceNow.Host = flagHost
	}
	if flagUser != "" {
		cfg.ServiceNow.Username = flagUser
	}
	if flagPass != "" {
		cfg.ServiceNow.Password = flagPass
	}
	return cfg, nil
}

// newLogger builds the process logger at the level configured in cfg.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// connectionConfig assembles the three-way credential source from the
// environment, the effective config, and stored auth state.
func connectionConfig(cfg *config.Config) (servicenow.ConnectionConfig, error) {
	ccfg := servicenow.ConnectionConfig{}

	if raw := os.Getenv(connectionEnvVar); raw != "" {
		var automation servicenow.AutomationConnection
		if err := json.Unmarshal([]byte(raw), &automation); err != nil {
			return ccfg, fmt.Errorf("parsing %s: %w", connectionEnvVar, err)
		}
		ccfg.Automation = automation
	}

	if cfg.ServiceNow.Username != "" {
		ccfg.Credential = &servicenow.Credential{
			Username: cfg.ServiceNow.Username,
			Password: cfg.ServiceNow.Password,
		}
	}
	ccfg.Host = cfg.ServiceNow.Host

	snapshot := servicenow.DefaultAuthState.Snapshot()
	ccfg.AuthState = &snapshot

	return ccfg, nil
}
