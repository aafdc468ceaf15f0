package main

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/t77yq/coastal-alert/internal/config"
	"github.com/t77yq/coastal-alert/internal/observability"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "ctasd",
	Short: "Coastal threat alert service",
	Long: `ctasd watches weather and sea-state conditions at a coastal location,
assesses cyclone and storm-surge threat, and dispatches evacuation alerts
over email, SMS and push when the threat is HIGH.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cycleCmd)
	rootCmd.AddCommand(assessCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(directoryCmd)
}

// loadConfig reads the configuration and builds the logger. A missing file
// at the default path is not an error; defaults and environment apply.
func loadConfig() (*config.Config, *zap.Logger, error) {
	path := cfgFile
	if path == config.DefaultPath {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.LoadViper(viper.GetViper(), path)
	if err != nil {
		return nil, nil, err
	}

	logger, err := observability.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
