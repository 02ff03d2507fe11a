/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/devapps/pkg/config"
	"github.com/ssargent/devapps/pkg/logger"
	"github.com/ssargent/devapps/pkg/stream"
)

type configKey struct{}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "devapps",
		Short: "devapps - framed DeviceApps containers",
		Long: `devapps writes, reads and loads gzip-compressed container files of
DeviceApps records. Each record is a protobuf payload behind an 8-byte
frame header.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := logger.Init(cfg.Logging); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default is "+config.GetDefaultConfigPath()+")")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("console-log", false, "Human readable log output")

	rootCmd.AddCommand(
		newWriteCmd(),
		newReadCmd(),
		newConvertCmd(),
		newLoadCmd(),
		newGetCmd(),
		newServeCmd(),
		newInitCmd(),
		newServiceCmd(),
	)
	return rootCmd
}

// Execute runs the root command.
// This is called by main.main(). It only needs to happen once.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

// loadConfig reads the config file named by --config, or the default file
// when it exists, and applies the global flag overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg := config.DefaultConfig()
	switch {
	case configPath != "":
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case config.ConfigExists(config.GetDefaultConfigPath()):
		loaded, err := config.LoadConfig(config.GetDefaultConfigPath())
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
		cfg.Logging.Debug = false
	}
	if console, _ := cmd.Flags().GetBool("console-log"); console {
		cfg.Logging.Console = true
	}
	return cfg, nil
}

// configFrom returns the config loaded by the root command
func configFrom(cmd *cobra.Command) *config.Config {
	if cfg, ok := cmd.Context().Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return config.DefaultConfig()
}

// streamOptions maps the config onto container options
func streamOptions(cfg *config.Config, component string) []stream.Option {
	return []stream.Option{
		stream.WithCompressionLevel(cfg.Stream.CompressionLevel),
		stream.WithBufferSize(cfg.Stream.BufferSize),
		stream.WithLogger(logger.New(component)),
	}
}
