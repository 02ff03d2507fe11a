/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ssargent/devapps/pkg/api"
	"github.com/ssargent/devapps/pkg/logger"
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Long: `Start the devapps REST API server. Uploaded records are written as
container files to the data directory and can be loaded into the record
store. Flags override the config file.

Examples:
  devapps serve
  devapps serve --port=9000 --api-key=mysecretkey`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd)
			if cmd.Flags().Changed("port") {
				cfg.Port, _ = cmd.Flags().GetInt("port")
			}
			if cmd.Flags().Changed("bind") {
				cfg.Bind, _ = cmd.Flags().GetString("bind")
			}
			if cmd.Flags().Changed("api-key") {
				cfg.Security.APIKey, _ = cmd.Flags().GetString("api-key")
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir, _ = cmd.Flags().GetString("data-dir")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if cfg.Security.APIKey == "" {
				logger.Warn().Msg("no API key configured, authentication is disabled")
			}

			server := api.NewServer(store, api.ServerConfig{
				Port:          cfg.Port,
				Bind:          cfg.Bind,
				APIKey:        cfg.Security.APIKey,
				DataDir:       cfg.DataDir,
				StreamOptions: streamOptions(cfg, "api"),
			}, api.NewMetrics(), logger.New("api"))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cmd.Printf("Metrics available at: http://%s:%d/metrics\n", cfg.Bind, cfg.Port)
			return server.Run(ctx)
		},
	}

	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind to")
	serveCmd.Flags().String("api-key", "", "API key for authentication")
	serveCmd.Flags().String("data-dir", "", "Directory of container files")
	serveCmd.Flags().String("store-dir", "", "Record store directory")
	return serveCmd
}
