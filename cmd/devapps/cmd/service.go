/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ssargent/devapps/pkg/config"
)

const serviceName = "devapps.service"

// serviceEnv holds the system touch points of the service commands so
// tests can replace them
type serviceEnv struct {
	unitPath string
	binary   string
	isRoot   func() bool
	run      func(cmd *cobra.Command, name string, args ...string) error
}

func defaultServiceEnv() *serviceEnv {
	return &serviceEnv{
		unitPath: "/etc/systemd/system/" + serviceName,
		binary:   "/usr/local/bin/devapps",
		isRoot:   func() bool { return os.Geteuid() == 0 },
		run:      runCommand,
	}
}

func newServiceCmd() *cobra.Command {
	return newServiceCmdWith(defaultServiceEnv())
}

func newServiceCmdWith(env *serviceEnv) *cobra.Command {
	serviceCmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the devapps API server as a systemd service",
	}

	serviceCmd.AddCommand(
		newServiceInstallCmd(env),
		newServiceUninstallCmd(env),
		newSystemctlCmd(env, "start", "Start the devapps service"),
		newSystemctlCmd(env, "stop", "Stop the devapps service"),
		newSystemctlCmd(env, "restart", "Restart the devapps service"),
		newSystemctlCmd(env, "status", "Show devapps service status"),
		newServiceLogsCmd(env),
	)
	return serviceCmd
}

func newServiceInstallCmd(env *serviceEnv) *cobra.Command {
	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Install devapps serve as a systemd service",
		Long: `Install the devapps API server as a systemd service.

This will:
- Create or use the existing configuration
- Generate the systemd unit file
- Enable and optionally start the service

Examples:
  devapps service install
  devapps service install --data-dir /var/lib/devapps --user devapps`,
		Args:              cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			user, _ := cmd.Flags().GetString("user")
			startNow, _ := cmd.Flags().GetBool("start")

			if !env.isRoot() {
				return fmt.Errorf("service install requires root privileges, run with: sudo devapps service install")
			}
			if configPath == "" {
				configPath = config.GetDefaultConfigPath()
			}

			var cfg *config.Config
			var err error
			if config.ConfigExists(configPath) {
				cfg, err = config.LoadConfig(configPath)
				if err != nil {
					return err
				}
				cmd.Printf("Loaded existing configuration\n")
			} else {
				cfg, err = config.BootstrapConfig(configPath, dataDir)
				if err != nil {
					return fmt.Errorf("error bootstrapping config: %w", err)
				}
				cmd.Printf("Created new configuration at %s\n", configPath)
			}

			if cmd.Flags().Changed("port") {
				cfg.Port, _ = cmd.Flags().GetInt("port")
				if err := config.SaveConfig(cfg, configPath); err != nil {
					return fmt.Errorf("error saving config: %w", err)
				}
			}

			unit := renderUnit(cfg, configPath, user, env.binary)
			if err := os.WriteFile(env.unitPath, []byte(unit), 0600); err != nil {
				return fmt.Errorf("error creating systemd unit: %w", err)
			}

			if err := env.run(cmd, "systemctl", "daemon-reload"); err != nil {
				return fmt.Errorf("error reloading systemd: %w", err)
			}
			if err := env.run(cmd, "systemctl", "enable", serviceName); err != nil {
				return fmt.Errorf("error enabling service: %w", err)
			}
			if startNow {
				if err := env.run(cmd, "systemctl", "start", serviceName); err != nil {
					return fmt.Errorf("error starting service: %w", err)
				}
			}

			cmd.Printf("Service: %s\n", serviceName)
			cmd.Printf("Config: %s\n", configPath)
			cmd.Printf("Data: %s\n", cfg.DataDir)
			cmd.Printf("Port: %d\n", cfg.Port)
			if !startNow {
				cmd.Printf("To start the service: sudo systemctl start %s\n", serviceName)
			}
			return nil
		},
	}

	installCmd.Flags().String("data-dir", "/var/lib/devapps", "Data directory for the service")
	installCmd.Flags().String("user", "devapps", "User to run the service as")
	installCmd.Flags().Int("port", 8080, "Port for the service")
	installCmd.Flags().Bool("start", true, "Start the service after installation")
	return installCmd
}

func newServiceUninstallCmd(env *serviceEnv) *cobra.Command {
	return &cobra.Command{
		Use:               "uninstall",
		Short:             "Uninstall the devapps service",
		Args:              cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			if !env.isRoot() {
				return fmt.Errorf("service uninstall requires root privileges, run with: sudo devapps service uninstall")
			}

			// Already stopped is fine
			_ = env.run(cmd, "systemctl", "stop", serviceName)
			if err := env.run(cmd, "systemctl", "disable", serviceName); err != nil {
				cmd.Printf("Warning: could not disable service: %v\n", err)
			}

			if err := os.Remove(env.unitPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("error removing unit file: %w", err)
			}
			if err := env.run(cmd, "systemctl", "daemon-reload"); err != nil {
				return fmt.Errorf("error reloading systemd: %w", err)
			}

			cmd.Printf("Service uninstalled. Configuration and data files were not removed\n")
			return nil
		},
	}
}

func newSystemctlCmd(env *serviceEnv, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:               action,
		Short:             short,
		Args:              cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.run(cmd, "systemctl", action, serviceName)
		},
	}
}

func newServiceLogsCmd(env *serviceEnv) *cobra.Command {
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Show devapps service logs",
		Long: `Show devapps service logs using journalctl.

Examples:
  devapps service logs
  devapps service logs -f  # Follow logs`,
		Args:              cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			follow, _ := cmd.Flags().GetBool("follow")
			lines, _ := cmd.Flags().GetInt("lines")

			journalArgs := []string{"-u", serviceName}
			if follow {
				journalArgs = append(journalArgs, "-f")
			}
			if lines > 0 {
				journalArgs = append(journalArgs, fmt.Sprintf("-n%d", lines))
			}
			return env.run(cmd, "journalctl", journalArgs...)
		},
	}

	logsCmd.Flags().BoolP("follow", "f", false, "Follow log output")
	logsCmd.Flags().IntP("lines", "n", 0, "Number of lines to show")
	return logsCmd
}

// renderUnit builds the systemd unit that runs devapps serve
func renderUnit(cfg *config.Config, configPath, user, binary string) string {
	return fmt.Sprintf(`[Unit]
Description=devapps API server
After=network-online.target
Wants=network-online.target

[Service]
User=%s
Group=%s
ExecStart=%s serve --config %s
Restart=on-failure
NoNewPrivileges=true
UMask=0077
ReadWritePaths=%s
ReadWritePaths=%s
ReadWritePaths=%s

[Install]
WantedBy=multi-user.target
`, user, user, binary, configPath, cfg.DataDir, cfg.StoreDir, filepath.Dir(configPath))
}

// runCommand runs a system command with the command's output streams
func runCommand(cmd *cobra.Command, name string, args ...string) error {
	c := exec.CommandContext(cmd.Context(), name, args...)
	c.Stdout = cmd.OutOrStdout()
	c.Stderr = cmd.ErrOrStderr()
	return c.Run()
}
