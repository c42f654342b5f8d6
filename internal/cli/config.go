package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/berrythewa/clipbridge/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage clipbridge configuration",
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigShowCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return fmt.Errorf("failed to get active config path: %w", err)
			}

			// Load already created it if it was missing; only an explicit
			// --force replaces an existing file with fresh defaults
			if _, err := os.Stat(path); err == nil && force {
				fresh := config.DefaultConfig()
				if err := fresh.Save(path); err != nil {
					return fmt.Errorf("failed to save configuration: %w", err)
				}
				cfg = fresh
				logger.Info("Configuration reset to defaults", zap.String("config_path", path))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Configuration at: %s\n", path)
			fmt.Fprintf(out, "✓ Device id: %s\n", cfg.DeviceID)
			fmt.Fprintf(out, "✓ Database path: %s\n", cfg.Storage.DBPath)
			fmt.Fprintln(out, "\nTo start the bridge, run: clipbridge run")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing configuration with defaults")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			case "yaml":
				data, err := yaml.Marshal(cfg)
				if err != nil {
					return fmt.Errorf("failed to marshal config: %w", err)
				}
				_, err = out.Write(data)
				return err
			default:
				return fmt.Errorf("unsupported format: %s", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "output format (yaml or json)")
	return cmd
}
