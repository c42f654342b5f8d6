package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berrythewa/clipbridge/internal/common"
	"github.com/berrythewa/clipbridge/internal/config"
)

var (
	// Global flags
	configFile string
	verbose    bool

	// Shared resources
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "clipbridge",
	Short: "Clipboard bridge between a VM display client and its peer",
	Long: `Clipbridge keeps the X11 clipboard of a display client in sync with a
peer on the other side of a VM boundary:
  • Text and images copied locally are announced to the peer
  • Content copied on the peer can be pasted locally
  • Large payloads are transferred incrementally and cached`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger, err = common.NewLogger(cfg, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configPath() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	return config.GetActiveConfigPath()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/clipbridge/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose output")

	rootCmd.AddCommand(
		newRunCmd(),
		newConfigCmd(),
		newCacheCmd(),
		newVersionCmd(),
	)
}
