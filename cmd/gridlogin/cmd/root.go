package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/terraconstructs/gridlogin/internal/config"
	"github.com/terraconstructs/gridlogin/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gridlogin",
	Short: "Login and registration front end for ZITADEL",
	Long: `gridlogin serves the JSON API behind the login, registration and passkey pages
of a ZITADEL deployment. It talks to ZITADEL with a service account and keeps the
user's session in an encrypted cookie.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
			}
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger, err = logging.New(cfg.Debug)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("server-addr", "", "Server bind address (env: GRIDLOGIN_SERVER_ADDR)")
	rootCmd.PersistentFlags().String("zitadel-url", "", "ZITADEL instance URL (env: GRIDLOGIN_ZITADEL_URL)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (env: GRIDLOGIN_DEBUG)")

	_ = viper.BindPFlag("server_addr", rootCmd.PersistentFlags().Lookup("server-addr"))
	_ = viper.BindPFlag("zitadel.url", rootCmd.PersistentFlags().Lookup("zitadel-url"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
