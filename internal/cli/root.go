package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/parley-oss/parley/internal/config"
	parleyErrors "github.com/parley-oss/parley/internal/errors"
	"github.com/parley-oss/parley/internal/memory"
	"github.com/parley-oss/parley/internal/telemetry"
)

var (
	cfgFile string
	verbose bool
	userID  string
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Conversational memory and knowledge for AI agents",
	Long: `parley - memory your agents can actually use.

A conversation store, knowledge base and retrieval layer for
LLM-backed agents, with file and SQLite backends.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if s := parleyErrors.Suggestion(err); s != "" {
			fmt.Fprintln(os.Stderr, "  →", s)
		}
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./parley.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "local", "user ID to scope conversations")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(knowledgeCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("parley")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// loadConfig loads configuration honoring the --config flag.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFile(cfgFile)
	}
	return config.Load(".")
}

func newLogger(cfg *config.Config) *telemetry.Logger {
	v := verbose || cfg.Logging.Level == "debug"
	if cfg.Logging.Format == "json" {
		return telemetry.NewJSONLogger(v)
	}
	return telemetry.NewLogger(v)
}

// openManager loads config and opens the configured backends.
func openManager() (*memory.Manager, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	mgr, err := memory.Open(cfg, newLogger(cfg))
	if err != nil {
		return nil, nil, err
	}
	return mgr, cfg, nil
}
