package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hivekit/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "hivekit",
	Short: "Multi-agent task coordination hive",
	Long: `Hivekit coordinates a hive of agents over a shared task queue:
tasks are matched to agents by capability fitness, executed results are
cross-verified by an independent agent, and agent proficiency and trust
adapt to the outcomes.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/hivekit/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/hivekit")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("HIVEKIT")
	// Replace dots with underscores for nested keys in env vars
	// e.g., HIVEKIT_VERIFICATION_MAX_ATTEMPTS for verification.max_attempts
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
