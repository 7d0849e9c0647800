package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillctl/pkg/config"
	"github.com/jingkaihe/skillctl/pkg/logger"
	"github.com/jingkaihe/skillctl/pkg/presenter"
)

func init() {
	viper.SetEnvPrefix("SKILLCTL")
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillctl")
	if base := os.Getenv(config.BasePathEnv); base != "" {
		viper.AddConfigPath(base)
	}

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()

	// A workspace-local .skillctl.yaml layers over the user configuration
	if _, err := os.Stat(".skillctl.yaml"); err == nil {
		viper.SetConfigFile(".skillctl.yaml")
		_ = viper.MergeInConfig()
	}

	config.SetDefaults(viper.GetViper())
}

var tracingShutdown func(context.Context) error

var rootCmd = &cobra.Command{
	Use:   "skillctl",
	Short: "Keep agent skills consistent across coding agents",
	Long: `skillctl manages skill directories (folders holding a SKILL.md file) for several
coding agents. Skills live once in a canonical repository and are linked into
each agent's global or workspace skill directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := logger.Setup(viper.GetString("log_level"), viper.GetString("log_format"), os.Stderr); err != nil {
			return err
		}
		if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
			presenter.SetQuiet(true)
		}

		shutdown, err := initTracing(cmd.Context())
		if err != nil {
			logger.G(cmd.Context()).WithError(err).Warn("failed to initialize tracing")
			return nil
		}
		tracingShutdown = shutdown
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		if tracingShutdown == nil {
			return
		}
		if err := tracingShutdown(cmd.Context()); err != nil {
			logger.G(cmd.Context()).WithError(err).Debug("failed to flush traces")
		}
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

func main() {
	rootCmd.PersistentFlags().String("repository", "", "Canonical skill repository (default ~/.skillctl/repository)")
	rootCmd.PersistentFlags().String("workspace", "", "Workspace root for workspace-scoped agent directories (default current directory)")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Do not read or write the scan cache")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (panic, fatal, error, warn, info, debug, trace)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress informational output")

	viper.BindPFlag("repository_path", rootCmd.PersistentFlags().Lookup("repository"))
	viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	viper.BindPFlag("no_cache", rootCmd.PersistentFlags().Lookup("no-cache"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(
		withTracing(listCmd),
		withTracing(showCmd),
		withTracing(doctorCmd),
		withTracing(installCmd),
		withTracing(removeCmd),
		withTracing(adoptCmd),
		withTracing(syncCmd),
		withTracing(diffCmd),
		cacheCmd,
		historyCmd,
		configCmd,
		versionCmd,
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		presenter.Error(err, "")
		os.Exit(1)
	}
}
