// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the agentlens CLI. It runs the
// research pipeline once from the command line or serves it over HTTP and
// WebSocket, and inspects stored traces.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/agentlens/internal/secrets"
	"github.com/pdiddy/agentlens/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from the secrets directory at startup.
var loadedSecrets map[string]string

// logger is built in PersistentPreRunE from --verbose.
var logger = zap.NewNop()

// rootCmd is the base command for the agentlens CLI.
var rootCmd = &cobra.Command{
	Use:   "agentlens",
	Short: "Observable multi-step research agent",
	Long: `agentlens answers a research question with a four-stage pipeline:
a supervisor plans, a researcher searches the web and extracts notes, a
synthesizer drafts a cited answer, and a verifier checks citations and depth,
sending weak drafts back for another research pass.

Every step is traced. Runs can be executed once from the command line,
streamed as trace records, or served over HTTP and WebSocket; stored traces
can be inspected with the trace and analytics commands.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		log, err := newLogger(verbose)
		if err != nil {
			return err
		}
		logger = log

		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Info("loaded secrets", zap.Strings("keys", keys))
		}
		if f := viper.ConfigFileUsed(); f != "" {
			logger.Info("using config file", zap.String("path", f))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./agentlens.yaml or ~/.config/agentlens/config.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", secrets.DefaultDir, "directory of API key files")
	rootCmd.PersistentFlags().String("format", formatJSON, "output format: json or yaml")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "development logging at debug level")
	rootCmd.PersistentFlags().String("db", "", "trace database file (default: in memory)")
	rootCmd.PersistentFlags().Int("max-retries", types.DefaultMaxRetries, "extra research passes allowed after a failed quality check")

	_ = viper.BindPFlag("telemetry.db_path", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("pipeline.max_retries", rootCmd.PersistentFlags().Lookup("max-retries"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("agentlens")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "agentlens"))
		}
	}

	setDefaults(viper.GetViper(), types.DefaultConfig())
	viper.SetEnvPrefix("AGENTLENS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("ai.api_key", "AGENTLENS_AI_API_KEY", "OPENAI_API_KEY")
	_ = viper.BindEnv("ai.model", "AGENTLENS_AI_MODEL", "OPENAI_MODEL")
	_ = viper.BindEnv("search.tavily_api_key", "AGENTLENS_SEARCH_TAVILY_API_KEY", "TAVILY_API_KEY")

	_ = viper.ReadInConfig()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
