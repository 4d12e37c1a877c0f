// Package cmd wires together the urltheory CLI: train/predict/prune/regex
// subcommands over a forest of per-class filters, laid out the way the
// corpus's cobra-based CLIs split one command per file under one package.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/dissemin/urltheory/internal/cliutil"
)

var (
	cfgFile    string
	verbose    bool
	filterDir  string
	classID    string
	threshold  float64

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "urltheory",
	Short: "Train and query URL prefix-tree classifiers",
	Long: `urltheory maintains a forest of per-class URL prefix-tree
classifiers: train them from a dataset of observed outcomes, predict the
outcome of a new URL, prune a trained tree to its confident subtrees, and
synthesize a regular expression from a pruned tree.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := cliutil.NewLogger(verbose)
		if err != nil {
			return fmt.Errorf("cmd: building logger: %w", err)
		}
		logger = l
		return initConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./urltheory.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "development-mode logging")
	rootCmd.PersistentFlags().StringVar(&filterDir, "dir", "./urltheory-data", "directory holding the forest's saved tree and config")
	rootCmd.PersistentFlags().StringVar(&classID, "class", "", "class_id to operate on")
	rootCmd.PersistentFlags().Float64Var(&threshold, "threshold", 0.2, "confidence threshold for new classes")
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("urltheory")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("URLTHEORY")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("cmd: reading config: %w", err)
	}
	return nil
}

// Execute runs the root command, exiting the process with status 1 on
// failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
