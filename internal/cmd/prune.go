package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dissemin/urltheory/internal/cliutil"
	"github.com/dissemin/urltheory/smoothing"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Force a prune of a class's tree and save the result",
	RunE:  runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	if classID == "" {
		return fmt.Errorf("prune: --class is required")
	}

	strat := smoothing.NewConstantDirichlet(1, 1)
	f, err := cliutil.LoadOrNewForest(filterDir, cliutil.NewFilterFactory(threshold, strat))
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}

	if err := f.Prune(classID); err != nil {
		return fmt.Errorf("prune: %w", err)
	}

	treePath, configPath := cliutil.ForestPaths(filterDir)
	if err := f.Save(treePath, configPath); err != nil {
		return fmt.Errorf("prune: saving forest: %w", err)
	}
	logger.Info("pruned class", zap.String("class", classID))
	return nil
}
