package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dissemin/urltheory/internal/cliutil"
	"github.com/dissemin/urltheory/smoothing"
)

var regexCmd = &cobra.Command{
	Use:   "regex",
	Short: "Synthesize a regular expression from a class's pruned tree",
	RunE:  runRegex,
}

func init() {
	rootCmd.AddCommand(regexCmd)
}

func runRegex(cmd *cobra.Command, args []string) error {
	if classID == "" {
		return fmt.Errorf("regex: --class is required")
	}

	strat := smoothing.NewConstantDirichlet(1, 1)
	f, err := cliutil.LoadOrNewForest(filterDir, cliutil.NewFilterFactory(threshold, strat))
	if err != nil {
		return fmt.Errorf("regex: %w", err)
	}

	fmt.Println(f.GenerateRegex(classID))
	return nil
}
