package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dissemin/urltheory/internal/cliutil"
	"github.com/dissemin/urltheory/smoothing"
)

var predictURL string

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict the outcome of a URL under a trained class",
	RunE:  runPredict,
}

func init() {
	predictCmd.Flags().StringVar(&predictURL, "url", "", "URL to classify (required)")
	_ = predictCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	if classID == "" {
		return fmt.Errorf("predict: --class is required")
	}

	strat := smoothing.NewConstantDirichlet(1, 1)
	f, err := cliutil.LoadOrNewForest(filterDir, cliutil.NewFilterFactory(threshold, strat))
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}

	outcome, err := f.Predict(classID, predictURL)
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}
	logger.Info("prediction", zap.String("class", classID), zap.String("url", predictURL), zap.String("outcome", outcome.String()))
	fmt.Println(outcome)
	return nil
}
