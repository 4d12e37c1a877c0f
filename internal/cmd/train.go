package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dissemin/urltheory/dataset"
	"github.com/dissemin/urltheory/internal/cliutil"
	"github.com/dissemin/urltheory/smoothing"
)

var trainDatasetPath string

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a forest from a TSV dataset file",
	Long: `Train reads every class's labeled observations from a TSV dataset
file (section 6's datestamp/class_id/probability/url format) and inserts
them into the forest at --dir, creating it if it does not exist yet.`,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().StringVar(&trainDatasetPath, "dataset", "", "path to the TSV dataset file (required)")
	_ = trainCmd.MarkFlagRequired("dataset")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	store, err := dataset.OpenTSVStore(trainDatasetPath)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	classes, err := store.IterClasses()
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	if len(classes) == 0 {
		logger.Warn("dataset contains no records", zap.String("path", trainDatasetPath))
		return nil
	}

	strat := smoothing.NewConstantDirichlet(1, 1)
	f, err := cliutil.LoadOrNewForest(filterDir, cliutil.NewFilterFactory(threshold, strat))
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	for _, class := range classes {
		recs, err := store.IterClass(class)
		if err != nil {
			return fmt.Errorf("train: %w", err)
		}
		for _, rec := range recs {
			if err := f.Insert(class, rec.URL, rec.Probability); err != nil {
				return fmt.Errorf("train: inserting %q: %w", rec.URL, err)
			}
		}
		logger.Info("trained class", zap.String("class", class), zap.Int("observations", len(recs)))
	}

	treePath, configPath := cliutil.ForestPaths(filterDir)
	if err := f.Save(treePath, configPath); err != nil {
		return fmt.Errorf("train: saving forest: %w", err)
	}
	return nil
}
