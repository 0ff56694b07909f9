package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/phototag/internal/classifier"
	"github.com/kozaktomas/phototag/internal/constants"
)

var faceBatchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run the face classifier on all pending photos",
	Long: `Classify every photo whose face classifier has not completed yet.

Photos are processed one at a time. A failing photo is reported and the batch
continues; the run can be stopped and resumed since completed photos are
skipped.

Examples:
  # Classify all pending photos
  phototag face batch

  # Only one library, at most 100 photos
  phototag face batch --library 2b7e... --limit 100`,
	Args: cobra.NoArgs,
	RunE: runFaceBatch,
}

func init() {
	faceCmd.AddCommand(faceBatchCmd)

	faceBatchCmd.Flags().String("library", "", "Only classify photos from this library ID")
	faceBatchCmd.Flags().Int("limit", constants.DefaultBatchLimit, "Limit number of photos to process (0 = no limit)")
}

func runFaceBatch(cmd *cobra.Command, args []string) error {
	opts := classifier.BatchOptions{Limit: mustGetInt(cmd, "limit")}
	if lib := mustGetString(cmd, "library"); lib != "" {
		id, err := uuid.Parse(lib)
		if err != nil {
			return fmt.Errorf("invalid library ID %q: %w", lib, err)
		}
		opts.LibraryID = &id
	}

	ctx := context.Background()
	a, err := setupClassifier(ctx, mustGetFloat64(cmd, "min-score"))
	if err != nil {
		return err
	}
	defer a.Close()

	var bar *progressbar.ProgressBar
	opts.OnProgress = func(p classifier.ProgressInfo) {
		if bar == nil {
			bar = progressbar.NewOptions(p.Total,
				progressbar.OptionSetDescription("Classifying faces"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("photos"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionFullWidth(),
			)
		}
		bar.Add(1)
	}

	result, err := a.classifier.RunBatch(ctx, opts)
	if err != nil {
		return fmt.Errorf("face batch: %w", err)
	}
	fmt.Println()

	if result.Total == 0 {
		fmt.Println("All photos already have faces processed!")
		return nil
	}

	fmt.Printf("\nCompleted: %d photos processed, %d errors\n", result.Processed, len(result.Errors))
	fmt.Printf("Faces tagged: %d\n", result.Faces)
	for _, e := range result.Errors {
		fmt.Printf("  %v\n", e)
	}
	return nil
}
