package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var faceRetrainCmd = &cobra.Command{
	Use:   "retrain",
	Short: "Rebuild the face index from stored embeddings",
	Long: `Rebuild the nearest-neighbour face index from every face tag that carries an
embedding and write it to MODEL_DIR/face together with retrained_version.txt.
Subsequent classifications match against the new index.`,
	Args: cobra.NoArgs,
	RunE: runFaceRetrain,
}

func init() {
	faceCmd.AddCommand(faceRetrainCmd)
}

func runFaceRetrain(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := setupClassifier(ctx, 0)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.classifier.Retrain(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Face index rebuilt with %d faces in %s\n", result.Faces, result.Duration.Round(time.Millisecond))
	fmt.Printf("Retrained model version: %d\n", result.Version)
	return nil
}
