package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/phototag/internal/classifier"
	"github.com/kozaktomas/phototag/internal/database"
)

var faceCmd = &cobra.Command{
	Use:   "face <image-path|photo-id>",
	Short: "Detect and recognize faces in a photo",
	Long: `Run the face classifier on a stored photo or on an image file.

When the argument is the ID of a stored photo, faces are detected, matched
against known faces of the photo's library and saved as face tags; previous
computer-generated face tags of the photo are replaced. Any other argument is
treated as an image file path: faces are detected and embedded, nothing is
written to the database.

Examples:
  # Classify a stored photo
  phototag face 7f9c2b1e-3d4a-4c5b-9e8f-0a1b2c3d4e5f

  # Inspect detections in a local file
  phototag face ./holiday.jpg --min-score 0.95`,
	Args: cobra.ArbitraryArgs,
	RunE: runFace,
}

func init() {
	rootCmd.AddCommand(faceCmd)

	faceCmd.PersistentFlags().Float64("min-score", 0, "Minimum detection confidence (0 = FACE_MIN_SCORE or 0.99)")
}

func runFace(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("Argument required: image file path or Photo ID")
	}
	target := args[0]

	ctx := context.Background()
	setup := setupFileClassifier
	if isPhotoID(target) {
		setup = setupClassifier
	}
	a, err := setup(ctx, mustGetFloat64(cmd, "min-score"))
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := classifyTarget(ctx, a, target)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func isPhotoID(target string) bool {
	_, err := uuid.Parse(target)
	return err == nil
}

// classifyTarget runs the full pipeline when target names a stored photo and
// detection only otherwise.
func classifyTarget(ctx context.Context, a *app, target string) (*classifier.Result, error) {
	if id, err := uuid.Parse(target); err == nil && a.photos != nil {
		if _, err := a.photos.GetPhoto(ctx, id); err == nil {
			return a.classifier.RunOnPhoto(ctx, id)
		} else if !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("get photo: %w", err)
		}
	}
	return a.classifier.RunOnFile(ctx, target)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
