package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/phototag/internal/config"
	"github.com/kozaktomas/phototag/internal/constants"
)

var faceSimilarCmd = &cobra.Command{
	Use:   "similar <photo-tag-id>",
	Short: "List faces most similar to a stored face",
	Long: `List face tags of the same library ordered by embedding distance to the
given face tag, using the database vector index.`,
	Args: cobra.ExactArgs(1),
	RunE: runFaceSimilar,
}

func init() {
	faceCmd.AddCommand(faceSimilarCmd)

	faceSimilarCmd.Flags().Int("limit", constants.DefaultSimilarLimit, "Maximum number of faces to list")
}

func runFaceSimilar(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid photo tag ID %q: %w", args[0], err)
	}
	limit := min(mustGetInt(cmd, "limit"), constants.MaxSimilarLimit)
	if limit <= 0 {
		limit = constants.DefaultSimilarLimit
	}

	ctx := context.Background()
	a, err := connectDatabase(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	similar, err := a.faces.FindSimilarFaces(ctx, id, limit)
	if err != nil {
		return fmt.Errorf("find similar faces: %w", err)
	}

	if len(similar) == 0 {
		fmt.Println("No similar faces found")
		return nil
	}
	fmt.Printf("%-36s  %-36s  %8s  %s\n", "PHOTO TAG", "PHOTO", "DISTANCE", "TAG")
	for _, sf := range similar {
		fmt.Printf("%-36s  %-36s  %8.4f  %s\n", sf.PhotoTagID, sf.PhotoID, sf.Distance, sf.TagName)
	}
	return nil
}
