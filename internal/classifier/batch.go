package classifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// ProgressInfo contains progress information for callbacks
type ProgressInfo struct {
	Current int
	Total   int
	PhotoID uuid.UUID
	Err     error
}

type BatchOptions struct {
	LibraryID  *uuid.UUID         // restrict to one library, nil for all
	Limit      int                // 0 means no limit
	OnProgress func(ProgressInfo) // optional, called after each photo
}

type BatchResult struct {
	Total     int
	Processed int
	Faces     int
	Errors    []error
}

// RunBatch classifies photos whose face classifier has not completed, one at
// a time. A failing photo is recorded and the batch continues.
func (c *Classifier) RunBatch(ctx context.Context, opts BatchOptions) (*BatchResult, error) {
	photos, err := c.photos.ListPendingFacePhotos(ctx, opts.LibraryID, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("list pending photos: %w", err)
	}

	result := &BatchResult{Total: len(photos)}
	for i, p := range photos {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		res, err := c.RunOnPhoto(ctx, p.ID)
		if err != nil {
			slog.Error("face classifier failed", "photo_id", p.ID, "error", err)
			result.Errors = append(result.Errors, fmt.Errorf("photo %s: %w", p.ID, err))
		} else {
			result.Processed++
			result.Faces += len(res.Faces)
		}

		if opts.OnProgress != nil {
			opts.OnProgress(ProgressInfo{Current: i + 1, Total: len(photos), PhotoID: p.ID, Err: err})
		}
	}
	return result, nil
}
