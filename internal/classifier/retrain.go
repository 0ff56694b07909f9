package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kozaktomas/phototag/internal/constants"
	"github.com/kozaktomas/phototag/internal/database"
	"github.com/kozaktomas/phototag/internal/lock"
	"github.com/kozaktomas/phototag/internal/observability"
)

// RetrainResult describes a rebuilt face index
type RetrainResult struct {
	Faces    int           `json:"faces"`
	Version  int64         `json:"version"`
	Duration time.Duration `json:"duration"`
}

// invalidator is implemented by matchers caching the index in memory
type invalidator interface {
	Invalidate()
}

// Retrain rebuilds the face index from every stored face embedding and
// writes it to the index directory under the retrain lock.
func (c *Classifier) Retrain(ctx context.Context) (*RetrainResult, error) {
	start := time.Now()

	embeddings, err := c.results.GetFaceEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load face embeddings: %w", err)
	}

	idx := database.NewFaceIndex()
	n := idx.Build(embeddings)
	slog.Info("face index built", "faces", n, "skipped", len(embeddings)-n)

	var version int64
	err = lock.With(ctx, c.locker, constants.LockModelRetrain, func() error {
		if err := idx.Save(c.opts.IndexDir); err != nil {
			return err
		}
		v, err := WriteRetrainedVersion(c.opts.IndexDir, c.now())
		if err != nil {
			return err
		}
		version = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save face index: %w", err)
	}

	if inv, ok := c.matcher.(invalidator); ok {
		inv.Invalidate()
	}
	observability.FaceIndexSize.Set(float64(n))

	return &RetrainResult{Faces: n, Version: version, Duration: time.Since(start)}, nil
}
