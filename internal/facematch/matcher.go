package facematch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/phototag/internal/constants"
	"github.com/kozaktomas/phototag/internal/database"
	"github.com/kozaktomas/phototag/internal/lock"
)

// Matcher finds the nearest stored face for an embedding. With index files
// present in indexDir it queries the HNSW index, otherwise it scans the
// library's face tags.
type Matcher struct {
	repo     database.PhotoTagReader
	locker   lock.Locker
	indexDir string

	mu       sync.Mutex
	index    *database.FaceIndex
	indexMod time.Time
}

// NewMatcher creates a matcher reading index files from indexDir.
func NewMatcher(repo database.PhotoTagReader, locker lock.Locker, indexDir string) *Matcher {
	return &Matcher{repo: repo, locker: locker, indexDir: indexDir}
}

// Nearest returns the closest stored face to embedding. The library scan is
// used only when no index files exist; index errors are returned.
func (m *Matcher) Nearest(ctx context.Context, libraryID uuid.UUID, embedding []float32) (Match, error) {
	if !database.FaceIndexExists(m.indexDir) {
		return m.Scan(ctx, libraryID, embedding)
	}
	match, err := m.nearestIndexed(ctx, embedding)
	if err != nil {
		return Match{}, fmt.Errorf("face index: %w", err)
	}
	return match, nil
}

func (m *Matcher) nearestIndexed(ctx context.Context, embedding []float32) (Match, error) {
	var match Match
	err := lock.With(ctx, m.locker, constants.LockModelRetrain, func() error {
		idx, err := m.loadIndex()
		if err != nil {
			return err
		}
		tagID, dist, err := idx.Nearest(embedding)
		if err != nil {
			return err
		}
		match = Match{TagID: tagID, Distance: dist, Strategy: StrategyIndex}
		return nil
	})
	return match, err
}

// loadIndex returns the cached index, reloading it when the graph file changed.
// Callers hold the retrain lock.
func (m *Matcher) loadIndex() (*database.FaceIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, err := os.Stat(filepath.Join(m.indexDir, database.FaceIndexFile))
	if err != nil {
		return nil, fmt.Errorf("stat face index: %w", err)
	}
	if m.index != nil && info.ModTime().Equal(m.indexMod) {
		return m.index, nil
	}

	idx, err := database.LoadFaceIndex(m.indexDir)
	if err != nil {
		return nil, err
	}
	m.index = idx
	m.indexMod = info.ModTime()
	slog.Debug("face index loaded", "faces", idx.Len())
	return idx, nil
}

// Scan compares against every face tag of the library. Rows without
// a decodable embedding are skipped.
func (m *Matcher) Scan(ctx context.Context, libraryID uuid.UUID, embedding []float32) (Match, error) {
	records, err := m.repo.GetFaceTagRecords(ctx, libraryID)
	if err != nil {
		return Match{}, fmt.Errorf("load face tags: %w", err)
	}

	best := Match{TagID: uuid.Nil, Distance: constants.NoMatchDistance, Strategy: StrategyNone}
	bestDist := math.Inf(1)
	for _, rec := range records {
		stored, err := database.DecodeFaceEmbedding(rec.ExtraData)
		if err != nil {
			if !errors.Is(err, database.ErrNoEmbedding) {
				slog.Debug("skipping malformed face tag", "photo_tag_id", rec.PhotoTagID, "error", err)
			}
			continue
		}
		dist := database.EuclideanDistance(embedding, stored)
		if math.IsInf(dist, 1) {
			continue
		}
		if dist < bestDist {
			bestDist = dist
			best = Match{TagID: rec.TagID, Distance: dist, Strategy: StrategyScan}
		}
	}
	return best, nil
}

// Invalidate drops the cached index so the next match reloads it.
func (m *Matcher) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = nil
	m.indexMod = time.Time{}
}
