package facematch

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/kozaktomas/phototag/internal/constants"
	"github.com/kozaktomas/phototag/internal/database"
	"github.com/kozaktomas/phototag/internal/database/mock"
	"github.com/kozaktomas/phototag/internal/lock"
)

func randomEmbedding(rng *rand.Rand) []float32 {
	emb := make([]float32, database.FaceEmbeddingDim)
	for i := range emb {
		emb[i] = rng.Float32()*2 - 1
	}
	return emb
}

// seedFaces stores n face tags with embeddings in library and returns them.
func seedFaces(t *testing.T, store *mock.Store, libraryID uuid.UUID, n int, seed uint64) []database.PhotoTag {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b9))
	var result []database.PhotoTag
	for range n {
		tag := store.Tags.AddTag(database.Tag{LibraryID: libraryID, Name: uuid.NewString(), Type: database.TagTypeFace, Source: database.SourceComputer})
		emb := randomEmbedding(rng)
		extra, err := database.EncodeFaceExtraData(emb)
		if err != nil {
			t.Fatal(err)
		}
		result = append(result, store.PhotoTags.AddPhotoTag(database.PhotoTag{
			PhotoID:   uuid.New(),
			TagID:     tag.ID,
			Source:    database.SourceComputer,
			ExtraData: extra,
			Embedding: emb,
		}))
	}
	return result
}

func TestMatcher_ScanEqualsBruteForce(t *testing.T) {
	store := mock.NewStore()
	libraryID := uuid.New()
	faces := seedFaces(t, store, libraryID, 30, 42)

	m := NewMatcher(store.PhotoTags, lock.NewLocal(), t.TempDir())
	rng := rand.New(rand.NewPCG(1, 2))

	for range 5 {
		query := randomEmbedding(rng)

		bestTag, bestDist := uuid.Nil, math.Inf(1)
		for _, f := range faces {
			if d := database.EuclideanDistance(query, f.Embedding); d < bestDist {
				bestTag, bestDist = f.TagID, d
			}
		}

		match, err := m.Nearest(context.Background(), libraryID, query)
		if err != nil {
			t.Fatalf("Nearest() error = %v", err)
		}
		if match.Strategy != StrategyScan {
			t.Errorf("strategy = %s, want scan", match.Strategy)
		}
		if match.TagID != bestTag || match.Distance != bestDist {
			t.Errorf("Nearest() = %s, %v; want %s, %v", match.TagID, match.Distance, bestTag, bestDist)
		}
	}
}

func TestMatcher_IdenticalEmbeddingIsZero(t *testing.T) {
	store := mock.NewStore()
	libraryID := uuid.New()
	faces := seedFaces(t, store, libraryID, 5, 3)

	m := NewMatcher(store.PhotoTags, lock.NewLocal(), t.TempDir())
	match, err := m.Nearest(context.Background(), libraryID, faces[2].Embedding)
	if err != nil {
		t.Fatal(err)
	}
	if match.TagID != faces[2].TagID || match.Distance != 0 {
		t.Errorf("Nearest() = %s, %v; want %s, 0", match.TagID, match.Distance, faces[2].TagID)
	}
	if !match.Within(constants.DistanceThreshold) {
		t.Error("identical embedding should be within threshold")
	}
}

func TestMatcher_NoFaces(t *testing.T) {
	store := mock.NewStore()
	m := NewMatcher(store.PhotoTags, lock.NewLocal(), t.TempDir())

	match, err := m.Nearest(context.Background(), uuid.New(), make([]float32, database.FaceEmbeddingDim))
	if err != nil {
		t.Fatal(err)
	}
	if match.TagID != uuid.Nil || match.Distance != constants.NoMatchDistance || match.Strategy != StrategyNone {
		t.Errorf("Nearest() = %+v, want no match at %v", match, constants.NoMatchDistance)
	}
	if match.Within(constants.DistanceThreshold) {
		t.Error("empty match must never be within threshold")
	}
}

func TestMatcher_ScanSkipsMalformedRows(t *testing.T) {
	store := mock.NewStore()
	libraryID := uuid.New()
	good := seedFaces(t, store, libraryID, 1, 9)[0]

	for _, extra := range []string{"", "{not json", `{"other":1}`, `{"facenet_embedding":[]}`, `{"facenet_embedding":[1,2,3]}`} {
		tag := store.Tags.AddTag(database.Tag{LibraryID: libraryID, Name: uuid.NewString(), Type: database.TagTypeFace})
		store.PhotoTags.AddPhotoTag(database.PhotoTag{TagID: tag.ID, ExtraData: extra})
	}

	m := NewMatcher(store.PhotoTags, lock.NewLocal(), t.TempDir())
	match, err := m.Nearest(context.Background(), libraryID, good.Embedding)
	if err != nil {
		t.Fatalf("Nearest() error = %v", err)
	}
	if match.TagID != good.TagID || match.Distance != 0 {
		t.Errorf("Nearest() = %+v, want the one well-formed face", match)
	}
}

func TestMatcher_ScanIsLibraryScoped(t *testing.T) {
	store := mock.NewStore()
	libA, libB := uuid.New(), uuid.New()
	faceA := seedFaces(t, store, libA, 1, 5)[0]
	seedFaces(t, store, libB, 3, 6)

	m := NewMatcher(store.PhotoTags, lock.NewLocal(), t.TempDir())
	match, err := m.Nearest(context.Background(), libB, faceA.Embedding)
	if err != nil {
		t.Fatal(err)
	}
	if match.TagID == faceA.TagID {
		t.Error("scan matched a face from another library")
	}
}

func TestMatcher_ScanError(t *testing.T) {
	store := mock.NewStore()
	store.PhotoTags.GetFaceRecordsError = errors.New("db down")

	m := NewMatcher(store.PhotoTags, lock.NewLocal(), t.TempDir())
	if _, err := m.Nearest(context.Background(), uuid.New(), []float32{1}); err == nil {
		t.Error("expected repository error")
	}
}

func TestMatcher_UsesIndexWhenPresent(t *testing.T) {
	store := mock.NewStore()
	libraryID := uuid.New()
	faces := seedFaces(t, store, libraryID, 40, 77)

	dir := t.TempDir()
	embeddings, _ := store.PhotoTags.GetFaceEmbeddings(context.Background())
	idx := database.NewFaceIndex()
	idx.Build(embeddings)
	if err := idx.Save(dir); err != nil {
		t.Fatal(err)
	}

	// The index must answer even when the database is unreachable
	store.PhotoTags.GetFaceRecordsError = errors.New("should not scan")

	m := NewMatcher(store.PhotoTags, lock.NewLocal(), dir)
	match, err := m.Nearest(context.Background(), libraryID, faces[10].Embedding)
	if err != nil {
		t.Fatalf("Nearest() error = %v", err)
	}
	if match.Strategy != StrategyIndex {
		t.Errorf("strategy = %s, want index", match.Strategy)
	}
	if match.TagID != faces[10].TagID || match.Distance != 0 {
		t.Errorf("Nearest() = %+v, want face 10 at distance 0", match)
	}

	// Second call reuses the cached index
	if _, err := m.Nearest(context.Background(), libraryID, faces[11].Embedding); err != nil {
		t.Fatal(err)
	}
}

// saveIndex writes an index of every stored face embedding into dir.
func saveIndex(t *testing.T, store *mock.Store, dir string) {
	t.Helper()
	embeddings, err := store.PhotoTags.GetFaceEmbeddings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	idx := database.NewFaceIndex()
	idx.Build(embeddings)
	if err := idx.Save(dir); err != nil {
		t.Fatal(err)
	}
}

type unavailableLocker struct{}

func (unavailableLocker) Acquire(context.Context, string) (func() error, error) {
	return nil, errors.New("redis: connection refused")
}

func TestMatcher_IndexErrorsPropagate(t *testing.T) {
	tests := []struct {
		name   string
		locker lock.Locker
		setup  func(t *testing.T, store *mock.Store, dir string)
	}{
		{
			name:   "corrupt graph",
			locker: lock.NewLocal(),
			setup: func(t *testing.T, _ *mock.Store, dir string) {
				if err := os.WriteFile(filepath.Join(dir, database.FaceIndexFile), []byte("garbage"), 0o600); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(filepath.Join(dir, database.FaceIndexTagIDsFile), []byte("[]"), 0o600); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name:   "tag ID count mismatch",
			locker: lock.NewLocal(),
			setup: func(t *testing.T, store *mock.Store, dir string) {
				saveIndex(t, store, dir)
				if err := os.WriteFile(filepath.Join(dir, database.FaceIndexTagIDsFile), []byte(`["`+uuid.NewString()+`"]`), 0o600); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name:   "lock service unavailable",
			locker: unavailableLocker{},
			setup:  saveIndex,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mock.NewStore()
			libraryID := uuid.New()
			faces := seedFaces(t, store, libraryID, 3, 13)
			dir := t.TempDir()
			tt.setup(t, store, dir)

			m := NewMatcher(store.PhotoTags, tt.locker, dir)
			match, err := m.Nearest(context.Background(), libraryID, faces[0].Embedding)
			if err == nil {
				t.Errorf("Nearest() = %+v, want an error instead of a scan", match)
			}
		})
	}
}

func TestMatcher_ScanIgnoresIndex(t *testing.T) {
	store := mock.NewStore()
	libA, libB := uuid.New(), uuid.New()
	own := seedFaces(t, store, libA, 2, 21)
	seedFaces(t, store, libB, 2, 22)

	dir := t.TempDir()
	saveIndex(t, store, dir)

	m := NewMatcher(store.PhotoTags, unavailableLocker{}, dir)
	match, err := m.Scan(context.Background(), libA, own[1].Embedding)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if match.Strategy != StrategyScan || match.TagID != own[1].TagID {
		t.Errorf("Scan() = %+v, want scan hit on own face", match)
	}
}
