package database

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func randomFaces(n, dim int, seed uint64) []FaceEmbedding {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	faces := make([]FaceEmbedding, n)
	for i := range faces {
		emb := make([]float32, dim)
		for j := range emb {
			emb[j] = rng.Float32()*2 - 1
		}
		faces[i] = FaceEmbedding{
			PhotoTagID: uuid.New(),
			TagID:      uuid.New(),
			Embedding:  emb,
		}
	}
	return faces
}

func TestFaceIndex_EmptyIndex(t *testing.T) {
	idx := NewFaceIndex()
	if idx.Len() != 0 {
		t.Errorf("expected empty index, got %d", idx.Len())
	}
	_, _, err := idx.Nearest([]float32{1, 2, 3})
	if !errors.Is(err, ErrIndexEmpty) {
		t.Errorf("expected ErrIndexEmpty, got %v", err)
	}

	if n := idx.Build(nil); n != 0 {
		t.Errorf("Build(nil) = %d, want 0", n)
	}
}

func TestFaceIndex_BuildSkipsInvalidEmbeddings(t *testing.T) {
	faces := randomFaces(3, 8, 1)
	faces = append(faces,
		FaceEmbedding{TagID: uuid.New()},                              // no embedding
		FaceEmbedding{TagID: uuid.New(), Embedding: []float32{1, 2}}, // wrong dim
	)

	idx := NewFaceIndex()
	if n := idx.Build(faces); n != 3 {
		t.Errorf("Build() = %d, want 3", n)
	}
}

func TestFaceIndex_NearestExactMatch(t *testing.T) {
	faces := randomFaces(50, 16, 7)
	idx := NewFaceIndex()
	idx.Build(faces)

	for _, i := range []int{0, 13, 49} {
		tagID, dist, err := idx.Nearest(faces[i].Embedding)
		if err != nil {
			t.Fatalf("Nearest() error = %v", err)
		}
		if tagID != faces[i].TagID {
			t.Errorf("Nearest(face %d) tag = %s, want %s", i, tagID, faces[i].TagID)
		}
		if dist != 0 {
			t.Errorf("Nearest(face %d) distance = %v, want 0", i, dist)
		}
	}
}

func TestFaceIndex_DimensionMismatch(t *testing.T) {
	idx := NewFaceIndex()
	idx.Build(randomFaces(5, 8, 3))

	if _, _, err := idx.Nearest([]float32{1, 2, 3}); err == nil {
		t.Error("expected error for query with wrong dimensions")
	}
}

func TestFaceIndex_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	faces := randomFaces(20, 16, 11)

	idx := NewFaceIndex()
	idx.Build(faces)
	if err := idx.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if !FaceIndexExists(dir) {
		t.Fatal("expected index files to exist after Save")
	}

	loaded, err := LoadFaceIndex(dir)
	if err != nil {
		t.Fatalf("LoadFaceIndex() error = %v", err)
	}
	if loaded.Len() != 20 {
		t.Errorf("loaded Len() = %d, want 20", loaded.Len())
	}

	tagID, dist, err := loaded.Nearest(faces[5].Embedding)
	if err != nil {
		t.Fatalf("Nearest() error = %v", err)
	}
	if tagID != faces[5].TagID || dist != 0 {
		t.Errorf("Nearest() = %s, %v; want %s, 0", tagID, dist, faces[5].TagID)
	}

	// No temp files left behind
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected exactly 2 files in index dir, got %d", len(entries))
	}
}

func TestFaceIndex_SaveEmptyRemovesFiles(t *testing.T) {
	dir := t.TempDir()
	idx := NewFaceIndex()
	idx.Build(randomFaces(3, 4, 5))
	if err := idx.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	empty := NewFaceIndex()
	if err := empty.Save(dir); err != nil {
		t.Fatalf("Save() of empty index error = %v", err)
	}
	if FaceIndexExists(dir) {
		t.Error("expected index files to be removed for an empty index")
	}
}

func TestFaceIndexExists_Partial(t *testing.T) {
	dir := t.TempDir()
	if FaceIndexExists(dir) {
		t.Error("empty directory should not have an index")
	}

	if err := os.WriteFile(filepath.Join(dir, FaceIndexTagIDsFile), []byte("[]"), 0o600); err != nil {
		t.Fatal(err)
	}
	if FaceIndexExists(dir) {
		t.Error("index should require both graph and tag ID files")
	}
}

func TestLoadFaceIndex_TagIDCountMismatch(t *testing.T) {
	dir := t.TempDir()
	idx := NewFaceIndex()
	idx.Build(randomFaces(4, 4, 9))
	if err := idx.Save(dir); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, FaceIndexTagIDsFile), []byte(`["`+uuid.NewString()+`"]`), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFaceIndex(dir); err == nil {
		t.Error("expected error when tag ID list does not match graph size")
	}
}
