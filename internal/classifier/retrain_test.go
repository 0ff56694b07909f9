package classifier

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/phototag/internal/database"
	"github.com/kozaktomas/phototag/internal/facematch"
	"github.com/kozaktomas/phototag/internal/vision"
)

func TestReadRetrainedVersion(t *testing.T) {
	dir := t.TempDir()

	v, err := ReadRetrainedVersion(dir)
	if err != nil || v != 0 {
		t.Errorf("missing file: got %d, %v; want 0, nil", v, err)
	}

	if err := os.WriteFile(filepath.Join(dir, database.RetrainedVersionFile), []byte("20240102030405\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	v, err = ReadRetrainedVersion(dir)
	if err != nil {
		t.Fatalf("ReadRetrainedVersion() error = %v", err)
	}
	if v != 20240102030405 {
		t.Errorf("version = %d, want 20240102030405", v)
	}

	for _, bad := range []string{"not a date", "20241340000000", ""} {
		if err := os.WriteFile(filepath.Join(dir, database.RetrainedVersionFile), []byte(bad), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadRetrainedVersion(dir); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestWriteRetrainedVersion_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2023, 11, 30, 23, 59, 58, 0, time.FixedZone("CET", 3600))

	v, err := WriteRetrainedVersion(dir, at)
	if err != nil {
		t.Fatalf("WriteRetrainedVersion() error = %v", err)
	}
	// Stored in UTC
	if v != 20231130225958 {
		t.Errorf("version = %d, want 20231130225958", v)
	}
	got, err := ReadRetrainedVersion(dir)
	if err != nil || got != v {
		t.Errorf("ReadRetrainedVersion() = %d, %v; want %d", got, err, v)
	}
}

func TestRetrain_BuildsIndexUsedByMatcher(t *testing.T) {
	fx := newFixture(t, []vision.Face{{Box: [4]int{10, 10, 30, 30}, Confidence: 0.999}}, vec(3))
	ctx := context.Background()

	known := fx.store.Tags.AddTag(database.Tag{LibraryID: fx.library, Name: "Erin", Type: database.TagTypeFace, Source: database.SourceHuman})
	fx.store.PhotoTags.AddPhotoTag(database.PhotoTag{PhotoID: uuid.New(), TagID: known.ID, Embedding: vec(3)})
	fx.store.PhotoTags.AddPhotoTag(database.PhotoTag{PhotoID: uuid.New(), TagID: known.ID, Embedding: vec(-3)})

	res, err := fx.classifier.Retrain(ctx)
	if err != nil {
		t.Fatalf("Retrain() error = %v", err)
	}
	if res.Faces != 2 {
		t.Errorf("indexed %d faces, want 2", res.Faces)
	}
	if res.Version != 20240501123000 {
		t.Errorf("version = %d, want 20240501123000", res.Version)
	}
	if !database.FaceIndexExists(fx.indexDir) {
		t.Fatal("index files not written")
	}

	// ExtraData is empty on the seeded rows, so only the index can find them
	out, err := fx.classifier.RunOnPhoto(ctx, fx.photo.ID)
	if err != nil {
		t.Fatal(err)
	}
	face := out.Faces[0]
	if face.Strategy != facematch.StrategyIndex || face.TagID != known.ID {
		t.Errorf("expected index match on %s, got %+v", known.ID, face)
	}

	pts, _ := fx.store.PhotoTags.GetPhotoTags(ctx, fx.photo.ID)
	if len(pts) != 1 || pts[0].RetrainedModelVersion != 20240501123000 {
		t.Errorf("expected retrained version stamped on photo tag, got %+v", pts)
	}
}

func TestRetrain_Error(t *testing.T) {
	fx := newFixture(t, nil)
	fx.store.PhotoTags.GetEmbeddingsError = errors.New("db down")

	if _, err := fx.classifier.Retrain(context.Background()); err == nil {
		t.Error("expected error")
	}
	if database.FaceIndexExists(fx.indexDir) {
		t.Error("no index should be written on failure")
	}
}

func TestRunBatch(t *testing.T) {
	fx := newFixture(t, []vision.Face{{Box: [4]int{10, 10, 30, 30}, Confidence: 0.999}})
	ctx := context.Background()

	// A second pending photo whose image is missing, and one already done
	broken := fx.store.Photos.AddPhoto(database.Photo{LibraryID: fx.library, BaseImagePath: "/missing.png", CreatedAt: time.Now().Add(time.Minute)})
	done := time.Now()
	fx.store.Photos.AddPhoto(database.Photo{LibraryID: fx.library, BaseImagePath: "/done.png", FaceClassifierCompletedAt: &done})

	var progress []ProgressInfo
	res, err := fx.classifier.RunBatch(ctx, BatchOptions{
		LibraryID:  &fx.library,
		OnProgress: func(p ProgressInfo) { progress = append(progress, p) },
	})
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if res.Total != 2 || res.Processed != 1 || res.Faces != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(res.Errors))
	}
	if len(progress) != 2 || progress[1].PhotoID != broken.ID || progress[1].Err == nil {
		t.Errorf("unexpected progress %+v", progress)
	}

	// Limit applies to the pending list
	res, err = fx.classifier.RunBatch(ctx, BatchOptions{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 {
		t.Errorf("expected limit 1 to give 1 photo, got %d", res.Total)
	}
}
