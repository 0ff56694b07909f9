// Package classifier runs the face pipeline on photos: detect, embed, match
// against known faces and write face tags.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/phototag/internal/constants"
	"github.com/kozaktomas/phototag/internal/database"
	"github.com/kozaktomas/phototag/internal/facematch"
	"github.com/kozaktomas/phototag/internal/lock"
	"github.com/kozaktomas/phototag/internal/observability"
	"github.com/kozaktomas/phototag/internal/vision"
)

// ModelProvider returns loaded face models
type ModelProvider interface {
	Get(ctx context.Context) (*vision.Models, error)
}

// FaceFinder returns the stored face nearest to an embedding
type FaceFinder interface {
	Nearest(ctx context.Context, libraryID uuid.UUID, embedding []float32) (facematch.Match, error)
	// Scan compares against the library's stored faces only
	Scan(ctx context.Context, libraryID uuid.UUID, embedding []float32) (facematch.Match, error)
}

type Options struct {
	MinScore float64 // detections at or below this confidence are dropped
	IndexDir string  // directory holding the face index and retrained version files
}

// Classifier runs face classification against the photo library
type Classifier struct {
	photos  database.PhotoReader
	tags    database.TagRepository
	results database.FaceResultWriter
	models  ModelProvider
	matcher FaceFinder
	locker  lock.Locker
	opts    Options

	now        func() time.Time
	randSuffix func() int
}

func New(
	photos database.PhotoReader,
	tags database.TagRepository,
	results database.FaceResultWriter,
	models ModelProvider,
	matcher FaceFinder,
	locker lock.Locker,
	opts Options,
) *Classifier {
	if opts.MinScore <= 0 {
		opts.MinScore = constants.DefaultMinScore
	}
	return &Classifier{
		photos:     photos,
		tags:       tags,
		results:    results,
		models:     models,
		matcher:    matcher,
		locker:     locker,
		opts:       opts,
		now:        time.Now,
		randSuffix: func() int { return rand.IntN(constants.UnknownPersonRange) },
	}
}

// FaceResult describes one face found in an image
type FaceResult struct {
	Box        [4]int    `json:"box"`
	Confidence float64   `json:"confidence"`
	Embedding  []float32 `json:"embedding,omitempty"`

	// Set when run against a stored photo
	TagID    uuid.UUID          `json:"tag_id,omitzero"`
	TagName  string             `json:"tag_name,omitempty"`
	NewTag   bool               `json:"new_tag,omitempty"`
	Distance float64            `json:"closest_distance,omitempty"`
	Strategy facematch.Strategy `json:"strategy,omitempty"`
}

// Result is the outcome of classifying one image
type Result struct {
	PhotoID      uuid.UUID    `json:"photo_id,omitzero"`
	Path         string       `json:"path"`
	ModelVersion int          `json:"model_version"`
	Faces        []FaceResult `json:"faces"`
}

// RunOnFile detects and embeds faces in an image file without touching the database.
func (c *Classifier) RunOnFile(ctx context.Context, path string) (*Result, error) {
	img, err := vision.LoadImage(path)
	if err != nil {
		return nil, err
	}
	models, err := c.models.Get(ctx)
	if err != nil {
		return nil, err
	}

	faces, err := c.detectAndEmbed(ctx, img, models)
	if err != nil {
		return nil, err
	}
	return &Result{Path: path, ModelVersion: models.Version, Faces: faces}, nil
}

// RunOnPhoto classifies a stored photo and replaces its computer face tags.
func (c *Classifier) RunOnPhoto(ctx context.Context, photoID uuid.UUID) (*Result, error) {
	photo, err := c.photos.GetPhoto(ctx, photoID)
	if err != nil {
		return nil, fmt.Errorf("get photo %s: %w", photoID, err)
	}

	result, err := c.classifyPhoto(ctx, photo)
	if err != nil {
		observability.PhotosClassified.WithLabelValues("error").Inc()
		return nil, err
	}
	observability.PhotosClassified.WithLabelValues("ok").Inc()
	return result, nil
}

func (c *Classifier) classifyPhoto(ctx context.Context, photo *database.Photo) (*Result, error) {
	img, err := vision.LoadImage(photo.BaseImagePath)
	if err != nil {
		return nil, err
	}
	models, err := c.models.Get(ctx)
	if err != nil {
		return nil, err
	}

	faces, err := c.detectAndEmbed(ctx, img, models)
	if err != nil {
		return nil, err
	}

	retrained, err := ReadRetrainedVersion(c.opts.IndexDir)
	if err != nil {
		return nil, err
	}

	// Match before the old tags are cleared, so a re-run can find its own previous faces
	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	photoTags := make([]database.PhotoTag, 0, len(faces))
	for i := range faces {
		f := &faces[i]
		tag, err := c.resolveTag(ctx, photo.LibraryID, f)
		if err != nil {
			return nil, err
		}
		f.TagID = tag.ID
		f.TagName = tag.Name

		pos, err := facematch.NormalizeBox(f.Box, width, height)
		if err != nil {
			return nil, err
		}
		extra, err := database.EncodeFaceExtraData(f.Embedding)
		if err != nil {
			return nil, err
		}

		photoTags = append(photoTags, database.PhotoTag{
			TagID:                 tag.ID,
			Source:                database.SourceComputer,
			Confidence:            f.Confidence,
			Significance:          f.Confidence,
			PositionX:             pos.X,
			PositionY:             pos.Y,
			SizeX:                 pos.W,
			SizeY:                 pos.H,
			ModelVersion:          models.Version,
			RetrainedModelVersion: retrained,
			ExtraData:             extra,
			Embedding:             f.Embedding,
		})
	}

	if err := c.results.ReplaceFaceTags(ctx, photo.ID, photoTags, c.now().UTC(), models.Version); err != nil {
		return nil, fmt.Errorf("save face tags: %w", err)
	}

	slog.Info("face classifier finished", "photo_id", photo.ID, "faces", len(faces))
	return &Result{PhotoID: photo.ID, Path: photo.BaseImagePath, ModelVersion: models.Version, Faces: faces}, nil
}

// detectAndEmbed finds faces above the minimum score and embeds each one.
// Faces that cannot be cropped or embedded are dropped.
func (c *Classifier) detectAndEmbed(ctx context.Context, img image.Image, models *vision.Models) ([]FaceResult, error) {
	start := time.Now()
	detected, err := models.Detector.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}
	observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	faces := make([]FaceResult, 0, len(detected))
	for _, d := range detected {
		if float32(d.Confidence) <= float32(c.opts.MinScore) {
			continue
		}

		start = time.Now()
		crop, err := vision.CropFace(img, d.Box, constants.CropMargin)
		if err != nil {
			slog.Warn("skipping face", "box", d.Box, "error", err)
			continue
		}
		embedding, err := models.Embedder.Embed(ctx, crop)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("skipping face, embedding failed", "box", d.Box, "error", err)
			continue
		}
		observability.InferenceDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())

		faces = append(faces, FaceResult{Box: d.Box, Confidence: d.Confidence, Embedding: embedding})
	}

	observability.FacesDetected.Add(float64(len(faces)))
	return faces, nil
}

// resolveTag reuses the nearest known face's tag when close enough,
// otherwise creates a new unknown person tag.
func (c *Classifier) resolveTag(ctx context.Context, libraryID uuid.UUID, f *FaceResult) (*database.Tag, error) {
	start := time.Now()
	match, err := c.matcher.Nearest(ctx, libraryID, f.Embedding)
	if err != nil {
		return nil, fmt.Errorf("match face: %w", err)
	}

	tag, err := c.matchedTag(ctx, libraryID, match)
	if err != nil {
		return nil, err
	}
	if tag == nil && match.Strategy == facematch.StrategyIndex && match.Within(constants.DistanceThreshold) {
		// The index spans all libraries and its hit belongs to another one
		slog.Debug("indexed match outside library, scanning library", "tag_id", match.TagID, "library_id", libraryID)
		if match, err = c.matcher.Scan(ctx, libraryID, f.Embedding); err != nil {
			return nil, fmt.Errorf("match face: %w", err)
		}
		if tag, err = c.matchedTag(ctx, libraryID, match); err != nil {
			return nil, err
		}
	}
	observability.InferenceDuration.WithLabelValues("match").Observe(time.Since(start).Seconds())

	f.Distance = match.Distance
	f.Strategy = match.Strategy
	if match.TagID != uuid.Nil {
		observability.MatchDistance.Observe(match.Distance)
	}

	if tag != nil {
		slog.Debug("matched face", "tag", tag.Name, "distance", match.Distance)
		observability.FacesMatched.WithLabelValues("reused").Inc()
		return tag, nil
	}

	name := fmt.Sprintf(constants.UnknownPersonFormat, c.randSuffix())
	tag, err = c.tags.GetOrCreateTag(ctx, libraryID, name, database.TagTypeFace, database.SourceComputer)
	if err != nil {
		return nil, fmt.Errorf("create face tag: %w", err)
	}
	f.NewTag = true
	observability.FacesMatched.WithLabelValues("created").Inc()
	return tag, nil
}

// matchedTag returns the library's face tag for a match within the distance
// threshold, or nil when the match is too far or names a tag outside the library.
func (c *Classifier) matchedTag(ctx context.Context, libraryID uuid.UUID, match facematch.Match) (*database.Tag, error) {
	if !match.Within(constants.DistanceThreshold) {
		return nil, nil
	}
	tag, err := c.tags.GetTag(ctx, libraryID, match.TagID, database.TagTypeFace)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get matched tag: %w", err)
	}
	return tag, nil
}
