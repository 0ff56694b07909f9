// Package vision detects faces in photos and turns face crops into embeddings.
package vision

import (
	"context"
	"image"
)

// Face is a detected face. Box is x, y, width, height in pixels of the
// oriented image.
type Face struct {
	Box        [4]int
	Confidence float64
}

// FaceDetector finds faces in an image.
type FaceDetector interface {
	Detect(ctx context.Context, img image.Image) ([]Face, error)
}

// FaceEmbedder computes the embedding of a cropped face.
type FaceEmbedder interface {
	Embed(ctx context.Context, face image.Image) ([]float32, error)
}

// Models bundles a detector and embedder with the version stamped on results.
type Models struct {
	Detector FaceDetector
	Embedder FaceEmbedder
	Version  int
}
