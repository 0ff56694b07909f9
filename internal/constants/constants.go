// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Face matching constants
const (
	// DistanceThreshold is the maximum Euclidean distance between embeddings
	// for a detected face to reuse an existing face tag
	DistanceThreshold = 10.0

	// NoMatchDistance is reported when no stored face could be compared
	NoMatchDistance = 999.0

	// DefaultMinScore is the minimum detector confidence for a face to be kept
	DefaultMinScore = 0.99

	// CropMargin is the fraction of the box width/height added on each side
	// before a face is cropped for embedding
	CropMargin = 0.3

	// UnknownPersonFormat names a freshly minted face tag
	UnknownPersonFormat = "Unknown person %06d"

	// UnknownPersonRange bounds the random suffix of UnknownPersonFormat
	UnknownPersonRange = 1000000
)

// Lock names shared between processes through Redis
const (
	// LockModelLoad guards loading the detector and embedder into memory
	LockModelLoad = "classifier_face_load_graph"

	// LockModelRetrain guards reading and writing the face index files
	LockModelRetrain = "face_model_retrain"
)
