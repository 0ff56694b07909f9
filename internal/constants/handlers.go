package constants

// Handler constants
const (
	// DefaultSimilarLimit is the default number of faces returned by a similarity query
	DefaultSimilarLimit = 20

	// MaxSimilarLimit caps the number of faces returned by a similarity query
	MaxSimilarLimit = 500

	// DefaultBatchLimit is the default number of photos a batch run classifies (0 = all)
	DefaultBatchLimit = 0

	// MaxUploadSize is the maximum image upload size in bytes (100MB)
	MaxUploadSize = 100 << 20
)
