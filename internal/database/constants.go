package database

// HNSW index parameters for face embeddings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 100
)

// Index file names, relative to the face model directory
const (
	FaceIndexFile        = "faces.hnsw"
	FaceIndexTagIDsFile  = "faces_tag_ids.json"
	RetrainedVersionFile = "retrained_version.txt"
)

// FaceEmbeddingDim is the embedding size of the face network (FaceNet)
const FaceEmbeddingDim = 128

// ExtraDataEmbeddingKey is the extra_data JSON key holding a face embedding
const ExtraDataEmbeddingKey = "facenet_embedding"
