package database

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
	"github.com/google/uuid"
)

// ErrIndexEmpty is returned when searching an index with no vectors.
var ErrIndexEmpty = errors.New("face index is empty")

// FaceIndex wraps the HNSW graph for face embedding search.
// Graph keys are positions into tagIDs, mirroring the on-disk layout of a
// graph file plus a JSON list mapping index position to tag ID.
type FaceIndex struct {
	graph  *hnsw.Graph[int]
	tagIDs []uuid.UUID
	mu     sync.RWMutex
}

// NewFaceIndex creates a new empty face index.
func NewFaceIndex() *FaceIndex {
	return &FaceIndex{}
}

func newFaceGraph() *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Build replaces the index contents with the given face embeddings.
// Embeddings whose length differs from the first one are skipped.
// Returns the number of indexed faces.
func (h *FaceIndex) Build(faces []FaceEmbedding) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.graph = nil
	h.tagIDs = nil

	dim := 0
	var nodes []hnsw.Node[int]
	var tagIDs []uuid.UUID
	for i := range faces {
		emb := faces[i].Embedding
		if len(emb) == 0 {
			continue
		}
		if dim == 0 {
			dim = len(emb)
		}
		if len(emb) != dim {
			continue
		}
		nodes = append(nodes, hnsw.MakeNode(len(tagIDs), emb))
		tagIDs = append(tagIDs, faces[i].TagID)
	}

	if len(nodes) == 0 {
		return 0
	}

	g := newFaceGraph()
	g.Add(nodes...)

	h.graph = g
	h.tagIDs = tagIDs
	return len(tagIDs)
}

// Nearest returns the tag of the closest indexed face and its Euclidean distance.
func (h *FaceIndex) Nearest(query []float32) (uuid.UUID, float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil || len(h.tagIDs) == 0 {
		return uuid.Nil, 0, ErrIndexEmpty
	}
	if dims := h.graph.Dims(); dims != len(query) {
		return uuid.Nil, 0, fmt.Errorf("query has %d dimensions, index has %d", len(query), dims)
	}

	neighbors := h.graph.Search(query, 1)
	if len(neighbors) == 0 {
		return uuid.Nil, 0, ErrIndexEmpty
	}

	n := neighbors[0]
	if n.Key < 0 || n.Key >= len(h.tagIDs) {
		return uuid.Nil, 0, fmt.Errorf("index key %d outside tag ID list (%d entries)", n.Key, len(h.tagIDs))
	}

	return h.tagIDs[n.Key], EuclideanDistance(query, n.Value), nil
}

// Len returns the number of indexed faces.
func (h *FaceIndex) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.tagIDs)
}

// FaceIndexExists reports whether both index files are present in dir.
func FaceIndexExists(dir string) bool {
	for _, name := range []string{FaceIndexFile, FaceIndexTagIDsFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

// Save writes the graph and tag ID list into dir. Each file is written to a
// temporary name first and renamed into place.
func (h *FaceIndex) Save(dir string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	indexPath := filepath.Join(dir, FaceIndexFile)
	tagIDsPath := filepath.Join(dir, FaceIndexTagIDsFile)

	if h.graph == nil {
		// Nothing to search; remove stale files so matching falls back to a scan.
		_ = os.Remove(indexPath)
		_ = os.Remove(tagIDsPath)
		return nil
	}

	if err := writeFileAtomic(indexPath, func(f *os.File) error {
		return h.graph.Export(f)
	}); err != nil {
		return fmt.Errorf("write HNSW graph: %w", err)
	}

	ids := make([]string, len(h.tagIDs))
	for i, id := range h.tagIDs {
		ids[i] = id.String()
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal tag IDs: %w", err)
	}
	if err := writeFileAtomic(tagIDsPath, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	}); err != nil {
		return fmt.Errorf("write tag IDs: %w", err)
	}

	return nil
}

// LoadFaceIndex reads the graph and tag ID list from dir.
func LoadFaceIndex(dir string) (*FaceIndex, error) {
	indexPath := filepath.Join(dir, FaceIndexFile)
	tagIDsPath := filepath.Join(dir, FaceIndexTagIDsFile)

	f, err := os.Open(indexPath) //nolint:gosec // path is from trusted config
	if err != nil {
		return nil, fmt.Errorf("open HNSW index: %w", err)
	}
	defer f.Close()

	g := newFaceGraph()
	if err := g.Import(bufio.NewReader(f)); err != nil {
		return nil, fmt.Errorf("import HNSW graph: %w", err)
	}
	g.EfSearch = HNSWEfSearch

	data, err := os.ReadFile(tagIDsPath) //nolint:gosec // path is from trusted config
	if err != nil {
		return nil, fmt.Errorf("read tag IDs: %w", err)
	}
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal tag IDs: %w", err)
	}

	tagIDs := make([]uuid.UUID, len(raw))
	for i, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("tag ID %d: %w", i, err)
		}
		tagIDs[i] = id
	}

	if g.Len() != len(tagIDs) {
		return nil, fmt.Errorf("index has %d nodes but %d tag IDs", g.Len(), len(tagIDs))
	}

	return &FaceIndex{graph: g, tagIDs: tagIDs}, nil
}

// writeFileAtomic writes path via a temporary file in the same directory.
func writeFileAtomic(path string, write func(f *os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
