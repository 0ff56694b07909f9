// Package facematch finds the stored face nearest to a new embedding and
// places detected faces on the photo.
package facematch

import "github.com/google/uuid"

// Strategy names how a match was found
type Strategy string

const (
	StrategyIndex Strategy = "index" // nearest neighbour from the prebuilt HNSW index
	StrategyScan  Strategy = "scan"  // linear scan over the library's face tags
	StrategyNone  Strategy = "none"  // nothing to compare against
)

// Match is the nearest stored face. TagID is uuid.Nil when nothing could be compared.
type Match struct {
	TagID    uuid.UUID
	Distance float64
	Strategy Strategy
}

// Within reports whether the match is close enough to reuse its tag.
func (m Match) Within(threshold float64) bool {
	return m.TagID != uuid.Nil && m.Distance < threshold
}
