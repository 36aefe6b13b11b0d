// Package vectorstore persists embedded transcript chunks and serves
// filtered similarity searches over them.
package vectorstore

import (
	"context"
	"time"

	"github.com/bull/transcript-qa/internal/transcript"
)

// Filter is a conjunction of equality/membership constraints over chunk
// metadata. Nil or zero-valued fields add no clause; an entirely empty
// filter means unfiltered search.
type Filter struct {
	EpisodeNumber *int
	EpisodeTitle  string
	EpisodeDate   *time.Time // matched on the calendar date
	ChunkTopic    string
	Topic         string // membership in the chunk's Topics list
}

// Empty reports whether the filter adds no clauses.
func (f *Filter) Empty() bool {
	if f == nil {
		return true
	}
	return f.EpisodeNumber == nil && f.EpisodeTitle == "" && f.EpisodeDate == nil &&
		f.ChunkTopic == "" && f.Topic == ""
}

// Hit is one similarity match. Score is cosine similarity: both backends
// return values where higher means closer; comparisons against relevance
// thresholds rely on that direction.
type Hit struct {
	Chunk transcript.Chunk
	Score float32
}

// Page is one page of similarity results plus the exact total match count
// for the filter.
type Page struct {
	Hits  []Hit
	Total int
}

// Store is the vector storage contract consumed by the ingestion pipeline
// and the retrieval engine. Implementations must be safe for concurrent use.
type Store interface {
	// Upsert stores chunks with their embeddings, returning the stored IDs
	// in input order. A chunk with an existing ID overwrites that record.
	Upsert(ctx context.Context, chunks []*transcript.Chunk) ([]string, error)

	// Search returns the top matches for vector under filter, ordered by
	// descending similarity, honoring limit and offset.
	Search(ctx context.Context, vector []float32, filter *Filter, limit, offset int) (*Page, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (uint64, error)
}
