package vectorstore

import (
	"context"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/bull/transcript-qa/internal/transcript"
)

// MemoryStore is an in-memory Store using brute-force cosine similarity.
// It backs unit tests and local development; the durable swap-in is
// QdrantStore behind the same contract.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[string]*transcript.Chunk
	order  []string // insertion order, for deterministic iteration
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[string]*transcript.Chunk)}
}

// Upsert stores chunks, overwriting records with the same ID.
func (s *MemoryStore) Upsert(ctx context.Context, chunks []*transcript.Chunk) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		c := *chunk
		if _, exists := s.chunks[c.ID]; !exists {
			s.order = append(s.order, c.ID)
		}
		s.chunks[c.ID] = &c
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// Search scores every matching chunk against vector and returns the
// requested page ordered by descending similarity.
func (s *MemoryStore) Search(ctx context.Context, vector []float32, filter *Filter, limit, offset int) (*Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		chunk *transcript.Chunk
		score float32
	}

	var matches []scored
	for _, id := range s.order {
		chunk := s.chunks[id]
		if !matchesFilter(chunk, filter) {
			continue
		}
		matches = append(matches, scored{chunk: chunk, score: cosineSimilarity(vector, chunk.Embedding)})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	total := len(matches)
	if offset > total {
		offset = total
	}
	matches = matches[offset:]
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		c := *m.chunk
		c.Embedding = nil // match the Qdrant backend, which omits vectors
		hits = append(hits, Hit{Chunk: c, Score: m.score})
	}
	return &Page{Hits: hits, Total: total}, nil
}

// Count returns the number of stored chunks.
func (s *MemoryStore) Count(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.chunks)), nil
}

// Health always succeeds; the in-memory store has no remote dependency.
func (s *MemoryStore) Health(ctx context.Context) error {
	return nil
}

func matchesFilter(chunk *transcript.Chunk, filter *Filter) bool {
	if filter.Empty() {
		return true
	}
	if filter.EpisodeNumber != nil {
		if chunk.EpisodeNumber != strconv.Itoa(*filter.EpisodeNumber) {
			return false
		}
	}
	if filter.EpisodeTitle != "" && chunk.EpisodeTitle != filter.EpisodeTitle {
		return false
	}
	if filter.EpisodeDate != nil {
		fy, fm, fd := filter.EpisodeDate.Date()
		cy, cm, cd := chunk.EpisodeDate.Date()
		if fy != cy || fm != cm || fd != cd {
			return false
		}
	}
	if filter.ChunkTopic != "" && chunk.ChunkTopic != filter.ChunkTopic {
		return false
	}
	if filter.Topic != "" && !chunk.HasTopic(filter.Topic) {
		return false
	}
	return true
}

// cosineSimilarity matches the Qdrant cosine score: 1.0 for identical
// direction, lower for farther vectors.
func cosineSimilarity(a, b []float32) float32 {
	n := min(len(a), len(b))
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
