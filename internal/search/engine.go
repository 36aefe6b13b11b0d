package search

import (
	"context"
	"log/slog"
	"sort"

	"github.com/bull/transcript-qa/internal/vectorstore"
)

// maxTopK caps the similarity search size regardless of the requested
// MaxResults, to bound provider cost.
const maxTopK = 100

// Intent search defaults, and the single broadened fallback pass: no
// metadata filters, a lower cap, a stricter relevance threshold.
const (
	intentMaxResults            = 5
	intentMinRelevance  float32 = 0.7
	fallbackMaxResults          = 3
	fallbackMinRelevance float32 = 0.8
)

// Embedder is the embedding capability the engine consumes.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Engine executes similarity searches over the vector store.
type Engine struct {
	embedder  Embedder
	store     vectorstore.Store
	extractor *Extractor
	logger    *slog.Logger
}

// NewEngine creates a search engine. The extractor may be nil, in which
// case SearchWithIntent runs without metadata filters.
func NewEngine(embedder Embedder, store vectorstore.Store, extractor *Extractor, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		embedder:  embedder,
		store:     store,
		extractor: extractor,
		logger:    logger.With("component", "search"),
	}
}

// closerThan is the relevance comparator. Scores are cosine similarities
// (see vectorstore.Hit): higher means closer. Every threshold and ranking
// comparison in this package goes through here or atLeast.
func closerThan(a, b float32) bool {
	return a > b
}

func atLeast(score, threshold float32) bool {
	return score >= threshold
}

// Search embeds the query, applies the metadata filter built from the
// present fields, and returns up to min(MaxResults, 100) results ordered
// by chronological start time. When MinRelevanceScore is set, hits below
// it are dropped; the reported total still counts every metadata match.
func (e *Engine) Search(ctx context.Context, q Query) Result {
	embeddings, err := e.embedder.GenerateEmbeddings(ctx, []string{q.QueryText})
	if err != nil || len(embeddings) == 0 {
		e.logger.Error("failed to embed search query", "error", err)
		return failure("failed to generate query embedding")
	}

	limit := maxTopK
	if q.MaxResults != nil && *q.MaxResults > 0 && *q.MaxResults < maxTopK {
		limit = *q.MaxResults
	}

	page, err := e.store.Search(ctx, embeddings[0], buildFilter(q), limit, 0)
	if err != nil {
		e.logger.Error("vector search failed", "error", err)
		return failure("an error occurred during search")
	}

	records := make([]Record, 0, len(page.Hits))
	for _, hit := range page.Hits {
		if q.MinRelevanceScore != nil && !atLeast(hit.Score, *q.MinRelevanceScore) {
			continue
		}
		records = append(records, Record{
			ID:             hit.Chunk.ID,
			Text:           hit.Chunk.Text,
			EpisodeNumber:  hit.Chunk.EpisodeNumber,
			EpisodeDate:    hit.Chunk.EpisodeDate,
			StartTime:      hit.Chunk.StartTime,
			EndTime:        hit.Chunk.EndTime,
			EpisodeTitle:   hit.Chunk.EpisodeTitle,
			ChunkTopic:     hit.Chunk.ChunkTopic,
			Topics:         hit.Chunk.Topics,
			RelevanceScore: hit.Score,
		})
	}

	// Results are presented chronologically; intent search re-ranks by
	// relevance on top of this.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartTime < records[j].StartTime
	})

	return success(records, page.Total)
}

// SearchWithIntent extracts metadata filters from free text, searches with
// a relevance threshold, and falls back to exactly one broader, stricter
// pass when the filtered result set is empty.
func (e *Engine) SearchWithIntent(ctx context.Context, userIntent string) Result {
	var meta Metadata
	if e.extractor != nil {
		meta = e.extractor.Extract(ctx, userIntent)
	}

	q := Query{
		QueryText:         userIntent,
		MaxResults:        intPtr(intentMaxResults),
		MinRelevanceScore: floatPtr(intentMinRelevance),
		EpisodeNumber:     meta.EpisodeNumber,
		EpisodeDate:       meta.EpisodeDate,
	}
	if meta.EpisodeTitle != nil {
		q.EpisodeTitle = *meta.EpisodeTitle
	}
	if meta.Topic != nil {
		q.Topic = *meta.Topic
	}

	result := e.Search(ctx, q)
	if !result.Success {
		return result
	}

	ranked := rankByRelevance(result.Response.Results, intentMinRelevance, intentMaxResults)
	if len(ranked) > 0 {
		return success(ranked, len(ranked))
	}

	e.logger.Info("no results with metadata filters, attempting broader search")

	result = e.Search(ctx, Query{
		QueryText:         userIntent,
		MaxResults:        intPtr(fallbackMaxResults),
		MinRelevanceScore: floatPtr(fallbackMinRelevance),
	})
	if !result.Success {
		return result
	}

	ranked = rankByRelevance(result.Response.Results, fallbackMinRelevance, fallbackMaxResults)
	return success(ranked, len(ranked))
}

// rankByRelevance drops results below the threshold, sorts the remainder by
// descending relevance, and truncates to max.
func rankByRelevance(records []Record, minScore float32, max int) []Record {
	kept := make([]Record, 0, len(records))
	for _, r := range records {
		if atLeast(r.RelevanceScore, minScore) {
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return closerThan(kept[i].RelevanceScore, kept[j].RelevanceScore)
	})
	if len(kept) > max {
		kept = kept[:max]
	}
	return kept
}

func buildFilter(q Query) *vectorstore.Filter {
	return &vectorstore.Filter{
		EpisodeNumber: q.EpisodeNumber,
		EpisodeTitle:  q.EpisodeTitle,
		EpisodeDate:   q.EpisodeDate,
		ChunkTopic:    q.ChunkTopic,
		Topic:         q.Topic,
	}
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float32) *float32 { return &v }
