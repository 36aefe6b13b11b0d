package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/transcript-qa/internal/completion"
	"github.com/bull/transcript-qa/internal/transcript"
	"github.com/bull/transcript-qa/internal/vectorstore"
)

// stubEmbedder returns the same query vector for every text.
type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, nil
}

// stubCompleter returns a canned response; it also counts calls so tests can
// assert the fallback path does not re-extract metadata.
type stubCompleter struct {
	response string
	err      error
	calls    int
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string, params completion.Params) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

// seedStore fills a memory store with chunks at known similarities to the
// unit query vector {1, 0}.
func seedStore(t *testing.T, store *vectorstore.MemoryStore) {
	t.Helper()

	date := time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)
	chunks := []*transcript.Chunk{
		// score 1.0, late in the episode
		{ID: "exact", Text: "exact match", EpisodeNumber: "510", EpisodeDate: date,
			StartTime: 300, EndTime: 330, ChunkTopic: "Music", Topics: "Music",
			Embedding: []float32{1, 0}},
		// score 0.8, early in the episode
		{ID: "close", Text: "close match", EpisodeNumber: "510", EpisodeDate: date,
			StartTime: 10, EndTime: 40, ChunkTopic: "Movies", Topics: "Movies",
			Embedding: []float32{0.8, 0.6}},
		// score 0.6, different episode
		{ID: "far", Text: "far match", EpisodeNumber: "201", EpisodeDate: date,
			StartTime: 100, EndTime: 130, ChunkTopic: "Food", Topics: "Food",
			Embedding: []float32{0.6, 0.8}},
	}
	_, err := store.Upsert(context.Background(), chunks)
	require.NoError(t, err)
}

func TestEngine_SearchOrdersByStartTime(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedStore(t, store)
	engine := NewEngine(&stubEmbedder{vector: []float32{1, 0}}, store, nil, nil)

	result := engine.Search(context.Background(), Query{QueryText: "anything"})
	require.True(t, result.Success)
	require.Len(t, result.Response.Results, 3)

	// Chronological within the result set, regardless of relevance
	assert.Equal(t, "close", result.Response.Results[0].ID)
	assert.Equal(t, "far", result.Response.Results[1].ID)
	assert.Equal(t, "exact", result.Response.Results[2].ID)
	assert.Equal(t, 3, result.Response.TotalResults)
}

func TestEngine_SearchMaxResults(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedStore(t, store)
	engine := NewEngine(&stubEmbedder{vector: []float32{1, 0}}, store, nil, nil)

	max := 2
	result := engine.Search(context.Background(), Query{QueryText: "anything", MaxResults: &max})
	require.True(t, result.Success)
	require.Len(t, result.Response.Results, 2)

	// The two most similar chunks survive the cut, then sort by time
	assert.Equal(t, "close", result.Response.Results[0].ID)
	assert.Equal(t, "exact", result.Response.Results[1].ID)
	assert.Equal(t, 3, result.Response.TotalResults, "total counts all matches")
}

func TestEngine_SearchMinRelevanceScore(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedStore(t, store)
	engine := NewEngine(&stubEmbedder{vector: []float32{1, 0}}, store, nil, nil)

	minScore := float32(0.7)
	result := engine.Search(context.Background(), Query{QueryText: "anything", MinRelevanceScore: &minScore})
	require.True(t, result.Success)
	require.Len(t, result.Response.Results, 2)
	for _, r := range result.Response.Results {
		assert.GreaterOrEqual(t, r.RelevanceScore, minScore)
	}
	assert.Equal(t, 3, result.Response.TotalResults, "total counts metadata matches, not threshold survivors")
}

func TestEngine_SearchEpisodeFilter(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedStore(t, store)
	engine := NewEngine(&stubEmbedder{vector: []float32{1, 0}}, store, nil, nil)

	episode := 201
	result := engine.Search(context.Background(), Query{QueryText: "anything", EpisodeNumber: &episode})
	require.True(t, result.Success)
	require.Len(t, result.Response.Results, 1)
	assert.Equal(t, "far", result.Response.Results[0].ID)
	assert.Equal(t, "201", result.Response.Results[0].EpisodeNumber)
}

func TestEngine_SearchEmbeddingFailure(t *testing.T) {
	engine := NewEngine(&stubEmbedder{err: errors.New("api down")}, vectorstore.NewMemoryStore(), nil, nil)

	result := engine.Search(context.Background(), Query{QueryText: "anything"})
	assert.False(t, result.Success)
	assert.Equal(t, "failed to generate query embedding", result.ErrorMessage)
	assert.Nil(t, result.Response)
}

func TestEngine_SearchWithIntent(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedStore(t, store)

	completer := &stubCompleter{response: `{"EpisodeNumber": 510}`}
	extractor := NewExtractor(completer, nil)
	engine := NewEngine(&stubEmbedder{vector: []float32{1, 0}}, store, extractor, nil)

	result := engine.SearchWithIntent(context.Background(), "what happened in episode 510?")
	require.True(t, result.Success)
	require.Len(t, result.Response.Results, 2)

	// Intent results are ranked by relevance, best first
	assert.Equal(t, "exact", result.Response.Results[0].ID)
	assert.Equal(t, "close", result.Response.Results[1].ID)
	for _, r := range result.Response.Results {
		assert.GreaterOrEqual(t, r.RelevanceScore, float32(0.7))
		assert.Equal(t, "510", r.EpisodeNumber)
	}
	assert.Equal(t, 1, completer.calls)
}

func TestEngine_SearchWithIntentFallback(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedStore(t, store)

	// Extracted episode matches nothing; the engine broadens exactly once
	completer := &stubCompleter{response: `{"EpisodeNumber": 999}`}
	extractor := NewExtractor(completer, nil)
	engine := NewEngine(&stubEmbedder{vector: []float32{1, 0}}, store, extractor, nil)

	result := engine.SearchWithIntent(context.Background(), "what happened in episode 999?")
	require.True(t, result.Success)

	// The fallback pass drops filters but raises the bar to 0.8
	require.Len(t, result.Response.Results, 2)
	assert.Equal(t, "exact", result.Response.Results[0].ID)
	assert.Equal(t, "close", result.Response.Results[1].ID)
	for _, r := range result.Response.Results {
		assert.GreaterOrEqual(t, r.RelevanceScore, float32(0.8))
	}

	// Metadata extraction ran once; the fallback reuses the raw text
	assert.Equal(t, 1, completer.calls)
}

func TestEngine_SearchWithIntentFallbackEmpty(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	date := time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)
	// Only weak matches: below both thresholds
	_, err := store.Upsert(context.Background(), []*transcript.Chunk{
		{ID: "weak", Text: "weak", EpisodeNumber: "201", EpisodeDate: date,
			Embedding: []float32{0, 1}},
	})
	require.NoError(t, err)

	completer := &stubCompleter{response: `{"EpisodeNumber": 999}`}
	engine := NewEngine(&stubEmbedder{vector: []float32{1, 0}}, store, NewExtractor(completer, nil), nil)

	result := engine.SearchWithIntent(context.Background(), "anything relevant?")
	require.True(t, result.Success)
	assert.Empty(t, result.Response.Results, "a second fallback never runs")
	assert.Equal(t, 0, result.Response.TotalResults)
}

func TestEngine_SearchWithIntentNilExtractor(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedStore(t, store)
	engine := NewEngine(&stubEmbedder{vector: []float32{1, 0}}, store, nil, nil)

	result := engine.SearchWithIntent(context.Background(), "no filters available")
	require.True(t, result.Success)
	assert.NotEmpty(t, result.Response.Results)
}

func TestRankByRelevance(t *testing.T) {
	records := []Record{
		{ID: "a", RelevanceScore: 0.65},
		{ID: "b", RelevanceScore: 0.9},
		{ID: "c", RelevanceScore: 0.7},
		{ID: "d", RelevanceScore: 0.8},
	}

	ranked := rankByRelevance(records, 0.7, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, "b", ranked[0].ID)
	assert.Equal(t, "d", ranked[1].ID)

	// The threshold is inclusive
	ranked = rankByRelevance(records, 0.7, 10)
	require.Len(t, ranked, 3)
	assert.Equal(t, "c", ranked[2].ID)
}
