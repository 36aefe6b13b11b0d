package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/transcript-qa/internal/vectorstore"
)

// fakeEmbedder returns a unit vector per text. Batches containing a text
// with the poison marker fail wholesale, like a provider error would.
type fakeEmbedder struct {
	poison string
}

func (f *fakeEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	for _, text := range texts {
		if f.poison != "" && strings.Contains(text, f.poison) {
			return nil, errors.New("embedding provider unavailable")
		}
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func docItem(text string, episode int) string {
	return fmt.Sprintf(`{
		"text": %q,
		"metadata": {
			"date": "2022-03-15",
			"episode_number": %d,
			"episode_title": "Episode",
			"timestamp_start": 1.0,
			"timestamp_end": 2.0,
			"chunk_topic": "Topic",
			"topics": "Topic, Other"
		}
	}`, text, episode)
}

func buildDoc(items ...string) []byte {
	return []byte("[" + strings.Join(items, ",") + "]")
}

func newTestPipeline(t *testing.T, embedder Embedder, store vectorstore.Store, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(embedder, store, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func TestIngestDocument(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	p := newTestPipeline(t, &fakeEmbedder{}, store)

	doc := buildDoc(
		docItem("first chunk", 510),
		docItem("second chunk", 510),
		docItem("third chunk", 510),
	)

	result, err := p.IngestDocument(context.Background(), doc, "ep510.json")
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalProcessed)
	assert.Equal(t, 3, result.SuccessfulCount)
	require.Len(t, result.Outcomes, 3)
	for _, o := range result.Outcomes {
		assert.True(t, o.Success)
		assert.Equal(t, "ep510.json", o.FileName)
		assert.NotEmpty(t, o.ChunkID)
		assert.Empty(t, o.Error)
	}

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestIngestDocument_RejectsInvalidInput(t *testing.T) {
	p := newTestPipeline(t, &fakeEmbedder{}, vectorstore.NewMemoryStore())
	ctx := context.Background()

	_, err := p.IngestDocument(ctx, nil, "ep510.json")
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = p.IngestDocument(ctx, []byte("[]"), "ep510.txt")
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
}

func TestIngestDocument_MalformedDocument(t *testing.T) {
	p := newTestPipeline(t, &fakeEmbedder{}, vectorstore.NewMemoryStore())

	result, err := p.IngestDocument(context.Background(), []byte(`{"oops": true}`), "bad.json")
	require.NoError(t, err, "parse failures are reported in the ledger, not returned")

	require.Len(t, result.Outcomes, 1)
	assert.False(t, result.Outcomes[0].Success)
	assert.Equal(t, "bad.json", result.Outcomes[0].FileName)
	assert.NotEmpty(t, result.Outcomes[0].Error)
	assert.Equal(t, 1, result.TotalProcessed)
	assert.Equal(t, 0, result.SuccessfulCount)
}

func TestIngestDocument_InvalidItemDoesNotSinkSiblings(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	p := newTestPipeline(t, &fakeEmbedder{}, store)

	// Second item has empty text and fails validation; the rest proceed.
	doc := buildDoc(
		docItem("first chunk", 510),
		docItem("", 510),
		docItem("third chunk", 510),
		docItem("fourth chunk", 510),
	)

	result, err := p.IngestDocument(context.Background(), doc, "ep510.json")
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalProcessed)
	assert.Equal(t, 3, result.SuccessfulCount)
	require.Len(t, result.Outcomes, 4)

	// Outcomes keep input order
	assert.True(t, result.Outcomes[0].Success)
	assert.False(t, result.Outcomes[1].Success)
	assert.NotEmpty(t, result.Outcomes[1].Error)
	assert.True(t, result.Outcomes[2].Success)
	assert.True(t, result.Outcomes[3].Success)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestIngestDocument_BatchFailureIsolated(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	embedder := &fakeEmbedder{poison: "poison"}
	p := newTestPipeline(t, embedder, store, WithBatchSize(2))

	doc := buildDoc(
		docItem("first chunk", 510),
		docItem("second chunk", 510),
		docItem("third chunk poison", 510),
		docItem("fourth chunk", 510),
	)

	result, err := p.IngestDocument(context.Background(), doc, "ep510.json")
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalProcessed)
	assert.Equal(t, 2, result.SuccessfulCount)

	// First batch succeeded, second failed as a unit
	assert.True(t, result.Outcomes[0].Success)
	assert.True(t, result.Outcomes[1].Success)
	assert.False(t, result.Outcomes[2].Success)
	assert.False(t, result.Outcomes[3].Success)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestIngestDocument_Cancelled(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	p := newTestPipeline(t, &fakeEmbedder{}, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc := buildDoc(docItem("first chunk", 510), docItem("second chunk", 510))
	result, err := p.IngestDocument(ctx, doc, "ep510.json")
	require.NoError(t, err)

	// Every record still gets an outcome; none succeeded
	assert.Equal(t, 2, result.TotalProcessed)
	assert.Equal(t, 0, result.SuccessfulCount)
	for _, o := range result.Outcomes {
		assert.False(t, o.Success)
		assert.Contains(t, o.Error, "context canceled")
	}
}
