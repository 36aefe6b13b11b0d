package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"

	"github.com/bull/transcript-qa/internal/transcript"
)

// DefaultCollection is the Qdrant collection holding transcript chunks.
const DefaultCollection = "transcripts"

// episodeDateFormat is how episode dates are stored in the payload.
// Dates are matched as keywords, so equality filtering only works if every
// writer uses this format.
const episodeDateFormat = "2006-01-02"

// upsertBatchSize bounds a single Qdrant upsert request.
const upsertBatchSize = 100

// QdrantStore implements Store on a Qdrant collection, with connection
// management and health checks.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

var _ Store = (*QdrantStore)(nil)

// NewQdrantStore creates a new Qdrant-backed store with health validation.
// It performs a health check with retry on startup and fails fast if Qdrant
// is unreachable. An empty collection name selects DefaultCollection.
func NewQdrantStore(host string, port int, collection string) (*QdrantStore, error) {
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	store := &QdrantStore{
		client:     client,
		collection: collection,
	}

	ctx := context.Background()
	if err := store.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return store, nil
}

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStore) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, exponentialBackoff)
}

// Health performs a single health check against Qdrant.
func (s *QdrantStore) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection ensures the transcript collection exists with 1536-dim
// cosine vectors and payload indexes on every filterable field.
// Idempotent - safe to call multiple times.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, name := range collections {
		if name == s.collection {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     transcript.VectorDimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	if err := s.createPayloadIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create payload indexes: %w", err)
	}

	return nil
}

// createPayloadIndexes creates indexes for all filterable fields.
// Without these indexes, filtered search falls back to full payload scans.
func (s *QdrantStore) createPayloadIndexes(ctx context.Context) error {
	fields := []string{
		"episode_number",
		"episode_title",
		"episode_date",
		"chunk_topic",
		"topics",
	}

	for _, field := range fields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}

	return nil
}

// ClearCollection deletes all points and recreates the collection.
// Used by the ingest CLI for full re-index runs.
func (s *QdrantStore) ClearCollection(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return s.EnsureCollection(ctx)
}

// Close closes the Qdrant client connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Upsert stores chunks with their embeddings, batched at 100 points per
// request with exponential backoff retry.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []*transcript.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	for i, chunk := range chunks {
		if len(chunk.Embedding) != transcript.VectorDimension {
			return nil, fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(chunk.Embedding), transcript.VectorDimension)
		}
	}

	ids := make([]string, 0, len(chunks))
	for i := 0; i < len(chunks); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(chunks))
		batch := chunks[i:end]
		points := make([]*qdrant.PointStruct, len(batch))

		for j, chunk := range batch {
			points[j] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(chunk.ID),
				Vectors: qdrant.NewVectors(chunk.Embedding...),
				Payload: qdrant.NewValueMap(chunkPayload(chunk)),
			}
		}

		if err := s.upsertWithRetry(ctx, points); err != nil {
			return ids, fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
		for _, chunk := range batch {
			ids = append(ids, chunk.ID)
		}
	}

	return ids, nil
}

// upsertWithRetry performs an upsert with exponential backoff retry.
func (s *QdrantStore) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
		})
		return err
	}, exponentialBackoff)
}

func chunkPayload(chunk *transcript.Chunk) map[string]any {
	topics := chunk.TopicList()
	topicValues := make([]any, len(topics))
	for i, t := range topics {
		topicValues[i] = t
	}

	return map[string]any{
		"text":           chunk.Text,
		"start_time":     chunk.StartTime,
		"end_time":       chunk.EndTime,
		"episode_date":   chunk.EpisodeDate.Format(episodeDateFormat),
		"episode_number": chunk.EpisodeNumber,
		"episode_title":  chunk.EpisodeTitle,
		"chunk_topic":    chunk.ChunkTopic,
		"topics":         topicValues,
	}
}

// Search performs a filtered similarity query and an exact count of all
// matches for the same filter.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, filter *Filter, limit, offset int) (*Page, error) {
	if len(vector) != transcript.VectorDimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), transcript.VectorDimension)
	}

	qf := buildQdrantFilter(filter)

	query := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         qf,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	}
	if offset > 0 {
		query.Offset = qdrant.PtrOf(uint64(offset))
	}

	results, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	total, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter:         qf,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count matches: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, result := range results {
		hits = append(hits, Hit{
			Chunk: chunkFromPayload(result.Id.GetUuid(), result.Payload),
			Score: result.Score,
		})
	}

	return &Page{Hits: hits, Total: int(total)}, nil
}

// Count returns the number of stored chunks.
func (s *QdrantStore) Count(ctx context.Context) (uint64, error) {
	collection, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection: %w", err)
	}
	return collection.GetPointsCount(), nil
}

func buildQdrantFilter(filter *Filter) *qdrant.Filter {
	if filter.Empty() {
		return nil
	}

	var must []*qdrant.Condition
	if filter.EpisodeNumber != nil {
		must = append(must, qdrant.NewMatch("episode_number", strconv.Itoa(*filter.EpisodeNumber)))
	}
	if filter.EpisodeTitle != "" {
		must = append(must, qdrant.NewMatch("episode_title", filter.EpisodeTitle))
	}
	if filter.EpisodeDate != nil {
		must = append(must, qdrant.NewMatch("episode_date", filter.EpisodeDate.Format(episodeDateFormat)))
	}
	if filter.ChunkTopic != "" {
		must = append(must, qdrant.NewMatch("chunk_topic", filter.ChunkTopic))
	}
	if filter.Topic != "" {
		// topics is stored as a list; a keyword match hits any element.
		must = append(must, qdrant.NewMatch("topics", filter.Topic))
	}

	return &qdrant.Filter{Must: must}
}

func chunkFromPayload(id string, payload map[string]*qdrant.Value) transcript.Chunk {
	date, err := time.Parse(episodeDateFormat, payload["episode_date"].GetStringValue())
	if err != nil {
		date = time.Time{}
	}

	var topics []string
	if v, ok := payload["topics"]; ok && v.GetListValue() != nil {
		for _, item := range v.GetListValue().Values {
			topics = append(topics, item.GetStringValue())
		}
	}

	return transcript.Chunk{
		ID:            id,
		Text:          payload["text"].GetStringValue(),
		StartTime:     payload["start_time"].GetDoubleValue(),
		EndTime:       payload["end_time"].GetDoubleValue(),
		EpisodeDate:   date,
		EpisodeNumber: payload["episode_number"].GetStringValue(),
		EpisodeTitle:  payload["episode_title"].GetStringValue(),
		ChunkTopic:    payload["chunk_topic"].GetStringValue(),
		Topics:        strings.Join(topics, ", "),
	}
}
