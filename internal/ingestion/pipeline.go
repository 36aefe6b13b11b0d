// Package ingestion embeds and upserts transcript documents into the
// vector store, reporting a per-record outcome ledger.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/bull/transcript-qa/internal/transcript"
	"github.com/bull/transcript-qa/internal/vectorstore"
)

// DefaultBatchSize is the number of chunks embedded and upserted per
// provider round-trip.
const DefaultBatchSize = 100

// DefaultConcurrency bounds how many batches are in flight at once.
const DefaultConcurrency = 4

// Embedder is the embedding capability the pipeline consumes.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Outcome records the fate of one attempted record. Every input item yields
// exactly one outcome; a document that fails to parse yields a single
// file-level outcome instead.
type Outcome struct {
	FileName string `json:"fileName"`
	ChunkID  string `json:"chunkId,omitempty"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// Result summarizes one document ingestion.
type Result struct {
	Outcomes        []Outcome `json:"results"`
	TotalProcessed  int       `json:"totalProcessed"`
	SuccessfulCount int       `json:"successfulCount"`
}

// Pipeline parses transcript documents, embeds chunks in batches, and
// upserts them. Batch failures are isolated: a failed embedding or upsert
// call marks only that batch's chunks failed.
type Pipeline struct {
	embedder  Embedder
	store     vectorstore.Store
	pool      *ants.Pool
	batchSize int
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithBatchSize sets the per-batch chunk count. Default is 100.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.batchSize = size
		return nil
	}
}

// WithConcurrency sets the batch fan-out limit. Default is 4.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			n = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(n)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates an ingestion pipeline with the given providers.
func NewPipeline(embedder Embedder, store vectorstore.Store, opts ...Option) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if store == nil {
		return nil, fmt.Errorf("store required")
	}

	pool, err := ants.NewPool(DefaultConcurrency)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		embedder:  embedder,
		store:     store,
		pool:      pool,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Release releases the worker pool. The pipeline must not be used after
// calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// batch groups consecutive valid chunks with their slots in the ledger.
type batch struct {
	chunks  []*transcript.Chunk
	indexes []int // positions in the outcome ledger
}

// IngestDocument validates, parses, embeds, and upserts one transcript
// document. Provider failures are captured in the outcome ledger, never
// returned; the error return is reserved for invalid input rejected before
// processing. Cancellation stops scheduling new batches; in-flight batches
// finish and still record their outcomes.
func (p *Pipeline) IngestDocument(ctx context.Context, raw []byte, filename string) (*Result, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, filename)
	}
	if !strings.EqualFold(filepath.Ext(filename), ".json") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, filename)
	}

	items, err := transcript.ParseDocument(raw)
	if err != nil {
		p.logger.Warn("failed to parse document", "file", filename, "error", err)
		return finalize([]Outcome{{
			FileName: filename,
			Success:  false,
			Error:    err.Error(),
		}}), nil
	}

	outcomes := make([]Outcome, len(items))
	var batches []batch
	var current batch

	flush := func() {
		if len(current.chunks) > 0 {
			batches = append(batches, current)
			current = batch{}
		}
	}

	for i, item := range items {
		chunk, convErr := item.ToChunk()
		if convErr != nil {
			outcomes[i] = Outcome{FileName: filename, Success: false, Error: convErr.Error()}
			continue
		}
		current.chunks = append(current.chunks, chunk)
		current.indexes = append(current.indexes, i)
		if len(current.chunks) >= p.batchSize {
			flush()
		}
	}
	flush()

	var wg sync.WaitGroup
	for _, b := range batches {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// Stop scheduling; record the unscheduled chunks as failed.
			p.failBatch(outcomes, b, filename, ctxErr)
			continue
		}

		wg.Add(1)
		b := b
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			p.processBatch(ctx, outcomes, b, filename)
		})
		if submitErr != nil {
			wg.Done()
			p.failBatch(outcomes, b, filename, submitErr)
		}
	}
	wg.Wait()

	result := finalize(outcomes)
	p.logger.Info("document ingested",
		"file", filename,
		"processed", result.TotalProcessed,
		"successful", result.SuccessfulCount,
	)
	return result, nil
}

// processBatch embeds and upserts one batch. Steps within a batch are
// strictly sequential: embed before upsert.
func (p *Pipeline) processBatch(ctx context.Context, outcomes []Outcome, b batch, filename string) {
	texts := make([]string, len(b.chunks))
	for i, chunk := range b.chunks {
		texts[i] = chunk.Text
	}

	embeddings, err := p.embedder.GenerateEmbeddings(ctx, texts)
	if err == nil && len(embeddings) != len(b.chunks) {
		err = fmt.Errorf("embedding result mismatch: expected %d, received %d", len(b.chunks), len(embeddings))
	}
	if err != nil {
		p.logger.Warn("embedding batch failed", "file", filename, "chunks", len(b.chunks), "error", err)
		p.failBatch(outcomes, b, filename, err)
		return
	}

	for i, chunk := range b.chunks {
		chunk.Embedding = embeddings[i]
	}

	if _, err := p.store.Upsert(ctx, b.chunks); err != nil {
		p.logger.Warn("upsert batch failed", "file", filename, "chunks", len(b.chunks), "error", err)
		p.failBatch(outcomes, b, filename, err)
		return
	}

	for i, idx := range b.indexes {
		outcomes[idx] = Outcome{FileName: filename, ChunkID: b.chunks[i].ID, Success: true}
	}
}

// failBatch records one failed outcome per chunk in the batch. Slots are
// disjoint across batches, so concurrent writers never share an index.
func (p *Pipeline) failBatch(outcomes []Outcome, b batch, filename string, err error) {
	for i, idx := range b.indexes {
		outcomes[idx] = Outcome{
			FileName: filename,
			ChunkID:  b.chunks[i].ID,
			Success:  false,
			Error:    err.Error(),
		}
	}
}

func finalize(outcomes []Outcome) *Result {
	successful := 0
	for _, o := range outcomes {
		if o.Success {
			successful++
		}
	}
	return &Result{
		Outcomes:        outcomes,
		TotalProcessed:  len(outcomes),
		SuccessfulCount: successful,
	}
}
