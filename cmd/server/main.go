// Package main provides the transcript QA MCP server entry point.
package main

import (
	"context"
	"log"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bull/transcript-qa/internal/completion"
	"github.com/bull/transcript-qa/internal/config"
	"github.com/bull/transcript-qa/internal/embedding"
	"github.com/bull/transcript-qa/internal/ingestion"
	"github.com/bull/transcript-qa/internal/questions"
	"github.com/bull/transcript-qa/internal/search"
	"github.com/bull/transcript-qa/internal/server"
	"github.com/bull/transcript-qa/internal/vectorstore"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	initialDelay, err := cfg.Generation.InitialDelayDuration()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	interval, err := cfg.Generation.IntervalDuration()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// Initialize vector store
	store, err := vectorstore.NewQdrantStore(cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.Collection)
	if err != nil {
		log.Fatalf("failed to connect to Qdrant: %v", err)
	}
	defer store.Close()

	// Ensure collection exists
	if err := store.EnsureCollection(ctx); err != nil {
		log.Fatalf("failed to ensure collection: %v", err)
	}

	// Initialize OpenAI providers
	embeddingClient, err := embedding.NewClient()
	if err != nil {
		log.Fatalf("failed to create embedding client: %v", err)
	}
	embedder := embedding.NewEmbedder(embeddingClient, 0) // Use default batch size
	completer := completion.NewClient(embeddingClient.Client(), cfg.OpenAI.CompletionModel)

	// Search engine with intent metadata extraction
	extractor := search.NewExtractor(completer, logger)
	engine := search.NewEngine(embedder, store, extractor, logger)

	// Question cache, generator, and scheduler
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	questionStore := questions.NewStore(rng, logger)
	generator := questions.NewGenerator(engine, completer, questionStore,
		cfg.Generation.Episodes, cfg.Generation.SampleSize, nil, logger)

	// Startup ingestion pass over the transcript directory
	pipeline, err := ingestion.NewPipeline(embedder, store,
		ingestion.WithBatchSize(cfg.Ingestion.BatchSize),
		ingestion.WithConcurrency(cfg.Ingestion.Concurrency),
		ingestion.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("failed to create ingestion pipeline: %v", err)
	}
	defer pipeline.Release()

	runner := ingestion.NewRunner(pipeline, cfg.Ingestion.DataDir, logger)
	go func() {
		if err := runner.Run(ctx); err != nil {
			logger.Error("startup ingestion failed", "error", err)
		}
	}()

	// Question generation waits for ingestion, then runs periodically
	scheduler := questions.NewScheduler(generator, runner.Done(),
		questions.WithInitialDelay(initialDelay),
		questions.WithInterval(interval),
		questions.WithSchedulerLogger(logger),
	)
	go func() {
		if err := scheduler.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("question scheduler stopped", "error", err)
		}
	}()

	// Create MCP server
	srv := server.NewServer(&server.Config{
		Engine:    engine,
		Questions: questionStore,
		Generator: generator,
		Index:     store,
		Ingestion: runner,
	})

	// Create HTTP server with multiple endpoints
	mux := http.NewServeMux()
	mux.HandleFunc("/health", server.NewHealthHandler(store))
	mux.Handle("/mcp", server.NewHTTPHandler(srv, nil))
	mux.HandleFunc("/", server.NewLandingHandler())

	addr := "0.0.0.0:" + strconv.Itoa(cfg.Server.Port)
	httpServer := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP shutdown error", "error", err)
		}
	}()

	log.Printf("Starting HTTP server on %s (MCP at /mcp, health at /health)", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
}
