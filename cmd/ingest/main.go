// Package main provides the transcript ingestion CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/transcript-qa/internal/config"
	"github.com/bull/transcript-qa/internal/embedding"
	"github.com/bull/transcript-qa/internal/ingestion"
	"github.com/bull/transcript-qa/internal/vectorstore"
)

var (
	configPath string
	clearFirst bool
)

var rootCmd = &cobra.Command{
	Use:   "transcript-ingest",
	Short: "Transcript indexing tool",
	Long:  "CLI tool for managing the podcast transcript index in Qdrant",
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Index transcript JSON files into Qdrant",
	Long: `Parses transcript JSON files, generates embeddings, and upserts the
chunks into Qdrant. With no arguments, all *.json files in the configured
transcript directory are processed.

Environment variables:
  QDRANT_HOST    Qdrant hostname (default: localhost)
  QDRANT_PORT    Qdrant gRPC port (default: 6334)
  OPENAI_API_KEY OpenAI API key for embeddings (required)`,
	RunE: runIngest,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current index status",
	RunE:  runStatus,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	ingestCmd.Flags().BoolVar(&clearFirst, "clear", false, "clear the collection before indexing")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	paths := args
	if len(paths) == 0 {
		paths, err = filepath.Glob(filepath.Join(cfg.Ingestion.DataDir, "*.json"))
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", cfg.Ingestion.DataDir, err)
		}
		if len(paths) == 0 {
			return fmt.Errorf("no transcript files found in %s", cfg.Ingestion.DataDir)
		}
	}

	fmt.Printf("Connecting to Qdrant at %s:%d...\n", cfg.Qdrant.Host, cfg.Qdrant.Port)
	store, err := vectorstore.NewQdrantStore(cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.Collection)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer store.Close()

	if err := store.Health(ctx); err != nil {
		return fmt.Errorf("Qdrant health check failed: %w", err)
	}
	fmt.Println("Qdrant healthy")

	if err := store.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}

	if clearFirst {
		fmt.Println("Clearing existing collection...")
		if err := store.ClearCollection(ctx); err != nil {
			return fmt.Errorf("failed to clear collection: %w", err)
		}
		fmt.Println("Collection cleared")
	}

	embeddingClient, err := embedding.NewClient()
	if err != nil {
		return fmt.Errorf("failed to create embedding client: %w", err)
	}
	embedder := embedding.NewEmbedder(embeddingClient, 0) // Use default batch size

	pipeline, err := ingestion.NewPipeline(embedder, store,
		ingestion.WithBatchSize(cfg.Ingestion.BatchSize),
		ingestion.WithConcurrency(cfg.Ingestion.Concurrency),
		ingestion.WithLogger(slog.Default()),
	)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	fmt.Println()
	fmt.Printf("Indexing %d transcript file(s)...\n", len(paths))

	totalProcessed := 0
	totalSuccessful := 0
	var failures []ingestion.Outcome

	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("  %s: read failed: %v\n", path, err)
			continue
		}

		result, err := pipeline.IngestDocument(ctx, raw, filepath.Base(path))
		if err != nil {
			fmt.Printf("  %s: rejected: %v\n", path, err)
			continue
		}

		fmt.Printf("  %s: %d/%d chunks indexed\n", path, result.SuccessfulCount, result.TotalProcessed)
		totalProcessed += result.TotalProcessed
		totalSuccessful += result.SuccessfulCount
		for _, o := range result.Outcomes {
			if !o.Success {
				failures = append(failures, o)
			}
		}
	}

	fmt.Println()
	fmt.Println("Ingestion complete!")
	fmt.Printf("  Chunks: %d/%d\n", totalSuccessful, totalProcessed)
	fmt.Printf("  Duration: %s\n", time.Since(start).Round(time.Second))

	if len(failures) > 0 {
		fmt.Println()
		fmt.Println("Failed records:")
		for _, f := range failures {
			fmt.Printf("  - %s %s: %s\n", f.FileName, f.ChunkID, f.Error)
		}
	}

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := vectorstore.NewQdrantStore(cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.Collection)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer store.Close()

	count, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count chunks: %w", err)
	}

	fmt.Printf("Collection: %s\n", cfg.Qdrant.Collection)
	fmt.Printf("Indexed chunks: %d\n", count)
	return nil
}
