package ingestion

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Runner performs the startup ingestion pass over a directory of transcript
// JSON files and resolves a one-shot completion signal when done. The
// signal fires exactly once, even on partial failure or when the directory
// is missing; downstream consumers (the question scheduler) block on it.
type Runner struct {
	pipeline *Pipeline
	dir      string
	logger   *slog.Logger

	done chan struct{}
	once sync.Once
}

// NewRunner creates a startup runner over dir.
func NewRunner(pipeline *Pipeline, dir string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		pipeline: pipeline,
		dir:      dir,
		logger:   logger.With("component", "ingestion-runner"),
		done:     make(chan struct{}),
	}
}

// Done returns a channel closed once the startup pass has finished.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Completed reports whether the startup pass has finished.
func (r *Runner) Completed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Run ingests every *.json file in the directory. Per-file failures are
// logged and do not stop the pass. The completion signal is resolved on
// every exit path.
func (r *Runner) Run(ctx context.Context) error {
	defer r.once.Do(func() { close(r.done) })

	paths, err := filepath.Glob(filepath.Join(r.dir, "*.json"))
	if err != nil {
		r.logger.Error("failed to scan transcript directory", "dir", r.dir, "error", err)
		return err
	}
	if len(paths) == 0 {
		r.logger.Info("no transcript files found", "dir", r.dir)
		return nil
	}

	r.logger.Info("found transcript files to process", "count", len(paths))

	for _, path := range paths {
		if ctx.Err() != nil {
			r.logger.Info("startup ingestion cancelled", "remaining", path)
			return ctx.Err()
		}

		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			r.logger.Error("failed to read transcript file", "file", path, "error", readErr)
			continue
		}

		result, ingestErr := r.pipeline.IngestDocument(ctx, raw, filepath.Base(path))
		if ingestErr != nil {
			r.logger.Error("failed to ingest transcript file", "file", path, "error", ingestErr)
			continue
		}

		r.logger.Info("processed transcript file",
			"file", path,
			"processed", result.TotalProcessed,
			"successful", result.SuccessfulCount,
		)
	}

	return nil
}
