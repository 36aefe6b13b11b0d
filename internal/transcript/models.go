// Package transcript defines the transcript chunk model and the document
// schema accepted by the ingestion pipeline.
package transcript

import (
	"strings"
	"time"
)

// VectorDimension is the embedding size for text-embedding-3-small.
const VectorDimension = 1536

// Chunk is a timestamped span of transcript text with episode metadata.
// Chunks are the unit of embedding and retrieval; once stored they are
// never mutated.
type Chunk struct {
	ID            string    // UUID, assigned at ingestion
	Text          string    // Transcript text span
	StartTime     float64   // Offset into the episode, seconds
	EndTime       float64   // Offset into the episode, seconds
	EpisodeDate   time.Time // Air date of the episode
	EpisodeNumber string    // Numeric episode number, stored as decimal string
	EpisodeTitle  string
	ChunkTopic    string    // Single topic label for this chunk
	Topics        string    // Comma-separated free-text topic list
	Embedding     []float32 // 1536-dim vector (text-embedding-3-small)
}

// TopicList splits the comma-separated Topics field into trimmed entries.
// Empty entries are dropped.
func (c *Chunk) TopicList() []string {
	if c.Topics == "" {
		return nil
	}
	parts := strings.Split(c.Topics, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// HasTopic reports whether topic appears in the Topics list.
func (c *Chunk) HasTopic(topic string) bool {
	for _, t := range c.TopicList() {
		if t == topic {
			return true
		}
	}
	return false
}
