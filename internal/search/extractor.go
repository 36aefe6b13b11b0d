package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bull/transcript-qa/internal/completion"
)

// Completer is the completion capability the extractor consumes.
type Completer interface {
	Complete(ctx context.Context, prompt string, params completion.Params) (string, error)
}

// Metadata is the structured filter extracted from a free-text query.
// All fields are optional; an empty Metadata means no filters.
type Metadata struct {
	EpisodeNumber *int
	EpisodeTitle  *string
	EpisodeDate   *time.Time
	Topic         *string
}

// Extractor turns free-text user intent into a structured metadata filter
// using a single low-temperature completion call. Extraction is best
// effort: any provider or parse failure yields empty Metadata so search is
// never blocked.
type Extractor struct {
	completer Completer
	logger    *slog.Logger
}

// NewExtractor creates a metadata extractor.
func NewExtractor(completer Completer, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		completer: completer,
		logger:    logger.With("component", "metadata-extractor"),
	}
}

// rawMetadata is the wire shape the model is asked to emit. Field types are
// re-validated after parsing; the model's output is unvalidated prose.
type rawMetadata struct {
	EpisodeNumber *int    `json:"EpisodeNumber"`
	EpisodeTitle  *string `json:"EpisodeTitle"`
	EpisodeDate   *string `json:"EpisodeDate"`
	Topic         *string `json:"Topic"`
}

// Extract parses episode metadata out of the user's query text.
func (x *Extractor) Extract(ctx context.Context, userIntent string) Metadata {
	prompt := fmt.Sprintf(`User query: %s

Extract related metadata from the user query.
Valid metadata fields are episode number, episode title, episode date, and topic.
Only include fields in the response if they are explicitly mentioned or clearly implied in the query.

Return a single JSON object with no additional text.
For example:
{"EpisodeNumber": 510, "EpisodeTitle": "The Title", "EpisodeDate": "2022-01-01", "Topic": "The Topic"}`, userIntent)

	raw, err := x.completer.Complete(ctx, prompt, completion.Params{
		MaxTokens:   200,
		Temperature: 0.0,
		TopP:        1.0,
		JSONObject:  true,
	})
	if err != nil {
		x.logger.Warn("metadata extraction call failed", "error", err)
		return Metadata{}
	}

	var parsed rawMetadata
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		x.logger.Warn("failed to parse metadata JSON from model response")
		return Metadata{}
	}

	meta := Metadata{
		EpisodeNumber: parsed.EpisodeNumber,
		EpisodeTitle:  parsed.EpisodeTitle,
		Topic:         parsed.Topic,
	}
	if parsed.EpisodeDate != nil {
		if date, err := time.Parse("2006-01-02", *parsed.EpisodeDate); err == nil {
			meta.EpisodeDate = &date
		}
		// An unparseable date is dropped rather than failing extraction.
	}
	return meta
}

// stripFences removes markdown code fences the model sometimes wraps
// around JSON despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
