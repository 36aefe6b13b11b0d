package transcript

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Item is one chunk descriptor from an uploaded transcript document,
// before validation and embedding.
type Item struct {
	Text           string
	Date           string
	EpisodeNumber  int
	EpisodeTitle   string
	TimestampStart float64
	TimestampEnd   float64
	ChunkTopic     string
	Topics         string
}

// documentItem mirrors the wire schema of transcript documents: an ordered
// JSON array of objects with a text field and a metadata object.
type documentItem struct {
	Text     string `json:"text"`
	Metadata struct {
		Date           string  `json:"date"`
		EpisodeNumber  int     `json:"episode_number"`
		EpisodeTitle   string  `json:"episode_title"`
		TimestampStart float64 `json:"timestamp_start"`
		TimestampEnd   float64 `json:"timestamp_end"`
		ChunkTopic     string  `json:"chunk_topic"`
		Topics         string  `json:"topics"`
	} `json:"metadata"`
}

// ParseDocument parses a raw transcript document. A document that fails to
// parse as the schema yields a single error; item-level validation happens
// later via ToChunk so one malformed item cannot sink its siblings.
func ParseDocument(raw []byte) ([]Item, error) {
	var items []documentItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = Item{
			Text:           it.Text,
			Date:           it.Metadata.Date,
			EpisodeNumber:  it.Metadata.EpisodeNumber,
			EpisodeTitle:   it.Metadata.EpisodeTitle,
			TimestampStart: it.Metadata.TimestampStart,
			TimestampEnd:   it.Metadata.TimestampEnd,
			ChunkTopic:     it.Metadata.ChunkTopic,
			Topics:         it.Metadata.Topics,
		}
	}
	return out, nil
}

// ToChunk validates the item and converts it into a Chunk with a fresh ID.
// The embedding is left empty; the ingestion pipeline fills it in.
func (it Item) ToChunk() (*Chunk, error) {
	if it.Text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrInvalidItem)
	}

	date, err := parseDate(it.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: bad date %q: %v", ErrInvalidItem, it.Date, err)
	}

	return &Chunk{
		ID:            uuid.New().String(),
		Text:          it.Text,
		StartTime:     it.TimestampStart,
		EndTime:       it.TimestampEnd,
		EpisodeDate:   date,
		EpisodeNumber: strconv.Itoa(it.EpisodeNumber),
		EpisodeTitle:  it.EpisodeTitle,
		ChunkTopic:    it.ChunkTopic,
		Topics:        it.Topics,
	}, nil
}

// parseDate accepts calendar dates with or without a time component.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
