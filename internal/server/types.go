// Package server exposes transcript search and suggested questions as MCP
// tools over streamable HTTP, plus health and landing endpoints.
package server

import "time"

// SearchTranscriptsInput defines the input for the search_transcripts tool.
type SearchTranscriptsInput struct {
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"required,description=The semantic search query over transcript chunks"`
	// MaxResults caps the returned page.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=100,default=100,description=Maximum number of chunks to return"`
	// MinScore drops results below this relevance score.
	MinScore float32 `json:"min_score,omitempty" jsonschema:"minimum=0,maximum=1,description=Minimum relevance score (cosine similarity) for returned chunks"`
	// EpisodeNumber filters to a single episode.
	EpisodeNumber int `json:"episode_number,omitempty" jsonschema:"description=Restrict results to this episode number"`
	// EpisodeTitle filters by exact episode title.
	EpisodeTitle string `json:"episode_title,omitempty" jsonschema:"description=Restrict results to this episode title"`
	// EpisodeDate filters by air date (YYYY-MM-DD).
	EpisodeDate string `json:"episode_date,omitempty" jsonschema:"description=Restrict results to episodes aired on this date (YYYY-MM-DD)"`
	// ChunkTopic filters by the chunk's topic label.
	ChunkTopic string `json:"chunk_topic,omitempty" jsonschema:"description=Restrict results to chunks with this topic label"`
	// Topic filters by membership in the chunk's topic list.
	Topic string `json:"topic,omitempty" jsonschema:"description=Restrict results to chunks whose topic list contains this topic"`
}

// TranscriptResult is one transcript chunk match.
type TranscriptResult struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	EpisodeNumber  string    `json:"episode_number"`
	EpisodeTitle   string    `json:"episode_title,omitempty"`
	EpisodeDate    time.Time `json:"episode_date"`
	StartTime      float64   `json:"start_time"`
	EndTime        float64   `json:"end_time"`
	ChunkTopic     string    `json:"chunk_topic,omitempty"`
	Topics         string    `json:"topics,omitempty"`
	RelevanceScore float32   `json:"relevance_score"`
}

// SearchTranscriptsOutput contains search results ordered by start time.
type SearchTranscriptsOutput struct {
	Results      []TranscriptResult `json:"results"`
	TotalResults int                `json:"total_results"`
	Message      string             `json:"message,omitempty"`
}

// SearchWithIntentInput defines the input for the search_with_intent tool.
type SearchWithIntentInput struct {
	// Text is the free-text user intent; episode filters are extracted from it.
	Text string `json:"text" jsonschema:"required,description=Free-text question or intent; episode metadata filters are extracted automatically"`
}

// SuggestedQuestionsInput defines the input for the get_suggested_questions tool.
type SuggestedQuestionsInput struct {
	// Count is how many question sets to return.
	Count int `json:"count,omitempty" jsonschema:"minimum=1,maximum=20,default=5,description=Number of question sets to return"`
	// Topic optionally restricts sets to those covering the topic.
	Topic string `json:"topic,omitempty" jsonschema:"description=Only return question sets covering this topic"`
}

// QuestionSet is one cached bundle of generated questions.
type QuestionSet struct {
	ID                  string     `json:"id"`
	SourceEpisodeNumber string     `json:"source_episode_number"`
	Topics              []string   `json:"topics"`
	Questions           []string   `json:"questions"`
	GeneratedAt         time.Time  `json:"generated_at"`
	LastShownAt         *time.Time `json:"last_shown_at,omitempty"`
	TimesShown          int        `json:"times_shown"`
}

// SuggestedQuestionsOutput contains the selected question sets. Returned
// sets are marked shown as a side effect.
type SuggestedQuestionsOutput struct {
	Sets    []QuestionSet `json:"sets"`
	Message string        `json:"message,omitempty"`
}

// QuestionsByEpisodeInput defines the input for the get_questions_by_episode tool.
type QuestionsByEpisodeInput struct {
	// EpisodeNumber selects the source episode.
	EpisodeNumber string `json:"episode_number" jsonschema:"required,description=The source episode number"`
}

// QuestionsByEpisodeOutput contains the episode's question sets, newest first.
type QuestionsByEpisodeOutput struct {
	Sets  []QuestionSet `json:"sets"`
	Count int           `json:"count"`
}

// StatusInput defines the input for the get_index_status tool.
// The tool takes no parameters.
type StatusInput struct{}

// StatusOutput reports index and cache statistics.
type StatusOutput struct {
	TotalChunks       uint64 `json:"total_chunks"`
	QuestionSets      int    `json:"question_sets"`
	IngestionComplete bool   `json:"ingestion_complete"`
}
