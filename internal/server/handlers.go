package server

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/transcript-qa/internal/questions"
	"github.com/bull/transcript-qa/internal/search"
	"github.com/bull/transcript-qa/internal/vectorstore"
)

const defaultSuggestedCount = 5

// makeSearchHandler creates the search_transcripts tool handler.
// The handler translates tool input into a search query, runs it, and maps
// the engine's result back out. Engine failures surface as tool errors.
func makeSearchHandler(engine Searcher) func(
	context.Context, *mcp.CallToolRequest, SearchTranscriptsInput,
) (*mcp.CallToolResult, SearchTranscriptsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchTranscriptsInput) (
		*mcp.CallToolResult, SearchTranscriptsOutput, error,
	) {
		q := search.Query{
			QueryText:    input.Query,
			EpisodeTitle: input.EpisodeTitle,
			ChunkTopic:   input.ChunkTopic,
			Topic:        input.Topic,
		}
		if input.MaxResults > 0 {
			max := input.MaxResults
			q.MaxResults = &max
		}
		if input.MinScore > 0 {
			minScore := input.MinScore
			q.MinRelevanceScore = &minScore
		}
		if input.EpisodeNumber > 0 {
			ep := input.EpisodeNumber
			q.EpisodeNumber = &ep
		}
		if input.EpisodeDate != "" {
			date, err := time.Parse("2006-01-02", input.EpisodeDate)
			if err != nil {
				return nil, SearchTranscriptsOutput{}, fmt.Errorf("invalid episode_date %q: expected YYYY-MM-DD", input.EpisodeDate)
			}
			q.EpisodeDate = &date
		}

		result := engine.Search(ctx, q)
		return nil, searchOutput(result), resultErr(result)
	}
}

// makeIntentHandler creates the search_with_intent tool handler.
func makeIntentHandler(engine Searcher) func(
	context.Context, *mcp.CallToolRequest, SearchWithIntentInput,
) (*mcp.CallToolResult, SearchTranscriptsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchWithIntentInput) (
		*mcp.CallToolResult, SearchTranscriptsOutput, error,
	) {
		result := engine.SearchWithIntent(ctx, input.Text)
		return nil, searchOutput(result), resultErr(result)
	}
}

// makeSuggestedQuestionsHandler creates the get_suggested_questions tool
// handler. When the cache holds fewer sets than requested and a generator is
// available, one synchronous generation pass runs before re-reading the
// cache; a failed pass is not an error, the handler serves what it has.
// Every returned set is marked shown.
func makeSuggestedQuestionsHandler(store *questions.Store, generator QuestionGenerator) func(
	context.Context, *mcp.CallToolRequest, SuggestedQuestionsInput,
) (*mcp.CallToolResult, SuggestedQuestionsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SuggestedQuestionsInput) (
		*mcp.CallToolResult, SuggestedQuestionsOutput, error,
	) {
		count := input.Count
		if count <= 0 {
			count = defaultSuggestedCount
		}

		sets := store.GetRandom(count, input.Topic)
		if len(sets) < count && generator != nil {
			if _, err := generator.GeneratePass(ctx); err == nil {
				sets = store.GetRandom(count, input.Topic)
			}
		}

		out := SuggestedQuestionsOutput{Sets: make([]QuestionSet, 0, len(sets))}
		for _, set := range sets {
			store.MarkShown(set.ID)
			out.Sets = append(out.Sets, questionSet(set))
		}
		if len(out.Sets) == 0 {
			out.Message = "No question sets available yet. Questions are generated after transcript ingestion completes."
		}
		return nil, out, nil
	}
}

// makeQuestionsByEpisodeHandler creates the get_questions_by_episode tool
// handler. Listing does not count as showing, so TimesShown is untouched.
func makeQuestionsByEpisodeHandler(store *questions.Store) func(
	context.Context, *mcp.CallToolRequest, QuestionsByEpisodeInput,
) (*mcp.CallToolResult, QuestionsByEpisodeOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input QuestionsByEpisodeInput) (
		*mcp.CallToolResult, QuestionsByEpisodeOutput, error,
	) {
		sets := store.ByEpisode(input.EpisodeNumber)
		out := QuestionsByEpisodeOutput{
			Sets:  make([]QuestionSet, 0, len(sets)),
			Count: len(sets),
		}
		for _, set := range sets {
			out.Sets = append(out.Sets, questionSet(set))
		}
		return nil, out, nil
	}
}

// makeStatusHandler creates the get_index_status tool handler.
func makeStatusHandler(index vectorstore.Store, store *questions.Store, ingestion IngestionStatus) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		total, err := index.Count(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("failed to count indexed chunks: %w", err)
		}

		out := StatusOutput{
			TotalChunks:  total,
			QuestionSets: store.Len(),
		}
		if ingestion != nil {
			out.IngestionComplete = ingestion.Completed()
		}
		return nil, out, nil
	}
}

func searchOutput(result search.Result) SearchTranscriptsOutput {
	if !result.Success || result.Response == nil {
		return SearchTranscriptsOutput{Results: []TranscriptResult{}}
	}

	out := SearchTranscriptsOutput{
		Results:      make([]TranscriptResult, 0, len(result.Response.Results)),
		TotalResults: result.Response.TotalResults,
	}
	for _, r := range result.Response.Results {
		out.Results = append(out.Results, TranscriptResult{
			ID:             r.ID,
			Text:           r.Text,
			EpisodeNumber:  r.EpisodeNumber,
			EpisodeTitle:   r.EpisodeTitle,
			EpisodeDate:    r.EpisodeDate,
			StartTime:      r.StartTime,
			EndTime:        r.EndTime,
			ChunkTopic:     r.ChunkTopic,
			Topics:         r.Topics,
			RelevanceScore: r.RelevanceScore,
		})
	}
	if len(out.Results) == 0 {
		out.Message = "No matching transcript chunks found. Try broader search terms."
	}
	return out
}

func resultErr(result search.Result) error {
	if result.Success {
		return nil
	}
	return fmt.Errorf("search failed: %s", result.ErrorMessage)
}

func questionSet(set *questions.Set) QuestionSet {
	return QuestionSet{
		ID:                  set.ID,
		SourceEpisodeNumber: set.SourceEpisodeNumber,
		Topics:              set.Topics,
		Questions:           set.Questions,
		GeneratedAt:         set.GeneratedAt,
		LastShownAt:         set.LastShownAt,
		TimesShown:          set.TimesShown,
	}
}
