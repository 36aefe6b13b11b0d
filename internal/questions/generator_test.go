package questions

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/transcript-qa/internal/completion"
	"github.com/bull/transcript-qa/internal/search"
)

// stubEngine returns a canned search result and records the query.
type stubEngine struct {
	result search.Result
	query  search.Query
}

func (s *stubEngine) Search(ctx context.Context, q search.Query) search.Result {
	s.query = q
	return s.result
}

// stubCompleter returns a canned completion and records the prompt.
type stubCompleter struct {
	response string
	err      error
	prompt   string
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string, params completion.Params) (string, error) {
	s.prompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func chunkResult(records ...search.Record) search.Result {
	return search.Result{
		Success:  true,
		Response: &search.Response{Results: records, TotalResults: len(records)},
	}
}

func TestGenerator_GenerateForEpisode(t *testing.T) {
	engine := &stubEngine{result: chunkResult(
		search.Record{Text: "Matt talks about the album.", ChunkTopic: "Music"},
		search.Record{Text: "Mikey reviews a movie.", ChunkTopic: "Movies"},
		search.Record{Text: "More album talk.", ChunkTopic: "Music"},
	)}
	completer := &stubCompleter{response: `["What album did Matt praise?", "Which movie scared Mikey?"]`}
	store := NewStore(rand.New(rand.NewSource(1)), nil)
	gen := NewGenerator(engine, completer, store, nil, 0, nil, nil)

	set, err := gen.GenerateForEpisode(context.Background(), 201)
	require.NoError(t, err)

	assert.Equal(t, "201", set.SourceEpisodeNumber)
	assert.Equal(t, []string{"Music", "Movies"}, set.Topics, "topics deduplicated, order preserved")
	assert.Equal(t, []string{"What album did Matt praise?", "Which movie scared Mikey?"}, set.Questions)
	assert.NotEmpty(t, set.ID)
	assert.Equal(t, 1, store.Len(), "set persisted in the cache")

	// The retrieval query targets the episode with the sample size cap
	require.NotNil(t, engine.query.MaxResults)
	assert.Equal(t, DefaultSampleSize, *engine.query.MaxResults)
	require.NotNil(t, engine.query.EpisodeNumber)
	assert.Equal(t, 201, *engine.query.EpisodeNumber)

	// All retrieved texts reach the prompt
	assert.Contains(t, completer.prompt, "Matt talks about the album.")
	assert.Contains(t, completer.prompt, "Mikey reviews a movie.")
}

func TestGenerator_GeneratePassPicksFromPool(t *testing.T) {
	engine := &stubEngine{result: chunkResult(search.Record{Text: "text", ChunkTopic: "Topic"})}
	completer := &stubCompleter{response: `["A question?"]`}
	store := NewStore(rand.New(rand.NewSource(1)), nil)
	gen := NewGenerator(engine, completer, store, []int{510}, 0, rand.New(rand.NewSource(1)), nil)

	set, err := gen.GeneratePass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "510", set.SourceEpisodeNumber)
}

func TestGenerator_SearchFailure(t *testing.T) {
	engine := &stubEngine{result: search.Result{Success: false, ErrorMessage: "search down"}}
	store := NewStore(nil, nil)
	gen := NewGenerator(engine, &stubCompleter{}, store, nil, 0, nil, nil)

	_, err := gen.GenerateForEpisode(context.Background(), 201)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search down")
	assert.Equal(t, 0, store.Len())
}

func TestGenerator_NoChunks(t *testing.T) {
	engine := &stubEngine{result: chunkResult()}
	store := NewStore(nil, nil)
	gen := NewGenerator(engine, &stubCompleter{}, store, nil, 0, nil, nil)

	_, err := gen.GenerateForEpisode(context.Background(), 201)
	require.Error(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestGenerator_CompletionFailure(t *testing.T) {
	engine := &stubEngine{result: chunkResult(search.Record{Text: "text"})}
	store := NewStore(nil, nil)
	gen := NewGenerator(engine, &stubCompleter{err: errors.New("api down")}, store, nil, 0, nil, nil)

	_, err := gen.GenerateForEpisode(context.Background(), 201)
	require.Error(t, err)
	assert.Equal(t, 0, store.Len(), "nothing persisted on failure")
}

func TestParseQuestions(t *testing.T) {
	questions, err := parseQuestions(`["One?", "Two?"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"One?", "Two?"}, questions)

	// Fenced output is tolerated
	questions, err = parseQuestions("```json\n[\"One?\"]\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"One?"}, questions)

	// Blank entries are dropped
	questions, err = parseQuestions(`["One?", "", "  "]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"One?"}, questions)

	// An all-blank or empty array is an error
	_, err = parseQuestions(`[]`)
	assert.Error(t, err)
	_, err = parseQuestions(`["", " "]`)
	assert.Error(t, err)

	// Non-JSON output is an error
	_, err = parseQuestions("I couldn't come up with any questions.")
	assert.Error(t, err)
}

func TestBuildQuestionPrompt(t *testing.T) {
	prompt := buildQuestionPrompt("some transcript text")
	assert.Contains(t, prompt, "some transcript text")
	assert.Contains(t, prompt, "3-5 short questions")
	assert.True(t, strings.Contains(prompt, "JSON array"))
}
