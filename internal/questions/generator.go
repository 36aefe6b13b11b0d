package questions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bull/transcript-qa/internal/completion"
	"github.com/bull/transcript-qa/internal/search"
)

// DefaultSampleSize is how many transcript chunks a generation pass
// retrieves for the selected episode.
const DefaultSampleSize = 5

// DefaultEpisodePool is the candidate episode pool a pass picks from when
// none is configured.
var DefaultEpisodePool = []int{201, 504, 510, 509, 606, 607, 608, 101, 307, 401, 410, 609, 602}

// SearchEngine is the retrieval capability the generator consumes.
type SearchEngine interface {
	Search(ctx context.Context, q search.Query) search.Result
}

// Completer is the completion capability the generator consumes.
type Completer interface {
	Complete(ctx context.Context, prompt string, params completion.Params) (string, error)
}

// Generator synthesizes question sets from retrieved transcript chunks and
// persists them in the question store.
type Generator struct {
	engine     SearchEngine
	completer  Completer
	store      *Store
	episodes   []int
	sampleSize int
	logger     *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a question generator. Zero-valued sampleSize,
// episode pool, rng, and logger get defaults.
func NewGenerator(engine SearchEngine, completer Completer, store *Store, episodes []int, sampleSize int, rng *rand.Rand, logger *slog.Logger) *Generator {
	if len(episodes) == 0 {
		episodes = DefaultEpisodePool
	}
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		engine:     engine,
		completer:  completer,
		store:      store,
		episodes:   episodes,
		sampleSize: sampleSize,
		rng:        rng,
		logger:     logger.With("component", "question-generator"),
	}
}

// GeneratePass runs one full generation pass: pick an episode, sample
// chunks, prompt the completion provider, parse, and persist. Any failure
// in the chain returns an error and persists nothing; callers log it and
// move on.
func (g *Generator) GeneratePass(ctx context.Context) (*Set, error) {
	g.mu.Lock()
	episode := g.episodes[g.rng.Intn(len(g.episodes))]
	g.mu.Unlock()

	return g.GenerateForEpisode(ctx, episode)
}

// GenerateForEpisode runs a generation pass for a specific episode.
func (g *Generator) GenerateForEpisode(ctx context.Context, episode int) (*Set, error) {
	g.logger.Info("generating questions", "episode", episode)

	sample := g.sampleSize
	result := g.engine.Search(ctx, search.Query{
		QueryText:     "Topic",
		MaxResults:    &sample,
		EpisodeNumber: &episode,
	})
	if !result.Success {
		return nil, fmt.Errorf("failed to fetch content for question generation: %s", result.ErrorMessage)
	}
	if result.Response == nil || len(result.Response.Results) == 0 {
		return nil, fmt.Errorf("no transcript chunks found for episode %d", episode)
	}

	texts := make([]string, 0, len(result.Response.Results))
	topicSet := make(map[string]struct{})
	var topics []string
	for _, r := range result.Response.Results {
		texts = append(texts, r.Text)
		if r.ChunkTopic != "" {
			if _, seen := topicSet[r.ChunkTopic]; !seen {
				topicSet[r.ChunkTopic] = struct{}{}
				topics = append(topics, r.ChunkTopic)
			}
		}
	}

	raw, err := g.completer.Complete(ctx, buildQuestionPrompt(strings.Join(texts, ", ")), completion.Params{
		MaxTokens:   1024,
		Temperature: 0.9,
		TopP:        0.95,
	})
	if err != nil {
		return nil, fmt.Errorf("question completion failed: %w", err)
	}

	questions, err := parseQuestions(raw)
	if err != nil {
		return nil, err
	}

	set := &Set{
		SourceEpisodeNumber: strconv.Itoa(episode),
		Topics:              topics,
		Questions:           questions,
	}
	g.store.Save(set)

	g.logger.Info("saved generated questions", "episode", episode, "questions", len(questions))
	return set, nil
}

func buildQuestionPrompt(transcriptText string) string {
	return fmt.Sprintf(`Here is some transcript text from a popular youtube channel, the speakers are either Matthew or Mikey, make sure to substitute either Matt or Mikey when you talk about the speaker, assume you know which question should be asked about whom.:
'%s'
I want you to provide 3-5 short questions, each question should be between 3-8 words and each question should focus on specific people, places, events or ideas.
Be on the lookout for movie references, art, music, and other pop culture references and ask questions about those.
Word the questions in such a way that the question is only answerable from the text itself, if the answer to your question cannot be answered by only the text, do not include it in the list.
Most importantly, each question should be interesting and creative enough to engage the reader and entice them to click on it.
Please return the questions as a JSON array of strings without any formatting artifacts such as backticks.`, transcriptText)
}

// parseQuestions parses the model output as a JSON array of strings,
// tolerating markdown fences. A persisted set always has at least one
// question, so an empty array is an error.
func parseQuestions(raw string) ([]string, error) {
	trimmed := strings.TrimSpace(raw)
	if fenced := strings.TrimPrefix(trimmed, "```json"); fenced != trimmed {
		trimmed = fenced
	} else {
		trimmed = strings.TrimPrefix(trimmed, "```")
	}
	trimmed = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(trimmed), "```"))

	var questions []string
	if err := json.Unmarshal([]byte(trimmed), &questions); err != nil {
		return nil, fmt.Errorf("failed to parse questions from model response: %w", err)
	}

	kept := questions[:0]
	for _, q := range questions {
		if strings.TrimSpace(q) != "" {
			kept = append(kept, q)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("model response contained no questions")
	}
	return kept, nil
}
