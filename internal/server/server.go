package server

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/transcript-qa/internal/questions"
	"github.com/bull/transcript-qa/internal/search"
	"github.com/bull/transcript-qa/internal/vectorstore"
)

// Searcher is the retrieval capability the tool handlers consume.
type Searcher interface {
	Search(ctx context.Context, q search.Query) search.Result
	SearchWithIntent(ctx context.Context, text string) search.Result
}

// QuestionGenerator produces one question set on demand; the suggested
// questions handler uses it to top up a short cache.
type QuestionGenerator interface {
	GeneratePass(ctx context.Context) (*questions.Set, error)
}

// IngestionStatus reports whether the startup ingestion pass has finished.
type IngestionStatus interface {
	Completed() bool
}

// Server wraps the MCP server with dependencies.
type Server struct {
	server    *mcp.Server
	engine    Searcher
	questions *questions.Store
	index     vectorstore.Store
}

// Config holds server dependencies. Generator and Ingestion are optional;
// without a generator the suggested questions tool serves only what is
// already cached.
type Config struct {
	Engine    Searcher
	Questions *questions.Store
	Generator QuestionGenerator
	Index     vectorstore.Store
	Ingestion IngestionStatus
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "transcript-qa-server",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_transcripts",
		Description: "Search podcast transcript chunks semantically with optional metadata filters. Results are ordered by position within the episode.",
	}, makeSearchHandler(cfg.Engine))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_with_intent",
		Description: "Search transcripts from a free-text question. Episode number, title, date, and topic filters are extracted from the text automatically; a broader unfiltered search runs if the filtered search finds nothing.",
	}, makeIntentHandler(cfg.Engine))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_suggested_questions",
		Description: "Get randomly selected question sets generated from episode transcripts, favoring sets shown least recently. Returned sets are recorded as shown.",
	}, makeSuggestedQuestionsHandler(cfg.Questions, cfg.Generator))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_questions_by_episode",
		Description: "List all generated question sets for a specific episode, newest first.",
	}, makeQuestionsByEpisodeHandler(cfg.Questions))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_index_status",
		Description: "Get the current status of the transcript index including chunk count, cached question sets, and whether startup ingestion has completed.",
	}, makeStatusHandler(cfg.Index, cfg.Questions, cfg.Ingestion))

	return &Server{
		server:    server,
		engine:    cfg.Engine,
		questions: cfg.Questions,
		index:     cfg.Index,
	}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
