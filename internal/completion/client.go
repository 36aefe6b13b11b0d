// Package completion wraps OpenAI chat completions behind the small
// interface the metadata extractor and question generator consume.
package completion

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
)

// Params controls a single completion call. Callers must parse the returned
// text defensively; JSONObject only asks the model for a JSON object, it
// does not guarantee validity.
type Params struct {
	MaxTokens   int64
	Temperature float64
	TopP        float64
	JSONObject  bool
}

// Client issues chat completions against a fixed model.
type Client struct {
	client *openai.Client
	model  openai.ChatModel
}

// NewClient creates a completion client reusing an existing OpenAI client.
// If model is empty, GPT-4o is used.
func NewClient(client *openai.Client, model string) *Client {
	m := openai.ChatModelGPT4o
	if model != "" {
		m = openai.ChatModel(model)
	}
	return &Client{client: client, model: m}
}

// Complete sends a single-turn prompt and returns the raw response text.
func (c *Client) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	req := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       c.model,
		Temperature: openai.Float(params.Temperature),
		TopP:        openai.Float(params.TopP),
	}
	if params.MaxTokens > 0 {
		req.MaxTokens = openai.Int(params.MaxTokens)
	}
	if params.JSONObject {
		req.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
