// Package genai provides GenAI-backed motivation text using the OpenAI API.
//
// It is an optional fallback: the dispatcher only consults it when the
// admin-curated motivation pool is empty.
package genai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const motivationSystemPrompt = "You are a supportive habit coach. Reply with a single short " +
	"encouragement (at most two sentences) for someone resisting an urge to break their streak. " +
	"No preamble, no quotes."

// Opts holds configuration options for the GenAI client.
type Opts struct {
	// APIKey authenticates against the OpenAI API. Required.
	APIKey string
	// Model overrides the completion model.
	Model string
}

// Option defines a functional option for configuring the client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the completion model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client generates motivation texts. It implements
// dispatch.MotivationGenerator.
type Client struct {
	client openai.Client
	model  string
}

// NewClient initializes a GenAI client from options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	model := cfg.Model
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	return &Client{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  model,
	}, nil
}

// Motivation generates one short encouragement.
func (c *Client) Motivation(ctx context.Context) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(motivationSystemPrompt),
			openai.UserMessage("I need a boost right now."),
		},
	})
	if err != nil {
		return "", fmt.Errorf("motivation completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
