// Package llm wraps the chat-completion providers behind a single Complete
// call. The primary provider is tried first with a bounded per-attempt
// timeout; on error or timeout a single attempt goes to the configured
// fallback provider. There is no retry beyond that one fallback attempt.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/tbourn/go-fortune-backend/internal/config"
)

// Turn is one prior conversation turn supplied as completion context.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// Completer is the narrow contract the chat service depends on. It allows
// tests to substitute a scripted implementation.
type Completer interface {
	Complete(ctx context.Context, system string, history []Turn, userMessage string) (string, error)
}

type provider struct {
	name   string
	model  string
	client *openai.Client
}

// Client dispatches completions to a primary provider with an optional
// fallback. It is safe for concurrent use.
type Client struct {
	primary  *provider
	fallback *provider
	timeout  time.Duration
}

// New builds a Client from configuration. A fallback provider is configured
// only when a fallback API key is present.
func New(cfg config.LLMConfig) *Client {
	c := &Client{
		primary: newProvider("primary", cfg.APIKey, cfg.Model, cfg.BaseURL),
		timeout: cfg.Timeout,
	}
	if cfg.FallbackAPIKey != "" {
		c.fallback = newProvider("fallback", cfg.FallbackAPIKey, cfg.FallbackModel, cfg.FallbackBaseURL)
	}
	return c
}

func newProvider(name, apiKey, model, baseURL string) *provider {
	conf := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		conf.BaseURL = baseURL
	}
	return &provider{
		name:   name,
		model:  model,
		client: openai.NewClientWithConfig(conf),
	}
}

// Complete produces an assistant reply for userMessage given a system prompt
// and prior turns. It tries the primary provider once and, on any failure,
// the fallback once. Both failing returns the fallback error wrapped with
// the primary's for the log.
func (c *Client) Complete(ctx context.Context, system string, history []Turn, userMessage string) (string, error) {
	reply, perr := c.ask(ctx, c.primary, system, history, userMessage)
	if perr == nil {
		return reply, nil
	}
	if c.fallback == nil {
		return "", perr
	}
	log.Warn().Err(perr).Str("provider", c.primary.name).Msg("completion failed, trying fallback")

	reply, ferr := c.ask(ctx, c.fallback, system, history, userMessage)
	if ferr == nil {
		return reply, nil
	}
	return "", fmt.Errorf("fallback: %w (primary: %s)", ferr, perr)
}

func (c *Client) ask(ctx context.Context, p *provider, system string, history []Turn, userMessage string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, t := range history {
		role := openai.ChatMessageRoleUser
		if t.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userMessage,
	})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w", p.name, errEmptyCompletion)
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("%s: %w", p.name, errEmptyCompletion)
	}
	return out, nil
}

var errEmptyCompletion = errors.New("no completion choices returned")
