// Package ai talks to the language model used for the advisor chat and for
// reading uploaded statements.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	oa "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"finpilot/internal/core"
)

const (
	DefaultModel = "gpt-4o-mini"

	chatMaxTokens       = 1500
	extractMaxTokens    = 4000
	maxStatementRunes   = 60000
	disabledChatMessage = "The AI assistant is not configured on this server. Set OPENAI_API_KEY to enable it."
)

// ErrDisabled is returned by Disabled for operations that need a model.
var ErrDisabled = errors.New("ai: no api key configured")

// Client is the language-model collaborator.
type Client interface {
	// StreamChat sends the system prompt and history and calls onDelta for
	// every chunk of the answer. It returns the complete answer.
	StreamChat(ctx context.Context, system string, history []core.ChatMessage, onDelta func(string) error) (string, error)
	// ExtractHoldings reads statement text and returns the holdings in it.
	ExtractHoldings(ctx context.Context, statementText string) ([]core.Asset, error)
}

// New returns an OpenAI backed client, or Disabled when apiKey is empty.
func New(apiKey, model string, opts ...option.RequestOption) Client {
	if strings.TrimSpace(apiKey) == "" {
		return Disabled{}
	}
	return NewOpenAIClient(apiKey, model, opts...)
}

type OpenAIClient struct {
	cli   oa.Client
	model string
}

var _ Client = (*OpenAIClient)(nil)

func NewOpenAIClient(apiKey, model string, opts ...option.RequestOption) *OpenAIClient {
	if model == "" {
		model = DefaultModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIClient{cli: oa.NewClient(opts...), model: model}
}

func (c *OpenAIClient) StreamChat(ctx context.Context, system string, history []core.ChatMessage, onDelta func(string) error) (string, error) {
	messages := make([]oa.ChatCompletionMessageParamUnion, 0, len(history)+1)
	messages = append(messages, oa.SystemMessage(system))
	for _, m := range history {
		switch m.Role {
		case core.RoleAssistant:
			messages = append(messages, oa.AssistantMessage(m.Content))
		default:
			messages = append(messages, oa.UserMessage(m.Content))
		}
	}

	stream := c.cli.Chat.Completions.NewStreaming(ctx, oa.ChatCompletionNewParams{
		Model:     oa.ChatModel(c.model),
		Messages:  messages,
		MaxTokens: oa.Int(chatMaxTokens),
	})
	defer stream.Close()

	var answer strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		answer.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return answer.String(), fmt.Errorf("deliver chunk: %w", err)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return answer.String(), fmt.Errorf("OpenAI API error: %w", err)
	}
	return answer.String(), nil
}

func (c *OpenAIClient) ExtractHoldings(ctx context.Context, statementText string) ([]core.Asset, error) {
	text := truncateRunes(strings.TrimSpace(statementText), maxStatementRunes)
	if text == "" {
		return nil, errors.New("statement is empty")
	}

	resp, err := c.cli.Chat.Completions.New(ctx, oa.ChatCompletionNewParams{
		Model: oa.ChatModel(c.model),
		Messages: []oa.ChatCompletionMessageParamUnion{
			oa.SystemMessage(extractionPrompt),
			oa.UserMessage("Statement:\n" + text),
		},
		MaxTokens: oa.Int(extractMaxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}
	return ParseHoldings(resp.Choices[0].Message.Content)
}

// Disabled stands in for the model when no API key is configured.
type Disabled struct{}

var _ Client = Disabled{}

func (Disabled) StreamChat(_ context.Context, _ string, _ []core.ChatMessage, onDelta func(string) error) (string, error) {
	if onDelta != nil {
		if err := onDelta(disabledChatMessage); err != nil {
			return "", err
		}
	}
	return disabledChatMessage, nil
}

func (Disabled) ExtractHoldings(context.Context, string) ([]core.Asset, error) {
	return nil, ErrDisabled
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
