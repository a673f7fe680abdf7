package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"github.com/docaihq/docai/pkg/domain"
)

const (
	defaultTimeout     = 60 * time.Second
	defaultIdleTimeout = 30 * time.Second
)

// OpenAIGenerator implements the chat-completion port against any
// OpenAI-compatible endpoint.
type OpenAIGenerator struct {
	client      openai.Client
	model       string
	temperature float64
	timeout     time.Duration
	idleTimeout time.Duration
}

func NewOpenAI(baseURL, apiKey, model string, temperature float64, timeout, idleTimeout time.Duration) *OpenAIGenerator {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIGenerator{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: temperature,
		timeout:     timeout,
		idleTimeout: idleTimeout,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, messages []domain.ChatMessage, opts *domain.GenerationOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Chat.Completions.New(ctx, g.params(messages, opts))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", domain.ErrGenerationFailed)
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream delivers delta tokens to fn in upstream order. The idle timer
// cancels the stream when no delta arrives within the idle window; a
// mid-stream failure is returned after the tokens already delivered, so
// the caller keeps its partial accumulation.
func (g *OpenAIGenerator) Stream(ctx context.Context, messages []domain.ChatMessage, opts *domain.GenerationOptions, fn func(token string)) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	idle := time.AfterFunc(g.idleTimeout, cancel)
	defer idle.Stop()

	stream := g.client.Chat.Completions.NewStreaming(streamCtx, g.params(messages, opts))
	defer stream.Close()

	for stream.Next() {
		idle.Reset(g.idleTimeout)
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			fn(delta)
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	return nil
}

func (g *OpenAIGenerator) params(messages []domain.ChatMessage, opts *domain.GenerationOptions) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case domain.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(g.model),
		Messages: msgs,
	}

	temperature := g.temperature
	if opts != nil && opts.Temperature > 0 {
		temperature = opts.Temperature
	}
	params.Temperature = openai.Float(temperature)

	if opts != nil && opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}
	return params
}
