package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/pitchroom/pitchroom/internal/session"
)

const defaultTemperature = 0.7

// OpenAIOption configures an OpenAIGenerator.
type OpenAIOption func(*OpenAIGenerator)

// WithTemperature overrides the default sampling temperature.
func WithTemperature(t float64) OpenAIOption {
	return func(g *OpenAIGenerator) {
		g.temperature = t
	}
}

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) OpenAIOption {
	return func(g *OpenAIGenerator) {
		g.baseURL = url
	}
}

// OpenAIGenerator implements Generator using the OpenAI chat completions API.
type OpenAIGenerator struct {
	client      oai.Client
	model       string
	temperature float64
	baseURL     string
}

func NewOpenAIGenerator(apiKey, model string, opts ...OpenAIOption) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, errors.New("openai: model must not be empty")
	}

	g := &OpenAIGenerator{model: model, temperature: defaultTemperature}
	for _, o := range opts {
		o(g)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if g.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(g.baseURL))
	}
	g.client = oai.NewClient(reqOpts...)
	return g, nil
}

// StreamTurn implements Generator.
func (g *OpenAIGenerator) StreamTurn(ctx context.Context, history []session.Message, onDelta func(delta string) error) (string, error) {
	stream := g.client.Chat.Completions.NewStreaming(ctx, g.buildParams(history))
	defer stream.Close()

	var full strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if err := onDelta(delta); err != nil {
			return "", err
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("openai: stream: %w", err)
	}
	return full.String(), nil
}

// CompleteTurn implements Generator.
func (g *OpenAIGenerator) CompleteTurn(ctx context.Context, history []session.Message) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, g.buildParams(history))
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *OpenAIGenerator) buildParams(history []session.Message) oai.ChatCompletionNewParams {
	messages := make([]oai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case session.RoleSystem:
			messages = append(messages, oai.SystemMessage(m.Content))
		case session.RoleAssistant:
			messages = append(messages, oai.AssistantMessage(m.Content))
		default:
			messages = append(messages, oai.UserMessage(m.Content))
		}
	}
	return oai.ChatCompletionNewParams{
		Model:       shared.ChatModel(g.model),
		Messages:    messages,
		Temperature: param.NewOpt(g.temperature),
	}
}
