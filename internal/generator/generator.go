package generator

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/amendbot/amend/pkg/apperr"
	"github.com/amendbot/amend/pkg/types"
)

// Generator modes.
const (
	// ModeSingle asks for the full change set in one request.
	ModeSingle = "single"
	// ModePlanned first asks for an action plan, then generates each
	// planned file in its own request.
	ModePlanned = "planned"
)

// Generator produces a ChangeSet from repository contents and a user prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, files []types.FileSnapshot) (types.ChangeSet, error)
}

// Options configures the AI model used by a generator.
type Options struct {
	Model     string
	MaxTokens int
}

// New creates a generator for the given mode.
func New(mode, apiKey string, opts Options, logger *zap.Logger) (Generator, error) {
	client := openai.NewClient(apiKey)

	if opts.Model == "" {
		opts.Model = openai.GPT4TurboPreview
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}

	switch mode {
	case ModeSingle:
		return &AIGenerator{client: client, logger: logger, model: opts.Model, maxTokens: opts.MaxTokens}, nil
	case ModePlanned:
		return &PlannedGenerator{client: client, logger: logger, model: opts.Model, maxTokens: opts.MaxTokens}, nil
	default:
		return nil, fmt.Errorf("unknown generator mode %q", mode)
	}
}

func chatCompletion(ctx context.Context, client *openai.Client, model string, maxTokens int, systemPrompt, userPrompt string) (string, error) {
	resp, err := client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:     model,
			MaxTokens: maxTokens,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: userPrompt,
				},
			},
			Temperature: 0.2,
		},
	)
	if err != nil {
		return "", apperr.Wrap(apperr.KindAIService, "chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperr.New(apperr.KindAIService, "no response from AI")
	}
	return resp.Choices[0].Message.Content, nil
}
