// Package generator implements the instruction-tuned generate(prompt, opts)
// half of ModelHosts (C1), over an OpenAI-compatible chat completion host.
package generator

import (
	"context"
	"sync"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"

	"ragforge/internal/config"
	"ragforge/internal/ragdomain"
)

// Generator is the generate(prompt, opts) -> text contract from §4.1.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts ragdomain.GenerateOptions) (string, error)
}

// chatGenerator calls a chat-completions endpoint with the prompt as the
// sole user message. Like the other model hosts, calls are serialized.
type chatGenerator struct {
	cfg    config.GeneratorConfig
	client sdk.Client
	mu     sync.Mutex
}

// NewClient constructs a Generator over the configured backend. Backend
// defaults to "openai" when unset; "anthropic" and "gemini" select the
// alternate chat-completion providers.
func NewClient(cfg config.GeneratorConfig) (Generator, error) {
	switch cfg.Backend {
	case "", "openai":
		opts := []option.RequestOption{}
		if cfg.Endpoint != "" {
			opts = append(opts, option.WithBaseURL(cfg.Endpoint))
		}
		if cfg.APIKey != "" {
			opts = append(opts, option.WithAPIKey(cfg.APIKey))
		}
		return &chatGenerator{cfg: cfg, client: sdk.NewClient(opts...)}, nil
	case "anthropic":
		return newAnthropicClient(cfg), nil
	case "gemini":
		return newGeminiClient(cfg)
	default:
		return nil, ragdomain.New(ragdomain.KindInvalidQuery, "NewClient", "unsupported generator backend: "+cfg.Backend, nil)
	}
}

// Generate never echoes the prompt: only the model's completion content is
// returned. Deterministic when opts.Temperature == 0.
func (g *chatGenerator) Generate(ctx context.Context, prompt string, opts ragdomain.GenerateOptions) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	maxTokens := opts.MaxNewTokens
	if maxTokens <= 0 {
		maxTokens = g.cfg.MaxNewTokens
	}
	temperature := opts.Temperature
	topP := opts.TopP
	stop := opts.Stop
	if stop == nil {
		stop = g.cfg.Stop
	}

	params := sdk.ChatCompletionNewParams{
		Model: sdk.ChatModel(g.cfg.Model),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.UserMessage(prompt),
		},
		Temperature:         param.NewOpt(temperature),
		TopP:                param.NewOpt(topP),
		MaxCompletionTokens: param.NewOpt(int64(maxTokens)),
	}
	if len(stop) > 0 {
		params.Stop = sdk.ChatCompletionNewParamsStopUnion{OfStringArray: stop}
	}

	comp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", ragdomain.New(ragdomain.KindModelError, "Generate", "chat completion failed", err)
	}
	if len(comp.Choices) == 0 {
		return "", ragdomain.New(ragdomain.KindModelError, "Generate", "no choices returned", nil)
	}
	return comp.Choices[0].Message.Content, nil
}

// echoGenerator is a dependency-free stand-in for tests: it returns a fixed
// transform of the prompt rather than calling a model.
type echoGenerator struct{}

func NewDeterministic() Generator { return echoGenerator{} }

func (echoGenerator) Generate(_ context.Context, prompt string, opts ragdomain.GenerateOptions) (string, error) {
	if opts.MaxNewTokens > 0 && len(prompt) > opts.MaxNewTokens {
		prompt = prompt[:opts.MaxNewTokens]
	}
	return "answer: " + prompt, nil
}
