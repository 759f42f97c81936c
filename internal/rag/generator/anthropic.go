package generator

import (
	"context"
	"strings"
	"sync"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"ragforge/internal/config"
	"ragforge/internal/ragdomain"
)

// anthropicGenerator is an alternate Generate(prompt, opts) -> text backend
// over the Anthropic Messages API, selected by GeneratorConfig.Backend ==
// "anthropic".
type anthropicGenerator struct {
	cfg config.GeneratorConfig
	sdk anthropic.Client
	mu  sync.Mutex
}

func newAnthropicClient(cfg config.GeneratorConfig) Generator {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(cfg.Endpoint, "/")))
	}
	return &anthropicGenerator{cfg: cfg, sdk: anthropic.NewClient(opts...)}
}

func (g *anthropicGenerator) Generate(ctx context.Context, prompt string, opts ragdomain.GenerateOptions) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	maxTokens := int64(opts.MaxNewTokens)
	if maxTokens <= 0 {
		maxTokens = int64(g.cfg.MaxNewTokens)
	}
	if maxTokens <= 0 {
		maxTokens = 512
	}

	model := g.cfg.Model
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if opts.Temperature != 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}
	if opts.TopP != 0 {
		params.TopP = anthropic.Float(opts.TopP)
	}
	stop := opts.Stop
	if stop == nil {
		stop = g.cfg.Stop
	}
	if len(stop) > 0 {
		params.StopSequences = stop
	}

	resp, err := g.sdk.Messages.New(ctx, params)
	if err != nil {
		return "", ragdomain.New(ragdomain.KindModelError, "Generate", "anthropic message failed", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if t, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(t.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ragdomain.New(ragdomain.KindModelError, "Generate", "no text content returned", nil)
	}
	return sb.String(), nil
}
