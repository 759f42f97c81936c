package generator

import (
	"context"
	"strings"
	"sync"

	genai "google.golang.org/genai"

	"ragforge/internal/config"
	"ragforge/internal/ragdomain"
)

// geminiGenerator is an alternate Generate(prompt, opts) -> text backend over
// the Gemini GenerateContent API, selected by GeneratorConfig.Backend ==
// "gemini".
type geminiGenerator struct {
	cfg    config.GeneratorConfig
	client *genai.Client
	mu     sync.Mutex
}

func newGeminiClient(cfg config.GeneratorConfig) (Generator, error) {
	cc := &genai.ClientConfig{APIKey: strings.TrimSpace(cfg.APIKey)}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimSuffix(cfg.Endpoint, "/") + "/"}
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, ragdomain.New(ragdomain.KindModelError, "newGeminiClient", "init gemini client failed", err)
	}
	return &geminiGenerator{cfg: cfg, client: client}, nil
}

func (g *geminiGenerator) Generate(ctx context.Context, prompt string, opts ragdomain.GenerateOptions) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	model := g.cfg.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}

	genCfg := &genai.GenerateContentConfig{}
	if opts.Temperature != 0 {
		t := float32(opts.Temperature)
		genCfg.Temperature = &t
	}
	if opts.TopP != 0 {
		p := float32(opts.TopP)
		genCfg.TopP = &p
	}
	maxTokens := opts.MaxNewTokens
	if maxTokens <= 0 {
		maxTokens = g.cfg.MaxNewTokens
	}
	if maxTokens > 0 {
		genCfg.MaxOutputTokens = int32(maxTokens)
	}
	stop := opts.Stop
	if stop == nil {
		stop = g.cfg.Stop
	}
	genCfg.StopSequences = stop

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{{Text: prompt}}, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, genCfg)
	if err != nil {
		return "", ragdomain.New(ragdomain.KindModelError, "Generate", "gemini generate content failed", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ragdomain.New(ragdomain.KindModelError, "Generate", "no candidates in gemini response", nil)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", ragdomain.New(ragdomain.KindModelError, "Generate", "empty gemini response", nil)
	}
	return sb.String(), nil
}
