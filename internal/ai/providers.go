package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"

	"git.home.luguber.info/inful/docstream/internal/config"
	"git.home.luguber.info/inful/docstream/internal/docmodel"
)

// NewProvider builds the provider named by cfg.Provider. anthropic and
// claude go through Anthropic's OpenAI-compatible endpoint.
func NewProvider(ctx context.Context, cfg config.AIConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai", "deepseek", "anthropic", "claude":
		return NewOpenAICompatible(cfg.Provider, cfg.APIKey, cfg.BaseURL)
	case "gemini":
		return NewGemini(ctx, cfg.APIKey)
	case "mock":
		return &MockProvider{}, nil
	default:
		return nil, fmt.Errorf("unsupported AI provider %q", cfg.Provider)
	}
}

// OpenAICompatible talks to any chat-completions endpoint through openai-go.
type OpenAICompatible struct {
	name   string
	client openai.Client
}

// NewOpenAICompatible requires an API key; baseURL may be empty for OpenAI itself.
func NewOpenAICompatible(name, apiKey, baseURL string) (*OpenAICompatible, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s api key missing; set ai.api_key or the provider's environment variable", name)
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAICompatible{name: name, client: openai.NewClient(opts...)}, nil
}

func (o *OpenAICompatible) Name() string { return o.name }

func (o *OpenAICompatible) Complete(ctx context.Context, req Request) (Reply, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Reply{}, err
	}
	if len(resp.Choices) == 0 {
		return Reply{}, errors.New(o.name + ": empty choices")
	}
	return Reply{
		Text:       resp.Choices[0].Message.Content,
		Model:      resp.Model,
		TokensUsed: int(resp.Usage.TotalTokens),
	}, nil
}

// Gemini uses the Google GenAI SDK.
type Gemini struct {
	client *genai.Client
}

// NewGemini creates a Gemini API client.
func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key missing; set ai.api_key or GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &Gemini{client: client}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Complete(ctx context.Context, req Request) (Reply, error) {
	temp := float32(req.Temperature)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(req.System)}},
		Temperature:       &temp,
		ResponseMIMEType:  "application/json",
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	resp, err := g.client.Models.GenerateContent(ctx, req.Model, []*genai.Content{
		{Parts: []*genai.Part{{Text: req.Prompt}}, Role: "user"},
	}, cfg)
	if err != nil {
		return Reply{}, fmt.Errorf("genai generate: %w", err)
	}
	var sb strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	reply := Reply{Text: sb.String(), Model: req.Model}
	if resp != nil && resp.UsageMetadata != nil {
		reply.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	return reply, nil
}

// MockProvider answers offline: it returns the input document with a stub
// section appended for every required type that is missing.
type MockProvider struct {
	// Latency delays each answer, honoring ctx.
	Latency time.Duration
	calls   atomic.Int64
}

func (m *MockProvider) Name() string { return "mock" }

// Calls reports how many completions were requested.
func (m *MockProvider) Calls() int { return int(m.calls.Load()) }

func (m *MockProvider) Complete(ctx context.Context, req Request) (Reply, error) {
	m.calls.Add(1)
	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return Reply{}, ctx.Err()
		}
	}
	doc := req.Context.Clone()
	for _, t := range req.Required {
		if !doc.HasType(t) {
			doc.Sections = append(doc.Sections, stubSection(t))
		}
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: "```json\n" + string(body) + "\n```", Model: req.Model, TokensUsed: len(req.Prompt) / 4}, nil
}

func stubSection(t docmodel.SectionType) docmodel.Section {
	switch t {
	case docmodel.TypeHighlights:
		return &docmodel.HighlightsSection{Title: "Highlights", Items: []docmodel.HighlightItem{{Icon: "*", Title: "Key point", Text: "Summary"}}}
	case docmodel.TypeChart:
		return &docmodel.ChartSection{Title: "Chart", ChartType: docmodel.ChartBar, Data: json.RawMessage(`{"labels":["a"],"datasets":[{"data":[1]}]}`)}
	case docmodel.TypeTable:
		return &docmodel.TableSection{Title: "Table", Headers: []string{"Item"}, Rows: [][]docmodel.Scalar{{docmodel.Scalar("value")}}}
	case docmodel.TypeImage:
		return &docmodel.ImageSection{Src: "placeholder.png", Alt: "placeholder"}
	case docmodel.TypeSignature:
		return &docmodel.SignatureSection{Left: "Prepared by", Right: "Approved by"}
	case docmodel.TypeCustom:
		return &docmodel.CustomSection{Content: "<p></p>"}
	default:
		return &docmodel.ContentSection{Title: "Summary", Content: "Generated summary."}
	}
}
