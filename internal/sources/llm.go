package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/veracity/internal/model"
)

const llmSystemPrompt = `You are a fact-checking assistant for regulated documents.
Judge a single claim. Respond with a JSON object only:
{"verdict":"supported"|"contradicted"|"unknown","confidence":0-100,
 "evidence":["..."],"contradictions":["..."],
 "sources":[{"name":"...","url":"https://..."}]}
Only cite sources you are certain exist. Use "unknown" when unsure.`

// LLMProvider asks an OpenAI-compatible chat model to judge a claim.
// Ollama works through its OpenAI-compatible /v1 endpoint.
type LLMProvider struct {
	client      *openai.Client
	name        string
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	credibility float64
	classifier  *Classifier
}

// NewLLMProvider creates a provider from LLM configuration
func NewLLMProvider(cfg model.LLMConfig, classifier *Classifier) (*LLMProvider, error) {
	provider := strings.ToLower(cfg.Provider)
	baseURL := cfg.BaseURL

	switch provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, errors.New("OpenAI API key is required")
		}
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434/v1"
		}
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, ollama)", cfg.Provider)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = openai.GPT4oMini
	}

	return &LLMProvider{
		client:      openai.NewClientWithConfig(clientConfig),
		name:        "llm:" + provider,
		model:       modelName,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		credibility: cfg.Credibility,
		classifier:  classifier,
	}, nil
}

func (p *LLMProvider) Name() string { return p.name }

// IsAvailable lists models as a lightweight credential check
func (p *LLMProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.ListModels(ctx)
	return err == nil
}

type llmVerdict struct {
	Verdict        string   `json:"verdict"`
	Confidence     float64  `json:"confidence"`
	Evidence       []string `json:"evidence"`
	Contradictions []string `json:"contradictions"`
	Sources        []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"sources"`
}

// Query sends the claim to the model and converts its verdict
func (p *LLMProvider) Query(ctx context.Context, claim string, domain model.Domain) (*model.SourceResult, error) {
	start := time.Now()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: llmSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Domain: %s\nClaim: %s", domain, claim)},
		},
		MaxTokens:      p.maxTokens,
		Temperature:    p.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, fmt.Errorf("%s API error: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from %s", p.name)
	}

	var v llmVerdict
	if err := json.Unmarshal([]byte(extractJSONObject(resp.Choices[0].Message.Content)), &v); err != nil {
		return nil, fmt.Errorf("decode %s verdict: %w", p.name, err)
	}

	result := &model.SourceResult{
		Provider:       p.name,
		Evidence:       v.Evidence,
		Contradictions: v.Contradictions,
		Confidence:     model.ClampPercent(v.Confidence),
	}
	result.Sources = append(result.Sources, model.Source{
		Name:             p.model,
		CredibilityScore: p.credibility,
		SourceType:       model.SourceModel,
	})
	for _, s := range v.Sources {
		if s.URL == "" {
			continue
		}
		result.Sources = append(result.Sources, p.classifier.Source(s.Name, s.URL))
	}

	switch strings.ToLower(v.Verdict) {
	case "supported":
		result.IsSupported = true
	case "contradicted":
		if len(result.Contradictions) == 0 {
			result.Contradictions = []string{p.model + " judged the claim false"}
		}
		// Confidence from the model is confidence in its verdict; convert to
		// confidence that the claim is true
		result.Confidence = 100 - result.Confidence
	default:
		result.Sources = nil
		result.Evidence = nil
		result.Contradictions = nil
		result.Confidence = 0
	}

	result.QueryTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// extractJSONObject trims prose or code fences some models wrap around JSON
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
