package sources

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// NewProviders builds the external providers named in cfg.Sources.Providers.
// A provider that cannot be configured is skipped with a warning so the
// pipeline still runs with the rest.
func NewProviders(cfg model.Config, logger *slog.Logger) ([]Provider, error) {
	classifier := NewClassifier(cfg.Sources)
	var fetcher *Fetcher

	var providers []Provider
	seen := make(map[string]bool)
	for _, name := range cfg.Sources.Providers {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case "wikipedia":
			if fetcher == nil {
				fetcher = NewFetcher(cfg.HTTP, cfg.RateLimiting)
			}
			providers = append(providers, NewWikipediaProvider(cfg.Sources.WikipediaBaseURL, fetcher, classifier))
		case "llm", "openai", "ollama":
			llmCfg := cfg.LLM
			if name != "llm" {
				llmCfg.Provider = name
			}
			p, err := NewLLMProvider(llmCfg, classifier)
			if err != nil {
				if logger != nil {
					logger.Warn("skipping LLM source provider", "provider", name, "error", err)
				}
				continue
			}
			providers = append(providers, p)
		default:
			return nil, fmt.Errorf("unknown source provider: %s (supported: wikipedia, llm, openai, ollama)", name)
		}
	}
	return providers, nil
}
