package llm

import (
	"fmt"
	"slices"

	"github.com/comigor/ollamachat/internal/config"
)

// NewClient creates the client for the configured provider
func NewClient(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "", config.ProviderOllama:
		return NewOllamaClient(cfg), nil
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

// PickModel chooses the model to start with. The preferred model is kept
// when the server lists it, or when nothing could be listed; otherwise the
// first listed model is used.
func PickModel(available []string, preferred string) string {
	if len(available) == 0 || slices.Contains(available, preferred) {
		return preferred
	}
	return available[0]
}
