package llm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comigor/ollamachat/internal/config"
)

func TestNewClient(t *testing.T) {
	c, err := NewClient(config.LLMConfig{Provider: config.ProviderOllama, BaseURL: "http://x"})
	require.NoError(t, err)
	require.IsType(t, &OllamaClient{}, c)

	c, err = NewClient(config.LLMConfig{BaseURL: "http://x"})
	require.NoError(t, err)
	require.IsType(t, &OllamaClient{}, c, "empty provider means ollama")

	c, err = NewClient(config.LLMConfig{Provider: config.ProviderOpenAI, BaseURL: "http://x/v1"})
	require.NoError(t, err)
	require.IsType(t, &OpenAIClient{}, c)

	_, err = NewClient(config.LLMConfig{Provider: "bard"})
	require.Error(t, err)
}

func TestPickModel(t *testing.T) {
	tests := []struct {
		name      string
		available []string
		preferred string
		want      string
	}{
		{"nothing listed keeps preferred", nil, "llama2", "llama2"},
		{"preferred listed", []string{"mistral", "llama2"}, "llama2", "llama2"},
		{"preferred missing falls back to first", []string{"mistral", "phi3"}, "llama2", "mistral"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, PickModel(tc.available, tc.preferred))
		})
	}
}
