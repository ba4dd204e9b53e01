package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider names accepted in llm.provider.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config holds the application configuration
type Config struct {
	LLM     LLMConfig
	Chat    ChatConfig
	History HistoryConfig
	Log     LogConfig
}

// LLMConfig holds the LLM server configuration
type LLMConfig struct {
	Provider   string        `mapstructure:"provider"`
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout"`
	ReadBuffer int           `mapstructure:"read_buffer"`
}

// ChatConfig holds settings of the interactive session
type ChatConfig struct {
	SystemPrompt string `mapstructure:"system_prompt"`
	Markdown     bool   `mapstructure:"markdown"`
	InputHistory string `mapstructure:"input_history"`
}

// HistoryConfig holds the transcript store configuration
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LogConfig holds the logger configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SetDefaults registers every known key so env overrides apply even without a file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", ProviderOllama)
	v.SetDefault("llm.base_url", "http://localhost:11434")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "llama2")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.read_buffer", 4096)
	v.SetDefault("chat.system_prompt", "")
	v.SetDefault("chat.markdown", true)
	v.SetDefault("chat.input_history", "")
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", "history.db")
	v.SetDefault("log.level", "info")
}

// Load loads the configuration from $CONFIG_PATH, or config.yaml in the
// working directory, using the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper(), os.Getenv("CONFIG_PATH"))
}

// LoadFrom reads configuration into v. An explicit path must exist; without
// one a missing config.yaml is not an error and defaults apply.
func LoadFrom(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix("OLLAMACHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks values that would otherwise fail late at request time.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported llm provider %q (want %q or %q)", c.LLM.Provider, ProviderOllama, ProviderOpenAI)
	}
	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		return errors.New("llm.base_url must be set")
	}
	if c.LLM.ReadBuffer <= 0 {
		return fmt.Errorf("llm.read_buffer must be positive, got %d", c.LLM.ReadBuffer)
	}
	return nil
}
