package config

import "os"

// APIKeySource represents where an API key comes from.
type APIKeySource string

const (
	KeySourceEnv    APIKeySource = "env"
	KeySourceConfig APIKeySource = "config"
	KeySourceNone   APIKeySource = "none"
)

// KeyStatus represents the status of an API key.
type KeyStatus struct {
	Name   string       `json:"name"`
	Source APIKeySource `json:"source"`
	IsSet  bool         `json:"is_set"`
	Masked string       `json:"masked,omitempty"` // e.g., "AIz...abc"
}

// CheckAPIKeys returns the status of all credentials TradeLens can use.
func CheckAPIKeys(cfg *Config) []KeyStatus {
	return []KeyStatus{
		checkKey("Gemini API Key", cfg.LLM.GeminiKey, "TRADELENS_LLM_GEMINI_KEY", "GEMINI_API_KEY", "API_KEY"),
		checkKey("OpenAI API Key", cfg.LLM.OpenAIKey, "TRADELENS_LLM_OPENAI_KEY"),
		checkKey("Anthropic API Key", cfg.LLM.AnthropicKey, "TRADELENS_LLM_ANTHROPIC_KEY", "ANTHROPIC_API_KEY"),
		checkKey("Postgres DSN", cfg.Store.PostgresDSN, "TRADELENS_STORE_POSTGRES_DSN"),
		checkKey("Redis Password", cfg.Redis.Password, "TRADELENS_REDIS_PASSWORD"),
	}
}

// HasAIProvider reports whether at least one reasoning engine can be built.
func HasAIProvider(cfg *Config) bool {
	return cfg.LLM.GeminiKey != "" || cfg.LLM.OpenAIKey != "" || cfg.LLM.AnthropicKey != "" || cfg.LLM.OllamaURL != ""
}

// checkKey checks if a key is set and where it came from.
func checkKey(name, value string, envVars ...string) KeyStatus {
	status := KeyStatus{
		Name:   name,
		IsSet:  value != "",
		Source: KeySourceNone,
	}
	if value == "" {
		return status
	}

	status.Source = KeySourceConfig
	for _, env := range envVars {
		if os.Getenv(env) == value {
			status.Source = KeySourceEnv
			break
		}
	}
	status.Masked = maskKey(value)
	return status
}

// maskKey masks an API key for display, showing only first 3 and last 3 chars.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
