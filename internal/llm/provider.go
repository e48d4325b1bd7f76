// Package llm provides a unified interface for the reasoning engines TradeLens
// talks to (Gemini, OpenAI, Anthropic, Ollama/Qwen): multimodal messages, schema-constrained
// JSON responses, web-search grounding and provider routing with fallback.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Provider names for routing and configuration.
const (
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Common errors returned by LLM providers.
var (
	ErrNoAPIKey      = errors.New("llm: API key not configured")
	ErrRateLimit     = errors.New("llm: rate limit exceeded")
	ErrContextLength = errors.New("llm: context length exceeded")
	ErrProviderDown  = errors.New("llm: provider unavailable")
	ErrInvalidModel  = errors.New("llm: invalid model")
	ErrEmptyResponse = errors.New("llm: empty response")
	ErrNoProviders   = errors.New("llm: no providers configured")
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// FinishReason indicates why the model stopped generating.
type FinishReason string

const (
	FinishStop   FinishReason = "stop"
	FinishLength FinishReason = "length"
	FinishSafety FinishReason = "safety"
	FinishError  FinishReason = "error"
)

// Attachment is binary content sent alongside a message (chart images).
type Attachment struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// Message represents a single message in a conversation.
type Message struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Source is a web citation returned by a search-grounded response.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Response represents a complete response from the LLM.
type Response struct {
	Content      string        `json:"content"`
	Sources      []Source      `json:"sources,omitempty"`
	FinishReason FinishReason  `json:"finish_reason"`
	Usage        Usage         `json:"usage"`
	Model        string        `json:"model"`
	Provider     string        `json:"provider"`
	Latency      time.Duration `json:"latency"`
}

// Usage tracks token consumption for a request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatOptions configures a single chat request.
type ChatOptions struct {
	Model       string   `json:"model,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`

	// ResponseMIMEType asks for a specific body format ("application/json").
	ResponseMIMEType string `json:"response_mime_type,omitempty"`
	// ResponseSchema constrains a JSON response. Implies application/json.
	ResponseSchema *JSONSchema `json:"response_schema,omitempty"`
	// WebSearch enables search grounding where the provider supports it.
	WebSearch bool `json:"web_search,omitempty"`
}

// WantsJSON reports whether the caller asked for a JSON body.
func (o *ChatOptions) WantsJSON() bool {
	return o != nil && (o.ResponseSchema != nil || o.ResponseMIMEType == "application/json")
}

// LLMProvider is the interface that all LLM backends must implement.
type LLMProvider interface {
	// Name returns the provider identifier (e.g., "gemini", "ollama").
	Name() string

	// Chat sends a conversation and returns a complete response.
	Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error)

	// Models returns the list of available models for this provider.
	Models() []string

	// Ping checks if the provider is reachable and the API key is valid.
	Ping(ctx context.Context) error
}

// NewMessage creates a message with the given role and content.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// SystemMessage creates a system prompt message.
func SystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// UserMessage creates a user message.
func UserMessage(content string, attachments ...Attachment) Message {
	return Message{Role: RoleUser, Content: content, Attachments: attachments}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// String returns a human-readable summary of the response.
func (r *Response) String() string {
	truncated := r.Content
	if len(truncated) > 100 {
		truncated = truncated[:100] + "..."
	}
	return fmt.Sprintf("[%s/%s] %q, %d tokens, %d sources, %v",
		r.Provider, r.Model, truncated, r.Usage.TotalTokens, len(r.Sources), r.Latency.Round(time.Millisecond))
}

// IsRateLimit reports whether err signals provider throttling or quota
// exhaustion. Providers that only surface the status text are matched on
// "429" and "RESOURCE_EXHAUSTED".
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimit) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

// IsTransient reports whether err is a rate limit or a network failure that
// the user may retry later.
func IsTransient(err error) bool {
	return IsRateLimit(err) || errors.Is(err, ErrProviderDown)
}

// IsConfiguration reports whether err comes from a missing or invalid credential.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrNoAPIKey) || errors.Is(err, ErrNoProviders) || errors.Is(err, ErrInvalidModel)
}
