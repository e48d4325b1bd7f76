package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// anthropicModels lists commonly available Anthropic models.
var anthropicModels = []string{
	"claude-sonnet-4-20250514",
	"claude-opus-4-20250514",
	"claude-3-7-sonnet-20250219",
	"claude-3-5-haiku-20241022",
}

// Structured output is obtained by forcing a single tool call whose input
// schema is the response schema. Tool inputs must be objects, so other
// schemas are wrapped under this property.
const (
	anthropicResponseTool = "respond"
	anthropicWrapKey      = "result"
)

// AnthropicProvider implements LLMProvider for Anthropic's Messages API.
type AnthropicProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// AnthropicOption configures the Anthropic provider.
type AnthropicOption func(*AnthropicProvider)

// WithAnthropicModel sets the default model.
func WithAnthropicModel(model string) AnthropicOption {
	return func(p *AnthropicProvider) { p.model = model }
}

// WithAnthropicBaseURL sets a custom base URL.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(p *AnthropicProvider) { p.baseURL = strings.TrimRight(url, "/") }
}

// WithAnthropicHTTPClient sets a custom HTTP client.
func WithAnthropicHTTPClient(client *http.Client) AnthropicOption {
	return func(p *AnthropicProvider) { p.client = client }
}

// NewAnthropicProvider creates an Anthropic provider.
func NewAnthropicProvider(apiKey string, opts ...AnthropicOption) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	p := &AnthropicProvider{
		apiKey:  apiKey,
		baseURL: "https://api.anthropic.com/v1",
		model:   "claude-sonnet-4-20250514",
		client:  &http.Client{Timeout: 180 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *AnthropicProvider) Name() string     { return ProviderAnthropic }
func (p *AnthropicProvider) Models() []string { return anthropicModels }

// Ping verifies the API key with a one-token request.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	body := anthropicRequest{
		Model:     p.model,
		MaxTokens: 1,
		Messages:  []anthropicMessage{{Role: "user", Content: []anthropicContentBlock{{Type: "text", Text: "hi"}}}},
	}
	resp, err := p.post(ctx, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: invalid API key", ErrNoAPIKey)
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: status %d: %s", ErrProviderDown, resp.StatusCode, string(bodyBytes))
	}
	return nil
}

// Chat sends a messages request to Anthropic.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	start := time.Now()
	model := p.resolveModel(opts)

	resp, err := p.post(ctx, p.buildRequest(messages, model, opts))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := p.checkError(resp); err != nil {
		return nil, err
	}

	var result anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}

	out := p.parseResponse(&result, model, opts, start)
	if out.Content == "" {
		return nil, ErrEmptyResponse
	}
	return out, nil
}

// ── Internal Types ──

type anthropicRequest struct {
	Model         string              `json:"model"`
	Messages      []anthropicMessage  `json:"messages"`
	System        string              `json:"system,omitempty"`
	Tools         []anthropicTool     `json:"tools,omitempty"`
	ToolChoice    *anthropicToolUsage `json:"tool_choice,omitempty"`
	MaxTokens     int                 `json:"max_tokens"`
	Temperature   *float64            `json:"temperature,omitempty"`
	TopP          *float64            `json:"top_p,omitempty"`
	StopSequences []string            `json:"stop_sequences,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicContentBlock struct {
	Type   string                `json:"type"`
	Text   string                `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"` // for image
	Name   string                `json:"name,omitempty"`   // for tool_use
	Input  json.RawMessage       `json:"input,omitempty"`  // for tool_use
	// Content holds the results of a web_search_tool_result block.
	Content json.RawMessage `json:"content,omitempty"`
}

type anthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// anthropicTool is either a client tool (name + input_schema) or a server
// tool identified by Type.
type anthropicTool struct {
	Type        string      `json:"type,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema *JSONSchema `json:"input_schema,omitempty"`
	MaxUses     int         `json:"max_uses,omitempty"`
}

type anthropicToolUsage struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type anthropicSearchResult struct {
	Type  string `json:"type"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Content    []anthropicContentBlock `json:"content"`
	Model      string                  `json:"model"`
	StopReason string                  `json:"stop_reason"`
	Usage      anthropicUsage          `json:"usage"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicErrorResponse struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ── Helpers ──

func (p *AnthropicProvider) resolveModel(opts *ChatOptions) string {
	if opts != nil && opts.Model != "" {
		return opts.Model
	}
	return p.model
}

func (p *AnthropicProvider) post(ctx context.Context, body anthropicRequest) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderDown, err)
	}
	return resp, nil
}

func (p *AnthropicProvider) buildRequest(messages []Message, model string, opts *ChatOptions) anthropicRequest {
	r := anthropicRequest{
		Model:     model,
		MaxTokens: 8192,
		Messages:  convertToAnthropicMessages(messages),
	}
	var system []string
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
		}
	}
	if opts == nil {
		r.System = strings.Join(system, "\n\n")
		return r
	}

	if opts.MaxTokens > 0 {
		r.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		r.Temperature = &opts.Temperature
	}
	if opts.TopP > 0 {
		r.TopP = &opts.TopP
	}
	r.StopSequences = opts.Stop

	// A forced tool call rules out search, as with Gemini's schema mode.
	switch {
	case opts.ResponseSchema != nil:
		r.Tools = []anthropicTool{{
			Name:        anthropicResponseTool,
			Description: "Return the final answer.",
			InputSchema: toolSchema(opts.ResponseSchema),
		}}
		r.ToolChoice = &anthropicToolUsage{Type: "tool", Name: anthropicResponseTool}
	case opts.WebSearch:
		r.Tools = []anthropicTool{{Type: "web_search_20250305", Name: "web_search", MaxUses: 5}}
		if opts.WantsJSON() {
			system = append(system, "Respond with JSON only.")
		}
	case opts.WantsJSON():
		system = append(system, "Respond with JSON only.")
	}
	r.System = strings.Join(system, "\n\n")
	return r
}

// toolSchema returns s when it is already an object schema, or wraps it.
func toolSchema(s *JSONSchema) *JSONSchema {
	if s.Type == "object" {
		return s
	}
	return ObjectSchema("", map[string]*JSONSchema{anthropicWrapKey: s}, anthropicWrapKey)
}

func (p *AnthropicProvider) checkError(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr anthropicErrorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrNoAPIKey, apiErr.Error.Message)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrRateLimit, apiErr.Error.Message)
		case http.StatusNotFound:
			if apiErr.Error.Type == "not_found_error" {
				return fmt.Errorf("%w: %s", ErrInvalidModel, apiErr.Error.Message)
			}
		}
		// 529 is Anthropic's "overloaded".
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: %s", ErrProviderDown, apiErr.Error.Message)
		}
		return fmt.Errorf("anthropic: API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
	}
	return fmt.Errorf("anthropic: HTTP %d: %s", resp.StatusCode, string(body))
}

func (p *AnthropicProvider) parseResponse(raw *anthropicResponse, model string, opts *ChatOptions, start time.Time) *Response {
	r := &Response{
		Model:    raw.Model,
		Provider: ProviderAnthropic,
		Latency:  time.Since(start),
		Usage: Usage{
			PromptTokens:     raw.Usage.InputTokens,
			CompletionTokens: raw.Usage.OutputTokens,
			TotalTokens:      raw.Usage.InputTokens + raw.Usage.OutputTokens,
		},
		FinishReason: mapAnthropicStopReason(raw.StopReason),
	}
	if r.Model == "" {
		r.Model = model
	}

	wrapped := opts != nil && opts.ResponseSchema != nil && opts.ResponseSchema.Type != "object"
	seen := make(map[string]bool)
	var text strings.Builder
	for _, block := range raw.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			if block.Name == anthropicResponseTool {
				r.Content = unwrapToolInput(block.Input, wrapped)
			}
		case "web_search_tool_result":
			var results []anthropicSearchResult
			if json.Unmarshal(block.Content, &results) != nil {
				continue
			}
			for _, res := range results {
				if res.URL != "" && !seen[res.URL] {
					seen[res.URL] = true
					r.Sources = append(r.Sources, Source{URI: res.URL, Title: res.Title})
				}
			}
		}
	}
	if r.Content == "" {
		r.Content = text.String()
	}
	return r
}

func unwrapToolInput(input json.RawMessage, wrapped bool) string {
	if !wrapped {
		return string(input)
	}
	var env map[string]json.RawMessage
	if json.Unmarshal(input, &env) != nil {
		return string(input)
	}
	inner, ok := env[anthropicWrapKey]
	if !ok {
		return string(input)
	}
	// A bare string result is returned unquoted, like a plain text reply.
	var s string
	if json.Unmarshal(inner, &s) == nil {
		return s
	}
	return string(inner)
}

// ── Conversion Helpers ──

func convertToAnthropicMessages(messages []Message) []anthropicMessage {
	var out []anthropicMessage
	for _, m := range messages {
		if m.Role == RoleSystem {
			continue
		}
		role := "user"
		if m.Role == RoleAssistant {
			role = "assistant"
		}
		msg := anthropicMessage{Role: role}
		for _, a := range m.Attachments {
			msg.Content = append(msg.Content, anthropicContentBlock{
				Type: "image",
				Source: &anthropicImageSource{
					Type:      "base64",
					MediaType: a.MIMEType,
					Data:      base64.StdEncoding.EncodeToString(a.Data),
				},
			})
		}
		msg.Content = append(msg.Content, anthropicContentBlock{Type: "text", Text: m.Content})
		out = append(out, msg)
	}
	return out
}

func mapAnthropicStopReason(reason string) FinishReason {
	switch reason {
	case "end_turn", "tool_use", "stop_sequence", "":
		return FinishStop
	case "max_tokens":
		return FinishLength
	case "refusal":
		return FinishSafety
	default:
		return FinishReason(reason)
	}
}
