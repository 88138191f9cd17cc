package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lumen-ed/compass/pkg/config"
	"github.com/lumen-ed/compass/pkg/httpclient"
)

const defaultOpenAIHost = "https://api.openai.com/v1"

// OpenAI calls the chat-completions API. The response schema is
// enforced natively through the json_schema response format.
type OpenAI struct {
	cfg    *config.LLMConfig
	apiKey string
	host   string
	http   *httpclient.Client
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIJSONSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict,omitempty"`
}

type openAIResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *openAIJSONSchema `json:"json_schema,omitempty"`
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	MaxTokens      *int                  `json:"max_tokens,omitempty"`
	Temperature    float64               `json:"temperature"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
	Error   *openAIError   `json:"error,omitempty"`
}

// NewOpenAI builds the OpenAI provider.
func NewOpenAI(cfg *config.LLMConfig, apiKey string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	host := cfg.Host
	if host == "" {
		host = defaultOpenAIHost
	}

	return &OpenAI{
		cfg:    cfg,
		apiKey: apiKey,
		host:   strings.TrimSuffix(host, "/"),
		http:   newHTTPClient(cfg, httpclient.ParseOpenAIHeaders),
	}, nil
}

func (p *OpenAI) Name() string  { return string(config.LLMProviderOpenAI) }
func (p *OpenAI) Model() string { return p.cfg.Model }
func (p *OpenAI) Close() error  { return nil }

// Generate performs one chat completion.
func (p *OpenAI) Generate(ctx context.Context, req *Request) (*Response, error) {
	payload := openAIRequest{
		Model:       p.cfg.Model,
		Temperature: req.Temperature,
	}

	if req.System != "" {
		payload.Messages = append(payload.Messages, openAIMessage{Role: "system", Content: req.System})
	}
	payload.Messages = append(payload.Messages, openAIMessage{Role: "user", Content: req.Prompt})

	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		payload.MaxTokens = &maxTokens
	}
	if req.Schema != nil {
		payload.ResponseFormat = &openAIResponseFormat{
			Type: "json_schema",
			JSONSchema: &openAIJSONSchema{
				Name:   "response",
				Schema: req.Schema,
				Strict: true,
			},
		}
	}

	decoded, err := p.call(ctx, payload)
	if err != nil {
		return nil, err
	}
	if decoded.Error != nil {
		return nil, &ProviderError{Provider: p.Name(), Message: decoded.Error.Message}
	}
	if len(decoded.Choices) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Message: "no choices in response"}
	}

	return &Response{
		Text:             decoded.Choices[0].Message.Content,
		PromptTokens:     decoded.Usage.PromptTokens,
		CompletionTokens: decoded.Usage.CompletionTokens,
		TotalTokens:      decoded.Usage.TotalTokens,
	}, nil
}

func (p *OpenAI) call(ctx context.Context, payload openAIRequest) (*openAIResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.http.Do(req)
	// The retrying client returns both a response and an error for
	// non-2xx statuses; the body still carries the provider's error
	// payload.
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(resp.Body)
			return nil, p.apiError(resp.StatusCode, data, err)
		}
	}
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Message: "request failed", Err: err}
	}

	var decoded openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Message: "failed to decode response", Err: err}
	}
	return &decoded, nil
}

func (p *OpenAI) apiError(status int, body []byte, err error) error {
	message := strings.TrimSpace(string(body))
	var payload struct {
		Error openAIError `json:"error"`
	}
	if jsonErr := json.Unmarshal(body, &payload); jsonErr == nil && payload.Error.Message != "" {
		message = payload.Error.Message
	}
	return &ProviderError{Provider: p.Name(), StatusCode: status, Message: message, Err: err}
}
