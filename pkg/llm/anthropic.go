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

const (
	defaultAnthropicHost = "https://api.anthropic.com"
	anthropicVersion     = "2023-06-01"

	// The messages API requires max_tokens on every request.
	defaultAnthropicMaxTokens = 1024
)

// Anthropic calls the messages API. There is no native response-format
// parameter, so the JSON schema travels as a system instruction.
type Anthropic struct {
	cfg    *config.LLMConfig
	apiKey string
	host   string
	http   *httpclient.Client
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	System      string             `json:"system,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
	Error      *anthropicError    `json:"error,omitempty"`
}

// NewAnthropic builds the Anthropic provider.
func NewAnthropic(cfg *config.LLMConfig, apiKey string) (*Anthropic, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	host := cfg.Host
	if host == "" {
		host = defaultAnthropicHost
	}

	return &Anthropic{
		cfg:    cfg,
		apiKey: apiKey,
		host:   strings.TrimSuffix(host, "/"),
		http:   newHTTPClient(cfg, httpclient.ParseAnthropicHeaders),
	}, nil
}

func (p *Anthropic) Name() string  { return string(config.LLMProviderAnthropic) }
func (p *Anthropic) Model() string { return p.cfg.Model }
func (p *Anthropic) Close() error  { return nil }

// Generate performs one messages-API completion.
func (p *Anthropic) Generate(ctx context.Context, req *Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	system := req.System
	if instruction := schemaInstruction(req.Schema); instruction != "" {
		if system != "" {
			system += "\n\n"
		}
		system += instruction
	}

	payload := anthropicRequest{
		Model:       p.cfg.Model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		System:      system,
		Messages: []anthropicMessage{
			{Role: "user", Content: req.Prompt},
		},
	}

	decoded, err := p.call(ctx, payload)
	if err != nil {
		return nil, err
	}
	if decoded.Error != nil {
		return nil, &ProviderError{Provider: p.Name(), Message: decoded.Error.Message}
	}

	var text strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &Response{
		Text:             text.String(),
		PromptTokens:     decoded.Usage.InputTokens,
		CompletionTokens: decoded.Usage.OutputTokens,
		TotalTokens:      decoded.Usage.InputTokens + decoded.Usage.OutputTokens,
	}, nil
}

func (p *Anthropic) call(ctx context.Context, payload anthropicRequest) (*anthropicResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.http.Do(req)
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

	var decoded anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Message: "failed to decode response", Err: err}
	}
	return &decoded, nil
}

func (p *Anthropic) apiError(status int, body []byte, err error) error {
	message := strings.TrimSpace(string(body))
	var payload anthropicResponse
	if jsonErr := json.Unmarshal(body, &payload); jsonErr == nil && payload.Error != nil {
		message = payload.Error.Message
	}
	return &ProviderError{Provider: p.Name(), StatusCode: status, Message: message, Err: err}
}

// schemaInstruction renders the schema as a hard output contract for
// providers without native structured output.
func schemaInstruction(schema map[string]any) string {
	if schema == nil {
		return ""
	}

	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return ""
	}

	return fmt.Sprintf(`Respond with a single JSON object matching this schema exactly:

%s

Output only the JSON object, with every required field present and correctly typed. No prose before or after.`, schemaJSON)
}
