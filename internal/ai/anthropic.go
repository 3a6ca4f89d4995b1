package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	anthropicVersion   = "2023-06-01"
	defaultMaxTokens   = 4096
	defaultClaudeModel = "claude-3-7-sonnet-20250219"
)

var ErrInvalidResponse = errors.New("invalid response format")

// APIError is the error object returned by the messages API.
type APIError struct {
	Type    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anthropic: %s: %s", e.Type, e.Message)
}

type AnthropicProvider struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Client    *http.Client
}

func NewAnthropicProvider(baseURL, apiKey, model string) *AnthropicProvider {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if model == "" {
		model = defaultClaudeModel
	}
	return &AnthropicProvider{
		BaseURL:   baseURL,
		APIKey:    apiKey,
		Model:     model,
		MaxTokens: defaultMaxTokens,
		Client:    newHTTPClient(),
	}
}

type anthropicMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicReq struct {
	Model     string         `json:"model"`
	System    string         `json:"system,omitempty"`
	Messages  []anthropicMsg `json:"messages"`
	MaxTokens int            `json:"max_tokens"`
}

type anthropicResp struct {
	Type    string `json:"type"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if strings.TrimSpace(p.APIKey) == "" {
		return "", errors.New("anthropic: api key is required")
	}
	system, rest := splitSystem(messages)
	if len(rest) == 0 {
		return "", errors.New("anthropic: no user message")
	}

	reqBody := anthropicReq{
		Model:     p.Model,
		System:    system,
		Messages:  make([]anthropicMsg, 0, len(rest)),
		MaxTokens: p.MaxTokens,
	}
	for _, m := range rest {
		reqBody.Messages = append(reqBody.Messages, anthropicMsg{Role: m.Role, Content: m.Content})
	}

	h := http.Header{}
	h.Set("x-api-key", p.APIKey)
	h.Set("anthropic-version", anthropicVersion)

	url := strings.TrimRight(p.BaseURL, "/") + "/v1/messages"
	status, raw, err := postJSON(ctx, p.Client, url, h, reqBody)
	if err != nil {
		return "", err
	}

	var decoded anthropicResp
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if !isSuccess(status) {
			return "", statusError("anthropic", status, raw)
		}
		return "", fmt.Errorf("anthropic: decoding response: %w", err)
	}
	if decoded.Type == "error" && decoded.Error != nil {
		return "", &APIError{Type: decoded.Error.Type, Message: decoded.Error.Message}
	}
	if !isSuccess(status) {
		return "", statusError("anthropic", status, raw)
	}
	if len(decoded.Content) == 0 {
		return "", fmt.Errorf("anthropic: %w", ErrInvalidResponse)
	}
	return decoded.Content[0].Text, nil
}
