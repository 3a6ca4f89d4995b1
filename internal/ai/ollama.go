package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

type OllamaProvider struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	return &OllamaProvider{
		BaseURL: baseURL,
		Model:   model,
		Client:  newHTTPClient(),
	}
}

type ollamaChatReq struct {
	Model    string      `json:"model"`
	Messages []ollamaMsg `json:"messages"`
	Stream   bool        `json:"stream"`
}

type ollamaMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResp struct {
	Message ollamaMsg `json:"message"`
	Error   string    `json:"error,omitempty"`
}

// Chat sends the conversation as-is; Ollama accepts system messages inline.
func (p *OllamaProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	reqBody := ollamaChatReq{Model: p.Model, Messages: make([]ollamaMsg, 0, len(messages))}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, ollamaMsg{Role: m.Role, Content: m.Content})
	}

	url := strings.TrimRight(p.BaseURL, "/") + "/api/chat"
	status, raw, err := postJSON(ctx, p.Client, url, nil, reqBody)
	if err != nil {
		return "", err
	}

	var decoded ollamaChatResp
	decodeErr := json.Unmarshal(raw, &decoded)
	if decodeErr == nil && decoded.Error != "" {
		return "", errors.New("ollama: " + decoded.Error)
	}
	if !isSuccess(status) {
		return "", statusError("ollama", status, raw)
	}
	if decodeErr != nil {
		return "", decodeErr
	}
	return decoded.Message.Content, nil
}
