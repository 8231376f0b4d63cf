package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/geniusai/genius/pkg/llm"
)

const anthropicVersion = "2023-06-01"

type claudeRequest struct {
	Model       string          `json:"model"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type claudeMessage struct {
	Role    string        `json:"role"`
	Content []claudeBlock `json:"content"`
}

type claudeBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *claudeImage `json:"source,omitempty"`
}

type claudeImage struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type claude struct {
	cfg Config
}

func (a *claude) Kind() Kind { return KindClaude }

func (a *claude) BuildRequest(ctx context.Context, prompt Prompt, stream bool) (*http.Request, error) {
	if stream {
		return nil, ErrStreamingUnsupported
	}

	messages := make([]claudeMessage, 0, len(prompt.Messages))
	for _, m := range prompt.Messages {
		messages = append(messages, toClaudeMessage(m))
	}

	maxTokens := a.cfg.MaxTokens
	if maxTokens <= 0 {
		// max_tokens is mandatory on the messages API.
		maxTokens = 1024
	}

	body, err := json.Marshal(claudeRequest{
		Model:       a.cfg.Model,
		System:      prompt.System,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("provider: marshal claude request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("provider: create claude request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	return req, nil
}

func (a *claude) ParseResponse(body []byte) (string, error) {
	var payload claudeResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("provider: decode claude response: %w", err)
	}
	if len(payload.Content) == 0 {
		return "", errors.New("provider: no content in claude response")
	}
	return payload.Content[0].Text, nil
}

func toClaudeMessage(m llm.Message) claudeMessage {
	blocks := make([]claudeBlock, 0, 2)
	if m.Role == llm.RoleUser {
		for _, img := range m.ImageList() {
			mediaType, data := splitDataURI(img)
			blocks = append(blocks, claudeBlock{
				Type:   "image",
				Source: &claudeImage{Type: "base64", MediaType: mediaType, Data: data},
			})
		}
	}
	if m.Content != "" || len(blocks) == 0 {
		blocks = append(blocks, claudeBlock{Type: "text", Text: m.Content})
	}
	return claudeMessage{Role: m.Role, Content: blocks}
}
