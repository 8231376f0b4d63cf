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

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
	Stream      bool            `json:"stream"`
}

// openAIMessage carries either a plain string or a list of content parts.
type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// openAICompatible serves OpenAI, DeepSeek and the gateway, which share the
// chat completions wire shape.
type openAICompatible struct {
	cfg Config
}

func (a *openAICompatible) Kind() Kind { return a.cfg.Kind }

func (a *openAICompatible) BuildRequest(ctx context.Context, prompt Prompt, stream bool) (*http.Request, error) {
	messages := make([]openAIMessage, 0, len(prompt.Messages)+1)
	messages = append(messages, openAIMessage{Role: llm.RoleSystem, Content: prompt.System})
	for _, m := range prompt.Messages {
		messages = append(messages, toOpenAIMessage(m))
	}

	body, err := json.Marshal(openAIRequest{
		Model:       a.cfg.Model,
		Messages:    messages,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("provider: marshal %s request: %w", a.cfg.Kind, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("provider: create %s request: %w", a.cfg.Kind, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	return req, nil
}

func (a *openAICompatible) ParseResponse(body []byte) (string, error) {
	var payload openAIResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("provider: decode %s response: %w", a.cfg.Kind, err)
	}
	if len(payload.Choices) == 0 {
		return "", errors.New("provider: no choices in response")
	}
	return payload.Choices[0].Message.Content, nil
}

func toOpenAIMessage(m llm.Message) openAIMessage {
	images := m.ImageList()
	if m.Role != llm.RoleUser || len(images) == 0 {
		return openAIMessage{Role: m.Role, Content: m.Content}
	}

	parts := make([]openAIPart, 0, len(images)+1)
	if m.Content != "" {
		parts = append(parts, openAIPart{Type: "text", Text: m.Content})
	}
	for _, img := range images {
		parts = append(parts, openAIPart{Type: "image_url", ImageURL: &openAIImageURL{URL: img}})
	}
	return openAIMessage{Role: llm.RoleUser, Content: parts}
}
