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

var geminiSafetyCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
	SafetySettings    []geminiSafetySetting  `json:"safetySettings"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	Temperature     float64  `json:"temperature"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	CandidateCount  int      `json:"candidateCount"`
	StopSequences   []string `json:"stopSequences"`
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type gemini struct {
	cfg Config
}

func (a *gemini) Kind() Kind { return KindGemini }

func (a *gemini) BuildRequest(ctx context.Context, prompt Prompt, stream bool) (*http.Request, error) {
	if stream {
		return nil, ErrStreamingUnsupported
	}

	in := geminiRequest{
		Contents: make([]geminiContent, 0, len(prompt.Messages)),
		GenerationConfig: geminiGenerationConfig{
			Temperature:     a.cfg.Temperature,
			MaxOutputTokens: a.cfg.MaxTokens,
			CandidateCount:  1,
			StopSequences:   []string{},
		},
		SafetySettings: make([]geminiSafetySetting, 0, len(geminiSafetyCategories)),
	}
	if prompt.System != "" {
		in.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: prompt.System}}}
	}
	for _, m := range prompt.Messages {
		in.Contents = append(in.Contents, toGeminiContent(m))
	}
	for _, c := range geminiSafetyCategories {
		in.SafetySettings = append(in.SafetySettings, geminiSafetySetting{Category: c, Threshold: "BLOCK_NONE"})
	}

	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("provider: marshal gemini request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("provider: create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", a.cfg.APIKey)
	return req, nil
}

func (a *gemini) ParseResponse(body []byte) (string, error) {
	var payload geminiResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("provider: decode gemini response: %w", err)
	}
	if len(payload.Candidates) == 0 || len(payload.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("provider: no candidates in gemini response")
	}
	return payload.Candidates[0].Content.Parts[0].Text, nil
}

// toGeminiContent maps roles onto Gemini's user/model pair.
func toGeminiContent(m llm.Message) geminiContent {
	role := "user"
	if m.Role == llm.RoleAssistant {
		role = "model"
	}

	parts := make([]geminiPart, 0, 2)
	if m.Content != "" {
		parts = append(parts, geminiPart{Text: m.Content})
	}
	if m.Role == llm.RoleUser {
		for _, img := range m.ImageList() {
			mediaType, data := splitDataURI(img)
			parts = append(parts, geminiPart{InlineData: &geminiInlineData{MimeType: mediaType, Data: data}})
		}
	}
	if len(parts) == 0 {
		parts = append(parts, geminiPart{Text: ""})
	}
	return geminiContent{Role: role, Parts: parts}
}
