// Package provider adapts a provider-neutral prompt to the request and
// response shapes of each hosted LLM vendor.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/geniusai/genius/pkg/llm"
)

// Kind identifies a provider adapter.
type Kind string

const (
	KindOpenAI   Kind = "openai"
	KindDeepSeek Kind = "deepseek"
	KindClaude   Kind = "claude"
	KindGemini   Kind = "gemini"
	KindGateway  Kind = "gateway"
)

// ErrStreamingUnsupported is returned when a streaming request is built for a
// provider whose stream is not OpenAI-framed.
var ErrStreamingUnsupported = errors.New("provider: streaming is only supported for OpenAI-compatible providers")

// Prompt is the provider-neutral input of a chat call.
type Prompt struct {
	System   string
	Messages []llm.Message
}

// Config describes one provider endpoint.
type Config struct {
	Kind        Kind    `toml:"kind"`
	URL         string  `toml:"url"`
	Model       string  `toml:"model"`
	APIKeyEnv   string  `toml:"api_key_env"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`

	// APIKey is resolved from APIKeyEnv at call time and never read from file.
	APIKey string `toml:"-"`
}

// Adapter is the capability pair every provider exposes.
type Adapter interface {
	Kind() Kind

	// BuildRequest renders prompt as an HTTP request for this provider.
	BuildRequest(ctx context.Context, prompt Prompt, stream bool) (*http.Request, error)

	// ParseResponse extracts the answer text from a non-streaming response body.
	ParseResponse(body []byte) (string, error)
}

type defaults struct {
	url   string
	model string
}

var kindDefaults = map[Kind]defaults{
	KindOpenAI:   {url: "https://api.openai.com/v1/chat/completions", model: "gpt-4-vision-preview"},
	KindDeepSeek: {url: "https://api.deepseek.com/v1/chat/completions", model: "deepseek-chat"},
	KindClaude:   {url: "https://api.anthropic.com/v1/messages", model: "claude-3-sonnet-20240229"},
	KindGemini:   {url: "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", model: "gemini-1.5-pro-latest"},
	KindGateway:  {url: "https://ai.gateway.lovable.dev/v1/chat/completions", model: "google/gemini-3-flash-preview"},
}

// Known reports whether k names a supported provider.
func (k Kind) Known() bool {
	_, ok := kindDefaults[k]
	return ok
}

// StreamsOpenAIFrames reports whether k streams choices[].delta frames that
// can be forwarded to clients unmodified.
func (k Kind) StreamsOpenAIFrames() bool {
	return k == KindOpenAI || k == KindDeepSeek || k == KindGateway
}

// DefaultAPIKeyEnv returns the environment variable holding k's API key.
func (k Kind) DefaultAPIKeyEnv() string {
	return strings.ToUpper(string(k)) + "_API_KEY"
}

// WithDefaults fills empty URL, model and key variable from the kind defaults.
func (c Config) WithDefaults() Config {
	d := kindDefaults[c.Kind]
	if c.Model == "" {
		c.Model = d.model
	}
	if c.URL == "" {
		c.URL = d.url
		if strings.Contains(c.URL, "%s") {
			c.URL = fmt.Sprintf(c.URL, c.Model)
		}
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = c.Kind.DefaultAPIKeyEnv()
	}
	return c
}

// New returns the adapter for cfg.Kind.
func New(cfg Config) (Adapter, error) {
	if !cfg.Kind.Known() {
		return nil, fmt.Errorf("provider: unknown kind %q", cfg.Kind)
	}
	cfg = cfg.WithDefaults()
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("provider: %s API key must not be empty", cfg.Kind)
	}

	switch cfg.Kind {
	case KindClaude:
		return &claude{cfg: cfg}, nil
	case KindGemini:
		return &gemini{cfg: cfg}, nil
	default:
		return &openAICompatible{cfg: cfg}, nil
	}
}
