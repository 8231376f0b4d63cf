// Package client is the streaming chat client. It keeps conversations in a
// storage.Driver, sends each turn to the edge router and reassembles the
// streamed answer.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/geniusai/genius/pkg/llm"
	"github.com/geniusai/genius/pkg/sse"
	"github.com/geniusai/genius/pkg/storage"
)

// ShortAnswerOverride is the system prompt sent with every turn unless
// replaced with WithSystemOverride.
const ShortAnswerOverride = `RÉPONSES COURTES : Sois extrêmement concis. Réponds directement sans développement sauf si "développe" ou "explique en détail" est demandé. Format : Réponse directe + Certitude.`

const maxErrorBody = 64 << 10

// Input is what the user submits for one turn.
type Input struct {
	Content string
	Images  []string
	OCR     []llm.OCRResult
}

// Client sends chat turns to the edge router.
type Client struct {
	endpoint       string
	store          storage.Driver
	logger         *zap.Logger
	httpClient     *http.Client
	authToken      string
	systemOverride string
	timeout        time.Duration
	now            func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used to reach the router.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAuthToken sends token as a bearer credential.
func WithAuthToken(token string) Option {
	return func(c *Client) { c.authToken = token }
}

// WithSystemOverride replaces ShortAnswerOverride. An empty override lets the
// router pick the prompt for the conversation mode.
func WithSystemOverride(override string) Option {
	return func(c *Client) { c.systemOverride = override }
}

// WithTimeout bounds each turn, including the streamed answer.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New creates a Client that posts to endpoint (the router's /chat URL).
func New(endpoint string, store storage.Driver, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		endpoint:       endpoint,
		store:          store,
		logger:         logger,
		httpClient:     &http.Client{},
		systemOverride: ShortAnswerOverride,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewConversation creates and stores an empty conversation.
func (c *Client) NewConversation(ctx context.Context, mode llm.Mode) (*llm.Conversation, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	now := c.now()
	conv := &llm.Conversation{
		ID:        uuid.NewString(),
		Title:     "Nouvelle conversation",
		Mode:      mode,
		Messages:  []llm.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// Conversation returns a stored conversation.
func (c *Client) Conversation(ctx context.Context, id string) (*llm.Conversation, error) {
	return c.store.Get(ctx, id)
}

// Conversations lists stored conversations, most recent first.
func (c *Client) Conversations(ctx context.Context) ([]*llm.Conversation, error) {
	return c.store.List(ctx)
}

// DeleteConversation removes a stored conversation.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.store.Delete(ctx, id)
}

// Send runs one turn of conversation id. onUpdate, when non-nil, receives the
// assistant message after every streamed delta and the error turn if one is
// appended. The updated conversation is stored and returned even when the
// turn fails; the failure is reported as a *TurnError.
func (c *Client) Send(ctx context.Context, id string, in Input, onUpdate func(llm.Message)) (*llm.Conversation, error) {
	conv, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	conv.Messages = append(conv.Messages, llm.Message{
		Role:       llm.RoleUser,
		Content:    in.Content,
		Images:     in.Images,
		OCRResults: in.OCR,
	})
	conv.RefreshTitle()

	turnErr := c.exchange(ctx, conv, onUpdate)
	if turnErr != nil {
		errMsg := llm.Message{Role: llm.RoleAssistant, Content: errorPrefix + turnErr.Message, Error: true}
		conv.Messages = append(conv.Messages, errMsg)
		if onUpdate != nil {
			onUpdate(errMsg)
		}
	}

	// Persist with a fresh context so a cancelled turn is still recorded.
	conv.UpdatedAt = c.now()
	if err := c.store.Update(context.WithoutCancel(ctx), conv); err != nil {
		return conv, fmt.Errorf("failed to store conversation: %w", err)
	}

	if turnErr != nil {
		return conv, turnErr
	}
	return conv, nil
}

// exchange posts the transcript and appends the streamed assistant message
// to conv. Partial text is kept when the stream fails.
func (c *Client) exchange(ctx context.Context, conv *llm.Conversation, onUpdate func(llm.Message)) *TurnError {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(c.chatRequest(conv))
	if err != nil {
		return newTurnError(ErrorNetworkFailure, msgConnection, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return newTurnError(ErrorNetworkFailure, msgConnection, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("chat request failed", zap.Error(err))
		return transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(resp)
	}

	idx := len(conv.Messages)
	conv.Messages = append(conv.Messages, llm.Message{Role: llm.RoleAssistant})

	result, err := sse.Read(ctx, resp.Body, func(delta string) {
		conv.Messages[idx].Content += delta
		if onUpdate != nil {
			onUpdate(conv.Messages[idx])
		}
	})

	c.logger.Debug("stream finished",
		zap.String("conversation", conv.ID),
		zap.Bool("done", result.Done),
		zap.Int("malformed", result.Malformed),
		zap.Int("chars", len(result.Text)),
		zap.Duration("duration", time.Since(start)),
	)

	if err != nil {
		if conv.Messages[idx].Content == "" {
			conv.Messages = conv.Messages[:idx]
		}
		c.logger.Warn("stream interrupted", zap.Error(err))
		return transportError(ctx, err)
	}

	if result.Malformed > 0 && result.Text == "" && !result.Done {
		conv.Messages = conv.Messages[:idx]
		return newTurnError(ErrorMalformedStream, msgServiceFallback,
			fmt.Errorf("%d unreadable frames", result.Malformed))
	}
	if result.Malformed > 0 {
		c.logger.Warn("dropped unreadable frames", zap.Int("count", result.Malformed))
	}
	return nil
}

func (c *Client) chatRequest(conv *llm.Conversation) llm.ChatRequest {
	messages := make([]llm.Message, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		if m.Error {
			continue
		}
		messages = append(messages, m.ToWire())
	}

	return llm.ChatRequest{
		Messages:              messages,
		Mode:                  conv.Mode,
		EnableCrossValidation: conv.Mode == llm.ModeMedicine,
		SystemOverride:        c.systemOverride,
	}
}

// statusError classifies a non-OK router response.
func (c *Client) statusError(resp *http.Response) *TurnError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload llm.ErrorResponse
	message := msgNetwork
	if err := json.Unmarshal(raw, &payload); err == nil {
		message = payload.Error
		if message == "" {
			message = msgServiceFallback
		}
	}

	c.logger.Warn("router returned error",
		zap.Int("status", resp.StatusCode),
		zap.String("code", payload.Code),
		zap.String("response_time", payload.ResponseTime),
	)

	err := fmt.Errorf("router returned %d", resp.StatusCode)
	switch {
	case payload.Code == llm.CodeRateLimited || resp.StatusCode == http.StatusTooManyRequests:
		return newTurnError(ErrorUpstreamRateLimited, message, err)
	case payload.Code == llm.CodeBilling || resp.StatusCode == http.StatusPaymentRequired:
		return newTurnError(ErrorUpstreamBilling, message, err)
	case payload.Code == llm.CodeTimeout:
		return newTurnError(ErrorTimeout, message, err)
	default:
		return newTurnError(ErrorUpstreamGeneric, message, err)
	}
}

func transportError(ctx context.Context, err error) *TurnError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return newTurnError(ErrorTimeout, msgTimeout, err)
	}
	return newTurnError(ErrorNetworkFailure, msgConnection, err)
}
