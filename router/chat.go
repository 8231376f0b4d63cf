package router

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/geniusai/genius/pkg/llm"
	"github.com/geniusai/genius/pkg/provider"
)

const (
	msgRateLimited = "Limite de requêtes atteinte, réessayez dans un moment."
	msgBilling     = "Crédits AI épuisés. Veuillez recharger."
	msgUpstream    = "Erreur du service AI"
	msgTimeout     = "Délai de réponse dépassé. Veuillez simplifier votre question."

	streamBufferSize = 4096
)

var errDeadline = errors.New("response deadline exceeded")

// keyNotConfiguredError reports a provider whose API key variable is unset.
type keyNotConfiguredError struct {
	Env string
}

func (e *keyNotConfiguredError) Error() string {
	return e.Env + " is not configured"
}

// dispatchResult is either a complete answer from a validator or the open
// stream of the primary provider.
type dispatchResult struct {
	provider provider.Kind
	text     string
	body     io.ReadCloser
}

// handleChat answers a chat turn. The deadline covers everything up to the
// moment the primary stream is open (or a validator answered); once the
// stream is open it is forwarded to completion.
func (r *Router) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()
	cfg := r.Config()

	var req llm.ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		r.logger.Error("failed to parse request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body", Code: llm.CodeBadRequest})
	}
	if len(req.Messages) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "messages must not be empty", Code: llm.CodeBadRequest})
	}

	r.logger.Debug("received chat request",
		zap.String("mode", string(req.Mode)),
		zap.Int("message_count", len(req.Messages)),
		zap.Bool("cross_validation", req.EnableCrossValidation),
		zap.Bool("system_override", req.SystemOverride != ""),
	)

	prompt := provider.Prompt{
		System:   cfg.SystemPrompt(req.Mode, req.SystemOverride),
		Messages: wireMessages(req.Messages),
	}

	ctx, cancel := context.WithCancelCause(c.UserContext())
	timer := time.AfterFunc(cfg.Deadline, func() { cancel(errDeadline) })

	out, err := r.dispatch(ctx, cfg, &req, prompt)
	if !timer.Stop() || errors.Is(context.Cause(ctx), errDeadline) {
		if out.body != nil {
			out.body.Close()
		}
		cancel(errDeadline)
		r.logger.Warn("chat deadline exceeded",
			zap.String("mode", string(req.Mode)),
			zap.Duration("deadline", cfg.Deadline),
			zap.Duration("duration", time.Since(startTime)),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error:        msgTimeout,
			Code:         llm.CodeTimeout,
			ResponseTime: responseTime(startTime),
		})
	}
	if err != nil {
		cancel(nil)
		return r.writeError(c, err, startTime)
	}

	r.logger.Info("chat answered",
		zap.String("mode", string(req.Mode)),
		zap.String("provider", string(out.provider)),
		zap.Duration("duration", time.Since(startTime)),
	)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")

	if out.body == nil {
		cancel(nil)
		frame := append(llm.EncodeFrame(out.text), llm.DoneFrame...)
		return c.Send(frame)
	}

	body := out.body
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel(nil)
		defer body.Close()

		n, err := forward(w, body)
		if err != nil {
			r.logger.Warn("stream forwarding stopped", zap.Error(err), zap.Int64("bytes", n))
			return
		}
		r.logger.Debug("stream complete",
			zap.Int64("bytes", n),
			zap.Duration("duration", time.Since(startTime)),
		)
	}))

	return nil
}

// dispatch runs cross-validation when requested and falls back to opening
// the primary stream.
func (r *Router) dispatch(ctx context.Context, cfg Config, req *llm.ChatRequest, prompt provider.Prompt) (dispatchResult, error) {
	if req.Mode == llm.ModeMedicine && req.EnableCrossValidation {
		if kind, text, ok := r.crossValidate(ctx, cfg, prompt); ok {
			return dispatchResult{provider: kind, text: text}, nil
		}
		if ctx.Err() != nil {
			return dispatchResult{}, context.Cause(ctx)
		}
	}

	primary, err := r.adapter(cfg.Primary)
	if err != nil {
		return dispatchResult{}, err
	}

	res, err := provider.Open(ctx, r.httpClient, primary, prompt)
	if err != nil {
		return dispatchResult{}, err
	}
	return dispatchResult{provider: primary.Kind(), body: res.Body}, nil
}

// adapter resolves the API key for cfg and builds its adapter.
func (r *Router) adapter(cfg provider.Config) (provider.Adapter, error) {
	key, ok := r.lookupEnv(cfg.APIKeyEnv)
	if !ok || key == "" {
		return nil, &keyNotConfiguredError{Env: cfg.APIKeyEnv}
	}
	cfg.APIKey = key
	return provider.New(cfg)
}

func (r *Router) writeError(c *fiber.Ctx, err error, startTime time.Time) error {
	var statusErr *provider.HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case fiber.StatusTooManyRequests:
			return c.Status(fiber.StatusTooManyRequests).JSON(llm.ErrorResponse{Error: msgRateLimited, Code: llm.CodeRateLimited})
		case fiber.StatusPaymentRequired:
			return c.Status(fiber.StatusPaymentRequired).JSON(llm.ErrorResponse{Error: msgBilling, Code: llm.CodeBilling})
		default:
			r.logger.Error("upstream returned error",
				zap.Int("status", statusErr.StatusCode),
				zap.String("body", statusErr.Body),
			)
			return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: msgUpstream, Code: llm.CodeUpstreamError})
		}
	}

	var keyErr *keyNotConfiguredError
	if errors.As(err, &keyErr) {
		r.logger.Error("primary provider key missing", zap.String("env", keyErr.Env))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error:        keyErr.Error(),
			Code:         llm.CodeInternal,
			ResponseTime: responseTime(startTime),
		})
	}

	r.logger.Error("upstream request failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
		Error:        msgUpstream,
		Code:         llm.CodeUpstreamError,
		ResponseTime: responseTime(startTime),
	})
}

// forward copies src to w unmodified, flushing after every read.
func forward(w *bufio.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, streamBufferSize)
	var total int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return total, werr
			}
			if ferr := w.Flush(); ferr != nil {
				return total, ferr
			}
			total += int64(n)
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// wireMessages folds OCR text into content and drops synthetic error turns.
func wireMessages(in []llm.Message) []llm.Message {
	out := make([]llm.Message, 0, len(in))
	for _, m := range in {
		if m.Error {
			continue
		}
		m.Content = m.WireContent()
		m.OCRResults = nil
		out = append(out, m)
	}
	return out
}

func responseTime(start time.Time) string {
	return fmt.Sprintf("%dms", time.Since(start).Milliseconds())
}
