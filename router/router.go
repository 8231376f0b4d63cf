// Package router provides the edge router that fronts the chat providers:
// it optionally cross-validates medicine questions against several
// providers and otherwise streams the primary provider's answer back.
package router

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"
)

const corsAllowHeaders = "authorization, x-client-info, apikey, content-type, " +
	"x-supabase-client-platform, x-supabase-client-platform-version, " +
	"x-supabase-client-runtime, x-supabase-client-runtime-version"

// Router is the chat edge router. It holds no conversation state: every
// request carries the full transcript.
type Router struct {
	mu     sync.RWMutex
	config Config

	logger     *zap.Logger
	httpClient *http.Client
	lookupEnv  func(string) (string, bool)
	limiter    *ipLimiter
	server     *fiber.App
}

// Option customizes a Router.
type Option func(*Router)

// WithHTTPClient sets the client used for provider calls.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Router) { r.httpClient = client }
}

// WithEnvLookup replaces os.LookupEnv for resolving provider API keys.
func WithEnvLookup(lookup func(string) (string, bool)) Option {
	return func(r *Router) { r.lookupEnv = lookup }
}

// New creates a new Router.
func New(config Config, logger *zap.Logger, opts ...Option) (*Router, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	r := &Router{
		config: config,
		logger: logger,
		// Provider calls are bounded by the request deadline until the
		// stream opens, after which the stream may run for minutes.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		lookupEnv:  os.LookupEnv,
		limiter:    newIPLimiter(config.RateLimit, config.RateBurst),
		server:     app,
	}
	for _, opt := range opts {
		opt(r)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: corsAllowHeaders,
	}))

	app.Post("/chat", r.rateLimit, r.handleChat)

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	return r, nil
}

// Run starts the router on the configured listening address.
func (r *Router) Run() error {
	cfg := r.Config()
	r.logger.Info("starting edge router",
		zap.String("listen", cfg.ListenAddr),
		zap.String("primary", string(cfg.Primary.Kind)),
		zap.String("strategy", string(cfg.Strategy)),
		zap.Duration("deadline", cfg.Deadline),
	)

	return r.server.Listen(cfg.ListenAddr)
}

// Handler exposes the router as a net/http handler for embedding in another
// server. Streamed answers are buffered until the upstream stream ends.
func (r *Router) Handler() http.Handler {
	return adaptor.FiberApp(r.server)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (r *Router) Shutdown(ctx context.Context) error {
	return r.server.ShutdownWithContext(ctx)
}

// Close shuts down the router immediately.
func (r *Router) Close() error {
	return r.server.Shutdown()
}

// Config returns the active configuration.
func (r *Router) Config() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}

// SetConfig swaps the active configuration. Requests already in flight keep
// the configuration they started with. The listen address is fixed at start.
func (r *Router) SetConfig(config Config) error {
	if err := config.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	r.config = config
	r.mu.Unlock()

	r.limiter.configure(config.RateLimit, config.RateBurst)
	return nil
}

func zapIP(c *fiber.Ctx) zap.Field {
	return zap.String("ip", c.IP())
}
