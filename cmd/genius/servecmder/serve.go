package servecmder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/geniusai/genius/pkg/logger"
	"github.com/geniusai/genius/router"
)

const serveLongDesc string = `Run the chat edge router.

The router accepts POST /chat, optionally cross-validates medicine
questions against the configured providers and otherwise streams the
primary provider's answer. Provider API keys are read from the
environment (GATEWAY_API_KEY, OPENAI_API_KEY, DEEPSEEK_API_KEY,
CLAUDE_API_KEY, GEMINI_API_KEY).

With --config the TOML file is watched and reloaded on change.

Examples:
  genius serve
  genius serve --listen :9000 --debug
  genius serve --config /etc/genius/router.toml`

const serveShortDesc string = "Run the chat edge router"

const shutdownTimeout = 10 * time.Second

type serveCommander struct {
	configPath string
	listenAddr string
	debug      bool
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to the router TOML configuration")
	cmd.Flags().StringVarP(&cmder.listenAddr, "listen", "l", "", "Address to listen on (overrides the config file)")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	return cmd
}

func (c *serveCommander) run(ctx context.Context, cmd *cobra.Command) error {
	log := logger.NewLoggerTo(cmd.ErrOrStderr(), c.debug)
	defer log.Sync()

	config := router.DefaultConfig()
	if c.configPath != "" {
		var err error
		config, err = router.LoadConfig(c.configPath)
		if err != nil {
			return err
		}
	}
	if c.listenAddr != "" {
		config.ListenAddr = c.listenAddr
	}

	r, err := router.New(config, log)
	if err != nil {
		return fmt.Errorf("could not create router: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if c.configPath != "" {
		go func() {
			if err := r.WatchConfig(ctx, c.configPath); err != nil {
				log.Warn("config reload disabled", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down edge router")
	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer stop()
	if err := r.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("could not shut down router: %w", err)
	}
	return <-errCh
}
