package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/geniusai/genius/cmd/genius/chatcmder"
	"github.com/geniusai/genius/cmd/genius/convcmder"
	"github.com/geniusai/genius/cmd/genius/mcpcmder"
	"github.com/geniusai/genius/cmd/genius/servecmder"
)

const geniusLongDesc string = `Genius AI: a streaming chat client and the edge router it talks to.

Run "genius serve" to start the router, then "genius chat" to ask
questions in medicine or informatique mode.`

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newGeniusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "genius",
		Short:        "Genius AI chat client and edge router",
		Long:         geniusLongDesc,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(convcmder.NewConversationsCmd())
	cmd.AddCommand(mcpcmder.NewMCPCmd(version))

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newGeniusCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
