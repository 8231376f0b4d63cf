package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/geniusai/genius/client"
	"github.com/geniusai/genius/cmd/genius/sqlitepath"
	"github.com/geniusai/genius/pkg/llm"
	"github.com/geniusai/genius/pkg/logger"
	"github.com/geniusai/genius/pkg/storage"
	"github.com/geniusai/genius/pkg/storage/inmemory"
	"github.com/geniusai/genius/pkg/storage/sqlite"
)

const chatLongDesc string = `Chat with Genius AI through the edge router.

With a question as arguments, asks it once and exits. Without
arguments, starts an interactive session reading one question per
line. Session commands:

  /new          start a new conversation in the current mode
  /mode <mode>  switch to medicine or informatique (starts a new conversation)
  /quit         leave the session

Conversations are stored in the local SQLite database unless --memory
is set.

Examples:
  genius chat "Quelle est la posologie du paracétamol ?"
  genius chat --mode informatique --render
  genius chat --tui
  genius chat --image qcm.jpg "Réponds au QCM"
  genius chat --conversation 5b0c... "Et chez l'enfant ?"`

const chatShortDesc string = "Chat with Genius AI"

const defaultEndpoint = "http://localhost:8080/chat"

type chatCommander struct {
	endpoint       string
	mode           string
	conversationID string
	images         []string
	render         bool
	tui            bool
	sqlitePath     string
	memory         bool
	authToken      string
	systemOverride string
	timeout        time.Duration
	debug          bool

	out io.Writer
	ui  *printer
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat [question...]",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args)
		},
	}

	cmd.Flags().StringVarP(&cmder.endpoint, "endpoint", "e", envOr("GENIUS_ENDPOINT", defaultEndpoint), "Edge router chat URL")
	cmd.Flags().StringVarP(&cmder.mode, "mode", "m", string(llm.ModeMedicine), "Assistant mode: medicine or informatique")
	cmd.Flags().StringVar(&cmder.conversationID, "conversation", "", "Continue an existing conversation")
	cmd.Flags().StringSliceVarP(&cmder.images, "image", "i", nil, "Attach an image file to the first question (repeatable)")
	cmd.Flags().BoolVarP(&cmder.render, "render", "r", false, "Render answers as markdown once complete")
	cmd.Flags().BoolVar(&cmder.tui, "tui", false, "Run the interactive session full screen")
	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to the SQLite conversation database")
	cmd.Flags().BoolVar(&cmder.memory, "memory", false, "Keep conversations in memory only")
	cmd.Flags().StringVar(&cmder.authToken, "token", os.Getenv("GENIUS_TOKEN"), "Bearer token sent to the router")
	cmd.Flags().StringVar(&cmder.systemOverride, "system-override", client.ShortAnswerOverride, "System prompt override (empty uses the mode prompt)")
	cmd.Flags().DurationVar(&cmder.timeout, "timeout", 0, "Abort a turn after this long (0 waits for the router)")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, cmd *cobra.Command, args []string) error {
	mode := llm.Mode(c.mode)
	if !mode.Valid() {
		return fmt.Errorf("unknown mode %q: use medicine or informatique", c.mode)
	}

	log := logger.NewLoggerTo(cmd.ErrOrStderr(), c.debug)
	defer log.Sync()

	store, err := c.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	images, err := loadImages(c.images)
	if err != nil {
		return err
	}

	c.out = cmd.OutOrStdout()
	c.ui = newPrinter(c.out, c.render)

	cl := client.New(c.endpoint, store, log,
		client.WithAuthToken(c.authToken),
		client.WithSystemOverride(c.systemOverride),
		client.WithTimeout(c.timeout),
	)

	conv, err := c.startConversation(ctx, cl, mode)
	if err != nil {
		return err
	}

	if len(args) > 0 {
		return c.ask(ctx, cl, conv.ID, client.Input{Content: strings.Join(args, " "), Images: images})
	}
	if c.tui {
		return c.runTUI(ctx, cl, conv, images, tea.WithInput(cmd.InOrStdin()), tea.WithOutput(cmd.OutOrStdout()))
	}
	return c.repl(ctx, cmd, cl, conv, images, log)
}

func (c *chatCommander) openStore() (storage.Driver, error) {
	if c.memory {
		return inmemory.NewDriver(), nil
	}

	dbPath, err := sqlitepath.ResolveSQLitePath(c.sqlitePath)
	if err != nil {
		return nil, fmt.Errorf("could not resolve conversation database: %w", err)
	}
	driver, err := sqlite.NewDriver(dbPath)
	if err != nil {
		return nil, fmt.Errorf("could not open conversation database %s: %w", dbPath, err)
	}
	return driver, nil
}

func (c *chatCommander) startConversation(ctx context.Context, cl *client.Client, mode llm.Mode) (*llm.Conversation, error) {
	if c.conversationID == "" {
		return cl.NewConversation(ctx, mode)
	}

	conv, err := cl.Conversation(ctx, c.conversationID)
	if err != nil {
		return nil, fmt.Errorf("could not load conversation %s: %w", c.conversationID, err)
	}
	return conv, nil
}

// ask sends one turn and prints the answer. Turn failures are shown inline
// and are not returned, so an interactive session keeps going.
func (c *chatCommander) ask(ctx context.Context, cl *client.Client, id string, in client.Input) error {
	c.ui.beginTurn()
	conv, err := cl.Send(ctx, id, in, c.ui.update)

	var turnErr *client.TurnError
	if errors.As(err, &turnErr) {
		c.ui.endTurn(nil)
		return nil
	}
	if err != nil {
		return err
	}
	c.ui.endTurn(lastAssistant(conv))
	return nil
}

func (c *chatCommander) repl(ctx context.Context, cmd *cobra.Command, cl *client.Client, conv *llm.Conversation, images []string, log *zap.Logger) error {
	in := cmd.InOrStdin()
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}

	mode := conv.Mode
	c.ui.banner(mode, conv.ID, interactive)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		if interactive {
			c.ui.prompt(mode)
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/new":
			next, err := cl.NewConversation(ctx, mode)
			if err != nil {
				return err
			}
			conv = next
			c.ui.banner(mode, conv.ID, interactive)
			continue
		case strings.HasPrefix(line, "/mode"):
			next := llm.Mode(strings.TrimSpace(strings.TrimPrefix(line, "/mode")))
			if !next.Valid() {
				c.ui.notice("Mode inconnu : utilisez medicine ou informatique")
				continue
			}
			created, err := cl.NewConversation(ctx, next)
			if err != nil {
				return err
			}
			mode, conv = next, created
			c.ui.banner(mode, conv.ID, interactive)
			continue
		}

		input := client.Input{Content: line, Images: images}
		images = nil
		if err := c.ask(ctx, cl, conv.ID, input); err != nil {
			log.Error("turn failed", zap.Error(err))
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func lastAssistant(conv *llm.Conversation) *llm.Message {
	if conv == nil || len(conv.Messages) == 0 {
		return nil
	}
	m := conv.Messages[len(conv.Messages)-1]
	if m.Role != llm.RoleAssistant || m.Error {
		return nil
	}
	return &m
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
