package mcpcmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/geniusai/genius/client"
	"github.com/geniusai/genius/cmd/genius/sqlitepath"
	"github.com/geniusai/genius/pkg/llm"
	"github.com/geniusai/genius/pkg/logger"
	"github.com/geniusai/genius/pkg/storage"
	"github.com/geniusai/genius/pkg/storage/inmemory"
	"github.com/geniusai/genius/pkg/storage/sqlite"
)

const mcpLongDesc string = `Serve Genius AI as a Model Context Protocol server over stdio.

Exposes two tools to MCP hosts:

  ask                 ask a question, optionally continuing a conversation
  list_conversations  list stored conversations, newest first

Answers go through the edge router exactly like "genius chat" and are
stored in the same conversation database.`

const mcpShortDesc string = "Serve Genius AI over MCP stdio"

const defaultEndpoint = "http://localhost:8080/chat"

type mcpCommander struct {
	endpoint   string
	sqlitePath string
	memory     bool
	authToken  string
	timeout    time.Duration
	debug      bool
}

func NewMCPCmd(version string) *cobra.Command {
	cmder := &mcpCommander{}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: mcpShortDesc,
		Long:  mcpLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd, version)
		},
	}

	endpoint := os.Getenv("GENIUS_ENDPOINT")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	cmd.Flags().StringVarP(&cmder.endpoint, "endpoint", "e", endpoint, "Edge router chat URL")
	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to the SQLite conversation database")
	cmd.Flags().BoolVar(&cmder.memory, "memory", false, "Keep conversations in memory only")
	cmd.Flags().StringVar(&cmder.authToken, "token", os.Getenv("GENIUS_TOKEN"), "Bearer token sent to the router")
	cmd.Flags().DurationVar(&cmder.timeout, "timeout", 0, "Abort a turn after this long (0 waits for the router)")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	return cmd
}

func (c *mcpCommander) run(ctx context.Context, cmd *cobra.Command, version string) error {
	// stdout carries the protocol.
	log := logger.NewLoggerTo(cmd.ErrOrStderr(), c.debug)
	defer log.Sync()

	store, err := c.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	cl := client.New(c.endpoint, store, log,
		client.WithAuthToken(c.authToken),
		client.WithSystemOverride(client.ShortAnswerOverride),
		client.WithTimeout(c.timeout),
	)

	log.Info("serving MCP over stdio", zap.String("endpoint", c.endpoint))
	return NewServer(cl, log, version).Run(ctx, &mcp.StdioTransport{})
}

func (c *mcpCommander) openStore() (storage.Driver, error) {
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

type askInput struct {
	Question       string `json:"question" jsonschema:"the question to ask Genius AI"`
	Mode           string `json:"mode,omitempty" jsonschema:"medicine or informatique, used when starting a conversation"`
	ConversationID string `json:"conversation_id,omitempty" jsonschema:"continue this conversation instead of starting a new one"`
}

type askOutput struct {
	ConversationID string `json:"conversation_id"`
	Mode           string `json:"mode"`
	Answer         string `json:"answer"`
}

type listInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of conversations to return"`
}

type conversationSummary struct {
	ID        string `json:"id"`
	Mode      string `json:"mode"`
	Title     string `json:"title"`
	Messages  int    `json:"messages"`
	UpdatedAt string `json:"updated_at"`
}

type listOutput struct {
	Conversations []conversationSummary `json:"conversations"`
}

// NewServer builds the MCP server exposing cl as tools.
func NewServer(cl *client.Client, log *zap.Logger, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "genius", Version: version}, nil)
	t := &tools{client: cl, logger: log}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Ask Genius AI a medical or computer science question. Medical answers are cross-validated.",
	}, t.ask)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_conversations",
		Description: "List stored Genius AI conversations, newest first.",
	}, t.listConversations)

	return server
}

type tools struct {
	client *client.Client
	logger *zap.Logger
}

func (t *tools) ask(ctx context.Context, _ *mcp.CallToolRequest, in askInput) (*mcp.CallToolResult, askOutput, error) {
	if in.Question == "" {
		return nil, askOutput{}, errors.New("question is required")
	}

	id := in.ConversationID
	if id == "" {
		mode := llm.ModeMedicine
		if in.Mode != "" {
			mode = llm.Mode(in.Mode)
		}
		conv, err := t.client.NewConversation(ctx, mode)
		if err != nil {
			return nil, askOutput{}, err
		}
		id = conv.ID
	}

	conv, err := t.client.Send(ctx, id, client.Input{Content: in.Question}, nil)
	if err != nil {
		t.logger.Warn("ask failed", zap.String("conversation", id), zap.Error(err))
		return nil, askOutput{}, err
	}

	answer := conv.Messages[len(conv.Messages)-1].Content
	result := &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: answer}},
	}
	return result, askOutput{ConversationID: conv.ID, Mode: string(conv.Mode), Answer: answer}, nil
}

func (t *tools) listConversations(ctx context.Context, _ *mcp.CallToolRequest, in listInput) (*mcp.CallToolResult, listOutput, error) {
	convs, err := t.client.Conversations(ctx)
	if err != nil {
		return nil, listOutput{}, err
	}
	if in.Limit > 0 && len(convs) > in.Limit {
		convs = convs[:in.Limit]
	}

	out := listOutput{Conversations: make([]conversationSummary, 0, len(convs))}
	for _, conv := range convs {
		out.Conversations = append(out.Conversations, conversationSummary{
			ID:        conv.ID,
			Mode:      string(conv.Mode),
			Title:     conv.Title,
			Messages:  len(conv.Messages),
			UpdatedAt: conv.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return nil, out, nil
}
