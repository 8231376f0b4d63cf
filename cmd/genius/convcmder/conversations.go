package convcmder

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/geniusai/genius/cmd/genius/sqlitepath"
	"github.com/geniusai/genius/pkg/llm"
	"github.com/geniusai/genius/pkg/storage/sqlite"
)

const conversationsLongDesc string = `Manage conversations stored in the local SQLite database.

Examples:
  genius conversations list
  genius conversations show 5b0c1f7e-...
  genius conversations delete 5b0c1f7e-...
  genius conversations merge ~/alice/genius.db ~/bob/genius.db`

const conversationsShortDesc string = "Manage stored conversations"

var (
	userStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	agentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type conversationsCommander struct {
	sqlitePath string
}

func NewConversationsCmd() *cobra.Command {
	cmder := &conversationsCommander{}

	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   conversationsShortDesc,
		Long:    conversationsLongDesc,
	}

	cmd.PersistentFlags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to the SQLite conversation database")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.list(cmd.Context(), cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a conversation transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.show(cmd.Context(), cmd, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.delete(cmd.Context(), cmd, args[0])
		},
	})
	cmd.AddCommand(newMergeCmd(cmder))

	return cmd
}

func (c *conversationsCommander) open() (*sqlite.Driver, string, error) {
	dbPath, err := sqlitepath.ResolveSQLitePath(c.sqlitePath)
	if err != nil {
		return nil, "", fmt.Errorf("could not resolve conversation database: %w", err)
	}
	driver, err := sqlite.NewDriver(dbPath)
	if err != nil {
		return nil, "", fmt.Errorf("could not open conversation database %s: %w", dbPath, err)
	}
	return driver, dbPath, nil
}

func (c *conversationsCommander) list(ctx context.Context, cmd *cobra.Command) error {
	driver, _, err := c.open()
	if err != nil {
		return err
	}
	defer driver.Close()

	convs, err := driver.List(ctx)
	if err != nil {
		return fmt.Errorf("could not list conversations: %w", err)
	}
	if len(convs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No conversations.")
		return nil
	}

	table := uitable.New()
	table.Separator = "  "
	table.AddRow("ID", "MODE", "MESSAGES", "UPDATED", "TITLE")
	for _, conv := range convs {
		table.AddRow(conv.ID, conv.Mode, len(conv.Messages),
			conv.UpdatedAt.Local().Format("2006-01-02 15:04"), ansi.Truncate(conv.Title, listTitleWidth, "…"))
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), table)
	return err
}

const listTitleWidth = 32

func (c *conversationsCommander) show(ctx context.Context, cmd *cobra.Command, id string) error {
	driver, _, err := c.open()
	if err != nil {
		return err
	}
	defer driver.Close()

	conv, err := driver.Get(ctx, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n\n", conv.Title, conv.Mode)
	for _, m := range conv.Messages {
		printMessage(out, m)
	}
	return nil
}

func (c *conversationsCommander) delete(ctx context.Context, cmd *cobra.Command, id string) error {
	driver, _, err := c.open()
	if err != nil {
		return err
	}
	defer driver.Close()

	if err := driver.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted conversation %s\n", id)
	return nil
}

func printMessage(out io.Writer, m llm.Message) {
	switch {
	case m.Error:
		fmt.Fprintln(out, errorStyle.Render(m.Content))
	case m.Role == llm.RoleUser:
		label := "Vous"
		if n := len(m.ImageList()); n > 0 {
			label = fmt.Sprintf("Vous [%d image(s)]", n)
		}
		fmt.Fprintf(out, "%s: %s\n", userStyle.Render(label), m.Content)
	default:
		fmt.Fprintf(out, "%s: %s\n", agentStyle.Render("Genius"), m.Content)
	}
	fmt.Fprintln(out)
}
