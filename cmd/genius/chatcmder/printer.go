package chatcmder

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/geniusai/genius/pkg/llm"
)

var (
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
)

// printer writes streamed answers to the terminal. In render mode deltas are
// held back and the final answer is rendered as markdown.
type printer struct {
	out     io.Writer
	render  bool
	printed int
}

func newPrinter(out io.Writer, render bool) *printer {
	return &printer{out: out, render: render}
}

func (p *printer) banner(mode llm.Mode, id string, interactive bool) {
	if !interactive {
		return
	}
	fmt.Fprintln(p.out, noticeStyle.Render(fmt.Sprintf("Genius AI (%s) - conversation %s - /quit pour sortir", mode, id)))
}

func (p *printer) prompt(mode llm.Mode) {
	fmt.Fprint(p.out, promptStyle.Render(string(mode)+" > "))
}

func (p *printer) notice(msg string) {
	fmt.Fprintln(p.out, noticeStyle.Render(msg))
}

func (p *printer) beginTurn() {
	p.printed = 0
}

// update receives the running assistant message, or an error turn.
func (p *printer) update(m llm.Message) {
	if m.Error {
		if p.printed > 0 {
			fmt.Fprintln(p.out)
		}
		fmt.Fprintln(p.out, errorStyle.Render(m.Content))
		p.printed = -1
		return
	}
	if p.render || p.printed < 0 {
		return
	}

	fmt.Fprint(p.out, m.Content[p.printed:])
	p.printed = len(m.Content)
}

// endTurn finishes the answer; final is nil when the turn failed.
func (p *printer) endTurn(final *llm.Message) {
	if final == nil {
		return
	}
	if !p.render {
		if p.printed > 0 {
			fmt.Fprintln(p.out)
		}
		return
	}

	rendered, err := renderMarkdown(final.Content, markdownStyle(p.out), 100)
	if err != nil {
		fmt.Fprintln(p.out, final.Content)
		return
	}
	fmt.Fprint(p.out, rendered)
}

// markdownStyle picks a glamour style for out: plain when it is not a
// terminal, else matched to the terminal background.
func markdownStyle(out io.Writer) string {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return "notty"
	}
	if termenv.NewOutput(f).HasDarkBackground() {
		return "dark"
	}
	return "light"
}

func renderMarkdown(md, style string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	out, err := r.Render(md)
	if err != nil {
		return "", err
	}
	return strings.TrimLeft(out, "\n"), nil
}
