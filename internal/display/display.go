// Package display renders command output for the terminal: styled
// messages, tables, markdown, spinners and pull/push progress.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Output streams. Tests replace them.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle   = lipgloss.NewStyle().Bold(true)
)

var renderer *glamour.TermRenderer

// IsTerminal reports whether stream, a reader or writer, is an interactive
// terminal. Anything other than an *os.File is not.
func IsTerminal(stream any) bool {
	f, ok := stream.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func terminalWidth() int {
	if f, ok := Stdout.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return 80
}

// InitRenderer prepares the markdown renderer used by ShowContentRendered.
func InitRenderer() error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(terminalWidth()-4),
	)
	if err != nil {
		return err
	}
	renderer = r
	return nil
}

// RenderMarkdown renders content, falling back to the raw text when no
// renderer is initialised or rendering fails.
func RenderMarkdown(content string) string {
	if renderer == nil {
		return content
	}
	out, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return out
}

// ShowContent prints a plain response
func ShowContent(content string) {
	fmt.Fprintln(Stdout, strings.TrimRight(content, "\n"))
}

// ShowContentRendered prints a response as rendered markdown
func ShowContentRendered(content string) {
	fmt.Fprint(Stdout, RenderMarkdown(content))
}

// ShowError prints an error message to stderr
func ShowError(msg string) {
	fmt.Fprintln(Stderr, errorStyle.Render("Error:")+" "+msg)
}

// ShowWarning prints a warning message to stderr
func ShowWarning(msg string) {
	fmt.Fprintln(Stderr, warningStyle.Render("Warning:")+" "+msg)
}

// ShowSuccess prints a confirmation to stdout
func ShowSuccess(msg string) {
	fmt.Fprintln(Stdout, successStyle.Render("✓")+" "+msg)
}

// ShowInfo prints a dimmed note to stderr
func ShowInfo(msg string) {
	fmt.Fprintln(Stderr, dimStyle.Render(msg))
}

// Confirm asks a yes/no question on w and reads the answer from r.
// Anything other than y or yes is a no.
func Confirm(r io.Reader, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", question)
	var answer string
	if _, err := fmt.Fscanln(r, &answer); err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
