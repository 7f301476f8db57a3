package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/elk-language/go-prompt"
	istrings "github.com/elk-language/go-prompt/strings"
	"github.com/spf13/cobra"

	"github.com/quocvuong92/ollama-ctl/internal/api"
	"github.com/quocvuong92/ollama-ctl/internal/display"
	"github.com/quocvuong92/ollama-ctl/internal/logging"
)

// ChatSession holds the state of an interactive chat. History lives in
// memory only and is sent in full with every turn.
type ChatSession struct {
	client   *api.Client
	model    string
	system   string
	render   bool
	out      io.Writer
	messages []api.Message
	models   []string
	exitFlag bool
}

// NewChatSession creates a session for model on client
func NewChatSession(client *api.Client, model, system string, render bool, out io.Writer) *ChatSession {
	return &ChatSession{
		client: client,
		model:  model,
		system: system,
		render: render,
		out:    out,
	}
}

// Messages returns the conversation so far
func (s *ChatSession) Messages() []api.Message {
	return s.messages
}

// Model returns the model used for the next turn
func (s *ChatSession) Model() string {
	return s.model
}

// Exited reports whether the user asked to leave
func (s *ChatSession) Exited() bool {
	return s.exitFlag
}

// Handle processes one line of input: a slash command or a chat message.
func (s *ChatSession) Handle(ctx context.Context, input string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return
	}
	if input == "exit" || input == "quit" || strings.HasPrefix(input, "/") {
		s.handleCommand(ctx, input)
		return
	}

	s.messages = append(s.messages, api.Message{Role: api.RoleUser, Content: input})
	reply, err := s.send(ctx)
	if err != nil {
		// Drop the unanswered turn so the next attempt starts clean.
		s.messages = s.messages[:len(s.messages)-1]
		if ctx.Err() != nil {
			display.ShowWarning("Response cancelled.")
			return
		}
		display.ShowError(err.Error())
		return
	}
	s.messages = append(s.messages, reply)
}

func (s *ChatSession) send(ctx context.Context) (api.Message, error) {
	stream, err := s.client.Chat(ctx, api.ChatRequest{
		Model:    s.model,
		Messages: s.messages,
		System:   s.system,
	})
	if err != nil {
		return api.Message{}, err
	}

	var content strings.Builder
	_, err = streamText(ctx, stream, s.out, s.render, func(ev api.Event) (string, bool) {
		chunk, ok := ev.(api.ChatChunk)
		if ok {
			content.WriteString(chunk.Message.Content)
		}
		return chunk.Message.Content, ok
	})
	if err != nil {
		return api.Message{}, err
	}
	return api.Message{Role: api.RoleAssistant, Content: content.String()}, nil
}

func (s *ChatSession) handleCommand(ctx context.Context, input string) {
	parts := strings.Fields(input)
	switch strings.ToLower(parts[0]) {
	case "exit", "quit", "/exit", "/quit", "/q":
		fmt.Fprintln(s.out, "Goodbye!")
		s.exitFlag = true
	case "/clear", "/c":
		s.messages = nil
		fmt.Fprintln(s.out, "Conversation cleared.")
	case "/help", "/h":
		s.showHelp()
	case "/model":
		s.handleModelCommand(ctx, parts)
	default:
		display.ShowWarning(fmt.Sprintf("Unknown command %s. Type /help for commands.", parts[0]))
	}
}

func (s *ChatSession) handleModelCommand(ctx context.Context, parts []string) {
	if len(parts) < 2 {
		fmt.Fprintf(s.out, "Current model: %s\n", s.model)
		return
	}
	name := parts[1]
	if err := api.ValidateModelName(name); err != nil {
		display.ShowError(err.Error())
		return
	}
	if _, err := s.client.ShowModel(ctx, name); err != nil {
		display.ShowError(err.Error())
		return
	}
	s.model = name
	fmt.Fprintf(s.out, "Model changed to: %s\n", name)
}

func (s *ChatSession) showHelp() {
	fmt.Fprintln(s.out, `Commands:
  /model [name]  Show or switch the model
  /clear         Clear conversation history
  /help          Show this help
  /exit, /quit   Leave the chat (also: exit, quit, Ctrl+D)

Ctrl+C cancels a response in progress.`)
}

// loadModels caches installed model names for completion. Failures only
// cost completion.
func (s *ChatSession) loadModels(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	models, err := s.client.ListModels(ctx)
	if err != nil {
		logging.Debug("Model completion unavailable", logging.Fields{"error": err.Error()})
		return
	}
	for _, m := range models {
		s.models = append(s.models, m.Name)
	}
}

func (s *ChatSession) completer(d prompt.Document) ([]prompt.Suggest, istrings.RuneNumber, istrings.RuneNumber) {
	text := d.TextBeforeCursor()
	endIndex := d.CurrentRuneIndex()
	w := d.GetWordBeforeCursor()
	startIndex := endIndex - istrings.RuneCountInString(w)

	if !strings.HasPrefix(text, "/") {
		return []prompt.Suggest{}, startIndex, endIndex
	}

	if strings.HasPrefix(strings.ToLower(text), "/model ") {
		var suggestions []prompt.Suggest
		for _, m := range s.models {
			desc := ""
			if m == s.model {
				desc = "(current)"
			}
			suggestions = append(suggestions, prompt.Suggest{Text: m, Description: desc})
		}
		return prompt.FilterHasPrefix(suggestions, w, true), startIndex, endIndex
	}

	suggestions := []prompt.Suggest{
		{Text: "/model", Description: "Show/switch model (current: " + s.model + ")"},
		{Text: "/clear", Description: "Clear conversation history"},
		{Text: "/help", Description: "Show all available commands"},
		{Text: "/exit", Description: "Leave the chat"},
	}
	return prompt.FilterHasPrefix(suggestions, w, true), startIndex, endIndex
}

func (app *App) newChatCmd() *cobra.Command {
	var (
		model  string
		system string
		render bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a model interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := app.modelOrDefault(model)
			if err != nil {
				return err
			}
			if err := api.ValidateModelName(name); err != nil {
				return err
			}
			client, err := app.client()
			if err != nil {
				return err
			}
			if render {
				if err := display.InitRenderer(); err != nil {
					logging.Warn("Markdown rendering unavailable", logging.Fields{"error": err.Error()})
				}
			}

			session := NewChatSession(client, name, system, render, cmd.OutOrStdout())
			if display.IsTerminal(cmd.InOrStdin()) {
				return runPrompt(cmd.Context(), session)
			}
			return runLines(cmd.Context(), session, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Model name (default: settings.default_model)")
	cmd.Flags().StringVarP(&system, "system", "s", "", "System prompt")
	cmd.Flags().BoolVarP(&render, "render", "r", false, "Render responses as markdown")
	return cmd
}

// runLines feeds a non-interactive input to the session, one line per turn.
func runLines(ctx context.Context, s *ChatSession, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for !s.Exited() && scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Handle(ctx, scanner.Text())
	}
	return scanner.Err()
}

// runPrompt runs the REPL on a terminal.
func runPrompt(ctx context.Context, s *ChatSession) error {
	s.loadModels(ctx)

	fmt.Fprintf(s.out, "Chatting with %s on %s\n", s.model, s.client.Endpoint())
	fmt.Fprintln(s.out, "Type /help for commands, Ctrl+D to quit")
	fmt.Fprintln(s.out)

	executor := func(input string) {
		if s.exitFlag {
			return
		}
		// Ctrl+C while a response streams cancels only that response.
		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		s.Handle(turnCtx, input)
		fmt.Fprintln(s.out)
	}

	p := prompt.New(
		executor,
		prompt.WithCompleter(s.completer),
		prompt.WithPrefix(">>> "),
		prompt.WithTitle("ollama-ctl chat"),
		prompt.WithPrefixTextColor(prompt.Green),
		prompt.WithSuggestionBGColor(prompt.DarkBlue),
		prompt.WithSuggestionTextColor(prompt.White),
		prompt.WithSelectedSuggestionBGColor(prompt.Cyan),
		prompt.WithSelectedSuggestionTextColor(prompt.Black),
		prompt.WithDescriptionBGColor(prompt.DarkBlue),
		prompt.WithDescriptionTextColor(prompt.LightGray),
		prompt.WithSelectedDescriptionBGColor(prompt.Cyan),
		prompt.WithSelectedDescriptionTextColor(prompt.Black),
		prompt.WithCompletionOnDown(),
		prompt.WithExitChecker(func(in string, breakline bool) bool {
			return s.exitFlag
		}),
		prompt.WithKeyBind(prompt.KeyBind{
			Key: prompt.ControlC,
			Fn: func(p *prompt.Prompt) bool {
				fmt.Fprintln(s.out, "\nGoodbye!")
				s.exitFlag = true
				return false
			},
		}),
		prompt.WithKeyBind(prompt.KeyBind{
			Key: prompt.ControlD,
			Fn: func(p *prompt.Prompt) bool {
				if p.Buffer().Text() == "" {
					fmt.Fprintln(s.out, "Goodbye!")
					s.exitFlag = true
				}
				return false
			},
		}),
	)

	p.Run()
	return nil
}
