package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quocvuong92/ollama-ctl/internal/api"
	"github.com/quocvuong92/ollama-ctl/internal/display"
	"github.com/quocvuong92/ollama-ctl/internal/logging"
)

type runOptions struct {
	model    string
	system   string
	noStream bool
	render   bool
	stats    bool
}

func (app *App) newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Generate a completion for a prompt",
		Long: `Generate a completion for a prompt.

The prompt is taken from the arguments, or from stdin when no arguments
are given and stdin is not a terminal.

Examples:
  ollama-ctl run -m llama3 "Explain goroutines"
  git diff | ollama-ctl run -m llama3 --system "Review this diff"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(cmd, args)
			if err != nil {
				return err
			}
			return app.runGenerate(cmd, opts, prompt)
		},
	}

	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Model name (default: settings.default_model)")
	cmd.Flags().StringVarP(&opts.system, "system", "s", "", "System prompt")
	cmd.Flags().BoolVar(&opts.noStream, "no-stream", false, "Wait for the full response instead of streaming")
	cmd.Flags().BoolVarP(&opts.render, "render", "r", false, "Render the response as markdown")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "Print timing and token statistics to stderr")
	return cmd
}

func readPrompt(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	in := cmd.InOrStdin()
	if display.IsTerminal(in) {
		return "", newUsageError("no prompt given")
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", newUsageError("no prompt given")
	}
	return prompt, nil
}

func (app *App) runGenerate(cmd *cobra.Command, opts runOptions, prompt string) error {
	model, err := app.modelOrDefault(opts.model)
	if err != nil {
		return err
	}
	if err := api.ValidateModelName(model); err != nil {
		return err
	}
	cfg, err := app.loadConfig()
	if err != nil {
		return err
	}
	client, err := app.client()
	if err != nil {
		return err
	}
	if opts.render {
		if err := display.InitRenderer(); err != nil {
			logging.Warn("Markdown rendering unavailable", logging.Fields{"error": err.Error()})
		}
	}

	req := api.GenerateRequest{Model: model, Prompt: prompt, System: opts.system}
	ctx := cmd.Context()

	if app.jsonOutput || opts.noStream || !cfg.Settings.Stream {
		sp := display.NewSpinner("Thinking...")
		sp.Start()
		res, err := client.GenerateAll(ctx, req)
		sp.Stop()
		if err != nil {
			return err
		}
		if app.jsonOutput {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		showResponse(res.Response, opts.render)
		if opts.stats {
			showStats(res.Done.Metrics)
		}
		return nil
	}

	s, err := client.Generate(ctx, req)
	if err != nil {
		return err
	}
	done, err := streamText(ctx, s, cmd.OutOrStdout(), opts.render, func(ev api.Event) (string, bool) {
		chunk, ok := ev.(api.GenerateChunk)
		return chunk.Response, ok
	})
	if err != nil {
		return err
	}
	if opts.stats {
		showStats(done.Metrics)
	}
	return nil
}

// streamText prints text chunks as they arrive and returns the Done event.
// With render set the text is collected and rendered once complete.
func streamText(ctx context.Context, s *api.Stream, w io.Writer, render bool, text func(api.Event) (string, bool)) (api.Done, error) {
	defer s.Close()

	sp := display.NewSpinner("Thinking...")
	sp.Start()
	defer sp.Stop()

	var (
		full  strings.Builder
		done  api.Done
		first = true
	)
	for ev := range s.All() {
		if chunk, ok := text(ev); ok {
			if first {
				first = false
				if render {
					sp.UpdateMessage("Receiving...")
				} else {
					sp.Stop()
				}
			}
			full.WriteString(chunk)
			if !render {
				fmt.Fprint(w, chunk)
			}
			continue
		}
		switch ev := ev.(type) {
		case api.ErrorEvent:
			if !render && !first {
				fmt.Fprintln(w)
			}
			return api.Done{}, ev.Err
		case api.Done:
			done = ev
		}
	}
	sp.Stop()

	if err := s.Err(); err != nil {
		if !first && !render {
			fmt.Fprintln(w)
		}
		return api.Done{}, err
	}
	if err := ctx.Err(); err != nil {
		return api.Done{}, err
	}

	if render {
		display.ShowContentRendered(full.String())
	} else if !first && !strings.HasSuffix(full.String(), "\n") {
		fmt.Fprintln(w)
	}
	return done, nil
}

func showResponse(text string, render bool) {
	if render {
		display.ShowContentRendered(text)
		return
	}
	display.ShowContent(text)
}

func showStats(m api.Metrics) {
	display.ShowInfo(fmt.Sprintf("total %s, load %s, prompt %d tokens, eval %d tokens (%.1f tokens/s)",
		display.FormatDuration(m.TotalDuration),
		display.FormatDuration(m.LoadDuration),
		m.PromptEvalCount,
		m.EvalCount,
		m.TokensPerSecond(),
	))
}

func (app *App) newEmbedCmd() *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "embed [text]",
		Short: "Print the embedding vector for a text as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readPrompt(cmd, args)
			if err != nil {
				return err
			}
			name, err := app.modelOrDefault(model)
			if err != nil {
				return err
			}
			client, err := app.client()
			if err != nil {
				return err
			}
			vec, err := client.Embed(cmd.Context(), name, text)
			if err != nil {
				return err
			}
			return writeJSONLine(cmd, vec)
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Embedding model (default: settings.default_model)")
	return cmd
}
