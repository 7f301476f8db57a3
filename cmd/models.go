package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quocvuong92/ollama-ctl/internal/api"
	"github.com/quocvuong92/ollama-ctl/internal/display"
)

func (app *App) newListModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list-models",
		Aliases: []string{"ls", "list"},
		Short:   "List models installed on the backend",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.client()
			if err != nil {
				return err
			}

			sp := display.NewSpinner("Fetching models...")
			sp.Start()
			models, err := client.ListModels(cmd.Context())
			sp.Stop()
			if err != nil {
				return err
			}

			if app.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), models)
			}
			display.ShowModels(cmd.OutOrStdout(), models)
			return nil
		},
	}
}

func (app *App) newShowCmd() *cobra.Command {
	var modelfile bool

	cmd := &cobra.Command{
		Use:   "show <model>",
		Short: "Show details of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := api.ValidateModelName(name); err != nil {
				return err
			}
			client, err := app.client()
			if err != nil {
				return err
			}

			detail, err := client.ShowModel(cmd.Context(), name)
			if err != nil {
				if api.IsNotFound(err) {
					return fmt.Errorf("model %q not found on %s: %w", name, client.Endpoint(), err)
				}
				return err
			}

			switch {
			case app.jsonOutput:
				return writeJSON(cmd.OutOrStdout(), detail)
			case modelfile:
				fmt.Fprint(cmd.OutOrStdout(), detail.Modelfile)
			default:
				display.ShowModelDetail(cmd.OutOrStdout(), name, detail)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&modelfile, "modelfile", false, "Print the raw Modelfile")
	return cmd
}

func (app *App) newDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete <model>",
		Aliases: []string{"rm"},
		Short:   "Delete a model from the backend",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := api.ValidateModelName(name); err != nil {
				return err
			}
			client, err := app.client()
			if err != nil {
				return err
			}

			if !yes {
				question := fmt.Sprintf("Delete %s from %s?", name, client.Endpoint())
				if !display.Confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), question) {
					display.ShowInfo("Aborted.")
					return nil
				}
			}

			if err := client.DeleteModel(cmd.Context(), name); err != nil {
				if api.IsNotFound(err) {
					return fmt.Errorf("model %q not found on %s: %w", name, client.Endpoint(), err)
				}
				return err
			}
			display.ShowSuccess(fmt.Sprintf("Deleted %s", name))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func (app *App) newPullCmd() *cobra.Command {
	var insecure bool

	cmd := &cobra.Command{
		Use:   "pull <model>",
		Short: "Download a model to the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.client()
			if err != nil {
				return err
			}
			s, err := client.Pull(cmd.Context(), args[0], insecure)
			if err != nil {
				return err
			}
			if err := app.followTransfer(cmd, s); err != nil {
				return err
			}
			if !app.jsonOutput {
				display.ShowSuccess(fmt.Sprintf("Pulled %s", args[0]))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&insecure, "insecure", false, "Allow insecure connections to the registry")
	return cmd
}

func (app *App) newPushCmd() *cobra.Command {
	var insecure bool

	cmd := &cobra.Command{
		Use:   "push <model>",
		Short: "Upload a model to its registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.client()
			if err != nil {
				return err
			}
			s, err := client.Push(cmd.Context(), args[0], insecure)
			if err != nil {
				return err
			}
			if err := app.followTransfer(cmd, s); err != nil {
				return err
			}
			if !app.jsonOutput {
				display.ShowSuccess(fmt.Sprintf("Pushed %s", args[0]))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&insecure, "insecure", false, "Allow insecure connections to the registry")
	return cmd
}

// transferEvent is one line of `pull --json` / `push --json` output
type transferEvent struct {
	Type string `json:"type"`
	api.Progress
	Error string `json:"error,omitempty"`
}

// followTransfer drains a pull or push stream, rendering progress.
func (app *App) followTransfer(cmd *cobra.Command, s *api.Stream) error {
	defer s.Close()

	var progress *display.ProgressPrinter
	if !app.jsonOutput {
		progress = display.NewProgressPrinter(cmd.ErrOrStderr())
		defer progress.Finish()
	}

	for ev := range s.All() {
		switch ev := ev.(type) {
		case api.Progress:
			if app.jsonOutput {
				if err := writeJSONLine(cmd, transferEvent{Type: ev.Kind().String(), Progress: ev}); err != nil {
					return err
				}
				continue
			}
			progress.Update(ev)
		case api.ErrorEvent:
			if app.jsonOutput {
				_ = writeJSONLine(cmd, transferEvent{Type: ev.Kind().String(), Error: ev.Error()})
			}
			return ev.Err
		case api.Done:
			if app.jsonOutput {
				return writeJSONLine(cmd, transferEvent{Type: ev.Kind().String(), Progress: api.Progress{Status: ev.Status}})
			}
		}
	}
	return s.Err()
}
