package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/quocvuong92/ollama-ctl/internal/api"
	"github.com/quocvuong92/ollama-ctl/internal/config"
	"github.com/quocvuong92/ollama-ctl/internal/constants"
	"github.com/quocvuong92/ollama-ctl/internal/display"
	"github.com/quocvuong92/ollama-ctl/internal/logging"
	"github.com/quocvuong92/ollama-ctl/internal/mcp"
	"github.com/quocvuong92/ollama-ctl/internal/resolver"
)

// App holds the global flags and the collaborators commands share
type App struct {
	configPath string
	useMCP     bool
	host       string
	port       uint16
	verbose    bool
	logFormat  string
	jsonOutput bool

	cfg *config.Config

	// Swappable for tests
	discover   func() []mcp.ServerEntry
	environ    func() map[string]string
	clientOpts []api.Option
}

// NewApp creates a new App instance reading the real environment
func NewApp() *App {
	return &App{
		discover: mcp.Discover,
		environ:  resolver.Environ,
	}
}

// Execute runs the root command and exits with the code for its error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := NewRootCmd(NewApp()).ExecuteContext(ctx)
	if err != nil {
		display.ShowError(err.Error())
	}
	stop()
	os.Exit(ExitCode(err))
}

// NewRootCmd builds the command tree around app
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   constants.AppName,
		Short: "A command-line client for Ollama backends",
		Long: `ollama-ctl manages models and runs prompts against a local or remote
Ollama backend.

The backend is chosen, in order, from --host, an MCP tool config
(with --mcphost-config), OLLAMA_HOST, and default_host in the config file.

Examples:
  ollama-ctl list-models
  ollama-ctl -H gpu-box:11434 run -m llama3 "Why is the sky blue?"
  ollama-ctl --mcphost-config hosts --check
  ollama-ctl chat -m llama3 --render`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&app.configPath, "config", "c", "", "Config file (default: ./"+constants.LocalConfigFile+" or the user config dir)")
	flags.BoolVar(&app.useMCP, "mcphost-config", false, "Discover hosts from MCP tool configs (Cursor, Claude Desktop, Codex)")
	flags.StringVarP(&app.host, "host", "H", "", "Host alias, hostname, host:port or URL")
	flags.Uint16VarP(&app.port, "port", "p", 0, "Port override for --host")
	flags.BoolVarP(&app.verbose, "verbose", "v", false, "Enable debug logging, including HTTP exchanges")
	flags.StringVar(&app.logFormat, "log-format", "text", "Log format: text or json")
	flags.BoolVar(&app.jsonOutput, "json", false, "Print machine-readable JSON where supported")

	rootCmd.AddCommand(
		app.newListModelsCmd(),
		app.newShowCmd(),
		app.newDeleteCmd(),
		app.newPullCmd(),
		app.newPushCmd(),
		app.newRunCmd(),
		app.newChatCmd(),
		app.newEmbedCmd(),
		app.newHealthCmd(),
		app.newHostsCmd(),
		app.newInitConfigCmd(),
		app.newResolveCmd(),
	)

	return rootCmd
}

func (app *App) setup(cmd *cobra.Command) error {
	display.Stdout = cmd.OutOrStdout()
	display.Stderr = cmd.ErrOrStderr()

	level := logging.LevelWarn
	if app.verbose {
		level = logging.LevelDebug
	}
	logging.Configure(logging.Options{
		Level:  logging.LevelFromEnv(constants.EnvLogLevel, level),
		Format: logging.ParseFormat(app.logFormat),
		Output: cmd.ErrOrStderr(),
	})

	if cmd.Flags().Changed("port") && app.port == 0 {
		return newUsageError("--port must be between 1 and 65535")
	}
	return nil
}

// loadConfig reads the config file once per invocation.
func (app *App) loadConfig() (*config.Config, error) {
	if app.cfg != nil {
		return app.cfg, nil
	}
	cfg, err := config.Load(app.configPath)
	if err != nil {
		return nil, err
	}
	app.cfg = cfg
	return cfg, nil
}

func (app *App) resolverInput() (resolver.Input, error) {
	cfg, err := app.loadConfig()
	if err != nil {
		return resolver.Input{}, err
	}
	in := resolver.Input{
		HostToken:   app.host,
		Port:        app.port,
		Config:      cfg,
		UseExternal: app.useMCP,
		Env:         app.environ(),
	}
	if app.useMCP {
		in.External = app.discover()
	}
	return in, nil
}

func (app *App) resolve() (resolver.Result, error) {
	in, err := app.resolverInput()
	if err != nil {
		return resolver.Result{}, err
	}
	return resolver.Explain(in)
}

func (app *App) client() (*api.Client, error) {
	r, err := app.resolve()
	if err != nil {
		return nil, err
	}
	return api.NewClient(r.Endpoint, app.apiOptions()...), nil
}

func (app *App) apiOptions() []api.Option {
	opts := append([]api.Option(nil), app.clientOpts...)
	if logging.DefaultLogger.Enabled(logging.LevelDebug) {
		opts = append(opts, api.WithHTTPLogging(logging.DefaultLogger))
	}
	return opts
}

// modelOrDefault falls back to settings.default_model.
func (app *App) modelOrDefault(model string) (string, error) {
	if model != "" {
		return model, nil
	}
	cfg, err := app.loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.Settings.DefaultModel == "" {
		return "", newUsageError("no model given: use --model or set settings.default_model")
	}
	return cfg.Settings.DefaultModel, nil
}

// usageError is a command-line mistake; it exits with code 1.
type usageError struct {
	msg string
}

func newUsageError(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func (e *usageError) Error() string { return e.msg }

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeJSONLine writes v as a single NDJSON line
func writeJSONLine(cmd *cobra.Command, v any) error {
	return json.NewEncoder(cmd.OutOrStdout()).Encode(v)
}
