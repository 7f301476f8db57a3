package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/quocvuong92/ollama-ctl/internal/api"
	"github.com/quocvuong92/ollama-ctl/internal/config"
	"github.com/quocvuong92/ollama-ctl/internal/constants"
	"github.com/quocvuong92/ollama-ctl/internal/display"
	"github.com/quocvuong92/ollama-ctl/internal/endpoint"
	"github.com/quocvuong92/ollama-ctl/internal/logging"
	"github.com/quocvuong92/ollama-ctl/internal/resolver"
)

// maxConcurrentChecks bounds `hosts --check` probes
const maxConcurrentChecks = 4

type healthReport struct {
	URL     string `json:"url"`
	Healthy bool   `json:"healthy"`
	Version string `json:"version,omitempty"`
}

func (app *App) newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.client()
			if err != nil {
				return err
			}

			sp := display.NewSpinner("Checking " + client.Endpoint().BaseURL() + "...")
			sp.Start()
			err = client.Health(cmd.Context())
			sp.Stop()
			if err != nil {
				return err
			}

			report := healthReport{URL: client.Endpoint().BaseURL(), Healthy: true}
			if v, err := client.Version(cmd.Context()); err == nil {
				report.Version = v
			} else {
				logging.Debug("Version unavailable", logging.Fields{"error": err.Error()})
			}

			if app.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			msg := "Backend reachable at " + report.URL
			if report.Version != "" {
				msg += " (version " + report.Version + ")"
			}
			display.ShowSuccess(msg)
			return nil
		},
	}
}

type hostEntry struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Source   string `json:"source"`
	Default  bool   `json:"default,omitempty"`
	Status   string `json:"status,omitempty"`
	endpoint endpoint.Descriptor
}

func (app *App) newHostsCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "hosts",
		Short: "List configured and discovered host aliases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := app.hostEntries()
			if err != nil {
				return err
			}
			if check {
				app.checkHosts(cmd.Context(), entries)
			}

			if app.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			rows := make([]display.HostRow, len(entries))
			for i, e := range entries {
				rows[i] = display.HostRow{
					Name:     e.Name,
					Endpoint: e.URL,
					Source:   e.Source,
					Default:  e.Default,
					Status:   e.Status,
				}
			}
			display.ShowHosts(cmd.OutOrStdout(), rows, check)
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Probe each host concurrently")
	return cmd
}

// hostEntries lists config aliases in name order, then MCP aliases in
// discovery order. MCP aliases shadowed by an earlier alias are skipped.
func (app *App) hostEntries() ([]hostEntry, error) {
	in, err := app.resolverInput()
	if err != nil {
		return nil, err
	}

	var entries []hostEntry
	seen := make(map[string]bool)
	for _, a := range in.Config.Aliases() {
		d, err := a.Descriptor(in.Config.Settings.Timeout)
		if err != nil {
			return nil, err
		}
		seen[a.Name] = true
		entries = append(entries, hostEntry{
			Name:     a.Name,
			URL:      d.BaseURL(),
			Source:   sourceOrDefault(in.Config.Source),
			Default:  a.Name == in.Config.DefaultHost,
			endpoint: d,
		})
	}

	// Resolve MCP aliases through tier 1 alone so env vars cannot interfere.
	aliasOnly := resolver.Input{
		Config:      &config.Config{Settings: in.Config.Settings},
		External:    in.External,
		UseExternal: true,
	}
	for _, e := range in.External {
		name := e.Alias()
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		aliasOnly.HostToken = name
		r, err := resolver.Explain(aliasOnly)
		if err != nil {
			logging.Warn("Skipping MCP host", logging.Fields{"label": e.Label, "source": e.Source, "error": err.Error()})
			continue
		}
		entries = append(entries, hostEntry{
			Name:     name,
			URL:      r.Endpoint.BaseURL(),
			Source:   e.Source,
			endpoint: r.Endpoint,
		})
	}
	return entries, nil
}

func sourceOrDefault(source string) string {
	if source == "" {
		return "built-in"
	}
	return source
}

// checkHosts probes every entry and records "ok" or the failure reason.
func (app *App) checkHosts(ctx context.Context, entries []hostEntry) {
	sp := display.NewSpinner(fmt.Sprintf("Checking %d hosts...", len(entries)))
	sp.Start()
	defer sp.Stop()

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentChecks)

	for i := range entries {
		g.Go(func() error {
			d := entries[i].endpoint
			d.Timeout = constants.DefaultCheckTimeout
			probeCtx, cancel := context.WithTimeout(ctx, constants.DefaultCheckTimeout)
			defer cancel()

			status := "ok"
			opts := append(app.apiOptions(), api.WithRetryAttempts(1))
			if err := api.NewClient(d, opts...).Health(probeCtx); err != nil {
				status = probeStatus(err)
			}

			mu.Lock()
			entries[i].Status = status
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

func probeStatus(err error) string {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	switch apiErr.Kind {
	case api.KindUnreachable:
		return apiErr.Reason.String()
	case api.KindBackend:
		return fmt.Sprintf("status %d", apiErr.StatusCode)
	default:
		return apiErr.Kind.String()
	}
}

type resolveReport struct {
	URL       string `json:"url"`
	Protocol  string `json:"protocol"`
	Hostname  string `json:"hostname"`
	Port      uint16 `json:"port"`
	VerifyTLS bool   `json:"verify_tls"`
	Timeout   string `json:"timeout"`
	Tier      string `json:"tier"`
	Alias     string `json:"alias,omitempty"`
	Source    string `json:"source"`
}

func (app *App) newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Show which backend would be used and why",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := app.resolve()
			if err != nil {
				return err
			}
			d := r.Endpoint
			report := resolveReport{
				URL:       d.BaseURL(),
				Protocol:  string(d.Protocol),
				Hostname:  d.Hostname,
				Port:      d.Port,
				VerifyTLS: d.VerifyTLS,
				Timeout:   d.Timeout.String(),
				Tier:      r.Tier.String(),
				Alias:     r.Alias,
				Source:    r.Source,
			}
			if app.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "url:        %s\n", report.URL)
			fmt.Fprintf(out, "tier:       %s\n", report.Tier)
			if report.Alias != "" {
				fmt.Fprintf(out, "alias:      %s\n", report.Alias)
			}
			fmt.Fprintf(out, "source:     %s\n", report.Source)
			fmt.Fprintf(out, "verify tls: %t\n", report.VerifyTLS)
			fmt.Fprintf(out, "timeout:    %s\n", report.Timeout)
			return nil
		},
	}
}

func (app *App) newInitConfigCmd() *cobra.Command {
	var (
		output string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write an example config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.CreateExampleConfigFile(output, force)
			if err != nil {
				return err
			}
			display.ShowSuccess("Wrote example config to " + path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Path to write (default: the user config dir)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
