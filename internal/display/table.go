package display

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/quocvuong92/ollama-ctl/internal/api"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

// ShowModels prints installed models in backend order.
func ShowModels(w io.Writer, models []api.ModelSummary) {
	if len(models) == 0 {
		fmt.Fprintln(w, "No models installed. Pull one with: ollama-ctl pull <model>")
		return
	}

	t := newTable("NAME", "ID", "SIZE", "PARAMS", "QUANT", "MODIFIED")
	for _, m := range models {
		t.Row(
			m.Name,
			ShortDigest(m.Digest),
			FormatBytes(m.Size),
			orDash(m.Details.ParameterSize),
			orDash(m.Details.QuantizationLevel),
			FormatAge(m.ModifiedAt),
		)
	}
	fmt.Fprintln(w, t.Render())
}

// ShowModelDetail prints the metadata of a single model.
func ShowModelDetail(w io.Writer, name string, d *api.ModelDetail) {
	fmt.Fprintln(w, headerStyle.Render(name))

	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(w, "  %-14s %s\n", labelStyle.Render(label), value)
		}
	}
	field("family", d.Details.Family)
	field("parameters", d.Details.ParameterSize)
	field("quantization", d.Details.QuantizationLevel)
	field("format", d.Details.Format)
	if len(d.Capabilities) > 0 {
		field("capabilities", strings.Join(d.Capabilities, ", "))
	}
	if !d.ModifiedAt.IsZero() {
		field("modified", FormatAge(d.ModifiedAt))
	}

	if len(d.ModelInfo) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, labelStyle.Render("Model info"))
		for _, k := range slices.Sorted(maps.Keys(d.ModelInfo)) {
			fmt.Fprintf(w, "  %s: %v\n", k, d.ModelInfo[k])
		}
	}
	if d.Parameters != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, labelStyle.Render("Parameters"))
		for _, line := range strings.Split(strings.TrimSpace(d.Parameters), "\n") {
			fmt.Fprintf(w, "  %s\n", strings.Join(strings.Fields(line), " "))
		}
	}
	if d.System != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, labelStyle.Render("System"))
		fmt.Fprintf(w, "  %s\n", d.System)
	}
	if d.License != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, labelStyle.Render("License"))
		fmt.Fprintf(w, "  %s\n", Truncate(strings.SplitN(strings.TrimSpace(d.License), "\n", 2)[0], 72))
	}
}

// HostRow is one line of the hosts table
type HostRow struct {
	Name     string
	Endpoint string
	Source   string
	Default  bool
	// Status is empty unless reachability was checked
	Status string
}

// ShowHosts prints configured and discovered host aliases.
func ShowHosts(w io.Writer, rows []HostRow, checked bool) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No hosts configured. Create a config with: ollama-ctl init-config")
		return
	}

	headers := []string{"", "NAME", "ENDPOINT", "SOURCE"}
	if checked {
		headers = append(headers, "STATUS")
	}
	t := newTable(headers...)
	for _, r := range rows {
		marker := ""
		if r.Default {
			marker = "*"
		}
		cells := []string{marker, r.Name, r.Endpoint, r.Source}
		if checked {
			cells = append(cells, statusCell(r.Status))
		}
		t.Row(cells...)
	}
	fmt.Fprintln(w, t.Render())
}

func statusCell(status string) string {
	if status == "ok" {
		return successStyle.Render(status)
	}
	return errorStyle.Render(status)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
