// Package mcp discovers backend connection hints in the configuration files
// of third-party MCP tools (Cursor, Claude Desktop, Codex).
//
// Discovery is read-only and never fails: a missing file is skipped and a
// malformed file contributes no entries. Entries keep the order in which they
// appear in their file; files are visited in a fixed order.
package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"

	"github.com/quocvuong92/ollama-ctl/internal/logging"
)

// Format is the file syntax of a discovery location
type Format int

const (
	// FormatJSON files carry a top-level "mcpServers" object
	FormatJSON Format = iota
	// FormatTOML files carry [mcp_servers.<label>] tables
	FormatTOML
)

// Location is one file inspected during discovery
type Location struct {
	Path   string
	Format Format
}

// DefaultLocations returns the fixed search order rooted at cwd and home.
func DefaultLocations(cwd, home string) []Location {
	return []Location{
		{Path: filepath.Join(cwd, ".cursor", "mcp.json"), Format: FormatJSON},
		{Path: filepath.Join(home, ".cursor", "mcp.json"), Format: FormatJSON},
		{Path: filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json"), Format: FormatJSON},
		{Path: filepath.Join(home, ".config", "Claude", "claude_desktop_config.json"), Format: FormatJSON},
		{Path: filepath.Join(home, ".codex", "config.toml"), Format: FormatTOML},
	}
}

// Discoverer reads MCP tool configs from a list of locations
type Discoverer struct {
	Locations []Location
	// ReadFile defaults to os.ReadFile
	ReadFile func(path string) ([]byte, error)
}

// NewDiscoverer returns a Discoverer over DefaultLocations for the current
// working directory and home directory.
func NewDiscoverer() *Discoverer {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = cwd
	}
	return &Discoverer{Locations: DefaultLocations(cwd, home)}
}

// Discover runs discovery over the default locations.
func Discover() []ServerEntry {
	return NewDiscoverer().Discover()
}

// Discover returns the relevant entries of every location, in order.
func (d *Discoverer) Discover() []ServerEntry {
	readFile := d.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}
	log := logging.WithFields(logging.Fields{"component": "mcp"})

	var out []ServerEntry
	for _, loc := range d.Locations {
		data, err := readFile(loc.Path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			log.Warn("Skipping unreadable MCP config", logging.Fields{"path": loc.Path, "error": err.Error()})
			continue
		}

		var entries []ServerEntry
		switch loc.Format {
		case FormatTOML:
			entries, err = parseTOML(data)
		default:
			entries, err = parseJSON(data)
		}
		if err != nil {
			log.Warn("Skipping malformed MCP config", logging.Fields{"path": loc.Path, "error": err.Error()})
			continue
		}

		kept := 0
		for _, e := range entries {
			if !e.Relevant() {
				continue
			}
			e.Source = loc.Path
			out = append(out, e)
			kept++
		}
		log.Debug("Read MCP config", logging.Fields{"path": loc.Path, "servers": len(entries), "relevant": kept})
	}
	return out
}

type rawServer struct {
	Command string         `json:"command" toml:"command"`
	Args    []string       `json:"args" toml:"args"`
	Env     map[string]any `json:"env" toml:"env"`
}

func (r rawServer) entry(label string) ServerEntry {
	e := ServerEntry{
		Label:   label,
		Command: r.Command,
		Args:    slices.Clone(r.Args),
	}
	if len(r.Env) > 0 {
		e.Env = make(map[string]string, len(r.Env))
		for k, v := range r.Env {
			switch v := v.(type) {
			case string:
				e.Env[k] = v
			case json.Number:
				e.Env[k] = v.String()
			default:
				e.Env[k] = fmt.Sprint(v)
			}
		}
	}
	return e
}

// parseJSON walks the document token by token so that mcpServers entries
// come out in document order.
func parseJSON(data []byte) ([]ServerEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var entries []ServerEntry
	for dec.More() {
		key, err := objectKey(dec)
		if err != nil {
			return nil, err
		}
		if key != "mcpServers" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
			continue
		}

		if err := expectDelim(dec, '{'); err != nil {
			return nil, fmt.Errorf("mcpServers: %w", err)
		}
		for dec.More() {
			label, err := objectKey(dec)
			if err != nil {
				return nil, err
			}
			var raw rawServer
			if err := dec.Decode(&raw); err != nil {
				return nil, fmt.Errorf("mcpServers.%s: %w", label, err)
			}
			entries = append(entries, raw.entry(label))
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return entries, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func objectKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}

// parseTOML reads Codex-style [mcp_servers.<label>] tables, ordered by the
// position of each table in the file.
func parseTOML(data []byte) ([]ServerEntry, error) {
	var doc struct {
		MCPServers map[string]rawServer `toml:"mcp_servers"`
	}
	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, err
	}

	var entries []ServerEntry
	seen := make(map[string]bool, len(doc.MCPServers))
	for _, key := range md.Keys() {
		if len(key) != 2 || key[0] != "mcp_servers" || seen[key[1]] {
			continue
		}
		raw, ok := doc.MCPServers[key[1]]
		if !ok {
			continue
		}
		seen[key[1]] = true
		entries = append(entries, raw.entry(key[1]))
	}
	return entries, nil
}
