package mcp

import (
	"regexp"
	"strings"

	"github.com/quocvuong92/ollama-ctl/internal/constants"
)

// ServerEntry is one server definition from an MCP tool config
type ServerEntry struct {
	Label   string
	Command string
	Args    []string
	Env     map[string]string
	// Source is the file the entry was read from
	Source string
}

// recognisedEnv are the env keys that mark an entry as describing a backend
var recognisedEnv = []string{constants.EnvHost, constants.EnvPort, constants.EnvProtocol}

const launcherToken = "ollama"

// Relevant reports whether the entry describes a backend connection: its
// env carries a recognised key, or its command line mentions the launcher.
func (e ServerEntry) Relevant() bool {
	for _, k := range recognisedEnv {
		if _, ok := e.Env[k]; ok {
			return true
		}
	}
	if strings.Contains(strings.ToLower(e.Command), launcherToken) {
		return true
	}
	for _, a := range e.Args {
		if strings.Contains(strings.ToLower(a), launcherToken) {
			return true
		}
	}
	return false
}

// Alias is the host alias derived from the entry label.
func (e ServerEntry) Alias() string {
	return SanitizeAlias(e.Label)
}

var (
	aliasSeparators = strings.NewReplacer(" ", "-", "_", "-")
	aliasInvalid    = regexp.MustCompile(`[^a-z0-9-]+`)
	aliasDashes     = regexp.MustCompile(`-{2,}`)
)

// SanitizeAlias lowercases a label, turns spaces and underscores into
// hyphens, drops other punctuation and collapses repeated hyphens.
func SanitizeAlias(label string) string {
	s := aliasSeparators.Replace(strings.ToLower(strings.TrimSpace(label)))
	s = aliasInvalid.ReplaceAllString(s, "")
	s = aliasDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
