// Package resolver turns CLI flags, the config file, MCP tool configs and
// environment variables into exactly one backend endpoint.
//
// Sources are consulted as an ordered list of tiers; the first tier that
// produces an endpoint wins and later tiers are never evaluated. Hostname,
// port, protocol and TLS verification always come from the same tier, with
// the single exception that --port overrides the port of an explicit host.
//
//  1. explicit --host (config alias, MCP alias, or host[:port] string)
//  2. MCP tool configs (only with --mcphost-config)
//  3. OLLAMA_HOST, refined by OLLAMA_PORT and OLLAMA_PROTOCOL
//  4. the config file's default_host alias
package resolver

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"time"

	"github.com/quocvuong92/ollama-ctl/internal/config"
	"github.com/quocvuong92/ollama-ctl/internal/constants"
	"github.com/quocvuong92/ollama-ctl/internal/endpoint"
	"github.com/quocvuong92/ollama-ctl/internal/logging"
	"github.com/quocvuong92/ollama-ctl/internal/mcp"
)

// Errors
var (
	ErrUnresolvedHost = errors.New("no backend host configured")
	ErrUnknownAlias   = errors.New("unknown host alias")
)

// Tier identifies which source produced an endpoint
type Tier int

const (
	TierExplicit Tier = iota + 1
	TierExternal
	TierEnvironment
	TierDefaultAlias
)

func (t Tier) String() string {
	switch t {
	case TierExplicit:
		return "explicit host"
	case TierExternal:
		return "mcp config"
	case TierEnvironment:
		return "environment"
	case TierDefaultAlias:
		return "default alias"
	default:
		return "unknown"
	}
}

// ResolveError reports an invalid value found in the winning tier.
type ResolveError struct {
	Tier  Tier
	Token string
	Err   error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("%s: cannot resolve %q: %v", e.Tier, e.Token, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// Input is everything resolution depends on. Resolve never reads the
// process environment or the filesystem itself.
type Input struct {
	// HostToken is the --host value; empty when not given.
	HostToken string
	// Port is the --port value; zero when not given.
	Port uint16
	// Config is the loaded config file. Nil behaves like an empty config.
	Config *config.Config
	// External holds discovered MCP entries in discovery order.
	External []mcp.ServerEntry
	// UseExternal enables MCP aliases in tier 1 and tier 2 as a whole.
	UseExternal bool
	// Env is a snapshot of the environment variables that matter.
	Env map[string]string
}

// Result is an endpoint along with where it came from
type Result struct {
	Endpoint endpoint.Descriptor
	Tier     Tier
	// Alias is the alias name when the endpoint came from one
	Alias string
	// Source describes the origin: a file path or an environment variable
	Source string
}

type tierFunc func(in Input) (Result, bool, error)

var tiers = []tierFunc{
	tierExplicit,
	tierExternal,
	tierEnvironment,
	tierDefaultAlias,
}

// Resolve returns the endpoint selected by the first tier that applies.
func Resolve(in Input) (endpoint.Descriptor, error) {
	r, err := Explain(in)
	if err != nil {
		return endpoint.Descriptor{}, err
	}
	return r.Endpoint, nil
}

// Explain is Resolve with provenance.
func Explain(in Input) (Result, error) {
	if in.Config == nil {
		in.Config = &config.Config{}
	}
	if in.HostToken == "" && in.Port != 0 {
		logging.Warn("--port has no effect without --host", logging.Fields{"port": in.Port})
	}

	for _, tier := range tiers {
		r, ok, err := tier(in)
		if err != nil {
			return Result{}, err
		}
		if ok {
			logging.Debug("Resolved backend host", logging.Fields{
				"tier":   r.Tier.String(),
				"url":    r.Endpoint.BaseURL(),
				"alias":  r.Alias,
				"source": r.Source,
			})
			return r, nil
		}
	}
	return Result{}, fmt.Errorf("%w: use --host, set %s, or set default_host in the config file", ErrUnresolvedHost, constants.EnvHost)
}

func tierExplicit(in Input) (Result, bool, error) {
	if in.HostToken == "" {
		return Result{}, false, nil
	}
	timeout := in.Config.Settings.Timeout

	r, ok, err := lookupAlias(in, in.HostToken)
	if err != nil {
		return Result{}, false, err
	}
	if !ok {
		spec, err := ParseHost(in.HostToken)
		if err != nil {
			return Result{}, false, &ResolveError{Tier: TierExplicit, Token: in.HostToken, Err: err}
		}
		d, err := descriptor(spec, true, timeout)
		if err != nil {
			return Result{}, false, &ResolveError{Tier: TierExplicit, Token: in.HostToken, Err: err}
		}
		r = Result{Endpoint: d, Source: "--host"}
	}

	r.Tier = TierExplicit
	if in.Port != 0 {
		r.Endpoint = r.Endpoint.WithPort(in.Port)
	}
	return r, true, nil
}

// lookupAlias checks config aliases, then MCP-derived aliases when enabled.
// Config aliases win over MCP aliases; among MCP entries the earliest wins.
func lookupAlias(in Input, name string) (Result, bool, error) {
	if a, ok := in.Config.Alias(name); ok {
		d, err := a.Descriptor(in.Config.Settings.Timeout)
		if err != nil {
			return Result{}, false, &ResolveError{Tier: TierExplicit, Token: name, Err: err}
		}
		return Result{Endpoint: d, Alias: name, Source: configSource(in.Config)}, true, nil
	}

	if !in.UseExternal {
		return Result{}, false, nil
	}
	for _, e := range in.External {
		alias := e.Alias()
		if alias == "" || alias != name {
			continue
		}
		spec, _, ok, err := envSpec(e.Env)
		if err != nil {
			return Result{}, false, &ResolveError{Tier: TierExplicit, Token: name, Err: err}
		}
		if !ok {
			// A launcher-only entry runs a local backend.
			local := maps.Clone(e.Env)
			if local == nil {
				local = make(map[string]string, 1)
			}
			local[constants.EnvHost] = constants.DefaultHostname
			if spec, _, _, err = envSpec(local); err != nil {
				return Result{}, false, &ResolveError{Tier: TierExplicit, Token: name, Err: err}
			}
		}
		d, err := descriptor(spec, true, in.Config.Settings.Timeout)
		if err != nil {
			return Result{}, false, &ResolveError{Tier: TierExplicit, Token: name, Err: err}
		}
		return Result{Endpoint: d, Alias: alias, Source: e.Source}, true, nil
	}
	return Result{}, false, nil
}

func tierExternal(in Input) (Result, bool, error) {
	if !in.UseExternal {
		return Result{}, false, nil
	}
	for _, e := range in.External {
		spec, raw, ok, err := envSpec(e.Env)
		if !ok && err == nil {
			continue
		}
		var d endpoint.Descriptor
		if err == nil {
			d, err = descriptor(spec, true, in.Config.Settings.Timeout)
		}
		if err != nil {
			// A broken entry in one MCP file must not hide the ones after it.
			logging.Warn("Skipping invalid MCP server host", logging.Fields{
				"server": e.Label,
				"source": e.Source,
				"value":  raw,
				"error":  err.Error(),
			})
			continue
		}
		return Result{Endpoint: d, Tier: TierExternal, Alias: e.Alias(), Source: e.Source}, true, nil
	}
	return Result{}, false, nil
}

func tierEnvironment(in Input) (Result, bool, error) {
	spec, raw, ok, err := envSpec(in.Env)
	if err != nil {
		return Result{}, false, &ResolveError{Tier: TierEnvironment, Token: raw, Err: err}
	}
	if !ok {
		return Result{}, false, nil
	}
	d, err := descriptor(spec, true, in.Config.Settings.Timeout)
	if err != nil {
		return Result{}, false, &ResolveError{Tier: TierEnvironment, Token: raw, Err: err}
	}
	return Result{Endpoint: d, Tier: TierEnvironment, Source: constants.EnvHost}, true, nil
}

func tierDefaultAlias(in Input) (Result, bool, error) {
	name := in.Config.DefaultHost
	if name == "" {
		return Result{}, false, nil
	}
	a, ok := in.Config.Alias(name)
	if !ok {
		return Result{}, false, &ResolveError{Tier: TierDefaultAlias, Token: name, Err: ErrUnknownAlias}
	}
	d, err := a.Descriptor(in.Config.Settings.Timeout)
	if err != nil {
		return Result{}, false, &ResolveError{Tier: TierDefaultAlias, Token: name, Err: err}
	}
	return Result{Endpoint: d, Tier: TierDefaultAlias, Alias: name, Source: configSource(in.Config)}, true, nil
}

func descriptor(spec HostSpec, verifyTLS bool, timeout time.Duration) (endpoint.Descriptor, error) {
	spec = spec.withDefaults()
	return endpoint.New(spec.Protocol, spec.Hostname, spec.Port, verifyTLS, timeout)
}

func configSource(cfg *config.Config) string {
	if cfg.Source == "" {
		return "built-in defaults"
	}
	return cfg.Source
}

// Environ snapshots the environment variables tier 3 reads.
func Environ() map[string]string {
	env := make(map[string]string, 3)
	for _, k := range []string{constants.EnvHost, constants.EnvPort, constants.EnvProtocol} {
		if v, ok := os.LookupEnv(k); ok {
			env[k] = v
		}
	}
	return env
}
