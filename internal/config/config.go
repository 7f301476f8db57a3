package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/quocvuong92/ollama-ctl/internal/constants"
	"github.com/quocvuong92/ollama-ctl/internal/endpoint"
)

// Errors
var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrConfigParse    = errors.New("invalid config file")
	ErrConfigExists   = errors.New("config file already exists")
)

// NotFoundError is returned when an explicitly requested config file is missing.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("config file not found: %s", e.Path)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrConfigNotFound
}

// ParseError is returned when a config file exists but cannot be used.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse config file %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrConfigParse
}

// HostAlias is a named, validated backend address from the config file
type HostAlias struct {
	Name      string
	Hostname  string
	Port      uint16
	Protocol  endpoint.Protocol
	VerifyTLS bool
}

// Descriptor converts the alias into an endpoint using the given timeout.
func (a HostAlias) Descriptor(timeout time.Duration) (endpoint.Descriptor, error) {
	return endpoint.New(a.Protocol, a.Hostname, a.Port, a.VerifyTLS, timeout)
}

// Settings holds the global `settings:` section
type Settings struct {
	Timeout      time.Duration
	Stream       bool
	DefaultModel string
}

// Config is the immutable result of loading a config file.
type Config struct {
	// Source is the path the config was read from; empty for built-in defaults.
	Source      string
	DefaultHost string
	Hosts       map[string]HostAlias
	Settings    Settings
}

// Default returns the configuration used when no config file is found:
// a single "local" alias pointing at the default backend port.
func Default() *Config {
	local := HostAlias{
		Name:      constants.DefaultAliasName,
		Hostname:  constants.DefaultHostname,
		Port:      constants.DefaultPort,
		Protocol:  endpoint.ProtocolHTTP,
		VerifyTLS: true,
	}
	return &Config{
		DefaultHost: local.Name,
		Hosts:       map[string]HostAlias{local.Name: local},
		Settings:    defaultSettings(),
	}
}

func defaultSettings() Settings {
	return Settings{
		Timeout: constants.DefaultTimeout,
		Stream:  true,
	}
}

// Alias looks up a host alias by exact name.
func (c *Config) Alias(name string) (HostAlias, bool) {
	a, ok := c.Hosts[name]
	return a, ok
}

// Aliases returns all aliases sorted by name.
func (c *Config) Aliases() []HostAlias {
	names := slices.Sorted(maps.Keys(c.Hosts))
	out := make([]HostAlias, 0, len(names))
	for _, n := range names {
		out = append(out, c.Hosts[n])
	}
	return out
}

// Clone returns a deep copy so callers can hand the config to other
// components without sharing the alias map.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Hosts = maps.Clone(c.Hosts)
	return &cp
}
