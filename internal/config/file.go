package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quocvuong92/ollama-ctl/internal/constants"
	"github.com/quocvuong92/ollama-ctl/internal/endpoint"
	"github.com/quocvuong92/ollama-ctl/internal/logging"
)

// FileConfig represents the configuration file structure. Absent keys take
// the built-in defaults; an explicit empty default_host means no default alias.
type FileConfig struct {
	DefaultHost *string              `yaml:"default_host,omitempty"`
	Hosts       map[string]*FileHost `yaml:"hosts,omitempty"`
	Settings    *FileSettings        `yaml:"settings,omitempty"`
}

// FileHost is one entry under `hosts:`
type FileHost struct {
	Hostname  string `yaml:"hostname"`
	Port      *int   `yaml:"port,omitempty"`
	Protocol  string `yaml:"protocol,omitempty"`
	VerifySSL *bool  `yaml:"verify_ssl,omitempty"`
}

// FileSettings is the `settings:` section. Timeout is in seconds.
type FileSettings struct {
	Timeout      *float64 `yaml:"timeout,omitempty"`
	Stream       *bool    `yaml:"stream,omitempty"`
	DefaultModel string   `yaml:"default_model,omitempty"`
}

// Loader locates and reads the config file. The zero value has no search
// paths; use NewLoader for the standard locations.
type Loader struct {
	// SearchPaths are tried in order when no explicit path is given.
	SearchPaths []string
}

// NewLoader returns a Loader searching the working directory first and the
// user config directory second.
func NewLoader() *Loader {
	return &Loader{SearchPaths: GetConfigPaths()}
}

// GetConfigPaths returns the paths to check for config files (in order of priority)
func GetConfigPaths() []string {
	paths := []string{filepath.Join(".", constants.LocalConfigFile)}

	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, constants.GlobalConfigDir, constants.GlobalConfigFile))
	}

	return paths
}

// Load reads the config from the standard locations. See Loader.Load.
func Load(explicitPath string) (*Config, error) {
	return NewLoader().Load(explicitPath)
}

// Load returns the first config found. An explicit path must exist. When
// nothing is found the built-in default is returned. Files are never merged.
func (l *Loader) Load(explicitPath string) (*Config, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: explicitPath}
		}
		return loadConfigFromPath(explicitPath)
	}

	for _, path := range l.SearchPaths {
		if _, err := os.Stat(path); err == nil {
			return loadConfigFromPath(path)
		}
	}

	logging.Debug("No config file found, using built-in defaults", logging.Fields{"searched": l.SearchPaths})
	return Default(), nil
}

// loadConfigFromPath loads config from a specific path
func loadConfigFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	cfg.Source = path

	logging.Debug("Loaded config file", logging.Fields{"path": path, "hosts": len(cfg.Hosts)})
	return cfg, nil
}

// Parse decodes and validates YAML config data. A document with no content
// (empty, or only comments) yields the built-in default.
func Parse(data []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return Default(), nil
	}

	var fc FileConfig
	if err := doc.Decode(&fc); err != nil {
		return nil, err
	}
	return fc.toConfig()
}

func (fc *FileConfig) toConfig() (*Config, error) {
	def := Default()
	cfg := &Config{
		DefaultHost: def.DefaultHost,
		Hosts:       make(map[string]HostAlias, len(fc.Hosts)),
		Settings:    def.Settings,
	}
	if fc.DefaultHost != nil {
		cfg.DefaultHost = strings.TrimSpace(*fc.DefaultHost)
	}
	if fc.Hosts == nil {
		cfg.Hosts = def.Hosts
	}

	for name, fh := range fc.Hosts {
		alias, err := fh.toAlias(name)
		if err != nil {
			return nil, err
		}
		cfg.Hosts[name] = alias
	}

	if s := fc.Settings; s != nil {
		if s.Timeout != nil {
			if *s.Timeout <= 0 {
				return nil, fmt.Errorf("settings.timeout must be positive, got %v", *s.Timeout)
			}
			cfg.Settings.Timeout = time.Duration(*s.Timeout * float64(time.Second))
		}
		if s.Stream != nil {
			cfg.Settings.Stream = *s.Stream
		}
		cfg.Settings.DefaultModel = strings.TrimSpace(s.DefaultModel)
	}

	return cfg, nil
}

func (fh *FileHost) toAlias(name string) (HostAlias, error) {
	if fh == nil {
		return HostAlias{}, fmt.Errorf("hosts.%s: missing host definition", name)
	}
	if strings.TrimSpace(fh.Hostname) == "" {
		return HostAlias{}, fmt.Errorf("hosts.%s: hostname is required", name)
	}

	alias := HostAlias{
		Name:      name,
		Hostname:  strings.TrimSpace(fh.Hostname),
		Port:      constants.DefaultPort,
		Protocol:  endpoint.ProtocolHTTP,
		VerifyTLS: true,
	}

	if fh.Port != nil {
		if *fh.Port < 1 || *fh.Port > 65535 {
			return HostAlias{}, fmt.Errorf("hosts.%s: port must be between 1 and 65535, got %d", name, *fh.Port)
		}
		alias.Port = uint16(*fh.Port)
	}
	if fh.Protocol != "" {
		p, err := endpoint.ParseProtocol(fh.Protocol)
		if err != nil {
			return HostAlias{}, fmt.Errorf("hosts.%s: %w", name, err)
		}
		alias.Protocol = p
	}
	if fh.VerifySSL != nil {
		alias.VerifyTLS = *fh.VerifySSL
	}

	return alias, nil
}

// GlobalConfigPath returns the per-user config file path.
func GlobalConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine config directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, constants.GlobalConfigDir, constants.GlobalConfigFile), nil
}

// CreateExampleConfigFile writes an example config to path, or to the
// per-user location when path is empty. An existing file is kept unless
// force is set.
func CreateExampleConfigFile(path string, force bool) (string, error) {
	if path == "" {
		p, err := GlobalConfigPath()
		if err != nil {
			return "", err
		}
		path = p
	}

	if _, err := os.Stat(path); err == nil && !force {
		return path, fmt.Errorf("%w at %s (use --force to overwrite)", ErrConfigExists, path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(ExampleConfig), 0600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return path, nil
}

// ExampleConfig is written by `ollama-ctl init-config`.
const ExampleConfig = `# ollama-ctl configuration
# Looked up in ./.ollama-ctl.yaml, then <user config dir>/ollama-ctl/config.yaml

# Alias used when no --host, OLLAMA_HOST or MCP host is given
default_host: local

hosts:
  local:
    hostname: localhost
    port: 11434
    protocol: http

  # remote:
  #   hostname: 192.168.1.100
  #   port: 11434
  #   protocol: https
  #   verify_ssl: true

  # cloud:
  #   hostname: ollama.example.com
  #   port: 443
  #   protocol: https

settings:
  timeout: 30          # seconds; connection setup and silence between stream events
  stream: true         # stream generate output by default
  # default_model: llama2
`
