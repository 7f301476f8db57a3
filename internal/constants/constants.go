// Package constants provides shared constants used across the application
// to avoid circular dependencies between packages.
package constants

import "time"

// AppName is used for the binary name, config directory and request headers.
const AppName = "ollama-ctl"

// Backend defaults
const (
	// DefaultPort is the port the backend listens on when none is given
	DefaultPort uint16 = 11434
	// DefaultProtocol is used when a host token carries no scheme
	DefaultProtocol = "http"
	// DefaultHostname is the hostname of the built-in "local" alias
	DefaultHostname = "localhost"
	// DefaultAliasName is the alias created when no config file exists
	DefaultAliasName = "local"
)

// Timeout constants used across the application
const (
	// DefaultTimeout bounds connection setup and the silence between stream events
	DefaultTimeout = 30 * time.Second
	// DefaultCheckTimeout bounds a single reachability probe in `hosts --check`
	DefaultCheckTimeout = 5 * time.Second
)

// Config file locations
const (
	// LocalConfigFile is looked up in the working directory
	LocalConfigFile = ".ollama-ctl.yaml"
	// GlobalConfigDir is the directory under os.UserConfigDir
	GlobalConfigDir = "ollama-ctl"
	// GlobalConfigFile is the file name under GlobalConfigDir
	GlobalConfigFile = "config.yaml"
)

// Environment variable names
const (
	EnvHost     = "OLLAMA_HOST"
	EnvPort     = "OLLAMA_PORT"
	EnvProtocol = "OLLAMA_PROTOCOL"
	EnvLogLevel = "OLLAMA_CTL_LOG_LEVEL"
)
