package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/quocvuong92/ollama-ctl/internal/endpoint"
)

// createTempConfigFile creates a temporary config file for testing
func createTempConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	configPath := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	return configPath
}

// =============================================================================
// Load Tests
// =============================================================================

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
default_host: remote

hosts:
  local:
    hostname: localhost
  remote:
    hostname: 192.168.1.100
    port: 8080
    protocol: https
    verify_ssl: false

settings:
  timeout: 12
  stream: false
  default_model: llama2
  unknown_setting: ignored
`
	configPath := createTempConfigFile(t, tmpDir, "config.yaml", configContent)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Source != configPath {
		t.Errorf("Source = %q, want %q", cfg.Source, configPath)
	}
	if cfg.DefaultHost != "remote" {
		t.Errorf("DefaultHost = %q, want %q", cfg.DefaultHost, "remote")
	}

	remote, ok := cfg.Alias("remote")
	if !ok {
		t.Fatal("alias remote not found")
	}
	want := HostAlias{Name: "remote", Hostname: "192.168.1.100", Port: 8080, Protocol: endpoint.ProtocolHTTPS, VerifyTLS: false}
	if remote != want {
		t.Errorf("remote = %+v, want %+v", remote, want)
	}

	local, _ := cfg.Alias("local")
	if local.Port != 11434 || local.Protocol != endpoint.ProtocolHTTP || !local.VerifyTLS {
		t.Errorf("local defaults not applied: %+v", local)
	}

	if cfg.Settings.Timeout != 12*time.Second {
		t.Errorf("Settings.Timeout = %v, want 12s", cfg.Settings.Timeout)
	}
	if cfg.Settings.Stream {
		t.Error("Settings.Stream = true, want false")
	}
	if cfg.Settings.DefaultModel != "llama2" {
		t.Errorf("Settings.DefaultModel = %q, want llama2", cfg.Settings.DefaultModel)
	}
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	_, err := Load(missing)
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("Load() error = %v, want ErrConfigNotFound", err)
	}

	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Path != missing {
		t.Errorf("error should carry the missing path, got %v", err)
	}
}

func TestLoad_ExplicitPathDoesNotFallBack(t *testing.T) {
	tmpDir := t.TempDir()
	local := createTempConfigFile(t, tmpDir, ".ollama-ctl.yaml", "hosts:\n  a:\n    hostname: a\n")

	loader := &Loader{SearchPaths: []string{local}}
	_, err := loader.Load(filepath.Join(tmpDir, "missing.yaml"))
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("Load() error = %v, want ErrConfigNotFound", err)
	}
}

func TestLoader_SearchOrder(t *testing.T) {
	tmpDir := t.TempDir()
	local := createTempConfigFile(t, tmpDir, "cwd/.ollama-ctl.yaml", "hosts:\n  from-local:\n    hostname: l\n")
	global := createTempConfigFile(t, tmpDir, "home/config.yaml", "hosts:\n  from-global:\n    hostname: g\n")

	t.Run("local wins", func(t *testing.T) {
		cfg, err := (&Loader{SearchPaths: []string{local, global}}).Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if _, ok := cfg.Alias("from-local"); !ok {
			t.Error("expected alias from local config")
		}
		if _, ok := cfg.Alias("from-global"); ok {
			t.Error("configs must not be merged")
		}
	})

	t.Run("global when local absent", func(t *testing.T) {
		cfg, err := (&Loader{SearchPaths: []string{filepath.Join(tmpDir, "absent.yaml"), global}}).Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Source != global {
			t.Errorf("Source = %q, want %q", cfg.Source, global)
		}
	})

	t.Run("built-in default", func(t *testing.T) {
		cfg, err := (&Loader{}).Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Source != "" || cfg.DefaultHost != "local" {
			t.Errorf("expected built-in default, got %+v", cfg)
		}
	})
}

func TestLoad_ParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"malformed yaml", "hosts: [unclosed", ""},
		{"missing hostname", "hosts:\n  a:\n    port: 80\n", "hostname is required"},
		{"null host", "hosts:\n  a:\n", "missing host definition"},
		{"port out of range", "hosts:\n  a:\n    hostname: x\n    port: 70000\n", "port must be between"},
		{"port not a number", "hosts:\n  a:\n    hostname: x\n    port: eighty\n", ""},
		{"bad protocol", "hosts:\n  a:\n    hostname: x\n    protocol: ftp\n", "protocol"},
		{"negative timeout", "settings:\n  timeout: -5\n", "timeout must be positive"},
		{"hosts not a map", "hosts: 42\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := createTempConfigFile(t, t.TempDir(), "config.yaml", tt.content)

			_, err := Load(path)
			if !errors.Is(err, ErrConfigParse) {
				t.Fatalf("Load() error = %v, want ErrConfigParse", err)
			}
			if !strings.Contains(err.Error(), path) {
				t.Errorf("error should mention path %q: %v", path, err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	for _, content := range []string{"", "   \n", "# only a comment\n"} {
		path := createTempConfigFile(t, t.TempDir(), "config.yaml", content)

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%q) error = %v", content, err)
		}
		if _, ok := cfg.Alias("local"); !ok {
			t.Errorf("Load(%q) should yield the default local alias", content)
		}
		if cfg.Source != path {
			t.Errorf("Source = %q, want %q", cfg.Source, path)
		}
	}
}

func TestParse_AbsentKeysTakeDefaults(t *testing.T) {
	t.Run("settings only", func(t *testing.T) {
		cfg, err := Parse([]byte("settings:\n  stream: false\n"))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if cfg.DefaultHost != "local" {
			t.Errorf("DefaultHost = %q, want local", cfg.DefaultHost)
		}
		local, ok := cfg.Alias("local")
		want := HostAlias{Name: "local", Hostname: "localhost", Port: 11434, Protocol: endpoint.ProtocolHTTP, VerifyTLS: true}
		if !ok || local != want {
			t.Errorf("local = %+v (found %v), want %+v", local, ok, want)
		}
		if cfg.Settings.Stream {
			t.Error("Settings.Stream = true, want false")
		}
	})

	t.Run("hosts without default_host", func(t *testing.T) {
		cfg, err := Parse([]byte("hosts:\n  local:\n    hostname: gpu-box\n    port: 9000\n  other:\n    hostname: o\n"))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if cfg.DefaultHost != "local" {
			t.Errorf("DefaultHost = %q, want local", cfg.DefaultHost)
		}
		if local, _ := cfg.Alias("local"); local.Hostname != "gpu-box" || local.Port != 9000 {
			t.Errorf("file alias should replace the built-in local, got %+v", local)
		}
		if len(cfg.Hosts) != 2 {
			t.Errorf("Hosts = %v, want only the file's aliases", cfg.Hosts)
		}
	})

	t.Run("explicit empty default_host", func(t *testing.T) {
		cfg, err := Parse([]byte("default_host: \"\"\n"))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if cfg.DefaultHost != "" {
			t.Errorf("DefaultHost = %q, want empty", cfg.DefaultHost)
		}
		if _, ok := cfg.Alias("local"); !ok {
			t.Error("absent hosts should still seed the local alias")
		}
	})
}

// =============================================================================
// CreateExampleConfigFile Tests
// =============================================================================

func TestCreateExampleConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	got, err := CreateExampleConfigFile(path, false)
	if err != nil {
		t.Fatalf("CreateExampleConfigFile() error = %v", err)
	}
	if got != path {
		t.Errorf("CreateExampleConfigFile() path = %q, want %q", got, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %o, want 0600", perm)
	}

	// The generated file must itself be loadable.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(example) error = %v", err)
	}
	if cfg.DefaultHost != "local" {
		t.Errorf("example DefaultHost = %q, want local", cfg.DefaultHost)
	}
}

func TestCreateExampleConfigFile_Exists(t *testing.T) {
	path := createTempConfigFile(t, t.TempDir(), "config.yaml", "default_host: mine\n")

	if _, err := CreateExampleConfigFile(path, false); !errors.Is(err, ErrConfigExists) {
		t.Fatalf("CreateExampleConfigFile() error = %v, want ErrConfigExists", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "default_host: mine\n" {
		t.Error("existing config must not be overwritten without force")
	}

	if _, err := CreateExampleConfigFile(path, true); err != nil {
		t.Fatalf("CreateExampleConfigFile(force) error = %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != ExampleConfig {
		t.Error("force should overwrite with the example config")
	}
}
