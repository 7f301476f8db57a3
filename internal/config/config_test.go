package config

import (
	"testing"

	"github.com/quocvuong92/ollama-ctl/internal/constants"
	"github.com/quocvuong92/ollama-ctl/internal/endpoint"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.DefaultHost != constants.DefaultAliasName {
		t.Errorf("DefaultHost = %q, want %q", cfg.DefaultHost, constants.DefaultAliasName)
	}
	local, ok := cfg.Alias(constants.DefaultAliasName)
	if !ok {
		t.Fatal("default config should contain the local alias")
	}

	d, err := local.Descriptor(cfg.Settings.Timeout)
	if err != nil {
		t.Fatalf("Descriptor() error = %v", err)
	}
	if got := d.BaseURL(); got != "http://localhost:11434" {
		t.Errorf("BaseURL() = %q, want http://localhost:11434", got)
	}
	if !cfg.Settings.Stream {
		t.Error("Settings.Stream should default to true")
	}
	if cfg.Settings.Timeout != constants.DefaultTimeout {
		t.Errorf("Settings.Timeout = %v, want %v", cfg.Settings.Timeout, constants.DefaultTimeout)
	}
}

func TestConfig_Aliases_Sorted(t *testing.T) {
	cfg := &Config{Hosts: map[string]HostAlias{
		"zeta":  {Name: "zeta"},
		"alpha": {Name: "alpha"},
		"mid":   {Name: "mid"},
	}}

	got := cfg.Aliases()
	want := []string{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("Aliases() returned %d entries, want %d", len(got), len(want))
	}
	for i, a := range got {
		if a.Name != want[i] {
			t.Errorf("Aliases()[%d] = %q, want %q", i, a.Name, want[i])
		}
	}
}

func TestConfig_Clone(t *testing.T) {
	orig := Default()
	cp := orig.Clone()

	cp.Hosts["gpu"] = HostAlias{Name: "gpu", Hostname: "gpu", Port: 1, Protocol: endpoint.ProtocolHTTP}
	if _, ok := orig.Alias("gpu"); ok {
		t.Error("Clone() shares the alias map with the original")
	}

	var nilCfg *Config
	if nilCfg.Clone() != nil {
		t.Error("Clone() of nil should be nil")
	}
}
