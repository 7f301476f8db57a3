package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quocvuong92/ollama-ctl/internal/endpoint"
)

func TestParseHost(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  HostSpec
	}{
		{"bare host", "gpu-box", HostSpec{Hostname: "gpu-box"}},
		{"host and port", "myserver.local:8080", HostSpec{Hostname: "myserver.local", Port: 8080, HasPort: true}},
		{"http url", "http://10.0.0.5:11434", HostSpec{Protocol: endpoint.ProtocolHTTP, HasProtocol: true, Hostname: "10.0.0.5", Port: 11434, HasPort: true}},
		{"https url no port", "HTTPS://ollama.example.com/", HostSpec{Protocol: endpoint.ProtocolHTTPS, HasProtocol: true, Hostname: "ollama.example.com"}},
		{"non-numeric suffix", "weird:name", HostSpec{Hostname: "weird:name"}},
		{"bracketed ipv6", "[::1]:8080", HostSpec{Hostname: "::1", Port: 8080, HasPort: true}},
		{"bracketed ipv6 no port", "http://[fe80::1]", HostSpec{Protocol: endpoint.ProtocolHTTP, HasProtocol: true, Hostname: "fe80::1"}},
		{"bare ipv6", "::1", HostSpec{Hostname: "::1"}},
		{"whitespace", "  box:1  ", HostSpec{Hostname: "box", Port: 1, HasPort: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHost(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseHost_Errors(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrEmptyHost},
		{"only scheme", "http://", ErrEmptyHost},
		{"only port", ":8080", ErrEmptyHost},
		{"port zero", "box:0", endpoint.ErrInvalidPort},
		{"port too large", "box:70000", endpoint.ErrInvalidPort},
		{"empty port", "box:", ErrMalformedHost},
		{"path", "http://box:1/api", ErrUnexpectedPath},
		{"scheme", "ftp://box", ErrUnsupportedScheme},
		{"unclosed bracket", "[::1:80", ErrMalformedHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHost(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEnvSpec_Refinement(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want HostSpec
	}{
		{
			name: "port and protocol fill absent fields",
			env:  map[string]string{"OLLAMA_HOST": "box", "OLLAMA_PORT": "9000", "OLLAMA_PROTOCOL": "https"},
			want: HostSpec{Hostname: "box", Port: 9000, HasPort: true, Protocol: endpoint.ProtocolHTTPS, HasProtocol: true},
		},
		{
			name: "host value wins over refinements",
			env:  map[string]string{"OLLAMA_HOST": "http://box:1234", "OLLAMA_PORT": "9000", "OLLAMA_PROTOCOL": "https"},
			want: HostSpec{Hostname: "box", Port: 1234, HasPort: true, Protocol: endpoint.ProtocolHTTP, HasProtocol: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, ok, err := envSpec(tt.env)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnvSpec_RequiresHost(t *testing.T) {
	_, _, ok, err := envSpec(map[string]string{"OLLAMA_PORT": "9000"})
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestEnvSpec_InvalidRefinement(t *testing.T) {
	_, raw, ok, err := envSpec(map[string]string{"OLLAMA_HOST": "box", "OLLAMA_PORT": "http"})
	assert.True(t, ok)
	assert.Equal(t, "http", raw)
	assert.ErrorIs(t, err, endpoint.ErrInvalidPort)

	_, _, _, err = envSpec(map[string]string{"OLLAMA_HOST": "box", "OLLAMA_PROTOCOL": "gopher"})
	assert.ErrorIs(t, err, endpoint.ErrInvalidProtocol)
}
