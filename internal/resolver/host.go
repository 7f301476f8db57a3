package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/quocvuong92/ollama-ctl/internal/constants"
	"github.com/quocvuong92/ollama-ctl/internal/endpoint"
)

// Errors returned by ParseHost
var (
	ErrEmptyHost         = errors.New("empty host")
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	ErrUnexpectedPath    = errors.New("host must not contain a path")
	ErrMalformedHost     = errors.New("malformed host")
)

// HostSpec is a parsed host token. Fields the token did not carry are
// reported through HasProtocol and HasPort so callers can fill them in.
type HostSpec struct {
	Protocol    endpoint.Protocol
	HasProtocol bool
	Hostname    string
	Port        uint16
	HasPort     bool
}

// ParseHost parses `[http://|https://]hostname[:port][/]`.
//
// IPv6 literals need brackets to carry a port; an unbracketed literal is
// taken as a hostname without port. When the text after the last colon is
// not a number the whole token is the hostname.
func ParseHost(token string) (HostSpec, error) {
	s := strings.TrimSpace(token)
	if s == "" {
		return HostSpec{}, ErrEmptyHost
	}

	var spec HostSpec
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "https://"):
		spec.Protocol, spec.HasProtocol = endpoint.ProtocolHTTPS, true
		s = s[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		spec.Protocol, spec.HasProtocol = endpoint.ProtocolHTTP, true
		s = s[len("http://"):]
	case strings.Contains(s, "://"):
		return HostSpec{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, s[:strings.Index(s, "://")])
	}

	s = strings.TrimSuffix(s, "/")
	if strings.Contains(s, "/") {
		return HostSpec{}, ErrUnexpectedPath
	}

	host, portStr, hasPort, err := splitHostPort(s)
	if err != nil {
		return HostSpec{}, err
	}
	if host == "" {
		return HostSpec{}, ErrEmptyHost
	}
	spec.Hostname = host

	if hasPort {
		p, err := endpoint.ParsePort(portStr)
		if err != nil {
			return HostSpec{}, err
		}
		spec.Port, spec.HasPort = p, true
	}
	return spec, nil
}

func splitHostPort(s string) (host, port string, hasPort bool, err error) {
	if strings.HasPrefix(s, "[") {
		end := strings.Index(s, "]")
		if end < 0 {
			return "", "", false, fmt.Errorf("%w: missing ']' in %q", ErrMalformedHost, s)
		}
		host, rest := s[1:end], s[end+1:]
		switch {
		case rest == "":
			return host, "", false, nil
		case strings.HasPrefix(rest, ":"):
			return host, rest[1:], true, nil
		default:
			return "", "", false, fmt.Errorf("%w: unexpected %q after ']'", ErrMalformedHost, rest)
		}
	}

	// Unbracketed IPv6 literal.
	if strings.Count(s, ":") > 1 {
		return s, "", false, nil
	}

	i := strings.LastIndex(s, ":")
	if i < 0 {
		return s, "", false, nil
	}
	suffix := s[i+1:]
	if suffix == "" {
		return "", "", false, fmt.Errorf("%w: empty port in %q", ErrMalformedHost, s)
	}
	if !isDigits(suffix) {
		return s, "", false, nil
	}
	return s[:i], suffix, true, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// withDefaults fills absent fields with the backend defaults.
func (h HostSpec) withDefaults() HostSpec {
	if !h.HasProtocol {
		h.Protocol = endpoint.Protocol(constants.DefaultProtocol)
	}
	if !h.HasPort {
		h.Port = constants.DefaultPort
	}
	return h
}

// envSpec reads OLLAMA_HOST from env and refines it with OLLAMA_PORT and
// OLLAMA_PROTOCOL for the fields the host value does not carry. The bool is
// false when OLLAMA_HOST is unset or blank.
func envSpec(env map[string]string) (HostSpec, string, bool, error) {
	raw := strings.TrimSpace(env[constants.EnvHost])
	if raw == "" {
		return HostSpec{}, "", false, nil
	}

	spec, err := ParseHost(raw)
	if err != nil {
		return HostSpec{}, raw, true, fmt.Errorf("%s: %w", constants.EnvHost, err)
	}

	if v := strings.TrimSpace(env[constants.EnvPort]); v != "" && !spec.HasPort {
		p, err := endpoint.ParsePort(v)
		if err != nil {
			return HostSpec{}, v, true, fmt.Errorf("%s: %w", constants.EnvPort, err)
		}
		spec.Port, spec.HasPort = p, true
	}
	if v := strings.TrimSpace(env[constants.EnvProtocol]); v != "" && !spec.HasProtocol {
		p, err := endpoint.ParseProtocol(v)
		if err != nil {
			return HostSpec{}, v, true, fmt.Errorf("%s: %w", constants.EnvProtocol, err)
		}
		spec.Protocol, spec.HasProtocol = p, true
	}
	return spec, raw, true, nil
}
