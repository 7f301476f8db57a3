// Package endpoint defines the fully-resolved address of a backend instance.
//
// A Descriptor is produced once per invocation by the resolver and handed to
// the API client. It is a plain value: copies are independent and two
// descriptors are equal when all of their fields are equal.
package endpoint

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/quocvuong92/ollama-ctl/internal/constants"
)

// Protocol is the URL scheme used to reach the backend
type Protocol string

const (
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTPS Protocol = "https"
)

// Errors
var (
	ErrEmptyHostname   = errors.New("hostname must not be empty")
	ErrInvalidPort     = errors.New("port must be between 1 and 65535")
	ErrInvalidProtocol = errors.New("protocol must be http or https")
)

// ParseProtocol validates a scheme name. Matching is case-insensitive.
func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(strings.ToLower(strings.TrimSpace(s))) {
	case ProtocolHTTP:
		return ProtocolHTTP, nil
	case ProtocolHTTPS:
		return ProtocolHTTPS, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidProtocol, s)
	}
}

// ParsePort validates a decimal port string.
func ParsePort(s string) (uint16, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, s)
	}
	if n < 1 || n > 65535 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPort, n)
	}
	return uint16(n), nil
}

// Descriptor identifies one backend instance
type Descriptor struct {
	Protocol  Protocol
	Hostname  string
	Port      uint16
	VerifyTLS bool
	Timeout   time.Duration
}

// New builds a validated Descriptor. A zero timeout is replaced by the
// default timeout.
func New(protocol Protocol, hostname string, port uint16, verifyTLS bool, timeout time.Duration) (Descriptor, error) {
	if hostname == "" {
		return Descriptor{}, ErrEmptyHostname
	}
	if port == 0 {
		return Descriptor{}, ErrInvalidPort
	}
	if protocol != ProtocolHTTP && protocol != ProtocolHTTPS {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrInvalidProtocol, protocol)
	}
	if timeout <= 0 {
		timeout = constants.DefaultTimeout
	}
	return Descriptor{
		Protocol:  protocol,
		Hostname:  hostname,
		Port:      port,
		VerifyTLS: verifyTLS,
		Timeout:   timeout,
	}, nil
}

// Address returns host:port, bracketing IPv6 literals.
func (d Descriptor) Address() string {
	return net.JoinHostPort(d.Hostname, strconv.Itoa(int(d.Port)))
}

// BaseURL returns the scheme and authority without a trailing slash.
func (d Descriptor) BaseURL() string {
	return string(d.Protocol) + "://" + d.Address()
}

// WithPort returns a copy of d using port p.
func (d Descriptor) WithPort(p uint16) Descriptor {
	d.Port = p
	return d
}

func (d Descriptor) String() string {
	s := d.BaseURL()
	if d.Protocol == ProtocolHTTPS && !d.VerifyTLS {
		s += " (tls verification disabled)"
	}
	return s
}
