package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Kind classifies a failure so the command layer can pick an exit code
// without inspecting messages.
type Kind int

const (
	// KindUnreachable means no usable HTTP exchange took place
	KindUnreachable Kind = iota + 1
	// KindBackend means the backend answered with an error payload or status
	KindBackend
	// KindMalformed means a non-streaming response could not be decoded
	KindMalformed
	// KindStreamCorruption means a stream line was invalid or the stream ended early
	KindStreamCorruption
	// KindStreamTimeout means an open stream went silent for longer than the timeout
	KindStreamTimeout
)

func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindBackend:
		return "backend error"
	case KindMalformed:
		return "malformed response"
	case KindStreamCorruption:
		return "stream corruption"
	case KindStreamTimeout:
		return "stream timeout"
	default:
		return "unknown"
	}
}

// Reason refines KindUnreachable
type Reason int

const (
	ReasonOther Reason = iota
	ReasonConnectionRefused
	ReasonTimeout
	ReasonTLS
)

func (r Reason) String() string {
	switch r {
	case ReasonConnectionRefused:
		return "connection refused"
	case ReasonTimeout:
		return "timeout"
	case ReasonTLS:
		return "tls failure"
	default:
		return "network error"
	}
}

// ErrInvalidModelName is returned before any request is made
var ErrInvalidModelName = errors.New("invalid model name")

// Error is returned by every Client operation and carried by ErrorEvent.
type Error struct {
	Kind Kind
	// Reason is set for KindUnreachable
	Reason Reason
	// Op names the operation, e.g. "list models"
	Op string
	// StatusCode is the HTTP status for KindBackend, when there was one
	StatusCode int
	// Message is the backend's own error text
	Message string
	// Raw is the offending line for KindStreamCorruption
	Raw string
	Err error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	switch e.Kind {
	case KindUnreachable:
		fmt.Fprintf(&sb, "backend unreachable (%s)", e.Reason)
	case KindBackend:
		if e.Message != "" {
			sb.WriteString(e.Message)
		} else {
			sb.WriteString("backend error")
		}
		if e.StatusCode != 0 {
			fmt.Fprintf(&sb, " (status %d)", e.StatusCode)
		}
		return sb.String()
	default:
		sb.WriteString(e.Kind.String())
		if e.Message != "" {
			sb.WriteString(": ")
			sb.WriteString(e.Message)
		}
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or zero when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsNotFound reports whether the backend answered 404 (unknown model).
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindBackend && e.StatusCode == http.StatusNotFound
}

// IsUnreachable reports whether err is a connection-level failure.
func IsUnreachable(err error) bool {
	return KindOf(err) == KindUnreachable
}

// IsRetryable reports whether a non-streaming call may be repeated: only
// refused connections and timeouts qualify.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindUnreachable {
		return false
	}
	return e.Reason == ReasonConnectionRefused || e.Reason == ReasonTimeout
}

// classifyTransportError maps a failed http.Client.Do to a Reason.
func classifyTransportError(err error) Reason {
	var (
		certErr     *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidErr  x509.CertificateInvalidError
		recordErr   tls.RecordHeaderError
		alertErr    tls.AlertError
		netErr      net.Error
	)
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return ReasonConnectionRefused
	case errors.As(err, &certErr), errors.As(err, &unknownAuth), errors.As(err, &hostErr),
		errors.As(err, &invalidErr), errors.As(err, &recordErr), errors.As(err, &alertErr):
		return ReasonTLS
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return ReasonTimeout
	default:
		return ReasonOther
	}
}

// transportError wraps a failed exchange. Cancellation by the caller is
// returned as-is so it is not mistaken for an unreachable backend.
func transportError(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
	return &Error{Kind: KindUnreachable, Reason: classifyTransportError(err), Op: op, Err: err}
}

const maxErrorBody = 64 << 10

// backendError builds a KindBackend error from a non-2xx response.
func backendError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Error string `json:"error"`
	}
	msg := ""
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		msg = payload.Error
	} else if text := strings.TrimSpace(string(body)); text != "" {
		msg = text
	} else {
		msg = http.StatusText(resp.StatusCode)
	}

	return &Error{Kind: KindBackend, Op: op, StatusCode: resp.StatusCode, Message: msg}
}
