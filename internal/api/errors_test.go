package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "unreachable",
			err:  &Error{Kind: KindUnreachable, Reason: ReasonConnectionRefused, Op: "list models", Err: errors.New("dial tcp")},
			want: "list models: backend unreachable (connection refused): dial tcp",
		},
		{
			name: "backend with status",
			err:  &Error{Kind: KindBackend, Op: "show model", StatusCode: 404, Message: "model not found"},
			want: "show model: model not found (status 404)",
		},
		{
			name: "backend in stream",
			err:  &Error{Kind: KindBackend, Op: "generate", Message: "out of memory"},
			want: "generate: out of memory",
		},
		{
			name: "corruption",
			err:  &Error{Kind: KindStreamCorruption, Op: "chat", Message: "invalid JSON line"},
			want: "chat: stream corruption: invalid JSON line",
		},
		{
			name: "timeout without op",
			err:  &Error{Kind: KindStreamTimeout, Message: "no data received for 30s"},
			want: "stream timeout: no data received for 30s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyTransportError(t *testing.T) {
	refusedErr := &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}

	tests := []struct {
		name string
		err  error
		want Reason
	}{
		{"refused", refusedErr, ReasonConnectionRefused},
		{"wrapped refused", fmt.Errorf("Get: %w", refusedErr), ReasonConnectionRefused},
		{"deadline", context.DeadlineExceeded, ReasonTimeout},
		{"net timeout", &net.DNSError{Err: "timeout", IsTimeout: true}, ReasonTimeout},
		{"dns failure", &net.DNSError{Err: "no such host", Name: "nope"}, ReasonOther},
		{"other", errors.New("boom"), ReasonOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyTransportError(tt.err); got != tt.want {
				t.Errorf("classifyTransportError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBackendError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"json error", 404, `{"error":"model 'x' not found"}`, "model 'x' not found"},
		{"plain text", 502, "bad gateway from proxy\n", "bad gateway from proxy"},
		{"empty body", 503, "", "Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: tt.status, Body: io.NopCloser(strings.NewReader(tt.body))}
			err := backendError("op", resp)

			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("backendError() = %T, want *Error", err)
			}
			if apiErr.Kind != KindBackend || apiErr.StatusCode != tt.status {
				t.Errorf("got kind %v status %d", apiErr.Kind, apiErr.StatusCode)
			}
			if apiErr.Message != tt.want {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.want)
			}
		})
	}
}

func TestTransportError_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := transportError(ctx, "generate", errors.New("read: use of closed connection"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("transportError() = %v, want context.Canceled", err)
	}
	if KindOf(err) != 0 {
		t.Errorf("KindOf() = %v, want none", KindOf(err))
	}
}

func TestValidateModelName(t *testing.T) {
	tests := []struct {
		name    string
		model   string
		wantErr bool
	}{
		{"simple", "llama3", false},
		{"tagged", "llama3:8b-instruct-q4_0", false},
		{"namespaced", "library/mistral:latest", false},
		{"registry", "registry.example.com/team/model:v1.2", false},
		{"uppercase", "Llama3", false},
		{"empty", "", true},
		{"space", "llama 3", true},
		{"query", "llama3?x", true},
		{"unicode", "lläma", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateModelName(tt.model)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateModelName(%q) error = %v, wantErr %v", tt.model, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidModelName) {
				t.Errorf("error %v does not wrap ErrInvalidModelName", err)
			}
		})
	}
}

func TestMetrics_TokensPerSecondUnknown(t *testing.T) {
	if got := (Metrics{EvalCount: 5}).TokensPerSecond(); got != 0 {
		t.Errorf("TokensPerSecond() = %v, want 0", got)
	}
}
