package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quocvuong92/ollama-ctl/internal/constants"
	"github.com/quocvuong92/ollama-ctl/internal/endpoint"
	"github.com/quocvuong92/ollama-ctl/internal/logging"
)

const maxResponseBody = 32 << 20

// Client talks to a single backend endpoint. The endpoint is fixed for the
// life of the client; resolve a new one and build another client to switch.
type Client struct {
	endpoint     endpoint.Descriptor
	httpClient   *http.Client
	streamClient *http.Client
	userAgent    string
	retries      int
}

// Option configures a Client
type Option func(*clientOptions)

type clientOptions struct {
	transport  http.RoundTripper
	httpLogger *logging.HTTPLogger
	userAgent  string
	retries    int
}

// WithTransport replaces the default transport, mainly for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) { o.transport = rt }
}

// WithHTTPLogging logs every exchange, including streamed bodies, at debug level.
func WithHTTPLogging(logger *logging.Logger) Option {
	return func(o *clientOptions) {
		if logger != nil {
			o.httpLogger = logging.NewHTTPLogger(logger)
		}
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) Option {
	return func(o *clientOptions) { o.userAgent = ua }
}

// WithRetryAttempts sets how many times a non-streaming call is attempted
// when the backend refuses the connection or times out.
func WithRetryAttempts(n int) Option {
	return func(o *clientOptions) { o.retries = n }
}

// NewClient creates a client for d. d.Timeout bounds connection setup, the
// wait for response headers and whole non-streaming exchanges. Streams are
// bounded only by the silence between lines.
func NewClient(d endpoint.Descriptor, opts ...Option) *Client {
	o := clientOptions{
		userAgent: constants.AppName,
		retries:   MaxRetryAttempts,
	}
	for _, opt := range opts {
		opt(&o)
	}

	transport := o.transport
	if transport == nil {
		transport = newTransport(d)
	}
	if o.httpLogger != nil {
		transport = logging.NewLoggingRoundTripper(transport, o.httpLogger, true)
	}

	return &Client{
		endpoint: d,
		httpClient: &http.Client{
			Timeout:   d.Timeout,
			Transport: transport,
		},
		streamClient: &http.Client{Transport: transport},
		userAgent:    o.userAgent,
		retries:      o.retries,
	}
}

func newTransport(d endpoint.Descriptor) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   d.Timeout,
		KeepAlive: constants.DefaultTimeout,
	}
	t := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   d.Timeout,
		ResponseHeaderTimeout: d.Timeout,
	}
	if d.Protocol == endpoint.ProtocolHTTPS && !d.VerifyTLS {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in per host alias
	}
	return t
}

// Endpoint returns the descriptor the client was built for
func (c *Client) Endpoint() endpoint.Descriptor {
	return c.endpoint
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint.BaseURL()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json, application/x-ndjson")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(logging.RequestIDHeader, uuid.NewString())
	return req, nil
}

// doJSON performs a non-streaming exchange and decodes a 2xx body into out
// when out is non-nil.
func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	_, err := WithRetry(ctx, c.retries, nil, func() (struct{}, error) {
		req, err := c.newRequest(ctx, method, path, body)
		if err != nil {
			return struct{}{}, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return struct{}{}, transportError(ctx, op, err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return struct{}{}, backendError(op, resp)
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return struct{}{}, transportError(ctx, op, err)
		}
		if out == nil {
			return struct{}{}, nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return struct{}{}, &Error{Kind: KindMalformed, Op: op, Raw: truncate(string(data)), Err: err}
		}
		return struct{}{}, nil
	})
	return err
}

// stream opens a streaming request. The returned Stream owns the response.
func (c *Client) stream(ctx context.Context, kind streamKind, op, path string, body any) (*Stream, error) {
	reqCtx, cancel := context.WithCancel(ctx)
	req, err := c.newRequest(reqCtx, http.MethodPost, path, body)
	if err != nil {
		cancel()
		return nil, err
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		cancel()
		return nil, transportError(ctx, op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer cancel()
		defer func() { _ = resp.Body.Close() }()
		return nil, backendError(op, resp)
	}

	logging.Debug("Stream opened", logging.Fields{
		"op":         op,
		"endpoint":   c.endpoint.String(),
		"request_id": req.Header.Get(logging.RequestIDHeader),
	})
	return newStream(ctx, kind, op, resp.Body, c.endpoint.Timeout, cancel), nil
}

// Health checks that the backend answers on its root path. Any 2xx status
// counts as healthy. Health is never retried.
func (c *Client) Health(ctx context.Context) error {
	const op = "health"
	req, err := c.newRequest(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return backendError(op, resp)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return nil
}

// Version returns the backend version string
func (c *Client) Version(ctx context.Context) (string, error) {
	var v versionResponse
	if err := c.doJSON(ctx, "version", http.MethodGet, "/api/version", nil, &v); err != nil {
		return "", err
	}
	return v.Version, nil
}

// ListModels returns the models installed on the backend, in backend order.
func (c *Client) ListModels(ctx context.Context) ([]ModelSummary, error) {
	var tags tagsResponse
	if err := c.doJSON(ctx, "list models", http.MethodGet, "/api/tags", nil, &tags); err != nil {
		return nil, err
	}
	if tags.Models == nil {
		return []ModelSummary{}, nil
	}
	return tags.Models, nil
}

// ShowModel returns details for one model. An unknown model is a backend
// error for which IsNotFound reports true.
func (c *Client) ShowModel(ctx context.Context, model string) (*ModelDetail, error) {
	if err := ValidateModelName(model); err != nil {
		return nil, err
	}
	var detail ModelDetail
	body := modelBody{Model: model, Name: model}
	if err := c.doJSON(ctx, "show model", http.MethodPost, "/api/show", body, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// DeleteModel removes a model from the backend.
func (c *Client) DeleteModel(ctx context.Context, model string) error {
	if err := ValidateModelName(model); err != nil {
		return err
	}
	body := modelBody{Model: model, Name: model}
	return c.doJSON(ctx, "delete model", http.MethodDelete, "/api/delete", body, nil)
}

// Pull downloads a model. The stream yields Progress events and ends with
// Done once the backend reports success.
func (c *Client) Pull(ctx context.Context, model string, insecure bool) (*Stream, error) {
	if err := ValidateModelName(model); err != nil {
		return nil, err
	}
	stream := true
	body := modelBody{Model: model, Name: model, Insecure: insecure, Stream: &stream}
	return c.stream(ctx, streamPull, "pull model", "/api/pull", body)
}

// Push uploads a model to its registry.
func (c *Client) Push(ctx context.Context, model string, insecure bool) (*Stream, error) {
	if err := ValidateModelName(model); err != nil {
		return nil, err
	}
	stream := true
	body := modelBody{Model: model, Name: model, Insecure: insecure, Stream: &stream}
	return c.stream(ctx, streamPush, "push model", "/api/push", body)
}

// Generate starts a completion. Nothing is read from the network until the
// caller advances the returned Stream.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*Stream, error) {
	if err := ValidateModelName(req.Model); err != nil {
		return nil, err
	}
	return c.stream(ctx, streamGenerate, "generate", "/api/generate", generateBody{GenerateRequest: req, Stream: true})
}

// GenerateAll drains a generate stream into a single result.
func (c *Client) GenerateAll(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	s, err := c.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	result := &GenerateResult{Model: req.Model}
	var sb strings.Builder
	for ev := range s.All() {
		switch ev := ev.(type) {
		case GenerateChunk:
			sb.WriteString(ev.Response)
		case ErrorEvent:
			return nil, ev.Err
		case Done:
			result.Done = ev
			if ev.Model != "" {
				result.Model = ev.Model
			}
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	result.Response = sb.String()
	return result, nil
}

// Chat continues a conversation.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*Stream, error) {
	if err := ValidateModelName(req.Model); err != nil {
		return nil, err
	}
	body := chatBody{
		Model:    req.Model,
		Messages: withSystem(req.System, req.Messages),
		Options:  req.Options,
		Stream:   true,
	}
	return c.stream(ctx, streamChat, "chat", "/api/chat", body)
}

// ChatAll drains a chat stream into the complete assistant message.
func (c *Client) ChatAll(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	s, err := c.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	result := &ChatResult{Model: req.Model, Message: Message{Role: RoleAssistant}}
	var sb strings.Builder
	for ev := range s.All() {
		switch ev := ev.(type) {
		case ChatChunk:
			sb.WriteString(ev.Message.Content)
			if ev.Message.Role != "" {
				result.Message.Role = ev.Message.Role
			}
		case ErrorEvent:
			return nil, ev.Err
		case Done:
			result.Done = ev
			if ev.Model != "" {
				result.Model = ev.Model
			}
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	result.Message.Content = sb.String()
	return result, nil
}

// Embed returns the embedding vector for prompt.
func (c *Client) Embed(ctx context.Context, model, prompt string) ([]float64, error) {
	if err := ValidateModelName(model); err != nil {
		return nil, err
	}
	var resp embedResponse
	if err := c.doJSON(ctx, "embed", http.MethodPost, "/api/embeddings", embedBody{Model: model, Prompt: prompt}, &resp); err != nil {
		return nil, err
	}
	return resp.Embedding, nil
}

func withSystem(system string, messages []Message) []Message {
	if system == "" || (len(messages) > 0 && messages[0].Role == RoleSystem) {
		return messages
	}
	out := make([]Message, 0, len(messages)+1)
	out = append(out, Message{Role: RoleSystem, Content: system})
	return append(out, messages...)
}

func truncate(s string) string {
	const limit = 512
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
