package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RequestIDHeader correlates log lines for one backend call
const RequestIDHeader = "X-Request-Id"

// HTTPLogger provides request/response logging for the backend client
type HTTPLogger struct {
	logger      *Logger
	maxBodySize int
}

// NewHTTPLogger creates a new HTTP logger
func NewHTTPLogger(logger *Logger) *HTTPLogger {
	return &HTTPLogger{
		logger:      logger,
		maxBodySize: 4096,
	}
}

// SetMaxBodySize sets the maximum body size to log (in bytes)
func (h *HTTPLogger) SetMaxBodySize(size int) {
	h.maxBodySize = size
}

// LogRequest logs an HTTP request
func (h *HTTPLogger) LogRequest(req *http.Request, body []byte) {
	fields := Fields{
		"method":     req.Method,
		"url":        req.URL.String(),
		"request_id": req.Header.Get(RequestIDHeader),
	}

	headers := make(map[string]string)
	for k, v := range req.Header {
		if isSensitiveHeader(k) {
			headers[k] = "[REDACTED]"
		} else if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	fields["headers"] = headers

	if len(body) > 0 {
		fields["body"] = bodyField(body, h.maxBodySize)
		fields["body_size"] = len(body)
	}

	h.logger.Debug("HTTP Request", fields)
}

// LogResponse logs an HTTP response
func (h *HTTPLogger) LogResponse(resp *http.Response, body []byte, duration time.Duration) {
	fields := Fields{
		"status":      resp.StatusCode,
		"duration_ms": duration.Milliseconds(),
		"request_id":  requestID(resp),
	}

	if len(body) > 0 {
		fields["body"] = bodyField(body, h.maxBodySize)
		fields["body_size"] = len(body)
	}

	h.logger.Debug("HTTP Response", fields)
}

// LogStreamStart logs the start of a streaming response
func (h *HTTPLogger) LogStreamStart(resp *http.Response, duration time.Duration) {
	h.logger.Debug("HTTP Stream Started", Fields{
		"status":       resp.StatusCode,
		"content_type": resp.Header.Get("Content-Type"),
		"ttfb_ms":      duration.Milliseconds(),
		"request_id":   requestID(resp),
	})
}

// LogStreamEnd logs the end of a streaming response
func (h *HTTPLogger) LogStreamEnd(requestID string, duration time.Duration, totalBytes int64, lineCount int) {
	h.logger.Debug("HTTP Stream Ended", Fields{
		"duration_ms": duration.Milliseconds(),
		"total_bytes": totalBytes,
		"line_count":  lineCount,
		"request_id":  requestID,
	})
}

// LogError logs an HTTP error
func (h *HTTPLogger) LogError(err error, req *http.Request) {
	h.logger.Error("HTTP Error", err, Fields{
		"method":     req.Method,
		"url":        req.URL.String(),
		"request_id": req.Header.Get(RequestIDHeader),
	})
}

// RoundTripperWrapper wraps an http.RoundTripper with logging
type RoundTripperWrapper struct {
	wrapped http.RoundTripper
	logger  *HTTPLogger
	logBody bool
}

// NewLoggingRoundTripper creates a new logging round tripper
func NewLoggingRoundTripper(wrapped http.RoundTripper, logger *HTTPLogger, logBody bool) *RoundTripperWrapper {
	if wrapped == nil {
		wrapped = http.DefaultTransport
	}
	return &RoundTripperWrapper{
		wrapped: wrapped,
		logger:  logger,
		logBody: logBody,
	}
}

// RoundTrip implements http.RoundTripper. Streaming bodies are never
// buffered; they are wrapped so their end can be logged on Close.
func (rt *RoundTripperWrapper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	var reqBody []byte
	if rt.logBody && req.Body != nil && req.GetBody != nil {
		if rc, err := req.GetBody(); err == nil {
			reqBody, _ = io.ReadAll(rc)
			_ = rc.Close()
		}
	}
	rt.logger.LogRequest(req, reqBody)

	resp, err := rt.wrapped.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		rt.logger.LogError(err, req)
		return nil, err
	}

	if isStreamingResponse(resp) {
		rt.logger.LogStreamStart(resp, duration)
		resp.Body = &streamLogBody{
			ReadCloser: resp.Body,
			logger:     rt.logger,
			requestID:  req.Header.Get(RequestIDHeader),
			start:      start,
		}
		return resp, nil
	}

	if rt.logBody {
		respBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(respBody))
		rt.logger.LogResponse(resp, respBody, duration)
	} else {
		rt.logger.LogResponse(resp, nil, duration)
	}

	return resp, nil
}

// streamLogBody counts bytes and lines of an NDJSON body as the consumer
// reads it and logs the totals once on Close.
type streamLogBody struct {
	io.ReadCloser
	logger    *HTTPLogger
	requestID string
	start     time.Time

	bytes int64
	lines int
	once  sync.Once
}

func (b *streamLogBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.bytes += int64(n)
	b.lines += bytes.Count(p[:n], []byte{'\n'})
	return n, err
}

func (b *streamLogBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(func() {
		b.logger.LogStreamEnd(b.requestID, time.Since(b.start), b.bytes, b.lines)
	})
	return err
}

// Helper functions

// isSensitiveHeader checks if a header should be redacted. The backend has
// no auth of its own but reverse proxies in front of it often do.
func isSensitiveHeader(name string) bool {
	switch strings.ToLower(name) {
	case "authorization", "proxy-authorization", "x-api-key", "cookie":
		return true
	}
	return false
}

// truncateBody truncates body if too large
func truncateBody(body []byte, maxSize int) string {
	if len(body) <= maxSize {
		return string(body)
	}
	return string(body[:maxSize]) + "...[truncated]"
}

// bodyField returns parsed JSON for small JSON bodies so it nests in
// JSON-format logs, and a truncated string otherwise.
func bodyField(body []byte, maxSize int) interface{} {
	if len(body) <= maxSize && json.Valid(body) {
		var parsed interface{}
		if err := json.Unmarshal(body, &parsed); err == nil {
			return parsed
		}
	}
	return truncateBody(body, maxSize)
}

func requestID(resp *http.Response) string {
	if resp.Request == nil {
		return ""
	}
	return resp.Request.Header.Get(RequestIDHeader)
}

// isStreamingResponse checks if response is a streaming response
func isStreamingResponse(resp *http.Response) bool {
	contentType := resp.Header.Get("Content-Type")
	return strings.Contains(contentType, "application/x-ndjson") ||
		strings.Contains(contentType, "text/event-stream")
}
