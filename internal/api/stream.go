package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"sync"
	"sync/atomic"
	"time"
)

type streamKind int

const (
	streamGenerate streamKind = iota
	streamChat
	streamPull
	streamPush
)

// streamLine is the union of every field the backend puts on a line
type streamLine struct {
	Model      string    `json:"model"`
	CreatedAt  time.Time `json:"created_at"`
	Response   string    `json:"response"`
	Message    *Message  `json:"message"`
	Done       *bool     `json:"done"`
	DoneReason string    `json:"done_reason"`
	Context    []int     `json:"context"`
	Status     string    `json:"status"`
	Digest     string    `json:"digest"`
	Total      int64     `json:"total"`
	Completed  int64     `json:"completed"`
	Error      string    `json:"error"`
	Metrics
}

// Stream is a lazily decoded NDJSON response. It reads from the network
// only inside Next and holds the connection until it ends or Close is
// called. A Stream has a single consumer and cannot be restarted.
//
//	s, err := client.Generate(ctx, req)
//	if err != nil { ... }
//	defer s.Close()
//	for s.Next() {
//	    switch ev := s.Event().(type) {
//	    case api.GenerateChunk:
//	        fmt.Print(ev.Response)
//	    case api.ErrorEvent:
//	        return ev.Err
//	    }
//	}
//	return s.Err()
type Stream struct {
	kind   streamKind
	op     string
	parent context.Context
	body   *idleTimeoutBody
	reader *bufio.Reader

	pending []Event
	current Event
	err     error
	ended   bool

	closeOnce sync.Once
	closeErr  error
}

// newStream takes ownership of body. cancel aborts the underlying request;
// it is called when the stream ends, is closed, or goes idle for timeout.
func newStream(parent context.Context, kind streamKind, op string, body io.ReadCloser, timeout time.Duration, cancel context.CancelFunc) *Stream {
	if cancel == nil {
		cancel = func() {}
	}
	idle := newIdleTimeoutBody(body, timeout, cancel)
	return &Stream{
		kind:   kind,
		op:     op,
		parent: parent,
		body:   idle,
		reader: bufio.NewReader(idle),
	}
}

// Next advances to the next event. It returns false once the stream has
// ended: after a Done or ErrorEvent has been delivered, after Close, or when
// the caller's context is cancelled (see Err).
func (s *Stream) Next() bool {
	for {
		if len(s.pending) > 0 {
			s.current, s.pending = s.pending[0], s.pending[1:]
			return true
		}
		if s.ended {
			s.current = nil
			return false
		}
		if err := s.parent.Err(); err != nil {
			s.finish(err)
			continue
		}
		if s.closed() {
			s.finish(nil)
			continue
		}

		line, err := s.readLine()
		if err == nil || (errors.Is(err, io.EOF) && len(line) > 0) {
			if len(line) > 0 {
				s.decode(line)
			}
			continue
		}
		s.readFailed(err)
	}
}

func (s *Stream) readFailed(err error) {
	switch {
	case s.body.timedOut():
		s.fail(&Error{Kind: KindStreamTimeout, Op: s.op, Message: "no data received for " + s.body.timeout.String()})
	case s.parent.Err() != nil:
		s.finish(s.parent.Err())
	case s.closed():
		s.finish(nil)
	case errors.Is(err, io.EOF):
		s.fail(&Error{Kind: KindStreamCorruption, Op: s.op, Message: "stream closed before completion"})
	default:
		s.fail(&Error{Kind: KindStreamCorruption, Op: s.op, Message: "stream interrupted", Err: err})
	}
}

// readLine returns the next line without its terminator. A final line
// without a newline is returned together with io.EOF.
func (s *Stream) readLine() ([]byte, error) {
	line, err := s.reader.ReadBytes('\n')
	return bytes.TrimSpace(line), err
}

func (s *Stream) decode(line []byte) {
	var l streamLine
	if err := json.Unmarshal(line, &l); err != nil {
		s.fail(&Error{Kind: KindStreamCorruption, Op: s.op, Message: "invalid JSON line", Raw: string(line), Err: err})
		return
	}
	if len(line) == 0 || line[0] != '{' {
		s.fail(&Error{Kind: KindStreamCorruption, Op: s.op, Message: "line is not a JSON object", Raw: string(line)})
		return
	}
	if l.Error != "" {
		s.fail(&Error{Kind: KindBackend, Op: s.op, Message: l.Error})
		return
	}

	finished := l.Done != nil && *l.Done
	switch s.kind {
	case streamGenerate, streamChat:
		if l.Done == nil {
			s.fail(&Error{Kind: KindStreamCorruption, Op: s.op, Message: "line has no done field", Raw: string(line)})
			return
		}
	case streamPull, streamPush:
		if l.Done == nil && l.Status == "" {
			s.fail(&Error{Kind: KindStreamCorruption, Op: s.op, Message: "line has neither status nor done", Raw: string(line)})
			return
		}
	}

	switch s.kind {
	case streamGenerate:
		if !finished || l.Response != "" {
			s.emit(GenerateChunk{Model: l.Model, CreatedAt: l.CreatedAt, Response: l.Response})
		}
	case streamChat:
		if l.Message != nil && (!finished || l.Message.Content != "") {
			s.emit(ChatChunk{Model: l.Model, CreatedAt: l.CreatedAt, Message: *l.Message})
		}
	case streamPull, streamPush:
		// The final progress line is {"status":"success"} without a done field.
		if l.Status == "success" {
			finished = true
		} else if !finished {
			s.emit(Progress{Push: s.kind == streamPush, Status: l.Status, Digest: l.Digest, Total: l.Total, Completed: l.Completed})
		}
	}

	if finished {
		s.emit(Done{
			Model:      l.Model,
			DoneReason: l.DoneReason,
			Status:     l.Status,
			Context:    l.Context,
			Metrics:    l.Metrics,
		})
		s.finish(nil)
	}
}

func (s *Stream) emit(ev Event) {
	s.pending = append(s.pending, ev)
}

// fail queues a terminal ErrorEvent.
func (s *Stream) fail(err *Error) {
	s.emit(ErrorEvent{Err: err})
	s.finish(nil)
}

func (s *Stream) finish(err error) {
	s.ended = true
	if s.err == nil {
		s.err = err
	}
	_ = s.Close()
}

// Event returns the event produced by the last successful call to Next.
func (s *Stream) Event() Event {
	return s.current
}

// Err returns the caller's context error when the stream stopped because
// that context was cancelled. Stream failures are delivered as ErrorEvent
// and are not repeated here.
func (s *Stream) Err() error {
	return s.err
}

// Close releases the connection. It is safe to call more than once and
// from a goroutine other than the consumer.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

func (s *Stream) closed() bool {
	return s.body.isClosed()
}

// All adapts the stream to a range-over-func iterator. Breaking out of the
// loop closes the stream.
func (s *Stream) All() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.Event()) {
				return
			}
		}
	}
}

// idleTimeoutBody cancels the request when a read waits longer than
// timeout. The timer only runs while a read is in progress, so a slow
// consumer is never mistaken for a silent backend.
type idleTimeoutBody struct {
	rc      io.ReadCloser
	timeout time.Duration
	cancel  context.CancelFunc
	timer   *time.Timer
	fired   atomic.Bool
	done    atomic.Bool
}

func newIdleTimeoutBody(rc io.ReadCloser, timeout time.Duration, cancel context.CancelFunc) *idleTimeoutBody {
	b := &idleTimeoutBody{rc: rc, timeout: timeout, cancel: cancel}
	if timeout > 0 {
		b.timer = time.AfterFunc(timeout, func() {
			b.fired.Store(true)
			cancel()
		})
		b.timer.Stop()
	}
	return b
}

func (b *idleTimeoutBody) Read(p []byte) (int, error) {
	if b.timer != nil {
		b.timer.Reset(b.timeout)
	}
	n, err := b.rc.Read(p)
	if b.timer != nil {
		b.timer.Stop()
	}
	return n, err
}

func (b *idleTimeoutBody) Close() error {
	b.done.Store(true)
	if b.timer != nil {
		b.timer.Stop()
	}
	err := b.rc.Close()
	b.cancel()
	return err
}

func (b *idleTimeoutBody) timedOut() bool { return b.fired.Load() }

func (b *idleTimeoutBody) isClosed() bool { return b.done.Load() }
