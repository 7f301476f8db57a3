package api

import "time"

// EventKind tags the concrete type of an Event
type EventKind int

const (
	EventGenerateChunk EventKind = iota + 1
	EventChatChunk
	EventPullProgress
	EventPushProgress
	EventError
	EventDone
)

func (k EventKind) String() string {
	switch k {
	case EventGenerateChunk:
		return "generate-chunk"
	case EventChatChunk:
		return "chat-chunk"
	case EventPullProgress:
		return "pull-progress"
	case EventPushProgress:
		return "push-progress"
	case EventError:
		return "error"
	case EventDone:
		return "done"
	default:
		return "unknown"
	}
}

// Event is one decoded stream line. Concrete types are GenerateChunk,
// ChatChunk, Progress, ErrorEvent and Done; switch on the type or on Kind.
type Event interface {
	Kind() EventKind
}

// GenerateChunk is a piece of generated text
type GenerateChunk struct {
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	Response  string    `json:"response"`
}

func (GenerateChunk) Kind() EventKind { return EventGenerateChunk }

// ChatChunk is a piece of an assistant message
type ChatChunk struct {
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	Message   Message   `json:"message"`
}

func (ChatChunk) Kind() EventKind { return EventChatChunk }

// Progress reports a pull or push step. Total and Completed are bytes of
// the layer named by Digest and are zero for steps without a transfer.
type Progress struct {
	Push      bool   `json:"-"`
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}

func (p Progress) Kind() EventKind {
	if p.Push {
		return EventPushProgress
	}
	return EventPullProgress
}

// ErrorEvent ends a stream that failed
type ErrorEvent struct {
	Err *Error `json:"-"`
}

func (ErrorEvent) Kind() EventKind { return EventError }

func (e ErrorEvent) Error() string { return e.Err.Error() }

// Metrics are the timings the backend attaches to the final generate or
// chat line.
type Metrics struct {
	TotalDuration      time.Duration `json:"total_duration,omitempty"`
	LoadDuration       time.Duration `json:"load_duration,omitempty"`
	PromptEvalCount    int           `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration time.Duration `json:"prompt_eval_duration,omitempty"`
	EvalCount          int           `json:"eval_count,omitempty"`
	EvalDuration       time.Duration `json:"eval_duration,omitempty"`
}

// TokensPerSecond is the generation rate, or zero when unknown.
func (m Metrics) TokensPerSecond() float64 {
	if m.EvalCount == 0 || m.EvalDuration <= 0 {
		return 0
	}
	return float64(m.EvalCount) / m.EvalDuration.Seconds()
}

// Done ends a stream that completed normally
type Done struct {
	Model      string  `json:"model,omitempty"`
	DoneReason string  `json:"done_reason,omitempty"`
	Status     string  `json:"status,omitempty"`
	Context    []int   `json:"context,omitempty"`
	Metrics    Metrics `json:"metrics"`
}

func (Done) Kind() EventKind { return EventDone }
