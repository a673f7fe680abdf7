package pipeline

import "context"

// EventType names match the SSE event names on the wire.
type EventType string

const (
	EventProgress EventType = "progress"
	EventToken    EventType = "markdown_token"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// phaseNames index by phase number; 0 is unused.
var phaseNames = [...]string{"", "Query Understanding", "Parallel Retrieval", "Context Assembly", "Response Generation", "Post Processing"}

type Event struct {
	Type     EventType
	Progress *ProgressPayload
	Token    string
	Complete *CompletePayload
	Error    *ErrorPayload
}

type ProgressPayload struct {
	Phase         int    `json:"phase"`
	Name          string `json:"name"`
	Percent       int    `json:"percent"`
	Message       string `json:"message,omitempty"`
	ExpandedCount *int   `json:"expanded_count,omitempty"`
	UniqueChunks  *int   `json:"unique_chunks,omitempty"`
}

type CompletePayload struct {
	Answer            string   `json:"answer"`
	SessionID         string   `json:"session_id"`
	ContextCount      int      `json:"context_count"`
	ExpandedQuestions []string `json:"expanded_questions"`
	Truncated         bool     `json:"truncated"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Data returns the JSON-encodable payload for the event's data line.
func (e Event) Data() any {
	switch e.Type {
	case EventProgress:
		return e.Progress
	case EventToken:
		return map[string]string{"token": e.Token}
	case EventComplete:
		return e.Complete
	case EventError:
		return e.Error
	default:
		return nil
	}
}

// emitter pushes events onto a bounded channel in emission order.
// Exactly one terminal event (complete or error) ends a stream; nothing
// is emitted after it or after cancellation.
type emitter struct {
	ch       chan Event
	ctx      context.Context
	terminal bool
}

func newEmitter(ctx context.Context, ch chan Event) *emitter {
	return &emitter{ch: ch, ctx: ctx}
}

// send blocks until the consumer accepts the event (backpressure) or
// the request is cancelled. It reports whether the pipeline may keep
// emitting.
func (em *emitter) send(ev Event) bool {
	if em.terminal {
		return false
	}
	if ev.Type == EventComplete || ev.Type == EventError {
		em.terminal = true
	}
	select {
	case em.ch <- ev:
		return !em.terminal
	case <-em.ctx.Done():
		em.terminal = true
		return false
	}
}

func (em *emitter) progress(p ProgressPayload) bool {
	p.Name = phaseNames[p.Phase]
	return em.send(Event{Type: EventProgress, Progress: &p})
}

func (em *emitter) token(text string) bool {
	return em.send(Event{Type: EventToken, Token: text})
}

func (em *emitter) complete(payload *CompletePayload) {
	em.send(Event{Type: EventComplete, Complete: payload})
}

func (em *emitter) fail(code, message string) {
	em.send(Event{Type: EventError, Error: &ErrorPayload{Code: code, Message: message}})
}
