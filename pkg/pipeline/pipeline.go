package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docaihq/docai/pkg/domain"
	"github.com/docaihq/docai/pkg/log"
	"github.com/docaihq/docai/pkg/prompt"
	"github.com/docaihq/docai/pkg/retrieval"
)

// eventBuffer bounds the emit channel so a slow consumer applies
// backpressure instead of unbounded growth.
const eventBuffer = 64

type Options struct {
	TopK         int
	HistoryLimit int
}

// Pipeline orchestrates the five phases of one ask: query
// understanding, parallel retrieval, context assembly, streamed
// response generation, post-processing.
type Pipeline struct {
	files     domain.FileStore
	sessions  domain.SessionStore
	retriever *retrieval.Engine
	builder   *prompt.Builder
	generator domain.Generator
	opts      Options
	logger    *slog.Logger
}

func New(files domain.FileStore, sessions domain.SessionStore, retriever *retrieval.Engine, builder *prompt.Builder, generator domain.Generator, opts Options) *Pipeline {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}
	return &Pipeline{
		files:     files,
		sessions:  sessions,
		retriever: retriever,
		builder:   builder,
		generator: generator,
		opts:      opts,
		logger:    log.WithModule("pipeline"),
	}
}

type AskRequest struct {
	SessionID       string
	Query           string
	FileIDs         []string
	OwnerID         string
	Language        string
	TopK            int
	EnableExpansion bool
}

// Ask validates and authorizes the request, then starts the phase
// runner. Validation and ownership failures return an error before any
// event exists; afterwards the stream carries exactly one terminal
// event unless the context is cancelled first.
func (p *Pipeline) Ask(ctx context.Context, req AskRequest) (<-chan Event, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, fmt.Errorf("%w: session_id cannot be empty", domain.ErrInvalidInput)
	}
	if len(req.FileIDs) == 0 {
		return nil, fmt.Errorf("%w: file_ids cannot be empty", domain.ErrInvalidInput)
	}
	if !domain.ValidUserID(req.OwnerID) {
		return nil, fmt.Errorf("%w: user id must be a UUID v4", domain.ErrInvalidInput)
	}

	// Ownership check before any event is emitted.
	for _, fileID := range req.FileIDs {
		file, err := p.files.Get(ctx, fileID)
		if err != nil {
			return nil, err
		}
		if file.OwnerID != req.OwnerID {
			return nil, fmt.Errorf("%w: file %s is not owned by requester", domain.ErrForbidden, fileID)
		}
	}

	if req.TopK <= 0 {
		req.TopK = p.opts.TopK
	}

	ch := make(chan Event, eventBuffer)
	go p.run(ctx, req, ch)
	return ch, nil
}

func (p *Pipeline) run(ctx context.Context, req AskRequest, ch chan Event) {
	defer close(ch)
	em := newEmitter(ctx, ch)

	// Phase 1: query understanding.
	if !em.progress(ProgressPayload{Phase: 1, Percent: 0, Message: "Analyzing query..."}) {
		return
	}
	questions := []string{req.Query}
	if req.EnableExpansion {
		questions = p.retriever.ExpandQuery(ctx, req.Query)
	}
	expanded := len(questions)
	if !em.progress(ProgressPayload{Phase: 1, Percent: 100, ExpandedCount: &expanded}) {
		return
	}

	// Phase 2: parallel retrieval.
	if !em.progress(ProgressPayload{Phase: 2, Percent: 0, Message: "Searching documents..."}) {
		return
	}
	results, err := p.retriever.Search(ctx, questions, req.FileIDs, req.TopK)
	if err != nil {
		p.logger.Error("retrieval failed", "session_id", req.SessionID, "error", err)
		em.fail(domain.ErrorCode(err), err.Error())
		return
	}
	unique := len(results)
	if !em.progress(ProgressPayload{Phase: 2, Percent: 100, UniqueChunks: &unique}) {
		return
	}

	// Phase 3: context assembly. An empty result set still proceeds;
	// the system prompt has the model report insufficient context.
	if !em.progress(ProgressPayload{Phase: 3, Percent: 0, Message: "Assembling context..."}) {
		return
	}
	history, err := p.sessions.Recent(ctx, req.SessionID, p.opts.HistoryLimit)
	if err != nil {
		p.logger.Error("failed to load session history", "session_id", req.SessionID, "error", err)
		em.fail(domain.ErrorCode(err), err.Error())
		return
	}
	messages := p.builder.Build(req.Query, results, history, req.Language)
	if !em.progress(ProgressPayload{Phase: 3, Percent: 100}) {
		return
	}

	// Phase 4: streamed generation.
	if !em.progress(ProgressPayload{Phase: 4, Percent: 0, Message: "Generating answer..."}) {
		return
	}
	var answer strings.Builder
	stopped := false
	streamErr := p.generator.Stream(ctx, messages, nil, func(token string) {
		answer.WriteString(token)
		if !em.token(token) {
			stopped = true
		}
	})
	if ctx.Err() != nil || stopped {
		// Cancelled: no further events, no session append.
		return
	}

	truncated := false
	if streamErr != nil {
		if answer.Len() == 0 {
			p.logger.Error("generation failed", "session_id", req.SessionID, "error", streamErr)
			em.fail(domain.ErrorCode(streamErr), streamErr.Error())
			return
		}
		// Mid-stream failure: keep the partial answer and move on.
		p.logger.Warn("generation stream truncated", "session_id", req.SessionID, "error", streamErr)
		truncated = true
	} else {
		if !em.progress(ProgressPayload{Phase: 4, Percent: 100}) {
			return
		}
	}

	// Phase 5: post-processing. Session-store failures are logged and
	// swallowed; the caller still gets the answer.
	if !em.progress(ProgressPayload{Phase: 5, Percent: 0, Message: "Saving conversation..."}) {
		return
	}
	p.appendToSession(ctx, req, answer.String(), questions, len(results), truncated)
	if !em.progress(ProgressPayload{Phase: 5, Percent: 100}) {
		return
	}

	em.complete(&CompletePayload{
		Answer:            answer.String(),
		SessionID:         req.SessionID,
		ContextCount:      len(results),
		ExpandedQuestions: questions,
		Truncated:         truncated,
	})
}

func (p *Pipeline) appendToSession(ctx context.Context, req AskRequest, answer string, questions []string, contextCount int, truncated bool) {
	if err := p.sessions.CreateIfAbsent(ctx, req.SessionID, req.OwnerID, req.FileIDs); err != nil {
		p.logger.Warn("failed to create session", "session_id", req.SessionID, "error", err)
	}
	userMeta := map[string]any{
		"file_ids":           req.FileIDs,
		"expanded_questions": questions,
		"context_count":      contextCount,
	}
	if err := p.sessions.Append(ctx, req.SessionID, domain.RoleUser, req.Query, userMeta); err != nil {
		p.logger.Warn("failed to append user message", "session_id", req.SessionID, "error", err)
		return
	}
	assistantMeta := map[string]any{
		"context_count": contextCount,
		"truncated":     truncated,
	}
	if err := p.sessions.Append(ctx, req.SessionID, domain.RoleAssistant, answer, assistantMeta); err != nil {
		p.logger.Warn("failed to append assistant message", "session_id", req.SessionID, "error", err)
	}
}

// AskSync runs the same phases without token events and returns the
// final completion payload.
func (p *Pipeline) AskSync(ctx context.Context, req AskRequest) (*CompletePayload, error) {
	ch, err := p.Ask(ctx, req)
	if err != nil {
		return nil, err
	}
	for ev := range ch {
		switch ev.Type {
		case EventComplete:
			return ev.Complete, nil
		case EventError:
			return nil, fmt.Errorf("%w: %s", domain.SentinelForCode(ev.Error.Code), ev.Error.Message)
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, fmt.Errorf("%w: stream ended without completion", domain.ErrInternal)
}
