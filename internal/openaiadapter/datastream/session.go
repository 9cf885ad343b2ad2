package datastream

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/florianilch/vela-proxy/internal/openaiadapter/types"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateTerminated
)

// Outcome describes how a session ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeTruncated Outcome = "truncated"
	OutcomeCancelled Outcome = "cancelled"
)

// SessionConfig configures a Session. Zero values are valid except for ID.
type SessionConfig struct {
	// ID is the chunk id shared by every envelope of the session.
	ID string
	// Model is reported in every envelope.
	Model string
	// Created is the session start; its unix seconds become the "created" field.
	Created time.Time
	// ToolCallMode selects "tool_calls" as default finish reason once a tool call was emitted.
	ToolCallMode bool
	// FinishReasonPerFrame sets finish_reason "tool_calls" on every tool call delta.
	FinishReasonPerFrame bool
	// IncludeUsage attaches usage to the final envelope when the upstream reported it.
	IncludeUsage bool
	// Recorder observes frames and outcomes. Nil disables recording.
	Recorder Recorder
}

// Session is the per-request transcoding state. It is confined to one request and
// must not be shared.
type Session struct {
	cfg       SessionConfig
	interp    *Interpreter
	state     State
	toolCalls int
	outcome   Outcome
}

// NewSession creates a session in StateIdle.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Created.IsZero() {
		cfg.Created = time.Now()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	return &Session{
		cfg:    cfg,
		interp: NewInterpreter(idPrefix(cfg.ID)),
	}
}

// idPrefix derives the tool call id seed from the session id (chatcmpl-<token>).
func idPrefix(sessionID string) string {
	token := strings.TrimPrefix(sessionID, "chatcmpl-")
	token = strings.ReplaceAll(token, "-", "")
	if len(token) > 8 {
		token = token[:8]
	}
	return token
}

// ID returns the session-wide chunk id.
func (s *Session) ID() string { return s.cfg.ID }

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Outcome returns how the session ended, or "" while it is still open.
func (s *Session) Outcome() Outcome { return s.outcome }

// begin moves an idle session to StateStreaming.
func (s *Session) begin() {
	if s.state == StateIdle {
		s.state = StateStreaming
	}
}

// close terminates the session without a terminal frame.
func (s *Session) close(outcome Outcome) {
	if s.state == StateTerminated {
		return
	}
	s.state = StateTerminated
	s.outcome = outcome
}

// Process interprets a frame and returns the events it produces. Once the session is
// terminated every frame is ignored.
func (s *Session) Process(ctx context.Context, f Frame) []*types.StreamEvent {
	s.cfg.Recorder.Frame(f.Tag)

	if s.state == StateTerminated {
		s.cfg.Recorder.DroppedFrame(DropAfterEndTurn)
		return nil
	}
	s.begin()

	res, err := s.interp.Interpret(f)
	switch {
	case res.EndOfTurn != nil:
		return s.finish(*res.EndOfTurn)
	case res.Delta != nil:
		return []*types.StreamEvent{s.emit(*res.Delta)}
	}

	s.cfg.Recorder.DroppedFrame(res.DropReason)
	switch {
	case err != nil:
		// A single malformed frame must not abort the session.
		slog.WarnContext(ctx, "dropping malformed frame",
			"tag", f.Tag.String(),
			"error", err,
		)
	case res.DropReason != DropUnknownTag:
		slog.DebugContext(ctx, "dropping frame",
			"tag", f.Tag.String(),
			"reason", string(res.DropReason),
		)
	}
	return nil
}

// emit wraps a delta in a chunk envelope.
func (s *Session) emit(d Delta) *types.StreamEvent {
	var delta types.ChatCompletionStreamResponseDelta
	var finishReason *types.FinishReason

	switch d.Kind {
	case DeltaContent:
		delta.Content = &d.Text
	case DeltaReasoning:
		delta.ReasoningContent = &d.Text
	case DeltaToolCall:
		s.toolCalls++
		delta.ToolCalls = []types.ChatCompletionMessageToolCallChunk{{
			Index: d.ToolCall.Index,
			ID:    d.ToolCall.ID,
			Type:  "function",
			Function: types.ToolCallFunction{
				Name:      d.ToolCall.Name,
				Arguments: d.ToolCall.Arguments,
			},
		}}
		if s.cfg.FinishReasonPerFrame {
			reason := types.FinishReasonToolCalls
			finishReason = &reason
		}
	}

	return &types.StreamEvent{Chunk: s.envelope(delta, finishReason)}
}

// finish emits the final envelope and the [DONE] marker, then terminates the session.
func (s *Session) finish(eot EndOfTurn) []*types.StreamEvent {
	reason := eot.FinishReason
	if reason == "" {
		reason = types.FinishReasonStop
		if s.cfg.ToolCallMode && s.toolCalls > 0 {
			reason = types.FinishReasonToolCalls
		}
	}

	final := s.envelope(types.ChatCompletionStreamResponseDelta{}, &reason)
	if s.cfg.IncludeUsage && eot.Usage != nil {
		usage := *eot.Usage
		final.Usage = &usage
	}

	s.state = StateTerminated
	s.outcome = OutcomeCompleted

	return []*types.StreamEvent{
		{Chunk: final},
		{Done: true},
	}
}

func (s *Session) envelope(delta types.ChatCompletionStreamResponseDelta, finishReason *types.FinishReason) *types.CreateChatCompletionStreamResponse {
	return &types.CreateChatCompletionStreamResponse{
		ID:      s.cfg.ID,
		Object:  types.ObjectChatCompletionChunk,
		Created: s.cfg.Created.Unix(),
		Model:   s.cfg.Model,
		Choices: []types.ChatCompletionStreamChoice{{
			Index:        0,
			Delta:        delta,
			FinishReason: finishReason,
		}},
	}
}
