package datastream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/florianilch/vela-proxy/internal/openaiadapter"
)

// CreateChatCompletionAdapter transforms OpenAI chat completion requests into upstream
// data stream calls. It is stateless; every call creates its own Session.
type CreateChatCompletionAdapter struct {
	upstreamURL          string
	upstreamModel        string
	injectToolPrompt     bool
	finishReasonPerFrame bool
	newSessionID         func() string
	now                  func() time.Time
	recorder             Recorder
}

// Compile-time check that CreateChatCompletionAdapter implements openaiadapter.CreateChatCompletionAdapter
var _ openaiadapter.CreateChatCompletionAdapter = (*CreateChatCompletionAdapter)(nil)

// Option configures a CreateChatCompletionAdapter.
type Option func(*CreateChatCompletionAdapter)

// WithToolPrompt toggles prepending the tool catalogue as a system message.
func WithToolPrompt(enabled bool) Option {
	return func(a *CreateChatCompletionAdapter) {
		a.injectToolPrompt = enabled
	}
}

// WithFinishReasonPerFrame sets finish_reason "tool_calls" on each tool call delta
// instead of only on the final chunk.
func WithFinishReasonPerFrame(enabled bool) Option {
	return func(a *CreateChatCompletionAdapter) {
		a.finishReasonPerFrame = enabled
	}
}

// WithSessionIDSource replaces the session id generator, e.g. for reproducible tests.
func WithSessionIDSource(next func() string) Option {
	return func(a *CreateChatCompletionAdapter) {
		a.newSessionID = next
	}
}

// WithClock replaces the time source used for the "created" field.
func WithClock(now func() time.Time) Option {
	return func(a *CreateChatCompletionAdapter) {
		a.now = now
	}
}

// WithRecorder attaches a Recorder observing all sessions.
func WithRecorder(r Recorder) Option {
	return func(a *CreateChatCompletionAdapter) {
		if r != nil {
			a.recorder = r
		}
	}
}

// NewCreateChatCompletionAdapter creates an adapter posting to upstreamURL and requesting
// upstreamModel.
func NewCreateChatCompletionAdapter(upstreamURL, upstreamModel string, opts ...Option) (*CreateChatCompletionAdapter, error) {
	if upstreamURL == "" {
		return nil, errors.New("upstream URL cannot be empty")
	}
	if upstreamModel == "" {
		return nil, errors.New("upstream model cannot be empty")
	}

	a := &CreateChatCompletionAdapter{
		upstreamURL:      upstreamURL,
		upstreamModel:    upstreamModel,
		injectToolPrompt: true,
		newSessionID:     newSessionID,
		now:              time.Now,
		recorder:         nopRecorder{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// newSessionID generates an OpenAI-compatible response ID (chatcmpl-<uuid>).
func newSessionID() string {
	return "chatcmpl-" + uuid.NewString()
}

// ProcessRequest calls the upstream and folds the whole stream into one response.
func (a *CreateChatCompletionAdapter) ProcessRequest(
	ctx context.Context,
	clientReq openaiadapter.CreateChatCompletionRequest,
	transport http.RoundTripper,
) (*openaiadapter.CreateChatCompletionResponse, error) {
	body, err := a.send(ctx, clientReq, transport)
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	// Usage is always requested internally; the response carries it regardless.
	session := a.newSession(clientReq, true)

	var acc accumulator
	for ev, err := range Transcode(ctx, session, ReadChunks(body, defaultChunkSize)) {
		if err != nil {
			return nil, toChatCompletionError(fmt.Errorf("read upstream stream: %w", err))
		}
		acc.apply(ev)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return acc.response(session), nil
}

// ProcessStreamingRequest calls the upstream and returns an iterator of transcoded events.
// The iterator owns the upstream body and must be consumed; stopping early closes it.
func (a *CreateChatCompletionAdapter) ProcessStreamingRequest(
	ctx context.Context,
	clientReq openaiadapter.CreateChatCompletionRequest,
	transport http.RoundTripper,
) (iter.Seq2[*openaiadapter.CreateChatCompletionEvent, error], error) {
	body, err := a.send(ctx, clientReq, transport)
	if err != nil {
		return nil, err
	}

	includeUsage := clientReq.StreamOptions != nil && clientReq.StreamOptions.IncludeUsage
	session := a.newSession(clientReq, includeUsage)

	return func(yield func(*openaiadapter.CreateChatCompletionEvent, error) bool) {
		defer func() { _ = body.Close() }()

		for ev, err := range Transcode(ctx, session, ReadChunks(body, defaultChunkSize)) {
			if !yield(ev, err) {
				return
			}
		}
	}, nil
}

// newSession creates the per-request Session.
func (a *CreateChatCompletionAdapter) newSession(clientReq openaiadapter.CreateChatCompletionRequest, includeUsage bool) *Session {
	model := clientReq.Model
	if model == "" {
		model = a.upstreamModel
	}

	return NewSession(SessionConfig{
		ID:                   a.newSessionID(),
		Model:                model,
		Created:              a.now(),
		ToolCallMode:         toolCallMode(clientReq),
		FinishReasonPerFrame: a.finishReasonPerFrame,
		IncludeUsage:         includeUsage,
		Recorder:             a.recorder,
	})
}

// send posts the transformed request and returns the body of a successful response.
func (a *CreateChatCompletionAdapter) send(
	ctx context.Context,
	clientReq openaiadapter.CreateChatCompletionRequest,
	transport http.RoundTripper,
) (io.ReadCloser, error) {
	client, err := newClient(transport)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream client: %w", err)
	}

	payload, err := json.Marshal(fromChatCompletionRequest(clientReq, a.upstreamModel, a.injectToolPrompt))
	if err != nil {
		return nil, fmt.Errorf("encode upstream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.upstreamURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, toChatCompletionError(fmt.Errorf("upstream request failed: %w", err))
	}
	a.recorder.UpstreamResponse(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, upstreamStatusError(resp.StatusCode, excerpt)
	}

	return resp.Body, nil
}
