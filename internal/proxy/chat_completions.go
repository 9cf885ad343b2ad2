package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/vela-proxy/internal/observability/middleware"
	"github.com/florianilch/vela-proxy/internal/openaiadapter"
)

// CreateChatCompletionsHandler handles OpenAI-compatible chat completion requests.
type CreateChatCompletionsHandler struct {
	Adapter   openaiadapter.CreateChatCompletionAdapter
	Transport http.RoundTripper
	Validate  *validator.Validate
	// RequestTimeout bounds the upstream call including the stream. Zero disables it.
	RequestTimeout time.Duration
}

// Compile-time check to ensure CreateChatCompletionsHandler implements http.Handler
var _ http.Handler = (*CreateChatCompletionsHandler)(nil)

// ServeHTTP implements http.Handler interface for streaming or non-streaming requests.
func (h *CreateChatCompletionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req openaiadapter.CreateChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			slog.WarnContext(ctx, "request exceeds size limit", "limit_bytes", maxBytesErr.Limit)
			writeJSONOpenAIError(ctx, w, openaiadapter.NewErrorResponse(
				openaiadapter.ErrorTypeInvalidRequest,
				http.StatusText(http.StatusRequestEntityTooLarge),
			))
			return
		}
		slog.WarnContext(ctx, "failed to decode request", "error", err)
		writeJSONOpenAIError(ctx, w, openaiadapter.NewErrorResponse(
			openaiadapter.ErrorTypeInvalidRequest,
			http.StatusText(http.StatusBadRequest),
		))
		return
	}

	if h.Validate != nil {
		if err := h.Validate.StructCtx(ctx, req); err != nil {
			slog.WarnContext(ctx, "invalid request", "error", err)
			writeJSONOpenAIError(ctx, w, openaiadapter.NewErrorResponse(
				openaiadapter.ErrorTypeInvalidRequest,
				validationMessage(err),
			))
			return
		}
	}

	if h.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.RequestTimeout)
		defer cancel()
	}

	middleware.SetLogAttrs(ctx,
		slog.String("model", req.Model),
		slog.Bool("stream", req.Stream != nil && *req.Stream),
	)

	if req.Stream != nil && *req.Stream {
		h.streamResponse(ctx, w, req)
	} else {
		h.writeResponse(ctx, w, req)
	}
}

// validationMessage renders validator errors as one client-facing sentence.
func validationMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return "invalid request"
	}
	fe := validationErrs[0]
	return fmt.Sprintf("invalid request: field %s failed on %q", fe.Namespace(), fe.Tag())
}

// writeResponse handles non-streaming chat completion requests.
func (h *CreateChatCompletionsHandler) writeResponse(
	ctx context.Context,
	w http.ResponseWriter,
	req openaiadapter.CreateChatCompletionRequest,
) {
	if ctx.Err() != nil {
		return
	}
	response, err := h.Adapter.ProcessRequest(ctx, req, h.Transport)
	if err != nil {
		if ctx.Err() != nil {
			slog.DebugContext(ctx, "request cancelled", "error", err)
			return
		}
		slog.ErrorContext(ctx, "request failed", "error", err)
		writeJSONOpenAIError(ctx, w, toErrorResponse(err))
		return
	}

	writeJSON(ctx, w, response, http.StatusOK)
}

// streamResponse streams chat completion chunks using SSE.
func (h *CreateChatCompletionsHandler) streamResponse(
	ctx context.Context,
	w http.ResponseWriter,
	req openaiadapter.CreateChatCompletionRequest,
) {
	if ctx.Err() != nil {
		return
	}
	// Fail before calling the upstream when the connection cannot stream.
	if _, ok := findFlusher(w); !ok {
		slog.ErrorContext(ctx, "SSE not supported by response writer")
		writeJSONOpenAIError(ctx, w, openaiadapter.NewErrorResponse(
			openaiadapter.ErrorTypeAPI,
			http.StatusText(http.StatusInternalServerError),
		))
		return
	}

	stream, err := h.Adapter.ProcessStreamingRequest(ctx, req, h.Transport)
	if err != nil {
		slog.ErrorContext(ctx, "streaming request failed", "error", err)
		writeJSONOpenAIError(ctx, w, toErrorResponse(err))
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		slog.ErrorContext(ctx, "SSE not supported", "error", err)
		// Stopping the iterator releases the upstream body.
		for range stream {
			break
		}
		return
	}

	for event, err := range stream {
		// Check for client disconnect before processing event
		if ctx.Err() != nil {
			slog.DebugContext(ctx, "client disconnected during stream")
			return
		}

		if err != nil {
			// The stream ends without [DONE]; clients treat that as a truncated turn.
			slog.ErrorContext(ctx, "stream error", "error", err)
			return
		}

		if event.Done {
			// OpenAI streaming protocol requires [DONE] marker
			if err := sse.WriteRaw("[DONE]"); err != nil {
				slog.ErrorContext(ctx, "failed to write stream termination marker", "error", err)
			}
			return
		}

		if err := sse.WriteData(event.Chunk); err != nil {
			slog.ErrorContext(ctx, "failed to write chunk", "error", err)
			return
		}
	}

	slog.WarnContext(ctx, "upstream ended without end of turn")
}

// toErrorResponse unwraps OpenAI-shaped errors or wraps anything else as api_error.
func toErrorResponse(err error) *openaiadapter.ErrorResponse {
	var errResp *openaiadapter.ErrorResponse
	if errors.As(err, &errResp) {
		return errResp
	}
	return openaiadapter.NewErrorResponse(
		openaiadapter.ErrorTypeAPI,
		http.StatusText(http.StatusInternalServerError),
	)
}
