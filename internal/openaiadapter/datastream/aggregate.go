package datastream

import (
	"strings"
	"unicode/utf8"

	"github.com/florianilch/vela-proxy/internal/openaiadapter"
	"github.com/florianilch/vela-proxy/internal/openaiadapter/types"
)

// accumulator folds stream events into a non-streaming response.
type accumulator struct {
	content      strings.Builder
	reasoning    strings.Builder
	toolCalls    []types.ChatCompletionMessageToolCall
	finishReason types.FinishReason
	usage        *types.CompletionUsage
}

func (a *accumulator) apply(ev *types.StreamEvent) {
	if ev == nil || ev.Chunk == nil {
		return
	}
	if ev.Chunk.Usage != nil {
		usage := *ev.Chunk.Usage
		a.usage = &usage
	}

	for _, choice := range ev.Chunk.Choices {
		if choice.Delta.Content != nil {
			a.content.WriteString(*choice.Delta.Content)
		}
		if choice.Delta.ReasoningContent != nil {
			a.reasoning.WriteString(*choice.Delta.ReasoningContent)
		}
		for _, call := range choice.Delta.ToolCalls {
			for len(a.toolCalls) <= call.Index {
				a.toolCalls = append(a.toolCalls, types.ChatCompletionMessageToolCall{Type: "function"})
			}
			tc := &a.toolCalls[call.Index]
			if call.ID != "" {
				tc.ID = call.ID
			}
			if call.Function.Name != "" {
				tc.Function.Name = call.Function.Name
			}
			tc.Function.Arguments += call.Function.Arguments
		}
		if choice.FinishReason != nil {
			a.finishReason = *choice.FinishReason
		}
	}
}

// response builds the final chat.completion. A truncated upstream still yields a
// response with finish_reason "stop" and whatever content arrived.
func (a *accumulator) response(s *Session) *openaiadapter.CreateChatCompletionResponse {
	finishReason := a.finishReason
	if finishReason == "" {
		finishReason = types.FinishReasonStop
	}

	content := a.content.String()
	message := types.ChatCompletionResponseMessage{
		Role:             types.RoleAssistant,
		Content:          &content,
		ReasoningContent: a.reasoning.String(),
		ToolCalls:        a.toolCalls,
	}

	usage := a.usage
	if usage == nil {
		completionTokens := utf8.RuneCountInString(content)
		usage = &types.CompletionUsage{
			PromptTokens:     0,
			CompletionTokens: completionTokens,
			TotalTokens:      completionTokens,
		}
	}

	return &openaiadapter.CreateChatCompletionResponse{
		ID:      s.cfg.ID,
		Object:  types.ObjectChatCompletion,
		Created: s.cfg.Created.Unix(),
		Model:   s.cfg.Model,
		Choices: []types.ChatCompletionChoice{{
			Index:        0,
			Message:      message,
			FinishReason: finishReason,
		}},
		Usage: usage,
	}
}
