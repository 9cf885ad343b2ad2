package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Object names used in the "object" field of responses.
const (
	ObjectChatCompletion      = "chat.completion"
	ObjectChatCompletionChunk = "chat.completion.chunk"
	ObjectList                = "list"
	ObjectModel               = "model"
)

// Message roles accepted in requests.
const (
	RoleSystem    = "system"
	RoleDeveloper = "developer"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// FinishReason is the reason the model stopped generating tokens.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonLength        FinishReason = "length"
	FinishReasonToolCalls     FinishReason = "tool_calls"
	FinishReasonContentFilter FinishReason = "content_filter"
)

// CreateChatCompletionRequest is the body of POST /v1/chat/completions.
type CreateChatCompletionRequest struct {
	Model         string                  `json:"model"`
	Messages      []ChatCompletionMessage `json:"messages" validate:"required,min=1,dive"`
	Tools         []ChatCompletionTool    `json:"tools,omitempty" validate:"omitempty,dive"`
	ToolChoice    *ToolChoice             `json:"tool_choice,omitempty"`
	Stream        *bool                   `json:"stream,omitempty"`
	StreamOptions *StreamOptions          `json:"stream_options,omitempty"`
}

// StreamOptions configures streaming responses.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage,omitempty"`
}

// ChatCompletionMessage is a single message of the conversation history.
type ChatCompletionMessage struct {
	Role       string                          `json:"role" validate:"required,oneof=system developer user assistant tool"`
	Content    MessageContent                  `json:"content"`
	Name       string                          `json:"name,omitempty"`
	ToolCalls  []ChatCompletionMessageToolCall `json:"tool_calls,omitempty"`
	ToolCallID string                          `json:"tool_call_id,omitempty"`
}

// MessageContent holds the text of a message. On the wire it is either a string,
// null, or an array of content parts; only text parts are kept.
type MessageContent struct {
	Text string
}

// UnmarshalJSON accepts a string, null or an array of content parts.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		c.Text = ""
		return nil
	case data[0] == '"':
		return json.Unmarshal(data, &c.Text)
	case data[0] == '[':
		var parts []ContentPart
		if err := json.Unmarshal(data, &parts); err != nil {
			return fmt.Errorf("decode content parts: %w", err)
		}
		texts := make([]string, 0, len(parts))
		for _, p := range parts {
			// Image, audio and file parts cannot be forwarded to a text-only upstream.
			if p.Type == "text" || p.Type == "input_text" {
				texts = append(texts, p.Text)
			}
		}
		c.Text = strings.Join(texts, "\n")
		return nil
	default:
		return fmt.Errorf("unsupported content format: %s", data)
	}
}

// MarshalJSON always renders content as a plain string.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Text)
}

// ContentPart is one element of an array-form message content.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ChatCompletionTool describes a function the model may call.
type ChatCompletionTool struct {
	Type     string             `json:"type" validate:"eq=function"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition is the schema of a callable function.
type FunctionDefinition struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolChoice is either a mode string ("none", "auto", "required") or a named
// function choice ({"type":"function","function":{"name":"..."}}).
type ToolChoice struct {
	Mode     string
	Function string
}

// Tool choice modes.
const (
	ToolChoiceNone     = "none"
	ToolChoiceAuto     = "auto"
	ToolChoiceRequired = "required"
)

// namedToolChoice is the object form of ToolChoice.
type namedToolChoice struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

// UnmarshalJSON accepts both the string and the object form.
func (t *ToolChoice) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &t.Mode)
	}

	var named namedToolChoice
	if err := json.Unmarshal(data, &named); err != nil {
		return fmt.Errorf("decode tool_choice: %w", err)
	}
	if named.Type != "function" || named.Function.Name == "" {
		return fmt.Errorf("unsupported tool_choice type %q", named.Type)
	}
	t.Function = named.Function.Name
	return nil
}

// MarshalJSON renders the string form for modes and the object form for named functions.
func (t ToolChoice) MarshalJSON() ([]byte, error) {
	if t.Function == "" {
		return json.Marshal(t.Mode)
	}
	var named namedToolChoice
	named.Type = "function"
	named.Function.Name = t.Function
	return json.Marshal(named)
}

// ChatCompletionMessageToolCall is a complete tool call attached to an assistant message.
type ChatCompletionMessageToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction names the called function and carries its JSON-encoded arguments.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatCompletionMessageToolCallChunk is a tool call fragment inside a streaming delta.
// Index addresses the tool call slot and is always serialized.
type ChatCompletionMessageToolCallChunk struct {
	Index    int              `json:"index"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function ToolCallFunction `json:"function"`
}

// CreateChatCompletionResponse is the non-streaming response body.
type CreateChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   *CompletionUsage       `json:"usage,omitempty"`
}

// ChatCompletionChoice is one completion alternative. The proxy always returns one.
type ChatCompletionChoice struct {
	Index        int                           `json:"index"`
	Message      ChatCompletionResponseMessage `json:"message"`
	FinishReason FinishReason                  `json:"finish_reason"`
}

// ChatCompletionResponseMessage is the assistant message of a non-streaming response.
type ChatCompletionResponseMessage struct {
	Role             string                          `json:"role"`
	Content          *string                         `json:"content"`
	ReasoningContent string                          `json:"reasoning_content,omitempty"`
	ToolCalls        []ChatCompletionMessageToolCall `json:"tool_calls,omitempty"`
}

// CreateChatCompletionStreamResponse is one streamed chunk envelope.
type CreateChatCompletionStreamResponse struct {
	ID      string                       `json:"id"`
	Object  string                       `json:"object"`
	Created int64                        `json:"created"`
	Model   string                       `json:"model"`
	Choices []ChatCompletionStreamChoice `json:"choices"`
	Usage   *CompletionUsage             `json:"usage,omitempty"`
}

// ChatCompletionStreamChoice carries the delta of one chunk. FinishReason is null
// on incremental deltas.
type ChatCompletionStreamChoice struct {
	Index        int                               `json:"index"`
	Delta        ChatCompletionStreamResponseDelta `json:"delta"`
	FinishReason *FinishReason                     `json:"finish_reason"`
}

// ChatCompletionStreamResponseDelta holds exactly one kind of incremental content,
// or nothing for the final chunk.
type ChatCompletionStreamResponseDelta struct {
	Content          *string                              `json:"content,omitempty"`
	ReasoningContent *string                              `json:"reasoning_content,omitempty"`
	ToolCalls        []ChatCompletionMessageToolCallChunk `json:"tool_calls,omitempty"`
}

// CompletionUsage reports token counts.
type CompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamEvent is one record of a chat completion stream: either a chunk envelope
// or the terminal [DONE] marker.
type StreamEvent struct {
	Chunk *CreateChatCompletionStreamResponse
	Done  bool
}

// ListModelsResponse is the body of GET /v1/models.
type ListModelsResponse struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// Model describes one model served by the proxy.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}
