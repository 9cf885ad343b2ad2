package datastream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/florianilch/vela-proxy/internal/openaiadapter/types"
)

// DeltaKind discriminates Delta.
type DeltaKind int

const (
	DeltaContent DeltaKind = iota + 1
	DeltaReasoning
	DeltaToolCall
)

// Delta is one normalized unit of output.
type Delta struct {
	Kind DeltaKind
	// Text is set for DeltaContent and DeltaReasoning.
	Text string
	// ToolCall is set for DeltaToolCall.
	ToolCall *ToolCall
}

// ToolCall is a complete tool invocation. Arguments is a JSON document rendered as a string.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
	// Index is the tool call slot within the session, starting at 0.
	Index int
}

// EndOfTurn signals the terminal frame. FinishReason is empty unless the upstream
// reported one the adapter recognizes.
type EndOfTurn struct {
	FinishReason types.FinishReason
	Usage        *types.CompletionUsage
}

// Interpretation is the result of interpreting one frame. At most one of Delta and
// EndOfTurn is set; when neither is, DropReason tells why the frame produced nothing.
type Interpretation struct {
	Delta      *Delta
	EndOfTurn  *EndOfTurn
	DropReason DropReason
}

// DropReason labels frames that produce no output.
type DropReason string

const (
	DropNone         DropReason = ""
	DropUnknownTag   DropReason = "unknown_tag"
	DropEmpty        DropReason = "empty"
	DropMalformed    DropReason = "malformed"
	DropAfterEndTurn DropReason = "after_end_of_turn"
)

// Interpreter decodes frame payloads. It holds the per-session tool call counters
// and must not be shared between sessions.
type Interpreter struct {
	// idPrefix seeds synthesized tool call ids.
	idPrefix string
	// nextID is the counter for synthesized tool call ids.
	nextID int
	// nextSlot is the index assigned to the next tool call.
	nextSlot int
}

// NewInterpreter returns an Interpreter that synthesizes missing tool call ids as
// call_<idPrefix>_<n>.
func NewInterpreter(idPrefix string) *Interpreter {
	return &Interpreter{idPrefix: idPrefix}
}

// Interpret decodes f. It never fails: undecodable frames yield an Interpretation
// with a DropReason and the error describing why.
func (in *Interpreter) Interpret(f Frame) (Interpretation, error) {
	switch f.Tag {
	case TagContent, TagReasoning:
		text, ok := decodeText(f.Payload)
		if !ok {
			return Interpretation{DropReason: DropEmpty}, nil
		}
		kind := DeltaContent
		if f.Tag == TagReasoning {
			kind = DeltaReasoning
		}
		return Interpretation{Delta: &Delta{Kind: kind, Text: text}}, nil

	case TagToolInvocation:
		call, err := in.decodeToolCall(f.Payload)
		if err != nil {
			return Interpretation{DropReason: DropMalformed}, err
		}
		return Interpretation{Delta: &Delta{Kind: DeltaToolCall, ToolCall: call}}, nil

	case TagTerminal:
		return Interpretation{EndOfTurn: decodeEndOfTurn(f.Payload)}, nil

	default:
		return Interpretation{DropReason: DropUnknownTag}, nil
	}
}

// decodeText decodes a JSON string payload. When the payload is not a valid JSON
// string, one leading and one trailing double quote are stripped literally.
// ok is false when no text remains.
func decodeText(payload string) (text string, ok bool) {
	if err := json.Unmarshal([]byte(payload), &text); err != nil {
		text = strings.TrimPrefix(payload, `"`)
		text = strings.TrimSuffix(text, `"`)
	}
	return text, text != ""
}

// toolInvocation is the payload of a tool invocation frame.
type toolInvocation struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args"`
}

var errMissingToolName = errors.New("tool invocation without toolName")

func (in *Interpreter) decodeToolCall(payload string) (*ToolCall, error) {
	var inv toolInvocation
	if err := json.Unmarshal([]byte(payload), &inv); err != nil {
		return nil, fmt.Errorf("decode tool invocation: %w", err)
	}
	if inv.ToolName == "" {
		return nil, errMissingToolName
	}

	// OpenAI expects arguments as a JSON-encoded string. Compact keeps the upstream key order.
	arguments := "{}"
	if len(inv.Args) > 0 && !bytes.Equal(inv.Args, []byte("null")) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, inv.Args); err != nil {
			return nil, fmt.Errorf("encode tool arguments: %w", err)
		}
		arguments = buf.String()
	}

	id := inv.ToolCallID
	if id == "" {
		id = fmt.Sprintf("call_%s_%d", in.idPrefix, in.nextID)
		in.nextID++
	}

	call := &ToolCall{
		ID:        id,
		Name:      inv.ToolName,
		Arguments: arguments,
		Index:     in.nextSlot,
	}
	in.nextSlot++
	return call, nil
}

// terminalPayload is the optional content of a terminal frame.
type terminalPayload struct {
	FinishReason string `json:"finishReason"`
	Usage        *struct {
		PromptTokens     int `json:"promptTokens"`
		CompletionTokens int `json:"completionTokens"`
	} `json:"usage"`
}

// decodeEndOfTurn extracts finish reason and usage. A terminal frame ends the turn
// even when its payload cannot be decoded.
func decodeEndOfTurn(payload string) *EndOfTurn {
	eot := &EndOfTurn{}

	var p terminalPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return eot
	}

	eot.FinishReason = toFinishReason(p.FinishReason)
	if p.Usage != nil {
		eot.Usage = &types.CompletionUsage{
			PromptTokens:     p.Usage.PromptTokens,
			CompletionTokens: p.Usage.CompletionTokens,
			TotalTokens:      p.Usage.PromptTokens + p.Usage.CompletionTokens,
		}
	}
	return eot
}

// toFinishReason maps upstream finish reasons to OpenAI finish reasons.
// Unreported values return "" so the session default applies.
func toFinishReason(reason string) types.FinishReason {
	switch reason {
	case "":
		return ""
	case "stop":
		return types.FinishReasonStop
	case "length":
		return types.FinishReasonLength
	case "tool-calls":
		return types.FinishReasonToolCalls
	case "content-filter":
		return types.FinishReasonContentFilter
	default:
		// "error", "other" and "unknown" have no OpenAI equivalent. Map to "stop" as
		// the closest semantic match.
		return types.FinishReasonStop
	}
}
