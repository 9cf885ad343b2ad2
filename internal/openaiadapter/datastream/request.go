package datastream

import (
	"fmt"
	"strings"

	"github.com/florianilch/vela-proxy/internal/openaiadapter"
	"github.com/florianilch/vela-proxy/internal/openaiadapter/types"
)

// upstreamRequest is the body sent to the upstream chat endpoint.
type upstreamRequest struct {
	Messages []upstreamMessage `json:"messages"`
	Model    string            `json:"model"`
}

// upstreamMessage is a text-only chat message.
type upstreamMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// toolCallMode reports whether tools are offered to the model for this request.
func toolCallMode(clientReq openaiadapter.CreateChatCompletionRequest) bool {
	if len(clientReq.Tools) == 0 {
		return false
	}
	return clientReq.ToolChoice == nil || clientReq.ToolChoice.Mode != types.ToolChoiceNone
}

// fromChatCompletionRequest builds the upstream body. The upstream understands plain
// role/content pairs only, so tool definitions and tool history are rendered as text.
func fromChatCompletionRequest(clientReq openaiadapter.CreateChatCompletionRequest, model string, injectToolPrompt bool) upstreamRequest {
	messages := make([]upstreamMessage, 0, len(clientReq.Messages)+1)

	if injectToolPrompt && toolCallMode(clientReq) {
		messages = append(messages, upstreamMessage{
			Role:    types.RoleSystem,
			Content: buildToolPrompt(clientReq.Tools, clientReq.ToolChoice),
		})
	}

	for _, msg := range clientReq.Messages {
		messages = append(messages, fromChatCompletionMessage(msg))
	}

	return upstreamRequest{
		Messages: messages,
		Model:    model,
	}
}

// fromChatCompletionMessage flattens one message to a role/content pair.
func fromChatCompletionMessage(msg types.ChatCompletionMessage) upstreamMessage {
	switch msg.Role {
	case types.RoleDeveloper:
		// Developer messages are the newer name for system messages.
		return upstreamMessage{Role: types.RoleSystem, Content: msg.Content.Text}

	case types.RoleTool:
		// Tool results are fed back as user turns referencing the originating call.
		return upstreamMessage{
			Role:    types.RoleUser,
			Content: fmt.Sprintf("Tool result for call %s:\n%s", msg.ToolCallID, msg.Content.Text),
		}

	case types.RoleAssistant:
		if len(msg.ToolCalls) == 0 {
			return upstreamMessage{Role: types.RoleAssistant, Content: msg.Content.Text}
		}
		var b strings.Builder
		b.WriteString(msg.Content.Text)
		for _, call := range msg.ToolCalls {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "Called tool %s (call %s) with arguments %s", call.Function.Name, call.ID, call.Function.Arguments)
		}
		return upstreamMessage{Role: types.RoleAssistant, Content: b.String()}

	default:
		return upstreamMessage{Role: msg.Role, Content: msg.Content.Text}
	}
}

// buildToolPrompt renders the tool catalogue and the tool_choice constraint.
func buildToolPrompt(tools []types.ChatCompletionTool, choice *types.ToolChoice) string {
	var b strings.Builder
	b.WriteString("You have access to the following tools. Call a tool by name with a JSON object of arguments matching its parameters schema.\n\n")

	for _, tool := range tools {
		fmt.Fprintf(&b, "- %s", tool.Function.Name)
		if tool.Function.Description != "" {
			fmt.Fprintf(&b, ": %s", tool.Function.Description)
		}
		b.WriteString("\n")
		if len(tool.Function.Parameters) > 0 {
			fmt.Fprintf(&b, "  parameters: %s\n", tool.Function.Parameters)
		}
	}

	b.WriteString("\n")
	switch {
	case choice != nil && choice.Function != "":
		fmt.Fprintf(&b, "You must call the tool %q.", choice.Function)
	case choice != nil && choice.Mode == types.ToolChoiceRequired:
		b.WriteString("You must call at least one tool.")
	default:
		b.WriteString("Call a tool only when it is needed to answer the user.")
	}

	return b.String()
}
