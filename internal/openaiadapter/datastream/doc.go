// Package datastream adapts OpenAI chat completion requests to an upstream that answers
// in the line-oriented "data stream" framing, enabling OpenAI SDK clients to consume it
// without code changes.
//
// The upstream body is a sequence of newline-terminated records, each prefixed with a
// two-character tag:
//
//	0:"Hello"                                            content text (JSON string)
//	g:"thinking..."                                      reasoning text (JSON string)
//	9:{"toolCallId":"c1","toolName":"f","args":{...}}     complete tool invocation
//	d:{"finishReason":"stop"}                            end of turn
//
// Any other tag is ignored.
//
// The stream is transcoded in a single forward pass:
//
//   - LineSplitter reassembles lines across arbitrary chunk boundaries, holding back
//     at most one incomplete fragment.
//
//   - Classify maps a line to a Frame by its prefix.
//
//   - Interpreter decodes the frame payload tolerantly. Malformed payloads are
//     dropped; they never end the session.
//
//   - Session wraps each Delta in a chat.completion.chunk envelope and, on end of
//     turn, emits the final stop chunk followed by the [DONE] marker.
//
// # Adapters
//
// CreateChatCompletionAdapter: OpenAI CreateChatCompletion → upstream data stream
package datastream
