// Package types provides the OpenAI chat-completion wire types served by the proxy.
//
// The types are written by hand rather than generated from the OpenAPI spec or taken
// from the openai-go SDK:
//
//  1. SERVER-SIDE vs CLIENT-SIDE: The SDK is designed for outbound calls TO OpenAI.
//     The proxy decodes inbound requests FROM clients and only needs the subset of
//     fields that can be expressed against the upstream data stream.
//
//  2. TOLERANT DECODING: Message content and tool_choice are unions on the wire
//     (string or array, string or object). Small custom UnmarshalJSON methods keep
//     them as plain Go values instead of generated union wrappers.
//
//  3. STANDARD JSON: Everything works with encoding/json and validator struct tags.
package types
