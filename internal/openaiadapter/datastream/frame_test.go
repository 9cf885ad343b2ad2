package datastream

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		line    string
		tag     Tag
		payload string
	}{
		{line: `0:"Hi"`, tag: TagContent, payload: `"Hi"`},
		{line: `g:"thinking"`, tag: TagReasoning, payload: `"thinking"`},
		{line: `9:{"toolName":"f"}`, tag: TagToolInvocation, payload: `{"toolName":"f"}`},
		{line: `d:{}`, tag: TagTerminal, payload: `{}`},
		{line: `0:`, tag: TagContent, payload: ``},
		{line: `z:garbage`, tag: TagUnknown, payload: `z:garbage`},
		{line: `3:"error"`, tag: TagUnknown, payload: `3:"error"`},
		{line: `e:{"finishReason":"stop"}`, tag: TagUnknown, payload: `e:{"finishReason":"stop"}`},
		{line: `0`, tag: TagUnknown, payload: `0`},
		{line: `   `, tag: TagUnknown, payload: `   `},
		{line: ``, tag: TagUnknown, payload: ``},
		{line: `no prefix at all`, tag: TagUnknown, payload: `no prefix at all`},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got := Classify(tt.line)
			if got.Tag != tt.tag {
				t.Errorf("Tag = %v, want %v", got.Tag, tt.tag)
			}
			if got.Payload != tt.payload {
				t.Errorf("Payload = %q, want %q", got.Payload, tt.payload)
			}
		})
	}
}

func TestTag_String(t *testing.T) {
	tags := map[Tag]string{
		TagUnknown:        "unknown",
		TagContent:        "content",
		TagReasoning:      "reasoning",
		TagToolInvocation: "tool_invocation",
		TagTerminal:       "terminal",
	}
	for tag, want := range tags {
		if got := tag.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", tag, got, want)
		}
	}
}
