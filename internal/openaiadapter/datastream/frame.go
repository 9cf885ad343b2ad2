package datastream

import "strings"

// Tag identifies the kind of a Frame.
type Tag int

const (
	TagUnknown Tag = iota
	TagContent
	TagReasoning
	TagToolInvocation
	TagTerminal
)

// String returns the lower-case tag name used in logs and metric labels.
func (t Tag) String() string {
	switch t {
	case TagContent:
		return "content"
	case TagReasoning:
		return "reasoning"
	case TagToolInvocation:
		return "tool_invocation"
	case TagTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Frame is one classified upstream record.
type Frame struct {
	Tag     Tag
	Payload string
}

// prefixLen is the length of every record tag, e.g. `0:`.
const prefixLen = 2

// Classify maps a line to a Frame by its two-character prefix. The payload is the
// remainder of the line. Unrecognized prefixes and blank lines are TagUnknown.
func Classify(line string) Frame {
	if strings.TrimSpace(line) == "" || len(line) < prefixLen {
		return Frame{Tag: TagUnknown, Payload: line}
	}

	var tag Tag
	switch line[:prefixLen] {
	case "0:":
		tag = TagContent
	case "g:":
		tag = TagReasoning
	case "9:":
		tag = TagToolInvocation
	case "d:":
		tag = TagTerminal
	default:
		return Frame{Tag: TagUnknown, Payload: line}
	}
	return Frame{Tag: tag, Payload: line[prefixLen:]}
}
