package chat

import "github.com/moolen/telcoagent/internal/agent/harness"

// replyMsg carries one streamed agent reply.
type replyMsg harness.Reply

// turnDoneMsg ends an agent turn.
type turnDoneMsg struct {
	err error
}

// inputClosedMsg is sent when a non-interactive input reaches EOF.
type inputClosedMsg struct{}

// printedMsg follows each printed line.
type printedMsg struct{}
