package agent

// Command is one inbound instruction token.
// Commands carry no payload and are interpreted by exact match.
type Command string

// Recognized command tokens.
const (
	// CommandNone means no command was pending. Dispatching it is a no-op.
	CommandNone Command = ""

	CommandStartMemoryProfile  Command = "start_memory_profile"
	CommandStopMemoryProfile   Command = "stop_memory_profile"
	CommandTriggerGC           Command = "trigger_gc"
	CommandObjectSpaceSnapshot Command = "objectspace_snapshot"
)

// ParseCommand converts a token to a Command. The text is kept verbatim,
// so a token only matches a known command exactly and unknown tokens
// still reach the interpreter, which ignores them. Transports strip frame
// whitespace before parsing.
func ParseCommand(raw string) Command {
	return Command(raw)
}

// IsNone reports whether no command is pending.
func (c Command) IsNone() bool {
	return c == CommandNone
}

// IsKnown reports whether c is one of the recognized tokens.
func (c Command) IsKnown() bool {
	switch c {
	case CommandStartMemoryProfile, CommandStopMemoryProfile, CommandTriggerGC, CommandObjectSpaceSnapshot:
		return true
	default:
		return false
	}
}

// String returns the wire token.
func (c Command) String() string {
	return string(c)
}

// KnownCommands returns all recognized command tokens.
func KnownCommands() []Command {
	return []Command{
		CommandStartMemoryProfile,
		CommandStopMemoryProfile,
		CommandTriggerGC,
		CommandObjectSpaceSnapshot,
	}
}
