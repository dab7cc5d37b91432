package core

// ActorID represents a unique identifier for an Actor within one Engine.
type ActorID uint64

// ActorState represents the current state of an Actor.
type ActorState uint8

const (
	// ActorStateIdle means the Actor is waiting for messages
	ActorStateIdle ActorState = iota

	// ActorStateRunning means the Actor is handling a message
	ActorStateRunning

	// ActorStateStopped means the Actor's mailbox has been torn down
	ActorStateStopped
)

// String returns the string representation of ActorState.
func (s ActorState) String() string {
	switch s {
	case ActorStateIdle:
		return "idle"
	case ActorStateRunning:
		return "running"
	case ActorStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// DefaultMailboxSize is used when ActorOptions.MailboxSize is not set.
const DefaultMailboxSize = 1000

// ActorOptions contains configuration options for spawning an Actor.
type ActorOptions struct {
	// Name is a human-readable name for the Actor
	Name string

	// MailboxSize bounds the mailbox of engines with bounded queues.
	// Engines with unbounded mailboxes ignore it.
	MailboxSize int
}

// DefaultActorOptions returns sensible default options.
func DefaultActorOptions() ActorOptions {
	return ActorOptions{
		MailboxSize: DefaultMailboxSize,
	}
}

// ActorStats contains runtime statistics for an Actor.
type ActorStats struct {
	// ID of the Actor
	ID ActorID

	// Name of the Actor
	Name string

	// Current state
	State ActorState

	// Total messages handled
	MessagesProcessed uint64

	// Messages currently waiting in the mailbox
	MailboxSize int
}
