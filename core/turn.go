package core

import "time"

// Role identifies the speaker of a conversation turn.
type Role string

const (
	// RoleUser is the human side of the conversation.
	RoleUser Role = "user"

	// RolePersona is the persona's side of the conversation.
	RolePersona Role = "persona"
)

// Turn is a single conversational turn. Turns live in the persona's
// bounded history window; older turns drop out of the active window
// but are never deleted from permanent storage by this engine.
type Turn struct {
	Role      Role
	Text      string
	Timestamp time.Time
}
