package core

import "errors"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged text message in a completion request.
// The completion service receives an ordered list of these per turn.
type Message struct {
	Role    Role
	Content string
}

// ErrRateLimited signals that the completion service throttled the request.
// Callers treat it as a soft failure: reply with a fixed fallback and move
// on without retrying. Any other completion error is handled the same way
// but logged under its own cause.
var ErrRateLimited = errors.New("completion service rate limited")
