package model

import "time"

// Conversation roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a session's conversation history
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session holds the claim under discussion and the conversation about it
type Session struct {
	ID         string    `json:"id"`
	Claim      string    `json:"claim"`
	History    []Message `json:"history"`
	CreatedAt  time.Time `json:"created_at"`
	LastAccess time.Time `json:"last_access"`
}

// OriginalClaim returns the first history entry, which is always the
// claim submitted to the fact-check, or "unknown claim" for an empty history.
func (s Session) OriginalClaim() string {
	if len(s.History) == 0 {
		return "unknown claim"
	}
	return s.History[0].Content
}

// Clone returns a deep copy safe to hand out of a store
func (s Session) Clone() Session {
	c := s
	c.History = append([]Message(nil), s.History...)
	return c
}
