package conversation

// Turn is one message in a conversation history.
type Turn struct {
	Role      string `json:"role"`
	Content   string `json:"content,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Conversation is an identifier plus the ordered turn history for one
// client. The history is maintained by its owner; consumers only read it.
type Conversation struct {
	ID      string
	History []Turn
}
