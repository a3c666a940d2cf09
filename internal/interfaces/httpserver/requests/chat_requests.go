package requests

// CreateConversationRequest opens a new chat conversation.
type CreateConversationRequest struct {
	Email   *string `json:"email,omitempty"`
	Subject *string `json:"subject,omitempty"`
}

// SendMessageRequest submits a message to a conversation. Role defaults to
// "user"; staff consoles submit with role "staff".
type SendMessageRequest struct {
	Body string  `json:"body" binding:"required"`
	Role *string `json:"role,omitempty"`
}

// FlagMessageRequest marks an assistant reply as unhelpful.
type FlagMessageRequest struct {
	Reason *string `json:"reason,omitempty"`
}
