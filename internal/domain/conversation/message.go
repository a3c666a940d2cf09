package conversation

import (
	"encoding/json"
	"strings"
	"time"
)

// MessageRole identifies the author of a message.
type MessageRole string

const (
	RoleUser        MessageRole = "user"
	RoleAIAssistant MessageRole = "ai_assistant"
	RoleStaff       MessageRole = "staff"
	RoleTool        MessageRole = "tool"
)

// Message is a single entry in a conversation transcript. Tool invocations
// are recorded as an ai_assistant message carrying ToolCallID/ToolName plus
// a tool message carrying the result for the same ToolCallID.
type Message struct {
	ID             uint
	PublicID       string
	ConversationID uint
	Role           MessageRole
	Body           string
	CleanedText    string
	ToolCallID     *string
	ToolName       *string
	ToolArgs       json.RawMessage
	ToolSuccess    *bool
	IsFlaggedAsBad bool
	FlagReason     *string
	Metadata       map[string]string
	CreatedAt      time.Time
}

// IsToolPair reports whether the message is part of a tool-call/result pair.
func (m *Message) IsToolPair() bool {
	return m.ToolCallID != nil
}

// CleanText normalizes a message body for model input: collapse runs of
// whitespace and trim the ends.
func CleanText(body string) string {
	return strings.Join(strings.Fields(body), " ")
}
