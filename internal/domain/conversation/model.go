// Package conversation models support conversations and their ownership state machine.
package conversation

import (
	"errors"
	"time"
)

// PlaceholderSubject is assigned to chat conversations until a real subject is generated.
const PlaceholderSubject = "Chat"

// Status enumerates the lifecycle states of a conversation.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
	StatusSpam   Status = "spam"
)

// OwnerKind identifies who is responsible for the next reply.
type OwnerKind string

const (
	OwnerAI    OwnerKind = "ai"
	OwnerHuman OwnerKind = "human"
	OwnerNone  OwnerKind = "none"
)

// Ownership pairs the owner kind with an optional staff user ID. A human
// owner without a user ID means the conversation sits in the shared queue.
type Ownership struct {
	Kind   OwnerKind `json:"kind"`
	UserID *string   `json:"user_id,omitempty"`
}

// AIOwned returns the ownership marker for the assistant.
func AIOwned() Ownership {
	return Ownership{Kind: OwnerAI}
}

// HumanOwned returns an ownership marker for a staff member or the shared queue.
func HumanOwned(userID *string) Ownership {
	return Ownership{Kind: OwnerHuman, UserID: userID}
}

// Unassigned returns the ownership marker for a conversation nobody owns.
func Unassigned() Ownership {
	return Ownership{Kind: OwnerNone}
}

// IsAI reports whether the assistant owns the conversation.
func (o Ownership) IsAI() bool {
	return o.Kind == OwnerAI
}

// Conversation is the aggregate the engine orchestrates replies for.
type Conversation struct {
	ID            uint
	Slug          string
	Subject       string
	Summary       *string
	Status        Status
	Ownership     Ownership
	EmailFrom     *string
	EscalatedAt   *time.Time
	ClosedAt      *time.Time
	LastOwnership *Ownership // ownership before the most recent close/spam, for reopen
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ErrInvalidTransition is returned for a disallowed status change.
var ErrInvalidTransition = errors.New("invalid conversation status transition")

var allowedTransitions = map[Status][]Status{
	StatusOpen:   {StatusClosed, StatusSpam},
	StatusClosed: {StatusOpen},
	StatusSpam:   {StatusOpen},
}

// CanTransitionTo reports whether the status change is allowed.
func (s Status) CanTransitionTo(target Status) bool {
	if s == target {
		return false
	}
	for _, allowed := range allowedTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Escalate hands the conversation from the assistant to a human owner.
// Escalating an already human-owned conversation is a no-op.
func (c *Conversation) Escalate(at time.Time) bool {
	if !c.Ownership.IsAI() {
		return false
	}
	c.Ownership = HumanOwned(nil)
	c.Status = StatusOpen
	c.EscalatedAt = &at
	c.UpdatedAt = at
	return true
}

// AssignToStaff transfers ownership to a specific staff member.
func (c *Conversation) AssignToStaff(userID string, at time.Time) {
	c.Ownership = HumanOwned(&userID)
	c.UpdatedAt = at
}

// Close marks the conversation resolved. Only open conversations can close.
func (c *Conversation) Close(at time.Time) error {
	if !c.Status.CanTransitionTo(StatusClosed) {
		return ErrInvalidTransition
	}
	prior := c.Ownership
	c.LastOwnership = &prior
	c.Status = StatusClosed
	c.ClosedAt = &at
	c.UpdatedAt = at
	return nil
}

// MarkSpam flags the conversation as spam. The assistant never does this on
// its own; it is an explicit staff action.
func (c *Conversation) MarkSpam(at time.Time) error {
	if !c.Status.CanTransitionTo(StatusSpam) {
		return ErrInvalidTransition
	}
	prior := c.Ownership
	c.LastOwnership = &prior
	c.Status = StatusSpam
	c.UpdatedAt = at
	return nil
}

// Reopen returns a closed or spam conversation to the open state, restoring
// the prior ownership when recorded and defaulting to the human queue.
func (c *Conversation) Reopen(at time.Time) error {
	if !c.Status.CanTransitionTo(StatusOpen) {
		return ErrInvalidTransition
	}
	c.Status = StatusOpen
	c.ClosedAt = nil
	if c.LastOwnership != nil {
		c.Ownership = *c.LastOwnership
		c.LastOwnership = nil
	} else {
		c.Ownership = HumanOwned(nil)
	}
	c.UpdatedAt = at
	return nil
}
