package models

import (
	"time"
)

type ConversationStatus string

const (
	ConversationStatusUnresolved ConversationStatus = "unresolved"
	ConversationStatusEscalated  ConversationStatus = "escalated"
	ConversationStatusQueued     ConversationStatus = "queued"
	ConversationStatusAssigned   ConversationStatus = "assigned"
	ConversationStatusResolved   ConversationStatus = "resolved"
)

// MaxBotTurns is how many bot replies a conversation gets before it is
// escalated to a human with reason max_bot_turns.
const MaxBotTurns = 10

type EscalationReason string

const (
	EscalationReasonUserRequested EscalationReason = "user_requested"
	EscalationReasonBotHandoff    EscalationReason = "bot_handoff"
	EscalationReasonMaxBotTurns   EscalationReason = "max_bot_turns"
)

// IsValidEscalationReason reports whether r is one of the known reasons.
func IsValidEscalationReason(r EscalationReason) bool {
	switch r {
	case EscalationReasonUserRequested, EscalationReasonBotHandoff, EscalationReasonMaxBotTurns:
		return true
	}
	return false
}

type Conversation struct {
	ID                  string             `json:"id"                    db:"id"`
	OrgID               OrgID              `json:"organization_id"       db:"organization_id"`
	ContactSessionID    string             `json:"contact_session_id"    db:"contact_session_id"`
	Status              ConversationStatus `json:"status"                db:"status"`
	AssignedSupporterID *string            `json:"assigned_supporter_id" db:"assigned_supporter_id"`
	EscalationReason    *EscalationReason  `json:"escalation_reason"     db:"escalation_reason"`
	BotTurnsCount       int                `json:"bot_turns_count"       db:"bot_turns_count"`
	CreatedAt           time.Time          `json:"created_at"            db:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"            db:"updated_at"`
}

// CanTransitionTo encodes the conversation lifecycle: resolved is terminal,
// resolve is reachable from every other state, and escalate/queue/assign may
// move between each other freely (assigned to assigned is a transfer).
func (s ConversationStatus) CanTransitionTo(next ConversationStatus) bool {
	if s == ConversationStatusResolved {
		return false
	}
	switch next {
	case ConversationStatusEscalated,
		ConversationStatusQueued,
		ConversationStatusAssigned,
		ConversationStatusResolved:
		return true
	}
	return false
}

// IsAwaitingAssignment reports whether the conversation is in a state the
// coordinator may (re)assign from. Both escalated and queued conversations are
// valid inputs to assignment.
func (c *Conversation) IsAwaitingAssignment() bool {
	return c.Status == ConversationStatusEscalated || c.Status == ConversationStatusQueued
}

// IsValidConversationStatus reports whether s is one of the known statuses.
func IsValidConversationStatus(s ConversationStatus) bool {
	switch s {
	case ConversationStatusUnresolved,
		ConversationStatusEscalated,
		ConversationStatusQueued,
		ConversationStatusAssigned,
		ConversationStatusResolved:
		return true
	}
	return false
}
