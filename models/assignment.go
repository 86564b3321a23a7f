package models

import (
	"time"
)

type AssignmentStatus string

const (
	AssignmentStatusActive      AssignmentStatus = "active"
	AssignmentStatusResolved    AssignmentStatus = "resolved"
	AssignmentStatusTransferred AssignmentStatus = "transferred"
)

// ConversationAssignment is an append-only history record binding a supporter
// to a conversation. At most one active row may exist per conversation.
type ConversationAssignment struct {
	ID             string           `json:"id"              db:"id"`
	ConversationID string           `json:"conversation_id" db:"conversation_id"`
	SupporterID    string           `json:"supporter_id"    db:"supporter_id"`
	OrgID          OrgID            `json:"organization_id" db:"organization_id"`
	AssignedBy     *string          `json:"assigned_by"     db:"assigned_by"`
	Status         AssignmentStatus `json:"status"          db:"status"`
	AssignedAt     time.Time        `json:"assigned_at"     db:"assigned_at"`
	ResolvedAt     *time.Time       `json:"resolved_at"     db:"resolved_at"`
}

type AssignmentMethod string

const (
	AssignmentMethodManual              AssignmentMethod = "manual"
	AssignmentMethodAuto                AssignmentMethod = "auto"
	AssignmentMethodAutoFallbackOffline AssignmentMethod = "auto_fallback_offline"
)

type QueueReason string

const (
	QueueReasonAutoAssignDisabled QueueReason = "auto_assign_disabled"
	QueueReasonNoSupportersInOrg  QueueReason = "no_supporters_in_org"
	QueueReasonNoCapacity         QueueReason = "no_capacity"
	QueueReasonNoOnlineSupporter  QueueReason = "no_online_supporter"
	QueueReasonNotifyAllSent      QueueReason = "notify_all_sent"
)

// AssignmentResult is the outcome of a routing decision. Either Assigned is
// true and SupporterID/Method are set, or the conversation was queued and
// Reason says why.
type AssignmentResult struct {
	Assigned    bool               `json:"assigned"`
	SupporterID *string            `json:"supporter_id,omitempty"`
	Status      ConversationStatus `json:"status,omitempty"`
	Method      AssignmentMethod   `json:"method,omitempty"`
	Reason      QueueReason        `json:"reason,omitempty"`
}
