package api

import (
	"time"
)

// ConversationModel represents the conversation data returned by the API
type ConversationModel struct {
	ID                  string    `json:"id"`
	OrganizationID      string    `json:"organization_id"`
	ContactSessionID    string    `json:"contact_session_id"`
	Status              string    `json:"status"`
	AssignedSupporterID *string   `json:"assigned_supporter_id,omitempty"`
	EscalationReason    *string   `json:"escalation_reason,omitempty"`
	BotTurnsCount       int       `json:"bot_turns_count"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// SupporterPresenceModel represents one supporter's presence as returned by
// the API. Status carries the effective status after the staleness check, not
// the raw stored value.
type SupporterPresenceModel struct {
	SupporterID             string    `json:"supporter_id"`
	Status                  string    `json:"status"`
	ActiveConversationCount int       `json:"active_conversation_count"`
	LastHeartbeat           time.Time `json:"last_heartbeat"`
}

// AssignmentResultModel is the response body of the assign endpoint
type AssignmentResultModel struct {
	Assigned    bool    `json:"assigned"`
	SupporterID *string `json:"supporter_id,omitempty"`
	Status      string  `json:"status,omitempty"`
	Method      string  `json:"method,omitempty"`
	Reason      string  `json:"reason,omitempty"`
}

// AssignmentModel represents one assignment history record as returned by the API
type AssignmentModel struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SupporterID    string     `json:"supporter_id"`
	OrganizationID string     `json:"organization_id"`
	AssignedBy     *string    `json:"assigned_by,omitempty"`
	Status         string     `json:"status"`
	AssignedAt     time.Time  `json:"assigned_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}
