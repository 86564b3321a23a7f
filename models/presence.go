package models

import (
	"time"
)

type PresenceStatus string

const (
	PresenceStatusOnline  PresenceStatus = "online"
	PresenceStatusAway    PresenceStatus = "away"
	PresenceStatusBusy    PresenceStatus = "busy"
	PresenceStatusOffline PresenceStatus = "offline"
)

// IsValidPresenceStatus reports whether s is one of the known statuses.
func IsValidPresenceStatus(s PresenceStatus) bool {
	switch s {
	case PresenceStatusOnline, PresenceStatusAway, PresenceStatusBusy, PresenceStatusOffline:
		return true
	}
	return false
}

// SupporterPresence is one row per (supporter, organization). Rows are never
// hard-deleted; a row whose heartbeat has gone stale is read as offline.
type SupporterPresence struct {
	ID                      string         `json:"id"                        db:"id"`
	SupporterID             string         `json:"supporter_id"              db:"supporter_id"`
	OrgID                   OrgID          `json:"organization_id"           db:"organization_id"`
	Status                  PresenceStatus `json:"status"                    db:"status"`
	ActiveConversationCount int            `json:"active_conversation_count" db:"active_conversation_count"`
	LastHeartbeat           time.Time      `json:"last_heartbeat"            db:"last_heartbeat"`
	CreatedAt               time.Time      `json:"created_at"                db:"created_at"`
	UpdatedAt               time.Time      `json:"updated_at"                db:"updated_at"`
}

// SupporterCandidate is the scheduler's view of one supporter: presence
// resolved to an effective status plus current load. Supporters without a
// presence row appear here as offline with zero load.
type SupporterCandidate struct {
	SupporterID             string         `json:"supporter_id"`
	Status                  PresenceStatus `json:"status"`
	ActiveConversationCount int            `json:"active_conversation_count"`
	LastHeartbeat           time.Time      `json:"last_heartbeat"`
}

// IsReachable reports whether the candidate can be expected to notice a new
// assignment. Away supporters still count as reachable; busy and offline do
// not.
func (c SupporterCandidate) IsReachable() bool {
	return c.Status == PresenceStatusOnline || c.Status == PresenceStatusAway
}
