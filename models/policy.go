package models

import (
	"fmt"
	"time"
)

type AssignStrategy string

const (
	AssignStrategyLeastBusy   AssignStrategy = "least_busy"
	AssignStrategyRoundRobin  AssignStrategy = "round_robin"
	AssignStrategyOnlineFirst AssignStrategy = "online_first"
	AssignStrategyManual      AssignStrategy = "manual"
)

type FallbackMode string

const (
	FallbackModeQueue        FallbackMode = "queue"
	FallbackModeNotifyAll    FallbackMode = "notify_all"
	FallbackModeAssignAnyway FallbackMode = "assign_anyway"
)

type SupporterScopeMode string

const (
	SupporterScopeAssignedOnly SupporterScopeMode = "assigned_only"
	SupporterScopeAllEscalated SupporterScopeMode = "all_escalated"
	SupporterScopeTeamPool     SupporterScopeMode = "team_pool"
)

// OrganizationSettings is the per-tenant assignment policy. It is owned by
// admins through the settings surface and read-only to the scheduler; a
// slightly stale read is acceptable for one assignment decision.
type OrganizationSettings struct {
	OrgID                     OrgID              `json:"organization_id"              db:"organization_id"`
	AutoAssignEnabled         bool               `json:"auto_assign_enabled"          db:"auto_assign_enabled"`
	AutoAssignStrategy        AssignStrategy     `json:"auto_assign_strategy"         db:"auto_assign_strategy"`
	RequireOnlineForAuto      bool               `json:"require_online_for_auto"      db:"require_online_for_auto"`
	FallbackIfNoOnline        FallbackMode       `json:"fallback_if_no_online"        db:"fallback_if_no_online"`
	MaxConcurrentPerSupporter int                `json:"max_concurrent_per_supporter" db:"max_concurrent_per_supporter"`
	SupporterScopeMode        SupporterScopeMode `json:"supporter_scope_mode"         db:"supporter_scope_mode"`
	CreatedAt                 time.Time          `json:"created_at"                   db:"created_at"`
	UpdatedAt                 time.Time          `json:"updated_at"                   db:"updated_at"`
}

const DefaultMaxConcurrentPerSupporter = 5

// DefaultOrganizationSettings returns the policy applied before an admin has
// saved anything for the org.
func DefaultOrganizationSettings(orgID OrgID) *OrganizationSettings {
	return &OrganizationSettings{
		OrgID:                     orgID,
		AutoAssignEnabled:         true,
		AutoAssignStrategy:        AssignStrategyLeastBusy,
		RequireOnlineForAuto:      true,
		FallbackIfNoOnline:        FallbackModeQueue,
		MaxConcurrentPerSupporter: DefaultMaxConcurrentPerSupporter,
		SupporterScopeMode:        SupporterScopeAllEscalated,
	}
}

// Validate checks the enum fields and the concurrency cap.
func (s *OrganizationSettings) Validate() error {
	switch s.AutoAssignStrategy {
	case AssignStrategyLeastBusy, AssignStrategyRoundRobin, AssignStrategyOnlineFirst, AssignStrategyManual:
	default:
		return fmt.Errorf("invalid auto_assign_strategy: %s", s.AutoAssignStrategy)
	}
	switch s.FallbackIfNoOnline {
	case FallbackModeQueue, FallbackModeNotifyAll, FallbackModeAssignAnyway:
	default:
		return fmt.Errorf("invalid fallback_if_no_online: %s", s.FallbackIfNoOnline)
	}
	switch s.SupporterScopeMode {
	case SupporterScopeAssignedOnly, SupporterScopeAllEscalated, SupporterScopeTeamPool:
	default:
		return fmt.Errorf("invalid supporter_scope_mode: %s", s.SupporterScopeMode)
	}
	if s.MaxConcurrentPerSupporter < 1 {
		return fmt.Errorf("max_concurrent_per_supporter must be >= 1, got %d", s.MaxConcurrentPerSupporter)
	}
	return nil
}
