package services

import (
	"context"

	"github.com/samber/mo"

	"deskbackend/models"
)

// TransactionManager runs a function within a database transaction carried on
// the context. Repositories joining that context share the transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// PresenceService defines the interface for supporter presence operations
type PresenceService interface {
	Heartbeat(
		ctx context.Context,
		supporterID string,
		organizationID models.OrgID,
		status models.PresenceStatus,
	) (*models.SupporterPresence, error)
	SetStatus(
		ctx context.Context,
		supporterID string,
		organizationID models.OrgID,
		status models.PresenceStatus,
	) (*models.SupporterPresence, error)
	MarkOffline(ctx context.Context, supporterID string, organizationID models.OrgID) error
	IncrementLoad(ctx context.Context, supporterID string, organizationID models.OrgID) error
	DecrementLoad(ctx context.Context, supporterID string, organizationID models.OrgID) error
	GetSupporterCandidates(
		ctx context.Context,
		organizationID models.OrgID,
		supporterIDs []string,
	) ([]models.SupporterCandidate, error)
	GetOrganizationCandidates(
		ctx context.Context,
		organizationID models.OrgID,
	) ([]models.SupporterCandidate, error)
	MarkStalePresenceOffline(ctx context.Context) (int64, error)
}

// ConversationsService defines the interface for conversation lifecycle operations
type ConversationsService interface {
	CreateConversation(
		ctx context.Context,
		organizationID models.OrgID,
		contactSessionID string,
	) (*models.Conversation, error)
	GetConversationByID(
		ctx context.Context,
		id string,
		organizationID models.OrgID,
	) (mo.Option[*models.Conversation], error)
	GetConversationByIDForUpdate(
		ctx context.Context,
		id string,
		organizationID models.OrgID,
	) (mo.Option[*models.Conversation], error)
	GetConversationsByStatus(
		ctx context.Context,
		organizationID models.OrgID,
		status models.ConversationStatus,
	) ([]*models.Conversation, error)
	QueueConversation(ctx context.Context, id string, organizationID models.OrgID) error
	AssignConversation(
		ctx context.Context,
		id string,
		organizationID models.OrgID,
		supporterID string,
	) error
	MarkEscalated(
		ctx context.Context,
		id string,
		organizationID models.OrgID,
		reason *models.EscalationReason,
	) (bool, error)
	ResolveConversation(ctx context.Context, id string, organizationID models.OrgID) (bool, error)
	IncrementBotTurns(ctx context.Context, id string, organizationID models.OrgID) (int, error)
}

// AssignmentsService defines the interface for assignment history operations
type AssignmentsService interface {
	OpenAssignment(
		ctx context.Context,
		conversationID, supporterID string,
		organizationID models.OrgID,
		assignedBy *string,
	) (*models.ConversationAssignment, error)
	CloseActiveAssignment(
		ctx context.Context,
		conversationID string,
		organizationID models.OrgID,
		closeStatus models.AssignmentStatus,
	) (mo.Option[*models.ConversationAssignment], error)
	GetActiveAssignmentByConversation(
		ctx context.Context,
		conversationID string,
		organizationID models.OrgID,
	) (mo.Option[*models.ConversationAssignment], error)
	GetRoundRobinCursor(ctx context.Context, organizationID models.OrgID) (mo.Option[string], error)
	GetAssignmentHistoryByConversation(
		ctx context.Context,
		conversationID string,
		organizationID models.OrgID,
	) ([]*models.ConversationAssignment, error)
}

// OrgSettingsService defines the interface for assignment policy configuration
type OrgSettingsService interface {
	GetSettingsOrDefaults(
		ctx context.Context,
		organizationID models.OrgID,
	) (*models.OrganizationSettings, error)
	UpsertSettings(ctx context.Context, settings *models.OrganizationSettings) error
}

// MembershipsService defines the interface for the membership directory
type MembershipsService interface {
	GetSupporterPool(ctx context.Context, organizationID models.OrgID) ([]string, error)
	IsSupporterMember(ctx context.Context, userID string, organizationID models.OrgID) (bool, error)
	CreateMembership(
		ctx context.Context,
		organizationID models.OrgID,
		userID string,
		role models.MembershipRole,
	) (*models.OrganizationMembership, error)
}

// OrganizationsService defines the interface for organization-related operations
type OrganizationsService interface {
	CreateOrganization(ctx context.Context) (*models.Organization, error)
	GetOrganizationByID(ctx context.Context, id models.OrgID) (mo.Option[*models.Organization], error)
	GetAllOrganizations(ctx context.Context) ([]*models.Organization, error)
	GetOrganizationBySecretKey(ctx context.Context, secretKey string) (mo.Option[*models.Organization], error)
	GenerateSecretKey(ctx context.Context, organizationID models.OrgID) (string, error)
}
