package services

import (
	"context"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"deskbackend/models"
)

// MockPresenceService is a mock implementation of PresenceService
type MockPresenceService struct {
	mock.Mock
}

func (m *MockPresenceService) Heartbeat(
	ctx context.Context,
	supporterID string,
	organizationID models.OrgID,
	status models.PresenceStatus,
) (*models.SupporterPresence, error) {
	args := m.Called(ctx, supporterID, organizationID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SupporterPresence), args.Error(1)
}

func (m *MockPresenceService) SetStatus(
	ctx context.Context,
	supporterID string,
	organizationID models.OrgID,
	status models.PresenceStatus,
) (*models.SupporterPresence, error) {
	args := m.Called(ctx, supporterID, organizationID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SupporterPresence), args.Error(1)
}

func (m *MockPresenceService) MarkOffline(
	ctx context.Context,
	supporterID string,
	organizationID models.OrgID,
) error {
	args := m.Called(ctx, supporterID, organizationID)
	return args.Error(0)
}

func (m *MockPresenceService) IncrementLoad(
	ctx context.Context,
	supporterID string,
	organizationID models.OrgID,
) error {
	args := m.Called(ctx, supporterID, organizationID)
	return args.Error(0)
}

func (m *MockPresenceService) DecrementLoad(
	ctx context.Context,
	supporterID string,
	organizationID models.OrgID,
) error {
	args := m.Called(ctx, supporterID, organizationID)
	return args.Error(0)
}

func (m *MockPresenceService) GetSupporterCandidates(
	ctx context.Context,
	organizationID models.OrgID,
	supporterIDs []string,
) ([]models.SupporterCandidate, error) {
	args := m.Called(ctx, organizationID, supporterIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SupporterCandidate), args.Error(1)
}

func (m *MockPresenceService) GetOrganizationCandidates(
	ctx context.Context,
	organizationID models.OrgID,
) ([]models.SupporterCandidate, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SupporterCandidate), args.Error(1)
}

func (m *MockPresenceService) MarkStalePresenceOffline(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockConversationsService is a mock implementation of ConversationsService
type MockConversationsService struct {
	mock.Mock
}

func (m *MockConversationsService) CreateConversation(
	ctx context.Context,
	organizationID models.OrgID,
	contactSessionID string,
) (*models.Conversation, error) {
	args := m.Called(ctx, organizationID, contactSessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockConversationsService) GetConversationByID(
	ctx context.Context,
	id string,
	organizationID models.OrgID,
) (mo.Option[*models.Conversation], error) {
	args := m.Called(ctx, id, organizationID)
	return args.Get(0).(mo.Option[*models.Conversation]), args.Error(1)
}

func (m *MockConversationsService) GetConversationByIDForUpdate(
	ctx context.Context,
	id string,
	organizationID models.OrgID,
) (mo.Option[*models.Conversation], error) {
	args := m.Called(ctx, id, organizationID)
	return args.Get(0).(mo.Option[*models.Conversation]), args.Error(1)
}

func (m *MockConversationsService) GetConversationsByStatus(
	ctx context.Context,
	organizationID models.OrgID,
	status models.ConversationStatus,
) ([]*models.Conversation, error) {
	args := m.Called(ctx, organizationID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Conversation), args.Error(1)
}

func (m *MockConversationsService) QueueConversation(
	ctx context.Context,
	id string,
	organizationID models.OrgID,
) error {
	args := m.Called(ctx, id, organizationID)
	return args.Error(0)
}

func (m *MockConversationsService) AssignConversation(
	ctx context.Context,
	id string,
	organizationID models.OrgID,
	supporterID string,
) error {
	args := m.Called(ctx, id, organizationID, supporterID)
	return args.Error(0)
}

func (m *MockConversationsService) MarkEscalated(
	ctx context.Context,
	id string,
	organizationID models.OrgID,
	reason *models.EscalationReason,
) (bool, error) {
	args := m.Called(ctx, id, organizationID, reason)
	return args.Bool(0), args.Error(1)
}

func (m *MockConversationsService) ResolveConversation(
	ctx context.Context,
	id string,
	organizationID models.OrgID,
) (bool, error) {
	args := m.Called(ctx, id, organizationID)
	return args.Bool(0), args.Error(1)
}

func (m *MockConversationsService) IncrementBotTurns(
	ctx context.Context,
	id string,
	organizationID models.OrgID,
) (int, error) {
	args := m.Called(ctx, id, organizationID)
	return args.Int(0), args.Error(1)
}

// MockAssignmentsService is a mock implementation of AssignmentsService
type MockAssignmentsService struct {
	mock.Mock
}

func (m *MockAssignmentsService) OpenAssignment(
	ctx context.Context,
	conversationID, supporterID string,
	organizationID models.OrgID,
	assignedBy *string,
) (*models.ConversationAssignment, error) {
	args := m.Called(ctx, conversationID, supporterID, organizationID, assignedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConversationAssignment), args.Error(1)
}

func (m *MockAssignmentsService) CloseActiveAssignment(
	ctx context.Context,
	conversationID string,
	organizationID models.OrgID,
	closeStatus models.AssignmentStatus,
) (mo.Option[*models.ConversationAssignment], error) {
	args := m.Called(ctx, conversationID, organizationID, closeStatus)
	return args.Get(0).(mo.Option[*models.ConversationAssignment]), args.Error(1)
}

func (m *MockAssignmentsService) GetActiveAssignmentByConversation(
	ctx context.Context,
	conversationID string,
	organizationID models.OrgID,
) (mo.Option[*models.ConversationAssignment], error) {
	args := m.Called(ctx, conversationID, organizationID)
	return args.Get(0).(mo.Option[*models.ConversationAssignment]), args.Error(1)
}

func (m *MockAssignmentsService) GetRoundRobinCursor(
	ctx context.Context,
	organizationID models.OrgID,
) (mo.Option[string], error) {
	args := m.Called(ctx, organizationID)
	return args.Get(0).(mo.Option[string]), args.Error(1)
}

func (m *MockAssignmentsService) GetAssignmentHistoryByConversation(
	ctx context.Context,
	conversationID string,
	organizationID models.OrgID,
) ([]*models.ConversationAssignment, error) {
	args := m.Called(ctx, conversationID, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ConversationAssignment), args.Error(1)
}

// MockOrgSettingsService is a mock implementation of OrgSettingsService
type MockOrgSettingsService struct {
	mock.Mock
}

func (m *MockOrgSettingsService) GetSettingsOrDefaults(
	ctx context.Context,
	organizationID models.OrgID,
) (*models.OrganizationSettings, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrganizationSettings), args.Error(1)
}

func (m *MockOrgSettingsService) UpsertSettings(
	ctx context.Context,
	settings *models.OrganizationSettings,
) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

// MockMembershipsService is a mock implementation of MembershipsService
type MockMembershipsService struct {
	mock.Mock
}

func (m *MockMembershipsService) GetSupporterPool(
	ctx context.Context,
	organizationID models.OrgID,
) ([]string, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockMembershipsService) IsSupporterMember(
	ctx context.Context,
	userID string,
	organizationID models.OrgID,
) (bool, error) {
	args := m.Called(ctx, userID, organizationID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMembershipsService) CreateMembership(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	role models.MembershipRole,
) (*models.OrganizationMembership, error) {
	args := m.Called(ctx, organizationID, userID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrganizationMembership), args.Error(1)
}

// MockOrganizationsService is a mock implementation of OrganizationsService
type MockOrganizationsService struct {
	mock.Mock
}

func (m *MockOrganizationsService) CreateOrganization(ctx context.Context) (*models.Organization, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

func (m *MockOrganizationsService) GetOrganizationByID(
	ctx context.Context,
	id models.OrgID,
) (mo.Option[*models.Organization], error) {
	args := m.Called(ctx, id)
	return args.Get(0).(mo.Option[*models.Organization]), args.Error(1)
}

func (m *MockOrganizationsService) GetAllOrganizations(ctx context.Context) ([]*models.Organization, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Organization), args.Error(1)
}

func (m *MockOrganizationsService) GetOrganizationBySecretKey(
	ctx context.Context,
	secretKey string,
) (mo.Option[*models.Organization], error) {
	args := m.Called(ctx, secretKey)
	return args.Get(0).(mo.Option[*models.Organization]), args.Error(1)
}

func (m *MockOrganizationsService) GenerateSecretKey(
	ctx context.Context,
	organizationID models.OrgID,
) (string, error) {
	args := m.Called(ctx, organizationID)
	return args.String(0), args.Error(1)
}
