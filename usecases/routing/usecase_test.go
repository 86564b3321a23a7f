package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"deskbackend/clients"
	"deskbackend/core"
	"deskbackend/models"
	"deskbackend/services"
	"deskbackend/services/txmanager"
)

// Test helper functions
func createTestConversation(
	id string,
	organizationID models.OrgID,
	status models.ConversationStatus,
) *models.Conversation {
	return &models.Conversation{
		ID:               id,
		OrgID:            organizationID,
		ContactSessionID: core.NewID("cs"),
		Status:           status,
	}
}

func createTestSettings(organizationID models.OrgID) *models.OrganizationSettings {
	return models.DefaultOrganizationSettings(organizationID)
}

type routingMocks struct {
	presence      *services.MockPresenceService
	conversations *services.MockConversationsService
	assignments   *services.MockAssignmentsService
	settings      *services.MockOrgSettingsService
	memberships   *services.MockMembershipsService
	organizations *services.MockOrganizationsService
	notifications *clients.MockNotificationsClient
	txManager     *txmanager.MockTransactionManager
}

func newRoutingMocks() *routingMocks {
	return &routingMocks{
		presence:      &services.MockPresenceService{},
		conversations: &services.MockConversationsService{},
		assignments:   &services.MockAssignmentsService{},
		settings:      &services.MockOrgSettingsService{},
		memberships:   &services.MockMembershipsService{},
		organizations: &services.MockOrganizationsService{},
		notifications: &clients.MockNotificationsClient{},
		txManager:     &txmanager.MockTransactionManager{},
	}
}

func (m *routingMocks) useCase() *RoutingUseCase {
	return NewRoutingUseCase(
		m.presence,
		m.conversations,
		m.assignments,
		m.settings,
		m.memberships,
		m.organizations,
		m.notifications,
		m.txManager,
	)
}

func (m *routingMocks) assertExpectations(t *testing.T) {
	m.presence.AssertExpectations(t)
	m.conversations.AssertExpectations(t)
	m.assignments.AssertExpectations(t)
	m.settings.AssertExpectations(t)
	m.memberships.AssertExpectations(t)
	m.organizations.AssertExpectations(t)
	m.notifications.AssertExpectations(t)
	m.txManager.AssertExpectations(t)
}

// expectCommit wires the full transactional write phase: lock, close prior,
// update conversation, open assignment, bump load.
func (m *routingMocks) expectCommit(
	ctx context.Context,
	conv *models.Conversation,
	supporterID string,
	assignedBy *string,
	priorAssignment *models.ConversationAssignment,
) {
	m.txManager.On("WithTransaction", ctx, mock.AnythingOfType("func(context.Context) error")).Return(nil)
	m.conversations.On("GetConversationByIDForUpdate", ctx, conv.ID, conv.OrgID).
		Return(mo.Some(conv), nil)
	if priorAssignment != nil {
		m.assignments.On("CloseActiveAssignment", ctx, conv.ID, conv.OrgID, models.AssignmentStatusTransferred).
			Return(mo.Some(priorAssignment), nil)
		m.presence.On("DecrementLoad", ctx, priorAssignment.SupporterID, conv.OrgID).Return(nil)
	} else {
		m.assignments.On("CloseActiveAssignment", ctx, conv.ID, conv.OrgID, models.AssignmentStatusTransferred).
			Return(mo.None[*models.ConversationAssignment](), nil)
	}
	m.conversations.On("AssignConversation", ctx, conv.ID, conv.OrgID, supporterID).Return(nil)
	m.assignments.On("OpenAssignment", ctx, conv.ID, supporterID, conv.OrgID, assignedBy).
		Return(&models.ConversationAssignment{
			ID:             core.NewID("ca"),
			ConversationID: conv.ID,
			SupporterID:    supporterID,
			OrgID:          conv.OrgID,
			Status:         models.AssignmentStatusActive,
		}, nil)
	m.presence.On("IncrementLoad", ctx, supporterID, conv.OrgID).Return(nil)
}

func TestAssign_PolicyOutcomes(t *testing.T) {
	ctx := context.Background()
	organizationID := core.NewID("org")
	conversationID := core.NewID("conv")
	conv := createTestConversation(conversationID, organizationID, models.ConversationStatusEscalated)

	t.Run("Conversation not found", func(t *testing.T) {
		m := newRoutingMocks()
		m.conversations.On("GetConversationByID", ctx, conversationID, organizationID).
			Return(mo.None[*models.Conversation](), nil)

		result, err := m.useCase().Assign(ctx, conversationID, organizationID, nil, nil)

		assert.Nil(t, result)
		assert.ErrorIs(t, err, core.ErrNotFound)
		m.assertExpectations(t)
	})

	t.Run("Resolved conversation cannot be assigned", func(t *testing.T) {
		m := newRoutingMocks()
		resolved := createTestConversation(conversationID, organizationID, models.ConversationStatusResolved)
		m.conversations.On("GetConversationByID", ctx, conversationID, organizationID).
			Return(mo.Some(resolved), nil)

		result, err := m.useCase().Assign(ctx, conversationID, organizationID, nil, nil)

		assert.Nil(t, result)
		assert.ErrorIs(t, err, core.ErrConflict)
		m.settings.AssertNotCalled(t, "GetSettingsOrDefaults", mock.Anything, mock.Anything)
		m.assertExpectations(t)
	})

	t.Run("Auto-assign disabled queues the conversation", func(t *testing.T) {
		m := newRoutingMocks()
		settings := createTestSettings(organizationID)
		settings.AutoAssignEnabled = false

		m.conversations.On("GetConversationByID", ctx, conversationID, organizationID).
			Return(mo.Some(conv), nil)
		m.settings.On("GetSettingsOrDefaults", ctx, organizationID).Return(settings, nil)
		m.conversations.On("QueueConversation", ctx, conversationID, organizationID).Return(nil)

		result, err := m.useCase().Assign(ctx, conversationID, organizationID, nil, nil)

		require.NoError(t, err)
		assert.False(t, result.Assigned)
		assert.Equal(t, models.ConversationStatusQueued, result.Status)
		assert.Equal(t, models.QueueReasonAutoAssignDisabled, result.Reason)
		m.assertExpectations(t)
	})

	t.Run("Manual strategy queues the conversation", func(t *testing.T) {
		m := newRoutingMocks()
		settings := createTestSettings(organizationID)
		settings.AutoAssignStrategy = models.AssignStrategyManual

		m.conversations.On("GetConversationByID", ctx, conversationID, organizationID).
			Return(mo.Some(conv), nil)
		m.settings.On("GetSettingsOrDefaults", ctx, organizationID).Return(settings, nil)
		m.conversations.On("QueueConversation", ctx, conversationID, organizationID).Return(nil)

		result, err := m.useCase().Assign(ctx, conversationID, organizationID, nil, nil)

		require.NoError(t, err)
		assert.False(t, result.Assigned)
		assert.Equal(t, models.QueueReasonAutoAssignDisabled, result.Reason)
		m.assertExpectations(t)
	})

	t.Run("No supporters in organization", func(t *testing.T) {
		m := newRoutingMocks()
		m.conversations.On("GetConversationByID", ctx, conversationID, organizationID).
			Return(mo.Some(conv), nil)
		m.settings.On("GetSettingsOrDefaults", ctx, organizationID).
			Return(createTestSettings(organizationID), nil)
		m.memberships.On("GetSupporterPool", ctx, organizationID).Return([]string{}, nil)
		m.conversations.On("QueueConversation", ctx, conversationID, organizationID).Return(nil)

		result, err := m.useCase().Assign(ctx, conversationID, organizationID, nil, nil)

		require.NoError(t, err)
		assert.False(t, result.Assigned)
		assert.Equal(t, models.QueueReasonNoSupportersInOrg, result.Reason)
		m.assertExpectations(t)
	})

	t.Run("Everyone at capacity", func(t *testing.T) {
		m := newRoutingMocks()
		settings := createTestSettings(organizationID)
		settings.MaxConcurrentPerSupporter = 1
		supporterA := core.NewID("u")

		m.conversations.On("GetConversationByID", ctx, conversationID, organizationID).
			Return(mo.Some(conv), nil)
		m.settings.On("GetSettingsOrDefaults", ctx, organizationID).Return(settings, nil)
		m.memberships.On("GetSupporterPool", ctx, organizationID).Return([]string{supporterA}, nil)
		m.presence.On("GetSupporterCandidates", ctx, organizationID, []string{supporterA}).
			Return([]models.SupporterCandidate{
				candidate(supporterA, models.PresenceStatusOnline, 1),
			}, nil)
		m.conversations.On("QueueConversation", ctx, conversationID, organizationID).Return(nil)

		result, err := m.useCase().Assign(ctx, conversationID, organizationID, nil, nil)

		require.NoError(t, err)
		assert.False(t, result.Assigned)
		assert.Equal(t, models.QueueReasonNoCapacity, result.Reason)
		m.assertExpectations(t)
	})
}

func TestAssign_AutoAssignment(t *testing.T) {
	ctx := context.Background()
	organizationID := core.NewID("org")
	conversationID := core.NewID("conv")
	conv := createTestConversation(conversationID, organizationID, models.ConversationStatusEscalated)

	t.Run("Least busy picks the idle supporter", func(t *testing.T) {
		m := newRoutingMocks()
		supporterA := core.NewID("u")
		supporterB := core.NewID("u")

		m.conversations.On("GetConversationByID", ctx, conversationID, organizationID).
			Return(mo.Some(conv), nil)
		m.settings.On("GetSettingsOrDefaults", ctx, organizationID).
			Return(createTestSettings(organizationID), nil)
		m.memberships.On("GetSupporterPool", ctx, organizationID).
			Return([]string{supporterA, supporterB}, nil)
		m.presence.On("GetSupporterCandidates", ctx, organizationID, []string{supporterA, supporterB}).
			Return([]models.SupporterCandidate{
				candidate(supporterA, models.PresenceStatusOnline, 2),
				candidate(supporterB, models.PresenceStatusOnline, 0),
			}, nil)
		m.expectCommit(ctx, conv, supporterB, nil, nil)

		result, err := m.useCase().Assign(ctx, conversationID, organizationID, nil, nil)

		require.NoError(t, err)
		assert.True(t, result.Assigned)
		require.NotNil(t, result.SupporterID)
		assert.Equal(t, supporterB, *result.SupporterID)
		assert.Equal(t, models.AssignmentMethodAuto, result.Method)
		assert.Equal(t, models.ConversationStatusAssigned, result.Status)
		m.assertExpectations(t)
	})

	t.Run("Capacity filter excludes at-cap supporter", func(t *testing.T) {
		m := newRoutingMocks()
		settings := createTestSettings(organizationID)
		settings.MaxConcurrentPerSupporter = 1
		supporterA := core.NewID("u")
		supporterB := core.NewID("u")

		m.conversations.On("GetConversationByID", ctx, conversationID, organizationID).
			Return(mo.Some(conv), nil)
		m.settings.On("GetSettingsOrDefaults", ctx, organizationID).Return(settings, nil)
		m.memberships.On("GetSupporterPool", ctx, organizationID).
			Return([]string{supporterA, supporterB}, nil)
		m.presence.On("GetSupporterCandidates", ctx, organizationID, []string{supporterA, supporterB}).
			Return([]models.SupporterCandidate{
				candidate(supporterA, models.PresenceStatusOnline, 1),
				candidate(supporterB, models.PresenceStatusOnline, 0),
			}, nil)
		m.expectCommit(ctx, conv, supporterB, nil, nil)

		result, err := m.useCase().Assign(ctx, conversationID, organizationID, nil, nil)

		require.NoError(t, err)
		require.NotNil(t, result.SupporterID)
		assert.Equal(t, supporterB, *result.SupporterID)
		m.assertExpectations(t)
	})

	t.Run("Round robin advances past the cursor", func(t *testing.T) {
		m := newRoutingMocks()
		settings := createTestSettings(organizationID)
		settings.AutoAssignStrategy = models.AssignStrategyRoundRobin
		supporterA := core.NewID("u")
		supporterB := core.NewID("u")

		m.conversations.On("GetConversationByID", ctx, conversationID, organizationID).
			Return(mo.Some(conv), nil)
		m.settings.On("GetSettingsOrDefaults", ctx, organizationID).Return(settings, nil)
		m.memberships.On("GetSupporterPool", ctx, organizationID).
			Return([]string{supporterA, supporterB}, nil)
		m.presence.On("GetSupporterCandidates", ctx, organizationID, []string{supporterA, supporterB}).
			Return([]models.SupporterCandidate{
				candidate(supporterA, models.PresenceStatusOnline, 0),
				candidate(supporterB, models.PresenceStatusOnline, 0),
			}, nil)
		m.assignments.On("GetRoundRobinCursor", ctx, organizationID).
			Return(mo.Some(supporterA), nil)
		m.expectCommit(ctx, conv, supporterB, nil, nil)

		result, err := m.useCase().Assign(ctx, conversationID, organizationID, nil, nil)

		require.NoError(t, err)
		require.NotNil(t, result.SupporterID)
		assert.Equal(t, supporterB, *result.SupporterID)
		m.assertExpectations(t)
	})
}

func TestAssign_Fallbacks(t *testing.T) {
	ctx := context.Background()
	organizationID := core.NewID("org")
	conversationID := core.NewID("conv")
	conv := createTestConversation(conversationID, organizationID, models.ConversationStatusEscalated)
	supporterA := core.NewID("u")

	setupNobodyReachable := func(m *routingMocks, settings *models.OrganizationSettings) {
		m.conversations.On("GetConversationByID", ctx, conversationID, organizationID).
			Return(mo.Some(conv), nil)
		m.settings.On("GetSettingsOrDefaults", ctx, organizationID).Return(settings, nil)
		m.memberships.On("GetSupporterPool", ctx, organizationID).Return([]string{supporterA}, nil)
		m.presence.On("GetSupporterCandidates", ctx, organizationID, []string{supporterA}).
			Return([]models.SupporterCandidate{
				candidate(supporterA, models.PresenceStatusOffline, 0),
			}, nil)
	}

	t.Run("Queue fallback parks the conversation", func(t *testing.T) {
		m := newRoutingMocks()
		settings := createTestSettings(organizationID)
		setupNobodyReachable(m, settings)
		m.conversations.On("QueueConversation", ctx, conversationID, organizationID).Return(nil)

		result, err := m.useCase().Assign(ctx, conversationID, organizationID, nil, nil)

		require.NoError(t, err)
		assert.False(t, result.Assigned)
		assert.Equal(t, models.ConversationStatusQueued, result.Status)
		assert.Equal(t, models.QueueReasonNoOnlineSupporter, result.Reason)
		m.assertExpectations(t)
	})

	t.Run("Notify-all fallback queues and broadcasts", func(t *testing.T) {
		m := newRoutingMocks()
		settings := createTestSettings(organizationID)
		settings.FallbackIfNoOnline = models.FallbackModeNotifyAll
		setupNobodyReachable(m, settings)
		m.conversations.On("QueueConversation", ctx, conversationID, organizationID).Return(nil)
		m.notifications.On("BroadcastAssignmentNeeded", ctx, organizationID, []string{supporterA}, conversationID).
			Return(nil)

		result, err := m.useCase().Assign(ctx, conversationID, organizationID, nil, nil)

		require.NoError(t, err)
		assert.False(t, result.Assigned)
		assert.Equal(t, models.QueueReasonNotifyAllSent, result.Reason)
		m.assertExpectations(t)
	})

	t.Run("Notify-all delivery failure does not fail the request", func(t *testing.T) {
		m := newRoutingMocks()
		settings := createTestSettings(organizationID)
		settings.FallbackIfNoOnline = models.FallbackModeNotifyAll
		setupNobodyReachable(m, settings)
		m.conversations.On("QueueConversation", ctx, conversationID, organizationID).Return(nil)
		m.notifications.On("BroadcastAssignmentNeeded", ctx, organizationID, []string{supporterA}, conversationID).
			Return(errors.New("broker unavailable"))

		result, err := m.useCase().Assign(ctx, conversationID, organizationID, nil, nil)

		require.NoError(t, err)
		assert.Equal(t, models.QueueReasonNotifyAllSent, result.Reason)
		m.assertExpectations(t)
	})

	t.Run("Assign-anyway falls back to offline supporter", func(t *testing.T) {
		m := newRoutingMocks()
		settings := createTestSettings(organizationID)
		settings.FallbackIfNoOnline = models.FallbackModeAssignAnyway
		setupNobodyReachable(m, settings)
		m.expectCommit(ctx, conv, supporterA, nil, nil)

		result, err := m.useCase().Assign(ctx, conversationID, organizationID, nil, nil)

		require.NoError(t, err)
		assert.True(t, result.Assigned)
		require.NotNil(t, result.SupporterID)
		assert.Equal(t, supporterA, *result.SupporterID)
		assert.Equal(t, models.AssignmentMethodAutoFallbackOffline, result.Method)
		m.assertExpectations(t)
	})

	t.Run("Assign-anyway with unrecognized strategy queues with no capacity", func(t *testing.T) {
		m := newRoutingMocks()
		settings := createTestSettings(organizationID)
		settings.AutoAssignStrategy = models.AssignStrategy("weighted")
		settings.FallbackIfNoOnline = models.FallbackModeAssignAnyway
		setupNobodyReachable(m, settings)
		m.conversations.On("QueueConversation", ctx, conversationID, organizationID).Return(nil)

		result, err := m.useCase().Assign(ctx, conversationID, organizationID, nil, nil)

		require.NoError(t, err)
		assert.False(t, result.Assigned)
		assert.Equal(t, models.QueueReasonNoCapacity, result.Reason)
		m.assertExpectations(t)
	})
}

func TestAssign_ForcedSupporter(t *testing.T) {
	ctx := context.Background()
	organizationID := core.NewID("org")
	conversationID := core.NewID("conv")
	conv := createTestConversation(conversationID, organizationID, models.ConversationStatusEscalated)
	supporterID := core.NewID("u")
	adminID := core.NewID("u")

	t.Run("Manual override bypasses disabled policy", func(t *testing.T) {
		m := newRoutingMocks()
		m.conversations.On("GetConversationByID", ctx, conversationID, organizationID).
			Return(mo.Some(conv), nil)
		m.memberships.On("IsSupporterMember", ctx, supporterID, organizationID).Return(true, nil)
		m.expectCommit(ctx, conv, supporterID, &adminID, nil)

		result, err := m.useCase().Assign(ctx, conversationID, organizationID, &supporterID, &adminID)

		require.NoError(t, err)
		assert.True(t, result.Assigned)
		require.NotNil(t, result.SupporterID)
		assert.Equal(t, supporterID, *result.SupporterID)
		assert.Equal(t, models.AssignmentMethodManual, result.Method)
		// policy was never consulted
		m.settings.AssertNotCalled(t, "GetSettingsOrDefaults", ctx, organizationID)
		m.assertExpectations(t)
	})

	t.Run("Forced non-member is rejected", func(t *testing.T) {
		m := newRoutingMocks()
		m.conversations.On("GetConversationByID", ctx, conversationID, organizationID).
			Return(mo.Some(conv), nil)
		m.memberships.On("IsSupporterMember", ctx, supporterID, organizationID).Return(false, nil)

		result, err := m.useCase().Assign(ctx, conversationID, organizationID, &supporterID, nil)

		assert.Nil(t, result)
		assert.ErrorIs(t, err, core.ErrInvalidInput)
		m.txManager.AssertNotCalled(t, "WithTransaction", mock.Anything, mock.Anything)
		m.assertExpectations(t)
	})

	t.Run("Transfer closes the prior assignment and adjusts both loads", func(t *testing.T) {
		m := newRoutingMocks()
		priorSupporter := core.NewID("u")
		assignedConv := createTestConversation(conversationID, organizationID, models.ConversationStatusAssigned)
		assignedConv.AssignedSupporterID = &priorSupporter
		prior := &models.ConversationAssignment{
			ID:             core.NewID("ca"),
			ConversationID: conversationID,
			SupporterID:    priorSupporter,
			OrgID:          organizationID,
			Status:         models.AssignmentStatusActive,
		}

		m.conversations.On("GetConversationByID", ctx, conversationID, organizationID).
			Return(mo.Some(assignedConv), nil)
		m.memberships.On("IsSupporterMember", ctx, supporterID, organizationID).Return(true, nil)
		m.expectCommit(ctx, assignedConv, supporterID, &adminID, prior)

		result, err := m.useCase().Assign(ctx, conversationID, organizationID, &supporterID, &adminID)

		require.NoError(t, err)
		assert.True(t, result.Assigned)
		assert.Equal(t, supporterID, *result.SupporterID)
		m.presence.AssertCalled(t, "DecrementLoad", ctx, priorSupporter, organizationID)
		m.presence.AssertCalled(t, "IncrementLoad", ctx, supporterID, organizationID)
		m.assertExpectations(t)
	})
}

func TestAccept(t *testing.T) {
	ctx := context.Background()
	organizationID := core.NewID("org")
	conversationID := core.NewID("conv")
	supporterID := core.NewID("u")

	t.Run("Supporter accepts a queued conversation", func(t *testing.T) {
		m := newRoutingMocks()
		conv := createTestConversation(conversationID, organizationID, models.ConversationStatusQueued)
		m.conversations.On("GetConversationByID", ctx, conversationID, organizationID).
			Return(mo.Some(conv), nil)
		m.memberships.On("IsSupporterMember", ctx, supporterID, organizationID).Return(true, nil)
		m.expectCommit(ctx, conv, supporterID, nil, nil)

		result, err := m.useCase().Accept(ctx, conversationID, organizationID, supporterID)

		require.NoError(t, err)
		assert.True(t, result.Assigned)
		assert.Equal(t, models.AssignmentMethodManual, result.Method)
		m.assertExpectations(t)
	})

	t.Run("Cannot accept a conversation assigned to someone else", func(t *testing.T) {
		m := newRoutingMocks()
		otherSupporter := core.NewID("u")
		conv := createTestConversation(conversationID, organizationID, models.ConversationStatusAssigned)
		conv.AssignedSupporterID = &otherSupporter
		m.conversations.On("GetConversationByID", ctx, conversationID, organizationID).
			Return(mo.Some(conv), nil)

		result, err := m.useCase().Accept(ctx, conversationID, organizationID, supporterID)

		assert.Nil(t, result)
		assert.ErrorIs(t, err, core.ErrConflict)
		m.assertExpectations(t)
	})

	t.Run("Cannot accept a resolved conversation", func(t *testing.T) {
		m := newRoutingMocks()
		conv := createTestConversation(conversationID, organizationID, models.ConversationStatusResolved)
		m.conversations.On("GetConversationByID", ctx, conversationID, organizationID).
			Return(mo.Some(conv), nil)

		result, err := m.useCase().Accept(ctx, conversationID, organizationID, supporterID)

		assert.Nil(t, result)
		assert.ErrorIs(t, err, core.ErrConflict)
		m.assertExpectations(t)
	})
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	organizationID := core.NewID("org")
	conversationID := core.NewID("conv")
	supporterID := core.NewID("u")

	t.Run("Resolves and decrements the assigned supporter", func(t *testing.T) {
		m := newRoutingMocks()
		conv := createTestConversation(conversationID, organizationID, models.ConversationStatusAssigned)
		conv.AssignedSupporterID = &supporterID
		active := &models.ConversationAssignment{
			ID:             core.NewID("ca"),
			ConversationID: conversationID,
			SupporterID:    supporterID,
			OrgID:          organizationID,
			Status:         models.AssignmentStatusActive,
		}

		m.txManager.On("WithTransaction", ctx, mock.AnythingOfType("func(context.Context) error")).Return(nil)
		m.conversations.On("GetConversationByIDForUpdate", ctx, conversationID, organizationID).
			Return(mo.Some(conv), nil)
		m.assignments.On("CloseActiveAssignment", ctx, conversationID, organizationID, models.AssignmentStatusResolved).
			Return(mo.Some(active), nil)
		m.presence.On("DecrementLoad", ctx, supporterID, organizationID).Return(nil)
		m.conversations.On("ResolveConversation", ctx, conversationID, organizationID).Return(true, nil)

		err := m.useCase().Resolve(ctx, conversationID, organizationID)

		require.NoError(t, err)
		m.assertExpectations(t)
	})

	t.Run("Resolving twice is a no-op", func(t *testing.T) {
		m := newRoutingMocks()
		conv := createTestConversation(conversationID, organizationID, models.ConversationStatusResolved)

		m.txManager.On("WithTransaction", ctx, mock.AnythingOfType("func(context.Context) error")).Return(nil)
		m.conversations.On("GetConversationByIDForUpdate", ctx, conversationID, organizationID).
			Return(mo.Some(conv), nil)

		err := m.useCase().Resolve(ctx, conversationID, organizationID)

		require.NoError(t, err)
		m.assignments.AssertNotCalled(t, "CloseActiveAssignment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		m.presence.AssertNotCalled(t, "DecrementLoad", mock.Anything, mock.Anything, mock.Anything)
		m.assertExpectations(t)
	})

	t.Run("Resolving a never-assigned conversation skips load accounting", func(t *testing.T) {
		m := newRoutingMocks()
		conv := createTestConversation(conversationID, organizationID, models.ConversationStatusUnresolved)

		m.txManager.On("WithTransaction", ctx, mock.AnythingOfType("func(context.Context) error")).Return(nil)
		m.conversations.On("GetConversationByIDForUpdate", ctx, conversationID, organizationID).
			Return(mo.Some(conv), nil)
		m.assignments.On("CloseActiveAssignment", ctx, conversationID, organizationID, models.AssignmentStatusResolved).
			Return(mo.None[*models.ConversationAssignment](), nil)
		m.conversations.On("ResolveConversation", ctx, conversationID, organizationID).Return(true, nil)

		err := m.useCase().Resolve(ctx, conversationID, organizationID)

		require.NoError(t, err)
		m.presence.AssertNotCalled(t, "DecrementLoad", mock.Anything, mock.Anything, mock.Anything)
		m.assertExpectations(t)
	})
}

func TestEscalate(t *testing.T) {
	ctx := context.Background()
	organizationID := core.NewID("org")
	conversationID := core.NewID("conv")
	reason := models.EscalationReasonUserRequested

	t.Run("Marks escalated and runs assignment", func(t *testing.T) {
		m := newRoutingMocks()
		conv := createTestConversation(conversationID, organizationID, models.ConversationStatusUnresolved)
		settings := createTestSettings(organizationID)
		settings.AutoAssignEnabled = false

		m.conversations.On("GetConversationByID", ctx, conversationID, organizationID).
			Return(mo.Some(conv), nil)
		m.conversations.On("MarkEscalated", ctx, conversationID, organizationID, &reason).
			Return(true, nil)
		m.settings.On("GetSettingsOrDefaults", ctx, organizationID).Return(settings, nil)
		m.conversations.On("QueueConversation", ctx, conversationID, organizationID).Return(nil)

		result, err := m.useCase().Escalate(ctx, conversationID, organizationID, &reason)

		require.NoError(t, err)
		assert.False(t, result.Assigned)
		assert.Equal(t, models.QueueReasonAutoAssignDisabled, result.Reason)
		m.assertExpectations(t)
	})

	t.Run("Already assigned conversation reports current supporter", func(t *testing.T) {
		m := newRoutingMocks()
		supporterID := core.NewID("u")
		conv := createTestConversation(conversationID, organizationID, models.ConversationStatusAssigned)
		conv.AssignedSupporterID = &supporterID

		m.conversations.On("GetConversationByID", ctx, conversationID, organizationID).
			Return(mo.Some(conv), nil)

		result, err := m.useCase().Escalate(ctx, conversationID, organizationID, &reason)

		require.NoError(t, err)
		assert.True(t, result.Assigned)
		assert.Equal(t, supporterID, *result.SupporterID)
		m.conversations.AssertNotCalled(t, "MarkEscalated", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		m.assertExpectations(t)
	})

	t.Run("Resolved conversation cannot be escalated", func(t *testing.T) {
		m := newRoutingMocks()
		conv := createTestConversation(conversationID, organizationID, models.ConversationStatusResolved)

		m.conversations.On("GetConversationByID", ctx, conversationID, organizationID).
			Return(mo.Some(conv), nil)

		result, err := m.useCase().Escalate(ctx, conversationID, organizationID, &reason)

		assert.Nil(t, result)
		assert.ErrorIs(t, err, core.ErrConflict)
		m.assertExpectations(t)
	})
}

func TestProcessQueuedConversations(t *testing.T) {
	ctx := context.Background()

	t.Run("Skips organizations with auto-assign disabled", func(t *testing.T) {
		m := newRoutingMocks()
		org := &models.Organization{ID: core.NewID("org")}
		settings := createTestSettings(org.ID)
		settings.AutoAssignEnabled = false

		m.organizations.On("GetAllOrganizations", ctx).Return([]*models.Organization{org}, nil)
		m.settings.On("GetSettingsOrDefaults", ctx, org.ID).Return(settings, nil)

		err := m.useCase().ProcessQueuedConversations(ctx)

		require.NoError(t, err)
		m.conversations.AssertNotCalled(t, "GetConversationsByStatus", mock.Anything, mock.Anything, mock.Anything)
		m.assertExpectations(t)
	})

	t.Run("Stops draining an org after the first non-assignment", func(t *testing.T) {
		m := newRoutingMocks()
		org := &models.Organization{ID: core.NewID("org")}
		settings := createTestSettings(org.ID)
		convA := createTestConversation(core.NewID("conv"), org.ID, models.ConversationStatusQueued)
		convB := createTestConversation(core.NewID("conv"), org.ID, models.ConversationStatusQueued)

		m.organizations.On("GetAllOrganizations", ctx).Return([]*models.Organization{org}, nil)
		m.settings.On("GetSettingsOrDefaults", ctx, org.ID).Return(settings, nil)
		m.conversations.On("GetConversationsByStatus", ctx, org.ID, models.ConversationStatusQueued).
			Return([]*models.Conversation{convA, convB}, nil)

		// first queued conversation finds no supporters and is re-queued;
		// the second must not be attempted
		m.conversations.On("GetConversationByID", ctx, convA.ID, org.ID).
			Return(mo.Some(convA), nil)
		m.memberships.On("GetSupporterPool", ctx, org.ID).Return([]string{}, nil)
		m.conversations.On("QueueConversation", ctx, convA.ID, org.ID).Return(nil)

		err := m.useCase().ProcessQueuedConversations(ctx)

		require.NoError(t, err)
		m.conversations.AssertNotCalled(t, "GetConversationByID", ctx, convB.ID, org.ID)
		m.assertExpectations(t)
	})
}

func TestRecordBotTurn(t *testing.T) {
	ctx := context.Background()
	organizationID := core.NewID("org")
	conversationID := core.NewID("conv")

	t.Run("Counts a turn below the limit without escalating", func(t *testing.T) {
		m := newRoutingMocks()
		conv := createTestConversation(conversationID, organizationID, models.ConversationStatusUnresolved)
		m.conversations.On("GetConversationByID", ctx, conversationID, organizationID).
			Return(mo.Some(conv), nil)
		m.conversations.On("IncrementBotTurns", ctx, conversationID, organizationID).
			Return(models.MaxBotTurns-1, nil)

		turns, result, err := m.useCase().RecordBotTurn(ctx, conversationID, organizationID)

		require.NoError(t, err)
		assert.Equal(t, models.MaxBotTurns-1, turns)
		assert.Nil(t, result)
		m.settings.AssertNotCalled(t, "GetSettingsOrDefaults", mock.Anything, mock.Anything)
		m.assertExpectations(t)
	})

	t.Run("Hitting the limit escalates with max_bot_turns", func(t *testing.T) {
		m := newRoutingMocks()
		conv := createTestConversation(conversationID, organizationID, models.ConversationStatusUnresolved)
		settings := createTestSettings(organizationID)
		settings.AutoAssignEnabled = false

		m.conversations.On("GetConversationByID", ctx, conversationID, organizationID).
			Return(mo.Some(conv), nil)
		m.conversations.On("IncrementBotTurns", ctx, conversationID, organizationID).
			Return(models.MaxBotTurns, nil)
		reason := models.EscalationReasonMaxBotTurns
		m.conversations.On("MarkEscalated", ctx, conversationID, organizationID, &reason).
			Return(true, nil)
		m.settings.On("GetSettingsOrDefaults", ctx, organizationID).Return(settings, nil)
		m.conversations.On("QueueConversation", ctx, conversationID, organizationID).Return(nil)

		turns, result, err := m.useCase().RecordBotTurn(ctx, conversationID, organizationID)

		require.NoError(t, err)
		assert.Equal(t, models.MaxBotTurns, turns)
		require.NotNil(t, result)
		assert.False(t, result.Assigned)
		assert.Equal(t, models.QueueReasonAutoAssignDisabled, result.Reason)
		m.assertExpectations(t)
	})

	t.Run("Escalated conversation stops counting", func(t *testing.T) {
		m := newRoutingMocks()
		conv := createTestConversation(conversationID, organizationID, models.ConversationStatusEscalated)
		conv.BotTurnsCount = 4
		m.conversations.On("GetConversationByID", ctx, conversationID, organizationID).
			Return(mo.Some(conv), nil)

		turns, result, err := m.useCase().RecordBotTurn(ctx, conversationID, organizationID)

		require.NoError(t, err)
		assert.Equal(t, 4, turns)
		assert.Nil(t, result)
		m.conversations.AssertNotCalled(t, "IncrementBotTurns", mock.Anything, mock.Anything, mock.Anything)
		m.assertExpectations(t)
	})

	t.Run("Resolved conversation is a conflict", func(t *testing.T) {
		m := newRoutingMocks()
		conv := createTestConversation(conversationID, organizationID, models.ConversationStatusResolved)
		m.conversations.On("GetConversationByID", ctx, conversationID, organizationID).
			Return(mo.Some(conv), nil)

		_, _, err := m.useCase().RecordBotTurn(ctx, conversationID, organizationID)

		assert.ErrorIs(t, err, core.ErrConflict)
		m.assertExpectations(t)
	})
}
