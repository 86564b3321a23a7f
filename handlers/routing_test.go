package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"deskbackend/appctx"
	"deskbackend/clients"
	"deskbackend/core"
	"deskbackend/models"
	"deskbackend/models/api"
	"deskbackend/services"
	"deskbackend/services/txmanager"
	"deskbackend/usecases/routing"
)

type handlerMocks struct {
	presence      *services.MockPresenceService
	conversations *services.MockConversationsService
	assignments   *services.MockAssignmentsService
	settings      *services.MockOrgSettingsService
	memberships   *services.MockMembershipsService
	organizations *services.MockOrganizationsService
	notifications *clients.MockNotificationsClient
	txManager     *txmanager.MockTransactionManager
}

func newHandlerMocks() *handlerMocks {
	return &handlerMocks{
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

func (m *handlerMocks) routingHandler() *RoutingHTTPHandler {
	useCase := routing.NewRoutingUseCase(
		m.presence,
		m.conversations,
		m.assignments,
		m.settings,
		m.memberships,
		m.organizations,
		m.notifications,
		m.txManager,
	)
	return NewRoutingHTTPHandler(useCase, m.conversations, m.assignments)
}

func authenticatedRequest(t *testing.T, method, target string, body any, org *models.Organization) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if org != nil {
		req = req.WithContext(appctx.SetOrganization(req.Context(), org))
	}
	return req
}

func TestHandleAssignConversation(t *testing.T) {
	org := &models.Organization{ID: core.NewID("org")}
	conversationID := core.NewID("conv")

	t.Run("Unauthenticated request is rejected", func(t *testing.T) {
		m := newHandlerMocks()
		req := authenticatedRequest(t, http.MethodPost, "/v1/conversations/assign", AssignConversationRequest{
			ConversationID: conversationID,
			OrganizationID: org.ID,
		}, nil)
		rec := httptest.NewRecorder()

		m.routingHandler().HandleAssignConversation(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Missing conversation_id is a 400", func(t *testing.T) {
		m := newHandlerMocks()
		req := authenticatedRequest(t, http.MethodPost, "/v1/conversations/assign", AssignConversationRequest{
			OrganizationID: org.ID,
		}, org)
		rec := httptest.NewRecorder()

		m.routingHandler().HandleAssignConversation(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Organization mismatch is a 403", func(t *testing.T) {
		m := newHandlerMocks()
		req := authenticatedRequest(t, http.MethodPost, "/v1/conversations/assign", AssignConversationRequest{
			ConversationID: conversationID,
			OrganizationID: core.NewID("org"),
		}, org)
		rec := httptest.NewRecorder()

		m.routingHandler().HandleAssignConversation(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("Unknown conversation is a 404", func(t *testing.T) {
		m := newHandlerMocks()
		m.conversations.On("GetConversationByID", mock.Anything, conversationID, org.ID).
			Return(mo.None[*models.Conversation](), nil)
		req := authenticatedRequest(t, http.MethodPost, "/v1/conversations/assign", AssignConversationRequest{
			ConversationID: conversationID,
			OrganizationID: org.ID,
		}, org)
		rec := httptest.NewRecorder()

		m.routingHandler().HandleAssignConversation(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Queued policy outcome is a 200", func(t *testing.T) {
		m := newHandlerMocks()
		conv := &models.Conversation{
			ID:     conversationID,
			OrgID:  org.ID,
			Status: models.ConversationStatusEscalated,
		}
		settings := models.DefaultOrganizationSettings(org.ID)
		settings.AutoAssignEnabled = false

		m.conversations.On("GetConversationByID", mock.Anything, conversationID, org.ID).
			Return(mo.Some(conv), nil)
		m.settings.On("GetSettingsOrDefaults", mock.Anything, org.ID).Return(settings, nil)
		m.conversations.On("QueueConversation", mock.Anything, conversationID, org.ID).Return(nil)

		req := authenticatedRequest(t, http.MethodPost, "/v1/conversations/assign", AssignConversationRequest{
			ConversationID: conversationID,
			OrganizationID: org.ID,
		}, org)
		rec := httptest.NewRecorder()

		m.routingHandler().HandleAssignConversation(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var result api.AssignmentResultModel
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
		assert.False(t, result.Assigned)
		assert.Equal(t, string(models.QueueReasonAutoAssignDisabled), result.Reason)
		assert.Equal(t, string(models.ConversationStatusQueued), result.Status)
	})
}

func TestHandleAcceptConversation(t *testing.T) {
	org := &models.Organization{ID: core.NewID("org")}
	conversationID := core.NewID("conv")
	supporterID := core.NewID("u")

	t.Run("Accept of a conversation owned by someone else is a 409", func(t *testing.T) {
		m := newHandlerMocks()
		otherSupporter := core.NewID("u")
		conv := &models.Conversation{
			ID:                  conversationID,
			OrgID:               org.ID,
			Status:              models.ConversationStatusAssigned,
			AssignedSupporterID: &otherSupporter,
		}
		m.conversations.On("GetConversationByID", mock.Anything, conversationID, org.ID).
			Return(mo.Some(conv), nil)

		req := authenticatedRequest(t, http.MethodPost, "/v1/conversations/accept", AcceptConversationRequest{
			ConversationID: conversationID,
			OrganizationID: org.ID,
			SupporterID:    supporterID,
		}, org)
		rec := httptest.NewRecorder()

		m.routingHandler().HandleAcceptConversation(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestHandleListConversations(t *testing.T) {
	org := &models.Organization{ID: core.NewID("org")}

	t.Run("Defaults to queued conversations", func(t *testing.T) {
		m := newHandlerMocks()
		m.conversations.On("GetConversationsByStatus", mock.Anything, org.ID, models.ConversationStatusQueued).
			Return([]*models.Conversation{}, nil)

		req := authenticatedRequest(t, http.MethodGet, "/v1/conversations", nil, org)
		rec := httptest.NewRecorder()

		m.routingHandler().HandleListConversations(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		m.conversations.AssertExpectations(t)
	})

	t.Run("Invalid status filter is a 400", func(t *testing.T) {
		m := newHandlerMocks()
		req := authenticatedRequest(t, http.MethodGet, "/v1/conversations?status=bogus", nil, org)
		rec := httptest.NewRecorder()

		m.routingHandler().HandleListConversations(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleHeartbeat(t *testing.T) {
	org := &models.Organization{ID: core.NewID("org")}
	supporterID := core.NewID("u")

	t.Run("Valid heartbeat updates presence", func(t *testing.T) {
		mockPresence := &services.MockPresenceService{}
		presence := &models.SupporterPresence{
			SupporterID: supporterID,
			OrgID:       org.ID,
			Status:      models.PresenceStatusOnline,
		}
		mockPresence.On("Heartbeat", mock.Anything, supporterID, org.ID, models.PresenceStatusOnline).
			Return(presence, nil)
		handler := NewPresenceHTTPHandler(mockPresence)

		req := authenticatedRequest(t, http.MethodPost, "/v1/presence/heartbeat", HeartbeatRequest{
			SupporterID: supporterID,
			Status:      "online",
		}, org)
		rec := httptest.NewRecorder()

		handler.HandleHeartbeat(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		mockPresence.AssertExpectations(t)
	})

	t.Run("Unknown presence status is a 400", func(t *testing.T) {
		handler := NewPresenceHTTPHandler(&services.MockPresenceService{})

		req := authenticatedRequest(t, http.MethodPost, "/v1/presence/heartbeat", HeartbeatRequest{
			SupporterID: supporterID,
			Status:      "sleeping",
		}, org)
		rec := httptest.NewRecorder()

		handler.HandleHeartbeat(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleGetConversationAssignments(t *testing.T) {
	org := &models.Organization{ID: core.NewID("org")}
	conversationID := core.NewID("conv")

	t.Run("Returns active assignment and history", func(t *testing.T) {
		m := newHandlerMocks()
		supporterID := core.NewID("u")
		active := &models.ConversationAssignment{
			ID:             core.NewID("asg"),
			ConversationID: conversationID,
			SupporterID:    supporterID,
			OrgID:          org.ID,
			Status:         models.AssignmentStatusActive,
		}
		closed := &models.ConversationAssignment{
			ID:             core.NewID("asg"),
			ConversationID: conversationID,
			SupporterID:    core.NewID("u"),
			OrgID:          org.ID,
			Status:         models.AssignmentStatusTransferred,
		}
		m.assignments.On("GetActiveAssignmentByConversation", mock.Anything, conversationID, org.ID).
			Return(mo.Some(active), nil)
		m.assignments.On("GetAssignmentHistoryByConversation", mock.Anything, conversationID, org.ID).
			Return([]*models.ConversationAssignment{closed, active}, nil)

		req := authenticatedRequest(t, http.MethodGet,
			"/v1/conversations/assignments?conversation_id="+conversationID, nil, org)
		rec := httptest.NewRecorder()

		m.routingHandler().HandleGetConversationAssignments(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp ConversationAssignmentsResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.NotNil(t, resp.ActiveAssignment)
		assert.Equal(t, active.ID, resp.ActiveAssignment.ID)
		assert.Equal(t, supporterID, resp.ActiveAssignment.SupporterID)
		require.Len(t, resp.History, 2)
		assert.Equal(t, string(models.AssignmentStatusTransferred), resp.History[0].Status)
		m.assignments.AssertExpectations(t)
	})

	t.Run("Never-assigned conversation has empty audit trail", func(t *testing.T) {
		m := newHandlerMocks()
		m.assignments.On("GetActiveAssignmentByConversation", mock.Anything, conversationID, org.ID).
			Return(mo.None[*models.ConversationAssignment](), nil)
		m.assignments.On("GetAssignmentHistoryByConversation", mock.Anything, conversationID, org.ID).
			Return([]*models.ConversationAssignment{}, nil)

		req := authenticatedRequest(t, http.MethodGet,
			"/v1/conversations/assignments?conversation_id="+conversationID, nil, org)
		rec := httptest.NewRecorder()

		m.routingHandler().HandleGetConversationAssignments(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp ConversationAssignmentsResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Nil(t, resp.ActiveAssignment)
		assert.Empty(t, resp.History)
	})

	t.Run("Malformed conversation_id is a 400", func(t *testing.T) {
		m := newHandlerMocks()
		req := authenticatedRequest(t, http.MethodGet,
			"/v1/conversations/assignments?conversation_id=not-a-ulid", nil, org)
		rec := httptest.NewRecorder()

		m.routingHandler().HandleGetConversationAssignments(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleRecordBotTurn(t *testing.T) {
	org := &models.Organization{ID: core.NewID("org")}
	conversationID := core.NewID("conv")

	t.Run("Counts a turn below the limit", func(t *testing.T) {
		m := newHandlerMocks()
		conv := &models.Conversation{
			ID:     conversationID,
			OrgID:  org.ID,
			Status: models.ConversationStatusUnresolved,
		}
		m.conversations.On("GetConversationByID", mock.Anything, conversationID, org.ID).
			Return(mo.Some(conv), nil)
		m.conversations.On("IncrementBotTurns", mock.Anything, conversationID, org.ID).
			Return(3, nil)

		req := authenticatedRequest(t, http.MethodPost, "/v1/conversations/bot-turn", BotTurnRequest{
			ConversationID: conversationID,
			OrganizationID: org.ID,
		}, org)
		rec := httptest.NewRecorder()

		m.routingHandler().HandleRecordBotTurn(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp BotTurnResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, 3, resp.BotTurns)
		assert.False(t, resp.Escalated)
		assert.Nil(t, resp.Result)
	})

	t.Run("Resolved conversation is a 409", func(t *testing.T) {
		m := newHandlerMocks()
		conv := &models.Conversation{
			ID:     conversationID,
			OrgID:  org.ID,
			Status: models.ConversationStatusResolved,
		}
		m.conversations.On("GetConversationByID", mock.Anything, conversationID, org.ID).
			Return(mo.Some(conv), nil)

		req := authenticatedRequest(t, http.MethodPost, "/v1/conversations/bot-turn", BotTurnRequest{
			ConversationID: conversationID,
			OrganizationID: org.ID,
		}, org)
		rec := httptest.NewRecorder()

		m.routingHandler().HandleRecordBotTurn(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}
