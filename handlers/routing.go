package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"deskbackend/appctx"
	"deskbackend/core"
	"deskbackend/middleware"
	"deskbackend/models"
	"deskbackend/models/api"
	"deskbackend/services"
	"deskbackend/usecases/routing"
)

var validate = validator.New()

type RoutingHTTPHandler struct {
	routingUseCase       *routing.RoutingUseCase
	conversationsService services.ConversationsService
	assignmentsService   services.AssignmentsService
}

func NewRoutingHTTPHandler(
	routingUseCase *routing.RoutingUseCase,
	conversationsService services.ConversationsService,
	assignmentsService services.AssignmentsService,
) *RoutingHTTPHandler {
	return &RoutingHTTPHandler{
		routingUseCase:       routingUseCase,
		conversationsService: conversationsService,
		assignmentsService:   assignmentsService,
	}
}

type AssignConversationRequest struct {
	ConversationID    string  `json:"conversation_id"    validate:"required"`
	OrganizationID    string  `json:"organization_id"    validate:"required"`
	ForcedSupporterID *string `json:"forced_supporter_id,omitempty"`
	RequestedByID     *string `json:"requested_by_id,omitempty"`
}

type EscalateConversationRequest struct {
	ConversationID string  `json:"conversation_id" validate:"required"`
	OrganizationID string  `json:"organization_id" validate:"required"`
	Reason         *string `json:"reason,omitempty"`
}

type ResolveConversationRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
	OrganizationID string `json:"organization_id" validate:"required"`
}

type BotTurnRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
	OrganizationID string `json:"organization_id" validate:"required"`
}

// BotTurnResponse reports the updated bot reply count and, when the turn
// budget ran out, the escalation's routing outcome.
type BotTurnResponse struct {
	BotTurns  int                        `json:"bot_turns"`
	Escalated bool                       `json:"escalated"`
	Result    *api.AssignmentResultModel `json:"result,omitempty"`
}

// ConversationAssignmentsResponse is the assignment audit trail for one
// conversation: the currently active row (if any) plus full history.
type ConversationAssignmentsResponse struct {
	ActiveAssignment *api.AssignmentModel   `json:"active_assignment,omitempty"`
	History          []*api.AssignmentModel `json:"history"`
}

type AcceptConversationRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
	OrganizationID string `json:"organization_id" validate:"required"`
	SupporterID    string `json:"supporter_id"    validate:"required"`
}

func (h *RoutingHTTPHandler) HandleAssignConversation(w http.ResponseWriter, r *http.Request) {
	log.Printf("📨 Assign conversation request received from %s", r.RemoteAddr)

	var req AssignConversationRequest
	org, ok := h.decodeAndAuthorize(w, r, &req, func() string { return req.OrganizationID })
	if !ok {
		return
	}

	result, err := h.routingUseCase.Assign(
		r.Context(), req.ConversationID, org.ID, req.ForcedSupporterID, req.RequestedByID)
	if err != nil {
		h.writeRoutingError(w, err, "failed to assign conversation")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, api.DomainAssignmentResultToAPIResult(result))
}

func (h *RoutingHTTPHandler) HandleEscalateConversation(w http.ResponseWriter, r *http.Request) {
	log.Printf("📨 Escalate conversation request received from %s", r.RemoteAddr)

	var req EscalateConversationRequest
	org, ok := h.decodeAndAuthorize(w, r, &req, func() string { return req.OrganizationID })
	if !ok {
		return
	}

	var reason *models.EscalationReason
	if req.Reason != nil {
		escalationReason := models.EscalationReason(*req.Reason)
		if !models.IsValidEscalationReason(escalationReason) {
			http.Error(w, "invalid escalation reason", http.StatusBadRequest)
			return
		}
		reason = &escalationReason
	}

	result, err := h.routingUseCase.Escalate(r.Context(), req.ConversationID, org.ID, reason)
	if err != nil {
		h.writeRoutingError(w, err, "failed to escalate conversation")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, api.DomainAssignmentResultToAPIResult(result))
}

func (h *RoutingHTTPHandler) HandleResolveConversation(w http.ResponseWriter, r *http.Request) {
	log.Printf("📨 Resolve conversation request received from %s", r.RemoteAddr)

	var req ResolveConversationRequest
	org, ok := h.decodeAndAuthorize(w, r, &req, func() string { return req.OrganizationID })
	if !ok {
		return
	}

	if err := h.routingUseCase.Resolve(r.Context(), req.ConversationID, org.ID); err != nil {
		h.writeRoutingError(w, err, "failed to resolve conversation")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "resolved"})
}

func (h *RoutingHTTPHandler) HandleAcceptConversation(w http.ResponseWriter, r *http.Request) {
	log.Printf("📨 Accept conversation request received from %s", r.RemoteAddr)

	var req AcceptConversationRequest
	org, ok := h.decodeAndAuthorize(w, r, &req, func() string { return req.OrganizationID })
	if !ok {
		return
	}

	result, err := h.routingUseCase.Accept(r.Context(), req.ConversationID, org.ID, req.SupporterID)
	if err != nil {
		h.writeRoutingError(w, err, "failed to accept conversation")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, api.DomainAssignmentResultToAPIResult(result))
}

func (h *RoutingHTTPHandler) HandleRecordBotTurn(w http.ResponseWriter, r *http.Request) {
	log.Printf("📨 Bot turn request received from %s", r.RemoteAddr)

	var req BotTurnRequest
	org, ok := h.decodeAndAuthorize(w, r, &req, func() string { return req.OrganizationID })
	if !ok {
		return
	}

	turns, result, err := h.routingUseCase.RecordBotTurn(r.Context(), req.ConversationID, org.ID)
	if err != nil {
		h.writeRoutingError(w, err, "failed to record bot turn")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, BotTurnResponse{
		BotTurns:  turns,
		Escalated: result != nil,
		Result:    api.DomainAssignmentResultToAPIResult(result),
	})
}

func (h *RoutingHTTPHandler) HandleGetConversationAssignments(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 Assignment history request received from %s", r.RemoteAddr)

	org, ok := appctx.GetOrganization(r.Context())
	if !ok {
		log.Printf("❌ Organization not found in context")
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	conversationID := r.URL.Query().Get("conversation_id")
	if !core.IsValidULID(conversationID) {
		http.Error(w, "conversation_id must be a valid ULID", http.StatusBadRequest)
		return
	}

	maybeActive, err := h.assignmentsService.GetActiveAssignmentByConversation(r.Context(), conversationID, org.ID)
	if err != nil {
		log.Printf("❌ Failed to get active assignment: %v", err)
		http.Error(w, "failed to get assignment history", http.StatusInternalServerError)
		return
	}
	history, err := h.assignmentsService.GetAssignmentHistoryByConversation(r.Context(), conversationID, org.ID)
	if err != nil {
		log.Printf("❌ Failed to get assignment history: %v", err)
		http.Error(w, "failed to get assignment history", http.StatusInternalServerError)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, ConversationAssignmentsResponse{
		ActiveAssignment: api.DomainAssignmentToAPIAssignment(maybeActive.OrElse(nil)),
		History:          api.DomainAssignmentsToAPIAssignments(history),
	})
}

func (h *RoutingHTTPHandler) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 List conversations request received from %s", r.RemoteAddr)

	org, ok := appctx.GetOrganization(r.Context())
	if !ok {
		log.Printf("❌ Organization not found in context")
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	status := models.ConversationStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.ConversationStatusQueued
	}
	if !models.IsValidConversationStatus(status) {
		http.Error(w, "invalid status filter", http.StatusBadRequest)
		return
	}

	conversations, err := h.conversationsService.GetConversationsByStatus(r.Context(), org.ID, status)
	if err != nil {
		log.Printf("❌ Failed to list conversations: %v", err)
		http.Error(w, "failed to list conversations", http.StatusInternalServerError)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, api.DomainConversationsToAPIConversations(conversations))
}

func (h *RoutingHTTPHandler) SetupEndpoints(router *mux.Router, authMiddleware *middleware.OrgAuthMiddleware) {
	log.Printf("🚀 Registering conversation routing endpoints")

	router.HandleFunc("/v1/conversations/assign", authMiddleware.WithAuth(h.HandleAssignConversation)).
		Methods("POST")
	router.HandleFunc("/v1/conversations/escalate", authMiddleware.WithAuth(h.HandleEscalateConversation)).
		Methods("POST")
	router.HandleFunc("/v1/conversations/resolve", authMiddleware.WithAuth(h.HandleResolveConversation)).
		Methods("POST")
	router.HandleFunc("/v1/conversations/accept", authMiddleware.WithAuth(h.HandleAcceptConversation)).
		Methods("POST")
	router.HandleFunc("/v1/conversations/bot-turn", authMiddleware.WithAuth(h.HandleRecordBotTurn)).
		Methods("POST")
	router.HandleFunc("/v1/conversations/assignments", authMiddleware.WithAuth(h.HandleGetConversationAssignments)).
		Methods("GET")
	router.HandleFunc("/v1/conversations", authMiddleware.WithAuth(h.HandleListConversations)).
		Methods("GET")

	log.Printf("✅ Conversation routing endpoints registered")
}

// decodeAndAuthorize parses the body, validates required fields and checks the
// body's organization against the authenticated one. A mismatch is a 403.
func (h *RoutingHTTPHandler) decodeAndAuthorize(
	w http.ResponseWriter,
	r *http.Request,
	req any,
	orgIDFromBody func() string,
) (*models.Organization, bool) {
	org, ok := appctx.GetOrganization(r.Context())
	if !ok {
		log.Printf("❌ Organization not found in context")
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return nil, false
	}

	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		log.Printf("❌ Failed to parse request body: %v", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return nil, false
	}
	if err := validate.Struct(req); err != nil {
		log.Printf("❌ Request validation failed: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	if bodyOrgID := orgIDFromBody(); bodyOrgID != org.ID {
		log.Printf("❌ Organization mismatch: body %s vs authenticated %s", bodyOrgID, org.ID)
		http.Error(w, "organization mismatch", http.StatusForbidden)
		return nil, false
	}
	return org, true
}

func (h *RoutingHTTPHandler) writeRoutingError(w http.ResponseWriter, err error, message string) {
	log.Printf("❌ %s: %v", message, err)
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case core.IsNotFoundError(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, core.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, message, http.StatusInternalServerError)
	}
}

func (h *RoutingHTTPHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("❌ Failed to encode JSON response: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
