package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"deskbackend/appctx"
	"deskbackend/middleware"
	"deskbackend/models"
	"deskbackend/models/api"
	"deskbackend/services"
)

type PresenceHTTPHandler struct {
	presenceService services.PresenceService
}

func NewPresenceHTTPHandler(presenceService services.PresenceService) *PresenceHTTPHandler {
	return &PresenceHTTPHandler{
		presenceService: presenceService,
	}
}

type HeartbeatRequest struct {
	SupporterID string `json:"supporter_id" validate:"required"`
	Status      string `json:"status"       validate:"required"`
}

type SetStatusRequest struct {
	SupporterID string `json:"supporter_id" validate:"required"`
	Status      string `json:"status"       validate:"required"`
}

type MarkOfflineRequest struct {
	SupporterID string `json:"supporter_id" validate:"required"`
}

func (h *PresenceHTTPHandler) HandleHeartbeat(w http.ResponseWriter, r *http.Request) {
	org, ok := appctx.GetOrganization(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req HeartbeatRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	status := models.PresenceStatus(req.Status)
	if !models.IsValidPresenceStatus(status) {
		http.Error(w, "invalid presence status", http.StatusBadRequest)
		return
	}

	presence, err := h.presenceService.Heartbeat(r.Context(), req.SupporterID, org.ID, status)
	if err != nil {
		log.Printf("❌ Failed to process heartbeat: %v", err)
		http.Error(w, "failed to process heartbeat", http.StatusInternalServerError)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, presence)
}

func (h *PresenceHTTPHandler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	org, ok := appctx.GetOrganization(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req SetStatusRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	status := models.PresenceStatus(req.Status)
	if !models.IsValidPresenceStatus(status) {
		http.Error(w, "invalid presence status", http.StatusBadRequest)
		return
	}

	presence, err := h.presenceService.SetStatus(r.Context(), req.SupporterID, org.ID, status)
	if err != nil {
		log.Printf("❌ Failed to set presence status: %v", err)
		http.Error(w, "failed to set presence status", http.StatusInternalServerError)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, presence)
}

func (h *PresenceHTTPHandler) HandleMarkOffline(w http.ResponseWriter, r *http.Request) {
	org, ok := appctx.GetOrganization(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req MarkOfflineRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}

	// advisory only, clients fire this on disconnect and may already be gone
	if err := h.presenceService.MarkOffline(r.Context(), req.SupporterID, org.ID); err != nil {
		log.Printf("⚠️ Failed to mark supporter offline: %v", err)
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *PresenceHTTPHandler) HandleGetPresence(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 Presence snapshot request received from %s", r.RemoteAddr)

	org, ok := appctx.GetOrganization(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	candidates, err := h.presenceService.GetOrganizationCandidates(r.Context(), org.ID)
	if err != nil {
		log.Printf("❌ Failed to get organization presence: %v", err)
		http.Error(w, "failed to get presence", http.StatusInternalServerError)
		return
	}

	apiPresence := make([]*api.SupporterPresenceModel, 0, len(candidates))
	for _, candidate := range candidates {
		apiPresence = append(apiPresence, api.DomainCandidateToAPIPresence(candidate))
	}

	h.writeJSONResponse(w, http.StatusOK, apiPresence)
}

func (h *PresenceHTTPHandler) SetupEndpoints(router *mux.Router, authMiddleware *middleware.OrgAuthMiddleware) {
	log.Printf("🚀 Registering presence endpoints")

	router.HandleFunc("/v1/presence/heartbeat", authMiddleware.WithAuth(h.HandleHeartbeat)).Methods("POST")
	router.HandleFunc("/v1/presence/status", authMiddleware.WithAuth(h.HandleSetStatus)).Methods("POST")
	router.HandleFunc("/v1/presence/offline", authMiddleware.WithAuth(h.HandleMarkOffline)).Methods("POST")
	router.HandleFunc("/v1/presence", authMiddleware.WithAuth(h.HandleGetPresence)).Methods("GET")

	log.Printf("✅ Presence endpoints registered")
}

func (h *PresenceHTTPHandler) decodeRequest(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		log.Printf("❌ Failed to parse request body: %v", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(req); err != nil {
		log.Printf("❌ Request validation failed: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *PresenceHTTPHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("❌ Failed to encode JSON response: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
