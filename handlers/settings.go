package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"deskbackend/appctx"
	"deskbackend/middleware"
	"deskbackend/models"
	"deskbackend/services"
)

type SettingsHTTPHandler struct {
	settingsService services.OrgSettingsService
}

func NewSettingsHTTPHandler(settingsService services.OrgSettingsService) *SettingsHTTPHandler {
	return &SettingsHTTPHandler{
		settingsService: settingsService,
	}
}

type UpdateSettingsRequest struct {
	AutoAssignEnabled         bool   `json:"auto_assign_enabled"`
	AutoAssignStrategy        string `json:"auto_assign_strategy"         validate:"required"`
	RequireOnlineForAuto      bool   `json:"require_online_for_auto"`
	FallbackIfNoOnline        string `json:"fallback_if_no_online"        validate:"required"`
	MaxConcurrentPerSupporter int    `json:"max_concurrent_per_supporter" validate:"required,min=1"`
	SupporterScopeMode        string `json:"supporter_scope_mode"         validate:"required"`
}

func (h *SettingsHTTPHandler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 Get settings request received from %s", r.RemoteAddr)

	org, ok := appctx.GetOrganization(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	settings, err := h.settingsService.GetSettingsOrDefaults(r.Context(), org.ID)
	if err != nil {
		log.Printf("❌ Failed to get settings: %v", err)
		http.Error(w, "failed to get settings", http.StatusInternalServerError)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, settings)
}

func (h *SettingsHTTPHandler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	log.Printf("📨 Update settings request received from %s", r.RemoteAddr)

	org, ok := appctx.GetOrganization(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ Failed to parse request body: %v", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		log.Printf("❌ Request validation failed: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	settings := &models.OrganizationSettings{
		OrgID:                     org.ID,
		AutoAssignEnabled:         req.AutoAssignEnabled,
		AutoAssignStrategy:        models.AssignStrategy(req.AutoAssignStrategy),
		RequireOnlineForAuto:      req.RequireOnlineForAuto,
		FallbackIfNoOnline:        models.FallbackMode(req.FallbackIfNoOnline),
		MaxConcurrentPerSupporter: req.MaxConcurrentPerSupporter,
		SupporterScopeMode:        models.SupporterScopeMode(req.SupporterScopeMode),
	}
	if err := settings.Validate(); err != nil {
		log.Printf("❌ Invalid settings: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.settingsService.UpsertSettings(r.Context(), settings); err != nil {
		log.Printf("❌ Failed to update settings: %v", err)
		http.Error(w, "failed to update settings", http.StatusInternalServerError)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, settings)
}

func (h *SettingsHTTPHandler) SetupEndpoints(router *mux.Router, authMiddleware *middleware.OrgAuthMiddleware) {
	log.Printf("🚀 Registering settings endpoints")

	router.HandleFunc("/v1/settings", authMiddleware.WithAuth(h.HandleGetSettings)).Methods("GET")
	router.HandleFunc("/v1/settings", authMiddleware.WithAuth(h.HandleUpdateSettings)).Methods("PUT")

	log.Printf("✅ Settings endpoints registered")
}

func (h *SettingsHTTPHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("❌ Failed to encode JSON response: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
