package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"deskbackend/appctx"
	"deskbackend/core"
	"deskbackend/models"
	"deskbackend/services"
)

// OrgAuthMiddleware authenticates requests with the organization's secret key
// presented as a bearer token. Every authenticated request carries its
// organization in the context.
type OrgAuthMiddleware struct {
	organizationsService services.OrganizationsService
}

// NewOrgAuthMiddleware creates a new authentication middleware instance
func NewOrgAuthMiddleware(organizationsService services.OrganizationsService) *OrgAuthMiddleware {
	return &OrgAuthMiddleware{
		organizationsService: organizationsService,
	}
}

// WithAuth wraps an HTTP handler with secret-key authentication
func (m *OrgAuthMiddleware) WithAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("🔐 Authentication middleware processing request from %s", r.RemoteAddr)

		// Check if we're in testing mode
		if os.Getenv("TESTING_MODE") == "true" {
			log.Printf("🧪 Testing mode enabled - skipping secret key validation")
			testOrg := &models.Organization{
				ID:        core.NewID("org"),
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}

			log.Printf("✅ Test organization created: %s", testOrg.ID)
			ctx := appctx.SetOrganization(r.Context(), testOrg)
			r = r.WithContext(ctx)

			next(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			log.Printf("❌ Missing Authorization header")
			m.writeErrorResponse(w, "missing authorization header", http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			log.Printf("❌ Invalid Authorization header format")
			m.writeErrorResponse(w, "invalid authorization header format", http.StatusUnauthorized)
			return
		}
		secretKey := strings.TrimPrefix(authHeader, "Bearer ")
		if secretKey == "" {
			log.Printf("❌ Empty bearer token")
			m.writeErrorResponse(w, "empty bearer token", http.StatusUnauthorized)
			return
		}

		maybeOrg, err := m.organizationsService.GetOrganizationBySecretKey(r.Context(), secretKey)
		if err != nil {
			log.Printf("❌ Failed to look up organization by secret key: %v", err)
			m.writeErrorResponse(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if !maybeOrg.IsPresent() {
			log.Printf("❌ Invalid secret key")
			m.writeErrorResponse(w, "invalid secret key", http.StatusUnauthorized)
			return
		}
		org := maybeOrg.MustGet()

		log.Printf("✅ Organization authenticated successfully: %s", org.ID)
		ctx := appctx.SetOrganization(r.Context(), org)
		r = r.WithContext(ctx)

		next(w, r)
	}
}

// writeErrorResponse writes a standardized error response
func (m *OrgAuthMiddleware) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := map[string]string{"error": message}
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		log.Printf("❌ Failed to encode error response: %v", err)
	}
}
