package testutils

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	"deskbackend/appctx"
	"deskbackend/config"
	"deskbackend/core"
	"deskbackend/db"
	"deskbackend/models"
)

// LoadTestConfig loads configuration for tests from environment variables
func LoadTestConfig() (*config.AppConfig, error) {
	// Try to load environment variables from various possible locations
	_ = godotenv.Load("../.env.test") // From services/ directory
	_ = godotenv.Load(".env.test")    // From root directory
	_ = godotenv.Load()               // Default .env file

	databaseURL := os.Getenv("DB_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DB_URL is not set")
	}

	databaseSchema := os.Getenv("DB_SCHEMA")
	if databaseSchema == "" {
		return nil, fmt.Errorf("DB_SCHEMA is not set")
	}

	return &config.AppConfig{
		DatabaseURL:    databaseURL,
		DatabaseSchema: databaseSchema,
	}, nil
}

// CreateTestOrganization creates an organization with a unique ID
func CreateTestOrganization(t *testing.T, organizationsRepo *db.PostgresOrganizationsRepository) *models.Organization {
	org := &models.Organization{ID: core.NewID("org")}
	err := organizationsRepo.CreateOrganization(context.Background(), org)
	require.NoError(t, err, "Failed to create test organization")
	return org
}

// CreateTestSupporter creates a supporter-role membership for a fresh user ID
func CreateTestSupporter(
	t *testing.T,
	membershipsRepo *db.PostgresMembershipsRepository,
	organizationID models.OrgID,
) *models.OrganizationMembership {
	membership := &models.OrganizationMembership{
		ID:     core.NewID("mem"),
		OrgID:  organizationID,
		UserID: core.NewID("u"),
		Role:   models.MembershipRoleSupporter,
	}
	err := membershipsRepo.CreateMembership(context.Background(), membership)
	require.NoError(t, err, "Failed to create test supporter membership")
	return membership
}

// CreateTestConversation creates an escalated conversation ready for assignment
func CreateTestConversation(
	t *testing.T,
	conversationsRepo *db.PostgresConversationsRepository,
	organizationID models.OrgID,
) *models.Conversation {
	conversation := &models.Conversation{
		ID:               core.NewID("conv"),
		OrgID:            organizationID,
		ContactSessionID: "cs-" + uuid.New().String(),
		Status:           models.ConversationStatusEscalated,
	}
	err := conversationsRepo.CreateConversation(context.Background(), conversation)
	require.NoError(t, err, "Failed to create test conversation")
	return conversation
}

// CreateTestContext creates a context with the given organization set for testing
func CreateTestContext(org *models.Organization) context.Context {
	ctx := context.Background()
	return appctx.SetOrganization(ctx, org)
}
