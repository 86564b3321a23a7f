package organizations

import (
	"context"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskbackend/core"
	"deskbackend/db"
	"deskbackend/testutils"
)

func setupTestService(t *testing.T) (*OrganizationsService, *sqlx.DB, string, func()) {
	cfg, err := testutils.LoadTestConfig()
	require.NoError(t, err)

	dbConn, err := db.NewConnection(cfg.DatabaseURL)
	require.NoError(t, err, "Failed to create database connection")

	organizationsRepo := db.NewPostgresOrganizationsRepository(dbConn, cfg.DatabaseSchema)
	organizationsService := NewOrganizationsService(organizationsRepo)

	cleanup := func() {
		dbConn.Close()
	}

	return organizationsService, dbConn, cfg.DatabaseSchema, cleanup
}

func cleanupOrganization(t *testing.T, dbConn *sqlx.DB, databaseSchema, organizationID string) {
	_, err := dbConn.Exec("DELETE FROM "+databaseSchema+".organizations WHERE id = $1", organizationID)
	if err != nil {
		t.Logf("⚠️ Failed to cleanup organization %s: %v", organizationID, err)
	} else {
		t.Logf("🧹 Cleaned up organization: %s", organizationID)
	}
}

func TestOrganizationsService(t *testing.T) {
	organizationsService, dbConn, databaseSchema, cleanup := setupTestService(t)
	defer cleanup()

	t.Run("CreateOrganization", func(t *testing.T) {
		organization, err := organizationsService.CreateOrganization(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, organization)
		assert.True(t, core.IsValidULID(organization.ID), "Organization ID should be a valid ULID")
		assert.True(t, strings.HasPrefix(organization.ID, "org_"), "Organization ID should have org_ prefix")
		assert.NotZero(t, organization.CreatedAt)

		defer cleanupOrganization(t, dbConn, databaseSchema, organization.ID)
	})

	t.Run("GenerateSecretKey", func(t *testing.T) {
		t.Run("MintsAndStoresKey", func(t *testing.T) {
			organization, err := organizationsService.CreateOrganization(context.Background())
			require.NoError(t, err, "Failed to create test organization")
			defer cleanupOrganization(t, dbConn, databaseSchema, organization.ID)

			secretKey, err := organizationsService.GenerateSecretKey(context.Background(), organization.ID)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(secretKey, "sk_"), "Secret key should have sk_ prefix")

			// The freshly minted key must authenticate the organization
			orgOpt, err := organizationsService.GetOrganizationBySecretKey(context.Background(), secretKey)
			require.NoError(t, err)
			require.True(t, orgOpt.IsPresent(), "Organization should be found by its secret key")
			assert.Equal(t, organization.ID, orgOpt.MustGet().ID)
		})

		t.Run("RotationInvalidatesOldKey", func(t *testing.T) {
			organization, err := organizationsService.CreateOrganization(context.Background())
			require.NoError(t, err, "Failed to create test organization")
			defer cleanupOrganization(t, dbConn, databaseSchema, organization.ID)

			firstKey, err := organizationsService.GenerateSecretKey(context.Background(), organization.ID)
			require.NoError(t, err)
			secondKey, err := organizationsService.GenerateSecretKey(context.Background(), organization.ID)
			require.NoError(t, err)
			assert.NotEqual(t, firstKey, secondKey)

			orgOpt, err := organizationsService.GetOrganizationBySecretKey(context.Background(), firstKey)
			require.NoError(t, err)
			assert.False(t, orgOpt.IsPresent(), "Old secret key should no longer match")

			orgOpt, err = organizationsService.GetOrganizationBySecretKey(context.Background(), secondKey)
			require.NoError(t, err)
			assert.True(t, orgOpt.IsPresent(), "Current secret key should match")
		})

		t.Run("InvalidOrganizationID", func(t *testing.T) {
			_, err := organizationsService.GenerateSecretKey(context.Background(), "not-a-ulid")
			assert.Error(t, err)
		})
	})

	t.Run("GetOrganizationBySecretKey", func(t *testing.T) {
		t.Run("EmptyKey", func(t *testing.T) {
			_, err := organizationsService.GetOrganizationBySecretKey(context.Background(), "")
			assert.Error(t, err)
		})

		t.Run("UnknownKey", func(t *testing.T) {
			unknownKey, err := core.NewSecretKey("sk")
			require.NoError(t, err)

			orgOpt, err := organizationsService.GetOrganizationBySecretKey(context.Background(), unknownKey)
			require.NoError(t, err)
			assert.False(t, orgOpt.IsPresent(), "Unknown secret key should not match any organization")
		})
	})
}
