package settings

import (
	"context"
	"fmt"
	"log"

	"deskbackend/core"
	"deskbackend/db"
	"deskbackend/models"
)

type OrgSettingsService struct {
	settingsRepo *db.PostgresOrgSettingsRepository
}

func NewOrgSettingsService(repo *db.PostgresOrgSettingsRepository) *OrgSettingsService {
	return &OrgSettingsService{settingsRepo: repo}
}

// GetSettingsOrDefaults loads the org's assignment policy, falling back to the
// defaults when the admin has never saved one. The scheduler treats the
// result as read-only.
func (s *OrgSettingsService) GetSettingsOrDefaults(
	ctx context.Context,
	organizationID models.OrgID,
) (*models.OrganizationSettings, error) {
	if !core.IsValidULID(organizationID) {
		return nil, fmt.Errorf("organization_id must be a valid ULID")
	}

	maybeSettings, err := s.settingsRepo.GetSettingsByOrganizationID(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization settings: %w", err)
	}
	if !maybeSettings.IsPresent() {
		return models.DefaultOrganizationSettings(organizationID), nil
	}

	settings := maybeSettings.MustGet()
	if settings.MaxConcurrentPerSupporter < 1 {
		settings.MaxConcurrentPerSupporter = models.DefaultMaxConcurrentPerSupporter
	}
	return settings, nil
}

func (s *OrgSettingsService) UpsertSettings(
	ctx context.Context,
	settings *models.OrganizationSettings,
) error {
	log.Printf("📋 Starting to upsert settings for organization %s", settings.OrgID)
	if !core.IsValidULID(settings.OrgID) {
		return fmt.Errorf("organization_id must be a valid ULID")
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid organization settings: %w", err)
	}

	if err := s.settingsRepo.UpsertSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to upsert organization settings: %w", err)
	}

	log.Printf("📋 Completed successfully - upserted settings for organization %s", settings.OrgID)
	return nil
}
