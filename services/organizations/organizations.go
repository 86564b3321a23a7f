package organizations

import (
	"context"
	"fmt"
	"log"

	"github.com/samber/mo"

	"deskbackend/core"
	"deskbackend/db"
	"deskbackend/models"
)

type OrganizationsService struct {
	organizationsRepo *db.PostgresOrganizationsRepository
}

func NewOrganizationsService(repo *db.PostgresOrganizationsRepository) *OrganizationsService {
	return &OrganizationsService{organizationsRepo: repo}
}

func (s *OrganizationsService) CreateOrganization(ctx context.Context) (*models.Organization, error) {
	log.Printf("📋 Starting to create organization")

	org := &models.Organization{
		ID: core.NewID("org"),
	}
	if err := s.organizationsRepo.CreateOrganization(ctx, org); err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	log.Printf("📋 Completed successfully - created organization with ID: %s", org.ID)
	return org, nil
}

func (s *OrganizationsService) GetOrganizationByID(
	ctx context.Context,
	id models.OrgID,
) (mo.Option[*models.Organization], error) {
	if !core.IsValidULID(id) {
		return mo.None[*models.Organization](), fmt.Errorf("organization ID must be a valid ULID")
	}

	return s.organizationsRepo.GetOrganizationByID(ctx, id)
}

func (s *OrganizationsService) GetAllOrganizations(ctx context.Context) ([]*models.Organization, error) {
	return s.organizationsRepo.GetAllOrganizations(ctx)
}

func (s *OrganizationsService) GetOrganizationBySecretKey(
	ctx context.Context,
	secretKey string,
) (mo.Option[*models.Organization], error) {
	if secretKey == "" {
		return mo.None[*models.Organization](), fmt.Errorf("secret key cannot be empty")
	}

	return s.organizationsRepo.GetOrganizationBySecretKey(ctx, secretKey)
}

// GenerateSecretKey mints a fresh API key for the organization, replacing any
// previous one.
func (s *OrganizationsService) GenerateSecretKey(
	ctx context.Context,
	organizationID models.OrgID,
) (string, error) {
	log.Printf("📋 Starting to generate secret key for organization %s", organizationID)
	if !core.IsValidULID(organizationID) {
		return "", fmt.Errorf("organization ID must be a valid ULID")
	}

	secretKey, err := core.NewSecretKey("sk")
	if err != nil {
		return "", fmt.Errorf("failed to generate secret key: %w", err)
	}

	if err := s.organizationsRepo.UpdateOrganizationSecretKey(ctx, organizationID, secretKey); err != nil {
		return "", fmt.Errorf("failed to store secret key: %w", err)
	}

	log.Printf("📋 Completed successfully - generated secret key for organization %s", organizationID)
	return secretKey, nil
}
