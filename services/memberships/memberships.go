package memberships

import (
	"context"
	"fmt"
	"log"

	"deskbackend/core"
	"deskbackend/db"
	"deskbackend/models"
)

type MembershipsService struct {
	membershipsRepo *db.PostgresMembershipsRepository
}

func NewMembershipsService(repo *db.PostgresMembershipsRepository) *MembershipsService {
	return &MembershipsService{membershipsRepo: repo}
}

// GetSupporterPool returns the user IDs eligible to take conversations:
// members with role supporter or admin, in membership creation order. The
// order is stable so tie-breaking in the selector stays deterministic.
func (s *MembershipsService) GetSupporterPool(
	ctx context.Context,
	organizationID models.OrgID,
) ([]string, error) {
	memberships, err := s.membershipsRepo.GetSupporterMemberships(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get supporter memberships: %w", err)
	}

	userIDs := make([]string, 0, len(memberships))
	for _, membership := range memberships {
		userIDs = append(userIDs, membership.UserID)
	}

	return userIDs, nil
}

// IsSupporterMember reports whether the user belongs to the org with a role
// that may hold conversations.
func (s *MembershipsService) IsSupporterMember(
	ctx context.Context,
	userID string,
	organizationID models.OrgID,
) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("user_id cannot be empty")
	}

	maybeMembership, err := s.membershipsRepo.GetMembershipByUserID(ctx, userID, organizationID)
	if err != nil {
		return false, fmt.Errorf("failed to get membership: %w", err)
	}
	if !maybeMembership.IsPresent() {
		return false, nil
	}

	return maybeMembership.MustGet().CanTakeConversations(), nil
}

func (s *MembershipsService) CreateMembership(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	role models.MembershipRole,
) (*models.OrganizationMembership, error) {
	log.Printf("📋 Starting to create membership for user %s in organization %s", userID, organizationID)
	if !core.IsValidULID(organizationID) {
		return nil, fmt.Errorf("organization_id must be a valid ULID")
	}
	if userID == "" {
		return nil, fmt.Errorf("user_id cannot be empty")
	}

	membership := &models.OrganizationMembership{
		ID:     core.NewID("mem"),
		OrgID:  organizationID,
		UserID: userID,
		Role:   role,
	}
	if err := s.membershipsRepo.CreateMembership(ctx, membership); err != nil {
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	log.Printf("📋 Completed successfully - created membership %s", membership.ID)
	return membership, nil
}
