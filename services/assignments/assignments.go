package assignments

import (
	"context"
	"fmt"
	"log"

	"github.com/samber/mo"

	"deskbackend/core"
	"deskbackend/db"
	"deskbackend/models"
)

type AssignmentsService struct {
	assignmentsRepo *db.PostgresAssignmentsRepository
}

func NewAssignmentsService(repo *db.PostgresAssignmentsRepository) *AssignmentsService {
	return &AssignmentsService{assignmentsRepo: repo}
}

// OpenAssignment creates the active history row binding a supporter to a
// conversation. Any prior active row must have been closed first; the storage
// layer rejects a second active row for the same conversation.
func (s *AssignmentsService) OpenAssignment(
	ctx context.Context,
	conversationID, supporterID string,
	organizationID models.OrgID,
	assignedBy *string,
) (*models.ConversationAssignment, error) {
	log.Printf("📋 Starting to open assignment for conversation %s to supporter %s", conversationID, supporterID)
	if !core.IsValidULID(conversationID) {
		return nil, fmt.Errorf("conversation ID must be a valid ULID")
	}
	if supporterID == "" {
		return nil, fmt.Errorf("supporter_id cannot be empty")
	}

	assignment := &models.ConversationAssignment{
		ID:             core.NewID("asg"),
		ConversationID: conversationID,
		SupporterID:    supporterID,
		OrgID:          organizationID,
		AssignedBy:     assignedBy,
	}
	if err := s.assignmentsRepo.CreateAssignment(ctx, assignment); err != nil {
		return nil, fmt.Errorf("failed to open assignment: %w", err)
	}

	log.Printf("📋 Completed successfully - opened assignment %s", assignment.ID)
	return assignment, nil
}

func (s *AssignmentsService) CloseActiveAssignment(
	ctx context.Context,
	conversationID string,
	organizationID models.OrgID,
	closeStatus models.AssignmentStatus,
) (mo.Option[*models.ConversationAssignment], error) {
	if closeStatus != models.AssignmentStatusResolved && closeStatus != models.AssignmentStatusTransferred {
		return mo.None[*models.ConversationAssignment](),
			fmt.Errorf("close status must be resolved or transferred, got %s", closeStatus)
	}

	return s.assignmentsRepo.CloseActiveAssignment(ctx, conversationID, organizationID, closeStatus)
}

func (s *AssignmentsService) GetActiveAssignmentByConversation(
	ctx context.Context,
	conversationID string,
	organizationID models.OrgID,
) (mo.Option[*models.ConversationAssignment], error) {
	return s.assignmentsRepo.GetActiveAssignmentByConversation(ctx, conversationID, organizationID)
}

// GetRoundRobinCursor returns the supporter of the org's most recent active
// assignment, the pointer round_robin advances from.
func (s *AssignmentsService) GetRoundRobinCursor(
	ctx context.Context,
	organizationID models.OrgID,
) (mo.Option[string], error) {
	maybeAssignment, err := s.assignmentsRepo.GetMostRecentActiveAssignment(ctx, organizationID)
	if err != nil {
		return mo.None[string](), fmt.Errorf("failed to get round robin cursor: %w", err)
	}
	if !maybeAssignment.IsPresent() {
		return mo.None[string](), nil
	}

	return mo.Some(maybeAssignment.MustGet().SupporterID), nil
}

func (s *AssignmentsService) GetAssignmentHistoryByConversation(
	ctx context.Context,
	conversationID string,
	organizationID models.OrgID,
) ([]*models.ConversationAssignment, error) {
	return s.assignmentsRepo.GetAssignmentHistoryByConversation(ctx, conversationID, organizationID)
}
