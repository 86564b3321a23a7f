package conversations

import (
	"context"
	"fmt"
	"log"

	"github.com/samber/mo"

	"deskbackend/core"
	"deskbackend/db"
	"deskbackend/models"
)

type ConversationsService struct {
	conversationsRepo *db.PostgresConversationsRepository
}

func NewConversationsService(repo *db.PostgresConversationsRepository) *ConversationsService {
	return &ConversationsService{conversationsRepo: repo}
}

func (s *ConversationsService) CreateConversation(
	ctx context.Context,
	organizationID models.OrgID,
	contactSessionID string,
) (*models.Conversation, error) {
	log.Printf("📋 Starting to create conversation for contact session %s", contactSessionID)
	if !core.IsValidULID(organizationID) {
		return nil, fmt.Errorf("organization_id must be a valid ULID")
	}
	if contactSessionID == "" {
		return nil, fmt.Errorf("contact_session_id cannot be empty")
	}

	conversation := &models.Conversation{
		ID:               core.NewID("conv"),
		OrgID:            organizationID,
		ContactSessionID: contactSessionID,
		Status:           models.ConversationStatusUnresolved,
	}
	if err := s.conversationsRepo.CreateConversation(ctx, conversation); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	log.Printf("📋 Completed successfully - created conversation with ID: %s", conversation.ID)
	return conversation, nil
}

func (s *ConversationsService) GetConversationByID(
	ctx context.Context,
	id string,
	organizationID models.OrgID,
) (mo.Option[*models.Conversation], error) {
	if !core.IsValidULID(id) {
		return mo.None[*models.Conversation](), fmt.Errorf("conversation ID must be a valid ULID")
	}

	return s.conversationsRepo.GetConversationByID(ctx, id, organizationID)
}

func (s *ConversationsService) GetConversationByIDForUpdate(
	ctx context.Context,
	id string,
	organizationID models.OrgID,
) (mo.Option[*models.Conversation], error) {
	if !core.IsValidULID(id) {
		return mo.None[*models.Conversation](), fmt.Errorf("conversation ID must be a valid ULID")
	}

	return s.conversationsRepo.GetConversationByIDForUpdate(ctx, id, organizationID)
}

func (s *ConversationsService) GetConversationsByStatus(
	ctx context.Context,
	organizationID models.OrgID,
	status models.ConversationStatus,
) ([]*models.Conversation, error) {
	if !models.IsValidConversationStatus(status) {
		return nil, fmt.Errorf("invalid conversation status: %s", status)
	}

	return s.conversationsRepo.GetConversationsByStatus(ctx, organizationID, status)
}

// QueueConversation parks the conversation as a durable, visible queued state
// when no supporter could take it.
func (s *ConversationsService) QueueConversation(
	ctx context.Context,
	id string,
	organizationID models.OrgID,
) error {
	updated, err := s.conversationsRepo.UpdateConversationStatus(
		ctx, id, organizationID, models.ConversationStatusQueued)
	if err != nil {
		return fmt.Errorf("failed to queue conversation: %w", err)
	}
	if !updated {
		return core.ErrNotFound
	}

	return nil
}

func (s *ConversationsService) AssignConversation(
	ctx context.Context,
	id string,
	organizationID models.OrgID,
	supporterID string,
) error {
	updated, err := s.conversationsRepo.AssignConversation(ctx, id, organizationID, supporterID)
	if err != nil {
		return fmt.Errorf("failed to assign conversation: %w", err)
	}
	if !updated {
		return core.ErrNotFound
	}

	return nil
}

// MarkEscalated records the bot handoff. Returns false when the conversation
// is already assigned or resolved and the transition did not apply.
func (s *ConversationsService) MarkEscalated(
	ctx context.Context,
	id string,
	organizationID models.OrgID,
	reason *models.EscalationReason,
) (bool, error) {
	if !core.IsValidULID(id) {
		return false, fmt.Errorf("conversation ID must be a valid ULID")
	}

	return s.conversationsRepo.MarkConversationEscalated(ctx, id, organizationID, reason)
}

// ResolveConversation moves the conversation to its terminal state. Returns
// false when it was already resolved, letting callers treat resolve as
// idempotent.
func (s *ConversationsService) ResolveConversation(
	ctx context.Context,
	id string,
	organizationID models.OrgID,
) (bool, error) {
	if !core.IsValidULID(id) {
		return false, fmt.Errorf("conversation ID must be a valid ULID")
	}

	return s.conversationsRepo.ResolveConversation(ctx, id, organizationID)
}

// IncrementBotTurns counts one bot reply and returns the updated total.
func (s *ConversationsService) IncrementBotTurns(
	ctx context.Context,
	id string,
	organizationID models.OrgID,
) (int, error) {
	if !core.IsValidULID(id) {
		return 0, fmt.Errorf("conversation ID must be a valid ULID")
	}

	maybeCount, err := s.conversationsRepo.IncrementBotTurns(ctx, id, organizationID)
	if err != nil {
		return 0, fmt.Errorf("failed to increment bot turns: %w", err)
	}
	if !maybeCount.IsPresent() {
		return 0, core.ErrNotFound
	}

	return maybeCount.MustGet(), nil
}
