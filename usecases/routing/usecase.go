package routing

import (
	"context"
	"fmt"
	"log"

	"deskbackend/clients"
	"deskbackend/core"
	"deskbackend/models"
	"deskbackend/services"
)

// RoutingUseCase is the assignment coordinator: it turns escalations, accepts,
// transfers and admin overrides into committed conversation/assignment state.
// All write phases run inside a single transaction keyed by the conversation
// row, so competing calls for the same conversation serialize on the row lock.
type RoutingUseCase struct {
	presenceService      services.PresenceService
	conversationsService services.ConversationsService
	assignmentsService   services.AssignmentsService
	settingsService      services.OrgSettingsService
	membershipsService   services.MembershipsService
	organizationsService services.OrganizationsService
	notificationsClient  clients.NotificationsClient
	txManager            services.TransactionManager
}

func NewRoutingUseCase(
	presenceService services.PresenceService,
	conversationsService services.ConversationsService,
	assignmentsService services.AssignmentsService,
	settingsService services.OrgSettingsService,
	membershipsService services.MembershipsService,
	organizationsService services.OrganizationsService,
	notificationsClient clients.NotificationsClient,
	txManager services.TransactionManager,
) *RoutingUseCase {
	return &RoutingUseCase{
		presenceService:      presenceService,
		conversationsService: conversationsService,
		assignmentsService:   assignmentsService,
		settingsService:      settingsService,
		membershipsService:   membershipsService,
		organizationsService: organizationsService,
		notificationsClient:  notificationsClient,
		txManager:            txManager,
	}
}

// Assign routes one conversation. A forced supporter id bypasses policy
// entirely (admin override or transfer); otherwise the org's assignment policy
// decides. A policy outcome that leaves the conversation queued is a normal
// result, not an error.
func (u *RoutingUseCase) Assign(
	ctx context.Context,
	conversationID string,
	organizationID models.OrgID,
	forcedSupporterID *string,
	requestedBy *string,
) (*models.AssignmentResult, error) {
	log.Printf("📋 Starting to assign conversation %s in organization %s", conversationID, organizationID)
	if !core.IsValidULID(conversationID) {
		return nil, fmt.Errorf("%w: conversation_id must be a valid ULID", core.ErrInvalidInput)
	}
	if !core.IsValidULID(organizationID) {
		return nil, fmt.Errorf("%w: organization_id must be a valid ULID", core.ErrInvalidInput)
	}

	maybeConv, err := u.conversationsService.GetConversationByID(ctx, conversationID, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if !maybeConv.IsPresent() {
		return nil, fmt.Errorf("%w: conversation %s", core.ErrNotFound, conversationID)
	}
	if !maybeConv.MustGet().Status.CanTransitionTo(models.ConversationStatusAssigned) {
		return nil, fmt.Errorf("%w: conversation %s is resolved", core.ErrConflict, conversationID)
	}

	if forcedSupporterID != nil {
		return u.assignForced(ctx, conversationID, organizationID, *forcedSupporterID, requestedBy)
	}

	settings, err := u.settingsService.GetSettingsOrDefaults(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignment policy: %w", err)
	}
	if !settings.AutoAssignEnabled || settings.AutoAssignStrategy == models.AssignStrategyManual {
		log.Printf("📋 Auto-assign disabled for organization %s, queueing conversation %s", organizationID, conversationID)
		return u.queueConversation(ctx, conversationID, organizationID, models.QueueReasonAutoAssignDisabled)
	}

	supporterIDs, err := u.membershipsService.GetSupporterPool(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load supporter pool: %w", err)
	}
	if len(supporterIDs) == 0 {
		return u.queueConversation(ctx, conversationID, organizationID, models.QueueReasonNoSupportersInOrg)
	}

	candidates, err := u.presenceService.GetSupporterCandidates(ctx, organizationID, supporterIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load supporter presence: %w", err)
	}

	capacityPool := make([]models.SupporterCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.ActiveConversationCount < settings.MaxConcurrentPerSupporter {
			capacityPool = append(capacityPool, c)
		}
	}
	if len(capacityPool) == 0 {
		log.Printf("⚠️ All supporters in organization %s are at capacity", organizationID)
		return u.queueConversation(ctx, conversationID, organizationID, models.QueueReasonNoCapacity)
	}

	workingPool := capacityPool
	if settings.RequireOnlineForAuto {
		workingPool = make([]models.SupporterCandidate, 0, len(capacityPool))
		for _, c := range capacityPool {
			if c.IsReachable() {
				workingPool = append(workingPool, c)
			}
		}
	}

	cursor := ""
	if settings.AutoAssignStrategy == models.AssignStrategyRoundRobin {
		maybeCursor, err := u.assignmentsService.GetRoundRobinCursor(ctx, organizationID)
		if err != nil {
			return nil, fmt.Errorf("failed to load round-robin cursor: %w", err)
		}
		cursor = maybeCursor.OrElse("")
	}

	chosen := SelectCandidate(workingPool, settings.AutoAssignStrategy, cursor)
	if chosen != nil {
		if err := u.commitAssignment(ctx, conversationID, organizationID, chosen.SupporterID, nil); err != nil {
			return nil, err
		}
		log.Printf("✅ Assigned conversation %s to supporter %s", conversationID, chosen.SupporterID)
		return assignedResult(chosen.SupporterID, models.AssignmentMethodAuto), nil
	}

	if !settings.RequireOnlineForAuto {
		// non-empty capacity pool with a non-manual strategy always selects;
		// reaching here means the pool drained between filter and select
		return u.queueConversation(ctx, conversationID, organizationID, models.QueueReasonNoOnlineSupporter)
	}

	switch settings.FallbackIfNoOnline {
	case models.FallbackModeAssignAnyway:
		chosen = SelectCandidate(capacityPool, settings.AutoAssignStrategy, cursor)
		if chosen == nil {
			return u.queueConversation(ctx, conversationID, organizationID, models.QueueReasonNoCapacity)
		}
		if err := u.commitAssignment(ctx, conversationID, organizationID, chosen.SupporterID, nil); err != nil {
			return nil, err
		}
		log.Printf("✅ Assigned conversation %s to offline supporter %s (fallback)", conversationID, chosen.SupporterID)
		return assignedResult(chosen.SupporterID, models.AssignmentMethodAutoFallbackOffline), nil
	case models.FallbackModeNotifyAll:
		result, err := u.queueConversation(ctx, conversationID, organizationID, models.QueueReasonNotifyAllSent)
		if err != nil {
			return nil, err
		}
		// best-effort fan-out; a delivery failure never fails the assignment
		if notifyErr := u.notificationsClient.BroadcastAssignmentNeeded(
			ctx, organizationID, supporterIDs, conversationID,
		); notifyErr != nil {
			log.Printf("⚠️ Failed to broadcast assignment notification for conversation %s: %v", conversationID, notifyErr)
		}
		return result, nil
	default:
		return u.queueConversation(ctx, conversationID, organizationID, models.QueueReasonNoOnlineSupporter)
	}
}

// Accept is the supporter self-service path: forced assignment to self,
// guarded so a conversation already assigned to somebody else cannot be
// grabbed (that has to go through transfer).
func (u *RoutingUseCase) Accept(
	ctx context.Context,
	conversationID string,
	organizationID models.OrgID,
	supporterID string,
) (*models.AssignmentResult, error) {
	log.Printf("📋 Starting to accept conversation %s by supporter %s", conversationID, supporterID)
	if !core.IsValidULID(conversationID) {
		return nil, fmt.Errorf("%w: conversation_id must be a valid ULID", core.ErrInvalidInput)
	}
	if !core.IsValidULID(supporterID) {
		return nil, fmt.Errorf("%w: supporter_id must be a valid ULID", core.ErrInvalidInput)
	}

	maybeConv, err := u.conversationsService.GetConversationByID(ctx, conversationID, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if !maybeConv.IsPresent() {
		return nil, fmt.Errorf("%w: conversation %s", core.ErrNotFound, conversationID)
	}
	conv := maybeConv.MustGet()
	if conv.Status == models.ConversationStatusAssigned &&
		conv.AssignedSupporterID != nil && *conv.AssignedSupporterID != supporterID {
		return nil, fmt.Errorf(
			"%w: conversation %s is already assigned to another supporter", core.ErrConflict, conversationID)
	}
	if conv.Status == models.ConversationStatusResolved {
		return nil, fmt.Errorf("%w: conversation %s is resolved", core.ErrConflict, conversationID)
	}

	return u.assignForced(ctx, conversationID, organizationID, supporterID, nil)
}

// Escalate marks a conversation as handed off from the bot and immediately
// runs assignment over it. Escalating an already-assigned conversation is a
// no-op that reports the current supporter.
func (u *RoutingUseCase) Escalate(
	ctx context.Context,
	conversationID string,
	organizationID models.OrgID,
	reason *models.EscalationReason,
) (*models.AssignmentResult, error) {
	log.Printf("📋 Starting to escalate conversation %s in organization %s", conversationID, organizationID)
	if !core.IsValidULID(conversationID) {
		return nil, fmt.Errorf("%w: conversation_id must be a valid ULID", core.ErrInvalidInput)
	}

	maybeConv, err := u.conversationsService.GetConversationByID(ctx, conversationID, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if !maybeConv.IsPresent() {
		return nil, fmt.Errorf("%w: conversation %s", core.ErrNotFound, conversationID)
	}
	conv := maybeConv.MustGet()
	if conv.Status == models.ConversationStatusResolved {
		return nil, fmt.Errorf("%w: conversation %s is resolved", core.ErrConflict, conversationID)
	}
	if conv.Status == models.ConversationStatusAssigned {
		log.Printf("📋 Conversation %s is already assigned, skipping escalation", conversationID)
		return &models.AssignmentResult{
			Assigned:    true,
			SupporterID: conv.AssignedSupporterID,
			Status:      models.ConversationStatusAssigned,
		}, nil
	}

	if _, err := u.conversationsService.MarkEscalated(ctx, conversationID, organizationID, reason); err != nil {
		return nil, fmt.Errorf("failed to mark conversation escalated: %w", err)
	}

	return u.Assign(ctx, conversationID, organizationID, nil, nil)
}

// RecordBotTurn counts one bot reply on an unresolved conversation. Once the
// bot has used up its turn budget the conversation escalates with reason
// max_bot_turns and immediately goes through assignment. Returns the updated
// turn count and, when escalation fired, the routing outcome.
func (u *RoutingUseCase) RecordBotTurn(
	ctx context.Context,
	conversationID string,
	organizationID models.OrgID,
) (int, *models.AssignmentResult, error) {
	if !core.IsValidULID(conversationID) {
		return 0, nil, fmt.Errorf("%w: conversation_id must be a valid ULID", core.ErrInvalidInput)
	}

	maybeConv, err := u.conversationsService.GetConversationByID(ctx, conversationID, organizationID)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if !maybeConv.IsPresent() {
		return 0, nil, fmt.Errorf("%w: conversation %s", core.ErrNotFound, conversationID)
	}
	conv := maybeConv.MustGet()
	if conv.Status == models.ConversationStatusResolved {
		return 0, nil, fmt.Errorf("%w: conversation %s is resolved", core.ErrConflict, conversationID)
	}
	// once escalated/queued/assigned the bot no longer replies, so the
	// counter stops moving
	if conv.Status != models.ConversationStatusUnresolved {
		return conv.BotTurnsCount, nil, nil
	}

	turns, err := u.conversationsService.IncrementBotTurns(ctx, conversationID, organizationID)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to increment bot turns: %w", err)
	}

	if turns >= models.MaxBotTurns {
		log.Printf("📋 Conversation %s hit the bot turn limit, escalating", conversationID)
		reason := models.EscalationReasonMaxBotTurns
		result, err := u.Escalate(ctx, conversationID, organizationID, &reason)
		if err != nil {
			return turns, nil, err
		}
		return turns, result, nil
	}

	return turns, nil, nil
}

// Resolve closes a conversation. Idempotent: resolving an already-resolved
// conversation changes nothing and does not double-decrement supporter load.
func (u *RoutingUseCase) Resolve(
	ctx context.Context,
	conversationID string,
	organizationID models.OrgID,
) error {
	log.Printf("📋 Starting to resolve conversation %s in organization %s", conversationID, organizationID)
	if !core.IsValidULID(conversationID) {
		return fmt.Errorf("%w: conversation_id must be a valid ULID", core.ErrInvalidInput)
	}

	err := u.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		maybeConv, err := u.conversationsService.GetConversationByIDForUpdate(ctx, conversationID, organizationID)
		if err != nil {
			return fmt.Errorf("failed to get conversation: %w", err)
		}
		if !maybeConv.IsPresent() {
			return fmt.Errorf("%w: conversation %s", core.ErrNotFound, conversationID)
		}
		conv := maybeConv.MustGet()
		if conv.Status == models.ConversationStatusResolved {
			log.Printf("📋 Conversation %s is already resolved", conversationID)
			return nil
		}

		maybeClosed, err := u.assignmentsService.CloseActiveAssignment(
			ctx, conversationID, organizationID, models.AssignmentStatusResolved)
		if err != nil {
			return fmt.Errorf("failed to close active assignment: %w", err)
		}
		if maybeClosed.IsPresent() {
			closed := maybeClosed.MustGet()
			if err := u.presenceService.DecrementLoad(ctx, closed.SupporterID, organizationID); err != nil {
				return fmt.Errorf("failed to decrement supporter load: %w", err)
			}
		}

		if _, err := u.conversationsService.ResolveConversation(ctx, conversationID, organizationID); err != nil {
			return fmt.Errorf("failed to resolve conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("✅ Resolved conversation %s", conversationID)
	return nil
}

// ProcessQueuedConversations re-runs assignment over every org's queued
// backlog. Invoked periodically so conversations parked by a fallback get
// picked up once capacity or presence recovers.
func (u *RoutingUseCase) ProcessQueuedConversations(ctx context.Context) error {
	organizations, err := u.organizationsService.GetAllOrganizations(ctx)
	if err != nil {
		return fmt.Errorf("failed to list organizations: %w", err)
	}

	for _, org := range organizations {
		settings, err := u.settingsService.GetSettingsOrDefaults(ctx, org.ID)
		if err != nil {
			log.Printf("❌ Failed to load policy for organization %s: %v", org.ID, err)
			continue
		}
		if !settings.AutoAssignEnabled || settings.AutoAssignStrategy == models.AssignStrategyManual {
			continue
		}

		queued, err := u.conversationsService.GetConversationsByStatus(
			ctx, org.ID, models.ConversationStatusQueued)
		if err != nil {
			log.Printf("❌ Failed to list queued conversations for organization %s: %v", org.ID, err)
			continue
		}

		for _, conv := range queued {
			result, err := u.Assign(ctx, conv.ID, org.ID, nil, nil)
			if err != nil {
				log.Printf("❌ Failed to re-assign queued conversation %s: %v", conv.ID, err)
				break
			}
			// first non-assignment means the org still has no capacity,
			// stop instead of re-queueing the rest of the backlog
			if !result.Assigned {
				break
			}
		}
	}
	return nil
}

// assignForced is the manual path: policy is bypassed, but the target must be
// a supporter-capable member of the org.
func (u *RoutingUseCase) assignForced(
	ctx context.Context,
	conversationID string,
	organizationID models.OrgID,
	supporterID string,
	requestedBy *string,
) (*models.AssignmentResult, error) {
	if !core.IsValidULID(supporterID) {
		return nil, fmt.Errorf("%w: forced_supporter_id must be a valid ULID", core.ErrInvalidInput)
	}
	isMember, err := u.membershipsService.IsSupporterMember(ctx, supporterID, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to check supporter membership: %w", err)
	}
	if !isMember {
		return nil, fmt.Errorf(
			"%w: supporter %s is not a member of organization %s", core.ErrInvalidInput, supporterID, organizationID)
	}

	if err := u.commitAssignment(ctx, conversationID, organizationID, supporterID, requestedBy); err != nil {
		return nil, err
	}
	log.Printf("✅ Manually assigned conversation %s to supporter %s", conversationID, supporterID)
	return assignedResult(supporterID, models.AssignmentMethodManual), nil
}

// commitAssignment performs the atomic write phase: lock the conversation,
// close any prior active assignment as transferred (adjusting the prior
// supporter's load), set the conversation assigned, open the new active row
// and bump the new supporter's load. All or nothing.
func (u *RoutingUseCase) commitAssignment(
	ctx context.Context,
	conversationID string,
	organizationID models.OrgID,
	supporterID string,
	assignedBy *string,
) error {
	return u.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		maybeConv, err := u.conversationsService.GetConversationByIDForUpdate(ctx, conversationID, organizationID)
		if err != nil {
			return fmt.Errorf("failed to lock conversation: %w", err)
		}
		if !maybeConv.IsPresent() {
			return fmt.Errorf("%w: conversation %s", core.ErrNotFound, conversationID)
		}
		// re-check under the row lock: the conversation may have been
		// resolved between the initial read and here
		if !maybeConv.MustGet().Status.CanTransitionTo(models.ConversationStatusAssigned) {
			return fmt.Errorf("%w: conversation %s is resolved", core.ErrConflict, conversationID)
		}

		maybeClosed, err := u.assignmentsService.CloseActiveAssignment(
			ctx, conversationID, organizationID, models.AssignmentStatusTransferred)
		if err != nil {
			return fmt.Errorf("failed to close prior assignment: %w", err)
		}
		if maybeClosed.IsPresent() {
			closed := maybeClosed.MustGet()
			if err := u.presenceService.DecrementLoad(ctx, closed.SupporterID, organizationID); err != nil {
				return fmt.Errorf("failed to decrement prior supporter load: %w", err)
			}
		}

		if err := u.conversationsService.AssignConversation(ctx, conversationID, organizationID, supporterID); err != nil {
			return fmt.Errorf("failed to update conversation: %w", err)
		}
		if _, err := u.assignmentsService.OpenAssignment(
			ctx, conversationID, supporterID, organizationID, assignedBy); err != nil {
			return fmt.Errorf("failed to open assignment: %w", err)
		}
		if err := u.presenceService.IncrementLoad(ctx, supporterID, organizationID); err != nil {
			return fmt.Errorf("failed to increment supporter load: %w", err)
		}
		return nil
	})
}

// queueConversation parks the conversation durably and reports why.
func (u *RoutingUseCase) queueConversation(
	ctx context.Context,
	conversationID string,
	organizationID models.OrgID,
	reason models.QueueReason,
) (*models.AssignmentResult, error) {
	if err := u.conversationsService.QueueConversation(ctx, conversationID, organizationID); err != nil {
		return nil, fmt.Errorf("failed to queue conversation: %w", err)
	}
	log.Printf("📋 Queued conversation %s (%s)", conversationID, reason)
	return &models.AssignmentResult{
		Assigned: false,
		Status:   models.ConversationStatusQueued,
		Reason:   reason,
	}, nil
}

func assignedResult(supporterID string, method models.AssignmentMethod) *models.AssignmentResult {
	return &models.AssignmentResult{
		Assigned:    true,
		SupporterID: &supporterID,
		Status:      models.ConversationStatusAssigned,
		Method:      method,
	}
}
