package api

import "deskbackend/models"

// DomainConversationToAPIConversation converts a domain Conversation to an API ConversationModel
func DomainConversationToAPIConversation(conv *models.Conversation) *ConversationModel {
	if conv == nil {
		return nil
	}

	var reason *string
	if conv.EscalationReason != nil {
		r := string(*conv.EscalationReason)
		reason = &r
	}

	return &ConversationModel{
		ID:                  conv.ID,
		OrganizationID:      conv.OrgID,
		ContactSessionID:    conv.ContactSessionID,
		Status:              string(conv.Status),
		AssignedSupporterID: conv.AssignedSupporterID,
		EscalationReason:    reason,
		BotTurnsCount:       conv.BotTurnsCount,
		CreatedAt:           conv.CreatedAt,
		UpdatedAt:           conv.UpdatedAt,
	}
}

// DomainConversationsToAPIConversations converts a slice of domain Conversations
func DomainConversationsToAPIConversations(convs []*models.Conversation) []*ConversationModel {
	apiConvs := make([]*ConversationModel, 0, len(convs))
	for _, conv := range convs {
		apiConvs = append(apiConvs, DomainConversationToAPIConversation(conv))
	}
	return apiConvs
}

// DomainCandidateToAPIPresence converts a scheduler candidate view to an API SupporterPresenceModel
func DomainCandidateToAPIPresence(candidate models.SupporterCandidate) *SupporterPresenceModel {
	return &SupporterPresenceModel{
		SupporterID:             candidate.SupporterID,
		Status:                  string(candidate.Status),
		ActiveConversationCount: candidate.ActiveConversationCount,
		LastHeartbeat:           candidate.LastHeartbeat,
	}
}

// DomainAssignmentResultToAPIResult converts a routing outcome to the API response model
func DomainAssignmentResultToAPIResult(result *models.AssignmentResult) *AssignmentResultModel {
	if result == nil {
		return nil
	}

	return &AssignmentResultModel{
		Assigned:    result.Assigned,
		SupporterID: result.SupporterID,
		Status:      string(result.Status),
		Method:      string(result.Method),
		Reason:      string(result.Reason),
	}
}

// DomainAssignmentToAPIAssignment converts a domain ConversationAssignment to an API AssignmentModel
func DomainAssignmentToAPIAssignment(assignment *models.ConversationAssignment) *AssignmentModel {
	if assignment == nil {
		return nil
	}

	return &AssignmentModel{
		ID:             assignment.ID,
		ConversationID: assignment.ConversationID,
		SupporterID:    assignment.SupporterID,
		OrganizationID: assignment.OrgID,
		AssignedBy:     assignment.AssignedBy,
		Status:         string(assignment.Status),
		AssignedAt:     assignment.AssignedAt,
		ResolvedAt:     assignment.ResolvedAt,
	}
}

// DomainAssignmentsToAPIAssignments converts a slice of domain ConversationAssignments
func DomainAssignmentsToAPIAssignments(assignments []*models.ConversationAssignment) []*AssignmentModel {
	apiAssignments := make([]*AssignmentModel, 0, len(assignments))
	for _, assignment := range assignments {
		apiAssignments = append(apiAssignments, DomainAssignmentToAPIAssignment(assignment))
	}
	return apiAssignments
}
