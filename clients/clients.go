package clients

import (
	"context"

	"deskbackend/models"
)

// NotificationsClient is the pluggable channel behind the notify_all fallback.
// Delivery is fire-and-forget: the coordinator logs failures and never lets
// them fail an assignment response.
type NotificationsClient interface {
	BroadcastAssignmentNeeded(
		ctx context.Context,
		organizationID models.OrgID,
		supporterIDs []string,
		conversationID string,
	) error
	Close() error
}
