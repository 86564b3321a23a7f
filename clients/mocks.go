package clients

import (
	"context"

	"github.com/stretchr/testify/mock"

	"deskbackend/models"
)

// MockNotificationsClient is a mock implementation of NotificationsClient
type MockNotificationsClient struct {
	mock.Mock
}

func (m *MockNotificationsClient) BroadcastAssignmentNeeded(
	ctx context.Context,
	organizationID models.OrgID,
	supporterIDs []string,
	conversationID string,
) error {
	args := m.Called(ctx, organizationID, supporterIDs, conversationID)
	return args.Error(0)
}

func (m *MockNotificationsClient) Close() error {
	args := m.Called()
	return args.Error(0)
}
