package presence

import (
	"context"
	"fmt"
	"log"
	"time"

	"deskbackend/core"
	"deskbackend/db"
	"deskbackend/models"
)

// PresenceService maintains supporter availability and load state. All reads
// apply the staleness check themselves: a row whose heartbeat is older than
// the configured threshold is reported offline no matter what it stores.
type PresenceService struct {
	presenceRepo   *db.PostgresPresenceRepository
	staleThreshold time.Duration
}

func NewPresenceService(repo *db.PostgresPresenceRepository, staleThreshold time.Duration) *PresenceService {
	return &PresenceService{presenceRepo: repo, staleThreshold: staleThreshold}
}

// EffectiveStatus returns the status readers should act on: the stored status
// when the heartbeat is fresh, offline when it has gone stale.
func EffectiveStatus(p *models.SupporterPresence, now time.Time, staleThreshold time.Duration) models.PresenceStatus {
	if now.Sub(p.LastHeartbeat) > staleThreshold {
		return models.PresenceStatusOffline
	}
	return p.Status
}

func (s *PresenceService) Heartbeat(
	ctx context.Context,
	supporterID string,
	organizationID models.OrgID,
	status models.PresenceStatus,
) (*models.SupporterPresence, error) {
	if supporterID == "" {
		return nil, fmt.Errorf("supporter_id cannot be empty")
	}
	if !core.IsValidULID(organizationID) {
		return nil, fmt.Errorf("organization_id must be a valid ULID")
	}
	if !models.IsValidPresenceStatus(status) {
		return nil, fmt.Errorf("invalid presence status: %s", status)
	}

	presence, err := s.presenceRepo.UpsertPresence(ctx, supporterID, organizationID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to record heartbeat: %w", err)
	}

	return presence, nil
}

// SetStatus is a user-initiated status change. Storage-wise it is the same
// upsert as a heartbeat and takes effect for the next assignment decision.
func (s *PresenceService) SetStatus(
	ctx context.Context,
	supporterID string,
	organizationID models.OrgID,
	status models.PresenceStatus,
) (*models.SupporterPresence, error) {
	log.Printf("📋 Starting to set presence status for supporter %s to %s", supporterID, status)

	presence, err := s.Heartbeat(ctx, supporterID, organizationID, status)
	if err != nil {
		return nil, err
	}

	log.Printf("📋 Completed successfully - set presence status for supporter %s", supporterID)
	return presence, nil
}

// MarkOffline flips the supporter to offline on disconnect. It is advisory:
// the client may die before delivering it, so failures are logged and
// swallowed rather than propagated.
func (s *PresenceService) MarkOffline(
	ctx context.Context,
	supporterID string,
	organizationID models.OrgID,
) error {
	if _, err := s.Heartbeat(ctx, supporterID, organizationID, models.PresenceStatusOffline); err != nil {
		log.Printf("⚠️ Failed to mark supporter %s offline (advisory only): %v", supporterID, err)
	}
	return nil
}

func (s *PresenceService) IncrementLoad(
	ctx context.Context,
	supporterID string,
	organizationID models.OrgID,
) error {
	if err := s.presenceRepo.IncrementActiveConversations(ctx, supporterID, organizationID); err != nil {
		return fmt.Errorf("failed to increment supporter load: %w", err)
	}
	return nil
}

func (s *PresenceService) DecrementLoad(
	ctx context.Context,
	supporterID string,
	organizationID models.OrgID,
) error {
	if err := s.presenceRepo.DecrementActiveConversations(ctx, supporterID, organizationID); err != nil {
		return fmt.Errorf("failed to decrement supporter load: %w", err)
	}
	return nil
}

// GetSupporterCandidates resolves the given supporters to the scheduler's
// candidate view. Supporters with no presence row appear as offline with zero
// load; stale rows are degraded to offline.
func (s *PresenceService) GetSupporterCandidates(
	ctx context.Context,
	organizationID models.OrgID,
	supporterIDs []string,
) ([]models.SupporterCandidate, error) {
	rows, err := s.presenceRepo.GetPresenceForSupporters(ctx, organizationID, supporterIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get presence rows: %w", err)
	}

	presenceBySupporter := make(map[string]*models.SupporterPresence, len(rows))
	for _, row := range rows {
		presenceBySupporter[row.SupporterID] = row
	}

	now := time.Now()
	candidates := make([]models.SupporterCandidate, 0, len(supporterIDs))
	for _, supporterID := range supporterIDs {
		row, ok := presenceBySupporter[supporterID]
		if !ok {
			candidates = append(candidates, models.SupporterCandidate{
				SupporterID: supporterID,
				Status:      models.PresenceStatusOffline,
			})
			continue
		}
		candidates = append(candidates, models.SupporterCandidate{
			SupporterID:             row.SupporterID,
			Status:                  EffectiveStatus(row, now, s.staleThreshold),
			ActiveConversationCount: row.ActiveConversationCount,
			LastHeartbeat:           row.LastHeartbeat,
		})
	}

	return candidates, nil
}

// GetOrganizationCandidates returns the effective presence snapshot for every
// supporter the org has seen a heartbeat from.
func (s *PresenceService) GetOrganizationCandidates(
	ctx context.Context,
	organizationID models.OrgID,
) ([]models.SupporterCandidate, error) {
	rows, err := s.presenceRepo.GetPresenceByOrganization(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization presence: %w", err)
	}

	now := time.Now()
	candidates := make([]models.SupporterCandidate, 0, len(rows))
	for _, row := range rows {
		candidates = append(candidates, models.SupporterCandidate{
			SupporterID:             row.SupporterID,
			Status:                  EffectiveStatus(row, now, s.staleThreshold),
			ActiveConversationCount: row.ActiveConversationCount,
			LastHeartbeat:           row.LastHeartbeat,
		})
	}

	return candidates, nil
}

// MarkStalePresenceOffline repairs stored statuses for rows whose heartbeat
// has lapsed. Readers never depend on this having run; it keeps dashboards
// honest between heartbeats.
func (s *PresenceService) MarkStalePresenceOffline(ctx context.Context) (int64, error) {
	staleBefore := time.Now().Add(-s.staleThreshold)
	updated, err := s.presenceRepo.MarkStalePresenceOffline(ctx, staleBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale presence offline: %w", err)
	}

	if updated > 0 {
		log.Printf("📋 Marked %d stale presence rows offline", updated)
	}
	return updated, nil
}
