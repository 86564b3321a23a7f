package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	// also wires up the postgres driver
	"github.com/lib/pq"

	"deskbackend/core"
	dbtx "deskbackend/db/tx"
	"deskbackend/models"
)

type PostgresPresenceRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for supporter_presence table
var presenceColumns = []string{
	"id",
	"supporter_id",
	"organization_id",
	"status",
	"active_conversation_count",
	"last_heartbeat",
	"created_at",
	"updated_at",
}

func NewPostgresPresenceRepository(db *sqlx.DB, schema string) *PostgresPresenceRepository {
	return &PostgresPresenceRepository{db: db, schema: schema}
}

// UpsertPresence creates the presence row on first heartbeat or refreshes
// status and last_heartbeat on subsequent ones. The active conversation count
// is never touched here; only the increment/decrement operations move it.
func (r *PostgresPresenceRepository) UpsertPresence(
	ctx context.Context,
	supporterID string,
	organizationID models.OrgID,
	status models.PresenceStatus,
) (*models.SupporterPresence, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	returningStr := strings.Join(presenceColumns, ", ")

	query := fmt.Sprintf(`
		INSERT INTO %s.supporter_presence (id, supporter_id, organization_id, status, active_conversation_count, last_heartbeat, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, NOW(), NOW(), NOW())
		ON CONFLICT (organization_id, supporter_id)
		DO UPDATE SET
			status = EXCLUDED.status,
			last_heartbeat = NOW(),
			updated_at = NOW()
		RETURNING %s`, r.schema, returningStr)

	presence := &models.SupporterPresence{}
	err := db.QueryRowxContext(ctx, query, core.NewID("prs"), supporterID, organizationID, status).
		StructScan(presence)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert supporter presence: %w", err)
	}

	return presence, nil
}

// IncrementActiveConversations atomically bumps the load counter. The update
// happens in SQL so concurrent assignments never lose increments to
// read-modify-write races.
func (r *PostgresPresenceRepository) IncrementActiveConversations(
	ctx context.Context,
	supporterID string,
	organizationID models.OrgID,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		INSERT INTO %s.supporter_presence (id, supporter_id, organization_id, status, active_conversation_count, last_heartbeat, created_at, updated_at)
		VALUES ($1, $2, $3, 'offline', 1, to_timestamp(0), NOW(), NOW())
		ON CONFLICT (organization_id, supporter_id)
		DO UPDATE SET
			active_conversation_count = %s.supporter_presence.active_conversation_count + 1,
			updated_at = NOW()`, r.schema, r.schema)

	_, err := db.ExecContext(ctx, query, core.NewID("prs"), supporterID, organizationID)
	if err != nil {
		return fmt.Errorf("failed to increment active conversation count: %w", err)
	}

	return nil
}

// DecrementActiveConversations atomically lowers the load counter, clamped at
// zero.
func (r *PostgresPresenceRepository) DecrementActiveConversations(
	ctx context.Context,
	supporterID string,
	organizationID models.OrgID,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.supporter_presence
		SET active_conversation_count = GREATEST(active_conversation_count - 1, 0),
			updated_at = NOW()
		WHERE supporter_id = $1 AND organization_id = $2`, r.schema)

	_, err := db.ExecContext(ctx, query, supporterID, organizationID)
	if err != nil {
		return fmt.Errorf("failed to decrement active conversation count: %w", err)
	}

	return nil
}

// GetPresenceForSupporters returns the presence rows for the given supporter
// IDs. Supporters with no row yet are simply absent from the result.
func (r *PostgresPresenceRepository) GetPresenceForSupporters(
	ctx context.Context,
	organizationID models.OrgID,
	supporterIDs []string,
) ([]*models.SupporterPresence, error) {
	if len(supporterIDs) == 0 {
		return []*models.SupporterPresence{}, nil
	}

	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(presenceColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.supporter_presence
		WHERE organization_id = $1 AND supporter_id = ANY($2)
		ORDER BY created_at ASC`, columnsStr, r.schema)

	var rows []*models.SupporterPresence
	err := db.SelectContext(ctx, &rows, query, organizationID, pq.Array(supporterIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get presence for supporters: %w", err)
	}

	return rows, nil
}

// GetPresenceByOrganization returns every presence row for the org.
func (r *PostgresPresenceRepository) GetPresenceByOrganization(
	ctx context.Context,
	organizationID models.OrgID,
) ([]*models.SupporterPresence, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(presenceColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.supporter_presence
		WHERE organization_id = $1
		ORDER BY created_at ASC`, columnsStr, r.schema)

	var rows []*models.SupporterPresence
	err := db.SelectContext(ctx, &rows, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get presence by organization: %w", err)
	}

	return rows, nil
}

// MarkStalePresenceOffline flips the stored status of rows whose heartbeat is
// older than the threshold. This is an advisory repair: readers apply the
// staleness check themselves and never depend on this sweep having run.
func (r *PostgresPresenceRepository) MarkStalePresenceOffline(
	ctx context.Context,
	staleBefore time.Time,
) (int64, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.supporter_presence
		SET status = 'offline', updated_at = NOW()
		WHERE status != 'offline' AND last_heartbeat < $1`, r.schema)

	result, err := db.ExecContext(ctx, query, staleBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale presence offline: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
