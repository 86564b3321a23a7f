package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/samber/mo"

	// necessary import to wire up the postgres driver
	_ "github.com/lib/pq"

	dbtx "deskbackend/db/tx"
	"deskbackend/models"
)

type PostgresConversationsRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for conversations table
var conversationsColumns = []string{
	"id",
	"organization_id",
	"contact_session_id",
	"status",
	"assigned_supporter_id",
	"escalation_reason",
	"bot_turns_count",
	"created_at",
	"updated_at",
}

func NewPostgresConversationsRepository(db *sqlx.DB, schema string) *PostgresConversationsRepository {
	return &PostgresConversationsRepository{db: db, schema: schema}
}

func (r *PostgresConversationsRepository) CreateConversation(
	ctx context.Context,
	conversation *models.Conversation,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	returningStr := strings.Join(conversationsColumns, ", ")

	query := fmt.Sprintf(`
		INSERT INTO %s.conversations (id, organization_id, contact_session_id, status, assigned_supporter_id, escalation_reason, bot_turns_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING %s`, r.schema, returningStr)

	err := db.QueryRowxContext(ctx, query,
		conversation.ID, conversation.OrgID, conversation.ContactSessionID,
		conversation.Status, conversation.AssignedSupporterID,
		conversation.EscalationReason, conversation.BotTurnsCount).
		StructScan(conversation)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	return nil
}

func (r *PostgresConversationsRepository) GetConversationByID(
	ctx context.Context,
	id string,
	organizationID models.OrgID,
) (mo.Option[*models.Conversation], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(conversationsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.conversations
		WHERE id = $1 AND organization_id = $2`, columnsStr, r.schema)

	var conversation models.Conversation
	err := db.GetContext(ctx, &conversation, query, id, organizationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.Conversation](), nil
		}
		return mo.None[*models.Conversation](), fmt.Errorf("failed to get conversation: %w", err)
	}

	return mo.Some(&conversation), nil
}

// GetConversationByIDForUpdate reads the conversation with a row lock so
// competing assign/resolve/transfer calls for the same conversation serialize
// on the storage layer. Must be called inside a transaction.
func (r *PostgresConversationsRepository) GetConversationByIDForUpdate(
	ctx context.Context,
	id string,
	organizationID models.OrgID,
) (mo.Option[*models.Conversation], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(conversationsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.conversations
		WHERE id = $1 AND organization_id = $2
		FOR UPDATE`, columnsStr, r.schema)

	var conversation models.Conversation
	err := db.GetContext(ctx, &conversation, query, id, organizationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.Conversation](), nil
		}
		return mo.None[*models.Conversation](), fmt.Errorf("failed to get conversation for update: %w", err)
	}

	return mo.Some(&conversation), nil
}

func (r *PostgresConversationsRepository) GetConversationsByStatus(
	ctx context.Context,
	organizationID models.OrgID,
	status models.ConversationStatus,
) ([]*models.Conversation, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(conversationsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.conversations
		WHERE organization_id = $1 AND status = $2
		ORDER BY created_at ASC`, columnsStr, r.schema)

	var conversations []*models.Conversation
	err := db.SelectContext(ctx, &conversations, query, organizationID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversations by status: %w", err)
	}

	return conversations, nil
}

// UpdateConversationStatus sets the status and clears the assigned supporter.
// Used for the queued/escalated/resolved transitions where no supporter holds
// the conversation afterwards.
func (r *PostgresConversationsRepository) UpdateConversationStatus(
	ctx context.Context,
	id string,
	organizationID models.OrgID,
	status models.ConversationStatus,
) (bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.conversations
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2`, r.schema)

	result, err := db.ExecContext(ctx, query, id, organizationID, status)
	if err != nil {
		return false, fmt.Errorf("failed to update conversation status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// AssignConversation sets status to assigned and records the supporter.
func (r *PostgresConversationsRepository) AssignConversation(
	ctx context.Context,
	id string,
	organizationID models.OrgID,
	supporterID string,
) (bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.conversations
		SET status = 'assigned', assigned_supporter_id = $3, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2`, r.schema)

	result, err := db.ExecContext(ctx, query, id, organizationID, supporterID)
	if err != nil {
		return false, fmt.Errorf("failed to assign conversation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// MarkConversationEscalated records the bot handoff: status becomes escalated
// and the reason is stored. No-op on conversations already past escalation.
func (r *PostgresConversationsRepository) MarkConversationEscalated(
	ctx context.Context,
	id string,
	organizationID models.OrgID,
	reason *models.EscalationReason,
) (bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.conversations
		SET status = 'escalated', escalation_reason = $3, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND status IN ('unresolved', 'escalated', 'queued')`, r.schema)

	result, err := db.ExecContext(ctx, query, id, organizationID, reason)
	if err != nil {
		return false, fmt.Errorf("failed to mark conversation escalated: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ResolveConversation sets status to resolved and clears the assigned
// supporter. Returns false when the conversation was already resolved, which
// makes resolve idempotent for callers.
func (r *PostgresConversationsRepository) ResolveConversation(
	ctx context.Context,
	id string,
	organizationID models.OrgID,
) (bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.conversations
		SET status = 'resolved', assigned_supporter_id = NULL, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND status != 'resolved'`, r.schema)

	result, err := db.ExecContext(ctx, query, id, organizationID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve conversation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// IncrementBotTurns atomically bumps the bot reply counter and returns the
// new count, or None when the conversation does not exist.
func (r *PostgresConversationsRepository) IncrementBotTurns(
	ctx context.Context,
	id string,
	organizationID models.OrgID,
) (mo.Option[int], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.conversations
		SET bot_turns_count = bot_turns_count + 1, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2
		RETURNING bot_turns_count`, r.schema)

	var count int
	err := db.GetContext(ctx, &count, query, id, organizationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[int](), nil
		}
		return mo.None[int](), fmt.Errorf("failed to increment bot turns: %w", err)
	}

	return mo.Some(count), nil
}
