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

type PostgresAssignmentsRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for conversation_assignments table
var assignmentsColumns = []string{
	"id",
	"conversation_id",
	"supporter_id",
	"organization_id",
	"assigned_by",
	"status",
	"assigned_at",
	"resolved_at",
}

func NewPostgresAssignmentsRepository(db *sqlx.DB, schema string) *PostgresAssignmentsRepository {
	return &PostgresAssignmentsRepository{db: db, schema: schema}
}

// CreateAssignment inserts a new active history row. The partial unique index
// on (conversation_id) WHERE status = 'active' enforces the at-most-one-active
// invariant even under racing writers.
func (r *PostgresAssignmentsRepository) CreateAssignment(
	ctx context.Context,
	assignment *models.ConversationAssignment,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	returningStr := strings.Join(assignmentsColumns, ", ")

	query := fmt.Sprintf(`
		INSERT INTO %s.conversation_assignments (id, conversation_id, supporter_id, organization_id, assigned_by, status, assigned_at)
		VALUES ($1, $2, $3, $4, $5, 'active', NOW())
		RETURNING %s`, r.schema, returningStr)

	err := db.QueryRowxContext(ctx, query,
		assignment.ID, assignment.ConversationID, assignment.SupporterID,
		assignment.OrgID, assignment.AssignedBy).
		StructScan(assignment)
	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	return nil
}

func (r *PostgresAssignmentsRepository) GetActiveAssignmentByConversation(
	ctx context.Context,
	conversationID string,
	organizationID models.OrgID,
) (mo.Option[*models.ConversationAssignment], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(assignmentsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.conversation_assignments
		WHERE conversation_id = $1 AND organization_id = $2 AND status = 'active'`, columnsStr, r.schema)

	var assignment models.ConversationAssignment
	err := db.GetContext(ctx, &assignment, query, conversationID, organizationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.ConversationAssignment](), nil
		}
		return mo.None[*models.ConversationAssignment](), fmt.Errorf("failed to get active assignment: %w", err)
	}

	return mo.Some(&assignment), nil
}

// CloseActiveAssignment closes the conversation's active row (if any) with the
// given terminal status and returns it. Used both for transfer and resolve.
func (r *PostgresAssignmentsRepository) CloseActiveAssignment(
	ctx context.Context,
	conversationID string,
	organizationID models.OrgID,
	closeStatus models.AssignmentStatus,
) (mo.Option[*models.ConversationAssignment], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	returningStr := strings.Join(assignmentsColumns, ", ")

	query := fmt.Sprintf(`
		UPDATE %s.conversation_assignments
		SET status = $3, resolved_at = NOW()
		WHERE conversation_id = $1 AND organization_id = $2 AND status = 'active'
		RETURNING %s`, r.schema, returningStr)

	var assignment models.ConversationAssignment
	err := db.QueryRowxContext(ctx, query, conversationID, organizationID, closeStatus).
		StructScan(&assignment)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.ConversationAssignment](), nil
		}
		return mo.None[*models.ConversationAssignment](), fmt.Errorf("failed to close active assignment: %w", err)
	}

	return mo.Some(&assignment), nil
}

// GetMostRecentActiveAssignment returns the newest active row for the org.
// Its supporter is the round-robin cursor.
func (r *PostgresAssignmentsRepository) GetMostRecentActiveAssignment(
	ctx context.Context,
	organizationID models.OrgID,
) (mo.Option[*models.ConversationAssignment], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(assignmentsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.conversation_assignments
		WHERE organization_id = $1 AND status = 'active'
		ORDER BY assigned_at DESC
		LIMIT 1`, columnsStr, r.schema)

	var assignment models.ConversationAssignment
	err := db.GetContext(ctx, &assignment, query, organizationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.ConversationAssignment](), nil
		}
		return mo.None[*models.ConversationAssignment](), fmt.Errorf("failed to get most recent active assignment: %w", err)
	}

	return mo.Some(&assignment), nil
}

// CountActiveAssignmentsBySupporter returns how many active rows reference the
// supporter. Only used by tests and reconciliation checks; the hot path reads
// the presence counter instead.
func (r *PostgresAssignmentsRepository) CountActiveAssignmentsBySupporter(
	ctx context.Context,
	supporterID string,
	organizationID models.OrgID,
) (int, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM %s.conversation_assignments
		WHERE supporter_id = $1 AND organization_id = $2 AND status = 'active'`, r.schema)

	var count int
	err := db.GetContext(ctx, &count, query, supporterID, organizationID)
	if err != nil {
		return 0, fmt.Errorf("failed to count active assignments: %w", err)
	}

	return count, nil
}

func (r *PostgresAssignmentsRepository) GetAssignmentHistoryByConversation(
	ctx context.Context,
	conversationID string,
	organizationID models.OrgID,
) ([]*models.ConversationAssignment, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(assignmentsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.conversation_assignments
		WHERE conversation_id = $1 AND organization_id = $2
		ORDER BY assigned_at ASC`, columnsStr, r.schema)

	var assignments []*models.ConversationAssignment
	err := db.SelectContext(ctx, &assignments, query, conversationID, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment history: %w", err)
	}

	return assignments, nil
}
