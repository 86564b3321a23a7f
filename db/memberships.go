package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/mo"

	dbtx "deskbackend/db/tx"
	"deskbackend/models"
)

type PostgresMembershipsRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for organization_memberships table
var membershipsColumns = []string{
	"id",
	"organization_id",
	"user_id",
	"role",
	"created_at",
}

func NewPostgresMembershipsRepository(db *sqlx.DB, schema string) *PostgresMembershipsRepository {
	return &PostgresMembershipsRepository{db: db, schema: schema}
}

func (r *PostgresMembershipsRepository) CreateMembership(
	ctx context.Context,
	membership *models.OrganizationMembership,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	returningStr := strings.Join(membershipsColumns, ", ")

	query := fmt.Sprintf(`
		INSERT INTO %s.organization_memberships (id, organization_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING %s`, r.schema, returningStr)

	err := db.QueryRowxContext(ctx, query,
		membership.ID, membership.OrgID, membership.UserID, membership.Role).
		StructScan(membership)
	if err != nil {
		return fmt.Errorf("failed to create membership: %w", err)
	}

	return nil
}

// GetSupporterMemberships returns the org members eligible for the candidate
// pool: supporters and admins.
func (r *PostgresMembershipsRepository) GetSupporterMemberships(
	ctx context.Context,
	organizationID models.OrgID,
) ([]*models.OrganizationMembership, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(membershipsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.organization_memberships
		WHERE organization_id = $1 AND role = ANY($2)
		ORDER BY created_at ASC`, columnsStr, r.schema)

	roles := []string{string(models.MembershipRoleSupporter), string(models.MembershipRoleAdmin)}

	var memberships []*models.OrganizationMembership
	err := db.SelectContext(ctx, &memberships, query, organizationID, pq.Array(roles))
	if err != nil {
		return nil, fmt.Errorf("failed to get supporter memberships: %w", err)
	}

	return memberships, nil
}

func (r *PostgresMembershipsRepository) GetMembershipByUserID(
	ctx context.Context,
	userID string,
	organizationID models.OrgID,
) (mo.Option[*models.OrganizationMembership], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(membershipsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.organization_memberships
		WHERE user_id = $1 AND organization_id = $2`, columnsStr, r.schema)

	var membership models.OrganizationMembership
	err := db.GetContext(ctx, &membership, query, userID, organizationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.OrganizationMembership](), nil
		}
		return mo.None[*models.OrganizationMembership](), fmt.Errorf("failed to get membership: %w", err)
	}

	return mo.Some(&membership), nil
}
