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

type PostgresOrgSettingsRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for organization_settings table
var orgSettingsColumns = []string{
	"organization_id",
	"auto_assign_enabled",
	"auto_assign_strategy",
	"require_online_for_auto",
	"fallback_if_no_online",
	"max_concurrent_per_supporter",
	"supporter_scope_mode",
	"created_at",
	"updated_at",
}

func NewPostgresOrgSettingsRepository(db *sqlx.DB, schema string) *PostgresOrgSettingsRepository {
	return &PostgresOrgSettingsRepository{db: db, schema: schema}
}

func (r *PostgresOrgSettingsRepository) GetSettingsByOrganizationID(
	ctx context.Context,
	organizationID models.OrgID,
) (mo.Option[*models.OrganizationSettings], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(orgSettingsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.organization_settings
		WHERE organization_id = $1`, columnsStr, r.schema)

	var settings models.OrganizationSettings
	err := db.GetContext(ctx, &settings, query, organizationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.OrganizationSettings](), nil
		}
		return mo.None[*models.OrganizationSettings](), fmt.Errorf("failed to get organization settings: %w", err)
	}

	return mo.Some(&settings), nil
}

func (r *PostgresOrgSettingsRepository) UpsertSettings(
	ctx context.Context,
	settings *models.OrganizationSettings,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	returningStr := strings.Join(orgSettingsColumns, ", ")

	query := fmt.Sprintf(`
		INSERT INTO %s.organization_settings (
			organization_id, auto_assign_enabled, auto_assign_strategy,
			require_online_for_auto, fallback_if_no_online,
			max_concurrent_per_supporter, supporter_scope_mode, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (organization_id)
		DO UPDATE SET
			auto_assign_enabled = EXCLUDED.auto_assign_enabled,
			auto_assign_strategy = EXCLUDED.auto_assign_strategy,
			require_online_for_auto = EXCLUDED.require_online_for_auto,
			fallback_if_no_online = EXCLUDED.fallback_if_no_online,
			max_concurrent_per_supporter = EXCLUDED.max_concurrent_per_supporter,
			supporter_scope_mode = EXCLUDED.supporter_scope_mode,
			updated_at = NOW()
		RETURNING %s`, r.schema, returningStr)

	err := db.QueryRowxContext(ctx, query,
		settings.OrgID, settings.AutoAssignEnabled, settings.AutoAssignStrategy,
		settings.RequireOnlineForAuto, settings.FallbackIfNoOnline,
		settings.MaxConcurrentPerSupporter, settings.SupporterScopeMode).
		StructScan(settings)
	if err != nil {
		return fmt.Errorf("failed to upsert organization settings: %w", err)
	}

	return nil
}
