package repository

import (
	"context"
	stderrors "errors"
	"time"

	domrepo "SignalDesk/internal/domain/repository"
	"SignalDesk/pkg/errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

const systemEnabledKey = "system_enabled"

type systemEnabledValue struct {
	Enabled bool `json:"enabled"`
}

// PostgresSettingsRepository reads and writes the system_settings table.
type PostgresSettingsRepository struct {
	db PgxDB
}

var _ domrepo.SettingsRepository = (*PostgresSettingsRepository)(nil)

func NewPostgresSettingsRepository(db PgxDB) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{db: db}
}

// GetSystemEnabled reports true when the row is missing.
func (r *PostgresSettingsRepository) GetSystemEnabled(ctx context.Context) (bool, error) {
	q, args, err := psql.Select("value").From("system_settings").Where(sq.Eq{"key": systemEnabledKey}).ToSql()
	if err != nil {
		return true, errors.Wrap(errors.ErrCodeQueryFailed, "build get setting", err)
	}
	var v systemEnabledValue
	if err := r.db.QueryRow(ctx, q, args...).Scan(&v); err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return true, nil
		}
		return true, errors.Wrap(errors.ErrCodeQueryFailed, "get system enabled", err)
	}
	return v.Enabled, nil
}

func (r *PostgresSettingsRepository) SetSystemEnabled(ctx context.Context, enabled bool) error {
	q, args, err := buildSetSystemEnabled(enabled, time.Now().UTC())
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "build set setting", err)
	}
	if _, err := r.db.Exec(ctx, q, args...); err != nil {
		return errors.Wrap(errors.ErrCodePersistFailed, "set system enabled", err)
	}
	return nil
}

func buildSetSystemEnabled(enabled bool, now time.Time) (string, []any, error) {
	return psql.Insert("system_settings").
		Columns("key", "value", "updated_at").
		Values(systemEnabledKey, systemEnabledValue{Enabled: enabled}, now).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at").
		ToSql()
}
