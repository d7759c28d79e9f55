package repository

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	"SignalDesk/pkg/errors"
	applogger "SignalDesk/pkg/logger"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var adminSignalColumns = []string{
	"id", "pair", "direction", "scheduled_time", "timeframe", "status", "created_at", "updated_at",
}

// PostgresAdminSignalRepository stores operator-scheduled signals in the
// admin_signals table.
type PostgresAdminSignalRepository struct {
	db  PgxDB
	log *applogger.Logger
	now func() time.Time
}

var _ domrepo.AdminSignalRepository = (*PostgresAdminSignalRepository)(nil)

func NewPostgresAdminSignalRepository(db PgxDB, log *applogger.Logger) *PostgresAdminSignalRepository {
	if log == nil {
		log = applogger.Nop()
	}
	return &PostgresAdminSignalRepository{db: db, log: log.Component("admin-signal-repo"), now: time.Now}
}

func (r *PostgresAdminSignalRepository) GetAdminSignals(ctx context.Context, f models.AdminSignalFilter) ([]*models.AdminSignal, error) {
	q, args, err := buildAdminSignalQuery(f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "build admin signals", err)
	}
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		r.log.Error("query admin signals", applogger.Error(err))
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "query admin signals", err)
	}
	defer rows.Close()

	out := make([]*models.AdminSignal, 0)
	for rows.Next() {
		a, err := scanAdminSignal(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "scan admin signal", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "rows", err)
	}
	return out, nil
}

func (r *PostgresAdminSignalRepository) GetAdminSignalByID(ctx context.Context, id string) (*models.AdminSignal, error) {
	q, args, err := psql.Select(adminSignalColumns...).From("admin_signals").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "build get admin signal", err)
	}
	a, err := scanAdminSignal(r.db.QueryRow(ctx, q, args...))
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Newf(errors.ErrCodeDataNotFound, "admin signal %s not found", id)
		}
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "get admin signal", err)
	}
	return a, nil
}

func (r *PostgresAdminSignalRepository) MarkAdminSignalExecuted(ctx context.Context, id string) (bool, error) {
	return r.transition(ctx, id, models.AdminPending, models.AdminExecuted)
}

func (r *PostgresAdminSignalRepository) MarkAdminSignalExpired(ctx context.Context, id string) (bool, error) {
	return r.transition(ctx, id, models.AdminPending, models.AdminExpired)
}

// ReopenAdminSignal undoes an execution whose signal could not be written.
func (r *PostgresAdminSignalRepository) ReopenAdminSignal(ctx context.Context, id string) (bool, error) {
	return r.transition(ctx, id, models.AdminExecuted, models.AdminPending)
}

// transition moves a row from one status to another. Only one caller can win.
func (r *PostgresAdminSignalRepository) transition(ctx context.Context, id string, from, status models.AdminStatus) (bool, error) {
	q, args, err := buildAdminTransition(id, from, status, r.now().UTC())
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeQueryFailed, "build admin transition", err)
	}
	tag, err := r.db.Exec(ctx, q, args...)
	if err != nil {
		r.log.Error("admin signal transition",
			applogger.String("id", id),
			applogger.String("status", string(status)),
			applogger.Error(err))
		return false, errors.Wrap(errors.ErrCodePersistFailed, "admin signal transition", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresAdminSignalRepository) CreateAdminSignal(ctx context.Context, a *models.AdminSignal) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := r.now().UTC()
	if a.Status == "" {
		a.Status = models.AdminPending
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	q, args, err := psql.Insert("admin_signals").
		Columns(adminSignalColumns...).
		Values(a.ID, a.Pair, string(a.Direction), a.ScheduledTime.UTC(), a.Timeframe, string(a.Status), a.CreatedAt, a.UpdatedAt).
		ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "build insert admin signal", err)
	}
	if _, err := r.db.Exec(ctx, q, args...); err != nil {
		r.log.Error("insert admin signal", applogger.String("id", a.ID), applogger.Error(err))
		return errors.Wrap(errors.ErrCodePersistFailed, "insert admin signal", err)
	}
	return nil
}

func (r *PostgresAdminSignalRepository) DeleteAdminSignal(ctx context.Context, id string) error {
	q, args, err := psql.Delete("admin_signals").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "build delete admin signal", err)
	}
	tag, err := r.db.Exec(ctx, q, args...)
	if err != nil {
		return errors.Wrap(errors.ErrCodePersistFailed, "delete admin signal", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Newf(errors.ErrCodeDataNotFound, "admin signal %s not found", id)
	}
	return nil
}

func buildAdminSignalQuery(f models.AdminSignalFilter) (string, []any, error) {
	b := psql.Select(adminSignalColumns...).From("admin_signals").OrderBy("scheduled_time ASC")
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.Pair != "" {
		b = b.Where(sq.Eq{"upper(pair)": strings.ToUpper(f.Pair)})
	}
	if !f.From.IsZero() {
		b = b.Where(sq.GtOrEq{"scheduled_time": f.From.UTC()})
	}
	if !f.To.IsZero() {
		b = b.Where(sq.LtOrEq{"scheduled_time": f.To.UTC()})
	}
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}
	return b.ToSql()
}

func buildAdminTransition(id string, from, status models.AdminStatus, now time.Time) (string, []any, error) {
	return psql.Update("admin_signals").
		Set("status", string(status)).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": string(from)}).
		ToSql()
}

func scanAdminSignal(row pgx.Row) (*models.AdminSignal, error) {
	var (
		a         models.AdminSignal
		direction string
		status    string
	)
	if err := row.Scan(&a.ID, &a.Pair, &direction, &a.ScheduledTime, &a.Timeframe, &status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if d, ok := models.ParseDirection(direction); ok {
		a.Direction = d
	}
	a.Status = models.AdminStatus(strings.ToLower(status))
	return &a, nil
}
