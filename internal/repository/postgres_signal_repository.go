package repository

import (
	"context"
	stderrors "errors"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	"SignalDesk/pkg/errors"
	applogger "SignalDesk/pkg/logger"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

var signalColumns = []string{
	"id", "pair", "direction", "timeframe", "confidence",
	"entry_time", "entry_price", "exit_price", "result", "profit_loss",
	"strategy", "source", "admin_signal_id", "factors", "processing_status",
	"created_at", "updated_at",
}

// PostgresSignalRepository stores signals in the signals table. A null
// result column means the signal is still pending.
type PostgresSignalRepository struct {
	db  PgxDB
	log *applogger.Logger
	now func() time.Time
}

var _ domrepo.SignalRepository = (*PostgresSignalRepository)(nil)

func NewPostgresSignalRepository(db PgxDB, log *applogger.Logger) *PostgresSignalRepository {
	if log == nil {
		log = applogger.Nop()
	}
	return &PostgresSignalRepository{db: db, log: log.Component("signal-repo"), now: time.Now}
}

func (r *PostgresSignalRepository) CreateSignal(ctx context.Context, s *models.Signal) (*models.Signal, error) {
	q, args, err := buildInsertSignal(s, r.now().UTC())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "build insert signal", err)
	}
	if _, err := r.db.Exec(ctx, q, args...); err != nil {
		r.log.Error("insert signal", applogger.String("id", s.ID), applogger.Error(err))
		return nil, errors.Wrap(errors.ErrCodePersistFailed, "insert signal", err)
	}
	return r.GetSignalByID(ctx, s.ID)
}

func (r *PostgresSignalRepository) GetSignalByID(ctx context.Context, id string) (*models.Signal, error) {
	q, args, err := psql.Select(signalColumns...).From("signals").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "build get signal", err)
	}
	s, err := scanSignal(r.db.QueryRow(ctx, q, args...))
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Newf(errors.ErrCodeDataNotFound, "signal %s not found", id)
		}
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "get signal", err)
	}
	return s, nil
}

// UpdateSignalResult writes the outcome only while the stored result is
// null, so the first writer wins.
func (r *PostgresSignalRepository) UpdateSignalResult(ctx context.Context, id string, out models.Outcome) (bool, error) {
	q, args, err := buildResolveSignal(id, out, r.now().UTC())
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeQueryFailed, "build resolve signal", err)
	}
	tag, err := r.db.Exec(ctx, q, args...)
	if err != nil {
		r.log.Error("update signal result", applogger.String("id", id), applogger.Error(err))
		return false, errors.Wrap(errors.ErrCodePersistFailed, "update signal result", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresSignalRepository) GetPendingSignals(ctx context.Context) ([]*models.Signal, error) {
	q, args, err := psql.Select(signalColumns...).
		From("signals").
		Where(sq.Eq{"result": nil}).
		OrderBy("entry_time ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "build pending signals", err)
	}
	return r.list(ctx, q, args)
}

func (r *PostgresSignalRepository) GetAllSignals(ctx context.Context, limit int) ([]*models.Signal, error) {
	q, args, err := buildListSignals(limit)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "build list signals", err)
	}
	return r.list(ctx, q, args)
}

func (r *PostgresSignalRepository) list(ctx context.Context, q string, args []any) ([]*models.Signal, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "query signals", err)
	}
	defer rows.Close()

	out := make([]*models.Signal, 0)
	for rows.Next() {
		s, err := scanSignal(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "scan signal", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "rows", err)
	}
	return out, nil
}

// buildInsertSignal ignores a conflicting id; the caller reads the stored
// row back.
func buildInsertSignal(s *models.Signal, now time.Time) (string, []any, error) {
	factors := s.Factors
	if factors == nil {
		factors = []string{}
	}
	status := s.ProcessingStatus
	if status == "" {
		status = models.ProcessingPending
	}
	created := s.CreatedAt
	if created.IsZero() {
		created = now
	}
	return psql.Insert("signals").
		Columns(signalColumns...).
		Values(
			s.ID, s.Pair, string(s.Direction), s.Timeframe, s.Confidence,
			s.EntryTime.UTC(), s.EntryPrice, nullableFloat(s.ExitPrice), nullableString(string(s.Result)), resultPL(s),
			s.Strategy, string(s.Source), nullableString(s.AdminSignalID), factors, string(status),
			created, now,
		).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
}

func buildResolveSignal(id string, out models.Outcome, now time.Time) (string, []any, error) {
	return psql.Update("signals").
		Set("entry_price", out.EntryPrice).
		Set("exit_price", out.ExitPrice).
		Set("result", string(out.Result)).
		Set("profit_loss", out.ProfitLoss).
		Set("processing_status", string(models.ProcessingCompleted)).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "result": nil}).
		ToSql()
}

func buildListSignals(limit int) (string, []any, error) {
	b := psql.Select(signalColumns...).From("signals").OrderBy("entry_time DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return b.ToSql()
}

// resultPL keeps profit_loss null until the signal has a result.
func resultPL(s *models.Signal) *float64 {
	if !s.IsResolved() {
		return nil
	}
	v := s.ProfitLoss
	return &v
}

func scanSignal(row pgx.Row) (*models.Signal, error) {
	var (
		s          models.Signal
		direction  string
		exitPrice  *float64
		result     *string
		profitLoss *float64
		source     string
		adminID    *string
		status     string
	)
	if err := row.Scan(
		&s.ID, &s.Pair, &direction, &s.Timeframe, &s.Confidence,
		&s.EntryTime, &s.EntryPrice, &exitPrice, &result, &profitLoss,
		&s.Strategy, &source, &adminID, &s.Factors, &status,
		&s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Direction = models.Direction(direction)
	s.ExitPrice = derefFloat(exitPrice)
	s.Result = models.Result(derefString(result))
	s.ProfitLoss = derefFloat(profitLoss)
	s.Source = models.Source(source)
	s.AdminSignalID = derefString(adminID)
	s.ProcessingStatus = models.ProcessingStatus(status)
	return &s, nil
}
