package repository

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"SignalDesk/internal/domain/models"
	"SignalDesk/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakeDB struct {
	execTag  string
	execErr  error
	row      fakeRow
	queryErr error

	lastSQL  string
	lastArgs []any
}

func (d *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.lastSQL, d.lastArgs = sql, args
	return pgconn.NewCommandTag(d.execTag), d.execErr
}

func (d *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	d.lastSQL, d.lastArgs = sql, args
	return nil, d.queryErr
}

func (d *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	d.lastSQL, d.lastArgs = sql, args
	return d.row
}

func noRows() fakeRow {
	return fakeRow{scan: func(...any) error { return pgx.ErrNoRows }}
}

var tNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestBuildInsertSignal(t *testing.T) {
	s := &models.Signal{
		ID:        "s1",
		Pair:      "BTC/USDT",
		Direction: models.DirectionBuy,
		Timeframe: 1,
		EntryTime: tNow,
		Source:    models.SourceAutomation,
	}
	q, args, err := buildInsertSignal(s, tNow)
	require.NoError(t, err)
	assert.Contains(t, q, "INSERT INTO signals")
	assert.Contains(t, q, "ON CONFLICT (id) DO NOTHING")
	assert.Contains(t, q, "$17")
	require.Len(t, args, len(signalColumns))

	assert.Nil(t, args[7], "exit_price stays null while pending")
	assert.Nil(t, args[8], "result stays null while pending")
	assert.Nil(t, args[9], "profit_loss stays null while pending")
	assert.Nil(t, args[12], "no admin signal id")
	assert.Equal(t, []string{}, args[13])
	assert.Equal(t, string(models.ProcessingPending), args[14])
	assert.Equal(t, tNow, args[15])
}

func TestBuildResolveSignalOnlyTouchesPending(t *testing.T) {
	out := models.Outcome{EntryPrice: 100, ExitPrice: 101, Result: models.ResultWin, ProfitLoss: 1}
	q, args, err := buildResolveSignal("s1", out, tNow)
	require.NoError(t, err)
	assert.Contains(t, q, "UPDATE signals SET")
	assert.Contains(t, q, "result IS NULL")
	assert.Contains(t, q, "id = $7")
	assert.Equal(t, []any{100.0, 101.0, "win", 1.0, "completed", tNow, "s1"}, args)
}

func TestBuildListSignals(t *testing.T) {
	q, args, err := buildListSignals(50)
	require.NoError(t, err)
	assert.Contains(t, q, "ORDER BY entry_time DESC")
	assert.Contains(t, q, "LIMIT 50")
	assert.Empty(t, args)

	q, _, err = buildListSignals(0)
	require.NoError(t, err)
	assert.NotContains(t, q, "LIMIT")
}

func TestUpdateSignalResultReportsWinner(t *testing.T) {
	db := &fakeDB{execTag: "UPDATE 1"}
	repo := NewPostgresSignalRepository(db, nil)

	ok, err := repo.UpdateSignalResult(context.Background(), "s1", models.Outcome{Result: models.ResultLoss})
	require.NoError(t, err)
	assert.True(t, ok)

	db.execTag = "UPDATE 0"
	ok, err = repo.UpdateSignalResult(context.Background(), "s1", models.Outcome{Result: models.ResultLoss})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateSignalResultPersistFailed(t *testing.T) {
	db := &fakeDB{execErr: stderrors.New("conn reset")}
	repo := NewPostgresSignalRepository(db, nil)

	_, err := repo.UpdateSignalResult(context.Background(), "s1", models.Outcome{})
	assert.True(t, errors.HasCode(err, errors.ErrCodePersistFailed))
}

func TestGetSignalByIDNotFound(t *testing.T) {
	repo := NewPostgresSignalRepository(&fakeDB{row: noRows()}, nil)

	_, err := repo.GetSignalByID(context.Background(), "missing")
	assert.True(t, errors.HasCode(err, errors.ErrCodeDataNotFound))
}

func TestGetSignalByIDScansNullableColumns(t *testing.T) {
	row := fakeRow{scan: func(dest ...any) error {
		*dest[0].(*string) = "s1"
		*dest[1].(*string) = "BTC/USDT"
		*dest[2].(*string) = "sell"
		*dest[3].(*int) = 5
		*dest[4].(*float64) = 80
		*dest[5].(*time.Time) = tNow
		*dest[6].(*float64) = 100
		*dest[10].(*string) = "admin"
		*dest[11].(*string) = "admin"
		*dest[14].(*string) = "pending"
		return nil
	}}
	repo := NewPostgresSignalRepository(&fakeDB{row: row}, nil)

	s, err := repo.GetSignalByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, models.DirectionSell, s.Direction)
	assert.Equal(t, models.ResultNone, s.Result)
	assert.Zero(t, s.ExitPrice)
	assert.Empty(t, s.AdminSignalID)
	assert.Equal(t, models.SourceAdmin, s.Source)
	assert.False(t, s.IsResolved())
}

func TestBuildAdminSignalQuery(t *testing.T) {
	q, args, err := buildAdminSignalQuery(models.AdminSignalFilter{
		Status: models.AdminPending,
		Pair:   "btc/usdt",
		From:   tNow.Add(-time.Minute),
		To:     tNow.Add(3 * time.Minute),
		Limit:  10,
	})
	require.NoError(t, err)
	assert.Contains(t, q, "status = $1")
	assert.Contains(t, q, "upper(pair) = $2")
	assert.Contains(t, q, "scheduled_time >= $3")
	assert.Contains(t, q, "scheduled_time <= $4")
	assert.Contains(t, q, "ORDER BY scheduled_time ASC")
	assert.Contains(t, q, "LIMIT 10")
	assert.Equal(t, []any{"pending", "BTC/USDT", tNow.Add(-time.Minute), tNow.Add(3 * time.Minute)}, args)

	q, args, err = buildAdminSignalQuery(models.AdminSignalFilter{})
	require.NoError(t, err)
	assert.NotContains(t, q, "WHERE")
	assert.Empty(t, args)
}

func TestAdminTransitionOnlyFromPending(t *testing.T) {
	q, args, err := buildAdminTransition("a1", models.AdminPending, models.AdminExecuted, tNow)
	require.NoError(t, err)
	assert.Contains(t, q, "UPDATE admin_signals SET status = $1")
	assert.Equal(t, []any{"executed", tNow, "a1", "pending"}, args)

	db := &fakeDB{execTag: "UPDATE 0"}
	repo := NewPostgresAdminSignalRepository(db, nil)
	ok, err := repo.MarkAdminSignalExecuted(context.Background(), "a1")
	require.NoError(t, err)
	assert.False(t, ok)

	db.execTag = "UPDATE 1"
	ok, err = repo.MarkAdminSignalExpired(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "expired", db.lastArgs[0])
}

func TestReopenAdminSignalOnlyFromExecuted(t *testing.T) {
	db := &fakeDB{execTag: "UPDATE 1"}
	repo := NewPostgresAdminSignalRepository(db, nil)
	repo.now = func() time.Time { return tNow }

	ok, err := repo.ReopenAdminSignal(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []any{"pending", tNow, "a1", "executed"}, db.lastArgs)
}

func TestCreateAdminSignalFillsDefaults(t *testing.T) {
	db := &fakeDB{execTag: "INSERT 0 1"}
	repo := NewPostgresAdminSignalRepository(db, nil)
	repo.now = func() time.Time { return tNow }

	a := &models.AdminSignal{Pair: "BTC/USDT", Direction: models.DirectionBuy, ScheduledTime: tNow, Timeframe: 1}
	require.NoError(t, repo.CreateAdminSignal(context.Background(), a))
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, models.AdminPending, a.Status)
	assert.Equal(t, tNow, a.CreatedAt)
	assert.Contains(t, db.lastSQL, "INSERT INTO admin_signals")
}

func TestDeleteAdminSignalMissing(t *testing.T) {
	repo := NewPostgresAdminSignalRepository(&fakeDB{execTag: "DELETE 0"}, nil)
	err := repo.DeleteAdminSignal(context.Background(), "a1")
	assert.True(t, errors.HasCode(err, errors.ErrCodeDataNotFound))
}

func TestSystemEnabledDefaultsToTrue(t *testing.T) {
	repo := NewPostgresSettingsRepository(&fakeDB{row: noRows()})
	enabled, err := repo.GetSystemEnabled(context.Background())
	require.NoError(t, err)
	assert.True(t, enabled)

	repo = NewPostgresSettingsRepository(&fakeDB{row: fakeRow{scan: func(...any) error { return stderrors.New("down") }}})
	enabled, err = repo.GetSystemEnabled(context.Background())
	require.Error(t, err)
	assert.True(t, enabled)
}

func TestSystemEnabledReadsValue(t *testing.T) {
	row := fakeRow{scan: func(dest ...any) error {
		dest[0].(*systemEnabledValue).Enabled = false
		return nil
	}}
	repo := NewPostgresSettingsRepository(&fakeDB{row: row})
	enabled, err := repo.GetSystemEnabled(context.Background())
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestSetSystemEnabledUpserts(t *testing.T) {
	db := &fakeDB{execTag: "INSERT 0 1"}
	require.NoError(t, NewPostgresSettingsRepository(db).SetSystemEnabled(context.Background(), false))
	assert.Contains(t, db.lastSQL, "ON CONFLICT (key) DO UPDATE")
	assert.Equal(t, "system_enabled", db.lastArgs[0])
	assert.Equal(t, systemEnabledValue{Enabled: false}, db.lastArgs[1])
}
