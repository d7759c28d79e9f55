package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	pkgch "SignalDesk/pkg/clickhouse"
)

// CHSignalArchive appends resolved signals to a ReplacingMergeTree keyed by
// id, so a repeated archive of the same signal collapses on merge.
type CHSignalArchive struct {
	db    *sql.DB
	table string
}

var _ domrepo.SignalArchive = (*CHSignalArchive)(nil)

func NewCHSignalArchive(ch *pkgch.Client, database string) *CHSignalArchive {
	return &CHSignalArchive{db: ch.DB(), table: archiveTable(database)}
}

func (a *CHSignalArchive) Archive(ctx context.Context, s *models.Signal) error {
	return a.ArchiveBatch(ctx, []*models.Signal{s})
}

// ArchiveBatch inserts resolved signals in chunks. Pending ones are skipped.
func (a *CHSignalArchive) ArchiveBatch(ctx context.Context, signals []*models.Signal) error {
	const chunkSize = 500
	for start := 0; start < len(signals); start += chunkSize {
		end := start + chunkSize
		if end > len(signals) {
			end = len(signals)
		}
		q, args := archiveInsert(a.table, signals[start:end])
		if q == "" {
			continue
		}
		if _, err := a.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("archive signals: %w", err)
		}
	}
	return nil
}

func archiveTable(database string) string {
	if database == "" {
		return "signal_results"
	}
	return database + ".signal_results"
}

const archiveColumns = "id, pair, direction, timeframe, confidence, entry_time, entry_price, exit_price, result, profit_loss, strategy, source, admin_signal_id, resolved_at"

func archiveInsert(table string, signals []*models.Signal) (string, []any) {
	values := make([]string, 0, len(signals))
	args := make([]any, 0, len(signals)*14)
	for _, s := range signals {
		if s == nil || !s.IsResolved() {
			continue
		}
		resolved := s.UpdatedAt
		if resolved.IsZero() {
			resolved = time.Now().UTC()
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			s.ID,
			s.Pair,
			string(s.Direction),
			uint16(s.Timeframe),
			s.Confidence,
			s.EntryTime.UTC(),
			s.EntryPrice,
			s.ExitPrice,
			string(s.Result),
			s.ProfitLoss,
			s.Strategy,
			string(s.Source),
			s.AdminSignalID,
			resolved.UTC(),
		)
	}
	if len(values) == 0 {
		return "", nil
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, archiveColumns, strings.Join(values, ",")), args
}

// ArchiveSchema is the DDL for the resolved signal table.
func ArchiveSchema(database string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id String,
            pair LowCardinality(String),
            direction LowCardinality(String),
            timeframe UInt16,
            confidence Float64,
            entry_time DateTime64(3, 'UTC'),
            entry_price Float64,
            exit_price Float64,
            result LowCardinality(String),
            profit_loss Float64,
            strategy LowCardinality(String),
            source LowCardinality(String),
            admin_signal_id String,
            resolved_at DateTime64(3, 'UTC')
        ) ENGINE = ReplacingMergeTree(resolved_at)
        ORDER BY (pair, entry_time, id)`, archiveTable(database)),
	}
}
