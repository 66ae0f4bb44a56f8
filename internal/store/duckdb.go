package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signal/internal/logger"
	"github.com/rxtech-lab/argo-signal/internal/types"
	"github.com/rxtech-lab/argo-signal/pkg/errors"
)

// DuckDBStore implements StrategyStore on an embedded DuckDB database. Pass
// ":memory:" as the path for an ephemeral store.
type DuckDBStore struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

func NewDuckDBStore(path string, l *logger.Logger) (*DuckDBStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreDisconnect, "failed to open database", err)
	}

	s := &DuckDBStore{
		db:     db,
		logger: l,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := s.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return s, nil
}

func (s *DuckDBStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS backtests (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			interval TEXT NOT NULL,
			strategy_type TEXT NOT NULL,
			params TEXT NOT NULL,
			initial_capital DOUBLE NOT NULL,
			created_at TIMESTAMP NOT NULL,
			final_portfolio_value DOUBLE,
			total_return_pct DOUBLE,
			sharpe_ratio DOUBLE,
			result TEXT
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to create backtests table", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS live_strategies (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			interval TEXT NOT NULL,
			strategy_type TEXT NOT NULL,
			params TEXT NOT NULL,
			initial_capital DOUBLE NOT NULL,
			created_at TIMESTAMP NOT NULL,
			backtest_id TEXT NOT NULL,
			is_active BOOLEAN NOT NULL,
			last_check_time TIMESTAMP,
			last_signal_time TIMESTAMP,
			error_count INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to create live_strategies table", err)
	}

	return nil
}

func (s *DuckDBStore) SaveBacktest(ctx context.Context, record types.BacktestRecord) error {
	if record.Result == nil {
		return errors.New(errors.ErrCodeInvalidParameter, "backtest record has no result")
	}

	params, err := json.Marshal(record.Params)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to encode strategy params", err)
	}

	result, err := json.Marshal(record.Result)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to encode backtest result", err)
	}

	query := s.sq.
		Insert("backtests").
		Columns(
			"id", "user_id", "symbol", "interval", "strategy_type", "params",
			"initial_capital", "created_at", "final_portfolio_value",
			"total_return_pct", "sharpe_ratio", "result",
		).
		Values(
			record.ID, record.UserID, record.Symbol, string(record.Interval),
			string(record.StrategyType), string(params), record.InitialCapital,
			record.CreatedAt, record.Result.FinalPortfolioValue,
			record.Result.TotalReturnPercentage, record.Result.SharpeRatio,
			string(result),
		).
		RunWith(s.db)

	if _, err := query.ExecContext(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to insert backtest", err)
	}

	s.logger.Debug("saved backtest",
		zap.String("backtest_id", record.ID),
		zap.String("user_id", record.UserID))

	return nil
}

func (s *DuckDBStore) GetBacktest(ctx context.Context, userID, id string) (types.BacktestRecord, error) {
	query := s.sq.
		Select(backtestColumns...).
		From("backtests").
		Where(squirrel.Eq{"id": id}).
		RunWith(s.db)

	record, err := scanBacktest(query.QueryRowContext(ctx))
	if err == sql.ErrNoRows {
		return types.BacktestRecord{}, errors.Newf(errors.ErrCodeNotFound, "backtest %s not found", id)
	}

	if err != nil {
		return types.BacktestRecord{}, err
	}

	if record.UserID != userID {
		return types.BacktestRecord{}, errors.Newf(errors.ErrCodeNotOwned, "backtest %s does not belong to user", id)
	}

	return record, nil
}

func (s *DuckDBStore) ListBacktests(ctx context.Context, userID string) ([]types.BacktestRecord, error) {
	query := s.sq.
		Select(backtestColumns...).
		From("backtests").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		RunWith(s.db)

	rows, err := query.QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to list backtests", err)
	}
	defer rows.Close()

	records := make([]types.BacktestRecord, 0)

	for rows.Next() {
		record, err := scanBacktest(rows)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read backtest rows", err)
	}

	return records, nil
}

// GreatestReturn ranks by percentage return, not absolute profit, so runs
// with different initial capitals compare on equal footing.
func (s *DuckDBStore) GreatestReturn(ctx context.Context, userID string) (types.BacktestRecord, error) {
	query := s.sq.
		Select(backtestColumns...).
		From("backtests").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("total_return_pct DESC").
		Limit(1).
		RunWith(s.db)

	record, err := scanBacktest(query.QueryRowContext(ctx))
	if err == sql.ErrNoRows {
		return types.BacktestRecord{}, errors.New(errors.ErrCodeNotFound, "no backtests recorded for user")
	}

	if err != nil {
		return types.BacktestRecord{}, err
	}

	return record, nil
}

func (s *DuckDBStore) CreateLiveStrategy(ctx context.Context, ls types.LiveStrategy) error {
	params, err := json.Marshal(ls.Params)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to encode strategy params", err)
	}

	query := s.sq.
		Insert("live_strategies").
		Columns(
			"id", "user_id", "symbol", "interval", "strategy_type", "params",
			"initial_capital", "created_at", "backtest_id", "is_active",
			"last_check_time", "last_signal_time", "error_count",
		).
		Values(
			ls.ID, ls.UserID, ls.Symbol, string(ls.Interval),
			string(ls.StrategyType), string(params), ls.InitialCapital,
			ls.CreatedAt, ls.BacktestID, ls.IsActive,
			nullableTime(ls.LastCheckTime), nullableTime(ls.LastSignalTime),
			ls.ErrorCount,
		).
		RunWith(s.db)

	if _, err := query.ExecContext(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to insert live strategy", err)
	}

	s.logger.Debug("created live strategy",
		zap.String("strategy_id", ls.ID),
		zap.String("user_id", ls.UserID))

	return nil
}

func (s *DuckDBStore) GetLiveStrategy(ctx context.Context, userID, id string) (types.LiveStrategy, error) {
	query := s.sq.
		Select(liveColumns...).
		From("live_strategies").
		Where(squirrel.Eq{"id": id}).
		RunWith(s.db)

	ls, err := scanLiveStrategy(query.QueryRowContext(ctx))
	if err == sql.ErrNoRows {
		return types.LiveStrategy{}, errors.Newf(errors.ErrCodeNotFound, "live strategy %s not found", id)
	}

	if err != nil {
		return types.LiveStrategy{}, err
	}

	if ls.UserID != userID {
		return types.LiveStrategy{}, errors.Newf(errors.ErrCodeNotOwned, "live strategy %s does not belong to user", id)
	}

	return ls, nil
}

func (s *DuckDBStore) ListLiveStrategies(ctx context.Context, userID string) ([]types.LiveStrategy, error) {
	return s.listLive(ctx, squirrel.Eq{"user_id": userID})
}

func (s *DuckDBStore) ListAllActive(ctx context.Context) ([]types.LiveStrategy, error) {
	return s.listLive(ctx, squirrel.Eq{"is_active": true})
}

func (s *DuckDBStore) listLive(ctx context.Context, where squirrel.Eq) ([]types.LiveStrategy, error) {
	query := s.sq.
		Select(liveColumns...).
		From("live_strategies").
		Where(where).
		OrderBy("created_at DESC").
		RunWith(s.db)

	rows, err := query.QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to list live strategies", err)
	}
	defer rows.Close()

	strategies := make([]types.LiveStrategy, 0)

	for rows.Next() {
		ls, err := scanLiveStrategy(rows)
		if err != nil {
			return nil, err
		}

		strategies = append(strategies, ls)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read live strategy rows", err)
	}

	return strategies, nil
}

func (s *DuckDBStore) UpdateLiveStatus(ctx context.Context, id string, lastCheck time.Time, errorCount int) error {
	query := s.sq.
		Update("live_strategies").
		Set("last_check_time", lastCheck).
		Set("error_count", errorCount).
		Where(squirrel.Eq{"id": id}).
		RunWith(s.db)

	return execExpectingRow(ctx, query, id)
}

func (s *DuckDBStore) RecordSignalTime(ctx context.Context, id string, signalTime time.Time) error {
	query := s.sq.
		Update("live_strategies").
		Set("last_signal_time", signalTime).
		Where(squirrel.Eq{"id": id}).
		RunWith(s.db)

	return execExpectingRow(ctx, query, id)
}

func (s *DuckDBStore) SetActive(ctx context.Context, id string, active bool) error {
	query := s.sq.
		Update("live_strategies").
		Set("is_active", active).
		Where(squirrel.Eq{"id": id}).
		RunWith(s.db)

	return execExpectingRow(ctx, query, id)
}

func (s *DuckDBStore) CountActive(ctx context.Context, userID string) (int, error) {
	query := s.sq.
		Select("COUNT(*)").
		From("live_strategies").
		Where(squirrel.Eq{"user_id": userID, "is_active": true}).
		RunWith(s.db)

	var count int
	if err := query.QueryRowContext(ctx).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count active strategies", err)
	}

	return count, nil
}

func (s *DuckDBStore) Close() error {
	return s.db.Close()
}

var backtestColumns = []string{
	"id", "user_id", "symbol", "interval", "strategy_type", "params",
	"initial_capital", "created_at", "result",
}

var liveColumns = []string{
	"id", "user_id", "symbol", "interval", "strategy_type", "params",
	"initial_capital", "created_at", "backtest_id", "is_active",
	"last_check_time", "last_signal_time", "error_count",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBacktest(row rowScanner) (types.BacktestRecord, error) {
	var (
		record     types.BacktestRecord
		interval   string
		sType      string
		paramsJSON string
		resultJSON string
	)

	err := row.Scan(
		&record.ID, &record.UserID, &record.Symbol, &interval, &sType,
		&paramsJSON, &record.InitialCapital, &record.CreatedAt, &resultJSON,
	)
	if err == sql.ErrNoRows {
		return types.BacktestRecord{}, err
	}

	if err != nil {
		return types.BacktestRecord{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan backtest row", err)
	}

	record.Interval = types.Interval(interval)
	record.StrategyType = types.StrategyType(sType)

	if err := json.Unmarshal([]byte(paramsJSON), &record.Params); err != nil {
		return types.BacktestRecord{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to decode strategy params", err)
	}

	if err := json.Unmarshal([]byte(resultJSON), &record.Result); err != nil {
		return types.BacktestRecord{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to decode backtest result", err)
	}

	return record, nil
}

func scanLiveStrategy(row rowScanner) (types.LiveStrategy, error) {
	var (
		ls         types.LiveStrategy
		interval   string
		sType      string
		paramsJSON string
		lastCheck  sql.NullTime
		lastSignal sql.NullTime
	)

	err := row.Scan(
		&ls.ID, &ls.UserID, &ls.Symbol, &interval, &sType, &paramsJSON,
		&ls.InitialCapital, &ls.CreatedAt, &ls.BacktestID, &ls.IsActive,
		&lastCheck, &lastSignal, &ls.ErrorCount,
	)
	if err == sql.ErrNoRows {
		return types.LiveStrategy{}, err
	}

	if err != nil {
		return types.LiveStrategy{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan live strategy row", err)
	}

	ls.Interval = types.Interval(interval)
	ls.StrategyType = types.StrategyType(sType)

	if err := json.Unmarshal([]byte(paramsJSON), &ls.Params); err != nil {
		return types.LiveStrategy{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to decode strategy params", err)
	}

	if lastCheck.Valid {
		ls.LastCheckTime = lastCheck.Time
	}

	if lastSignal.Valid {
		ls.LastSignalTime = lastSignal.Time
	}

	return ls, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}

	return t
}

type contextExecer interface {
	ExecContext(ctx context.Context) (sql.Result, error)
}

func execExpectingRow(ctx context.Context, query contextExecer, id string) error {
	result, err := query.ExecContext(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to update live strategy", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to read affected rows", err)
	}

	if affected == 0 {
		return errors.Newf(errors.ErrCodeNotFound, "live strategy %s not found", id)
	}

	return nil
}
