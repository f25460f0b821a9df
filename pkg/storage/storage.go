// Package storage persists klines, optimization jobs, backtest runs,
// performance reports, trades, equity curves and optimization summaries
// to a local sqlite database. modernc.org/sqlite is pure Go, so the
// binaries build without cgo. Monetary columns are stored as decimal
// strings; ratios as REAL.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atlas-quant/futures-backtester/pkg/domain"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Store wraps a sqlite connection and exposes the queries the engine needs.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// ensures the schema exists. WAL plus a busy timeout lets optimization
// workers commit to the same file without tripping over each other's
// write locks.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("storage: opening database: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; one handle per worker is the contract anyway.

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS klines (
	symbol TEXT NOT NULL,
	interval TEXT NOT NULL,
	open_time INTEGER NOT NULL,
	close_time INTEGER NOT NULL,
	open TEXT NOT NULL,
	high TEXT NOT NULL,
	low TEXT NOT NULL,
	close TEXT NOT NULL,
	volume TEXT NOT NULL,
	UNIQUE(symbol, interval, open_time)
);

CREATE TABLE IF NOT EXISTS optimization_jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS backtest_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id INTEGER,
	strategy_name TEXT NOT NULL,
	symbol TEXT NOT NULL,
	interval TEXT NOT NULL,
	start_date INTEGER NOT NULL,
	end_date INTEGER NOT NULL,
	parameters TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS performance_reports (
	run_id INTEGER NOT NULL UNIQUE,
	total_trades INTEGER NOT NULL,
	net_pnl_absolute TEXT NOT NULL,
	net_pnl_percentage REAL NOT NULL,
	win_rate REAL NOT NULL,
	profit_factor REAL NOT NULL,
	max_drawdown_absolute TEXT NOT NULL,
	max_drawdown_percentage REAL NOT NULL,
	sharpe_ratio REAL NOT NULL,
	sortino_ratio REAL NOT NULL,
	calmar_ratio REAL NOT NULL,
	avg_trade_duration_secs REAL NOT NULL,
	expectancy TEXT NOT NULL,
	drawdown_duration_secs INTEGER NOT NULL,
	larom REAL NOT NULL,
	funding_pnl TEXT NOT NULL,
	confidence_performance TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	run_id INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	entry_time INTEGER NOT NULL,
	exit_time INTEGER NOT NULL,
	entry_price TEXT NOT NULL,
	exit_price TEXT NOT NULL,
	quantity TEXT NOT NULL,
	pnl TEXT NOT NULL,
	fees TEXT NOT NULL,
	signal_confidence REAL NOT NULL,
	leverage INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS equity_curves (
	run_id INTEGER NOT NULL,
	timestamp INTEGER NOT NULL,
	equity TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS optimization_summaries (
	job_id INTEGER NOT NULL UNIQUE,
	top_n_results TEXT NOT NULL
);
`

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("storage: applying schema: %w", err)
	}
	return nil
}

// InsertKlines bulk-inserts klines inside a single transaction, ignoring
// rows that already exist for (symbol, interval, open_time).
func (s *Store) InsertKlines(ctx context.Context, klines []domain.Kline) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO klines (symbol, interval, open_time, close_time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, interval, open_time) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("storage: preparing kline insert: %w", err)
	}
	defer stmt.Close()

	for _, k := range klines {
		if _, err := stmt.ExecContext(ctx,
			string(k.Symbol), k.Interval, k.OpenTime.UnixMilli(), k.CloseTime.UnixMilli(),
			k.Open.String(), k.High.String(), k.Low.String(), k.Close.String(), k.Volume.String(),
		); err != nil {
			return fmt.Errorf("storage: inserting kline: %w", err)
		}
	}
	return tx.Commit()
}

// GetKlinesByDateRange returns klines for a symbol/interval within
// [start, end], ordered by open_time ascending.
func (s *Store) GetKlinesByDateRange(ctx context.Context, symbol domain.Symbol, interval string, start, end time.Time) ([]domain.Kline, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, interval, open_time, close_time, open, high, low, close, volume
		FROM klines
		WHERE symbol = ? AND interval = ? AND open_time >= ? AND open_time <= ?
		ORDER BY open_time ASC
	`, string(symbol), interval, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("storage: querying klines: %w", err)
	}
	defer rows.Close()

	var out []domain.Kline
	for rows.Next() {
		var k domain.Kline
		var sym string
		var openTimeMs, closeTimeMs int64
		var openS, highS, lowS, closeS, volS string
		if err := rows.Scan(&sym, &k.Interval, &openTimeMs, &closeTimeMs, &openS, &highS, &lowS, &closeS, &volS); err != nil {
			return nil, fmt.Errorf("storage: scanning kline row: %w", err)
		}
		k.Symbol = domain.Symbol(sym)
		k.OpenTime = time.UnixMilli(openTimeMs).UTC()
		k.CloseTime = time.UnixMilli(closeTimeMs).UTC()
		k.Open = decimal.RequireFromString(openS)
		k.High = decimal.RequireFromString(highS)
		k.Low = decimal.RequireFromString(lowS)
		k.Close = decimal.RequireFromString(closeS)
		k.Volume = decimal.RequireFromString(volS)
		out = append(out, k)
	}
	return out, rows.Err()
}

// CreateOptimizationJob inserts a new optimization job and returns its id.
func (s *Store) CreateOptimizationJob(ctx context.Context, name string, createdAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO optimization_jobs (name, created_at) VALUES (?, ?)`, name, createdAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("storage: creating optimization job: %w", err)
	}
	return res.LastInsertId()
}

// RunRecord describes a backtest_runs row to persist alongside its report.
type RunRecord struct {
	JobID        *int64
	StrategyName string
	Symbol       domain.Symbol
	Interval     string
	StartDate    time.Time
	EndDate      time.Time
	Parameters   map[string]any
}

// SaveBacktestResult persists a run plus its report, trades and equity
// curve in a single transaction, matching the "run row + report + trades +
// equity points commit atomically" guarantee.
func (s *Store) SaveBacktestResult(
	ctx context.Context,
	run RunRecord,
	report domain.PerformanceReport,
	trades []domain.Trade,
	equityCurve []domain.EquityPoint,
) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("storage: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	paramsJSON, err := json.Marshal(run.Parameters)
	if err != nil {
		return 0, fmt.Errorf("storage: marshaling parameters: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO backtest_runs (job_id, strategy_name, symbol, interval, start_date, end_date, parameters, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.JobID, run.StrategyName, string(run.Symbol), run.Interval, run.StartDate.UnixMilli(), run.EndDate.UnixMilli(), string(paramsJSON), time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("storage: inserting backtest run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage: reading run id: %w", err)
	}

	confidenceJSON, err := json.Marshal(report.ConfidencePerformance)
	if err != nil {
		return 0, fmt.Errorf("storage: marshaling confidence performance: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO performance_reports (
			run_id, total_trades, net_pnl_absolute, net_pnl_percentage, win_rate, profit_factor,
			max_drawdown_absolute, max_drawdown_percentage, sharpe_ratio, sortino_ratio, calmar_ratio,
			avg_trade_duration_secs, expectancy, drawdown_duration_secs, larom, funding_pnl, confidence_performance
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, report.TotalTrades, report.NetPnLAbsolute.String(), report.NetPnLPercentage, report.WinRate, report.ProfitFactor,
		report.MaxDrawdownAbsolute.String(), report.MaxDrawdownPercentage, report.SharpeRatio, report.SortinoRatio, report.CalmarRatio,
		report.AvgTradeDurationSecs, report.Expectancy.String(), report.DrawdownDurationSecs, report.LAROM, report.FundingPnL.String(), string(confidenceJSON),
	); err != nil {
		return 0, fmt.Errorf("storage: inserting performance report: %w", err)
	}

	tradeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (run_id, symbol, side, entry_time, exit_time, entry_price, exit_price, quantity, pnl, fees, signal_confidence, leverage)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("storage: preparing trade insert: %w", err)
	}
	defer tradeStmt.Close()
	for _, t := range trades {
		if _, err := tradeStmt.ExecContext(ctx,
			runID, string(t.Symbol), string(t.Side), t.EntryTime.UnixMilli(), t.ExitTime.UnixMilli(),
			t.EntryPrice.String(), t.ExitPrice.String(), t.Quantity.String(), t.PnL.String(), t.Fees.String(),
			t.SignalConfidence, t.Leverage,
		); err != nil {
			return 0, fmt.Errorf("storage: inserting trade: %w", err)
		}
	}

	equityStmt, err := tx.PrepareContext(ctx, `INSERT INTO equity_curves (run_id, timestamp, equity) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("storage: preparing equity insert: %w", err)
	}
	defer equityStmt.Close()
	for _, pt := range equityCurve {
		if _, err := equityStmt.ExecContext(ctx, runID, pt.Timestamp.UnixMilli(), pt.Value.String()); err != nil {
			return 0, fmt.Errorf("storage: inserting equity point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage: committing run: %w", err)
	}
	return runID, nil
}

// ReportWithParameters pairs a run's persisted report with its parameters,
// as the ranker needs both.
type ReportWithParameters struct {
	RunID      int64
	Parameters map[string]any
	Report     domain.PerformanceReport
}

// GetReportForRun fetches the single performance report persisted for one
// backtest run.
func (s *Store) GetReportForRun(ctx context.Context, runID int64) (domain.PerformanceReport, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT total_trades, net_pnl_absolute, net_pnl_percentage, win_rate, profit_factor,
			max_drawdown_absolute, max_drawdown_percentage, sharpe_ratio, sortino_ratio, calmar_ratio,
			avg_trade_duration_secs, expectancy, drawdown_duration_secs, larom, funding_pnl, confidence_performance
		FROM performance_reports WHERE run_id = ?
	`, runID)

	report := domain.NewPerformanceReport()
	var netPnL, maxDD, expectancy, fundingPnL, confidenceJSON string
	if err := row.Scan(
		&report.TotalTrades, &netPnL, &report.NetPnLPercentage, &report.WinRate, &report.ProfitFactor,
		&maxDD, &report.MaxDrawdownPercentage, &report.SharpeRatio, &report.SortinoRatio, &report.CalmarRatio,
		&report.AvgTradeDurationSecs, &expectancy, &report.DrawdownDurationSecs, &report.LAROM, &fundingPnL, &confidenceJSON,
	); err != nil {
		return domain.PerformanceReport{}, fmt.Errorf("storage: scanning report for run: %w", err)
	}
	report.NetPnLAbsolute = decimal.RequireFromString(netPnL)
	report.MaxDrawdownAbsolute = decimal.RequireFromString(maxDD)
	report.Expectancy = decimal.RequireFromString(expectancy)
	report.FundingPnL = decimal.RequireFromString(fundingPnL)
	if err := json.Unmarshal([]byte(confidenceJSON), &report.ConfidencePerformance); err != nil {
		return domain.PerformanceReport{}, fmt.Errorf("storage: unmarshaling confidence performance: %w", err)
	}
	return report, nil
}

// GetReportsForJob fetches every (parameters, report) pair persisted for a
// job, used by the ranker.
func (s *Store) GetReportsForJob(ctx context.Context, jobID int64) ([]ReportWithParameters, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.parameters, p.total_trades, p.net_pnl_absolute, p.net_pnl_percentage, p.win_rate, p.profit_factor,
			p.max_drawdown_absolute, p.max_drawdown_percentage, p.sharpe_ratio, p.sortino_ratio, p.calmar_ratio,
			p.avg_trade_duration_secs, p.expectancy, p.drawdown_duration_secs, p.larom, p.funding_pnl, p.confidence_performance
		FROM backtest_runs r
		JOIN performance_reports p ON p.run_id = r.id
		WHERE r.job_id = ?
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("storage: querying reports for job: %w", err)
	}
	defer rows.Close()

	var out []ReportWithParameters
	for rows.Next() {
		var rwp ReportWithParameters
		var paramsJSON, confidenceJSON string
		var netPnL, maxDD, expectancy, fundingPnL string
		report := domain.NewPerformanceReport()
		if err := rows.Scan(
			&rwp.RunID, &paramsJSON, &report.TotalTrades, &netPnL, &report.NetPnLPercentage, &report.WinRate, &report.ProfitFactor,
			&maxDD, &report.MaxDrawdownPercentage, &report.SharpeRatio, &report.SortinoRatio, &report.CalmarRatio,
			&report.AvgTradeDurationSecs, &expectancy, &report.DrawdownDurationSecs, &report.LAROM, &fundingPnL, &confidenceJSON,
		); err != nil {
			return nil, fmt.Errorf("storage: scanning report row: %w", err)
		}
		report.NetPnLAbsolute = decimal.RequireFromString(netPnL)
		report.MaxDrawdownAbsolute = decimal.RequireFromString(maxDD)
		report.Expectancy = decimal.RequireFromString(expectancy)
		report.FundingPnL = decimal.RequireFromString(fundingPnL)
		if err := json.Unmarshal([]byte(paramsJSON), &rwp.Parameters); err != nil {
			return nil, fmt.Errorf("storage: unmarshaling parameters: %w", err)
		}
		if err := json.Unmarshal([]byte(confidenceJSON), &report.ConfidencePerformance); err != nil {
			return nil, fmt.Errorf("storage: unmarshaling confidence performance: %w", err)
		}
		rwp.Report = report
		out = append(out, rwp)
	}
	return out, rows.Err()
}

// SaveOptimizationSummary persists the ranked top-N results for a job.
func (s *Store) SaveOptimizationSummary(ctx context.Context, jobID int64, topN any) error {
	payload, err := json.Marshal(topN)
	if err != nil {
		return fmt.Errorf("storage: marshaling optimization summary: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO optimization_summaries (job_id, top_n_results) VALUES (?, ?)
		ON CONFLICT(job_id) DO UPDATE SET top_n_results = excluded.top_n_results
	`, jobID, string(payload))
	if err != nil {
		return fmt.Errorf("storage: saving optimization summary: %w", err)
	}
	return nil
}

// GetTradesForRun returns every trade recorded for a run, in insertion
// order.
func (s *Store) GetTradesForRun(ctx context.Context, runID int64) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, side, entry_time, exit_time, entry_price, exit_price, quantity, pnl, fees, signal_confidence, leverage
		FROM trades WHERE run_id = ? ORDER BY rowid ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("storage: querying trades for run: %w", err)
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var symbol, side string
		var entryMs, exitMs int64
		var entryPrice, exitPrice, quantity, pnl, fees string
		if err := rows.Scan(&symbol, &side, &entryMs, &exitMs, &entryPrice, &exitPrice, &quantity, &pnl, &fees, &t.SignalConfidence, &t.Leverage); err != nil {
			return nil, fmt.Errorf("storage: scanning trade row: %w", err)
		}
		t.Symbol = domain.Symbol(symbol)
		t.Side = domain.Side(side)
		t.EntryTime = time.UnixMilli(entryMs).UTC()
		t.ExitTime = time.UnixMilli(exitMs).UTC()
		t.EntryPrice = decimal.RequireFromString(entryPrice)
		t.ExitPrice = decimal.RequireFromString(exitPrice)
		t.Quantity = decimal.RequireFromString(quantity)
		t.PnL = decimal.RequireFromString(pnl)
		t.Fees = decimal.RequireFromString(fees)
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetEquityCurveForRun returns every equity point recorded for a run, in
// bar-time order.
func (s *Store) GetEquityCurveForRun(ctx context.Context, runID int64) ([]domain.EquityPoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT timestamp, equity FROM equity_curves WHERE run_id = ? ORDER BY timestamp ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("storage: querying equity curve: %w", err)
	}
	defer rows.Close()

	var out []domain.EquityPoint
	for rows.Next() {
		var ts int64
		var equity string
		if err := rows.Scan(&ts, &equity); err != nil {
			return nil, fmt.Errorf("storage: scanning equity row: %w", err)
		}
		out = append(out, domain.EquityPoint{Timestamp: time.UnixMilli(ts).UTC(), Value: decimal.RequireFromString(equity)})
	}
	return out, rows.Err()
}
