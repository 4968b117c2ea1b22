package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("record not found")

// Queries bundles the hand-written statements against one database.
type Queries struct {
	db *sql.DB
}

// NewQueries creates a Queries instance.
func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// ----------------------------------------
// Signal Queries
// ----------------------------------------

// InsertSignal persists one emitted signal. Outcome starts at its PENDING
// default.
func (q *Queries) InsertSignal(ctx context.Context, s Signal) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO signals (id, ticker, kind, confidence, trend, trend_strength, price, change_pct, weights_version, snapshot, reasons)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Ticker, s.Kind, s.Confidence, s.Trend, s.TrendStrength, s.Price, s.ChangePct, s.WeightsVersion, s.Snapshot, s.Reasons)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// UpdateSignalOutcome writes the realized result back onto the originating
// signal once its position closes.
func (q *Queries) UpdateSignalOutcome(ctx context.Context, id, outcome string, returnPct float64) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE signals SET outcome = ?, outcome_pct = ? WHERE id = ?
	`, outcome, returnPct, id)
	if err != nil {
		return fmt.Errorf("update signal outcome: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecentSignals returns the newest signals, most recent first.
func (q *Queries) RecentSignals(ctx context.Context, limit int) ([]Signal, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, ticker, kind, confidence, trend, trend_strength, price, change_pct, weights_version,
		       COALESCE(snapshot, ''), COALESCE(reasons, ''), outcome, outcome_pct, created_at
		FROM signals
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []Signal
	for rows.Next() {
		var s Signal
		if err := rows.Scan(&s.ID, &s.Ticker, &s.Kind, &s.Confidence, &s.Trend, &s.TrendStrength, &s.Price,
			&s.ChangePct, &s.WeightsVersion, &s.Snapshot, &s.Reasons, &s.Outcome, &s.OutcomePct, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SignalOutcomeStats returns win/loss/pending counts per signal kind.
func (q *Queries) SignalOutcomeStats(ctx context.Context) ([]SignalKindStats, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT kind,
		       COUNT(*),
		       SUM(CASE WHEN outcome = 'WIN' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN outcome = 'LOSS' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN outcome = 'PENDING' THEN 1 ELSE 0 END)
		FROM signals
		GROUP BY kind
		ORDER BY kind
	`)
	if err != nil {
		return nil, fmt.Errorf("query signal outcome stats: %w", err)
	}
	defer rows.Close()

	var out []SignalKindStats
	for rows.Next() {
		var s SignalKindStats
		if err := rows.Scan(&s.Kind, &s.Total, &s.Wins, &s.Losses, &s.Pending); err != nil {
			return nil, fmt.Errorf("scan signal outcome stats: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ----------------------------------------
// Position Queries
// ----------------------------------------

// InsertPosition creates a position row. The partial unique index rejects a
// second non-CLOSED position for the same ticker.
func (q *Queries) InsertPosition(ctx context.Context, p Position) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO positions (id, ticker, status, quantity, avg_price, invested, tranches_filled, signal_id, opened_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Ticker, p.Status, p.Quantity, p.AvgPrice, p.Invested, p.TranchesFilled, p.SignalID, p.OpenedAt)
	if err != nil {
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// UpdatePosition overwrites the mutable fields of a position row.
func (q *Queries) UpdatePosition(ctx context.Context, p Position) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE positions SET
			status = ?, quantity = ?, avg_price = ?, invested = ?, tranches_filled = ?,
			exit_reason = ?, exit_price = ?, max_drawdown_pct = ?, max_profit_pct = ?, closed_at = ?
		WHERE id = ?
	`, p.Status, p.Quantity, p.AvgPrice, p.Invested, p.TranchesFilled,
		p.ExitReason, p.ExitPrice, p.MaxDrawdownPct, p.MaxProfitPct, p.ClosedAt, p.ID)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// OpenPositions returns every position not yet CLOSED.
func (q *Queries) OpenPositions(ctx context.Context) ([]Position, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, ticker, status, quantity, avg_price, invested, tranches_filled,
		       COALESCE(signal_id, ''), COALESCE(exit_reason, ''), exit_price,
		       max_drawdown_pct, max_profit_pct, opened_at, closed_at
		FROM positions
		WHERE status != 'CLOSED'
		ORDER BY opened_at
	`)
	if err != nil {
		return nil, fmt.Errorf("query open positions: %w", err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

// RecentPositions returns the newest positions regardless of status.
func (q *Queries) RecentPositions(ctx context.Context, limit int) ([]Position, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, ticker, status, quantity, avg_price, invested, tranches_filled,
		       COALESCE(signal_id, ''), COALESCE(exit_reason, ''), exit_price,
		       max_drawdown_pct, max_profit_pct, opened_at, closed_at
		FROM positions
		ORDER BY opened_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

func scanPositions(rows *sql.Rows) ([]Position, error) {
	var out []Position
	for rows.Next() {
		var p Position
		var closed sql.NullTime
		if err := rows.Scan(&p.ID, &p.Ticker, &p.Status, &p.Quantity, &p.AvgPrice, &p.Invested,
			&p.TranchesFilled, &p.SignalID, &p.ExitReason, &p.ExitPrice,
			&p.MaxDrawdownPct, &p.MaxProfitPct, &p.OpenedAt, &closed); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		if closed.Valid {
			t := closed.Time
			p.ClosedAt = &t
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountOpenPositions returns how many positions are not CLOSED.
func (q *Queries) CountOpenPositions(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM positions WHERE status != 'CLOSED'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count open positions: %w", err)
	}
	return n, nil
}

// ----------------------------------------
// Trade Queries
// ----------------------------------------

// InsertTrade persists one completed round trip.
func (q *Queries) InsertTrade(ctx context.Context, t Trade) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO trades (id, position_id, ticker, entry_price, exit_price, quantity, return_pct,
		                    outcome, exit_reason, confidence, change_pct, entry_snapshot, hold_seconds, opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.PositionID, t.Ticker, t.EntryPrice, t.ExitPrice, t.Quantity, t.ReturnPct,
		t.Outcome, t.ExitReason, t.Confidence, t.ChangePct, t.EntrySnapshot, t.HoldSeconds, t.OpenedAt, t.ClosedAt)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// RecentTrades returns the newest trades, oldest first so learning passes
// see history in time order.
func (q *Queries) RecentTrades(ctx context.Context, limit int) ([]Trade, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, position_id, ticker, entry_price, exit_price, quantity, return_pct,
		       outcome, exit_reason, confidence, change_pct, COALESCE(entry_snapshot, ''),
		       hold_seconds, opened_at, closed_at
		FROM (
			SELECT * FROM trades ORDER BY closed_at DESC LIMIT ?
		)
		ORDER BY closed_at
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		var t Trade
		if err := rows.Scan(&t.ID, &t.PositionID, &t.Ticker, &t.EntryPrice, &t.ExitPrice, &t.Quantity,
			&t.ReturnPct, &t.Outcome, &t.ExitReason, &t.Confidence, &t.ChangePct, &t.EntrySnapshot,
			&t.HoldSeconds, &t.OpenedAt, &t.ClosedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ----------------------------------------
// Fill Queries
// ----------------------------------------

// InsertFill appends one executed order slice. Fill rows are immutable.
func (q *Queries) InsertFill(ctx context.Context, f Fill) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO fills (id, position_id, ticker, side, quantity, order_price, filled_price, slippage, commission, split_index, filled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.PositionID, f.Ticker, f.Side, f.Quantity, f.OrderPrice, f.FilledPrice, f.Slippage, f.Commission, f.SplitIndex, f.FilledAt)
	if err != nil {
		return fmt.Errorf("insert fill: %w", err)
	}
	return nil
}

// FillsForPosition returns a position's fills in execution order.
func (q *Queries) FillsForPosition(ctx context.Context, positionID string) ([]Fill, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, position_id, ticker, side, quantity, order_price, filled_price, slippage, commission, split_index, filled_at
		FROM fills
		WHERE position_id = ?
		ORDER BY filled_at, split_index
	`, positionID)
	if err != nil {
		return nil, fmt.Errorf("query fills: %w", err)
	}
	defer rows.Close()

	var out []Fill
	for rows.Next() {
		var f Fill
		if err := rows.Scan(&f.ID, &f.PositionID, &f.Ticker, &f.Side, &f.Quantity, &f.OrderPrice,
			&f.FilledPrice, &f.Slippage, &f.Commission, &f.SplitIndex, &f.FilledAt); err != nil {
			return nil, fmt.Errorf("scan fill: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ----------------------------------------
// Pattern Queries
// ----------------------------------------

// UpsertPattern inserts or refreshes a mined pattern, keyed by name.
func (q *Queries) UpsertPattern(ctx context.Context, p Pattern) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO patterns (id, name, conditions, win_rate, avg_return, sample_size, is_active, discovered_at, validated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			win_rate = excluded.win_rate,
			avg_return = excluded.avg_return,
			sample_size = excluded.sample_size,
			is_active = excluded.is_active,
			validated_at = excluded.validated_at
	`, p.ID, p.Name, p.Conditions, p.WinRate, p.AvgReturn, p.SampleSize, p.IsActive, p.DiscoveredAt, p.ValidatedAt)
	if err != nil {
		return fmt.Errorf("upsert pattern: %w", err)
	}
	return nil
}

// ListPatterns returns all patterns, active and inactive.
func (q *Queries) ListPatterns(ctx context.Context) ([]Pattern, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, name, conditions, win_rate, avg_return, sample_size, is_active, discovered_at, validated_at
		FROM patterns
		ORDER BY discovered_at
	`)
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	defer rows.Close()

	var out []Pattern
	for rows.Next() {
		var p Pattern
		if err := rows.Scan(&p.ID, &p.Name, &p.Conditions, &p.WinRate, &p.AvgReturn,
			&p.SampleSize, &p.IsActive, &p.DiscoveredAt, &p.ValidatedAt); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ----------------------------------------
// Weight History Queries
// ----------------------------------------

// InsertWeightRecord appends one weight_history row.
func (q *Queries) InsertWeightRecord(ctx context.Context, w WeightRecord) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO weight_history (version, weights, performance_score, sample_size)
		VALUES (?, ?, ?, ?)
	`, w.Version, w.Weights, w.PerformanceScore, w.SampleSize)
	if err != nil {
		return fmt.Errorf("insert weight record: %w", err)
	}
	return nil
}

// WeightHistory returns the newest weight records, most recent first.
func (q *Queries) WeightHistory(ctx context.Context, limit int) ([]WeightRecord, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, version, weights, performance_score, sample_size, created_at
		FROM weight_history
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query weight history: %w", err)
	}
	defer rows.Close()

	var out []WeightRecord
	for rows.Next() {
		var w WeightRecord
		if err := rows.Scan(&w.ID, &w.Version, &w.Weights, &w.PerformanceScore, &w.SampleSize, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan weight record: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// LatestWeights returns the newest persisted weights blob, or ErrNotFound.
func (q *Queries) LatestWeights(ctx context.Context) (WeightRecord, error) {
	var w WeightRecord
	err := q.db.QueryRowContext(ctx, `
		SELECT id, version, weights, performance_score, sample_size, created_at
		FROM weight_history
		ORDER BY id DESC
		LIMIT 1
	`).Scan(&w.ID, &w.Version, &w.Weights, &w.PerformanceScore, &w.SampleSize, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return WeightRecord{}, ErrNotFound
	}
	if err != nil {
		return WeightRecord{}, fmt.Errorf("query latest weights: %w", err)
	}
	return w, nil
}

// ----------------------------------------
// Ticker Stats Queries
// ----------------------------------------

// BumpTickerStats folds one trade outcome into the per-ticker aggregate.
func (q *Queries) BumpTickerStats(ctx context.Context, ticker string, won bool, returnPct float64) error {
	win := 0
	if won {
		win = 1
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO ticker_stats (ticker, trades, wins, total_return_pct, updated_at)
		VALUES (?, 1, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(ticker) DO UPDATE SET
			trades = trades + 1,
			wins = wins + excluded.wins,
			total_return_pct = total_return_pct + excluded.total_return_pct,
			updated_at = CURRENT_TIMESTAMP
	`, ticker, win, returnPct)
	if err != nil {
		return fmt.Errorf("bump ticker stats: %w", err)
	}
	return nil
}

// ListTickerStats returns per-ticker aggregates, most traded first.
func (q *Queries) ListTickerStats(ctx context.Context) ([]TickerStats, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT ticker, trades, wins, total_return_pct, updated_at
		FROM ticker_stats
		ORDER BY trades DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query ticker stats: %w", err)
	}
	defer rows.Close()

	var out []TickerStats
	for rows.Next() {
		var s TickerStats
		if err := rows.Scan(&s.Ticker, &s.Trades, &s.Wins, &s.TotalReturnPct, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan ticker stats: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ----------------------------------------
// Risk Metrics Queries
// ----------------------------------------

// AddRiskMetrics folds one closed trade into the daily aggregate row.
func (q *Queries) AddRiskMetrics(ctx context.Context, date string, pnl float64, won bool) error {
	win := 0
	if won {
		win = 1
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO risk_metrics (date, daily_pnl, daily_trades, daily_wins)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(date) DO UPDATE SET
			daily_pnl = daily_pnl + excluded.daily_pnl,
			daily_trades = daily_trades + 1,
			daily_wins = daily_wins + excluded.daily_wins
	`, date, pnl, win)
	if err != nil {
		return fmt.Errorf("add risk metrics: %w", err)
	}
	return nil
}

// AddDailySpend records budget consumed by fills for admission accounting.
func (q *Queries) AddDailySpend(ctx context.Context, date string, amount float64) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO risk_metrics (date, daily_spend)
		VALUES (?, ?)
		ON CONFLICT(date) DO UPDATE SET
			daily_spend = daily_spend + excluded.daily_spend
	`, date, amount)
	if err != nil {
		return fmt.Errorf("add daily spend: %w", err)
	}
	return nil
}

// RiskMetricsFor returns the aggregate for one date (zero row if absent).
func (q *Queries) RiskMetricsFor(ctx context.Context, date string) (RiskMetrics, error) {
	m := RiskMetrics{Date: date}
	err := q.db.QueryRowContext(ctx, `
		SELECT date, daily_pnl, daily_trades, daily_wins, daily_spend
		FROM risk_metrics WHERE date = ?
	`, date).Scan(&m.Date, &m.DailyPnL, &m.DailyTrades, &m.DailyWins, &m.DailySpend)
	if errors.Is(err, sql.ErrNoRows) {
		return m, nil
	}
	if err != nil {
		return RiskMetrics{}, fmt.Errorf("query risk metrics: %w", err)
	}
	return m, nil
}
