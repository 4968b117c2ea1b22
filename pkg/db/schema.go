package db

import (
	"database/sql"
	"fmt"
)

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS signals (
    id TEXT PRIMARY KEY,
    ticker TEXT NOT NULL,
    kind TEXT NOT NULL,
    confidence REAL NOT NULL,
    trend TEXT NOT NULL,
    trend_strength REAL DEFAULT 0,
    price REAL NOT NULL,
    change_pct REAL DEFAULT 0,
    weights_version INTEGER DEFAULT 0,
    snapshot TEXT,
    reasons TEXT,
    outcome TEXT NOT NULL DEFAULT 'PENDING',
    outcome_pct REAL DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_signals_ticker ON signals(ticker, created_at);

CREATE TABLE IF NOT EXISTS positions (
    id TEXT PRIMARY KEY,
    ticker TEXT NOT NULL,
    status TEXT NOT NULL,
    quantity REAL DEFAULT 0,
    avg_price REAL DEFAULT 0,
    invested REAL DEFAULT 0,
    tranches_filled INTEGER DEFAULT 0,
    signal_id TEXT,
    exit_reason TEXT,
    exit_price REAL DEFAULT 0,
    max_drawdown_pct REAL DEFAULT 0,
    max_profit_pct REAL DEFAULT 0,
    opened_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    closed_at DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_open_ticker
    ON positions(ticker) WHERE status != 'CLOSED';

CREATE TABLE IF NOT EXISTS trades (
    id TEXT PRIMARY KEY,
    position_id TEXT NOT NULL,
    ticker TEXT NOT NULL,
    entry_price REAL NOT NULL,
    exit_price REAL NOT NULL,
    quantity REAL NOT NULL,
    return_pct REAL NOT NULL,
    outcome TEXT NOT NULL,
    exit_reason TEXT NOT NULL,
    confidence REAL DEFAULT 0,
    change_pct REAL DEFAULT 0,
    entry_snapshot TEXT,
    hold_seconds INTEGER DEFAULT 0,
    opened_at DATETIME,
    closed_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_trades_closed ON trades(closed_at);

CREATE TABLE IF NOT EXISTS fills (
    id TEXT PRIMARY KEY,
    position_id TEXT NOT NULL,
    ticker TEXT NOT NULL,
    side TEXT NOT NULL,
    quantity REAL NOT NULL,
    order_price REAL NOT NULL,
    filled_price REAL NOT NULL,
    slippage REAL DEFAULT 0,
    commission REAL DEFAULT 0,
    split_index INTEGER DEFAULT 0,
    filled_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_fills_position ON fills(position_id, filled_at);

CREATE TABLE IF NOT EXISTS patterns (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    conditions TEXT NOT NULL,
    win_rate REAL DEFAULT 0,
    avg_return REAL DEFAULT 0,
    sample_size INTEGER DEFAULT 0,
    is_active INTEGER DEFAULT 1,
    discovered_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    validated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS weight_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    version INTEGER NOT NULL,
    weights TEXT NOT NULL,
    performance_score REAL DEFAULT 0,
    sample_size INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS ticker_stats (
    ticker TEXT PRIMARY KEY,
    trades INTEGER DEFAULT 0,
    wins INTEGER DEFAULT 0,
    total_return_pct REAL DEFAULT 0,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS risk_metrics (
    date TEXT PRIMARY KEY,
    daily_pnl REAL DEFAULT 0,
    daily_trades INTEGER DEFAULT 0,
    daily_wins INTEGER DEFAULT 0,
    daily_spend REAL DEFAULT 0
);
`

// Migrate applies the schema. Idempotent.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
