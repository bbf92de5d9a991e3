package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tradedash/crypto_bot_dash/internal/domain"
)

// SQLiteStore persists bot configs and positions. It implements both
// domain.BotRepository and domain.PositionRepository.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bots (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			symbols TEXT NOT NULL,
			timeframe TEXT,
			consecutive_candles INTEGER NOT NULL DEFAULT 0,
			streak_direction TEXT,
			rsi_period INTEGER NOT NULL DEFAULT 0,
			rsi_threshold REAL NOT NULL DEFAULT 0,
			movement_symbol TEXT,
			movement_threshold REAL NOT NULL DEFAULT 0,
			movement_timeframe TEXT,
			movement_side TEXT,
			grid_lower REAL NOT NULL DEFAULT 0,
			grid_upper REAL NOT NULL DEFAULT 0,
			grid_count INTEGER NOT NULL DEFAULT 0,
			dca_order_count INTEGER NOT NULL DEFAULT 0,
			dca_step_pct REAL NOT NULL DEFAULT 0,
			dca_order_margin REAL NOT NULL DEFAULT 0,
			cooldown_sec INTEGER NOT NULL DEFAULT 0,
			one_trade_at_a_time BOOLEAN NOT NULL DEFAULT 0,
			max_trades_per_day INTEGER NOT NULL DEFAULT 0,
			margin REAL NOT NULL DEFAULT 0,
			leverage INTEGER NOT NULL DEFAULT 1,
			side TEXT NOT NULL DEFAULT 'LONG',
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS positions (
			id TEXT PRIMARY KEY,
			bot_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			status TEXT NOT NULL,
			side TEXT NOT NULL,
			entry_price REAL NOT NULL DEFAULT 0,
			entry_locked BOOLEAN NOT NULL DEFAULT 0,
			entry_locked_at DATETIME,
			current_price REAL NOT NULL DEFAULT 0,
			entry_offset_pct REAL NOT NULL DEFAULT 0,
			margin REAL NOT NULL DEFAULT 0,
			leverage INTEGER NOT NULL DEFAULT 1,
			unrealized_pnl REAL NOT NULL DEFAULT 0,
			pnl_percent REAL NOT NULL DEFAULT 0,
			streak_count INTEGER NOT NULL DEFAULT 0,
			last_rsi REAL NOT NULL DEFAULT 0,
			trigger_note TEXT,
			created_at DATETIME NOT NULL,
			closed_at DATETIME
		);`,
		`CREATE INDEX IF NOT EXISTS idx_positions_bot ON positions(bot_id);`,
		`CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// BotRepository implementation

func (s *SQLiteStore) SaveBot(ctx context.Context, bot *domain.BotConfig) error {
	symbols, err := json.Marshal(bot.Symbols)
	if err != nil {
		return err
	}
	query := `INSERT INTO bots (id, name, kind, symbols, timeframe,
			consecutive_candles, streak_direction, rsi_period, rsi_threshold,
			movement_symbol, movement_threshold, movement_timeframe, movement_side,
			grid_lower, grid_upper, grid_count,
			dca_order_count, dca_step_pct, dca_order_margin,
			cooldown_sec, one_trade_at_a_time, max_trades_per_day,
			margin, leverage, side, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, symbols=excluded.symbols, timeframe=excluded.timeframe,
			consecutive_candles=excluded.consecutive_candles, streak_direction=excluded.streak_direction,
			rsi_period=excluded.rsi_period, rsi_threshold=excluded.rsi_threshold,
			movement_symbol=excluded.movement_symbol, movement_threshold=excluded.movement_threshold,
			movement_timeframe=excluded.movement_timeframe, movement_side=excluded.movement_side,
			grid_lower=excluded.grid_lower, grid_upper=excluded.grid_upper, grid_count=excluded.grid_count,
			dca_order_count=excluded.dca_order_count, dca_step_pct=excluded.dca_step_pct,
			dca_order_margin=excluded.dca_order_margin,
			cooldown_sec=excluded.cooldown_sec, one_trade_at_a_time=excluded.one_trade_at_a_time,
			max_trades_per_day=excluded.max_trades_per_day,
			margin=excluded.margin, leverage=excluded.leverage, side=excluded.side`
	_, err = s.db.ExecContext(ctx, query,
		bot.ID, bot.Name, bot.Kind, string(symbols), bot.Timeframe,
		bot.ConsecutiveCandles, bot.StreakDirection, bot.RSIPeriod, bot.RSIThreshold,
		bot.MovementSymbol, bot.MovementThreshold, bot.MovementTimeframe, bot.MovementSide,
		bot.GridLower, bot.GridUpper, bot.GridCount,
		bot.DCAOrderCount, bot.DCAStepPct, bot.DCAOrderMargin,
		bot.CooldownSec, bot.OneTradeAtATime, bot.MaxTradesPerDay,
		bot.Margin, bot.Leverage, bot.Side, bot.CreatedAt)
	return err
}

func (s *SQLiteStore) GetBot(ctx context.Context, id string) (*domain.BotConfig, error) {
	row := s.db.QueryRowContext(ctx, selectBots+` WHERE id = ?`, id)
	bot, err := scanBot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return bot, err
}

func (s *SQLiteStore) ListBots(ctx context.Context) ([]*domain.BotConfig, error) {
	rows, err := s.db.QueryContext(ctx, selectBots+` ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bots []*domain.BotConfig
	for rows.Next() {
		bot, err := scanBot(rows)
		if err != nil {
			return nil, err
		}
		bots = append(bots, bot)
	}
	return bots, rows.Err()
}

func (s *SQLiteStore) DeleteBot(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM bots WHERE id = ?", id)
	return err
}

const selectBots = `SELECT id, name, kind, symbols, timeframe,
	consecutive_candles, streak_direction, rsi_period, rsi_threshold,
	movement_symbol, movement_threshold, movement_timeframe, movement_side,
	grid_lower, grid_upper, grid_count,
	dca_order_count, dca_step_pct, dca_order_margin,
	cooldown_sec, one_trade_at_a_time, max_trades_per_day,
	margin, leverage, side, created_at FROM bots`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBot(row rowScanner) (*domain.BotConfig, error) {
	var b domain.BotConfig
	var symbols string
	err := row.Scan(&b.ID, &b.Name, &b.Kind, &symbols, &b.Timeframe,
		&b.ConsecutiveCandles, &b.StreakDirection, &b.RSIPeriod, &b.RSIThreshold,
		&b.MovementSymbol, &b.MovementThreshold, &b.MovementTimeframe, &b.MovementSide,
		&b.GridLower, &b.GridUpper, &b.GridCount,
		&b.DCAOrderCount, &b.DCAStepPct, &b.DCAOrderMargin,
		&b.CooldownSec, &b.OneTradeAtATime, &b.MaxTradesPerDay,
		&b.Margin, &b.Leverage, &b.Side, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(symbols), &b.Symbols); err != nil {
		return nil, fmt.Errorf("decode symbols for bot %s: %w", b.ID, err)
	}
	return &b, nil
}

// PositionRepository implementation

func (s *SQLiteStore) UpsertPosition(ctx context.Context, pos *domain.Position) error {
	query := `INSERT INTO positions (id, bot_id, symbol, status, side,
			entry_price, entry_locked, entry_locked_at, current_price, entry_offset_pct,
			margin, leverage, unrealized_pnl, pnl_percent,
			streak_count, last_rsi, trigger_note, created_at, closed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
			status=excluded.status, side=excluded.side,
			entry_price=excluded.entry_price, entry_locked=excluded.entry_locked,
			entry_locked_at=excluded.entry_locked_at, current_price=excluded.current_price,
			entry_offset_pct=excluded.entry_offset_pct,
			margin=excluded.margin, leverage=excluded.leverage,
			unrealized_pnl=excluded.unrealized_pnl, pnl_percent=excluded.pnl_percent,
			streak_count=excluded.streak_count, last_rsi=excluded.last_rsi,
			trigger_note=excluded.trigger_note, closed_at=excluded.closed_at`
	_, err := s.db.ExecContext(ctx, query,
		pos.ID, pos.BotID, pos.Symbol, pos.Status, pos.Side,
		pos.EntryPrice, pos.EntryLocked, pos.EntryLockedAt, pos.CurrentPrice, pos.EntryOffsetPct,
		pos.Margin, pos.Leverage, pos.UnrealizedPnL, pos.PnLPercent,
		pos.StreakCount, pos.LastRSI, pos.TriggerNote, pos.CreatedAt, pos.ClosedAt)
	return err
}

func (s *SQLiteStore) ListPositions(ctx context.Context) ([]*domain.Position, error) {
	query := `SELECT id, bot_id, symbol, status, side,
			entry_price, entry_locked, entry_locked_at, current_price, entry_offset_pct,
			margin, leverage, unrealized_pnl, pnl_percent,
			streak_count, last_rsi, trigger_note, created_at, closed_at
			FROM positions ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(&p.ID, &p.BotID, &p.Symbol, &p.Status, &p.Side,
			&p.EntryPrice, &p.EntryLocked, &p.EntryLockedAt, &p.CurrentPrice, &p.EntryOffsetPct,
			&p.Margin, &p.Leverage, &p.UnrealizedPnL, &p.PnLPercent,
			&p.StreakCount, &p.LastRSI, &p.TriggerNote, &p.CreatedAt, &p.ClosedAt); err != nil {
			return nil, err
		}
		positions = append(positions, &p)
	}
	return positions, rows.Err()
}

func (s *SQLiteStore) DeletePosition(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM positions WHERE id = ?", id)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
