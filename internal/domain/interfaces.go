package domain

import "context"

// MarketFeed multiplexes live market data. Delivery is at-least-once: ticks
// for the same symbol arrive in non-decreasing time order but may repeat, and
// there is no ordering across symbols.
type MarketFeed interface {
	// Subscribe opens a stream for the given symbols on one channel. For
	// ChannelKline a timeframe is required; for ChannelTicker it is ignored.
	// The handler runs on the feed's read loop and must not block.
	Subscribe(symbols []string, channel Channel, timeframe string, handler func(Tick)) (Subscription, error)

	// SeedHistory fetches recent closed candles over REST, oldest first.
	SeedHistory(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
}

// Subscription is the handle returned by Subscribe. Close is idempotent;
// it stops the stream and handler delivery ceases once the read loop
// observes the close.
type Subscription interface {
	Close() error
}

// BotRepository stores bot configurations.
type BotRepository interface {
	SaveBot(ctx context.Context, bot *BotConfig) error
	GetBot(ctx context.Context, id string) (*BotConfig, error)
	ListBots(ctx context.Context) ([]*BotConfig, error)
	DeleteBot(ctx context.Context, id string) error
}

// PositionRepository stores positions. The engine treats it as an eventually
// consistent sink; it never reads back what it just wrote.
type PositionRepository interface {
	UpsertPosition(ctx context.Context, pos *Position) error
	ListPositions(ctx context.Context) ([]*Position, error)
	DeletePosition(ctx context.Context, id string) error
}
