package usecase

import (
	"sync"

	"github.com/tradedash/crypto_bot_dash/internal/domain"
	"github.com/tradedash/crypto_bot_dash/internal/infrastructure/indicators"
)

// rsiKey identifies one RSI series: a symbol's close stream on a timeframe,
// smoothed over a period.
type rsiKey struct {
	Timeframe string
	Period    int
}

// Streak holds the consecutive same-color candle counters for one timeframe.
type Streak struct {
	Green int
	Red   int
}

// Snapshot is the ephemeral per-symbol market view handed to the trigger
// predicates. It is a copy; mutating it does not affect the watch.
type Snapshot struct {
	Symbol     string
	Price      float64
	HasPrice   bool
	LastCandle *domain.Candle
	Streaks    map[string]Streak
	RSI        map[rsiKey]float64
	RSIReady   map[rsiKey]bool
	FrameOpens map[string]float64
}

// StreakFor returns the streak counters for a timeframe.
func (s Snapshot) StreakFor(timeframe string) Streak {
	return s.Streaks[timeframe]
}

// RSIFor returns the latest RSI for (timeframe, period) and whether enough
// closes have accumulated to trust it. A non-positive period resolves to the
// default, matching how TrackRSI registers the series.
func (s Snapshot) RSIFor(timeframe string, period int) (float64, bool) {
	if period <= 0 {
		period = indicators.DefaultRSIPeriod
	}
	k := rsiKey{Timeframe: timeframe, Period: period}
	return s.RSI[k], s.RSIReady[k]
}

// FrameOpen returns the opening price of the current frame on a timeframe.
func (s Snapshot) FrameOpen(timeframe string) (float64, bool) {
	v, ok := s.FrameOpens[timeframe]
	return v, ok
}

type symbolState struct {
	price      float64
	hasPrice   bool
	lastCandle *domain.Candle
	streaks    map[string]*Streak
	rsi        map[rsiKey]*indicators.RSICalc
	frameOpens map[string]float64
	frameTimes map[string]int64
	closedAt   map[string]int64
}

// MarketWatch maintains per-symbol market state derived from the feed:
// last price, candle streaks, frame opening prices and RSI series. It is
// fed by the engine's tick callbacks and seeded from historical klines.
type MarketWatch struct {
	mu      sync.RWMutex
	symbols map[string]*symbolState
}

func NewMarketWatch() *MarketWatch {
	return &MarketWatch{symbols: make(map[string]*symbolState)}
}

func (w *MarketWatch) state(symbol string) *symbolState {
	st, ok := w.symbols[symbol]
	if !ok {
		st = &symbolState{
			streaks:    make(map[string]*Streak),
			rsi:        make(map[rsiKey]*indicators.RSICalc),
			frameOpens: make(map[string]float64),
			frameTimes: make(map[string]int64),
			closedAt:   make(map[string]int64),
		}
		w.symbols[symbol] = st
	}
	return st
}

// TrackRSI registers an RSI series so it is maintained from candle closes.
// Registering the same series twice is a no-op.
func (w *MarketWatch) TrackRSI(symbol, timeframe string, period int) {
	if period <= 0 {
		period = indicators.DefaultRSIPeriod
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.state(symbol)
	k := rsiKey{Timeframe: timeframe, Period: period}
	if _, ok := st.rsi[k]; !ok {
		st.rsi[k] = indicators.NewRSICalc(period)
	}
}

// ApplyTicker records the latest trade price for a symbol.
func (w *MarketWatch) ApplyTicker(symbol string, price float64) {
	if price <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.state(symbol)
	st.price = price
	st.hasPrice = true
}

// ApplyCandle folds one kline update into the per-symbol state. Open candles
// refresh the last price and frame open; closed candles advance streaks and
// RSI series. Duplicate closed candles (same open time) are ignored so
// at-least-once delivery does not double-count.
func (w *MarketWatch) ApplyCandle(c domain.Candle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.state(c.Symbol)

	cc := c
	st.lastCandle = &cc
	if c.Close > 0 {
		st.price = c.Close
		st.hasPrice = true
	}

	// A new open time on this timeframe starts a new frame.
	if c.OpenTime >= st.frameTimes[c.Timeframe] {
		st.frameTimes[c.Timeframe] = c.OpenTime
		st.frameOpens[c.Timeframe] = c.Open
	}

	if !c.IsClosed {
		return
	}

	// Duplicate closed candles must not double-count the streak.
	if c.OpenTime <= st.closedAt[c.Timeframe] {
		return
	}
	st.closedAt[c.Timeframe] = c.OpenTime

	streak, ok := st.streaks[c.Timeframe]
	if !ok {
		streak = &Streak{}
		st.streaks[c.Timeframe] = streak
	}
	if c.Green() {
		streak.Green++
		streak.Red = 0
	} else {
		streak.Red++
		streak.Green = 0
	}

	for k, calc := range st.rsi {
		if k.Timeframe == c.Timeframe {
			calc.Push(c.Close)
		}
	}
}

// Seed replays historical closed candles, oldest first, so streaks and RSI
// have state before the live stream begins.
func (w *MarketWatch) Seed(symbol, timeframe string, candles []domain.Candle) {
	for _, c := range candles {
		if !c.IsClosed {
			continue
		}
		c.Symbol = symbol
		c.Timeframe = timeframe
		w.ApplyCandle(c)
	}
}

// Snapshot returns a copy of the current state for one symbol.
func (w *MarketWatch) Snapshot(symbol string) Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	snap := Snapshot{
		Symbol:     symbol,
		Streaks:    make(map[string]Streak),
		RSI:        make(map[rsiKey]float64),
		RSIReady:   make(map[rsiKey]bool),
		FrameOpens: make(map[string]float64),
	}
	st, ok := w.symbols[symbol]
	if !ok {
		return snap
	}
	snap.Price = st.price
	snap.HasPrice = st.hasPrice
	if st.lastCandle != nil {
		c := *st.lastCandle
		snap.LastCandle = &c
	}
	for tf, s := range st.streaks {
		snap.Streaks[tf] = *s
	}
	for k, calc := range st.rsi {
		snap.RSI[k] = calc.Value()
		snap.RSIReady[k] = calc.Ready()
	}
	for tf, open := range st.frameOpens {
		snap.FrameOpens[tf] = open
	}
	return snap
}

// Price returns the last known price for a symbol.
func (w *MarketWatch) Price(symbol string) (float64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	st, ok := w.symbols[symbol]
	if !ok {
		return 0, false
	}
	return st.price, st.hasPrice
}
