package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tradedash/crypto_bot_dash/internal/domain"
)

const maxNotifications = 50

// Notification is a short operator-facing event kept in a bounded ring.
type Notification struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// EngineStatus is a point-in-time summary for the status endpoint.
type EngineStatus struct {
	Bots      int      `json:"bots"`
	Positions int      `json:"positions"`
	Pending   int      `json:"pending"`
	Active    int      `json:"active"`
	Closed    int      `json:"closed"`
	Symbols   []string `json:"symbols"`
	Ticks     uint64   `json:"ticks"`
	StartedAt string   `json:"started_at"`
}

// Engine drives the whole evaluation loop: it subscribes to the market
// feed for every symbol its bots reference, folds ticks into the market
// watch, evaluates entry triggers for pending positions, locks entry
// prices exactly once, recomputes P&L on active positions and reconciles
// the in-memory position list, persisting only what actually changed.
//
// All state transitions happen under one mutex so each tick's cycle runs
// to completion before the next one starts.
type Engine struct {
	feed      domain.MarketFeed
	botRepo   domain.BotRepository
	posRepo   domain.PositionRepository
	watch     *MarketWatch
	logger    *zap.Logger
	seedLimit int

	mu             sync.Mutex
	ctx            context.Context
	bots           map[string]*domain.BotConfig
	botOrder       []string
	positions      []*domain.Position
	subs           []domain.Subscription
	subKey         string
	lastActivation map[string]time.Time
	tradesDay      string
	tradesToday    map[string]int
	waitingLogged  map[string]bool
	ticks          uint64
	notes          []Notification
	onUpdate       func([]*domain.Position)
	startedAt      time.Time
	now            func() time.Time
}

func NewEngine(feed domain.MarketFeed, botRepo domain.BotRepository, posRepo domain.PositionRepository, seedLimit int, logger *zap.Logger) *Engine {
	if seedLimit <= 0 {
		seedLimit = 200
	}
	return &Engine{
		feed:           feed,
		botRepo:        botRepo,
		posRepo:        posRepo,
		watch:          NewMarketWatch(),
		logger:         logger,
		seedLimit:      seedLimit,
		bots:           make(map[string]*domain.BotConfig),
		lastActivation: make(map[string]time.Time),
		tradesToday:    make(map[string]int),
		waitingLogged:  make(map[string]bool),
		now:            time.Now,
	}
}

// SetOnPositionsUpdated registers a callback invoked with the reconciled
// position list after any cycle that changed it. It runs outside the
// engine lock, so the callback may call back into the engine.
func (e *Engine) SetOnPositionsUpdated(fn func([]*domain.Position)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onUpdate = fn
}

// Start loads persisted bots and positions, seeds indicator history and
// opens the market subscriptions.
func (e *Engine) Start(ctx context.Context) error {
	bots, err := e.botRepo.ListBots(ctx)
	if err != nil {
		return fmt.Errorf("load bots: %w", err)
	}
	positions, err := e.posRepo.ListPositions(ctx)
	if err != nil {
		return fmt.Errorf("load positions: %w", err)
	}

	e.mu.Lock()
	e.ctx = ctx
	e.startedAt = e.now()
	for _, b := range bots {
		e.bots[b.ID] = b
		e.botOrder = append(e.botOrder, b.ID)
	}
	e.positions = positions
	botList := make([]*domain.BotConfig, 0, len(bots))
	botList = append(botList, bots...)
	e.mu.Unlock()

	for _, b := range botList {
		e.primeBot(ctx, b)
	}

	e.mu.Lock()
	err = e.resubscribeLocked()
	e.mu.Unlock()
	if err != nil {
		return err
	}

	e.logger.Info("engine started",
		zap.Int("bots", len(botList)),
		zap.Int("positions", len(positions)))
	return nil
}

// Stop closes all market subscriptions. Safe to call more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	subs := e.subs
	e.subs = nil
	e.subKey = ""
	e.mu.Unlock()

	for _, s := range subs {
		if err := s.Close(); err != nil {
			e.logger.Warn("close subscription", zap.Error(err))
		}
	}
}

// primeBot registers indicator series and seeds candle history so triggers
// have state before live data arrives. Seed failures are survivable; the
// series just warms up from the stream.
func (e *Engine) primeBot(ctx context.Context, bot *domain.BotConfig) {
	if bot.Kind == domain.StrategyRSI {
		for _, sym := range bot.Symbols {
			e.watch.TrackRSI(sym, bot.Timeframe, bot.RSIPeriod)
		}
	}
	if !bot.UsesTrigger() {
		return
	}
	for sym, tf := range seedTargets(bot) {
		candles, err := e.feed.SeedHistory(ctx, sym, tf, e.seedLimit)
		if err != nil {
			e.logger.Warn("seed history",
				zap.String("symbol", sym),
				zap.String("timeframe", tf),
				zap.Error(err))
			continue
		}
		e.watch.Seed(sym, tf, candles)
	}
}

func seedTargets(bot *domain.BotConfig) map[string]string {
	targets := make(map[string]string)
	if bot.Kind == domain.StrategyMovement {
		if bot.MovementSymbol != "" && bot.MovementTimeframe != "" {
			targets[bot.MovementSymbol] = bot.MovementTimeframe
		}
		return targets
	}
	for _, sym := range bot.Symbols {
		if bot.Timeframe != "" {
			targets[sym] = bot.Timeframe
		}
	}
	return targets
}

// resubscribeLocked reconciles the open subscriptions with the symbol and
// timeframe set the current bots need. No-op when the set is unchanged.
func (e *Engine) resubscribeLocked() error {
	tickers := make(map[string]bool)
	klines := make(map[string]map[string]bool)

	addKline := func(sym, tf string) {
		if tf == "" {
			return
		}
		if klines[tf] == nil {
			klines[tf] = make(map[string]bool)
		}
		klines[tf][sym] = true
	}

	for _, pos := range e.positions {
		if pos.Status == domain.StatusClosed {
			continue
		}
		tickers[pos.Symbol] = true
	}
	for _, bot := range e.bots {
		switch bot.Kind {
		case domain.StrategyStreak, domain.StrategyRSI:
			for _, sym := range bot.Symbols {
				addKline(sym, bot.Timeframe)
			}
		case domain.StrategyMovement:
			if bot.MovementSymbol != "" {
				tickers[bot.MovementSymbol] = true
				addKline(bot.MovementSymbol, bot.MovementTimeframe)
			}
		}
	}

	key := subscriptionKey(tickers, klines)
	if key == e.subKey {
		return nil
	}

	old := e.subs
	e.subs = nil
	for _, s := range old {
		if err := s.Close(); err != nil {
			e.logger.Warn("close subscription", zap.Error(err))
		}
	}

	if len(tickers) > 0 {
		sub, err := e.feed.Subscribe(sortedKeys(tickers), domain.ChannelTicker, "", e.HandleTick)
		if err != nil {
			return fmt.Errorf("subscribe ticker: %w", err)
		}
		e.subs = append(e.subs, sub)
	}
	for tf, syms := range klines {
		sub, err := e.feed.Subscribe(sortedKeys(syms), domain.ChannelKline, tf, e.HandleTick)
		if err != nil {
			return fmt.Errorf("subscribe kline %s: %w", tf, err)
		}
		e.subs = append(e.subs, sub)
	}
	e.subKey = key
	e.logger.Info("subscriptions updated",
		zap.Strings("tickers", sortedKeys(tickers)),
		zap.Int("kline_groups", len(klines)))
	return nil
}

func subscriptionKey(tickers map[string]bool, klines map[string]map[string]bool) string {
	var parts []string
	for _, s := range sortedKeys(tickers) {
		parts = append(parts, "t:"+s)
	}
	for tf, syms := range klines {
		for _, s := range sortedKeys(syms) {
			parts = append(parts, "k:"+tf+":"+s)
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// HandleTick is the feed callback. One call runs a full evaluation cycle:
// fold the tick into the watch, evaluate triggers, lock entries, recompute
// P&L and reconcile. Ticks arriving during a cycle queue on the mutex.
func (e *Engine) HandleTick(t domain.Tick) {
	switch t.Channel {
	case domain.ChannelTicker:
		e.watch.ApplyTicker(t.Symbol, t.Price)
	case domain.ChannelKline:
		if t.Candle == nil {
			return
		}
		e.watch.ApplyCandle(*t.Candle)
	default:
		return
	}

	e.mu.Lock()
	e.ticks++
	updates := e.runCycleLocked(t)
	merged, changed := Merge(e.positions, updates)
	var cb func([]*domain.Position)
	var snapshot []*domain.Position
	if changed {
		e.positions = merged
		e.persistLocked(updates)
		cb = e.onUpdate
		snapshot = append([]*domain.Position(nil), merged...)
	}
	e.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// runCycleLocked evaluates every position touched by this tick and returns
// the replacement set for reconciliation.
func (e *Engine) runCycleLocked(t domain.Tick) []domain.PositionUpdate {
	var updates []domain.PositionUpdate
	now := e.now()
	activated := make(map[string]bool)

	for _, pos := range e.positions {
		bot := e.bots[pos.BotID]
		if !e.tickTouches(t, pos, bot) {
			continue
		}

		switch {
		case pos.Status == domain.StatusPending && bot != nil && bot.UsesTrigger():
			if next := e.evaluatePendingLocked(bot, pos, now, activated); next != pos {
				updates = append(updates, domain.PositionUpdate{ID: pos.ID, Position: next})
			}
		case NeedsEntryLock(pos) && pos.Status == domain.StatusActive:
			// Active without a locked entry: grid bots with a broken range,
			// DCA slots and manual activations. Lock at the first price.
			if price, ok := e.watch.Price(pos.Symbol); ok {
				next := Activate(pos, price, now, TriggerResult{})
				if next != pos {
					e.noteLocked("info", fmt.Sprintf("entry locked for %s at %.2f", pos.Symbol, price))
					updates = append(updates, domain.PositionUpdate{ID: pos.ID, Position: next})
				}
			}
		case pos.Status == domain.StatusActive:
			if price, ok := e.watch.Price(pos.Symbol); ok && pos.Symbol == t.Symbol {
				if next, ok := RecalcPnL(pos, price); ok {
					updates = append(updates, domain.PositionUpdate{ID: pos.ID, Position: next})
				}
			}
		}
	}
	return updates
}

// tickTouches reports whether this tick can affect the position. Movement
// bots also react to ticks on their watched coin, which may differ from
// the symbol being traded.
func (e *Engine) tickTouches(t domain.Tick, pos *domain.Position, bot *domain.BotConfig) bool {
	if pos.Symbol == t.Symbol {
		return true
	}
	return bot != nil && bot.Kind == domain.StrategyMovement && bot.MovementSymbol == t.Symbol
}

func (e *Engine) evaluatePendingLocked(bot *domain.BotConfig, pos *domain.Position, now time.Time, activated map[string]bool) *domain.Position {
	res := EvaluateTrigger(bot, pos.Symbol, e.watch)

	if !res.Fire {
		return refreshProgress(pos, res)
	}
	if bot.OneTradeAtATime && activated[bot.ID] {
		return refreshProgress(pos, res)
	}
	if !e.activationAllowedLocked(bot, now) {
		return refreshProgress(pos, res)
	}

	price, ok := e.watch.Price(pos.Symbol)
	if !ok {
		// Trigger satisfied but no market price yet. Stay pending and
		// retry next tick; log once per position, not per tick.
		if !e.waitingLogged[pos.ID] {
			e.waitingLogged[pos.ID] = true
			e.logger.Info("trigger fired, waiting for price",
				zap.String("position", pos.ID),
				zap.String("symbol", pos.Symbol))
		}
		return refreshProgress(pos, res)
	}

	next := Activate(pos, price, now, res)
	if next == pos {
		return pos
	}
	delete(e.waitingLogged, pos.ID)
	activated[bot.ID] = true
	e.recordActivationLocked(bot, now)
	e.noteLocked("info", fmt.Sprintf("%s position opened on %s at %.2f (%s)", next.Side, next.Symbol, price, res.Note))
	e.logger.Info("position activated",
		zap.String("position", next.ID),
		zap.String("bot", bot.Name),
		zap.String("symbol", next.Symbol),
		zap.String("side", string(next.Side)),
		zap.Float64("entry", price))
	return next
}

// refreshProgress copies trigger progress (streak length, last RSI) onto a
// pending position when it moved, so the dashboard shows how close the
// trigger is.
func refreshProgress(pos *domain.Position, res TriggerResult) *domain.Position {
	if pos.StreakCount == res.StreakCount && (!res.RSIReady || pos.LastRSI == res.RSIValue) {
		return pos
	}
	next := *pos
	next.StreakCount = res.StreakCount
	if res.RSIReady {
		next.LastRSI = res.RSIValue
	}
	return &next
}

// activationAllowedLocked applies the per-bot safety limits: cooldown
// between entries, a single concurrent trade, and a daily entry cap.
func (e *Engine) activationAllowedLocked(bot *domain.BotConfig, now time.Time) bool {
	if bot.CooldownSec > 0 {
		if last, ok := e.lastActivation[bot.ID]; ok && now.Sub(last) < time.Duration(bot.CooldownSec)*time.Second {
			return false
		}
	}
	if bot.OneTradeAtATime {
		for _, p := range e.positions {
			if p.BotID == bot.ID && p.Status == domain.StatusActive {
				return false
			}
		}
	}
	if bot.MaxTradesPerDay > 0 {
		day := now.Format("2006-01-02")
		if day != e.tradesDay {
			e.tradesDay = day
			e.tradesToday = make(map[string]int)
		}
		if e.tradesToday[bot.ID] >= bot.MaxTradesPerDay {
			return false
		}
	}
	return true
}

func (e *Engine) recordActivationLocked(bot *domain.BotConfig, now time.Time) {
	e.lastActivation[bot.ID] = now
	day := now.Format("2006-01-02")
	if day != e.tradesDay {
		e.tradesDay = day
		e.tradesToday = make(map[string]int)
	}
	e.tradesToday[bot.ID]++
}

// persistLocked writes the changed positions through the repository.
// Storage failures are reported but do not roll back the in-memory state;
// the dashboard keeps running on what it has.
func (e *Engine) persistLocked(updates []domain.PositionUpdate) {
	ctx := e.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, u := range updates {
		if u.Position == nil {
			continue
		}
		if err := e.posRepo.UpsertPosition(ctx, u.Position); err != nil {
			e.logger.Error("persist position", zap.String("position", u.ID), zap.Error(err))
			e.noteLocked("error", fmt.Sprintf("failed to persist position %s: %v", u.ID, err))
		}
	}
}

func (e *Engine) noteLocked(level, msg string) {
	e.notes = append(e.notes, Notification{Time: e.now(), Level: level, Message: msg})
	if len(e.notes) > maxNotifications {
		e.notes = e.notes[len(e.notes)-maxNotifications:]
	}
}

// AddBot validates nothing beyond identity defaults (the API layer owns
// input validation), persists the bot, creates its initial positions and
// adjusts subscriptions.
func (e *Engine) AddBot(ctx context.Context, bot *domain.BotConfig) (*domain.BotConfig, error) {
	if bot.ID == "" {
		bot.ID = uuid.NewString()
	}
	if bot.CreatedAt.IsZero() {
		bot.CreatedAt = e.now()
	}
	if err := e.botRepo.SaveBot(ctx, bot); err != nil {
		return nil, fmt.Errorf("save bot: %w", err)
	}

	positions := BuildPositions(bot, e.now())
	for _, p := range positions {
		if err := e.posRepo.UpsertPosition(ctx, p); err != nil {
			e.logger.Error("persist position", zap.String("position", p.ID), zap.Error(err))
		}
	}

	e.mu.Lock()
	if _, exists := e.bots[bot.ID]; !exists {
		e.botOrder = append(e.botOrder, bot.ID)
	}
	e.bots[bot.ID] = bot
	e.positions = append(e.positions, positions...)
	e.mu.Unlock()

	e.primeBot(ctx, bot)

	e.mu.Lock()
	err := e.resubscribeLocked()
	e.noteLocked("info", fmt.Sprintf("bot %q added (%s, %d positions)", bot.Name, bot.Kind, len(positions)))
	e.mu.Unlock()
	if err != nil {
		e.logger.Error("resubscribe", zap.Error(err))
	}
	return bot, nil
}

// DeleteBot removes a bot and all of its positions.
func (e *Engine) DeleteBot(ctx context.Context, id string) error {
	e.mu.Lock()
	bot, ok := e.bots[id]
	e.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}

	if err := e.botRepo.DeleteBot(ctx, id); err != nil {
		return fmt.Errorf("delete bot: %w", err)
	}

	e.mu.Lock()
	delete(e.bots, id)
	for i, bid := range e.botOrder {
		if bid == id {
			e.botOrder = append(e.botOrder[:i], e.botOrder[i+1:]...)
			break
		}
	}
	var kept []*domain.Position
	var removed []string
	for _, p := range e.positions {
		if p.BotID == id {
			removed = append(removed, p.ID)
			continue
		}
		kept = append(kept, p)
	}
	e.positions = kept
	e.noteLocked("info", fmt.Sprintf("bot %q removed", bot.Name))
	err := e.resubscribeLocked()
	e.mu.Unlock()

	for _, pid := range removed {
		if derr := e.posRepo.DeletePosition(ctx, pid); derr != nil {
			e.logger.Error("delete position", zap.String("position", pid), zap.Error(derr))
		}
	}
	if err != nil {
		e.logger.Error("resubscribe", zap.Error(err))
	}
	return nil
}

// ForceActivate manually flips a pending position to active. If a market
// price is known the entry locks immediately; otherwise the next tick
// locks it.
func (e *Engine) ForceActivate(ctx context.Context, id string) (*domain.Position, error) {
	e.mu.Lock()
	pos := e.findLocked(id)
	if pos == nil {
		e.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	if pos.Status != domain.StatusPending {
		e.mu.Unlock()
		return nil, fmt.Errorf("position %s is %s, not pending", id, pos.Status)
	}

	var next *domain.Position
	if price, ok := e.watch.Price(pos.Symbol); ok {
		next = Activate(pos, price, e.now(), TriggerResult{Note: "manually activated"})
	} else {
		next = MarkActive(pos)
		next.TriggerNote = "manually activated"
	}
	e.replaceLocked(next)
	e.noteLocked("info", fmt.Sprintf("position %s manually activated", id))
	e.mu.Unlock()

	if err := e.posRepo.UpsertPosition(ctx, next); err != nil {
		e.logger.Error("persist position", zap.String("position", id), zap.Error(err))
	}
	return next, nil
}

// ClosePosition closes a position, freezing its current P&L.
func (e *Engine) ClosePosition(ctx context.Context, id string) (*domain.Position, error) {
	e.mu.Lock()
	pos := e.findLocked(id)
	if pos == nil {
		e.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	next := Close(pos, e.now())
	e.replaceLocked(next)
	e.noteLocked("info", fmt.Sprintf("position %s closed (pnl %.2f)", id, next.UnrealizedPnL))
	err := e.resubscribeLocked()
	e.mu.Unlock()

	if err != nil {
		e.logger.Error("resubscribe", zap.Error(err))
	}
	if perr := e.posRepo.UpsertPosition(ctx, next); perr != nil {
		e.logger.Error("persist position", zap.String("position", id), zap.Error(perr))
	}
	return next, nil
}

// DeletePosition removes a position entirely.
func (e *Engine) DeletePosition(ctx context.Context, id string) error {
	e.mu.Lock()
	found := false
	kept := e.positions[:0:0]
	for _, p := range e.positions {
		if p.ID == id {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	var rerr error
	if found {
		e.positions = kept
		rerr = e.resubscribeLocked()
	}
	e.mu.Unlock()
	if !found {
		return domain.ErrNotFound
	}
	if rerr != nil {
		e.logger.Error("resubscribe", zap.Error(rerr))
	}
	return e.posRepo.DeletePosition(ctx, id)
}

func (e *Engine) findLocked(id string) *domain.Position {
	for _, p := range e.positions {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (e *Engine) replaceLocked(next *domain.Position) {
	for i, p := range e.positions {
		if p.ID == next.ID {
			e.positions[i] = next
			return
		}
	}
}

// Positions returns a copy of the current position list.
func (e *Engine) Positions() []*domain.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*domain.Position(nil), e.positions...)
}

// Bots returns the bots in creation order.
func (e *Engine) Bots() []*domain.BotConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*domain.BotConfig, 0, len(e.botOrder))
	for _, id := range e.botOrder {
		if b, ok := e.bots[id]; ok {
			out = append(out, b)
		}
	}
	return out
}

// Bot returns one bot by ID.
func (e *Engine) Bot(id string) (*domain.BotConfig, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.bots[id]
	return b, ok
}

// Notifications returns the recent notification ring, newest last.
func (e *Engine) Notifications() []Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Notification(nil), e.notes...)
}

// Status summarizes the engine for the status endpoint.
func (e *Engine) Status() EngineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := EngineStatus{
		Bots:      len(e.bots),
		Positions: len(e.positions),
		Ticks:     e.ticks,
		StartedAt: e.startedAt.Format(time.RFC3339),
	}
	symbols := make(map[string]bool)
	for _, p := range e.positions {
		symbols[p.Symbol] = true
		switch p.Status {
		case domain.StatusPending:
			st.Pending++
		case domain.StatusActive:
			st.Active++
		case domain.StatusClosed:
			st.Closed++
		}
	}
	st.Symbols = sortedKeys(symbols)
	return st
}
