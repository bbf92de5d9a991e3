package usecase_test

import (
	"testing"

	"github.com/tradedash/crypto_bot_dash/internal/domain"
	"github.com/tradedash/crypto_bot_dash/internal/usecase"
)

func closedCandle(symbol, tf string, openTime int64, open, close float64) domain.Candle {
	return domain.Candle{
		Symbol:    symbol,
		Timeframe: tf,
		OpenTime:  openTime,
		Open:      open,
		High:      max(open, close),
		Low:       min(open, close),
		Close:     close,
		IsClosed:  true,
	}
}

// feedStreak pushes alternating-base candles producing the given run of
// greens then reds, oldest first.
func feedStreak(w *usecase.MarketWatch, symbol, tf string, greens, reds int) {
	var ts int64 = 60_000
	for i := 0; i < greens; i++ {
		w.ApplyCandle(closedCandle(symbol, tf, ts, 100, 101))
		ts += 60_000
	}
	for i := 0; i < reds; i++ {
		w.ApplyCandle(closedCandle(symbol, tf, ts, 101, 100))
		ts += 60_000
	}
}

func TestStreakPredicateDirections(t *testing.T) {
	cases := []struct {
		name      string
		direction string
		greens    int
		reds      int
		target    int
		wantFire  bool
		wantSide  domain.Side
	}{
		{"green met", domain.StreakGreen, 3, 0, 3, true, domain.SideLong},
		{"green short", domain.StreakGreen, 2, 0, 3, false, domain.SideLong},
		{"red met", domain.StreakRed, 0, 4, 4, true, domain.SideShort},
		{"long only alias", domain.StreakLongOnly, 3, 0, 3, true, domain.SideLong},
		{"short only alias", domain.StreakShortOnly, 0, 3, 3, true, domain.SideShort},
		{"auto longer red run wins", domain.StreakAuto, 0, 5, 4, true, domain.SideShort},
		{"auto green run wins", domain.StreakAuto, 5, 0, 4, true, domain.SideLong},
		{"auto below target", domain.StreakAuto, 2, 0, 4, false, domain.SideLong},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := usecase.NewMarketWatch()
			feedStreak(w, "BTCUSDT", "1h", tc.greens, tc.reds)

			bot := &domain.BotConfig{
				Kind:               domain.StrategyStreak,
				Timeframe:          "1h",
				ConsecutiveCandles: tc.target,
				StreakDirection:    tc.direction,
			}
			res := usecase.EvaluateTrigger(bot, "BTCUSDT", w)
			if res.Fire != tc.wantFire {
				t.Errorf("fire = %v, want %v", res.Fire, tc.wantFire)
			}
			if res.Side != tc.wantSide {
				t.Errorf("side = %s, want %s", res.Side, tc.wantSide)
			}
		})
	}
}

func TestStreakAutoTieReadsGreen(t *testing.T) {
	// One streak counter resets the other, so equal counters only occur
	// at zero. The tie still has a defined direction.
	w := usecase.NewMarketWatch()
	bot := &domain.BotConfig{
		Kind:               domain.StrategyStreak,
		Timeframe:          "1h",
		ConsecutiveCandles: 1,
		StreakDirection:    domain.StreakAuto,
	}
	res := usecase.EvaluateTrigger(bot, "BTCUSDT", w)
	if res.Fire {
		t.Error("no candles must not fire")
	}
	if res.Side != domain.SideLong {
		t.Errorf("tie at zero should read green/long, got %s", res.Side)
	}
}

func TestStreakCountsDojiAsGreen(t *testing.T) {
	w := usecase.NewMarketWatch()
	w.ApplyCandle(closedCandle("BTCUSDT", "1h", 60_000, 100, 100))
	w.ApplyCandle(closedCandle("BTCUSDT", "1h", 120_000, 100, 101))

	bot := &domain.BotConfig{
		Kind:               domain.StrategyStreak,
		Timeframe:          "1h",
		ConsecutiveCandles: 2,
		StreakDirection:    domain.StreakGreen,
	}
	res := usecase.EvaluateTrigger(bot, "BTCUSDT", w)
	if !res.Fire {
		t.Errorf("doji should extend the green streak, count = %d", res.StreakCount)
	}
}

func TestRSIPredicateThresholdTouch(t *testing.T) {
	w := usecase.NewMarketWatch()
	w.TrackRSI("ETHUSDT", "1h", 14)

	// Steady decline keeps RSI at 0 after the warmup window.
	price := 3000.0
	var ts int64 = 60_000
	for i := 0; i < 20; i++ {
		w.ApplyCandle(closedCandle("ETHUSDT", "1h", ts, price, price-10))
		price -= 10
		ts += 60_000
	}

	bot := &domain.BotConfig{
		Kind:         domain.StrategyRSI,
		Timeframe:    "1h",
		RSIPeriod:    14,
		RSIThreshold: 30,
	}
	res := usecase.EvaluateTrigger(bot, "ETHUSDT", w)
	if !res.RSIReady {
		t.Fatal("RSI should be warmed up after 20 closes")
	}
	if !res.Fire {
		t.Errorf("RSI %.2f at threshold 30 must fire", res.RSIValue)
	}

	// Raise the bar the other way: an all-gains series pins RSI at 100.
	w2 := usecase.NewMarketWatch()
	w2.TrackRSI("ETHUSDT", "1h", 14)
	price, ts = 3000.0, 60_000
	for i := 0; i < 20; i++ {
		w2.ApplyCandle(closedCandle("ETHUSDT", "1h", ts, price, price+10))
		price += 10
		ts += 60_000
	}
	res = usecase.EvaluateTrigger(bot, "ETHUSDT", w2)
	if res.Fire {
		t.Errorf("RSI %.2f above threshold 30 must not fire", res.RSIValue)
	}
}

func TestRSIPredicateBoundary(t *testing.T) {
	w := usecase.NewMarketWatch()
	w.TrackRSI("ETHUSDT", "1h", 14)
	price := 3000.0
	var ts int64 = 60_000
	for i := 0; i < 30; i++ {
		delta := -5.0
		if i%3 == 0 {
			delta = 8
		}
		w.ApplyCandle(closedCandle("ETHUSDT", "1h", ts, price, price+delta))
		price += delta
		ts += 60_000
	}

	wide := &domain.BotConfig{Kind: domain.StrategyRSI, Timeframe: "1h", RSIPeriod: 14, RSIThreshold: 100}
	value := usecase.EvaluateTrigger(wide, "ETHUSDT", w).RSIValue

	// Touching the threshold exactly fires; sitting just above it does not.
	at := &domain.BotConfig{Kind: domain.StrategyRSI, Timeframe: "1h", RSIPeriod: 14, RSIThreshold: value}
	if !usecase.EvaluateTrigger(at, "ETHUSDT", w).Fire {
		t.Errorf("RSI %.4f at threshold %.4f must fire", value, value)
	}
	below := &domain.BotConfig{Kind: domain.StrategyRSI, Timeframe: "1h", RSIPeriod: 14, RSIThreshold: value - 0.0001}
	if usecase.EvaluateTrigger(below, "ETHUSDT", w).Fire {
		t.Errorf("RSI %.4f above threshold %.4f must not fire", value, value-0.0001)
	}
}

func TestRSIPredicateDefaultPeriod(t *testing.T) {
	w := usecase.NewMarketWatch()
	// The engine registers an unset period as 0; the watch resolves it to
	// the default. The predicate must find the same series.
	w.TrackRSI("ETHUSDT", "1h", 0)

	price := 3000.0
	var ts int64 = 60_000
	for i := 0; i < 40; i++ {
		w.ApplyCandle(closedCandle("ETHUSDT", "1h", ts, price, price-10))
		price -= 10
		ts += 60_000
	}

	bot := &domain.BotConfig{
		Kind:         domain.StrategyRSI,
		Timeframe:    "1h",
		RSIPeriod:    0,
		RSIThreshold: 30,
	}
	res := usecase.EvaluateTrigger(bot, "ETHUSDT", w)
	if !res.RSIReady {
		t.Fatal("default-period series must be ready after 40 closes")
	}
	if !res.Fire {
		t.Errorf("RSI %.2f at threshold 30 must fire with the period unset", res.RSIValue)
	}
}

func TestRSIPredicateNotReadyNeverFires(t *testing.T) {
	w := usecase.NewMarketWatch()
	w.TrackRSI("ETHUSDT", "1h", 14)
	// Only a handful of closes; the window has not filled.
	var ts int64 = 60_000
	for i := 0; i < 5; i++ {
		w.ApplyCandle(closedCandle("ETHUSDT", "1h", ts, 3000, 2990))
		ts += 60_000
	}

	bot := &domain.BotConfig{
		Kind:         domain.StrategyRSI,
		Timeframe:    "1h",
		RSIPeriod:    14,
		RSIThreshold: 99,
	}
	res := usecase.EvaluateTrigger(bot, "ETHUSDT", w)
	if res.Fire || res.RSIReady {
		t.Error("insufficient history must not fire regardless of threshold")
	}
}

func TestMovementPredicate(t *testing.T) {
	w := usecase.NewMarketWatch()
	// Open candle establishes the 4h frame open at 60000.
	w.ApplyCandle(domain.Candle{
		Symbol: "BTCUSDT", Timeframe: "4h", OpenTime: 60_000,
		Open: 60_000, High: 60_500, Low: 59_900, Close: 60_400,
	})
	w.ApplyTicker("BTCUSDT", 60_600)

	up := &domain.BotConfig{
		Kind:              domain.StrategyMovement,
		MovementSymbol:    "BTCUSDT",
		MovementTimeframe: "4h",
		MovementThreshold: 500,
		MovementSide:      domain.SideLong,
	}
	res := usecase.EvaluateTrigger(up, "ETHUSDT", w)
	if !res.Fire {
		t.Error("+600 move at threshold 500 must fire")
	}
	if res.Side != domain.SideLong {
		t.Errorf("side = %s, want LONG", res.Side)
	}

	down := &domain.BotConfig{
		Kind:              domain.StrategyMovement,
		MovementSymbol:    "BTCUSDT",
		MovementTimeframe: "4h",
		MovementThreshold: 500,
		MovementSide:      domain.SideShort,
	}
	res = usecase.EvaluateTrigger(down, "ETHUSDT", w)
	if res.Fire {
		t.Error("an upward move must not fire a short movement bot")
	}

	w.ApplyTicker("BTCUSDT", 59_400)
	res = usecase.EvaluateTrigger(down, "ETHUSDT", w)
	if !res.Fire {
		t.Error("-600 move at threshold 500 must fire short")
	}
	if res.Side != domain.SideShort {
		t.Errorf("side = %s, want SHORT", res.Side)
	}
}

func TestMovementPredicateNoFrameOpen(t *testing.T) {
	w := usecase.NewMarketWatch()
	w.ApplyTicker("BTCUSDT", 60_000)

	bot := &domain.BotConfig{
		Kind:              domain.StrategyMovement,
		MovementSymbol:    "BTCUSDT",
		MovementTimeframe: "4h",
		MovementThreshold: 1,
	}
	if res := usecase.EvaluateTrigger(bot, "ETHUSDT", w); res.Fire {
		t.Error("no frame open yet, must not fire")
	}
}

func TestGridAndDCANeverTrigger(t *testing.T) {
	w := usecase.NewMarketWatch()
	feedStreak(w, "BTCUSDT", "1h", 10, 0)
	w.ApplyTicker("BTCUSDT", 60_000)

	for _, kind := range []domain.StrategyKind{domain.StrategyGrid, domain.StrategyDCA} {
		bot := &domain.BotConfig{Kind: kind, Timeframe: "1h"}
		if res := usecase.EvaluateTrigger(bot, "BTCUSDT", w); res.Fire {
			t.Errorf("%s must never fire a trigger", kind)
		}
	}
}
