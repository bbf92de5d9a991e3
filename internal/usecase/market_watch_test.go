package usecase_test

import (
	"testing"

	"github.com/tradedash/crypto_bot_dash/internal/domain"
	"github.com/tradedash/crypto_bot_dash/internal/usecase"
)

func TestMarketWatchStreaks(t *testing.T) {
	w := usecase.NewMarketWatch()

	w.ApplyCandle(closedCandle("BTCUSDT", "1h", 60_000, 100, 101))
	w.ApplyCandle(closedCandle("BTCUSDT", "1h", 120_000, 101, 102))
	snap := w.Snapshot("BTCUSDT")
	if s := snap.StreakFor("1h"); s.Green != 2 || s.Red != 0 {
		t.Errorf("streak = %+v, want green 2", s)
	}

	// A red candle resets the green run.
	w.ApplyCandle(closedCandle("BTCUSDT", "1h", 180_000, 102, 101))
	snap = w.Snapshot("BTCUSDT")
	if s := snap.StreakFor("1h"); s.Green != 0 || s.Red != 1 {
		t.Errorf("streak = %+v, want red 1", s)
	}
}

func TestMarketWatchStreaksPerTimeframe(t *testing.T) {
	w := usecase.NewMarketWatch()
	w.ApplyCandle(closedCandle("BTCUSDT", "1h", 60_000, 100, 101))
	w.ApplyCandle(closedCandle("BTCUSDT", "4h", 60_000, 101, 100))

	snap := w.Snapshot("BTCUSDT")
	if s := snap.StreakFor("1h"); s.Green != 1 {
		t.Errorf("1h streak = %+v", s)
	}
	if s := snap.StreakFor("4h"); s.Red != 1 {
		t.Errorf("4h streak = %+v", s)
	}
}

func TestMarketWatchDuplicateClosedCandleIgnored(t *testing.T) {
	w := usecase.NewMarketWatch()
	c := closedCandle("BTCUSDT", "1h", 60_000, 100, 101)
	w.ApplyCandle(c)
	w.ApplyCandle(c)

	snap := w.Snapshot("BTCUSDT")
	if s := snap.StreakFor("1h"); s.Green != 1 {
		t.Errorf("duplicate delivery double-counted: %+v", s)
	}
}

func TestMarketWatchOpenCandleUpdatesPriceNotStreak(t *testing.T) {
	w := usecase.NewMarketWatch()
	w.ApplyCandle(domain.Candle{
		Symbol: "BTCUSDT", Timeframe: "1h", OpenTime: 60_000,
		Open: 100, Close: 103,
	})

	snap := w.Snapshot("BTCUSDT")
	if s := snap.StreakFor("1h"); s.Green != 0 {
		t.Error("an open candle must not advance the streak")
	}
	if !snap.HasPrice || snap.Price != 103 {
		t.Errorf("price = %f hasPrice = %v", snap.Price, snap.HasPrice)
	}
	if open, ok := snap.FrameOpen("1h"); !ok || open != 100 {
		t.Errorf("frame open = %f ok = %v, want 100", open, ok)
	}
}

func TestMarketWatchFrameOpenAdvances(t *testing.T) {
	w := usecase.NewMarketWatch()
	w.ApplyCandle(closedCandle("BTCUSDT", "4h", 60_000, 100, 110))
	w.ApplyCandle(domain.Candle{
		Symbol: "BTCUSDT", Timeframe: "4h", OpenTime: 14_460_000,
		Open: 110, Close: 111,
	})

	if open, ok := w.Snapshot("BTCUSDT").FrameOpen("4h"); !ok || open != 110 {
		t.Errorf("frame open = %f, want the new frame's open 110", open)
	}
}

func TestMarketWatchSeedWarmsRSI(t *testing.T) {
	w := usecase.NewMarketWatch()
	w.TrackRSI("BTCUSDT", "1h", 14)

	candles := make([]domain.Candle, 0, 20)
	price := 100.0
	for i := 0; i < 20; i++ {
		candles = append(candles, closedCandle("BTCUSDT", "1h", int64(60_000*(i+1)), price, price+1))
		price++
	}
	w.Seed("BTCUSDT", "1h", candles)

	value, ready := w.Snapshot("BTCUSDT").RSIFor("1h", 14)
	if !ready {
		t.Fatal("RSI should be ready after 20 seeded closes")
	}
	if value != 100 {
		t.Errorf("all-gains RSI = %f, want 100", value)
	}
}

func TestMarketWatchSnapshotIsolation(t *testing.T) {
	w := usecase.NewMarketWatch()
	w.ApplyCandle(closedCandle("BTCUSDT", "1h", 60_000, 100, 101))

	snap := w.Snapshot("BTCUSDT")
	snap.Streaks["1h"] = usecase.Streak{Green: 99}
	snap.LastCandle.Close = 1

	fresh := w.Snapshot("BTCUSDT")
	if fresh.StreakFor("1h").Green != 1 || fresh.LastCandle.Close != 101 {
		t.Error("mutating a snapshot leaked into the watch")
	}
}

func TestMarketWatchUnknownSymbol(t *testing.T) {
	w := usecase.NewMarketWatch()
	snap := w.Snapshot("NOPE")
	if snap.HasPrice {
		t.Error("unknown symbol must have no price")
	}
	if _, ok := w.Price("NOPE"); ok {
		t.Error("unknown symbol must report no price")
	}
}
