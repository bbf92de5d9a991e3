// Command check_feed streams live ticks for a few symbols to verify the
// market feed works before running the full dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tradedash/crypto_bot_dash/internal/domain"
	"github.com/tradedash/crypto_bot_dash/internal/infrastructure/feed"
	"github.com/tradedash/crypto_bot_dash/internal/infrastructure/logger"
)

func main() {
	symbolsFlag := flag.String("symbols", "BTCUSDT,ETHUSDT", "comma-separated symbols")
	timeframe := flag.String("timeframe", "1m", "kline timeframe")
	duration := flag.Duration("duration", 60*time.Second, "how long to stream")
	flag.Parse()

	log, err := logger.NewLogger("info")
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	symbols := strings.Split(*symbolsFlag, ",")
	f := feed.NewBinanceFeed("", log)

	fmt.Printf("Seeding %s history for %s...\n", *timeframe, symbols[0])
	candles, err := f.SeedHistory(context.Background(), symbols[0], *timeframe, 5)
	if err != nil {
		fmt.Printf("Seed failed: %v\n", err)
	} else {
		for _, c := range candles {
			fmt.Printf("  %s o=%.2f c=%.2f closed=%v\n",
				time.UnixMilli(c.OpenTime).Format(time.RFC3339), c.Open, c.Close, c.IsClosed)
		}
	}

	handler := func(t domain.Tick) {
		switch t.Channel {
		case domain.ChannelTicker:
			fmt.Printf("[ticker] %s %.2f\n", t.Symbol, t.Price)
		case domain.ChannelKline:
			fmt.Printf("[kline]  %s %s o=%.2f c=%.2f closed=%v\n",
				t.Symbol, t.Candle.Timeframe, t.Candle.Open, t.Candle.Close, t.Candle.IsClosed)
		}
	}

	tickerSub, err := f.Subscribe(symbols, domain.ChannelTicker, "", handler)
	if err != nil {
		fmt.Printf("Ticker subscribe failed: %v\n", err)
		os.Exit(1)
	}
	defer tickerSub.Close()

	klineSub, err := f.Subscribe(symbols, domain.ChannelKline, *timeframe, handler)
	if err != nil {
		fmt.Printf("Kline subscribe failed: %v\n", err)
		os.Exit(1)
	}
	defer klineSub.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
	case <-time.After(*duration):
	}
	fmt.Println("Done.")
}
