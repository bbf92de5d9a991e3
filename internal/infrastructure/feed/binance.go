package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tradedash/crypto_bot_dash/internal/domain"
)

const (
	// DefaultWSBase is the Binance combined-stream endpoint.
	DefaultWSBase = "wss://stream.binance.com:9443"

	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	writeWait      = 10 * time.Second
	reconnectDelay = 5 * time.Second
)

// BinanceFeed delivers live market data over Binance combined websocket
// streams and historical klines over the REST API. Each Subscribe call
// owns one websocket connection that reconnects until closed.
type BinanceFeed struct {
	wsBase string
	rest   *binance.Client
	logger *zap.Logger
}

func NewBinanceFeed(wsBase string, logger *zap.Logger) *BinanceFeed {
	if wsBase == "" {
		wsBase = DefaultWSBase
	}
	// Market data endpoints need no credentials.
	return &BinanceFeed{
		wsBase: wsBase,
		rest:   binance.NewClient("", ""),
		logger: logger,
	}
}

// Subscribe opens a combined stream for the given symbols on one channel.
// The handler runs on the connection's read goroutine; it must not block.
func (f *BinanceFeed) Subscribe(symbols []string, channel domain.Channel, timeframe string, handler func(domain.Tick)) (domain.Subscription, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("subscribe: no symbols")
	}
	if channel == domain.ChannelKline && timeframe == "" {
		return nil, fmt.Errorf("subscribe: kline channel needs a timeframe")
	}

	streams := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		name, err := streamName(sym, channel, timeframe)
		if err != nil {
			return nil, err
		}
		streams = append(streams, name)
	}

	sub := &binanceSub{
		url:       f.wsBase + "/stream?streams=" + strings.Join(streams, "/"),
		channel:   channel,
		timeframe: timeframe,
		handler:   handler,
		logger:    f.logger,
		done:      make(chan struct{}),
	}
	go sub.run()
	return sub, nil
}

func streamName(symbol string, channel domain.Channel, timeframe string) (string, error) {
	s := strings.ToLower(symbol)
	switch channel {
	case domain.ChannelTicker:
		return s + "@miniTicker", nil
	case domain.ChannelKline:
		return s + "@kline_" + timeframe, nil
	default:
		return "", fmt.Errorf("subscribe: unknown channel %q", channel)
	}
}

// SeedHistory fetches recent klines and returns them as closed candles,
// oldest first. The last kline Binance returns is still forming and is
// dropped.
func (f *BinanceFeed) SeedHistory(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	klines, err := f.rest.NewKlinesService().
		Symbol(symbol).
		Interval(timeframe).
		Limit(limit + 1).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s %s: %w", symbol, timeframe, err)
	}
	if len(klines) > 0 {
		klines = klines[:len(klines)-1]
	}

	out := make([]domain.Candle, 0, len(klines))
	for _, k := range klines {
		c := domain.Candle{
			Symbol:    symbol,
			Timeframe: timeframe,
			OpenTime:  k.OpenTime,
			Open:      parseFloat(k.Open),
			High:      parseFloat(k.High),
			Low:       parseFloat(k.Low),
			Close:     parseFloat(k.Close),
			Volume:    parseFloat(k.Volume),
			IsClosed:  true,
		}
		if c.Open <= 0 || c.Close <= 0 {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

type binanceSub struct {
	url       string
	channel   domain.Channel
	timeframe string
	handler   func(domain.Tick)
	logger    *zap.Logger

	closeOnce sync.Once
	done      chan struct{}

	mu   sync.Mutex
	conn *websocket.Conn
}

// Close tears down the connection and stops the reconnect loop. It is
// idempotent; only the first call does anything.
func (s *binanceSub) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.mu.Unlock()
	})
	return nil
}

func (s *binanceSub) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *binanceSub) run() {
	for {
		if s.closed() {
			return
		}
		if err := s.readSession(); err != nil && !s.closed() {
			s.logger.Warn("stream disconnected, reconnecting",
				zap.String("url", s.url),
				zap.Error(err))
		}
		if s.closed() {
			return
		}
		select {
		case <-s.done:
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (s *binanceSub) readSession() error {
	conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-pingDone:
				return
			case <-s.done:
				return
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		tick, ok := s.parse(msg)
		if !ok {
			continue
		}
		if s.closed() {
			return nil
		}
		s.handler(tick)
	}
}

// combinedFrame is the envelope of the /stream endpoint.
type combinedFrame struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type miniTickerEvent struct {
	Symbol string `json:"s"`
	Close  string `json:"c"`
}

type klineEvent struct {
	Symbol string `json:"s"`
	Kline  struct {
		OpenTime int64  `json:"t"`
		Interval string `json:"i"`
		Open     string `json:"o"`
		High     string `json:"h"`
		Low      string `json:"l"`
		Close    string `json:"c"`
		Volume   string `json:"v"`
		IsClosed bool   `json:"x"`
	} `json:"k"`
}

// parse turns a raw stream message into a tick. Malformed or incomplete
// messages are dropped without disturbing the stream.
func (s *binanceSub) parse(msg []byte) (domain.Tick, bool) {
	var frame combinedFrame
	if err := json.Unmarshal(msg, &frame); err != nil || len(frame.Data) == 0 {
		s.logger.Debug("drop malformed frame", zap.ByteString("msg", msg))
		return domain.Tick{}, false
	}

	switch s.channel {
	case domain.ChannelTicker:
		var ev miniTickerEvent
		if err := json.Unmarshal(frame.Data, &ev); err != nil || ev.Symbol == "" {
			s.logger.Debug("drop malformed ticker", zap.Error(err))
			return domain.Tick{}, false
		}
		price := parseFloat(ev.Close)
		if price <= 0 {
			return domain.Tick{}, false
		}
		return domain.Tick{
			Symbol:  ev.Symbol,
			Channel: domain.ChannelTicker,
			Price:   price,
		}, true

	case domain.ChannelKline:
		var ev klineEvent
		if err := json.Unmarshal(frame.Data, &ev); err != nil || ev.Symbol == "" {
			s.logger.Debug("drop malformed kline", zap.Error(err))
			return domain.Tick{}, false
		}
		candle := &domain.Candle{
			Symbol:    ev.Symbol,
			Timeframe: ev.Kline.Interval,
			OpenTime:  ev.Kline.OpenTime,
			Open:      parseFloat(ev.Kline.Open),
			High:      parseFloat(ev.Kline.High),
			Low:       parseFloat(ev.Kline.Low),
			Close:     parseFloat(ev.Kline.Close),
			Volume:    parseFloat(ev.Kline.Volume),
			IsClosed:  ev.Kline.IsClosed,
		}
		if candle.Open <= 0 || candle.Close <= 0 {
			return domain.Tick{}, false
		}
		return domain.Tick{
			Symbol:  ev.Symbol,
			Channel: domain.ChannelKline,
			Price:   candle.Close,
			Candle:  candle,
		}, true
	}
	return domain.Tick{}, false
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
