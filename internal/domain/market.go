package domain

type Channel string

const (
	ChannelTicker Channel = "ticker"
	ChannelKline  Channel = "kline"
)

// Tick is one feed callback payload. For ticker channels only Symbol and
// Price are set; for kline channels Candle is non-nil.
type Tick struct {
	Symbol  string
	Channel Channel
	Price   float64
	Candle  *Candle
}

type Candle struct {
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	OpenTime  int64   `json:"open_time"` // unix millis
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	IsClosed  bool    `json:"is_closed"`
}

// Green reports whether the candle closed at or above its open. A doji counts
// as green, matching how the builder UI colors flat candles.
func (c *Candle) Green() bool {
	return c.Close >= c.Open
}
