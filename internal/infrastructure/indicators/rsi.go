package indicators

// DefaultRSIPeriod is the lookback used when a bot does not configure one.
const DefaultRSIPeriod = 14

// CalculateRSI computes the Relative Strength Index over a close series using
// Wilder smoothing. The returned slice is aligned with closes; entries before
// index period are zero because not enough data exists there.
func CalculateRSI(closes []float64, period int) []float64 {
	rsi := make([]float64, len(closes))
	if period <= 0 || len(closes) < period+1 {
		return rsi
	}

	gains := make([]float64, 0, len(closes)-1)
	losses := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -change)
		}
	}

	var sumGain, sumLoss float64
	for i := 0; i < period; i++ {
		sumGain += gains[i]
		sumLoss += losses[i]
	}
	avgGain := sumGain / float64(period)
	avgLoss := sumLoss / float64(period)

	rsi[period] = pointFrom(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		avgGain = (avgGain*float64(period-1) + gains[i-1]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i-1]) / float64(period)
		rsi[i] = pointFrom(avgGain, avgLoss)
	}

	return rsi
}

func pointFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// RSICalc is the streaming counterpart of CalculateRSI: feed it closed-candle
// closes one at a time and read the current value once Ready reports true.
// It produces the same series as the batch function for the same input.
type RSICalc struct {
	period    int
	prevClose float64
	seen      int
	sumGain   float64
	sumLoss   float64
	avgGain   float64
	avgLoss   float64
	value     float64
}

func NewRSICalc(period int) *RSICalc {
	if period <= 0 {
		period = DefaultRSIPeriod
	}
	return &RSICalc{period: period}
}

// Push consumes the close of one finished candle.
func (c *RSICalc) Push(closePrice float64) {
	if c.seen == 0 {
		c.prevClose = closePrice
		c.seen = 1
		return
	}

	change := closePrice - c.prevClose
	c.prevClose = closePrice
	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	if c.seen <= c.period {
		// Still building the first simple average.
		c.sumGain += gain
		c.sumLoss += loss
		if c.seen == c.period {
			c.avgGain = c.sumGain / float64(c.period)
			c.avgLoss = c.sumLoss / float64(c.period)
			c.value = pointFrom(c.avgGain, c.avgLoss)
		}
	} else {
		c.avgGain = (c.avgGain*float64(c.period-1) + gain) / float64(c.period)
		c.avgLoss = (c.avgLoss*float64(c.period-1) + loss) / float64(c.period)
		c.value = pointFrom(c.avgGain, c.avgLoss)
	}
	c.seen++
}

// Ready reports whether enough closes accumulated to produce a value.
func (c *RSICalc) Ready() bool {
	return c.seen > c.period
}

func (c *RSICalc) Value() float64 {
	return c.value
}
