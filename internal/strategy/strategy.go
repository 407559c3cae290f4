// Package strategy derives the trading signal from daily bar history.
// Evaluation is a pure function of the bars handed in; the package holds
// no state and performs no I/O.
package strategy

import "mabot/internal/broker"

type Signal string

const (
	Buy  Signal = "BUY"
	Sell Signal = "SELL"
	Hold Signal = "HOLD"

	// Undetermined means the history is too short for one of the
	// averages. It is a valid signal state, not an error.
	Undetermined Signal = "UNDETERMINED"
)

// Evaluation carries the classified signal together with the inputs that
// produced it, for logging and journaling.
type Evaluation struct {
	Signal    Signal
	FastMA    float64
	SlowMA    float64
	LastClose float64
}

// Crossover classifies the relation of a fast and a slow simple moving
// average over the most recent closes. FastPeriod < SlowPeriod.
type Crossover struct {
	FastPeriod int
	SlowPeriod int
}

func (c Crossover) Evaluate(bars []broker.Bar) Evaluation {
	fast, okFast := SMA(bars, c.FastPeriod)
	slow, okSlow := SMA(bars, c.SlowPeriod)
	if !okFast || !okSlow {
		return Evaluation{Signal: Undetermined}
	}

	eval := Evaluation{
		FastMA:    fast,
		SlowMA:    slow,
		LastClose: bars[len(bars)-1].Close,
	}
	switch {
	case fast > slow:
		eval.Signal = Buy
	case fast < slow:
		eval.Signal = Sell
	default:
		// Exact equality is a legitimate branch: no edge either way.
		eval.Signal = Hold
	}
	return eval
}

// SMA computes the arithmetic mean close over the most recent period
// bars. The second return is false when the history is too short.
func SMA(bars []broker.Bar, period int) (float64, bool) {
	if period <= 0 || len(bars) < period {
		return 0, false
	}
	sum := 0.0
	for _, bar := range bars[len(bars)-period:] {
		sum += bar.Close
	}
	return sum / float64(period), true
}
