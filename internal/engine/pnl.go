package engine

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"mabot/internal/broker"
)

const defaultQuoteWait = 2 * time.Second

// ErrNoQuote marks an indeterminate P&L: no usable live or closing
// price was available this cycle. Distinct from a zero P&L.
var ErrNoQuote = errors.New("no price available")

// PnLCalc marks an open position to market. The quote subscription it
// takes out is transient and released on every exit path.
type PnLCalc struct {
	gw        broker.Gateway
	quoteWait time.Duration
}

func NewPnLCalc(gw broker.Gateway) *PnLCalc {
	return &PnLCalc{gw: gw, quoteWait: defaultQuoteWait}
}

// Unrealized returns (price - avg cost) * qty for the given position. A
// flat position is exactly zero with no quote lookup. The last-trade
// price is preferred; the prior close is the fallback; with neither,
// ErrNoQuote is returned.
func (c *PnLCalc) Unrealized(ctx context.Context, inst broker.Instrument, pos broker.Position) (decimal.Decimal, error) {
	if pos.Qty == 0 {
		return decimal.Zero, nil
	}

	sub, err := c.gw.SubscribeQuote(ctx, inst)
	if err != nil {
		return decimal.Zero, ErrNoQuote
	}
	defer sub.Close()

	waitCtx, cancel := context.WithTimeout(ctx, c.quoteWait)
	defer cancel()
	quote, err := sub.Read(waitCtx)
	if err != nil {
		return decimal.Zero, ErrNoQuote
	}

	price := quote.Last
	if price <= 0 {
		price = quote.PrevClose
	}
	if price <= 0 {
		return decimal.Zero, ErrNoQuote
	}

	return decimal.NewFromFloat(price).
		Sub(pos.AvgCost).
		Mul(decimal.NewFromInt(int64(pos.Qty))), nil
}
