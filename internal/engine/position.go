package engine

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"mabot/internal/broker"
)

// Tracker reads the authoritative holding for one instrument from the
// gateway. It is re-queried before every sizing decision; a prior
// cycle's answer is never reused.
type Tracker struct {
	gw     broker.Gateway
	symbol string
}

func NewTracker(gw broker.Gateway, symbol string) *Tracker {
	return &Tracker{gw: gw, symbol: symbol}
}

// Current returns the venue's view of the position, or a flat zero-cost
// position when the instrument is not held at all.
func (t *Tracker) Current(ctx context.Context) (broker.Position, error) {
	positions, err := t.gw.ListPositions(ctx)
	if err != nil {
		return broker.Position{}, errors.Wrap(err, "refresh position")
	}
	for _, pos := range positions {
		if pos.Symbol == t.symbol {
			return pos, nil
		}
	}
	return broker.Position{Symbol: t.symbol, Qty: 0, AvgCost: decimal.Zero}, nil
}
