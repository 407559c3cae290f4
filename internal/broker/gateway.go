// Package broker defines the gateway interface the strategy engine trades
// through, plus the Alpaca-backed implementation of it. The engine never
// talks to the venue SDK directly; everything crosses this boundary as
// domain types.
package broker

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Bar is one daily price bar, oldest bars first in any slice of them.
type Bar struct {
	Timestamp time.Time
	Close     float64
}

// Instrument is a qualified, tradable contract handle returned by the
// gateway. Callers treat it as opaque and pass it back unchanged.
type Instrument struct {
	Symbol   string
	Exchange string
	Currency string
}

// Position is the venue's authoritative view of a holding. Qty is signed:
// positive long, negative short, zero flat.
type Position struct {
	Symbol  string
	Qty     int
	AvgCost decimal.Decimal
}

// OrderRef identifies a submitted order for later status polls.
type OrderRef struct {
	ID            string
	ClientOrderID string
}

type OrderState string

const (
	OrderPending  OrderState = "pending"
	OrderFilled   OrderState = "filled"
	OrderRejected OrderState = "rejected"
)

// OrderUpdate is one status poll result. FillPrice is meaningful only
// when State is OrderFilled.
type OrderUpdate struct {
	State     OrderState
	FillPrice decimal.Decimal
}

// Quote is a point-in-time price observation. Last is the most recent
// trade price, PrevClose the prior session's close; either may be zero
// when the venue has nothing to report.
type Quote struct {
	Last      float64
	PrevClose float64
}

// QuoteSub is a transient live-quote subscription. Read blocks until a
// quote is available or ctx expires. Close releases the subscription and
// must be called on every exit path.
type QuoteSub interface {
	Read(ctx context.Context) (Quote, error)
	Close()
}

// Gateway is the brokerage connection the engine owns for its lifetime.
// Connect must succeed before any other call; Disconnect is idempotent.
type Gateway interface {
	Connect(ctx context.Context) error
	QualifyInstrument(ctx context.Context, symbol, exchange, currency string) (Instrument, error)
	DailyBars(ctx context.Context, inst Instrument, lookbackDays int) ([]Bar, error)
	ListPositions(ctx context.Context) ([]Position, error)
	SubmitMarketOrder(ctx context.Context, inst Instrument, side Side, qty int) (OrderRef, error)
	OrderStatus(ctx context.Context, ref OrderRef) (OrderUpdate, error)
	SubscribeQuote(ctx context.Context, inst Instrument) (QuoteSub, error)
	Disconnect()
}

// WaitForContext sleeps for delay unless ctx is cancelled first, in which
// case it returns the context error immediately.
func WaitForContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
