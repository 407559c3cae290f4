package engine

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"mabot/internal/broker"
	"mabot/internal/strategy"
)

const (
	defaultFillPoll    = time.Second
	defaultFillTimeout = 30 * time.Second
)

// OrderSpec is the at-most-one order a cycle may issue.
type OrderSpec struct {
	Side broker.Side
	Qty  int
}

type OutcomeStatus string

const (
	OutcomeFilled   OutcomeStatus = "filled"
	OutcomeTimedOut OutcomeStatus = "timed_out"
	OutcomeRejected OutcomeStatus = "rejected"
)

// Outcome is the terminal state of one executed order. FillPrice is set
// only when Status is OutcomeFilled.
type Outcome struct {
	Status    OutcomeStatus
	FillPrice decimal.Decimal
}

// SizeOrder maps (signal, position) to an order under the crossover
// sizing policy: a BUY closes any short and opens a fresh long of size
// shares in one order; a SELL flattens an existing long and never opens
// a short. Every other combination holds the current exposure.
func SizeOrder(sig strategy.Signal, pos broker.Position, size int) (OrderSpec, bool) {
	switch {
	case sig == strategy.Buy && pos.Qty < 0:
		return OrderSpec{Side: broker.Buy, Qty: -pos.Qty + size}, true
	case sig == strategy.Buy && pos.Qty == 0:
		return OrderSpec{Side: broker.Buy, Qty: size}, true
	case sig == strategy.Sell && pos.Qty > 0:
		return OrderSpec{Side: broker.Sell, Qty: pos.Qty}, true
	}
	return OrderSpec{}, false
}

// Executor drives a submitted order through submit -> poll -> terminal
// state. A timed-out order is left working at the venue: it is not
// cancelled and not retried, and may still fill after the cycle moved
// on.
type Executor struct {
	gw broker.Gateway

	// poll cadence and fill deadline; overridable in tests
	pollInterval time.Duration
	fillTimeout  time.Duration

	log *zap.Logger
}

func NewExecutor(gw broker.Gateway, log *zap.Logger) *Executor {
	return &Executor{
		gw:           gw,
		pollInterval: defaultFillPoll,
		fillTimeout:  defaultFillTimeout,
		log:          log,
	}
}

// Execute submits exactly one market order and polls its status until
// fill, rejection, or the deadline. The returned error is non-nil only
// for a failed submission or a cancelled context; a timeout or a
// broker-side rejection is an Outcome, not an error.
func (e *Executor) Execute(ctx context.Context, inst broker.Instrument, spec OrderSpec) (Outcome, error) {
	ref, err := e.gw.SubmitMarketOrder(ctx, inst, spec.Side, spec.Qty)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "submit market order")
	}

	deadline := time.Now().Add(e.fillTimeout)
	for {
		if err := broker.WaitForContext(ctx, e.pollInterval); err != nil {
			return Outcome{}, err
		}
		if !time.Now().Before(deadline) {
			break
		}

		update, err := e.gw.OrderStatus(ctx, ref)
		if err != nil {
			// Transient poll failure; the deadline still bounds the wait.
			e.log.Warn("order status poll failed", zap.String("order_id", ref.ID), zap.Error(err))
			continue
		}
		switch update.State {
		case broker.OrderFilled:
			e.log.Info("order filled",
				zap.String("order_id", ref.ID),
				zap.String("side", string(spec.Side)),
				zap.Int("qty", spec.Qty),
				zap.String("fill_price", update.FillPrice.StringFixed(2)))
			return Outcome{Status: OutcomeFilled, FillPrice: update.FillPrice}, nil
		case broker.OrderRejected:
			e.log.Warn("order rejected", zap.String("order_id", ref.ID), zap.String("side", string(spec.Side)), zap.Int("qty", spec.Qty))
			return Outcome{Status: OutcomeRejected}, nil
		}
	}

	e.log.Warn("order not filled within deadline, leaving it working",
		zap.String("order_id", ref.ID),
		zap.Duration("deadline", e.fillTimeout))
	return Outcome{Status: OutcomeTimedOut}, nil
}
