// Package engine runs the moving-average crossover strategy: one
// evaluation per interval, at most one order per evaluation, and a
// gateway connection owned for the whole run.
package engine

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"mabot/internal/broker"
	"mabot/internal/config"
	"mabot/internal/market"
	"mabot/internal/strategy"
)

type Engine struct {
	cfg       config.Config
	gw        broker.Gateway
	crossover strategy.Crossover
	tracker   *Tracker
	executor  *Executor
	pnl       *PnLCalc
	journal   *Journal
	log       *zap.Logger

	// now is swapped out in tests to pin the market-hours gate.
	now func() time.Time
}

func New(cfg config.Config, gw broker.Gateway, journal *Journal, log *zap.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		gw:        gw,
		crossover: strategy.Crossover{FastPeriod: cfg.FastPeriod, SlowPeriod: cfg.SlowPeriod},
		tracker:   NewTracker(gw, cfg.Ticker),
		executor:  NewExecutor(gw, log),
		pnl:       NewPnLCalc(gw),
		journal:   journal,
		log:       log,
		now:       time.Now,
	}
}

// Run connects, loops until ctx is cancelled or a cycle fails in a way
// the loop cannot absorb, and disconnects on every exit path. Shutdown
// latency is bounded by about one second regardless of the configured
// check interval.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.gw.Connect(ctx); err != nil {
		return errors.Wrap(err, "gateway connect")
	}
	defer e.gw.Disconnect()

	inst, err := e.gw.QualifyInstrument(ctx, e.cfg.Ticker, e.cfg.Exchange, e.cfg.Currency)
	if err != nil {
		return errors.Wrap(err, "qualify instrument")
	}

	e.log.Info("bot started",
		zap.String("ticker", e.cfg.Ticker),
		zap.Int("ma_fast", e.cfg.FastPeriod),
		zap.Int("ma_slow", e.cfg.SlowPeriod),
		zap.Int("position_size", e.cfg.PositionSize),
		zap.Duration("check_interval", e.cfg.CheckInterval()))

	for {
		select {
		case <-ctx.Done():
			e.log.Info("shutdown requested, stopping")
			return nil
		default:
		}

		if market.InHours(e.now()) {
			if err := e.runCycle(ctx, inst); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					e.log.Info("shutdown requested during cycle, stopping")
					return nil
				}
				e.log.Error("cycle failed, stopping", zap.Error(err))
				return err
			}
		} else {
			e.log.Info("outside market hours, waiting")
		}

		if err := e.waitInterval(ctx); err != nil {
			e.log.Info("shutdown requested, stopping")
			return nil
		}
	}
}

// waitInterval sleeps the configured interval in one-second increments,
// re-checking cancellation after each one.
func (e *Engine) waitInterval(ctx context.Context) error {
	for i := 0; i < e.cfg.CheckIntervalSeconds; i++ {
		if err := broker.WaitForContext(ctx, time.Second); err != nil {
			return err
		}
	}
	return nil
}

// runCycle is one full evaluation: position, signal, order, P&L,
// journal. Missing bar history and missing quotes are absorbed here;
// anything else stops the loop.
func (e *Engine) runCycle(ctx context.Context, inst broker.Instrument) error {
	pos, err := e.tracker.Current(ctx)
	if err != nil {
		return err
	}
	e.log.Info("current position", zap.Int("qty", pos.Qty), zap.String("avg_cost", pos.AvgCost.StringFixed(2)))

	record := CycleRecord{
		Timestamp:   e.now().UTC(),
		Ticker:      e.cfg.Ticker,
		PositionQty: pos.Qty,
		AvgCost:     pos.AvgCost.String(),
	}

	bars, err := e.gw.DailyBars(ctx, inst, e.cfg.LookbackDays)
	if err != nil {
		// Stale or missing history only costs this cycle's decision.
		e.log.Warn("bar history unavailable, skipping cycle", zap.Error(err))
		return nil
	}

	eval := e.crossover.Evaluate(bars)
	record.Signal = eval.Signal
	if eval.Signal == strategy.Undetermined {
		e.log.Warn("not enough history for signal", zap.Int("bars", len(bars)), zap.Int("ma_slow", e.cfg.SlowPeriod))
		e.journal.Append(record)
		return nil
	}
	record.FastMA = eval.FastMA
	record.SlowMA = eval.SlowMA
	e.log.Info("signal",
		zap.String("signal", string(eval.Signal)),
		zap.Float64("price", eval.LastClose),
		zap.Float64("fast_ma", eval.FastMA),
		zap.Float64("slow_ma", eval.SlowMA))

	if spec, ok := SizeOrder(eval.Signal, pos, e.cfg.PositionSize); ok {
		record.OrderSide = spec.Side
		record.OrderQty = spec.Qty
		outcome, err := e.executor.Execute(ctx, inst, spec)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			// No retry within the cycle: a second market order would
			// compound exposure on a venue that may have accepted the
			// first one.
			e.log.Error("order submission failed", zap.String("side", string(spec.Side)), zap.Int("qty", spec.Qty), zap.Error(err))
		} else {
			record.OrderStatus = outcome.Status
			if outcome.Status == OutcomeFilled {
				record.FillPrice = outcome.FillPrice.String()
			}
		}
	} else {
		e.log.Info("no action", zap.String("signal", string(eval.Signal)), zap.Int("position", pos.Qty))
	}

	pnl, err := e.pnl.Unrealized(ctx, inst, pos)
	switch {
	case errors.Is(err, ErrNoQuote):
		e.log.Warn("unrealized pnl indeterminate, no price available")
		record.PnL = PnLIndeterminate
	case err != nil:
		return err
	default:
		e.log.Info("unrealized pnl", zap.String("pnl", pnl.StringFixed(2)))
		record.PnL = pnl.String()
	}

	e.journal.Append(record)
	return nil
}
