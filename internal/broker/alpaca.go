package broker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const quotePollInterval = 500 * time.Millisecond

// Alpaca implements Gateway against the Alpaca trading and market data
// REST APIs. The paper endpoint is the default venue.
type Alpaca struct {
	trading  *alpaca.Client
	md       *marketdata.Client
	clientID int
	log      *zap.Logger
}

type AlpacaOpts struct {
	APIKey    string
	APISecret string
	BaseURL   string
	ClientID  int
}

func NewAlpaca(opts AlpacaOpts, log *zap.Logger) *Alpaca {
	return &Alpaca{
		trading: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    opts.APIKey,
			APISecret: opts.APISecret,
			BaseURL:   opts.BaseURL,
		}),
		md: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    opts.APIKey,
			APISecret: opts.APISecret,
		}),
		clientID: opts.ClientID,
		log:      log,
	}
}

// Connect verifies credentials and reachability with an account fetch.
// There is no session to hold open; failure here is fatal to the run.
func (a *Alpaca) Connect(ctx context.Context) error {
	acct, err := a.trading.GetAccount()
	if err != nil {
		return errors.Wrap(err, "connect gateway")
	}
	equity, _ := acct.Equity.Float64()
	buyingPower, _ := acct.BuyingPower.Float64()
	a.log.Info("gateway connected", zap.Float64("equity", equity), zap.Float64("buying_power", buyingPower))
	return nil
}

func (a *Alpaca) QualifyInstrument(ctx context.Context, symbol, exchange, currency string) (Instrument, error) {
	asset, err := a.trading.GetAsset(symbol)
	if err != nil {
		return Instrument{}, errors.Wrapf(err, "qualify %s", symbol)
	}
	if !asset.Tradable {
		return Instrument{}, errors.Errorf("instrument %s is not tradable", symbol)
	}
	inst := Instrument{Symbol: asset.Symbol, Exchange: exchange, Currency: currency}
	a.log.Info("instrument qualified", zap.String("symbol", inst.Symbol), zap.String("exchange", inst.Exchange), zap.String("currency", inst.Currency))
	return inst, nil
}

func (a *Alpaca) DailyBars(ctx context.Context, inst Instrument, lookbackDays int) ([]Bar, error) {
	start := time.Now().AddDate(0, 0, -lookbackDays)
	raw, err := a.md.GetBars(inst.Symbol, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Start:      start,
		TotalLimit: lookbackDays,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetch daily bars for %s", inst.Symbol)
	}
	bars := make([]Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, Bar{Timestamp: b.Timestamp, Close: b.Close})
	}
	return bars, nil
}

func (a *Alpaca) ListPositions(ctx context.Context) ([]Position, error) {
	raw, err := a.trading.GetPositions()
	if err != nil {
		return nil, errors.Wrap(err, "list positions")
	}
	positions := make([]Position, 0, len(raw))
	for _, p := range raw {
		positions = append(positions, Position{
			Symbol:  p.Symbol,
			Qty:     int(p.Qty.IntPart()),
			AvgCost: p.AvgEntryPrice,
		})
	}
	return positions, nil
}

func (a *Alpaca) SubmitMarketOrder(ctx context.Context, inst Instrument, side Side, qty int) (OrderRef, error) {
	orderQty := decimal.NewFromInt(int64(qty))
	req := alpaca.PlaceOrderRequest{
		Symbol:        inst.Symbol,
		Qty:           &orderQty,
		Side:          alpacaSide(side),
		Type:          alpaca.Market,
		TimeInForce:   alpaca.Day,
		ClientOrderID: a.nextClientOrderID(),
	}
	order, err := a.trading.PlaceOrder(req)
	if err != nil {
		a.log.Error("place order failed", zap.String("side", string(side)), zap.String("symbol", inst.Symbol), zap.Int("qty", qty), zap.Error(err))
		return OrderRef{}, errors.Wrap(err, "place order")
	}
	a.log.Info("order placed", zap.String("order_id", order.ID), zap.String("side", string(side)), zap.String("symbol", inst.Symbol), zap.Int("qty", qty), zap.String("status", string(order.Status)))
	return OrderRef{ID: order.ID, ClientOrderID: order.ClientOrderID}, nil
}

func (a *Alpaca) OrderStatus(ctx context.Context, ref OrderRef) (OrderUpdate, error) {
	order, err := a.trading.GetOrder(ref.ID)
	if err != nil {
		return OrderUpdate{}, errors.Wrapf(err, "order status %s", ref.ID)
	}
	update := OrderUpdate{State: mapOrderState(string(order.Status))}
	if update.State == OrderFilled && order.FilledAvgPrice != nil {
		update.FillPrice = *order.FilledAvgPrice
	}
	return update, nil
}

func (a *Alpaca) SubscribeQuote(ctx context.Context, inst Instrument) (QuoteSub, error) {
	return &alpacaQuoteSub{md: a.md, symbol: inst.Symbol}, nil
}

// Disconnect exists to satisfy the single-release contract of the
// gateway; the REST clients hold no persistent connection.
func (a *Alpaca) Disconnect() {
	a.log.Info("gateway disconnected")
}

func (a *Alpaca) nextClientOrderID() string {
	return fmt.Sprintf("mabot-%d-%s", a.clientID, uuid.NewString())
}

func alpacaSide(side Side) alpaca.Side {
	if side == Sell {
		return alpaca.Sell
	}
	return alpaca.Buy
}

func mapOrderState(status string) OrderState {
	switch strings.ToLower(status) {
	case "filled":
		return OrderFilled
	case "rejected", "canceled", "expired", "stopped", "suspended":
		return OrderRejected
	default:
		return OrderPending
	}
}

// alpacaQuoteSub backs the transient quote subscription with latest-trade
// and snapshot lookups. Close has nothing to release.
type alpacaQuoteSub struct {
	md     *marketdata.Client
	symbol string
}

func (s *alpacaQuoteSub) Read(ctx context.Context) (Quote, error) {
	var q Quote
	for {
		trade, err := s.md.GetLatestTrade(s.symbol, marketdata.GetLatestTradeRequest{})
		if err == nil && trade != nil && trade.Price > 0 {
			q.Last = trade.Price
			break
		}
		if err := WaitForContext(ctx, quotePollInterval); err != nil {
			break
		}
	}
	snap, err := s.md.GetSnapshot(s.symbol, marketdata.GetSnapshotRequest{})
	if err == nil && snap != nil && snap.PrevDailyBar != nil {
		q.PrevClose = snap.PrevDailyBar.Close
	}
	return q, nil
}

func (s *alpacaQuoteSub) Close() {}
