package engine

import (
	"context"

	"github.com/pkg/errors"

	"mabot/internal/broker"
)

type submittedOrder struct {
	Side broker.Side
	Qty  int
}

// fakeGateway scripts gateway responses for engine tests. Status polls
// consume statusSeq in order; the last entry repeats.
type fakeGateway struct {
	positions    []broker.Position
	positionsErr error

	bars    []broker.Bar
	barsErr error

	submitted []submittedOrder
	submitErr error

	statusSeq  []broker.OrderUpdate
	statusErr  error
	statusPoll int

	quote        broker.Quote
	subscribeErr error
	subscribes   int
	subClosed    bool

	connects    int
	disconnects int
}

func (f *fakeGateway) Connect(ctx context.Context) error {
	f.connects++
	return nil
}

func (f *fakeGateway) QualifyInstrument(ctx context.Context, symbol, exchange, currency string) (broker.Instrument, error) {
	return broker.Instrument{Symbol: symbol, Exchange: exchange, Currency: currency}, nil
}

func (f *fakeGateway) DailyBars(ctx context.Context, inst broker.Instrument, lookbackDays int) ([]broker.Bar, error) {
	if f.barsErr != nil {
		return nil, f.barsErr
	}
	return f.bars, nil
}

func (f *fakeGateway) ListPositions(ctx context.Context) ([]broker.Position, error) {
	if f.positionsErr != nil {
		return nil, f.positionsErr
	}
	return f.positions, nil
}

func (f *fakeGateway) SubmitMarketOrder(ctx context.Context, inst broker.Instrument, side broker.Side, qty int) (broker.OrderRef, error) {
	if f.submitErr != nil {
		return broker.OrderRef{}, f.submitErr
	}
	f.submitted = append(f.submitted, submittedOrder{Side: side, Qty: qty})
	return broker.OrderRef{ID: "order-1", ClientOrderID: "client-1"}, nil
}

func (f *fakeGateway) OrderStatus(ctx context.Context, ref broker.OrderRef) (broker.OrderUpdate, error) {
	if f.statusErr != nil {
		return broker.OrderUpdate{}, f.statusErr
	}
	if len(f.statusSeq) == 0 {
		return broker.OrderUpdate{State: broker.OrderPending}, nil
	}
	idx := f.statusPoll
	if idx >= len(f.statusSeq) {
		idx = len(f.statusSeq) - 1
	}
	f.statusPoll++
	return f.statusSeq[idx], nil
}

func (f *fakeGateway) SubscribeQuote(ctx context.Context, inst broker.Instrument) (broker.QuoteSub, error) {
	f.subscribes++
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	return &fakeQuoteSub{gw: f}, nil
}

func (f *fakeGateway) Disconnect() {
	f.disconnects++
}

type fakeQuoteSub struct {
	gw *fakeGateway
}

func (s *fakeQuoteSub) Read(ctx context.Context) (broker.Quote, error) {
	return s.gw.quote, nil
}

func (s *fakeQuoteSub) Close() {
	s.gw.subClosed = true
}

var errGatewayDown = errors.New("gateway down")
