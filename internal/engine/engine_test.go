package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mabot/internal/broker"
	"mabot/internal/config"
	"mabot/internal/strategy"
)

var (
	weekdayNoon = time.Date(2024, time.March, 6, 12, 0, 0, 0, time.Local) // Wednesday
	saturday    = time.Date(2024, time.March, 9, 12, 0, 0, 0, time.Local)
)

func testConfig() config.Config {
	return config.Config{
		Ticker:               "AAPL",
		Exchange:             "SMART",
		Currency:             "USD",
		FastPeriod:           2,
		SlowPeriod:           3,
		PositionSize:         10,
		CheckIntervalSeconds: 300,
		LookbackDays:         10,
	}
}

func newTestEngine(t *testing.T, gw broker.Gateway, now time.Time) *Engine {
	t.Helper()
	journal, err := NewJournal(filepath.Join(t.TempDir(), "trades.ndjson"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	e := New(testConfig(), gw, journal, zap.NewNop())
	e.now = func() time.Time { return now }
	e.executor.pollInterval = time.Millisecond
	e.executor.fillTimeout = 20 * time.Millisecond
	e.pnl.quoteWait = 20 * time.Millisecond
	return e
}

func journalRecords(t *testing.T, e *Engine) []CycleRecord {
	t.Helper()
	require.NoError(t, e.journal.writer.Flush())
	data, err := os.ReadFile(e.journal.file.Name())
	require.NoError(t, err)
	var records []CycleRecord
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var rec CycleRecord
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		records = append(records, rec)
	}
	return records
}

func makeBars(closes ...float64) []broker.Bar {
	bars := make([]broker.Bar, 0, len(closes))
	day := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars = append(bars, broker.Bar{Timestamp: day.AddDate(0, 0, i), Close: c})
	}
	return bars
}

func TestRunExitsPromptlyAfterCancel(t *testing.T) {
	gw := &fakeGateway{}
	e := newTestEngine(t, gw, saturday) // outside hours, loop only sleeps

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(1500 * time.Millisecond):
		t.Fatal("engine did not stop within a second of cancellation")
	}
	assert.Equal(t, 1, gw.connects)
	assert.Equal(t, 1, gw.disconnects, "gateway must be released exactly once")
}

func TestRunDisconnectsAfterCycleError(t *testing.T) {
	gw := &fakeGateway{positionsErr: errGatewayDown}
	e := newTestEngine(t, gw, weekdayNoon)

	err := e.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, gw.disconnects, "gateway must be released on the error path too")
}

func TestCycleBuySignalWhileFlat(t *testing.T) {
	gw := &fakeGateway{
		bars: makeBars(10, 11, 12), // fast 11.5 > slow 11
		statusSeq: []broker.OrderUpdate{
			{State: broker.OrderFilled, FillPrice: decimal.NewFromFloat(12.1)},
		},
	}
	e := newTestEngine(t, gw, weekdayNoon)

	require.NoError(t, e.runCycle(context.Background(), broker.Instrument{Symbol: "AAPL"}))

	require.Len(t, gw.submitted, 1)
	assert.Equal(t, submittedOrder{Side: broker.Buy, Qty: 10}, gw.submitted[0])

	records := journalRecords(t, e)
	require.Len(t, records, 1)
	assert.Equal(t, strategy.Buy, records[0].Signal)
	assert.Equal(t, OutcomeFilled, records[0].OrderStatus)
	assert.Equal(t, "12.1", records[0].FillPrice)
	assert.Equal(t, "0", records[0].PnL) // flat going in, so nothing marked to market
}

func TestCycleSellSignalFlattensLong(t *testing.T) {
	gw := &fakeGateway{
		positions: []broker.Position{{Symbol: "AAPL", Qty: 8, AvgCost: decimal.NewFromInt(50)}},
		bars:      makeBars(12, 11, 10), // fast 10.5 < slow 11
		statusSeq: []broker.OrderUpdate{
			{State: broker.OrderFilled, FillPrice: decimal.NewFromInt(55)},
		},
		quote: broker.Quote{Last: 55},
	}
	e := newTestEngine(t, gw, weekdayNoon)

	require.NoError(t, e.runCycle(context.Background(), broker.Instrument{Symbol: "AAPL"}))

	require.Len(t, gw.submitted, 1)
	assert.Equal(t, submittedOrder{Side: broker.Sell, Qty: 8}, gw.submitted[0])

	records := journalRecords(t, e)
	require.Len(t, records, 1)
	assert.Equal(t, "40", records[0].PnL) // (55-50)*8, position as read at cycle start
}

func TestCycleNoActionWhileAlreadyLong(t *testing.T) {
	gw := &fakeGateway{
		positions: []broker.Position{{Symbol: "AAPL", Qty: 5, AvgCost: decimal.NewFromInt(10)}},
		bars:      makeBars(10, 11, 12),
		quote:     broker.Quote{Last: 12},
	}
	e := newTestEngine(t, gw, weekdayNoon)

	require.NoError(t, e.runCycle(context.Background(), broker.Instrument{Symbol: "AAPL"}))
	assert.Empty(t, gw.submitted)

	records := journalRecords(t, e)
	require.Len(t, records, 1)
	assert.Equal(t, strategy.Buy, records[0].Signal)
	assert.Empty(t, records[0].OrderStatus)
}

func TestCycleSkipsWhenHistoryUnavailable(t *testing.T) {
	gw := &fakeGateway{barsErr: errGatewayDown}
	e := newTestEngine(t, gw, weekdayNoon)

	require.NoError(t, e.runCycle(context.Background(), broker.Instrument{Symbol: "AAPL"}))
	assert.Empty(t, gw.submitted)
	assert.Empty(t, journalRecords(t, e))
}

func TestCycleUndeterminedSignalSkipsOrder(t *testing.T) {
	gw := &fakeGateway{bars: makeBars(10, 11)} // shorter than the slow period
	e := newTestEngine(t, gw, weekdayNoon)

	require.NoError(t, e.runCycle(context.Background(), broker.Instrument{Symbol: "AAPL"}))
	assert.Empty(t, gw.submitted)

	records := journalRecords(t, e)
	require.Len(t, records, 1)
	assert.Equal(t, strategy.Undetermined, records[0].Signal)
}

func TestCycleRecordsIndeterminatePnL(t *testing.T) {
	gw := &fakeGateway{
		positions: []broker.Position{{Symbol: "AAPL", Qty: 5, AvgCost: decimal.NewFromInt(10)}},
		bars:      makeBars(10, 10, 10), // HOLD, no order
		// no last trade and no prior close
	}
	e := newTestEngine(t, gw, weekdayNoon)

	require.NoError(t, e.runCycle(context.Background(), broker.Instrument{Symbol: "AAPL"}))

	records := journalRecords(t, e)
	require.Len(t, records, 1)
	assert.Equal(t, strategy.Hold, records[0].Signal)
	assert.Equal(t, PnLIndeterminate, records[0].PnL)
}

func TestCycleOrderSubmitFailureDoesNotStopLoop(t *testing.T) {
	gw := &fakeGateway{
		bars:      makeBars(10, 11, 12),
		submitErr: errGatewayDown,
	}
	e := newTestEngine(t, gw, weekdayNoon)

	require.NoError(t, e.runCycle(context.Background(), broker.Instrument{Symbol: "AAPL"}))
	records := journalRecords(t, e)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].OrderStatus, "a failed submission has no outcome")
}
