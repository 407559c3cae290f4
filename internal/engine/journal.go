package engine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"mabot/internal/broker"
	"mabot/internal/strategy"
)

// CycleRecord is one evaluation cycle's result, appended as a single
// NDJSON line: what the signal was, what was held, what was ordered,
// and what the position was worth.
type CycleRecord struct {
	Timestamp   time.Time       `json:"timestamp"`
	Ticker      string          `json:"ticker"`
	Signal      strategy.Signal `json:"signal"`
	FastMA      float64         `json:"fast_ma,omitempty"`
	SlowMA      float64         `json:"slow_ma,omitempty"`
	PositionQty int             `json:"position_qty"`
	AvgCost     string          `json:"avg_cost"`
	OrderSide   broker.Side     `json:"order_side,omitempty"`
	OrderQty    int             `json:"order_qty,omitempty"`
	OrderStatus OutcomeStatus   `json:"order_status,omitempty"`
	FillPrice   string          `json:"fill_price,omitempty"`
	PnL         string          `json:"pnl,omitempty"`
}

// PnLIndeterminate is recorded when no price was available, so readers
// can tell "no P&L" from "P&L of zero".
const PnLIndeterminate = "indeterminate"

type Journal struct {
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
}

func NewJournal(path string) (*Journal, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Journal{file: file, writer: bufio.NewWriter(file)}, nil
}

func (j *Journal) Append(record CycleRecord) {
	j.mu.Lock()
	defer j.mu.Unlock()
	payload, err := json.Marshal(record)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal cycle record: %v\n", err)
		return
	}
	if _, err := j.writer.Write(append(payload, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write cycle record: %v\n", err)
		return
	}
	if err := j.writer.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to flush journal: %v\n", err)
	}
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.writer.Flush(); err != nil {
		_ = j.file.Close()
		return err
	}
	return j.file.Close()
}
