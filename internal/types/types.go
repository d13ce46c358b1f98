package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Symbol identifies a tradable instrument. It is the key used across the
// whole pipeline.
type Symbol string

// Window is the time range a data engine should fetch for.
type Window struct {
	Start time.Time
	End   time.Time
}

type SignalKind string

const (
	SignalSeries SignalKind = "SERIES"
	SignalScalar SignalKind = "SCALAR"
	SignalText   SignalKind = "TEXT"
)

// Signal is one named market observation contributed by exactly one engine.
// Exactly one of Series/Scalar/Text is meaningful, per Kind.
type Signal struct {
	Engine    string
	Kind      SignalKind
	Series    []float64
	Scalar    float64
	Text      string
	FetchedAt time.Time
}

// Snapshot is the merged market data for one symbol at one point in time.
// It is assembled once by the aggregator and never mutated afterwards.
type Snapshot struct {
	Symbol  Symbol
	TakenAt time.Time
	Signals map[string]Signal
	// Gaps lists the signal names whose engine failed this cycle.
	Gaps []string
}

type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
	Hold Action = "HOLD"
)

// Decision is the structured trading action proposed by the model.
// Invariants, enforced by the parser: HOLD implies Qty==0, Qty>0 implies
// BUY or SELL, Confidence in [0,1].
type Decision struct {
	Symbol     Symbol  `json:"symbol"`
	Action     Action  `json:"action"`
	Qty        int64   `json:"qty"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// AccountState is a read-only view of the brokerage account, refreshed once
// per cycle and threaded through the risk guard.
type AccountState struct {
	Cash        decimal.Decimal
	BuyingPower decimal.Decimal
	Positions   map[Symbol]int64
}

// Held returns the quantity currently held for a symbol.
func (a AccountState) Held(s Symbol) int64 {
	return a.Positions[s]
}

// ValidatedOrder is a decision that passed the risk guard, annotated with
// the quantity actually to be submitted. Consumed exactly once by the
// executor.
type ValidatedOrder struct {
	Symbol     Symbol
	Action     Action
	Qty        int64
	Confidence float64
	Rationale  string
	CycleID    string
	// Notes records the adjustments the risk guard applied (caps, forced HOLD).
	Notes []string
}

// OrderRequest is the wire-level order handed to the brokerage.
type OrderRequest struct {
	Symbol        Symbol
	Side          Action
	Qty           int64
	ClientOrderID string
}

// OrderStatus is the brokerage's view of an order.
type OrderStatus struct {
	OrderID        string
	ClientOrderID  string
	Status         string
	FilledQty      int64
	FilledAvgPrice decimal.Decimal
	SubmittedAt    time.Time
}

// Brokerage order statuses we act on.
const (
	StatusNew             = "new"
	StatusAccepted        = "accepted"
	StatusPartiallyFilled = "partially_filled"
	StatusFilled          = "filled"
	StatusRejected        = "rejected"
	StatusCanceled        = "canceled"
)

// Terminal reports whether a status is an end state for an order.
func Terminal(status string) bool {
	switch status {
	case StatusFilled, StatusRejected, StatusCanceled:
		return true
	}
	return false
}

// OrderReceipt is the terminal record of one cycle's execution.
type OrderReceipt struct {
	OrderID        string
	ClientOrderID  string
	Symbol         Symbol
	Status         string
	AcceptedAt     time.Time
	FilledQty      int64
	FilledAvgPrice decimal.Decimal
}

// NoopReceipt is what the executor returns for HOLD orders without
// contacting the brokerage.
func NoopReceipt(symbol Symbol, cycleID string) OrderReceipt {
	return OrderReceipt{
		ClientOrderID: cycleID,
		Symbol:        symbol,
		Status:        "noop",
		AcceptedAt:    time.Now().UTC(),
	}
}

// CycleResult summarizes one full pass of the pipeline for one symbol.
type CycleResult struct {
	Symbol   Symbol        `json:"symbol"`
	CycleID  string        `json:"cycle_id"`
	Decision Decision      `json:"decision"`
	Receipt  *OrderReceipt `json:"receipt,omitempty"`
	Ts       int64         `json:"ts"`
}
