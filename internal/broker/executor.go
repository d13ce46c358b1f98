package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"llm-paper-trader/internal/broker/alpaca"
	"llm-paper-trader/internal/interfaces"
	"llm-paper-trader/internal/logger"
	"llm-paper-trader/internal/trace"
	"llm-paper-trader/internal/types"
)

// Executor submits validated orders and tracks them to a terminal state.
// It remembers every (symbol, cycle id) pair it has accepted in this
// process's lifetime so a repeated Submit for the same cycle never places
// a duplicate order.
type Executor struct {
	brokerage    interfaces.Brokerage
	submitWait   time.Duration
	pollInterval time.Duration

	mu       sync.Mutex
	accepted map[string]bool
	receipts map[string]*types.OrderReceipt
}

func NewExecutor(brokerage interfaces.Brokerage, submitTimeout, pollInterval time.Duration) *Executor {
	return &Executor{
		brokerage:    brokerage,
		submitWait:   submitTimeout,
		pollInterval: pollInterval,
		accepted:     make(map[string]bool),
		receipts:     make(map[string]*types.OrderReceipt),
	}
}

func submissionKey(symbol types.Symbol, cycleID string) string {
	return string(symbol) + "|" + cycleID
}

// Submit executes one validated order. HOLD orders short-circuit to a no-op
// receipt without contacting the brokerage. The cycle id doubles as the
// brokerage client order id, so an ambiguous submission can be resolved by
// re-query instead of resubmission.
func (e *Executor) Submit(ctx context.Context, order *types.ValidatedOrder) (*types.OrderReceipt, error) {
	ctx, span := trace.StartSpan(ctx, "executor.Submit")
	defer span.End()

	if order.Action == types.Hold {
		r := types.NoopReceipt(order.Symbol, order.CycleID)
		return &r, nil
	}

	key := submissionKey(order.Symbol, order.CycleID)

	e.mu.Lock()
	if r, ok := e.receipts[key]; ok {
		e.mu.Unlock()
		logger.Debug(ctx, "Order already executed this cycle, returning prior receipt",
			"symbol", order.Symbol, "cycle_id", order.CycleID)
		return r, nil
	}
	alreadyAccepted := e.accepted[key]
	e.mu.Unlock()

	var st types.OrderStatus
	var err error
	if alreadyAccepted {
		// Accepted previously but never tracked to a terminal state.
		// Resolve by query only.
		st, err = e.brokerage.OrderByClientID(ctx, order.CycleID)
		if err != nil {
			return nil, &types.ExecutionError{
				Symbol: order.Symbol,
				Reason: types.ExecAmbiguousSubmission,
				Detail: "order was accepted earlier but its status cannot be recovered",
				Err:    err,
			}
		}
	} else {
		st, err = e.submitOnce(ctx, order)
		if err != nil {
			return nil, err
		}
	}

	e.mu.Lock()
	e.accepted[key] = true
	e.mu.Unlock()

	final, err := e.awaitTerminal(ctx, order, st)
	if err != nil {
		return nil, err
	}

	if final.Status == types.StatusRejected {
		logger.Trade(ctx, string(order.Symbol), string(order.Action), order.Qty, final.OrderID, final.Status)
		return nil, &types.ExecutionError{
			Symbol: order.Symbol,
			Reason: types.ExecRejected,
			Detail: "brokerage rejected the order",
		}
	}

	receipt := &types.OrderReceipt{
		OrderID:        final.OrderID,
		ClientOrderID:  final.ClientOrderID,
		Symbol:         order.Symbol,
		Status:         final.Status,
		AcceptedAt:     final.SubmittedAt,
		FilledQty:      final.FilledQty,
		FilledAvgPrice: final.FilledAvgPrice,
	}

	e.mu.Lock()
	e.receipts[key] = receipt
	e.mu.Unlock()

	logger.Trade(ctx, string(order.Symbol), string(order.Action), order.Qty, receipt.OrderID, receipt.Status,
		"cycle_id", order.CycleID, "filled_qty", receipt.FilledQty)
	return receipt, nil
}

// submitOnce places the order. A brokerage rejection is final. A transport
// failure before any acknowledgment is retried once; if the retry also
// fails, the order's fate is resolved by client-order-id query rather than
// a third submission.
func (e *Executor) submitOnce(ctx context.Context, order *types.ValidatedOrder) (types.OrderStatus, error) {
	req := types.OrderRequest{
		Symbol:        order.Symbol,
		Side:          order.Action,
		Qty:           order.Qty,
		ClientOrderID: order.CycleID,
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		st, err := e.brokerage.SubmitOrder(ctx, req)
		if err == nil {
			return st, nil
		}

		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) && apiErr.Rejected() {
			return types.OrderStatus{}, &types.ExecutionError{
				Symbol: order.Symbol,
				Reason: types.ExecRejected,
				Detail: apiErr.Message,
				Err:    err,
			}
		}
		lastErr = err
		logger.Warn(ctx, "Order submission failed, may retry",
			"symbol", order.Symbol, "cycle_id", order.CycleID, "attempt", attempt+1, "error", err)
	}

	// Both attempts failed at the transport level. The order may or may
	// not exist at the brokerage; only a query can tell.
	st, qerr := e.brokerage.OrderByClientID(ctx, order.CycleID)
	if qerr != nil {
		return types.OrderStatus{}, &types.ExecutionError{
			Symbol: order.Symbol,
			Reason: types.ExecAmbiguousSubmission,
			Detail: fmt.Sprintf("submission failed and order lookup by client id %q failed", order.CycleID),
			Err:    errors.Join(lastErr, qerr),
		}
	}
	return st, nil
}

// awaitTerminal polls the brokerage until the order reaches a terminal
// state or the submit timeout elapses.
func (e *Executor) awaitTerminal(ctx context.Context, order *types.ValidatedOrder, st types.OrderStatus) (types.OrderStatus, error) {
	if types.Terminal(st.Status) {
		return st, nil
	}

	deadline := time.NewTimer(e.submitWait)
	defer deadline.Stop()
	tick := time.NewTicker(e.pollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return types.OrderStatus{}, &types.ExecutionError{
				Symbol: order.Symbol,
				Reason: types.ExecAmbiguousSubmission,
				Detail: "canceled while awaiting terminal order state",
				Err:    ctx.Err(),
			}
		case <-deadline.C:
			return types.OrderStatus{}, &types.ExecutionError{
				Symbol: order.Symbol,
				Reason: types.ExecAmbiguousSubmission,
				Detail: fmt.Sprintf("order %s not terminal after %s", st.OrderID, e.submitWait),
			}
		case <-tick.C:
			latest, err := e.brokerage.OrderByClientID(ctx, order.CycleID)
			if err != nil {
				logger.Warn(ctx, "Order status poll failed",
					"symbol", order.Symbol, "cycle_id", order.CycleID, "error", err)
				continue
			}
			if types.Terminal(latest.Status) {
				return latest, nil
			}
		}
	}
}
