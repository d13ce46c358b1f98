package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"llm-paper-trader/internal/broker/alpaca"
	"llm-paper-trader/internal/types"
)

type fakeBrokerage struct {
	submitCalls  int
	submitErrs   []error
	submitStatus types.OrderStatus

	queryCalls  int
	queryErr    error
	queryStatus types.OrderStatus
	// queue of statuses returned by successive queries; falls back to
	// queryStatus when drained
	querySeq []types.OrderStatus
}

func (f *fakeBrokerage) Account(ctx context.Context) (types.AccountState, error) {
	return types.AccountState{}, nil
}

func (f *fakeBrokerage) SubmitOrder(ctx context.Context, req types.OrderRequest) (types.OrderStatus, error) {
	f.submitCalls++
	if len(f.submitErrs) > 0 {
		err := f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
		if err != nil {
			return types.OrderStatus{}, err
		}
	}
	st := f.submitStatus
	st.ClientOrderID = req.ClientOrderID
	return st, nil
}

func (f *fakeBrokerage) OrderByClientID(ctx context.Context, clientOrderID string) (types.OrderStatus, error) {
	f.queryCalls++
	if f.queryErr != nil {
		return types.OrderStatus{}, f.queryErr
	}
	if len(f.querySeq) > 0 {
		st := f.querySeq[0]
		f.querySeq = f.querySeq[1:]
		return st, nil
	}
	return f.queryStatus, nil
}

func newExecutor(b *fakeBrokerage) *Executor {
	return NewExecutor(b, 200*time.Millisecond, 5*time.Millisecond)
}

func buyOrder(cycleID string) *types.ValidatedOrder {
	return &types.ValidatedOrder{
		Symbol: "AAPL", Action: types.Buy, Qty: 10, Confidence: 0.9, CycleID: cycleID,
	}
}

func TestSubmitHoldShortCircuits(t *testing.T) {
	b := &fakeBrokerage{}
	e := newExecutor(b)
	order := &types.ValidatedOrder{Symbol: "AAPL", Action: types.Hold, CycleID: "cyc-1"}

	r, err := e.Submit(context.Background(), order)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if r.Status != "noop" {
		t.Fatalf("status = %s, want noop", r.Status)
	}
	if b.submitCalls != 0 || b.queryCalls != 0 {
		t.Fatal("HOLD must not contact the brokerage")
	}
}

func TestSubmitFilledImmediately(t *testing.T) {
	b := &fakeBrokerage{submitStatus: types.OrderStatus{OrderID: "ord-1", Status: types.StatusFilled, FilledQty: 10}}
	e := newExecutor(b)

	r, err := e.Submit(context.Background(), buyOrder("cyc-1"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if r.OrderID != "ord-1" || r.FilledQty != 10 {
		t.Fatalf("unexpected receipt %+v", r)
	}
}

func TestSubmitIdempotentPerCycle(t *testing.T) {
	b := &fakeBrokerage{submitStatus: types.OrderStatus{OrderID: "ord-1", Status: types.StatusFilled, FilledQty: 10}}
	e := newExecutor(b)
	order := buyOrder("cyc-1")

	first, err := e.Submit(context.Background(), order)
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	second, err := e.Submit(context.Background(), order)
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if b.submitCalls != 1 {
		t.Fatalf("submit calls = %d, want 1", b.submitCalls)
	}
	if first.OrderID != second.OrderID {
		t.Fatal("repeated Submit should return the prior receipt")
	}
}

func TestSubmitNewCycleSubmitsAgain(t *testing.T) {
	b := &fakeBrokerage{submitStatus: types.OrderStatus{OrderID: "ord-1", Status: types.StatusFilled, FilledQty: 10}}
	e := newExecutor(b)

	if _, err := e.Submit(context.Background(), buyOrder("cyc-1")); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := e.Submit(context.Background(), buyOrder("cyc-2")); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if b.submitCalls != 2 {
		t.Fatalf("submit calls = %d, want 2", b.submitCalls)
	}
}

func TestSubmitRetriesTransportFailureOnce(t *testing.T) {
	b := &fakeBrokerage{
		submitErrs:   []error{errors.New("connection reset")},
		submitStatus: types.OrderStatus{OrderID: "ord-1", Status: types.StatusFilled, FilledQty: 10},
	}
	e := newExecutor(b)

	r, err := e.Submit(context.Background(), buyOrder("cyc-1"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if b.submitCalls != 2 {
		t.Fatalf("submit calls = %d, want 2", b.submitCalls)
	}
	if r.OrderID != "ord-1" {
		t.Fatalf("unexpected receipt %+v", r)
	}
}

func TestSubmitResolvesDoubleFailureByQuery(t *testing.T) {
	b := &fakeBrokerage{
		submitErrs:  []error{errors.New("connection reset"), errors.New("connection reset")},
		queryStatus: types.OrderStatus{OrderID: "ord-1", Status: types.StatusFilled, FilledQty: 10},
	}
	e := newExecutor(b)

	r, err := e.Submit(context.Background(), buyOrder("cyc-1"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if b.submitCalls != 2 || b.queryCalls != 1 {
		t.Fatalf("submit=%d query=%d, want 2 and 1", b.submitCalls, b.queryCalls)
	}
	if r.OrderID != "ord-1" {
		t.Fatalf("unexpected receipt %+v", r)
	}
}

func TestSubmitAmbiguousWhenQueryAlsoFails(t *testing.T) {
	b := &fakeBrokerage{
		submitErrs: []error{errors.New("connection reset"), errors.New("connection reset")},
		queryErr:   errors.New("connection reset"),
	}
	e := newExecutor(b)

	_, err := e.Submit(context.Background(), buyOrder("cyc-1"))
	var execErr *types.ExecutionError
	if !errors.As(err, &execErr) || execErr.Reason != types.ExecAmbiguousSubmission {
		t.Fatalf("expected AMBIGUOUS_SUBMISSION, got %v", err)
	}
}

func TestSubmitRejectionIsNotRetried(t *testing.T) {
	b := &fakeBrokerage{
		submitErrs: []error{&alpaca.APIError{Status: 403, Message: "insufficient buying power"}},
	}
	e := newExecutor(b)

	_, err := e.Submit(context.Background(), buyOrder("cyc-1"))
	var execErr *types.ExecutionError
	if !errors.As(err, &execErr) || execErr.Reason != types.ExecRejected {
		t.Fatalf("expected REJECTED, got %v", err)
	}
	if b.submitCalls != 1 {
		t.Fatalf("submit calls = %d, want 1", b.submitCalls)
	}
}

func TestSubmitPollsToTerminalState(t *testing.T) {
	b := &fakeBrokerage{
		submitStatus: types.OrderStatus{OrderID: "ord-1", Status: types.StatusAccepted},
		querySeq: []types.OrderStatus{
			{OrderID: "ord-1", Status: types.StatusPartiallyFilled, FilledQty: 4},
			{OrderID: "ord-1", Status: types.StatusFilled, FilledQty: 10},
		},
	}
	e := newExecutor(b)

	r, err := e.Submit(context.Background(), buyOrder("cyc-1"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if r.Status != types.StatusFilled || r.FilledQty != 10 {
		t.Fatalf("unexpected receipt %+v", r)
	}
}

func TestSubmitTimesOutAsAmbiguous(t *testing.T) {
	b := &fakeBrokerage{
		submitStatus: types.OrderStatus{OrderID: "ord-1", Status: types.StatusAccepted},
		queryStatus:  types.OrderStatus{OrderID: "ord-1", Status: types.StatusAccepted},
	}
	e := NewExecutor(b, 30*time.Millisecond, 5*time.Millisecond)

	_, err := e.Submit(context.Background(), buyOrder("cyc-1"))
	var execErr *types.ExecutionError
	if !errors.As(err, &execErr) || execErr.Reason != types.ExecAmbiguousSubmission {
		t.Fatalf("expected AMBIGUOUS_SUBMISSION, got %v", err)
	}
}

func TestSubmitPolledRejectionFails(t *testing.T) {
	b := &fakeBrokerage{
		submitStatus: types.OrderStatus{OrderID: "ord-1", Status: types.StatusAccepted},
		queryStatus:  types.OrderStatus{OrderID: "ord-1", Status: types.StatusRejected},
	}
	e := newExecutor(b)

	_, err := e.Submit(context.Background(), buyOrder("cyc-1"))
	var execErr *types.ExecutionError
	if !errors.As(err, &execErr) || execErr.Reason != types.ExecRejected {
		t.Fatalf("expected REJECTED, got %v", err)
	}
}

func TestSubmitCanceledYieldsReceipt(t *testing.T) {
	b := &fakeBrokerage{
		submitStatus: types.OrderStatus{OrderID: "ord-1", Status: types.StatusAccepted},
		queryStatus:  types.OrderStatus{OrderID: "ord-1", Status: types.StatusCanceled},
	}
	e := newExecutor(b)

	r, err := e.Submit(context.Background(), buyOrder("cyc-1"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if r.Status != types.StatusCanceled {
		t.Fatalf("status = %s, want canceled", r.Status)
	}
}
