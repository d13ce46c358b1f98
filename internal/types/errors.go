package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Engine failure conditions. DataUnavailable is retryable next cycle,
// DataMalformed is not. Both are isolated per engine by the aggregator.
var (
	ErrDataUnavailable = errors.New("data unavailable")
	ErrDataMalformed   = errors.New("data malformed")
)

// PartialSnapshotError is returned when too many engines failed for the
// snapshot to be worth reasoning about.
type PartialSnapshotError struct {
	Symbol  Symbol
	Total   int
	Failed  map[string]error // engine name -> failure
	MaxFrac float64
}

func (e *PartialSnapshotError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for n := range e.Failed {
		names = append(names, n)
	}
	sort.Strings(names)
	return fmt.Sprintf("partial snapshot for %s: %d/%d engines failed (%s), max allowed fraction %.2f",
		e.Symbol, len(e.Failed), e.Total, strings.Join(names, ","), e.MaxFrac)
}

// FailureFraction is the share of configured engines that failed.
func (e *PartialSnapshotError) FailureFraction() float64 {
	if e.Total == 0 {
		return 0
	}
	return float64(len(e.Failed)) / float64(e.Total)
}

type DecisionErrorReason string

const (
	MalformedResponse DecisionErrorReason = "MALFORMED_RESPONSE"
	ModelUnavailable  DecisionErrorReason = "MODEL_UNAVAILABLE"
)

// DecisionError aborts the cycle: the model either produced output that does
// not decompose into a Decision, or could not be reached at all. The pipeline
// never guesses a default action in either case.
type DecisionError struct {
	Reason DecisionErrorReason
	Detail string
	Err    error
}

func (e *DecisionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decision error (%s): %s: %v", e.Reason, e.Detail, e.Err)
	}
	return fmt.Sprintf("decision error (%s): %s", e.Reason, e.Detail)
}

func (e *DecisionError) Unwrap() error { return e.Err }

type RiskRejectionReason string

const (
	RejectInsufficientHoldings    RiskRejectionReason = "INSUFFICIENT_HOLDINGS"
	RejectInsufficientBuyingPower RiskRejectionReason = "INSUFFICIENT_BUYING_POWER"
)

// RiskRejection is an explicit no-action outcome, not a crash path: the
// decision failed a hard account check and nothing is submitted this cycle.
type RiskRejection struct {
	Symbol Symbol
	Reason RiskRejectionReason
	Detail string
}

func (e *RiskRejection) Error() string {
	return fmt.Sprintf("risk rejection for %s (%s): %s", e.Symbol, e.Reason, e.Detail)
}

type ExecutionErrorReason string

const (
	ExecRejected            ExecutionErrorReason = "REJECTED"
	ExecAmbiguousSubmission ExecutionErrorReason = "AMBIGUOUS_SUBMISSION"
)

// ExecutionError is cycle-fatal. Rejected means the brokerage refused the
// order; AmbiguousSubmission means we could not determine the order's fate
// and must not resubmit.
type ExecutionError struct {
	Symbol Symbol
	Reason ExecutionErrorReason
	Detail string
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("execution error for %s (%s): %s: %v", e.Symbol, e.Reason, e.Detail, e.Err)
	}
	return fmt.Sprintf("execution error for %s (%s): %s", e.Symbol, e.Reason, e.Detail)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
