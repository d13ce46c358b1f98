package interfaces

import (
	"context"

	"llm-paper-trader/internal/types"
)

// Brokerage is the trading-account collaborator: account-state query, order
// submission and order-status query. Account mutation is only ever observed
// via re-query, never performed by pipeline code.
type Brokerage interface {
	Account(ctx context.Context) (types.AccountState, error)
	SubmitOrder(ctx context.Context, req types.OrderRequest) (types.OrderStatus, error)
	OrderByClientID(ctx context.Context, clientOrderID string) (types.OrderStatus, error)
}
