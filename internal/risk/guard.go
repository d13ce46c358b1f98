package risk

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"llm-paper-trader/internal/logger"
	"llm-paper-trader/internal/store"
	"llm-paper-trader/internal/trace"
	"llm-paper-trader/internal/types"
)

// Guard is the single choke point between the model's decision and the
// brokerage. Every decision passes through Validate before it may be
// submitted.
type Guard struct {
	cfg store.RiskConfig
}

func NewGuard(cfg store.RiskConfig) *Guard {
	return &Guard{cfg: cfg}
}

// Validate checks a decision against the account and returns the order
// actually to be submitted. The checks run in a fixed order: sell quantity
// against holdings, buy cost against buying power, confidence against the
// configured minimum, then the per-symbol position cap. Hard account
// violations return *types.RiskRejection; soft adjustments (caps, forced
// HOLD) are recorded in the order's Notes.
func (g *Guard) Validate(ctx context.Context, cycleID string, dec types.Decision, account types.AccountState, lastPrice decimal.Decimal) (*types.ValidatedOrder, error) {
	ctx, span := trace.StartSpan(ctx, "risk.Validate")
	defer span.End()

	order := &types.ValidatedOrder{
		Symbol:     dec.Symbol,
		Action:     dec.Action,
		Qty:        dec.Qty,
		Confidence: dec.Confidence,
		Rationale:  dec.Rationale,
		CycleID:    cycleID,
	}

	if dec.Action == types.Sell {
		held := account.Held(dec.Symbol)
		if dec.Qty > held {
			if !g.cfg.AllowPartialFills || held == 0 {
				logger.Risk(ctx, string(dec.Symbol), "sell_rejected",
					"requested", dec.Qty, "held", held)
				return nil, &types.RiskRejection{
					Symbol: dec.Symbol,
					Reason: types.RejectInsufficientHoldings,
					Detail: fmt.Sprintf("requested %d, held %d", dec.Qty, held),
				}
			}
			order.Qty = held
			order.Notes = append(order.Notes, fmt.Sprintf("sell capped from %d to held %d", dec.Qty, held))
			logger.Risk(ctx, string(dec.Symbol), "sell_capped",
				"requested", dec.Qty, "capped_to", held)
		}
	}

	if dec.Action == types.Buy {
		if lastPrice.IsZero() || lastPrice.IsNegative() {
			return nil, &types.RiskRejection{
				Symbol: dec.Symbol,
				Reason: types.RejectInsufficientBuyingPower,
				Detail: "no usable last price to estimate cost",
			}
		}
		cost := lastPrice.Mul(decimal.NewFromInt(order.Qty))
		if cost.GreaterThan(account.BuyingPower) {
			if !g.cfg.CapBuyToBuyingPower {
				logger.Risk(ctx, string(dec.Symbol), "buy_rejected",
					"cost", cost.String(), "buying_power", account.BuyingPower.String())
				return nil, &types.RiskRejection{
					Symbol: dec.Symbol,
					Reason: types.RejectInsufficientBuyingPower,
					Detail: fmt.Sprintf("cost %s exceeds buying power %s", cost, account.BuyingPower),
				}
			}
			affordable := account.BuyingPower.Div(lastPrice).IntPart()
			if affordable <= 0 {
				logger.Risk(ctx, string(dec.Symbol), "buy_rejected",
					"cost", cost.String(), "buying_power", account.BuyingPower.String())
				return nil, &types.RiskRejection{
					Symbol: dec.Symbol,
					Reason: types.RejectInsufficientBuyingPower,
					Detail: fmt.Sprintf("cannot afford a single share at %s with buying power %s", lastPrice, account.BuyingPower),
				}
			}
			order.Notes = append(order.Notes, fmt.Sprintf("buy capped from %d to affordable %d", order.Qty, affordable))
			logger.Risk(ctx, string(dec.Symbol), "buy_capped",
				"requested", order.Qty, "capped_to", affordable)
			order.Qty = affordable
		}
	}

	if dec.Confidence < g.cfg.MinConfidence {
		logger.Risk(ctx, string(dec.Symbol), "low_confidence_hold",
			"confidence", dec.Confidence, "minimum", g.cfg.MinConfidence,
			"original_action", string(dec.Action))
		order.Action = types.Hold
		order.Qty = 0
		order.Notes = append(order.Notes, fmt.Sprintf("confidence %.2f below minimum %.2f, forced HOLD", dec.Confidence, g.cfg.MinConfidence))
		return order, nil
	}

	if order.Action == types.Buy && g.cfg.MaxPositionQty > 0 {
		held := account.Held(dec.Symbol)
		if held+order.Qty > g.cfg.MaxPositionQty {
			allowed := g.cfg.MaxPositionQty - held
			if allowed <= 0 {
				logger.Risk(ctx, string(dec.Symbol), "position_limit_hold",
					"held", held, "max_position", g.cfg.MaxPositionQty)
				order.Action = types.Hold
				order.Qty = 0
				order.Notes = append(order.Notes, fmt.Sprintf("position %d already at limit %d, forced HOLD", held, g.cfg.MaxPositionQty))
				return order, nil
			}
			order.Notes = append(order.Notes, fmt.Sprintf("buy capped from %d to %d by position limit %d", order.Qty, allowed, g.cfg.MaxPositionQty))
			logger.Risk(ctx, string(dec.Symbol), "position_limit_cap",
				"requested", order.Qty, "capped_to", allowed, "max_position", g.cfg.MaxPositionQty)
			order.Qty = allowed
		}
	}

	return order, nil
}
