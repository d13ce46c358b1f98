package engineobs

import (
	"context"
	"time"

	"llm-paper-trader/internal/interfaces"
	"llm-paper-trader/internal/logger"
	"llm-paper-trader/internal/trace"
	"llm-paper-trader/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{
		engine: eng,
	}
}

func (oe *observableEngine) Cycle(ctx context.Context, symbol types.Symbol) (*types.CycleResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Cycle")
	defer span.End()

	start := time.Now()

	logger.Info(ctx, "Starting trading cycle",
		"symbol", symbol,
	)

	result, err := oe.engine.Cycle(ctx, symbol)
	if err != nil {
		logger.ErrorWithErr(ctx, "Trading cycle failed", err,
			"symbol", symbol,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	logger.Info(ctx, "Trading cycle completed",
		"symbol", symbol,
		"cycle_id", result.CycleID,
		"action", result.Decision.Action,
		"confidence", result.Decision.Confidence,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}
