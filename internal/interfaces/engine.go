package interfaces

import (
	"context"

	"llm-perps-trader/internal/types"
)

type Engine interface {
	Cycle(ctx context.Context, symbol string) (*types.CycleResult, error)
}
