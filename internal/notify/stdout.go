package notify

import (
	"context"

	"llm-perps-trader/internal/interfaces"
	"llm-perps-trader/internal/logger"
)

// Stdout routes reports to the log stream. Used in dry runs and whenever
// Telegram is not configured.
type Stdout struct{}

var _ interfaces.Notifier = (*Stdout)(nil)

func NewStdout() *Stdout { return &Stdout{} }

func (s *Stdout) Send(ctx context.Context, msg string) {
	logger.Info(ctx, "Cycle report", "report", msg)
}
