package llmobs

import (
	"context"

	"llm-perps-trader/internal/interfaces"
	"llm-perps-trader/internal/logger"
	"llm-perps-trader/internal/trace"
)

// observableJudge wraps a Judge with logging and tracing.
type observableJudge struct {
	judge interfaces.Judge
}

// Compile-time interface check
var _ interfaces.Judge = (*observableJudge)(nil)

// Wrap wraps a judge with observability middleware
func Wrap(judge interfaces.Judge) interfaces.Judge {
	return &observableJudge{judge: judge}
}

func (oj *observableJudge) Name() string { return oj.judge.Name() }

func (oj *observableJudge) Judge(ctx context.Context, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Judge")
	defer span.End()

	// Use DebugSkip(1) to report the actual caller, not this middleware wrapper
	logger.DebugSkip(ctx, 1, "Requesting judgment",
		"judge", oj.judge.Name(),
		"prompt_chars", len(prompt),
	)

	out, err := oj.judge.Judge(ctx, prompt)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Judgment request failed", err,
			"judge", oj.judge.Name(),
		)
		return "", err
	}

	preview := out
	if len(preview) > 200 {
		preview = preview[:200]
	}
	logger.InfoSkip(ctx, 1, "Judgment received",
		"judge", oj.judge.Name(),
		"response_chars", len(out),
		"preview", preview,
	)

	return out, nil
}
