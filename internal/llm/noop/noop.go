package noop

import "context"

// Judge rejects every signal without any network call. Used for dry runs and
// as a safe default when no provider is configured.
type Judge struct{}

func NewJudge() *Judge { return &Judge{} }

func (j *Judge) Name() string { return "noop" }

func (j *Judge) Judge(ctx context.Context, prompt string) (string, error) {
	return `{"side": "NONE", "approved": false, "entry": 0, "take_profit": 0, "stop_loss": 0, "resume_of_analysis": "noop judge: all signals rejected"}`, nil
}
