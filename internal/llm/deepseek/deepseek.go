package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"llm-perps-trader/internal/store"
	"llm-perps-trader/internal/trace"
)

const defaultEndpoint = "https://api.deepseek.com/v1/chat/completions"

// Judge calls the DeepSeek chat-completions API and returns the raw model
// output. Parsing and validation live with the caller.
type Judge struct {
	cfg    *store.Config
	client *http.Client
}

func NewJudge(cfg *store.Config) *Judge {
	timeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Judge{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (j *Judge) Name() string { return "deepseek" }

func (j *Judge) Judge(ctx context.Context, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "deepseek-api-call")
	defer span.End()

	apiKey := os.Getenv("DEEPSEEK_API_KEY")
	if apiKey == "" {
		return "", errors.New("DEEPSEEK_API_KEY missing")
	}

	endpoint := j.cfg.LLM.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	body := map[string]any{
		"model":       j.cfg.LLM.Model,
		"messages":    []map[string]string{{"role": "user", "content": prompt}},
		"temperature": j.cfg.LLM.Temperature,
		"max_tokens":  j.cfg.LLM.MaxTokens,
		"stream":      false,
	}
	bb, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(bb))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("deepseek http %d", resp.StatusCode)
	}

	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if len(r.Choices) == 0 {
		return "", errors.New("no choices")
	}

	return strings.TrimSpace(r.Choices[0].Message.Content), nil
}
