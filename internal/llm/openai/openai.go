package openai

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

	"llm-paper-trader/internal/backoff"
	"llm-paper-trader/internal/llm"
	"llm-paper-trader/internal/logger"
	"llm-paper-trader/internal/store"
	"llm-paper-trader/internal/trace"
	"llm-paper-trader/internal/types"
)

const defaultEndpoint = "https://api.openai.com/v1/chat/completions"

type Decider struct {
	cfg      *store.Config
	endpoint string
	httpc    *http.Client
	retry    backoff.Policy
}

func NewDecider(cfg *store.Config) *Decider {
	endpoint := defaultEndpoint
	if ep := os.Getenv("OPENAI_API_ENDPOINT"); ep != "" {
		endpoint = ep
	}
	return &Decider{
		cfg:      cfg,
		endpoint: endpoint,
		httpc:    &http.Client{Timeout: 60 * time.Second},
		retry: backoff.Policy{
			MaxAttempts: cfg.LLM.Retry.MaxAttempts,
			Initial:     time.Duration(cfg.LLM.Retry.InitialWaitMS) * time.Millisecond,
			Max:         time.Duration(cfg.LLM.Retry.MaxWaitMS) * time.Millisecond,
		},
	}
}

func (d *Decider) Decide(ctx context.Context, snap *types.Snapshot) (types.Decision, error) {
	ctx, span := trace.StartSpan(ctx, "openai.Decide")
	defer span.End()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return types.Decision{}, &types.DecisionError{Reason: types.ModelUnavailable, Detail: "OPENAI_API_KEY missing"}
	}

	prompt := llm.BuildPrompt(snap)
	body := map[string]any{
		"model": d.cfg.LLM.Model,
		"messages": []map[string]string{
			{"role": "system", "content": llm.SystemPrompt},
			{"role": "user", "content": prompt},
		},
		"temperature": d.cfg.LLM.Temperature,
		"max_tokens":  d.cfg.LLM.MaxTokens,
	}
	bb, err := json.Marshal(body)
	if err != nil {
		return types.Decision{}, &types.DecisionError{Reason: types.ModelUnavailable, Detail: "request marshal failed", Err: err}
	}

	var lastErr error
	for attempt := 0; attempt < d.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			logger.Warn(ctx, "Retrying model call", "symbol", snap.Symbol, "attempt", attempt+1, "error", lastErr)
			if err := d.retry.Wait(ctx, attempt-1); err != nil {
				return types.Decision{}, &types.DecisionError{Reason: types.ModelUnavailable, Detail: "canceled during backoff", Err: err}
			}
		}

		content, retryable, err := d.call(ctx, apiKey, bb)
		if err == nil {
			return llm.ParseDecision(snap.Symbol, content)
		}
		if !retryable {
			return types.Decision{}, &types.DecisionError{Reason: types.ModelUnavailable, Detail: "model call failed", Err: err}
		}
		lastErr = err
	}

	return types.Decision{}, &types.DecisionError{
		Reason: types.ModelUnavailable,
		Detail: fmt.Sprintf("exhausted %d attempts", d.retry.MaxAttempts),
		Err:    lastErr,
	}
}

// call makes one completion request. The second return reports whether the
// failure is worth retrying (timeouts, rate limits, server errors).
func (d *Decider) call(ctx context.Context, apiKey string, body []byte) (content string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpc.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", false, err
		}
		return "", true, err
	}
	defer resp.Body.Close()

	if transient(resp.StatusCode) {
		return "", true, fmt.Errorf("openai http %d", resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		return "", false, fmt.Errorf("openai http %d", resp.StatusCode)
	}

	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", true, fmt.Errorf("decode completion: %w", err)
	}
	if len(r.Choices) == 0 {
		return "", true, errors.New("completion carried no choices")
	}
	return strings.TrimSpace(r.Choices[0].Message.Content), false, nil
}

func transient(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= 500
}
