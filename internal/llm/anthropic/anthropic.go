package anthropic

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

const (
	defaultEndpoint = "https://api.anthropic.com/v1/messages"
	apiVersion      = "2023-06-01"
)

type Decider struct {
	cfg      *store.Config
	endpoint string
	httpc    *http.Client
	retry    backoff.Policy
}

func NewDecider(cfg *store.Config) *Decider {
	endpoint := defaultEndpoint
	if ep := os.Getenv("CLAUDE_API_ENDPOINT"); ep != "" {
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
	ctx, span := trace.StartSpan(ctx, "anthropic.Decide")
	defer span.End()

	apiKey := os.Getenv("CLAUDE_API_KEY")
	if apiKey == "" {
		return types.Decision{}, &types.DecisionError{Reason: types.ModelUnavailable, Detail: "CLAUDE_API_KEY missing"}
	}

	body := map[string]any{
		"model":      d.cfg.LLM.Model,
		"max_tokens": d.cfg.LLM.MaxTokens,
		"system":     llm.SystemPrompt,
		"messages": []map[string]string{
			{"role": "user", "content": llm.BuildPrompt(snap)},
		},
		"temperature": d.cfg.LLM.Temperature,
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

func (d *Decider) call(ctx context.Context, apiKey string, body []byte) (content string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpc.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", false, err
		}
		return "", true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", true, fmt.Errorf("anthropic http %d", resp.StatusCode)
	case resp.StatusCode >= 300:
		return "", false, fmt.Errorf("anthropic http %d", resp.StatusCode)
	}

	var r struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", true, fmt.Errorf("decode message: %w", err)
	}
	for _, block := range r.Content {
		if block.Type == "text" {
			return strings.TrimSpace(block.Text), false, nil
		}
	}
	return "", true, errors.New("message carried no text block")
}
