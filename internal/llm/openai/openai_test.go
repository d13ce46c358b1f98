package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"llm-paper-trader/internal/store"
	"llm-paper-trader/internal/types"
)

func testConfig() *store.Config {
	cfg := &store.Config{}
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.MaxTokens = 400
	cfg.LLM.Temperature = 0.2
	cfg.LLM.Retry.MaxAttempts = 3
	cfg.LLM.Retry.InitialWaitMS = 1
	cfg.LLM.Retry.MaxWaitMS = 5
	return cfg
}

func snapshot() *types.Snapshot {
	return &types.Snapshot{
		Symbol:  "AAPL",
		TakenAt: time.Now().UTC(),
		Signals: map[string]types.Signal{
			"price.last": {Engine: "prices", Kind: types.SignalScalar, Scalar: 210.5},
		},
	}
}

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(b)
}

func newTestDecider(t *testing.T, url string) *Decider {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_API_ENDPOINT", url)
	return NewDecider(testConfig())
}

func TestDecideRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(completion(`{"action":"BUY","qty":5,"confidence":0.8,"rationale":"momentum"}`)))
	}))
	defer srv.Close()

	d := newTestDecider(t, srv.URL)
	dec, err := d.Decide(context.Background(), snapshot())
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if dec.Action != types.Buy || dec.Qty != 5 {
		t.Fatalf("unexpected decision %+v", dec)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestDecideDoesNotRetryAuthFailure(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	d := newTestDecider(t, srv.URL)
	_, err := d.Decide(context.Background(), snapshot())
	var derr *types.DecisionError
	if !errors.As(err, &derr) || derr.Reason != types.ModelUnavailable {
		t.Fatalf("expected ModelUnavailable, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 call, got %d", got)
	}
}

func TestDecideExhaustsAttempts(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := newTestDecider(t, srv.URL)
	_, err := d.Decide(context.Background(), snapshot())
	var derr *types.DecisionError
	if !errors.As(err, &derr) || derr.Reason != types.ModelUnavailable {
		t.Fatalf("expected ModelUnavailable, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestDecideMalformedContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completion(`I think you should buy.`)))
	}))
	defer srv.Close()

	d := newTestDecider(t, srv.URL)
	_, err := d.Decide(context.Background(), snapshot())
	var derr *types.DecisionError
	if !errors.As(err, &derr) || derr.Reason != types.MalformedResponse {
		t.Fatalf("expected MalformedResponse, got %v", err)
	}
}

func TestDecideMissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	d := NewDecider(testConfig())
	_, err := d.Decide(context.Background(), snapshot())
	var derr *types.DecisionError
	if !errors.As(err, &derr) || derr.Reason != types.ModelUnavailable {
		t.Fatalf("expected ModelUnavailable, got %v", err)
	}
}
