package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadConfigDefaults(t *testing.T) {
	p := writeConfig(t, `
mode: DRY_RUN
watchlist: [AAPL, MSFT]
risk:
  min_confidence: 0.6
  max_position_qty: 100
`)

	cfg, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.PollSeconds != 300 {
		t.Errorf("expected default poll_seconds 300, got %d", cfg.PollSeconds)
	}
	if cfg.Aggregator.MaxFailureFraction != 0.5 {
		t.Errorf("expected default max_failure_fraction 0.5, got %.2f", cfg.Aggregator.MaxFailureFraction)
	}
	if cfg.LLM.Retry.MaxAttempts != 3 {
		t.Errorf("expected default retry attempts 3, got %d", cfg.LLM.Retry.MaxAttempts)
	}
	if cfg.SuppressAfterFailures != 5 {
		t.Errorf("expected default suppress_after_failures 5, got %d", cfg.SuppressAfterFailures)
	}
	if len(cfg.Watchlist) != 2 {
		t.Errorf("expected 2 watchlist symbols, got %d", len(cfg.Watchlist))
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "bad mode",
			yaml:    "mode: YOLO\nwatchlist: [AAPL]\nrisk: {max_position_qty: 10}\n",
			wantErr: "invalid mode",
		},
		{
			name:    "empty watchlist",
			yaml:    "mode: DRY_RUN\nrisk: {max_position_qty: 10}\n",
			wantErr: "watchlist cannot be empty",
		},
		{
			name:    "bad failure fraction",
			yaml:    "mode: DRY_RUN\nwatchlist: [AAPL]\nrisk: {max_position_qty: 10}\naggregator: {max_failure_fraction: 1.5}\n",
			wantErr: "max_failure_fraction",
		},
		{
			name:    "bad min confidence",
			yaml:    "mode: DRY_RUN\nwatchlist: [AAPL]\nrisk: {max_position_qty: 10, min_confidence: 2.0}\n",
			wantErr: "min_confidence",
		},
		{
			name:    "missing max position",
			yaml:    "mode: DRY_RUN\nwatchlist: [AAPL]\n",
			wantErr: "max_position_qty",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := writeConfig(t, tc.yaml)
			_, err := LoadConfig(p)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %q", tc.wantErr, err.Error())
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
