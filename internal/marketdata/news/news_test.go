package news

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"llm-paper-trader/internal/types"
)

const feedBody = `{
  "feed": [
    {
      "title": "Apple beats on earnings",
      "url": "https://example.com/a",
      "summary": "Strong quarter.",
      "source": "Example",
      "ticker_sentiment": [
        {"ticker": "AAPL", "ticker_sentiment_score": "0.5", "ticker_sentiment_label": "Bullish"}
      ]
    },
    {
      "title": "Supply chain worries",
      "url": "https://example.com/b",
      "summary": "Headwinds ahead.",
      "source": "Example",
      "ticker_sentiment": [
        {"ticker": "AAPL", "ticker_sentiment_score": "0.1", "ticker_sentiment_label": "Neutral"},
        {"ticker": "MSFT", "ticker_sentiment_score": "-0.9", "ticker_sentiment_label": "Bearish"}
      ]
    }
  ]
}`

func newTestEngine(t *testing.T, handler http.HandlerFunc) *Engine {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New("test-key", 5, 2*time.Second, WithBaseURL(srv.URL))
}

func TestFetchAssemblesSentimentSignals(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("function"); got != "NEWS_SENTIMENT" {
			t.Errorf("unexpected function param %q", got)
		}
		if got := r.URL.Query().Get("tickers"); got != "AAPL" {
			t.Errorf("unexpected tickers param %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(feedBody))
	})

	signals, err := e.Fetch(context.Background(), "AAPL", types.Window{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	// Only AAPL mentions count: (0.5 + 0.1) / 2 = 0.3.
	score := signals[SignalScore]
	if score.Scalar < 0.299 || score.Scalar > 0.301 {
		t.Errorf("expected sentiment score 0.3, got %v", score.Scalar)
	}
	if signals[SignalLabel].Text != "Somewhat-Bullish" {
		t.Errorf("expected Somewhat-Bullish label, got %q", signals[SignalLabel].Text)
	}
	if signals[SignalHeadlines].Text == "" {
		t.Error("expected non-empty headline digest")
	}
	if _, ok := signals[SignalTopStory]; ok {
		t.Error("top story signal must be absent when no scraper is configured")
	}
}

func TestFetchThrottledIsUnavailable(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Note": "API call frequency exceeded"}`))
	})

	_, err := e.Fetch(context.Background(), "AAPL", types.Window{})
	if !errors.Is(err, types.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestFetchProviderErrorIsMalformed(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Error Message": "Invalid API call"}`))
	})

	_, err := e.Fetch(context.Background(), "AAPL", types.Window{})
	if !errors.Is(err, types.ErrDataMalformed) {
		t.Fatalf("expected ErrDataMalformed, got %v", err)
	}
}

func TestFetchServerErrorIsUnavailable(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := e.Fetch(context.Background(), "AAPL", types.Window{})
	if !errors.Is(err, types.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestSentimentLabelBuckets(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{-0.5, "Bearish"},
		{-0.2, "Somewhat-Bearish"},
		{0.0, "Neutral"},
		{0.2, "Somewhat-Bullish"},
		{0.6, "Bullish"},
	}
	for _, tc := range cases {
		if got := sentimentLabel(tc.score); got != tc.want {
			t.Errorf("sentimentLabel(%v) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestScraperExtractsParagraphs(t *testing.T) {
	page := `<html><body><article>
	<p>First paragraph with enough words to pass the filter.</p>
	<p>short</p>
	<p>Second paragraph that also carries enough text to keep.</p>
	</article></body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	s := NewScraper(2 * time.Second)
	text, err := s.ArticleText(context.Background(), srv.URL+"/story")
	if err != nil {
		t.Fatalf("ArticleText: %v", err)
	}
	if text == "" {
		t.Fatal("expected extracted article text")
	}
	if want := "First paragraph"; len(text) < len(want) {
		t.Errorf("extracted text too short: %q", text)
	}
}
