// Package news turns the Alpha Vantage NEWS_SENTIMENT feed into snapshot
// signals: an aggregate sentiment score and label, a headline digest, and
// optionally the body of the most opinionated article.
package news

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"llm-paper-trader/internal/interfaces"
	"llm-paper-trader/internal/logger"
	"llm-paper-trader/internal/types"
)

const (
	SignalScore     = "news.sentiment_score"
	SignalLabel     = "news.sentiment_label"
	SignalHeadlines = "news.headlines"
	SignalTopStory  = "news.top_story"
)

const defaultBaseURL = "https://www.alphavantage.co"

type Engine struct {
	client       *resty.Client
	apiKey       string
	maxHeadlines int
	scraper      *Scraper
}

var _ interfaces.DataEngine = (*Engine)(nil)

type Option func(*Engine)

func WithBaseURL(u string) Option {
	return func(e *Engine) { e.client.SetBaseURL(u) }
}

func WithScraper(s *Scraper) Option {
	return func(e *Engine) { e.scraper = s }
}

func New(apiKey string, maxHeadlines int, timeout time.Duration, opts ...Option) *Engine {
	client := resty.New().
		SetBaseURL(defaultBaseURL).
		SetTimeout(timeout)

	e := &Engine{
		client:       client,
		apiKey:       apiKey,
		maxHeadlines: maxHeadlines,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return "news" }

func (e *Engine) Signals() []string {
	return []string{SignalScore, SignalLabel, SignalHeadlines, SignalTopStory}
}

type tickerSentiment struct {
	Ticker string `json:"ticker"`
	Score  string `json:"ticker_sentiment_score"`
	Label  string `json:"ticker_sentiment_label"`
}

type feedItem struct {
	Title           string            `json:"title"`
	URL             string            `json:"url"`
	Summary         string            `json:"summary"`
	Source          string            `json:"source"`
	TickerSentiment []tickerSentiment `json:"ticker_sentiment"`
}

type feedResponse struct {
	Feed []feedItem `json:"feed"`
	// Alpha Vantage reports rate limits and bad keys inside a 200 body.
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`
}

func (e *Engine) Fetch(ctx context.Context, symbol types.Symbol, _ types.Window) (map[string]types.Signal, error) {
	var body feedResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"function": "NEWS_SENTIMENT",
			"tickers":  string(symbol),
			"limit":    strconv.Itoa(e.maxHeadlines * 2),
			"apikey":   e.apiKey,
		}).
		SetResult(&body).
		Get("/query")
	if err != nil {
		return nil, fmt.Errorf("news feed for %s: %v: %w", symbol, err, types.ErrDataUnavailable)
	}
	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("news feed for %s: http %d: %w", symbol, resp.StatusCode(), types.ErrDataUnavailable)
	}
	if body.ErrorMessage != "" {
		return nil, fmt.Errorf("news feed for %s: %s: %w", symbol, body.ErrorMessage, types.ErrDataMalformed)
	}
	if body.Note != "" || body.Information != "" {
		// Rate-limit notice; worth retrying next cycle.
		return nil, fmt.Errorf("news feed for %s throttled: %w", symbol, types.ErrDataUnavailable)
	}
	if len(body.Feed) == 0 {
		return nil, fmt.Errorf("no news for %s: %w", symbol, types.ErrDataUnavailable)
	}

	return e.assemble(ctx, symbol, body.Feed), nil
}

func (e *Engine) assemble(ctx context.Context, symbol types.Symbol, feed []feedItem) map[string]types.Signal {
	var (
		sum       float64
		scored    int
		headlines []string
		topItem   *feedItem
		topAbs    float64
	)

	for i := range feed {
		item := &feed[i]
		if len(headlines) < e.maxHeadlines && item.Title != "" {
			headlines = append(headlines, "- "+item.Title)
		}
		for _, ts := range item.TickerSentiment {
			if !strings.EqualFold(ts.Ticker, string(symbol)) {
				continue
			}
			score, err := strconv.ParseFloat(ts.Score, 64)
			if err != nil {
				continue
			}
			sum += score
			scored++
			if abs := absFloat(score); abs >= topAbs {
				topAbs = abs
				topItem = item
			}
		}
	}

	now := time.Now().UTC()
	signals := map[string]types.Signal{
		SignalHeadlines: {Engine: e.Name(), Kind: types.SignalText, Text: strings.Join(headlines, "\n"), FetchedAt: now},
	}
	if scored > 0 {
		avg := sum / float64(scored)
		signals[SignalScore] = types.Signal{Engine: e.Name(), Kind: types.SignalScalar, Scalar: avg, FetchedAt: now}
		signals[SignalLabel] = types.Signal{Engine: e.Name(), Kind: types.SignalText, Text: sentimentLabel(avg), FetchedAt: now}
	}

	if e.scraper != nil && topItem != nil && topItem.URL != "" {
		text, err := e.scraper.ArticleText(ctx, topItem.URL)
		if err != nil {
			logger.Warn(ctx, "Article scrape failed, keeping summary only",
				"symbol", symbol, "url", topItem.URL, "error", err)
			text = topItem.Summary
		}
		if text != "" {
			signals[SignalTopStory] = types.Signal{Engine: e.Name(), Kind: types.SignalText, Text: text, FetchedAt: now}
		}
	}

	return signals
}

// sentimentLabel buckets a score the way Alpha Vantage documents its labels.
func sentimentLabel(score float64) string {
	switch {
	case score <= -0.35:
		return "Bearish"
	case score <= -0.15:
		return "Somewhat-Bearish"
	case score < 0.15:
		return "Neutral"
	case score < 0.35:
		return "Somewhat-Bullish"
	default:
		return "Bullish"
	}
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
