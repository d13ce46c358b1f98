package eod

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"llm-paper-trader/internal/types"
)

// tradeLine mirrors the JSON lines written by the tradelog package. Only
// the fields the summary needs are decoded.
type tradeLine struct {
	Symbol         string
	Side           string
	Status         string
	FilledQty      int64
	FilledAvgPrice string
}

// aggRow is the per-symbol aggregate across one day of fills.
type aggRow struct {
	Symbol      string
	BuyQty      int64
	BuyValue    float64
	SellQty     int64
	SellValue   float64
	RealizedPnL float64
}

type eodSummarizer struct{}

// SummarizeDay reads the day's trade log, aggregates filled orders by
// symbol, and writes a CSV report with realized PnL per symbol.
func (s *eodSummarizer) SummarizeDay(t time.Time) (string, error) {
	inPath := dailyTradeFile(t)
	if _, err := os.Stat(inPath); err != nil {
		return "", nil
	}
	f, err := os.Open(inPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	aggs := map[string]*aggRow{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var tl tradeLine
		if err := json.Unmarshal(sc.Bytes(), &tl); err != nil {
			continue
		}
		if tl.FilledQty == 0 {
			continue
		}
		if tl.Status != types.StatusFilled && tl.Status != types.StatusPartiallyFilled {
			continue
		}
		price, err := strconv.ParseFloat(tl.FilledAvgPrice, 64)
		if err != nil {
			continue
		}
		row := aggs[tl.Symbol]
		if row == nil {
			row = &aggRow{Symbol: tl.Symbol}
			aggs[tl.Symbol] = row
		}
		switch tl.Side {
		case string(types.Buy):
			row.BuyQty += tl.FilledQty
			row.BuyValue += float64(tl.FilledQty) * price
		case string(types.Sell):
			row.SellQty += tl.FilledQty
			row.SellValue += float64(tl.FilledQty) * price
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	if len(aggs) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outPath := eodCSVPath(t)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	defer w.Flush()
	headers := []string{"symbol", "buy_qty", "buy_avg", "sell_qty", "sell_avg", "realized_pnl", "gross_buy_value", "gross_sell_value"}
	if err := w.Write(headers); err != nil {
		return "", err
	}

	var totalBuy, totalSell, totalPnL float64
	for _, k := range keys {
		r := aggs[k]
		var buyAvg, sellAvg float64
		if r.BuyQty > 0 {
			buyAvg = r.BuyValue / float64(r.BuyQty)
		}
		if r.SellQty > 0 {
			sellAvg = r.SellValue / float64(r.SellQty)
		}
		matched := r.BuyQty
		if r.SellQty < matched {
			matched = r.SellQty
		}
		r.RealizedPnL = float64(matched) * (sellAvg - buyAvg)
		rec := []string{
			r.Symbol,
			strconv.FormatInt(r.BuyQty, 10),
			fmt.Sprintf("%.4f", buyAvg),
			strconv.FormatInt(r.SellQty, 10),
			fmt.Sprintf("%.4f", sellAvg),
			fmt.Sprintf("%.2f", r.RealizedPnL),
			fmt.Sprintf("%.2f", r.BuyValue),
			fmt.Sprintf("%.2f", r.SellValue),
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
		totalBuy += r.BuyValue
		totalSell += r.SellValue
		totalPnL += r.RealizedPnL
	}
	_ = w.Write([]string{"TOTAL", "", "", "", "", fmt.Sprintf("%.2f", totalPnL), fmt.Sprintf("%.2f", totalBuy), fmt.Sprintf("%.2f", totalSell)})
	return outPath, nil
}

func (s *eodSummarizer) SummarizeToday() (string, error) {
	return s.SummarizeDay(time.Now().UTC())
}

// ShouldRunNow is true once past the market-close cutoff when today's
// report has not been written yet.
func (s *eodSummarizer) ShouldRunNow() (bool, string) {
	now := time.Now().UTC()
	outPath := eodCSVPath(now)
	if now.After(marketCloseCutoff(now)) {
		if _, err := os.Stat(outPath); errors.Is(err, os.ErrNotExist) {
			return true, outPath
		}
	}
	return false, outPath
}
