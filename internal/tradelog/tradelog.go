package tradelog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"llm-paper-trader/internal/types"
)

var mu sync.Mutex

// Entry records one executed (or simulated) order.
type Entry struct {
	Time           string
	Symbol         string
	Side           string
	Qty            int64
	OrderID        string
	CycleID        string
	Status         string
	FilledQty      int64
	FilledAvgPrice string         `json:",omitempty"`
	Extra          map[string]any `json:"extra,omitempty"`
}

// DecisionEntry records the model's decision for a cycle, before risk checks.
type DecisionEntry struct {
	Time       string
	Symbol     string
	Action     string
	Qty        int64
	Confidence float64
	Rationale  string
	CycleID    string
	Gaps       []string       `json:",omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

func logDir() string {
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

func dailyFilepath(t time.Time) string {
	return filepath.Join(logDir(), t.UTC().Format("2006-01-02")+".txt")
}

func decisionsFilepath(t time.Time) string {
	return filepath.Join(logDir(), "decisions", t.UTC().Format("2006-01-02")+".txt")
}

// AppendReceipt records a terminal order receipt.
func AppendReceipt(order *types.ValidatedOrder, receipt *types.OrderReceipt) error {
	e := Entry{
		Symbol:    string(receipt.Symbol),
		Side:      string(order.Action),
		Qty:       order.Qty,
		OrderID:   receipt.OrderID,
		CycleID:   order.CycleID,
		Status:    receipt.Status,
		FilledQty: receipt.FilledQty,
	}
	if !receipt.FilledAvgPrice.IsZero() {
		e.FilledAvgPrice = receipt.FilledAvgPrice.String()
	}
	return Append(e)
}

func Append(e Entry) error {
	mu.Lock()
	defer mu.Unlock()
	now := time.Now().UTC()
	e.Time = now.Format("2006-01-02 15:04:05")
	return appendLine(dailyFilepath(now), e)
}

// AppendDecision records what the model proposed this cycle.
func AppendDecision(cycleID string, dec types.Decision, gaps []string) error {
	mu.Lock()
	defer mu.Unlock()
	now := time.Now().UTC()
	e := DecisionEntry{
		Time:       now.Format("2006-01-02 15:04:05"),
		Symbol:     string(dec.Symbol),
		Action:     string(dec.Action),
		Qty:        dec.Qty,
		Confidence: dec.Confidence,
		Rationale:  dec.Rationale,
		CycleID:    cycleID,
		Gaps:       gaps,
	}
	return appendLine(decisionsFilepath(now), e)
}

func appendLine(p string, v any) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, _ := json.Marshal(v)
	_, err = fmt.Fprintln(f, string(b))
	return err
}

func CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	root := logDir()
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(p) != ".txt" {
			return nil
		}
		info, er := os.Stat(p)
		if er != nil {
			return nil
		}
		cutoff := time.Now().AddDate(0, 0, -retentionDays)
		if info.ModTime().Before(cutoff) {
			gz := p + ".gz"
			// if already gz exists, remove original .txt
			if _, e2 := os.Stat(gz); e2 == nil {
				_ = os.Remove(p)
				return nil
			}

			in, e3 := os.Open(p)
			if e3 != nil {
				return nil
			}
			defer in.Close()

			out, e4 := os.OpenFile(gz, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
			if e4 != nil {
				return nil
			}
			gw := gzip.NewWriter(out)
			if _, e5 := io.Copy(gw, in); e5 == nil {
				_ = gw.Close()
				_ = out.Close()
				_ = os.Remove(p)
			} else {
				_ = gw.Close()
				_ = out.Close()
			}
		}
		return nil
	})
}
