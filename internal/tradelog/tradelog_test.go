package tradelog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"llm-paper-trader/internal/types"
)

func TestAppendReceiptWritesDailyLine(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRADER_LOG_DIR", dir)

	order := &types.ValidatedOrder{Symbol: "AAPL", Action: types.Buy, Qty: 10, CycleID: "cyc-1"}
	receipt := &types.OrderReceipt{
		OrderID:        "ord-1",
		ClientOrderID:  "cyc-1",
		Symbol:         "AAPL",
		Status:         types.StatusFilled,
		FilledQty:      10,
		FilledAvgPrice: decimal.RequireFromString("210.42"),
	}
	if err := AppendReceipt(order, receipt); err != nil {
		t.Fatalf("AppendReceipt: %v", err)
	}

	p := filepath.Join(dir, time.Now().UTC().Format("2006-01-02")+".txt")
	f, err := os.Open(p)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		t.Fatal("log file is empty")
	}
	var e Entry
	if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Symbol != "AAPL" || e.CycleID != "cyc-1" || e.FilledAvgPrice != "210.42" {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestAppendDecisionWritesDecisionsLine(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRADER_LOG_DIR", dir)

	dec := types.Decision{Symbol: "MSFT", Action: types.Sell, Qty: 3, Confidence: 0.7, Rationale: "overbought"}
	if err := AppendDecision("cyc-2", dec, []string{"news.sentiment_score"}); err != nil {
		t.Fatalf("AppendDecision: %v", err)
	}

	p := filepath.Join(dir, "decisions", time.Now().UTC().Format("2006-01-02")+".txt")
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read decisions log: %v", err)
	}
	var e DecisionEntry
	if err := json.Unmarshal(b, &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.CycleID != "cyc-2" || e.Action != "SELL" || len(e.Gaps) != 1 {
		t.Fatalf("unexpected entry %+v", e)
	}
}
