package eod

import (
	"os"
	"path/filepath"
	"time"
)

func logDir() string {
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

func dailyTradeFile(t time.Time) string {
	return filepath.Join(logDir(), t.UTC().Format("2006-01-02")+".txt")
}

func eodCSVPath(t time.Time) string {
	return filepath.Join(logDir(), "eod", t.UTC().Format("2006-01-02")+".csv")
}

// marketCloseCutoff is 21:00 UTC, an hour past the US regular-session close.
func marketCloseCutoff(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 21, 0, 0, 0, time.UTC)
}
