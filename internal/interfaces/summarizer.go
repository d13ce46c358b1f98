package interfaces

import "time"

// EodSummarizer turns a day's trade log into a CSV report.
type EodSummarizer interface {
	// SummarizeDay aggregates the trade log for a date into a CSV file and
	// returns its path. An empty path with a nil error means there were no
	// trades that day.
	SummarizeDay(t time.Time) (csvPath string, err error)

	// SummarizeToday is SummarizeDay for the current UTC date.
	SummarizeToday() (csvPath string, err error)

	// ShouldRunNow reports whether the daily summary is due: past the
	// market-close cutoff with no report written yet.
	ShouldRunNow() (shouldRun bool, csvPath string)
}
