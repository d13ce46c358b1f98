package llm

import (
	"sort"
	"strconv"
	"strings"

	"llm-paper-trader/internal/types"
)

// SystemPrompt is the fixed instruction every provider sends.
const SystemPrompt = "You are a disciplined equities trader managing a paper account. " +
	"Decide one action for the symbol below using only the supplied market signals. " +
	"Respond ONLY with compact JSON matching the schema. No prose, no code fences."

// ResponseSchema is the shape the model must reply with. The parser enforces
// it strictly; nothing else reaches the risk guard.
const ResponseSchema = `{"action":"BUY|SELL|HOLD","qty":<whole number of shares, 0 for HOLD>,"confidence":<number between 0 and 1>,"rationale":"<one sentence>"}`

// BuildPrompt renders a snapshot deterministically: signal names sorted, float
// formatting fixed, so the same snapshot always produces the same prompt.
func BuildPrompt(snap *types.Snapshot) string {
	names := make([]string, 0, len(snap.Signals))
	for name := range snap.Signals {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Symbol: ")
	b.WriteString(string(snap.Symbol))
	b.WriteString("\nSignals:\n")

	for _, name := range names {
		sig := snap.Signals[name]
		b.WriteString(name)
		b.WriteString(" = ")
		switch sig.Kind {
		case types.SignalSeries:
			b.WriteByte('[')
			for i, v := range sig.Series {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(formatFloat(v))
			}
			b.WriteByte(']')
		case types.SignalScalar:
			b.WriteString(formatFloat(sig.Scalar))
		case types.SignalText:
			b.WriteString("\"\"\"\n")
			b.WriteString(sig.Text)
			b.WriteString("\n\"\"\"")
		}
		b.WriteByte('\n')
	}

	if len(snap.Gaps) > 0 {
		b.WriteString("Missing signals (data source failed): ")
		b.WriteString(strings.Join(snap.Gaps, ", "))
		b.WriteByte('\n')
	}

	b.WriteString("\nSchema: ")
	b.WriteString(ResponseSchema)
	b.WriteString("\nRespond ONLY with compact JSON matching the schema.")
	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
