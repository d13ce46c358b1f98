package llm

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"llm-paper-trader/internal/types"
)

// ParseDecision validates a raw model response against the decision schema.
// It is strict by design: any missing field, unknown field, out-of-range
// value, or shape mismatch is a MalformedResponse decision error — the cycle
// aborts instead of falling back to a guessed action.
func ParseDecision(symbol types.Symbol, raw string) (types.Decision, error) {
	text := stripFences(strings.TrimSpace(raw))
	if !strings.HasPrefix(text, "{") {
		return types.Decision{}, malformed("response is not a JSON object", text)
	}

	var fields struct {
		Action     *string  `json:"action"`
		Qty        *int64   `json:"qty"`
		Confidence *float64 `json:"confidence"`
		Rationale  *string  `json:"rationale"`
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fields); err != nil {
		return types.Decision{}, malformed(fmt.Sprintf("JSON decode failed: %v", err), text)
	}
	if _, err := dec.Token(); err != io.EOF {
		return types.Decision{}, malformed("trailing content after JSON object", text)
	}

	switch {
	case fields.Action == nil:
		return types.Decision{}, malformed("missing field: action", text)
	case fields.Qty == nil:
		return types.Decision{}, malformed("missing field: qty", text)
	case fields.Confidence == nil:
		return types.Decision{}, malformed("missing field: confidence", text)
	case fields.Rationale == nil:
		return types.Decision{}, malformed("missing field: rationale", text)
	}

	action := types.Action(strings.ToUpper(strings.TrimSpace(*fields.Action)))
	switch action {
	case types.Buy, types.Sell, types.Hold:
	default:
		return types.Decision{}, malformed(fmt.Sprintf("unknown action %q", *fields.Action), text)
	}

	if *fields.Qty < 0 {
		return types.Decision{}, malformed(fmt.Sprintf("negative qty %d", *fields.Qty), text)
	}
	if *fields.Confidence < 0 || *fields.Confidence > 1 {
		return types.Decision{}, malformed(fmt.Sprintf("confidence %v outside [0,1]", *fields.Confidence), text)
	}
	if action == types.Hold && *fields.Qty != 0 {
		return types.Decision{}, malformed(fmt.Sprintf("HOLD with qty %d", *fields.Qty), text)
	}
	if action != types.Hold && *fields.Qty == 0 {
		return types.Decision{}, malformed(fmt.Sprintf("%s with zero qty", action), text)
	}
	if strings.TrimSpace(*fields.Rationale) == "" {
		return types.Decision{}, malformed("empty rationale", text)
	}

	return types.Decision{
		Symbol:     symbol,
		Action:     action,
		Qty:        *fields.Qty,
		Confidence: *fields.Confidence,
		Rationale:  strings.TrimSpace(*fields.Rationale),
	}, nil
}

func malformed(detail, response string) error {
	const keep = 200
	if len(response) > keep {
		response = response[:keep] + "..."
	}
	return &types.DecisionError{
		Reason: types.MalformedResponse,
		Detail: fmt.Sprintf("%s (response: %s)", detail, response),
	}
}

// stripFences removes a markdown code fence around the response; models add
// them despite instructions.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
